package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// BuildLogger builds the process logger from the log section.
func (l LogConfig) BuildLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if l.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	if l.Level != "" {
		level, err := zapcore.ParseLevel(l.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", l.Level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
