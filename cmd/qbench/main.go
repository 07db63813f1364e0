// Package main implements the qbench server. It serves the upload and query
// APIs over HTTP, and the query API over gRPC when enabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/qbench/qbench/internal/app"
	"github.com/qbench/qbench/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		envFile     string
		dataDir     string
		mode        string
		httpAddr    string
		grpcAddr    string
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&envFile, "env-file", ".env", "Environment file loaded before QBENCH_* variables are read")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for local data files")
	flag.StringVar(&mode, "mode", "", "Service mode: all, query, upload")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address")
	flag.StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address (enables gRPC)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "qbench - quantum computing benchmark database\n\n")
		fmt.Fprintf(os.Stderr, "Usage: qbench [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  QBENCH_MODE           Service mode (all, query, upload)\n")
		fmt.Fprintf(os.Stderr, "  QBENCH_DB_DRIVER      Database driver (sqlite3, pgx)\n")
		fmt.Fprintf(os.Stderr, "  QBENCH_DB_DSN         Database connection string\n")
		fmt.Fprintf(os.Stderr, "  QBENCH_STAFF_TOKENS   Comma-separated staff tokens\n")
		fmt.Fprintf(os.Stderr, "  QBENCH_ARCHIVE_TYPE   Upload archive (local, s3)\n")
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("qbench version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, envFile, dataDir, mode, httpAddr, grpcAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Log.BuildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Configuration",
		zap.String("version", version),
		zap.String("mode", string(cfg.Mode)),
		zap.String("data_dir", cfg.DataDir),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("http", cfg.HTTP.Addr),
		zap.Bool("grpc", cfg.GRPC.Enabled),
		zap.Bool("archive", cfg.Archive.Enabled))

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create application", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		logger.Fatal("Failed to start application", zap.Error(err))
	}

	if err := application.WaitForShutdown(ctx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
		os.Exit(1)
	}
}

// loadConfig layers defaults, the config file, the environment and flags.
func loadConfig(configFile, envFile, dataDir, mode, httpAddr, grpcAddr string) (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
	}

	config.LoadFromEnv(cfg)

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if mode != "" {
		cfg.Mode = config.Mode(mode)
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if grpcAddr != "" {
		cfg.GRPC.Addr = grpcAddr
		cfg.GRPC.Enabled = true
	}
	return cfg, nil
}
