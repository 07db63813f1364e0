// Package cli implements the qbenchctl command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qbench/qbench/internal/config"
	"github.com/qbench/qbench/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	EnvFile    string
	DataDir    string
	DBDriver   string
	DBDSN      string
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for qbenchctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "qbenchctl",
		Short: "qbenchctl - administer a qbench benchmark database",
		Long: `Administer a qbench benchmark database directly: create the schema,
upload result files, run query-builder selections and export tables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "configuration file (YAML or JSON)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "environment file loaded before QBENCH_* variables")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "base directory for local data files")
	cmd.PersistentFlags().StringVar(&opts.DBDriver, "db-driver", "", "database driver (sqlite3|pgx)")
	cmd.PersistentFlags().StringVar(&opts.DBDSN, "db-dsn", "", "database connection string")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewUploadCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewViewCommand(opts))
	cmd.AddCommand(NewErrorLogCommand(opts))
	cmd.AddCommand(NewArchiveCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig layers defaults, the config file, the environment and flags.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}
	cfg := config.DefaultConfig()
	if opts.ConfigFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(opts.ConfigFile); err != nil {
			return nil, err
		}
	}
	config.LoadFromEnv(cfg)

	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.DBDriver != "" {
		cfg.Database.Driver = opts.DBDriver
	}
	if opts.DBDSN != "" {
		cfg.Database.DSN = opts.DBDSN
	}
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is the state shared by commands that touch the database.
type session struct {
	cfg    *config.Config
	store  *store.Store
	logger *zap.Logger
	out    io.Writer
	format string
}

func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if opts.Verbose {
		cfg.Log.Level = "debug"
		if logger, err = cfg.Log.BuildLogger(); err != nil {
			return nil, err
		}
	}

	st, err := store.Open(ctx, store.Options{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		Path:         cfg.Database.Path,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		ChosenMetric: cfg.Query.ChosenMetric,
	})
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, store: st, logger: logger, out: cmd.OutOrStdout(), format: opts.Format}, nil
}

func (s *session) Close() error {
	s.logger.Sync()
	return s.store.Close()
}

// emit writes v as JSON in json format, or calls text otherwise.
func (s *session) emit(v interface{}, text func(w io.Writer) error) error {
	if s.format == "json" || text == nil {
		enc := json.NewEncoder(s.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(s.out)
}
