// Package config provides unified configuration for the qbench services.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode represents which API surfaces to serve.
type Mode string

const (
	ModeAll    Mode = "all"
	ModeQuery  Mode = "query"
	ModeUpload Mode = "upload"
)

// Database drivers understood by store.Open.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// DefaultChosenMetric is the performance metric surfaced as its own column
// by the aggregated report views.
const DefaultChosenMetric = "Modularity Ratio (current/Best)"

// Config holds the unified configuration for qbench.
type Config struct {
	// Mode specifies which endpoints to serve: all, query, upload
	Mode Mode `json:"mode" yaml:"mode"`

	// DataDir is the base directory for local data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	Database DatabaseConfig `json:"database" yaml:"database"`
	Staging  StagingConfig  `json:"staging" yaml:"staging"`
	Archive  ArchiveConfig  `json:"archive" yaml:"archive"`
	HTTP     HTTPConfig     `json:"http" yaml:"http"`
	GRPC     GRPCConfig     `json:"grpc" yaml:"grpc"`
	Auth     AuthConfig     `json:"auth" yaml:"auth"`
	Query    QueryConfig    `json:"query" yaml:"query"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// DatabaseConfig holds the benchmark database settings.
type DatabaseConfig struct {
	// Driver is sqlite3 or pgx
	Driver string `json:"driver" yaml:"driver"`

	// DSN is used verbatim when set; for sqlite3 it defaults to Path
	DSN string `json:"dsn" yaml:"dsn"`

	// Path is the SQLite database file
	Path string `json:"path" yaml:"path"`

	// MaxOpenConns caps the connection pool (0 means driver default)
	MaxOpenConns int `json:"max_open_conns" yaml:"max_open_conns"`
}

// StagingConfig holds settings for the per-upload staging store.
type StagingConfig struct {
	// DSN for the modernc sqlite driver; empty means a private in-memory database
	DSN string `json:"dsn" yaml:"dsn"`
}

// ArchiveConfig controls archiving of raw uploaded files.
type ArchiveConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// Prefix is prepended to every object key
	Prefix string `json:"prefix" yaml:"prefix"`

	// Compress stores archived files snappy-framed
	Compress bool `json:"compress" yaml:"compress"`

	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	Bucket       string `json:"bucket" yaml:"bucket"`
	Region       string `json:"region" yaml:"region"`
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	UsePathStyle bool   `json:"use_path_style" yaml:"use_path_style"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Addr         string        `json:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`

	// MaxUploadBytes bounds the multipart body of an upload request
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes"`

	// LandingPath is where failed queries are redirected
	LandingPath string `json:"landing_path" yaml:"landing_path"`
}

// GRPCConfig holds gRPC server configuration.
type GRPCConfig struct {
	Addr    string `json:"addr" yaml:"addr"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// AuthConfig lists the tokens that grant staff access to uploads and
// entity registration.
type AuthConfig struct {
	StaffTokens []string `json:"staff_tokens" yaml:"staff_tokens"`
}

// QueryConfig holds query builder settings.
type QueryConfig struct {
	ChosenMetric string `json:"chosen_metric" yaml:"chosen_metric"`

	// MaxRows truncates result sets (0 means unlimited)
	MaxRows int `json:"max_rows" yaml:"max_rows"`

	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// ViewCacheTTL bounds how long view results are served from memory.
	// Uploads and entity registrations invalidate the cache early. 0 disables it.
	ViewCacheTTL time.Duration `json:"view_cache_ttl" yaml:"view_cache_ttl"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `json:"level" yaml:"level"`
	Development bool   `json:"development" yaml:"development"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		Mode:    ModeAll,
		DataDir: "./data/qbench",
		Database: DatabaseConfig{
			Driver: DriverSQLite,
		},
		Archive: ArchiveConfig{
			Enabled:  false,
			Type:     "local",
			Prefix:   "uploads",
			Compress: true,
		},
		HTTP: HTTPConfig{
			Addr:           ":8080",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   120 * time.Second,
			IdleTimeout:    120 * time.Second,
			MaxUploadBytes: 32 << 20,
			LandingPath:    "/",
		},
		GRPC: GRPCConfig{
			Addr:    ":9090",
			Enabled: false,
		},
		Query: QueryConfig{
			ChosenMetric: DefaultChosenMetric,
			MaxRows:      10000,
			Timeout:      30 * time.Second,
			ViewCacheTTL: time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Resolve resolves relative paths and fills defaults derived from DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/qbench"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		c.Database.Path = filepath.Join(c.DataDir, "qbench.db")
	}
	if c.Archive.Type == "local" && c.Archive.Path == "" {
		c.Archive.Path = filepath.Join(c.DataDir, "archive")
	}
	if c.HTTP.LandingPath == "" {
		c.HTTP.LandingPath = "/"
	}
	if c.Query.ChosenMetric == "" {
		c.Query.ChosenMetric = DefaultChosenMetric
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeAll, ModeQuery, ModeUpload:
	default:
		return fmt.Errorf("invalid mode: %s (must be all, query, or upload)", c.Mode)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.DSN == "" && c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite3")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for pgx")
		}
	default:
		return fmt.Errorf("invalid database driver: %s (must be sqlite3 or pgx)", c.Database.Driver)
	}

	if c.Archive.Enabled {
		if c.Archive.Type != "local" && c.Archive.Type != "s3" {
			return fmt.Errorf("invalid archive type: %s (must be local or s3)", c.Archive.Type)
		}
		if c.Archive.Type == "s3" && c.Archive.S3.Bucket == "" {
			return fmt.Errorf("archive.s3.bucket is required when archive type is s3")
		}
	}

	if c.HTTP.MaxUploadBytes <= 0 {
		return fmt.Errorf("http.max_upload_bytes must be positive, got %d", c.HTTP.MaxUploadBytes)
	}

	if c.Query.ViewCacheTTL < 0 {
		return fmt.Errorf("query.view_cache_ttl must not be negative, got %s", c.Query.ViewCacheTTL)
	}
	if c.Query.MaxRows < 0 {
		return fmt.Errorf("query.max_rows must not be negative, got %d", c.Query.MaxRows)
	}

	return nil
}

// ShouldRunQuery returns true if the read-only query endpoints should be served.
func (c *Config) ShouldRunQuery() bool {
	return c.Mode == ModeAll || c.Mode == ModeQuery
}

// ShouldRunUpload returns true if the staff upload endpoints should be served.
func (c *Config) ShouldRunUpload() bool {
	return c.Mode == ModeAll || c.Mode == ModeUpload
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the QBENCH_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("QBENCH_MODE"); v != "" {
		cfg.Mode = Mode(v)
	}
	if v := os.Getenv("QBENCH_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Database configuration
	if v := os.Getenv("QBENCH_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("QBENCH_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("QBENCH_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// HTTP configuration
	if v := os.Getenv("QBENCH_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("QBENCH_HTTP_MAX_UPLOAD_BYTES"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.HTTP.MaxUploadBytes)
	}

	// gRPC configuration
	if v := os.Getenv("QBENCH_GRPC_ADDR"); v != "" {
		cfg.GRPC.Addr = v
	}
	if v := os.Getenv("QBENCH_GRPC_ENABLED"); v != "" {
		cfg.GRPC.Enabled = v == "true" || v == "1"
	}

	// Auth configuration
	if v := os.Getenv("QBENCH_STAFF_TOKENS"); v != "" {
		cfg.Auth.StaffTokens = splitList(v)
	}

	// Query configuration
	if v := os.Getenv("QBENCH_QUERY_CHOSEN_METRIC"); v != "" {
		cfg.Query.ChosenMetric = v
	}
	if v := os.Getenv("QBENCH_QUERY_MAX_ROWS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Query.MaxRows)
	}
	if v := os.Getenv("QBENCH_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Query.Timeout = d
		}
	}
	if v := os.Getenv("QBENCH_QUERY_VIEW_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Query.ViewCacheTTL = d
		}
	}

	// Archive configuration
	if v := os.Getenv("QBENCH_ARCHIVE_ENABLED"); v != "" {
		cfg.Archive.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("QBENCH_ARCHIVE_TYPE"); v != "" {
		cfg.Archive.Type = v
	}
	if v := os.Getenv("QBENCH_ARCHIVE_PATH"); v != "" {
		cfg.Archive.Path = v
	}
	if v := os.Getenv("QBENCH_S3_BUCKET"); v != "" {
		cfg.Archive.S3.Bucket = v
	}
	if v := os.Getenv("QBENCH_S3_REGION"); v != "" {
		cfg.Archive.S3.Region = v
	}
	if v := os.Getenv("QBENCH_S3_ENDPOINT"); v != "" {
		cfg.Archive.S3.Endpoint = v
	}

	// Log configuration
	if v := os.Getenv("QBENCH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// EnsureDirectories creates all required local directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.Database.Driver == DriverSQLite && c.Database.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Database.Path))
	}
	if c.Archive.Enabled && c.Archive.Type == "local" {
		dirs = append(dirs, c.Archive.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
