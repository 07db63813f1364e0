// Package store persists the benchmark data model. It owns the schema, the
// name and fact upserts used by uploads, the append-only logs, and read
// access for the query builder. SQLite and Postgres are both supported.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Driver names accepted by Open.
const (
	DriverSQLite        = "sqlite3"
	DriverSQLiteModernc = "sqlite"
	DriverPostgres      = "pgx"
)

// Options selects and configures the backing database.
type Options struct {
	Driver string
	// DSN is used verbatim when set. Otherwise Path names a SQLite file.
	DSN          string
	Path         string
	MaxOpenConns int

	// ChosenMetric is the metric the report view extracts into its own
	// column. Default: DefaultChosenMetric
	ChosenMetric string
}

// DefaultChosenMetric is the metric shown as a first-class report column.
const DefaultChosenMetric = "Modularity Ratio (current/Best)"

// Store is the database handle shared by uploads and queries.
type Store struct {
	db      *sql.DB // writes; a single connection on SQLite
	readDB  *sql.DB // reads and query-builder connections
	driver  string
	dialect Dialect

	chosenMetric string
}

// Open connects to the database described by opts and creates any missing
// tables and indexes.
func Open(ctx context.Context, opts Options) (*Store, error) {
	dialect, ok := DialectFor(opts.Driver)
	if !ok {
		return nil, fmt.Errorf("store: unsupported driver %q", opts.Driver)
	}

	dsn := opts.DSN
	if dsn == "" {
		if opts.Path == "" {
			return nil, errors.New("store: either dsn or path is required")
		}
		dsn = sqliteDSN(opts.Driver, opts.Path)
	}

	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}

	if opts.ChosenMetric == "" {
		opts.ChosenMetric = DefaultChosenMetric
	}
	s := &Store{db: db, readDB: db, driver: opts.Driver, dialect: dialect, chosenMetric: opts.ChosenMetric}

	if dialect.Name == SQLite.Name {
		db.SetMaxOpenConns(1) // single writer
		db.SetMaxIdleConns(1)
		if !strings.Contains(dsn, ":memory:") && !strings.Contains(dsn, "mode=memory") {
			readDB, err := sql.Open(opts.Driver, dsn)
			if err != nil {
				db.Close()
				return nil, fmt.Errorf("store: failed to open read database: %w", err)
			}
			readers := opts.MaxOpenConns
			if readers <= 0 {
				readers = 4
			}
			readDB.SetMaxOpenConns(readers)
			readDB.SetMaxIdleConns(readers)
			readDB.SetConnMaxLifetime(5 * time.Minute)
			s.readDB = readDB
		}
	} else if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("store: failed to connect: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func sqliteDSN(driver, path string) string {
	if driver == DriverSQLiteModernc {
		return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	return path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
}

// Migrate creates missing tables and indexes. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range AllSchemaSQL(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: failed to migrate: %w", err)
		}
	}
	return nil
}

// Dialect returns the SQL dialect of the backing database.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Driver returns the database/sql driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Ping checks the write connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Conn pins a read connection. Temporary tables created on it are visible
// only to statements run on the same connection.
func (s *Store) Conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := s.readDB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: failed to acquire connection: %w", err)
	}
	return conn, nil
}

// Close closes all connections.
func (s *Store) Close() error {
	var errs []error
	if s.readDB != s.db {
		if err := s.readDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

// exists runs a SELECT 1 query and reports whether it produced a row.
func (s *Store) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var one int
	err := s.queryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
