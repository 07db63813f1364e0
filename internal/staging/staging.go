// Package staging holds the coerced rows of one upload in a private SQLite
// table before they are resolved into the benchmark store. Rows keep their
// 1-based position in the file.
package staging

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/qbench/qbench/internal/schema"
)

// DefaultDSN is a private in-memory database.
const DefaultDSN = ":memory:"

// Table is a staging table shaped after a schema.
type Table struct {
	db     *sql.DB
	name   string
	schema schema.Schema
	insert string
}

// Open creates a staging table for s in the database at dsn. An empty dsn
// uses a private in-memory database.
func Open(ctx context.Context, dsn string, s schema.Schema) (*Table, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("staging: failed to open database: %w", err)
	}
	// In-memory databases live per connection.
	db.SetMaxOpenConns(1)

	t := &Table{
		db:     db,
		name:   "staging_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		schema: s,
	}

	cols := make([]string, 0, len(s)+1)
	cols = append(cols, "rownum INTEGER PRIMARY KEY")
	placeholders := make([]string, 0, len(s)+1)
	placeholders = append(placeholders, "?")
	names := make([]string, 0, len(s)+1)
	names = append(names, "rownum")
	for i, c := range s {
		cols = append(cols, fmt.Sprintf("%s %s", columnName(i), sqlType(c.Type)))
		placeholders = append(placeholders, "?")
		names = append(names, columnName(i))
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", t.name, strings.Join(cols, ", "))); err != nil {
		db.Close()
		return nil, fmt.Errorf("staging: failed to create table: %w", err)
	}
	t.insert = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.name, strings.Join(names, ", "), strings.Join(placeholders, ", "))
	return t, nil
}

func columnName(i int) string {
	return fmt.Sprintf("c%d", i)
}

func sqlType(t schema.Type) string {
	switch t {
	case schema.Int:
		return "INTEGER"
	case schema.Float:
		return "REAL"
	default:
		return "TEXT"
	}
}

// Insert stages one coerced row. values follow schema order; nil is NULL.
func (t *Table) Insert(ctx context.Context, rownum int, values []interface{}) error {
	if len(values) != len(t.schema) {
		return fmt.Errorf("staging: row %d has %d values, want %d", rownum, len(values), len(t.schema))
	}
	args := make([]interface{}, 0, len(values)+1)
	args = append(args, rownum)
	args = append(args, values...)
	if _, err := t.db.ExecContext(ctx, t.insert, args...); err != nil {
		return fmt.Errorf("staging: failed to insert row %d: %w", rownum, err)
	}
	return nil
}

// Count returns the number of staged rows.
func (t *Table) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.name).Scan(&n); err != nil {
		return 0, fmt.Errorf("staging: failed to count rows: %w", err)
	}
	return n, nil
}

// Rows returns the staged rows in file order.
func (t *Table) Rows(ctx context.Context) ([]Row, error) {
	rows, err := t.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY rownum", t.name))
	if err != nil {
		return nil, fmt.Errorf("staging: failed to read rows: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var num int
		values := make([]interface{}, len(t.schema))
		dest := make([]interface{}, 0, len(values)+1)
		dest = append(dest, &num)
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("staging: failed to scan row: %w", err)
		}
		out = append(out, Row{Num: num, schema: t.schema, values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("staging: failed to read rows: %w", err)
	}
	return out, nil
}

// Close drops the staging table and closes the database.
func (t *Table) Close() error {
	_, dropErr := t.db.Exec("DROP TABLE IF EXISTS " + t.name)
	if err := t.db.Close(); err != nil {
		return err
	}
	return dropErr
}

// Row is one staged row.
type Row struct {
	Num    int
	schema schema.Schema
	values []interface{}
}

func (r Row) value(name string) interface{} {
	for i, c := range r.schema {
		if c.Name == name {
			return r.values[i]
		}
	}
	return nil
}

// Int returns the named cell as an integer, or nil when NULL or absent.
func (r Row) Int(name string) *int64 {
	switch v := r.value(name).(type) {
	case int64:
		return &v
	case float64:
		n := int64(v)
		return &n
	}
	return nil
}

// Float returns the named cell as a float, or nil when NULL or absent.
func (r Row) Float(name string) *float64 {
	switch v := r.value(name).(type) {
	case float64:
		return &v
	case int64:
		f := float64(v)
		return &f
	}
	return nil
}

// String returns the named cell as a string, or nil when NULL or absent.
func (r Row) String(name string) *string {
	switch v := r.value(name).(type) {
	case string:
		return &v
	case []byte:
		s := string(v)
		return &s
	}
	return nil
}
