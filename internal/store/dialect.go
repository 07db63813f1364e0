package store

import (
	"strconv"
	"strings"

	"github.com/qbench/qbench/internal/model"
)

// Dialect captures the SQL differences between the supported drivers.
// Queries are written with ? placeholders and rebound per dialect.
type Dialect struct {
	Name       string
	numbered   bool
	idColumn   string
	intType    string
	floatType  string
	isNullSafe string
	aggregate  string
}

var (
	// SQLite is used with the mattn/go-sqlite3 and modernc.org/sqlite drivers.
	SQLite = Dialect{
		Name:       "sqlite",
		idColumn:   "id INTEGER PRIMARY KEY AUTOINCREMENT",
		intType:    "INTEGER",
		floatType:  "REAL",
		isNullSafe: "IS",
		aggregate:  "group_concat",
	}

	// Postgres is used with the pgx stdlib driver.
	Postgres = Dialect{
		Name:       "postgres",
		numbered:   true,
		idColumn:   "id BIGSERIAL PRIMARY KEY",
		intType:    "BIGINT",
		floatType:  "DOUBLE PRECISION",
		isNullSafe: "IS NOT DISTINCT FROM",
		aggregate:  "string_agg",
	}
)

// Rebind rewrites ? placeholders into the dialect's form. Question marks
// inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
			b.WriteByte(c)
		case c == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// NullSafeEq returns a predicate comparing column to a placeholder where two
// NULLs compare equal.
func (d Dialect) NullSafeEq(column string) string {
	return column + " " + d.isNullSafe + " ?"
}

// GroupConcat aggregates expr into a separator-joined string.
func (d Dialect) GroupConcat(expr, sep string) string {
	return d.aggregate + "(" + expr + ", " + quoteLiteral(sep) + ")"
}

// ColumnType returns the DDL type of a registry column.
func (d Dialect) ColumnType(t model.ColumnType) string {
	switch t {
	case model.Real:
		return d.floatType
	case model.Text:
		return "TEXT"
	default:
		return d.intType
	}
}

// QuoteIdent quotes an identifier. Callers pass only registry names.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) (Dialect, bool) {
	switch driver {
	case DriverSQLite, DriverSQLiteModernc:
		return SQLite, true
	case DriverPostgres:
		return Postgres, true
	default:
		return Dialect{}, false
	}
}
