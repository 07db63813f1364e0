package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ResultSet is a fully materialized query result.
type ResultSet struct {
	Columns   []string        `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	Truncated bool            `json:"truncated,omitempty"`
}

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Query runs a read-only statement written with ? placeholders and returns
// at most maxRows rows; maxRows <= 0 means no limit.
func (s *Store) Query(ctx context.Context, query string, maxRows int, args ...interface{}) (*ResultSet, error) {
	return QueryOn(ctx, s.readDB, s.dialect, query, maxRows, args...)
}

// QueryOn is Query against a specific connection.
func QueryOn(ctx context.Context, q Querier, d Dialect, query string, maxRows int, args ...interface{}) (*ResultSet, error) {
	rows, err := q.QueryContext(ctx, d.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return ScanRows(rows, maxRows)
}

// ScanRows drains rows into a ResultSet. Byte slices become strings and
// times are rendered as RFC 3339.
func ScanRows(rows *sql.Rows, maxRows int) (*ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("store: failed to read columns: %w", err)
	}
	rs := &ResultSet{Columns: cols, Rows: [][]interface{}{}}

	for rows.Next() {
		if maxRows > 0 && len(rs.Rows) >= maxRows {
			rs.Truncated = true
			break
		}
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("store: failed to scan row: %w", err)
		}
		for i, v := range values {
			values[i] = normalize(v)
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: failed to iterate rows: %w", err)
	}
	return rs, nil
}

func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}
