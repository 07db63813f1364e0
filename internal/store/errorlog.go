package store

import (
	"context"
	"fmt"
	"time"
)

// ErrorLogEntry records a failed query-builder statement.
type ErrorLogEntry struct {
	ID        int64     `json:"id"`
	LoggedAt  time.Time `json:"logged_at"`
	Message   string    `json:"error_message"`
	QueryCode string    `json:"querycode"`
}

// AppendErrorLog stores the error message and the SQL that produced it.
func (s *Store) AppendErrorLog(ctx context.Context, message, queryCode string) error {
	_, err := s.exec(ctx,
		`INSERT INTO benchmarks_errorlog (logged_at, error_message, querycode) VALUES (?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), message, queryCode)
	if err != nil {
		return fmt.Errorf("store: failed to append error log: %w", err)
	}
	return nil
}

// ErrorLog returns the most recent entries, newest first.
func (s *Store) ErrorLog(ctx context.Context, limit int) ([]ErrorLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.readDB.QueryContext(ctx, s.dialect.Rebind(`
		SELECT id, logged_at, error_message, querycode
		FROM benchmarks_errorlog ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("store: failed to list error log: %w", err)
	}
	defer rows.Close()

	var entries []ErrorLogEntry
	for rows.Next() {
		var e ErrorLogEntry
		var loggedAt string
		if err := rows.Scan(&e.ID, &loggedAt, &e.Message, &e.QueryCode); err != nil {
			return nil, fmt.Errorf("store: failed to scan error log: %w", err)
		}
		e.LoggedAt, _ = time.Parse(time.RFC3339Nano, loggedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
