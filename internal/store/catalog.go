package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/qbench/qbench/internal/model"
)

// ErrNotFoundAfterInsert is returned when a row that was just inserted, or
// whose insert was skipped as a duplicate, cannot be read back.
var ErrNotFoundAfterInsert = errors.New("store: row not found after insertion")

// EnsureName returns the id of the row in a uniquely named table with the
// given name, inserting it first if absent. created reports whether this
// call inserted the row. Concurrent callers converge on the same id.
func (s *Store) EnsureName(ctx context.Context, table, name string) (id int64, created bool, err error) {
	t, ok := model.Lookup(table)
	if !ok {
		return 0, false, fmt.Errorf("store: unknown table %q", table)
	}
	if col, ok := t.Column("name"); !ok || !col.Unique {
		return 0, false, fmt.Errorf("store: %s is not keyed by name", t.Name)
	}

	insert := fmt.Sprintf(`INSERT INTO %s (name) VALUES (?) ON CONFLICT DO NOTHING RETURNING id`, t.Name)
	err = s.queryRow(ctx, insert, name).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("store: failed to insert %s %q: %w", t.Short(), name, err)
	}

	lookup := fmt.Sprintf(`SELECT id FROM %s WHERE name = ?`, t.Name)
	if err := s.queryRow(ctx, lookup, name).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, ErrNotFoundAfterInsert
		}
		return 0, false, fmt.Errorf("store: failed to look up %s %q: %w", t.Short(), name, err)
	}
	return id, false, nil
}

// EnsureProblem resolves a problem by case-insensitive name, inserting it
// with the given links when absent.
func (s *Store) EnsureProblem(ctx context.Context, name string, url, notes *string) (int64, bool, error) {
	return s.ensureCaseless(ctx, model.Problem, name, url, notes)
}

// EnsureGraph resolves a graph by case-insensitive name, inserting it with
// the given links when absent.
func (s *Store) EnsureGraph(ctx context.Context, name string, url, notes *string) (int64, bool, error) {
	return s.ensureCaseless(ctx, model.Graph, name, url, notes)
}

func (s *Store) ensureCaseless(ctx context.Context, table, name string, url, notes *string) (id int64, created bool, err error) {
	insert := fmt.Sprintf(`INSERT INTO %s (name, url1, notes) VALUES (?, ?, ?) ON CONFLICT DO NOTHING RETURNING id`, table)
	err = s.queryRow(ctx, insert, name, argValue(url), argValue(notes)).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("store: failed to insert %s %q: %w", table, name, err)
	}

	lookup := fmt.Sprintf(`SELECT id FROM %s WHERE lower(name) = lower(?) ORDER BY id LIMIT 1`, table)
	if err := s.queryRow(ctx, lookup, name).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, ErrNotFoundAfterInsert
		}
		return 0, false, fmt.Errorf("store: failed to look up %s %q: %w", table, name, err)
	}
	return id, false, nil
}
