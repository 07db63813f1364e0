package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InstanceKey is the identity of a problem instance.
type InstanceKey struct {
	ProblemID int64
	GraphID   int64
	GraphSize *float64
}

// Tuple returns the identity predicate for the instance.
func (k InstanceKey) Tuple() Tuple {
	return Tuple{
		{"problem_id", k.ProblemID},
		{"graph_id", k.GraphID},
		{"graph_size", k.GraphSize},
	}
}

// FindInstance returns the id of the problem instance matching key.
func (s *Store) FindInstance(ctx context.Context, key InstanceKey) (int64, bool, error) {
	where, args := key.Tuple().Where(s.dialect)
	var id int64
	err := s.queryRow(ctx, `SELECT id FROM benchmarks_probleminstance WHERE `+where+` ORDER BY id LIMIT 1`, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: failed to find problem instance: %w", err)
	}
	return id, true, nil
}

// InsertInstance inserts a problem instance without checking for an
// existing one.
func (s *Store) InsertInstance(ctx context.Context, key InstanceKey, url, notes *string) error {
	_, err := s.exec(ctx, `
		INSERT INTO benchmarks_probleminstance (problem_id, graph_id, graph_size, url1, notes)
		VALUES (?, ?, ?, ?, ?)`,
		key.ProblemID, key.GraphID, argValue(key.GraphSize), argValue(url), argValue(notes))
	if err != nil {
		return fmt.Errorf("store: failed to insert problem instance: %w", err)
	}
	return nil
}
