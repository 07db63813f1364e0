package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/qbench/qbench/internal/staging"
	"github.com/qbench/qbench/internal/store"
)

// Problems processes a problem upload, creating problem instances.
func (u *Uploader) Problems(ctx context.Context, path string) (*Summary, error) {
	return u.run(ctx, KindProblems, path, ProblemSchema, u.problemRow, problemTop)
}

func problemTop(rows int, c *counts) string {
	t := &tally{}
	t.optional(c.problems, "new problems")
	t.optional(c.graphs, "new graphs")
	return fmt.Sprintf("Upload Summary: %d rows read, %d problem instances inserted%s", rows, c.instances, t)
}

type ensureFunc func(ctx context.Context, name string, url, notes *string) (int64, bool, error)

func (u *Uploader) problemRow(ctx context.Context, row staging.Row, sum *Summary, c *counts) error {
	url, notes := row.String(colProblemURL), row.String(colNotes)

	var ids [2]int64
	steps := []struct {
		label   string
		column  string
		ensure  ensureFunc
		counter *int
	}{
		{"Problem", colProblem, u.store.EnsureProblem, &c.problems},
		{"Graph", colGraphType, u.store.EnsureGraph, &c.graphs},
	}
	for i, step := range steps {
		name := row.String(step.column)
		if name == nil {
			return fmt.Errorf("%s is missing", step.column)
		}
		id, created, err := step.ensure(ctx, *name, url, notes)
		if errors.Is(err, store.ErrNotFoundAfterInsert) {
			sum.failure("Insertion Error (row %d): %s %s was not found after insertion.", row.Num, step.label, *name)
			return nil
		}
		if err != nil {
			return err
		}
		if created {
			sum.success("New %s (row %d): %s", step.label, row.Num, *name)
			*step.counter++
		}
		ids[i] = id
	}

	key := store.InstanceKey{ProblemID: ids[0], GraphID: ids[1], GraphSize: row.Float(colGraphSize)}
	_, found, err := u.store.FindInstance(ctx, key)
	if err != nil {
		return err
	}
	if found {
		sum.exception("Exception (row %d): Entry already exists in Problem Instances table", row.Num)
		return nil
	}

	if err := u.store.InsertInstance(ctx, key, url, notes); err != nil {
		return err
	}
	if _, found, err = u.store.FindInstance(ctx, key); err != nil {
		return err
	}
	if !found {
		sum.failure("Insertion Error (row %d): Problem instance could not be found after insertion", row.Num)
		return nil
	}
	c.instances++
	return nil
}
