package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	qerrors "github.com/qbench/qbench/internal/errors"
	"github.com/qbench/qbench/internal/model"
)

// publicTable resolves a table name exposed to entity views.
func publicTable(name string) (model.Table, error) {
	t, ok := model.Lookup(name)
	if !ok || t.Internal {
		return model.Table{}, qerrors.NewValidationError(qerrors.CodeUnknownTable,
			fmt.Sprintf("unknown table %q", name))
	}
	return t, nil
}

// ListTable returns rows of an entity table ordered by id.
func (s *Store) ListTable(ctx context.Context, table string, limit, offset int) (*ResultSet, error) {
	t, err := publicTable(table)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", strings.Join(t.ColumnNames(), ", "), t.Name)
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, max(offset, 0))
	}
	rs, err := s.Query(ctx, query, 0, args...)
	if err != nil {
		return nil, fmt.Errorf("store: failed to list %s: %w", t.Short(), err)
	}
	return rs, nil
}

// InsertEntity inserts one row into an entity table. Keys of values must be
// declared columns of the table; values are converted to the column types.
func (s *Store) InsertEntity(ctx context.Context, table string, values map[string]interface{}) (int64, error) {
	t, err := publicTable(table)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, qerrors.NewValidationError(qerrors.CodeInvalidRequest, "no values supplied")
	}

	cols := make([]string, 0, len(values))
	for k := range values {
		if _, ok := t.Column(k); !ok {
			return 0, qerrors.NewValidationError(qerrors.CodeUnknownColumn,
				fmt.Sprintf("%s has no column %q", t.Short(), k))
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)

	for _, c := range t.Columns {
		if c.NotNull && values[c.Name] == nil {
			return 0, qerrors.NewValidationError(qerrors.CodeInvalidRequest,
				fmt.Sprintf("%s.%s is required", t.Short(), c.Name))
		}
	}

	args := make([]interface{}, len(cols))
	for i, name := range cols {
		col, _ := t.Column(name)
		v, err := convert(col, values[name])
		if err != nil {
			return 0, qerrors.NewValidationError(qerrors.CodeInvalidRequest, err.Error())
		}
		args[i] = v
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		t.Name, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	var id int64
	if err := s.queryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, qerrors.Wrap(qerrors.ErrCategoryValidation, qerrors.CodeInvalidRequest,
			fmt.Sprintf("failed to insert into %s", t.Short()), err)
	}
	return id, nil
}

func convert(col model.Column, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch col.Type {
	case model.Integer:
		switch x := v.(type) {
		case float64:
			if x != math.Trunc(x) {
				return nil, fmt.Errorf("%s expects an integer, got %v", col.Name, x)
			}
			return int64(x), nil
		case int:
			return int64(x), nil
		case int64:
			return x, nil
		case json.Number:
			return x.Int64()
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s expects an integer, got %q", col.Name, x)
			}
			return n, nil
		}
	case model.Real:
		switch x := v.(type) {
		case float64:
			return x, nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case json.Number:
			return x.Float64()
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil, fmt.Errorf("%s expects a number, got %q", col.Name, x)
			}
			return f, nil
		}
	case model.Text:
		switch x := v.(type) {
		case string:
			return x, nil
		case float64, int, int64, json.Number, bool:
			return fmt.Sprint(x), nil
		}
	}
	return nil, fmt.Errorf("%s: unsupported value %v", col.Name, v)
}
