package staging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbench/qbench/internal/schema"
)

var testSchema = schema.Schema{
	{Name: "Problem ID", Type: schema.Int},
	{Name: "RCS", Type: schema.Float, Nullable: true},
	{Name: "Solver", Type: schema.Str, Nullable: true},
}

func TestTable_InsertAndRows(t *testing.T) {
	ctx := context.Background()
	tbl, err := Open(ctx, "", testSchema)
	require.NoError(t, err)
	defer tbl.Close()

	require.NoError(t, tbl.Insert(ctx, 2, []interface{}{int64(7), nil, "Tabu"}))
	require.NoError(t, tbl.Insert(ctx, 1, []interface{}{int64(3), 0.25, nil}))

	n, err := tbl.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := tbl.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, 1, first.Num)
	require.NotNil(t, first.Int("Problem ID"))
	assert.Equal(t, int64(3), *first.Int("Problem ID"))
	require.NotNil(t, first.Float("RCS"))
	assert.Equal(t, 0.25, *first.Float("RCS"))
	assert.Nil(t, first.String("Solver"))

	second := rows[1]
	assert.Equal(t, 2, second.Num)
	assert.Nil(t, second.Float("RCS"))
	require.NotNil(t, second.String("Solver"))
	assert.Equal(t, "Tabu", *second.String("Solver"))
	assert.Nil(t, second.String("Not A Column"))
}

func TestTable_DuplicateRownumFails(t *testing.T) {
	ctx := context.Background()
	tbl, err := Open(ctx, "", testSchema)
	require.NoError(t, err)
	defer tbl.Close()

	require.NoError(t, tbl.Insert(ctx, 1, []interface{}{int64(1), nil, nil}))
	assert.Error(t, tbl.Insert(ctx, 1, []interface{}{int64(2), nil, nil}))
}

func TestTable_WrongArity(t *testing.T) {
	ctx := context.Background()
	tbl, err := Open(ctx, "", testSchema)
	require.NoError(t, err)
	defer tbl.Close()

	assert.Error(t, tbl.Insert(ctx, 1, []interface{}{int64(1)}))
}

func TestTables_AreIsolated(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, "", testSchema)
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(ctx, "", testSchema)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Insert(ctx, 1, []interface{}{int64(1), nil, nil}))
	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
