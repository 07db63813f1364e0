package aggregator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbench/qbench/internal/model"
	"github.com/qbench/qbench/internal/store"
)

func f64(v float64) *float64 { return &v }

func seedReport(t *testing.T, s *store.Store) int64 {
	t.Helper()
	ctx := context.Background()
	pid, _, err := s.EnsureProblem(ctx, "TSP", nil, nil)
	require.NoError(t, err)
	gid, _, err := s.EnsureGraph(ctx, "Random", nil, nil)
	require.NoError(t, err)
	ik := store.InstanceKey{ProblemID: pid, GraphID: gid}
	require.NoError(t, s.InsertInstance(ctx, ik, nil, nil))
	inst, _, err := s.FindInstance(ctx, ik)
	require.NoError(t, err)

	key := store.ReportKey{ProblemID: inst}
	require.NoError(t, s.InsertReport(ctx, store.Report{ReportKey: key}))
	rid, ok, err := s.FindReport(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	return rid
}

func TestTempMetric(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, store.Options{Driver: store.DriverSQLite, Path: filepath.Join(t.TempDir(), "q.db")})
	require.NoError(t, err)
	defer s.Close()

	rid := seedReport(t, s)
	ratio, _, err := s.EnsureName(ctx, model.PerformanceMetric, "Modularity Ratio (current/Best)")
	require.NoError(t, err)
	tts, _, err := s.EnsureName(ctx, model.PerformanceMetric, "TTS")
	require.NoError(t, err)
	require.NoError(t, s.InsertPerformanceValue(ctx, ratio, f64(0.5), rid))
	require.NoError(t, s.InsertPerformanceValue(ctx, tts, f64(12.5), rid))

	conn, err := s.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	tm, err := CreateTempMetric(ctx, conn, s.Dialect(), "Modularity Ratio (current/Best)")
	require.NoError(t, err)

	rs, err := store.QueryOn(ctx, conn, s.Dialect(), "SELECT performance_report_id, combined, chosen FROM temp_metric", 0)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	row := rs.Rows[0]
	assert.Equal(t, rid, row[0])
	assert.Contains(t, row[1], "0.5 Modularity Ratio (current/Best)")
	assert.Contains(t, row[1], "12.5 TTS")
	assert.Equal(t, 0.5, row[2])

	// Rebuilding replaces the previous table.
	tm, err = CreateTempMetric(ctx, conn, s.Dialect(), "TTS")
	require.NoError(t, err)
	rs, err = store.QueryOn(ctx, conn, s.Dialect(), "SELECT chosen FROM temp_metric", 0)
	require.NoError(t, err)
	assert.Equal(t, 12.5, rs.Rows[0][0])

	require.NoError(t, tm.Drop(ctx))
	_, err = store.QueryOn(ctx, conn, s.Dialect(), "SELECT 1 FROM temp_metric", 0)
	assert.Error(t, err)
	assert.NoError(t, tm.Drop(ctx))
}

func TestTempMetric_UnknownChosenIsNull(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, store.Options{Driver: store.DriverSQLite, Path: filepath.Join(t.TempDir(), "q.db")})
	require.NoError(t, err)
	defer s.Close()

	rid := seedReport(t, s)
	tts, _, err := s.EnsureName(ctx, model.PerformanceMetric, "TTS")
	require.NoError(t, err)
	require.NoError(t, s.InsertPerformanceValue(ctx, tts, nil, rid))

	conn, err := s.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	tm, err := CreateTempMetric(ctx, conn, s.Dialect(), "Modularity Ratio (current/Best)")
	require.NoError(t, err)
	defer tm.Drop(ctx)

	rs, err := store.QueryOn(ctx, conn, s.Dialect(), "SELECT chosen FROM temp_metric", 0)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Nil(t, rs.Rows[0][0])
}
