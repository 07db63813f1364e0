package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbench/qbench/internal/model"
	"github.com/qbench/qbench/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), store.Options{
		Driver: store.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "qbench.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func texts(s *Summary) []string {
	out := make([]string, len(s.Messages))
	for i, m := range s.Messages {
		out[i] = m.Text
	}
	return out
}

// seedInstance creates a problem instance and returns its id.
func seedInstance(t *testing.T, st *store.Store) int64 {
	t.Helper()
	ctx := context.Background()
	pid, _, err := st.EnsureProblem(ctx, "MaxCut", nil, nil)
	require.NoError(t, err)
	gid, _, err := st.EnsureGraph(ctx, "Chimera", nil, nil)
	require.NoError(t, err)
	key := store.InstanceKey{ProblemID: pid, GraphID: gid}
	require.NoError(t, st.InsertInstance(ctx, key, nil, nil))
	id, ok, err := st.FindInstance(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	return id
}

func TestProblems_ReuploadIsIdempotent(t *testing.T) {
	st := openStore(t)
	u := New(st)
	ctx := context.Background()
	path := writeCSV(t, "Problem,Graph Size,Graph Type,url,Notes\nTSP,10.0,Random,http://x,\n")

	first, err := u.Problems(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, first.Status)
	assert.Equal(t, "Upload Summary: 1 rows read, 1 problem instances inserted, 1 new problems, 1 new graphs", first.TopMessage)
	assert.Equal(t, []Message{
		{Text: "New Problem (row 1): TSP", MessageType: MessageSuccess},
		{Text: "New Graph (row 1): Random", MessageType: MessageSuccess},
	}, first.Messages)
	assert.Equal(t, 1, first.RowsRead)

	second, err := u.Problems(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "Upload Summary: 1 rows read, 0 problem instances inserted", second.TopMessage)
	assert.Equal(t, []Message{
		{Text: "Exception (row 1): Entry already exists in Problem Instances table", MessageType: MessageException},
	}, second.Messages)

	rs, err := st.ListTable(ctx, model.ProblemInstance, 0, 0)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	// id, problem_id, graph_id, graph_size, url1, url2, notes
	assert.Equal(t, 10.0, rs.Rows[0][3])
	assert.Equal(t, "http://x", rs.Rows[0][4])
	assert.Nil(t, rs.Rows[0][6])
}

func TestProblems_NamesMatchIgnoringCase(t *testing.T) {
	st := openStore(t)
	u := New(st)
	path := writeCSV(t, "Problem,Graph Type,Graph Size\nTSP,Random,\ntsp,RANDOM,\ntsp,random,5\n")

	sum, err := u.Problems(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Upload Summary: 3 rows read, 2 problem instances inserted, 1 new problems, 1 new graphs", sum.TopMessage)
	assert.Contains(t, texts(sum), "Exception (row 2): Entry already exists in Problem Instances table")
}

func TestPerformance_NewSystem(t *testing.T) {
	st := openStore(t)
	u := New(st)
	ctx := context.Background()
	instance := seedInstance(t, st)

	path := writeCSV(t, fmt.Sprintf("Problem ID,System Name\n%d,Advantage_system4.1\n", instance))
	sum, err := u.PerformanceReports(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, "Upload Summary: 1 rows read, 1 performance reports inserted, 1 new systems", sum.TopMessage)
	assert.Equal(t, []Message{
		{Text: "New System (row 1): Advantage_system4.1", MessageType: MessageSuccess},
	}, sum.Messages)

	systemID, created, err := st.EnsureName(ctx, model.System, "Advantage_system4.1")
	require.NoError(t, err)
	assert.False(t, created)
	_, found, err := st.FindReport(ctx, store.ReportKey{ProblemID: instance, SystemID: &systemID})
	require.NoError(t, err)
	assert.True(t, found)
}

const fullHeader = "Problem ID,QUBO Variables,QUBO Quadratic Terms,System Name,Embedding Algorithm,Solver,URL,Qubits,RCS,Mean Chain Length,Max Chain Length,Number of Runs,Time Type,Time,Performance Metric,Performance Value,Notes\n"

func TestPerformance_ReuploadAttachesNothingTwice(t *testing.T) {
	st := openStore(t)
	u := New(st)
	ctx := context.Background()
	instance := seedInstance(t, st)

	path := writeCSV(t, fullHeader+fmt.Sprintf(
		"%d,100,450,Advantage,minorminer,SA,http://r,5000,,3,7,1000,TTS,1.5,Approximation Ratio,0.98,first\n", instance))

	first, err := u.PerformanceReports(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "Upload Summary: 1 rows read, 1 performance reports inserted, 1 performance values inserted, "+
		"1 time values inserted, 1 compilation steps inserted, 1 new systems, "+
		"1 new compilation (embedding) algorithms, 1 new solvers, 2 new performance metrics", first.TopMessage)
	assert.Equal(t, []string{
		"New System (row 1): Advantage",
		"New Embedding Algorithm (row 1): minorminer",
		"New Solver (row 1): SA",
		"New Time Type (Performance Metric) (row 1): TTS",
		"New Performance Metric (row 1): Approximation Ratio",
	}, texts(first))

	second, err := u.PerformanceReports(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "Upload Summary: 1 rows read, 0 performance reports inserted", second.TopMessage)
	assert.Equal(t, []string{
		"Exception (row 1): Entry already exists in Performance Report table",
		"Exception (row 1): report, embedding algorithm already in Compilation Step table",
		"Exception (row 1): report, time already in Performance Value table",
		"Exception (row 1): report, performance in Performance Value table",
	}, texts(second))
	assert.Equal(t, 4, second.Count(MessageException))

	values, err := st.ListTable(ctx, model.PerformanceValue, 0, 0)
	require.NoError(t, err)
	assert.Len(t, values.Rows, 2)
	steps, err := st.ListTable(ctx, model.CompilationStep, 0, 0)
	require.NoError(t, err)
	assert.Len(t, steps.Rows, 1)
}

func TestPerformance_NullRCSMatchesExistingReport(t *testing.T) {
	st := openStore(t)
	u := New(st)
	instance := seedInstance(t, st)

	path := writeCSV(t, fmt.Sprintf("Problem ID,RCS,Qubits\n%d,,12\n%d,,12\n%d,0.5,12\n", instance, instance, instance))
	sum, err := u.PerformanceReports(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "Upload Summary: 3 rows read, 2 performance reports inserted", sum.TopMessage)
	assert.Equal(t, []string{"Exception (row 2): Entry already exists in Performance Report table"}, texts(sum))
}

func TestPerformance_ExistingReportGainsMissingChildren(t *testing.T) {
	st := openStore(t)
	u := New(st)
	ctx := context.Background()
	instance := seedInstance(t, st)

	_, err := u.PerformanceReports(ctx, writeCSV(t, fmt.Sprintf("Problem ID,Solver\n%d,QBSolv\n", instance)))
	require.NoError(t, err)

	sum, err := u.PerformanceReports(ctx, writeCSV(t, fmt.Sprintf(
		"Problem ID,Solver,Performance Metric,Performance Value\n%d,QBSolv,Energy,-42\n", instance)))
	require.NoError(t, err)
	assert.Equal(t, "Upload Summary: 1 rows read, 0 performance reports inserted, 1 performance values inserted, 1 new performance metrics", sum.TopMessage)
	assert.Equal(t, []string{
		"New Performance Metric (row 1): Energy",
		"Exception (row 1): Entry already exists in Performance Report table",
	}, texts(sum))
}

func TestPerformance_NATokensAreNull(t *testing.T) {
	st := openStore(t)
	u := New(st)
	ctx := context.Background()
	instance := seedInstance(t, st)

	path := writeCSV(t, fmt.Sprintf("Problem ID,System Name,Solver,RCS\n%d,NA,null,NaN\n", instance))
	sum, err := u.PerformanceReports(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "Upload Summary: 1 rows read, 1 performance reports inserted", sum.TopMessage)
	assert.Empty(t, sum.Messages)

	systems, err := st.ListTable(ctx, model.System, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, systems.Rows)
}

func TestPerformance_RowErrorsDoNotStopTheBatch(t *testing.T) {
	st := openStore(t)
	u := New(st)
	instance := seedInstance(t, st)

	path := writeCSV(t, fmt.Sprintf("Problem ID,Solver\n999,Tabu\n%d,Tabu\n", instance))
	sum, err := u.PerformanceReports(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, sum.Status)
	assert.Equal(t, "Upload Summary: 2 rows read, 1 performance reports inserted, 1 new solvers", sum.TopMessage)
	require.Len(t, sum.Messages, 2)
	assert.Equal(t, "New Solver (row 1): Tabu", sum.Messages[0].Text)
	assert.True(t, strings.HasPrefix(sum.Messages[1].Text, "Insertion Error (row 1): "), sum.Messages[1].Text)
	assert.Equal(t, MessageError, sum.Messages[1].MessageType)
}

func TestPerformance_ValidationFailure(t *testing.T) {
	st := openStore(t)
	u := New(st)

	sum, err := u.PerformanceReports(context.Background(), writeCSV(t, "System Name\nAdvantage\n"))
	require.NoError(t, err)
	assert.Equal(t, StatusError, sum.Status)
	assert.Equal(t, "Uploaded file failed schema validation", sum.TopMessage)
	assert.Equal(t, []Message{{Text: "Header Error: missing required headers (Problem ID)", MessageType: MessageError}}, sum.Messages)
	assert.True(t, strings.HasPrefix(sum.Schema, "Schema: {\n    \"Problem ID\": \"int\",\n"), sum.Schema)
	assert.Contains(t, sum.Schema, `"Notes": "str (nullable)"`)
}

func TestUpload_UnreadableFile(t *testing.T) {
	u := New(openStore(t))
	sum, err := u.Upload(context.Background(), KindProblems, filepath.Join(t.TempDir(), "missing.csv"))
	require.NoError(t, err)
	assert.Equal(t, StatusError, sum.Status)
	require.Len(t, sum.Messages, 1)
	assert.True(t, strings.HasPrefix(sum.Messages[0].Text, "File Error: "))
}

func TestUpload_UnknownKind(t *testing.T) {
	u := New(openStore(t))
	_, err := u.Upload(context.Background(), "calibrations", "x.csv")
	assert.Error(t, err)
}

func TestUpload_CancelledContext(t *testing.T) {
	u := New(openStore(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := u.Problems(ctx, writeCSV(t, "Problem,Graph Type\nTSP,Random\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeRecorder struct {
	mu       sync.Mutex
	uploads  []string
	inserted map[string]int
}

func (f *fakeRecorder) ObserveUpload(kind, status string, rows int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, fmt.Sprintf("%s:%s:%d", kind, status, rows))
}

func (f *fakeRecorder) AddInserted(entity string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted[entity] += n
}

func TestUploader_RecordsMetrics(t *testing.T) {
	rec := &fakeRecorder{inserted: map[string]int{}}
	u := New(openStore(t), WithRecorder(rec))

	_, err := u.Problems(context.Background(), writeCSV(t, "Problem,Graph Type\nTSP,Random\nQAP,Random\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"problems:success:2"}, rec.uploads)
	assert.Equal(t, map[string]int{"problem_instance": 2, "problem": 2, "graph": 1}, rec.inserted)
}
