package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbench/qbench/internal/cache"
	"github.com/qbench/qbench/internal/events"
	"github.com/qbench/qbench/internal/ingest"
	"github.com/qbench/qbench/internal/observability"
	"github.com/qbench/qbench/internal/query/executor"
	"github.com/qbench/qbench/internal/storage"
	"github.com/qbench/qbench/internal/store"
)

const staffToken = "s3cret"

type fixture struct {
	store   *store.Store
	archive *storage.Archive
	stats   *observability.QueryStats
	views   *cache.ViewCache
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(context.Background(), store.Options{
		Driver: store.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "qbench.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	archive := storage.NewArchive(local, "uploads", true)
	stats := observability.NewQueryStats(0)
	metrics := observability.NewMetrics()

	notifier := events.NewNotifier(4)
	views := cache.NewViewCache(time.Minute)
	sub := notifier.Subscribe("views")
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		views.Watch(sub.Ch)
	}()
	t.Cleanup(func() {
		notifier.Unsubscribe("views")
		wg.Wait()
	})

	exec := executor.New(st, executor.Config{MaxRows: 100}, executor.WithStats(stats))
	return &fixture{
		store:   st,
		archive: archive,
		stats:   stats,
		views:   views,
		handler: NewRouter(RouterConfig{
			Store:          st,
			Uploader:       ingest.New(st),
			Executor:       exec,
			Archive:        archive,
			Stats:          stats,
			Metrics:        metrics.Handler(),
			Events:         notifier,
			ViewCache:      views,
			StaffTokens:    []string{staffToken},
			MaxUploadBytes: 1 << 20,
			LandingPath:    "/",
			MaxRows:        100,
		}),
	}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, field, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "problems.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

const problemCSV = "Problem,Graph Size,Graph Type,url,Notes\nTSP,10.0,Random,http://x,\n"

func TestUpload_RequiresStaff(t *testing.T) {
	f := newFixture(t)
	body, ct := multipartBody(t, FieldProblem, problemCSV)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/problems", body)
	req.Header.Set("Content-Type", ct)

	rec := f.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "UNAUTHORIZED", resp.Code)
	assert.NotEmpty(t, resp.RequestID)
}

func TestUpload_Problems(t *testing.T) {
	f := newFixture(t)
	body, ct := multipartBody(t, FieldProblem, problemCSV)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/problems", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+staffToken)

	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	uploadID := rec.Header().Get("X-Upload-ID")
	require.NotEmpty(t, uploadID)

	var summary ingest.Summary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	assert.Equal(t, ingest.StatusSuccess, summary.Status)
	assert.Contains(t, summary.TopMessage, "1 problem instances inserted")

	records, err := f.store.Uploads(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uploadID, records[0].UploadID)
	assert.Equal(t, ingest.KindProblems, records[0].Kind)
	assert.Equal(t, "problems.csv", records[0].Filename)
	assert.Equal(t, 1, records[0].RowsRead)
	assert.Len(t, records[0].Fingerprint, 32)
	assert.True(t, strings.HasSuffix(records[0].ArchivePath, ".csv.sz"), records[0].ArchivePath)

	archived, err := f.archive.List(context.Background(), ingest.KindProblems)
	require.NoError(t, err)
	assert.Equal(t, []string{records[0].ArchivePath}, archived)
}

func TestUpload_MissingField(t *testing.T) {
	f := newFixture(t)
	body, ct := multipartBody(t, "wrongField", problemCSV)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/problems", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-Staff-Token", staffToken)

	rec := f.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "MISSING_FILE", resp.Code)
}

func TestUpload_UnknownKind(t *testing.T) {
	f := newFixture(t)
	body, ct := multipartBody(t, FieldProblem, problemCSV)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/graphs", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-Staff-Token", staffToken)

	assert.Equal(t, http.StatusNotFound, f.do(req).Code)
}

func TestTables_CreateListAndExport(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tables/manufacturer", strings.NewReader(`{"name":"IBM"}`))
	assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/tables/manufacturer", strings.NewReader(`{"name":"IBM"}`))
	req.Header.Set("X-Staff-Token", staffToken)
	rec := f.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created CreateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, int64(1), created.ID)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/tables/manufacturer", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var rs store.ResultSet
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rs))
	assert.Equal(t, []string{"id", "name"}, rs.Columns)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, "IBM", rs.Rows[0][1])

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/tables/manufacturer?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "id,name\n1,IBM\n", rec.Body.String())
}

func TestTables_UnknownTable(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"widgets", "errorlog"} {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/tables/"+name, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, name)
	}
}

func TestTables_UnknownColumn(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tables/solver", strings.NewReader(`{"name":"x","speed":3}`))
	req.Header.Set("X-Staff-Token", staffToken)
	rec := f.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCustomize(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.InsertEntity(context.Background(), "system", map[string]interface{}{"name": "Aspen-4"})
	require.NoError(t, err)

	rec := f.do(httptest.NewRequest(http.MethodGet,
		"/api/v1/query/customize?base=system&columns=b.name&filter=b.name&filter=Asp", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result executor.CustomizeResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, []string{"name"}, result.Columns)
	assert.Equal(t, [][]interface{}{{"Aspen-4"}}, result.Rows)
	assert.Equal(t, "benchmarks_system", result.SelectedBase)

	top := f.stats.GetTopFilters(1)
	require.Len(t, top, 1)
	assert.Equal(t, "b.name", top[0].Column)
}

func TestCustomize_FailureRedirectsToLanding(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/query/customize?columns=b.password", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	entries, err := f.store.ErrorLog(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].QueryCode, "customize")
}

func TestManyTable(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/query/manytable", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result executor.ManyTableResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "SELECT benchmarks_manufacturer.name FROM benchmarks_manufacturer", result.SQL)
}

func TestViewsAndLogs(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/views", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var names map[string][]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&names))
	assert.Equal(t, store.ViewNames(), names["views"])

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/views/system", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/views/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, path := range []string{"/api/v1/errorlog", "/api/v1/uploads"} {
		rec = f.do(httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "[]\n", rec.Body.String(), path)
	}
}

func TestViews_CacheInvalidatedByWrites(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/views/system", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/views/system", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hit", rec.Header().Get("X-Cache"))
	require.Equal(t, 1, f.views.Len())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tables/system", strings.NewReader(`{"name":"Aspen-4"}`))
	req.Header.Set("X-Staff-Token", staffToken)
	require.Equal(t, http.StatusCreated, f.do(req).Code)

	assert.Eventually(t, func() bool { return f.views.Len() == 0 }, time.Second, 10*time.Millisecond)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/views/system", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.Contains(t, rec.Body.String(), "Aspen-4")
}

func TestNewRouter_PatternsDoNotConflict(t *testing.T) {
	assert.NotPanics(t, func() { NewRouter(RouterConfig{}) })

	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthIndexAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = f.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var index IndexResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&index))
	assert.Contains(t, index.Routes, "/api/v1/query/customize")
	assert.Contains(t, index.Routes, "GET /metrics")

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/nowhere", nil),
		httptest.NewRequest(http.MethodPost, "/", nil),
		httptest.NewRequest(http.MethodGet, "/api/v1/nowhere", nil),
	} {
		rec = f.do(req)
		assert.Equal(t, http.StatusNotFound, rec.Code, req.Method+" "+req.URL.Path)
		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "not found", resp.Error)
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
