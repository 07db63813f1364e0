package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/qbench/qbench/internal/cache"
	qerrors "github.com/qbench/qbench/internal/errors"
	"github.com/qbench/qbench/internal/events"
	"github.com/qbench/qbench/internal/model"
	"github.com/qbench/qbench/internal/observability"
	"github.com/qbench/qbench/internal/store"
)

// intParam reads a non-negative integer query parameter.
func intParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return def
	}
	return v
}

// wantsCSV reports whether the caller asked for CSV through ?format=csv or
// the Accept header.
func wantsCSV(r *http.Request) bool {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		return strings.Contains(r.Header.Get("Accept"), "text/csv")
	}
	return format == "csv"
}

func writeResult(w http.ResponseWriter, r *http.Request, name string, rs *store.ResultSet) {
	if !wantsCSV(r) {
		writeJSON(w, http.StatusOK, rs)
		return
	}
	filename := fmt.Sprintf("%s-%s.csv", name, time.Now().UTC().Format("20060102T150405Z"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	rs.WriteCSV(w)
}

// ViewHandler handles GET /api/v1/views/{name}.
type ViewHandler struct {
	store   *store.Store
	cache   *cache.ViewCache
	maxRows int
}

// NewViewHandler creates a view handler. views may be nil, which disables
// caching.
func NewViewHandler(st *store.Store, views *cache.ViewCache, maxRows int) *ViewHandler {
	return &ViewHandler{store: st, cache: views, maxRows: maxRows}
}

// ServeHTTP handles the view HTTP request.
func (h *ViewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeJSON(w, http.StatusOK, map[string][]string{"views": store.ViewNames()})
		return
	}
	load := func() (*store.ResultSet, error) {
		return h.store.View(r.Context(), name, h.maxRows)
	}
	var (
		rs  *store.ResultSet
		err error
	)
	if h.cache != nil {
		var hit bool
		rs, hit, err = h.cache.Load(name, load)
		if hit {
			w.Header().Set("X-Cache", "hit")
		}
	} else {
		rs, err = load()
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeResult(w, r, name, rs)
}

// TableHandler handles GET and POST /api/v1/tables/{table}. Listing is
// public; registering a row requires staff credentials.
type TableHandler struct {
	store       *store.Store
	notifier    *events.Notifier
	staffTokens []string
}

// NewTableHandler creates a table handler. notifier may be nil.
func NewTableHandler(st *store.Store, notifier *events.Notifier, staffTokens []string) *TableHandler {
	return &TableHandler{store: st, notifier: notifier, staffTokens: staffTokens}
}

// ServeHTTP handles the table HTTP request.
func (h *TableHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	switch r.Method {
	case http.MethodGet:
		if table == "" {
			writeJSON(w, http.StatusOK, map[string][]string{"tables": publicTables()})
			return
		}
		rs, err := h.store.ListTable(r.Context(), table, intParam(r, "limit", 0), intParam(r, "offset", 0))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeResult(w, r, table, rs)
	case http.MethodPost:
		StaffOnly(h.staffTokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.create(w, r, table)
		})).ServeHTTP(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, qerrors.CodeInvalidRequest, "method not allowed", GetRequestID(r.Context()))
	}
}

// CreateResponse is returned after registering a row.
type CreateResponse struct {
	Table string `json:"table"`
	ID    int64  `json:"id"`
}

func (h *TableHandler) create(w http.ResponseWriter, r *http.Request, table string) {
	var values map[string]interface{}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		writeErr(w, r, qerrors.NewValidationError(qerrors.CodeInvalidRequest,
			fmt.Sprintf("invalid request body: %v", err)))
		return
	}
	id, err := h.store.InsertEntity(r.Context(), table, values)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if h.notifier != nil {
		if t, ok := model.Lookup(table); ok {
			table = t.Name
		}
		h.notifier.Publish(events.Event{Type: events.EntityCreated, Subject: table})
	}
	writeJSON(w, http.StatusCreated, CreateResponse{Table: table, ID: id})
}

func publicTables() []string {
	var names []string
	for _, t := range model.Public() {
		names = append(names, t.Short())
	}
	return names
}

// ErrorLogHandler handles GET /api/v1/errorlog.
type ErrorLogHandler struct {
	store *store.Store
}

// NewErrorLogHandler creates an error log handler.
func NewErrorLogHandler(st *store.Store) *ErrorLogHandler {
	return &ErrorLogHandler{store: st}
}

// ServeHTTP handles the error log HTTP request.
func (h *ErrorLogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ErrorLog(r.Context(), intParam(r, "limit", 100))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if entries == nil {
		entries = []store.ErrorLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// UploadsHandler handles GET /api/v1/uploads.
type UploadsHandler struct {
	store *store.Store
}

// NewUploadsHandler creates an upload log handler.
func NewUploadsHandler(st *store.Store) *UploadsHandler {
	return &UploadsHandler{store: st}
}

// ServeHTTP handles the upload log HTTP request.
func (h *UploadsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.Uploads(r.Context(), intParam(r, "limit", 100))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if records == nil {
		records = []store.UploadRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// StatsResponse lists the most used filter fields and join tables.
type StatsResponse struct {
	Filters []observability.ColumnStats `json:"filters"`
	Joins   []observability.ColumnStats `json:"joins"`
}

// StatsHandler handles GET /api/v1/stats.
type StatsHandler struct {
	stats *observability.QueryStats
}

// NewStatsHandler creates a query usage handler.
func NewStatsHandler(stats *observability.QueryStats) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// ServeHTTP handles the stats HTTP request.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := intParam(r, "top", 10)
	writeJSON(w, http.StatusOK, StatsResponse{
		Filters: h.stats.GetTopFilters(n),
		Joins:   h.stats.GetTopJoins(n),
	})
}

// HealthHandler handles GET /health.
type HealthHandler struct {
	store *store.Store
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(st *store.Store) *HealthHandler {
	return &HealthHandler{store: st}
}

// ServeHTTP handles the health HTTP request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// IndexResponse is the landing page body.
type IndexResponse struct {
	Service string   `json:"service"`
	Routes  []string `json:"routes"`
}

// IndexHandler handles GET /. Failed queries redirect here.
type IndexHandler struct {
	routes []string
}

// NewIndexHandler creates the landing page handler.
func NewIndexHandler(routes []string) *IndexHandler {
	return &IndexHandler{routes: routes}
}

// ServeHTTP handles the landing page request.
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "", "not found", GetRequestID(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, IndexResponse{
		Service: "qbench quantum benchmark database",
		Routes:  h.routes,
	})
}
