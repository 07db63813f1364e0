package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/qbench/qbench/internal/cache"
	"github.com/qbench/qbench/internal/events"
	"github.com/qbench/qbench/internal/ingest"
	"github.com/qbench/qbench/internal/observability"
	"github.com/qbench/qbench/internal/query/executor"
	"github.com/qbench/qbench/internal/storage"
	"github.com/qbench/qbench/internal/store"
)

// RouterConfig holds the dependencies of the HTTP API. Uploader and
// Executor may be nil, which leaves their routes unregistered.
type RouterConfig struct {
	Store    *store.Store
	Uploader *ingest.Uploader
	Executor *executor.Executor
	Archive  *storage.Archive
	Stats    *observability.QueryStats
	Metrics  http.Handler
	Logger   *zap.Logger

	// Events receives upload and entity writes; ViewCache serves views.
	// Either may be nil.
	Events    *events.Notifier
	ViewCache *cache.ViewCache

	StaffTokens    []string
	MaxUploadBytes int64
	LandingPath    string
	MaxRows        int
}

// NewRouter registers every API route on a new mux.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	middleware := DefaultMiddleware(logger)
	staff := StaffOnly(cfg.StaffTokens)

	mux := http.NewServeMux()
	var routes []string
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, middleware(h))
		routes = append(routes, pattern)
	}

	if cfg.Uploader != nil {
		handle("POST /api/v1/uploads/{kind}",
			staff(NewUploadHandler(cfg.Uploader, cfg.Store, cfg.Archive, cfg.MaxUploadBytes, logger).WithNotifier(cfg.Events)))
	}
	if cfg.Executor != nil {
		handle("/api/v1/query/customize", NewCustomizeHandler(cfg.Executor, cfg.LandingPath))
		handle("/api/v1/query/manytable", NewManyTableHandler(cfg.Executor, cfg.LandingPath))
	}
	if cfg.Stats != nil {
		handle("GET /api/v1/stats", NewStatsHandler(cfg.Stats))
	}

	views := NewViewHandler(cfg.Store, cfg.ViewCache, cfg.MaxRows)
	handle("GET /api/v1/views", views)
	handle("GET /api/v1/views/{name}", views)

	tables := NewTableHandler(cfg.Store, cfg.Events, cfg.StaffTokens)
	handle("GET /api/v1/tables", tables)
	handle("/api/v1/tables/{table}", tables)

	handle("GET /api/v1/errorlog", NewErrorLogHandler(cfg.Store))
	handle("GET /api/v1/uploads", NewUploadsHandler(cfg.Store))
	handle("GET /health", NewHealthHandler(cfg.Store))
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
		routes = append(routes, "GET /metrics")
	}

	// "/{$}" matches only the root; the method-less "/" catches every
	// other unmatched path.
	mux.Handle("GET /{$}", middleware(NewIndexHandler(routes)))
	mux.Handle("/", middleware(http.HandlerFunc(notFound)))
	return mux
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "", "not found", GetRequestID(r.Context()))
}
