// Package app provides the application lifecycle for the qbench server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	grpcapi "github.com/qbench/qbench/internal/api/grpc"
	httpapi "github.com/qbench/qbench/internal/api/http"
	"github.com/qbench/qbench/internal/cache"
	"github.com/qbench/qbench/internal/config"
	"github.com/qbench/qbench/internal/events"
	"github.com/qbench/qbench/internal/ingest"
	"github.com/qbench/qbench/internal/observability"
	"github.com/qbench/qbench/internal/query/executor"
	"github.com/qbench/qbench/internal/server"
	"github.com/qbench/qbench/internal/storage"
	"github.com/qbench/qbench/internal/store"
)

// App manages the qbench service lifecycle.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	// Shared resources
	store    *store.Store
	archive  *storage.Archive
	metrics  *observability.Metrics
	stats    *observability.QueryStats
	shutdown *server.ShutdownManager
	notifier *events.Notifier
	views    *cache.ViewCache

	uploader *ingest.Uploader
	executor *executor.Executor

	httpServer   *server.GracefulHTTPServer
	httpListener net.Listener
	grpcServer   *grpc.Server
	grpcListener net.Listener

	// Lifecycle
	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// New validates cfg and creates an App.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// Start initializes shared resources and starts the configured servers.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	a.shutdown = server.NewShutdownManager(server.DefaultShutdownConfig(), a.logger)

	if err := a.initSharedResources(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to initialize shared resources: %w", err)
	}
	if err := a.startHTTP(); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if a.cfg.GRPC.Enabled && a.cfg.ShouldRunQuery() {
		if err := a.startGRPC(); err != nil {
			a.cleanup()
			return fmt.Errorf("failed to start gRPC server: %w", err)
		}
	}

	a.logger.Info("qbench started",
		zap.String("mode", string(a.cfg.Mode)),
		zap.String("driver", a.store.Driver()))
	return nil
}

// initSharedResources opens the database and the archive and builds the
// upload and query services on top of them.
func (a *App) initSharedResources(ctx context.Context) error {
	st, err := store.Open(ctx, store.Options{
		Driver:       a.cfg.Database.Driver,
		DSN:          a.cfg.Database.DSN,
		Path:         a.cfg.Database.Path,
		MaxOpenConns: a.cfg.Database.MaxOpenConns,
		ChosenMetric: a.cfg.Query.ChosenMetric,
	})
	if err != nil {
		return err
	}
	a.store = st
	a.shutdown.RegisterCloser("store", st)

	if a.cfg.Archive.Enabled {
		a.archive, err = storage.OpenArchive(ctx, a.cfg.Archive)
		if err != nil {
			return err
		}
		a.logger.Info("Archiving uploads",
			zap.String("type", a.cfg.Archive.Type),
			zap.String("prefix", a.cfg.Archive.Prefix))
	}

	a.metrics = observability.NewMetrics()
	a.stats = observability.NewQueryStats(0)

	a.notifier = events.NewNotifier(16)
	if ttl := a.cfg.Query.ViewCacheTTL; ttl > 0 {
		a.views = cache.NewViewCache(ttl)
		sub := a.notifier.Subscribe("view-cache")
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.views.Watch(sub.Ch)
		}()
		a.shutdown.RegisterCloser("view-cache", server.CloserFunc(func() error {
			a.notifier.Unsubscribe(sub.ID)
			return nil
		}))
	}

	if a.cfg.ShouldRunUpload() {
		a.uploader = ingest.New(st,
			ingest.WithStagingDSN(a.cfg.Staging.DSN),
			ingest.WithLogger(a.logger.Named("ingest")),
			ingest.WithRecorder(a.metrics))
	}
	if a.cfg.ShouldRunQuery() {
		a.executor = executor.New(st, executor.Config{
			ChosenMetric: a.cfg.Query.ChosenMetric,
			MaxRows:      a.cfg.Query.MaxRows,
			Timeout:      a.cfg.Query.Timeout,
		},
			executor.WithLogger(a.logger.Named("query")),
			executor.WithStats(a.stats),
			executor.WithObserver(a.metrics))
	}
	return nil
}

func (a *App) startHTTP() error {
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Store:          a.store,
		Uploader:       a.uploader,
		Executor:       a.executor,
		Archive:        a.archive,
		Stats:          a.stats,
		Metrics:        a.metrics.Handler(),
		Events:         a.notifier,
		ViewCache:      a.views,
		Logger:         a.logger.Named("http"),
		StaffTokens:    a.cfg.Auth.StaffTokens,
		MaxUploadBytes: a.cfg.HTTP.MaxUploadBytes,
		LandingPath:    a.cfg.HTTP.LandingPath,
		MaxRows:        a.cfg.Query.MaxRows,
	})

	ln, err := net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.HTTP.Addr, err)
	}
	a.httpListener = ln
	a.httpServer = server.NewGracefulHTTPServer(&http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      server.ShutdownMiddleware(a.shutdown)(router),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}, a.shutdown)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
		if err := a.httpServer.Serve(ln); err != nil {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

func (a *App) startGRPC() error {
	ln, err := net.Listen("tcp", a.cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC address: %w", err)
	}
	a.grpcListener = ln
	a.grpcServer = grpc.NewServer(grpc.UnaryInterceptor(grpcapi.LoggingInterceptor(a.logger.Named("grpc"))))
	grpcapi.Register(a.grpcServer, grpcapi.NewQueryServer(a.executor, a.store, a.logger.Named("grpc")))

	a.shutdown.RegisterCloser("grpc", server.CloserFunc(func() error {
		a.grpcServer.GracefulStop()
		return nil
	}))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("gRPC server listening", zap.String("addr", ln.Addr().String()))
		if err := a.grpcServer.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			a.logger.Error("gRPC server error", zap.Error(err))
		}
	}()
	return nil
}

// HTTPAddr returns the address the HTTP server listens on.
func (a *App) HTTPAddr() string {
	if a.httpListener == nil {
		return ""
	}
	return a.httpListener.Addr().String()
}

// GRPCAddr returns the address the gRPC server listens on.
func (a *App) GRPCAddr() string {
	if a.grpcListener == nil {
		return ""
	}
	return a.grpcListener.Addr().String()
}

// Stop gracefully stops the servers and releases resources.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	err := a.shutdown.Shutdown(ctx, "stop requested")
	a.wg.Wait()
	a.logger.Info("qbench stopped")
	return err
}

// cleanup releases resources after a failed start.
func (a *App) cleanup() {
	if a.shutdown != nil {
		a.shutdown.Shutdown(context.Background(), "start failed")
	}
	a.wg.Wait()
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}

// WaitForShutdown blocks until a signal arrives or ctx is done, then shuts
// down.
func (a *App) WaitForShutdown(ctx context.Context) error {
	err := a.shutdown.ListenForSignals(ctx)
	a.wg.Wait()
	return err
}
