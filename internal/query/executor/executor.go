// Package executor runs query-builder plans against the store. Every failed
// selection or statement is appended to the error log.
package executor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	qerrors "github.com/qbench/qbench/internal/errors"
	"github.com/qbench/qbench/internal/observability"
	"github.com/qbench/qbench/internal/query/aggregator"
	"github.com/qbench/qbench/internal/query/planner"
	"github.com/qbench/qbench/internal/store"
)

const (
	builderCustomize = "customize"
	builderManyTable = "manytable"
)

// Observer receives query-builder metrics.
type Observer interface {
	ObserveQuery(builder, outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveQuery(string, string, time.Duration) {}

// Config holds executor settings.
type Config struct {
	// ChosenMetric is surfaced as temp_metric.chosen.
	ChosenMetric string
	// MaxRows truncates results; 0 means unlimited.
	MaxRows int
	// Timeout bounds one query; 0 means no timeout.
	Timeout time.Duration
}

// Executor runs customize and manytable queries.
type Executor struct {
	store    *store.Store
	graph    *planner.Graph
	cfg      Config
	stats    *observability.QueryStats
	observer Observer
	logger   *zap.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithStats records filter and join usage.
func WithStats(s *observability.QueryStats) Option {
	return func(e *Executor) { e.stats = s }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// New creates an executor over st.
func New(st *store.Store, cfg Config, opts ...Option) *Executor {
	e := &Executor{
		store:    st,
		graph:    planner.NewGraph(),
		cfg:      cfg,
		observer: nopObserver{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CustomizeResult is a successful customize query.
type CustomizeResult struct {
	SQL             string           `json:"sql"`
	Args            []interface{}    `json:"args"`
	Columns         []string         `json:"columns"`
	Rows            [][]interface{}  `json:"rows"`
	Truncated       bool             `json:"truncated,omitempty"`
	SelectedBase    string           `json:"selected_base"`
	SelectedJoins   []string         `json:"selected_joins"`
	SelectedColumns []string         `json:"selected_columns"`
	SelectedFilters []planner.Filter `json:"selected_filters"`
}

// ManyTableResult is a successful manytable query.
type ManyTableResult struct {
	SQL             string           `json:"sql"`
	Args            []interface{}    `json:"args"`
	Columns         []string         `json:"columns"`
	Rows            [][]interface{}  `json:"rows"`
	Truncated       bool             `json:"truncated,omitempty"`
	SelectedTables  []string         `json:"selected_tables"`
	SelectedColumns []string         `json:"selected_columns"`
	SelectedFilters []planner.Filter `json:"selected_filters"`
	ColName         []string         `json:"colname"`
	Combined        []planner.Group  `json:"combined"`
}

// Customize plans and runs a customize query.
func (e *Executor) Customize(ctx context.Context, req planner.CustomizeRequest) (*CustomizeResult, error) {
	start := time.Now()
	plan, err := planner.Customize(req)
	if err != nil {
		return nil, e.fail(ctx, builderCustomize, req.String(), err, start)
	}
	e.recordUsage(builderCustomize, plan.Filters, joinTables(plan.Joins))

	qctx, cancel := e.withTimeout(ctx)
	defer cancel()
	rs, err := e.store.Query(qctx, plan.SQL, e.cfg.MaxRows, plan.Args...)
	if err != nil {
		return nil, e.fail(ctx, builderCustomize, plan.SQL, executionError(qctx, err), start)
	}

	e.observer.ObserveQuery(builderCustomize, "ok", time.Since(start))
	return &CustomizeResult{
		SQL:             plan.SQL,
		Args:            nonNil(plan.Args),
		Columns:         rs.Columns,
		Rows:            rs.Rows,
		Truncated:       rs.Truncated,
		SelectedBase:    plan.Base.Table(),
		SelectedJoins:   joinTables(plan.Joins),
		SelectedColumns: plan.Columns,
		SelectedFilters: plan.Filters,
	}, nil
}

// ManyTable plans and runs a manytable query. The temp_metric aggregate is
// built on a pinned connection and dropped before the connection is
// released.
func (e *Executor) ManyTable(ctx context.Context, req planner.ManyTableRequest) (*ManyTableResult, error) {
	start := time.Now()
	plan, err := planner.ManyTable(req, e.graph)
	if err != nil {
		return nil, e.fail(ctx, builderManyTable, req.String(), err, start)
	}
	var joined []string
	if plan.Connection != nil {
		joined = plan.Connection.Tables()
	}
	e.recordUsage(builderManyTable, plan.Filters, joined)

	qctx, cancel := e.withTimeout(ctx)
	defer cancel()
	rs, err := e.runManyTable(qctx, plan)
	if err != nil {
		return nil, e.fail(ctx, builderManyTable, plan.SQL, executionError(qctx, err), start)
	}

	e.observer.ObserveQuery(builderManyTable, "ok", time.Since(start))
	return &ManyTableResult{
		SQL:             plan.SQL,
		Args:            nonNil(plan.Args),
		Columns:         rs.Columns,
		Rows:            rs.Rows,
		Truncated:       rs.Truncated,
		SelectedTables:  plan.Tables,
		SelectedColumns: plan.Columns,
		SelectedFilters: plan.Filters,
		ColName:         plan.ColName,
		Combined:        plan.Groups,
	}, nil
}

func (e *Executor) runManyTable(ctx context.Context, plan *planner.ManyTablePlan) (*store.ResultSet, error) {
	if !plan.TempMetric {
		return e.store.Query(ctx, plan.SQL, e.cfg.MaxRows, plan.Args...)
	}

	conn, err := e.store.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	tm, err := aggregator.CreateTempMetric(ctx, conn, e.store.Dialect(), e.cfg.ChosenMetric)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := tm.Drop(context.WithoutCancel(ctx)); err != nil {
			e.logger.Warn("Failed to drop temp_metric", zap.Error(err))
		}
	}()

	return store.QueryOn(ctx, conn, e.store.Dialect(), plan.SQL, e.cfg.MaxRows, plan.Args...)
}

func (e *Executor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, e.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// fail appends the error log entry and returns err. A failure to write the
// log is only logged.
func (e *Executor) fail(ctx context.Context, builder, queryCode string, err error, start time.Time) error {
	e.observer.ObserveQuery(builder, "error", time.Since(start))
	e.logger.Info("Query failed",
		zap.String("builder", builder),
		zap.String("querycode", queryCode),
		zap.Error(err))
	if logErr := e.store.AppendErrorLog(context.WithoutCancel(ctx), err.Error(), queryCode); logErr != nil {
		e.logger.Error("Failed to append error log", zap.Error(logErr))
	}
	return err
}

func (e *Executor) recordUsage(builder string, filters []planner.Filter, tables []string) {
	if e.stats == nil {
		return
	}
	for _, f := range filters {
		e.stats.RecordFilter(f.Field, builder)
	}
	for _, t := range tables {
		e.stats.RecordJoin(t, builder)
	}
}

func executionError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return qerrors.NewQueryError(qerrors.CodeExecutionTimeout, "query timed out", err)
	}
	return qerrors.NewQueryError(qerrors.CodeExecutionFailed, "query failed", err)
}

func joinTables(joins []planner.Join) []string {
	out := make([]string, len(joins))
	for i, j := range joins {
		out[i] = j.Table
	}
	return out
}

func nonNil(args []interface{}) []interface{} {
	if args == nil {
		return []interface{}{}
	}
	return args
}
