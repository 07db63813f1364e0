// Package ingest turns validated CSV uploads into benchmark rows. Each file
// is validated, coerced into a staging table, and then resolved row by row
// against the store. Every row is committed on its own; a failing row is
// reported in the summary and never undoes earlier rows.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/qbench/qbench/internal/schema"
	"github.com/qbench/qbench/internal/staging"
	"github.com/qbench/qbench/internal/store"
)

// Recorder receives upload metrics.
type Recorder interface {
	ObserveUpload(kind, status string, rows int, elapsed time.Duration)
	AddInserted(entity string, n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveUpload(string, string, int, time.Duration) {}
func (nopRecorder) AddInserted(string, int)                          {}

// Repository is the part of the store an upload writes through.
// *store.Store satisfies it.
type Repository interface {
	EnsureName(ctx context.Context, table, name string) (int64, bool, error)
	EnsureProblem(ctx context.Context, name string, url, notes *string) (int64, bool, error)
	EnsureGraph(ctx context.Context, name string, url, notes *string) (int64, bool, error)

	FindInstance(ctx context.Context, key store.InstanceKey) (int64, bool, error)
	InsertInstance(ctx context.Context, key store.InstanceKey, url, notes *string) error

	FindReport(ctx context.Context, key store.ReportKey) (int64, bool, error)
	InsertReport(ctx context.Context, r store.Report) error
	CompilationStepExists(ctx context.Context, algorithmID, reportID int64) (bool, error)
	InsertCompilationStep(ctx context.Context, algorithmID, reportID int64) error
	PerformanceValueExists(ctx context.Context, metricID int64, value *float64, reportID int64) (bool, error)
	InsertPerformanceValue(ctx context.Context, metricID int64, value *float64, reportID int64) error
}

var _ Repository = (*store.Store)(nil)

// Uploader processes upload files against a store.
type Uploader struct {
	store      Repository
	stagingDSN string
	logger     *zap.Logger
	recorder   Recorder
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithStagingDSN sets the modernc sqlite DSN used for staging tables.
func WithStagingDSN(dsn string) Option {
	return func(u *Uploader) { u.stagingDSN = dsn }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(u *Uploader) { u.logger = logger }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(u *Uploader) { u.recorder = r }
}

// New creates an Uploader.
func New(st Repository, opts ...Option) *Uploader {
	u := &Uploader{
		store:    st,
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload dispatches to the handler for kind.
func (u *Uploader) Upload(ctx context.Context, kind, path string) (*Summary, error) {
	switch kind {
	case KindPerformance:
		return u.PerformanceReports(ctx, path)
	case KindProblems:
		return u.Problems(ctx, path)
	default:
		return nil, fmt.Errorf("ingest: unknown upload kind %q", kind)
	}
}

type rowFunc func(ctx context.Context, row staging.Row, sum *Summary, c *counts) error

// run validates, stages and processes a file. The returned error is
// reserved for failures that prevent producing a summary at all.
func (u *Uploader) run(ctx context.Context, kind, path string, declared schema.Schema, process rowFunc, top func(rows int, c *counts) string) (*Summary, error) {
	start := time.Now()
	logger := u.logger.With(zap.String("kind", kind), zap.String("file", path))

	problems, err := schema.ValidateFile(path, declared)
	if err != nil {
		logger.Warn("Upload unreadable", zap.Error(err))
		u.recorder.ObserveUpload(kind, StatusError, 0, time.Since(start))
		return unreadable(err), nil
	}
	if len(problems) > 0 {
		logger.Info("Upload failed validation", zap.Int("problems", len(problems)))
		u.recorder.ObserveUpload(kind, StatusError, 0, time.Since(start))
		return validationFailed(problems, declared), nil
	}

	sum := newSummary()
	tbl, rowsRead, err := u.stage(ctx, path, declared, sum)
	if err != nil {
		return nil, err
	}
	defer tbl.Close()
	sum.RowsRead = rowsRead

	rows, err := tbl.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	c := &counts{}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := process(ctx, row, sum, c); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			sum.failure("Insertion Error (row %d): %v", row.Num, err)
		}
	}
	sum.TopMessage = top(rowsRead, c)

	c.record(u.recorder)
	u.recorder.ObserveUpload(kind, sum.Status, rowsRead, time.Since(start))
	logger.Info("Upload processed",
		zap.Int("rows", rowsRead),
		zap.Int("errors", sum.Count(MessageError)),
		zap.Int("exceptions", sum.Count(MessageException)),
		zap.Duration("elapsed", time.Since(start)))
	return sum, nil
}

// stage reads the data rows of path into a fresh staging table. Rows that
// cannot be coerced are reported and skipped.
func (u *Uploader) stage(ctx context.Context, path string, declared schema.Schema, sum *Summary) (*staging.Table, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("ingest: failed to open %s: %w", path, err)
	}
	defer f.Close()

	cr := schema.NewReader(f)
	header, err := schema.ReadHeader(cr)
	if err != nil {
		return nil, 0, fmt.Errorf("ingest: failed to read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	tbl, err := staging.Open(ctx, u.stagingDSN, declared)
	if err != nil {
		return nil, 0, fmt.Errorf("ingest: %w", err)
	}

	rownum := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			tbl.Close()
			return nil, 0, fmt.Errorf("ingest: failed to read row %d: %w", rownum+1, err)
		}
		rownum++

		values, err := coerceRecord(declared, index, rec)
		if err == nil {
			err = tbl.Insert(ctx, rownum, values)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				tbl.Close()
				return nil, 0, ctxErr
			}
			sum.failure("Temporary Table Insertion Error (row %d): %v", rownum, err)
		}
	}
	return tbl, rownum, nil
}
