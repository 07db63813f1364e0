package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/qbench/qbench/internal/model"
	"github.com/qbench/qbench/internal/staging"
	"github.com/qbench/qbench/internal/store"
)

// PerformanceReports processes a performance report upload.
func (u *Uploader) PerformanceReports(ctx context.Context, path string) (*Summary, error) {
	return u.run(ctx, KindPerformance, path, PerformanceReportSchema, u.performanceRow, performanceTop)
}

func performanceTop(rows int, c *counts) string {
	t := &tally{}
	t.optional(c.performanceValues, "performance values inserted")
	t.optional(c.timeValues, "time values inserted")
	t.optional(c.compilationSteps, "compilation steps inserted")
	t.optional(c.systems, "new systems")
	t.optional(c.algorithms, "new compilation (embedding) algorithms")
	t.optional(c.solvers, "new solvers")
	t.optional(c.metrics, "new performance metrics")
	return fmt.Sprintf("Upload Summary: %d rows read, %d performance reports inserted%s", rows, c.reports, t)
}

// dimension is a name column resolved to a catalog id.
type dimension struct {
	label   string // used in messages
	table   string
	column  string
	counter *int
	id      **int64
}

// errRowSkipped stops a row after its message has been recorded.
var errRowSkipped = errors.New("row skipped")

// resolve looks up or creates each named dimension in order. A dimension
// without a name leaves its id nil.
func (u *Uploader) resolve(ctx context.Context, row staging.Row, sum *Summary, dims []dimension) error {
	for _, d := range dims {
		name := row.String(d.column)
		if name == nil {
			continue
		}
		id, created, err := u.store.EnsureName(ctx, d.table, *name)
		if errors.Is(err, store.ErrNotFoundAfterInsert) {
			sum.failure("Insertion Error (row %d): %s %s was not found after insertion.", row.Num, d.label, *name)
			return errRowSkipped
		}
		if err != nil {
			return err
		}
		if created {
			sum.success("New %s (row %d): %s", d.label, row.Num, *name)
			*d.counter++
		}
		resolved := id
		*d.id = &resolved
	}
	return nil
}

func (u *Uploader) performanceRow(ctx context.Context, row staging.Row, sum *Summary, c *counts) error {
	var systemID, algorithmID, solverID, timeID, metricID *int64
	dims := []dimension{
		{"System", model.System, colSystemName, &c.systems, &systemID},
		{"Embedding Algorithm", model.CompilationAlgorithm, colEmbedding, &c.algorithms, &algorithmID},
		{"Solver", model.Solver, colSolver, &c.solvers, &solverID},
		{"Time Type (Performance Metric)", model.PerformanceMetric, colTimeType, &c.metrics, &timeID},
		{"Performance Metric", model.PerformanceMetric, colPerformanceMetric, &c.metrics, &metricID},
	}
	if err := u.resolve(ctx, row, sum, dims); err != nil {
		if errors.Is(err, errRowSkipped) {
			return nil
		}
		return err
	}

	problemID := row.Int(colProblemID)
	if problemID == nil {
		return fmt.Errorf("%s is missing", colProblemID)
	}
	key := store.ReportKey{
		ProblemID:         *problemID,
		QuboVarCount:      row.Int(colQuboVariables),
		QuboQuadTermCount: row.Int(colQuboQuadratic),
		SystemID:          systemID,
		SolverID:          solverID,
		QubitCount:        row.Int(colQubits),
		RCS:               row.Float(colRCS),
		MeanChainLength:   row.Int(colMeanChainLength),
		MaxChainLength:    row.Int(colMaxChainLength),
		NumRuns:           row.Int(colNumberOfRuns),
	}
	timeValue := row.Float(colTime)
	metricValue := row.Float(colPerformanceValue)

	var insertStep, insertTime, insertMetric bool
	reportID, found, err := u.store.FindReport(ctx, key)
	if err != nil {
		return err
	}
	if found {
		sum.exception("Exception (row %d): Entry already exists in Performance Report table", row.Num)
		if algorithmID != nil {
			exists, err := u.store.CompilationStepExists(ctx, *algorithmID, reportID)
			if err != nil {
				return err
			}
			if exists {
				sum.exception("Exception (row %d): report, embedding algorithm already in Compilation Step table", row.Num)
			} else {
				insertStep = true
			}
		}
		if timeID != nil {
			exists, err := u.store.PerformanceValueExists(ctx, *timeID, timeValue, reportID)
			if err != nil {
				return err
			}
			if exists {
				sum.exception("Exception (row %d): report, time already in Performance Value table", row.Num)
			} else {
				insertTime = true
			}
		}
		if metricID != nil {
			exists, err := u.store.PerformanceValueExists(ctx, *metricID, metricValue, reportID)
			if err != nil {
				return err
			}
			if exists {
				sum.exception("Exception (row %d): report, performance in Performance Value table", row.Num)
			} else {
				insertMetric = true
			}
		}
	} else {
		// A new report takes all of its children without checks.
		report := store.Report{ReportKey: key, URL: row.String(colURL), Notes: row.String(colNotes)}
		if err := u.store.InsertReport(ctx, report); err != nil {
			return err
		}
		c.reports++
		insertStep, insertTime, insertMetric = true, true, true
	}

	reportID, found, err = u.store.FindReport(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		sum.failure("Insertion Error (row %d): Performance Report could not be found after insertion", row.Num)
		return nil
	}

	if algorithmID != nil && insertStep {
		if err := u.store.InsertCompilationStep(ctx, *algorithmID, reportID); err != nil {
			return err
		}
		c.compilationSteps++
	}
	if timeID != nil && insertTime {
		if err := u.store.InsertPerformanceValue(ctx, *timeID, timeValue, reportID); err != nil {
			return err
		}
		c.timeValues++
	}
	if metricID != nil && insertMetric {
		if err := u.store.InsertPerformanceValue(ctx, *metricID, metricValue, reportID); err != nil {
			return err
		}
		c.performanceValues++
	}
	return nil
}
