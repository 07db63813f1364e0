package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ReportKey is the identity of a performance report. Two reports are the
// same when every field matches, NULLs included.
type ReportKey struct {
	ProblemID         int64
	QuboVarCount      *int64
	QuboQuadTermCount *int64
	SystemID          *int64
	SolverID          *int64
	QubitCount        *int64
	RCS               *float64
	MeanChainLength   *int64
	MaxChainLength    *int64
	NumRuns           *int64
}

// Tuple returns the identity predicate for the report.
func (k ReportKey) Tuple() Tuple {
	return Tuple{
		{"problem_id", k.ProblemID},
		{"qubo_var_count", k.QuboVarCount},
		{"qubo_quad_term_count", k.QuboQuadTermCount},
		{"system_id", k.SystemID},
		{"solver_id", k.SolverID},
		{"qubit_count", k.QubitCount},
		{"rcs", k.RCS},
		{"mean_chain_length", k.MeanChainLength},
		{"max_chain_length", k.MaxChainLength},
		{"num_runs", k.NumRuns},
	}
}

// Report is a performance report row as written by uploads.
type Report struct {
	ReportKey
	URL   *string
	Notes *string
}

// FindReport returns the id of the report matching key.
func (s *Store) FindReport(ctx context.Context, key ReportKey) (int64, bool, error) {
	where, args := key.Tuple().Where(s.dialect)
	var id int64
	err := s.queryRow(ctx, `SELECT id FROM benchmarks_performancereport WHERE `+where+` ORDER BY id LIMIT 1`, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: failed to find performance report: %w", err)
	}
	return id, true, nil
}

// InsertReport inserts a performance report without checking for an
// existing one.
func (s *Store) InsertReport(ctx context.Context, r Report) error {
	k := r.ReportKey
	_, err := s.exec(ctx, `
		INSERT INTO benchmarks_performancereport (
			problem_id, qubo_var_count, qubo_quad_term_count, system_id, solver_id,
			qubit_count, rcs, mean_chain_length, max_chain_length, num_runs, url1, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		k.ProblemID, argValue(k.QuboVarCount), argValue(k.QuboQuadTermCount),
		argValue(k.SystemID), argValue(k.SolverID), argValue(k.QubitCount),
		argValue(k.RCS), argValue(k.MeanChainLength), argValue(k.MaxChainLength),
		argValue(k.NumRuns), argValue(r.URL), argValue(r.Notes))
	if err != nil {
		return fmt.Errorf("store: failed to insert performance report: %w", err)
	}
	return nil
}

// CompilationStepExists reports whether the report already records the
// compilation algorithm.
func (s *Store) CompilationStepExists(ctx context.Context, algorithmID, reportID int64) (bool, error) {
	ok, err := s.exists(ctx, `
		SELECT 1 FROM benchmarks_compilationstep
		WHERE compilation_algorithm_id = ? AND performance_report_id = ? LIMIT 1`,
		algorithmID, reportID)
	if err != nil {
		return false, fmt.Errorf("store: failed to check compilation step: %w", err)
	}
	return ok, nil
}

// InsertCompilationStep links a compilation algorithm to a report.
func (s *Store) InsertCompilationStep(ctx context.Context, algorithmID, reportID int64) error {
	_, err := s.exec(ctx, `
		INSERT INTO benchmarks_compilationstep (compilation_algorithm_id, performance_report_id)
		VALUES (?, ?)`, algorithmID, reportID)
	if err != nil {
		return fmt.Errorf("store: failed to insert compilation step: %w", err)
	}
	return nil
}

// PerformanceValueExists reports whether the report already has a value for
// the metric. A NULL value matches only a NULL value.
func (s *Store) PerformanceValueExists(ctx context.Context, metricID int64, value *float64, reportID int64) (bool, error) {
	where, args := Tuple{
		{"metric_id", metricID},
		{"value", value},
		{"performance_report_id", reportID},
	}.Where(s.dialect)
	ok, err := s.exists(ctx, `SELECT 1 FROM benchmarks_performancevalue WHERE `+where+` LIMIT 1`, args...)
	if err != nil {
		return false, fmt.Errorf("store: failed to check performance value: %w", err)
	}
	return ok, nil
}

// InsertPerformanceValue records a metric value against a report.
func (s *Store) InsertPerformanceValue(ctx context.Context, metricID int64, value *float64, reportID int64) error {
	_, err := s.exec(ctx, `
		INSERT INTO benchmarks_performancevalue (metric_id, value, performance_report_id)
		VALUES (?, ?, ?)`, metricID, argValue(value), reportID)
	if err != nil {
		return fmt.Errorf("store: failed to insert performance value: %w", err)
	}
	return nil
}
