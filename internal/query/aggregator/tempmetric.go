// Package aggregator builds per-report metric aggregates that the multi-table
// query joins against.
package aggregator

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/qbench/qbench/internal/model"
	"github.com/qbench/qbench/internal/query/planner"
	"github.com/qbench/qbench/internal/store"
)

// Conn is the subset of *sql.Conn the aggregate needs. Temporary tables
// live on one connection, so callers must pin one.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// TempMetric is the temp_metric table on a pinned connection. For every
// report it holds every "value name" pair joined by ", " and the value of
// one chosen metric.
type TempMetric struct {
	conn    Conn
	dialect store.Dialect
}

// CreateTempMetric builds temp_metric on conn. The returned table must be
// dropped before the connection goes back to the pool.
func CreateTempMetric(ctx context.Context, conn Conn, d store.Dialect, chosenMetric string) (*TempMetric, error) {
	t := &TempMetric{conn: conn, dialect: d}
	if err := t.Drop(ctx); err != nil {
		return nil, err
	}

	create := fmt.Sprintf(
		"CREATE TEMPORARY TABLE %s (performance_report_id %s, combined TEXT, chosen %s)",
		planner.TempMetricTable, d.ColumnType(model.Integer), d.ColumnType(model.Real))
	if _, err := conn.ExecContext(ctx, create); err != nil {
		return nil, fmt.Errorf("aggregator: failed to create %s: %w", planner.TempMetricTable, err)
	}

	combined := d.GroupConcat("CAST(v.value AS TEXT) || ' ' || m.name", ", ")
	fill := fmt.Sprintf(
		"INSERT INTO %s (performance_report_id, combined, chosen)"+
			" SELECT v.performance_report_id, %s, MAX(CASE WHEN m.name = ? THEN v.value END)"+
			" FROM %s AS v JOIN %s AS m ON m.id = v.metric_id"+
			" WHERE v.performance_report_id IS NOT NULL"+
			" GROUP BY v.performance_report_id",
		planner.TempMetricTable, combined, model.PerformanceValue, model.PerformanceMetric)
	if _, err := conn.ExecContext(ctx, d.Rebind(fill), chosenMetric); err != nil {
		t.Drop(ctx)
		return nil, fmt.Errorf("aggregator: failed to fill %s: %w", planner.TempMetricTable, err)
	}
	return t, nil
}

// Drop removes the table. Dropping a missing table is not an error.
func (t *TempMetric) Drop(ctx context.Context) error {
	if _, err := t.conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+planner.TempMetricTable); err != nil {
		return fmt.Errorf("aggregator: failed to drop %s: %w", planner.TempMetricTable, err)
	}
	return nil
}
