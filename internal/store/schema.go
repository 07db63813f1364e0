package store

import (
	"fmt"
	"strings"

	"github.com/qbench/qbench/internal/model"
)

// Additional indexes. Problem and graph names are unique ignoring case so
// that catalog lookups can match case-insensitively.
var indexSQL = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_problem_name_ci ON benchmarks_problem (lower(name))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_graph_name_ci ON benchmarks_graph (lower(name))`,
	`CREATE INDEX IF NOT EXISTS idx_report_problem ON benchmarks_performancereport (problem_id)`,
	`CREATE INDEX IF NOT EXISTS idx_report_system ON benchmarks_performancereport (system_id)`,
	`CREATE INDEX IF NOT EXISTS idx_instance_problem_graph ON benchmarks_probleminstance (problem_id, graph_id)`,
	`CREATE INDEX IF NOT EXISTS idx_step_report ON benchmarks_compilationstep (performance_report_id)`,
	`CREATE INDEX IF NOT EXISTS idx_value_report ON benchmarks_performancevalue (performance_report_id)`,
	`CREATE INDEX IF NOT EXISTS idx_value_metric ON benchmarks_performancevalue (metric_id)`,
	`CREATE INDEX IF NOT EXISTS idx_errorlog_logged_at ON benchmarks_errorlog (logged_at)`,
	`CREATE INDEX IF NOT EXISTS idx_uploadlog_created_at ON benchmarks_uploadlog (created_at)`,
}

// CreateTableSQL renders the CREATE TABLE statement for a registry table.
func CreateTableSQL(d Dialect, t model.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n    %s", t.Name, d.idColumn)
	for _, c := range t.Columns {
		fmt.Fprintf(&b, ",\n    %s %s", c.Name, d.ColumnType(c.Type))
		if c.NotNull {
			b.WriteString(" NOT NULL")
		}
		if c.Unique {
			b.WriteString(" UNIQUE")
		}
		if c.References != "" {
			fmt.Fprintf(&b, " REFERENCES %s (id) ON DELETE SET NULL", c.References)
		}
	}
	b.WriteString("\n)")
	return b.String()
}

// AllSchemaSQL returns every statement needed to initialize the database,
// tables first in dependency order, then indexes.
func AllSchemaSQL(d Dialect) []string {
	stmts := make([]string, 0, len(model.Tables)+len(indexSQL))
	for _, t := range model.Tables {
		stmts = append(stmts, CreateTableSQL(d, t))
	}
	return append(stmts, indexSQL...)
}
