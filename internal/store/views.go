package store

import (
	"context"
	"fmt"
	"sort"

	qerrors "github.com/qbench/qbench/internal/errors"
)

// viewSQL returns the fixed report views for a dialect.
func viewSQL(d Dialect) map[string]string {
	valueList := d.GroupConcat("CAST(v.value AS TEXT) || ' ' || m.name", ", ")
	return map[string]string{
		// The single placeholder binds the chosen metric name.
		"report": `
			SELECT r.id, p.name AS problem, g.name AS graph, pi.graph_size,
				s.name AS system, sv.name AS solver, r.qubo_var_count, r.qubo_quad_term_count,
				r.qubit_count, r.rcs, r.mean_chain_length, r.max_chain_length, r.num_runs,
				(SELECT ` + valueList + `
					FROM benchmarks_performancevalue v
					JOIN benchmarks_performancemetric m ON m.id = v.metric_id
					WHERE v.performance_report_id = r.id) AS performance,
				(SELECT MAX(CASE WHEN m.name = ? THEN v.value END)
					FROM benchmarks_performancevalue v
					JOIN benchmarks_performancemetric m ON m.id = v.metric_id
					WHERE v.performance_report_id = r.id) AS chosen,
				cs.version, ca.name AS compilation_algorithm, ct.name AS compilation_tool,
				r.url1, r.notes
			FROM benchmarks_performancereport r
			LEFT JOIN benchmarks_probleminstance pi ON pi.id = r.problem_id
			LEFT JOIN benchmarks_problem p ON p.id = pi.problem_id
			LEFT JOIN benchmarks_graph g ON g.id = pi.graph_id
			LEFT JOIN benchmarks_system s ON s.id = r.system_id
			LEFT JOIN benchmarks_solver sv ON sv.id = r.solver_id
			LEFT JOIN benchmarks_compilationstep cs ON cs.performance_report_id = r.id
			LEFT JOIN benchmarks_compilationalgorithm ca ON ca.id = cs.compilation_algorithm_id
			LEFT JOIN benchmarks_compilationtool ct ON ct.id = cs.compilation_tool_id
			ORDER BY r.id, cs.id`,
		"instance": `
			SELECT pi.id, p.name AS problem, g.name AS graph, pi.graph_size, pi.url1, pi.notes
			FROM benchmarks_probleminstance pi
			LEFT JOIN benchmarks_problem p ON p.id = pi.problem_id
			LEFT JOIN benchmarks_graph g ON g.id = pi.graph_id
			ORDER BY pi.id`,
		"system": `
			SELECT s.id, s.name AS system, mf.name AS manufacturer, pr.name AS processor,
				s.intro_year, c.date AS calibration_date, c.eplg, c.clops,
				c.median_2q_err, c.median_readout_err, c.median_t1, c.median_t2
			FROM benchmarks_system s
			LEFT JOIN benchmarks_manufacturer mf ON mf.id = s.manufactor_id
			LEFT JOIN benchmarks_processor pr ON pr.id = s.processor_id
			LEFT JOIN benchmarks_calibration c ON c.system_id = s.id
			ORDER BY s.id, c.id`,
		"processor": `
			SELECT pr.id, pr.name AS processor, mf.name AS manufacturer, t.name AS technology,
				tp.name AS topology, pr.physical_qubits, pr.intro_year, pr.rep_rate
			FROM benchmarks_processor pr
			LEFT JOIN benchmarks_manufacturer mf ON mf.id = pr.manufacturer_id
			LEFT JOIN benchmarks_technology t ON t.id = pr.technology_id
			LEFT JOIN benchmarks_topology tp ON tp.id = pr.topology_id
			ORDER BY pr.id`,
		"gate": `
			SELECT gs.id, gs.name AS gate_set, g.name AS gate, g.qubits
			FROM benchmarks_gateset gs
			LEFT JOIN benchmarks_gatesetmembership gm ON gm.gate_set_id = gs.id
			LEFT JOIN benchmarks_gate g ON g.id = gm.gate_id
			ORDER BY gs.id, g.id`,
		"value": `
			SELECT v.performance_report_id AS report_id, ` + valueList + ` AS performance
			FROM benchmarks_performancevalue v
			JOIN benchmarks_performancemetric m ON m.id = v.metric_id
			GROUP BY v.performance_report_id
			ORDER BY v.performance_report_id`,
		"value2": `
			SELECT v.id, v.performance_report_id AS report_id, m.name AS metric, v.value
			FROM benchmarks_performancevalue v
			LEFT JOIN benchmarks_performancemetric m ON m.id = v.metric_id
			ORDER BY v.performance_report_id, v.id`,
	}
}

// ViewNames lists the fixed report views in sorted order.
func ViewNames() []string {
	views := viewSQL(SQLite)
	names := make([]string, 0, len(views))
	for name := range views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// View runs a fixed report view.
func (s *Store) View(ctx context.Context, name string, maxRows int) (*ResultSet, error) {
	query, ok := viewSQL(s.dialect)[name]
	if !ok {
		return nil, qerrors.NewValidationError(qerrors.CodeUnknownTable, fmt.Sprintf("unknown view %q", name))
	}
	var args []interface{}
	if name == "report" {
		args = append(args, s.chosenMetric)
	}
	rs, err := s.Query(ctx, query, maxRows, args...)
	if err != nil {
		return nil, fmt.Errorf("store: failed to run view %s: %w", name, err)
	}
	return rs, nil
}
