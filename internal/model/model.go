// Package model is the registry of benchmark tables: their columns, types and
// foreign keys. DDL generation, identifier whitelisting and the join graph
// are all derived from it.
package model

import "strings"

// Prefix is shared by every benchmark table name.
const Prefix = "benchmarks_"

// Table names.
const (
	Manufacturer         = Prefix + "manufacturer"
	Technology           = Prefix + "technology"
	Solver               = Prefix + "solver"
	PerformanceMetric    = Prefix + "performancemetric"
	CompilationTool      = Prefix + "compilationtool"
	CompilationAlgorithm = Prefix + "compilationalgorithm"
	Topology             = Prefix + "topology"
	Processor            = Prefix + "processor"
	GateSet              = Prefix + "gateset"
	Gate                 = Prefix + "gate"
	GateSetMembership    = Prefix + "gatesetmembership"
	System               = Prefix + "system"
	Calibration          = Prefix + "calibration"
	Graph                = Prefix + "graph"
	Problem              = Prefix + "problem"
	ProblemInstance      = Prefix + "probleminstance"
	PerformanceReport    = Prefix + "performancereport"
	CompilationStep      = Prefix + "compilationstep"
	PerformanceValue     = Prefix + "performancevalue"
	ErrorLog             = Prefix + "errorlog"
	UploadLog            = Prefix + "uploadlog"
)

// ColumnType is the storage class of a column.
type ColumnType int

const (
	Integer ColumnType = iota
	Real
	Text
)

// Column describes one table column. References names the table whose id
// this column points at.
type Column struct {
	Name       string
	Type       ColumnType
	NotNull    bool
	Unique     bool
	References string
}

// Table describes one table. Internal tables are bookkeeping and are not
// exposed to the query builder or the entity views.
type Table struct {
	Name     string
	Columns  []Column
	Internal bool
}

// Short returns the table name without the shared prefix.
func (t Table) Short() string {
	return strings.TrimPrefix(t.Name, Prefix)
}

// ColumnNames returns id followed by the declared columns.
func (t Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns)+1)
	names = append(names, "id")
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

// HasColumn reports whether name is id or a declared column.
func (t Table) HasColumn(name string) bool {
	if name == "id" {
		return true
	}
	_, ok := t.Column(name)
	return ok
}

// Column returns the declared column with the given name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ForeignKeys returns the columns that reference other tables.
func (t Table) ForeignKeys() []Column {
	var fks []Column
	for _, c := range t.Columns {
		if c.References != "" {
			fks = append(fks, c)
		}
	}
	return fks
}

func name() Column { return Column{Name: "name", Type: Text, NotNull: true} }

func uniqueName() Column { return Column{Name: "name", Type: Text, NotNull: true, Unique: true} }

func integer(n string) Column { return Column{Name: n, Type: Integer} }

func float(n string) Column { return Column{Name: n, Type: Real} }

func text(n string) Column { return Column{Name: n, Type: Text} }

func ref(n, table string) Column {
	return Column{Name: n, Type: Integer, References: table}
}

func links() []Column {
	return []Column{text("url1"), text("url2"), text("notes")}
}

func withLinks(cols ...Column) []Column {
	return append(cols, links()...)
}

func calibrationColumns() []Column {
	cols := []Column{
		ref("system_id", System),
		text("date"),
		float("eplg"),
		integer("clops"),
	}
	for _, n := range []string{
		"median_cz_err", "median_ecr_err", "median_cnot_err", "median_sx_err",
		"min_1q_err", "max_1q_err", "typical_1q_err", "median_1q_err",
		"min_2q_err", "max_2q_err", "typical_2q_err", "median_2q_err",
		"median_readout_err", "spam_err", "mem_err_avg_d1_circuit", "crosstalk_err_mid_circuit",
		"min_t1", "max_t1", "median_t1", "mean_t1",
		"min_t2", "max_t2", "median_t2", "mean_t2",
	} {
		cols = append(cols, float(n))
	}
	return withLinks(cols...)
}

// Tables lists every table in creation order; referenced tables come first.
var Tables = []Table{
	{Name: Manufacturer, Columns: []Column{uniqueName()}},
	{Name: Technology, Columns: []Column{uniqueName()}},
	{Name: Solver, Columns: []Column{uniqueName()}},
	{Name: PerformanceMetric, Columns: []Column{uniqueName()}},
	{Name: CompilationTool, Columns: []Column{uniqueName()}},
	{Name: CompilationAlgorithm, Columns: []Column{uniqueName()}},
	{Name: Topology, Columns: withLinks(
		name(),
		integer("physical_qubits_per_cell"),
		float("qubit_degree"),
		integer("qubit_nominal_length"),
		integer("max_qubo_variable_count_clique"),
	)},
	{Name: Processor, Columns: withLinks(
		name(),
		ref("technology_id", Technology),
		ref("manufacturer_id", Manufacturer),
		integer("physical_qubits"),
		ref("topology_id", Topology),
		integer("intro_year"),
		float("rep_rate"),
	)},
	{Name: GateSet, Columns: withLinks(name())},
	{Name: Gate, Columns: withLinks(
		name(),
		Column{Name: "qubits", Type: Integer, NotNull: true},
	)},
	{Name: GateSetMembership, Columns: []Column{
		ref("gate_set_id", GateSet),
		ref("gate_id", Gate),
	}},
	{Name: System, Columns: withLinks(
		uniqueName(),
		ref("manufactor_id", Manufacturer),
		ref("processor_id", Processor),
		integer("intro_year"),
		ref("gateset_id", GateSet),
	)},
	{Name: Calibration, Columns: calibrationColumns()},
	{Name: Graph, Columns: withLinks(name())},
	{Name: Problem, Columns: withLinks(name())},
	{Name: ProblemInstance, Columns: withLinks(
		ref("problem_id", Problem),
		ref("graph_id", Graph),
		float("graph_size"),
	)},
	{Name: PerformanceReport, Columns: withLinks(
		ref("problem_id", ProblemInstance),
		integer("qubo_var_count"),
		integer("qubo_quad_term_count"),
		ref("system_id", System),
		ref("solver_id", Solver),
		integer("qubit_count"),
		float("rcs"),
		integer("mean_chain_length"),
		integer("max_chain_length"),
		integer("num_runs"),
	)},
	{Name: CompilationStep, Columns: []Column{
		ref("compilation_tool_id", CompilationTool),
		float("version"),
		ref("compilation_algorithm_id", CompilationAlgorithm),
		ref("performance_report_id", PerformanceReport),
	}},
	{Name: PerformanceValue, Columns: []Column{
		ref("metric_id", PerformanceMetric),
		float("value"),
		ref("performance_report_id", PerformanceReport),
	}},
	{Name: ErrorLog, Internal: true, Columns: []Column{
		{Name: "logged_at", Type: Text, NotNull: true},
		{Name: "error_message", Type: Text, NotNull: true},
		{Name: "querycode", Type: Text, NotNull: true},
	}},
	{Name: UploadLog, Internal: true, Columns: []Column{
		{Name: "upload_id", Type: Text, NotNull: true, Unique: true},
		{Name: "kind", Type: Text, NotNull: true},
		text("filename"),
		text("fingerprint"),
		integer("rows_read"),
		text("status"),
		text("top_message"),
		text("archive_path"),
		{Name: "created_at", Type: Text, NotNull: true},
	}},
}

var byName = func() map[string]Table {
	m := make(map[string]Table, len(Tables))
	for _, t := range Tables {
		m[t.Name] = t
	}
	return m
}()

// Lookup resolves a table by its full or short name, case-insensitively.
func Lookup(name string) (Table, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if !strings.HasPrefix(n, Prefix) {
		n = Prefix + n
	}
	t, ok := byName[n]
	return t, ok
}

// Public returns the tables exposed to the query builder and entity views.
func Public() []Table {
	out := make([]Table, 0, len(Tables))
	for _, t := range Tables {
		if !t.Internal {
			out = append(out, t)
		}
	}
	return out
}
