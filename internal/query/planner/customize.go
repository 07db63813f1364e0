package planner

import (
	"strings"

	"github.com/qbench/qbench/internal/model"
)

// Base is a table the customize builder can start from.
type Base int

const (
	BasePerformanceReport Base = iota
	BaseSystem
	BaseGateSet
	BaseProblemInstance
)

type baseInfo struct {
	table string
	alias string
}

var bases = map[Base]baseInfo{
	BasePerformanceReport: {model.PerformanceReport, "a"},
	BaseSystem:            {model.System, "b"},
	BaseGateSet:           {model.GateSet, "c"},
	BaseProblemInstance:   {model.ProblemInstance, "d"},
}

// ParseBase resolves a base table name. Unknown or empty names fall back to
// performance reports.
func ParseBase(name string) Base {
	t, ok := model.Lookup(name)
	if ok {
		for b, info := range bases {
			if info.table == t.Name {
				return b
			}
		}
	}
	return BasePerformanceReport
}

// Table returns the base table name.
func (b Base) Table() string { return bases[b].table }

// Alias returns the base table alias.
func (b Base) Alias() string { return bases[b].alias }

type joinKey struct {
	base  Base
	table string
}

// Join is a fixed join from a base to one table.
type Join struct {
	Table string
	Alias string
	On    string
	// Requires names a table whose join must precede this one.
	Requires string
}

// Joins enumerates every join the customize builder may emit. Pairs not
// listed are never joined.
var Joins = map[joinKey]Join{
	{BasePerformanceReport, model.Solver}:           {Table: model.Solver, Alias: "e", On: "a.solver_id = e.id"},
	{BasePerformanceReport, model.PerformanceValue}: {Table: model.PerformanceValue, Alias: "f", On: "f.performance_report_id = a.id"},
	{BasePerformanceReport, model.CompilationStep}:  {Table: model.CompilationStep, Alias: "g", On: "g.performance_report_id = a.id"},
	{BasePerformanceReport, model.System}:           {Table: model.System, Alias: "h", On: "h.id = a.system_id"},
	{BasePerformanceReport, model.ProblemInstance}:  {Table: model.ProblemInstance, Alias: "i", On: "i.id = a.problem_id"},
	{BaseSystem, model.PerformanceReport}:           {Table: model.PerformanceReport, Alias: "j", On: "j.system_id = b.id"},
	{BaseSystem, model.Calibration}:                 {Table: model.Calibration, Alias: "k", On: "k.system_id = b.id"},
	{BaseSystem, model.Manufacturer}:                {Table: model.Manufacturer, Alias: "l", On: "l.id = b.manufactor_id"},
	{BaseSystem, model.Processor}:                   {Table: model.Processor, Alias: "m", On: "m.id = b.processor_id"},
	{BaseSystem, model.GateSet}:                     {Table: model.GateSet, Alias: "n", On: "n.id = b.gateset_id"},
	{BaseGateSet, model.GateSetMembership}:          {Table: model.GateSetMembership, Alias: "o", On: "o.gate_set_id = c.id"},
	{BaseGateSet, model.Gate}:                       {Table: model.Gate, Alias: "p", On: "p.id = o.gate_id", Requires: model.GateSetMembership},
	{BaseProblemInstance, model.Graph}:              {Table: model.Graph, Alias: "q", On: "q.id = d.graph_id"},
	{BaseProblemInstance, model.Problem}:            {Table: model.Problem, Alias: "r", On: "r.id = d.problem_id"},
}

// LookupJoin returns the join for a base and table name, if mapped.
func LookupJoin(b Base, table string) (Join, bool) {
	t, ok := model.Lookup(table)
	if !ok {
		return Join{}, false
	}
	j, ok := Joins[joinKey{b, t.Name}]
	return j, ok
}

// CustomizeRequest is a customize selection.
type CustomizeRequest struct {
	Columns []string
	Base    []string
	Joins   []string
	Filter  []string
}

func (r CustomizeRequest) String() string {
	return describe("customize",
		param{"columns", r.Columns}, param{"base", r.Base}, param{"joins", r.Joins}, param{"filter", r.Filter})
}

// CustomizePlan is a built customize query.
type CustomizePlan struct {
	SQL   string
	Args  []interface{}
	Base  Base
	Joins []Join
	// Filters are the applied filters, in order.
	Filters []Filter
	// Columns is the select list as written into SQL.
	Columns []string
}

// scope maps aliases to tables for column validation.
type scope struct {
	aliases map[string]model.Table
	order   []string
}

func (s *scope) add(alias, table string) {
	t, _ := model.Lookup(table)
	s.aliases[alias] = t
	s.order = append(s.order, alias)
}

// valid reports whether ref names *, alias.*, alias.column, or a bare column
// of an in-scope table.
func (s *scope) valid(ref string, allowStar bool) bool {
	if ref == "*" {
		return allowStar
	}
	if alias, col, ok := strings.Cut(ref, "."); ok {
		t, found := s.aliases[alias]
		if !found {
			return false
		}
		if col == "*" {
			return allowStar
		}
		return t.HasColumn(col)
	}
	for _, alias := range s.order {
		if s.aliases[alias].HasColumn(ref) {
			return true
		}
	}
	return false
}

// Customize builds a query from a base table and fixed joins. Unmapped
// join targets are skipped; invalid columns or filter fields are errors.
func Customize(req CustomizeRequest) (*CustomizePlan, error) {
	base := BasePerformanceReport
	if len(req.Base) > 0 {
		base = ParseBase(req.Base[0])
	}

	sc := &scope{aliases: map[string]model.Table{}}
	sc.add(base.Alias(), base.Table())

	plan := &CustomizePlan{Base: base}
	seen := map[string]bool{}
	var addJoin func(table string)
	addJoin = func(table string) {
		j, ok := LookupJoin(base, table)
		if !ok || seen[j.Table] {
			return
		}
		if j.Requires != "" {
			addJoin(j.Requires)
		}
		seen[j.Table] = true
		plan.Joins = append(plan.Joins, j)
		sc.add(j.Alias, j.Table)
	}
	for _, table := range req.Joins {
		addJoin(table)
	}

	columns := req.Columns
	if wantsAll(columns) {
		columns = []string{"*"}
	}
	for _, c := range columns {
		if !sc.valid(c, true) {
			return nil, invalidColumn("column", c)
		}
	}
	plan.Columns = columns

	plan.Filters = ParseFilters(req.Filter)
	for _, f := range plan.Filters {
		if !sc.valid(f.Field, false) {
			return nil, invalidColumn("filter field", f.Field)
		}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(base.Table())
	b.WriteString(" AS ")
	b.WriteString(base.Alias())
	for _, j := range plan.Joins {
		b.WriteString(" LEFT JOIN ")
		b.WriteString(j.Table)
		b.WriteString(" AS ")
		b.WriteString(j.Alias)
		b.WriteString(" ON ")
		b.WriteString(j.On)
	}
	where, args := whereClause(plan.Filters, func(field string) string { return field })
	b.WriteString(where)

	plan.SQL = b.String()
	plan.Args = args
	return plan, nil
}
