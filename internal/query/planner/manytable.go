package planner

import (
	"strings"

	"github.com/qbench/qbench/internal/model"
)

// TempMetricTable is the per-report metric aggregate joined by manytable.
const TempMetricTable = "temp_metric"

// Temp metric display columns.
const (
	TempMetricCombined = TempMetricTable + ".combined"
	TempMetricChosen   = TempMetricTable + ".chosen"
)

// companions lists the tables a selected table pulls in with it.
var companions = map[string][]string{
	model.PerformanceValue:  {model.PerformanceMetric},
	model.CompilationStep:   {model.CompilationTool, model.CompilationAlgorithm},
	model.PerformanceReport: {model.Solver},
	model.Processor:         {model.Technology},
}

// ManyTableRequest is a multi-table selection.
type ManyTableRequest struct {
	Columns []string
	Tables  []string
	Filter  []string
}

func (r ManyTableRequest) String() string {
	return describe("manytable",
		param{"columns", r.Columns}, param{"tables", r.Tables}, param{"filter", r.Filter})
}

// Group counts the display columns that belong to one table.
type Group struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ManyTablePlan is a built multi-table query.
type ManyTablePlan struct {
	SQL  string
	Args []interface{}
	// Tables are the selected tables after companions were added.
	Tables []string
	// Connection is the join tree; nil for the fallback query.
	Connection *Connection
	// Available is every displayable column.
	Available []string
	Columns   []string
	ColName   []string
	Groups    []Group
	Filters   []Filter
	// TempMetric is set when the query joins the temp_metric aggregate.
	TempMetric bool
}

// expandTables resolves names, drops duplicates and appends companions.
func expandTables(names []string) []string {
	var out []string
	seen := map[string]bool{}
	var add func(string)
	add = func(name string) {
		t, ok := model.Lookup(name)
		if !ok || t.Internal || seen[t.Name] {
			return
		}
		seen[t.Name] = true
		out = append(out, t.Name)
		for _, c := range companions[t.Name] {
			add(c)
		}
	}
	for _, n := range names {
		add(n)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ManyTable builds a query over several tables joined along foreign keys.
// Unknown tables and columns are dropped; a filter on a column that is not
// displayed is an error.
func ManyTable(req ManyTableRequest, g *Graph) (*ManyTablePlan, error) {
	plan := &ManyTablePlan{Tables: expandTables(req.Tables)}

	if len(plan.Tables) == 0 {
		col := model.Manufacturer + ".name"
		plan.Available = []string{col}
		plan.Columns = []string{col}
		plan.SQL = "SELECT " + col + " FROM " + model.Manufacturer
		plan.finish()
		return plan, nil
	}

	conn := g.ConnectAll(plan.Tables)
	plan.Connection = conn
	for _, t := range plan.Tables {
		if !conn.Contains(t) {
			continue
		}
		tbl, _ := model.Lookup(t)
		for _, c := range tbl.ColumnNames() {
			plan.Available = append(plan.Available, t+"."+c)
		}
	}
	plan.TempMetric = conn.Contains(model.PerformanceValue) && conn.Contains(model.PerformanceReport)
	if plan.TempMetric {
		plan.Available = append(plan.Available, TempMetricCombined, TempMetricChosen)
	}

	if !wantsAll(req.Columns) {
		for _, c := range req.Columns {
			if contains(plan.Available, c) && !contains(plan.Columns, c) {
				plan.Columns = append(plan.Columns, c)
			}
		}
	}
	if len(plan.Columns) == 0 {
		plan.Columns = append([]string(nil), plan.Available...)
	}

	plan.Filters = ParseFilters(req.Filter)
	for _, f := range plan.Filters {
		if !contains(plan.Available, f.Field) {
			return nil, invalidColumn("filter field", f.Field)
		}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(plan.Columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(conn.From())
	if plan.TempMetric {
		b.WriteString(" LEFT JOIN " + TempMetricTable + " ON " + model.PerformanceReport + ".id = " + TempMetricTable + ".performance_report_id")
	}
	where, args := whereClause(plan.Filters, func(field string) string {
		return "CAST(" + field + " AS TEXT)"
	})
	b.WriteString(where)
	plan.SQL = b.String()
	plan.Args = args
	plan.finish()
	return plan, nil
}

// From renders the FROM clause of the join tree.
func (c *Connection) From() string {
	var b strings.Builder
	b.WriteString(c.Root)
	for _, s := range c.Steps {
		b.WriteString(" LEFT JOIN ")
		b.WriteString(s.Table)
		b.WriteString(" ON ")
		b.WriteString(s.Edge.On())
	}
	return b.String()
}

func (p *ManyTablePlan) finish() {
	p.ColName = make([]string, len(p.Columns))
	at := map[string]int{}
	for i, c := range p.Columns {
		table, col, _ := strings.Cut(c, ".")
		p.ColName[i] = col
		group := table
		if _, rest, ok := strings.Cut(table, "_"); ok {
			group = rest
		}
		if j, ok := at[group]; ok {
			p.Groups[j].Count++
			continue
		}
		at[group] = len(p.Groups)
		p.Groups = append(p.Groups, Group{Name: group, Count: 1})
	}
}
