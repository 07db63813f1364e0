package planner

import (
	"github.com/qbench/qbench/internal/model"
)

// Edge is one foreign key: Child.Column references Parent.id.
type Edge struct {
	Child  string
	Column string
	Parent string
}

// On renders the join condition for the edge.
func (e Edge) On() string {
	return e.Child + "." + e.Column + " = " + e.Parent + ".id"
}

// Other returns the table at the far end of the edge from t.
func (e Edge) Other(t string) string {
	if e.Child == t {
		return e.Parent
	}
	return e.Child
}

// Graph is the undirected foreign-key graph over the public tables.
type Graph struct {
	order []string
	adj   map[string][]Edge
}

// NewGraph builds the graph from the model registry. Neighbours are kept in
// registry order so paths are deterministic.
func NewGraph() *Graph {
	g := &Graph{adj: map[string][]Edge{}}
	for _, t := range model.Public() {
		g.order = append(g.order, t.Name)
		if _, ok := g.adj[t.Name]; !ok {
			g.adj[t.Name] = nil
		}
		for _, fk := range t.ForeignKeys() {
			e := Edge{Child: t.Name, Column: fk.Name, Parent: fk.References}
			g.adj[t.Name] = append(g.adj[t.Name], e)
			if fk.References != t.Name {
				g.adj[fk.References] = append(g.adj[fk.References], e)
			}
		}
	}
	return g
}

// Has reports whether table is a node.
func (g *Graph) Has(table string) bool {
	_, ok := g.adj[table]
	return ok
}

// Tables returns every node in registry order.
func (g *Graph) Tables() []string {
	return append([]string(nil), g.order...)
}

// Edges returns the edges touching table.
func (g *Graph) Edges(table string) []Edge {
	return g.adj[table]
}

// Step is one table joined onto the tree along an edge.
type Step struct {
	Table string
	Edge  Edge
}

// Connection is a join tree rooted at Root.
type Connection struct {
	Root string
	// Steps are in join order; each step's edge touches an earlier table.
	Steps []Step
	// Missing lists requested tables that were unknown or unreachable.
	Missing []string
}

// Tables returns the root followed by every joined table.
func (c *Connection) Tables() []string {
	out := []string{c.Root}
	for _, s := range c.Steps {
		out = append(out, s.Table)
	}
	return out
}

// Contains reports whether table is part of the tree.
func (c *Connection) Contains(table string) bool {
	if c.Root == table {
		return true
	}
	for _, s := range c.Steps {
		if s.Table == table {
			return true
		}
	}
	return false
}

// ConnectAll joins the requested tables into one tree. The first known table
// is the root; each later table is reached by the shortest path from any
// table already in the tree, joining intermediate tables on the way.
func (g *Graph) ConnectAll(tables []string) *Connection {
	conn := &Connection{}
	in := map[string]bool{}
	for _, t := range tables {
		if !g.Has(t) {
			conn.Missing = append(conn.Missing, t)
			continue
		}
		if conn.Root == "" {
			conn.Root = t
			in[t] = true
			continue
		}
		if in[t] {
			continue
		}
		path := g.shortestPath(in, t)
		if path == nil {
			conn.Missing = append(conn.Missing, t)
			continue
		}
		for _, s := range path {
			in[s.Table] = true
			conn.Steps = append(conn.Steps, s)
		}
	}
	return conn
}

// shortestPath runs a multi-source BFS from the tables already in the tree
// and returns the steps that reach target, or nil.
func (g *Graph) shortestPath(in map[string]bool, target string) []Step {
	prev := map[string]Step{}
	visited := map[string]bool{}
	var queue []string
	for _, t := range g.order {
		if in[t] {
			visited[t] = true
			queue = append(queue, t)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == target {
			var path []Step
			for t := target; !in[t]; {
				s := prev[t]
				path = append([]Step{s}, path...)
				t = s.Edge.Other(t)
			}
			return path
		}
		for _, e := range g.adj[cur] {
			next := e.Other(cur)
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = Step{Table: next, Edge: e}
			queue = append(queue, next)
		}
	}
	return nil
}
