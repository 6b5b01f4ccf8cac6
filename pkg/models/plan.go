package models

import "github.com/google/uuid"

// JoinStep is one (parent, child) pair: child is joined onto the already
// assembled result containing parent. Degenerate marks a step added without
// a relationship edge to keep a disconnected join graph traversable; its
// join condition is a guess and is flagged in rationale and visualization.
type JoinStep struct {
	Parent     string `json:"parent"`
	Child      string `json:"child"`
	Degenerate bool   `json:"degenerate,omitempty"`
}

// PredicateStep is one (table, column) WHERE predicate in evaluation order.
type PredicateStep struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// PlanNode is a table node of the join-step graph, annotated for display.
type PlanNode struct {
	Table      string `json:"table"`
	RowCount   int64  `json:"row_count"`
	IndexCount int    `json:"index_count"`
}

// PlanEdge is a directed join-step edge of the plan graph.
type PlanEdge struct {
	Parent   string `json:"parent"`
	Child    string `json:"child"`
	JoinStep int    `json:"join_step"` // 1-based position in the join order
	JoinType string `json:"join_type"`
}

// PlanGraph is the directed graph whose nodes are the plan's tables and
// whose edges are its join steps. Presentation only: nothing downstream of
// plan assembly reads it to make decisions.
type PlanGraph struct {
	Nodes []PlanNode `json:"nodes"`
	Edges []PlanEdge `json:"edges"`
}

// Node returns the node for a table, or nil.
func (g *PlanGraph) Node(table string) *PlanNode {
	for i := range g.Nodes {
		if g.Nodes[i].Table == table {
			return &g.Nodes[i]
		}
	}
	return nil
}

// Successors returns the child tables of the given table in edge order.
func (g *PlanGraph) Successors(table string) []string {
	var out []string
	for _, e := range g.Edges {
		if e.Parent == table {
			out = append(out, e.Child)
		}
	}
	return out
}

// Roots returns tables with no incoming join-step edge, in node order.
func (g *PlanGraph) Roots() []string {
	incoming := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		incoming[e.Child] = true
	}

	var roots []string
	for _, n := range g.Nodes {
		if !incoming[n.Table] {
			roots = append(roots, n.Table)
		}
	}
	return roots
}

// QueryPlan is an optimized query execution plan. It is a pure function of
// the schema graph, the statistics snapshot, and the filter specification;
// it is never mutated after assembly.
type QueryPlan struct {
	ID                 uuid.UUID       `json:"id"`
	Tables             []string        `json:"tables"`
	JoinOrder          []JoinStep      `json:"join_order"`
	PredicateOrder     []PredicateStep `json:"predicate_order"`
	RecommendedIndexes []string        `json:"recommended_indexes"`
	EstimatedCost      float64         `json:"estimated_cost"`
	Rationale          []string        `json:"plan_rationale"`
	Graph              *PlanGraph      `json:"-"` // presentation only, excluded from the flat form
}

// ToMap converts the plan to its flat serializable form. The join-step
// graph is presentation-only and intentionally omitted.
func (p *QueryPlan) ToMap() map[string]any {
	joinOrder := make([][2]string, len(p.JoinOrder))
	for i, s := range p.JoinOrder {
		joinOrder[i] = [2]string{s.Parent, s.Child}
	}
	predicateOrder := make([][2]string, len(p.PredicateOrder))
	for i, s := range p.PredicateOrder {
		predicateOrder[i] = [2]string{s.Table, s.Column}
	}

	return map[string]any{
		"tables":              p.Tables,
		"join_order":          joinOrder,
		"predicate_order":     predicateOrder,
		"recommended_indexes": p.RecommendedIndexes,
		"estimated_cost":      p.EstimatedCost,
		"plan_rationale":      p.Rationale,
	}
}
