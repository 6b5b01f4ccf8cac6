package services

import (
	"fmt"
	"strings"

	"github.com/BodieCoding/databridge/pkg/models"
)

// VisualizePlan renders a plan as indented text: the join tree level by
// level, then the join sequence, predicate order, index recommendations,
// and rationale. It reads only the plan and its graph annotations, never
// statistics, so it cannot disagree with the plan it displays.
func VisualizePlan(plan *models.QueryPlan) string {
	var sb strings.Builder
	sb.WriteString("Query Execution Plan\n")
	sb.WriteString("====================\n")

	if plan.Graph != nil && len(plan.Graph.Nodes) > 0 {
		sb.WriteString("\nJoin Tree:\n")
		writeJoinTree(&sb, plan.Graph)
	}

	if len(plan.JoinOrder) > 0 {
		sb.WriteString("\nJoin Sequence:\n")
		for i, step := range plan.JoinOrder {
			fmt.Fprintf(&sb, "  %d. %s -> %s", i+1, step.Parent, step.Child)
			if step.Degenerate {
				sb.WriteString(" (no relationship edge)")
			}
			sb.WriteString("\n")
		}
	}

	if len(plan.PredicateOrder) > 0 {
		sb.WriteString("\nPredicate Order:\n")
		for i, step := range plan.PredicateOrder {
			fmt.Fprintf(&sb, "  %d. WHERE %s.%s = ?\n", i+1, step.Table, step.Column)
		}
	}

	if len(plan.RecommendedIndexes) > 0 {
		sb.WriteString("\nIndex Recommendations:\n")
		for _, rec := range plan.RecommendedIndexes {
			fmt.Fprintf(&sb, "  - %s\n", rec)
		}
	}

	if len(plan.Rationale) > 0 {
		sb.WriteString("\nPlan Rationale:\n")
		for _, line := range plan.Rationale {
			fmt.Fprintf(&sb, "  %s\n", line)
		}
	}

	fmt.Fprintf(&sb, "\nEstimated Cost: %.0f\n", plan.EstimatedCost)
	return sb.String()
}

// writeJoinTree prints the graph breadth-first from its roots, one level of
// indentation per join depth. A cyclic or root-less graph falls back to
// starting from the first node.
func writeJoinTree(sb *strings.Builder, graph *models.PlanGraph) {
	roots := graph.Roots()
	if len(roots) == 0 {
		roots = []string{graph.Nodes[0].Table}
	}

	visited := make(map[string]bool, len(graph.Nodes))
	level := roots
	depth := 0
	for len(level) > 0 {
		var next []string
		for _, table := range level {
			if visited[table] {
				continue
			}
			visited[table] = true
			writeTreeNode(sb, graph.Node(table), depth)
			next = append(next, graph.Successors(table)...)
		}
		level = next
		depth++
	}

	// Nodes unreachable from any root (possible in a cyclic graph).
	for _, node := range graph.Nodes {
		if !visited[node.Table] {
			writeTreeNode(sb, &node, 0)
		}
	}
}

func writeTreeNode(sb *strings.Builder, node *models.PlanNode, depth int) {
	if node == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(sb, "  %s└─ %s (%d rows) [%d indexes]\n", indent, node.Table, node.RowCount, node.IndexCount)
}
