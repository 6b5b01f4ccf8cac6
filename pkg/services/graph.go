package services

import (
	"github.com/BodieCoding/databridge/pkg/models"
)

// JoinEdge is one directed relationship edge (parent -> child) restricted
// to the tables requested for a plan.
type JoinEdge struct {
	Parent       string
	Child        string
	Relationship *models.Relationship
}

// buildJoinEdges collects the relationship edges whose both endpoints are
// in the requested table set, in deterministic order: tables are scanned in
// input order, each table's relationships in declaration order.
func buildJoinEdges(tables []string, relationships map[string][]*models.Relationship) []JoinEdge {
	inSet := make(map[string]bool, len(tables))
	for _, t := range tables {
		inSet[t] = true
	}

	var edges []JoinEdge
	for _, child := range tables {
		for _, rel := range relationships[child] {
			if inSet[rel.ToTable] {
				edges = append(edges, JoinEdge{
					Parent:       rel.ToTable,
					Child:        child,
					Relationship: rel,
				})
			}
		}
	}
	return edges
}

// buildPlanGraph builds the join-step directed graph: nodes are the plan's
// tables annotated with row and index counts, edges are the join steps
// labeled with their 1-based step index. Presentation only.
func buildPlanGraph(tables []string, joinOrder []models.JoinStep, stats map[string]*models.TableStatistics) *models.PlanGraph {
	graph := &models.PlanGraph{}

	for _, table := range tables {
		s := stats[table]
		graph.Nodes = append(graph.Nodes, models.PlanNode{
			Table:      table,
			RowCount:   rowCountOrZero(s),
			IndexCount: s.IndexCount(),
		})
	}

	for i, step := range joinOrder {
		graph.Edges = append(graph.Edges, models.PlanEdge{
			Parent:   step.Parent,
			Child:    step.Child,
			JoinStep: i + 1,
			JoinType: "LEFT JOIN",
		})
	}

	return graph
}

func rowCountOrZero(s *models.TableStatistics) int64 {
	if s == nil {
		return 0
	}
	return s.RowCount
}
