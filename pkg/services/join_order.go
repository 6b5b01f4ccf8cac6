package services

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/BodieCoding/databridge/pkg/models"
)

// Cost-model constants. Each filter predicate is assumed to cut candidate
// rows by one order of magnitude; tables with more indexes join cheaper,
// floored so a heavily indexed table never becomes free.
const (
	filterReductionBase = 10.0
	minIndexFactor      = 0.1
	minEfficiencySum    = 0.1
)

// JoinCostFunc estimates the cost of joining child onto parent. Infinite
// cost means at least one side has no recorded statistics.
type JoinCostFunc func(parent, child string) float64

// OrderStrategy turns a table set, its relationship edges, and a cost
// function into an ordered sequence of join steps. The greedy strategy is
// the default; the interface exists so an exhaustive or dynamic-programming
// planner can be substituted without touching the rest of the pipeline.
type OrderStrategy interface {
	// OrderTables returns |tables|-1 join steps growing outward from start.
	// disconnected reports whether any step had to be attached without a
	// relationship edge.
	OrderTables(start string, tables []string, edges []JoinEdge, cost JoinCostFunc) (steps []models.JoinStep, disconnected bool)
}

// JoinOrderOptimizer computes a statistics-driven join order.
type JoinOrderOptimizer struct {
	stats    StatsProvider
	strategy OrderStrategy
	logger   *zap.Logger
}

// NewJoinOrderOptimizer creates a join-order optimizer. A nil strategy
// selects the greedy default; a nil logger selects a no-op logger.
func NewJoinOrderOptimizer(stats StatsProvider, strategy OrderStrategy, logger *zap.Logger) *JoinOrderOptimizer {
	if strategy == nil {
		strategy = GreedyOrderStrategy{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JoinOrderOptimizer{stats: stats, strategy: strategy, logger: logger}
}

// OptimizeJoinOrder computes an ordered sequence of (parent, child) join
// steps for the requested tables. For identical statistics and identical
// input ordering the output sequence is identical: no unordered iteration
// feeds the result.
func (o *JoinOrderOptimizer) OptimizeJoinOrder(
	ctx context.Context,
	schema string,
	tables []string,
	relationships map[string][]*models.Relationship,
	filterColumns map[string][]string,
) ([]models.JoinStep, bool, error) {
	if len(tables) < 2 {
		return nil, false, nil
	}

	stats, err := o.collectStats(ctx, schema, tables)
	if err != nil {
		return nil, false, err
	}

	edges := buildJoinEdges(tables, relationships)
	cost := func(parent, child string) float64 {
		return joinCost(stats[parent], stats[child], filterColumns[parent], filterColumns[child])
	}

	start := findBestStartTable(tables, stats, filterColumns)
	steps, disconnected := o.strategy.OrderTables(start, tables, edges, cost)

	o.logger.Debug("optimized join order",
		zap.String("start", start),
		zap.Int("steps", len(steps)),
		zap.Bool("disconnected", disconnected))
	return steps, disconnected, nil
}

// EstimateTotalCost sums the join costs of an already-computed order.
// Infinite per-step costs (missing statistics) are excluded so one unknown
// table doesn't swamp the estimate.
func (o *JoinOrderOptimizer) EstimateTotalCost(
	ctx context.Context,
	schema string,
	joinOrder []models.JoinStep,
	filterColumns map[string][]string,
) (float64, error) {
	var total float64
	for _, step := range joinOrder {
		parentStats, err := o.stats.GetTableStatistics(ctx, step.Parent, schema, false)
		if err != nil {
			return 0, err
		}
		childStats, err := o.stats.GetTableStatistics(ctx, step.Child, schema, false)
		if err != nil {
			return 0, err
		}
		cost := joinCost(parentStats, childStats, filterColumns[step.Parent], filterColumns[step.Child])
		if !math.IsInf(cost, 1) {
			total += cost
		}
	}
	return total, nil
}

func (o *JoinOrderOptimizer) collectStats(ctx context.Context, schema string, tables []string) (map[string]*models.TableStatistics, error) {
	stats := make(map[string]*models.TableStatistics, len(tables))
	for _, table := range tables {
		s, err := o.stats.GetTableStatistics(ctx, table, schema, false)
		if err != nil {
			return nil, err
		}
		if s != nil {
			stats[table] = s
		}
	}
	return stats, nil
}

// joinCost estimates the cost of joining two tables: filtered row counts
// multiplied together, discounted by each side's index factor. Tables
// without statistics cost infinity so they sort last.
func joinCost(parent, child *models.TableStatistics, parentFilters, childFilters []string) float64 {
	if parent == nil || child == nil {
		return math.Inf(1)
	}

	parentRows := filteredRowEstimate(parent, parentFilters)
	childRows := filteredRowEstimate(child, childFilters)

	return parentRows * childRows * indexFactor(parent) * indexFactor(child)
}

// filteredRowEstimate divides the row count (floored at 1) by 10 per filter
// column on the table.
func filteredRowEstimate(stats *models.TableStatistics, filters []string) float64 {
	rows := float64(stats.EstimatedRowCount())
	if len(filters) > 0 {
		rows /= math.Pow(filterReductionBase, float64(len(filters)))
	}
	return rows
}

func indexFactor(stats *models.TableStatistics) float64 {
	indexes := stats.IndexCount()
	if indexes < 1 {
		indexes = 1
	}
	factor := 1.0 / float64(indexes)
	if factor < minIndexFactor {
		factor = minIndexFactor
	}
	return factor
}

// findBestStartTable picks the table minimizing estimated filtered rows
// divided by the summed index efficiency of its indexes. Tables without
// statistics are skipped; ties keep the earlier input table; if nothing has
// statistics the first input table wins.
func findBestStartTable(tables []string, stats map[string]*models.TableStatistics, filterColumns map[string][]string) string {
	best := tables[0]
	bestScore := math.Inf(1)

	for _, table := range tables {
		s, ok := stats[table]
		if !ok {
			continue
		}

		rows := filteredRowEstimate(s, filterColumns[table])
		efficiency := s.IndexEfficiencySum()
		if efficiency < minEfficiencySum {
			efficiency = minEfficiencySum
		}

		if score := rows / efficiency; score < bestScore {
			bestScore = score
			best = table
		}
	}

	return best
}

// GreedyOrderStrategy grows the joined set one table at a time, always
// taking the globally cheapest (joined, unjoined) edge in either direction.
// Not globally optimal; deterministic for fixed inputs.
type GreedyOrderStrategy struct{}

// OrderTables implements OrderStrategy.
func (GreedyOrderStrategy) OrderTables(start string, tables []string, edges []JoinEdge, cost JoinCostFunc) ([]models.JoinStep, bool) {
	if len(tables) < 2 {
		return nil, false
	}

	// Precompute directed costs for existing edges only.
	type pair struct{ parent, child string }
	edgeCost := make(map[pair]float64, len(edges))
	for _, e := range edges {
		edgeCost[pair{e.Parent, e.Child}] = cost(e.Parent, e.Child)
	}

	joined := []string{start}
	inJoined := map[string]bool{start: true}
	var remaining []string
	for _, t := range tables {
		if t != start {
			remaining = append(remaining, t)
		}
	}

	var steps []models.JoinStep
	disconnected := false

	for len(remaining) > 0 {
		var best *models.JoinStep
		bestCost := math.Inf(1)
		bestHasEdge := false

		// Scan joined x remaining in insertion order; strict comparisons
		// keep the first-found pair on ties. An infinite-cost edge (missing
		// statistics) still beats no edge at all.
		for _, j := range joined {
			for _, r := range remaining {
				if c, ok := edgeCost[pair{j, r}]; ok {
					if !bestHasEdge || c < bestCost {
						bestCost = c
						best = &models.JoinStep{Parent: j, Child: r}
						bestHasEdge = true
					}
				}
				if c, ok := edgeCost[pair{r, j}]; ok {
					if !bestHasEdge || c < bestCost {
						bestCost = c
						best = &models.JoinStep{Parent: r, Child: j}
						bestHasEdge = true
					}
				}
			}
		}

		if best == nil {
			// Disconnected subgraph: attach the next table to the start
			// table so traversal terminates. The join condition will be a
			// guess; the planner surfaces this in rationale.
			disconnected = true
			best = &models.JoinStep{Parent: joined[0], Child: remaining[0], Degenerate: true}
		}

		steps = append(steps, *best)

		newTable := best.Child
		if inJoined[newTable] {
			newTable = best.Parent
		}
		joined = append(joined, newTable)
		inJoined[newTable] = true
		remaining = removeTable(remaining, newTable)
	}

	return steps, disconnected
}

func removeTable(tables []string, table string) []string {
	out := tables[:0]
	for _, t := range tables {
		if t != table {
			out = append(out, t)
		}
	}
	return out
}

var _ OrderStrategy = GreedyOrderStrategy{}
