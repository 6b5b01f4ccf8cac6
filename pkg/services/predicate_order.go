package services

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/BodieCoding/databridge/pkg/models"
)

// PredicateOrderOptimizer orders a table's filtered columns by estimated
// index benefit, so leading index columns on efficient indexes are
// evaluated first and prune rows earliest.
type PredicateOrderOptimizer struct {
	stats  StatsProvider
	logger *zap.Logger
}

// NewPredicateOrderOptimizer creates a predicate-order optimizer.
// If logger is nil, a no-op logger is used.
func NewPredicateOrderOptimizer(stats StatsProvider, logger *zap.Logger) *PredicateOrderOptimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PredicateOrderOptimizer{stats: stats, logger: logger}
}

// OptimizePredicateOrder returns the columns reordered by descending index
// benefit. Columns with no supporting index score 0. The sort is stable, so
// ties keep input order, and the result is idempotent under re-application.
func (o *PredicateOrderOptimizer) OptimizePredicateOrder(ctx context.Context, table, schema string, columns []string) ([]string, error) {
	stats, err := o.stats.GetTableStatistics(ctx, table, schema, false)
	if err != nil {
		return nil, err
	}

	ordered := append([]string(nil), columns...)
	if stats == nil {
		return ordered, nil
	}

	scores := make(map[string]float64, len(columns))
	for _, column := range columns {
		scores[column] = predicateScore(stats, column)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return scores[ordered[i]] > scores[ordered[j]]
	})

	o.logger.Debug("optimized predicate order",
		zap.String("table", table),
		zap.Strings("columns", ordered))
	return ordered, nil
}

// predicateScore sums, over every index containing the column, the key
// position weight 1/(position+1) times the index efficiency score.
func predicateScore(stats *models.TableStatistics, column string) float64 {
	var score float64
	for _, idx := range stats.SortedIndexes() {
		if pos := idx.ColumnPosition(column); pos >= 0 {
			score += (1.0 / float64(pos+1)) * idx.EfficiencyScore()
		}
	}
	return score
}
