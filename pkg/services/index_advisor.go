package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BodieCoding/databridge/pkg/models"
)

// IndexAdvisor inspects filter and join columns against existing indexes
// and emits index-creation suggestions. Suggestions are advisory SQL text,
// never executed.
type IndexAdvisor struct {
	stats  StatsProvider
	logger *zap.Logger
}

// NewIndexAdvisor creates a missing-index advisor.
// If logger is nil, a no-op logger is used.
func NewIndexAdvisor(stats StatsProvider, logger *zap.Logger) *IndexAdvisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexAdvisor{stats: stats, logger: logger}
}

// RecommendIndexes emits create-index suggestions for filtered columns not
// covered within the first two key positions of any existing index, and
// for child-side join columns that lead no existing index. Tables without
// recorded statistics produce no suggestions: with no catalog data there is
// nothing to compare against.
func (a *IndexAdvisor) RecommendIndexes(
	ctx context.Context,
	schema string,
	tables []string,
	filterColumns map[string][]string,
	relationships map[string][]*models.Relationship,
) ([]string, error) {
	var recommendations []string
	seen := make(map[string]bool)

	add := func(suggestion string) {
		if !seen[suggestion] {
			seen[suggestion] = true
			recommendations = append(recommendations, suggestion)
		}
	}

	for _, table := range tables {
		columns := filterColumns[table]
		if len(columns) == 0 {
			continue
		}

		stats, err := a.stats.GetTableStatistics(ctx, table, schema, false)
		if err != nil {
			return nil, err
		}
		if stats == nil {
			continue
		}

		for _, column := range columns {
			if !hasIndexWithin(stats, column, 2) {
				add(fmt.Sprintf("CREATE INDEX IX_%s_%s ON %s (%s)", table, column, table, column))
			}
		}
	}

	for _, table := range tables {
		rels := relationships[table]
		if len(rels) == 0 {
			continue
		}

		stats, err := a.stats.GetTableStatistics(ctx, table, schema, false)
		if err != nil {
			return nil, err
		}
		if stats == nil {
			continue
		}

		for _, rel := range rels {
			for _, pair := range rel.Columns {
				if !hasIndexWithin(stats, pair.FromColumn, 1) {
					add(fmt.Sprintf("CREATE INDEX IX_%s_%s_FK ON %s (%s)", table, pair.FromColumn, table, pair.FromColumn))
				}
			}
		}
	}

	a.logger.Debug("index recommendations", zap.Int("count", len(recommendations)))
	return recommendations, nil
}

// hasIndexWithin reports whether any index has the column within its first
// maxPosition key columns (1 = leading only, 2 = leading or second).
func hasIndexWithin(stats *models.TableStatistics, column string, maxPosition int) bool {
	for _, idx := range stats.SortedIndexes() {
		if pos := idx.ColumnPosition(column); pos >= 0 && pos < maxPosition {
			return true
		}
	}
	return false
}
