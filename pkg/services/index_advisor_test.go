package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BodieCoding/databridge/pkg/models"
)

func TestRecommendIndexesForUncoveredFilterColumn(t *testing.T) {
	advisor := NewIndexAdvisor(retailStats(), nil)

	recs, err := advisor.RecommendIndexes(context.Background(), "dbo",
		[]string{"orders"},
		map[string][]string{"orders": {"created_at"}},
		nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"CREATE INDEX IX_orders_created_at ON orders (created_at)"}, recs)
}

func TestRecommendIndexesSkipsCoveredColumns(t *testing.T) {
	advisor := NewIndexAdvisor(retailStats(), nil)

	recs, err := advisor.RecommendIndexes(context.Background(), "dbo",
		[]string{"orders", "customers"},
		map[string][]string{"orders": {"status"}, "customers": {"country"}},
		nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRecommendIndexesCoversSecondKeyPosition(t *testing.T) {
	stats := stubStatsProvider{
		"events": tableStats("events", 50_000,
			index("IX_events_type_ts", 0.1, 1.0, "event_type", "occurred_at"),
		),
	}
	advisor := NewIndexAdvisor(stats, nil)

	// occurred_at sits at key position 2, which still serves a filter.
	recs, err := advisor.RecommendIndexes(context.Background(), "dbo",
		[]string{"events"},
		map[string][]string{"events": {"occurred_at"}},
		nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRecommendIndexesForUnindexedForeignKey(t *testing.T) {
	stats := stubStatsProvider{
		"orders": tableStats("orders", 100_000,
			index("PK_orders", 0.00001, 2.0, "id"),
		),
	}
	advisor := NewIndexAdvisor(stats, nil)
	relationships := map[string][]*models.Relationship{
		"orders": {{
			FromTable: "orders",
			ToTable:   "customers",
			Columns:   []models.RelationshipColumn{{FromColumn: "customer_id", ToColumn: "id"}},
		}},
	}

	recs, err := advisor.RecommendIndexes(context.Background(), "dbo",
		[]string{"orders"}, nil, relationships)
	require.NoError(t, err)
	assert.Equal(t, []string{"CREATE INDEX IX_orders_customer_id_FK ON orders (customer_id)"}, recs)
}

func TestRecommendIndexesJoinColumnMustLeadIndex(t *testing.T) {
	stats := stubStatsProvider{
		"orders": tableStats("orders", 100_000,
			// customer_id is present but only at the second key position,
			// which doesn't serve the join.
			index("IX_orders_status_customer", 0.1, 1.0, "status", "customer_id"),
		),
	}
	advisor := NewIndexAdvisor(stats, nil)
	relationships := map[string][]*models.Relationship{
		"orders": {{
			FromTable: "orders",
			ToTable:   "customers",
			Columns:   []models.RelationshipColumn{{FromColumn: "customer_id", ToColumn: "id"}},
		}},
	}

	recs, err := advisor.RecommendIndexes(context.Background(), "dbo",
		[]string{"orders"}, nil, relationships)
	require.NoError(t, err)
	assert.Equal(t, []string{"CREATE INDEX IX_orders_customer_id_FK ON orders (customer_id)"}, recs)
}

func TestRecommendIndexesSkipsTablesWithoutStats(t *testing.T) {
	advisor := NewIndexAdvisor(stubStatsProvider{}, nil)

	recs, err := advisor.RecommendIndexes(context.Background(), "dbo",
		[]string{"ghost"},
		map[string][]string{"ghost": {"anything"}},
		nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
