package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BodieCoding/databridge/pkg/models"
)

func TestOptimizeJoinOrderStartsFromFilteredSelectiveTable(t *testing.T) {
	schema := testSchema()
	opt := NewJoinOrderOptimizer(retailStats(), nil, nil)

	steps, disconnected, err := opt.OptimizeJoinOrder(context.Background(), "dbo",
		[]string{"orders", "customers"},
		schema.Relationships,
		map[string][]string{"customers": {"country"}})
	require.NoError(t, err)
	assert.False(t, disconnected)
	require.Len(t, steps, 1)

	// Filtered customers is the cheaper anchor despite input order.
	assert.Equal(t, "customers", steps[0].Parent)
	assert.Equal(t, "orders", steps[0].Child)
	assert.False(t, steps[0].Degenerate)
}

func TestOptimizeJoinOrderChainsThreeTables(t *testing.T) {
	schema := testSchema()
	opt := NewJoinOrderOptimizer(retailStats(), nil, nil)

	steps, disconnected, err := opt.OptimizeJoinOrder(context.Background(), "dbo",
		[]string{"order_items", "customers", "orders"},
		schema.Relationships,
		map[string][]string{"customers": {"country"}})
	require.NoError(t, err)
	assert.False(t, disconnected)
	require.Len(t, steps, 2)

	// Every step must connect to the already joined set.
	joined := map[string]bool{steps[0].Parent: true, steps[0].Child: true}
	assert.True(t, joined[steps[1].Parent] || joined[steps[1].Child])
	for _, step := range steps {
		assert.False(t, step.Degenerate)
	}
}

func TestOptimizeJoinOrderMissingStatsStillJoinsAlongEdges(t *testing.T) {
	schema := testSchema()
	stats := retailStats()
	delete(stats, "orders")
	opt := NewJoinOrderOptimizer(stats, nil, nil)

	steps, disconnected, err := opt.OptimizeJoinOrder(context.Background(), "dbo",
		[]string{"customers", "orders"},
		schema.Relationships, nil)
	require.NoError(t, err)

	// No statistics makes the edge infinitely expensive, but the
	// relationship still exists: no degenerate attachment.
	assert.False(t, disconnected)
	require.Len(t, steps, 1)
	assert.False(t, steps[0].Degenerate)
}

func TestOptimizeJoinOrderDisconnectedTablesAttach(t *testing.T) {
	stats := stubStatsProvider{
		"a": tableStats("a", 10),
		"b": tableStats("b", 20),
		"c": tableStats("c", 30),
	}
	opt := NewJoinOrderOptimizer(stats, nil, nil)

	steps, disconnected, err := opt.OptimizeJoinOrder(context.Background(), "dbo",
		[]string{"a", "b", "c"}, nil, nil)
	require.NoError(t, err)
	assert.True(t, disconnected)
	require.Len(t, steps, 2)
	for _, step := range steps {
		assert.True(t, step.Degenerate)
	}
}

func TestOptimizeJoinOrderSingleTable(t *testing.T) {
	opt := NewJoinOrderOptimizer(retailStats(), nil, nil)

	steps, disconnected, err := opt.OptimizeJoinOrder(context.Background(), "dbo",
		[]string{"customers"}, nil, nil)
	require.NoError(t, err)
	assert.False(t, disconnected)
	assert.Empty(t, steps)
}

func TestOptimizeJoinOrderDeterministic(t *testing.T) {
	schema := testSchema()
	opt := NewJoinOrderOptimizer(retailStats(), nil, nil)
	tables := []string{"order_items", "orders", "customers"}
	filters := map[string][]string{"orders": {"status"}}

	first, _, err := opt.OptimizeJoinOrder(context.Background(), "dbo", tables, schema.Relationships, filters)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, _, err := opt.OptimizeJoinOrder(context.Background(), "dbo", tables, schema.Relationships, filters)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEstimateTotalCostSkipsUnknownTables(t *testing.T) {
	stats := stubStatsProvider{
		"a": tableStats("a", 100, index("PK_a", 0.01, 1.0, "id")),
		"b": tableStats("b", 200, index("PK_b", 0.005, 1.0, "id")),
	}
	opt := NewJoinOrderOptimizer(stats, nil, nil)

	withUnknown, err := opt.EstimateTotalCost(context.Background(), "dbo", []models.JoinStep{
		{Parent: "a", Child: "b"},
		{Parent: "b", Child: "ghost"},
	}, nil)
	require.NoError(t, err)

	known, err := opt.EstimateTotalCost(context.Background(), "dbo", []models.JoinStep{
		{Parent: "a", Child: "b"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, known, withUnknown)
	assert.Greater(t, known, 0.0)
}

func TestFilteredRowEstimateCutsTenfoldPerFilter(t *testing.T) {
	stats := tableStats("t", 10_000)
	assert.Equal(t, 10_000.0, filteredRowEstimate(stats, nil))
	assert.Equal(t, 1_000.0, filteredRowEstimate(stats, []string{"a"}))
	assert.Equal(t, 100.0, filteredRowEstimate(stats, []string{"a", "b"}))
}

func TestFilteredRowEstimateFloorsEmptyTables(t *testing.T) {
	stats := tableStats("t", 0)
	assert.Equal(t, 1.0, filteredRowEstimate(stats, nil))
}
