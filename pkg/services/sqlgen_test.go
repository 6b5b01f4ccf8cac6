package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BodieCoding/databridge/pkg/apperrors"
	"github.com/BodieCoding/databridge/pkg/config"
	"github.com/BodieCoding/databridge/pkg/models"
)

func newTestBuilder(stats StatsProvider, cfg config.OptimizerConfig) *QueryBuilder {
	schema := testSchema()
	planner := NewPlanner(stats, nil, cfg, nil)
	return NewQueryBuilder(schema, "dbo", planner, nil)
}

func TestGenerateOptimizedSelectRendersJoinedQuery(t *testing.T) {
	builder := newTestBuilder(retailStats(), attachPolicy())

	filter, err := NewFilterSpecFromValues(map[string]any{"customers.country": "US"})
	require.NoError(t, err)

	result, err := builder.GenerateOptimizedSelect(context.Background(), filter)
	require.NoError(t, err)
	require.NotNil(t, result.Plan)

	assert.Contains(t, result.SQL, "-- Optimized query based on index analysis")
	assert.Contains(t, result.SQL, "-- Estimated cost:")
	assert.Contains(t, result.SQL, "FROM customers T1")
	assert.Contains(t, result.SQL, "LEFT JOIN orders T2 ON T2.customer_id = T1.id")
	assert.Contains(t, result.SQL, "WHERE T1.country = ?")
	assert.Contains(t, result.SQL, "T1.country AS T1_country")
	assert.Equal(t, []any{"US"}, result.Args)
	assert.NotEmpty(t, result.Visualization)

	assert.Equal(t, 1, strings.Count(result.SQL, "LEFT JOIN"))
}

func TestGenerateOptimizedSelectExpandsOneHop(t *testing.T) {
	builder := newTestBuilder(retailStats(), attachPolicy())

	// Filtering orders pulls in its parent (customers) and child (order_items).
	filter, err := NewFilterSpecFromValues(map[string]any{"orders.status": "shipped"})
	require.NoError(t, err)

	result, err := builder.GenerateOptimizedSelect(context.Background(), filter)
	require.NoError(t, err)
	require.NotNil(t, result.Plan)
	assert.Equal(t, []string{"customers", "order_items", "orders"}, result.Plan.Tables)
	assert.Equal(t, 2, strings.Count(result.SQL, "LEFT JOIN"))
}

func TestGenerateOptimizedSelectDeterministic(t *testing.T) {
	builder := newTestBuilder(retailStats(), attachPolicy())

	filter, err := NewFilterSpecFromValues(map[string]any{
		"orders.status":     "shipped",
		"customers.country": "US",
	})
	require.NoError(t, err)

	first, err := builder.GenerateOptimizedSelect(context.Background(), filter)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := builder.GenerateOptimizedSelect(context.Background(), filter)
		require.NoError(t, err)
		assert.Equal(t, first.SQL, again.SQL)
		assert.Equal(t, first.Args, again.Args)
	}
}

func TestGenerateOptimizedSelectEmptyFilterSelectsAllTables(t *testing.T) {
	builder := newTestBuilder(retailStats(), attachPolicy())

	result, err := builder.GenerateOptimizedSelect(context.Background(), FilterSpec{})
	require.NoError(t, err)
	require.NotNil(t, result.Plan)
	assert.Equal(t, []string{"customers", "order_items", "orders"}, result.Plan.Tables)
	assert.NotContains(t, result.SQL, "WHERE")
	assert.Empty(t, result.Args)
}

func TestGenerateOptimizedSelectRejectsUnknownFilterTable(t *testing.T) {
	builder := newTestBuilder(retailStats(), attachPolicy())

	filter := NewFilterSpecFromColumns(map[string][]string{"ghost": {"id"}})
	_, err := builder.GenerateOptimizedSelect(context.Background(), filter)
	require.Error(t, err)
}

func TestGenerateOptimizedSelectFallsBackOnPlannerError(t *testing.T) {
	builder := newTestBuilder(errStatsProvider{}, attachPolicy())

	filter, err := NewFilterSpecFromValues(map[string]any{"orders.status": "shipped"})
	require.NoError(t, err)

	result, err := builder.GenerateOptimizedSelect(context.Background(), filter)
	require.NoError(t, err)
	assert.Nil(t, result.Plan)
	assert.Contains(t, result.SQL, "-- Fallback query (no plan available)")
	assert.Contains(t, result.SQL, "FROM customers T1")
	assert.Contains(t, result.SQL, "WHERE")
}

func TestGenerateOptimizedSelectDisabledOptimizerUsesFallback(t *testing.T) {
	cfg := config.OptimizerConfig{Enabled: false, OnDisconnected: config.DisconnectedAttach}
	builder := newTestBuilder(retailStats(), cfg)

	filter, err := NewFilterSpecFromValues(map[string]any{"orders.status": "shipped"})
	require.NoError(t, err)

	result, err := builder.GenerateOptimizedSelect(context.Background(), filter)
	require.NoError(t, err)
	assert.Nil(t, result.Plan)
	assert.Contains(t, result.SQL, "-- Fallback query (no plan available)")
}

func TestGenerateOptimizedSelectDisconnectedErrorPolicyFailsCall(t *testing.T) {
	schema := models.NewSchema("test")
	schema.Tables["warehouses"] = &models.Table{Name: "warehouses",
		Columns: []*models.Column{{Name: "id", DataType: "int"}}}
	schema.Tables["couriers"] = &models.Table{Name: "couriers",
		Columns: []*models.Column{{Name: "id", DataType: "int"}}}

	cfg := config.OptimizerConfig{Enabled: true, OnDisconnected: config.DisconnectedError}
	planner := NewPlanner(stubStatsProvider{}, nil, cfg, nil)
	builder := NewQueryBuilder(schema, "dbo", planner, nil)

	// No fallback here: the fallback would guess the join the policy
	// rejects.
	_, err := builder.GenerateOptimizedSelect(context.Background(), FilterSpec{})
	require.ErrorIs(t, err, apperrors.ErrDisconnectedJoinGraph)
}

func TestRenderSQLRootOverrideRendersStepFromOtherSide(t *testing.T) {
	builder := newTestBuilder(retailStats(), attachPolicy())
	plan := &models.QueryPlan{
		Tables:    []string{"customers", "orders"},
		JoinOrder: []models.JoinStep{{Parent: "customers", Child: "orders"}},
	}

	// With orders as root, the step's parent is the side still to be
	// joined; customers must not be left as a dangling SELECT alias.
	sql, _ := builder.RenderSQL(plan, FilterSpec{}, "orders")
	assert.Contains(t, sql, "FROM orders T1")
	assert.Contains(t, sql, "LEFT JOIN customers T2 ON T1.customer_id = T2.id")
	assert.Equal(t, 1, strings.Count(sql, "LEFT JOIN"))
}

func TestRenderSQLStepPointingIntoJoinedSet(t *testing.T) {
	builder := newTestBuilder(retailStats(), attachPolicy())

	// The second step attaches customers by naming the already-joined root
	// as its child. customers still needs its own LEFT JOIN.
	plan := &models.QueryPlan{
		Tables: []string{"customers", "order_items", "orders"},
		JoinOrder: []models.JoinStep{
			{Parent: "orders", Child: "order_items"},
			{Parent: "customers", Child: "orders"},
		},
	}

	sql, _ := builder.RenderSQL(plan, FilterSpec{}, "")
	assert.Contains(t, sql, "FROM orders T1")
	assert.Contains(t, sql, "LEFT JOIN order_items T2 ON T2.order_id = T1.id")
	assert.Contains(t, sql, "LEFT JOIN customers T3 ON T1.customer_id = T3.id")
	assert.Equal(t, 2, strings.Count(sql, "LEFT JOIN"))
}

func TestRenderSQLJoinsEveryAliasedTable(t *testing.T) {
	builder := newTestBuilder(retailStats(), attachPolicy())

	// orders appears in no join step but is part of the plan; it must be
	// attached rather than selected unjoined.
	plan := &models.QueryPlan{Tables: []string{"customers", "orders"}}

	sql, _ := builder.RenderSQL(plan, FilterSpec{}, "")
	assert.Contains(t, sql, "FROM customers T1")
	assert.Contains(t, sql, "LEFT JOIN orders T2 ON T2.customer_id = T1.id")
}

func TestRenderSQLIgnoresOverrideOutsidePlan(t *testing.T) {
	builder := newTestBuilder(retailStats(), attachPolicy())
	plan := &models.QueryPlan{
		Tables:    []string{"customers", "orders"},
		JoinOrder: []models.JoinStep{{Parent: "customers", Child: "orders"}},
	}

	sql, _ := builder.RenderSQL(plan, FilterSpec{}, "ghost")
	assert.Contains(t, sql, "FROM customers T1")
}

func TestRenderSQLGuessedJoinForDegenerateStep(t *testing.T) {
	schema := models.NewSchema("test")
	schema.Tables["warehouses"] = &models.Table{Name: "warehouses",
		Columns: []*models.Column{{Name: "id", DataType: "int"}}}
	schema.Tables["couriers"] = &models.Table{Name: "couriers",
		Columns: []*models.Column{{Name: "id", DataType: "int"}}}

	planner := NewPlanner(stubStatsProvider{}, nil, attachPolicy(), nil)
	builder := NewQueryBuilder(schema, "dbo", planner, nil)

	plan := &models.QueryPlan{
		Tables:    []string{"warehouses", "couriers"},
		JoinOrder: []models.JoinStep{{Parent: "warehouses", Child: "couriers", Degenerate: true}},
	}

	sql, _ := builder.RenderSQL(plan, FilterSpec{}, "")
	assert.Contains(t, sql, "LEFT JOIN couriers T2 ON T2.warehouse_id = T1.id")
	assert.Contains(t, sql, "-- guessed join: no relationship between warehouses and couriers")
}

func TestRenderSQLReversedRelationshipEdge(t *testing.T) {
	builder := newTestBuilder(retailStats(), attachPolicy())

	// The step points parent->child against the foreign key direction:
	// orders holds the key into customers.
	plan := &models.QueryPlan{
		Tables:    []string{"orders", "customers"},
		JoinOrder: []models.JoinStep{{Parent: "orders", Child: "customers"}},
	}

	sql, _ := builder.RenderSQL(plan, FilterSpec{}, "")
	assert.Contains(t, sql, "FROM orders T1")
	assert.Contains(t, sql, "LEFT JOIN customers T2 ON T1.customer_id = T2.id")
}

func TestRenderSQLNoTables(t *testing.T) {
	builder := newTestBuilder(retailStats(), attachPolicy())
	sql, args := builder.RenderSQL(&models.QueryPlan{}, FilterSpec{}, "")
	assert.Equal(t, "-- no tables to query", sql)
	assert.Empty(t, args)
}

func TestRenderSQLPredicateOrderDrivesWhereAndArgs(t *testing.T) {
	builder := newTestBuilder(retailStats(), attachPolicy())

	filter, err := NewFilterSpecFromValues(map[string]any{
		"orders.status":     "shipped",
		"orders.created_at": "2026-01-01",
	})
	require.NoError(t, err)

	plan := &models.QueryPlan{
		Tables: []string{"orders"},
		PredicateOrder: []models.PredicateStep{
			{Table: "orders", Column: "status"},
			{Table: "orders", Column: "created_at"},
		},
	}

	sql, args := builder.RenderSQL(plan, filter, "")
	statusPos := strings.Index(sql, "T1.status = ?")
	createdPos := strings.Index(sql, "T1.created_at = ?")
	require.GreaterOrEqual(t, statusPos, 0)
	require.GreaterOrEqual(t, createdPos, 0)
	assert.Less(t, statusPos, createdPos)
	assert.Equal(t, []any{"shipped", "2026-01-01"}, args)
}

// errStatsProvider fails every lookup, forcing the fallback path.
type errStatsProvider struct{}

func (errStatsProvider) GetTableStatistics(_ context.Context, _, _ string, _ bool) (*models.TableStatistics, error) {
	return nil, errors.New("statistics source unavailable")
}
