package services

import (
	"context"
	"time"

	"github.com/BodieCoding/databridge/pkg/models"
)

// stubStatsProvider serves canned statistics keyed by table name. Missing
// tables return (nil, nil) like the real cache.
type stubStatsProvider map[string]*models.TableStatistics

func (s stubStatsProvider) GetTableStatistics(_ context.Context, table, _ string, _ bool) (*models.TableStatistics, error) {
	return s[table], nil
}

func tableStats(name string, rows int64, indexes ...*models.IndexStatistics) *models.TableStatistics {
	ts := &models.TableStatistics{
		TableName:   name,
		SchemaName:  "dbo",
		RowCount:    rows,
		Indexes:     make(map[string]*models.IndexStatistics, len(indexes)),
		LastUpdated: time.Now(),
	}
	for _, idx := range indexes {
		idx.TableName = name
		idx.RowCount = rows
		ts.Indexes[idx.IndexName] = idx
	}
	return ts
}

func index(name string, selectivity, usage float64, columns ...string) *models.IndexStatistics {
	return &models.IndexStatistics{
		IndexName:   name,
		Columns:     columns,
		Selectivity: selectivity,
		UsageScore:  usage,
	}
}

// testSchema is a small retail schema: orders reference customers and
// products, order_items reference orders.
func testSchema() *models.Schema {
	schema := models.NewSchema("retail")

	schema.Tables["customers"] = &models.Table{
		Name: "customers",
		Columns: []*models.Column{
			{Name: "id", DataType: "int"},
			{Name: "name", DataType: "varchar"},
			{Name: "country", DataType: "varchar"},
		},
		PrimaryKey: []string{"id"},
	}
	schema.Tables["orders"] = &models.Table{
		Name: "orders",
		Columns: []*models.Column{
			{Name: "id", DataType: "int"},
			{Name: "customer_id", DataType: "int"},
			{Name: "status", DataType: "varchar"},
			{Name: "created_at", DataType: "datetime"},
		},
		PrimaryKey: []string{"id"},
	}
	schema.Tables["order_items"] = &models.Table{
		Name: "order_items",
		Columns: []*models.Column{
			{Name: "id", DataType: "int"},
			{Name: "order_id", DataType: "int"},
			{Name: "quantity", DataType: "int"},
		},
		PrimaryKey: []string{"id"},
	}

	schema.AddRelationship(&models.Relationship{
		FromTable: "orders",
		ToTable:   "customers",
		Type:      models.RelationshipManyToOne,
		Columns:   []models.RelationshipColumn{{FromColumn: "customer_id", ToColumn: "id"}},
	})
	schema.AddRelationship(&models.Relationship{
		FromTable: "order_items",
		ToTable:   "orders",
		Type:      models.RelationshipManyToOne,
		Columns:   []models.RelationshipColumn{{FromColumn: "order_id", ToColumn: "id"}},
	})

	return schema
}

// retailStats gives customers a selective filtered start and orders a
// larger row count, so join-order expectations are unambiguous.
func retailStats() stubStatsProvider {
	return stubStatsProvider{
		"customers": tableStats("customers", 10_000,
			index("PK_customers", 0.0001, 2.0, "id"),
			index("IX_customers_country", 0.1, 3.0, "country"),
		),
		"orders": tableStats("orders", 100_000,
			index("PK_orders", 0.00001, 2.0, "id"),
			index("IX_orders_customer", 0.1, 1.5, "customer_id"),
			index("IX_orders_status", 0.5, 0.3, "status"),
		),
		"order_items": tableStats("order_items", 500_000,
			index("PK_order_items", 0.000002, 1.0, "id"),
			index("IX_order_items_order", 0.1, 1.0, "order_id"),
		),
	}
}
