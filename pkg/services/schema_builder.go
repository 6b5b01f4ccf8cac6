package services

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/BodieCoding/databridge/pkg/adapters/datasource"
	"github.com/BodieCoding/databridge/pkg/models"
)

// SchemaBuilder assembles the in-memory schema graph from catalog
// discovery. Discovery is the only time the builder touches the database;
// the resulting graph is read-only downstream.
type SchemaBuilder struct {
	discoverer datasource.SchemaDiscoverer
	logger     *zap.Logger
}

// NewSchemaBuilder creates a schema builder over a catalog discoverer.
// If logger is nil, a no-op logger is used.
func NewSchemaBuilder(discoverer datasource.SchemaDiscoverer, logger *zap.Logger) *SchemaBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaBuilder{discoverer: discoverer, logger: logger}
}

// Build discovers tables, columns, and foreign keys and assembles them into
// a schema graph. Tables are processed in name order so the graph is
// reproducible across runs.
func (b *SchemaBuilder) Build(ctx context.Context, databaseName string) (*models.Schema, error) {
	tables, err := b.discoverer.DiscoverTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover tables: %w", err)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].TableName < tables[j].TableName })

	schema := models.NewSchema(databaseName)
	for _, tm := range tables {
		columns, err := b.discoverer.DiscoverColumns(ctx, tm.SchemaName, tm.TableName)
		if err != nil {
			return nil, fmt.Errorf("discover columns for %s.%s: %w", tm.SchemaName, tm.TableName, err)
		}

		table := &models.Table{
			Name:       tm.TableName,
			SchemaName: tm.SchemaName,
		}
		for _, cm := range columns {
			table.Columns = append(table.Columns, &models.Column{
				Name:            cm.ColumnName,
				DataType:        cm.DataType,
				IsNullable:      cm.IsNullable,
				OrdinalPosition: cm.OrdinalPosition,
				MaxLength:       cm.MaxLength,
				Precision:       cm.Precision,
				Scale:           cm.Scale,
			})
			if cm.IsPrimaryKey {
				table.PrimaryKey = append(table.PrimaryKey, cm.ColumnName)
			}
		}
		schema.Tables[table.Name] = table
	}

	fks, err := b.discoverer.DiscoverForeignKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover foreign keys: %w", err)
	}
	NewRelationshipManager(schema, b.logger).MergeForeignKeys(fks)

	b.logger.Info("built schema graph",
		zap.String("database", databaseName),
		zap.Int("tables", len(schema.Tables)),
		zap.Int("foreign_keys", len(fks)))
	return schema, nil
}

// PopulateIndexes attaches index definitions from extracted statistics
// records to the schema graph's tables. Records for tables the graph
// doesn't know are skipped.
func PopulateIndexes(schema *models.Schema, records []datasource.IndexStatsRecord) {
	for _, rec := range records {
		table, ok := schema.Tables[rec.TableName]
		if !ok {
			continue
		}
		table.Indexes = append(table.Indexes, &models.Index{
			Name:    rec.IndexName,
			Type:    rec.Type,
			Columns: append([]string(nil), rec.KeyColumns...),
		})
		if rec.IsPrimary && len(table.PrimaryKey) == 0 {
			table.PrimaryKey = append([]string(nil), rec.KeyColumns...)
		}
	}
}
