package datasource

import "context"

// IndexStatsExtractor extracts per-index usage statistics from a live
// database catalog. The extraction query is schema-wide by design: one call
// returns records for every indexed table in the schema.
//
// Each implementation owns its connection and must be closed when done.
// Callers own the context timeout; extraction is the only blocking I/O in
// the optimization pipeline.
type IndexStatsExtractor interface {
	// ExtractIndexStats returns one record per index in the schema.
	ExtractIndexStats(ctx context.Context, schemaName string) ([]IndexStatsRecord, error)

	// Close releases the database connection.
	Close() error
}

// SchemaDiscoverer discovers tables, columns, and foreign keys to build the
// schema graph. This is the catalog-extraction collaborator: the optimizer
// consumes its output and never queries the catalog itself.
type SchemaDiscoverer interface {
	// DiscoverTables returns all user tables in the schema.
	DiscoverTables(ctx context.Context) ([]TableMetadata, error)

	// DiscoverColumns returns columns for a specific table.
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error)

	// DiscoverForeignKeys returns all foreign key relationships.
	DiscoverForeignKeys(ctx context.Context) ([]ForeignKeyMetadata, error)

	// Close releases the database connection.
	Close() error
}
