package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/BodieCoding/databridge/pkg/adapters/datasource"
)

// SchemaDiscoverer implements datasource.SchemaDiscoverer for PostgreSQL.
type SchemaDiscoverer struct {
	db         *sql.DB
	schemaName string
	logger     *zap.Logger
}

// NewSchemaDiscoverer creates a PostgreSQL schema discoverer scoped to one
// schema. If logger is nil, a no-op logger is used.
func NewSchemaDiscoverer(db *sql.DB, schemaName string, logger *zap.Logger) *SchemaDiscoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaDiscoverer{db: db, schemaName: schemaName, logger: logger}
}

// DiscoverTables returns all user tables in the schema.
func (s *SchemaDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	query := `
	SELECT
	    n.nspname AS table_schema,
	    c.relname AS table_name,
	    GREATEST(c.reltuples::bigint, 0) AS row_count
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE c.relkind = 'r'
	  AND n.nspname = $1
	ORDER BY n.nspname, c.relname
	`

	rows, err := s.db.QueryContext(ctx, query, s.schemaName)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableMetadata
	for rows.Next() {
		var table datasource.TableMetadata
		if err := rows.Scan(&table.SchemaName, &table.TableName, &table.RowCount); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, table)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}

	return tables, nil
}

// DiscoverColumns returns columns for a specific table.
func (s *SchemaDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	query := `
	SELECT
	    c.column_name,
	    c.data_type,
	    c.is_nullable = 'YES' AS is_nullable,
	    c.ordinal_position,
	    EXISTS (
	        SELECT 1
	        FROM information_schema.table_constraints tc
	        JOIN information_schema.key_column_usage kcu
	          ON tc.constraint_name = kcu.constraint_name
	         AND tc.table_schema = kcu.table_schema
	        WHERE tc.constraint_type = 'PRIMARY KEY'
	          AND tc.table_schema = c.table_schema
	          AND tc.table_name = c.table_name
	          AND kcu.column_name = c.column_name
	    ) AS is_primary_key,
	    c.character_maximum_length,
	    c.numeric_precision,
	    c.numeric_scale
	FROM information_schema.columns c
	WHERE c.table_schema = $1
	  AND c.table_name = $2
	ORDER BY c.ordinal_position
	`

	rows, err := s.db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var col datasource.ColumnMetadata
		var maxLength, precision, scale sql.NullInt64

		err := rows.Scan(
			&col.ColumnName,
			&col.DataType,
			&col.IsNullable,
			&col.OrdinalPosition,
			&col.IsPrimaryKey,
			&maxLength,
			&precision,
			&scale,
		)
		if err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}

		if maxLength.Valid {
			col.MaxLength = &maxLength.Int64
		}
		if precision.Valid {
			col.Precision = &precision.Int64
		}
		if scale.Valid {
			col.Scale = &scale.Int64
		}

		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}

	return columns, nil
}

// DiscoverForeignKeys returns all foreign key relationships in the schema,
// one record per column pair, ordered by constraint then column ordinal.
func (s *SchemaDiscoverer) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	query := `
	SELECT
	    con.conname AS constraint_name,
	    src_ns.nspname AS source_schema,
	    src.relname AS source_table,
	    src_att.attname AS source_column,
	    tgt_ns.nspname AS target_schema,
	    tgt.relname AS target_table,
	    tgt_att.attname AS target_column,
	    cols.ord AS ordinal
	FROM pg_constraint con
	JOIN pg_class src ON src.oid = con.conrelid
	JOIN pg_namespace src_ns ON src_ns.oid = src.relnamespace
	JOIN pg_class tgt ON tgt.oid = con.confrelid
	JOIN pg_namespace tgt_ns ON tgt_ns.oid = tgt.relnamespace
	CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS cols(src_attnum, tgt_attnum, ord)
	JOIN pg_attribute src_att ON src_att.attrelid = src.oid AND src_att.attnum = cols.src_attnum
	JOIN pg_attribute tgt_att ON tgt_att.attrelid = tgt.oid AND tgt_att.attnum = cols.tgt_attnum
	WHERE con.contype = 'f'
	  AND src_ns.nspname = $1
	ORDER BY con.conname, cols.ord
	`

	rows, err := s.db.QueryContext(ctx, query, s.schemaName)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []datasource.ForeignKeyMetadata
	for rows.Next() {
		var fk datasource.ForeignKeyMetadata
		err := rows.Scan(
			&fk.ConstraintName,
			&fk.SourceSchema,
			&fk.SourceTable,
			&fk.SourceColumn,
			&fk.TargetSchema,
			&fk.TargetTable,
			&fk.TargetColumn,
			&fk.Ordinal,
		)
		if err != nil {
			return nil, fmt.Errorf("scan foreign key row: %w", err)
		}
		fks = append(fks, fk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign key rows: %w", err)
	}

	return fks, nil
}

// Close releases the database connection.
func (s *SchemaDiscoverer) Close() error {
	return s.db.Close()
}

var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
