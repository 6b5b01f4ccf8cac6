package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("pg_class").WillReturnRows(
		sqlmock.NewRows([]string{"table_schema", "table_name", "row_count"}).
			AddRow("public", "customers", int64(10_000)).
			AddRow("public", "orders", int64(100_000)),
	)

	tables, err := NewSchemaDiscoverer(db, "public", nil).DiscoverTables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "orders", tables[1].TableName)
}

func TestDiscoverColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("information_schema.columns").WillReturnRows(
		sqlmock.NewRows([]string{
			"column_name", "data_type", "is_nullable", "ordinal_position",
			"is_primary_key", "character_maximum_length", "numeric_precision", "numeric_scale",
		}).
			AddRow("id", "integer", false, 1, true, nil, int64(32), int64(0)).
			AddRow("email", "character varying", true, 2, false, int64(255), nil, nil),
	)

	columns, err := NewSchemaDiscoverer(db, "public", nil).DiscoverColumns(context.Background(), "public", "customers")
	require.NoError(t, err)
	require.Len(t, columns, 2)
	assert.True(t, columns[0].IsPrimaryKey)
	require.NotNil(t, columns[1].MaxLength)
	assert.Equal(t, int64(255), *columns[1].MaxLength)
}

func TestDiscoverForeignKeysCompositeOrdinals(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("pg_constraint").WillReturnRows(
		sqlmock.NewRows([]string{
			"constraint_name", "source_schema", "source_table", "source_column",
			"target_schema", "target_table", "target_column", "ordinal",
		}).
			AddRow("shipments_routes_fkey", "public", "shipments", "route_code", "public", "routes", "code", 1).
			AddRow("shipments_routes_fkey", "public", "shipments", "route_region", "public", "routes", "region", 2),
	)

	fks, err := NewSchemaDiscoverer(db, "public", nil).DiscoverForeignKeys(context.Background())
	require.NoError(t, err)
	require.Len(t, fks, 2)
	assert.Equal(t, "routes", fks[0].TargetTable)
	assert.Equal(t, []int{1, 2}, []int{fks[0].Ordinal, fks[1].Ordinal})
}
