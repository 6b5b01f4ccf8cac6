package mssql

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var statsColumns = []string{
	"table_name", "schema_name", "index_name", "is_unique", "is_primary_key",
	"type_desc", "fill_factor", "is_clustered", "row_count", "page_count",
	"avg_fragmentation", "user_seeks", "user_scans", "user_lookups",
	"user_updates", "last_user_seek", "last_user_scan", "size_mb",
	"key_columns", "included_columns",
}

func TestExtractIndexStatsParsesRecords(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lastSeek := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("sys.indexes").WillReturnRows(
		sqlmock.NewRows(statsColumns).
			AddRow("orders", "dbo", "PK_orders", true, true,
				"CLUSTERED", 90, 1, int64(100_000), int64(5_000),
				2.5, int64(900), int64(50), int64(10),
				int64(200), lastSeek, nil, 312.5,
				"id", nil).
			AddRow("orders", "dbo", "IX_orders_customer_status", false, false,
				"NONCLUSTERED", 0, 0, int64(100_000), int64(800),
				35.0, int64(400), int64(5), int64(0),
				int64(100), nil, nil, 50.0,
				"customer_id,status", "created_at"),
	)

	records, err := NewStatsExtractor(db, nil).ExtractIndexStats(context.Background(), "dbo")
	require.NoError(t, err)
	require.Len(t, records, 2)

	pk := records[0]
	assert.Equal(t, "orders", pk.TableName)
	assert.True(t, pk.IsPrimary)
	assert.True(t, pk.IsClustered)
	assert.Equal(t, []string{"id"}, pk.KeyColumns)
	require.NotNil(t, pk.LastSeek)
	assert.Equal(t, lastSeek, *pk.LastSeek)
	assert.Nil(t, pk.LastScan)

	ix := records[1]
	assert.False(t, ix.IsClustered)
	assert.Equal(t, []string{"customer_id", "status"}, ix.KeyColumns)
	assert.Equal(t, []string{"created_at"}, ix.IncludedColumns)
	assert.InDelta(t, 35.0, ix.Fragmentation, 1e-9)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExtractIndexStatsQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("sys.indexes").WillReturnError(assert.AnError)

	_, err = NewStatsExtractor(db, nil).ExtractIndexStats(context.Background(), "dbo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query index statistics")
}
