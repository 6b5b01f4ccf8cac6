package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var statsColumns = []string{
	"table_name", "schema_name", "index_name", "is_unique", "is_primary",
	"index_type", "fill_factor", "is_clustered", "row_count", "page_count",
	"idx_scan", "idx_tup_read", "idx_tup_fetch", "last_idx_scan",
	"size_mb", "key_columns", "included_columns",
}

func TestExtractIndexStatsMapsCounters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lastScan := time.Date(2026, 8, 10, 9, 30, 0, 0, time.UTC)
	mock.ExpectQuery("pg_index").WillReturnRows(
		sqlmock.NewRows(statsColumns).
			AddRow("orders", "public", "orders_pkey", true, true,
				"btree", 100, false, int64(100_000), int64(2_000),
				int64(900), int64(5_000), int64(800), lastScan,
				40.5, "id", nil).
			AddRow("orders", "public", "orders_customer_idx", false, false,
				"btree", 90, false, int64(100_000), int64(300),
				int64(50), int64(400), int64(30), nil,
				5.0, "customer_id", "status"),
	)

	records, err := NewStatsExtractor(db, nil).ExtractIndexStats(context.Background(), "public")
	require.NoError(t, err)
	require.Len(t, records, 2)

	pk := records[0]
	// pg counters map onto the generic record: idx_scan is the seek count,
	// idx_tup_read the scan count, idx_tup_fetch the lookup count.
	assert.Equal(t, int64(900), pk.SeekCount)
	assert.Equal(t, int64(5_000), pk.ScanCount)
	assert.Equal(t, int64(800), pk.LookupCount)
	require.NotNil(t, pk.LastSeek)
	assert.Equal(t, lastScan, *pk.LastSeek)
	assert.Zero(t, pk.Fragmentation)

	ix := records[1]
	assert.Equal(t, []string{"customer_id"}, ix.KeyColumns)
	assert.Equal(t, []string{"status"}, ix.IncludedColumns)
	assert.Nil(t, ix.LastSeek)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExtractIndexStatsQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("pg_index").WillReturnError(assert.AnError)

	_, err = NewStatsExtractor(db, nil).ExtractIndexStats(context.Background(), "public")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query index statistics")
}
