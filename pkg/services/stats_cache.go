package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BodieCoding/databridge/pkg/adapters/datasource"
	"github.com/BodieCoding/databridge/pkg/models"
)

// StatsProvider supplies table statistics to the optimizers. Absence of
// statistics is a valid state: implementations return (nil, nil) for tables
// that were never indexed, and callers degrade to "unknown size, no
// indexes" rather than fail.
type StatsProvider interface {
	GetTableStatistics(ctx context.Context, table, schema string, forceRefresh bool) (*models.TableStatistics, error)
}

// DefaultCacheTTL is how long cached statistics stay valid unless
// configured otherwise.
const DefaultCacheTTL = 24 * time.Hour

// StatsCache caches per-table index statistics with a time-based expiry.
// The underlying extraction query is schema-wide, so a miss, an expired
// entry, or a forced refresh re-extracts the entire schema in one pass and
// replaces that schema's entries atomically: readers see either the old
// complete snapshot or the new one, never a half-updated mix. There is no
// background eviction; expiry is checked on read.
type StatsCache struct {
	extractor datasource.IndexStatsExtractor
	ttl       time.Duration
	logger    *zap.Logger

	mu          sync.RWMutex
	entries     map[string]*models.TableStatistics // keyed by "schema.table"
	refreshedAt map[string]time.Time               // keyed by "schema.table"

	// now is stubbed in tests to exercise expiry.
	now func() time.Time
}

// NewStatsCache creates a statistics cache around the given extractor.
// A non-positive ttl falls back to DefaultCacheTTL. If logger is nil, a
// no-op logger is used.
func NewStatsCache(extractor datasource.IndexStatsExtractor, ttl time.Duration, logger *zap.Logger) *StatsCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsCache{
		extractor:   extractor,
		ttl:         ttl,
		logger:      logger,
		entries:     make(map[string]*models.TableStatistics),
		refreshedAt: make(map[string]time.Time),
		now:         time.Now,
	}
}

// GetTableStatistics returns cached or fresh statistics for schema.table.
// A nil result with nil error means the table has no recorded statistics;
// callers must treat that as unknown size with no indexes.
func (c *StatsCache) GetTableStatistics(ctx context.Context, table, schema string, forceRefresh bool) (*models.TableStatistics, error) {
	key := cacheKey(schema, table)

	if !forceRefresh {
		c.mu.RLock()
		stats, ok := c.entries[key]
		fresh := ok && c.now().Sub(c.refreshedAt[key]) < c.ttl
		c.mu.RUnlock()
		if fresh {
			return stats, nil
		}
	}

	if err := c.RefreshSchema(ctx, schema); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[key], nil
}

// GetSchemaStatistics returns statistics for every table of the schema,
// sorted by table name. It refreshes the schema when forceRefresh is set or
// when the schema has no cached entries at all.
func (c *StatsCache) GetSchemaStatistics(ctx context.Context, schema string, forceRefresh bool) ([]*models.TableStatistics, error) {
	if forceRefresh || !c.hasSchema(schema) {
		if err := c.RefreshSchema(ctx, schema); err != nil {
			return nil, err
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var stats []*models.TableStatistics
	for key, entry := range c.entries {
		if entry.SchemaName == schema && key == cacheKey(schema, entry.TableName) {
			stats = append(stats, entry)
		}
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].TableName < stats[j].TableName })
	return stats, nil
}

// RefreshSchema re-extracts statistics for the whole schema and replaces
// its cache entries under one write lock.
func (c *StatsCache) RefreshSchema(ctx context.Context, schema string) error {
	records, err := c.extractor.ExtractIndexStats(ctx, schema)
	if err != nil {
		return fmt.Errorf("refresh statistics for schema %q: %w", schema, err)
	}

	tables := buildTableStatistics(schema, records, c.now())

	c.mu.Lock()
	defer c.mu.Unlock()

	// Drop the schema's previous snapshot before installing the new one so
	// tables that lost all their indexes don't linger.
	for key, entry := range c.entries {
		if entry.SchemaName == schema {
			delete(c.entries, key)
			delete(c.refreshedAt, key)
		}
	}

	refreshed := c.now()
	for table, stats := range tables {
		key := cacheKey(schema, table)
		c.entries[key] = stats
		c.refreshedAt[key] = refreshed
	}

	c.logger.Info("refreshed statistics cache",
		zap.String("schema", schema),
		zap.Int("tables", len(tables)))
	return nil
}

func (c *StatsCache) hasSchema(schema string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, entry := range c.entries {
		if entry.SchemaName == schema {
			return true
		}
	}
	return false
}

func cacheKey(schema, table string) string {
	return schema + "." + table
}

// buildTableStatistics aggregates flat extraction records into per-table
// statistics, deriving selectivity and usage scores per index.
func buildTableStatistics(schema string, records []datasource.IndexStatsRecord, now time.Time) map[string]*models.TableStatistics {
	tables := make(map[string]*models.TableStatistics)

	for _, rec := range records {
		table, ok := tables[rec.TableName]
		if !ok {
			table = &models.TableStatistics{
				TableName:   rec.TableName,
				SchemaName:  schema,
				RowCount:    rec.RowCount,
				Indexes:     make(map[string]*models.IndexStatistics),
				LastUpdated: now,
			}
			tables[rec.TableName] = table
		}
		if rec.RowCount > table.RowCount {
			table.RowCount = rec.RowCount
		}

		table.Indexes[rec.IndexName] = &models.IndexStatistics{
			IndexName:       rec.IndexName,
			TableName:       rec.TableName,
			SchemaName:      rec.SchemaName,
			Columns:         rec.KeyColumns,
			IncludedColumns: rec.IncludedColumns,
			IsUnique:        rec.IsUnique,
			IsPrimary:       rec.IsPrimary,
			IsClustered:     rec.IsClustered,
			FillFactor:      rec.FillFactor,
			PageCount:       rec.PageCount,
			RowCount:        rec.RowCount,
			Fragmentation:   rec.Fragmentation,
			SeekCount:       rec.SeekCount,
			ScanCount:       rec.ScanCount,
			LookupCount:     rec.LookupCount,
			UpdateCount:     rec.UpdateCount,
			LastSeek:        rec.LastSeek,
			LastScan:        rec.LastScan,
			SizeMB:          rec.SizeMB,
			Selectivity:     estimateSelectivity(rec),
			UsageScore:      usageScore(rec),
		}

		if rec.IsClustered {
			table.DataSizeMB += rec.SizeMB
		} else {
			table.IndexSizeMB += rec.SizeMB
		}
	}

	return tables
}

// estimateSelectivity derives a selectivity score from uniqueness and
// observed usage patterns. Lower is more selective.
func estimateSelectivity(rec datasource.IndexStatsRecord) float64 {
	rows := rec.RowCount
	if rows < 1 {
		rows = 1
	}
	if rec.IsUnique || rec.IsPrimary {
		return 1.0 / float64(rows)
	}
	// Seek-dominated indexes are likely selective; scan-dominated ones are not.
	if rec.SeekCount > rec.ScanCount {
		return 0.1
	}
	return 0.5
}

// usageScore measures read operations per row.
func usageScore(rec datasource.IndexStatsRecord) float64 {
	rows := rec.RowCount
	if rows < 1 {
		rows = 1
	}
	return float64(rec.SeekCount+rec.ScanCount+rec.LookupCount) / float64(rows)
}

var _ StatsProvider = (*StatsCache)(nil)
