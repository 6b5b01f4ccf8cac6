package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Report thresholds. Tables above the row threshold with fewer than two
// indexes are flagged; indexes above the fragmentation threshold need a
// rebuild or reorganize.
const (
	underIndexedRowThreshold  = 1000
	underIndexedMaxIndexes    = 2
	fragmentationPctThreshold = 30.0
)

// TableReport summarizes one table's index health.
type TableReport struct {
	TableName     string  `json:"table_name"`
	RowCount      int64   `json:"row_count"`
	IndexCount    int     `json:"index_count"`
	EfficiencySum float64 `json:"efficiency_sum"`
	DataSizeMB    float64 `json:"data_size_mb"`
	IndexSizeMB   float64 `json:"index_size_mb"`
}

// FragmentedIndex is an index whose fragmentation exceeds the threshold.
type FragmentedIndex struct {
	TableName     string  `json:"table_name"`
	IndexName     string  `json:"index_name"`
	Fragmentation float64 `json:"fragmentation_pct"`
	SizeMB        float64 `json:"size_mb"`
}

// OptimizationReport is a schema-wide index health summary.
type OptimizationReport struct {
	SchemaName        string            `json:"schema_name"`
	TableCount        int               `json:"table_count"`
	IndexCount        int               `json:"index_count"`
	TotalRows         int64             `json:"total_rows"`
	Tables            []TableReport     `json:"tables"`
	UnderIndexed      []TableReport     `json:"under_indexed_tables"`
	FragmentedIndexes []FragmentedIndex `json:"fragmented_indexes"`
}

// Reporter builds schema-wide optimization reports from cached statistics.
type Reporter struct {
	cache  *StatsCache
	logger *zap.Logger
}

// NewReporter creates a reporter over a statistics cache.
// If logger is nil, a no-op logger is used.
func NewReporter(cache *StatsCache, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{cache: cache, logger: logger}
}

// Report summarizes index health for every table of the schema: per-table
// efficiency, large tables with fewer than two indexes, and indexes over
// the fragmentation threshold. Tables appear in name order.
func (r *Reporter) Report(ctx context.Context, schema string, forceRefresh bool) (*OptimizationReport, error) {
	stats, err := r.cache.GetSchemaStatistics(ctx, schema, forceRefresh)
	if err != nil {
		return nil, fmt.Errorf("report for schema %q: %w", schema, err)
	}

	report := &OptimizationReport{SchemaName: schema}
	for _, table := range stats {
		tr := TableReport{
			TableName:     table.TableName,
			RowCount:      table.RowCount,
			IndexCount:    table.IndexCount(),
			EfficiencySum: table.IndexEfficiencySum(),
			DataSizeMB:    table.DataSizeMB,
			IndexSizeMB:   table.IndexSizeMB,
		}
		report.Tables = append(report.Tables, tr)
		report.TableCount++
		report.IndexCount += tr.IndexCount
		report.TotalRows += table.RowCount

		if table.RowCount > underIndexedRowThreshold && tr.IndexCount < underIndexedMaxIndexes {
			report.UnderIndexed = append(report.UnderIndexed, tr)
		}
		for _, idx := range table.SortedIndexes() {
			if idx.Fragmentation > fragmentationPctThreshold {
				report.FragmentedIndexes = append(report.FragmentedIndexes, FragmentedIndex{
					TableName:     table.TableName,
					IndexName:     idx.IndexName,
					Fragmentation: idx.Fragmentation,
					SizeMB:        idx.SizeMB,
				})
			}
		}
	}

	r.logger.Info("built optimization report",
		zap.String("schema", schema),
		zap.Int("tables", report.TableCount),
		zap.Int("under_indexed", len(report.UnderIndexed)),
		zap.Int("fragmented_indexes", len(report.FragmentedIndexes)))
	return report, nil
}

// Render formats the report as indented text for terminal display.
func (rep *OptimizationReport) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Index Optimization Report: schema %s\n", rep.SchemaName)
	fmt.Fprintf(&sb, "  Tables: %d, Indexes: %d, Total rows: %d\n", rep.TableCount, rep.IndexCount, rep.TotalRows)

	if len(rep.Tables) > 0 {
		sb.WriteString("\nPer-table index efficiency:\n")
		for _, t := range rep.Tables {
			fmt.Fprintf(&sb, "  %-30s %10d rows  %2d indexes  efficiency %.2f\n",
				t.TableName, t.RowCount, t.IndexCount, t.EfficiencySum)
		}
	}

	if len(rep.UnderIndexed) > 0 {
		sb.WriteString("\nUnder-indexed tables (large, fewer than 2 indexes):\n")
		for _, t := range rep.UnderIndexed {
			fmt.Fprintf(&sb, "  %-30s %10d rows  %d indexes\n", t.TableName, t.RowCount, t.IndexCount)
		}
	}

	if len(rep.FragmentedIndexes) > 0 {
		sb.WriteString("\nFragmented indexes (over 30%):\n")
		for _, f := range rep.FragmentedIndexes {
			fmt.Fprintf(&sb, "  %s.%s  %.1f%% fragmented  %.1f MB\n", f.TableName, f.IndexName, f.Fragmentation, f.SizeMB)
		}
	}

	return sb.String()
}
