package models

import "time"

// IndexStatistics holds catalog-reported usage and size statistics for a
// single index. Key column order is significant: Columns[0] is the leading
// column and determines whether the index helps a given predicate.
type IndexStatistics struct {
	IndexName       string
	TableName       string
	SchemaName      string
	Columns         []string // key columns in key order
	IncludedColumns []string // non-key columns carried by the index
	IsUnique        bool
	IsPrimary       bool
	IsClustered     bool
	FillFactor      int
	PageCount       int64
	RowCount        int64
	Fragmentation   float64 // avg fragmentation percent
	SeekCount       int64
	ScanCount       int64
	LookupCount     int64
	UpdateCount     int64
	LastSeek        *time.Time
	LastScan        *time.Time
	SizeMB          float64
	Selectivity     float64 // lower is more selective
	UsageScore      float64 // operations per row; higher is busier
}

// EfficiencyScore combines inverse selectivity, usage rate, and
// fragmentation into a single comparable score. Zero for empty indexes.
func (i *IndexStatistics) EfficiencyScore() float64 {
	if i.RowCount == 0 {
		return 0
	}

	selectivity := i.Selectivity
	if selectivity < 0.001 {
		selectivity = 0.001
	}
	fragmentation := 1 - i.Fragmentation/100
	if fragmentation < 0.1 {
		fragmentation = 0.1
	}

	return (1 / selectivity) * i.UsageScore * fragmentation / 3
}

// ColumnPosition returns the zero-based key position of the column in this
// index, or -1 if the column is not a key column.
func (i *IndexStatistics) ColumnPosition(column string) int {
	for pos, c := range i.Columns {
		if c == column {
			return pos
		}
	}
	return -1
}

// TableStatistics holds statistics for a table and all of its indexes.
// Owned exclusively by the statistics cache; replaced whole on refresh,
// never mutated in place.
type TableStatistics struct {
	TableName   string
	SchemaName  string
	RowCount    int64
	DataSizeMB  float64
	IndexSizeMB float64
	Indexes     map[string]*IndexStatistics
	LastUpdated time.Time
}

// EstimatedRowCount returns the row count floored at 1 so cost formulas
// never divide by zero.
func (t *TableStatistics) EstimatedRowCount() int64 {
	if t == nil || t.RowCount < 1 {
		return 1
	}
	return t.RowCount
}

// IndexCount returns the number of indexes, zero for absent statistics.
func (t *TableStatistics) IndexCount() int {
	if t == nil {
		return 0
	}
	return len(t.Indexes)
}

// IndexEfficiencySum sums the efficiency scores of every index.
func (t *TableStatistics) IndexEfficiencySum() float64 {
	if t == nil {
		return 0
	}
	var sum float64
	for _, idx := range sortedIndexes(t.Indexes) {
		sum += idx.EfficiencyScore()
	}
	return sum
}

// BestIndexFor finds the highest-scoring index whose key columns cover all
// of the given columns. Exact leading-column matches score a 1.5x bonus.
// Returns nil when no index covers the columns.
func (t *TableStatistics) BestIndexFor(columns []string) *IndexStatistics {
	if t == nil {
		return nil
	}

	var best *IndexStatistics
	var bestScore float64

	for _, idx := range sortedIndexes(t.Indexes) {
		if !coversAll(idx.Columns, columns) {
			continue
		}
		score := idx.EfficiencyScore()
		if len(idx.Columns) >= len(columns) && sameSet(idx.Columns[:len(columns)], columns) {
			score *= 1.5
		}
		if score > bestScore {
			bestScore = score
			best = idx
		}
	}
	return best
}

// FindIndexForColumn returns the first index (by name order) containing the
// column as a key column, along with its zero-based position. Returns nil
// and -1 when no index covers the column.
func (t *TableStatistics) FindIndexForColumn(column string) (*IndexStatistics, int) {
	if t == nil {
		return nil, -1
	}
	for _, idx := range sortedIndexes(t.Indexes) {
		if pos := idx.ColumnPosition(column); pos >= 0 {
			return idx, pos
		}
	}
	return nil, -1
}

func coversAll(indexColumns, wanted []string) bool {
	for _, w := range wanted {
		found := false
		for _, c := range indexColumns {
			if c == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			return false
		}
	}
	return true
}
