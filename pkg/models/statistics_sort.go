package models

import "sort"

// SortedIndexes returns the table's indexes ordered by name. Optimizer
// scoring iterates indexes through this so that floating-point accumulation
// order, and therefore plan output, never depends on map iteration order.
func (t *TableStatistics) SortedIndexes() []*IndexStatistics {
	if t == nil {
		return nil
	}
	return sortedIndexes(t.Indexes)
}

func sortedIndexes(m map[string]*IndexStatistics) []*IndexStatistics {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*IndexStatistics, len(names))
	for i, name := range names {
		out[i] = m[name]
	}
	return out
}
