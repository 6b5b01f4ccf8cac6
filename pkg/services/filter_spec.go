package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BodieCoding/databridge/pkg/apperrors"
	"github.com/BodieCoding/databridge/pkg/models"
	dbsql "github.com/BodieCoding/databridge/pkg/sql"
)

// FilterSpec is the normalized filter specification: per-table column lists
// plus bound values when the caller supplied the "table.column" -> value
// shape. Both accepted input shapes normalize to this representation before
// optimization, so downstream code sees a single form.
type FilterSpec struct {
	// tables holds filter tables in deterministic order.
	tables []string
	// columns maps table -> filtered columns, preserving caller order for
	// the per-table shape and key-sorted order for the value shape.
	columns map[string][]string
	// values maps "table.column" -> bound value, empty for the column shape.
	values map[string]any
}

// NewFilterSpecFromColumns builds a FilterSpec from the
// {table: [col1, col2]} shape. Table order is sorted for determinism;
// column order within a table is preserved.
func NewFilterSpecFromColumns(filterColumns map[string][]string) FilterSpec {
	tables := make([]string, 0, len(filterColumns))
	columns := make(map[string][]string, len(filterColumns))
	for table, cols := range filterColumns {
		tables = append(tables, table)
		columns[table] = append([]string(nil), cols...)
	}
	sort.Strings(tables)

	return FilterSpec{tables: tables, columns: columns, values: map[string]any{}}
}

// NewFilterSpecFromValues builds a FilterSpec from the
// {"table.column": value} shape. Keys are sorted for determinism.
func NewFilterSpecFromValues(filterValues map[string]any) (FilterSpec, error) {
	keys := make([]string, 0, len(filterValues))
	for key := range filterValues {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	spec := FilterSpec{columns: map[string][]string{}, values: map[string]any{}}
	for _, key := range keys {
		table, column, ok := strings.Cut(key, ".")
		if !ok {
			return FilterSpec{}, fmt.Errorf("filter key %q is not of the form table.column", key)
		}
		if _, seen := spec.columns[table]; !seen {
			spec.tables = append(spec.tables, table)
		}
		spec.columns[table] = append(spec.columns[table], column)
		spec.values[key] = filterValues[key]
	}
	sort.Strings(spec.tables)

	return spec, nil
}

// IsEmpty reports whether no filter was specified.
func (f FilterSpec) IsEmpty() bool {
	return len(f.tables) == 0
}

// Tables returns the filter tables in deterministic order.
func (f FilterSpec) Tables() []string {
	return f.tables
}

// Columns returns the filtered columns of a table, in filter order.
func (f FilterSpec) Columns(table string) []string {
	return f.columns[table]
}

// ColumnsByTable returns the per-table column-list form consumed by the
// optimizers.
func (f FilterSpec) ColumnsByTable() map[string][]string {
	out := make(map[string][]string, len(f.columns))
	for table, cols := range f.columns {
		out[table] = cols
	}
	return out
}

// Contains reports whether the (table, column) pair is part of the filter.
func (f FilterSpec) Contains(table, column string) bool {
	for _, col := range f.columns[table] {
		if col == column {
			return true
		}
	}
	return false
}

// Value returns the bound value for table.column and whether one was given.
func (f FilterSpec) Value(table, column string) (any, bool) {
	v, ok := f.values[table+"."+column]
	return v, ok
}

// Validate checks the filter against the schema graph. A filter referencing
// an unknown table or column is a caller error: it indicates a mismatched
// schema version and is reported, never silently dropped. String values are
// additionally screened for SQL injection patterns.
func (f FilterSpec) Validate(schema *models.Schema) error {
	if f.IsEmpty() {
		return apperrors.ErrEmptyFilterSpec
	}

	for _, table := range f.tables {
		tbl, ok := schema.Tables[table]
		if !ok {
			return fmt.Errorf("filter references table %q: %w", table, apperrors.ErrTableNotFound)
		}
		for _, column := range f.columns[table] {
			if err := dbsql.ValidateIdentifiers(table, column); err != nil {
				return fmt.Errorf("invalid filter reference: %w", err)
			}
			if tbl.Column(column) == nil {
				return fmt.Errorf("filter references column %q on table %q: %w",
					column, table, apperrors.ErrColumnNotFound)
			}
		}
	}

	if results := dbsql.CheckAllValues(f.values); len(results) > 0 {
		sort.Slice(results, func(i, j int) bool { return results[i].ParamName < results[j].ParamName })
		return fmt.Errorf("filter value for %q (fingerprint %s): %w",
			results[0].ParamName, results[0].Fingerprint, apperrors.ErrUnsafeFilterValue)
	}

	return nil
}
