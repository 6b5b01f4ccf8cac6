package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/BodieCoding/databridge/pkg/adapters/datasource"
	"github.com/BodieCoding/databridge/pkg/apperrors"
	"github.com/BodieCoding/databridge/pkg/models"
	dbsql "github.com/BodieCoding/databridge/pkg/sql"
)

// csvHeader is the expected column order of a relationship CSV file.
var csvHeader = []string{"from_table", "to_table", "relationship_type", "from_column", "to_column", "ordinal"}

// RelationshipManager maintains the relationship edges of a schema graph.
// Edges come from two sources: discovered foreign keys and a curated CSV
// file for relationships the catalog doesn't declare (soft foreign keys,
// cross-schema links). Curated edges win on conflict.
type RelationshipManager struct {
	schema *models.Schema
	logger *zap.Logger
}

// NewRelationshipManager creates a manager over a schema graph.
// If logger is nil, a no-op logger is used.
func NewRelationshipManager(schema *models.Schema, logger *zap.Logger) *RelationshipManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelationshipManager{schema: schema, logger: logger}
}

// LoadCSVFile loads curated relationships from a CSV file path.
func (m *RelationshipManager) LoadCSVFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open relationships file: %w", err)
	}
	defer f.Close()

	if err := m.LoadCSV(f); err != nil {
		return fmt.Errorf("load relationships from %s: %w", path, err)
	}
	return nil
}

// LoadCSV reads curated relationships from CSV with the header
// from_table,to_table,relationship_type,from_column,to_column,ordinal.
// Rows sharing (from_table, to_table) merge into one composite relationship
// with column pairs ordered by ordinal. A curated edge replaces any
// previously loaded edge between the same pair of tables.
func (m *RelationshipManager) LoadCSV(r io.Reader) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	for i, want := range csvHeader {
		if header[i] != want {
			return fmt.Errorf("unexpected header column %d: got %q, want %q", i, header[i], want)
		}
	}

	type edgeKey struct{ from, to string }
	merged := make(map[edgeKey]*models.Relationship)
	var order []edgeKey

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read line %d: %w", line, err)
		}

		from, to, relType := record[0], record[1], record[2]
		fromCol, toCol := record[3], record[4]
		if err := dbsql.ValidateIdentifiers(from, to, fromCol, toCol); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		ordinal, err := strconv.Atoi(record[5])
		if err != nil {
			return fmt.Errorf("line %d: ordinal %q is not a number", line, record[5])
		}

		key := edgeKey{from, to}
		rel, ok := merged[key]
		if !ok {
			rel = &models.Relationship{FromTable: from, ToTable: to, Type: relType}
			merged[key] = rel
			order = append(order, key)
		}
		rel.Columns = append(rel.Columns, models.RelationshipColumn{
			FromColumn: fromCol,
			ToColumn:   toCol,
			Ordinal:    ordinal,
		})
	}

	for _, key := range order {
		rel := merged[key]
		sort.SliceStable(rel.Columns, func(i, j int) bool {
			return rel.Columns[i].Ordinal < rel.Columns[j].Ordinal
		})
		m.replaceEdge(rel)
	}

	m.logger.Info("loaded curated relationships", zap.Int("count", len(order)))
	return nil
}

// MergeForeignKeys adds discovered foreign keys to the schema graph.
// Records are grouped by constraint, composite pairs ordered by ordinal. A
// discovered edge never overrides an existing edge between the same tables;
// the curated file takes precedence.
func (m *RelationshipManager) MergeForeignKeys(fks []datasource.ForeignKeyMetadata) {
	grouped := make(map[string]*models.Relationship)
	var order []string

	for _, fk := range fks {
		key := fk.SourceTable + "\x00" + fk.ConstraintName
		rel, ok := grouped[key]
		if !ok {
			rel = &models.Relationship{
				FromTable: fk.SourceTable,
				ToTable:   fk.TargetTable,
				Type:      models.RelationshipManyToOne,
			}
			grouped[key] = rel
			order = append(order, key)
		}
		rel.Columns = append(rel.Columns, models.RelationshipColumn{
			FromColumn: fk.SourceColumn,
			ToColumn:   fk.TargetColumn,
			Ordinal:    fk.Ordinal,
		})
	}

	added := 0
	for _, key := range order {
		rel := grouped[key]
		sort.SliceStable(rel.Columns, func(i, j int) bool {
			return rel.Columns[i].Ordinal < rel.Columns[j].Ordinal
		})
		if m.schema.RelationshipBetween(rel.FromTable, rel.ToTable) != nil {
			continue
		}
		m.schema.AddRelationship(rel)
		added++
	}

	m.logger.Info("merged discovered foreign keys",
		zap.Int("constraints", len(order)),
		zap.Int("added", added))
}

// Validate checks every relationship edge against the schema's tables and
// columns. Edges naming unknown tables or columns indicate a stale curated
// file or a schema drift and are reported, not dropped.
func (m *RelationshipManager) Validate() error {
	for _, child := range sortedRelationshipKeys(m.schema) {
		for _, rel := range m.schema.Relationships[child] {
			childTbl, ok := m.schema.Tables[rel.FromTable]
			if !ok {
				return fmt.Errorf("relationship %s -> %s: %w", rel.FromTable, rel.ToTable, apperrors.ErrTableNotFound)
			}
			parentTbl, ok := m.schema.Tables[rel.ToTable]
			if !ok {
				return fmt.Errorf("relationship %s -> %s: %w", rel.FromTable, rel.ToTable, apperrors.ErrTableNotFound)
			}
			for _, pair := range rel.Columns {
				if childTbl.Column(pair.FromColumn) == nil {
					return fmt.Errorf("relationship %s -> %s: column %s.%s: %w",
						rel.FromTable, rel.ToTable, rel.FromTable, pair.FromColumn, apperrors.ErrColumnNotFound)
				}
				if parentTbl.Column(pair.ToColumn) == nil {
					return fmt.Errorf("relationship %s -> %s: column %s.%s: %w",
						rel.FromTable, rel.ToTable, rel.ToTable, pair.ToColumn, apperrors.ErrColumnNotFound)
				}
			}
		}
	}
	return nil
}

// TopLevelTables returns tables no edge points at, sorted. Edges point at
// the referenced parent, so these are the child-most tables of the graph,
// the natural entry points for a top-down walk.
func (m *RelationshipManager) TopLevelTables() []string {
	referenced := make(map[string]bool)
	for _, rels := range m.schema.Relationships {
		for _, rel := range rels {
			referenced[rel.ToTable] = true
		}
	}

	var roots []string
	for name := range m.schema.Tables {
		if !referenced[name] {
			roots = append(roots, name)
		}
	}
	sort.Strings(roots)
	return roots
}

// Children returns the tables referencing the given table, sorted.
func (m *RelationshipManager) Children(table string) []string {
	var children []string
	for _, child := range sortedRelationshipKeys(m.schema) {
		for _, rel := range m.schema.Relationships[child] {
			if rel.ToTable == table {
				children = append(children, child)
				break
			}
		}
	}
	return children
}

// Parents returns the tables the given table references, in edge order.
func (m *RelationshipManager) Parents(table string) []string {
	var parents []string
	for _, rel := range m.schema.Relationships[table] {
		parents = append(parents, rel.ToTable)
	}
	return parents
}

// replaceEdge installs rel, removing any existing edge between the same
// child and parent first.
func (m *RelationshipManager) replaceEdge(rel *models.Relationship) {
	existing := m.schema.Relationships[rel.FromTable]
	kept := existing[:0]
	for _, e := range existing {
		if e.ToTable != rel.ToTable {
			kept = append(kept, e)
		}
	}
	m.schema.Relationships[rel.FromTable] = append(kept, rel)
}

func sortedRelationshipKeys(schema *models.Schema) []string {
	keys := make([]string, 0, len(schema.Relationships))
	for key := range schema.Relationships {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
