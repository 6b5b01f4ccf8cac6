package models

// Column represents a table column discovered from the catalog.
// Immutable once extracted.
type Column struct {
	Name            string `json:"name" yaml:"name" xml:"name"`
	DataType        string `json:"data_type" yaml:"data_type" xml:"data_type"`
	IsNullable      bool   `json:"is_nullable" yaml:"is_nullable" xml:"is_nullable"`
	OrdinalPosition int    `json:"ordinal_position" yaml:"ordinal_position" xml:"ordinal_position"`
	MaxLength       *int64 `json:"max_length,omitempty" yaml:"max_length,omitempty" xml:"max_length,omitempty"`
	Precision       *int64 `json:"precision,omitempty" yaml:"precision,omitempty" xml:"precision,omitempty"`
	Scale           *int64 `json:"scale,omitempty" yaml:"scale,omitempty" xml:"scale,omitempty"`
}

// Index describes an index as seen by the schema graph: its name, kind,
// and key columns in key order. Usage statistics live on IndexStatistics,
// owned by the statistics cache.
type Index struct {
	Name    string   `json:"name" yaml:"name" xml:"name"`
	Type    string   `json:"type" yaml:"type" xml:"type"` // CLUSTERED, NONCLUSTERED, UNIQUE, ...
	Columns []string `json:"columns" yaml:"columns" xml:"columns>column"`
}

// Table represents a discovered database table with its columns, primary
// key, and indexes. Column order follows ordinal position.
type Table struct {
	Name       string    `json:"name" yaml:"name" xml:"name"`
	SchemaName string    `json:"schema_name,omitempty" yaml:"schema_name,omitempty" xml:"schema_name,omitempty"`
	Columns    []*Column `json:"columns" yaml:"columns" xml:"columns>column"`
	PrimaryKey []string  `json:"primary_key,omitempty" yaml:"primary_key,omitempty" xml:"primary_key>column,omitempty"`
	Indexes    []*Index  `json:"indexes,omitempty" yaml:"indexes,omitempty" xml:"indexes>index,omitempty"`
}

// Column returns the named column, or nil if the table has no such column.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// RelationshipColumn is one (child column, parent column) pair of a
// relationship. Ordinal orders the pairs of a composite key.
type RelationshipColumn struct {
	FromColumn string `json:"from_column" yaml:"from_column" xml:"from_column"`
	ToColumn   string `json:"to_column" yaml:"to_column" xml:"to_column"`
	Ordinal    int    `json:"ordinal,omitempty" yaml:"ordinal,omitempty" xml:"ordinal,omitempty"`
}

// Relationship is a directed edge from a child table to the parent table
// it references. Columns supports composite foreign keys.
type Relationship struct {
	FromTable string               `json:"from_table" yaml:"from_table" xml:"from_table"` // child
	ToTable   string               `json:"to_table" yaml:"to_table" xml:"to_table"`       // parent (referenced side)
	Type      string               `json:"relationship_type" yaml:"relationship_type" xml:"relationship_type"`
	Columns   []RelationshipColumn `json:"columns" yaml:"columns" xml:"columns>column"`
}

// Relationship types
const (
	RelationshipManyToOne  = "many-to-one"
	RelationshipOneToOne   = "one-to-one"
	RelationshipManyToMany = "many-to-many"
	RelationshipUnknown    = "unknown"
)

// Schema is the in-memory schema graph: tables keyed by name plus directed
// relationship edges keyed by child table. Built once per discovery and
// read-only to the optimizer; a new discovery produces a new Schema.
type Schema struct {
	DatabaseName  string                     `json:"database_name,omitempty" yaml:"database_name,omitempty"`
	Tables        map[string]*Table          `json:"tables" yaml:"tables"`
	Relationships map[string][]*Relationship `json:"relationships,omitempty" yaml:"relationships,omitempty"`
}

// NewSchema creates an empty schema graph.
func NewSchema(databaseName string) *Schema {
	return &Schema{
		DatabaseName:  databaseName,
		Tables:        make(map[string]*Table),
		Relationships: make(map[string][]*Relationship),
	}
}

// AddRelationship appends a relationship edge under its child table.
func (s *Schema) AddRelationship(rel *Relationship) {
	s.Relationships[rel.FromTable] = append(s.Relationships[rel.FromTable], rel)
}

// RelationshipBetween returns the edge connecting child to parent, or nil.
func (s *Schema) RelationshipBetween(child, parent string) *Relationship {
	for _, rel := range s.Relationships[child] {
		if rel.ToTable == parent {
			return rel
		}
	}
	return nil
}
