package datasource

import "time"

// TableMetadata represents a discovered database table.
type TableMetadata struct {
	SchemaName string
	TableName  string
	RowCount   int64
}

// ColumnMetadata represents a discovered database column.
type ColumnMetadata struct {
	ColumnName      string
	DataType        string
	IsNullable      bool
	IsPrimaryKey    bool
	OrdinalPosition int
	MaxLength       *int64
	Precision       *int64
	Scale           *int64
}

// ForeignKeyMetadata represents a discovered foreign key constraint.
// Composite keys produce one record per column pair, ordered by Ordinal.
type ForeignKeyMetadata struct {
	ConstraintName string
	SourceSchema   string
	SourceTable    string
	SourceColumn   string
	TargetSchema   string
	TargetTable    string
	TargetColumn   string
	Ordinal        int
}

// IndexStatsRecord is one index row from the schema-wide statistics
// extraction query. KeyColumns preserves catalog key order.
type IndexStatsRecord struct {
	TableName       string
	SchemaName      string
	IndexName       string
	IsUnique        bool
	IsPrimary       bool
	Type            string
	FillFactor      int
	IsClustered     bool
	RowCount        int64
	PageCount       int64
	Fragmentation   float64
	SeekCount       int64
	ScanCount       int64
	LookupCount     int64
	UpdateCount     int64
	LastSeek        *time.Time
	LastScan        *time.Time
	SizeMB          float64
	KeyColumns      []string
	IncludedColumns []string
}
