// Package export serializes the schema graph to JSON, YAML, or XML for
// curation and tooling interchange. The relationship CSV consumed by the
// relationship manager can be produced by editing these exports.
package export

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BodieCoding/databridge/pkg/models"
)

// Format identifies a serialization format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXML  Format = "xml"
)

// schemaDocument is the serialized shape: map-keyed tables become a sorted
// list so exports diff cleanly across runs.
type schemaDocument struct {
	XMLName       xml.Name               `json:"-" yaml:"-" xml:"schema"`
	DatabaseName  string                 `json:"database_name" yaml:"database_name" xml:"database_name"`
	Tables        []*models.Table        `json:"tables" yaml:"tables" xml:"tables>table"`
	Relationships []*models.Relationship `json:"relationships" yaml:"relationships" xml:"relationships>relationship"`
}

func buildDocument(schema *models.Schema) *schemaDocument {
	doc := &schemaDocument{DatabaseName: schema.DatabaseName}

	names := make([]string, 0, len(schema.Tables))
	for name := range schema.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		doc.Tables = append(doc.Tables, schema.Tables[name])
	}

	children := make([]string, 0, len(schema.Relationships))
	for child := range schema.Relationships {
		children = append(children, child)
	}
	sort.Strings(children)
	for _, child := range children {
		doc.Relationships = append(doc.Relationships, schema.Relationships[child]...)
	}

	return doc
}

// WriteSchema serializes the schema graph to w in the given format. Tables
// and relationships are sorted by name, so identical schemas produce
// identical bytes.
func WriteSchema(w io.Writer, schema *models.Schema, format Format) error {
	doc := buildDocument(schema)

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode schema as json: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode schema as yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("finish yaml encoding: %w", err)
		}
	case FormatXML:
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return fmt.Errorf("encode schema as xml: %w", err)
		}
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode schema as xml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("finish xml encoding: %w", err)
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return fmt.Errorf("encode schema as xml: %w", err)
		}
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
	return nil
}

// WriteSchemaFile serializes the schema to a file, inferring the format
// from the extension (.json, .yaml, .yml, .xml).
func WriteSchemaFile(path string, schema *models.Schema) error {
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = FormatJSON
	case ".yaml", ".yml":
		format = FormatYAML
	case ".xml":
		format = FormatXML
	default:
		return fmt.Errorf("cannot infer export format from %q", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	if err := WriteSchema(f, schema, format); err != nil {
		return fmt.Errorf("export schema to %s: %w", path, err)
	}
	return f.Close()
}

// ReadSchema deserializes a schema graph previously written by WriteSchema.
func ReadSchema(r io.Reader, format Format) (*models.Schema, error) {
	var doc schemaDocument
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode schema json: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode schema yaml: %w", err)
		}
	case FormatXML:
		if err := xml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode schema xml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}

	schema := models.NewSchema(doc.DatabaseName)
	for _, table := range doc.Tables {
		schema.Tables[table.Name] = table
	}
	for _, rel := range doc.Relationships {
		schema.AddRelationship(rel)
	}
	return schema, nil
}
