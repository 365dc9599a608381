package models

import (
	"time"

	"github.com/google/uuid"
)

// ColumnType enumerates the supported column types
type ColumnType string

const (
	ColumnString  ColumnType = "string"
	ColumnInteger ColumnType = "integer"
	ColumnFloat   ColumnType = "float"
	ColumnBoolean ColumnType = "boolean"
	ColumnDate    ColumnType = "date"
)

// KnownColumnType reports whether t is one of the supported types
func KnownColumnType(t ColumnType) bool {
	switch t {
	case ColumnString, ColumnInteger, ColumnFloat, ColumnBoolean, ColumnDate:
		return true
	}
	return false
}

// Column describes one column of a dataset schema
type Column struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Required bool       `json:"required"`

	// Original name before a rename, if the column was renamed on upload
	RenamedFrom *string `json:"renamed_from,omitempty"`
}

// Schema is the JSON schema of a dataset table
type Schema struct {
	Columns []Column `json:"columns"`

	// Column used as stable row identity for diffing. When empty,
	// diffs fall back to positional matching.
	KeyColumn string `json:"key_column,omitempty"`
}

// ColumnNames returns the declared column names in order
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// Column returns the column with the given name, or nil
func (s *Schema) Column(name string) *Column {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i]
		}
	}
	return nil
}

// Dataset represents a named, schema-typed table owned by a project.
// Maps to: datasets table
type Dataset struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ProjectID uuid.UUID `db:"project_id" json:"project_id"`
	Name      string    `db:"name" json:"name"`

	Schema Schema  `db:"schema" json:"schema"`
	Rules  RuleSet `db:"rules" json:"rules"`

	// Pointer to the latest materialized version, -1 before the first one
	CurrentVersion int64 `db:"current_version" json:"current_version"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Row is one table row keyed by column name
type Row map[string]any

// TablePayload is the full state of a dataset at one version
type TablePayload struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}
