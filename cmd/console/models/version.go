package models

import (
	"time"

	"github.com/google/uuid"
)

// OperationKind classifies what produced a version
type OperationKind string

const (
	OpCreateTable OperationKind = "create_table"
	OpWrite       OperationKind = "write"
	OpAppend      OperationKind = "append"
	OpMerge       OperationKind = "merge"
	OpRestore     OperationKind = "restore"
)

// Version is one immutable, numbered materialization of a dataset's
// full state. Versions are never mutated or deleted.
// Maps to: versions table, keyed (dataset_id, version)
type Version struct {
	DatasetID uuid.UUID     `db:"dataset_id" json:"dataset_id"`
	Number    int64         `db:"version" json:"version"`
	Kind      OperationKind `db:"kind" json:"kind"`
	Title     string        `db:"title" json:"title"`

	// Content-addressed pointer to the snapshot payload. Restores share
	// the blob of the version they copy.
	BlobID string `db:"blob_id" json:"blob_id"`

	// Source version for kind=restore
	RestoredFrom *int64 `db:"restored_from" json:"restored_from,omitempty"`

	RowCount  int       `db:"row_count" json:"row_count"`
	Actor     string    `db:"actor" json:"actor"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// VersionSummary is the calendar/list projection of a version
type VersionSummary struct {
	Number    int64         `json:"version"`
	Kind      OperationKind `json:"kind"`
	Title     string        `json:"title"`
	RowCount  int           `json:"row_count"`
	Actor     string        `json:"actor"`
	CreatedAt time.Time     `json:"created_at"`
}

// Summary converts a version to its list projection
func (v *Version) Summary() VersionSummary {
	return VersionSummary{
		Number:    v.Number,
		Kind:      v.Kind,
		Title:     v.Title,
		RowCount:  v.RowCount,
		Actor:     v.Actor,
		CreatedAt: v.CreatedAt,
	}
}

// VersionPage is a paginated read of one version's rows
type VersionPage struct {
	Version VersionSummary `json:"version"`
	Columns []string       `json:"columns"`
	Rows    []Row          `json:"rows"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}
