package models

import (
	"time"

	"github.com/google/uuid"
)

// ValidationIssue is one validator finding attached to a staged upload
type ValidationIssue struct {
	Rule    string `json:"rule"`
	Column  string `json:"column,omitempty"`
	RowIdx  int    `json:"row,omitempty"`
	Message string `json:"message"`
}

// ValidationResult is the validator's verdict for a candidate mutation
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

// StagedUpload is validated but not-yet-merged candidate data awaiting
// reviewer assignment. Maps to: staged_uploads table
type StagedUpload struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DatasetID uuid.UUID `db:"dataset_id" json:"dataset_id"`
	Kind      CRType    `db:"kind" json:"kind"`

	// Content-addressed pointer to the staged rows
	BlobID   string `db:"blob_id" json:"blob_id"`
	RowCount int    `db:"row_count" json:"row_count"`

	// Validator output captured at staging time; not recomputed later
	Validation ValidationResult `db:"validation" json:"validation"`

	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
