package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventType classifies one state transition
type AuditEventType string

const (
	AuditEdit         AuditEventType = "edit"
	AuditAppend       AuditEventType = "append"
	AuditUpload       AuditEventType = "upload"
	AuditCRCreated    AuditEventType = "cr_created"
	AuditCRApproved   AuditEventType = "cr_approved"
	AuditCRRejected   AuditEventType = "cr_rejected"
	AuditCRMerged     AuditEventType = "cr_merged"
	AuditCRWithdrawn  AuditEventType = "cr_withdrawn"
	AuditRestore      AuditEventType = "restore"
	AuditSchemaChange AuditEventType = "schema_change"
	AuditRuleChange   AuditEventType = "rule_change"
	AuditValidation   AuditEventType = "validation"
)

// ImpactSummary gives aggregate counts for one audit event
type ImpactSummary struct {
	RowsAdded    int `json:"rows_added"`
	RowsUpdated  int `json:"rows_updated"`
	RowsDeleted  int `json:"rows_deleted"`
	CellsChanged int `json:"cells_changed"`
	Warnings     int `json:"warnings"`
	Errors       int `json:"errors"`
}

// AuditEvent is a derived, read-only record of one state transition.
// Created at the moment of the transition; never mutated afterwards.
// Maps to: audit_events table
type AuditEvent struct {
	ID        uuid.UUID      `db:"id" json:"id"`
	DatasetID uuid.UUID      `db:"dataset_id" json:"dataset_id"`
	Type      AuditEventType `db:"type" json:"type"`

	Actor       string  `db:"actor" json:"actor"`
	Title       string  `db:"title" json:"title"`
	Description *string `db:"description" json:"description,omitempty"`

	// Optional links
	ChangeRequestID *uuid.UUID `db:"change_request_id" json:"change_request_id,omitempty"`
	Version         *int64     `db:"version" json:"version,omitempty"`

	Summary ImpactSummary `db:"summary" json:"summary"`

	// Content-addressed pointer to the cached diff payload, computed
	// once at materialization time
	DiffBlobID *string `db:"diff_blob_id" json:"diff_blob_id,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AuditEventDetail is an audit event with its diff payload loaded
type AuditEventDetail struct {
	AuditEvent
	Diff *Diff `json:"diff,omitempty"`
}
