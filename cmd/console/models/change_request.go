package models

import (
	"time"

	"github.com/google/uuid"
)

// CRStatus is the lifecycle state of a change request
type CRStatus string

const (
	CRPending   CRStatus = "pending"
	CRMerged    CRStatus = "merged"
	CRRejected  CRStatus = "rejected"
	CRWithdrawn CRStatus = "withdrawn"
)

// Terminal reports whether the status is absorbing
func (s CRStatus) Terminal() bool {
	switch s {
	case CRMerged, CRRejected, CRWithdrawn:
		return true
	}
	return false
}

// CRType is the kind of mutation a change request proposes
type CRType string

const (
	CRAppend CRType = "append"
	CREdit   CRType = "edit"
)

// ChangeRequest represents a proposed dataset mutation awaiting review.
// Maps to: change_requests table
type ChangeRequest struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DatasetID uuid.UUID `db:"dataset_id" json:"dataset_id"`
	Type      CRType    `db:"type" json:"type"`
	Status    CRStatus  `db:"status" json:"status"`

	SubmitterID string `db:"submitter_id" json:"submitter_id"`

	// Staged (pre-merge) data this request would materialize.
	// At most one pending request may reference a staged upload.
	StagedUploadID uuid.UUID `db:"staged_upload_id" json:"staged_upload_id"`

	Title       string  `db:"title" json:"title"`
	Description *string `db:"description" json:"description,omitempty"`

	// Single designated reviewer, used when no reviewer set exists
	PrimaryReviewer *string `db:"primary_reviewer" json:"primary_reviewer,omitempty"`

	// Assigned reviewer set (may be empty when PrimaryReviewer is set)
	Reviewers []string `db:"reviewers" json:"reviewers"`

	// Version produced by the merge, set only for merged requests
	ResultVersion *int64 `db:"result_version" json:"result_version,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StatusTransition is a compare-and-swap status flip applied in the
// same transaction as a version materialization, so a merge commits
// its version, audit event, and decision together or not at all.
type StatusTransition struct {
	ChangeRequestID uuid.UUID
	From            CRStatus
	To              CRStatus
}

// IsAssigned reports whether the user is an assigned reviewer: either
// the designated single reviewer or a member of the reviewer set.
func (cr *ChangeRequest) IsAssigned(userID string) bool {
	if cr.PrimaryReviewer != nil && *cr.PrimaryReviewer == userID {
		return true
	}
	for _, r := range cr.Reviewers {
		if r == userID {
			return true
		}
	}
	return false
}
