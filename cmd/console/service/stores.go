package service

import (
	"context"

	"github.com/datacove/console/cmd/console/models"
	"github.com/google/uuid"
)

// Store interfaces consumed by the services. The pgx repositories
// satisfy them; tests substitute in-memory fakes.

// DatasetStore persists datasets
type DatasetStore interface {
	Create(ctx context.Context, ds *models.Dataset) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	UpdateSchema(ctx context.Context, id uuid.UUID, schema models.Schema) error
	UpdateRules(ctx context.Context, id uuid.UUID, rules models.RuleSet) error
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Dataset, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// VersionStore persists the append-only version log
type VersionStore interface {
	// Materialize writes the version, moves the dataset's
	// current-version pointer, records the audit event, and applies the
	// optional change request transition, all in one transaction.
	Materialize(ctx context.Context, v *models.Version, event *models.AuditEvent, transition *models.StatusTransition) error
	MaxVersion(ctx context.Context, datasetID uuid.UUID) (int64, bool, error)
	GetByNumber(ctx context.Context, datasetID uuid.UUID, number int64) (*models.Version, error)
	ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.Version, error)
}

// BlobStore persists content-addressed blobs
type BlobStore interface {
	Create(ctx context.Context, blob *models.Blob) error
	Exists(ctx context.Context, blobID string) (bool, error)
	GetByID(ctx context.Context, blobID string) (*models.Blob, error)
}

// ChangeRequestStore persists change requests
type ChangeRequestStore interface {
	Create(ctx context.Context, cr *models.ChangeRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ChangeRequest, error)
	ListByDataset(ctx context.Context, datasetID uuid.UUID, status models.CRStatus) ([]*models.ChangeRequest, error)
	HasPendingForUpload(ctx context.Context, stagedUploadID uuid.UUID) (bool, error)
	TransitionCAS(ctx context.Context, id uuid.UUID, from, to models.CRStatus, resultVersion *int64) (bool, error)
	UpdateReviewers(ctx context.Context, id uuid.UUID, primary *string, reviewers []string) (bool, error)
}

// StagedUploadStore persists staged uploads
type StagedUploadStore interface {
	Create(ctx context.Context, su *models.StagedUpload) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.StagedUpload, error)
}

// AuditStore persists audit events
type AuditStore interface {
	Create(ctx context.Context, e *models.AuditEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditEvent, error)
	ListByDataset(ctx context.Context, datasetID uuid.UUID, limit, offset int, typeFilter models.AuditEventType) ([]*models.AuditEvent, int, error)
}

// MemberStore reads project memberships (identity service boundary)
type MemberStore interface {
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Member, error)
	Get(ctx context.Context, projectID uuid.UUID, userID string) (*models.Member, error)
}
