package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/datacove/console/cmd/console/models"
	"github.com/datacove/console/common/apperrors"
	"github.com/datacove/console/common/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ChangeRequestRepository handles database operations for change requests
type ChangeRequestRepository struct {
	db *db.DB
}

// NewChangeRequestRepository creates a new change request repository
func NewChangeRequestRepository(database *db.DB) *ChangeRequestRepository {
	return &ChangeRequestRepository{db: database}
}

// Create inserts a new change request. A partial unique index on
// (staged_upload_id) WHERE status = 'pending' enforces at most one
// open request per staged upload; a violation maps to ErrInvalidState.
func (r *ChangeRequestRepository) Create(ctx context.Context, cr *models.ChangeRequest) error {
	query := `
		INSERT INTO change_requests
			(id, dataset_id, type, status, submitter_id, staged_upload_id,
			 title, description, primary_reviewer, reviewers, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Exec(ctx, query,
		cr.ID,
		cr.DatasetID,
		cr.Type,
		cr.Status,
		cr.SubmitterID,
		cr.StagedUploadID,
		cr.Title,
		cr.Description,
		cr.PrimaryReviewer,
		cr.Reviewers,
		cr.CreatedAt,
		cr.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrInvalidState,
				"staged upload %s already has an open change request", cr.StagedUploadID)
		}
		return fmt.Errorf("failed to create change request: %w", err)
	}

	return nil
}

// GetByID retrieves a change request by ID
func (r *ChangeRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ChangeRequest, error) {
	query := `
		SELECT id, dataset_id, type, status, submitter_id, staged_upload_id,
		       title, description, primary_reviewer, reviewers, result_version,
		       created_at, updated_at
		FROM change_requests
		WHERE id = $1
	`

	cr := &models.ChangeRequest{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&cr.ID,
		&cr.DatasetID,
		&cr.Type,
		&cr.Status,
		&cr.SubmitterID,
		&cr.StagedUploadID,
		&cr.Title,
		&cr.Description,
		&cr.PrimaryReviewer,
		&cr.Reviewers,
		&cr.ResultVersion,
		&cr.CreatedAt,
		&cr.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "change request %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get change request: %w", err)
	}

	return cr, nil
}

// ListByDataset retrieves change requests for a dataset, newest first,
// optionally filtered by status.
func (r *ChangeRequestRepository) ListByDataset(ctx context.Context, datasetID uuid.UUID, status models.CRStatus) ([]*models.ChangeRequest, error) {
	query := `
		SELECT id, dataset_id, type, status, submitter_id, staged_upload_id,
		       title, description, primary_reviewer, reviewers, result_version,
		       created_at, updated_at
		FROM change_requests
		WHERE dataset_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, datasetID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list change requests: %w", err)
	}
	defer rows.Close()

	var crs []*models.ChangeRequest
	for rows.Next() {
		cr := &models.ChangeRequest{}
		err := rows.Scan(
			&cr.ID,
			&cr.DatasetID,
			&cr.Type,
			&cr.Status,
			&cr.SubmitterID,
			&cr.StagedUploadID,
			&cr.Title,
			&cr.Description,
			&cr.PrimaryReviewer,
			&cr.Reviewers,
			&cr.ResultVersion,
			&cr.CreatedAt,
			&cr.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan change request: %w", err)
		}
		crs = append(crs, cr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating change requests: %w", err)
	}

	return crs, nil
}

// HasPendingForUpload reports whether a pending change request already
// references the given staged upload.
func (r *ChangeRequestRepository) HasPendingForUpload(ctx context.Context, stagedUploadID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM change_requests
			WHERE staged_upload_id = $1 AND status = 'pending'
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, stagedUploadID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check pending change requests: %w", err)
	}

	return exists, nil
}

// TransitionCAS performs an optimistic status transition: the update
// only applies when the current status matches the expected one, so two
// racing transitions cannot both win.
func (r *ChangeRequestRepository) TransitionCAS(ctx context.Context, id uuid.UUID, from, to models.CRStatus, resultVersion *int64) (bool, error) {
	query := `
		UPDATE change_requests
		SET status = $3, result_version = COALESCE($4, result_version), updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	tag, err := r.db.Exec(ctx, query, id, from, to, resultVersion)
	if err != nil {
		return false, fmt.Errorf("failed to transition change request: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// UpdateReviewers replaces the reviewer set of a pending change request
func (r *ChangeRequestRepository) UpdateReviewers(ctx context.Context, id uuid.UUID, primary *string, reviewers []string) (bool, error) {
	query := `
		UPDATE change_requests
		SET primary_reviewer = $2, reviewers = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	tag, err := r.db.Exec(ctx, query, id, primary, reviewers)
	if err != nil {
		return false, fmt.Errorf("failed to update reviewers: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
