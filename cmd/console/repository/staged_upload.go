package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/datacove/console/cmd/console/models"
	"github.com/datacove/console/common/apperrors"
	"github.com/datacove/console/common/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// StagedUploadRepository handles database operations for staged uploads
type StagedUploadRepository struct {
	db *db.DB
}

// NewStagedUploadRepository creates a new staged upload repository
func NewStagedUploadRepository(database *db.DB) *StagedUploadRepository {
	return &StagedUploadRepository{db: database}
}

// Create inserts a new staged upload
func (r *StagedUploadRepository) Create(ctx context.Context, su *models.StagedUpload) error {
	validationJSON, err := json.Marshal(su.Validation)
	if err != nil {
		return fmt.Errorf("failed to marshal validation result: %w", err)
	}

	query := `
		INSERT INTO staged_uploads (id, dataset_id, kind, blob_id, row_count, validation, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.Exec(ctx, query,
		su.ID,
		su.DatasetID,
		su.Kind,
		su.BlobID,
		su.RowCount,
		validationJSON,
		su.CreatedBy,
		su.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create staged upload: %w", err)
	}

	return nil
}

// GetByID retrieves a staged upload by ID
func (r *StagedUploadRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StagedUpload, error) {
	query := `
		SELECT id, dataset_id, kind, blob_id, row_count, validation, created_by, created_at
		FROM staged_uploads
		WHERE id = $1
	`

	su := &models.StagedUpload{}
	var validationJSON []byte

	err := r.db.QueryRow(ctx, query, id).Scan(
		&su.ID,
		&su.DatasetID,
		&su.Kind,
		&su.BlobID,
		&su.RowCount,
		&validationJSON,
		&su.CreatedBy,
		&su.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "staged upload %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get staged upload: %w", err)
	}

	if err := json.Unmarshal(validationJSON, &su.Validation); err != nil {
		return nil, fmt.Errorf("failed to unmarshal validation result: %w", err)
	}

	return su, nil
}
