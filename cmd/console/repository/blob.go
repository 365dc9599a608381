package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/datacove/console/cmd/console/models"
	"github.com/datacove/console/common/apperrors"
	"github.com/datacove/console/common/db"
	"github.com/jackc/pgx/v5"
)

// BlobRepository handles database operations for content-addressed blobs
type BlobRepository struct {
	db *db.DB
}

// NewBlobRepository creates a new blob repository
func NewBlobRepository(database *db.DB) *BlobRepository {
	return &BlobRepository{db: database}
}

// Create inserts a new blob
func (r *BlobRepository) Create(ctx context.Context, blob *models.Blob) error {
	query := `
		INSERT INTO blobs (blob_id, media_type, size_bytes, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(ctx, query,
		blob.BlobID,
		blob.MediaType,
		blob.SizeBytes,
		blob.Content,
		blob.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create blob: %w", err)
	}

	return nil
}

// Exists checks whether a blob with the given hash is already stored
func (r *BlobRepository) Exists(ctx context.Context, blobID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM blobs WHERE blob_id = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, blobID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check blob existence: %w", err)
	}

	return exists, nil
}

// GetByID retrieves a blob by its content hash
func (r *BlobRepository) GetByID(ctx context.Context, blobID string) (*models.Blob, error) {
	query := `
		SELECT blob_id, media_type, size_bytes, content, created_at
		FROM blobs
		WHERE blob_id = $1
	`

	blob := &models.Blob{}
	err := r.db.QueryRow(ctx, query, blobID).Scan(
		&blob.BlobID,
		&blob.MediaType,
		&blob.SizeBytes,
		&blob.Content,
		&blob.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "blob %s", blobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}

	return blob, nil
}
