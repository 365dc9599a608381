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

// VersionRepository handles database operations for the append-only
// version log. The versioning service is its sole writer.
type VersionRepository struct {
	db *db.DB
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(database *db.DB) *VersionRepository {
	return &VersionRepository{db: database}
}

// Materialize durably writes a new version: version row, dataset
// current-version pointer, the audit event, and the optional change
// request status flip, in one transaction. The pointer update is
// guarded on the previous version number so a sequence gap or
// duplicate surfaces as ErrInconsistent instead of silently
// committing, and the status flip is guarded on the expected current
// status so a concurrent decision aborts the whole merge.
func (r *VersionRepository) Materialize(ctx context.Context, v *models.Version, event *models.AuditEvent, transition *models.StatusTransition) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insertVersion := `
		INSERT INTO versions (dataset_id, version, kind, title, blob_id, restored_from, row_count, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = tx.Exec(ctx, insertVersion,
		v.DatasetID,
		v.Number,
		v.Kind,
		v.Title,
		v.BlobID,
		v.RestoredFrom,
		v.RowCount,
		v.Actor,
		v.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrInconsistent, "duplicate version %d for dataset %s", v.Number, v.DatasetID)
		}
		return fmt.Errorf("failed to insert version: %w", err)
	}

	movePointer := `
		UPDATE datasets
		SET current_version = $2, updated_at = NOW()
		WHERE id = $1 AND current_version = $3
	`

	tag, err := tx.Exec(ctx, movePointer, v.DatasetID, v.Number, v.Number-1)
	if err != nil {
		return fmt.Errorf("failed to move current-version pointer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Wrap(apperrors.ErrInconsistent,
			"current-version pointer of dataset %s is not %d", v.DatasetID, v.Number-1)
	}

	if event != nil {
		if err := insertAuditEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	if transition != nil {
		flip := `
			UPDATE change_requests
			SET status = $3, result_version = $4, updated_at = NOW()
			WHERE id = $1 AND status = $2
		`

		tag, err := tx.Exec(ctx, flip, transition.ChangeRequestID, transition.From, transition.To, v.Number)
		if err != nil {
			return fmt.Errorf("failed to transition change request: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.Wrap(apperrors.ErrInvalidState,
				"change request %s is no longer %s", transition.ChangeRequestID, transition.From)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit materialization: %w", err)
	}

	return nil
}

// MaxVersion returns the highest version number for a dataset, or
// found=false when the dataset has no versions yet.
func (r *VersionRepository) MaxVersion(ctx context.Context, datasetID uuid.UUID) (int64, bool, error) {
	query := `SELECT MAX(version) FROM versions WHERE dataset_id = $1`

	var max *int64
	if err := r.db.QueryRow(ctx, query, datasetID).Scan(&max); err != nil {
		return 0, false, fmt.Errorf("failed to get max version: %w", err)
	}

	if max == nil {
		return 0, false, nil
	}
	return *max, true, nil
}

// GetByNumber retrieves one version of a dataset
func (r *VersionRepository) GetByNumber(ctx context.Context, datasetID uuid.UUID, number int64) (*models.Version, error) {
	query := `
		SELECT dataset_id, version, kind, title, blob_id, restored_from, row_count, actor, created_at
		FROM versions
		WHERE dataset_id = $1 AND version = $2
	`

	v := &models.Version{}
	err := r.db.QueryRow(ctx, query, datasetID, number).Scan(
		&v.DatasetID,
		&v.Number,
		&v.Kind,
		&v.Title,
		&v.BlobID,
		&v.RestoredFrom,
		&v.RowCount,
		&v.Actor,
		&v.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.Wrap(apperrors.ErrVersionNotFound, "dataset %s version %d", datasetID, number)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	return v, nil
}

// ListByDataset retrieves all versions of a dataset, newest first
func (r *VersionRepository) ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.Version, error) {
	query := `
		SELECT dataset_id, version, kind, title, blob_id, restored_from, row_count, actor, created_at
		FROM versions
		WHERE dataset_id = $1
		ORDER BY version DESC
	`

	rows, err := r.db.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.Version
	for rows.Next() {
		v := &models.Version{}
		err := rows.Scan(
			&v.DatasetID,
			&v.Number,
			&v.Kind,
			&v.Title,
			&v.BlobID,
			&v.RestoredFrom,
			&v.RowCount,
			&v.Actor,
			&v.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}

	return versions, nil
}

// isUniqueViolation checks for a Postgres unique_violation (23505)
func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
