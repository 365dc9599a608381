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

// AuditEventRepository handles database operations for audit events
type AuditEventRepository struct {
	db *db.DB
}

// NewAuditEventRepository creates a new audit event repository
func NewAuditEventRepository(database *db.DB) *AuditEventRepository {
	return &AuditEventRepository{db: database}
}

// insertAuditEvent writes one audit event using the given querier, so
// the versioning transaction can include it atomically.
func insertAuditEvent(ctx context.Context, q Querier, e *models.AuditEvent) error {
	summaryJSON, err := json.Marshal(e.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal impact summary: %w", err)
	}

	query := `
		INSERT INTO audit_events
			(id, dataset_id, type, actor, title, description,
			 change_request_id, version, summary, diff_blob_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = q.Exec(ctx, query,
		e.ID,
		e.DatasetID,
		e.Type,
		e.Actor,
		e.Title,
		e.Description,
		e.ChangeRequestID,
		e.Version,
		summaryJSON,
		e.DiffBlobID,
		e.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

// Create inserts a new audit event
func (r *AuditEventRepository) Create(ctx context.Context, e *models.AuditEvent) error {
	return insertAuditEvent(ctx, r.db, e)
}

// GetByID retrieves an audit event by ID
func (r *AuditEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditEvent, error) {
	query := `
		SELECT id, dataset_id, type, actor, title, description,
		       change_request_id, version, summary, diff_blob_id, created_at
		FROM audit_events
		WHERE id = $1
	`

	e, err := scanAuditEvent(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "audit event %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit event: %w", err)
	}

	return e, nil
}

// ListByDataset retrieves a page of audit events for a dataset, newest
// first, with an optional type filter, plus the unfiltered-page total.
func (r *AuditEventRepository) ListByDataset(ctx context.Context, datasetID uuid.UUID, limit, offset int, typeFilter models.AuditEventType) ([]*models.AuditEvent, int, error) {
	countQuery := `
		SELECT COUNT(*)
		FROM audit_events
		WHERE dataset_id = $1 AND ($2 = '' OR type = $2)
	`

	var total int
	if err := r.db.QueryRow(ctx, countQuery, datasetID, string(typeFilter)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit events: %w", err)
	}

	query := `
		SELECT id, dataset_id, type, actor, title, description,
		       change_request_id, version, summary, diff_blob_id, created_at
		FROM audit_events
		WHERE dataset_id = $1 AND ($2 = '' OR type = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.Query(ctx, query, datasetID, string(typeFilter), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []*models.AuditEvent
	for rows.Next() {
		e, err := scanAuditEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating audit events: %w", err)
	}

	return events, total, nil
}

// scanner matches both pgx.Row and pgx.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanAuditEvent(s scanner) (*models.AuditEvent, error) {
	e := &models.AuditEvent{}
	var summaryJSON []byte

	err := s.Scan(
		&e.ID,
		&e.DatasetID,
		&e.Type,
		&e.Actor,
		&e.Title,
		&e.Description,
		&e.ChangeRequestID,
		&e.Version,
		&summaryJSON,
		&e.DiffBlobID,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(summaryJSON, &e.Summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal impact summary: %w", err)
	}

	return e, nil
}
