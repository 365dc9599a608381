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

// DatasetRepository handles database operations for datasets
type DatasetRepository struct {
	db *db.DB
}

// NewDatasetRepository creates a new dataset repository
func NewDatasetRepository(database *db.DB) *DatasetRepository {
	return &DatasetRepository{db: database}
}

// Create inserts a new dataset
func (r *DatasetRepository) Create(ctx context.Context, ds *models.Dataset) error {
	schemaJSON, err := json.Marshal(ds.Schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	rulesJSON, err := json.Marshal(ds.Rules)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	query := `
		INSERT INTO datasets (id, project_id, name, schema, rules, current_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.Exec(ctx, query,
		ds.ID,
		ds.ProjectID,
		ds.Name,
		schemaJSON,
		rulesJSON,
		ds.CurrentVersion,
		ds.CreatedAt,
		ds.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}

	return nil
}

// Delete removes a dataset row. Only used to undo a creation whose
// initial version failed to commit; materialized datasets are never
// deleted.
func (r *DatasetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM datasets WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}

	return nil
}

// GetByID retrieves a dataset by ID
func (r *DatasetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	query := `
		SELECT id, project_id, name, schema, rules, current_version, created_at, updated_at
		FROM datasets
		WHERE id = $1
	`

	ds := &models.Dataset{}
	var schemaJSON, rulesJSON []byte

	err := r.db.QueryRow(ctx, query, id).Scan(
		&ds.ID,
		&ds.ProjectID,
		&ds.Name,
		&schemaJSON,
		&rulesJSON,
		&ds.CurrentVersion,
		&ds.CreatedAt,
		&ds.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "dataset %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}

	if err := json.Unmarshal(schemaJSON, &ds.Schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
	}
	if err := json.Unmarshal(rulesJSON, &ds.Rules); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rules: %w", err)
	}

	return ds, nil
}

// UpdateSchema replaces the dataset's schema
func (r *DatasetRepository) UpdateSchema(ctx context.Context, id uuid.UUID, schema models.Schema) error {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	query := `
		UPDATE datasets
		SET schema = $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, schemaJSON)
	if err != nil {
		return fmt.Errorf("failed to update schema: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Wrap(apperrors.ErrNotFound, "dataset %s", id)
	}

	return nil
}

// UpdateRules replaces the dataset's rule set
func (r *DatasetRepository) UpdateRules(ctx context.Context, id uuid.UUID, rules models.RuleSet) error {
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	query := `
		UPDATE datasets
		SET rules = $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, rulesJSON)
	if err != nil {
		return fmt.Errorf("failed to update rules: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Wrap(apperrors.ErrNotFound, "dataset %s", id)
	}

	return nil
}

// ListByProject retrieves all datasets in a project
func (r *DatasetRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Dataset, error) {
	query := `
		SELECT id, project_id, name, schema, rules, current_version, created_at, updated_at
		FROM datasets
		WHERE project_id = $1
		ORDER BY name ASC
	`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var datasets []*models.Dataset
	for rows.Next() {
		ds := &models.Dataset{}
		var schemaJSON, rulesJSON []byte

		err := rows.Scan(
			&ds.ID,
			&ds.ProjectID,
			&ds.Name,
			&schemaJSON,
			&rulesJSON,
			&ds.CurrentVersion,
			&ds.CreatedAt,
			&ds.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}

		if err := json.Unmarshal(schemaJSON, &ds.Schema); err != nil {
			return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
		}
		if err := json.Unmarshal(rulesJSON, &ds.Rules); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rules: %w", err)
		}

		datasets = append(datasets, ds)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating datasets: %w", err)
	}

	return datasets, nil
}
