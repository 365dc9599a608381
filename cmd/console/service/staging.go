package service

import (
	"context"
	"fmt"
	"time"

	"github.com/datacove/console/cmd/console/models"
	"github.com/datacove/console/common/apperrors"
	"github.com/datacove/console/common/logger"
	"github.com/google/uuid"
)

// StagingService validates uploaded rows against the dataset's schema
// and rules and parks them content-addressed until a change request
// picks them up. Hard rule violations block staging; soft rules only
// produce warnings.
type StagingService struct {
	datasets  DatasetStore
	uploads   StagedUploadStore
	versions  VersionStore
	blobs     *BlobService
	validator *Validator
	audit     *AuditService
	log       *logger.Logger
}

// NewStagingService creates a new staging service
func NewStagingService(
	datasets DatasetStore,
	uploads StagedUploadStore,
	versions VersionStore,
	blobs *BlobService,
	validator *Validator,
	audit *AuditService,
	log *logger.Logger,
) *StagingService {
	return &StagingService{
		datasets:  datasets,
		uploads:   uploads,
		versions:  versions,
		blobs:     blobs,
		validator: validator,
		audit:     audit,
		log:       log,
	}
}

// Stage validates rows and stores them as a staged upload. Returns the
// upload together with its validation result; a failed validation
// returns ErrValidationFailed and persists nothing.
func (s *StagingService) Stage(ctx context.Context, datasetID uuid.UUID, kind models.CRType, rows []models.Row, actor string) (*models.StagedUpload, error) {
	ds, err := s.datasets.GetByID(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	prior, err := s.currentRows(ctx, ds)
	if err != nil {
		return nil, err
	}
	var priorRows []models.Row
	if prior != nil {
		priorRows = prior.Rows
	}

	result := s.validator.ValidateData(ds.Schema, ds.Rules, rows, priorRows, kind)
	if !result.Valid {
		return nil, apperrors.Wrap(apperrors.ErrValidationFailed, "%d hard rule violations", len(result.Errors))
	}

	payload := &models.TablePayload{Columns: ds.Schema.ColumnNames(), Rows: rows}
	blobID, err := s.blobs.StorePayload(ctx, payload)
	if err != nil {
		return nil, err
	}

	upload := &models.StagedUpload{
		ID:         uuid.New(),
		DatasetID:  datasetID,
		Kind:       kind,
		BlobID:     blobID,
		RowCount:   len(rows),
		Validation: result,
		CreatedBy:  actor,
		CreatedAt:  time.Now(),
	}

	if err := s.uploads.Create(ctx, upload); err != nil {
		return nil, fmt.Errorf("failed to persist staged upload: %w", err)
	}

	event := NewEvent(datasetID, models.AuditUpload, actor, fmt.Sprintf("Staged %d rows for %s", len(rows), kind))
	event.Summary = models.ImpactSummary{Warnings: len(result.Warnings)}
	if err := s.audit.Record(ctx, event); err != nil {
		s.log.Warn("failed to record upload event", "dataset_id", datasetID, "error", err)
	}

	s.log.Info("upload staged",
		"dataset_id", datasetID,
		"upload_id", upload.ID,
		"kind", kind,
		"rows", len(rows),
		"warnings", len(result.Warnings))

	return upload, nil
}

// Get retrieves a staged upload by ID
func (s *StagingService) Get(ctx context.Context, id uuid.UUID) (*models.StagedUpload, error) {
	return s.uploads.GetByID(ctx, id)
}

// Rows loads the staged rows of an upload
func (s *StagingService) Rows(ctx context.Context, upload *models.StagedUpload) (*models.TablePayload, error) {
	return s.blobs.GetPayload(ctx, upload.BlobID)
}

// currentRows loads the head snapshot, or nil before the first version
func (s *StagingService) currentRows(ctx context.Context, ds *models.Dataset) (*models.TablePayload, error) {
	if ds.CurrentVersion < 0 {
		return nil, nil
	}
	v, err := s.versions.GetByNumber(ctx, ds.ID, ds.CurrentVersion)
	if err != nil {
		return nil, err
	}
	return s.blobs.GetPayload(ctx, v.BlobID)
}
