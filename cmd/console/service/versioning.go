package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/datacove/console/cmd/console/models"
	"github.com/datacove/console/common/apperrors"
	"github.com/datacove/console/common/logger"
	"github.com/google/uuid"
)

const (
	defaultVersionPageSize = 100
	maxVersionPageSize     = 1000
)

// MaterializeRequest describes one new snapshot to commit. Exactly one
// of Payload or BlobID must be set; BlobID reuses an already-stored
// snapshot (restore shares the target version's blob).
type MaterializeRequest struct {
	DatasetID       uuid.UUID
	Kind            models.OperationKind
	Payload         *models.TablePayload
	BlobID          string
	RowCount        int
	Actor           string
	Title           string
	Description     string
	ChangeRequestID *uuid.UUID
	RestoredFrom    *int64
	EventType       models.AuditEventType
	Diff            *models.Diff
	Validation      *models.ValidationResult

	// Transition, when set, flips a change request status in the same
	// transaction as the version commit (merge path).
	Transition *models.StatusTransition

	diffBlobID *string
}

// VersioningService owns the snapshot history of every dataset. Version
// numbers are dense: each successful materialization produces exactly
// current+1, committed atomically with the dataset pointer and the
// audit event.
type VersioningService struct {
	datasets  DatasetStore
	versions  VersionStore
	blobs     *BlobService
	diffs     *DiffService
	audit     *AuditService
	validator *Validator
	notifier  Notifier
	locks     *KeyedLocks
	lockWait  time.Duration
	log       *logger.Logger
}

// NewVersioningService creates a new versioning service
func NewVersioningService(
	datasets DatasetStore,
	versions VersionStore,
	blobs *BlobService,
	diffs *DiffService,
	audit *AuditService,
	validator *Validator,
	notifier Notifier,
	locks *KeyedLocks,
	lockWait time.Duration,
	log *logger.Logger,
) *VersioningService {
	return &VersioningService{
		datasets:  datasets,
		versions:  versions,
		blobs:     blobs,
		diffs:     diffs,
		audit:     audit,
		validator: validator,
		notifier:  notifier,
		locks:     locks,
		lockWait:  lockWait,
		log:       log,
	}
}

// CreateDataset registers a dataset and commits version 0 holding its
// initial table contents.
func (s *VersioningService) CreateDataset(ctx context.Context, projectID uuid.UUID, name string, schema models.Schema, rules models.RuleSet, payload *models.TablePayload, actor string) (*models.Dataset, error) {
	if result := s.validator.ValidateSchema(schema); !result.Valid {
		return nil, apperrors.Wrap(apperrors.ErrValidationFailed, "schema invalid: %s", issueSummary(result.Errors))
	}
	if result := s.validator.ValidateRules(schema, rules); !result.Valid {
		return nil, apperrors.Wrap(apperrors.ErrValidationFailed, "rules invalid: %s", issueSummary(result.Errors))
	}
	if payload != nil {
		result := s.validator.ValidateData(schema, rules, payload.Rows, nil, models.CREdit)
		if !result.Valid {
			return nil, apperrors.Wrap(apperrors.ErrValidationFailed, "%d hard rule violations", len(result.Errors))
		}
	}

	ds := &models.Dataset{
		ID:             uuid.New(),
		ProjectID:      projectID,
		Name:           name,
		Schema:         schema,
		Rules:          rules,
		CurrentVersion: -1,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	if err := s.datasets.Create(ctx, ds); err != nil {
		return nil, fmt.Errorf("failed to create dataset: %w", err)
	}

	if payload == nil {
		payload = &models.TablePayload{Columns: schema.ColumnNames(), Rows: []models.Row{}}
	}

	v, err := s.Materialize(ctx, &MaterializeRequest{
		DatasetID: ds.ID,
		Kind:      models.OpCreateTable,
		Payload:   payload,
		Actor:     actor,
		Title:     "Created table " + name,
		EventType: models.AuditEdit,
	})
	if err != nil {
		// A dataset without version 0 must not stay visible.
		if delErr := s.datasets.Delete(ctx, ds.ID); delErr != nil {
			s.log.Error("failed to remove dataset after initial version failed",
				"dataset_id", ds.ID,
				"error", delErr)
		}
		return nil, err
	}
	ds.CurrentVersion = v.Number

	return ds, nil
}

// Materialize commits one new version under the dataset's write lock.
// The version row, the dataset pointer and the audit event land in a
// single transaction; a pointer mismatch fences the dataset so no
// further writes go through until the operator intervenes.
func (s *VersioningService) Materialize(ctx context.Context, req *MaterializeRequest) (*models.Version, error) {
	release, err := s.locks.Acquire(ctx, req.DatasetID.String(), s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	ds, err := s.datasets.GetByID(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}

	// The pointer alone is not trusted: the next number must also be
	// the successor of the log's max, or version 0 on an empty log. A
	// diverged pointer would otherwise commit past a gap.
	next := ds.CurrentVersion + 1
	max, found, err := s.versions.MaxVersion(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}
	expected := int64(0)
	if found {
		expected = max + 1
	}
	if next != expected {
		s.locks.Fence(req.DatasetID.String(),
			fmt.Sprintf("pointer yields version %d, log yields %d", next, expected))
		s.log.Error("dataset fenced after pointer and log diverged",
			"dataset_id", req.DatasetID,
			"pointer_version", ds.CurrentVersion,
			"log_max", max)
		return nil, apperrors.Wrap(apperrors.ErrInconsistent,
			"dataset %s pointer is at %d but the version log yields %d", req.DatasetID, ds.CurrentVersion, expected)
	}

	blobID := req.BlobID
	rowCount := req.RowCount
	if req.Payload != nil {
		blobID, err = s.blobs.StorePayload(ctx, req.Payload)
		if err != nil {
			return nil, err
		}
		rowCount = len(req.Payload.Rows)
	}
	if blobID == "" {
		return nil, fmt.Errorf("materialize: no snapshot content provided")
	}

	v := &models.Version{
		DatasetID:    req.DatasetID,
		Number:       next,
		Kind:         req.Kind,
		Title:        req.Title,
		BlobID:       blobID,
		RestoredFrom: req.RestoredFrom,
		RowCount:     rowCount,
		Actor:        req.Actor,
		CreatedAt:    time.Now(),
	}

	event := s.buildEvent(req, next)

	if err := s.versions.Materialize(ctx, v, event, req.Transition); err != nil {
		if errors.Is(err, apperrors.ErrInconsistent) {
			s.locks.Fence(req.DatasetID.String(), fmt.Sprintf("version pointer diverged at %d", next))
			s.log.Error("dataset fenced after pointer mismatch",
				"dataset_id", req.DatasetID,
				"expected_version", next)
		}
		return nil, err
	}

	s.log.Info("version materialized",
		"dataset_id", req.DatasetID,
		"version", next,
		"kind", v.Kind,
		"rows", rowCount)

	s.notifier.Notify(ctx, Event{
		Type:      EventVersionCreated,
		DatasetID: req.DatasetID,
		Version:   &next,
		Actor:     req.Actor,
		At:        v.CreatedAt,
	})

	return v, nil
}

func (s *VersioningService) buildEvent(req *MaterializeRequest, number int64) *models.AuditEvent {
	eventType := req.EventType
	if eventType == "" {
		eventType = models.AuditEdit
	}

	event := NewEvent(req.DatasetID, eventType, req.Actor, req.Title)
	if req.Description != "" {
		desc := req.Description
		event.Description = &desc
	}
	event.ChangeRequestID = req.ChangeRequestID
	event.Version = &number
	event.DiffBlobID = req.diffBlobID

	if req.Diff != nil {
		event.Summary = s.diffs.Summarize(req.Diff, req.Validation)
	} else if req.Validation != nil {
		event.Summary = models.ImpactSummary{
			Warnings: len(req.Validation.Warnings),
			Errors:   len(req.Validation.Errors),
		}
	}

	return event
}

// AttachDiff computes and stores the diff between two payloads, wiring
// the resulting blob ID into the request's audit event.
func (s *VersioningService) AttachDiff(ctx context.Context, req *MaterializeRequest, prev, next *models.TablePayload, keyColumn string) error {
	var prevRows, nextRows []models.Row
	if prev != nil {
		prevRows = prev.Rows
	}
	if next != nil {
		nextRows = next.Rows
	}
	diff := s.diffs.Reconstruct(prevRows, nextRows, keyColumn)
	req.Diff = diff

	blobID, err := s.audit.StoreDiff(ctx, diff)
	if err != nil {
		return err
	}
	req.diffBlobID = &blobID
	return nil
}

// GetDataset retrieves a dataset by ID
func (s *VersioningService) GetDataset(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	return s.datasets.GetByID(ctx, id)
}

// ListDatasets returns every dataset in a project
func (s *VersioningService) ListDatasets(ctx context.Context, projectID uuid.UUID) ([]*models.Dataset, error) {
	return s.datasets.ListByProject(ctx, projectID)
}

// GetVersionData reads one historical snapshot with row pagination
func (s *VersioningService) GetVersionData(ctx context.Context, datasetID uuid.UUID, number int64, limit, offset int) (*models.VersionPage, error) {
	if number < 0 {
		return nil, apperrors.Wrap(apperrors.ErrVersionNotFound, "version %d", number)
	}
	if limit <= 0 {
		limit = defaultVersionPageSize
	}
	if limit > maxVersionPageSize {
		limit = maxVersionPageSize
	}
	if offset < 0 {
		offset = 0
	}

	v, err := s.versions.GetByNumber(ctx, datasetID, number)
	if err != nil {
		return nil, err
	}

	payload, err := s.blobs.GetPayload(ctx, v.BlobID)
	if err != nil {
		return nil, err
	}

	total := len(payload.Rows)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &models.VersionPage{
		Version: v.Summary(),
		Columns: payload.Columns,
		Rows:    payload.Rows[start:end],
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}, nil
}

// ListVersions returns the full version history, newest first
func (s *VersioningService) ListVersions(ctx context.Context, datasetID uuid.UUID) ([]*models.Version, error) {
	if _, err := s.datasets.GetByID(ctx, datasetID); err != nil {
		return nil, err
	}
	return s.versions.ListByDataset(ctx, datasetID)
}

// GetCalendar buckets version history by local calendar day. Days with
// no versions are absent from the map.
func (s *VersioningService) GetCalendar(ctx context.Context, datasetID uuid.UUID) (map[string][]models.VersionSummary, error) {
	versions, err := s.ListVersions(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	calendar := make(map[string][]models.VersionSummary)
	for _, v := range versions {
		day := v.CreatedAt.In(time.Local).Format("2006-01-02")
		calendar[day] = append(calendar[day], v.Summary())
	}

	return calendar, nil
}

// Restore commits the contents of a historical version as a brand-new
// version at the head. History is never rewritten; the restored
// version shares the target's snapshot blob, so reading it back is
// byte-for-byte identical to the target.
func (s *VersioningService) Restore(ctx context.Context, datasetID uuid.UUID, target int64, actor string) (*models.Version, error) {
	ds, err := s.datasets.GetByID(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	targetVersion, err := s.versions.GetByNumber(ctx, datasetID, target)
	if err != nil {
		return nil, err
	}

	targetPayload, err := s.blobs.GetPayload(ctx, targetVersion.BlobID)
	if err != nil {
		return nil, err
	}

	var diff *models.Diff
	if ds.CurrentVersion >= 0 {
		current, err := s.versions.GetByNumber(ctx, datasetID, ds.CurrentVersion)
		if err != nil {
			return nil, err
		}
		currentPayload, err := s.blobs.GetPayload(ctx, current.BlobID)
		if err != nil {
			return nil, err
		}
		diff = s.diffs.Reconstruct(currentPayload.Rows, targetPayload.Rows, ds.Schema.KeyColumn)
	}

	req := &MaterializeRequest{
		DatasetID:    datasetID,
		Kind:         models.OpRestore,
		BlobID:       targetVersion.BlobID,
		RowCount:     targetVersion.RowCount,
		Actor:        actor,
		Title:        fmt.Sprintf("Restored version %d", target),
		RestoredFrom: &target,
		EventType:    models.AuditRestore,
		Diff:         diff,
	}

	if diff != nil {
		diffBlobID, err := s.audit.StoreDiff(ctx, diff)
		if err != nil {
			return nil, err
		}
		req.diffBlobID = &diffBlobID
	}

	return s.Materialize(ctx, req)
}
