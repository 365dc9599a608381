package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/datacove/console/cmd/console/models"
	"github.com/datacove/console/common/logger"
	rediscommon "github.com/datacove/console/common/redis"
	"github.com/google/uuid"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 500

	diffCacheTTL = time.Hour
)

// AuditService records state transitions and serves the audit trail.
// Events are write-once; diffs are computed at materialization time,
// stored content-addressed, and cached for reads.
type AuditService struct {
	events AuditStore
	blobs  *BlobService
	cache  *rediscommon.Client // optional
	log    *logger.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(events AuditStore, blobs *BlobService, cache *rediscommon.Client, log *logger.Logger) *AuditService {
	return &AuditService{
		events: events,
		blobs:  blobs,
		cache:  cache,
		log:    log,
	}
}

// NewEvent constructs an audit event with identity and timestamp set
func NewEvent(datasetID uuid.UUID, eventType models.AuditEventType, actor, title string) *models.AuditEvent {
	return &models.AuditEvent{
		ID:        uuid.New(),
		DatasetID: datasetID,
		Type:      eventType,
		Actor:     actor,
		Title:     title,
		CreatedAt: time.Now(),
	}
}

// Record persists one audit event. Pure append; an event is never
// overwritten once written.
func (s *AuditService) Record(ctx context.Context, e *models.AuditEvent) error {
	if err := s.events.Create(ctx, e); err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}

	s.log.Info("audit event recorded",
		"event_id", e.ID,
		"dataset_id", e.DatasetID,
		"type", e.Type)

	return nil
}

// StoreDiff persists a diff payload and returns its blob ID
func (s *AuditService) StoreDiff(ctx context.Context, diff *models.Diff) (string, error) {
	content, err := json.Marshal(diff)
	if err != nil {
		return "", fmt.Errorf("failed to marshal diff: %w", err)
	}

	return s.blobs.Store(ctx, content, models.MediaTypeDiff)
}

// List retrieves a page of audit events for a dataset
func (s *AuditService) List(ctx context.Context, datasetID uuid.UUID, limit, offset int, typeFilter models.AuditEventType) ([]*models.AuditEvent, int, error) {
	if limit <= 0 {
		limit = defaultAuditPageSize
	}
	if limit > maxAuditPageSize {
		limit = maxAuditPageSize
	}
	if offset < 0 {
		offset = 0
	}

	return s.events.ListByDataset(ctx, datasetID, limit, offset, typeFilter)
}

// GetDetail retrieves an audit event with its diff payload loaded
func (s *AuditService) GetDetail(ctx context.Context, id uuid.UUID) (*models.AuditEventDetail, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &models.AuditEventDetail{AuditEvent: *event}

	if event.DiffBlobID != nil {
		diff, err := s.loadDiff(ctx, *event.DiffBlobID)
		if err != nil {
			return nil, err
		}
		detail.Diff = diff
	}

	return detail, nil
}

// loadDiff fetches a cached diff, falling back to the blob store
func (s *AuditService) loadDiff(ctx context.Context, blobID string) (*models.Diff, error) {
	cacheKey := "diff:" + blobID

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			diff := &models.Diff{}
			if err := json.Unmarshal([]byte(cached), diff); err == nil {
				return diff, nil
			}
			// Corrupt cache entry, fall through to the blob store
			s.log.Warn("dropping corrupt diff cache entry", "key", cacheKey)
			s.cache.Delete(ctx, cacheKey)
		}
	}

	content, err := s.blobs.Get(ctx, blobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load diff payload: %w", err)
	}

	diff := &models.Diff{}
	if err := json.Unmarshal(content, diff); err != nil {
		return nil, fmt.Errorf("failed to unmarshal diff payload: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetWithExpiry(ctx, cacheKey, string(content), diffCacheTTL); err != nil {
			s.log.Warn("failed to cache diff", "key", cacheKey, "error", err)
		}
	}

	return diff, nil
}
