package service

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/datacove/console/cmd/console/models"
	"github.com/datacove/console/common/logger"
)

// BlobService handles content-addressed storage of snapshot payloads
// and cached diffs. Identical content stores once; restores share the
// blob of the version they copy.
type BlobService struct {
	repo BlobStore
	log  *logger.Logger
}

// NewBlobService creates a new blob service
func NewBlobService(repo BlobStore, log *logger.Logger) *BlobService {
	return &BlobService{
		repo: repo,
		log:  log,
	}
}

// Store stores content and returns its blob ID (hash)
func (s *BlobService) Store(ctx context.Context, content []byte, mediaType string) (string, error) {
	hash := sha256.Sum256(content)
	blobID := fmt.Sprintf("sha256:%x", hash)

	// Deduplication
	exists, err := s.repo.Exists(ctx, blobID)
	if err != nil {
		return "", fmt.Errorf("failed to check existence: %w", err)
	}

	if exists {
		s.log.Debug("content already stored", "blob_id", blobID)
		return blobID, nil
	}

	blob := &models.Blob{
		BlobID:    blobID,
		MediaType: mediaType,
		SizeBytes: int64(len(content)),
		Content:   content,
		CreatedAt: time.Now(),
	}

	if err := s.repo.Create(ctx, blob); err != nil {
		return "", fmt.Errorf("failed to store content: %w", err)
	}

	s.log.Info("stored blob", "blob_id", blobID, "size_bytes", len(content))
	return blobID, nil
}

// Get retrieves raw content by blob ID
func (s *BlobService) Get(ctx context.Context, blobID string) ([]byte, error) {
	blob, err := s.repo.GetByID(ctx, blobID)
	if err != nil {
		return nil, err
	}
	return blob.Content, nil
}

// StorePayload stores a table snapshot and returns its blob ID
func (s *BlobService) StorePayload(ctx context.Context, payload *models.TablePayload) (string, error) {
	content, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	return s.Store(ctx, content, models.MediaTypeSnapshot)
}

// GetPayload retrieves and decodes a table snapshot
func (s *BlobService) GetPayload(ctx context.Context, blobID string) (*models.TablePayload, error) {
	content, err := s.Get(ctx, blobID)
	if err != nil {
		return nil, err
	}

	payload := &models.TablePayload{}
	if err := json.Unmarshal(content, payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payload, nil
}
