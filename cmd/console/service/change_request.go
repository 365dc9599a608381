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

// MergeResult is returned from a successful approval: the terminal
// change request plus the version its merge produced.
type MergeResult struct {
	ChangeRequest *models.ChangeRequest
	Version       *models.Version
}

// ChangeRequestService runs the review workflow. A change request is
// born pending and moves exactly once to merged, rejected or
// withdrawn; the state machine is enforced both by an in-process lock
// and a compare-and-swap on the status column.
type ChangeRequestService struct {
	crs        ChangeRequestStore
	staged     StagedUploadStore
	datasets   DatasetStore
	members    MemberStore
	versioning *VersioningService
	staging    *StagingService
	blobs      *BlobService
	audit      *AuditService
	policy     ApprovalPolicy
	notifier   Notifier
	crLocks    *KeyedLocks
	lockWait   time.Duration
	log        *logger.Logger
}

// NewChangeRequestService creates a new change request service
func NewChangeRequestService(
	crs ChangeRequestStore,
	staged StagedUploadStore,
	datasets DatasetStore,
	members MemberStore,
	versioning *VersioningService,
	staging *StagingService,
	blobs *BlobService,
	audit *AuditService,
	policy ApprovalPolicy,
	notifier Notifier,
	crLocks *KeyedLocks,
	lockWait time.Duration,
	log *logger.Logger,
) *ChangeRequestService {
	return &ChangeRequestService{
		crs:        crs,
		staged:     staged,
		datasets:   datasets,
		members:    members,
		versioning: versioning,
		staging:    staging,
		blobs:      blobs,
		audit:      audit,
		policy:     policy,
		notifier:   notifier,
		crLocks:    crLocks,
		lockWait:   lockWait,
		log:        log,
	}
}

// SubmitRequest carries the inputs for opening a change request
type SubmitRequest struct {
	DatasetID      uuid.UUID
	StagedUploadID uuid.UUID
	Title          string
	Description    *string
	SubmitterID    string
}

// Submit opens a change request over a staged upload and assigns every
// eligible reviewer. A staged upload backs at most one open change
// request at a time.
func (s *ChangeRequestService) Submit(ctx context.Context, req *SubmitRequest) (*models.ChangeRequest, error) {
	ds, err := s.datasets.GetByID(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}

	upload, err := s.staged.GetByID(ctx, req.StagedUploadID)
	if err != nil {
		return nil, err
	}
	if upload.DatasetID != req.DatasetID {
		return nil, apperrors.Wrap(apperrors.ErrValidationFailed, "staged upload belongs to another dataset")
	}

	// Check-then-insert races across handlers without this lock; the
	// partial unique index on pending requests is the cross-process
	// backstop.
	release, err := s.crLocks.Acquire(ctx, "upload:"+req.StagedUploadID.String(), s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	pending, err := s.crs.HasPendingForUpload(ctx, req.StagedUploadID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, apperrors.Wrap(apperrors.ErrInvalidState, "staged upload already has an open change request")
	}

	reviewers, err := s.eligibleReviewers(ctx, ds.ProjectID, req.SubmitterID)
	if err != nil {
		return nil, err
	}
	if len(reviewers) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrNoReviewers, "project %s has no eligible reviewers", ds.ProjectID)
	}

	cr := &models.ChangeRequest{
		ID:             uuid.New(),
		DatasetID:      req.DatasetID,
		Type:           upload.Kind,
		Status:         models.CRPending,
		SubmitterID:    req.SubmitterID,
		StagedUploadID: req.StagedUploadID,
		Title:          req.Title,
		Description:    req.Description,
		Reviewers:      reviewers,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	if err := s.crs.Create(ctx, cr); err != nil {
		return nil, fmt.Errorf("failed to create change request: %w", err)
	}

	event := NewEvent(req.DatasetID, models.AuditCRCreated, req.SubmitterID, req.Title)
	event.ChangeRequestID = &cr.ID
	event.Summary = models.ImpactSummary{Warnings: len(upload.Validation.Warnings)}
	if err := s.audit.Record(ctx, event); err != nil {
		s.log.Warn("failed to record cr_created event", "cr_id", cr.ID, "error", err)
	}

	s.notifier.Notify(ctx, Event{
		Type:            EventChangeCreated,
		DatasetID:       req.DatasetID,
		ChangeRequestID: &cr.ID,
		Actor:           req.SubmitterID,
		At:              cr.CreatedAt,
	})

	s.log.Info("change request submitted",
		"cr_id", cr.ID,
		"dataset_id", req.DatasetID,
		"type", cr.Type,
		"reviewers", len(reviewers))

	return cr, nil
}

// AssignReviewers replaces the reviewer set of a pending change request
func (s *ChangeRequestService) AssignReviewers(ctx context.Context, crID uuid.UUID, primary *string, reviewers []string, actor string) (*models.ChangeRequest, error) {
	cr, err := s.crs.GetByID(ctx, crID)
	if err != nil {
		return nil, err
	}
	if cr.Status.Terminal() {
		return nil, apperrors.Wrap(apperrors.ErrInvalidState, "change request is %s", cr.Status)
	}

	ds, err := s.datasets.GetByID(ctx, cr.DatasetID)
	if err != nil {
		return nil, err
	}

	for _, userID := range reviewers {
		if err := s.checkEligible(ctx, ds.ProjectID, userID, cr.SubmitterID); err != nil {
			return nil, err
		}
	}
	if primary != nil {
		if err := s.checkEligible(ctx, ds.ProjectID, *primary, cr.SubmitterID); err != nil {
			return nil, err
		}
	}

	ok, err := s.crs.UpdateReviewers(ctx, crID, primary, reviewers)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrInvalidState, "change request is no longer pending")
	}

	cr.PrimaryReviewer = primary
	cr.Reviewers = reviewers

	s.log.Info("reviewers assigned", "cr_id", crID, "actor", actor, "reviewers", len(reviewers))

	return cr, nil
}

// Approve merges a pending change request. Exactly one approval wins:
// the merge materializes one new version and flips the status in the
// same transaction, guarded by a compare-and-swap on the status
// column; concurrent decisions observe the terminal state.
func (s *ChangeRequestService) Approve(ctx context.Context, crID uuid.UUID, userID string) (*MergeResult, error) {
	release, err := s.crLocks.Acquire(ctx, "cr:"+crID.String(), s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	cr, err := s.crs.GetByID(ctx, crID)
	if err != nil {
		return nil, err
	}
	if cr.Status.Terminal() {
		return nil, apperrors.Wrap(apperrors.ErrInvalidState, "change request already %s", cr.Status)
	}
	if !s.policy.CanDecide(cr, userID) {
		return nil, apperrors.Wrap(apperrors.ErrNotEligible, "user %s is not an assigned reviewer", userID)
	}
	if !s.policy.Resolved(cr, userID) {
		// Not enough approvals yet under the active policy
		return &MergeResult{ChangeRequest: cr}, nil
	}

	version, err := s.merge(ctx, cr, userID)
	if err != nil {
		return nil, err
	}

	cr.Status = models.CRMerged
	cr.ResultVersion = &version.Number
	cr.UpdatedAt = time.Now()

	s.notifier.Notify(ctx, Event{
		Type:            EventChangeApproved,
		DatasetID:       cr.DatasetID,
		ChangeRequestID: &cr.ID,
		Version:         &version.Number,
		Actor:           userID,
		At:              cr.UpdatedAt,
	})

	s.log.Info("change request merged",
		"cr_id", crID,
		"dataset_id", cr.DatasetID,
		"version", version.Number,
		"approved_by", userID)

	return &MergeResult{ChangeRequest: cr, Version: version}, nil
}

// merge builds the next snapshot from the staged upload and commits it
// with a cr_merged audit event carrying the reconstructed diff. The
// pending-to-merged flip rides in the materialization transaction, so
// a decision taken elsewhere aborts the version, the event and the
// flip together.
func (s *ChangeRequestService) merge(ctx context.Context, cr *models.ChangeRequest, userID string) (*models.Version, error) {
	ds, err := s.datasets.GetByID(ctx, cr.DatasetID)
	if err != nil {
		return nil, err
	}

	upload, err := s.staged.GetByID(ctx, cr.StagedUploadID)
	if err != nil {
		return nil, err
	}
	stagedRows, err := s.blobs.GetPayload(ctx, upload.BlobID)
	if err != nil {
		return nil, err
	}

	prev, err := s.staging.currentRows(ctx, ds)
	if err != nil {
		return nil, err
	}

	next := stagedRows
	kind := models.OpWrite
	if cr.Type == models.CRAppend {
		kind = models.OpAppend
		merged := &models.TablePayload{Columns: stagedRows.Columns}
		if prev != nil {
			merged.Rows = append(merged.Rows, prev.Rows...)
		}
		merged.Rows = append(merged.Rows, stagedRows.Rows...)
		next = merged
	}

	req := &MaterializeRequest{
		DatasetID:       cr.DatasetID,
		Kind:            kind,
		Payload:         next,
		Actor:           userID,
		Title:           cr.Title,
		ChangeRequestID: &cr.ID,
		EventType:       models.AuditCRMerged,
		Validation:      &upload.Validation,
		Transition: &models.StatusTransition{
			ChangeRequestID: cr.ID,
			From:            models.CRPending,
			To:              models.CRMerged,
		},
	}
	if cr.Description != nil {
		req.Description = *cr.Description
	}

	if err := s.versioning.AttachDiff(ctx, req, prev, next, ds.Schema.KeyColumn); err != nil {
		return nil, err
	}

	return s.versioning.Materialize(ctx, req)
}

// Reject moves a pending change request to rejected. No version is
// created; the staged upload stays available for a new submission.
func (s *ChangeRequestService) Reject(ctx context.Context, crID uuid.UUID, userID string) (*models.ChangeRequest, error) {
	return s.resolve(ctx, crID, userID, models.CRRejected, models.AuditCRRejected, EventChangeRejected, func(cr *models.ChangeRequest) error {
		if !s.policy.CanDecide(cr, userID) {
			return apperrors.Wrap(apperrors.ErrNotEligible, "user %s is not an assigned reviewer", userID)
		}
		return nil
	})
}

// Withdraw lets the submitter pull back their own pending change request
func (s *ChangeRequestService) Withdraw(ctx context.Context, crID uuid.UUID, userID string) (*models.ChangeRequest, error) {
	return s.resolve(ctx, crID, userID, models.CRWithdrawn, models.AuditCRWithdrawn, EventChangeWithdrawn, func(cr *models.ChangeRequest) error {
		if cr.SubmitterID != userID {
			return apperrors.Wrap(apperrors.ErrForbidden, "only the submitter may withdraw")
		}
		return nil
	})
}

// resolve applies a terminal non-merge transition under the CR lock
func (s *ChangeRequestService) resolve(ctx context.Context, crID uuid.UUID, userID string, to models.CRStatus, eventType models.AuditEventType, notifyType string, check func(*models.ChangeRequest) error) (*models.ChangeRequest, error) {
	release, err := s.crLocks.Acquire(ctx, "cr:"+crID.String(), s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	cr, err := s.crs.GetByID(ctx, crID)
	if err != nil {
		return nil, err
	}
	if cr.Status.Terminal() {
		return nil, apperrors.Wrap(apperrors.ErrInvalidState, "change request already %s", cr.Status)
	}
	if err := check(cr); err != nil {
		return nil, err
	}

	ok, err := s.crs.TransitionCAS(ctx, crID, models.CRPending, to, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrInvalidState, "change request resolved concurrently")
	}

	cr.Status = to
	cr.UpdatedAt = time.Now()

	event := NewEvent(cr.DatasetID, eventType, userID, cr.Title)
	event.ChangeRequestID = &cr.ID
	if err := s.audit.Record(ctx, event); err != nil {
		s.log.Warn("failed to record transition event", "cr_id", crID, "type", eventType, "error", err)
	}

	s.notifier.Notify(ctx, Event{
		Type:            notifyType,
		DatasetID:       cr.DatasetID,
		ChangeRequestID: &cr.ID,
		Actor:           userID,
		At:              cr.UpdatedAt,
	})

	s.log.Info("change request resolved", "cr_id", crID, "status", to, "actor", userID)

	return cr, nil
}

// Get retrieves a change request by ID
func (s *ChangeRequestService) Get(ctx context.Context, crID uuid.UUID) (*models.ChangeRequest, error) {
	return s.crs.GetByID(ctx, crID)
}

// List returns the change requests of a dataset, optionally filtered
// by status.
func (s *ChangeRequestService) List(ctx context.Context, datasetID uuid.UUID, status models.CRStatus) ([]*models.ChangeRequest, error) {
	if _, err := s.datasets.GetByID(ctx, datasetID); err != nil {
		return nil, err
	}
	return s.crs.ListByDataset(ctx, datasetID, status)
}

// eligibleReviewers returns every project member ranked contributor or
// above, excluding the submitter.
func (s *ChangeRequestService) eligibleReviewers(ctx context.Context, projectID uuid.UUID, submitterID string) ([]string, error) {
	members, err := s.members.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	reviewers := make([]string, 0, len(members))
	for _, m := range members {
		if m.UserID == submitterID {
			continue
		}
		if m.Role.AtLeast(models.RoleContributor) {
			reviewers = append(reviewers, m.UserID)
		}
	}
	return reviewers, nil
}

func (s *ChangeRequestService) checkEligible(ctx context.Context, projectID uuid.UUID, userID, submitterID string) error {
	if userID == submitterID {
		return apperrors.Wrap(apperrors.ErrNotEligible, "submitter cannot review their own change")
	}
	member, err := s.members.Get(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if !member.Role.AtLeast(models.RoleContributor) {
		return apperrors.Wrap(apperrors.ErrNotEligible, "user %s lacks reviewer permissions", userID)
	}
	return nil
}
