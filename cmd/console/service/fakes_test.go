package service

import (
	"context"
	"sync"
	"time"

	"github.com/datacove/console/cmd/console/models"
	"github.com/datacove/console/common/apperrors"
	"github.com/datacove/console/common/logger"
	"github.com/google/uuid"
)

// In-memory fakes for the store interfaces. They mirror the semantics
// the pgx repositories get from Postgres: the version store applies
// the pointer guard, the change request store applies the status CAS.

type memDatasets struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Dataset
}

func newMemDatasets() *memDatasets {
	return &memDatasets{rows: make(map[uuid.UUID]*models.Dataset)}
}

func (m *memDatasets) Create(ctx context.Context, ds *models.Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *ds
	m.rows[ds.ID] = &copied
	return nil
}

func (m *memDatasets) GetByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.rows[id]
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "dataset %s", id)
	}
	copied := *ds
	return &copied, nil
}

func (m *memDatasets) UpdateSchema(ctx context.Context, id uuid.UUID, schema models.Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.rows[id]
	if !ok {
		return apperrors.Wrap(apperrors.ErrNotFound, "dataset %s", id)
	}
	ds.Schema = schema
	ds.UpdatedAt = time.Now()
	return nil
}

func (m *memDatasets) UpdateRules(ctx context.Context, id uuid.UUID, rules models.RuleSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.rows[id]
	if !ok {
		return apperrors.Wrap(apperrors.ErrNotFound, "dataset %s", id)
	}
	ds.Rules = rules
	ds.UpdatedAt = time.Now()
	return nil
}

func (m *memDatasets) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *memDatasets) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Dataset
	for _, ds := range m.rows {
		if ds.ProjectID == projectID {
			copied := *ds
			out = append(out, &copied)
		}
	}
	return out, nil
}

type memVersions struct {
	mu       sync.Mutex
	datasets *memDatasets
	crs      *memCRs
	audit    *memAudit
	rows     map[uuid.UUID][]*models.Version

	// failNext, when set, makes the next Materialize fail once
	failNext error
}

func newMemVersions(datasets *memDatasets, crs *memCRs, audit *memAudit) *memVersions {
	return &memVersions{
		datasets: datasets,
		crs:      crs,
		audit:    audit,
		rows:     make(map[uuid.UUID][]*models.Version),
	}
}

// Materialize mimics the transactional commit: the version lands only
// if the dataset pointer still reads number-1 and, when a transition
// is requested, the change request still holds its expected status.
// All checks run before any mutation so a failure leaves no trace.
func (m *memVersions) Materialize(ctx context.Context, v *models.Version, event *models.AuditEvent, transition *models.StatusTransition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}

	m.datasets.mu.Lock()
	defer m.datasets.mu.Unlock()
	ds, ok := m.datasets.rows[v.DatasetID]
	if !ok {
		return apperrors.Wrap(apperrors.ErrNotFound, "dataset %s", v.DatasetID)
	}
	if ds.CurrentVersion != v.Number-1 {
		return apperrors.Wrap(apperrors.ErrInconsistent, "pointer at %d, expected %d", ds.CurrentVersion, v.Number-1)
	}
	for _, existing := range m.rows[v.DatasetID] {
		if existing.Number == v.Number {
			return apperrors.Wrap(apperrors.ErrInconsistent, "version %d already exists", v.Number)
		}
	}

	if transition != nil {
		m.crs.mu.Lock()
		cr, ok := m.crs.rows[transition.ChangeRequestID]
		if !ok || cr.Status != transition.From {
			m.crs.mu.Unlock()
			return apperrors.Wrap(apperrors.ErrInvalidState,
				"change request %s is no longer %s", transition.ChangeRequestID, transition.From)
		}
		number := v.Number
		cr.Status = transition.To
		cr.ResultVersion = &number
		cr.UpdatedAt = time.Now()
		m.crs.mu.Unlock()
	}

	ds.CurrentVersion = v.Number
	ds.UpdatedAt = time.Now()

	copied := *v
	m.rows[v.DatasetID] = append(m.rows[v.DatasetID], &copied)

	if event != nil {
		m.audit.Create(ctx, event)
	}
	return nil
}

func (m *memVersions) MaxVersion(ctx context.Context, datasetID uuid.UUID) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions := m.rows[datasetID]
	if len(versions) == 0 {
		return 0, false, nil
	}
	max := versions[0].Number
	for _, v := range versions {
		if v.Number > max {
			max = v.Number
		}
	}
	return max, true, nil
}

func (m *memVersions) GetByNumber(ctx context.Context, datasetID uuid.UUID, number int64) (*models.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.rows[datasetID] {
		if v.Number == number {
			copied := *v
			return &copied, nil
		}
	}
	return nil, apperrors.Wrap(apperrors.ErrVersionNotFound, "version %d", number)
}

func (m *memVersions) ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions := m.rows[datasetID]
	out := make([]*models.Version, 0, len(versions))
	for i := len(versions) - 1; i >= 0; i-- {
		copied := *versions[i]
		out = append(out, &copied)
	}
	return out, nil
}

type memBlobs struct {
	mu   sync.Mutex
	rows map[string]*models.Blob
}

func newMemBlobs() *memBlobs {
	return &memBlobs{rows: make(map[string]*models.Blob)}
}

func (m *memBlobs) Create(ctx context.Context, blob *models.Blob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *blob
	m.rows[blob.BlobID] = &copied
	return nil
}

func (m *memBlobs) Exists(ctx context.Context, blobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[blobID]
	return ok, nil
}

func (m *memBlobs) GetByID(ctx context.Context, blobID string) (*models.Blob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.rows[blobID]
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "blob %s", blobID)
	}
	copied := *blob
	return &copied, nil
}

type memCRs struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.ChangeRequest
}

func newMemCRs() *memCRs {
	return &memCRs{rows: make(map[uuid.UUID]*models.ChangeRequest)}
}

func (m *memCRs) Create(ctx context.Context, cr *models.ChangeRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *cr
	m.rows[cr.ID] = &copied
	return nil
}

func (m *memCRs) GetByID(ctx context.Context, id uuid.UUID) (*models.ChangeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cr, ok := m.rows[id]
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "change request %s", id)
	}
	copied := *cr
	return &copied, nil
}

func (m *memCRs) ListByDataset(ctx context.Context, datasetID uuid.UUID, status models.CRStatus) ([]*models.ChangeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ChangeRequest
	for _, cr := range m.rows {
		if cr.DatasetID != datasetID {
			continue
		}
		if status != "" && cr.Status != status {
			continue
		}
		copied := *cr
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memCRs) HasPendingForUpload(ctx context.Context, stagedUploadID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cr := range m.rows {
		if cr.StagedUploadID == stagedUploadID && cr.Status == models.CRPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *memCRs) TransitionCAS(ctx context.Context, id uuid.UUID, from, to models.CRStatus, resultVersion *int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cr, ok := m.rows[id]
	if !ok || cr.Status != from {
		return false, nil
	}
	cr.Status = to
	if resultVersion != nil {
		cr.ResultVersion = resultVersion
	}
	cr.UpdatedAt = time.Now()
	return true, nil
}

func (m *memCRs) UpdateReviewers(ctx context.Context, id uuid.UUID, primary *string, reviewers []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cr, ok := m.rows[id]
	if !ok || cr.Status != models.CRPending {
		return false, nil
	}
	cr.PrimaryReviewer = primary
	cr.Reviewers = reviewers
	cr.UpdatedAt = time.Now()
	return true, nil
}

type memUploads struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.StagedUpload
}

func newMemUploads() *memUploads {
	return &memUploads{rows: make(map[uuid.UUID]*models.StagedUpload)}
}

func (m *memUploads) Create(ctx context.Context, su *models.StagedUpload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *su
	m.rows[su.ID] = &copied
	return nil
}

func (m *memUploads) GetByID(ctx context.Context, id uuid.UUID) (*models.StagedUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	su, ok := m.rows[id]
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "staged upload %s", id)
	}
	copied := *su
	return &copied, nil
}

type memAudit struct {
	mu   sync.Mutex
	rows []*models.AuditEvent
}

func newMemAudit() *memAudit {
	return &memAudit{}
}

func (m *memAudit) Create(ctx context.Context, e *models.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *e
	m.rows = append(m.rows, &copied)
	return nil
}

func (m *memAudit) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.rows {
		if e.ID == id {
			copied := *e
			return &copied, nil
		}
	}
	return nil, apperrors.Wrap(apperrors.ErrNotFound, "audit event %s", id)
}

func (m *memAudit) ListByDataset(ctx context.Context, datasetID uuid.UUID, limit, offset int, typeFilter models.AuditEventType) ([]*models.AuditEvent, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*models.AuditEvent
	for i := len(m.rows) - 1; i >= 0; i-- {
		e := m.rows[i]
		if e.DatasetID != datasetID {
			continue
		}
		if typeFilter != "" && e.Type != typeFilter {
			continue
		}
		copied := *e
		matched = append(matched, &copied)
	}

	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// byType counts recorded events of a given type for assertions
func (m *memAudit) byType(eventType models.AuditEventType) []*models.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AuditEvent
	for _, e := range m.rows {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type memMembers struct {
	mu   sync.Mutex
	rows []*models.Member
}

func newMemMembers(members ...*models.Member) *memMembers {
	return &memMembers{rows: members}
}

func (m *memMembers) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Member
	for _, member := range m.rows {
		if member.ProjectID == projectID {
			copied := *member
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memMembers) Get(ctx context.Context, projectID uuid.UUID, userID string) (*models.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, member := range m.rows {
		if member.ProjectID == projectID && member.UserID == userID {
			copied := *member
			return &copied, nil
		}
	}
	return nil, apperrors.Wrap(apperrors.ErrNotFound, "member %s", userID)
}

// testEnv wires the full service stack over in-memory stores
type testEnv struct {
	projectID uuid.UUID
	datasets  *memDatasets
	versions  *memVersions
	blobs     *memBlobs
	crs       *memCRs
	uploads   *memUploads
	audit     *memAudit
	members   *memMembers
	locks     *KeyedLocks

	blobSvc    *BlobService
	validator  *Validator
	diffSvc    *DiffService
	auditSvc   *AuditService
	versioning *VersioningService
	staging    *StagingService
	changes    *ChangeRequestService
	schemaSvc  *SchemaService
}

func newTestEnv(lockWait time.Duration, members ...*models.Member) *testEnv {
	log := logger.New("error", "json")

	env := &testEnv{
		projectID: uuid.New(),
		datasets:  newMemDatasets(),
		blobs:     newMemBlobs(),
		crs:       newMemCRs(),
		uploads:   newMemUploads(),
		audit:     newMemAudit(),
		members:   newMemMembers(members...),
		locks:     NewKeyedLocks(),
	}
	env.versions = newMemVersions(env.datasets, env.crs, env.audit)

	env.blobSvc = NewBlobService(env.blobs, log)
	env.validator = NewValidator(log)
	env.diffSvc = NewDiffService(log)
	env.auditSvc = NewAuditService(env.audit, env.blobSvc, nil, log)
	env.versioning = NewVersioningService(
		env.datasets, env.versions, env.blobSvc, env.diffSvc, env.auditSvc,
		env.validator, NoopNotifier{}, env.locks, lockWait, log,
	)
	env.staging = NewStagingService(
		env.datasets, env.uploads, env.versions, env.blobSvc,
		env.validator, env.auditSvc, log,
	)
	env.changes = NewChangeRequestService(
		env.crs, env.uploads, env.datasets, env.members,
		env.versioning, env.staging, env.blobSvc, env.auditSvc,
		SingleApprovalPolicy{}, NoopNotifier{}, env.locks, lockWait, log,
	)
	env.schemaSvc = NewSchemaService(env.datasets, env.members, env.validator, env.auditSvc, log)

	return env
}

func member(projectID uuid.UUID, userID string, role models.Role) *models.Member {
	return &models.Member{
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		AddedAt:   time.Now(),
	}
}
