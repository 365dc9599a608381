package container

import (
	"github.com/datacove/console/cmd/console/repository"
	"github.com/datacove/console/cmd/console/service"
	"github.com/datacove/console/common/bootstrap"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components

	// Repositories
	DatasetRepo      *repository.DatasetRepository
	VersionRepo      *repository.VersionRepository
	BlobRepo         *repository.BlobRepository
	ChangeRepo       *repository.ChangeRequestRepository
	StagedUploadRepo *repository.StagedUploadRepository
	AuditRepo        *repository.AuditEventRepository
	MemberRepo       *repository.MemberRepository

	// Services
	BlobService    *service.BlobService
	Validator      *service.Validator
	DiffService    *service.DiffService
	AuditService   *service.AuditService
	Versioning     *service.VersioningService
	Staging        *service.StagingService
	ChangeRequests *service.ChangeRequestService
	Schema         *service.SchemaService
	Notifier       service.Notifier
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config

	// Initialize repositories
	datasetRepo := repository.NewDatasetRepository(components.DB)
	versionRepo := repository.NewVersionRepository(components.DB)
	blobRepo := repository.NewBlobRepository(components.DB)
	changeRepo := repository.NewChangeRequestRepository(components.DB)
	stagedUploadRepo := repository.NewStagedUploadRepository(components.DB)
	auditRepo := repository.NewAuditEventRepository(components.DB)
	memberRepo := repository.NewMemberRepository(components.DB)

	// Notifier is best-effort; absent Redis degrades to a no-op
	var notifier service.Notifier = service.NoopNotifier{}
	if components.Notifier != nil {
		notifier = service.NewRedisNotifier(components.Notifier, cfg.Notifier.Channel, components.Logger)
	}

	// One lock registry serves dataset writes and CR transitions;
	// key prefixes keep the two spaces apart.
	locks := service.NewKeyedLocks()

	// Initialize services (bottom-up: dependencies first)
	blobService := service.NewBlobService(blobRepo, components.Logger)
	validator := service.NewValidator(components.Logger)
	diffService := service.NewDiffService(components.Logger)

	var diffCache = components.Notifier
	if !cfg.Cache.Enabled {
		diffCache = nil
	}
	auditService := service.NewAuditService(auditRepo, blobService, diffCache, components.Logger)

	versioning := service.NewVersioningService(
		datasetRepo,
		versionRepo,
		blobService,
		diffService,
		auditService,
		validator,
		notifier,
		locks,
		cfg.Locks.AcquireTimeout,
		components.Logger,
	)

	staging := service.NewStagingService(
		datasetRepo,
		stagedUploadRepo,
		versionRepo,
		blobService,
		validator,
		auditService,
		components.Logger,
	)

	changeRequests := service.NewChangeRequestService(
		changeRepo,
		stagedUploadRepo,
		datasetRepo,
		memberRepo,
		versioning,
		staging,
		blobService,
		auditService,
		service.SingleApprovalPolicy{},
		notifier,
		locks,
		cfg.Locks.AcquireTimeout,
		components.Logger,
	)

	schema := service.NewSchemaService(
		datasetRepo,
		memberRepo,
		validator,
		auditService,
		components.Logger,
	)

	return &Container{
		Components:       components,
		DatasetRepo:      datasetRepo,
		VersionRepo:      versionRepo,
		BlobRepo:         blobRepo,
		ChangeRepo:       changeRepo,
		StagedUploadRepo: stagedUploadRepo,
		AuditRepo:        auditRepo,
		MemberRepo:       memberRepo,
		BlobService:      blobService,
		Validator:        validator,
		DiffService:      diffService,
		AuditService:     auditService,
		Versioning:       versioning,
		Staging:          staging,
		ChangeRequests:   changeRequests,
		Schema:           schema,
		Notifier:         notifier,
	}, nil
}
