package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/datacove/console/cmd/console/models"
	"github.com/datacove/console/common/apperrors"
	"github.com/datacove/console/common/logger"
	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
)

// SchemaService edits a dataset's schema and rule set. Schema changes
// arrive as RFC 6902 patch documents applied to the stored schema
// JSON; the patched result must pass structural validation before it
// is persisted.
type SchemaService struct {
	datasets  DatasetStore
	members   MemberStore
	validator *Validator
	audit     *AuditService
	log       *logger.Logger
}

// NewSchemaService creates a new schema service
func NewSchemaService(datasets DatasetStore, members MemberStore, validator *Validator, audit *AuditService, log *logger.Logger) *SchemaService {
	return &SchemaService{
		datasets:  datasets,
		members:   members,
		validator: validator,
		audit:     audit,
		log:       log,
	}
}

// UpdateSchema applies a JSON Patch to the dataset schema
func (s *SchemaService) UpdateSchema(ctx context.Context, datasetID uuid.UUID, patchJSON []byte, actor string) (*models.Dataset, error) {
	ds, err := s.authorize(ctx, datasetID, actor)
	if err != nil {
		return nil, err
	}

	schemaJSON, err := json.Marshal(ds.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	patch, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrValidationFailed, "invalid patch document: %v", err)
	}

	patchedJSON, err := patch.Apply(schemaJSON)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrValidationFailed, "patch does not apply: %v", err)
	}

	var patched models.Schema
	if err := json.Unmarshal(patchedJSON, &patched); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrValidationFailed, "patched schema is malformed: %v", err)
	}

	if result := s.validator.ValidateSchema(patched); !result.Valid {
		return nil, apperrors.Wrap(apperrors.ErrValidationFailed, "patched schema invalid: %s", issueSummary(result.Errors))
	}
	if result := s.validator.ValidateRules(patched, ds.Rules); !result.Valid {
		return nil, apperrors.Wrap(apperrors.ErrValidationFailed, "existing rules incompatible: %s", issueSummary(result.Errors))
	}

	if err := s.datasets.UpdateSchema(ctx, datasetID, patched); err != nil {
		return nil, err
	}
	ds.Schema = patched

	event := NewEvent(datasetID, models.AuditSchemaChange, actor, "Schema updated")
	if err := s.audit.Record(ctx, event); err != nil {
		s.log.Warn("failed to record schema_change event", "dataset_id", datasetID, "error", err)
	}

	s.log.Info("schema updated", "dataset_id", datasetID, "actor", actor, "columns", len(patched.Columns))

	return ds, nil
}

// UpdateRules replaces the dataset's rule set
func (s *SchemaService) UpdateRules(ctx context.Context, datasetID uuid.UUID, rules models.RuleSet, actor string) (*models.Dataset, error) {
	ds, err := s.authorize(ctx, datasetID, actor)
	if err != nil {
		return nil, err
	}

	if result := s.validator.ValidateRules(ds.Schema, rules); !result.Valid {
		return nil, apperrors.Wrap(apperrors.ErrValidationFailed, "rules invalid: %s", issueSummary(result.Errors))
	}

	if err := s.datasets.UpdateRules(ctx, datasetID, rules); err != nil {
		return nil, err
	}
	ds.Rules = rules

	event := NewEvent(datasetID, models.AuditRuleChange, actor, "Rules updated")
	if err := s.audit.Record(ctx, event); err != nil {
		s.log.Warn("failed to record rule_change event", "dataset_id", datasetID, "error", err)
	}

	s.log.Info("rules updated", "dataset_id", datasetID, "actor", actor, "rules", len(rules))

	return ds, nil
}

// authorize loads the dataset and requires the actor to be at least a
// maintainer on its project.
func (s *SchemaService) authorize(ctx context.Context, datasetID uuid.UUID, actor string) (*models.Dataset, error) {
	ds, err := s.datasets.GetByID(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	member, err := s.members.Get(ctx, ds.ProjectID, actor)
	if err != nil {
		return nil, err
	}
	if !member.Role.AtLeast(models.RoleMaintainer) {
		return nil, apperrors.Wrap(apperrors.ErrForbidden, "schema edits require maintainer role")
	}

	return ds, nil
}

func issueSummary(issues []models.ValidationIssue) string {
	if len(issues) == 0 {
		return "no issues"
	}
	return issues[0].Message
}
