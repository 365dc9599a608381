package service

import (
	"github.com/datacove/console/cmd/console/models"
	"github.com/datacove/console/common/logger"
)

// DiffService turns version transitions into categorized diffs and
// aggregate impact summaries. Pure computation, no storage access.
type DiffService struct {
	log *logger.Logger
}

// NewDiffService creates a new diff service
func NewDiffService(log *logger.Logger) *DiffService {
	return &DiffService{log: log}
}

// Reconstruct computes the delta between two row sets. Row identity
// comes from keyColumn; with no key column rows are matched by
// position, which cannot distinguish an edit from a delete+add.
func (s *DiffService) Reconstruct(prev, next []models.Row, keyColumn string) *models.Diff {
	if keyColumn == "" {
		return s.reconstructPositional(prev, next)
	}

	diff := &models.Diff{
		Added:   []models.Row{},
		Updated: []models.RowChange{},
		Deleted: []models.Row{},
	}

	prevByKey := indexByKey(prev, keyColumn)
	nextKeys := make(map[string]bool, len(next))

	for _, row := range next {
		key := canonical(row[keyColumn])
		nextKeys[key] = true

		old, exists := prevByKey[key]
		if !exists {
			diff.Added = append(diff.Added, row)
			continue
		}

		changes := fieldChanges(old, row)
		if len(changes) > 0 {
			diff.Updated = append(diff.Updated, models.RowChange{
				Key:     row[keyColumn],
				Changes: changes,
			})
		}
	}

	for _, row := range prev {
		if !nextKeys[canonical(row[keyColumn])] {
			diff.Deleted = append(diff.Deleted, row)
		}
	}

	return diff
}

// reconstructPositional matches rows by index. Reduced fidelity: a
// deleted middle row shows up as an edit cascade plus one deletion.
func (s *DiffService) reconstructPositional(prev, next []models.Row) *models.Diff {
	diff := &models.Diff{
		Added:      []models.Row{},
		Updated:    []models.RowChange{},
		Deleted:    []models.Row{},
		Positional: true,
	}

	common := len(prev)
	if len(next) < common {
		common = len(next)
	}

	for i := 0; i < common; i++ {
		changes := fieldChanges(prev[i], next[i])
		if len(changes) > 0 {
			diff.Updated = append(diff.Updated, models.RowChange{
				Key:     i,
				Changes: changes,
			})
		}
	}

	for i := common; i < len(next); i++ {
		diff.Added = append(diff.Added, next[i])
	}
	for i := common; i < len(prev); i++ {
		diff.Deleted = append(diff.Deleted, prev[i])
	}

	return diff
}

// Summarize aggregates a diff and the validator output captured at
// submission time into an impact summary.
func (s *DiffService) Summarize(diff *models.Diff, validation *models.ValidationResult) models.ImpactSummary {
	summary := models.ImpactSummary{}

	if diff != nil {
		summary.RowsAdded = len(diff.Added)
		summary.RowsUpdated = len(diff.Updated)
		summary.RowsDeleted = len(diff.Deleted)
		summary.CellsChanged = diff.CellsChanged()
	}

	if validation != nil {
		summary.Warnings = len(validation.Warnings)
		summary.Errors = len(validation.Errors)
	}

	return summary
}

// fieldChanges compares two rows over the union of their fields
func fieldChanges(before, after models.Row) map[string]models.FieldChange {
	changes := make(map[string]models.FieldChange)

	for field, newVal := range after {
		oldVal, existed := before[field]
		if !existed || canonical(oldVal) != canonical(newVal) {
			changes[field] = models.FieldChange{Old: oldVal, New: newVal}
		}
	}

	for field, oldVal := range before {
		if _, present := after[field]; !present {
			changes[field] = models.FieldChange{Old: oldVal, New: nil}
		}
	}

	return changes
}
