package service

import (
	"fmt"
	"time"

	"github.com/datacove/console/cmd/console/models"
	"github.com/datacove/console/common/logger"
)

// Validator is the gatekeeper before any data reaches the change
// request engine. Hard rule violations are errors and block
// submission; soft rules only produce warnings.
type Validator struct {
	expr *exprEvaluator
	log  *logger.Logger
}

// NewValidator creates a new validator
func NewValidator(log *logger.Logger) *Validator {
	return &Validator{
		expr: newExprEvaluator(),
		log:  log,
	}
}

// ValidateSchema performs a structural check of a candidate schema,
// independent of any data.
func (v *Validator) ValidateSchema(schema models.Schema) models.ValidationResult {
	var errs []models.ValidationIssue

	if len(schema.Columns) == 0 {
		errs = append(errs, models.ValidationIssue{
			Rule:    "schema",
			Message: "schema must declare at least one column",
		})
	}

	seen := make(map[string]bool)
	for _, col := range schema.Columns {
		if col.Name == "" {
			errs = append(errs, models.ValidationIssue{
				Rule:    "schema",
				Message: "column name cannot be empty",
			})
			continue
		}
		if seen[col.Name] {
			errs = append(errs, models.ValidationIssue{
				Rule:    "schema",
				Column:  col.Name,
				Message: fmt.Sprintf("duplicate column: %s", col.Name),
			})
		}
		seen[col.Name] = true

		if !models.KnownColumnType(col.Type) {
			errs = append(errs, models.ValidationIssue{
				Rule:    "schema",
				Column:  col.Name,
				Message: fmt.Sprintf("unknown column type: %s", col.Type),
			})
		}
	}

	if schema.KeyColumn != "" && !seen[schema.KeyColumn] {
		errs = append(errs, models.ValidationIssue{
			Rule:    "schema",
			Column:  schema.KeyColumn,
			Message: fmt.Sprintf("key column %s is not declared", schema.KeyColumn),
		})
	}

	return models.ValidationResult{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}

// ValidateRules checks that every rule references declared columns and
// that expression rules compile.
func (v *Validator) ValidateRules(schema models.Schema, rules models.RuleSet) models.ValidationResult {
	var errs []models.ValidationIssue

	check := func(ruleType, column string) {
		if schema.Column(column) == nil {
			errs = append(errs, models.ValidationIssue{
				Rule:    ruleType,
				Column:  column,
				Message: fmt.Sprintf("rule references undeclared column: %s", column),
			})
		}
	}

	for _, rule := range rules {
		switch r := rule.(type) {
		case models.RequiredRule:
			for _, col := range r.Columns {
				check(r.RuleType(), col)
			}
		case models.UniqueRule:
			check(r.RuleType(), r.Column)
		case models.RangeRule:
			check(r.RuleType(), r.Column)
			if r.Min > r.Max {
				errs = append(errs, models.ValidationIssue{
					Rule:    r.RuleType(),
					Column:  r.Column,
					Message: fmt.Sprintf("range min %v exceeds max %v", r.Min, r.Max),
				})
			}
		case models.GreaterThanRule:
			check(r.RuleType(), r.Column)
		case models.LessThanRule:
			check(r.RuleType(), r.Column)
		case models.EqualsRule:
			check(r.RuleType(), r.Column)
		case models.ReadonlyRule:
			for _, col := range r.Columns {
				check(r.RuleType(), col)
			}
		case models.ExpressionRule:
			if err := v.expr.Compile(r.Expression); err != nil {
				errs = append(errs, models.ValidationIssue{
					Rule:    r.RuleType(),
					Message: fmt.Sprintf("rule %s: %v", r.Name, err),
				})
			}
		}
	}

	return models.ValidationResult{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}

// ValidateData evaluates a candidate mutation against the schema and
// business rules. prior holds the rows of the current version; it is
// consulted by unique (cross-version duplicates) and readonly (edits
// must not touch protected fields).
func (v *Validator) ValidateData(schema models.Schema, rules models.RuleSet, rows, prior []models.Row, kind models.CRType) models.ValidationResult {
	var (
		errs     []models.ValidationIssue
		warnings []models.ValidationIssue
	)

	// Cell types and schema-level required flags
	for i, row := range rows {
		for _, col := range schema.Columns {
			val, ok := row[col.Name]
			if !ok || isNull(val) {
				if col.Required {
					errs = append(errs, models.ValidationIssue{
						Rule:    "required",
						Column:  col.Name,
						RowIdx:  i,
						Message: fmt.Sprintf("row %d: %s is required", i, col.Name),
					})
				}
				continue
			}

			if !cellTypeOK(col.Type, val) {
				errs = append(errs, models.ValidationIssue{
					Rule:    "type",
					Column:  col.Name,
					RowIdx:  i,
					Message: fmt.Sprintf("row %d: %s must be %s, got %T", i, col.Name, col.Type, val),
				})
			}
		}
	}

	priorByKey := indexByKey(prior, schema.KeyColumn)

	for _, rule := range rules {
		switch r := rule.(type) {
		case models.RequiredRule:
			for i, row := range rows {
				for _, col := range r.Columns {
					if isNull(row[col]) {
						errs = append(errs, models.ValidationIssue{
							Rule:    r.RuleType(),
							Column:  col,
							RowIdx:  i,
							Message: fmt.Sprintf("row %d: %s is required", i, col),
						})
					}
				}
			}

		case models.UniqueRule:
			seen := make(map[string]bool)
			if kind == models.CRAppend {
				// Appends must not duplicate values already committed
				for _, row := range prior {
					seen[canonical(row[r.Column])] = true
				}
			}
			for i, row := range rows {
				key := canonical(row[r.Column])
				if isNull(row[r.Column]) {
					continue
				}
				if seen[key] {
					errs = append(errs, models.ValidationIssue{
						Rule:    r.RuleType(),
						Column:  r.Column,
						RowIdx:  i,
						Message: fmt.Sprintf("row %d: duplicate value for %s", i, r.Column),
					})
				}
				seen[key] = true
			}

		case models.RangeRule:
			v.checkBound(rows, r.Column, r.RuleType(), &errs, func(f float64) bool {
				return f >= r.Min && f <= r.Max
			}, fmt.Sprintf("must be between %v and %v", r.Min, r.Max))

		case models.GreaterThanRule:
			v.checkBound(rows, r.Column, r.RuleType(), &errs, func(f float64) bool {
				return f > r.Value
			}, fmt.Sprintf("must be greater than %v", r.Value))

		case models.LessThanRule:
			v.checkBound(rows, r.Column, r.RuleType(), &errs, func(f float64) bool {
				return f < r.Value
			}, fmt.Sprintf("must be less than %v", r.Value))

		case models.EqualsRule:
			for i, row := range rows {
				val := row[r.Column]
				if isNull(val) {
					continue
				}
				if canonical(val) != canonical(r.Value) {
					errs = append(errs, models.ValidationIssue{
						Rule:    r.RuleType(),
						Column:  r.Column,
						RowIdx:  i,
						Message: fmt.Sprintf("row %d: %s must equal %v", i, r.Column, r.Value),
					})
				}
			}

		case models.ReadonlyRule:
			// Only meaningful for edits with a stable key to match
			// prior rows; appends have no prior field to protect.
			if kind != models.CREdit || priorByKey == nil {
				continue
			}
			for i, row := range rows {
				old, ok := priorByKey[canonical(row[schema.KeyColumn])]
				if !ok {
					continue
				}
				for _, col := range r.Columns {
					if canonical(row[col]) != canonical(old[col]) {
						errs = append(errs, models.ValidationIssue{
							Rule:    r.RuleType(),
							Column:  col,
							RowIdx:  i,
							Message: fmt.Sprintf("row %d: %s is readonly", i, col),
						})
					}
				}
			}

		case models.ExpressionRule:
			// Soft rule: failures warn, never block
			for i, row := range rows {
				ok, err := v.expr.EvalRow(r.Expression, row)
				if err != nil {
					warnings = append(warnings, models.ValidationIssue{
						Rule:    r.RuleType(),
						RowIdx:  i,
						Message: fmt.Sprintf("row %d: rule %s: %v", i, r.Name, err),
					})
					continue
				}
				if !ok {
					warnings = append(warnings, models.ValidationIssue{
						Rule:    r.RuleType(),
						RowIdx:  i,
						Message: fmt.Sprintf("row %d: rule %s not satisfied", i, r.Name),
					})
				}
			}
		}
	}

	return models.ValidationResult{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}

func (v *Validator) checkBound(rows []models.Row, column, ruleType string, errs *[]models.ValidationIssue, ok func(float64) bool, desc string) {
	for i, row := range rows {
		val := row[column]
		if isNull(val) {
			continue
		}

		f, numeric := toFloat(val)
		if !numeric {
			*errs = append(*errs, models.ValidationIssue{
				Rule:    ruleType,
				Column:  column,
				RowIdx:  i,
				Message: fmt.Sprintf("row %d: %s is not numeric", i, column),
			})
			continue
		}

		if !ok(f) {
			*errs = append(*errs, models.ValidationIssue{
				Rule:    ruleType,
				Column:  column,
				RowIdx:  i,
				Message: fmt.Sprintf("row %d: %s %s", i, column, desc),
			})
		}
	}
}

// indexByKey builds a key -> row lookup, or nil without a key column
func indexByKey(rows []models.Row, keyColumn string) map[string]models.Row {
	if keyColumn == "" {
		return nil
	}
	index := make(map[string]models.Row, len(rows))
	for _, row := range rows {
		index[canonical(row[keyColumn])] = row
	}
	return index
}

func isNull(val any) bool {
	if val == nil {
		return true
	}
	s, ok := val.(string)
	return ok && s == ""
}

// canonical renders a value for identity comparison. Numbers compare
// by value so 1 and 1.0 collide, matching JSON round-trip behavior.
func canonical(val any) string {
	if f, ok := toFloat(val); ok {
		return fmt.Sprintf("%g", f)
	}
	return fmt.Sprintf("%v", val)
}

func toFloat(val any) (float64, bool) {
	switch n := val.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func cellTypeOK(colType models.ColumnType, val any) bool {
	switch colType {
	case models.ColumnString:
		_, ok := val.(string)
		return ok
	case models.ColumnInteger:
		f, ok := toFloat(val)
		return ok && f == float64(int64(f))
	case models.ColumnFloat:
		_, ok := toFloat(val)
		return ok
	case models.ColumnBoolean:
		_, ok := val.(bool)
		return ok
	case models.ColumnDate:
		s, ok := val.(string)
		if !ok {
			return false
		}
		_, err := time.Parse("2006-01-02", s)
		return err == nil
	}
	return false
}
