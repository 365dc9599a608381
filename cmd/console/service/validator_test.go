package service

import (
	"testing"

	"github.com/datacove/console/cmd/console/models"
	"github.com/datacove/console/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator() *Validator {
	return NewValidator(logger.New("error", "json"))
}

func productSchema() models.Schema {
	return models.Schema{
		Columns: []models.Column{
			{Name: "sku", Type: models.ColumnString, Required: true},
			{Name: "name", Type: models.ColumnString},
			{Name: "price", Type: models.ColumnFloat},
			{Name: "stock", Type: models.ColumnInteger},
			{Name: "active", Type: models.ColumnBoolean},
			{Name: "launched", Type: models.ColumnDate},
		},
		KeyColumn: "sku",
	}
}

func TestValidateSchema(t *testing.T) {
	v := newTestValidator()

	t.Run("valid", func(t *testing.T) {
		result := v.ValidateSchema(productSchema())
		assert.True(t, result.Valid)
	})

	t.Run("empty", func(t *testing.T) {
		result := v.ValidateSchema(models.Schema{})
		assert.False(t, result.Valid)
	})

	t.Run("duplicate column", func(t *testing.T) {
		result := v.ValidateSchema(models.Schema{Columns: []models.Column{
			{Name: "a", Type: models.ColumnString},
			{Name: "a", Type: models.ColumnString},
		}})
		assert.False(t, result.Valid)
	})

	t.Run("unknown type", func(t *testing.T) {
		result := v.ValidateSchema(models.Schema{Columns: []models.Column{
			{Name: "a", Type: "decimal"},
		}})
		assert.False(t, result.Valid)
	})

	t.Run("undeclared key column", func(t *testing.T) {
		result := v.ValidateSchema(models.Schema{
			Columns:   []models.Column{{Name: "a", Type: models.ColumnString}},
			KeyColumn: "missing",
		})
		assert.False(t, result.Valid)
	})
}

func TestValidateRules(t *testing.T) {
	v := newTestValidator()
	schema := productSchema()

	t.Run("valid set", func(t *testing.T) {
		rules := models.RuleSet{
			models.RequiredRule{Columns: []string{"sku", "name"}},
			models.UniqueRule{Column: "sku"},
			models.RangeRule{Column: "price", Min: 0, Max: 10000},
			models.ExpressionRule{Name: "stocked", Expression: `row.stock >= 0`},
		}
		result := v.ValidateRules(schema, rules)
		assert.True(t, result.Valid, "errors: %v", result.Errors)
	})

	t.Run("undeclared column", func(t *testing.T) {
		result := v.ValidateRules(schema, models.RuleSet{
			models.UniqueRule{Column: "nope"},
		})
		assert.False(t, result.Valid)
	})

	t.Run("inverted range", func(t *testing.T) {
		result := v.ValidateRules(schema, models.RuleSet{
			models.RangeRule{Column: "price", Min: 10, Max: 1},
		})
		assert.False(t, result.Valid)
	})

	t.Run("broken expression", func(t *testing.T) {
		result := v.ValidateRules(schema, models.RuleSet{
			models.ExpressionRule{Name: "bad", Expression: `row.stock >=`},
		})
		assert.False(t, result.Valid)
	})
}

func TestValidateData_TypesAndRequired(t *testing.T) {
	v := newTestValidator()
	schema := productSchema()

	t.Run("clean rows", func(t *testing.T) {
		rows := []models.Row{
			{"sku": "A1", "name": "Widget", "price": 9.5, "stock": float64(3), "active": true, "launched": "2024-06-01"},
		}
		result := v.ValidateData(schema, nil, rows, nil, models.CRAppend)
		assert.True(t, result.Valid, "errors: %v", result.Errors)
	})

	t.Run("missing required cell", func(t *testing.T) {
		rows := []models.Row{{"name": "No SKU"}}
		result := v.ValidateData(schema, nil, rows, nil, models.CRAppend)
		require.False(t, result.Valid)
		assert.Equal(t, "required", result.Errors[0].Rule)
		assert.Equal(t, 0, result.Errors[0].RowIdx)
	})

	t.Run("type mismatches", func(t *testing.T) {
		rows := []models.Row{
			{"sku": "A1", "stock": 2.5},              // fractional integer
			{"sku": "A2", "active": "yes"},           // non-bool
			{"sku": "A3", "launched": "June 1 2024"}, // unparseable date
		}
		result := v.ValidateData(schema, nil, rows, nil, models.CRAppend)
		require.False(t, result.Valid)
		assert.Len(t, result.Errors, 3)
	})

	t.Run("integral float accepted for integer column", func(t *testing.T) {
		rows := []models.Row{{"sku": "A1", "stock": float64(7)}}
		result := v.ValidateData(schema, nil, rows, nil, models.CRAppend)
		assert.True(t, result.Valid)
	})
}

func TestValidateData_UniqueRule(t *testing.T) {
	v := newTestValidator()
	schema := productSchema()
	rules := models.RuleSet{models.UniqueRule{Column: "sku"}}

	t.Run("duplicate within upload", func(t *testing.T) {
		rows := []models.Row{{"sku": "A1"}, {"sku": "A1"}}
		result := v.ValidateData(schema, rules, rows, nil, models.CREdit)
		require.False(t, result.Valid)
		assert.Equal(t, "unique", result.Errors[0].Rule)
		assert.Equal(t, 1, result.Errors[0].RowIdx)
	})

	t.Run("append collides with committed rows", func(t *testing.T) {
		prior := []models.Row{{"sku": "A1"}}
		rows := []models.Row{{"sku": "A1"}}
		result := v.ValidateData(schema, rules, rows, prior, models.CRAppend)
		assert.False(t, result.Valid)
	})

	t.Run("edit may restate committed values", func(t *testing.T) {
		prior := []models.Row{{"sku": "A1"}}
		rows := []models.Row{{"sku": "A1"}, {"sku": "A2"}}
		result := v.ValidateData(schema, rules, rows, prior, models.CREdit)
		assert.True(t, result.Valid)
	})
}

func TestValidateData_Bounds(t *testing.T) {
	v := newTestValidator()
	schema := productSchema()

	cases := []struct {
		name  string
		rules models.RuleSet
		row   models.Row
		valid bool
	}{
		{"range inside", models.RuleSet{models.RangeRule{Column: "price", Min: 0, Max: 100}}, models.Row{"sku": "A", "price": 50.0}, true},
		{"range below", models.RuleSet{models.RangeRule{Column: "price", Min: 0, Max: 100}}, models.Row{"sku": "A", "price": -1.0}, false},
		{"range at edge", models.RuleSet{models.RangeRule{Column: "price", Min: 0, Max: 100}}, models.Row{"sku": "A", "price": 100.0}, true},
		{"greater_than pass", models.RuleSet{models.GreaterThanRule{Column: "stock", Value: 0}}, models.Row{"sku": "A", "stock": float64(1)}, true},
		{"greater_than equal fails", models.RuleSet{models.GreaterThanRule{Column: "stock", Value: 0}}, models.Row{"sku": "A", "stock": float64(0)}, false},
		{"less_than pass", models.RuleSet{models.LessThanRule{Column: "stock", Value: 10}}, models.Row{"sku": "A", "stock": float64(9)}, true},
		{"less_than fail", models.RuleSet{models.LessThanRule{Column: "stock", Value: 10}}, models.Row{"sku": "A", "stock": float64(10)}, false},
		{"non numeric cell", models.RuleSet{models.RangeRule{Column: "price", Min: 0, Max: 100}}, models.Row{"sku": "A", "price": "cheap"}, false},
		{"null skipped", models.RuleSet{models.RangeRule{Column: "price", Min: 0, Max: 100}}, models.Row{"sku": "A"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := v.ValidateData(schema, tc.rules, []models.Row{tc.row}, nil, models.CRAppend)
			assert.Equal(t, tc.valid, result.Valid, "errors: %v", result.Errors)
		})
	}
}

func TestValidateData_Equals(t *testing.T) {
	v := newTestValidator()
	schema := productSchema()
	rules := models.RuleSet{models.EqualsRule{Column: "active", Value: true}}

	result := v.ValidateData(schema, rules, []models.Row{{"sku": "A", "active": true}}, nil, models.CRAppend)
	assert.True(t, result.Valid)

	result = v.ValidateData(schema, rules, []models.Row{{"sku": "A", "active": false}}, nil, models.CRAppend)
	assert.False(t, result.Valid)
}

func TestValidateData_Readonly(t *testing.T) {
	v := newTestValidator()
	schema := productSchema()
	rules := models.RuleSet{models.ReadonlyRule{Columns: []string{"name"}}}
	prior := []models.Row{{"sku": "A1", "name": "Widget", "price": 5.0}}

	t.Run("edit touching protected field", func(t *testing.T) {
		rows := []models.Row{{"sku": "A1", "name": "Renamed", "price": 5.0}}
		result := v.ValidateData(schema, rules, rows, prior, models.CREdit)
		require.False(t, result.Valid)
		assert.Equal(t, "readonly", result.Errors[0].Rule)
	})

	t.Run("edit keeping protected field", func(t *testing.T) {
		rows := []models.Row{{"sku": "A1", "name": "Widget", "price": 6.0}}
		result := v.ValidateData(schema, rules, rows, prior, models.CREdit)
		assert.True(t, result.Valid)
	})

	t.Run("append ignores readonly", func(t *testing.T) {
		rows := []models.Row{{"sku": "A2", "name": "Other"}}
		result := v.ValidateData(schema, rules, rows, prior, models.CRAppend)
		assert.True(t, result.Valid)
	})
}

func TestValidateData_ExpressionWarnsOnly(t *testing.T) {
	v := newTestValidator()
	schema := productSchema()
	rules := models.RuleSet{
		models.ExpressionRule{Name: "priced", Expression: `row.price > 0.0`},
	}

	rows := []models.Row{
		{"sku": "A1", "price": 5.0},
		{"sku": "A2", "price": -1.0},
	}

	result := v.ValidateData(schema, rules, rows, nil, models.CRAppend)

	// Soft rule: the violation warns but never blocks
	assert.True(t, result.Valid)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, 1, result.Warnings[0].RowIdx)
}
