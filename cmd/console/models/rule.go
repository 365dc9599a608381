package models

import (
	"encoding/json"
	"fmt"
)

// Rule is one business rule attached to a dataset. Rules arrive from
// the UI as loosely-typed records with a "type" discriminator; they are
// decoded into concrete variants and dispatched with a type switch.
type Rule interface {
	RuleType() string

	// Hard rules block submission on violation; soft rules only warn.
	Hard() bool
}

// RequiredRule requires the listed columns to be non-null
type RequiredRule struct {
	Columns []string `json:"columns"`
}

func (RequiredRule) RuleType() string { return "required" }
func (RequiredRule) Hard() bool       { return true }

// UniqueRule requires no duplicate values in the column across rows
type UniqueRule struct {
	Column string `json:"column"`
}

func (UniqueRule) RuleType() string { return "unique" }
func (UniqueRule) Hard() bool       { return true }

// RangeRule bounds a numeric column to [Min, Max]
type RangeRule struct {
	Column string  `json:"column"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func (RangeRule) RuleType() string { return "range" }
func (RangeRule) Hard() bool       { return true }

// GreaterThanRule requires a numeric column to exceed Value
type GreaterThanRule struct {
	Column string  `json:"column"`
	Value  float64 `json:"value"`
}

func (GreaterThanRule) RuleType() string { return "greater_than" }
func (GreaterThanRule) Hard() bool       { return true }

// LessThanRule requires a numeric column to be below Value
type LessThanRule struct {
	Column string  `json:"column"`
	Value  float64 `json:"value"`
}

func (LessThanRule) RuleType() string { return "less_than" }
func (LessThanRule) Hard() bool       { return true }

// EqualsRule requires a column to equal a fixed value
type EqualsRule struct {
	Column string `json:"column"`
	Value  any    `json:"value"`
}

func (EqualsRule) RuleType() string { return "equals" }
func (EqualsRule) Hard() bool       { return true }

// ReadonlyRule forbids edits to the listed columns. Checked against
// the prior row on edits; appended rows have no prior field to
// protect and are not checked.
type ReadonlyRule struct {
	Columns []string `json:"columns"`
}

func (ReadonlyRule) RuleType() string { return "readonly" }
func (ReadonlyRule) Hard() bool       { return true }

// ExpressionRule evaluates a CEL expression per row. Soft rule: a row
// for which the expression is false produces a warning, not an error.
type ExpressionRule struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
}

func (ExpressionRule) RuleType() string { return "expression" }
func (ExpressionRule) Hard() bool       { return false }

// RuleSet is an ordered list of rules with tagged-union JSON encoding
type RuleSet []Rule

// ruleEnvelope carries the discriminator plus the variant payload
type ruleEnvelope struct {
	Type string `json:"type"`
}

// UnmarshalJSON decodes each element into its concrete variant
func (rs *RuleSet) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("decode rule list: %w", err)
	}

	out := make(RuleSet, 0, len(raws))
	for i, raw := range raws {
		var env ruleEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("rule %d: decode discriminator: %w", i, err)
		}

		rule, err := decodeRule(env.Type, raw)
		if err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		out = append(out, rule)
	}

	*rs = out
	return nil
}

// MarshalJSON encodes each rule with its "type" discriminator
func (rs RuleSet) MarshalJSON() ([]byte, error) {
	raws := make([]json.RawMessage, 0, len(rs))
	for _, rule := range rs {
		body, err := json.Marshal(rule)
		if err != nil {
			return nil, err
		}

		var fields map[string]any
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, err
		}
		fields["type"] = rule.RuleType()

		raw, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		raws = append(raws, raw)
	}
	return json.Marshal(raws)
}

func decodeRule(ruleType string, raw json.RawMessage) (Rule, error) {
	var (
		rule Rule
		err  error
	)

	switch ruleType {
	case "required":
		var r RequiredRule
		err = json.Unmarshal(raw, &r)
		rule = r
	case "unique":
		var r UniqueRule
		err = json.Unmarshal(raw, &r)
		rule = r
	case "range", "between":
		var r RangeRule
		err = json.Unmarshal(raw, &r)
		rule = r
	case "greater_than":
		var r GreaterThanRule
		err = json.Unmarshal(raw, &r)
		rule = r
	case "less_than":
		var r LessThanRule
		err = json.Unmarshal(raw, &r)
		rule = r
	case "equals":
		var r EqualsRule
		err = json.Unmarshal(raw, &r)
		rule = r
	case "readonly":
		var r ReadonlyRule
		err = json.Unmarshal(raw, &r)
		rule = r
	case "expression":
		var r ExpressionRule
		err = json.Unmarshal(raw, &r)
		rule = r
	default:
		return nil, fmt.Errorf("unknown rule type: %s", ruleType)
	}

	if err != nil {
		return nil, err
	}
	return rule, nil
}
