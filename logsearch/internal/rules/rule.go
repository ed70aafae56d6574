// Package rules translates user-authored filter rules, as produced by the
// query builder front end, into search predicates.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Operator is a rule comparison operator.
type Operator string

// Supported rule operators.
const (
	OpEqual          Operator = "equal"
	OpNotEqual       Operator = "not_equal"
	OpBeginsWith     Operator = "begins_with"
	OpNotBeginsWith  Operator = "not_begins_with"
	OpContains       Operator = "contains"
	OpNotContains    Operator = "not_contains"
	OpIsNull         Operator = "is_null"
	OpIsNotNull      Operator = "is_not_null"
	OpNotNull        Operator = "not_null" // alias of is_not_null, so unlike other not_* operators it is never negated
	OpLess           Operator = "less"
	OpLessOrEqual    Operator = "less_or_equal"
	OpGreater        Operator = "greater"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpBetween        Operator = "between"
)

// Negated reports whether the operator's predicate is wrapped in a negation.
// is_null negates the existence test; is_not_null is already positive.
func (o Operator) Negated() bool {
	switch o {
	case OpNotEqual, OpNotBeginsWith, OpNotContains, OpIsNull:
		return true
	}
	return false
}

// caseSensitiveFields keep their values verbatim; every other string value
// is lower-cased before translation.
var caseSensitiveFields = map[string]bool{
	"api_key":            true,
	"request_ip_country": true,
	"request_ip_region":  true,
	"request_ip_city":    true,
}

// IsCaseSensitive reports whether values of field are matched verbatim.
func IsCaseSensitive(field string) bool {
	return caseSensitiveFields[field]
}

// Rule is one atomic filter condition.
type Rule struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value,omitempty"`
}

func (r Rule) String() string {
	value, err := json.Marshal(r.Value)
	if err != nil {
		value = []byte(fmt.Sprintf("%v", r.Value))
	}
	return fmt.Sprintf(`{"field":%q,"operator":%q,"value":%s}`, r.Field, r.Operator, value)
}

// ErrMalformedRuleTree is returned when a rule tree cannot be decoded.
var ErrMalformedRuleTree = errors.New("malformed rule tree")

// UnknownOperatorError reports a rule whose operator has no translation.
type UnknownOperatorError struct {
	Operator Operator
	Rule     Rule
}

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown filter operator: %s (rule: %s)", e.Operator, e.Rule)
}

// InvalidValueError reports a rule value the operator cannot use.
type InvalidValueError struct {
	Rule   Rule
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value for operator %s on field %s: %s (rule: %s)",
		e.Rule.Operator, e.Rule.Field, e.Reason, e.Rule)
}
