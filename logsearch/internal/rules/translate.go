package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/telhawk-systems/logsearch/logsearch/internal/dsl"
)

// Translate converts one rule into its filter predicate.
func Translate(rule Rule) (dsl.Query, error) {
	value := foldCase(rule.Field, rule.Value)

	var filter dsl.Query

	switch rule.Operator {
	case OpEqual, OpNotEqual:
		filter = dsl.Term{Field: rule.Field, Value: value}

	case OpBeginsWith, OpNotBeginsWith:
		filter = dsl.Prefix{Field: rule.Field, Value: value}

	case OpContains, OpNotContains:
		filter = dsl.Regexp{
			Field:   rule.Field,
			Pattern: ".*" + dsl.QuoteRegexp(stringValue(value)) + ".*",
		}

	case OpIsNull, OpIsNotNull, OpNotNull:
		filter = dsl.Exists{Field: rule.Field}

	case OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual:
		f, err := toFloat(value)
		if err != nil {
			return nil, &InvalidValueError{Rule: rule, Reason: err.Error()}
		}
		r := dsl.Range{Field: rule.Field}
		switch rule.Operator {
		case OpLess:
			r.LT = dsl.Float(f)
		case OpLessOrEqual:
			r.LTE = dsl.Float(f)
		case OpGreater:
			r.GT = dsl.Float(f)
		default:
			r.GTE = dsl.Float(f)
		}
		filter = r

	case OpBetween:
		lo, hi, err := toBounds(value)
		if err != nil {
			return nil, &InvalidValueError{Rule: rule, Reason: err.Error()}
		}
		filter = dsl.Range{Field: rule.Field, GTE: dsl.Float(lo), LTE: dsl.Float(hi)}

	default:
		return nil, &UnknownOperatorError{Operator: rule.Operator, Rule: rule}
	}

	if rule.Operator.Negated() {
		filter = dsl.Not{Filter: filter}
	}

	return filter, nil
}

func foldCase(field string, value interface{}) interface{} {
	if s, ok := value.(string); ok && !IsCaseSensitive(field) {
		return strings.ToLower(s)
	}
	return value
}

func stringValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func toFloat(value interface{}) (float64, error) {
	var f float64

	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%q is not numeric", v.String())
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not numeric", v)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%v (%T) is not numeric", value, value)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not a finite number", value)
	}
	return f, nil
}

// toBounds sorts the two supplied values so caller order does not matter.
func toBounds(value interface{}) (float64, float64, error) {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return 0, 0, fmt.Errorf("between requires a two-element list, got %T", value)
	}
	if rv.Len() != 2 {
		return 0, 0, fmt.Errorf("between requires exactly two values, got %d", rv.Len())
	}

	values := make([]float64, 2)
	for i := range values {
		f, err := toFloat(rv.Index(i).Interface())
		if err != nil {
			return 0, 0, err
		}
		values[i] = f
	}
	sort.Float64s(values)

	return values[0], values[1], nil
}
