// Package dsl models the search backend's query document: filter predicates,
// aggregations and the request body they are serialized into.
//
// Every node renders to the backend JSON form through Source, the same
// map[string]interface{} shape the translators hand to the OpenSearch client.
package dsl

import (
	"strings"
	"time"
)

// Query is a filter predicate.
type Query interface {
	Source() map[string]interface{}
}

// MatchAll matches every document.
type MatchAll struct{}

func (MatchAll) Source() map[string]interface{} {
	return map[string]interface{}{
		"match_all": map[string]interface{}{},
	}
}

// QueryString is a free-text query in the backend's query_string syntax.
type QueryString struct {
	Query string
}

func (q QueryString) Source() map[string]interface{} {
	return map[string]interface{}{
		"query_string": map[string]interface{}{
			"query": q.Query,
		},
	}
}

// Term is an exact-value equality test.
type Term struct {
	Field string
	Value interface{}
}

func (q Term) Source() map[string]interface{} {
	return map[string]interface{}{
		"term": map[string]interface{}{
			q.Field: q.Value,
		},
	}
}

// Terms matches any of Values.
type Terms struct {
	Field  string
	Values []string
}

func (q Terms) Source() map[string]interface{} {
	values := q.Values
	if values == nil {
		values = []string{}
	}
	return map[string]interface{}{
		"terms": map[string]interface{}{
			q.Field: values,
		},
	}
}

// Prefix matches values starting with Value.
type Prefix struct {
	Field string
	Value interface{}
}

func (q Prefix) Source() map[string]interface{} {
	return map[string]interface{}{
		"prefix": map[string]interface{}{
			q.Field: q.Value,
		},
	}
}

// Regexp matches values against a backend regular expression.
type Regexp struct {
	Field   string
	Pattern string
}

func (q Regexp) Source() map[string]interface{} {
	return map[string]interface{}{
		"regexp": map[string]interface{}{
			q.Field: q.Pattern,
		},
	}
}

// Exists matches documents carrying a non-null value for Field.
type Exists struct {
	Field string
}

func (q Exists) Source() map[string]interface{} {
	return map[string]interface{}{
		"exists": map[string]interface{}{
			"field": q.Field,
		},
	}
}

// Range is a numeric range. Nil bounds are omitted.
type Range struct {
	Field string
	GT    *float64
	GTE   *float64
	LT    *float64
	LTE   *float64
}

func (q Range) Source() map[string]interface{} {
	bounds := make(map[string]interface{})
	if q.GT != nil {
		bounds["gt"] = *q.GT
	}
	if q.GTE != nil {
		bounds["gte"] = *q.GTE
	}
	if q.LT != nil {
		bounds["lt"] = *q.LT
	}
	if q.LTE != nil {
		bounds["lte"] = *q.LTE
	}
	return map[string]interface{}{
		"range": map[string]interface{}{
			q.Field: bounds,
		},
	}
}

// DateRange is an inclusive timestamp range rendered as ISO 8601 in the
// location the times carry.
type DateRange struct {
	Field string
	From  time.Time
	To    time.Time
}

func (q DateRange) Source() map[string]interface{} {
	return map[string]interface{}{
		"range": map[string]interface{}{
			q.Field: map[string]interface{}{
				"from": q.From.Format(time.RFC3339),
				"to":   q.To.Format(time.RFC3339),
			},
		},
	}
}

// Not negates Filter.
type Not struct {
	Filter Query
}

func (q Not) Source() map[string]interface{} {
	return map[string]interface{}{
		"not": q.Filter.Source(),
	}
}

// And requires every filter to match.
type And struct {
	Filters []Query
}

func (q And) Source() map[string]interface{} {
	return map[string]interface{}{
		"and": sources(q.Filters),
	}
}

// Or requires at least one filter to match.
type Or struct {
	Filters []Query
}

func (q Or) Source() map[string]interface{} {
	return map[string]interface{}{
		"or": sources(q.Filters),
	}
}

// Should is a bool query whose clauses are alternatives. Permission scopes
// are expressed this way.
type Should struct {
	Filters []Query
}

func (q Should) Source() map[string]interface{} {
	return map[string]interface{}{
		"bool": map[string]interface{}{
			"should": sources(q.Filters),
		},
	}
}

// Bool holds the top-level must and must_not filter lists. Both lists are
// always rendered, empty or not.
type Bool struct {
	Must    []Query
	MustNot []Query
}

func (q Bool) Source() map[string]interface{} {
	return map[string]interface{}{
		"bool": map[string]interface{}{
			"must":     sources(q.Must),
			"must_not": sources(q.MustNot),
		},
	}
}

// Filtered pairs a scoring query with a non-scoring filter.
type Filtered struct {
	Query  Query
	Filter Query
}

func (q Filtered) Source() map[string]interface{} {
	return map[string]interface{}{
		"filtered": map[string]interface{}{
			"query":  q.Query.Source(),
			"filter": q.Filter.Source(),
		},
	}
}

// SortField orders hits by Field in Order ("asc" or "desc").
type SortField struct {
	Field string `json:"field" yaml:"field"`
	Order string `json:"order,omitempty" yaml:"order,omitempty"`
}

func (s SortField) Source() map[string]interface{} {
	order := s.Order
	if order == "" {
		order = "desc"
	}
	return map[string]interface{}{
		s.Field: order,
	}
}

// Float returns a pointer to v, for Range bounds.
func Float(v float64) *float64 {
	return &v
}

func sources(queries []Query) []interface{} {
	out := make([]interface{}, 0, len(queries))
	for _, q := range queries {
		out = append(out, q.Source())
	}
	return out
}

// regexpReserved lists the characters with special meaning in the backend's
// regular expression syntax.
const regexpReserved = `.?+*|{}[]()"\#@&<>~`

// QuoteRegexp escapes s so it matches literally inside a backend regexp.
func QuoteRegexp(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(regexpReserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
