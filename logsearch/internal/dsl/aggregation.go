package dsl

import (
	"bytes"
	"encoding/json"
)

// Aggregation is a named-bucket or metric aggregation.
type Aggregation interface {
	Source() map[string]interface{}
}

// TermsAgg buckets documents by the distinct values of Field.
type TermsAgg struct {
	Field     string
	Size      int
	ShardSize int
	Include   string
	// Options are merged over the generated body, so callers may override
	// size or add ordering.
	Options map[string]interface{}
	SubAggs *Aggregations
}

func (a TermsAgg) Source() map[string]interface{} {
	body := map[string]interface{}{
		"field": a.Field,
		"size":  a.Size,
	}
	if a.ShardSize > 0 {
		body["shard_size"] = a.ShardSize
	}
	if a.Include != "" {
		body["include"] = a.Include
	}
	for k, v := range a.Options {
		body[k] = v
	}
	return withSubAggs(map[string]interface{}{"terms": body}, a.SubAggs)
}

// CardinalityAgg approximates the number of distinct values of Field.
type CardinalityAgg struct {
	Field              string
	PrecisionThreshold int
}

func (a CardinalityAgg) Source() map[string]interface{} {
	body := map[string]interface{}{
		"field": a.Field,
	}
	if a.PrecisionThreshold > 0 {
		body["precision_threshold"] = a.PrecisionThreshold
	}
	return map[string]interface{}{"cardinality": body}
}

// ValueCountAgg counts values of Field.
type ValueCountAgg struct {
	Field string
}

func (a ValueCountAgg) Source() map[string]interface{} {
	return map[string]interface{}{
		"value_count": map[string]interface{}{"field": a.Field},
	}
}

// MissingAgg counts documents without a value for Field.
type MissingAgg struct {
	Field string
}

func (a MissingAgg) Source() map[string]interface{} {
	return map[string]interface{}{
		"missing": map[string]interface{}{"field": a.Field},
	}
}

// MaxAgg is the maximum of Field.
type MaxAgg struct {
	Field string
}

func (a MaxAgg) Source() map[string]interface{} {
	return map[string]interface{}{
		"max": map[string]interface{}{"field": a.Field},
	}
}

// AvgAgg is the average of Field.
type AvgAgg struct {
	Field string
}

func (a AvgAgg) Source() map[string]interface{} {
	return map[string]interface{}{
		"avg": map[string]interface{}{"field": a.Field},
	}
}

// Bounds forces histogram buckets to cover [Min, Max] even when empty.
type Bounds struct {
	Min string
	Max string
}

// DateHistogramAgg buckets documents by time interval.
type DateHistogramAgg struct {
	Field                      string
	Interval                   string
	TimeZone                   string
	MinDocCount                int
	PreZoneAdjustLargeInterval bool
	ExtendedBounds             *Bounds
	SubAggs                    *Aggregations
}

func (a DateHistogramAgg) Source() map[string]interface{} {
	body := map[string]interface{}{
		"field":         a.Field,
		"interval":      a.Interval,
		"min_doc_count": a.MinDocCount,
	}
	if a.TimeZone != "" {
		body["time_zone"] = a.TimeZone
	}
	if a.PreZoneAdjustLargeInterval {
		body["pre_zone_adjust_large_interval"] = true
	}
	if a.ExtendedBounds != nil {
		body["extended_bounds"] = map[string]interface{}{
			"min": a.ExtendedBounds.Min,
			"max": a.ExtendedBounds.Max,
		}
	}
	return withSubAggs(map[string]interface{}{"date_histogram": body}, a.SubAggs)
}

// withSubAggs nests sub as a plain map so Source trees hold no dsl types.
func withSubAggs(src map[string]interface{}, sub *Aggregations) map[string]interface{} {
	if sub.Len() > 0 {
		src["aggregations"] = sub.Source()
	}
	return src
}

// Aggregations is an insertion-ordered name → aggregation mapping. Setting
// an existing name replaces the aggregation in its original position.
type Aggregations struct {
	names []string
	aggs  map[string]Aggregation
}

// NewAggregations returns an empty mapping.
func NewAggregations() *Aggregations {
	return &Aggregations{aggs: make(map[string]Aggregation)}
}

// Set stores agg under name.
func (a *Aggregations) Set(name string, agg Aggregation) {
	if a.aggs == nil {
		a.aggs = make(map[string]Aggregation)
	}
	if _, ok := a.aggs[name]; !ok {
		a.names = append(a.names, name)
	}
	a.aggs[name] = agg
}

// Get returns the aggregation stored under name.
func (a *Aggregations) Get(name string) (Aggregation, bool) {
	if a == nil {
		return nil, false
	}
	agg, ok := a.aggs[name]
	return agg, ok
}

// Names returns the aggregation names in insertion order.
func (a *Aggregations) Names() []string {
	if a == nil {
		return nil
	}
	out := make([]string, len(a.names))
	copy(out, a.names)
	return out
}

// Len is the number of aggregations. A nil mapping is empty.
func (a *Aggregations) Len() int {
	if a == nil {
		return 0
	}
	return len(a.names)
}

// Clone copies the mapping. Aggregation values are shared.
func (a *Aggregations) Clone() *Aggregations {
	out := NewAggregations()
	if a == nil {
		return out
	}
	for _, name := range a.names {
		out.Set(name, a.aggs[name])
	}
	return out
}

// Source renders the mapping as a plain map.
func (a *Aggregations) Source() map[string]interface{} {
	out := make(map[string]interface{}, a.Len())
	if a == nil {
		return out
	}
	for _, name := range a.names {
		out[name] = a.aggs[name].Source()
	}
	return out
}

// MarshalJSON writes the aggregations in insertion order.
func (a *Aggregations) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if a != nil {
		for i, name := range a.names {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(name)
			if err != nil {
				return nil, err
			}
			value, err := json.Marshal(a.aggs[name].Source())
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
