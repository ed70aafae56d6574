// Package aggs builds the named aggregations a log search can request.
//
// Every builder is pure: it returns the aggregations (and, where the request
// narrows the search, the extra filters) without touching any query state.
// The assembler applies the result, so a builder that fails leaves nothing
// half applied.
package aggs

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gertd/go-pluralize"

	"github.com/telhawk-systems/logsearch/logsearch/internal/dsl"
	"github.com/telhawk-systems/logsearch/logsearch/internal/timewindow"
)

// Log document fields the aggregations read.
const (
	FieldRequestAt        = "request_at"
	FieldRequestHierarchy = "request_hierarchy"
	FieldRequestIP        = "request_ip"
	FieldCountry          = "request_ip_country"
	FieldRegion           = "request_ip_region"
	FieldCity             = "request_ip_city"
	FieldUserEmail        = "user_email"
	FieldUserID           = "user_id"
	FieldResponseTime     = "response_time"
)

// Reserved aggregation names.
const (
	NameDrilldown           = "drilldown"
	NameDrilldownOverTime   = "drilldown_over_time"
	NameTopPathHitsOverTime = "top_path_hits_over_time"
	NameHitsOverTime        = "hits_over_time"
	NameRegions             = "regions"
	NameMissingRegions      = "missing_regions"
	NameUserStats           = "user_stats"
	NameLastRequestAt       = "last_request_at"
	NameResponseTimeAverage = "response_time_average"
)

const (
	drilldownOverTimeSize = 10
	regionSize            = 500
	shardSizeFactor       = 4
	precisionThreshold    = 100
)

// ErrMissingInterval is returned by histogram builders when no bucket
// interval has been configured.
var ErrMissingInterval = errors.New("histogram interval is not configured")

// Named is an aggregation under its result key.
type Named struct {
	Name string
	Agg  dsl.Aggregation
}

// Histogram describes the time-bucketed histogram shared by the interval and
// drilldown-over-time aggregations.
type Histogram struct {
	Interval string
	Location *time.Location
	Window   timewindow.Window
}

// Build renders the histogram: zero-count buckets included and bounds
// extended to exactly the window.
func (h Histogram) Build() (dsl.DateHistogramAgg, error) {
	if h.Interval == "" {
		return dsl.DateHistogramAgg{}, ErrMissingInterval
	}
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	return dsl.DateHistogramAgg{
		Field:                      FieldRequestAt,
		Interval:                   h.Interval,
		TimeZone:                   loc.String(),
		MinDocCount:                0,
		PreZoneAdjustLargeInterval: true,
		ExtendedBounds: &dsl.Bounds{
			Min: h.Window.Start.In(loc).Format(time.RFC3339),
			Max: h.Window.End.In(loc).Format(time.RFC3339),
		},
	}, nil
}

func hierarchyInclude(prefix string) string {
	return "^" + dsl.QuoteRegexp(prefix) + ".*"
}

// Drilldown buckets the hierarchy children of prefix. A size of 0 asks the
// backend for every bucket.
func Drilldown(prefix string, size int) []Named {
	return []Named{{
		Name: NameDrilldown,
		Agg: dsl.TermsAgg{
			Field:   FieldRequestHierarchy,
			Size:    size,
			Include: hierarchyInclude(prefix),
		},
	}}
}

// DrilldownOverTime restricts the search to prefix and charts the top
// children of prefix over time alongside the overall hits.
func DrilldownOverTime(prefix string, h Histogram) ([]dsl.Query, []Named, error) {
	hist, err := h.Build()
	if err != nil {
		return nil, nil, err
	}

	sub := dsl.NewAggregations()
	sub.Set(NameDrilldownOverTime, hist)

	filters := []dsl.Query{dsl.Prefix{Field: FieldRequestHierarchy, Value: prefix}}
	named := []Named{
		{
			Name: NameTopPathHitsOverTime,
			Agg: dsl.TermsAgg{
				Field:   FieldRequestHierarchy,
				Size:    drilldownOverTimeSize,
				Include: hierarchyInclude(prefix),
				SubAggs: sub,
			},
		},
		{Name: NameHitsOverTime, Agg: hist},
	}
	return filters, named, nil
}

// IntervalHistogram charts hits over the whole window.
func IntervalHistogram(h Histogram) ([]Named, error) {
	hist, err := h.Build()
	if err != nil {
		return nil, err
	}
	return []Named{{Name: NameHitsOverTime, Agg: hist}}, nil
}

var (
	pluralizer     *pluralize.Client
	pluralizerOnce sync.Once
)

// plural pluralizes the last word of a snake_case field name.
func plural(field string) string {
	pluralizerOnce.Do(func() {
		pluralizer = pluralize.NewClient()
	})
	idx := strings.LastIndex(field, "_")
	return field[:idx+1] + pluralizer.Plural(field[idx+1:])
}

// TermFrequency emits the top size values of field with their value and
// missing counts. The shard size is oversampled to sharpen the top-N.
func TermFrequency(field string, size int) []Named {
	name := plural(field)
	return []Named{
		{
			Name: "top_" + name,
			Agg:  dsl.TermsAgg{Field: field, Size: size, ShardSize: size * shardSizeFactor},
		},
		{Name: "value_count_" + name, Agg: dsl.ValueCountAgg{Field: field}},
		{Name: "missing_" + name, Agg: dsl.MissingAgg{Field: field}},
	}
}

// Cardinality approximates the number of distinct values of field.
func Cardinality(field string) []Named {
	return []Named{{
		Name: "unique_" + plural(field),
		Agg:  dsl.CardinalityAgg{Field: field, PrecisionThreshold: precisionThreshold},
	}}
}

// Users combines term frequency and cardinality on the user email.
func Users(size int) []Named {
	return append(TermFrequency(FieldUserEmail, size), Cardinality(FieldUserEmail)...)
}

// RequestIPs combines term frequency and cardinality on the client address.
func RequestIPs(size int) []Named {
	return append(TermFrequency(FieldRequestIP, size), Cardinality(FieldRequestIP)...)
}

// UserStats buckets by user id with each user's most recent request time.
// options are merged over the terms defaults.
func UserStats(options map[string]interface{}) []Named {
	sub := dsl.NewAggregations()
	sub.Set(NameLastRequestAt, dsl.MaxAgg{Field: FieldRequestAt})

	var merged map[string]interface{}
	if len(options) > 0 {
		merged = make(map[string]interface{}, len(options))
		for k, v := range options {
			merged[k] = v
		}
	}

	return []Named{{
		Name: NameUserStats,
		Agg: dsl.TermsAgg{
			Field:   FieldUserID,
			Size:    0,
			Options: merged,
			SubAggs: sub,
		},
	}}
}

// ResponseTimeAverage averages the response time.
func ResponseTimeAverage() []Named {
	return []Named{{
		Name: NameResponseTimeAverage,
		Agg:  dsl.AvgAgg{Field: FieldResponseTime},
	}}
}
