// Package model holds the request and response types exchanged with log
// search callers over the CLI, the message bus and the saved search store.
package model

import (
	"encoding/json"
	"time"
)

// SearchRequest describes one log search.
type SearchRequest struct {
	// Start and End bound the search. Date-only values cover whole days in
	// the configured time zone.
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`

	// Query is the rule tree, either JSON text or a decoded structure.
	Query interface{} `json:"query,omitempty" yaml:"query,omitempty"`
	// Search is a free-text query in the backend's query string syntax.
	Search string `json:"search,omitempty" yaml:"search,omitempty"`

	APIKey          string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	UserEmail       string   `json:"user_email,omitempty" yaml:"user_email,omitempty"`
	UserIDs         []string `json:"user_ids,omitempty" yaml:"user_ids,omitempty"`
	RequestPath     string   `json:"request_path,omitempty" yaml:"request_path,omitempty"`
	ExcludeImported bool     `json:"exclude_imported,omitempty" yaml:"exclude_imported,omitempty"`
	DateRange       *bool    `json:"date_range,omitempty" yaml:"date_range,omitempty"` // default true

	Interval string `json:"interval,omitempty" yaml:"interval,omitempty"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`

	Sort       []SortSpec `json:"sort,omitempty" yaml:"sort,omitempty"`
	Offset     int        `json:"offset,omitempty" yaml:"offset,omitempty"`
	Limit      int        `json:"limit,omitempty" yaml:"limit,omitempty"`
	SearchType string     `json:"search_type,omitempty" yaml:"search_type,omitempty"`

	Aggregations []AggregationRequest `json:"aggregations,omitempty" yaml:"aggregations,omitempty"`
}

// FilterByDateRange reports whether hits are restricted to the window.
func (r *SearchRequest) FilterByDateRange() bool {
	return r.DateRange == nil || *r.DateRange
}

// SortSpec defines a field to sort by and the sort direction.
type SortSpec struct {
	Field string `json:"field" yaml:"field"`
	Order string `json:"order,omitempty" yaml:"order,omitempty"` // "asc" or "desc"
}

// AggregationRequest asks for one aggregation.
type AggregationRequest struct {
	Type    string                 `json:"type" yaml:"type"`
	Field   string                 `json:"field,omitempty" yaml:"field,omitempty"`     // term, cardinality
	Prefix  string                 `json:"prefix,omitempty" yaml:"prefix,omitempty"`   // drilldown, drilldown_over_time
	Size    int                    `json:"size,omitempty" yaml:"size,omitempty"`       // drilldown, term, users, request_ip
	Options map[string]interface{} `json:"options,omitempty" yaml:"options,omitempty"` // user_stats
}

// Supported aggregation types
const (
	AggDrilldown           = "drilldown"
	AggDrilldownOverTime   = "drilldown_over_time"
	AggInterval            = "interval"
	AggRegion              = "region"
	AggTerm                = "term"
	AggCardinality         = "cardinality"
	AggUsers               = "users"
	AggRequestIP           = "request_ip"
	AggUserStats           = "user_stats"
	AggResponseTimeAverage = "response_time_average"
)

// AggregationTypes lists every supported aggregation type.
var AggregationTypes = []string{
	AggDrilldown,
	AggDrilldownOverTime,
	AggInterval,
	AggRegion,
	AggTerm,
	AggCardinality,
	AggUsers,
	AggRequestIP,
	AggUserStats,
	AggResponseTimeAverage,
}

// SearchResponse is the outcome of a search, left raw for the caller to
// interpret.
type SearchResponse struct {
	Indexes       []string          `json:"indexes"`
	Country       string            `json:"country,omitempty"`
	State         string            `json:"state,omitempty"`
	TotalHits     int64             `json:"total_hits"`
	TotalRelation string            `json:"total_relation,omitempty"`
	TookMs        int64             `json:"took_ms"`
	Hits          []json.RawMessage `json:"hits"`
	Aggregations  json.RawMessage   `json:"aggregations,omitempty"`
}

// SearchJobRequest is the message format for the logsearch.jobs.query
// subject. SavedSearchID, when set, supplies the rule tree.
type SearchJobRequest struct {
	JobID         string        `json:"job_id"`
	SavedSearchID string        `json:"saved_search_id,omitempty"`
	Request       SearchRequest `json:"request"`
}

// SearchJobResponse is published to reply subjects after processing a
// SearchJobRequest.
type SearchJobResponse struct {
	JobID   string          `json:"job_id"`
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Result  *SearchResponse `json:"result,omitempty"`
	TookMs  int64           `json:"took_ms"`
}

// SavedSearch is a named rule tree kept for reuse.
type SavedSearch struct {
	ID          string          `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Query       json.RawMessage `json:"query" yaml:"-"`
	CreatedAt   time.Time       `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" yaml:"updated_at"`
}
