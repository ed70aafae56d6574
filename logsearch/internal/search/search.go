// Package search assembles one log search: its filters, aggregations, sort
// and pagination, the partitions it targets and the payload handed to the
// search backend.
//
// A LogSearch belongs to a single request and is not safe for concurrent
// use. Every builder either applies its whole effect or returns an error
// before touching the search.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/telhawk-systems/logsearch/logsearch/internal/aggs"
	"github.com/telhawk-systems/logsearch/logsearch/internal/dsl"
	"github.com/telhawk-systems/logsearch/logsearch/internal/indexes"
	"github.com/telhawk-systems/logsearch/logsearch/internal/rules"
	"github.com/telhawk-systems/logsearch/logsearch/internal/timewindow"
)

// Log document fields filtered on directly.
const (
	FieldRequestAt   = "request_at"
	FieldRequestPath = "request_path"
	FieldAPIKey      = "api_key"
	FieldUserEmail   = "user_email"
	FieldUserID      = "user_id"
	FieldImported    = "imported"
)

// Options configure a LogSearch.
type Options struct {
	// IndexPrefix names the monthly partitions. Empty uses indexes.DefaultPrefix.
	IndexPrefix string
	// Location is the zone histograms bucket in and dates render in.
	Location *time.Location
	// Interval is the histogram bucket size, e.g. "day" or "hour".
	Interval string
	// Region is the region drill-down token, e.g. "world", "US" or "US-CA".
	Region string
}

// LogSearch owns the state of one search request.
type LogSearch struct {
	window   timewindow.Window
	opts     Options
	resolver indexes.Resolver

	query      dsl.Query
	must       []dsl.Query
	mustNot    []dsl.Query
	aggs       *dsl.Aggregations
	sort       []dsl.SortField
	from       int
	size       int
	searchType string

	country string
	state   string

	indexes []string
}

// New starts a search over window. Results default to aggregations only
// (size 0), sorted newest first.
func New(window timewindow.Window, opts Options) *LogSearch {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &LogSearch{
		window:   window,
		opts:     opts,
		resolver: indexes.NewResolver(opts.IndexPrefix),
		query:    dsl.MatchAll{},
		aggs:     dsl.NewAggregations(),
		sort:     []dsl.SortField{{Field: FieldRequestAt, Order: "desc"}},
	}
}

// Window is the searched time range.
func (s *LogSearch) Window() timewindow.Window { return s.window }

// Interval is the configured histogram interval.
func (s *LogSearch) Interval() string { return s.opts.Interval }

// Location is the configured time zone.
func (s *LogSearch) Location() *time.Location { return s.opts.Location }

// Region is the configured region token.
func (s *LogSearch) Region() string { return s.opts.Region }

// Country is the country the region aggregation resolved, if any.
func (s *LogSearch) Country() string { return s.country }

// State is the US state the region aggregation resolved, if any.
func (s *LogSearch) State() string { return s.state }

// Indexes lists the partitions the search targets. The list is computed on
// first use and kept for the life of the search.
func (s *LogSearch) Indexes() []string {
	if s.indexes == nil {
		s.indexes = s.resolver.Resolve(s.window)
	}
	out := make([]string, len(s.indexes))
	copy(out, s.indexes)
	return out
}

// AggregationNames lists the requested aggregations in request order.
func (s *LogSearch) AggregationNames() []string {
	return s.aggs.Names()
}

// Query adds a user rule tree, given as JSON text or a decoded structure.
// An empty tree is a no-op.
func (s *LogSearch) Query(input interface{}) error {
	root, err := rules.Parse(input)
	if err != nil {
		return err
	}
	filter, err := rules.Build(root)
	if err != nil {
		return err
	}
	if filter != nil {
		s.must = append(s.must, filter)
	}
	return nil
}

// Search replaces match-all with a free-text query. Blank input is ignored.
func (s *LogSearch) Search(queryString string) {
	if queryString == "" {
		return
	}
	s.query = dsl.QueryString{Query: queryString}
}

// PermissionScope restricts the search to documents matching any of scopes.
func (s *LogSearch) PermissionScope(scopes ...dsl.Query) {
	should := make([]dsl.Query, len(scopes))
	copy(should, scopes)
	s.must = append(s.must, dsl.Should{Filters: should})
}

// SearchType passes a backend search type through to the payload.
func (s *LogSearch) SearchType(searchType string) { s.searchType = searchType }

// Offset skips the first from hits.
func (s *LogSearch) Offset(from int) { s.from = from }

// Limit sets the number of hits returned.
func (s *LogSearch) Limit(size int) { s.size = size }

// Sort replaces the sort order.
func (s *LogSearch) Sort(fields ...dsl.SortField) {
	s.sort = append([]dsl.SortField(nil), fields...)
}

// ExcludeImported drops documents that were bulk imported.
func (s *LogSearch) ExcludeImported() {
	s.mustNot = append(s.mustNot, dsl.Exists{Field: FieldImported})
}

// FilterByDateRange restricts hits to the window.
func (s *LogSearch) FilterByDateRange() {
	s.must = append(s.must, dsl.DateRange{
		Field: FieldRequestAt,
		From:  s.window.Start.In(s.opts.Location),
		To:    s.window.End.In(s.opts.Location),
	})
}

// FilterByRequestPath matches one exact request path.
func (s *LogSearch) FilterByRequestPath(path string) {
	s.must = append(s.must, dsl.Term{Field: FieldRequestPath, Value: path})
}

// FilterByAPIKey matches one API key.
func (s *LogSearch) FilterByAPIKey(apiKey string) {
	s.must = append(s.must, dsl.Term{Field: FieldAPIKey, Value: apiKey})
}

// FilterByUser matches one user email.
func (s *LogSearch) FilterByUser(email string) {
	s.must = append(s.must, dsl.Term{Field: FieldUserEmail, Value: email})
}

// FilterByUserIDs matches any of ids.
func (s *LogSearch) FilterByUserIDs(ids []string) {
	values := make([]string, len(ids))
	copy(values, ids)
	s.must = append(s.must, dsl.Terms{Field: FieldUserID, Values: values})
}

func (s *LogSearch) apply(named []aggs.Named) {
	for _, n := range named {
		s.aggs.Set(n.Name, n.Agg)
	}
}

func (s *LogSearch) histogram() aggs.Histogram {
	return aggs.Histogram{
		Interval: s.opts.Interval,
		Location: s.opts.Location,
		Window:   s.window,
	}
}

// AggregateByDrilldown buckets the hierarchy children of prefix.
func (s *LogSearch) AggregateByDrilldown(prefix string, size int) {
	s.apply(aggs.Drilldown(prefix, size))
}

// AggregateByDrilldownOverTime narrows the search to prefix and charts its
// top children over time.
func (s *LogSearch) AggregateByDrilldownOverTime(prefix string) error {
	filters, named, err := aggs.DrilldownOverTime(prefix, s.histogram())
	if err != nil {
		return fmt.Errorf("drilldown over time: %w", err)
	}
	s.must = append(s.must, filters...)
	s.apply(named)
	return nil
}

// AggregateByInterval charts hits over the window.
func (s *LogSearch) AggregateByInterval() error {
	named, err := aggs.IntervalHistogram(s.histogram())
	if err != nil {
		return fmt.Errorf("interval histogram: %w", err)
	}
	s.apply(named)
	return nil
}

// AggregateByRegion drills into the configured region, recording the
// resolved country and state.
func (s *LogSearch) AggregateByRegion() aggs.RegionPlan {
	plan := aggs.ClassifyRegion(s.opts.Region)
	s.country = plan.Country
	s.state = plan.State
	s.must = append(s.must, plan.Filters()...)
	s.apply(plan.Aggregations())
	return plan
}

// AggregateByTerm counts the top size values of field.
func (s *LogSearch) AggregateByTerm(field string, size int) {
	s.apply(aggs.TermFrequency(field, size))
}

// AggregateByCardinality counts distinct values of field.
func (s *LogSearch) AggregateByCardinality(field string) {
	s.apply(aggs.Cardinality(field))
}

// AggregateByUsers counts the top users and distinct users.
func (s *LogSearch) AggregateByUsers(size int) {
	s.apply(aggs.Users(size))
}

// AggregateByRequestIP counts the top client addresses and distinct addresses.
func (s *LogSearch) AggregateByRequestIP(size int) {
	s.apply(aggs.RequestIPs(size))
}

// AggregateByUserStats buckets per user with the last request time.
func (s *LogSearch) AggregateByUserStats(options map[string]interface{}) {
	s.apply(aggs.UserStats(options))
}

// AggregateByResponseTimeAverage averages response times.
func (s *LogSearch) AggregateByResponseTimeAverage() {
	s.apply(aggs.ResponseTimeAverage())
}

// Payload snapshots the search as a backend request.
func (s *LogSearch) Payload() *Payload {
	idx := s.Indexes()

	filter := dsl.Bool{
		Must:    append([]dsl.Query(nil), s.must...),
		MustNot: append([]dsl.Query(nil), s.mustNot...),
	}

	sort := make([]map[string]interface{}, 0, len(s.sort))
	for _, f := range s.sort {
		sort = append(sort, f.Source())
	}

	body := Body{
		Query: dsl.Filtered{Query: s.query, Filter: filter}.Source(),
		Sort:  sort,
	}
	if s.aggs.Len() > 0 {
		body.Aggregations = s.aggs.Clone()
	}

	return &Payload{
		Index:             indexes.Join(idx),
		Indexes:           idx,
		Body:              body,
		Size:              s.size,
		From:              s.from,
		IgnoreUnavailable: true,
		AllowNoIndices:    true,
		SearchType:        s.searchType,
	}
}

// Execute sends the payload to exec.
func (s *LogSearch) Execute(ctx context.Context, exec Executor) (*Response, error) {
	resp, err := exec.Search(ctx, s.Payload())
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}
	return resp, nil
}
