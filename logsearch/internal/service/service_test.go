package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/logsearch/common/logging"
	"github.com/telhawk-systems/logsearch/logsearch/internal/aggs"
	"github.com/telhawk-systems/logsearch/logsearch/internal/config"
	"github.com/telhawk-systems/logsearch/logsearch/internal/metrics"
	"github.com/telhawk-systems/logsearch/logsearch/internal/repository"
	"github.com/telhawk-systems/logsearch/logsearch/internal/rules"
	"github.com/telhawk-systems/logsearch/logsearch/internal/search"
	"github.com/telhawk-systems/logsearch/logsearch/internal/timewindow"
	"github.com/telhawk-systems/logsearch/logsearch/pkg/model"
)

const slowRequests = `{"condition":"AND","rules":[{"field":"response_time","operator":"greater","value":"1000"}]}`

type fakeExecutor struct {
	payloads []*search.Payload
	body     string
	err      error
}

func (f *fakeExecutor) Search(ctx context.Context, payload *search.Payload) (*search.Response, error) {
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return nil, f.err
	}
	body := f.body
	if body == "" {
		body = `{"took": 7, "hits": {"total": 2, "hits": [
			{"_index": "api-umbrella-logs-2023-01", "_id": "a", "_source": {"request_path": "/a"}},
			{"_index": "api-umbrella-logs-2023-01", "_id": "b", "_source": {"request_path": "/b"}}
		]}, "aggregations": {"response_time_average": {"value": 42}}}`
	}
	return search.DecodeResponse(strings.NewReader(body))
}

type fakeStore struct {
	searches map[string]model.SavedSearch
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{searches: make(map[string]model.SavedSearch)}
}

func (f *fakeStore) Create(ctx context.Context, s *model.SavedSearch) error {
	if f.err != nil {
		return f.err
	}
	if s.ID == "" {
		s.ID = fmt.Sprintf("saved-%d", len(f.searches)+1)
	}
	f.searches[s.ID] = *s
	return nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (*model.SavedSearch, error) {
	s, ok := f.searches[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	return &s, nil
}

func (f *fakeStore) List(ctx context.Context) ([]model.SavedSearch, error) {
	out := make([]model.SavedSearch, 0, len(f.searches))
	for _, s := range f.searches {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	if _, ok := f.searches[id]; !ok {
		return fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	delete(f.searches, id)
	return nil
}

func testConfig() config.SearchConfig {
	return config.SearchConfig{
		IndexPrefix:     "api-umbrella-logs",
		TimeZone:        "UTC",
		DefaultInterval: "day",
		MaxResultSize:   100,
	}
}

func newTestService(t *testing.T, cfg config.SearchConfig, exec search.Executor) *LogSearchService {
	t.Helper()
	svc, err := NewLogSearchService(cfg, exec, logging.Discard())
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func bodyJSON(t *testing.T, payload *search.Payload) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(payload.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestNewLogSearchService_InvalidTimeZone(t *testing.T) {
	cfg := testConfig()
	cfg.TimeZone = "Mars/Olympus_Mons"
	_, err := NewLogSearchService(cfg, &fakeExecutor{}, nil)
	assert.Error(t, err)
}

func TestPlan_AppliesRequest(t *testing.T) {
	svc := newTestService(t, testConfig(), &fakeExecutor{})

	ls, err := svc.Plan(context.Background(), &model.SearchRequest{
		Start:           "2023-01-15",
		End:             "2023-03-02",
		Query:           slowRequests,
		Search:          "status:500",
		APIKey:          "KEY",
		UserEmail:       "Ops@Example.com",
		UserIDs:         []string{"u1", "u2"},
		RequestPath:     "/api/v1/health",
		ExcludeImported: true,
		Region:          "US-CA",
		Sort:            []model.SortSpec{{Field: "response_time", Order: "ASC"}},
		Offset:          10,
		Limit:           50,
		SearchType:      "count",
		Aggregations: []model.AggregationRequest{
			{Type: model.AggRegion},
			{Type: model.AggInterval},
			{Type: model.AggTerm, Field: "request_path", Size: 5},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"api-umbrella-logs-2023-01",
		"api-umbrella-logs-2023-02",
		"api-umbrella-logs-2023-03",
	}, ls.Indexes())
	assert.Equal(t, "day", ls.Interval())
	assert.Equal(t, "US", ls.Country())
	assert.Equal(t, "CA", ls.State())
	assert.True(t, time.Date(2023, 3, 2, 23, 59, 59, 999999999, time.UTC).Equal(ls.Window().End))
	assert.Equal(t, []string{
		aggs.NameRegions,
		aggs.NameMissingRegions,
		aggs.NameHitsOverTime,
		"top_request_paths",
		"value_count_request_paths",
		"missing_request_paths",
	}, ls.AggregationNames())

	payload := ls.Payload()
	assert.Equal(t, 50, payload.Size)
	assert.Equal(t, 10, payload.From)
	assert.Equal(t, "count", payload.SearchType)

	body := bodyJSON(t, payload)
	assert.Equal(t, []interface{}{map[string]interface{}{"response_time": "asc"}}, body["sort"])

	filtered := body["query"].(map[string]interface{})["filtered"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"query_string": map[string]interface{}{"query": "status:500"}}, filtered["query"])
	boolean := filtered["filter"].(map[string]interface{})["bool"].(map[string]interface{})
	// date range, rule tree, api key, user, user ids, path, country, state
	assert.Len(t, boolean["must"], 8)
	assert.Len(t, boolean["must_not"], 1)
}

func TestPlan_DateRangeOptOut(t *testing.T) {
	svc := newTestService(t, testConfig(), &fakeExecutor{})
	off := false

	ls, err := svc.Plan(context.Background(), &model.SearchRequest{Start: "2023-01-01", End: "2023-01-31", DateRange: &off})
	require.NoError(t, err)

	boolean := bodyJSON(t, ls.Payload())["query"].(map[string]interface{})["filtered"].(map[string]interface{})["filter"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.Empty(t, boolean["must"])
}

func TestPlan_TimeZone(t *testing.T) {
	cfg := testConfig()
	cfg.TimeZone = "America/Denver"
	svc := newTestService(t, cfg, &fakeExecutor{})

	ls, err := svc.Plan(context.Background(), &model.SearchRequest{Start: "2023-01-31", End: "2023-01-31"})
	require.NoError(t, err)

	// Late evening in Denver is already February in UTC.
	assert.Equal(t, []string{"api-umbrella-logs-2023-01", "api-umbrella-logs-2023-02"}, ls.Indexes())
	assert.Equal(t, "America/Denver", ls.Location().String())
}

func TestPlan_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		req  *model.SearchRequest
	}{
		{name: "nil request", req: nil},
		{name: "missing start", req: &model.SearchRequest{End: "2023-01-31"}},
		{name: "missing end", req: &model.SearchRequest{Start: "2023-01-01"}},
		{name: "negative offset", req: &model.SearchRequest{Start: "2023-01-01", End: "2023-01-31", Offset: -1}},
		{name: "negative limit", req: &model.SearchRequest{Start: "2023-01-01", End: "2023-01-31", Limit: -5}},
		{name: "limit over maximum", req: &model.SearchRequest{Start: "2023-01-01", End: "2023-01-31", Limit: 101}},
		{name: "bad sort order", req: &model.SearchRequest{Start: "2023-01-01", End: "2023-01-31", Sort: []model.SortSpec{{Field: "request_at", Order: "up"}}}},
		{name: "sort without field", req: &model.SearchRequest{Start: "2023-01-01", End: "2023-01-31", Sort: []model.SortSpec{{Order: "asc"}}}},
		{name: "unknown aggregation", req: &model.SearchRequest{Start: "2023-01-01", End: "2023-01-31", Aggregations: []model.AggregationRequest{{Type: "histogram"}}}},
		{name: "term without field", req: &model.SearchRequest{Start: "2023-01-01", End: "2023-01-31", Aggregations: []model.AggregationRequest{{Type: model.AggTerm}}}},
		{name: "drilldown without prefix", req: &model.SearchRequest{Start: "2023-01-01", End: "2023-01-31", Aggregations: []model.AggregationRequest{{Type: model.AggDrilldown}}}},
		{name: "negative aggregation size", req: &model.SearchRequest{Start: "2023-01-01", End: "2023-01-31", Aggregations: []model.AggregationRequest{{Type: model.AggUsers, Size: -1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, testConfig(), &fakeExecutor{})
			before := testutil.ToFloat64(metrics.QueryBuildErrors.WithLabelValues(reasonValidation))

			_, err := svc.Plan(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrValidationFailed)
			assert.Equal(t, before+1, testutil.ToFloat64(metrics.QueryBuildErrors.WithLabelValues(reasonValidation)))
		})
	}
}

func TestPlan_WindowErrors(t *testing.T) {
	svc := newTestService(t, testConfig(), &fakeExecutor{})

	_, err := svc.Plan(context.Background(), &model.SearchRequest{Start: "2023-02-01", End: "2023-01-01"})
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.ErrorIs(t, err, timewindow.ErrInvertedWindow)

	_, err = svc.Plan(context.Background(), &model.SearchRequest{Start: "yesterday", End: "2023-01-01"})
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.ErrorIs(t, err, timewindow.ErrInvalidTime)
}

func TestPlan_RuleTreeErrors(t *testing.T) {
	svc := newTestService(t, testConfig(), &fakeExecutor{})

	_, err := svc.Plan(context.Background(), &model.SearchRequest{
		Start: "2023-01-01",
		End:   "2023-01-31",
		Query: `{"condition":"AND","rules":[{"field":"request_path","operator":"bogus","value":"/"}]}`,
	})
	assert.ErrorIs(t, err, ErrValidationFailed)
	var unknown *rules.UnknownOperatorError
	assert.True(t, errors.As(err, &unknown))

	_, err = svc.Plan(context.Background(), &model.SearchRequest{Start: "2023-01-01", End: "2023-01-31", Query: `[1,2]`})
	assert.ErrorIs(t, err, rules.ErrMalformedRuleTree)
}

func TestPlan_DecodedRuleTree(t *testing.T) {
	svc := newTestService(t, testConfig(), &fakeExecutor{})

	var req model.SearchRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"start": "2023-01-01",
		"end": "2023-01-31",
		"query": `+slowRequests+`
	}`), &req))

	ls, err := svc.Plan(context.Background(), &req)
	require.NoError(t, err)
	boolean := bodyJSON(t, ls.Payload())["query"].(map[string]interface{})["filtered"].(map[string]interface{})["filter"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.Len(t, boolean["must"], 2)
}

func TestPlan_MissingInterval(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultInterval = ""
	svc := newTestService(t, cfg, &fakeExecutor{})

	_, err := svc.Plan(context.Background(), &model.SearchRequest{
		Start:        "2023-01-01",
		End:          "2023-01-31",
		Aggregations: []model.AggregationRequest{{Type: model.AggInterval}},
	})
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.ErrorIs(t, err, aggs.ErrMissingInterval)

	ls, err := svc.Plan(context.Background(), &model.SearchRequest{
		Start:        "2023-01-01",
		End:          "2023-01-31",
		Interval:     "hour",
		Aggregations: []model.AggregationRequest{{Type: model.AggInterval}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hour", ls.Interval())
}

func TestPlan_EveryAggregationType(t *testing.T) {
	svc := newTestService(t, testConfig(), &fakeExecutor{})

	requests := []model.AggregationRequest{
		{Type: model.AggDrilldown, Prefix: "1/api.example.com/", Size: 20},
		{Type: model.AggDrilldownOverTime, Prefix: "1/api.example.com/"},
		{Type: model.AggInterval},
		{Type: model.AggRegion},
		{Type: model.AggTerm, Field: "request_path", Size: 10},
		{Type: model.AggCardinality, Field: "api_key"},
		{Type: model.AggUsers, Size: 10},
		{Type: model.AggRequestIP, Size: 10},
		{Type: model.AggUserStats, Options: map[string]interface{}{"order": map[string]interface{}{"_count": "desc"}}},
		{Type: model.AggResponseTimeAverage},
	}
	require.Len(t, requests, len(model.AggregationTypes))

	before := testutil.ToFloat64(metrics.AggregationsRequested.WithLabelValues(model.AggUserStats))
	ls, err := svc.Plan(context.Background(), &model.SearchRequest{
		Start:        "2023-01-01",
		End:          "2023-01-31",
		Aggregations: requests,
	})
	require.NoError(t, err)

	names := ls.AggregationNames()
	for _, want := range []string{
		aggs.NameDrilldown,
		aggs.NameTopPathHitsOverTime,
		aggs.NameHitsOverTime,
		aggs.NameRegions,
		"top_request_paths",
		"unique_api_keys",
		"top_user_emails",
		"unique_request_ips",
		aggs.NameUserStats,
		aggs.NameResponseTimeAverage,
	} {
		assert.Contains(t, names, want)
	}
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AggregationsRequested.WithLabelValues(model.AggUserStats)))
}

func TestExecuteSearch(t *testing.T) {
	exec := &fakeExecutor{}
	svc := newTestService(t, testConfig(), exec)

	before := testutil.ToFloat64(metrics.SearchesTotal.WithLabelValues(SourceAdHoc, metrics.StatusSuccess))
	resp, err := svc.ExecuteSearch(context.Background(), &model.SearchRequest{
		Start:        "2023-01-01",
		End:          "2023-01-31",
		Region:       "FR",
		Limit:        2,
		Aggregations: []model.AggregationRequest{{Type: model.AggRegion}, {Type: model.AggResponseTimeAverage}},
	})
	require.NoError(t, err)

	require.Len(t, exec.payloads, 1)
	assert.Equal(t, "api-umbrella-logs-2023-01", exec.payloads[0].Index)
	assert.Equal(t, 2, exec.payloads[0].Size)

	assert.Equal(t, []string{"api-umbrella-logs-2023-01"}, resp.Indexes)
	assert.Equal(t, "FR", resp.Country)
	assert.Empty(t, resp.State)
	assert.Equal(t, int64(2), resp.TotalHits)
	assert.Equal(t, "eq", resp.TotalRelation)
	assert.Equal(t, int64(7), resp.TookMs)
	require.Len(t, resp.Hits, 2)
	assert.JSONEq(t, `{"request_path": "/a"}`, string(resp.Hits[0]))
	assert.JSONEq(t, `{"response_time_average": {"value": 42}}`, string(resp.Aggregations))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SearchesTotal.WithLabelValues(SourceAdHoc, metrics.StatusSuccess)))
}

func TestExecuteSearch_BackendError(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("connection refused")}
	svc := newTestService(t, testConfig(), exec)

	before := testutil.ToFloat64(metrics.SearchesTotal.WithLabelValues(SourceAdHoc, metrics.StatusError))
	_, err := svc.ExecuteSearch(context.Background(), &model.SearchRequest{Start: "2023-01-01", End: "2023-01-31"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SearchesTotal.WithLabelValues(SourceAdHoc, metrics.StatusError)))
}

func TestExecuteSearch_InvalidRequestNeverReachesBackend(t *testing.T) {
	exec := &fakeExecutor{}
	svc := newTestService(t, testConfig(), exec)

	_, err := svc.ExecuteSearch(context.Background(), &model.SearchRequest{Start: "2023-01-01"})
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Empty(t, exec.payloads)
}

func TestSavedSearches(t *testing.T) {
	exec := &fakeExecutor{}
	store := newFakeStore()
	svc := newTestService(t, testConfig(), exec).WithStore(store)
	ctx := context.Background()

	saved := &model.SavedSearch{Name: "slow", Query: json.RawMessage(slowRequests)}
	require.NoError(t, svc.CreateSaved(ctx, saved))
	require.NotEmpty(t, saved.ID)

	got, err := svc.GetSaved(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "slow", got.Name)

	list, err := svc.ListSaved(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	resp, err := svc.ExecuteSaved(ctx, saved.ID, &model.SearchRequest{
		Start: "2023-01-01",
		End:   "2023-01-31",
		Query: `{"condition":"AND","rules":[{"field":"request_path","operator":"bogus"}]}`,
	})
	require.NoError(t, err, "the saved rule tree replaces the caller's")
	assert.Equal(t, int64(2), resp.TotalHits)

	require.Len(t, exec.payloads, 1)
	data, err := json.Marshal(exec.payloads[0].Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"response_time":{"gt":1000}`)

	require.NoError(t, svc.DeleteSaved(ctx, saved.ID))
	_, err = svc.GetSaved(ctx, saved.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = svc.ExecuteSaved(ctx, saved.ID, &model.SearchRequest{Start: "2023-01-01", End: "2023-01-31"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteSaved(ctx, saved.ID), repository.ErrNotFound)
}

func TestCreateSaved_RejectsInvalidRuleTree(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, testConfig(), &fakeExecutor{}).WithStore(store)

	tests := []struct {
		name  string
		query string
	}{
		{name: "empty", query: `{}`},
		{name: "group without rules", query: `{"condition":"AND","rules":[]}`},
		{name: "nested empty group", query: `{"rules":[{"condition":"OR","rules":[]}]}`},
		{name: "malformed", query: `{"condition":"AND"}`},
		{name: "unknown operator", query: `{"condition":"AND","rules":[{"field":"a","operator":"bogus"}]}`},
		{name: "non-numeric comparison", query: `{"condition":"AND","rules":[{"field":"response_time","operator":"less","value":"fast"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CreateSaved(context.Background(), &model.SavedSearch{Name: tt.name, Query: json.RawMessage(tt.query)})
			assert.ErrorIs(t, err, ErrValidationFailed)
			assert.Empty(t, store.searches)
		})
	}
}

func TestSavedSearches_Disabled(t *testing.T) {
	svc := newTestService(t, testConfig(), &fakeExecutor{})
	ctx := context.Background()

	assert.ErrorIs(t, svc.CreateSaved(ctx, &model.SavedSearch{Name: "x", Query: json.RawMessage(slowRequests)}), ErrSavedSearchesDisabled)
	_, err := svc.GetSaved(ctx, "id")
	assert.ErrorIs(t, err, ErrSavedSearchesDisabled)
	_, err = svc.ListSaved(ctx)
	assert.ErrorIs(t, err, ErrSavedSearchesDisabled)
	assert.ErrorIs(t, svc.DeleteSaved(ctx, "id"), ErrSavedSearchesDisabled)
	_, err = svc.ExecuteSaved(ctx, "id", nil)
	assert.ErrorIs(t, err, ErrSavedSearchesDisabled)
}
