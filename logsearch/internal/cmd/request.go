package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/telhawk-systems/logsearch/logsearch/pkg/model"
)

// requestFlags collects the flags describing one search request.
type requestFlags struct {
	requestFile     string
	start           string
	end             string
	query           string
	queryFile       string
	search          string
	apiKey          string
	userEmail       string
	userIDs         []string
	requestPath     string
	excludeImported bool
	noDateRange     bool
	interval        string
	region          string
	sort            []string
	offset          int
	limit           int
	searchType      string
	aggregations    []string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.requestFile, "request", "r", "", "YAML or JSON file holding the whole search request")
	fs.StringVar(&f.start, "start", "", "window start (YYYY-MM-DD or RFC 3339)")
	fs.StringVar(&f.end, "end", "", "window end (YYYY-MM-DD or RFC 3339)")
	fs.StringVarP(&f.query, "query", "q", "", "inline rule tree (JSON)")
	fs.StringVar(&f.queryFile, "query-file", "", "YAML or JSON file holding the rule tree")
	fs.StringVar(&f.search, "search", "", "free-text query string")
	fs.StringVar(&f.apiKey, "api-key", "", "only requests made with this API key")
	fs.StringVar(&f.userEmail, "user", "", "only requests made by this user email")
	fs.StringSliceVar(&f.userIDs, "user-id", nil, "only requests made by these user ids")
	fs.StringVar(&f.requestPath, "path", "", "only requests for this exact path")
	fs.BoolVar(&f.excludeImported, "exclude-imported", false, "skip bulk imported requests")
	fs.BoolVar(&f.noDateRange, "no-date-range", false, "do not restrict hits to the window")
	fs.StringVar(&f.interval, "interval", "", "histogram interval (default from config)")
	fs.StringVar(&f.region, "region", "", "region drill-down: world, US, US-CA or a country code")
	fs.StringArrayVar(&f.sort, "sort", nil, "sort field as field[:asc|desc], repeatable")
	fs.IntVar(&f.offset, "offset", 0, "number of hits to skip")
	fs.IntVar(&f.limit, "limit", 0, "number of hits to return")
	fs.StringVar(&f.searchType, "search-type", "", "backend search type")
	fs.StringArrayVarP(&f.aggregations, "agg", "a", nil, "aggregation as type[:field-or-prefix[:size]], repeatable")
}

// build merges the request file with the flags set on cmd. Flags win.
func (f *requestFlags) build(cmd *cobra.Command) (*model.SearchRequest, error) {
	req := &model.SearchRequest{}
	if f.requestFile != "" {
		data, err := os.ReadFile(f.requestFile)
		if err != nil {
			return nil, fmt.Errorf("read request: %w", err)
		}
		if err := yaml.Unmarshal(data, req); err != nil {
			return nil, fmt.Errorf("invalid request file: %w", err)
		}
	}

	changed := cmd.Flags().Changed
	if changed("start") {
		req.Start = f.start
	}
	if changed("end") {
		req.End = f.end
	}
	if changed("search") {
		req.Search = f.search
	}
	if changed("api-key") {
		req.APIKey = f.apiKey
	}
	if changed("user") {
		req.UserEmail = f.userEmail
	}
	if changed("user-id") {
		req.UserIDs = f.userIDs
	}
	if changed("path") {
		req.RequestPath = f.requestPath
	}
	if changed("exclude-imported") {
		req.ExcludeImported = f.excludeImported
	}
	if changed("no-date-range") {
		on := !f.noDateRange
		req.DateRange = &on
	}
	if changed("interval") {
		req.Interval = f.interval
	}
	if changed("region") {
		req.Region = f.region
	}
	if changed("offset") {
		req.Offset = f.offset
	}
	if changed("limit") {
		req.Limit = f.limit
	}
	if changed("search-type") {
		req.SearchType = f.searchType
	}

	query, err := readRuleTree(f.query, f.queryFile)
	if err != nil {
		return nil, err
	}
	if query != nil {
		req.Query = query
	}

	for _, value := range f.sort {
		s, err := parseSort(value)
		if err != nil {
			return nil, err
		}
		req.Sort = append(req.Sort, s)
	}
	for _, value := range f.aggregations {
		agg, err := parseAggregation(value)
		if err != nil {
			return nil, err
		}
		req.Aggregations = append(req.Aggregations, agg)
	}
	return req, nil
}

// readRuleTree decodes an inline rule tree or a rule tree file. YAML is a
// superset of JSON, so both formats decode the same way.
func readRuleTree(inline, path string) (interface{}, error) {
	var data []byte
	switch {
	case inline != "" && path != "":
		return nil, fmt.Errorf("use either --query or --query-file, not both")
	case inline != "":
		data = []byte(inline)
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read rule tree: %w", err)
		}
		data = b
	default:
		return nil, nil
	}

	var tree interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("invalid rule tree: %w", err)
	}
	return tree, nil
}

// parseSort reads field[:order].
func parseSort(value string) (model.SortSpec, error) {
	field, order, _ := strings.Cut(value, ":")
	if field == "" {
		return model.SortSpec{}, fmt.Errorf("invalid sort %q: field is required", value)
	}
	return model.SortSpec{Field: field, Order: order}, nil
}

// parseAggregation reads type[:arg[:size]]. The argument is the field for
// term and cardinality, the hierarchy prefix for drilldowns and the size
// for users and request_ip.
func parseAggregation(value string) (model.AggregationRequest, error) {
	parts := strings.SplitN(value, ":", 3)
	agg := model.AggregationRequest{Type: parts[0]}
	if agg.Type == "" {
		return agg, fmt.Errorf("invalid aggregation %q: type is required", value)
	}

	var arg, size string
	if len(parts) > 1 {
		arg = parts[1]
	}
	if len(parts) > 2 {
		size = parts[2]
	}

	switch agg.Type {
	case model.AggTerm, model.AggCardinality:
		agg.Field = arg
	case model.AggDrilldown, model.AggDrilldownOverTime:
		agg.Prefix = arg
	case model.AggUsers, model.AggRequestIP:
		size = arg
	}

	if size != "" {
		n, err := strconv.Atoi(size)
		if err != nil {
			return agg, fmt.Errorf("invalid aggregation %q: size: %w", value, err)
		}
		agg.Size = n
	}
	return agg, nil
}
