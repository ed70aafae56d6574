package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/telhawk-systems/logsearch/common/logging"
	"github.com/telhawk-systems/logsearch/logsearch/internal/dsl"
	"github.com/telhawk-systems/logsearch/logsearch/internal/metrics"
	"github.com/telhawk-systems/logsearch/logsearch/internal/search"
	"github.com/telhawk-systems/logsearch/logsearch/internal/timewindow"
	"github.com/telhawk-systems/logsearch/logsearch/pkg/model"
)

// Query build failure reasons, used as metric labels.
const (
	reasonValidation  = "validation"
	reasonWindow      = "window"
	reasonRuleTree    = "rule_tree"
	reasonAggregation = "aggregation"
)

// Plan validates req and assembles the search it describes without running it.
func (s *LogSearchService) Plan(ctx context.Context, req *model.SearchRequest) (*search.LogSearch, error) {
	if err := s.validate(req); err != nil {
		metrics.QueryBuildErrors.WithLabelValues(reasonValidation).Inc()
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	window, err := timewindow.Parse(req.Start, req.End, s.loc, s.now())
	if err != nil {
		metrics.QueryBuildErrors.WithLabelValues(reasonWindow).Inc()
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	interval := req.Interval
	if interval == "" {
		interval = s.cfg.DefaultInterval
	}

	ls := search.New(window, search.Options{
		IndexPrefix: s.cfg.IndexPrefix,
		Location:    s.loc,
		Interval:    interval,
		Region:      req.Region,
	})

	if req.FilterByDateRange() {
		ls.FilterByDateRange()
	}
	ls.Search(req.Search)
	if req.Query != nil {
		if err := ls.Query(req.Query); err != nil {
			metrics.QueryBuildErrors.WithLabelValues(reasonRuleTree).Inc()
			return nil, fmt.Errorf("%w: query: %w", ErrValidationFailed, err)
		}
	}
	if req.APIKey != "" {
		ls.FilterByAPIKey(req.APIKey)
	}
	if req.UserEmail != "" {
		ls.FilterByUser(req.UserEmail)
	}
	if len(req.UserIDs) > 0 {
		ls.FilterByUserIDs(req.UserIDs)
	}
	if req.RequestPath != "" {
		ls.FilterByRequestPath(req.RequestPath)
	}
	if req.ExcludeImported {
		ls.ExcludeImported()
	}

	if len(req.Sort) > 0 {
		fields := make([]dsl.SortField, 0, len(req.Sort))
		for _, by := range req.Sort {
			fields = append(fields, dsl.SortField{Field: by.Field, Order: strings.ToLower(by.Order)})
		}
		ls.Sort(fields...)
	}
	ls.Offset(req.Offset)
	ls.Limit(req.Limit)
	ls.SearchType(req.SearchType)

	for _, agg := range req.Aggregations {
		if err := applyAggregation(ls, agg); err != nil {
			metrics.QueryBuildErrors.WithLabelValues(reasonAggregation).Inc()
			return nil, fmt.Errorf("%w: aggregation %s: %w", ErrValidationFailed, agg.Type, err)
		}
		metrics.AggregationsRequested.WithLabelValues(agg.Type).Inc()
	}

	s.logger.DebugContext(ctx, "planned log search",
		logging.Indexes(ls.Indexes()),
		logging.Aggregations(ls.AggregationNames()),
		logging.Region(ls.Region()),
	)
	return ls, nil
}

func applyAggregation(ls *search.LogSearch, agg model.AggregationRequest) error {
	switch agg.Type {
	case model.AggDrilldown:
		ls.AggregateByDrilldown(agg.Prefix, agg.Size)
	case model.AggDrilldownOverTime:
		return ls.AggregateByDrilldownOverTime(agg.Prefix)
	case model.AggInterval:
		return ls.AggregateByInterval()
	case model.AggRegion:
		ls.AggregateByRegion()
	case model.AggTerm:
		ls.AggregateByTerm(agg.Field, agg.Size)
	case model.AggCardinality:
		ls.AggregateByCardinality(agg.Field)
	case model.AggUsers:
		ls.AggregateByUsers(agg.Size)
	case model.AggRequestIP:
		ls.AggregateByRequestIP(agg.Size)
	case model.AggUserStats:
		ls.AggregateByUserStats(agg.Options)
	case model.AggResponseTimeAverage:
		ls.AggregateByResponseTimeAverage()
	default:
		return fmt.Errorf("unsupported aggregation type %q", agg.Type)
	}
	return nil
}

func (s *LogSearchService) validate(req *model.SearchRequest) error {
	if req == nil {
		return errors.New("request is required")
	}
	if strings.TrimSpace(req.Start) == "" || strings.TrimSpace(req.End) == "" {
		return errors.New("start and end are required")
	}
	if req.Offset < 0 {
		return fmt.Errorf("offset must be non-negative, got %d", req.Offset)
	}
	if req.Limit < 0 {
		return fmt.Errorf("limit must be non-negative, got %d", req.Limit)
	}
	if s.cfg.MaxResultSize > 0 && req.Limit > s.cfg.MaxResultSize {
		return fmt.Errorf("limit %d exceeds maximum of %d", req.Limit, s.cfg.MaxResultSize)
	}

	for _, by := range req.Sort {
		if by.Field == "" {
			return errors.New("sort field is required")
		}
		switch strings.ToLower(by.Order) {
		case "", "asc", "desc":
		default:
			return fmt.Errorf("sort order must be asc or desc, got %q", by.Order)
		}
	}

	for _, agg := range req.Aggregations {
		if !slices.Contains(model.AggregationTypes, agg.Type) {
			return fmt.Errorf("unsupported aggregation type %q", agg.Type)
		}
		if agg.Size < 0 {
			return fmt.Errorf("aggregation %s: size must be non-negative", agg.Type)
		}
		switch agg.Type {
		case model.AggTerm, model.AggCardinality:
			if agg.Field == "" {
				return fmt.Errorf("aggregation %s: field is required", agg.Type)
			}
		case model.AggDrilldown, model.AggDrilldownOverTime:
			if agg.Prefix == "" {
				return fmt.Errorf("aggregation %s: prefix is required", agg.Type)
			}
		}
	}
	return nil
}
