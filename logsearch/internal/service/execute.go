package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/telhawk-systems/logsearch/common/logging"
	"github.com/telhawk-systems/logsearch/logsearch/internal/metrics"
	"github.com/telhawk-systems/logsearch/logsearch/internal/rules"
	"github.com/telhawk-systems/logsearch/logsearch/internal/search"
	"github.com/telhawk-systems/logsearch/logsearch/pkg/model"
)

// ExecuteSearch plans req and runs it against the search backend.
func (s *LogSearchService) ExecuteSearch(ctx context.Context, req *model.SearchRequest) (*model.SearchResponse, error) {
	return s.execute(ctx, req, SourceAdHoc)
}

// ExecuteSaved runs the rule tree of saved search id with the window and
// directives of req.
func (s *LogSearchService) ExecuteSaved(ctx context.Context, id string, req *model.SearchRequest) (*model.SearchResponse, error) {
	saved, err := s.GetSaved(ctx, id)
	if err != nil {
		return nil, err
	}

	var r model.SearchRequest
	if req != nil {
		r = *req
	}
	r.Query = saved.Query

	s.logger.InfoContext(ctx, "running saved search",
		logging.SavedSearchID(saved.ID),
		slog.String("name", saved.Name),
	)
	return s.execute(ctx, &r, SourceSaved)
}

func (s *LogSearchService) execute(ctx context.Context, req *model.SearchRequest, source string) (*model.SearchResponse, error) {
	started := time.Now()

	ls, err := s.Plan(ctx, req)
	if err != nil {
		return nil, err
	}

	if timeout := s.cfg.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	indexes := ls.Indexes()
	metrics.IndexesPerSearch.Observe(float64(len(indexes)))

	resp, err := ls.Execute(ctx, s.executor)
	metrics.ObserveSearch(source, started, err)
	if err != nil {
		s.logger.ErrorContext(ctx, "log search failed",
			logging.Indexes(indexes),
			logging.Duration(started),
			logging.Error(err),
		)
		return nil, err
	}

	out := toSearchResponse(ls, resp)
	s.logger.InfoContext(ctx, "log search completed",
		logging.Indexes(indexes),
		logging.TotalHits(out.TotalHits),
		logging.Duration(started),
	)
	return out, nil
}

func toSearchResponse(ls *search.LogSearch, resp *search.Response) *model.SearchResponse {
	hits := make([]json.RawMessage, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		if len(hit.Source) == 0 {
			continue
		}
		hits = append(hits, hit.Source)
	}

	out := &model.SearchResponse{
		Indexes:       ls.Indexes(),
		Country:       ls.Country(),
		State:         ls.State(),
		TotalHits:     resp.Hits.Total.Value,
		TotalRelation: resp.Hits.Total.Relation,
		TookMs:        int64(resp.Took),
		Hits:          hits,
	}
	if len(resp.Aggregations) > 0 {
		out.Aggregations = resp.Aggregations
	}
	return out
}

// CreateSaved stores a new saved search after checking its rule tree builds.
func (s *LogSearchService) CreateSaved(ctx context.Context, saved *model.SavedSearch) error {
	if s.store == nil {
		return ErrSavedSearchesDisabled
	}
	if err := checkRuleTree(saved.Query); err != nil {
		return fmt.Errorf("%w: query: %w", ErrValidationFailed, err)
	}
	if err := s.store.Create(ctx, saved); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "saved search created", logging.SavedSearchID(saved.ID), slog.String("name", saved.Name))
	return nil
}

// GetSaved returns one saved search.
func (s *LogSearchService) GetSaved(ctx context.Context, id string) (*model.SavedSearch, error) {
	if s.store == nil {
		return nil, ErrSavedSearchesDisabled
	}
	return s.store.Get(ctx, id)
}

// ListSaved returns every saved search.
func (s *LogSearchService) ListSaved(ctx context.Context) ([]model.SavedSearch, error) {
	if s.store == nil {
		return nil, ErrSavedSearchesDisabled
	}
	return s.store.List(ctx)
}

// DeleteSaved removes one saved search.
func (s *LogSearchService) DeleteSaved(ctx context.Context, id string) error {
	if s.store == nil {
		return ErrSavedSearchesDisabled
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "saved search deleted", logging.SavedSearchID(id))
	return nil
}

func checkRuleTree(query json.RawMessage) error {
	root, err := rules.Parse(query)
	if err != nil {
		return err
	}
	if root == nil {
		return errors.New("rule tree is empty")
	}
	filter, err := rules.Build(root)
	if err != nil {
		return err
	}
	if filter == nil {
		return errors.New("rule tree has no rules")
	}
	return nil
}
