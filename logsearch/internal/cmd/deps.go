package cmd

import (
	"context"
	"fmt"

	"github.com/telhawk-systems/logsearch/logsearch/internal/cache"
	"github.com/telhawk-systems/logsearch/logsearch/internal/client"
	"github.com/telhawk-systems/logsearch/logsearch/internal/repository"
	"github.com/telhawk-systems/logsearch/logsearch/internal/search"
	"github.com/telhawk-systems/logsearch/logsearch/internal/service"
)

// deps are the collaborators a command opened. close releases them.
type deps struct {
	svc     *service.LogSearchService
	closers []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// planner returns a service that can plan searches but not run them.
func (a *app) planner() (*service.LogSearchService, error) {
	return service.NewLogSearchService(a.cfg.Search, nil, a.logger)
}

// open connects to the backends a command needs. withBackend opens the
// search backend (and the result cache when enabled); withStore opens the
// saved search database.
func (a *app) open(ctx context.Context, withBackend, withStore bool) (*deps, error) {
	d := &deps{}

	var exec search.Executor
	if withBackend {
		osClient, err := client.NewOpenSearchClient(a.cfg.OpenSearch)
		if err != nil {
			return nil, err
		}
		a.logger.DebugContext(ctx, "Connected to OpenSearch", "url", a.cfg.OpenSearch.URL)
		exec = osClient

		if a.cfg.Redis.Enabled {
			rdb, err := cache.NewClient(ctx, a.cfg.Redis.URL)
			if err != nil {
				a.logger.WarnContext(ctx, "Result cache unavailable (continuing without cache)", "error", err.Error())
			} else {
				d.closers = append(d.closers, func() { rdb.Close() })
				exec = cache.NewExecutor(osClient, rdb, a.cfg.Redis.TTL(), a.logger)
			}
		}
	}

	svc, err := service.NewLogSearchService(a.cfg.Search, exec, a.logger)
	if err != nil {
		d.close()
		return nil, err
	}

	if withStore {
		if a.cfg.DatabaseURL == "" {
			d.close()
			return nil, fmt.Errorf("%w: set database_url", service.ErrSavedSearchesDisabled)
		}
		repo, err := repository.NewPostgresRepository(ctx, a.cfg.DatabaseURL)
		if err != nil {
			d.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.closers = append(d.closers, repo.Close)
		svc.WithStore(repo)
	}

	d.svc = svc
	return d, nil
}
