package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/telhawk-systems/logsearch/common/logging"
	"github.com/telhawk-systems/logsearch/logsearch/internal/config"
	"github.com/telhawk-systems/logsearch/logsearch/internal/search"
	"github.com/telhawk-systems/logsearch/logsearch/internal/timewindow"
	"github.com/telhawk-systems/logsearch/logsearch/pkg/model"
)

var (
	ErrValidationFailed      = errors.New("validation failed")
	ErrSavedSearchesDisabled = errors.New("saved searches are not configured")
)

// Search sources, used as metric labels.
const (
	SourceAdHoc = "adhoc"
	SourceSaved = "saved"
)

// SavedSearchStore persists saved searches.
type SavedSearchStore interface {
	Create(ctx context.Context, s *model.SavedSearch) error
	Get(ctx context.Context, id string) (*model.SavedSearch, error)
	List(ctx context.Context) ([]model.SavedSearch, error)
	Delete(ctx context.Context, id string) error
}

// LogSearchService plans and runs log searches.
type LogSearchService struct {
	cfg      config.SearchConfig
	loc      *time.Location
	executor search.Executor
	store    SavedSearchStore
	logger   *logging.Logger
	now      func() time.Time
}

// NewLogSearchService creates a service that runs searches through executor.
func NewLogSearchService(cfg config.SearchConfig, executor search.Executor, logger *logging.Logger) (*LogSearchService, error) {
	loc, err := timewindow.Location(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone: %w", err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSearchService{
		cfg:      cfg,
		loc:      loc,
		executor: executor,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// WithStore attaches the saved search store.
func (s *LogSearchService) WithStore(store SavedSearchStore) *LogSearchService {
	s.store = store
	return s
}

// Location is the zone request dates are read in.
func (s *LogSearchService) Location() *time.Location { return s.loc }
