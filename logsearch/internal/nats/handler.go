// Package nats processes log search jobs received over NATS.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/telhawk-systems/logsearch/common/logging"
	"github.com/telhawk-systems/logsearch/common/messaging"
	"github.com/telhawk-systems/logsearch/logsearch/internal/metrics"
	"github.com/telhawk-systems/logsearch/logsearch/pkg/model"
)

// Searcher runs search jobs.
type Searcher interface {
	ExecuteSearch(ctx context.Context, req *model.SearchRequest) (*model.SearchResponse, error)
	ExecuteSaved(ctx context.Context, id string, req *model.SearchRequest) (*model.SearchResponse, error)
}

// Handler processes NATS messages for log search jobs.
type Handler struct {
	client messaging.Client
	svc    Searcher
	logger *logging.Logger

	mu   sync.Mutex
	subs []messaging.Subscription
}

// NewHandler creates a new NATS handler for log search jobs.
func NewHandler(client messaging.Client, svc Searcher, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		client: client,
		svc:    svc,
		logger: logger.With(slog.String("component", "nats-handler")),
	}
}

// Start subscribes to the job subject in the worker queue group.
func (h *Handler) Start(ctx context.Context) error {
	sub, err := h.client.QueueSubscribe(
		messaging.SubjectLogSearchJobsQuery,
		messaging.QueueLogSearchWorkers,
		h.handleSearchJob,
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to search jobs: %w", err)
	}

	h.mu.Lock()
	h.subs = append(h.subs, sub)
	h.mu.Unlock()

	h.logger.InfoContext(ctx, "NATS handler started",
		logging.Subject(messaging.SubjectLogSearchJobsQuery),
		slog.String("queue_group", messaging.QueueLogSearchWorkers))
	return nil
}

// Stop unsubscribes from all NATS subjects.
func (h *Handler) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.logger.Info("Stopping NATS handler")
	for _, sub := range h.subs {
		if err := sub.Unsubscribe(); err != nil {
			h.logger.Warn("Failed to unsubscribe", logging.Error(err))
		}
	}
	h.subs = nil
	return nil
}

// Client returns the underlying messaging client for health checks.
func (h *Handler) Client() messaging.Client {
	return h.client
}

// handleSearchJob runs one job, replies to the requester when asked and
// publishes the outcome on the job's result subject.
func (h *Handler) handleSearchJob(ctx context.Context, msg *messaging.Message) error {
	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()

	var req model.SearchJobRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		h.logger.ErrorContext(ctx, "Failed to unmarshal search job request", logging.Error(err))
		return h.reply(ctx, msg.Reply, model.SearchJobResponse{Error: fmt.Sprintf("decode job: %v", err)})
	}
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}

	logger := h.logger.With(logging.JobID(req.JobID))
	logger.DebugContext(ctx, "Processing search job", logging.SavedSearchID(req.SavedSearchID))

	start := time.Now()
	var (
		result *model.SearchResponse
		err    error
	)
	if req.SavedSearchID != "" {
		result, err = h.svc.ExecuteSaved(ctx, req.SavedSearchID, &req.Request)
	} else {
		result, err = h.svc.ExecuteSearch(ctx, &req.Request)
	}

	resp := model.SearchJobResponse{
		JobID:  req.JobID,
		TookMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		resp.Error = err.Error()
		logger.ErrorContext(ctx, "Search job failed", logging.Error(err))
	} else {
		resp.Success = true
		resp.Result = result
		logger.InfoContext(ctx, "Search job completed",
			logging.TotalHits(result.TotalHits),
			logging.Duration(start))
	}

	if err := h.reply(ctx, msg.Reply, resp); err != nil {
		logger.ErrorContext(ctx, "Failed to reply to search job", logging.Error(err))
	}

	// Also publish to the job-specific result subject for async consumers
	return h.publish(ctx, messaging.SearchQueryResultSubject(req.JobID), resp)
}

func (h *Handler) reply(ctx context.Context, subject string, resp model.SearchJobResponse) error {
	if subject == "" {
		return nil
	}
	return h.publish(ctx, subject, resp)
}

func (h *Handler) publish(ctx context.Context, subject string, resp model.SearchJobResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return h.client.Publish(ctx, subject, data)
}
