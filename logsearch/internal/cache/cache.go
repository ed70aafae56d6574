// Package cache memoizes search responses in Redis, keyed by the payload
// that produced them.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/telhawk-systems/logsearch/common/logging"
	"github.com/telhawk-systems/logsearch/logsearch/internal/metrics"
	"github.com/telhawk-systems/logsearch/logsearch/internal/search"
)

const keyPrefix = "logsearch:result:"

// Executor wraps a search.Executor with a Redis read-through cache. Cache
// failures are logged and fall through to the backend.
type Executor struct {
	next   search.Executor
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewExecutor caches responses from next for ttl. A nil client disables
// caching.
func NewExecutor(next search.Executor, client *redis.Client, ttl time.Duration, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Executor{
		next:   next,
		redis:  client,
		ttl:    ttl,
		logger: logger,
	}
}

// NewClient connects to redisURL and verifies the connection.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return client, nil
}

// IsEnabled reports whether responses are cached.
func (e *Executor) IsEnabled() bool {
	return e.redis != nil && e.ttl > 0
}

// Search serves payload from cache or runs it and stores the response.
func (e *Executor) Search(ctx context.Context, payload *search.Payload) (*search.Response, error) {
	if !e.IsEnabled() {
		return e.next.Search(ctx, payload)
	}

	key, err := Key(payload)
	if err != nil {
		return nil, err
	}

	if resp, ok := e.get(ctx, key); ok {
		metrics.CacheHits.Inc()
		return resp, nil
	}
	metrics.CacheMisses.Inc()

	resp, err := e.next.Search(ctx, payload)
	if err != nil {
		return nil, err
	}

	e.set(ctx, key, resp)
	return resp, nil
}

func (e *Executor) get(ctx context.Context, key string) (*search.Response, bool) {
	data, err := e.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		metrics.CacheErrors.Inc()
		e.logger.WarnContext(ctx, "cache read failed", slog.String("key", key), logging.Error(err))
		return nil, false
	}

	var resp search.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		metrics.CacheErrors.Inc()
		e.logger.WarnContext(ctx, "cached response is corrupt", slog.String("key", key), logging.Error(err))
		return nil, false
	}
	return &resp, true
}

func (e *Executor) set(ctx context.Context, key string, resp *search.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		metrics.CacheErrors.Inc()
		e.logger.WarnContext(ctx, "encode response for cache", logging.Error(err))
		return
	}
	if err := e.redis.Set(ctx, key, data, e.ttl).Err(); err != nil {
		metrics.CacheErrors.Inc()
		e.logger.WarnContext(ctx, "cache write failed", slog.String("key", key), logging.Error(err))
	}
}

// Key derives the cache key for payload. Identical payloads share a key.
func Key(payload *search.Payload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload for cache key: %w", err)
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s%x", keyPrefix, hash), nil
}
