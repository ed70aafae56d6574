package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Search execution metrics
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsearch_searches_total",
			Help: "Total number of searches executed",
		},
		[]string{"source", "status"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logsearch_search_duration_seconds",
			Help:    "Duration of backend searches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	IndexesPerSearch = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logsearch_indexes_per_search",
			Help:    "Number of monthly partitions targeted per search",
			Buckets: []float64{1, 2, 3, 6, 12, 24},
		},
	)

	// Query construction metrics
	AggregationsRequested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsearch_aggregations_requested_total",
			Help: "Total number of aggregations requested by type",
		},
		[]string{"type"},
	)

	QueryBuildErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsearch_query_build_errors_total",
			Help: "Total number of searches rejected while building the query",
		},
		[]string{"reason"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logsearch_cache_hits_total",
			Help: "Total number of search results served from cache",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logsearch_cache_misses_total",
			Help: "Total number of search results not found in cache",
		},
	)

	CacheErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logsearch_cache_errors_total",
			Help: "Total number of cache read or write failures",
		},
	)

	// Async job metrics
	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "logsearch_jobs_in_flight",
			Help: "Number of search jobs currently being processed",
		},
	)
)

// Search status labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ObserveSearch records one backend search.
func ObserveSearch(source string, started time.Time, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	SearchesTotal.WithLabelValues(source, status).Inc()
	SearchDuration.WithLabelValues(source).Observe(time.Since(started).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
