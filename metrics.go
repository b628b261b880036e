package tangguh

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request pipeline.
// It is safe for concurrent use.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	dedupHits *prometheus.CounterVec

	retriesTotal *prometheus.CounterVec

	refreshTotal    *prometheus.CounterVec
	refreshAttached prometheus.Counter

	rateLimitedTotal prometheus.Counter

	errorsTotal *prometheus.CounterVec
}

// NewMetricsCollector creates a collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tangguh_requests_total",
				Help: "Total number of API requests made",
			},
			[]string{"method", "status_code"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tangguh_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tangguh_requests_in_flight",
				Help: "Number of API requests currently in flight",
			},
			[]string{"method"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tangguh_cache_hits_total",
				Help: "Total number of response cache hits",
			},
			[]string{"method"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tangguh_cache_misses_total",
				Help: "Total number of response cache misses",
			},
			[]string{"method"},
		),
		dedupHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tangguh_deduplication_hits_total",
				Help: "Total number of requests coalesced into an in-flight call",
			},
			[]string{"method"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tangguh_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"attempt"},
		),
		refreshTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tangguh_credential_refresh_total",
				Help: "Total number of credential refresh calls by outcome",
			},
			[]string{"outcome"},
		),
		refreshAttached: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "tangguh_credential_refresh_attached_total",
				Help: "Total number of callers that attached to an in-flight refresh",
			},
		),
		rateLimitedTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "tangguh_rate_limited_total",
				Help: "Total number of dispatches denied by the client-side rate limiter",
			},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tangguh_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type", "method"},
		),
	}
}

// RecordRequestStart marks a request as in flight.
func (mc *MetricsCollector) RecordRequestStart(method string) {
	mc.requestsInFlight.WithLabelValues(method).Inc()
}

// RecordRequestEnd marks a request as settled.
func (mc *MetricsCollector) RecordRequestEnd(method string) {
	mc.requestsInFlight.WithLabelValues(method).Dec()
}

// RecordRequest records a settled request and its duration.
func (mc *MetricsCollector) RecordRequest(method string, statusCode int, duration time.Duration) {
	code := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, code).Inc()
	mc.requestDuration.WithLabelValues(method, code).Observe(duration.Seconds())
}

// RecordCacheHit records a pure cache hit.
func (mc *MetricsCollector) RecordCacheHit(method string) {
	mc.cacheHits.WithLabelValues(method).Inc()
}

// RecordCacheMiss records a cache miss.
func (mc *MetricsCollector) RecordCacheMiss(method string) {
	mc.cacheMisses.WithLabelValues(method).Inc()
}

// RecordDedupHit records a request coalesced into an in-flight call.
func (mc *MetricsCollector) RecordDedupHit(method string) {
	mc.dedupHits.WithLabelValues(method).Inc()
}

// RecordRetry records one retry attempt.
func (mc *MetricsCollector) RecordRetry(attempt int) {
	mc.retriesTotal.WithLabelValues(strconv.Itoa(attempt)).Inc()
}

// RecordRefresh records a settled refresh call.
func (mc *MetricsCollector) RecordRefresh(outcome string) {
	mc.refreshTotal.WithLabelValues(outcome).Inc()
}

// RecordRefreshAttached records a caller attaching to an in-flight refresh.
func (mc *MetricsCollector) RecordRefreshAttached() {
	mc.refreshAttached.Inc()
}

// RecordRateLimited records a client-side rate limiter denial.
func (mc *MetricsCollector) RecordRateLimited() {
	mc.rateLimitedTotal.Inc()
}

// RecordError records an error by type.
func (mc *MetricsCollector) RecordError(errorType, method string) {
	mc.errorsTotal.WithLabelValues(errorType, method).Inc()
}
