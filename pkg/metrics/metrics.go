// Package metrics exposes the Prometheus metrics of the JupiterOne client.
// All metrics are defined in their respective packages (client, pagination,
// cache, ratelimit) to avoid circular dependencies.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their respective packages.
// Handler registers its own scrape metrics here.
var Registry = prometheus.DefaultRegisterer

// Handler returns an http.Handler serving every registered metric.
// Scrapes are counted in promhttp_metric_handler_requests_total.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(Registry,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{Registry: Registry}))
}

// NewServeMux returns a mux serving Handler on /metrics and a liveness
// check on /health.
func NewServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - jupiterone_requests_total{operation, status} (Counter): Requests by operation and HTTP status
//   - jupiterone_request_duration_seconds{operation} (Histogram): Request duration by operation
//   - jupiterone_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, graphql)
//   - jupiterone_query_cache_lookups_total{outcome} (Counter): Result cache lookups (hit, miss, error)
//
// Retry Metrics (pkg/client):
//   - jupiterone_retries_total{error_class} (Counter): Retry attempts by error class
//   - jupiterone_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - jupiterone_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Pagination Metrics (pkg/pagination):
//   - jupiterone_pages_fetched_total{mode} (Counter): Pages fetched by engine (cursor, skip_limit, deferred)
//   - jupiterone_deferred_polls_total (Counter): Polls of deferred result URLs
//   - jupiterone_partial_results_total (Counter): Queries that returned partial results
//   - jupiterone_session_records{mode} (Histogram): Records returned per paginated query
//
// Cache Metrics (pkg/cache):
//   - jupiterone_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - jupiterone_cache_misses_total (Counter): Cache misses
//   - jupiterone_cache_size_bytes{layer="redis"} (Gauge): Current cache size in bytes
//   - jupiterone_cache_errors_total{operation} (Counter): Cache operation errors
//
// Rate Limit Metrics (pkg/ratelimit):
//   - jupiterone_rate_limit_waits_total{reason} (Counter): Requests delayed (cooldown, throttle)
//   - jupiterone_rate_limit_wait_seconds{reason} (Histogram): Time spent waiting before sending
//   - jupiterone_rate_limit_cooldowns_total (Counter): Retry-After cool-downs observed
//
// Example Prometheus Queries:
//
//   # Result Cache Hit Rate
//   sum(rate(jupiterone_query_cache_lookups_total{outcome="hit"}[5m])) /
//   sum(rate(jupiterone_query_cache_lookups_total[5m]))
//
//   # Rate Limited Requests
//   rate(jupiterone_errors_total{class="rate_limit"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(jupiterone_request_duration_seconds_bucket[5m]))
//
//   # Pages per Query
//   rate(jupiterone_pages_fetched_total[5m]) / rate(jupiterone_session_records_count[5m])
