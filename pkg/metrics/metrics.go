// Package metrics provides the centralized Prometheus registry for the
// harvester. All metrics are defined in their respective packages
// (client, cache, ratelimit, pagination, worker, harvester) to
// maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the harvester.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - harvester_rate_limit_grants_total (Counter): Grants issued by the rate limiter
//   - harvester_rate_limit_wait_seconds (Histogram): Time spent waiting for a grant
//
// Request Metrics (pkg/client):
//   - harvester_requests_total{status} (Counter): Upstream requests by HTTP status
//   - harvester_request_duration_seconds (Histogram): Upstream request duration
//   - harvester_retries_total{error_class} (Counter): Retry attempts by error class
//   - harvester_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - harvester_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - harvester_cache_hits_total (Counter): Fresh cache hits
//   - harvester_cache_misses_total (Counter): Absent or stale entries
//   - harvester_cache_resets_total{reason} (Counter): Cache resets on load (corrupt, version_mismatch)
//
// Pagination Metrics (pkg/pagination):
//   - harvester_pages_fetched_total{sort} (Counter): Ranking pages fetched by sort
//   - harvester_walk_failures_total{reason} (Counter): Failed walks (fetch, shape_drift)
//
// Worker Pool Metrics (pkg/worker):
//   - harvester_pool_items_total{outcome} (Counter): Work items by outcome (success, failure)
//
// Run Metrics (pkg/harvester):
//   - harvester_runs_total{status} (Counter): Harvest runs by status
//   - harvester_run_duration_seconds (Histogram): Harvest run duration
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(harvester_cache_hits_total[1h])) /
//   (sum(rate(harvester_cache_hits_total[1h])) + sum(rate(harvester_cache_misses_total[1h])))
//
//   # Retry Pressure
//   rate(harvester_retries_total[1h])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(harvester_request_duration_seconds_bucket[1h]))
//
//   # Walk Failure Rate by Reason
//   rate(harvester_walk_failures_total[6h])
