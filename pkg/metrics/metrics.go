// Package metrics provides the centralized Prometheus metrics registry
// for slotscope. All metrics are defined in their respective packages
// (client, cache, ratelimit, pagination) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by slotscope.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Error Budget Metrics (pkg/ratelimit):
//   - slotscope_errors_remaining (Gauge): Errors remaining in the current budget window
//   - slotscope_error_budget_blocks_total (Counter): Requests blocked at the critical threshold
//   - slotscope_error_budget_throttles_total (Counter): Requests throttled at the warning threshold
//
// Cache Metrics (pkg/cache):
//   - slotscope_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - slotscope_cache_misses_total (Counter): Cache misses
//   - slotscope_cache_size_bytes{layer="redis"} (Gauge): Current cache size in bytes
//   - slotscope_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - slotscope_requests_total{endpoint, status} (Counter): Total requests by action and HTTP status
//   - slotscope_request_duration_seconds{endpoint} (Histogram): Request duration by action
//   - slotscope_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - slotscope_retries_total{error_class} (Counter): Retry attempts by error class
//   - slotscope_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - slotscope_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Fan-out Metrics (pkg/pagination):
//   - slotscope_tasks_total{result} (Counter): (provider, date) tasks by terminal result
//   - slotscope_task_duration_seconds (Histogram): Duration of one full pagination walk
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(slotscope_cache_hits_total[5m])) /
//   (sum(rate(slotscope_cache_hits_total[5m])) + sum(rate(slotscope_cache_misses_total[5m])))
//
//   # Error Budget Status
//   slotscope_errors_remaining < 20
//
//   # Task Failure Rate
//   rate(slotscope_tasks_total{result="failure"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(slotscope_request_duration_seconds_bucket[5m]))
