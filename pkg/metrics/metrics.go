// Package metrics provides the Prometheus registry reference for the
// animals ETL loader. All metrics are defined in their owning packages
// (client, cache) and registered via promauto; this package documents them
// in one place.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the loader.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - animals_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - animals_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - animals_errors_total{class} (Counter): Errors by class (client, server, network)
//
// Retry Metrics (pkg/client):
//   - animals_retries_total{error_class} (Counter): Retry attempts by error class
//   - animals_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - animals_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - animals_cache_hits_total (Counter): Detail cache hits
//   - animals_cache_misses_total (Counter): Detail cache misses
//   - animals_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Retry rate by error class
//   rate(animals_retries_total[5m])
//
//   # Share of requests that gave up
//   rate(animals_retry_exhausted_total[5m]) / rate(animals_requests_total[5m])
//
//   # P95 request latency (includes the upstream's injected delays)
//   histogram_quantile(0.95, rate(animals_request_duration_seconds_bucket[5m]))
//
//   # Cache hit rate
//   rate(animals_cache_hits_total[5m]) /
//   (rate(animals_cache_hits_total[5m]) + rate(animals_cache_misses_total[5m]))
