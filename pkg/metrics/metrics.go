// Package metrics documents the Prometheus metrics exported by the proxy.
// Metrics are defined in their owning packages (cache, proxy) via promauto
// to keep registration next to the code that drives them; this package is
// the reference for what is available on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the Prometheus registerer used by the proxy. All metrics are
// registered automatically via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - cacheproxy_cache_hits_total{backend} (Counter): Cache hits by backend
//   - cacheproxy_cache_misses_total{backend} (Counter): Cache misses by backend
//   - cacheproxy_cache_evictions_total{backend} (Counter): LRU and lazy-expiry evictions
//   - cacheproxy_coalesced_requests_total (Counter): Fetches attached to an in-flight fetch
//   - cacheproxy_cache_errors_total{operation} (Counter): Backend operation errors
//
// Origin Metrics (pkg/proxy):
//   - cacheproxy_origin_requests_total{status} (Counter): Origin requests by HTTP status
//   - cacheproxy_origin_request_duration_seconds (Histogram): Origin request duration
//   - cacheproxy_origin_errors_total (Counter): Transport failures after retries
//   - cacheproxy_origin_retries_total (Counter): Retry attempts
//   - cacheproxy_origin_retry_exhausted_total (Counter): Requests that exhausted retries
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate (per backend)
//   sum by (backend) (rate(cacheproxy_cache_hits_total[5m])) /
//   (sum by (backend) (rate(cacheproxy_cache_hits_total[5m]))
//    + sum by (backend) (rate(cacheproxy_cache_misses_total[5m])))
//
//   # Coalescing effectiveness
//   rate(cacheproxy_coalesced_requests_total[5m]) / rate(cacheproxy_cache_misses_total[5m])
//
//   # P95 Origin Latency
//   histogram_quantile(0.95, rate(cacheproxy_origin_request_duration_seconds_bucket[5m]))
