// Package cache implements the caching core of the proxy: deterministic
// cache key derivation, a pluggable backend abstraction with in-memory
// (LRU+TTL) and Redis variants, single-flight coalescing of concurrent
// misses, and hit/miss/eviction statistics.
//
// # Basic Usage
//
//	backend := cache.NewMemoryBackend(1000, nil)
//
//	manager, err := cache.NewManager(cache.Options{
//		Backend:    backend,
//		Forwarder:  proxy.NewHTTPForwarder(30 * time.Second),
//		DefaultTTL: 5 * time.Minute,
//	})
//	if err != nil {
//		return err
//	}
//	defer manager.Close()
//
//	result, err := manager.Fetch(ctx, &cache.Request{
//		Method: "GET",
//		URL:    "https://api.example.com/items",
//		Params: map[string]string{"page": "1"},
//	}, 0)
//
// # Backends
//
// The memory backend is bounded: insertions beyond capacity evict the
// least-recently-used entry first, and expiry is checked lazily on access.
// The Redis backend namespaces every key under a fixed prefix and delegates
// expiry to Redis TTLs; eviction policy is the Redis server's concern.
//
// # Single-Flight
//
// Concurrent Fetch calls that miss on the same key share one origin fetch.
// All waiters observe the same outcome, success or failure. A waiter that
// abandons its request (context cancellation) does not cancel the shared
// fetch; a successful result is still stored best-effort.
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - cacheproxy_cache_hits_total{backend} - Cache hits
//   - cacheproxy_cache_misses_total{backend} - Cache misses
//   - cacheproxy_cache_evictions_total{backend} - LRU and expiry evictions
//   - cacheproxy_cache_errors_total{operation} - Backend operation errors
//   - cacheproxy_coalesced_requests_total - Fetches served by an in-flight fetch
package cache
