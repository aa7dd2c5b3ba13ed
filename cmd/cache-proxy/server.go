package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/caching-proxy/pkg/cache"
	"github.com/Sternrassler/caching-proxy/pkg/logging"
)

// proxyRequest is the JSON body accepted by POST /proxy.
type proxyRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Params  map[string]string `json:"params"`
	Body    json.RawMessage   `json:"body"`
}

// proxyResponse is the JSON answer of POST /proxy.
type proxyResponse struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       string              `json:"body"`
	FromCache  bool                `json:"from_cache"`
	CacheKey   string              `json:"cache_key"`
}

// cacheInfoResponse is the JSON answer of GET /cache/info/{key}.
type cacheInfoResponse struct {
	Key        string    `json:"key"`
	StatusCode int       `json:"status_code"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	SizeBytes  int       `json:"size_bytes"`
}

type server struct {
	manager *cache.Manager
	logger  zerolog.Logger

	// directScheme is the scheme used to rebuild /http/ targets
	// ("https" in production, overridable for tests).
	directScheme string
}

func newServer(manager *cache.Manager) *server {
	return &server{
		manager:      manager,
		logger:       logging.NewLogger("server"),
		directScheme: "https",
	}
}

// newServeMux wires the HTTP boundary onto a cache manager.
func newServeMux(manager *cache.Manager) *http.ServeMux {
	return newServer(manager).routes()
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /proxy", s.handleProxy)
	mux.HandleFunc("/http/", s.handleDirectProxy)
	mux.HandleFunc("GET /cache/info/{key}", s.handleCacheInfo)
	mux.HandleFunc("DELETE /cache/clear", s.handleCacheClear)
	mux.HandleFunc("DELETE /cache/{key}", s.handleCacheDelete)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("POST /stats/reset", s.handleStatsReset)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// handleProxy serves the main proxy endpoint: a request description in,
// a cached-or-forwarded response out. An optional ?ttl= query parameter
// overrides the default TTL in seconds.
func (s *server) handleProxy(w http.ResponseWriter, r *http.Request) {
	var req proxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	var ttl time.Duration
	if raw := r.URL.Query().Get("ttl"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			http.Error(w, "ttl must be a positive integer", http.StatusBadRequest)
			return
		}
		ttl = time.Duration(seconds) * time.Second
	}

	result, err := s.manager.Fetch(r.Context(), &cache.Request{
		Method:  req.Method,
		URL:     req.URL,
		Headers: req.Headers,
		Params:  req.Params,
		Body:    decodeBody(req.Body),
	}, ttl)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, proxyResponse{
		StatusCode: result.Entry.StatusCode,
		Headers:    result.Entry.Headers,
		Body:       string(result.Entry.Body),
		FromCache:  result.FromCache,
		CacheKey:   result.Key,
	})
}

// handleDirectProxy proxies /http/<host>/<path> requests verbatim: the
// target is rebuilt as https://<host>/<path> and the origin response is
// streamed back with its original status and headers.
func (s *server) handleDirectProxy(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimPrefix(r.URL.Path, "/http/")
	if target == "" || target == r.URL.Path {
		http.Error(w, "invalid proxy path", http.StatusBadRequest)
		return
	}

	targetURL := s.directScheme + "://" + target
	if r.URL.RawQuery != "" {
		targetURL += "?" + r.URL.RawQuery
	}

	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		headers[name] = r.Header.Get(name)
	}

	var body []byte
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		b, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		body = b
	}

	result, err := s.manager.Fetch(r.Context(), &cache.Request{
		Method:  r.Method,
		URL:     targetURL,
		Headers: headers,
		Body:    body,
	}, 0)
	if err != nil {
		s.writeError(w, err)
		return
	}

	for name, values := range result.Entry.Headers {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.Header().Set("X-Cache", cacheStatus(result.FromCache))
	w.Header().Set("X-Cache-Key", result.Key)
	w.WriteHeader(result.Entry.StatusCode)
	if _, err := w.Write(result.Entry.Body); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response body")
	}
}

func (s *server) handleCacheInfo(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	entry, err := s.manager.Info(r.Context(), key)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			http.Error(w, "cache key not found", http.StatusNotFound)
			return
		}
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cacheInfoResponse{
		Key:        key,
		StatusCode: entry.StatusCode,
		CreatedAt:  entry.CreatedAt,
		ExpiresAt:  entry.ExpiresAt,
		SizeBytes:  entry.SizeBytes,
	})
}

func (s *server) handleCacheDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	found, err := s.manager.Delete(r.Context(), key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		http.Error(w, "cache key not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "cache item " + key + " deleted"})
}

func (s *server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	removed, err := s.manager.Clear(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.manager.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"hits":      snap.Hits,
		"misses":    snap.Misses,
		"evictions": snap.Evictions,
		"hit_rate":  snap.HitRatePercent,
		"backend":   s.manager.BackendName(),
	})
}

func (s *server) handleStatsReset(w http.ResponseWriter, r *http.Request) {
	s.manager.ResetStats()
	writeJSON(w, http.StatusOK, map[string]string{"message": "statistics reset"})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"cache_backend": s.manager.BackendName(),
		"timestamp":     time.Now().Unix(),
	})
}

// writeError maps the cache error taxonomy onto HTTP statuses.
func (s *server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cache.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, cache.ErrOperationUnsupported):
		http.Error(w, err.Error(), http.StatusNotImplemented)
	case errors.Is(err, cache.ErrBackendUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, cache.ErrOriginUnreachable):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		s.logger.Error().Err(err).Msg("Unhandled error")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeBody unwraps a JSON string body to its raw text; any other JSON
// value is forwarded verbatim.
func decodeBody(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []byte(s)
	}
	return raw
}

func cacheStatus(fromCache bool) string {
	if fromCache {
		return "HIT"
	}
	return "MISS"
}
