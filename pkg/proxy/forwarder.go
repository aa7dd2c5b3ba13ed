// Package proxy performs the outbound origin call on behalf of the cache
// manager. Transport failures surface as cache.ErrOriginUnreachable; error
// status codes are responses like any other and never forwarder errors.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/caching-proxy/pkg/cache"
)

// Prometheus metrics for origin requests.
var (
	originRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cacheproxy_origin_requests_total",
		Help: "Total origin requests by HTTP status",
	}, []string{"status"})

	originRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cacheproxy_origin_request_duration_seconds",
		Help:    "Origin request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	originErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cacheproxy_origin_errors_total",
		Help: "Total origin transport errors (after retries)",
	})
)

// idempotentMethods are the methods safe to retry automatically
// (RFC 7231 section 4.2.2). A non-idempotent request that fails after
// reaching the origin must not be replayed.
var idempotentMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
}

// hopHeaders are connection-scoped headers that must not be forwarded in
// either direction (RFC 7230 section 6.1).
var hopHeaders = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"proxy-connection":    true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
	"host":                true,
	"content-length":      true,
	"accept-encoding":     true,
}

// HTTPForwarder implements cache.Forwarder on net/http. Transient transport
// errors on idempotent requests are retried with exponential backoff before
// being reported; non-idempotent requests get a single attempt.
type HTTPForwarder struct {
	client *http.Client
	retry  RetryConfig
	logger zerolog.Logger
}

// NewHTTPForwarder creates a forwarder with the given per-request timeout.
// A timeout of 0 means no timeout beyond the caller's context.
func NewHTTPForwarder(timeout time.Duration) *HTTPForwarder {
	return &HTTPForwarder{
		client: &http.Client{Timeout: timeout},
		retry:  DefaultRetryConfig(),
		logger: log.With().Str("component", "forwarder").Logger(),
	}
}

// SetHTTPClient replaces the underlying HTTP client (for testing).
func (f *HTTPForwarder) SetHTTPClient(client *http.Client) {
	f.client = client
}

// Forward performs the origin request described by req and returns the
// response as a cache entry. Whatever status the origin answers with is
// data; only transport-level failures return an error.
func (f *HTTPForwarder) Forward(ctx context.Context, req *cache.Request) (*cache.Entry, error) {
	start := time.Now()
	defer func() {
		originRequestDuration.Observe(time.Since(start).Seconds())
	}()

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	retry := f.retry
	if !idempotentMethods[method] {
		retry.MaxAttempts = 1
	}

	var resp *http.Response
	// The request is rebuilt per attempt so the body reader is fresh on
	// every retry.
	err := retryWithBackoff(ctx, retry, func() error {
		httpReq, buildErr := f.buildRequest(ctx, req)
		if buildErr != nil {
			return fmt.Errorf("%w: build request: %v", cache.ErrInvalidRequest, buildErr)
		}
		var reqErr error
		resp, reqErr = f.client.Do(httpReq)
		return reqErr
	})
	if err != nil {
		if errors.Is(err, cache.ErrInvalidRequest) {
			return nil, err
		}
		originErrorsTotal.Inc()
		f.logger.Error().Err(err).Str("url", req.URL).Msg("Origin request failed")
		return nil, fmt.Errorf("%w: %v", cache.ErrOriginUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		originErrorsTotal.Inc()
		return nil, fmt.Errorf("%w: read response body: %v", cache.ErrOriginUnreachable, err)
	}

	originRequestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()
	f.logger.Debug().
		Str("url", req.URL).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Msg("Origin request completed")

	return cache.NewEntry(resp.StatusCode, stripHopHeaders(resp.Header), body), nil
}

// buildRequest translates the request description into an *http.Request,
// merging extra params into the query and dropping hop-by-hop headers.
func (f *HTTPForwarder) buildRequest(ctx context.Context, req *cache.Request) (*http.Request, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, err
	}

	if len(req.Params) > 0 {
		query := httpReq.URL.Query()
		for name, value := range req.Params {
			query.Set(name, value)
		}
		httpReq.URL.RawQuery = query.Encode()
	}

	for name, value := range req.Headers {
		if hopHeaders[strings.ToLower(name)] {
			continue
		}
		httpReq.Header.Set(name, value)
	}

	// Request uncompressed content so the cached body can be replayed to
	// any client.
	httpReq.Header.Set("Accept-Encoding", "identity")

	return httpReq, nil
}

// stripHopHeaders returns a copy of headers without connection-scoped and
// encoding headers that would not survive replay from the cache.
func stripHopHeaders(headers http.Header) http.Header {
	out := make(http.Header, len(headers))
	for name, values := range headers {
		if hopHeaders[strings.ToLower(name)] || strings.EqualFold(name, "Content-Encoding") {
			continue
		}
		for _, value := range values {
			out.Add(name, value)
		}
	}
	return out
}
