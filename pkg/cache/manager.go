package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// UnavailablePolicy controls what happens when the backend store is
// unreachable. The choice is explicit configuration, never implicit.
type UnavailablePolicy string

const (
	// FailClosed propagates ErrBackendUnavailable to the caller.
	FailClosed UnavailablePolicy = "fail-closed"

	// Bypass skips caching entirely and forwards directly to the origin.
	Bypass UnavailablePolicy = "bypass"
)

// ErrorCachePolicy controls whether responses with error status codes are
// stored like any other response.
type ErrorCachePolicy string

const (
	// CacheErrorResponses caches every response regardless of status.
	CacheErrorResponses ErrorCachePolicy = "cache-errors"

	// NoCacheErrorResponses caches only 200, 301 and 302 responses.
	NoCacheErrorResponses ErrorCachePolicy = "no-cache-errors"
)

// DefaultTTL is the fallback entry lifetime when no override is given.
const DefaultTTL = 5 * time.Minute

// Options configures a Manager. Backend and Forwarder are required.
type Options struct {
	Backend   Backend
	Forwarder Forwarder

	// DefaultTTL is the entry lifetime when Fetch receives no override
	// (defaults to DefaultTTL).
	DefaultTTL time.Duration

	// Unavailable selects the backend-unavailability policy
	// (defaults to FailClosed).
	Unavailable UnavailablePolicy

	// ErrorCaching selects the error-response caching policy
	// (defaults to NoCacheErrorResponses).
	ErrorCaching ErrorCachePolicy

	// Stats receives hit/miss/eviction counts. A fresh tracker is created
	// when nil. Pass the same tracker given to NewMemoryBackend so
	// evictions land in the same counters.
	Stats *StatsTracker
}

// Result is the outcome of a Fetch.
type Result struct {
	// Entry is the response, cached or freshly fetched.
	Entry *Entry

	// FromCache reports whether the entry was served from the backend.
	FromCache bool

	// Key is the derived cache key for the request.
	Key string
}

// Manager selects one backend, exposes the uniform cache contract, and
// coalesces concurrent identical misses into a single origin fetch. It owns
// no ambient state; create one instance at startup and Close it on shutdown.
type Manager struct {
	backend     Backend
	forwarder   Forwarder
	stats       *StatsTracker
	flight      *flightGroup
	defaultTTL  time.Duration
	unavailable UnavailablePolicy
	errorCache  ErrorCachePolicy
	logger      zerolog.Logger
}

// NewManager creates a cache manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if opts.Forwarder == nil {
		return nil, fmt.Errorf("forwarder is required")
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.Unavailable == "" {
		opts.Unavailable = FailClosed
	}
	if opts.Unavailable != FailClosed && opts.Unavailable != Bypass {
		return nil, fmt.Errorf("unknown unavailable policy %q", opts.Unavailable)
	}
	if opts.ErrorCaching == "" {
		opts.ErrorCaching = NoCacheErrorResponses
	}
	if opts.ErrorCaching != CacheErrorResponses && opts.ErrorCaching != NoCacheErrorResponses {
		return nil, fmt.Errorf("unknown error caching policy %q", opts.ErrorCaching)
	}
	if opts.Stats == nil {
		opts.Stats = NewStatsTracker()
	}

	return &Manager{
		backend:     opts.Backend,
		forwarder:   opts.Forwarder,
		stats:       opts.Stats,
		flight:      newFlightGroup(),
		defaultTTL:  opts.DefaultTTL,
		unavailable: opts.Unavailable,
		errorCache:  opts.ErrorCaching,
		logger:      log.With().Str("component", "cache-manager").Logger(),
	}, nil
}

// Fetch resolves a request through the cache: on a hit the stored entry is
// returned, on a miss exactly one origin fetch per key is performed and its
// outcome broadcast to every concurrent caller. ttlOverride replaces the
// default TTL when positive.
//
// Every call records exactly one hit or one miss, so hits+misses equals the
// number of Fetch calls. ErrInvalidRequest is rejected before any counter
// or backend state is touched.
func (m *Manager) Fetch(ctx context.Context, req *Request, ttlOverride time.Duration) (*Result, error) {
	key, err := req.Key()
	if err != nil {
		return nil, err
	}

	store := true
	entry, err := m.backend.Get(ctx, key)
	switch {
	case err == nil:
		m.stats.RecordHit()
		CacheHits.WithLabelValues(m.backend.Name()).Inc()
		m.logger.Debug().Str("key", key).Msg("Cache hit")
		return &Result{Entry: entry, FromCache: true, Key: key}, nil

	case errors.Is(err, ErrCacheMiss):
		// Fall through to the miss path.

	default:
		if m.unavailable == FailClosed {
			return nil, err
		}
		// Bypass: forward without caching, still coalesced per key.
		m.logger.Warn().Err(err).Str("key", key).Msg("Backend unavailable, bypassing cache")
		store = false
	}

	m.stats.RecordMiss()
	CacheMisses.WithLabelValues(m.backend.Name()).Inc()

	ttl := m.defaultTTL
	if ttlOverride > 0 {
		ttl = ttlOverride
	}

	call, started := m.flight.do(key, func() (*Entry, error) {
		// Detach from the initiating caller: an abandoned request must
		// not cancel the shared fetch, and a successful result is still
		// stored for future use.
		fctx := context.WithoutCancel(ctx)

		fetched, ferr := m.forwarder.Forward(fctx, req)
		if ferr != nil {
			return nil, ferr
		}

		if store && m.shouldCache(fetched) {
			if serr := m.backend.Set(fctx, key, fetched, ttl); serr != nil {
				m.logger.Warn().Err(serr).Str("key", key).Msg("Failed to store response")
			} else {
				m.logger.Debug().Str("key", key).Dur("ttl", ttl).Msg("Stored response")
			}
		}
		return fetched, nil
	})
	if !started {
		CoalescedRequests.Inc()
	}

	entry, err = call.wait(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{Entry: entry, FromCache: false, Key: key}, nil
}

// shouldCache applies the error-response policy and honors origin
// Cache-Control no-store/no-cache directives.
func (m *Manager) shouldCache(entry *Entry) bool {
	if m.errorCache == NoCacheErrorResponses {
		switch entry.StatusCode {
		case 200, 301, 302:
		default:
			return false
		}
	}

	cc := strings.ToLower(entry.Headers.Get("Cache-Control"))
	if strings.Contains(cc, "no-store") || strings.Contains(cc, "no-cache") {
		return false
	}
	return true
}

// Delete removes the entry for a cache key and reports whether it existed.
func (m *Manager) Delete(ctx context.Context, key string) (bool, error) {
	return m.backend.Delete(ctx, key)
}

// Clear removes all proxy-owned entries and returns the count removed.
// Statistics are not reset.
func (m *Manager) Clear(ctx context.Context) (int, error) {
	return m.backend.Clear(ctx)
}

// Info returns the entry for a cache key without promoting it.
func (m *Manager) Info(ctx context.Context, key string) (*Entry, error) {
	return m.backend.Info(ctx, key)
}

// Stats returns a point-in-time counter snapshot.
func (m *Manager) Stats() StatsSnapshot {
	return m.stats.Snapshot()
}

// ResetStats zeroes the counters without touching cached entries.
func (m *Manager) ResetStats() {
	m.stats.Reset()
}

// BackendName identifies the configured backend.
func (m *Manager) BackendName() string {
	return m.backend.Name()
}

// Close releases backend resources.
func (m *Manager) Close() error {
	return m.backend.Close()
}
