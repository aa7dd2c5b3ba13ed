package cache

import (
	"context"
	"errors"
	"time"
)

// Errors returned by the cache subsystem. The boundary layer maps each to a
// transport-appropriate status; nothing else escapes this package.
var (
	// ErrCacheMiss indicates the requested key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidRequest indicates a request description that cannot be
	// turned into a cache key (e.g. unparsable URL).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrBackendUnavailable indicates the backend store is unreachable.
	// Never conflated with a miss.
	ErrBackendUnavailable = errors.New("cache backend unavailable")

	// ErrOperationUnsupported indicates the backend does not support the
	// requested operation.
	ErrOperationUnsupported = errors.New("operation unsupported by backend")

	// ErrOriginUnreachable indicates a transport-level failure talking to
	// the origin server. Returned by Forwarder implementations; HTTP error
	// statuses are responses, not failures.
	ErrOriginUnreachable = errors.New("origin unreachable")
)

// Backend is the storage contract the manager is written against.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the entry for key, or ErrCacheMiss if absent or expired.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores entry under key for ttl. An existing entry is replaced
	// wholesale, never mutated in place.
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error

	// Delete removes key if present and reports whether it was found.
	Delete(ctx context.Context, key string) (bool, error)

	// Clear removes all entries owned by this backend and returns the
	// number removed. Backends that cannot clear safely return
	// ErrOperationUnsupported.
	Clear(ctx context.Context) (int, error)

	// Info returns the entry for key without affecting recency order.
	// Returns ErrCacheMiss if absent or expired.
	Info(ctx context.Context, key string) (*Entry, error)

	// Name identifies the backend ("memory", "redis") for logs and metrics.
	Name() string

	// Close releases backend resources.
	Close() error
}

// Forwarder performs the outbound origin call on a cache miss. It is a
// capability injected into the Manager; transport failures surface as
// ErrOriginUnreachable while error status codes are returned as entries.
type Forwarder interface {
	Forward(ctx context.Context, req *Request) (*Entry, error)
}
