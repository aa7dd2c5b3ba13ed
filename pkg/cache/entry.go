package cache

import (
	"net/http"
	"time"
)

// Entry is a cached origin response. Entries are immutable once stored;
// overwrites replace the whole entry.
type Entry struct {
	// StatusCode is the HTTP status code of the cached response.
	StatusCode int `json:"status_code"`

	// Headers are the response headers, duplicates preserved.
	Headers http.Header `json:"headers"`

	// Body is the response body.
	Body []byte `json:"body"`

	// CreatedAt is when the entry was stored.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is when the entry becomes stale (CreatedAt + TTL).
	ExpiresAt time.Time `json:"expires_at"`

	// SizeBytes is the body size.
	SizeBytes int `json:"size_bytes"`
}

// NewEntry builds an unexpired entry from a response. Expiry is stamped by
// WithTTL when the entry is stored.
func NewEntry(statusCode int, headers http.Header, body []byte) *Entry {
	return &Entry{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       body,
		CreatedAt:  time.Now(),
		SizeBytes:  len(body),
	}
}

// WithTTL returns a copy of the entry stamped with a fresh creation time
// and an expiry of now + ttl.
func (e *Entry) WithTTL(ttl time.Duration) *Entry {
	stamped := *e
	stamped.CreatedAt = time.Now()
	stamped.ExpiresAt = stamped.CreatedAt.Add(ttl)
	return &stamped
}

// IsExpired returns true if the entry is stale.
func (e *Entry) IsExpired() bool {
	return !e.ExpiresAt.IsZero() && !time.Now().Before(e.ExpiresAt)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}
