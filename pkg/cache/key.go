package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// keyHeaders is the whitelist of headers that participate in key derivation.
// Everything else (client timestamps, tracing headers, user agents) is
// volatile and would fragment the cache.
var keyHeaders = map[string]bool{
	"accept":          true,
	"accept-language": true,
	"authorization":   true,
	"content-type":    true,
	"range":           true,
}

// Request describes a logical request to the proxy. It is the input to key
// derivation and to the origin forwarder.
type Request struct {
	// Method is the HTTP method (defaults to GET when empty).
	Method string

	// URL is the absolute target URL.
	URL string

	// Headers are forwarded to the origin; only the whitelisted subset
	// participates in the cache key.
	Headers map[string]string

	// Params are additional query parameters, merged with any already
	// present in URL.
	Params map[string]string

	// Body is the request body, if any. Its digest participates in the key.
	Body []byte
}

// method returns the normalized HTTP method.
func (r *Request) method() string {
	if r.Method == "" {
		return "GET"
	}
	return strings.ToUpper(r.Method)
}

// Key derives the deterministic cache key for the request: a hex SHA-256
// over the canonical form (normalized method and URL, sorted query
// parameters, whitelisted headers, body digest). Equal logical requests map
// to equal keys regardless of parameter or header order.
//
// Returns ErrInvalidRequest if the URL cannot be parsed or lacks a host.
func (r *Request) Key() (string, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("%w: parse url: %v", ErrInvalidRequest, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: url must be absolute: %q", ErrInvalidRequest, r.URL)
	}

	var b strings.Builder
	b.WriteString(r.method())
	b.WriteByte('\n')
	b.WriteString(strings.ToLower(u.Scheme))
	b.WriteString("://")
	b.WriteString(normalizeHost(u))
	b.WriteString(u.EscapedPath())
	b.WriteByte('\n')

	// Query parameters from the URL and the Params map, sorted by name
	// then value so ordering never changes the key.
	query := u.Query()
	for name, value := range r.Params {
		query.Add(name, value)
	}
	names := make([]string, 0, len(query))
	for name := range query {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		values := query[name]
		sort.Strings(values)
		for _, value := range values {
			// Escape both sides so a value containing the separator
			// characters cannot forge another field in the canonical form.
			fmt.Fprintf(&b, "%s=%s\n", url.QueryEscape(name), url.QueryEscape(value))
		}
	}

	// Whitelisted headers, lower-cased names, sorted. Values are escaped
	// for the same reason as query parameters.
	headers := make([]string, 0, len(r.Headers))
	for name, value := range r.Headers {
		lower := strings.ToLower(name)
		if keyHeaders[lower] {
			headers = append(headers, lower+": "+url.QueryEscape(value))
		}
	}
	sort.Strings(headers)
	for _, h := range headers {
		b.WriteString(h)
		b.WriteByte('\n')
	}

	if len(r.Body) > 0 {
		digest := sha256.Sum256(r.Body)
		fmt.Fprintf(&b, "body=%x\n", digest)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}

// normalizeHost lower-cases the host and strips the default port for the
// scheme, so http://Example.COM:80/x and http://example.com/x share a key.
func normalizeHost(u *url.URL) string {
	host := strings.ToLower(u.Host)
	switch u.Scheme {
	case "http":
		host = strings.TrimSuffix(host, ":80")
	case "https":
		host = strings.TrimSuffix(host, ":443")
	}
	return host
}
