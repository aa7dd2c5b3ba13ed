package cache

import (
	"errors"
	"testing"
)

func TestRequestKey_Deterministic(t *testing.T) {
	req := &Request{
		Method: "GET",
		URL:    "https://api.example.com/items",
		Params: map[string]string{"a": "1", "b": "2"},
	}

	key1, err := req.Key()
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	key2, err := req.Key()
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}

	if key1 != key2 {
		t.Errorf("Key not deterministic: %s != %s", key1, key2)
	}
	if len(key1) != 64 {
		t.Errorf("Expected 64-char hex key, got %d chars", len(key1))
	}
}

func TestRequestKey_ParamOrderIndependent(t *testing.T) {
	key1, err := (&Request{
		URL:    "https://api.example.com/x?b=2",
		Params: map[string]string{"a": "1"},
	}).Key()
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}

	key2, err := (&Request{
		URL:    "https://api.example.com/x?a=1",
		Params: map[string]string{"b": "2"},
	}).Key()
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}

	if key1 != key2 {
		t.Errorf("Parameter order changed the key: %s != %s", key1, key2)
	}
}

func TestRequestKey_Normalization(t *testing.T) {
	tests := []struct {
		name string
		a    Request
		b    Request
		same bool
	}{
		{
			name: "method case",
			a:    Request{Method: "get", URL: "https://example.com/x"},
			b:    Request{Method: "GET", URL: "https://example.com/x"},
			same: true,
		},
		{
			name: "host case",
			a:    Request{URL: "https://EXAMPLE.com/x"},
			b:    Request{URL: "https://example.com/x"},
			same: true,
		},
		{
			name: "default port stripped",
			a:    Request{URL: "https://example.com:443/x"},
			b:    Request{URL: "https://example.com/x"},
			same: true,
		},
		{
			name: "different methods",
			a:    Request{Method: "GET", URL: "https://example.com/x"},
			b:    Request{Method: "POST", URL: "https://example.com/x"},
			same: false,
		},
		{
			name: "different paths",
			a:    Request{URL: "https://example.com/x"},
			b:    Request{URL: "https://example.com/y"},
			same: false,
		},
		{
			name: "different bodies",
			a:    Request{URL: "https://example.com/x", Body: []byte("one")},
			b:    Request{URL: "https://example.com/x", Body: []byte("two")},
			same: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keyA, err := tt.a.Key()
			if err != nil {
				t.Fatalf("Key failed: %v", err)
			}
			keyB, err := tt.b.Key()
			if err != nil {
				t.Fatalf("Key failed: %v", err)
			}
			if (keyA == keyB) != tt.same {
				t.Errorf("keys equal = %v, want %v", keyA == keyB, tt.same)
			}
		})
	}
}

func TestRequestKey_HeaderWhitelist(t *testing.T) {
	base := Request{URL: "https://example.com/x"}
	baseKey, err := base.Key()
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}

	// Volatile headers must not fragment the cache.
	volatile := Request{
		URL:     "https://example.com/x",
		Headers: map[string]string{"X-Request-Id": "abc", "User-Agent": "curl"},
	}
	volatileKey, err := volatile.Key()
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if volatileKey != baseKey {
		t.Error("Non-whitelisted headers changed the key")
	}

	// Whitelisted headers participate, case-insensitively.
	auth := Request{
		URL:     "https://example.com/x",
		Headers: map[string]string{"Authorization": "Bearer t"},
	}
	authKey, err := auth.Key()
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if authKey == baseKey {
		t.Error("Authorization header did not change the key")
	}

	authLower := Request{
		URL:     "https://example.com/x",
		Headers: map[string]string{"authorization": "Bearer t"},
	}
	authLowerKey, err := authLower.Key()
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if authLowerKey != authKey {
		t.Error("Header name case changed the key")
	}
}

func TestRequestKey_SeparatorInjection(t *testing.T) {
	// A value containing the canonical-form separators must not collapse
	// into another field: these requests forward different queries to the
	// origin, so sharing a key would let one poison the other's entry.
	tests := []struct {
		name string
		a    Request
		b    Request
	}{
		{
			name: "newline in param value",
			a: Request{
				URL:    "https://example.com/x",
				Params: map[string]string{"a": "1\nb=2"},
			},
			b: Request{
				URL:    "https://example.com/x",
				Params: map[string]string{"a": "1", "b": "2"},
			},
		},
		{
			name: "equals sign shifts between name and value",
			a: Request{
				URL:    "https://example.com/x",
				Params: map[string]string{"a": "1=2"},
			},
			b: Request{
				URL:    "https://example.com/x",
				Params: map[string]string{"a=1": "2"},
			},
		},
		{
			name: "newline in header value",
			a: Request{
				URL:     "https://example.com/x",
				Headers: map[string]string{"Accept": "a\naccept-language: b"},
			},
			b: Request{
				URL:     "https://example.com/x",
				Headers: map[string]string{"Accept": "a", "Accept-Language": "b"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keyA, err := tt.a.Key()
			if err != nil {
				t.Fatalf("Key failed: %v", err)
			}
			keyB, err := tt.b.Key()
			if err != nil {
				t.Fatalf("Key failed: %v", err)
			}
			if keyA == keyB {
				t.Errorf("Distinct requests share key %s", keyA)
			}
		})
	}
}

func TestRequestKey_InvalidURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{name: "unparsable", url: "ht tp://bad url"},
		{name: "relative", url: "/just/a/path"},
		{name: "empty", url: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&Request{URL: tt.url}).Key()
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("Expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}
