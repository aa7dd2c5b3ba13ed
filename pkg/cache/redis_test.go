package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupRedisBackend starts an in-process redis server for unit tests.
// Integration tests against a real redis live in tests/integration.
func setupRedisBackend(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backend := NewRedisBackend(client)
	t.Cleanup(func() { backend.Close() })

	return backend, mr
}

func TestNewRedisBackend_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisBackend should panic with nil client")
		}
	}()
	NewRedisBackend(nil)
}

func TestRedisBackend_SetAndGet(t *testing.T) {
	backend, _ := setupRedisBackend(t)
	ctx := context.Background()

	entry := NewEntry(200, nil, []byte(`{"test":"data"}`))
	if err := backend.Set(ctx, "k1", entry, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := backend.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Body) != string(entry.Body) {
		t.Errorf("Body = %q, want %q", got.Body, entry.Body)
	}
	if got.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", got.StatusCode)
	}
}

func TestRedisBackend_GetMiss(t *testing.T) {
	backend, _ := setupRedisBackend(t)

	_, err := backend.Get(context.Background(), "nope")
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestRedisBackend_KeysAreNamespaced(t *testing.T) {
	backend, mr := setupRedisBackend(t)
	ctx := context.Background()

	if err := backend.Set(ctx, "k1", newTestEntry("x"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if !mr.Exists(redisKeyPrefix + "k1") {
		t.Errorf("Expected key %q in redis", redisKeyPrefix+"k1")
	}
	if mr.Exists("k1") {
		t.Error("Key stored without namespace prefix")
	}
}

func TestRedisBackend_TTLExpiry(t *testing.T) {
	backend, mr := setupRedisBackend(t)
	ctx := context.Background()

	if err := backend.Set(ctx, "k1", newTestEntry("x"), time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	mr.FastForward(2 * time.Second)

	_, err := backend.Get(ctx, "k1")
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after TTL, got %v", err)
	}
}

func TestRedisBackend_Delete(t *testing.T) {
	backend, _ := setupRedisBackend(t)
	ctx := context.Background()

	backend.Set(ctx, "k1", newTestEntry("x"), time.Minute)

	found, err := backend.Delete(ctx, "k1")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !found {
		t.Error("Delete should report the key was found")
	}

	found, err = backend.Delete(ctx, "k1")
	if err != nil {
		t.Fatalf("Second delete failed: %v", err)
	}
	if found {
		t.Error("Second delete should report not found")
	}
}

func TestRedisBackend_ClearScopedToPrefix(t *testing.T) {
	backend, mr := setupRedisBackend(t)
	ctx := context.Background()

	backend.Set(ctx, "k1", newTestEntry("x"), time.Minute)
	backend.Set(ctx, "k2", newTestEntry("y"), time.Minute)

	// Unrelated tenant data in the same store must survive a clear.
	mr.Set("other:data", "keep me")

	removed, err := backend.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Clear removed %d, want 2", removed)
	}
	if !mr.Exists("other:data") {
		t.Error("Clear removed a key outside the proxy namespace")
	}
}

func TestRedisBackend_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backend := NewRedisBackend(client)
	defer backend.Close()

	mr.Close()

	_, err := backend.Get(context.Background(), "k1")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Expected ErrBackendUnavailable, got %v", err)
	}
	if errors.Is(err, ErrCacheMiss) {
		t.Error("Unreachable backend must never look like a miss")
	}

	if err := backend.Set(context.Background(), "k1", newTestEntry("x"), time.Minute); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Expected ErrBackendUnavailable from Set, got %v", err)
	}
}

func TestRedisBackend_CorruptEntryIsAMiss(t *testing.T) {
	backend, mr := setupRedisBackend(t)

	mr.Set(redisKeyPrefix+"bad", "not json")

	_, err := backend.Get(context.Background(), "bad")
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss for corrupt entry, got %v", err)
	}
	if mr.Exists(redisKeyPrefix + "bad") {
		t.Error("Corrupt entry should have been dropped")
	}
}
