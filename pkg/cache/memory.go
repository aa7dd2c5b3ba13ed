package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryBackend is a bounded, TTL-aware, LRU-ordered in-process store.
//
// A map gives O(1) lookup; a doubly-linked list maintains recency order
// (front = most recently used). Expiry is lazy: an expired entry is removed
// when touched and counted as an eviction. There is no background sweep, so
// an expired-but-unaccessed entry occupies a capacity slot until touched or
// pushed out by LRU pressure.
type MemoryBackend struct {
	mu         sync.Mutex
	maxEntries int
	items      map[string]*list.Element
	lru        *list.List
	onEvict    func()
}

// memoryEntry is the value stored in LRU list elements. The key is kept
// here because eviction starts from list nodes.
type memoryEntry struct {
	key   string
	entry *Entry
}

// NewMemoryBackend creates a memory backend holding at most maxEntries
// entries. onEvict, if non-nil, is called once per evicted entry (capacity
// eviction and lazy expiry alike).
func NewMemoryBackend(maxEntries int, onEvict func()) *MemoryBackend {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryBackend{
		maxEntries: maxEntries,
		items:      make(map[string]*list.Element),
		lru:        list.New(),
		onEvict:    onEvict,
	}
}

// Get returns the entry for key and promotes it to most-recently-used.
// An expired entry is removed, counted as an eviction, and reported as a miss.
func (b *MemoryBackend) Get(_ context.Context, key string) (*Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	elem, ok := b.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}

	me := elem.Value.(*memoryEntry)
	if me.entry.IsExpired() {
		b.removeElement(elem)
		b.evicted()
		return nil, ErrCacheMiss
	}

	b.lru.MoveToFront(elem)
	return me.entry, nil
}

// Set inserts or replaces the entry for key, evicting least-recently-used
// entries until the store is within capacity. Ties break by insertion order
// (earliest inserted evicted first).
func (b *MemoryBackend) Set(_ context.Context, key string, entry *Entry, ttl time.Duration) error {
	stamped := entry.WithTTL(ttl)

	b.mu.Lock()
	defer b.mu.Unlock()

	if elem, ok := b.items[key]; ok {
		elem.Value.(*memoryEntry).entry = stamped
		b.lru.MoveToFront(elem)
		return nil
	}

	b.items[key] = b.lru.PushFront(&memoryEntry{key: key, entry: stamped})

	for len(b.items) > b.maxEntries {
		oldest := b.lru.Back()
		if oldest == nil {
			break
		}
		b.removeElement(oldest)
		b.evicted()
	}
	return nil
}

// Delete removes key if present. Idempotent.
func (b *MemoryBackend) Delete(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	elem, ok := b.items[key]
	if !ok {
		return false, nil
	}
	b.removeElement(elem)
	return true, nil
}

// Clear empties the store and returns the number of entries removed.
// Statistics are untouched; resetting counters is a separate operation.
func (b *MemoryBackend) Clear(_ context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := len(b.items)
	b.items = make(map[string]*list.Element)
	b.lru.Init()
	return removed, nil
}

// Info returns the entry for key without promoting it, a pure peek for
// inspection endpoints. Expired entries are removed and reported as misses.
func (b *MemoryBackend) Info(_ context.Context, key string) (*Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	elem, ok := b.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}

	me := elem.Value.(*memoryEntry)
	if me.entry.IsExpired() {
		b.removeElement(elem)
		b.evicted()
		return nil, ErrCacheMiss
	}
	return me.entry, nil
}

// Len returns the number of resident entries, expired ones included.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Name implements Backend.
func (b *MemoryBackend) Name() string { return "memory" }

// Close implements Backend. The memory backend holds no external resources.
func (b *MemoryBackend) Close() error { return nil }

// removeElement unlinks an element from both structures. Caller holds mu.
func (b *MemoryBackend) removeElement(elem *list.Element) {
	me := elem.Value.(*memoryEntry)
	delete(b.items, me.key)
	b.lru.Remove(elem)
}

// evicted records one eviction. Caller holds mu.
func (b *MemoryBackend) evicted() {
	CacheEvictions.WithLabelValues(b.Name()).Inc()
	if b.onEvict != nil {
		b.onEvict()
	}
}
