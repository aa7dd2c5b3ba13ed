package cache

import (
	"context"
	"sync"
)

// flightGroup is the in-flight registry for single-flight coalescing: at
// most one origin fetch exists per key at any instant. Concurrent misses
// for the same key attach to the existing call and receive the broadcast
// outcome instead of issuing their own fetch.
type flightGroup struct {
	mu    sync.Mutex
	calls map[string]*flightCall
}

// flightCall is one in-flight fetch. entry and err are written once by the
// runner goroutine before done is closed; waiters only read them after done.
type flightCall struct {
	done  chan struct{}
	entry *Entry
	err   error
}

func newFlightGroup() *flightGroup {
	return &flightGroup{calls: make(map[string]*flightCall)}
}

// do returns the in-flight call for key, starting one if none exists.
// started reports whether this caller initiated the fetch. The fetch runs
// in its own goroutine so abandoning waiters never cancel it; the registry
// entry is removed once fn resolves, success or failure.
func (g *flightGroup) do(key string, fn func() (*Entry, error)) (c *flightCall, started bool) {
	g.mu.Lock()
	if existing, ok := g.calls[key]; ok {
		g.mu.Unlock()
		return existing, false
	}

	c = &flightCall{done: make(chan struct{})}
	g.calls[key] = c
	g.mu.Unlock()

	go func() {
		c.entry, c.err = fn()

		g.mu.Lock()
		delete(g.calls, key)
		g.mu.Unlock()

		close(c.done)
	}()

	return c, true
}

// wait blocks until the call resolves or ctx is cancelled. Cancellation
// detaches this waiter only; the fetch keeps running for the others.
func (c *flightCall) wait(ctx context.Context) (*Entry, error) {
	select {
	case <-c.done:
		return c.entry, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
