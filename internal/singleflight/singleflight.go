// Package singleflight coalesces concurrent fills for the same cache key.
package singleflight

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrPanic marks the error delivered to every waiter when the producer panics.
var ErrPanic = errors.New("singleflight: producer panicked")

// Group keeps at most one in-flight call per key. The first caller for a key
// becomes the leader and runs fn; later callers join and receive the same
// value or error.
//
// Ordering guarantees:
//   - The in-flight marker is deleted before close(done), so any caller that
//     observes the result and starts over gets a fresh call.
//   - Publishing (val, err) happens-before close(done).
//   - Cancelling ctx in a follower unblocks only that follower; the leader
//     keeps running fn.
//
// The zero Group is ready to use.
type Group[V any] struct {
	mu sync.Mutex
	m  map[string]*call[V]
}

type call[V any] struct {
	done    chan struct{} // closed when val/err are published
	val     V
	err     error
	waiters int
}

// Do runs fn once for key. shared reports whether the result was delivered
// to more than one caller.
func (g *Group[V]) Do(ctx context.Context, key string, fn func() (V, error)) (v V, err error, shared bool) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[string]*call[V])
	}
	if c, ok := g.m[key]; ok {
		c.waiters++
		g.mu.Unlock()

		select {
		case <-c.done:
			return c.val, c.err, true
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err(), true
		}
	}

	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	shared = g.run(key, c, fn)
	return c.val, c.err, shared
}

// run executes fn, converts a panic into an error and releases waiters.
// It reports whether any follower joined the call.
func (g *Group[V]) run(key string, c *call[V], fn func() (V, error)) (shared bool) {
	defer func() {
		if r := recover(); r != nil {
			var zero V
			c.val = zero
			c.err = errors.Wrapf(ErrPanic, "key %q: %v", key, r)
		}
		g.mu.Lock()
		if g.m[key] == c {
			delete(g.m, key)
		}
		shared = c.waiters > 0
		g.mu.Unlock()
		close(c.done)
	}()
	c.val, c.err = fn()
	return false
}

// InFlight returns the number of keys with a running call.
func (g *Group[V]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}

// Waiters returns how many followers have joined the running call for key.
func (g *Group[V]) Waiters(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.m[key]; ok {
		return c.waiters
	}
	return 0
}

// Pending reports whether key has a running call.
func (g *Group[V]) Pending(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.m[key]
	return ok
}
