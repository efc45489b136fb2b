/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package boundedcache

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Entry wraps a single cached value together with its own exclusive-access lock.
// The lock is independent of the cache-wide lock, so holding it never blocks
// access to other entries or structural operations on the cache.
//
// An Entry does not know whether it is still stored in the cache.
// Once evicted or removed, a guard already held stays valid, but the cache will not return the entry again.
type Entry[V any] struct {
	sem   *semaphore.Weighted
	value V
}

func newEntry[V any](value V) *Entry[V] {
	return &Entry[V]{sem: semaphore.NewWeighted(1), value: value}
}

// Acquire blocks until the entry lock is free and returns a guard granting exclusive access to the value.
// If ctx is done before the lock is obtained, ctx.Err() is returned and the entry is left unchanged.
// The returned guard must be released, usually with defer.
func (e *Entry[V]) Acquire(ctx context.Context) (*Guard[V], error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return &Guard[V]{entry: e}, nil
}

// TryAcquire obtains the entry lock without blocking.
// It returns false if the lock is held by someone else.
func (e *Entry[V]) TryAcquire() (*Guard[V], bool) {
	if !e.sem.TryAcquire(1) {
		return nil, false
	}
	return &Guard[V]{entry: e}, true
}

// Do runs fn while holding the entry lock.
// The lock is released when fn returns, fails, or panics.
func (e *Entry[V]) Do(ctx context.Context, fn func(value *V) error) error {
	guard, err := e.Acquire(ctx)
	if err != nil {
		return err
	}
	defer guard.Release()
	return fn(&guard.entry.value)
}

// Guard grants exclusive access to the value of an Entry until Release is called.
// A Guard must not be shared between goroutines.
type Guard[V any] struct {
	entry    *Entry[V]
	released bool
}

// Value returns the guarded value.
func (g *Guard[V]) Value() V {
	g.mustBeHeld()
	return g.entry.value
}

// Set replaces the guarded value. Every later holder of the entry lock observes the new value.
func (g *Guard[V]) Set(value V) {
	g.mustBeHeld()
	g.entry.value = value
}

// Release unlocks the entry. Calling it more than once is a no-op.
func (g *Guard[V]) Release() {
	if g.released {
		return
	}
	g.released = true
	g.entry.sem.Release(1)
}

func (g *Guard[V]) mustBeHeld() {
	if g.released {
		panic("boundedcache: use of released guard")
	}
}
