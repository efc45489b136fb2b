/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package boundedcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

type singleFlightCall[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// singleFlightGroup collapses concurrent calls for the same key into one execution.
// Unlike the classic implementation, waiting callers may abandon the wait when their context is done.
type singleFlightGroup[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*singleFlightCall[V]
}

// Do executes fn for the key unless an execution for the same key is already in flight,
// in which case it waits for that execution and returns its results.
// If the execution fails with a context error while ctx is still alive, the waiter runs fn again itself.
// shared reports whether the results came from another caller's execution.
func (g *singleFlightGroup[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (val V, shared bool, err error) {
	for {
		g.mu.Lock()
		if g.m == nil {
			g.m = make(map[K]*singleFlightCall[V])
		}
		c, ok := g.m[key]
		if !ok {
			break // g.mu stays locked
		}
		g.mu.Unlock()
		select {
		case <-c.done:
			// The execution may have failed on its starter's context, not on ours.
			if isContextError(c.err) && ctx.Err() == nil {
				continue
			}
			return c.val, true, c.err
		case <-ctx.Done():
			return val, true, ctx.Err()
		}
	}
	c := &singleFlightCall[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	val, err = g.do(c, key, fn)
	return val, false, err
}

func (g *singleFlightGroup[K, V]) do(c *singleFlightCall[V], key K, fn func() (V, error)) (val V, err error) {
	normalReturn := false
	recovered := false

	// double-defer to distinguish panic from runtime.Goexit
	defer func() {
		if !normalReturn && !recovered {
			c.err = ErrGoexit
		}

		g.mu.Lock()
		delete(g.m, key)
		g.mu.Unlock()
		close(c.done)

		if recovered {
			panic(c.err.(*PanicError).Value) // re-panic on the same goroutine
		}

		val, err = c.val, c.err
	}()

	defer func() {
		if !normalReturn {
			if v := recover(); v != nil {
				c.err = newPanicError(v)
				recovered = true
			}
		}
	}()
	c.val, c.err = fn()
	normalReturn = true

	return c.val, c.err // will be set in the defer
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ErrGoexit is returned to waiting callers when the computing goroutine calls runtime.Goexit.
var ErrGoexit = errors.New("runtime.Goexit was called")

// PanicError is returned to waiting callers when the value computation panics.
// The computing goroutine itself re-panics with the original value.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("%v\n\n%s", p.Value, p.Stack)
}

// Unwrap returns the panic value if it is an error.
func (p *PanicError) Unwrap() error {
	err, ok := p.Value.(error)
	if !ok {
		return nil
	}
	return err
}

func newPanicError(v interface{}) error {
	stack := debug.Stack()

	// The first line of the stack trace is "goroutine N [status]:",
	// the status is stale by the time waiters read it.
	if line := bytes.IndexByte(stack, '\n'); line >= 0 {
		stack = stack[line+1:]
	}
	return &PanicError{Value: v, Stack: stack}
}
