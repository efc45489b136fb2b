/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package boundedcache

import (
	"context"
	"errors"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestSingleFlight(t *testing.T) {
	ctx := context.Background()

	t.Run("different keys", func(t *testing.T) {
		var sfGroup singleFlightGroup[string, int]
		var callCount atomic.Int32

		const numGoroutines = 10
		var wg sync.WaitGroup
		results := make([]int, numGoroutines)
		errs := make([]error, numGoroutines)

		wg.Add(numGoroutines)
		for i := 0; i < numGoroutines; i++ {
			go func(i int) {
				defer wg.Done()
				results[i], _, errs[i] = sfGroup.Do(ctx, "key"+strconv.Itoa(i), func() (int, error) {
					callCount.Inc()
					time.Sleep(50 * time.Millisecond)
					return (i + 1) * 10, nil
				})
			}(i)
		}
		wg.Wait()

		require.EqualValues(t, numGoroutines, callCount.Load())
		for i, err := range errs {
			require.NoError(t, err, "goroutine %d: unexpected error", i)
			require.Equal(t, (i+1)*10, results[i], "goroutine %d: unexpected result", i)
		}
	})

	t.Run("same key", func(t *testing.T) {
		var sfGroup singleFlightGroup[string, int]
		var callCount atomic.Int32
		var sharedCount atomic.Int32

		fn := func() (int, error) {
			callCount.Inc()
			time.Sleep(50 * time.Millisecond)
			return 42, nil
		}

		const numGoroutines = 10
		var wg sync.WaitGroup
		results := make([]int, numGoroutines)
		errs := make([]error, numGoroutines)

		wg.Add(numGoroutines)
		for i := 0; i < numGoroutines; i++ {
			go func(i int) {
				defer wg.Done()
				var shared bool
				results[i], shared, errs[i] = sfGroup.Do(ctx, "key", fn)
				if shared {
					sharedCount.Inc()
				}
			}(i)
		}
		wg.Wait()

		require.EqualValues(t, 1, callCount.Load(), "expected fn to be called only once")
		require.EqualValues(t, numGoroutines-1, sharedCount.Load())
		for i, err := range errs {
			require.NoError(t, err, "goroutine %d: unexpected error", i)
			require.Equal(t, 42, results[i], "goroutine %d: unexpected result", i)
		}
	})

	t.Run("error is returned to every caller", func(t *testing.T) {
		var sfGroup singleFlightGroup[string, int]
		var callCount atomic.Int32
		someErr := errors.New("some error")

		const numGoroutines = 10
		var wg sync.WaitGroup
		errs := make([]error, numGoroutines)

		wg.Add(numGoroutines)
		for i := 0; i < numGoroutines; i++ {
			go func(i int) {
				defer wg.Done()
				_, _, errs[i] = sfGroup.Do(ctx, "key", func() (int, error) {
					callCount.Inc()
					time.Sleep(50 * time.Millisecond)
					return 0, someErr
				})
			}(i)
		}
		wg.Wait()

		require.EqualValues(t, 1, callCount.Load())
		for i, err := range errs {
			require.ErrorIs(t, err, someErr, "goroutine %d: unexpected error", i)
		}
	})

	t.Run("panic", func(t *testing.T) {
		var sfGroup singleFlightGroup[string, int]
		started := make(chan struct{})
		proceed := make(chan struct{})

		waiterErr := make(chan error)
		go func() {
			<-started
			_, _, err := sfGroup.Do(ctx, "key", func() (int, error) { return 1, nil })
			waiterErr <- err
		}()

		require.PanicsWithValue(t, "boom", func() {
			_, _, _ = sfGroup.Do(ctx, "key", func() (int, error) {
				close(started)
				// Give the waiter time to join the in-flight call.
				select {
				case <-proceed:
				case <-time.After(50 * time.Millisecond):
				}
				panic("boom")
			})
		})

		err := <-waiterErr
		if err != nil {
			var panicErr *PanicError
			require.ErrorAs(t, err, &panicErr)
			require.Equal(t, "boom", panicErr.Value)
			require.NotEmpty(t, panicErr.Stack)
		}
	})

	t.Run("goexit", func(t *testing.T) {
		var sfGroup singleFlightGroup[string, int]
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _, _ = sfGroup.Do(ctx, "key", func() (int, error) {
				runtime.Goexit()
				return 0, nil
			})
		}()
		<-done

		// The group is usable after the computing goroutine exited.
		val, shared, err := sfGroup.Do(ctx, "key", func() (int, error) { return 7, nil })
		require.NoError(t, err)
		require.False(t, shared)
		require.Equal(t, 7, val)
	})

	t.Run("waiter context is done", func(t *testing.T) {
		var sfGroup singleFlightGroup[string, int]
		started := make(chan struct{})
		proceed := make(chan struct{})
		go func() {
			_, _, _ = sfGroup.Do(ctx, "key", func() (int, error) {
				close(started)
				<-proceed
				return 1, nil
			})
		}()
		<-started
		defer close(proceed)

		waitCtx, cancel := context.WithCancel(ctx)
		cancel()
		_, shared, err := sfGroup.Do(waitCtx, "key", func() (int, error) { return 2, nil })
		require.ErrorIs(t, err, context.Canceled)
		require.True(t, shared)
	})
}

func TestPanicError_Unwrap(t *testing.T) {
	errCause := errors.New("cause")
	require.ErrorIs(t, newPanicError(errCause), errCause)
	require.Nil(t, newPanicError("not an error").(*PanicError).Unwrap())
}
