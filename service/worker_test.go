/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-authcache/log"
	"github.com/acronis/go-authcache/log/logtest"
)

func TestPeriodicWorker_Run(t *testing.T) {
	t.Run("runs until context is canceled", func(t *testing.T) {
		var runs atomic.Int32
		pw := NewPeriodicWorker(WorkerFunc(func(ctx context.Context) error {
			runs.Inc()
			return nil
		}), 20*time.Millisecond, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
		defer cancel()
		require.NoError(t, pw.Run(ctx))
		require.GreaterOrEqual(t, runs.Load(), int32(3))
		require.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	})

	t.Run("stops on ErrStopPeriodicWorker", func(t *testing.T) {
		var runs atomic.Int32
		pw := NewPeriodicWorker(WorkerFunc(func(ctx context.Context) error {
			if runs.Inc() == 2 {
				return ErrStopPeriodicWorker
			}
			return nil
		}), time.Millisecond, nil)

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		require.NoError(t, pw.Run(ctx))
		require.Equal(t, int32(2), runs.Load())
		require.NoError(t, ctx.Err())
	})

	t.Run("initial delay", func(t *testing.T) {
		var runs atomic.Int32
		pw := NewPeriodicWorker(WorkerFunc(func(ctx context.Context) error {
			runs.Inc()
			return nil
		}), time.Millisecond, nil)
		pw.InitialDelay = time.Minute

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		require.NoError(t, pw.Run(ctx))
		require.Equal(t, int32(0), runs.Load())
	})

	t.Run("errors are logged and the loop goes on", func(t *testing.T) {
		logRecorder := logtest.NewRecorder()
		var runs atomic.Int32
		pw := NewPeriodicWorker(WorkerFunc(func(ctx context.Context) error {
			if runs.Inc() == 3 {
				return ErrStopPeriodicWorker
			}
			return errors.New("store is unavailable")
		}), time.Millisecond, logRecorder)

		require.NoError(t, pw.Run(context.Background()))
		require.Equal(t, int32(3), runs.Load())
		require.Len(t, logRecorder.FindEntriesWithField(log.LevelError, "error"), 2)
		_, found := logRecorder.FindEntry("periodic worker stopped")
		require.True(t, found)
	})
}

func TestWorkerUnit(t *testing.T) {
	t.Run("graceful stop waits for the worker", func(t *testing.T) {
		var finished atomic.Bool
		unit := NewWorkerUnit(WorkerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			time.Sleep(20 * time.Millisecond)
			finished.Store(true)
			return nil
		}), 0)

		fatalErr := make(chan error, 1)
		go unit.Start(fatalErr)
		require.Eventually(t, unit.started.Load, time.Second, time.Millisecond)

		require.NoError(t, unit.Stop(true))
		require.True(t, finished.Load())
		require.Len(t, fatalErr, 0)
	})

	t.Run("graceful stop timeout", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		unit := NewWorkerUnit(WorkerFunc(func(ctx context.Context) error {
			<-release
			return nil
		}), 20*time.Millisecond)

		go unit.Start(make(chan error, 1))
		require.Eventually(t, unit.started.Load, time.Second, time.Millisecond)
		require.ErrorIs(t, unit.Stop(true), ErrWorkerUnitStopTimeout)
	})

	t.Run("worker error is fatal", func(t *testing.T) {
		workerErr := errors.New("worker failed")
		unit := NewWorkerUnit(WorkerFunc(func(ctx context.Context) error {
			return workerErr
		}), 0)

		fatalErr := make(chan error, 1)
		unit.Start(fatalErr)
		require.ErrorIs(t, <-fatalErr, workerErr)
		require.NoError(t, unit.Stop(true))
	})

	t.Run("stop without start", func(t *testing.T) {
		unit := NewWorkerUnit(WorkerFunc(func(ctx context.Context) error { return nil }), 0)
		require.NoError(t, unit.Stop(true))
	})
}
