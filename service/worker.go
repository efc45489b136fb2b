/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/acronis/go-authcache/log"
)

// ErrStopPeriodicWorker may be returned by a Worker run by PeriodicWorker to end the loop without an error.
var ErrStopPeriodicWorker = errors.New("stop periodic worker")

// Worker performs a piece of work until it is done or ctx is canceled.
type Worker interface {
	Run(ctx context.Context) error
}

// WorkerFunc is an adapter to allow the use of ordinary functions as Worker.
type WorkerFunc func(ctx context.Context) error

// Run calls f(ctx).
func (f WorkerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// PeriodicWorker runs an underlying Worker with a fixed interval between runs.
type PeriodicWorker struct {
	Worker       Worker
	Interval     time.Duration
	InitialDelay time.Duration
	Logger       log.FieldLogger
}

// NewPeriodicWorker creates a new PeriodicWorker which runs the worker right away and then every interval.
func NewPeriodicWorker(worker Worker, interval time.Duration, logger log.FieldLogger) *PeriodicWorker {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	return &PeriodicWorker{Worker: worker, Interval: interval, Logger: logger}
}

// Run runs the loop until ctx is canceled or the worker returns ErrStopPeriodicWorker.
// Other errors returned by the worker are logged and the loop goes on.
func (pw *PeriodicWorker) Run(ctx context.Context) error {
	defer func() {
		if p := recover(); p != nil {
			const logStackSize = 8192
			stack := make([]byte, logStackSize)
			stack = stack[:runtime.Stack(stack, false)]
			pw.Logger.Error(fmt.Sprintf("panic: %+v", p), log.Bytes("stack", stack))
			panic(p)
		}
		pw.Logger.Info("periodic worker stopped")
	}()

	pw.Logger.Info("running periodic worker...",
		log.Duration("initial_delay", pw.InitialDelay), log.Duration("interval", pw.Interval))

	delay := pw.InitialDelay
	for {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if err := pw.Worker.Run(ctx); err != nil {
			if errors.Is(err, ErrStopPeriodicWorker) {
				return nil
			}
			pw.Logger.Error("periodic worker run failed", log.Error(err))
		}
		delay = pw.Interval
	}
}
