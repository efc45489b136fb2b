/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrWorkerUnitStopTimeout is returned by WorkerUnit.Stop when the worker does not finish within GracefulStopTimeout.
var ErrWorkerUnitStopTimeout = errors.New("worker unit stop timeout exceeded")

// WorkerUnit presents a Worker as a Unit: Start runs the worker, Stop cancels its context.
type WorkerUnit struct {
	worker              Worker
	gracefulStopTimeout time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	started atomic.Bool
}

// NewWorkerUnit creates a new WorkerUnit.
// A zero gracefulStopTimeout makes a graceful Stop wait for the worker without a limit.
func NewWorkerUnit(worker Worker, gracefulStopTimeout time.Duration) *WorkerUnit {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerUnit{
		worker:              worker,
		gracefulStopTimeout: gracefulStopTimeout,
		ctx:                 ctx,
		cancel:              cancel,
		done:                make(chan struct{}),
	}
}

// Start runs the worker and blocks until it returns.
func (u *WorkerUnit) Start(fatalErr chan<- error) {
	u.started.Store(true)
	defer u.once.Do(func() { close(u.done) })
	if err := u.worker.Run(u.ctx); err != nil {
		fatalErr <- err
	}
}

// Stop cancels the worker's context. A graceful stop also waits for the worker to return.
func (u *WorkerUnit) Stop(gracefully bool) error {
	u.cancel()
	if !gracefully || !u.started.Load() {
		return nil
	}
	if u.gracefulStopTimeout == 0 {
		<-u.done
		return nil
	}
	timer := time.NewTimer(u.gracefulStopTimeout)
	defer timer.Stop()
	select {
	case <-u.done:
		return nil
	case <-timer.C:
		return ErrWorkerUnitStopTimeout
	}
}
