/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/acronis/go-authcache/log"
)

// DefaultShutdownSignals are the signals Run stops the unit on when no others are given.
var DefaultShutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// Run starts the unit in a separate goroutine and blocks until the unit reports a fatal error,
// ctx is canceled or one of the shutdown signals is received. In the last two cases the unit is stopped gracefully.
// If the unit implements MetricsRegisterer, its metrics are registered for the duration of the call.
func Run(ctx context.Context, logger log.FieldLogger, unit Unit, shutdownSignals ...os.Signal) error {
	if len(shutdownSignals) == 0 {
		shutdownSignals = DefaultShutdownSignals
	}
	if mr, ok := unit.(MetricsRegisterer); ok {
		mr.MustRegisterMetrics()
		defer mr.UnregisterMetrics()
	}

	sigCtx, stopSignals := signal.NotifyContext(ctx, shutdownSignals...)
	defer stopSignals()

	fatalErr := make(chan error, 1)
	go unit.Start(fatalErr)

	select {
	case err := <-fatalErr:
		logger.Error("service fatal error", log.Error(err))
		return fmt.Errorf("fatal error: %w", err)
	case <-sigCtx.Done():
		if ctx.Err() != nil {
			logger.Info("context is canceled, service will be stopped")
		} else {
			logger.Info("service got shutdown signal, service will be stopped")
		}
	}
	if err := unit.Stop(true); err != nil {
		return fmt.Errorf("stop service gracefully: %w", err)
	}
	return nil
}
