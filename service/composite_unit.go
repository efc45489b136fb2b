/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"errors"
	"sync"
)

// CompositeUnit starts and stops a group of units together.
type CompositeUnit struct {
	Units []Unit
}

// NewCompositeUnit creates a new CompositeUnit.
func NewCompositeUnit(units ...Unit) *CompositeUnit {
	return &CompositeUnit{Units: units}
}

// Start starts every unit in its own goroutine and blocks until all Start calls return.
// When a unit reports a fatal error, the rest are stopped non-gracefully and
// all fatal and stop errors are sent to fatalErr joined into one.
func (cu *CompositeUnit) Start(fatalErr chan<- error) {
	unitErrs := make(chan error, len(cu.Units))
	failed := make(chan struct{})
	var failOnce sync.Once

	var wg sync.WaitGroup
	wg.Add(len(cu.Units))
	for _, u := range cu.Units {
		go func(u Unit) {
			defer wg.Done()
			errCh := make(chan error, 1)
			u.Start(errCh)
			select {
			case err := <-errCh:
				unitErrs <- err
				failOnce.Do(func() { close(failed) })
			default:
			}
		}(u)
	}

	allReturned := make(chan struct{})
	go func() {
		wg.Wait()
		close(allReturned)
	}()

	var stopErr error
	select {
	case <-allReturned:
	case <-failed:
		stopErr = cu.Stop(false)
		<-allReturned
	}
	close(unitErrs)

	var errs []error
	for err := range unitErrs {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return
	}
	if stopErr != nil {
		errs = append(errs, stopErr)
	}
	fatalErr <- errors.Join(errs...)
}

// Stop stops all units concurrently and returns their errors joined into one.
func (cu *CompositeUnit) Stop(gracefully bool) error {
	errs := make([]error, len(cu.Units))
	var wg sync.WaitGroup
	wg.Add(len(cu.Units))
	for i, u := range cu.Units {
		go func(i int, u Unit) {
			defer wg.Done()
			errs[i] = u.Stop(gracefully)
		}(i, u)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// MustRegisterMetrics registers the metrics of every unit that implements MetricsRegisterer.
func (cu *CompositeUnit) MustRegisterMetrics() {
	for _, u := range cu.Units {
		if mr, ok := u.(MetricsRegisterer); ok {
			mr.MustRegisterMetrics()
		}
	}
}

// UnregisterMetrics unregisters the metrics of every unit that implements MetricsRegisterer.
func (cu *CompositeUnit) UnregisterMetrics() {
	for _, u := range cu.Units {
		if mr, ok := u.(MetricsRegisterer); ok {
			mr.UnregisterMetrics()
		}
	}
}
