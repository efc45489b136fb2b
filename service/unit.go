/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

// Unit is a component of the service with its own lifecycle.
type Unit interface {
	// Start runs the unit. It may block for the unit's lifetime.
	// Start reports a fatal error by writing to fatalErr at most once and never uses the channel after returning.
	Start(fatalErr chan<- error)

	// Stop halts the unit. It may be called whether or not Start has been called or has failed.
	Stop(gracefully bool) error
}

// MetricsRegisterer is implemented by units that own Prometheus collectors.
type MetricsRegisterer interface {
	MustRegisterMetrics()
	UnregisterMetrics()
}
