/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package service provides the lifecycle primitives the authcached daemon is assembled from:
// units that can be started and stopped, workers run periodically inside a unit,
// and Run, which drives a unit until a fatal error, context cancellation or a shutdown signal.
package service
