/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package boundedcache provides an in-memory cache with a fixed maximum number of entries,
// first-in-first-out eviction, per-entry locking, and Prometheus metrics.
//
// The cache-wide lock only guards the structure of the cache (insertion, removal, eviction).
// Every entry carries its own lock, so long-running work on one value does not block access
// to other values or to the cache itself.
package boundedcache
