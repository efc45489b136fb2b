/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package boundedcache

import "errors"

// ErrInvalidCapacity is returned when a cache is constructed with a non-positive maximum number of entries.
var ErrInvalidCapacity = errors.New("maxEntries must be greater than 0")

// ErrDuplicateKey is returned by Insert when the key is already present in the cache.
// The cache is left unchanged; remove the key first to replace its entry.
var ErrDuplicateKey = errors.New("key already exists in cache")
