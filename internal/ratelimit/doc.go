/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimit provides keyed rate limiters used to slow down repeated attempts for the same key
// (e.g., credential verifications of one subject).
//
// Two algorithms are supported:
//   - leaky bucket (GCRA), backed by github.com/throttled/throttled/v2;
//   - sliding window, backed by github.com/RussellLuo/slidingwindow.
//
// The number of tracked keys is bounded, so memory usage does not grow with the number of distinct keys.
package ratelimit
