/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rate-limiting algorithms.
const (
	AlgLeakyBucket   = "leaky_bucket"
	AlgSlidingWindow = "sliding_window"
)

// Rate describes the frequency of requests.
type Rate struct {
	Count    int
	Duration time.Duration
}

// String returns a string representation of the rate (e.g., "10/s").
func (r Rate) String() string {
	if r.Duration == 0 && r.Count == 0 {
		return ""
	}
	var d string
	switch r.Duration {
	case time.Second:
		d = "s"
	case time.Minute:
		d = "m"
	case time.Hour:
		d = "h"
	default:
		d = r.Duration.String()
	}
	return fmt.Sprintf("%d/%s", r.Count, d)
}

// ParseRate parses the rate in N/(s|m|h) format, for example 10/s, 100/m, 1000/h.
func ParseRate(rate string) (Rate, error) {
	incorrectFormatErr := fmt.Errorf(
		"incorrect format for rate %q, should be N/(s|m|h), for example 10/s, 100/m, 1000/h", rate)
	parts := strings.SplitN(rate, "/", 2)
	if len(parts) != 2 {
		return Rate{}, incorrectFormatErr
	}
	count, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || count <= 0 {
		return Rate{}, incorrectFormatErr
	}
	var dur time.Duration
	switch strings.ToLower(strings.TrimSpace(parts[1])) {
	case "s":
		dur = time.Second
	case "m":
		dur = time.Minute
	case "h":
		dur = time.Hour
	default:
		return Rate{}, incorrectFormatErr
	}
	return Rate{Count: count, Duration: dur}, nil
}

// Limiter interface defines the rate limiting contract.
type Limiter interface {
	Allow(ctx context.Context, key string) (allow bool, retryAfter time.Duration, err error)
}

// NewLimiter creates a Limiter implementing the given algorithm.
// maxBurst is used only by the leaky bucket algorithm.
func NewLimiter(alg string, maxRate Rate, maxBurst, maxKeys int) (Limiter, error) {
	switch alg {
	case AlgLeakyBucket, "":
		return NewLeakyBucketLimiter(maxRate, maxBurst, maxKeys)
	case AlgSlidingWindow:
		return NewSlidingWindowLimiter(maxRate, maxKeys)
	default:
		return nil, fmt.Errorf("unknown rate limiting algorithm %q", alg)
	}
}
