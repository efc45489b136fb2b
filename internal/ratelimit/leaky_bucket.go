/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/throttled/throttled/v2"
	"github.com/throttled/throttled/v2/store/memstore"
)

// LeakyBucketLimiter limits attempts per subject with GCRA (Generic Cell Rate Algorithm),
// a leaky bucket variant: each subject may spend maxBurst+1 attempts at once
// and then one attempt per maxRate.Duration/maxRate.Count.
type LeakyBucketLimiter struct {
	gcra *throttled.GCRARateLimiterCtx
}

var _ Limiter = (*LeakyBucketLimiter)(nil)

// NewLeakyBucketLimiter creates a limiter tracking the buckets of at most maxKeys subjects.
// Buckets of the least recently seen subjects are dropped first, a dropped subject starts with a full bucket.
func NewLeakyBucketLimiter(maxRate Rate, maxBurst, maxKeys int) (*LeakyBucketLimiter, error) {
	if maxRate.Count <= 0 || maxRate.Duration <= 0 {
		return nil, fmt.Errorf("rate %q should be positive", maxRate)
	}
	if maxBurst < 0 {
		return nil, errors.New("burst should not be negative")
	}
	buckets, err := memstore.NewCtx(maxKeys)
	if err != nil {
		return nil, fmt.Errorf("new subject buckets store: %w", err)
	}
	gcra, err := throttled.NewGCRARateLimiterCtx(buckets, throttled.RateQuota{
		MaxRate:  throttled.PerDuration(maxRate.Count, maxRate.Duration),
		MaxBurst: maxBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("new GCRA rate limiter: %w", err)
	}
	return &LeakyBucketLimiter{gcra: gcra}, nil
}

// Allow spends one attempt of the subject.
// If the bucket of the subject is empty, retryAfter is the time until the next attempt is allowed.
func (l *LeakyBucketLimiter) Allow(ctx context.Context, subject string) (allow bool, retryAfter time.Duration, err error) {
	limited, res, err := l.gcra.RateLimitCtx(ctx, subject, 1)
	if err != nil {
		return false, 0, fmt.Errorf("rate limit subject %q: %w", subject, err)
	}
	if !limited {
		return true, 0, nil
	}
	return false, res.RetryAfter, nil
}
