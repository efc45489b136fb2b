/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/RussellLuo/slidingwindow"

	"github.com/acronis/go-authcache/boundedcache"
)

// SlidingWindowLimiter implements sliding window rate limiting algorithm.
type SlidingWindowLimiter struct {
	getLimiter func(ctx context.Context, key string) (*slidingwindow.Limiter, error)
	maxRate    Rate
}

var _ Limiter = (*SlidingWindowLimiter)(nil)

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
// If maxKeys is 0, all keys share one window.
// Otherwise, windows of at most maxKeys keys are kept, the earliest created ones are dropped first.
func NewSlidingWindowLimiter(maxRate Rate, maxKeys int) (*SlidingWindowLimiter, error) {
	newWindowLimiter := func() *slidingwindow.Limiter {
		lim, _ := slidingwindow.NewLimiter(
			maxRate.Duration, int64(maxRate.Count), func() (slidingwindow.Window, slidingwindow.StopFunc) {
				return slidingwindow.NewLocalWindow()
			})
		return lim
	}

	if maxKeys == 0 {
		lim := newWindowLimiter()
		return &SlidingWindowLimiter{
			maxRate: maxRate,
			getLimiter: func(context.Context, string) (*slidingwindow.Limiter, error) {
				return lim, nil
			},
		}, nil
	}

	store, err := boundedcache.New[string, *slidingwindow.Limiter](maxKeys, nil)
	if err != nil {
		return nil, fmt.Errorf("new bounded in-memory store for keys: %w", err)
	}
	return &SlidingWindowLimiter{
		maxRate: maxRate,
		getLimiter: func(ctx context.Context, key string) (*slidingwindow.Limiter, error) {
			entry, _, getErr := store.GetOrInsert(ctx, key, func(context.Context) (*slidingwindow.Limiter, error) {
				return newWindowLimiter(), nil
			})
			if getErr != nil {
				return nil, getErr
			}
			// The window limiter is safe for concurrent use, only the pointer is read under the entry lock.
			var lim *slidingwindow.Limiter
			if getErr = entry.Do(ctx, func(value **slidingwindow.Limiter) error {
				lim = *value
				return nil
			}); getErr != nil {
				return nil, getErr
			}
			return lim, nil
		},
	}, nil
}

// Allow checks if the request should be allowed based on the rate limit.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	lim, err := l.getLimiter(ctx, key)
	if err != nil {
		return false, 0, err
	}
	if lim.Allow() {
		return true, 0, nil
	}
	now := time.Now()
	retryAfter = now.Truncate(l.maxRate.Duration).Add(l.maxRate.Duration).Sub(now)
	return false, retryAfter, nil
}
