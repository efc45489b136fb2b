/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package retry runs operations with retries driven by github.com/cenkalti/backoff/v4 policies.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// IsRetryable reports whether the error is transient. A nil IsRetryable treats every error as transient.
type IsRetryable func(error) bool

// Notify is called before every retry with the error of the failed attempt and the delay before the next one.
type Notify = backoff.Notify

// Policy creates a fresh BackOff for every DoWithRetry call.
type Policy interface {
	NewBackOff() backoff.BackOff
}

// PolicyFunc is an adapter to allow the use of ordinary functions as Policy.
type PolicyFunc func() backoff.BackOff

// NewBackOff calls f().
func (f PolicyFunc) NewBackOff() backoff.BackOff {
	return f()
}

// DoWithRetry calls fn until it succeeds, returns a non-retryable error,
// the policy gives up or ctx is done. The last error is returned.
func DoWithRetry(ctx context.Context, p Policy, isRetryable IsRetryable, notify Notify, fn func(ctx context.Context) error) error {
	b := backoff.WithContext(p.NewBackOff(), ctx)
	op := func() error {
		err := fn(ctx)
		if err != nil && isRetryable != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(op, b, notify)
}

// ExponentialBackoffPolicy retries with exponentially growing delays starting from InitialInterval.
// MaxRetries limits the number of retries after the first attempt; a negative value disables retries
// and zero means no limit.
type ExponentialBackoffPolicy struct {
	InitialInterval time.Duration
	MaxRetries      int
}

// NewExponentialBackoffPolicy returns a new ExponentialBackoffPolicy.
func NewExponentialBackoffPolicy(initialInterval time.Duration, maxRetries int) ExponentialBackoffPolicy {
	return ExponentialBackoffPolicy{InitialInterval: initialInterval, MaxRetries: maxRetries}
}

// NewBackOff implements Policy.
func (p ExponentialBackoffPolicy) NewBackOff() backoff.BackOff {
	if p.MaxRetries < 0 {
		return &backoff.StopBackOff{}
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	var b backoff.BackOff = eb
	if p.MaxRetries > 0 {
		b = backoff.WithMaxRetries(eb, uint64(p.MaxRetries))
	}
	b.Reset()
	return b
}
