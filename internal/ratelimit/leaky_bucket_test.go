/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// LeakyBucketLimiterTestSuite contains tests for LeakyBucketLimiter
type LeakyBucketLimiterTestSuite struct {
	suite.Suite
}

func TestLeakyBucketLimiter(t *testing.T) {
	suite.Run(t, new(LeakyBucketLimiterTestSuite))
}

func (ts *LeakyBucketLimiterTestSuite) TestAllowSequential() {
	limiter, err := NewLeakyBucketLimiter(Rate{Count: 2, Duration: time.Second}, 1, 100)
	ts.NoError(err)

	ctx := context.Background()
	subject := "alice"

	// Burst of 1 allows two attempts in a row.
	for i := 0; i < 2; i++ {
		allow, retryAfter, allowErr := limiter.Allow(ctx, subject)
		ts.NoError(allowErr)
		ts.True(allow)
		ts.Zero(retryAfter)
	}

	allow, retryAfter, err := limiter.Allow(ctx, subject)
	ts.NoError(err)
	ts.False(allow)
	ts.Greater(retryAfter, time.Duration(0))
}

func (ts *LeakyBucketLimiterTestSuite) TestKeysAreIndependent() {
	limiter, err := NewLeakyBucketLimiter(Rate{Count: 1, Duration: time.Minute}, 0, 100)
	ts.NoError(err)

	ctx := context.Background()
	for _, key := range []string{"alice", "bob"} {
		allow, _, allowErr := limiter.Allow(ctx, key)
		ts.NoError(allowErr)
		ts.True(allow, key)
	}

	allow, retryAfter, err := limiter.Allow(ctx, "alice")
	ts.NoError(err)
	ts.False(allow)
	ts.Greater(retryAfter, time.Duration(0))
	ts.LessOrEqual(retryAfter, time.Minute)
}

func (ts *LeakyBucketLimiterTestSuite) TestInvalidParams() {
	_, err := NewLeakyBucketLimiter(Rate{}, 1, 100)
	ts.Error(err)
	_, err = NewLeakyBucketLimiter(Rate{Count: 1, Duration: time.Second}, -1, 100)
	ts.Error(err)
}
