/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package authapi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/acronis/go-authcache/log"
)

// countingLimiter allows only the listed subjects and records every call.
type countingLimiter struct {
	allowed map[string]bool
	calls   []string
}

func (l *countingLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.calls = append(l.calls, key)
	if l.allowed[key] {
		return true, 0, nil
	}
	return false, time.Minute, nil
}

func TestVerifyLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	logger := log.NewDisabledLogger()
	allSubjects := func(string) bool { return true }

	t.Run("global rejection does not spend subject allowance", func(t *testing.T) {
		subjectLim := &countingLimiter{allowed: map[string]bool{"alice": true, "bob": true}}
		vl := &verifyLimiter{global: rate.NewLimiter(0.001, 1), subject: subjectLim, subjectLimited: allSubjects}

		allowed, _, err := vl.allow(ctx, "alice", logger)
		require.NoError(t, err)
		require.True(t, allowed)

		allowed, retryAfter, err := vl.allow(ctx, "bob", logger)
		require.NoError(t, err)
		require.False(t, allowed)
		require.Greater(t, retryAfter, time.Duration(0))
		require.Equal(t, []string{"alice"}, subjectLim.calls)
	})

	t.Run("subject rejection does not spend global allowance", func(t *testing.T) {
		subjectLim := &countingLimiter{allowed: map[string]bool{"bob": true}}
		vl := &verifyLimiter{global: rate.NewLimiter(0.001, 1), subject: subjectLim, subjectLimited: allSubjects}

		allowed, retryAfter, err := vl.allow(ctx, "alice", logger)
		require.NoError(t, err)
		require.False(t, allowed)
		require.Equal(t, time.Minute, retryAfter)

		allowed, _, err = vl.allow(ctx, "bob", logger)
		require.NoError(t, err)
		require.True(t, allowed)
	})

	t.Run("dry run keeps the global allowance spent", func(t *testing.T) {
		subjectLim := &countingLimiter{}
		vl := &verifyLimiter{
			global: rate.NewLimiter(0.001, 1), subject: subjectLim, subjectLimited: allSubjects, subjectDryRun: true,
		}

		allowed, _, err := vl.allow(ctx, "alice", logger)
		require.NoError(t, err)
		require.True(t, allowed)

		allowed, _, err = vl.allow(ctx, "bob", logger)
		require.NoError(t, err)
		require.False(t, allowed)
	})
}
