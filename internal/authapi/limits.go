/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package authapi

import (
	"context"
	"fmt"
	"time"

	"github.com/vasayxtx/go-glob"
	"golang.org/x/time/rate"

	"github.com/acronis/go-authcache/internal/ratelimit"
	"github.com/acronis/go-authcache/log"
)

// verifyLimiter bounds credential verification attempts twice:
// globally (verifications are CPU-bound) and per subject (to slow down password guessing).
// Both limits are optional.
type verifyLimiter struct {
	global  *rate.Limiter
	subject ratelimit.Limiter

	// subjectLimited reports whether the per-subject limit applies to the subject.
	subjectLimited func(subject string) bool
	subjectDryRun  bool
}

func newVerifyLimiter(cfg *Config) (*verifyLimiter, error) {
	vl := &verifyLimiter{}
	if cfg.VerifyRateLimit > 0 {
		vl.global = rate.NewLimiter(rate.Limit(cfg.VerifyRateLimit), cfg.VerifyBurst)
	}
	if cfg.SubjectRateLimit.Rate.Count > 0 {
		lim, err := ratelimit.NewLimiter(cfg.SubjectRateLimit.Alg, cfg.SubjectRateLimit.Rate,
			cfg.SubjectRateLimit.Burst, cfg.SubjectRateLimit.MaxKeys)
		if err != nil {
			return nil, fmt.Errorf("new subject rate limiter: %w", err)
		}
		vl.subject = lim
		vl.subjectLimited = makeSubjectFilter(cfg.SubjectRateLimit.IncludedSubjects, cfg.SubjectRateLimit.ExcludedSubjects)
		vl.subjectDryRun = cfg.SubjectRateLimit.DryRun
	}
	return vl, nil
}

// makeSubjectFilter compiles glob patterns of subjects. Only one of the lists may be non-empty.
func makeSubjectFilter(included, excluded []string) func(subject string) bool {
	patterns, exclude := included, false
	if len(excluded) != 0 {
		patterns, exclude = excluded, true
	}
	if len(patterns) == 0 {
		return func(string) bool { return true }
	}
	matchers := make([]func(string) bool, 0, len(patterns))
	for _, p := range patterns {
		matchers = append(matchers, glob.Compile(p))
	}
	return func(subject string) bool {
		for _, match := range matchers {
			if match(subject) {
				return !exclude
			}
		}
		return exclude
	}
}

// allow reports whether a verification for the subject may run now.
// If not, retryAfter is the time after which the attempt may be repeated.
// The global limit is checked first. A request rejected by either limit spends no allowance of the other.
// In dry-run mode exceeding the per-subject limit is only logged.
func (vl *verifyLimiter) allow(
	ctx context.Context, subject string, logger log.FieldLogger,
) (allowed bool, retryAfter time.Duration, err error) {
	now := time.Now()
	var globalReservation *rate.Reservation
	if vl.global != nil {
		globalReservation = vl.global.ReserveN(now, 1)
		if !globalReservation.OK() {
			return false, time.Second, nil
		}
		if delay := globalReservation.DelayFrom(now); delay > 0 {
			globalReservation.CancelAt(now)
			return false, delay, nil
		}
	}
	releaseGlobal := func() {
		if globalReservation != nil {
			globalReservation.CancelAt(now)
		}
	}
	if vl.subject != nil && vl.subjectLimited(subject) {
		if allowed, retryAfter, err = vl.subject.Allow(ctx, subject); err != nil {
			releaseGlobal()
			return false, 0, err
		}
		if !allowed {
			if !vl.subjectDryRun {
				releaseGlobal()
				return false, retryAfter, nil
			}
			logger.Warn("subject rate limit exceeded, dry run", log.Subject(subject))
		}
	}
	return true, 0, nil
}
