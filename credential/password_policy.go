/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package credential

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloudflare/ahocorasick"
)

// PasswordPolicy describes which plaintext passwords may be set.
type PasswordPolicy struct {
	// MinLength is the minimum number of characters. Zero means no limit.
	MinLength int

	// ForbiddenSubstrings are words that must not occur in the password, compared case-insensitively.
	ForbiddenSubstrings []string

	// ForbidSubject rejects passwords containing the subject identifier.
	ForbidSubject bool
}

// PasswordChecker checks plaintext passwords against a PasswordPolicy.
// It is safe for concurrent use.
type PasswordChecker struct {
	minLength     int
	forbidSubject bool
	matcher       *ahocorasick.Matcher
}

// NewPasswordChecker creates a new PasswordChecker.
// All forbidden substrings are searched for in a single pass over the password.
func NewPasswordChecker(policy PasswordPolicy) *PasswordChecker {
	c := &PasswordChecker{minLength: policy.MinLength, forbidSubject: policy.ForbidSubject}
	words := make([]string, 0, len(policy.ForbiddenSubstrings))
	for _, w := range policy.ForbiddenSubstrings {
		if w != "" {
			words = append(words, strings.ToLower(w))
		}
	}
	if len(words) != 0 {
		c.matcher = ahocorasick.NewStringMatcher(words)
	}
	return c
}

// Check returns an error wrapping ErrWeakPassword if the password violates the policy.
func (c *PasswordChecker) Check(subject, plaintext string) error {
	if c.minLength > 0 && utf8.RuneCountInString(plaintext) < c.minLength {
		return fmt.Errorf("%w: must be at least %d characters long", ErrWeakPassword, c.minLength)
	}
	lower := strings.ToLower(plaintext)
	if c.forbidSubject && subject != "" && strings.Contains(lower, strings.ToLower(subject)) {
		return fmt.Errorf("%w: must not contain the subject", ErrWeakPassword)
	}
	if c.matcher != nil && len(c.matcher.MatchThreadSafe([]byte(lower))) != 0 {
		return fmt.Errorf("%w: contains a forbidden word", ErrWeakPassword)
	}
	return nil
}
