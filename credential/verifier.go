/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package credential

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	"github.com/acronis/go-authcache/log"
)

// VerifierOpts represents options for Verifier.
type VerifierOpts struct {
	// Comparer checks plaintext credentials. BcryptComparer is used if nil.
	Comparer Comparer

	// TokenDeriver computes the derived token. SHA256TokenDeriver is used if nil.
	TokenDeriver TokenDeriver

	// Logger is used for debug logging of credential changes and failures. Disabled if nil.
	Logger log.FieldLogger
}

// VerifierStats contains counters of Verifier operations.
type VerifierStats struct {
	Verifications     uint64 `json:"verifications"`
	Matches           uint64 `json:"matches"`
	Failures          uint64 `json:"failures"`
	CredentialChanges uint64 `json:"credentialChanges"`
}

// Verifier verifies plaintext credentials of a single subject against its stored hash.
// All operations are serialized by one lock; in particular Verify holds it during the whole
// comparison, so no two verifications of the same subject run concurrently and none of them
// races with SetCredential.
type Verifier struct {
	subject string

	sem      *semaphore.Weighted
	hash     string
	token    string
	hasToken bool

	comparer Comparer
	deriver  TokenDeriver
	logger   log.FieldLogger

	verifications     atomic.Uint64
	matches           atomic.Uint64
	failures          atomic.Uint64
	credentialChanges atomic.Uint64
}

// NewVerifier creates a Verifier for the subject. An empty hash means no credential is set yet.
func NewVerifier(subject string, hash string, opts VerifierOpts) *Verifier {
	if opts.Comparer == nil {
		opts.Comparer = BcryptComparer{}
	}
	if opts.TokenDeriver == nil {
		opts.TokenDeriver = SHA256TokenDeriver{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	return &Verifier{
		subject:  subject,
		sem:      semaphore.NewWeighted(1),
		hash:     hash,
		comparer: opts.Comparer,
		deriver:  opts.TokenDeriver,
		logger:   opts.Logger.With(log.Subject(subject)),
	}
}

// Subject returns the subject the verifier is scoped to.
func (v *Verifier) Subject() string {
	return v.subject
}

// SetCredential replaces the stored hash and drops the cached derived token.
// An empty hash is rejected with ErrCredentialFormat.
func (v *Verifier) SetCredential(ctx context.Context, hash string) error {
	if hash == "" {
		return fmt.Errorf("%w: empty hash", ErrCredentialFormat)
	}
	if err := v.lock(ctx); err != nil {
		return err
	}
	defer v.unlock()

	v.hash = hash
	v.token, v.hasToken = "", false
	v.credentialChanges.Inc()
	v.logger.Debug("credential changed")
	return nil
}

// Verify reports whether plaintext matches the stored hash.
// It returns ErrNoCredentialSet if no hash is stored, and an error wrapping ErrCredentialFormat
// if the comparison fails. The result is not cached: every call runs the comparison.
func (v *Verifier) Verify(ctx context.Context, plaintext string) (bool, error) {
	if err := v.lock(ctx); err != nil {
		return false, err
	}
	defer v.unlock()

	if v.hash == "" {
		return false, ErrNoCredentialSet
	}

	v.verifications.Inc()
	match, err := v.comparer.Compare(plaintext, v.hash)
	if err != nil {
		v.failures.Inc()
		if !errors.Is(err, ErrCredentialFormat) {
			err = fmt.Errorf("%w: %w", ErrCredentialFormat, err)
		}
		v.logger.Warn("credential comparison failed", log.Error(err))
		return false, err
	}
	if match {
		v.matches.Inc()
	}
	return match, nil
}

// DerivedToken returns the token derived from the stored hash.
// The token is computed on first use and cached until the credential changes.
func (v *Verifier) DerivedToken(ctx context.Context) (string, error) {
	if err := v.lock(ctx); err != nil {
		return "", err
	}
	defer v.unlock()

	if v.hash == "" {
		return "", ErrNoCredentialSet
	}
	if v.hasToken {
		return v.token, nil
	}
	token, err := v.deriver.Derive(v.hash)
	if err != nil {
		return "", fmt.Errorf("derive token: %w", err)
	}
	v.token, v.hasToken = token, true
	return token, nil
}

// HasCredential reports whether a hash is stored.
func (v *Verifier) HasCredential(ctx context.Context) (bool, error) {
	if err := v.lock(ctx); err != nil {
		return false, err
	}
	defer v.unlock()
	return v.hash != "", nil
}

// Stats returns operation counters. It does not wait for the subject lock.
func (v *Verifier) Stats() VerifierStats {
	return VerifierStats{
		Verifications:     v.verifications.Load(),
		Matches:           v.matches.Load(),
		Failures:          v.failures.Load(),
		CredentialChanges: v.credentialChanges.Load(),
	}
}

func (v *Verifier) lock(ctx context.Context) error {
	return v.sem.Acquire(ctx, 1)
}

func (v *Verifier) unlock() {
	v.sem.Release(1)
}
