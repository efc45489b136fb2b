/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/semaphore"

	"github.com/acronis/go-authcache/boundedcache"
	"github.com/acronis/go-authcache/log"
	"github.com/acronis/go-authcache/retry"
	"github.com/acronis/go-authcache/subjectstore"
)

// Default values for RegistryOpts.
const (
	DefaultLoadRetryInitialInterval = 100 * time.Millisecond
	DefaultLoadRetryMaxAttempts     = 3
)

// credentialUpdateStripes is the number of locks credential updates of different subjects are spread over.
const credentialUpdateStripes = 64

// VerifierCache is a bounded cache of Verifiers keyed by subject.
type VerifierCache = boundedcache.Cache[string, *Verifier]

// RegistryOpts represents options for Registry.
type RegistryOpts struct {
	// VerifierOpts are used for every Verifier created by the registry.
	VerifierOpts VerifierOpts

	// BcryptCost is used by SetPassword. Zero means bcrypt.DefaultCost.
	BcryptCost int

	// LoadRetryInitialInterval is the first delay between attempts to load a hash from the store.
	LoadRetryInitialInterval time.Duration

	// LoadRetryMaxAttempts is the maximum number of retries after a failed load.
	// Negative value disables retries.
	LoadRetryMaxAttempts int

	// PasswordChecker validates passwords passed to SetPassword. Any password is accepted if nil.
	PasswordChecker *PasswordChecker

	Logger log.FieldLogger
}

// Registry gives access to the Verifiers of all subjects known to the store.
// Verifiers of recently used subjects are kept in the cache; on a miss the hash is loaded from the store.
type Registry struct {
	cache  *VerifierCache
	store  subjectstore.Store
	opts   RegistryOpts
	logger log.FieldLogger

	updateLocks [credentialUpdateStripes]*semaphore.Weighted
}

// NewRegistry creates a new Registry.
func NewRegistry(cache *VerifierCache, store subjectstore.Store, opts RegistryOpts) *Registry {
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.VerifierOpts.Logger == nil {
		opts.VerifierOpts.Logger = opts.Logger
	}
	if opts.LoadRetryInitialInterval == 0 {
		opts.LoadRetryInitialInterval = DefaultLoadRetryInitialInterval
	}
	if opts.LoadRetryMaxAttempts == 0 {
		opts.LoadRetryMaxAttempts = DefaultLoadRetryMaxAttempts
	}
	r := &Registry{cache: cache, store: store, opts: opts, logger: opts.Logger}
	for i := range r.updateLocks {
		r.updateLocks[i] = semaphore.NewWeighted(1)
	}
	return r
}

// Verify checks the plaintext credential of the subject.
// See Verifier.Verify for details; additionally ErrUnknownSubject is returned for subjects unknown to the store.
func (r *Registry) Verify(ctx context.Context, subject, plaintext string) (bool, error) {
	v, err := r.Verifier(ctx, subject)
	if err != nil {
		return false, err
	}
	return v.Verify(ctx, plaintext)
}

// SetCredential saves the new hash of the subject to the store and then to its cached Verifier.
// The subject is created in the store if it does not exist.
// Updates of the same subject are serialized, so the store and the cache end up with the same hash.
func (r *Registry) SetCredential(ctx context.Context, subject, hash string) error {
	if hash == "" {
		return fmt.Errorf("%w: empty hash", ErrCredentialFormat)
	}
	updateLock := r.updateLocks[xxhash.Sum64String(subject)%credentialUpdateStripes]
	if err := updateLock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer updateLock.Release(1)

	if err := r.store.SaveCredentialHash(ctx, subject, hash); err != nil {
		return fmt.Errorf("save credential of %s: %w", subject, err)
	}
	// The cached verifier (or one being loaded concurrently from the old state) must see the new hash.
	v, err := r.Verifier(ctx, subject)
	if errors.Is(err, ErrUnknownSubject) {
		// A load started before the save could not find the subject yet.
		v, err = r.Verifier(ctx, subject)
	}
	if err != nil {
		return err
	}
	if err = v.SetCredential(ctx, hash); err != nil {
		return err
	}
	r.logger.Info("credential updated", log.Subject(subject))
	return nil
}

// SetPassword hashes the plaintext password with bcrypt and sets it as the subject credential.
// A password rejected by the PasswordChecker yields ErrWeakPassword and changes nothing.
func (r *Registry) SetPassword(ctx context.Context, subject, plaintext string) error {
	if r.opts.PasswordChecker != nil {
		if err := r.opts.PasswordChecker.Check(subject, plaintext); err != nil {
			return err
		}
	}
	hash, err := HashPassword(plaintext, r.opts.BcryptCost)
	if err != nil {
		return err
	}
	return r.SetCredential(ctx, subject, hash)
}

// DerivedToken returns the derived token of the subject credential.
func (r *Registry) DerivedToken(ctx context.Context, subject string) (string, error) {
	v, err := r.Verifier(ctx, subject)
	if err != nil {
		return "", err
	}
	return v.DerivedToken(ctx)
}

// Forget drops the cached Verifier of the subject. The stored credential is not affected.
func (r *Registry) Forget(subject string) bool {
	return r.cache.Remove(subject)
}

// CacheStats returns statistics of the verifier cache.
func (r *Registry) CacheStats() boundedcache.Stats {
	return r.cache.Stats()
}

// Verifier returns the Verifier of the subject, loading its hash from the store if it is not cached.
func (r *Registry) Verifier(ctx context.Context, subject string) (*Verifier, error) {
	entry, _, err := r.cache.GetOrInsert(ctx, subject, func(ctx context.Context) (*Verifier, error) {
		hash, loadErr := r.loadHash(ctx, subject)
		if loadErr != nil {
			return nil, loadErr
		}
		return NewVerifier(subject, hash, r.opts.VerifierOpts), nil
	})
	if err != nil {
		return nil, err
	}
	var v *Verifier
	if err = entry.Do(ctx, func(value **Verifier) error {
		v = *value
		return nil
	}); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *Registry) loadHash(ctx context.Context, subject string) (string, error) {
	var hash string
	policy := retry.NewExponentialBackoffPolicy(r.opts.LoadRetryInitialInterval, r.opts.LoadRetryMaxAttempts)
	isRetryable := func(err error) bool {
		return !errors.Is(err, subjectstore.ErrSubjectNotFound)
	}
	notify := func(err error, delay time.Duration) {
		r.logger.Warn("failed to load credential, retrying",
			log.Subject(subject), log.Error(err), log.Duration("delay", delay))
	}
	err := retry.DoWithRetry(ctx, policy, isRetryable, notify, func(ctx context.Context) (err error) {
		hash, err = r.store.LoadCredentialHash(ctx, subject)
		return err
	})
	if errors.Is(err, subjectstore.ErrSubjectNotFound) {
		return "", fmt.Errorf("%w: %s", ErrUnknownSubject, subject)
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}
