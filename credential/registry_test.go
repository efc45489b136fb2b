/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package credential

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"golang.org/x/crypto/bcrypt"

	"github.com/acronis/go-authcache/boundedcache"
	"github.com/acronis/go-authcache/log"
	"github.com/acronis/go-authcache/log/logtest"
	"github.com/acronis/go-authcache/subjectstore"
)

// flakyStore fails the first failures loads and counts all of them.
type flakyStore struct {
	subjectstore.Store
	failures atomic.Int32
	loads    atomic.Int32
}

var errStoreUnavailable = errors.New("store is unavailable")

func (s *flakyStore) LoadCredentialHash(ctx context.Context, subject string) (string, error) {
	s.loads.Inc()
	if s.failures.Dec() >= 0 {
		return "", errStoreUnavailable
	}
	return s.Store.LoadCredentialHash(ctx, subject)
}

func newTestRegistry(t *testing.T, store subjectstore.Store, maxEntries int, logger log.FieldLogger) *Registry {
	t.Helper()
	cache, err := boundedcache.New[string, *Verifier](maxEntries, nil)
	require.NoError(t, err)
	return NewRegistry(cache, store, RegistryOpts{
		VerifierOpts:             VerifierOpts{Comparer: plainComparer},
		BcryptCost:               bcrypt.MinCost,
		LoadRetryInitialInterval: time.Millisecond,
		LoadRetryMaxAttempts:     3,
		Logger:                   logger,
	})
}

func TestRegistry_Verify(t *testing.T) {
	ctx := context.Background()
	store := subjectstore.NewMemoryStore(map[string]string{"alice": "a-pass", "bob": ""})
	reg := newTestRegistry(t, store, 10, nil)

	match, err := reg.Verify(ctx, "alice", "a-pass")
	require.NoError(t, err)
	require.True(t, match)

	match, err = reg.Verify(ctx, "alice", "wrong")
	require.NoError(t, err)
	require.False(t, match)

	_, err = reg.Verify(ctx, "bob", "anything")
	require.ErrorIs(t, err, ErrNoCredentialSet)

	_, err = reg.Verify(ctx, "mallory", "anything")
	require.ErrorIs(t, err, ErrUnknownSubject)

	stats := reg.CacheStats()
	require.Equal(t, 2, stats.Entries)
	require.EqualValues(t, 1, stats.Hits)
}

func TestRegistry_SetCredential(t *testing.T) {
	ctx := context.Background()
	store := subjectstore.NewMemoryStore(map[string]string{"alice": "old"})
	logRecorder := logtest.NewRecorder()
	reg := newTestRegistry(t, store, 10, logRecorder)

	match, err := reg.Verify(ctx, "alice", "old")
	require.NoError(t, err)
	require.True(t, match)
	token1, err := reg.DerivedToken(ctx, "alice")
	require.NoError(t, err)

	require.ErrorIs(t, reg.SetCredential(ctx, "alice", ""), ErrCredentialFormat)
	require.NoError(t, reg.SetCredential(ctx, "alice", "new"))

	match, err = reg.Verify(ctx, "alice", "old")
	require.NoError(t, err)
	require.False(t, match)
	match, err = reg.Verify(ctx, "alice", "new")
	require.NoError(t, err)
	require.True(t, match)

	token2, err := reg.DerivedToken(ctx, "alice")
	require.NoError(t, err)
	require.NotEqual(t, token1, token2)

	stored, err := store.LoadCredentialHash(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "new", stored)

	_, found := logRecorder.FindEntry("credential updated")
	require.True(t, found)

	// New subjects are created.
	require.NoError(t, reg.SetCredential(ctx, "carol", "c-pass"))
	match, err = reg.Verify(ctx, "carol", "c-pass")
	require.NoError(t, err)
	require.True(t, match)
}

// jitterStore delays saves so that concurrent updates finish in a different order than they started.
type jitterStore struct {
	subjectstore.Store
}

func (s *jitterStore) SaveCredentialHash(ctx context.Context, subject, hash string) error {
	if err := s.Store.SaveCredentialHash(ctx, subject, hash); err != nil {
		return err
	}
	n, _ := strconv.Atoi(hash[len("pass-"):])
	time.Sleep(time.Duration(n%5) * time.Millisecond)
	return nil
}

func TestRegistry_ConcurrentSetCredentialKeepsStoreAndCacheInSync(t *testing.T) {
	ctx := context.Background()
	store := &jitterStore{Store: subjectstore.NewMemoryStore(map[string]string{"alice": "pass-0"})}
	reg := newTestRegistry(t, store, 10, nil)

	for round := 0; round < 5; round++ {
		_, err := reg.Verify(ctx, "alice", "pass-0")
		require.NoError(t, err)

		const goroutines = 16
		var wg sync.WaitGroup
		wg.Add(goroutines)
		for i := 0; i < goroutines; i++ {
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, reg.SetCredential(ctx, "alice", "pass-"+strconv.Itoa(round*goroutines+i+1)))
			}(i)
		}
		wg.Wait()

		stored, err := store.LoadCredentialHash(ctx, "alice")
		require.NoError(t, err)
		match, err := reg.Verify(ctx, "alice", stored)
		require.NoError(t, err)
		require.True(t, match, "cached verifier must hold the stored hash %q", stored)

		require.NoError(t, reg.SetCredential(ctx, "alice", "pass-0"))
	}
}

func TestRegistry_SetPassword(t *testing.T) {
	ctx := context.Background()
	store := subjectstore.NewMemoryStore(nil)
	cache, err := boundedcache.New[string, *Verifier](10, nil)
	require.NoError(t, err)
	reg := NewRegistry(cache, store, RegistryOpts{BcryptCost: bcrypt.MinCost})

	require.NoError(t, reg.SetPassword(ctx, "alice", "s3cret"))

	stored, err := store.LoadCredentialHash(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored), []byte("s3cret")))

	match, err := reg.Verify(ctx, "alice", "s3cret")
	require.NoError(t, err)
	require.True(t, match)
}

func TestRegistry_SetPassword_Policy(t *testing.T) {
	ctx := context.Background()
	store := subjectstore.NewMemoryStore(nil)
	cache, err := boundedcache.New[string, *Verifier](10, nil)
	require.NoError(t, err)
	reg := NewRegistry(cache, store, RegistryOpts{
		BcryptCost:      bcrypt.MinCost,
		PasswordChecker: NewPasswordChecker(PasswordPolicy{MinLength: 8, ForbidSubject: true}),
	})

	require.ErrorIs(t, reg.SetPassword(ctx, "alice", "short"), ErrWeakPassword)
	require.ErrorIs(t, reg.SetPassword(ctx, "alice", "alice12345"), ErrWeakPassword)
	_, err = store.LoadCredentialHash(ctx, "alice")
	require.ErrorIs(t, err, subjectstore.ErrSubjectNotFound)
	require.Zero(t, cache.Len())

	require.NoError(t, reg.SetPassword(ctx, "alice", "long enough"))
	match, err := reg.Verify(ctx, "alice", "long enough")
	require.NoError(t, err)
	require.True(t, match)
}

func TestRegistry_Forget(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: subjectstore.NewMemoryStore(map[string]string{"alice": "a-pass"})}
	reg := newTestRegistry(t, store, 10, nil)

	require.False(t, reg.Forget("alice"))
	_, err := reg.Verify(ctx, "alice", "a-pass")
	require.NoError(t, err)
	require.True(t, reg.Forget("alice"))

	_, err = reg.Verify(ctx, "alice", "a-pass")
	require.NoError(t, err)
	require.EqualValues(t, 2, store.loads.Load())
}

func TestRegistry_Eviction(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: subjectstore.NewMemoryStore(map[string]string{"a": "1", "b": "2", "c": "3"})}
	reg := newTestRegistry(t, store, 2, nil)

	for _, subject := range []string{"a", "b", "c"} {
		_, err := reg.Verify(ctx, subject, "x")
		require.NoError(t, err)
	}
	require.Equal(t, 2, reg.CacheStats().Entries)
	require.EqualValues(t, 1, reg.CacheStats().Evictions)

	// "a" was evicted and has to be loaded again.
	_, err := reg.Verify(ctx, "a", "1")
	require.NoError(t, err)
	require.EqualValues(t, 4, store.loads.Load())
}

func TestRegistry_LoadRetries(t *testing.T) {
	ctx := context.Background()

	t.Run("transient errors are retried", func(t *testing.T) {
		store := &flakyStore{Store: subjectstore.NewMemoryStore(map[string]string{"alice": "a-pass"})}
		store.failures.Store(2)
		logRecorder := logtest.NewRecorder()
		reg := newTestRegistry(t, store, 10, logRecorder)

		match, err := reg.Verify(ctx, "alice", "a-pass")
		require.NoError(t, err)
		require.True(t, match)
		require.EqualValues(t, 3, store.loads.Load())
		require.Len(t, logRecorder.FindEntriesWithField(log.LevelWarn, "subject"), 2)
	})

	t.Run("retries are limited", func(t *testing.T) {
		store := &flakyStore{Store: subjectstore.NewMemoryStore(map[string]string{"alice": "a-pass"})}
		store.failures.Store(100)
		reg := newTestRegistry(t, store, 10, nil)

		_, err := reg.Verify(ctx, "alice", "a-pass")
		require.ErrorIs(t, err, errStoreUnavailable)
		require.EqualValues(t, 4, store.loads.Load())
		require.Equal(t, 0, reg.CacheStats().Entries)
	})

	t.Run("unknown subject is not retried", func(t *testing.T) {
		store := &flakyStore{Store: subjectstore.NewMemoryStore(nil)}
		reg := newTestRegistry(t, store, 10, nil)

		_, err := reg.Verify(ctx, "alice", "a-pass")
		require.ErrorIs(t, err, ErrUnknownSubject)
		require.EqualValues(t, 1, store.loads.Load())
	})
}

func TestRegistry_ConcurrentMissesLoadOnce(t *testing.T) {
	store := &slowStore{Store: subjectstore.NewMemoryStore(map[string]string{"alice": "a-pass"}), delay: 20 * time.Millisecond}
	reg := newTestRegistry(t, store, 10, nil)

	const goroutines = 10
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			match, err := reg.Verify(context.Background(), "alice", "a-pass")
			assert.NoError(t, err)
			assert.True(t, match)
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, store.loads.Load())
}

type slowStore struct {
	subjectstore.Store
	delay time.Duration
	loads atomic.Int32
}

func (s *slowStore) LoadCredentialHash(ctx context.Context, subject string) (string, error) {
	s.loads.Inc()
	time.Sleep(s.delay)
	return s.Store.LoadCredentialHash(ctx, subject)
}
