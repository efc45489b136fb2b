/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package subjectstore provides the authoritative storage of credential hashes per subject.
package subjectstore

import (
	"context"
	"errors"
	"sync"
)

// ErrSubjectNotFound is returned when the store knows nothing about the subject.
var ErrSubjectNotFound = errors.New("subject not found")

// Store loads and saves credential hashes of subjects.
// An existing subject without a credential has an empty hash.
type Store interface {
	LoadCredentialHash(ctx context.Context, subject string) (string, error)
	SaveCredentialHash(ctx context.Context, subject string, hash string) error
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu     sync.RWMutex
	hashes map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore pre-filled with the given subject hashes.
func NewMemoryStore(hashes map[string]string) *MemoryStore {
	s := &MemoryStore{hashes: make(map[string]string, len(hashes))}
	for subject, hash := range hashes {
		s.hashes[subject] = hash
	}
	return s
}

// LoadCredentialHash returns the stored hash of the subject.
func (s *MemoryStore) LoadCredentialHash(ctx context.Context, subject string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	hash, ok := s.hashes[subject]
	if !ok {
		return "", ErrSubjectNotFound
	}
	return hash, nil
}

// SaveCredentialHash stores the hash of the subject, creating the subject if needed.
func (s *MemoryStore) SaveCredentialHash(ctx context.Context, subject string, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[subject] = hash
	return nil
}
