/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package credential

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Comparer checks a plaintext credential against a stored hash.
// It may be slow (CPU-bound hashing) and is called while the subject lock is held.
// A malformed hash must be reported as an error wrapping ErrCredentialFormat, not as a mismatch.
type Comparer interface {
	Compare(plaintext, hash string) (bool, error)
}

// ComparerFunc is an adapter to allow the use of ordinary functions as Comparer.
type ComparerFunc func(plaintext, hash string) (bool, error)

// Compare implements Comparer.
func (f ComparerFunc) Compare(plaintext, hash string) (bool, error) {
	return f(plaintext, hash)
}

// BcryptComparer compares plaintext passwords with bcrypt hashes.
type BcryptComparer struct{}

var _ Comparer = BcryptComparer{}

// Compare implements Comparer.
func (BcryptComparer) Compare(plaintext, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrCredentialFormat, err)
	}
}

// MaxPasswordBytes is the longest password bcrypt can hash.
const MaxPasswordBytes = 72

// HashPassword returns the bcrypt hash of the plaintext password with the given cost.
// Zero cost means bcrypt.DefaultCost.
// Passwords longer than MaxPasswordBytes are rejected with ErrWeakPassword.
func HashPassword(plaintext string, cost int) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("%w: must be at most %d bytes long", ErrWeakPassword, MaxPasswordBytes)
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
