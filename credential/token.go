/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package credential

import (
	"crypto/sha256"
	"encoding/hex"
)

// TokenDeriver computes the derived token of a stored credential hash.
type TokenDeriver interface {
	Derive(hash string) (string, error)
}

// TokenDeriverFunc is an adapter to allow the use of ordinary functions as TokenDeriver.
type TokenDeriverFunc func(hash string) (string, error)

// Derive implements TokenDeriver.
func (f TokenDeriverFunc) Derive(hash string) (string, error) {
	return f(hash)
}

// SHA256TokenDeriver derives the hex-encoded SHA-256 digest of the hash.
// The token changes whenever the credential changes, so it may be used to bind sessions to a credential.
type SHA256TokenDeriver struct{}

var _ TokenDeriver = SHA256TokenDeriver{}

// Derive implements TokenDeriver.
func (SHA256TokenDeriver) Derive(hash string) (string, error) {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:]), nil
}
