/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package credential

import "errors"

// ErrNoCredentialSet is returned when a subject has no stored credential, so verification is impossible.
// Callers should treat the attempt as not authenticated.
var ErrNoCredentialSet = errors.New("no credential set")

// ErrCredentialFormat is returned when the stored credential cannot be used (e.g., a malformed hash).
// It signals corrupt stored state and is never reported as a mismatch.
var ErrCredentialFormat = errors.New("invalid credential format")

// ErrUnknownSubject is returned by Registry when the credential store does not know the subject.
var ErrUnknownSubject = errors.New("unknown subject")

// ErrWeakPassword is returned when a new plaintext password violates the PasswordPolicy.
var ErrWeakPassword = errors.New("weak password")
