/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package credential verifies plaintext passwords against stored credential hashes.
//
// A Verifier serializes all operations for one subject behind a single lock.
// It also keeps a derived token computed from the stored hash, which is dropped
// in the same critical section that replaces the hash, so nobody can observe
// a token derived from a superseded credential.
//
// A Registry keeps Verifiers of recently used subjects in a boundedcache.Cache
// and loads credential hashes from a subjectstore.Store on cache misses.
package credential
