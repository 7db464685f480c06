// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package indraerr defines the error-kind taxonomy shared across the
// collaboration substrate. Individual packages keep their own
// sentinel errors (artifact.ErrNotFound, vault.ErrNotSteward, ...); this
// package gives the network façade a single typed wrapper so every
// public operation either returns its nominal result or a named Kind,
// never a bare string.
package indraerr

import "fmt"

// Kind enumerates the error taxonomy callers of the public API see.
type Kind string

const (
	NotSteward       Kind = "not_steward"
	NotFound         Kind = "not_found"
	VariantMismatch  Kind = "variant_mismatch"
	AlreadyPeered    Kind = "already_peered"
	NotPeered        Kind = "not_peered"
	InvalidOperation Kind = "invalid_operation"
	Crypto           Kind = "crypto"
	Serialization    Kind = "serialization"
	Transport        Kind = "transport"
	Sync             Kind = "sync"
	TTLExpired       Kind = "ttl_expired"
)

// Error is the typed error the network façade returns. Cause carries the
// underlying package-level sentinel error (e.g. vault.ErrNotSteward) so
// errors.Is/As still work against it.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New wraps cause under the given Kind.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Is reports whether err carries the given Kind, so callers can write
// `if indraerr.Is(err, indraerr.NotSteward)` instead of type-asserting.
func Is(err error, kind Kind) bool {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
	} else {
		return false
	}
	return e.Kind == kind
}
