// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ids defines the opaque identifiers used throughout the
// collaboration substrate: player IDs, tagged artifact IDs, interface
// (realm) IDs and per-origin event IDs.
package ids

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// idLen is the width of every ID in this package. Everything is a
// 32-byte value; variants are distinguished by an explicit tag rather
// than by length.
const idLen = 32

// PlayerID is an opaque identifier for a participant, derived from that
// participant's identity keys. It supports equality and hashing only.
type PlayerID [idLen]byte

// Empty is the zero PlayerID, used as a sentinel in places that need one.
var Empty PlayerID

// String renders the full lowercase-hex encoding of the ID.
func (p PlayerID) String() string {
	return hex.EncodeToString(p[:])
}

// Short renders the first 8 hex chars, for log lines.
func (p PlayerID) Short() string {
	return hex.EncodeToString(p[:4])
}

// IsEmpty reports whether p is the zero value.
func (p PlayerID) IsEmpty() bool {
	return p == Empty
}

// GeneratePlayerID draws a fresh PlayerID from the system CSPRNG. In
// production a player ID is derived from the identity signing key; this
// helper exists for tests and for code paths that need a throwaway ID.
func GeneratePlayerID() (PlayerID, error) {
	var p PlayerID
	if _, err := rand.Read(p[:]); err != nil {
		return PlayerID{}, fmt.Errorf("ids: generate player id: %w", err)
	}
	return p, nil
}

// ArtifactVariant tags the provenance of an ArtifactID: content-addressed
// leaves (Blob) versus randomly-assigned trees (Doc). The tag is
// preserved through serialization and is never inferred from context.
type ArtifactVariant uint8

const (
	// VariantBlob marks an ArtifactID whose bytes are BLAKE3(payload).
	VariantBlob ArtifactVariant = iota
	// VariantDoc marks an ArtifactID drawn from a CSPRNG at creation.
	VariantDoc
)

func (v ArtifactVariant) String() string {
	switch v {
	case VariantBlob:
		return "Blob"
	case VariantDoc:
		return "Doc"
	default:
		return "Unknown"
	}
}

// ArtifactID is a tagged 32-byte value identifying either a Leaf (Blob)
// or a Tree (Doc) artifact. The two variants are never interchangeable:
// stores reject a mismatch between an artifact's record kind and its
// ID's tag.
type ArtifactID struct {
	Variant ArtifactVariant
	Bytes   [idLen]byte
}

// LeafID returns the Blob ArtifactID for payload, equal to BLAKE3(payload).
// Two calls with identical bytes always return the identical ID,
// independent of call order, time, or caller identity.
func LeafID(payload []byte) ArtifactID {
	sum := blake3.Sum256(payload)
	return ArtifactID{Variant: VariantBlob, Bytes: sum}
}

// GenerateTreeID draws a fresh Doc ArtifactID from the system CSPRNG.
// Each call is unique with overwhelming probability.
func GenerateTreeID() (ArtifactID, error) {
	var id ArtifactID
	id.Variant = VariantDoc
	if _, err := rand.Read(id.Bytes[:]); err != nil {
		return ArtifactID{}, fmt.Errorf("ids: generate tree id: %w", err)
	}
	return id, nil
}

// IsBlob reports whether the ID is a content-addressed leaf ID.
func (a ArtifactID) IsBlob() bool { return a.Variant == VariantBlob }

// IsDoc reports whether the ID is a randomly-assigned tree ID.
func (a ArtifactID) IsDoc() bool { return a.Variant == VariantDoc }

// String renders e.g. "Blob(a1b2..c3d4)" or "Doc(f00d..cafe)", showing
// the first two and last two hex bytes of the underlying value.
func (a ArtifactID) String() string {
	h := hex.EncodeToString(a.Bytes[:])
	return fmt.Sprintf("%s(%s..%s)", a.Variant, h[:4], h[len(h)-4:])
}

// Hex renders the full lowercase-hex encoding, with no variant tag.
// Used where a stable on-disk key or a CRDT register value is needed.
func (a ArtifactID) Hex() string {
	return hex.EncodeToString(a.Bytes[:])
}

// InterfaceID identifies a realm. It shares the same 32-byte shape as
// PlayerID and ArtifactID but is a distinct Go type so the two
// namespaces can never be confused at compile time.
type InterfaceID [idLen]byte

func (i InterfaceID) String() string {
	return hex.EncodeToString(i[:])
}

// RandomInterfaceID draws a realm ID with no canonical derivation.
func RandomInterfaceID() (InterfaceID, error) {
	var id InterfaceID
	if _, err := rand.Read(id[:]); err != nil {
		return InterfaceID{}, fmt.Errorf("ids: generate interface id: %w", err)
	}
	return id, nil
}

// EventID identifies a single interface event by its origin and the
// origin's monotonically increasing per-player sequence number. EventIDs
// are totally ordered within one origin and incomparable across origins
// except via the CRDT's own merge rule.
type EventID struct {
	Origin   PlayerID
	Sequence uint64
}

// Less orders two EventIDs from the same origin by sequence. Comparing
// EventIDs from different origins is meaningless and always returns
// false for both orderings; callers must not rely on it for ordering
// across origins.
func (e EventID) Less(other EventID) bool {
	if e.Origin != other.Origin {
		return false
	}
	return e.Sequence < other.Sequence
}

func (e EventID) String() string {
	return fmt.Sprintf("%s/%d", e.Origin.Short(), e.Sequence)
}
