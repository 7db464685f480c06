// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package invite implements the two out-of-band codes the collaboration
// substrate hands participants: a bech32m contact invite code carrying
// a player's ID and verifying key (no address or introduction hints),
// and a realm invite key
// carrying the CBOR-encoded realm ID and symmetric key needed to join a
// peer-set or ad hoc realm directly.
package invite

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/fxamacker/cbor/v2"

	"github.com/luxfi/indra/ids"
)

// contactHRP is the human-readable part of every contact invite code,
// so a code always starts "indra1...".
const contactHRP = "indra"

const contactVersion byte = 1

var (
	ErrUnsupportedVersion = errors.New("invite: unsupported contact invite version")
	ErrMalformed          = errors.New("invite: malformed code")
)

// ContactInvite carries what's needed to introduce a player to the
// bearer: their player ID and their ML-DSA verifying key, so the bearer
// can check the player's signed messages before peering. The code
// itself carries no signature.
type ContactInvite struct {
	Player        ids.PlayerID
	VerifyingKey  []byte
}

// EncodeContact renders inv as a bech32m "indra1..." string.
func EncodeContact(inv ContactInvite) (string, error) {
	payload := make([]byte, 0, 1+len(inv.Player)+len(inv.VerifyingKey))
	payload = append(payload, contactVersion)
	payload = append(payload, inv.Player[:]...)
	payload = append(payload, inv.VerifyingKey...)

	converted, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("invite: convert bits: %w", err)
	}
	code, err := bech32.EncodeM(contactHRP, converted)
	if err != nil {
		return "", fmt.Errorf("invite: encode: %w", err)
	}
	return code, nil
}

// DecodeContact parses a bech32m "indra1..." contact invite code.
func DecodeContact(code string) (ContactInvite, error) {
	hrp, data, encoding, err := bech32.DecodeGeneric(code)
	if err != nil {
		return ContactInvite{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if hrp != contactHRP {
		return ContactInvite{}, fmt.Errorf("%w: unexpected prefix %q", ErrMalformed, hrp)
	}
	if encoding != bech32.Bech32m {
		return ContactInvite{}, fmt.Errorf("%w: expected bech32m encoding", ErrMalformed)
	}

	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return ContactInvite{}, fmt.Errorf("%w: convert bits: %v", ErrMalformed, err)
	}
	if len(payload) < 1+len(ids.PlayerID{}) {
		return ContactInvite{}, fmt.Errorf("%w: too short", ErrMalformed)
	}
	if payload[0] != contactVersion {
		return ContactInvite{}, ErrUnsupportedVersion
	}

	var inv ContactInvite
	copy(inv.Player[:], payload[1:1+len(ids.PlayerID{})])
	inv.VerifyingKey = append([]byte(nil), payload[1+len(ids.PlayerID{}):]...)
	return inv, nil
}

// RealmInvite carries everything needed to join a realm directly,
// bypassing discovery: the realm's ID and its symmetric interface key.
type RealmInvite struct {
	Realm ids.InterfaceID
	Key   []byte
}

// EncodeRealm CBOR-encodes inv and base64url-encodes the result, for
// embedding in a link or QR code.
func EncodeRealm(inv RealmInvite) (string, error) {
	b, err := cbor.Marshal(inv)
	if err != nil {
		return "", fmt.Errorf("invite: encode realm invite: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeRealm reverses EncodeRealm.
func DecodeRealm(code string) (RealmInvite, error) {
	b, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil {
		return RealmInvite{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var inv RealmInvite
	if err := cbor.Unmarshal(b, &inv); err != nil {
		return RealmInvite{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return inv, nil
}
