// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package pqcrypto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/indra/ids"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	id, err := GenerateIdentity()
	require.NoError(t, err)

	msg := []byte("realm sync request")
	sig, err := id.Sign(msg)
	require.NoError(t, err)

	require.NoError(t, Verify(id.VerifyingKeyBytes(), msg, sig))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	id, err := GenerateIdentity()
	require.NoError(t, err)

	sig, err := id.Sign([]byte("original"))
	require.NoError(t, err)

	err = Verify(id.VerifyingKeyBytes(), []byte("tampered"), sig)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestLoadIdentityRoundTrip(t *testing.T) {
	id, err := GenerateIdentity()
	require.NoError(t, err)

	loaded, err := LoadIdentity(id.SigningKeyBytes(), id.VerifyingKeyBytes())
	require.NoError(t, err)

	msg := []byte("persisted identity still signs")
	sig, err := loaded.Sign(msg)
	require.NoError(t, err)
	require.NoError(t, Verify(id.VerifyingKeyBytes(), msg, sig))
}

func TestKEMRoundTrip(t *testing.T) {
	kp, err := GenerateKEMKeyPair()
	require.NoError(t, err)

	realmKey, ct, err := EncapsulateRealmKey(kp.EncapsulationKeyBytes())
	require.NoError(t, err)

	recovered, err := kp.DecapsulateRealmKey(ct)
	require.NoError(t, err)
	require.Equal(t, realmKey, recovered)
}

func TestDeriveRealmKeyIsDeterministic(t *testing.T) {
	seed := make([]byte, 32)
	realm := ids.InterfaceID{1, 2, 3}

	k1, err := DeriveRealmKey(seed, realm)
	require.NoError(t, err)
	k2, err := DeriveRealmKey(seed, realm)
	require.NoError(t, err)
	require.Equal(t, k1, k2)

	otherRealm := ids.InterfaceID{4, 5, 6}
	k3, err := DeriveRealmKey(seed, otherRealm)
	require.NoError(t, err)
	require.NotEqual(t, k1, k3)
}

func TestSealOpenRoundTrip(t *testing.T) {
	seed := make([]byte, 32)
	realm := ids.InterfaceID{9}
	key, err := DeriveRealmKey(seed, realm)
	require.NoError(t, err)

	plaintext := []byte("interface event payload")
	aad := []byte("realm-context")

	sealed, err := Seal(key, plaintext, aad)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, sealed)

	opened, err := Open(key, sealed, aad)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)

	_, err = Open(key, sealed, []byte("wrong-context"))
	require.Error(t, err)
}
