// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/indra/ids"
	"github.com/luxfi/indra/payload"
	"github.com/luxfi/indra/pqcrypto"
)

func TestPebbleBlobStoreRoundTrip(t *testing.T) {
	s, err := OpenBlobStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	data := []byte("hello indra")
	id, err := s.StorePayload(data)
	require.NoError(t, err)
	require.True(t, id.IsBlob())
	require.True(t, s.HasPayload(id))

	got, err := s.GetPayload(id)
	require.NoError(t, err)
	require.Equal(t, data, got)

	_, err = s.GetPayload(ids.LeafID([]byte("never stored")))
	require.ErrorIs(t, err, payload.ErrNotFound)
}

func TestPebbleBlobStoreStoringTwiceIsIdempotent(t *testing.T) {
	s, err := OpenBlobStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	data := []byte("same bytes")
	id1, err := s.StorePayload(data)
	require.NoError(t, err)
	id2, err := s.StorePayload(data)
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestKeyFilesIdentityRoundTrip(t *testing.T) {
	kf, err := NewKeyFiles(t.TempDir())
	require.NoError(t, err)
	require.False(t, kf.HasIdentity())

	id, err := pqcrypto.GenerateIdentity()
	require.NoError(t, err)
	require.NoError(t, kf.SaveIdentity(id))
	require.True(t, kf.HasIdentity())

	loaded, err := kf.LoadIdentity()
	require.NoError(t, err)
	require.Equal(t, id.VerifyingKeyBytes(), loaded.VerifyingKeyBytes())
}

func TestKeyFilesProfileRoundTrip(t *testing.T) {
	kf, err := NewKeyFiles(t.TempDir())
	require.NoError(t, err)

	p := Profile{DisplayName: "Ada"}
	require.NoError(t, kf.SaveProfile(p))

	got, err := kf.LoadProfile()
	require.NoError(t, err)
	require.Equal(t, "Ada", got.DisplayName)
}

func TestRealmSnapshotStoreSaveLoadList(t *testing.T) {
	rs, err := NewRealmSnapshotStore(t.TempDir())
	require.NoError(t, err)

	id, err := ids.RandomInterfaceID()
	require.NoError(t, err)
	require.NoError(t, rs.Save(id, []byte("snapshot bytes")))

	got, err := rs.Load(id)
	require.NoError(t, err)
	require.Equal(t, []byte("snapshot bytes"), got)

	list, err := rs.List()
	require.NoError(t, err)
	require.Contains(t, list, id)
}
