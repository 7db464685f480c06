// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package payload

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/indra/ids"
)

func TestStoreDuplicateIsNoOp(t *testing.T) {
	s := NewMemStore()
	data := []byte("same bytes, twice")

	id1, err := s.StorePayload(data)
	require.NoError(t, err)
	id2, err := s.StorePayload(data)
	require.NoError(t, err)

	require.Equal(t, id1, id2)

	got, err := s.GetPayload(id1)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestGetMissing(t *testing.T) {
	s := NewMemStore()
	missing := ids.LeafID([]byte("never stored"))
	_, err := s.GetPayload(missing)
	require.ErrorIs(t, err, ErrNotFound)
	require.False(t, s.HasPayload(missing))
}

func TestGetRejectsDocID(t *testing.T) {
	s := NewMemStore()
	doc, err := ids.GenerateTreeID()
	require.NoError(t, err)

	_, err = s.GetPayload(doc)
	require.ErrorIs(t, err, ErrNotBlob)
	require.False(t, s.HasPayload(doc))
}

func TestIDIsOrderIndependent(t *testing.T) {
	s1 := NewMemStore()
	s2 := NewMemStore()
	data := []byte("order independence")

	id1, err := s1.StorePayload(data)
	require.NoError(t, err)

	id2, err := s2.StorePayload(data)
	require.NoError(t, err)

	require.Equal(t, id1, id2)
	require.Equal(t, ids.LeafID(data), id1)
}
