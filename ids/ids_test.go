// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package ids

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLeafIDDeterministic(t *testing.T) {
	payload := []byte("hello, indra")

	a := LeafID(payload)
	b := LeafID(payload)

	require.Equal(t, a, b)
	require.True(t, a.IsBlob())
	require.False(t, a.IsDoc())
}

func TestLeafIDDiffersOnPayload(t *testing.T) {
	a := LeafID([]byte("one"))
	b := LeafID([]byte("two"))
	require.NotEqual(t, a, b)
}

func TestGenerateTreeIDUnique(t *testing.T) {
	a, err := GenerateTreeID()
	require.NoError(t, err)
	b, err := GenerateTreeID()
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.True(t, a.IsDoc())
	require.True(t, b.IsDoc())
}

func TestArtifactIDString(t *testing.T) {
	id := LeafID([]byte("payload"))
	s := id.String()
	require.Contains(t, s, "Blob(")
	require.Contains(t, s, "..")
}

func TestEventIDLess(t *testing.T) {
	origin, err := GeneratePlayerID()
	require.NoError(t, err)
	other, err := GeneratePlayerID()
	require.NoError(t, err)

	a := EventID{Origin: origin, Sequence: 1}
	b := EventID{Origin: origin, Sequence: 2}
	require.True(t, a.Less(b))
	require.False(t, b.Less(a))

	c := EventID{Origin: other, Sequence: 0}
	require.False(t, a.Less(c))
	require.False(t, c.Less(a))
}

func TestPlayerIDEmpty(t *testing.T) {
	var p PlayerID
	require.True(t, p.IsEmpty())

	q, err := GeneratePlayerID()
	require.NoError(t, err)
	require.False(t, q.IsEmpty())
}
