// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package realm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAliasRoundTrip(t *testing.T) {
	alice := mustPlayer(t)
	id, err := RandomID()
	require.NoError(t, err)
	r, err := New(id, alice, nil)
	require.NoError(t, err)

	alias, err := r.Alias()
	require.NoError(t, err)
	require.Empty(t, alias)

	require.NoError(t, r.SetAlias("book club"))
	alias, err = r.Alias()
	require.NoError(t, err)
	require.Equal(t, "book club", alias)

	require.NoError(t, r.ClearAlias())
	alias, err = r.Alias()
	require.NoError(t, err)
	require.Empty(t, alias)
}

func TestSetAliasRejectsTooLong(t *testing.T) {
	alice := mustPlayer(t)
	id, err := RandomID()
	require.NoError(t, err)
	r, err := New(id, alice, nil)
	require.NoError(t, err)

	require.ErrorIs(t, r.SetAlias(strings.Repeat("x", 78)), ErrAliasTooLong)
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	alice, bob := mustPlayer(t), mustPlayer(t)
	id, err := RandomID()
	require.NoError(t, err)
	r, err := New(id, alice, nil)
	require.NoError(t, err)
	require.NoError(t, r.AddMember(bob))

	_, err = r.Append(alice, EventMessage, InterfaceEvent{MessageBytes: []byte("one")})
	require.NoError(t, err)
	_, err = r.Append(alice, EventMessage, InterfaceEvent{MessageBytes: []byte("two")})
	require.NoError(t, err)

	n, err := r.UnreadCount(bob)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, r.MarkRead(bob, 0))
	n, err = r.UnreadCount(bob)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	seq, err := r.LastReadSeq(bob)
	require.NoError(t, err)
	require.Equal(t, uint64(0), seq)
}

func TestDocumentRegistry(t *testing.T) {
	alice := mustPlayer(t)
	id, err := RandomID()
	require.NoError(t, err)
	r, err := New(id, alice, nil)
	require.NoError(t, err)

	has, err := r.HasDocument("notes")
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, r.RegisterDocument("notes"))
	has, err = r.HasDocument("notes")
	require.NoError(t, err)
	require.True(t, has)

	names, err := r.DocumentNames()
	require.NoError(t, err)
	require.Contains(t, names, "notes")
}
