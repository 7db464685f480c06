// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/indra/artifact"
	"github.com/luxfi/indra/attention"
	"github.com/luxfi/indra/ids"
)

func mustPlayer(t *testing.T) ids.PlayerID {
	t.Helper()
	p, err := ids.GeneratePlayerID()
	require.NoError(t, err)
	return p
}

func TestTransferStewardshipRevokesPriorAuthority(t *testing.T) {
	owner := mustPlayer(t)
	other := mustPlayer(t)
	v, err := New(owner, 1000)
	require.NoError(t, err)

	child, err := v.PlaceLeaf([]byte("hello"), artifact.LeafMessage, 1000)
	require.NoError(t, err)

	tree, err := v.PlaceTree(artifact.TreeStory, []ids.PlayerID{owner, other}, 1000)
	require.NoError(t, err)

	require.NoError(t, v.Compose(tree.ID(), child.ID(), 0, nil))
	require.NoError(t, v.TransferStewardship(tree.ID(), other))

	// The prior steward can no longer compose, remove refs, change
	// audience, or transfer again.
	err = v.Compose(tree.ID(), child.ID(), 1, nil)
	require.ErrorIs(t, err, ErrNotSteward)

	err = v.RemoveRef(tree.ID(), child.ID())
	require.ErrorIs(t, err, ErrNotSteward)

	err = v.SetAudience(tree.ID(), []ids.PlayerID{owner})
	require.ErrorIs(t, err, ErrNotSteward)

	err = v.TransferStewardship(tree.ID(), owner)
	require.ErrorIs(t, err, ErrNotSteward)

	got, ok := v.Artifacts().GetTree(tree.ID())
	require.True(t, ok)
	require.Equal(t, other, got.Steward())
}

func TestHeatIsAudienceGated(t *testing.T) {
	owner := mustPlayer(t)
	peer := mustPlayer(t)
	v, err := New(owner, 1000)
	require.NoError(t, err)

	tree, err := v.PlaceTree(artifact.TreeDocument, []ids.PlayerID{owner}, 1000)
	require.NoError(t, err)

	require.NoError(t, v.Peer(peer, nil, 1000))

	now := time.UnixMilli(2_000_000)
	v.attn.IngestPeerLog(peer, []attention.Event{
		{Player: peer, To: ptr(tree.ID()), TimestampMillis: now.UnixMilli() - 60_000},
	})

	heat, err := v.Heat(tree.ID(), now)
	require.NoError(t, err)
	require.Zero(t, heat, "peer is not in the audience yet, so they contribute no heat")

	require.NoError(t, v.SetAudience(tree.ID(), []ids.PlayerID{owner, peer}))

	heat, err = v.Heat(tree.ID(), now)
	require.NoError(t, err)
	require.Positive(t, heat, "peer is now in the audience and has a recent, replicated dwell on the target")
}

func TestHeatIgnoresOwnerFocus(t *testing.T) {
	owner := mustPlayer(t)
	v, err := New(owner, 1000)
	require.NoError(t, err)

	tree, err := v.PlaceTree(artifact.TreeDocument, []ids.PlayerID{owner}, 1000)
	require.NoError(t, err)

	now := time.UnixMilli(2_000_000)
	v.NavigateTo(tree.ID(), now.UnixMilli()-60_000)

	heat, err := v.Heat(tree.ID(), now)
	require.NoError(t, err)
	require.Zero(t, heat, "the owner's own dwell never counts toward their own heat reading")
}

func TestHeatDecaysWithAge(t *testing.T) {
	owner := mustPlayer(t)
	peerRecent := mustPlayer(t)
	peerStale := mustPlayer(t)
	v, err := New(owner, 1000)
	require.NoError(t, err)

	tree, err := v.PlaceTree(artifact.TreeDocument, []ids.PlayerID{owner, peerRecent, peerStale}, 1000)
	require.NoError(t, err)

	require.NoError(t, v.Peer(peerRecent, nil, 1000))
	require.NoError(t, v.Peer(peerStale, nil, 1000))

	now := time.UnixMilli(10 * 60 * 60 * 1000) // 10h epoch offset so every event timestamp stays positive

	// peerRecent focused on tree one minute ago for one minute.
	v.attn.IngestPeerLog(peerRecent, []attention.Event{
		{Player: peerRecent, To: ptr(tree.ID()), TimestampMillis: now.UnixMilli() - 60_000},
		{Player: peerRecent, From: ptr(tree.ID()), To: nil, TimestampMillis: now.UnixMilli()},
	})

	// peerStale had an identical one-minute dwell, but three half-lives ago.
	threeHalfLives := int64(3 * DefaultHeatParams().HalfLife / time.Millisecond)
	v.attn.IngestPeerLog(peerStale, []attention.Event{
		{Player: peerStale, To: ptr(tree.ID()), TimestampMillis: now.UnixMilli() - threeHalfLives - 60_000},
		{Player: peerStale, From: ptr(tree.ID()), To: nil, TimestampMillis: now.UnixMilli() - threeHalfLives},
	})

	recentHeat, err := v.Heat(tree.ID(), now)
	require.NoError(t, err)

	// Isolate peerStale's contribution by removing peerRecent from the
	// audience and re-measuring.
	require.NoError(t, v.SetAudience(tree.ID(), []ids.PlayerID{owner, peerStale}))
	staleHeat, err := v.Heat(tree.ID(), now)
	require.NoError(t, err)

	require.Greater(t, recentHeat, staleHeat, "a dwell three half-lives old must score far below an equal-length recent one")
}

func ptr(id ids.ArtifactID) *ids.ArtifactID { return &id }

func TestAcceptExchangeRequiresAllParticipants(t *testing.T) {
	owner := mustPlayer(t)
	other := mustPlayer(t)
	v, err := New(owner, 1000)
	require.NoError(t, err)

	exchange, err := v.PlaceTree(artifact.TreeExchange, []ids.PlayerID{owner, other}, 1000)
	require.NoError(t, err)

	err = v.CompleteExchange(exchange.ID())
	require.ErrorIs(t, err, ErrExchangeNotFullyAccepted)

	require.NoError(t, v.AcceptExchange(exchange.ID(), owner))
	err = v.CompleteExchange(exchange.ID())
	require.ErrorIs(t, err, ErrExchangeNotFullyAccepted)

	require.NoError(t, v.AcceptExchange(exchange.ID(), other))
	require.NoError(t, v.CompleteExchange(exchange.ID()))
}

func TestAcceptExchangeRejectsNonParticipant(t *testing.T) {
	owner := mustPlayer(t)
	outsider := mustPlayer(t)
	v, err := New(owner, 1000)
	require.NoError(t, err)

	exchange, err := v.PlaceTree(artifact.TreeExchange, []ids.PlayerID{owner}, 1000)
	require.NoError(t, err)

	err = v.AcceptExchange(exchange.ID(), outsider)
	require.ErrorIs(t, err, ErrInvalidOperation)
}

func TestPeerAndUnpeerLifecycle(t *testing.T) {
	owner := mustPlayer(t)
	peer := mustPlayer(t)
	v, err := New(owner, 1000)
	require.NoError(t, err)

	require.NoError(t, v.Peer(peer, nil, 1000))
	require.ErrorIs(t, v.Peer(peer, nil, 1000), ErrAlreadyPeered)
	require.True(t, v.IsPeer(peer))

	v.attn.IngestPeerLog(peer, []attention.Event{{Player: peer, TimestampMillis: 1}})
	require.True(t, v.attn.HasReplica(peer))

	require.NoError(t, v.Unpeer(peer))
	require.False(t, v.IsPeer(peer))
	require.False(t, v.attn.HasReplica(peer))
	require.ErrorIs(t, v.Unpeer(peer), ErrNotPeered)
}
