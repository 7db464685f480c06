// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/indra/ids"
)

func mustPlayer(t *testing.T) ids.PlayerID {
	t.Helper()
	p, err := ids.GeneratePlayerID()
	require.NoError(t, err)
	return p
}

func TestJoinTopicRequiresSelf(t *testing.T) {
	m := NewInMemory()
	realm, err := ids.RandomInterfaceID()
	require.NoError(t, err)
	err = m.JoinTopic(context.Background(), realm)
	require.ErrorIs(t, err, ErrNoSelf)
}

func TestJoinTopicTracksMembership(t *testing.T) {
	m := NewInMemory()
	alice := mustPlayer(t)
	realm, err := ids.RandomInterfaceID()
	require.NoError(t, err)

	ctx := WithSelf(context.Background(), alice)
	require.NoError(t, m.JoinTopic(ctx, realm))
	require.ElementsMatch(t, []ids.PlayerID{alice}, m.MembersOf(realm))

	require.NoError(t, m.LeaveTopic(ctx, realm))
	require.Empty(t, m.MembersOf(realm))
}

func TestRequestIntroductionFansOutConnectedEvent(t *testing.T) {
	m := NewInMemory()
	alice, bob := mustPlayer(t), mustPlayer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := m.PeerEvents(ctx)

	require.NoError(t, m.RequestIntroduction(WithSelf(context.Background(), alice), bob))

	select {
	case evt := <-events:
		require.Equal(t, PeerConnected, evt.Kind)
		require.Equal(t, bob, evt.Peer)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for peer event")
	}
}
