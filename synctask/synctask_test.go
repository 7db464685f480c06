// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package synctask

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/indra/ids"
	"github.com/luxfi/indra/metrics"
	"github.com/luxfi/indra/pqcrypto"
	"github.com/luxfi/indra/realm"
	"github.com/luxfi/indra/wire"
)

type fakeRealmSource struct {
	local ids.PlayerID
	reg   map[ids.InterfaceID]*realm.Realm
}

func (f *fakeRealmSource) Realm(id ids.InterfaceID) (*realm.Realm, bool) {
	r, ok := f.reg[id]
	return r, ok
}

func (f *fakeRealmSource) LocalPlayer() ids.PlayerID { return f.local }

type fakeSigner struct {
	identity *pqcrypto.Identity
}

func (s *fakeSigner) Encode(msg wire.NetworkMessage) (*wire.SignedNetworkMessage, error) {
	return wire.Encode(msg, s.identity)
}

type recordingTransport struct {
	mu   sync.Mutex
	sent []wire.SyncRequest
	ch   chan struct{}
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{ch: make(chan struct{}, 16)}
}

func (t *recordingTransport) Send(ctx context.Context, to ids.PlayerID, env *wire.SignedNetworkMessage) error {
	msg, err := wire.VerifyAndDecode(env, wire.Strict)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.sent = append(t.sent, *msg.SyncRequest)
	t.mu.Unlock()
	select {
	case t.ch <- struct{}{}:
	default:
	}
	return nil
}

func (t *recordingTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func mustPlayer(t *testing.T) ids.PlayerID {
	t.Helper()
	p, err := ids.GeneratePlayerID()
	require.NoError(t, err)
	return p
}

func TestEagerSyncSendsWithoutWaitingForTick(t *testing.T) {
	local, peer := mustPlayer(t), mustPlayer(t)
	realmID, err := realm.RandomID()
	require.NoError(t, err)
	r, err := realm.New(realmID, local, nil)
	require.NoError(t, err)
	require.NoError(t, r.AddMember(peer))
	_, err = r.Append(local, realm.EventMessage, realm.InterfaceEvent{MessageBytes: []byte("hi")})
	require.NoError(t, err)

	identity, err := pqcrypto.GenerateIdentity()
	require.NoError(t, err)

	transport := newRecordingTransport()
	driver := New(
		&fakeRealmSource{local: local, reg: map[ids.InterfaceID]*realm.Realm{realmID: r}},
		transport,
		&fakeSigner{identity: identity},
		metrics.NewForTest(),
		WithInterval(time.Hour), // tick essentially never fires on its own
		WithJitter(0),
	)
	driver.Track(realmID, peer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go driver.Run(ctx)

	driver.NotifyLocalChange(realmID, peer)

	select {
	case <-transport.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for eager sync send")
	}
	require.Equal(t, 1, transport.count())
	require.Equal(t, realmID, transport.sent[0].Realm)
}

func TestMergeDeltaAppliesInboundPayload(t *testing.T) {
	local, peer := mustPlayer(t), mustPlayer(t)
	realmID, err := realm.RandomID()
	require.NoError(t, err)

	left, err := realm.New(realmID, local, nil)
	require.NoError(t, err)
	require.NoError(t, left.AddMember(peer))
	_, err = left.Append(local, realm.EventMessage, realm.InterfaceEvent{MessageBytes: []byte("left")})
	require.NoError(t, err)

	right, err := realm.New(realmID, peer, nil)
	require.NoError(t, err)

	driver := New(
		&fakeRealmSource{local: peer, reg: map[ids.InterfaceID]*realm.Realm{realmID: right}},
		newRecordingTransport(),
		nil,
		metrics.NewForTest(),
	)

	msg := left.GenerateSync(peer)
	require.NotNil(t, msg)
	_, err = driver.MergeDelta(realmID, local, msg)
	require.NoError(t, err)

	require.Len(t, right.AllEvents(), 1)
}

func TestUntrackStopsFutureSyncRounds(t *testing.T) {
	local, peer := mustPlayer(t), mustPlayer(t)
	realmID, err := realm.RandomID()
	require.NoError(t, err)
	r, err := realm.New(realmID, local, nil)
	require.NoError(t, err)

	identity, err := pqcrypto.GenerateIdentity()
	require.NoError(t, err)

	driver := New(
		&fakeRealmSource{local: local, reg: map[ids.InterfaceID]*realm.Realm{realmID: r}},
		newRecordingTransport(),
		&fakeSigner{identity: identity},
		metrics.NewForTest(),
	)
	driver.Track(realmID, peer)
	driver.Untrack(realmID, peer)

	driver.mu.Lock()
	_, tracked := driver.targets[target{realm: realmID, peer: peer}]
	driver.mu.Unlock()
	require.False(t, tracked)
}
