// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/indra/ids"
	"github.com/luxfi/indra/pqcrypto"
)

func TestEncodeMarshalVerifyRoundTrip(t *testing.T) {
	identity, err := pqcrypto.GenerateIdentity()
	require.NoError(t, err)

	realm := ids.InterfaceID{1, 2, 3}
	msg := NetworkMessage{
		Kind:        KindSyncRequest,
		SyncRequest: &SyncRequest{Realm: realm, StateVector: []byte("sv")},
	}

	env, err := Encode(msg, identity)
	require.NoError(t, err)

	raw, err := Marshal(env)
	require.NoError(t, err)

	decodedEnv, err := Unmarshal(raw)
	require.NoError(t, err)

	decoded, err := VerifyAndDecode(decodedEnv, Strict)
	require.NoError(t, err)
	require.Equal(t, KindSyncRequest, decoded.Kind)
	require.Equal(t, realm, decoded.SyncRequest.Realm)
}

func TestVerifyAndDecodeRejectsUnsignedByDefault(t *testing.T) {
	msg := NetworkMessage{Kind: KindEventAck, EventAck: &EventAck{Through: 3}}
	body, err := cbor.Marshal(msg)
	require.NoError(t, err)

	env := &SignedNetworkMessage{Version: CurrentVersion, Message: body}
	_, err = VerifyAndDecode(env, Strict)
	require.ErrorIs(t, err, ErrUnsigned)

	decoded, err := VerifyAndDecode(env, AllowUnsigned)
	require.NoError(t, err)
	require.Equal(t, uint64(3), decoded.EventAck.Through)
}

func TestUnmarshalRejectsUnknownVersion(t *testing.T) {
	identity, err := pqcrypto.GenerateIdentity()
	require.NoError(t, err)
	env, err := Encode(NetworkMessage{Kind: KindEventAck, EventAck: &EventAck{}}, identity)
	require.NoError(t, err)
	env.Version = 99

	raw, err := Marshal(env)
	require.NoError(t, err)

	_, err = Unmarshal(raw)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

type fakeHandler struct {
	gotSyncRequest *SyncRequest
}

func (f *fakeHandler) HandleSyncRequest(from ids.PlayerID, req SyncRequest) error {
	f.gotSyncRequest = &req
	return nil
}
func (f *fakeHandler) HandleSyncResponse(ids.PlayerID, SyncResponse) error   { return nil }
func (f *fakeHandler) HandleInterfaceEvent(ids.PlayerID, InterfaceEvent) error { return nil }
func (f *fakeHandler) HandleEventAck(ids.PlayerID, EventAck) error          { return nil }

func TestDispatchRoutesToMatchingHandler(t *testing.T) {
	h := &fakeHandler{}
	realm := ids.InterfaceID{7}
	err := Dispatch(h, ids.PlayerID{}, NetworkMessage{
		Kind:        KindSyncRequest,
		SyncRequest: &SyncRequest{Realm: realm},
	})
	require.NoError(t, err)
	require.NotNil(t, h.gotSyncRequest)
	require.Equal(t, realm, h.gotSyncRequest.Realm)
}

func TestDispatchRejectsMalformedMessage(t *testing.T) {
	h := &fakeHandler{}
	err := Dispatch(h, ids.PlayerID{}, NetworkMessage{Kind: KindSyncRequest})
	require.Error(t, err)
}
