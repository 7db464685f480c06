// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wire implements the network message envelope: CBOR encoding,
// ML-DSA-65 signing and verification, and dispatch of decoded messages
// to their handlers.
package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/luxfi/indra/ids"
	"github.com/luxfi/indra/pqcrypto"
)

// CurrentVersion is the envelope format version this build produces.
const CurrentVersion = 1

var (
	// ErrUnsupportedVersion is returned when decoding an envelope whose
	// Version field this build doesn't understand.
	ErrUnsupportedVersion = errors.New("wire: unsupported envelope version")
	// ErrUnsigned is returned by VerifyAndDecode when a message carries
	// no signature and the caller's policy does not allow that.
	ErrUnsigned = errors.New("wire: message is unsigned")
)

// MessageKind tags the variant carried by a NetworkMessage.
type MessageKind uint8

const (
	KindSyncRequest MessageKind = iota
	KindSyncResponse
	KindInterfaceEvent
	KindEventAck
)

// SyncRequest asks the peer for everything they have past the sender's
// state vector for a realm.
type SyncRequest struct {
	Realm       ids.InterfaceID
	StateVector []byte
}

// SyncResponse carries an automerge sync payload generated against the
// requester's state vector.
type SyncResponse struct {
	Realm   ids.InterfaceID
	Payload []byte
}

// InterfaceEvent carries one realm event, AEAD-sealed under the realm
// key; Nonce is embedded in Ciphertext by pqcrypto.Seal.
type InterfaceEvent struct {
	Realm      ids.InterfaceID
	Ciphertext []byte
}

// EventAck acknowledges delivery of events up to and including Through.
type EventAck struct {
	Realm   ids.InterfaceID
	Origin  ids.PlayerID
	Through uint64
}

// NetworkMessage is the tagged union carried inside a signed envelope.
// Exactly one of the Kind-matching fields is populated.
type NetworkMessage struct {
	Kind           MessageKind
	SyncRequest    *SyncRequest    `cbor:",omitempty"`
	SyncResponse   *SyncResponse   `cbor:",omitempty"`
	InterfaceEvent *InterfaceEvent `cbor:",omitempty"`
	EventAck       *EventAck       `cbor:",omitempty"`
}

// SignedNetworkMessage is what actually crosses the wire: the encoded
// message, a signature over that encoding, and the signer's verifying
// key so the receiver can check it without a prior handshake.
type SignedNetworkMessage struct {
	Version            uint8
	Message            []byte // CBOR-encoded NetworkMessage
	Signature          []byte
	SenderVerifyingKey []byte
}

// Encode CBOR-encodes msg and signs the encoding with identity,
// producing a SignedNetworkMessage ready to send.
func Encode(msg NetworkMessage, identity *pqcrypto.Identity) (*SignedNetworkMessage, error) {
	body, err := cbor.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("wire: encode message: %w", err)
	}
	sig, err := identity.Sign(body)
	if err != nil {
		return nil, fmt.Errorf("wire: sign message: %w", err)
	}
	return &SignedNetworkMessage{
		Version:            CurrentVersion,
		Message:            body,
		Signature:          sig,
		SenderVerifyingKey: identity.VerifyingKeyBytes(),
	}, nil
}

// Marshal CBOR-encodes the full envelope for transport.
func Marshal(env *SignedNetworkMessage) ([]byte, error) {
	return cbor.Marshal(env)
}

// Unmarshal decodes a CBOR-encoded envelope without verifying it.
func Unmarshal(data []byte) (*SignedNetworkMessage, error) {
	var env SignedNetworkMessage
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("wire: decode envelope: %w", err)
	}
	if env.Version != CurrentVersion {
		return nil, ErrUnsupportedVersion
	}
	return &env, nil
}

// VerifyPolicy controls whether VerifyAndDecode accepts an unsigned
// envelope. Production deployments use Strict; AllowUnsigned exists
// only to ease a rolling upgrade from a pre-signing build.
type VerifyPolicy uint8

const (
	Strict VerifyPolicy = iota
	AllowUnsigned
)

// VerifyAndDecode checks env's signature (per policy) and decodes its
// message body.
func VerifyAndDecode(env *SignedNetworkMessage, policy VerifyPolicy) (NetworkMessage, error) {
	var msg NetworkMessage
	if len(env.Signature) == 0 || len(env.SenderVerifyingKey) == 0 {
		if policy != AllowUnsigned {
			return msg, ErrUnsigned
		}
	} else if err := pqcrypto.Verify(env.SenderVerifyingKey, env.Message, env.Signature); err != nil {
		return msg, fmt.Errorf("wire: %w", err)
	}
	if err := cbor.Unmarshal(env.Message, &msg); err != nil {
		return msg, fmt.Errorf("wire: decode message: %w", err)
	}
	return msg, nil
}

// Handler dispatches a decoded, verified message arriving for a realm
// to the code that knows how to act on it.
type Handler interface {
	HandleSyncRequest(from ids.PlayerID, req SyncRequest) error
	HandleSyncResponse(from ids.PlayerID, resp SyncResponse) error
	HandleInterfaceEvent(from ids.PlayerID, evt InterfaceEvent) error
	HandleEventAck(from ids.PlayerID, ack EventAck) error
}

// Dispatch routes msg to the matching Handler method.
func Dispatch(h Handler, from ids.PlayerID, msg NetworkMessage) error {
	switch msg.Kind {
	case KindSyncRequest:
		if msg.SyncRequest == nil {
			return fmt.Errorf("wire: %w: sync request kind with nil payload", errMalformed)
		}
		return h.HandleSyncRequest(from, *msg.SyncRequest)
	case KindSyncResponse:
		if msg.SyncResponse == nil {
			return fmt.Errorf("wire: %w: sync response kind with nil payload", errMalformed)
		}
		return h.HandleSyncResponse(from, *msg.SyncResponse)
	case KindInterfaceEvent:
		if msg.InterfaceEvent == nil {
			return fmt.Errorf("wire: %w: interface event kind with nil payload", errMalformed)
		}
		return h.HandleInterfaceEvent(from, *msg.InterfaceEvent)
	case KindEventAck:
		if msg.EventAck == nil {
			return fmt.Errorf("wire: %w: event ack kind with nil payload", errMalformed)
		}
		return h.HandleEventAck(from, *msg.EventAck)
	default:
		return fmt.Errorf("wire: %w: unknown message kind %d", errMalformed, msg.Kind)
	}
}

var errMalformed = errors.New("malformed message")
