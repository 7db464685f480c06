// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package discovery abstracts how a node finds and connects to peers,
// so the network façade and synctask driver never depend on a specific
// transport. Topology implementations plug in anything from a local
// rendezvous server to a DHT; this package only defines the contract
// and a connected/disconnected event feed.
package discovery

import (
	"context"
	"sync"

	"github.com/luxfi/indra/ids"
)

// PeerEventKind tags the variant carried by a PeerEvent.
type PeerEventKind uint8

const (
	PeerConnected PeerEventKind = iota
	PeerDisconnected
)

// PeerEvent reports a peer connectivity transition observed by a Topology.
type PeerEvent struct {
	Kind PeerEventKind
	Peer ids.PlayerID
}

// Topology resolves realm membership to reachable peers and surfaces
// connectivity changes.
type Topology interface {
	// JoinTopic announces participation in a realm so peers can find us.
	JoinTopic(ctx context.Context, realm ids.InterfaceID) error
	// LeaveTopic withdraws a prior JoinTopic announcement.
	LeaveTopic(ctx context.Context, realm ids.InterfaceID) error
	// RequestIntroduction asks the topology to establish a transport-level
	// connection to peer, out of band from any specific realm.
	RequestIntroduction(ctx context.Context, peer ids.PlayerID) error
	// PeerEvents streams connectivity transitions until ctx is cancelled.
	PeerEvents(ctx context.Context) <-chan PeerEvent
}

// InMemory is a Topology fake for tests and single-process demos: peers
// registered against the same InMemory instance can "see" each other's
// connect/disconnect transitions with no real network involved.
type InMemory struct {
	mu        sync.Mutex
	topics    map[ids.InterfaceID]map[ids.PlayerID]struct{}
	connected map[ids.PlayerID]struct{}
	subs      []chan PeerEvent
}

// NewInMemory creates an empty InMemory topology.
func NewInMemory() *InMemory {
	return &InMemory{
		topics:    make(map[ids.InterfaceID]map[ids.PlayerID]struct{}),
		connected: make(map[ids.PlayerID]struct{}),
	}
}

// JoinTopic registers self's presence in realm. self is taken from the
// context via WithSelf; callers that never set it get ErrNoSelf.
func (m *InMemory) JoinTopic(ctx context.Context, realm ids.InterfaceID) error {
	self, ok := selfFrom(ctx)
	if !ok {
		return ErrNoSelf
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.topics[realm] == nil {
		m.topics[realm] = make(map[ids.PlayerID]struct{})
	}
	m.topics[realm][self] = struct{}{}
	return nil
}

// LeaveTopic withdraws self's presence in realm.
func (m *InMemory) LeaveTopic(ctx context.Context, realm ids.InterfaceID) error {
	self, ok := selfFrom(ctx)
	if !ok {
		return ErrNoSelf
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.topics[realm], self)
	return nil
}

// RequestIntroduction marks both self and peer as connected and fans
// out PeerConnected events to every subscriber.
func (m *InMemory) RequestIntroduction(ctx context.Context, peer ids.PlayerID) error {
	self, ok := selfFrom(ctx)
	if !ok {
		return ErrNoSelf
	}
	m.mu.Lock()
	m.connected[self] = struct{}{}
	m.connected[peer] = struct{}{}
	subs := append([]chan PeerEvent(nil), m.subs...)
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- PeerEvent{Kind: PeerConnected, Peer: peer}:
		default:
		}
	}
	return nil
}

// PeerEvents returns a channel of connectivity transitions, closed when
// ctx is cancelled.
func (m *InMemory) PeerEvents(ctx context.Context) <-chan PeerEvent {
	ch := make(chan PeerEvent, 32)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, c := range m.subs {
			if c == ch {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

// MembersOf returns the set of peers that have announced JoinTopic for realm.
func (m *InMemory) MembersOf(realm ids.InterfaceID) []ids.PlayerID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ids.PlayerID, 0, len(m.topics[realm]))
	for p := range m.topics[realm] {
		out = append(out, p)
	}
	return out
}

type selfKey struct{}

// ErrNoSelf is returned by InMemory operations when the context carries
// no local identity via WithSelf.
var ErrNoSelf = errNoSelf{}

type errNoSelf struct{}

func (errNoSelf) Error() string { return "discovery: context carries no local identity" }

// WithSelf attaches the calling node's identity to ctx, for InMemory's
// bookkeeping. Real Topology implementations typically know their own
// identity at construction instead.
func WithSelf(ctx context.Context, self ids.PlayerID) context.Context {
	return context.WithValue(ctx, selfKey{}, self)
}

func selfFrom(ctx context.Context) (ids.PlayerID, bool) {
	v, ok := ctx.Value(selfKey{}).(ids.PlayerID)
	return v, ok
}
