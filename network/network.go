// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package network is the façade that ties identity, vault, realm,
// discovery, and synctask together into the operations an embedding
// application actually calls: peer a contact, create or join a realm,
// send a message, block someone, accept an invite code. These façade
// operations return either their nominal result or an *indraerr.Error.
// The methods Node implements for wire.Handler and synctask.Signer
// (Handle*, Encode) return the underlying errors unwrapped.
package network

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/zeebo/blake3"

	"github.com/luxfi/indra/discovery"
	"github.com/luxfi/indra/ids"
	"github.com/luxfi/indra/indraerr"
	"github.com/luxfi/indra/invite"
	"github.com/luxfi/indra/log"
	"github.com/luxfi/indra/metrics"
	"github.com/luxfi/indra/pqcrypto"
	"github.com/luxfi/indra/realm"
	"github.com/luxfi/indra/synctask"
	"github.com/luxfi/indra/vault"
	"github.com/luxfi/indra/wire"
)

// connectionRequestKind tags an EventCustom carried on a player's inbox
// realm: CustomBytes holds a bech32m contact invite code for the sender.
const connectionRequestKind = "connection_request"

// Node is one participant's running instance of the collaboration
// substrate: one identity, one vault, a set of tracked realms, and the
// discovery/sync machinery that keeps them converging with peers.
type Node struct {
	identity *pqcrypto.Identity
	kem      *pqcrypto.KEMKeyPair
	vault    *vault.Vault
	topology discovery.Topology
	transport synctask.Transport
	driver   *synctask.Driver
	metrics  *metrics.Metrics
	log      log.Logger

	mu     sync.RWMutex
	realms map[ids.InterfaceID]*realm.Realm

	vaultOpts []vault.Option // consumed by New; empty thereafter
}

// Option configures a Node at construction.
type Option func(*Node)

// WithLogger attaches a structured logger, propagated to the vault and
// sync driver as well.
func WithLogger(l log.Logger) Option { return func(n *Node) { n.log = l } }

// WithVaultOptions passes through additional vault.Option values (e.g.
// vault.WithHeatParams, vault.WithPayloadStore) to the underlying vault.
func WithVaultOptions(opts ...vault.Option) Option {
	return func(n *Node) { n.vaultOpts = append(n.vaultOpts, opts...) }
}

// DerivePlayerID computes the PlayerID bound to identity: BLAKE3 of its
// packed verifying key, so it's stable across restarts and derivable by
// anyone who has exchanged the identity's public key.
func DerivePlayerID(identity *pqcrypto.Identity) ids.PlayerID {
	return DerivePlayerIDFromVerifyingKey(identity.VerifyingKeyBytes())
}

// DerivePlayerIDFromVerifyingKey derives a PlayerID from a packed
// verifying key directly, for code paths (e.g. routing an inbound
// envelope to its sender) that have the key bytes but not a full
// *pqcrypto.Identity.
func DerivePlayerIDFromVerifyingKey(verifyingKey []byte) ids.PlayerID {
	sum := blake3.Sum256(verifyingKey)
	var pid ids.PlayerID
	copy(pid[:], sum[:])
	return pid
}

// New constructs a Node bound to identity, backed by transport for
// sending signed envelopes and topology for peer discovery.
func New(identity *pqcrypto.Identity, kem *pqcrypto.KEMKeyPair, nowMillis int64,
	transport synctask.Transport, topology discovery.Topology, m *metrics.Metrics, opts ...Option) (*Node, error) {
	n := &Node{
		identity:  identity,
		kem:       kem,
		topology:  topology,
		transport: transport,
		metrics:   m,
		log:       log.NoOp(),
		realms:    make(map[ids.InterfaceID]*realm.Realm),
	}
	for _, opt := range opts {
		opt(n)
	}

	player := DerivePlayerID(identity)
	v, err := vault.New(player, nowMillis, append(n.vaultOpts, vault.WithLogger(n.log))...)
	if err != nil {
		return nil, indraerr.New(indraerr.InvalidOperation, err)
	}
	n.vault = v
	n.vaultOpts = nil
	n.driver = synctask.New(n, transport, n, m, synctask.WithLogger(n.log))
	return n, nil
}

// Player returns the node's own PlayerID.
func (n *Node) Player() ids.PlayerID { return n.vault.Player() }

// Vault exposes the underlying vault for artifact- and attention-level
// operations that don't belong on this façade.
func (n *Node) Vault() *vault.Vault { return n.vault }

// Driver exposes the sync driver, e.g. so an embedding application can
// call Run(ctx) on it directly.
func (n *Node) Driver() *synctask.Driver { return n.driver }

// Realm implements synctask.RealmSource.
func (n *Node) Realm(id ids.InterfaceID) (*realm.Realm, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	r, ok := n.realms[id]
	return r, ok
}

// LocalPlayer implements synctask.RealmSource.
func (n *Node) LocalPlayer() ids.PlayerID { return n.Player() }

// Encode implements synctask.Signer.
func (n *Node) Encode(msg wire.NetworkMessage) (*wire.SignedNetworkMessage, error) {
	return wire.Encode(msg, n.identity)
}

func (n *Node) registerRealm(r *realm.Realm) {
	n.mu.Lock()
	n.realms[r.ID] = r
	n.mu.Unlock()
}

func (n *Node) forgetRealm(id ids.InterfaceID) {
	n.mu.Lock()
	delete(n.realms, id)
	n.mu.Unlock()
}

// ensurePersonalRealm returns (creating if needed) a realm whose key is
// derived solely from this node's own signing key, for the home and
// inbox realms that only the owner ever joins directly.
func (n *Node) ensurePersonalRealm(ctx context.Context, id ids.InterfaceID) (*realm.Realm, error) {
	if r, ok := n.Realm(id); ok {
		return r, nil
	}
	key, err := pqcrypto.DeriveRealmKey(n.identity.SigningKeyBytes(), id)
	if err != nil {
		return nil, indraerr.New(indraerr.Crypto, err)
	}
	r, err := realm.New(id, n.Player(), key)
	if err != nil {
		return nil, indraerr.New(indraerr.InvalidOperation, err)
	}
	n.registerRealm(r)
	if err := n.topology.JoinTopic(ctx, id); err != nil {
		return nil, indraerr.New(indraerr.Transport, err)
	}
	return r, nil
}

// HomeRealm returns (creating if needed) this node's personal realm,
// used for self-only state such as device sync.
func (n *Node) HomeRealm(ctx context.Context) (*realm.Realm, error) {
	return n.ensurePersonalRealm(ctx, realm.HomeRealmID(n.Player()))
}

// InboxRealm returns (creating if needed) this node's personal inbox
// realm, which receives connection-request events from players who
// have this node's contact invite code.
func (n *Node) InboxRealm(ctx context.Context) (*realm.Realm, error) {
	return n.ensurePersonalRealm(ctx, realm.InboxRealmID(n.Player()))
}

// CreateRealm creates (or returns, if already created) the peer-set
// realm for this node plus members. The realm's symmetric key is
// derived from its own ID: a peer-set realm's membership is public
// knowledge to anyone who can compute PeerSetID over the same players,
// so the key guards against accidental cross-talk rather than against
// a third party who already knows the member list.
func (n *Node) CreateRealm(ctx context.Context, members []ids.PlayerID) (*realm.Realm, error) {
	all := append([]ids.PlayerID{n.Player()}, members...)
	id := realm.PeerSetID(all)
	if r, ok := n.Realm(id); ok {
		return r, nil
	}
	key, err := pqcrypto.DeriveRealmKey(id[:], id)
	if err != nil {
		return nil, indraerr.New(indraerr.Crypto, err)
	}
	r, err := realm.New(id, n.Player(), key)
	if err != nil {
		return nil, indraerr.New(indraerr.InvalidOperation, err)
	}
	for _, m := range members {
		if m == n.Player() {
			continue
		}
		if err := r.AddMember(m); err != nil {
			return nil, indraerr.New(indraerr.InvalidOperation, err)
		}
	}
	n.registerRealm(r)
	if err := n.topology.JoinTopic(ctx, id); err != nil {
		return nil, indraerr.New(indraerr.Transport, err)
	}
	for _, m := range members {
		if m != n.Player() {
			n.driver.Track(id, m)
		}
	}
	return r, nil
}

// JoinRealm registers local state for a realm this node has an invite
// for, tracking introducer as the first sync partner. The realm's full
// membership and history arrive over the first sync rounds.
func (n *Node) JoinRealm(ctx context.Context, inv invite.RealmInvite, introducer ids.PlayerID) (*realm.Realm, error) {
	if r, ok := n.Realm(inv.Realm); ok {
		return r, nil
	}
	r, err := realm.New(inv.Realm, n.Player(), inv.Key)
	if err != nil {
		return nil, indraerr.New(indraerr.InvalidOperation, err)
	}
	n.registerRealm(r)
	if err := n.topology.JoinTopic(ctx, inv.Realm); err != nil {
		return nil, indraerr.New(indraerr.Transport, err)
	}
	if !introducer.IsEmpty() {
		n.driver.Track(inv.Realm, introducer)
	}
	return r, nil
}

// LeaveRealm stops tracking a realm: it untracks every sync target over
// it and withdraws the topology announcement. It does not attempt to
// remove other members' copies of this node from the realm's CRDT.
func (n *Node) LeaveRealm(ctx context.Context, realmID ids.InterfaceID) error {
	r, ok := n.Realm(realmID)
	if !ok {
		return indraerr.New(indraerr.NotFound, errors.Newf("network: realm %s is not tracked", realmID))
	}
	n.untrackRealmLocally(ctx, r)
	if err := n.topology.LeaveTopic(ctx, realmID); err != nil {
		return indraerr.New(indraerr.Transport, err)
	}
	return nil
}

// untrackRealmLocally removes the local copy and every sync target for
// r, without touching discovery; used by both LeaveRealm and the
// BlockContact cascade.
func (n *Node) untrackRealmLocally(ctx context.Context, r *realm.Realm) {
	members, _ := r.Members()
	for _, m := range members {
		if m != n.Player() {
			n.driver.Untrack(r.ID, m)
		}
	}
	n.forgetRealm(r.ID)
}

// Peer records a new contact relationship and asks the topology to
// establish reachability with them.
func (n *Node) Peer(ctx context.Context, pid ids.PlayerID, displayName *string, nowMillis int64) error {
	if err := n.vault.Peer(pid, displayName, nowMillis); err != nil {
		return indraerr.New(indraerr.AlreadyPeered, err)
	}
	if err := n.topology.RequestIntroduction(ctx, pid); err != nil {
		return indraerr.New(indraerr.Transport, err)
	}
	return nil
}

// BlockContact removes pid as a contact and makes this node leave every
// realm that currently contains pid as a member, even realms with other
// members present; realms that never contained pid are left untouched.
// Any pending inbox events authored by pid are purged without being
// marked delivered, so they never resurface after the block.
func (n *Node) BlockContact(ctx context.Context, pid ids.PlayerID) error {
	if err := n.vault.Unpeer(pid); err != nil {
		return indraerr.New(indraerr.NotPeered, err)
	}

	// Personal realms (home, inbox) are never left on a block: they're
	// always ours regardless of who has posted to them. Every other
	// tracked realm the blocked peer belongs to is left outright, even
	// one with other members still present.
	homeID := realm.HomeRealmID(n.Player())
	inboxID := realm.InboxRealmID(n.Player())

	n.mu.RLock()
	affected := make([]*realm.Realm, 0)
	for id, r := range n.realms {
		if id == homeID || id == inboxID {
			continue
		}
		if r.IsMember(pid) {
			affected = append(affected, r)
		}
	}
	n.mu.RUnlock()

	for _, r := range affected {
		n.untrackRealmLocally(ctx, r)
		if err := n.topology.LeaveTopic(ctx, r.ID); err != nil {
			return indraerr.New(indraerr.Transport, err)
		}
	}

	if home, ok := n.Realm(homeID); ok {
		home.PurgeOrigin(n.Player(), pid)
	}
	if inbox, ok := n.Realm(inboxID); ok {
		inbox.PurgeOrigin(n.Player(), pid)
	}
	return nil
}

// SendMessage appends a message event to realmID's log and wakes the
// sync driver for every other current member, so delivery doesn't wait
// for the next scheduled tick.
func (n *Node) SendMessage(realmID ids.InterfaceID, body []byte) (ids.EventID, error) {
	r, ok := n.Realm(realmID)
	if !ok {
		return ids.EventID{}, indraerr.New(indraerr.NotFound, errors.Newf("network: realm %s is not tracked", realmID))
	}
	evtID, err := r.Append(n.Player(), realm.EventMessage, realm.InterfaceEvent{MessageBytes: body})
	if err != nil {
		return ids.EventID{}, indraerr.New(indraerr.InvalidOperation, err)
	}
	n.metrics.EventsAppended.Inc()

	members, _ := r.Members()
	for _, m := range members {
		if m != n.Player() {
			n.driver.NotifyLocalChange(realmID, m)
		}
	}
	return evtID, nil
}

// MarkRealmRead records that this node has read up through globalSeq in
// realmID.
func (n *Node) MarkRealmRead(realmID ids.InterfaceID, globalSeq uint64) error {
	r, ok := n.Realm(realmID)
	if !ok {
		return indraerr.New(indraerr.NotFound, errors.Newf("network: realm %s is not tracked", realmID))
	}
	if err := r.MarkRead(n.Player(), globalSeq); err != nil {
		return indraerr.New(indraerr.InvalidOperation, err)
	}
	return nil
}

// SentimentReport summarizes recent co-attention between this node and
// a peer: how often their focus targets coincided within the queried
// window, and when that last happened.
type SentimentReport struct {
	Peer              ids.PlayerID
	SharedFocusCount  int
	LastCoFocusMillis int64
}

// Sentiment reports co-attention between this node and peer over the
// preceding windowMillis, as a lightweight signal of how actively the
// relationship is being used rather than a durable metric.
func (n *Node) Sentiment(peer ids.PlayerID, nowMillis, windowMillis int64) (SentimentReport, error) {
	if !n.vault.IsPeer(peer) {
		return SentimentReport{}, indraerr.New(indraerr.NotPeered, vault.ErrNotPeered)
	}
	since := nowMillis - windowMillis
	own := n.vault.Attention().EventsSince(n.Player(), since)
	theirs := n.vault.Attention().EventsSince(peer, since)

	report := SentimentReport{Peer: peer}
	for _, oe := range own {
		if oe.To == nil {
			continue
		}
		for _, te := range theirs {
			if te.To == nil || *oe.To != *te.To {
				continue
			}
			report.SharedFocusCount++
			ts := oe.TimestampMillis
			if te.TimestampMillis > ts {
				ts = te.TimestampMillis
			}
			if ts > report.LastCoFocusMillis {
				report.LastCoFocusMillis = ts
			}
		}
	}
	return report, nil
}

// MyContactInvite renders this node's own contact invite code, for
// sharing out of band (a link, a QR code, a paste into chat).
func (n *Node) MyContactInvite() (string, error) {
	code, err := invite.EncodeContact(invite.ContactInvite{
		Player:       n.Player(),
		VerifyingKey: n.identity.VerifyingKeyBytes(),
	})
	if err != nil {
		return "", indraerr.New(indraerr.Serialization, err)
	}
	return code, nil
}

// AcceptContactInvite decodes a bech32m contact invite code, peers with
// the named player, and requests topology introduction.
func (n *Node) AcceptContactInvite(ctx context.Context, code string, nowMillis int64) error {
	inv, err := invite.DecodeContact(code)
	if err != nil {
		return indraerr.New(indraerr.Serialization, err)
	}
	return n.Peer(ctx, inv.Player, nil, nowMillis)
}

// AcceptRealmInvite decodes a realm invite code and joins the realm it
// names, using introducer as the first sync partner.
func (n *Node) AcceptRealmInvite(ctx context.Context, code string, introducer ids.PlayerID) (*realm.Realm, error) {
	inv, err := invite.DecodeRealm(code)
	if err != nil {
		return nil, indraerr.New(indraerr.Serialization, err)
	}
	return n.JoinRealm(ctx, inv, introducer)
}

// RequestConnection posts this node's contact invite code into peer's
// inbox realm (which must already be tracked, e.g. via JoinRealm against
// a previously exchanged inbox realm invite), so peer can accept it
// asynchronously via ProcessInbox.
func (n *Node) RequestConnection(peerInboxRealm ids.InterfaceID) error {
	code, err := n.MyContactInvite()
	if err != nil {
		return err
	}
	r, ok := n.Realm(peerInboxRealm)
	if !ok {
		return indraerr.New(indraerr.NotFound, errors.Newf("network: inbox realm %s is not tracked", peerInboxRealm))
	}
	if _, err := r.Append(n.Player(), realm.EventCustom, realm.InterfaceEvent{
		CustomKind:  connectionRequestKind,
		CustomBytes: []byte(code),
	}); err != nil {
		return indraerr.New(indraerr.InvalidOperation, err)
	}
	members, _ := r.Members()
	for _, m := range members {
		if m != n.Player() {
			n.driver.NotifyLocalChange(peerInboxRealm, m)
		}
	}
	return nil
}

// ProcessInbox drains this node's own inbox realm of pending connection
// requests, peering with and requesting introduction to each requester
// in turn. It returns the players it just peered with.
func (n *Node) ProcessInbox(ctx context.Context, nowMillis int64) ([]ids.PlayerID, error) {
	inbox, err := n.InboxRealm(ctx)
	if err != nil {
		return nil, err
	}
	var accepted []ids.PlayerID
	for _, evt := range inbox.PendingFor(n.Player()) {
		if evt.Kind != realm.EventCustom || evt.CustomKind != connectionRequestKind {
			continue
		}
		inv, err := invite.DecodeContact(string(evt.CustomBytes))
		if err != nil {
			n.log.Warn("network: malformed connection request in inbox", "origin", evt.Origin, "err", err)
			continue
		}
		if err := n.vault.Peer(inv.Player, nil, nowMillis); err != nil && !errors.Is(err, vault.ErrAlreadyPeered) {
			return accepted, indraerr.New(indraerr.InvalidOperation, err)
		}
		if err := n.topology.RequestIntroduction(ctx, inv.Player); err != nil {
			return accepted, indraerr.New(indraerr.Transport, err)
		}
		accepted = append(accepted, inv.Player)
		if err := inbox.MarkDelivered(n.Player(), evt.ID()); err != nil {
			return accepted, indraerr.New(indraerr.InvalidOperation, err)
		}
	}
	return accepted, nil
}

// HandleSyncRequest implements wire.Handler: merge the inbound sync
// payload and, if the exchange isn't converged yet, send a response
// back immediately rather than waiting for the next scheduled round.
func (n *Node) HandleSyncRequest(from ids.PlayerID, req wire.SyncRequest) error {
	reply, err := n.driver.MergeDelta(req.Realm, from, req.StateVector)
	if err != nil {
		n.metrics.CryptoFailures.Inc()
		return err
	}
	if reply == nil {
		return nil
	}
	env, err := n.Encode(wire.NetworkMessage{
		Kind:         wire.KindSyncResponse,
		SyncResponse: &wire.SyncResponse{Realm: req.Realm, Payload: reply},
	})
	if err != nil {
		return err
	}
	return n.transport.Send(context.Background(), from, env)
}

// HandleSyncResponse implements wire.Handler.
func (n *Node) HandleSyncResponse(from ids.PlayerID, resp wire.SyncResponse) error {
	_, err := n.driver.MergeDelta(resp.Realm, from, resp.Payload)
	return err
}

// HandleInterfaceEvent implements wire.Handler. The realm CRDT is the
// authoritative carrier of event data; a pushed InterfaceEvent is
// treated as a low-latency nudge to pull the realm's actual state via
// an eager sync round with its sender, rather than decoded in place.
func (n *Node) HandleInterfaceEvent(from ids.PlayerID, evt wire.InterfaceEvent) error {
	if _, ok := n.Realm(evt.Realm); !ok {
		return nil
	}
	n.driver.NotifyLocalChange(evt.Realm, from)
	return nil
}

// HandleEventAck implements wire.Handler.
func (n *Node) HandleEventAck(from ids.PlayerID, ack wire.EventAck) error {
	r, ok := n.Realm(ack.Realm)
	if !ok {
		return nil
	}
	if err := r.MarkDelivered(from, ids.EventID{Origin: ack.Origin, Sequence: ack.Through}); err != nil {
		return err
	}
	n.metrics.EventsDelivered.Inc()
	return nil
}
