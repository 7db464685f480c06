// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vault implements the owning container that binds one player
// to one artifact store, payload store, and attention store, and
// enforces the stewardship policy the lower-level stores don't.
package vault

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/indra/artifact"
	"github.com/luxfi/indra/attention"
	"github.com/luxfi/indra/ids"
	"github.com/luxfi/indra/log"
	"github.com/luxfi/indra/payload"
)

// acceptKeyPrefix namespaces exchange-acceptance metadata keys on an
// Exchange tree: a participant's acceptance is recorded under
// "accept:<hex player id>".
const acceptKeyPrefix = "accept:"

func acceptKey(pid ids.PlayerID) string {
	return acceptKeyPrefix + hex.EncodeToString(pid[:])
}

// Errors returned by Vault operations.
var (
	ErrNotSteward               = errors.New("vault: caller is not the artifact's steward")
	ErrAlreadyPeered            = errors.New("vault: already peered with this player")
	ErrNotPeered                = errors.New("vault: not peered with this player")
	ErrInvalidOperation         = errors.New("vault: invalid operation")
	ErrExchangeNotFullyAccepted = errors.New("vault: exchange has not been accepted by every participant")
)

// PeerRecord is what a vault remembers about a peer relationship.
type PeerRecord struct {
	DisplayName *string
	SinceMillis int64
}

// CanonicalPeering returns the canonical (lower, higher, since) triple
// for a mutual peering between a and b, independent of call order.
func CanonicalPeering(a, b ids.PlayerID, since int64) (ids.PlayerID, ids.PlayerID, int64) {
	if hex.EncodeToString(a[:]) <= hex.EncodeToString(b[:]) {
		return a, b, since
	}
	return b, a, since
}

// Vault owns one player's local artifact graph.
type Vault struct {
	player   ids.PlayerID
	artifact *artifact.Store
	payload  payload.Store
	attn     *attention.Store
	root     ids.ArtifactID
	heat     HeatParams
	log      log.Logger

	mu           sync.RWMutex
	peers        map[ids.PlayerID]PeerRecord
	currentFocus *ids.ArtifactID
}

// New creates a vault for owner, with a fresh Vault-type root tree
// whose steward and sole initial audience member is owner.
func New(owner ids.PlayerID, nowMillis int64, opts ...Option) (*Vault, error) {
	v := &Vault{
		player:   owner,
		artifact: artifact.NewStore(),
		payload:  payload.NewMemStore(),
		attn:     attention.NewStore(owner),
		heat:     DefaultHeatParams(),
		log:      log.NoOp(),
		peers:    make(map[ids.PlayerID]PeerRecord),
	}
	for _, opt := range opts {
		opt(v)
	}

	rootID, err := ids.GenerateTreeID()
	if err != nil {
		return nil, fmt.Errorf("vault: generate root id: %w", err)
	}
	root, err := artifact.NewTree(rootID, owner, []ids.PlayerID{owner}, artifact.TreeVault, nowMillis)
	if err != nil {
		return nil, err
	}
	if err := v.artifact.PutTree(root); err != nil {
		return nil, err
	}
	v.root = rootID
	return v, nil
}

// Option configures a Vault at construction.
type Option func(*Vault)

// WithLogger attaches a structured logger.
func WithLogger(l log.Logger) Option { return func(v *Vault) { v.log = l } }

// WithHeatParams overrides the default heat decay kernel.
func WithHeatParams(p HeatParams) Option { return func(v *Vault) { v.heat = p } }

// WithPayloadStore overrides the default in-memory payload store, e.g.
// with storage.PebbleBlobStore for a persisted deployment.
func WithPayloadStore(s payload.Store) Option { return func(v *Vault) { v.payload = s } }

// Player returns the vault's owning player.
func (v *Vault) Player() ids.PlayerID { return v.player }

// Root returns the vault's root artifact ID.
func (v *Vault) Root() ids.ArtifactID { return v.root }

// Artifacts exposes the underlying artifact store for read paths
// (navigation, listing) that don't need vault-level authority checks.
func (v *Vault) Artifacts() *artifact.Store { return v.artifact }

// Attention exposes the underlying attention store.
func (v *Vault) Attention() *attention.Store { return v.attn }

// PlaceLeaf hashes payload, stores the bytes, and creates a Leaf record
// stewarded and solely audienced by the owner.
func (v *Vault) PlaceLeaf(data []byte, typ artifact.LeafType, nowMillis int64) (*artifact.Leaf, error) {
	id, err := v.payload.StorePayload(data)
	if err != nil {
		return nil, err
	}
	leaf, err := artifact.NewLeaf(id, int64(len(data)), v.player, []ids.PlayerID{v.player}, typ, nowMillis)
	if err != nil {
		return nil, err
	}
	if err := v.artifact.PutLeaf(leaf); err != nil {
		return nil, err
	}
	return leaf, nil
}

// PlaceTree generates a Doc ID and creates a Tree stewarded by the
// owner. audience must include the owner.
func (v *Vault) PlaceTree(typ artifact.TreeType, audience []ids.PlayerID, nowMillis int64) (*artifact.Tree, error) {
	if !containsPlayer(audience, v.player) {
		return nil, fmt.Errorf("%w: audience must include the owner", ErrInvalidOperation)
	}
	id, err := ids.GenerateTreeID()
	if err != nil {
		return nil, err
	}
	tree, err := artifact.NewTree(id, v.player, audience, typ, nowMillis)
	if err != nil {
		return nil, err
	}
	if err := v.artifact.PutTree(tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func containsPlayer(list []ids.PlayerID, p ids.PlayerID) bool {
	for _, x := range list {
		if x == p {
			return true
		}
	}
	return false
}

// requireSteward enforces that the vault's own player is the current
// steward of parent, returning ErrNotSteward otherwise.
func (v *Vault) requireSteward(target ids.ArtifactID) error {
	a, ok := v.artifact.GetArtifact(target)
	if !ok {
		return artifact.ErrNotFound
	}
	if !artifact.HasSteward(a, v.player) {
		return ErrNotSteward
	}
	return nil
}

// Compose adds a reference from parent to child at position, with an
// optional label. Only the current steward of parent may compose.
func (v *Vault) Compose(parent, child ids.ArtifactID, position int64, label *string) error {
	if err := v.requireSteward(parent); err != nil {
		return err
	}
	return v.artifact.AddRef(parent, artifact.Reference{Child: child, Position: position, Label: label})
}

// RemoveRef removes child from parent's reference list. Only the
// current steward of parent may remove.
func (v *Vault) RemoveRef(parent, child ids.ArtifactID) error {
	if err := v.requireSteward(parent); err != nil {
		return err
	}
	return v.artifact.RemoveRef(parent, child)
}

// SetAudience replaces the audience of target. Only the current steward
// may set it.
func (v *Vault) SetAudience(target ids.ArtifactID, audience []ids.PlayerID) error {
	if err := v.requireSteward(target); err != nil {
		return err
	}
	if len(audience) == 0 {
		a, _ := v.artifact.GetArtifact(target)
		if a == nil || !a.Status().IsRecalled() {
			return fmt.Errorf("%w: empty audience requires a recalled artifact", ErrInvalidOperation)
		}
	}
	return v.artifact.UpdateAudience(target, audience)
}

// TransferStewardship moves stewardship of target to newPID. Only the
// current steward may transfer; after the call the previous steward
// has no further authority over target.
func (v *Vault) TransferStewardship(target ids.ArtifactID, newPID ids.PlayerID) error {
	if err := v.requireSteward(target); err != nil {
		return err
	}
	return v.artifact.UpdateSteward(target, newPID)
}

// NavigateTo appends an attention-switch event moving the owner's focus
// from the current focus to target.
func (v *Vault) NavigateTo(target ids.ArtifactID, nowMillis int64) {
	v.mu.Lock()
	from := v.currentFocus
	to := target
	v.currentFocus = &to
	v.mu.Unlock()

	v.attn.AppendEvent(attention.Event{
		Player:          v.player,
		From:            from,
		To:              &to,
		TimestampMillis: nowMillis,
	})
}

// NavigateBack appends an attention-switch event moving the owner's
// focus from the current focus back to target (e.g. a parent or a
// previous artifact), identical in shape to NavigateTo but named for
// the "back" gesture at the call site.
func (v *Vault) NavigateBack(target ids.ArtifactID, nowMillis int64) {
	v.NavigateTo(target, nowMillis)
}

// CurrentFocus returns the owner's current attention target, if any.
func (v *Vault) CurrentFocus() (ids.ArtifactID, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.currentFocus == nil {
		return ids.ArtifactID{}, false
	}
	return *v.currentFocus, true
}

// Peer records a new peer relationship.
func (v *Vault) Peer(pid ids.PlayerID, displayName *string, sinceMillis int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.peers[pid]; ok {
		return ErrAlreadyPeered
	}
	v.peers[pid] = PeerRecord{DisplayName: displayName, SinceMillis: sinceMillis}
	return nil
}

// Unpeer removes a peer relationship and prunes their attention replica.
func (v *Vault) Unpeer(pid ids.PlayerID) error {
	v.mu.Lock()
	_, ok := v.peers[pid]
	if ok {
		delete(v.peers, pid)
	}
	v.mu.Unlock()
	if !ok {
		return ErrNotPeered
	}
	v.attn.PruneReplica(pid)
	return nil
}

// IsPeer reports whether pid is a current peer.
func (v *Vault) IsPeer(pid ids.PlayerID) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.peers[pid]
	return ok
}

// Peers returns a snapshot of the current peer table.
func (v *Vault) Peers() map[ids.PlayerID]PeerRecord {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[ids.PlayerID]PeerRecord, len(v.peers))
	for k, val := range v.peers {
		out[k] = val
	}
	return out
}

// IngestPeerLog ingests pid's attention log replica, after verifying
// pid is a current peer.
func (v *Vault) IngestPeerLog(pid ids.PlayerID, events []attention.Event) error {
	if !v.IsPeer(pid) {
		return ErrNotPeered
	}
	v.attn.IngestPeerLog(pid, events)
	return nil
}

// Grant builds the Grant record giving grantee access to target under
// mode. Only the current steward may grant. The record is returned, not
// stored: the artifact store keeps no grants list.
func (v *Vault) Grant(target ids.ArtifactID, grantee ids.PlayerID, mode artifact.AccessMode, nowMillis int64) (artifact.Grant, error) {
	if err := v.requireSteward(target); err != nil {
		return artifact.Grant{}, err
	}
	return artifact.Grant{
		Grantee:   grantee,
		Mode:      mode,
		GrantedAt: nowMillis,
		GrantedBy: v.player,
	}, nil
}

// AcceptExchange records that participant accepts exchangeID, by
// setting an accept:<hex> key in the Exchange tree's metadata.
// exchangeID must name a Tree of type TreeExchange, and participant
// must be in its audience.
func (v *Vault) AcceptExchange(exchangeID ids.ArtifactID, participant ids.PlayerID) error {
	tree, ok := v.artifact.GetTree(exchangeID)
	if !ok {
		return artifact.ErrNotFound
	}
	if tree.Type != artifact.TreeExchange {
		return fmt.Errorf("%w: not an exchange", ErrInvalidOperation)
	}
	if !artifact.InAudience(tree, participant) {
		return fmt.Errorf("%w: participant is not party to this exchange", ErrInvalidOperation)
	}
	return v.artifact.SetMetadata(exchangeID, acceptKey(participant), []byte{1})
}

// CompleteExchange reports whether every audience member of exchangeID
// has called AcceptExchange. It returns ErrExchangeNotFullyAccepted
// when at least one has not; it performs no state transition of its
// own beyond this check.
func (v *Vault) CompleteExchange(exchangeID ids.ArtifactID) error {
	tree, ok := v.artifact.GetTree(exchangeID)
	if !ok {
		return artifact.ErrNotFound
	}
	if tree.Type != artifact.TreeExchange {
		return fmt.Errorf("%w: not an exchange", ErrInvalidOperation)
	}
	for _, p := range tree.Audience() {
		if _, accepted := tree.Metadata[acceptKey(p)]; !accepted {
			return ErrExchangeNotFullyAccepted
		}
	}
	return nil
}
