// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package attention implements the per-player append-only attention
// log, peer-replica ingestion, and the integrity check against
// peer-supplied replicas.
package attention

import (
	"sync"

	"github.com/luxfi/indra/ids"
)

// Event is a single attention-switch: the player moved their focus from
// one artifact to another (or in/out of having a focus at all) at a
// point in time.
type Event struct {
	Player          ids.PlayerID
	From            *ids.ArtifactID
	To              *ids.ArtifactID
	TimestampMillis int64
}

// Equal compares two events by value. Direct (==) comparison is unsafe
// because From/To are pointers: two equal-valued but distinct pointers
// would otherwise compare unequal.
func (e Event) Equal(other Event) bool {
	if e.Player != other.Player || e.TimestampMillis != other.TimestampMillis {
		return false
	}
	return aidPtrEqual(e.From, other.From) && aidPtrEqual(e.To, other.To)
}

func aidPtrEqual(a, b *ids.ArtifactID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// IntegrityStatus classifies the relationship between our stored replica
// of a peer's log and a newly peer-provided sequence.
type IntegrityStatus int

const (
	// NoPriorReplica: we have never stored a replica from this player.
	NoPriorReplica IntegrityStatus = iota
	// Consistent: the peer-provided sequence exactly equals ours.
	Consistent
	// Extended: our sequence is a strict prefix of the peer-provided one.
	Extended
	// Diverged: the two sequences differ before either ends, or the
	// peer-provided sequence is a strictly shorter prefix of ours.
	Diverged
)

// IntegrityResult is the nominal result of CheckIntegrity — not an
// error.
type IntegrityResult struct {
	Status IntegrityStatus

	// NewEvents is populated when Status == Extended: the count of
	// trailing events the peer has that we don't.
	NewEvents int

	// FirstMismatchIndex is populated when Status == Diverged.
	FirstMismatchIndex int
}

// Store holds one player's own attention log (single-writer: the owning
// player) plus a side-table of peer-supplied replicas keyed by origin
// player. Peer-replica ingestion never contends with own-log appends,
// so it lives behind its own lock.
type Store struct {
	owner ids.PlayerID

	ownMu  sync.Mutex
	ownLog []Event

	replicaMu sync.RWMutex
	replicas  map[ids.PlayerID][]Event
}

// NewStore returns an attention store for owner's own log.
func NewStore(owner ids.PlayerID) *Store {
	return &Store{
		owner:    owner,
		replicas: make(map[ids.PlayerID][]Event),
	}
}

// AppendEvent appends e to the owner's own log. e.Player is expected to
// equal the store's owner; attention append never fails.
func (s *Store) AppendEvent(e Event) {
	s.ownMu.Lock()
	defer s.ownMu.Unlock()
	s.ownLog = append(s.ownLog, e)
}

// Events returns the full ordered sequence for player: the owner's own
// log if player is the owner, else the stored replica (nil if none).
func (s *Store) Events(player ids.PlayerID) []Event {
	if player == s.owner {
		s.ownMu.Lock()
		defer s.ownMu.Unlock()
		return append([]Event(nil), s.ownLog...)
	}
	s.replicaMu.RLock()
	defer s.replicaMu.RUnlock()
	return append([]Event(nil), s.replicas[player]...)
}

// EventsSince returns events for player with timestamp strictly greater
// than ts.
func (s *Store) EventsSince(player ids.PlayerID, ts int64) []Event {
	all := s.Events(player)
	out := make([]Event, 0, len(all))
	for _, e := range all {
		if e.TimestampMillis > ts {
			out = append(out, e)
		}
	}
	return out
}

// IngestPeerLog replaces our stored replica of player's log with the
// provided sequence. The store never mutates its own log this way, and
// never merges with a prior replica — replacement is a caller-level
// policy decision.
func (s *Store) IngestPeerLog(player ids.PlayerID, events []Event) {
	s.replicaMu.Lock()
	defer s.replicaMu.Unlock()
	s.replicas[player] = append([]Event(nil), events...)
}

// HasReplica reports whether we currently hold a stored replica of
// player's log. A vault uses this to tell which peers have proven
// reachable for replication, as distinct from peers merely listed in
// its peer table.
func (s *Store) HasReplica(player ids.PlayerID) bool {
	s.replicaMu.RLock()
	defer s.replicaMu.RUnlock()
	_, ok := s.replicas[player]
	return ok
}

// PruneReplica discards our stored replica of player's log. Called when
// a peer is removed, to bound the side-table's growth.
func (s *Store) PruneReplica(player ids.PlayerID) {
	s.replicaMu.Lock()
	defer s.replicaMu.Unlock()
	delete(s.replicas, player)
}

// CheckIntegrity compares our stored replica of player's log against a
// newly peer-provided sequence. The player's own log is authoritative;
// this is a pure query — it never mutates the stored replica.
func (s *Store) CheckIntegrity(player ids.PlayerID, peerProvided []Event) IntegrityResult {
	s.replicaMu.RLock()
	stored, ok := s.replicas[player]
	ours := append([]Event(nil), stored...)
	s.replicaMu.RUnlock()

	if !ok {
		return IntegrityResult{Status: NoPriorReplica}
	}

	shorter := ours
	if len(peerProvided) < len(shorter) {
		shorter = peerProvided
	}
	for i := 0; i < len(shorter); i++ {
		if !ours[i].Equal(peerProvided[i]) {
			return IntegrityResult{Status: Diverged, FirstMismatchIndex: i}
		}
	}

	switch {
	case len(ours) == len(peerProvided):
		return IntegrityResult{Status: Consistent}
	case len(peerProvided) > len(ours):
		return IntegrityResult{Status: Extended, NewEvents: len(peerProvided) - len(ours)}
	default:
		// peerProvided is strictly shorter than ours and is a prefix
		// of ours: treated as diverged at the length of the shorter
		// sequence, not as a valid partial replica.
		return IntegrityResult{Status: Diverged, FirstMismatchIndex: len(peerProvided)}
	}
}
