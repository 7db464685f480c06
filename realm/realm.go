// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package realm implements the N-peer shared space: CRDT-backed
// membership and event log, per-peer pending-delivery tracking, and
// the three realm-ID derivation families.
package realm

import (
	"errors"
	"fmt"
	"sync"

	automerge "github.com/automerge/automerge-go"

	"github.com/luxfi/indra/ids"
)

var (
	// ErrNotMember is returned by operations scoped to a peer who isn't
	// (or is no longer) a member of the realm.
	ErrNotMember = errors.New("realm: peer is not a member")
	// ErrAlreadyMember is returned by AddMember for a peer already present.
	ErrAlreadyMember = errors.New("realm: peer is already a member")
)

const (
	keyMembers = "members"
	keyEvents  = "events"
)

// Realm is the unit of multi-party sync.
type Realm struct {
	ID  ids.InterfaceID
	Key []byte // symmetric interface key; nil until assigned

	mu         sync.RWMutex
	doc        *automerge.Doc
	syncStates map[ids.PlayerID]*automerge.SyncState

	events     []record // cache rebuilt from doc after Append/MergeSync
	nextSeq    map[ids.PlayerID]uint64
	nextGlobal uint64

	pending map[ids.PlayerID]map[uint64]struct{} // peer -> globalSeq set
	cursor  map[ids.PlayerID]uint64              // peer -> highest acked globalSeq
}

// New creates an empty realm with creator as its sole initial member.
func New(id ids.InterfaceID, creator ids.PlayerID, key []byte) (*Realm, error) {
	doc := automerge.New()
	if err := doc.RootMap().Set(keyMembers, automerge.NewMap()); err != nil {
		return nil, err
	}
	if err := doc.RootMap().Set(keyEvents, automerge.NewList()); err != nil {
		return nil, err
	}
	r := &Realm{
		ID:         id,
		Key:        key,
		doc:        doc,
		syncStates: make(map[ids.PlayerID]*automerge.SyncState),
		nextSeq:    make(map[ids.PlayerID]uint64),
		pending:    make(map[ids.PlayerID]map[uint64]struct{}),
		cursor:     make(map[ids.PlayerID]uint64),
	}
	if err := r.addMemberLocked(creator); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Realm) membersMap() (*automerge.Map, error) {
	v, err := r.doc.RootMap().Get(keyMembers)
	if err != nil {
		return nil, err
	}
	return v.Map()
}

func (r *Realm) eventsList() (*automerge.List, error) {
	v, err := r.doc.RootMap().Get(keyEvents)
	if err != nil {
		return nil, err
	}
	return v.List()
}

// Members returns the current member set.
func (r *Realm) Members() ([]ids.PlayerID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, err := r.membersMap()
	if err != nil {
		return nil, err
	}
	keys, err := m.Keys()
	if err != nil {
		return nil, err
	}
	out := make([]ids.PlayerID, 0, len(keys))
	for _, k := range keys {
		pid, err := parsePlayerID(k)
		if err != nil {
			return nil, err
		}
		out = append(out, pid)
	}
	return out, nil
}

// IsMember reports whether pid is currently a member.
func (r *Realm) IsMember(pid ids.PlayerID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isMemberLocked(pid)
}

func (r *Realm) isMemberLocked(pid ids.PlayerID) bool {
	m, err := r.membersMap()
	if err != nil {
		return false
	}
	_, err = m.Get(pid.String())
	return err == nil
}

// AddMember adds pid to the realm and initializes its pending cursor at
// the beginning of history, so it receives every event on next sync.
func (r *Realm) AddMember(pid ids.PlayerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isMemberLocked(pid) {
		return ErrAlreadyMember
	}
	return r.addMemberLocked(pid)
}

func (r *Realm) addMemberLocked(pid ids.PlayerID) error {
	m, err := r.membersMap()
	if err != nil {
		return err
	}
	if err := m.Set(pid.String(), true); err != nil {
		return err
	}
	if _, ok := r.pending[pid]; !ok {
		r.pending[pid] = make(map[uint64]struct{})
		for _, rec := range r.events {
			if rec.event.Origin != pid {
				r.pending[pid][rec.globalSeq] = struct{}{}
			}
		}
		r.cursor[pid] = 0
	}
	return nil
}

// RemoveMember removes pid from the realm and discards its pending
// cursor.
func (r *Realm) RemoveMember(pid ids.PlayerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, err := r.membersMap()
	if err != nil {
		return err
	}
	if err := m.Delete(pid.String()); err != nil {
		return err
	}
	delete(r.pending, pid)
	delete(r.cursor, pid)
	return nil
}

// Append adds an event authored by origin to the realm's log, assigning
// it the next per-origin sequence number, and enqueues it as pending
// for every current member except origin.
func (r *Realm) Append(origin ids.PlayerID, kind EventKind, body InterfaceEvent) (ids.EventID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isMemberLocked(origin) {
		return ids.EventID{}, ErrNotMember
	}

	seq := r.nextSeq[origin]
	r.nextSeq[origin] = seq + 1

	body.Kind = kind
	body.Origin = origin
	body.Sequence = seq

	globalSeq := r.nextGlobal
	r.nextGlobal++

	list, err := r.eventsList()
	if err != nil {
		return ids.EventID{}, err
	}
	if err := list.Append(encodeEvent(body, globalSeq)); err != nil {
		return ids.EventID{}, err
	}

	r.events = append(r.events, record{globalSeq: globalSeq, event: body})
	for peer := range r.pending {
		if peer != origin {
			r.pending[peer][globalSeq] = struct{}{}
		}
	}
	return body.ID(), nil
}

// EventsSince returns events with realm-global insertion order strictly
// greater than seq.
func (r *Realm) EventsSince(seq uint64) []InterfaceEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []InterfaceEvent
	for _, rec := range r.events {
		if rec.globalSeq > seq {
			out = append(out, rec.event)
		}
	}
	return out
}

// AllEvents returns the full CRDT-visible log in insertion order.
func (r *Realm) AllEvents() []InterfaceEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]InterfaceEvent, len(r.events))
	for i, rec := range r.events {
		out[i] = rec.event
	}
	return out
}

// PendingFor returns peer's outstanding (undelivered) events, in
// insertion order.
func (r *Realm) PendingFor(peer ids.PlayerID) []InterfaceEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.pending[peer]
	if !ok {
		return nil
	}
	var out []InterfaceEvent
	for _, rec := range r.events {
		if _, pending := set[rec.globalSeq]; pending {
			out = append(out, rec.event)
		}
	}
	return out
}

// MarkDelivered advances peer's delivery cursor to the event named by
// upToEventID: every pending entry up to and including that event's
// insertion point is dropped.
func (r *Realm) MarkDelivered(peer ids.PlayerID, upToEventID ids.EventID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var target uint64
	found := false
	for _, rec := range r.events {
		if rec.event.ID() == upToEventID {
			target = rec.globalSeq
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("realm: mark_delivered: unknown event %s", upToEventID)
	}

	set, ok := r.pending[peer]
	if !ok {
		return ErrNotMember
	}
	for gs := range set {
		if gs <= target {
			delete(set, gs)
		}
	}
	if target > r.cursor[peer] {
		r.cursor[peer] = target
	}
	return nil
}

// StateVector returns the realm CRDT's current change heads, opaque to
// callers but stable for a given document state.
func (r *Realm) StateVector() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []byte
	for _, h := range r.doc.Heads() {
		out = append(out, h[:]...)
	}
	return out
}

// syncStateFor returns (creating if needed) the sync state tracked for peer.
func (r *Realm) syncStateFor(peer ids.PlayerID) *automerge.SyncState {
	s, ok := r.syncStates[peer]
	if !ok {
		s = automerge.NewSyncState(r.doc)
		r.syncStates[peer] = s
	}
	return s
}

// GenerateSync produces the next sync message to send to peer, or nil
// if peer is already up to date.
func (r *Realm) GenerateSync(peer ids.PlayerID) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, hasMore := r.doc.GenerateSyncMessage(r.syncStateFor(peer))
	if !hasMore {
		return nil
	}
	return msg
}

// MergeSync applies a sync message received from peer, then rebuilds
// the in-memory event/member views from the merged CRDT state.
func (r *Realm) MergeSync(peer ids.PlayerID, msg []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.doc.ReceiveSyncMessage(r.syncStateFor(peer), msg); err != nil {
		return fmt.Errorf("realm: merge sync: %w", err)
	}
	return r.rebuildLocked()
}

// rebuildLocked recomputes the events cache and pending queues from the
// CRDT document. Called after MergeSync, since a remote delta may have
// added events and members this replica didn't know about.
func (r *Realm) rebuildLocked() error {
	list, err := r.eventsList()
	if err != nil {
		return err
	}
	n, err := list.Len()
	if err != nil {
		return err
	}

	newEvents := make([]record, 0, n)
	maxGlobal := uint64(0)
	maxSeq := make(map[ids.PlayerID]uint64)
	for i := 0; i < n; i++ {
		v, err := list.Get(i)
		if err != nil {
			return err
		}
		s, err := v.Str()
		if err != nil {
			return err
		}
		rec, err := decodeEvent(s)
		if err != nil {
			return err
		}
		newEvents = append(newEvents, rec)
		if rec.globalSeq >= maxGlobal {
			maxGlobal = rec.globalSeq + 1
		}
		if rec.event.Sequence >= maxSeq[rec.event.Origin] {
			maxSeq[rec.event.Origin] = rec.event.Sequence + 1
		}
	}

	knownGlobal := make(map[uint64]struct{}, len(r.events))
	for _, rec := range r.events {
		knownGlobal[rec.globalSeq] = struct{}{}
	}

	r.events = newEvents
	r.nextGlobal = maxGlobal
	for origin, seq := range maxSeq {
		if seq > r.nextSeq[origin] {
			r.nextSeq[origin] = seq
		}
	}

	m, err := r.membersMap()
	if err != nil {
		return err
	}
	keys, err := m.Keys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		pid, err := parsePlayerID(k)
		if err != nil {
			return err
		}
		if _, tracked := r.pending[pid]; !tracked {
			r.pending[pid] = make(map[uint64]struct{})
			r.cursor[pid] = 0
		}
	}

	// Any event newly visible after the merge that this replica hadn't
	// already seen becomes pending for every member except its origin.
	for _, rec := range newEvents {
		if _, already := knownGlobal[rec.globalSeq]; already {
			continue
		}
		for peer, set := range r.pending {
			if peer != rec.event.Origin && rec.globalSeq > r.cursor[peer] {
				set[rec.globalSeq] = struct{}{}
			}
		}
	}
	return nil
}
