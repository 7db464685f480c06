// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package realm

import (
	"fmt"
	"unicode/utf8"

	automerge "github.com/automerge/automerge-go"

	"github.com/luxfi/indra/ids"
)

const (
	keyAlias        = "alias"
	keyReadCursors  = "read_cursors"
	keyDocumentsMap = "documents"
)

// maxAliasLen bounds a realm alias at 77 characters.
const maxAliasLen = 77

// ErrAliasTooLong is returned by SetAlias for an over-length alias.
var ErrAliasTooLong = fmt.Errorf("realm: alias exceeds %d characters", maxAliasLen)

func (r *Realm) ensureExtrasLocked() error {
	root := r.doc.RootMap()
	if _, err := root.Get(keyReadCursors); err != nil {
		if err := root.Set(keyReadCursors, automerge.NewMap()); err != nil {
			return err
		}
	}
	if _, err := root.Get(keyDocumentsMap); err != nil {
		if err := root.Set(keyDocumentsMap, automerge.NewMap()); err != nil {
			return err
		}
	}
	return nil
}

// Alias returns the realm's CRDT-synced nickname, or "" if unset.
func (r *Realm) Alias() (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, err := r.doc.RootMap().Get(keyAlias)
	if err != nil {
		return "", nil
	}
	return v.Str()
}

// SetAlias sets the realm's nickname, up to maxAliasLen characters.
func (r *Realm) SetAlias(alias string) error {
	if utf8.RuneCountInString(alias) > maxAliasLen {
		return ErrAliasTooLong
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.RootMap().Set(keyAlias, alias)
}

// ClearAlias removes the realm's nickname.
func (r *Realm) ClearAlias() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.RootMap().Delete(keyAlias)
}

// MarkRead records that peer has read up through globalSeq.
func (r *Realm) MarkRead(peer ids.PlayerID, globalSeq uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureExtrasLocked(); err != nil {
		return err
	}
	m, err := r.readCursorsLocked()
	if err != nil {
		return err
	}
	return m.Set(peer.String(), int64(globalSeq))
}

// LastReadSeq returns the last globalSeq peer has marked read, or 0.
func (r *Realm) LastReadSeq(peer ids.PlayerID) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	last, _, err := r.lastReadLocked(peer)
	return last, err
}

// UnreadCount returns how many logged events fall after peer's last
// read cursor; every logged event counts while peer has marked nothing
// read.
func (r *Realm) UnreadCount(peer ids.PlayerID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	last, marked, err := r.lastReadLocked(peer)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, rec := range r.events {
		if !marked || rec.globalSeq > last {
			count++
		}
	}
	return count, nil
}

// lastReadLocked returns peer's read cursor and whether one is set.
func (r *Realm) lastReadLocked(peer ids.PlayerID) (uint64, bool, error) {
	m, err := r.readCursorsLocked()
	if err != nil {
		return 0, false, nil
	}
	v, err := m.Get(peer.String())
	if err != nil {
		return 0, false, nil
	}
	n, err := v.Int64()
	if err != nil {
		return 0, false, err
	}
	return uint64(n), true, nil
}

func (r *Realm) readCursorsLocked() (*automerge.Map, error) {
	v, err := r.doc.RootMap().Get(keyReadCursors)
	if err != nil {
		return nil, err
	}
	return v.Map()
}

// RegisterDocument records that a named nested CRDT document (e.g. a
// per-realm alias or read-cursor document) exists, so DocumentNames can
// enumerate what a realm carries beyond its core member/event schema.
func (r *Realm) RegisterDocument(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureExtrasLocked(); err != nil {
		return err
	}
	v, err := r.doc.RootMap().Get(keyDocumentsMap)
	if err != nil {
		return err
	}
	m, err := v.Map()
	if err != nil {
		return err
	}
	return m.Set(name, true)
}

// HasDocument reports whether name has been registered.
func (r *Realm) HasDocument(name string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, err := r.doc.RootMap().Get(keyDocumentsMap)
	if err != nil {
		return false, nil
	}
	m, err := v.Map()
	if err != nil {
		return false, err
	}
	_, err = m.Get(name)
	return err == nil, nil
}

// PurgeOrigin drops every pending entry authored by origin from peer's
// undelivered queue, without marking them delivered. Used to discard
// connection-request events from a contact that's being blocked, so
// they're never surfaced once the relationship is cut.
func (r *Realm) PurgeOrigin(peer, origin ids.PlayerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.pending[peer]
	if !ok {
		return
	}
	for _, rec := range r.events {
		if rec.event.Origin == origin {
			delete(set, rec.globalSeq)
		}
	}
}

// DocumentNames returns every registered document name.
func (r *Realm) DocumentNames() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, err := r.doc.RootMap().Get(keyDocumentsMap)
	if err != nil {
		return nil, nil
	}
	m, err := v.Map()
	if err != nil {
		return nil, err
	}
	return m.Keys()
}
