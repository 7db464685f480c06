// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package payload implements content-addressed byte storage keyed by
// BLAKE3 of the payload. The default Store is in-memory;
// storage.PebbleBlobStore provides the on-disk equivalent.
package payload

import (
	"errors"
	"sync"

	"github.com/luxfi/indra/ids"
)

var (
	// ErrNotFound is returned by Get for an absent blob.
	ErrNotFound = errors.New("payload: not found")
	// ErrNotBlob is returned when the caller passes a Doc-variant ID to
	// an operation that only accepts content-addressed Blob IDs.
	ErrNotBlob = errors.New("payload: id is not a blob id")
	// ErrMismatchedHash is returned on load paths that recompute the
	// hash of stored bytes and find it doesn't match the key. This is
	// impossible by construction through Store, but is checkable when
	// loading bytes from an external source (e.g. disk, a peer).
	ErrMismatchedHash = errors.New("payload: stored bytes do not hash to their key")
)

// Store is a content-addressed byte store.
type Store interface {
	// StorePayload stores bytes and returns their Blob ArtifactID.
	// Storing the same bytes twice is a no-op and returns the same ID.
	StorePayload(data []byte) (ids.ArtifactID, error)
	// GetPayload returns the bytes for id, or ErrNotFound.
	GetPayload(id ids.ArtifactID) ([]byte, error)
	// HasPayload reports whether id's bytes are present.
	HasPayload(id ids.ArtifactID) bool
}

// MemStore is an in-memory Store.
type MemStore struct {
	mu   sync.RWMutex
	data map[ids.ArtifactID][]byte
}

// NewMemStore returns an empty in-memory payload store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[ids.ArtifactID][]byte)}
}

func (m *MemStore) StorePayload(data []byte) (ids.ArtifactID, error) {
	id := ids.LeafID(data)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[id]; !ok {
		m.data[id] = append([]byte(nil), data...)
	}
	return id, nil
}

func (m *MemStore) GetPayload(id ids.ArtifactID) ([]byte, error) {
	if !id.IsBlob() {
		return nil, ErrNotBlob
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *MemStore) HasPayload(id ids.ArtifactID) bool {
	if !id.IsBlob() {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[id]
	return ok
}

var _ Store = (*MemStore)(nil)
