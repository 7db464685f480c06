// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package artifact

import (
	"sort"
	"sync"

	"github.com/luxfi/indra/ids"
)

// Store is the in-memory mapping from artifact ID to artifact record,
// with secondary indexes by type and steward.
type Store struct {
	mu sync.RWMutex

	leaves map[ids.ArtifactID]*Leaf
	trees  map[ids.ArtifactID]*Tree

	byType    map[string][]ids.ArtifactID // TreeType.String() -> insertion-ordered AIDs
	bySteward map[ids.PlayerID][]ids.ArtifactID
}

// NewStore returns an empty artifact store.
func NewStore() *Store {
	return &Store{
		leaves:    make(map[ids.ArtifactID]*Leaf),
		trees:     make(map[ids.ArtifactID]*Tree),
		byType:    make(map[string][]ids.ArtifactID),
		bySteward: make(map[ids.PlayerID][]ids.ArtifactID),
	}
}

// PutLeaf inserts or replaces a leaf record.
func (s *Store) PutLeaf(l *Leaf) error {
	if !l.IDValue.IsBlob() {
		return ErrVariantMismatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.leaves[l.IDValue]
	s.leaves[l.IDValue] = l
	if !existed {
		s.indexSteward(l.IDValue, l.StewardID)
	}
	return nil
}

// PutTree inserts or replaces a tree record.
func (s *Store) PutTree(t *Tree) error {
	if !t.IDValue.IsDoc() {
		return ErrVariantMismatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.trees[t.IDValue]
	s.trees[t.IDValue] = t
	if !existed {
		s.indexType(t.IDValue, t.Type.String())
		s.indexSteward(t.IDValue, t.StewardID)
	}
	return nil
}

func (s *Store) indexType(id ids.ArtifactID, typ string) {
	s.byType[typ] = append(s.byType[typ], id)
}

func (s *Store) indexSteward(id ids.ArtifactID, pid ids.PlayerID) {
	s.bySteward[pid] = append(s.bySteward[pid], id)
}

// GetLeaf returns the leaf record for id, if present.
func (s *Store) GetLeaf(id ids.ArtifactID) (*Leaf, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leaves[id]
	return l, ok
}

// GetTree returns the tree record for id, if present.
func (s *Store) GetTree(id ids.ArtifactID) (*Tree, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trees[id]
	return t, ok
}

// GetArtifact returns either kind of record, uniformly.
func (s *Store) GetArtifact(id ids.ArtifactID) (Artifact, bool) {
	if id.IsBlob() {
		l, ok := s.GetLeaf(id)
		if !ok {
			return nil, false
		}
		return l, true
	}
	t, ok := s.GetTree(id)
	if !ok {
		return nil, false
	}
	return t, true
}

// ListByType returns the AIDs of all tree artifacts of typ, in
// insertion order.
func (s *Store) ListByType(typ TreeType) []ids.ArtifactID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.byType[typ.String()]
	return append([]ids.ArtifactID(nil), out...)
}

// ListBySteward returns the AIDs whose steward equals pid.
func (s *Store) ListBySteward(pid ids.PlayerID) []ids.ArtifactID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.bySteward[pid]
	return append([]ids.ArtifactID(nil), out...)
}

// AddRef inserts ref into parent's reference list, keeping it sorted by
// Position ascending with ties broken by insertion order. If a ref with
// the same child already exists it is replaced in place (keeping its
// original slot in the stable sort).
func (s *Store) AddRef(parent ids.ArtifactID, ref Reference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trees[parent]
	if !ok {
		return ErrNotFound
	}

	replaced := false
	for i, r := range t.Refs {
		if r.Child == ref.Child {
			t.Refs[i] = ref
			replaced = true
			break
		}
	}
	if !replaced {
		t.Refs = append(t.Refs, ref)
	}
	sort.SliceStable(t.Refs, func(i, j int) bool {
		return t.Refs[i].Position < t.Refs[j].Position
	})
	return nil
}

// RemoveRef removes the first reference to child from parent.
func (s *Store) RemoveRef(parent ids.ArtifactID, child ids.ArtifactID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trees[parent]
	if !ok {
		return ErrNotFound
	}
	for i, r := range t.Refs {
		if r.Child == child {
			t.Refs = append(t.Refs[:i], t.Refs[i+1:]...)
			return nil
		}
	}
	return nil
}

// UpdateAudience replaces the artifact's audience list.
func (s *Store) UpdateAudience(id ids.ArtifactID, audience []ids.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.IsBlob() {
		l, ok := s.leaves[id]
		if !ok {
			return ErrNotFound
		}
		l.AudienceSet = append([]ids.PlayerID(nil), audience...)
		return nil
	}
	t, ok := s.trees[id]
	if !ok {
		return ErrNotFound
	}
	t.AudienceSet = append([]ids.PlayerID(nil), audience...)
	return nil
}

// UpdateSteward sets the artifact's steward field directly. This layer
// performs no authority check — the vault enforces that only a current
// steward may call this.
func (s *Store) UpdateSteward(id ids.ArtifactID, pid ids.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.IsBlob() {
		l, ok := s.leaves[id]
		if !ok {
			return ErrNotFound
		}
		s.reindexSteward(id, l.StewardID, pid)
		l.StewardID = pid
		return nil
	}
	t, ok := s.trees[id]
	if !ok {
		return ErrNotFound
	}
	s.reindexSteward(id, t.StewardID, pid)
	t.StewardID = pid
	return nil
}

func (s *Store) reindexSteward(id ids.ArtifactID, from, to ids.PlayerID) {
	list := s.bySteward[from]
	for i, x := range list {
		if x == id {
			s.bySteward[from] = append(list[:i], list[i+1:]...)
			break
		}
	}
	s.bySteward[to] = append(s.bySteward[to], id)
}

// SetStatus sets the artifact's status field.
func (s *Store) SetStatus(id ids.ArtifactID, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.IsBlob() {
		l, ok := s.leaves[id]
		if !ok {
			return ErrNotFound
		}
		l.status = status
		return nil
	}
	t, ok := s.trees[id]
	if !ok {
		return ErrNotFound
	}
	t.status = status
	return nil
}

// SetMetadata sets a key in a tree's metadata map.
func (s *Store) SetMetadata(id ids.ArtifactID, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trees[id]
	if !ok {
		return ErrNotFound
	}
	t.Metadata[key] = append([]byte(nil), value...)
	return nil
}
