// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package artifact

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/indra/ids"
)

func mustPlayer(t *testing.T) ids.PlayerID {
	t.Helper()
	p, err := ids.GeneratePlayerID()
	require.NoError(t, err)
	return p
}

func TestPutGetArtifactRoundTrip(t *testing.T) {
	s := NewStore()
	owner := mustPlayer(t)

	leafID := ids.LeafID([]byte("payload"))
	leaf, err := NewLeaf(leafID, 7, owner, []ids.PlayerID{owner}, LeafMessage, 1000)
	require.NoError(t, err)
	require.NoError(t, s.PutLeaf(leaf))

	got, ok := s.GetArtifact(leafID)
	require.True(t, ok)
	require.Equal(t, leaf, got)
}

func TestPutLeafVariantMismatch(t *testing.T) {
	s := NewStore()
	owner := mustPlayer(t)
	docID, err := ids.GenerateTreeID()
	require.NoError(t, err)

	_, err = NewLeaf(docID, 1, owner, []ids.PlayerID{owner}, LeafMessage, 0)
	require.ErrorIs(t, err, ErrVariantMismatch)

	require.ErrorIs(t, s.PutLeaf(&Leaf{IDValue: docID}), ErrVariantMismatch)
}

func TestAddRefKeepsSortedByPosition(t *testing.T) {
	s := NewStore()
	owner := mustPlayer(t)
	parentID, err := ids.GenerateTreeID()
	require.NoError(t, err)
	tree, err := NewTree(parentID, owner, []ids.PlayerID{owner}, TreeCollection, 0)
	require.NoError(t, err)
	require.NoError(t, s.PutTree(tree))

	c1 := ids.LeafID([]byte("a"))
	c2 := ids.LeafID([]byte("b"))
	c3 := ids.LeafID([]byte("c"))

	require.NoError(t, s.AddRef(parentID, Reference{Child: c2, Position: 20}))
	require.NoError(t, s.AddRef(parentID, Reference{Child: c1, Position: 10}))
	require.NoError(t, s.AddRef(parentID, Reference{Child: c3, Position: 30}))

	got, _ := s.GetTree(parentID)
	refs := got.References()
	require.Len(t, refs, 3)
	require.Equal(t, c1, refs[0].Child)
	require.Equal(t, c2, refs[1].Child)
	require.Equal(t, c3, refs[2].Child)
}

func TestComposeThenRemoveRefRestoresOriginal(t *testing.T) {
	s := NewStore()
	owner := mustPlayer(t)
	parentID, err := ids.GenerateTreeID()
	require.NoError(t, err)
	tree, err := NewTree(parentID, owner, []ids.PlayerID{owner}, TreeCollection, 0)
	require.NoError(t, err)
	require.NoError(t, s.PutTree(tree))

	before := append([]Reference(nil), s.mustTree(t, parentID).References()...)

	child := ids.LeafID([]byte("child"))
	require.NoError(t, s.AddRef(parentID, Reference{Child: child, Position: 1}))
	require.NoError(t, s.RemoveRef(parentID, child))

	after := s.mustTree(t, parentID).References()
	require.Equal(t, before, after)
}

func (s *Store) mustTree(t *testing.T, id ids.ArtifactID) *Tree {
	t.Helper()
	tr, ok := s.GetTree(id)
	require.True(t, ok)
	return tr
}

func TestListByTypeAndSteward(t *testing.T) {
	s := NewStore()
	owner := mustPlayer(t)

	id1, _ := ids.GenerateTreeID()
	id2, _ := ids.GenerateTreeID()
	tr1, _ := NewTree(id1, owner, []ids.PlayerID{owner}, TreeQuest, 0)
	tr2, _ := NewTree(id2, owner, []ids.PlayerID{owner}, TreeQuest, 0)
	require.NoError(t, s.PutTree(tr1))
	require.NoError(t, s.PutTree(tr2))

	byType := s.ListByType(TreeQuest)
	require.ElementsMatch(t, []ids.ArtifactID{id1, id2}, byType)

	bySteward := s.ListBySteward(owner)
	require.ElementsMatch(t, []ids.ArtifactID{id1, id2}, bySteward)
}

func TestUpdateStewardReindexes(t *testing.T) {
	s := NewStore()
	owner := mustPlayer(t)
	newOwner := mustPlayer(t)

	id, _ := ids.GenerateTreeID()
	tr, _ := NewTree(id, owner, []ids.PlayerID{owner, newOwner}, TreeDocument, 0)
	require.NoError(t, s.PutTree(tr))

	require.NoError(t, s.UpdateSteward(id, newOwner))

	require.Empty(t, s.ListBySteward(owner))
	require.Equal(t, []ids.ArtifactID{id}, s.ListBySteward(newOwner))
}

func TestNotFoundErrors(t *testing.T) {
	s := NewStore()
	missing, _ := ids.GenerateTreeID()

	require.ErrorIs(t, s.AddRef(missing, Reference{}), ErrNotFound)
	require.ErrorIs(t, s.UpdateAudience(missing, nil), ErrNotFound)
	require.ErrorIs(t, s.UpdateSteward(missing, ids.PlayerID{}), ErrNotFound)
}
