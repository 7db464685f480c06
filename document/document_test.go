// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package document

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/indra/artifact"
	"github.com/luxfi/indra/ids"
)

func mustPlayer(t *testing.T) ids.PlayerID {
	t.Helper()
	p, err := ids.GeneratePlayerID()
	require.NoError(t, err)
	return p
}

func TestNewDocumentRoundTripsIdentity(t *testing.T) {
	steward := mustPlayer(t)
	treeID, err := ids.GenerateTreeID()
	require.NoError(t, err)

	doc, err := New(treeID, steward, artifact.TreeDocument.String(), []ids.PlayerID{steward}, 1000)
	require.NoError(t, err)

	got, err := doc.Steward()
	require.NoError(t, err)
	require.Equal(t, steward, got)

	status, err := doc.Status()
	require.NoError(t, err)
	require.Equal(t, "active", status)

	audience, err := doc.Audience()
	require.NoError(t, err)
	require.Equal(t, []ids.PlayerID{steward}, audience)
}

func TestAppendAndRemoveRef(t *testing.T) {
	steward := mustPlayer(t)
	treeID, err := ids.GenerateTreeID()
	require.NoError(t, err)
	doc, err := New(treeID, steward, "document", []ids.PlayerID{steward}, 1000)
	require.NoError(t, err)

	child, err := ids.GenerateTreeID()
	require.NoError(t, err)
	label := "chapter one"

	require.NoError(t, doc.AppendRef(artifact.Reference{Child: child, Position: 0, Label: &label}))

	refs, err := doc.References()
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, child, refs[0].Child)
	require.Equal(t, "chapter one", *refs[0].Label)

	require.NoError(t, doc.RemoveRef(child))
	refs, err = doc.References()
	require.NoError(t, err)
	require.Empty(t, refs)
}

func TestAddAndRemoveGrant(t *testing.T) {
	steward := mustPlayer(t)
	grantee := mustPlayer(t)
	treeID, err := ids.GenerateTreeID()
	require.NoError(t, err)
	doc, err := New(treeID, steward, "document", []ids.PlayerID{steward}, 1000)
	require.NoError(t, err)

	grant := artifact.Grant{
		Grantee:   grantee,
		Mode:      artifact.TimedAccess(5000),
		GrantedAt: 1000,
		GrantedBy: steward,
	}
	require.NoError(t, doc.AddGrant(grant))

	grants, err := doc.Grants()
	require.NoError(t, err)
	require.Len(t, grants, 1)
	expiresAt, ok := grants[0].Mode.ExpiresAt()
	require.True(t, ok)
	require.Equal(t, int64(5000), expiresAt)

	require.NoError(t, doc.RemoveGrant(grantee))
	grants, err = doc.Grants()
	require.NoError(t, err)
	require.Empty(t, grants)
}

func TestMetadataRoundTrip(t *testing.T) {
	steward := mustPlayer(t)
	treeID, err := ids.GenerateTreeID()
	require.NoError(t, err)
	doc, err := New(treeID, steward, "document", []ids.PlayerID{steward}, 1000)
	require.NoError(t, err)

	_, ok, err := doc.GetMetadata("title")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, doc.SetMetadata("title", []byte("Design notes")))
	v, ok, err := doc.GetMetadata("title")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("Design notes"), v)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	steward := mustPlayer(t)
	treeID, err := ids.GenerateTreeID()
	require.NoError(t, err)
	doc, err := New(treeID, steward, "document", []ids.PlayerID{steward}, 1000)
	require.NoError(t, err)
	require.NoError(t, doc.SetMetadata("k", []byte("v")))

	saved := doc.Save()
	loaded, err := Load(saved)
	require.NoError(t, err)

	v, ok, err := loaded.GetMetadata("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)
}

func TestMergeCombinesConcurrentEdits(t *testing.T) {
	steward := mustPlayer(t)
	treeID, err := ids.GenerateTreeID()
	require.NoError(t, err)

	base, err := New(treeID, steward, "document", []ids.PlayerID{steward}, 1000)
	require.NoError(t, err)
	saved := base.Save()

	replicaA, err := Load(saved)
	require.NoError(t, err)
	replicaB, err := Load(saved)
	require.NoError(t, err)

	childA, err := ids.GenerateTreeID()
	require.NoError(t, err)
	childB, err := ids.GenerateTreeID()
	require.NoError(t, err)

	require.NoError(t, replicaA.AppendRef(artifact.Reference{Child: childA, Position: 0}))
	require.NoError(t, replicaB.AppendRef(artifact.Reference{Child: childB, Position: 1}))

	require.NoError(t, replicaA.Merge(replicaB))

	refs, err := replicaA.References()
	require.NoError(t, err)
	require.Len(t, refs, 2)
}
