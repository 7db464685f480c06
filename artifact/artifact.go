// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package artifact defines the universal content unit of the
// collaboration substrate — the Leaf/Tree artifact model — and the
// in-memory store that indexes artifacts by ID, type, and steward.
package artifact

import (
	"errors"

	"github.com/luxfi/indra/ids"
)

// Errors returned by Store operations.
var (
	ErrNotFound        = errors.New("artifact: not found")
	ErrVariantMismatch = errors.New("artifact: id variant does not match record kind")
)

// LeafType enumerates the kinds of immutable content a Leaf can hold.
type LeafType struct {
	name string
}

func (t LeafType) String() string { return t.name }

var (
	LeafMessage = LeafType{"message"}
	LeafFile    = LeafType{"file"}
	LeafImage   = LeafType{"image"}
	LeafToken   = LeafType{"token"}
)

// CustomLeafType returns a named, implementation-defined leaf type.
func CustomLeafType(name string) LeafType { return LeafType{name} }

// TreeType enumerates the kinds of mutable container a Tree can be,
// including the exchange/quest/need/offering/intention container types
// carried over from the original gifting-economy design.
type TreeType struct {
	name string
}

func (t TreeType) String() string { return t.name }

var (
	TreeVault      = TreeType{"vault"}
	TreeStory      = TreeType{"story"}
	TreeGallery    = TreeType{"gallery"}
	TreeDocument   = TreeType{"document"}
	TreeRequest    = TreeType{"request"}
	TreeExchange   = TreeType{"exchange"}
	TreeCollection = TreeType{"collection"}
	TreeInbox      = TreeType{"inbox"}
	TreeQuest      = TreeType{"quest"}
	TreeNeed       = TreeType{"need"}
	TreeOffering   = TreeType{"offering"}
	TreeIntention  = TreeType{"intention"}
)

// CustomTreeType returns a named, implementation-defined tree type.
func CustomTreeType(name string) TreeType { return TreeType{name} }

// Status is the lifecycle state of a Tree artifact. Transitions form a
// partial order: Active -> Recalled, Active -> Transferred. Neither
// terminal state transitions further in a single-node view.
type Status struct {
	kind         statusKind
	recalledAt   int64
	transferTo   ids.PlayerID
	transferAt   int64
}

type statusKind uint8

const (
	statusActive statusKind = iota
	statusRecalled
	statusTransferred
)

// ActiveStatus is the status of every artifact at creation.
func ActiveStatus() Status { return Status{kind: statusActive} }

// RecalledStatus marks an artifact withdrawn by its steward at atMillis.
func RecalledStatus(atMillis int64) Status {
	return Status{kind: statusRecalled, recalledAt: atMillis}
}

// TransferredStatus marks an artifact whose stewardship moved to "to" at atMillis.
func TransferredStatus(to ids.PlayerID, atMillis int64) Status {
	return Status{kind: statusTransferred, transferTo: to, transferAt: atMillis}
}

func (s Status) IsActive() bool      { return s.kind == statusActive }
func (s Status) IsRecalled() bool    { return s.kind == statusRecalled }
func (s Status) IsTransferred() bool { return s.kind == statusTransferred }

// RecalledAt returns the recall timestamp and whether the status is Recalled.
func (s Status) RecalledAt() (int64, bool) {
	return s.recalledAt, s.kind == statusRecalled
}

// Transfer returns the transfer target and timestamp, and whether the
// status is Transferred.
func (s Status) Transfer() (ids.PlayerID, int64, bool) {
	return s.transferTo, s.transferAt, s.kind == statusTransferred
}

// Reference is one entry in a Tree's ordered child list: the child's
// ID, a sort key, and an optional human label.
type Reference struct {
	Child    ids.ArtifactID
	Position int64
	Label    *string
}

// AccessMode controls what a grant on an artifact document permits.
type AccessMode struct {
	kind      accessKind
	expiresAt int64
}

type accessKind uint8

const (
	AccessRevocable accessKind = iota
	AccessPermanent
	AccessTimed
	AccessTransfer
)

func RevocableAccess() AccessMode  { return AccessMode{kind: AccessRevocable} }
func PermanentAccess() AccessMode  { return AccessMode{kind: AccessPermanent} }
func TransferAccess() AccessMode   { return AccessMode{kind: AccessTransfer} }
func TimedAccess(expiresAt int64) AccessMode {
	return AccessMode{kind: AccessTimed, expiresAt: expiresAt}
}

func (m AccessMode) ExpiresAt() (int64, bool) {
	return m.expiresAt, m.kind == AccessTimed
}

// Kind renders the access mode's variant as a stable string tag, for
// code (like the CRDT document encoding) that needs to serialize an
// AccessMode without reaching into its unexported fields.
func (m AccessMode) Kind() string {
	switch m.kind {
	case AccessRevocable:
		return "revocable"
	case AccessPermanent:
		return "permanent"
	case AccessTimed:
		return "timed"
	case AccessTransfer:
		return "transfer"
	default:
		return "revocable"
	}
}

// AccessModeFromKind reconstructs an AccessMode from the tag Kind
// produces and, for "timed", the expiry it carried.
func AccessModeFromKind(kind string, expiresAt int64) AccessMode {
	switch kind {
	case "permanent":
		return PermanentAccess()
	case "timed":
		return TimedAccess(expiresAt)
	case "transfer":
		return TransferAccess()
	default:
		return RevocableAccess()
	}
}

// Grant records that grantee may access an artifact under mode, per the
// CRDT document's grants list.
type Grant struct {
	Grantee   ids.PlayerID
	Mode      AccessMode
	GrantedAt int64
	GrantedBy ids.PlayerID
}

// Leaf is an immutable, content-addressed unit of content.
type Leaf struct {
	IDValue   ids.ArtifactID
	Size      int64
	StewardID ids.PlayerID
	AudienceSet []ids.PlayerID
	Type      LeafType
	CreatedAt int64
	status    Status
}

// NewLeaf constructs a Leaf. id must be a Blob ArtifactID; callers
// normally obtain it via ids.LeafID(payload).
func NewLeaf(id ids.ArtifactID, size int64, steward ids.PlayerID, audience []ids.PlayerID, typ LeafType, createdAt int64) (*Leaf, error) {
	if !id.IsBlob() {
		return nil, ErrVariantMismatch
	}
	return &Leaf{
		IDValue:     id,
		Size:        size,
		StewardID:   steward,
		AudienceSet: append([]ids.PlayerID(nil), audience...),
		Type:        typ,
		CreatedAt:   createdAt,
		status:      ActiveStatus(),
	}, nil
}

func (l *Leaf) ID() ids.ArtifactID        { return l.IDValue }
func (l *Leaf) Steward() ids.PlayerID     { return l.StewardID }
func (l *Leaf) Audience() []ids.PlayerID  { return l.AudienceSet }
func (l *Leaf) Status() Status            { return l.status }
func (l *Leaf) SetStatus(s Status)        { l.status = s }
func (l *Leaf) Clone() *Leaf {
	c := *l
	c.AudienceSet = append([]ids.PlayerID(nil), l.AudienceSet...)
	return &c
}

// Tree is a mutable, ordered container referencing other artifacts.
type Tree struct {
	IDValue     ids.ArtifactID
	StewardID   ids.PlayerID
	AudienceSet []ids.PlayerID
	Refs        []Reference
	Metadata    map[string][]byte
	Type        TreeType
	status      Status
	CreatedAt   int64
}

// NewTree constructs an Active Tree. id must be a Doc ArtifactID. The
// audience is not checked here: NewTree neither requires the steward in
// it nor rejects an empty one; Vault.PlaceTree and Vault.SetAudience
// apply those rules.
func NewTree(id ids.ArtifactID, steward ids.PlayerID, audience []ids.PlayerID, typ TreeType, createdAt int64) (*Tree, error) {
	if !id.IsDoc() {
		return nil, ErrVariantMismatch
	}
	return &Tree{
		IDValue:     id,
		StewardID:   steward,
		AudienceSet: append([]ids.PlayerID(nil), audience...),
		Metadata:    make(map[string][]byte),
		Type:        typ,
		status:      ActiveStatus(),
		CreatedAt:   createdAt,
	}, nil
}

func (t *Tree) ID() ids.ArtifactID       { return t.IDValue }
func (t *Tree) Steward() ids.PlayerID    { return t.StewardID }
func (t *Tree) Audience() []ids.PlayerID { return t.AudienceSet }
func (t *Tree) Status() Status           { return t.status }
func (t *Tree) SetStatus(s Status)       { t.status = s }

// References returns the tree's references sorted by position
// ascending; ties are broken by original insertion order.
func (t *Tree) References() []Reference {
	out := append([]Reference(nil), t.Refs...)
	// Refs is maintained in sorted order by Store.AddRef; this copy
	// preserves ties because sort.SliceStable is used there.
	return out
}

func (t *Tree) Clone() *Tree {
	c := *t
	c.AudienceSet = append([]ids.PlayerID(nil), t.AudienceSet...)
	c.Refs = append([]Reference(nil), t.Refs...)
	c.Metadata = make(map[string][]byte, len(t.Metadata))
	for k, v := range t.Metadata {
		c.Metadata[k] = append([]byte(nil), v...)
	}
	return &c
}

// Artifact is the uniform view over Leaf and Tree used by code that
// doesn't care which kind it's holding.
type Artifact interface {
	ID() ids.ArtifactID
	Steward() ids.PlayerID
	Audience() []ids.PlayerID
	Status() Status
}

var (
	_ Artifact = (*Leaf)(nil)
	_ Artifact = (*Tree)(nil)
)

// HasSteward reports whether pid is the artifact's current steward.
func HasSteward(a Artifact, pid ids.PlayerID) bool {
	return a.Steward() == pid
}

// InAudience reports whether pid appears in the artifact's audience.
func InAudience(a Artifact, pid ids.PlayerID) bool {
	for _, p := range a.Audience() {
		if p == pid {
			return true
		}
	}
	return false
}
