// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package document implements the per-artifact CRDT: an Automerge
// document with a fixed root schema (identity/status registers plus
// references, grants, and metadata collections) that two replicas can
// merge without coordination.
package document

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	automerge "github.com/automerge/automerge-go"

	"github.com/luxfi/indra/artifact"
	"github.com/luxfi/indra/ids"
)

// Root schema keys. Every Document uses exactly this shape; nothing
// else is ever written to the root map.
const (
	keyArtifactID   = "artifact_id"
	keyType         = "artifact_type"
	keySteward      = "steward"
	keyStatus       = "status"
	keyCreatedAt    = "created_at"
	keyReferences   = "references"
	keyGrants       = "grants"
	keyMetadata     = "metadata"
	keyAudience     = "audience"
)

var (
	// ErrMalformed is returned when a document's root doesn't match the
	// expected schema, e.g. after loading corrupt or foreign bytes.
	ErrMalformed = errors.New("document: root does not match the artifact schema")
)

// Document wraps one automerge.Doc bound to the artifact CRDT schema.
// Every accessor re-resolves object paths from the root by name: no
// child object ID is ever cached across a merge, since automerge may
// reconcile concurrent edits into a different underlying object.
type Document struct {
	doc *automerge.Doc
}

// New creates a fresh Document seeded with id's identity fields and an
// Active status, empty references/grants/metadata collections.
func New(id ids.ArtifactID, steward ids.PlayerID, typ string, audience []ids.PlayerID, createdAt int64) (*Document, error) {
	doc := automerge.New()
	root := doc.RootMap()

	if err := root.Set(keyArtifactID, id.Hex()); err != nil {
		return nil, err
	}
	if err := root.Set(keySteward, steward.String()); err != nil {
		return nil, err
	}
	if err := root.Set(keyType, typ); err != nil {
		return nil, err
	}
	if err := root.Set(keyStatus, "active"); err != nil {
		return nil, err
	}
	if err := root.Set(keyCreatedAt, createdAt); err != nil {
		return nil, err
	}
	if err := root.Set(keyReferences, automerge.NewList()); err != nil {
		return nil, err
	}
	if err := root.Set(keyGrants, automerge.NewList()); err != nil {
		return nil, err
	}
	if err := root.Set(keyMetadata, automerge.NewMap()); err != nil {
		return nil, err
	}
	if err := root.Set(keyAudience, automerge.NewList()); err != nil {
		return nil, err
	}

	d := &Document{doc: doc}
	for _, p := range audience {
		if err := d.addAudience(p); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Document) root() *automerge.Map {
	return d.doc.RootMap()
}

func (d *Document) list(key string) (*automerge.List, error) {
	val, err := d.root().Get(key)
	if err != nil {
		return nil, fmt.Errorf("document: get %q: %w", key, err)
	}
	list, err := val.List()
	if err != nil {
		return nil, fmt.Errorf("document: %w: %q is not a list", ErrMalformed, key)
	}
	return list, nil
}

func (d *Document) mapAt(key string) (*automerge.Map, error) {
	val, err := d.root().Get(key)
	if err != nil {
		return nil, fmt.Errorf("document: get %q: %w", key, err)
	}
	m, err := val.Map()
	if err != nil {
		return nil, fmt.Errorf("document: %w: %q is not a map", ErrMalformed, key)
	}
	return m, nil
}

func (d *Document) addAudience(pid ids.PlayerID) error {
	list, err := d.list(keyAudience)
	if err != nil {
		return err
	}
	return list.Append(pid.String())
}

// Audience returns the current audience member list.
func (d *Document) Audience() ([]ids.PlayerID, error) {
	list, err := d.list(keyAudience)
	if err != nil {
		return nil, err
	}
	n, err := list.Len()
	if err != nil {
		return nil, err
	}
	out := make([]ids.PlayerID, 0, n)
	for i := 0; i < n; i++ {
		v, err := list.Get(i)
		if err != nil {
			return nil, err
		}
		s, err := v.Str()
		if err != nil {
			return nil, err
		}
		pid, err := parsePlayerID(s)
		if err != nil {
			return nil, err
		}
		out = append(out, pid)
	}
	return out, nil
}

// SetAudience replaces the audience list wholesale.
func (d *Document) SetAudience(audience []ids.PlayerID) error {
	if err := d.root().Set(keyAudience, automerge.NewList()); err != nil {
		return err
	}
	for _, p := range audience {
		if err := d.addAudience(p); err != nil {
			return err
		}
	}
	return nil
}

// AppendRef adds a child reference to the document's ordered reference
// list, encoded as "<child-hex>:<position>:<variant-tag>:<label>" (label
// empty when unset).
func (d *Document) AppendRef(ref artifact.Reference) error {
	list, err := d.list(keyReferences)
	if err != nil {
		return err
	}
	return list.Append(encodeReference(ref))
}

// RemoveRef removes the first reference to child, if present.
func (d *Document) RemoveRef(child ids.ArtifactID) error {
	list, err := d.list(keyReferences)
	if err != nil {
		return err
	}
	n, err := list.Len()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		v, err := list.Get(i)
		if err != nil {
			return err
		}
		s, err := v.Str()
		if err != nil {
			return err
		}
		ref, err := decodeReference(s)
		if err != nil {
			return err
		}
		if ref.Child == child {
			return list.Delete(i)
		}
	}
	return nil
}

// References returns the current reference list in document order.
func (d *Document) References() ([]artifact.Reference, error) {
	list, err := d.list(keyReferences)
	if err != nil {
		return nil, err
	}
	n, err := list.Len()
	if err != nil {
		return nil, err
	}
	out := make([]artifact.Reference, 0, n)
	for i := 0; i < n; i++ {
		v, err := list.Get(i)
		if err != nil {
			return nil, err
		}
		s, err := v.Str()
		if err != nil {
			return nil, err
		}
		ref, err := decodeReference(s)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

// AddGrant appends grant to the document's grants list.
func (d *Document) AddGrant(grant artifact.Grant) error {
	list, err := d.list(keyGrants)
	if err != nil {
		return err
	}
	return list.Append(encodeGrant(grant))
}

// RemoveGrant removes grantee's grant, if present.
func (d *Document) RemoveGrant(grantee ids.PlayerID) error {
	list, err := d.list(keyGrants)
	if err != nil {
		return err
	}
	n, err := list.Len()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		v, err := list.Get(i)
		if err != nil {
			return err
		}
		s, err := v.Str()
		if err != nil {
			return err
		}
		g, err := decodeGrant(s)
		if err != nil {
			return err
		}
		if g.Grantee == grantee {
			return list.Delete(i)
		}
	}
	return nil
}

// Grants returns the current grants list.
func (d *Document) Grants() ([]artifact.Grant, error) {
	list, err := d.list(keyGrants)
	if err != nil {
		return nil, err
	}
	n, err := list.Len()
	if err != nil {
		return nil, err
	}
	out := make([]artifact.Grant, 0, n)
	for i := 0; i < n; i++ {
		v, err := list.Get(i)
		if err != nil {
			return nil, err
		}
		s, err := v.Str()
		if err != nil {
			return nil, err
		}
		g, err := decodeGrant(s)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// SetMetadata sets a key in the document's metadata map.
func (d *Document) SetMetadata(key string, value []byte) error {
	m, err := d.mapAt(keyMetadata)
	if err != nil {
		return err
	}
	return m.Set(key, value)
}

// GetMetadata reads a key from the document's metadata map.
func (d *Document) GetMetadata(key string) ([]byte, bool, error) {
	m, err := d.mapAt(keyMetadata)
	if err != nil {
		return nil, false, err
	}
	v, err := m.Get(key)
	if err != nil {
		return nil, false, nil
	}
	b, err := v.Bytes()
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// SetStatus sets the status register.
func (d *Document) SetStatus(status string) error {
	return d.root().Set(keyStatus, status)
}

// Status reads the status register.
func (d *Document) Status() (string, error) {
	v, err := d.root().Get(keyStatus)
	if err != nil {
		return "", err
	}
	return v.Str()
}

// SetSteward sets the steward register.
func (d *Document) SetSteward(pid ids.PlayerID) error {
	return d.root().Set(keySteward, pid.String())
}

// Steward reads the steward register.
func (d *Document) Steward() (ids.PlayerID, error) {
	v, err := d.root().Get(keySteward)
	if err != nil {
		return ids.PlayerID{}, err
	}
	s, err := v.Str()
	if err != nil {
		return ids.PlayerID{}, err
	}
	return parsePlayerID(s)
}

// Save serializes the full document.
func (d *Document) Save() []byte {
	return d.doc.Save()
}

// SaveAfter serializes only the changes since heads, for incremental
// transfer to a replica that already has that state.
func (d *Document) SaveAfter(heads []automerge.ChangeHash) []byte {
	return d.doc.SaveAfter(heads)
}

// GetHeads returns the document's current change heads.
func (d *Document) GetHeads() []automerge.ChangeHash {
	return d.doc.Heads()
}

// Load reconstructs a Document from bytes previously produced by Save.
func Load(data []byte) (*Document, error) {
	doc, err := automerge.Load(data)
	if err != nil {
		return nil, fmt.Errorf("document: load: %w", err)
	}
	return &Document{doc: doc}, nil
}

// LoadIncremental applies an incremental change set (from SaveAfter) on
// top of the document in place.
func (d *Document) LoadIncremental(changes []byte) error {
	_, err := d.doc.LoadIncremental(changes)
	return err
}

// Merge folds other's changes into d. Per the root schema invariant,
// callers must not hold onto any previously resolved sub-object from d
// across this call — every accessor here re-resolves from the root, so
// this package itself never violates that, but external holders of
// *automerge.Map/*automerge.List obtained before a Merge must discard
// them.
func (d *Document) Merge(other *Document) error {
	_, err := d.doc.Merge(other.doc)
	return err
}

func parsePlayerID(s string) (ids.PlayerID, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(ids.PlayerID{}) {
		return ids.PlayerID{}, fmt.Errorf("document: %w: bad player id %q", ErrMalformed, s)
	}
	var pid ids.PlayerID
	copy(pid[:], b)
	return pid, nil
}

// References and grants are encoded as colon-separated fields rather
// than nested CRDT maps: both are append/remove-by-key workloads with
// no need for field-level concurrent merge, so a flat string in a list
// keeps the schema simple without losing CRDT list semantics (ordering
// and concurrent insert/delete still merge correctly).

func encodeReference(ref artifact.Reference) string {
	label := ""
	if ref.Label != nil {
		label = *ref.Label
	}
	return fmt.Sprintf("%s:%d:%d:%s", encodeArtifactID(ref.Child), ref.Position, variantTag(ref.Child), label)
}

func decodeReference(s string) (artifact.Reference, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) < 3 {
		return artifact.Reference{}, fmt.Errorf("document: %w: bad reference %q", ErrMalformed, s)
	}
	variant, err := strconv.Atoi(parts[2])
	if err != nil {
		return artifact.Reference{}, fmt.Errorf("document: %w: bad reference variant %q", ErrMalformed, s)
	}
	child, err := parseArtifactIDHex(parts[0], ids.ArtifactVariant(variant))
	if err != nil {
		return artifact.Reference{}, err
	}
	position, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return artifact.Reference{}, fmt.Errorf("document: %w: bad reference position %q", ErrMalformed, s)
	}
	ref := artifact.Reference{Child: child, Position: position}
	if len(parts) == 4 && parts[3] != "" {
		label := parts[3]
		ref.Label = &label
	}
	return ref, nil
}

func encodeArtifactID(id ids.ArtifactID) string { return id.Hex() }

func variantTag(id ids.ArtifactID) ids.ArtifactVariant { return id.Variant }

func encodeGrant(g artifact.Grant) string {
	expiresAt, _ := g.Mode.ExpiresAt()
	return fmt.Sprintf("%s:%s:%d:%d:%s", g.Grantee.String(), g.Mode.Kind(), expiresAt, g.GrantedAt, g.GrantedBy.String())
}

func decodeGrant(s string) (artifact.Grant, error) {
	parts := strings.SplitN(s, ":", 5)
	if len(parts) != 5 {
		return artifact.Grant{}, fmt.Errorf("document: %w: bad grant %q", ErrMalformed, s)
	}
	grantee, err := parsePlayerID(parts[0])
	if err != nil {
		return artifact.Grant{}, err
	}
	expiresAt, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return artifact.Grant{}, fmt.Errorf("document: %w: bad grant expiry %q", ErrMalformed, s)
	}
	grantedAt, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return artifact.Grant{}, fmt.Errorf("document: %w: bad grant timestamp %q", ErrMalformed, s)
	}
	grantedBy, err := parsePlayerID(parts[4])
	if err != nil {
		return artifact.Grant{}, err
	}
	return artifact.Grant{
		Grantee:   grantee,
		Mode:      artifact.AccessModeFromKind(parts[1], expiresAt),
		GrantedAt: grantedAt,
		GrantedBy: grantedBy,
	}, nil
}

func parseArtifactIDHex(s string, variant ids.ArtifactVariant) (ids.ArtifactID, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return ids.ArtifactID{}, fmt.Errorf("document: %w: bad artifact id %q", ErrMalformed, s)
	}
	id := ids.ArtifactID{Variant: variant}
	copy(id.Bytes[:], b)
	return id, nil
}
