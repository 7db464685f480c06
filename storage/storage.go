// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage implements the on-disk layout for one node: a
// pebble-backed content-addressed blob store, flat key files for the
// node's post-quantum identity, a JSON profile file, and per-realm CRDT
// snapshot files. INDRA_DATA_DIR (or config.Builder.WithDataDir)
// chooses the root; everything here lives under it.
package storage

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"

	"github.com/luxfi/indra/ids"
	"github.com/luxfi/indra/payload"
	"github.com/luxfi/indra/pqcrypto"
)

const (
	blobKeyPrefix   = "blob:"
	signingKeyFile  = "pq_signing.key"
	verifyKeyFile   = "pq_verifying.key"
	kemDecapFile    = "pq_kem_dk.key"
	kemEncapFile    = "pq_kem_ek.key"
	profileFileName = "profile.json"
	realmsDirName   = "realms"
	blobsDirName    = "blobs"
	filePerm        = 0o600
	dirPerm         = 0o700
)

var ErrNotFound = payload.ErrNotFound

// PebbleBlobStore is a payload.Store backed by a pebble key-value
// database, namespacing blob keys so the database can later hold other
// indexes without collision.
type PebbleBlobStore struct {
	db *pebble.DB
}

// OpenBlobStore opens (creating if absent) a pebble database rooted at
// filepath.Join(dataDir, "blobs").
func OpenBlobStore(dataDir string) (*PebbleBlobStore, error) {
	dir := filepath.Join(dataDir, blobsDirName)
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("storage: open blob store: %w", err)
	}
	return &PebbleBlobStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *PebbleBlobStore) Close() error {
	return s.db.Close()
}

func blobKey(id ids.ArtifactID) []byte {
	return []byte(blobKeyPrefix + id.Hex())
}

// StorePayload stores data under its BLAKE3 leaf ID. Storing the same
// bytes twice is a no-op: pebble.Set is idempotent and the key is
// content-derived, so the second write just overwrites identical bytes.
func (s *PebbleBlobStore) StorePayload(data []byte) (ids.ArtifactID, error) {
	id := ids.LeafID(data)
	if err := s.db.Set(blobKey(id), data, pebble.Sync); err != nil {
		return ids.ArtifactID{}, fmt.Errorf("storage: store payload: %w", err)
	}
	return id, nil
}

// GetPayload returns the bytes stored under id.
func (s *PebbleBlobStore) GetPayload(id ids.ArtifactID) ([]byte, error) {
	if !id.IsBlob() {
		return nil, payload.ErrNotBlob
	}
	v, closer, err := s.db.Get(blobKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, payload.ErrNotFound
		}
		return nil, fmt.Errorf("storage: get payload: %w", err)
	}
	out := append([]byte(nil), v...)
	_ = closer.Close()
	return out, nil
}

// HasPayload reports whether id's bytes are present.
func (s *PebbleBlobStore) HasPayload(id ids.ArtifactID) bool {
	if !id.IsBlob() {
		return false
	}
	_, closer, err := s.db.Get(blobKey(id))
	if err != nil {
		return false
	}
	_ = closer.Close()
	return true
}

var _ payload.Store = (*PebbleBlobStore)(nil)

// Profile is the node's small JSON-persisted identity metadata: display
// name and local player ID, distinct from the signing keys themselves.
type Profile struct {
	Player      ids.PlayerID `json:"player"`
	DisplayName string       `json:"display_name"`
}

// KeyFiles is the flat on-disk layout for a node's post-quantum
// identity and encapsulation keys.
type KeyFiles struct {
	dataDir string
}

// NewKeyFiles roots key file operations at dataDir, creating it if absent.
func NewKeyFiles(dataDir string) (*KeyFiles, error) {
	if err := os.MkdirAll(dataDir, dirPerm); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}
	return &KeyFiles{dataDir: dataDir}, nil
}

func (k *KeyFiles) path(name string) string { return filepath.Join(k.dataDir, name) }

// SaveIdentity persists a signing identity's packed keys.
func (k *KeyFiles) SaveIdentity(id *pqcrypto.Identity) error {
	if err := os.WriteFile(k.path(signingKeyFile), id.SigningKeyBytes(), filePerm); err != nil {
		return fmt.Errorf("storage: write signing key: %w", err)
	}
	if err := os.WriteFile(k.path(verifyKeyFile), id.VerifyingKeyBytes(), filePerm); err != nil {
		return fmt.Errorf("storage: write verifying key: %w", err)
	}
	return nil
}

// LoadIdentity reconstructs a signing identity from disk.
func (k *KeyFiles) LoadIdentity() (*pqcrypto.Identity, error) {
	signing, err := os.ReadFile(k.path(signingKeyFile))
	if err != nil {
		return nil, fmt.Errorf("storage: read signing key: %w", err)
	}
	verifying, err := os.ReadFile(k.path(verifyKeyFile))
	if err != nil {
		return nil, fmt.Errorf("storage: read verifying key: %w", err)
	}
	return pqcrypto.LoadIdentity(signing, verifying)
}

// HasIdentity reports whether a signing identity has been persisted.
func (k *KeyFiles) HasIdentity() bool {
	_, err := os.Stat(k.path(signingKeyFile))
	return err == nil
}

// SaveKEMKeyPair persists a player's ML-KEM-768 keypair.
func (k *KeyFiles) SaveKEMKeyPair(kp *pqcrypto.KEMKeyPair) error {
	if err := os.WriteFile(k.path(kemDecapFile), kp.DecapsulationKeyBytes(), filePerm); err != nil {
		return fmt.Errorf("storage: write kem decapsulation key: %w", err)
	}
	if err := os.WriteFile(k.path(kemEncapFile), kp.EncapsulationKeyBytes(), filePerm); err != nil {
		return fmt.Errorf("storage: write kem encapsulation key: %w", err)
	}
	return nil
}

// LoadKEMKeyPair reconstructs a player's ML-KEM-768 keypair from disk.
func (k *KeyFiles) LoadKEMKeyPair() (*pqcrypto.KEMKeyPair, error) {
	decap, err := os.ReadFile(k.path(kemDecapFile))
	if err != nil {
		return nil, fmt.Errorf("storage: read kem decapsulation key: %w", err)
	}
	encap, err := os.ReadFile(k.path(kemEncapFile))
	if err != nil {
		return nil, fmt.Errorf("storage: read kem encapsulation key: %w", err)
	}
	return pqcrypto.LoadKEMKeyPair(decap, encap)
}

// SaveProfile writes p as the node's profile.json.
func (k *KeyFiles) SaveProfile(p Profile) error {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode profile: %w", err)
	}
	if err := os.WriteFile(k.path(profileFileName), b, filePerm); err != nil {
		return fmt.Errorf("storage: write profile: %w", err)
	}
	return nil
}

// LoadProfile reads the node's profile.json.
func (k *KeyFiles) LoadProfile() (Profile, error) {
	var p Profile
	b, err := os.ReadFile(k.path(profileFileName))
	if err != nil {
		return p, fmt.Errorf("storage: read profile: %w", err)
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("storage: decode profile: %w", err)
	}
	return p, nil
}

// RealmSnapshotStore persists per-realm CRDT document bytes as flat
// files named by the realm's hex ID under dataDir/realms.
type RealmSnapshotStore struct {
	dir string
}

// NewRealmSnapshotStore roots realm snapshot files at dataDir/realms,
// creating the directory if absent.
func NewRealmSnapshotStore(dataDir string) (*RealmSnapshotStore, error) {
	dir := filepath.Join(dataDir, realmsDirName)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("storage: create realms dir: %w", err)
	}
	return &RealmSnapshotStore{dir: dir}, nil
}

func (r *RealmSnapshotStore) path(id ids.InterfaceID) string {
	return filepath.Join(r.dir, id.String()+".automerge")
}

// Save writes data (from realm.Realm's underlying CRDT Save) for id.
func (r *RealmSnapshotStore) Save(id ids.InterfaceID, data []byte) error {
	if err := os.WriteFile(r.path(id), data, filePerm); err != nil {
		return fmt.Errorf("storage: write realm snapshot: %w", err)
	}
	return nil
}

// Load reads a previously saved snapshot for id.
func (r *RealmSnapshotStore) Load(id ids.InterfaceID) ([]byte, error) {
	b, err := os.ReadFile(r.path(id))
	if err != nil {
		return nil, fmt.Errorf("storage: read realm snapshot: %w", err)
	}
	return b, nil
}

// List returns the realm IDs with a persisted snapshot.
func (r *RealmSnapshotStore) List() ([]ids.InterfaceID, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("storage: list realm snapshots: %w", err)
	}
	var out []ids.InterfaceID
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		const suffix = ".automerge"
		if len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
			continue
		}
		hexPart := name[:len(name)-len(suffix)]
		raw, err := decodeInterfaceIDHex(hexPart)
		if err != nil {
			continue
		}
		out = append(out, raw)
	}
	return out, nil
}

func decodeInterfaceIDHex(s string) (ids.InterfaceID, error) {
	var id ids.InterfaceID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return ids.InterfaceID{}, fmt.Errorf("storage: malformed realm snapshot filename %q", s)
	}
	copy(id[:], b)
	return id, nil
}
