// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pqcrypto implements the post-quantum identity and realm-key
// primitives: ML-DSA-65 signing identities and ML-KEM-768 encapsulation
// keys, plus the symmetric AEAD and key derivation used to protect
// realm traffic.
package pqcrypto

import (
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/luxfi/indra/ids"
)

var (
	// ErrBadSignature is returned when verification of a signed message fails.
	ErrBadSignature = errors.New("pqcrypto: signature verification failed")
	// ErrKeySize is returned when unmarshaling key material of the wrong length.
	ErrKeySize = errors.New("pqcrypto: key material has unexpected size")
)

// Identity is a player's ML-DSA-65 signing keypair.
type Identity struct {
	Public  *mldsa65.PublicKey
	private *mldsa65.PrivateKey
}

// GenerateIdentity creates a fresh ML-DSA-65 identity keypair.
func GenerateIdentity() (*Identity, error) {
	pk, sk, err := mldsa65.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Identity{Public: pk, private: sk}, nil
}

// Sign signs msg with the identity's private key.
func (id *Identity) Sign(msg []byte) ([]byte, error) {
	return id.private.Sign(rand.Reader, msg, crypto.Hash(0))
}

// VerifyingKeyBytes returns the packed public key, suitable for
// inclusion in a signed message envelope.
func (id *Identity) VerifyingKeyBytes() []byte {
	return id.Public.Bytes()
}

// SigningKeyBytes returns the packed private key, for persistence under
// the key file layout.
func (id *Identity) SigningKeyBytes() []byte {
	return id.private.Bytes()
}

// LoadIdentity reconstructs an Identity from previously persisted
// packed signing and verifying key bytes.
func LoadIdentity(signingKey, verifyingKey []byte) (*Identity, error) {
	var sk mldsa65.PrivateKey
	if err := sk.UnmarshalBinary(signingKey); err != nil {
		return nil, err
	}
	var pk mldsa65.PublicKey
	if err := pk.UnmarshalBinary(verifyingKey); err != nil {
		return nil, err
	}
	return &Identity{Public: &pk, private: &sk}, nil
}

// Verify checks sig over msg against a packed ML-DSA-65 public key.
func Verify(verifyingKey, msg, sig []byte) error {
	var pk mldsa65.PublicKey
	if err := pk.UnmarshalBinary(verifyingKey); err != nil {
		return err
	}
	if !mldsa65.Verify(&pk, msg, sig) {
		return ErrBadSignature
	}
	return nil
}

// KEMKeyPair is a player's ML-KEM-768 encapsulation keypair, used to
// distribute realm symmetric keys to peers who don't yet share one.
type KEMKeyPair struct {
	Public  *mlkem768.PublicKey
	private *mlkem768.PrivateKey
}

// GenerateKEMKeyPair creates a fresh ML-KEM-768 keypair.
func GenerateKEMKeyPair() (*KEMKeyPair, error) {
	pk, sk, err := mlkem768.GenerateKeyPair(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &KEMKeyPair{Public: pk, private: sk}, nil
}

// EncapsulationKeyBytes returns the packed public (encapsulation) key.
func (k *KEMKeyPair) EncapsulationKeyBytes() []byte {
	packed := make([]byte, mlkem768.PublicKeySize)
	k.Public.Pack(packed)
	return packed
}

// DecapsulationKeyBytes returns the packed private (decapsulation) key,
// for persistence under the key file layout.
func (k *KEMKeyPair) DecapsulationKeyBytes() []byte {
	packed := make([]byte, mlkem768.PrivateKeySize)
	k.private.Pack(packed)
	return packed
}

// LoadKEMKeyPair reconstructs a KEMKeyPair from packed key bytes.
func LoadKEMKeyPair(decapsulationKey, encapsulationKey []byte) (*KEMKeyPair, error) {
	if len(decapsulationKey) != mlkem768.PrivateKeySize || len(encapsulationKey) != mlkem768.PublicKeySize {
		return nil, ErrKeySize
	}
	sk := new(mlkem768.PrivateKey)
	sk.Unpack(decapsulationKey)
	pk := new(mlkem768.PublicKey)
	pk.Unpack(encapsulationKey)
	return &KEMKeyPair{Public: pk, private: sk}, nil
}

// EncapsulateRealmKey generates a fresh 32-byte realm key and seals it
// for the holder of encapsulationKey, returning the ciphertext to send
// them alongside the realm key to keep locally.
func EncapsulateRealmKey(encapsulationKey []byte) (realmKey, ciphertext []byte, err error) {
	if len(encapsulationKey) != mlkem768.PublicKeySize {
		return nil, nil, ErrKeySize
	}
	pk := new(mlkem768.PublicKey)
	pk.Unpack(encapsulationKey)

	// FIPS 203 encapsulation consumes 32 bytes of randomness.
	seed := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, nil, err
	}

	ct := make([]byte, mlkem768.CiphertextSize)
	ss := make([]byte, mlkem768.SharedKeySize)
	pk.EncapsulateTo(ct, ss, seed)
	return ss, ct, nil
}

// DecapsulateRealmKey recovers the realm key a peer sealed for k using
// EncapsulateRealmKey.
func (k *KEMKeyPair) DecapsulateRealmKey(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) != mlkem768.CiphertextSize {
		return nil, ErrKeySize
	}
	ss := make([]byte, mlkem768.SharedKeySize)
	k.private.DecapsulateTo(ss, ciphertext)
	return ss, nil
}

// DeriveRealmKey derives a deterministic 32-byte realm symmetric key
// from a shared seed, for realms whose membership is derived rather
// than randomly generated (peer-set and personal realms).
func DeriveRealmKey(seed []byte, realm ids.InterfaceID) ([]byte, error) {
	h := hkdf.New(sha256.New, seed, realm[:], []byte("indra-realm-key-v1"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Seal encrypts plaintext under key with a random nonce, returning
// nonce||ciphertext.
func Seal(key, plaintext, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Open decrypts a nonce||ciphertext blob produced by Seal.
func Open(key, sealed, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, ErrKeySize
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, additionalData)
}
