package core

// Quantum public key registry: content-addressed storage for the
// lattice-based public keys VERIFY_SIG_QUANTUM resolves by hash. Kept
// small and separate from registry.go since it has nothing to do with
// contract deployment. Neither the dispatcher nor the VM reads it:
// VERIFY_SIG_QUANTUM takes its public key from VM memory, so lookups here
// go through GetQuantumKey directly.

import (
	"crypto/sha256"
	"fmt"
)

// RegisterQuantumKey stores key under its content hash, rejecting a key
// that is not 897 bytes long or whose hash is already registered.
func RegisterQuantumKey(db Store, key []byte, height uint32) (*QuantumPublicKey, error) {
	if len(key) != 897 {
		return nil, fmt.Errorf("%w: quantum public key must be 897 bytes, got %d", ErrInvalidState, len(key))
	}
	hash := sha256.Sum256(key)
	if exists, err := db.Exists(QuantumKey(hash)); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrAlreadyExists
	}
	qpk := &QuantumPublicKey{Hash: hash, Key: key, RegisteredHeight: height}
	if err := db.Write(QuantumKey(hash), EncodeQuantumPublicKey(qpk)); err != nil {
		return nil, err
	}
	return qpk, nil
}

// GetQuantumKey resolves a registered key by its content hash, verifying
// the stored key still hashes to the lookup key (spec.md §8 integrity
// check).
func GetQuantumKey(db Store, hash [32]byte) (*QuantumPublicKey, error) {
	raw, err := db.Read(QuantumKey(hash))
	if err != nil {
		return nil, err
	}
	qpk, err := DecodeQuantumPublicKey(raw)
	if err != nil {
		return nil, err
	}
	if sha256.Sum256(qpk.Key) != qpk.Hash || qpk.Hash != hash {
		storeCorruption.Inc()
		return nil, ErrIntegrity
	}
	return qpk, nil
}
