package core

// Contract Registry (C4): deploy/load over the KV Store, with
// deterministic address derivation and a persisted deploy nonce. Grounded
// on the teacher's core/contracts.go ContractRegistry (SHA256-based code
// hash, sync.Once-style registry), reworked per spec.md §9's "no
// module-level mutable state" requirement: the registry holds a Store
// handle, not a package-level singleton.

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

type ContractRegistry struct {
	db Store
}

func NewContractRegistry(db Store) *ContractRegistry {
	return &ContractRegistry{db: db}
}

// DeriveContractAddress returns the deterministic deployment address for a
// creator at a given nonce: SHA256(creator || nonce) truncated to 20
// bytes, mirroring the teacher's SHA256-truncation idiom in
// core/contracts.go (adapted from SHA256(creator||code) to include a
// nonce so the same creator deploying identical code twice gets distinct
// addresses).
func DeriveContractAddress(creator AddrId, nonce uint64) AddrId {
	buf := append([]byte(nil), creator.Bytes()...)
	buf = appendU64(buf, nonce)
	sum := sha256.Sum256(buf)
	var a AddrId
	copy(a[:], sum[:20])
	return a
}

func deployNonceKey(creator AddrId) []byte {
	return concat([]byte("deploy_nonce_"), creator.Bytes())
}

// NextNonce reads and atomically increments creator's deploy nonce.
func (r *ContractRegistry) NextNonce(creator AddrId, height uint32) (uint64, error) {
	key := deployNonceKey(creator)
	raw, err := r.db.Read(key)
	var nonce uint64
	if err == nil {
		nonce = decodeUint64(raw)
	} else if err != ErrNotFound {
		return 0, err
	}
	b := r.db.NewBatch()
	b.Set(key, encodeUint64(nonce+1))
	if err := r.db.Commit(b, height); err != nil {
		return 0, err
	}
	return nonce, nil
}

// Deploy persists a new Contract at the address derived from (deployer,
// nonce). Returns ErrAlreadyExists if the address is already occupied —
// should not happen given the nonce derivation, but is checked defensively
// since addresses are also reachable by direct construction in tests.
func (r *ContractRegistry) Deploy(deployer AddrId, code []byte, height uint32, codeSizeLimit int) (*Contract, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: empty code", ErrInvalidState)
	}
	if len(code) > codeSizeLimit {
		return nil, fmt.Errorf("%w: code exceeds %d bytes", ErrCodeTooLarge, codeSizeLimit)
	}
	nonce, err := r.NextNonce(deployer, height)
	if err != nil {
		return nil, err
	}
	addr := DeriveContractAddress(deployer, nonce)
	if exists, err := r.db.Exists(ContractKey(addr)); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrAlreadyExists
	}
	c := &Contract{Address: addr, Code: code, Deployer: deployer, DeployHeight: height}
	if err := r.db.Write(ContractKey(addr), EncodeContract(c)); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads back a deployed contract by address.
func (r *ContractRegistry) Load(addr AddrId) (*Contract, error) {
	raw, err := r.db.Read(ContractKey(addr))
	if err != nil {
		return nil, err
	}
	return DecodeContract(raw)
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func decodeUint64(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}
