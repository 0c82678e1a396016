// Package core implements the Cascoin Reputation & Virtual Machine
// Subsystem (CRVM): a gas-metered contract VM and a bonded, personalized
// Web-of-Trust reputation graph, both driven by magic-prefixed data outputs
// observed during block connection.
//
// The package intentionally has no module-level mutable chain state: the KV
// store handle and configuration are threaded through component
// constructors (Store, Config), so tests can stand up independent
// subsystems against isolated in-memory or on-disk stores.
package core

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// AddrId is a 20-byte address hash, the subsystem's sole identity type.
type AddrId [20]byte

// ZeroAddr is the all-zero address, used as a sentinel for "no entry point".
var ZeroAddr AddrId

func (a AddrId) Bytes() []byte { return a[:] }

func (a AddrId) Hex() string { return hex.EncodeToString(a[:]) }

func (a AddrId) String() string { return a.Hex() }

// AddrFromBytes copies b into an AddrId, requiring an exact 20-byte length.
func AddrFromBytes(b []byte) (AddrId, error) {
	var a AddrId
	if len(b) != len(a) {
		return a, fmt.Errorf("addr: want %d bytes, got %d", len(a), len(b))
	}
	copy(a[:], b)
	return a, nil
}

// Hash32 is a 32-byte hash (tx id, code hash, block hash, dispute id).
type Hash32 [32]byte

func (h Hash32) Bytes() []byte { return h[:] }

func (h Hash32) Hex() string { return hex.EncodeToString(h[:]) }

func (h Hash32) String() string { return h.Hex() }

func HashFromBytes(b []byte) (Hash32, error) {
	var h Hash32
	if len(b) != len(h) {
		return h, fmt.Errorf("hash: want %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// TxId aliases Hash32 for readability at call sites that deal with
// transaction identifiers rather than arbitrary hashes.
type TxId = Hash32

// Sentinel errors. Every CRVM failure mode collapses to one of these so
// callers can branch on kind without inspecting message text (spec.md §7).
var (
	ErrNotFound          = errors.New("crvm: not found")
	ErrInvalidState      = errors.New("crvm: invalid state")
	ErrUnauthorized      = errors.New("crvm: unauthorized")
	ErrIntegrity         = errors.New("crvm: integrity check failed")
	ErrInsufficientBond  = errors.New("crvm: insufficient bond")
	ErrNotReady          = errors.New("crvm: not ready")
	ErrAlreadyExists     = errors.New("crvm: already exists")
	ErrGasExhausted      = errors.New("crvm: out of gas")
	ErrStackOverflow     = errors.New("crvm: stack overflow")
	ErrStackUnderflow    = errors.New("crvm: stack underflow")
	ErrInvalidOpcode     = errors.New("crvm: invalid opcode")
	ErrInvalidJumpDest   = errors.New("crvm: invalid jump destination")
	ErrDepthExceeded     = errors.New("crvm: call depth exceeded")
	ErrCodeTooLarge      = errors.New("crvm: code too large")
	ErrBackend           = errors.New("crvm: backend error")
)

// Config is the single configuration block consumed at subsystem init
// (spec.md §6). Every field maps 1:1 to a row of that table.
type Config struct {
	// UNIT is the chain-wide number of smallest units per whole coin. All
	// bond/amount computations derive from this; CRVM never hard-codes a
	// coin-unit assumption.
	UNIT uint64

	MinBondAmount    int64
	BondPerPoint     float64
	MaxTrustPathDepth int
	EdgeWeightFloor   int16

	// HATWeights is the (behavior, wot, economic, temporal) tuple; must sum
	// to 1.0.
	HATWeights [4]float64

	ActivationHeightVM  uint32
	ActivationHeightWoT uint32

	GasPerTxLimit    uint64
	GasPerBlockLimit uint64
	CodeSizeLimit    int
	StackSizeLimit   int
	CallDepthLimit   int
}

// DefaultConfig returns conservative defaults matching spec.md §6's stated
// defaults (3-hop paths, weight floor 10, 40/30/20/10 HAT weights).
func DefaultConfig(unit uint64) Config {
	return Config{
		UNIT:              unit,
		MinBondAmount:     int64(unit),         // 1 UNIT
		BondPerPoint:      0.01,                // 0.01 UNIT per weight point
		MaxTrustPathDepth: 3,
		EdgeWeightFloor:   10,
		HATWeights:        [4]float64{0.40, 0.30, 0.20, 0.10},
		ActivationHeightVM:  0,
		ActivationHeightWoT: 0,
		GasPerTxLimit:    1_000_000,
		GasPerBlockLimit: 10_000_000,
		CodeSizeLimit:    24 * 1024,
		StackSizeLimit:   1024,
		CallDepthLimit:   256,
	}
}

// RequiredBond implements the "min_bond + per_point * |weight|" rule shared
// by TrustEdge and BondedVote bonding (spec.md §4.5). The result is in the
// same smallest-unit space as Config.UNIT; fractional UNIT products are
// rounded to the nearest smallest unit (halves round up), so float error
// such as 94999999.99 still yields the exact 95000000.
func (c Config) RequiredBond(weight int16) int64 {
	w := weight
	if w < 0 {
		w = -w
	}
	extra := c.BondPerPoint * float64(w) * float64(c.UNIT)
	return c.MinBondAmount + int64(extra+0.5)
}
