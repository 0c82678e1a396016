package core

// Gas table: per-opcode cost, mirroring the teacher's core/gas_table.go
// map-plus-fallback shape exactly, retargeted to the trimmed CRVM opcode
// set (DESIGN.md).

import "github.com/sirupsen/logrus"

const DefaultGasCost = 100

var gasTable = map[Opcode]uint64{
	OpStop: 0,
	OpAdd:  3, OpSub: 3, OpMul: 5, OpDiv: 5, OpMod: 5,
	OpLt: 3, OpGt: 3, OpEq: 3, OpIsZero: 3,
	OpAnd: 3, OpOr: 3, OpXor: 3, OpNot: 3,
	OpPop: 2, OpPush: 3, OpDup: 3, OpSwap: 3,
	OpMLoad: 3, OpMStore: 3,
	OpSLoad: 200, OpSStore: 5000,
	OpJump: 8, OpJumpI: 10, OpPC: 2, OpJumpDest: 1,
	OpAddress: 2, OpCaller: 2, OpCallValue: 2,
	OpCallDataLoad: 3, OpCallDataSize: 2,
	OpGas: 2, OpBlockHeight: 2, OpBlockTime: 2,
	OpSha256: 60, OpVerifySigECDSA: 60, OpVerifySigQuantum: 3000,
	OpTrustScore: 5000, OpTrustEdgeWeight: 200,
	OpLog: 375, OpReturn: 0, OpRevert: 0,

	// OpVerifySig (auto-detect) has no fixed cost here: its charge depends on
	// the signature length inspected at runtime (60 for a classical-length
	// signature, 3000 for a quantum-length one, 0 for a length matching
	// neither scheme), applied by vm.go's verifySig after it reads the
	// signature off the stack/memory. The zero entry below exists only so
	// GasCost never logs a missing-entry warning for it and Catalogue()
	// lists it with a cost of 0 rather than DefaultGasCost.
	OpVerifySig: 0,
}

// GasCost returns op's metered cost. gasTable is populated once at package
// init and never mutated afterward, so concurrent lookups need no locking —
// same contract the teacher's gas_table.go documents for its own table.
func GasCost(op Opcode) uint64 {
	if c, ok := gasTable[op]; ok {
		return c
	}
	logrus.Warnf("gas_table: no entry for opcode %s, using default cost %d", op, DefaultGasCost)
	return DefaultGasCost
}
