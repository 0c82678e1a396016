package core

// Fixed-width little-endian encoders/decoders for the core record types the
// KV Store persists. Mirrors the envelope wire format's own style (no
// self-describing schema) rather than reaching for a generic serializer —
// see DESIGN.md's entry for core/envelope.go. ClusterSummary,
// BehaviorMetrics, GraphMetrics and Dispute are the exception: they are
// stored as JSON (EncodeJSON/DecodeJSON at the end of this file).

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

func EncodeContract(c *Contract) []byte {
	out := appendAddr(nil, c.Address)
	out = appendAddr(out, c.Deployer)
	out = appendU32(out, c.DeployHeight)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(c.Code)))
	out = append(out, c.Code...)
	return out
}

func DecodeContract(b []byte) (*Contract, error) {
	addr, off, err := readAddr(b, 0)
	if err != nil {
		return nil, err
	}
	deployer, off, err := readAddr(b, off)
	if err != nil {
		return nil, err
	}
	height, off, err := readU32(b, off)
	if err != nil {
		return nil, err
	}
	if off+4 > len(b) {
		return nil, fmt.Errorf("%w: truncated contract code length", ErrIntegrity)
	}
	clen := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	if uint32(off)+clen > uint32(len(b)) {
		return nil, fmt.Errorf("%w: truncated contract code", ErrIntegrity)
	}
	code := append([]byte(nil), b[off:off+int(clen)]...)
	return &Contract{Address: addr, Code: code, Deployer: deployer, DeployHeight: height}, nil
}

func EncodeTrustEdge(e *TrustEdge) []byte {
	out := appendAddr(nil, e.From)
	out = appendAddr(out, e.To)
	out = appendI16(out, e.Weight)
	out = appendI64(out, e.Bond)
	out = appendHash32(out, e.BondTx)
	out = appendU32(out, e.CreatedHeight)
	if e.Slashed {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = appendReason(out, e.Reason)
	return out
}

func DecodeTrustEdge(b []byte) (*TrustEdge, error) {
	from, off, err := readAddr(b, 0)
	if err != nil {
		return nil, err
	}
	to, off, err := readAddr(b, off)
	if err != nil {
		return nil, err
	}
	weight, off, err := readI16(b, off)
	if err != nil {
		return nil, err
	}
	bond, off, err := readI64(b, off)
	if err != nil {
		return nil, err
	}
	bondTx, off, err := readHash32(b, off)
	if err != nil {
		return nil, err
	}
	height, off, err := readU32(b, off)
	if err != nil {
		return nil, err
	}
	if off+1 > len(b) {
		return nil, fmt.Errorf("%w: truncated slashed flag", ErrIntegrity)
	}
	slashed := b[off] != 0
	off++
	reason, _, err := readReason(b, off)
	if err != nil {
		return nil, err
	}
	return &TrustEdge{From: from, To: to, Weight: weight, Bond: bond, BondTx: bondTx, CreatedHeight: height, Reason: reason, Slashed: slashed}, nil
}

func EncodePropagatedEdge(p *PropagatedEdge) []byte {
	out := EncodeTrustEdge(&p.TrustEdge)
	out = appendHash32(out, p.SourceEdge)
	out = appendAddr(out, p.OriginalTarget)
	return out
}

func DecodePropagatedEdge(b []byte) (*PropagatedEdge, error) {
	base, err := DecodeTrustEdge(b)
	if err != nil {
		return nil, err
	}
	baseLen := len(EncodeTrustEdge(base))
	if baseLen > len(b) {
		return nil, fmt.Errorf("%w: truncated propagated edge", ErrIntegrity)
	}
	rest := b[baseLen:]
	src, off, err := readHash32(rest, 0)
	if err != nil {
		return nil, err
	}
	orig, _, err := readAddr(rest, off)
	if err != nil {
		return nil, err
	}
	return &PropagatedEdge{TrustEdge: *base, SourceEdge: src, OriginalTarget: orig}, nil
}

func EncodeBondedVote(v *BondedVote) []byte {
	out := appendHash32(nil, v.Tx)
	out = appendAddr(out, v.Voter)
	out = appendAddr(out, v.Target)
	out = appendI16(out, v.Value)
	out = appendI64(out, v.Bond)
	out = appendHash32(out, v.BondTx)
	out = appendU32(out, v.CreatedHeight)
	if v.Slashed {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	return out
}

func DecodeBondedVote(b []byte) (*BondedVote, error) {
	tx, off, err := readHash32(b, 0)
	if err != nil {
		return nil, err
	}
	voter, off, err := readAddr(b, off)
	if err != nil {
		return nil, err
	}
	target, off, err := readAddr(b, off)
	if err != nil {
		return nil, err
	}
	value, off, err := readI16(b, off)
	if err != nil {
		return nil, err
	}
	bond, off, err := readI64(b, off)
	if err != nil {
		return nil, err
	}
	bondTx, off, err := readHash32(b, off)
	if err != nil {
		return nil, err
	}
	height, off, err := readU32(b, off)
	if err != nil {
		return nil, err
	}
	if off+1 > len(b) {
		return nil, fmt.Errorf("%w: truncated slashed flag", ErrIntegrity)
	}
	slashed := b[off] != 0
	return &BondedVote{Tx: tx, Voter: voter, Target: target, Value: value, Bond: bond, BondTx: bondTx, CreatedHeight: height, Slashed: slashed}, nil
}

func EncodeQuantumPublicKey(q *QuantumPublicKey) []byte {
	out := appendHash32(nil, q.Hash)
	out = appendU32(out, q.RegisteredHeight)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(q.Key)))
	out = append(out, q.Key...)
	return out
}

func DecodeQuantumPublicKey(b []byte) (*QuantumPublicKey, error) {
	hash, off, err := readHash32(b, 0)
	if err != nil {
		return nil, err
	}
	height, off, err := readU32(b, off)
	if err != nil {
		return nil, err
	}
	if off+4 > len(b) {
		return nil, fmt.Errorf("%w: truncated quantum key length", ErrIntegrity)
	}
	klen := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	if uint32(off)+klen > uint32(len(b)) {
		return nil, fmt.Errorf("%w: truncated quantum key", ErrIntegrity)
	}
	key := append([]byte(nil), b[off:off+int(klen)]...)
	return &QuantumPublicKey{Hash: hash, Key: key, RegisteredHeight: height}, nil
}

// ClusterSummary, BehaviorMetrics, GraphMetrics and Dispute are
// comparatively rare, schema-evolving records (spec.md calls out their
// derived/cached nature); JSON keeps them debuggable in place with
// goleveldb's own tooling rather than requiring a bespoke binary layout.

func EncodeJSON(v interface{}) ([]byte, error) { return json.Marshal(v) }

func DecodeJSON(b []byte, v interface{}) error { return json.Unmarshal(b, v) }
