package core

// Envelope Codec (C2): detects, parses, and re-serializes the
// magic-prefixed data payload carried inside a single unspendable output
// per envelope (spec.md §4.2). Encoding is length-prefix-free for
// fixed-size fields and deliberately avoids any self-describing format —
// this mirrors the teacher's opcode_dispatcher.go, which hand-rolls its own
// fixed-width big-endian opcode encoding rather than reach for a generic
// serializer.

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"
)

// Magic is the subsystem-wide 4-byte envelope tag.
var Magic = [4]byte{'C', 'R', 'V', 'M'}

// OpType is the closed set of envelope kinds (spec.md §4.2).
type OpType byte

const (
	OpContractDeploy OpType = 0x01
	OpContractCall    OpType = 0x02
	OpSimpleVote      OpType = 0x03
	OpTrustEdge       OpType = 0x04
	OpBondedVote      OpType = 0x05
	OpDaoDispute      OpType = 0x06
	OpDaoVote         OpType = 0x07
)

// Envelope is the parsed, tagged-union form of an on-chain data output.
// Exactly one of the body fields is populated, selected by Op.
type Envelope struct {
	Op OpType

	Deploy *DeployBody
	Call   *CallBody
	Simple *SimpleVoteBody
	Trust  *TrustEdgeBody
	Vote   *BondedVoteBody
	Dispute *DaoDisputeBody
	DaoVote *DaoVoteBody
}

type DeployBody struct {
	CodeHash [32]byte
	GasLimit uint64
	Code     []byte
}

type CallBody struct {
	Contract AddrId
	GasLimit uint64
	Value    int64
	Calldata []byte
}

type SimpleVoteBody struct {
	Target AddrId
	Value  int16
	Reason string
}

type TrustEdgeBody struct {
	From       AddrId
	To         AddrId
	Weight     int16
	BondAmount int64
	Timestamp  uint32
	Reason     string
}

type BondedVoteBody struct {
	Voter      AddrId
	Target     AddrId
	Value      int16
	BondAmount int64
	Timestamp  uint32
	Reason     string
}

type DaoDisputeBody struct {
	DisputedVote   [32]byte
	Challenger     AddrId
	ChallengerBond int64
	Reason         string
}

type DaoVoteBody struct {
	DisputeID [32]byte
	Member    AddrId
	Support   bool
	Stake     int64
}

var envLog = zap.NewNop().Sugar()

// SetEnvelopeLogger installs the sugared zap logger used for parse
// diagnostics. Host integrations call this once at startup; tests may leave
// it as the no-op default.
func SetEnvelopeLogger(l *zap.SugaredLogger) { envLog = l }

// DetectEnvelope reports whether an output's single-push script data looks
// like a CRVM envelope (spec.md §4.2: "a single push of ≥5 bytes whose
// first 4 bytes equal MAGIC"). It does not validate the body.
func DetectEnvelope(pushData []byte) bool {
	if len(pushData) < 5 {
		return false
	}
	return pushData[0] == Magic[0] && pushData[1] == Magic[1] && pushData[2] == Magic[2] && pushData[3] == Magic[3]
}

// ParseEnvelope decodes pushData into an Envelope. An unknown OpType, a
// truncated body, or any structural mismatch returns (nil, err); callers
// must treat that as an inert envelope — never as a reason to invalidate
// the transaction (spec.md §1, §7).
func ParseEnvelope(pushData []byte) (*Envelope, error) {
	if !DetectEnvelope(pushData) {
		return nil, fmt.Errorf("envelope: bad magic or too short")
	}
	op := OpType(pushData[4])
	body := pushData[5:]

	switch op {
	case OpContractDeploy:
		b, err := decodeDeploy(body)
		if err != nil {
			envLog.Debugw("envelope: malformed deploy body", "err", err)
			return nil, err
		}
		return &Envelope{Op: op, Deploy: b}, nil
	case OpContractCall:
		b, err := decodeCall(body)
		if err != nil {
			envLog.Debugw("envelope: malformed call body", "err", err)
			return nil, err
		}
		return &Envelope{Op: op, Call: b}, nil
	case OpSimpleVote:
		b, err := decodeSimpleVote(body)
		if err != nil {
			return nil, err
		}
		return &Envelope{Op: op, Simple: b}, nil
	case OpTrustEdge:
		b, err := decodeTrustEdge(body)
		if err != nil {
			return nil, err
		}
		return &Envelope{Op: op, Trust: b}, nil
	case OpBondedVote:
		b, err := decodeBondedVote(body)
		if err != nil {
			return nil, err
		}
		return &Envelope{Op: op, Vote: b}, nil
	case OpDaoDispute:
		b, err := decodeDaoDispute(body)
		if err != nil {
			return nil, err
		}
		return &Envelope{Op: op, Dispute: b}, nil
	case OpDaoVote:
		b, err := decodeDaoVote(body)
		if err != nil {
			return nil, err
		}
		return &Envelope{Op: op, DaoVote: b}, nil
	default:
		// Backwards compatibility: unknown OpType under a matching magic is
		// inert, not an error the host should ever see as "rejected".
		envLog.Debugw("envelope: unknown op type, treating as inert", "op", op)
		return nil, fmt.Errorf("envelope: unknown op type 0x%02x", op)
	}
}

// ---------------------------------------------------------------------
// decoders — fixed-width little-endian fields, single-byte reason length.
// ---------------------------------------------------------------------

func readAddr(b []byte, off int) (AddrId, int, error) {
	if off+20 > len(b) {
		return AddrId{}, off, fmt.Errorf("envelope: truncated address")
	}
	a, _ := AddrFromBytes(b[off : off+20])
	return a, off + 20, nil
}

func readHash32(b []byte, off int) ([32]byte, int, error) {
	var h [32]byte
	if off+32 > len(b) {
		return h, off, fmt.Errorf("envelope: truncated hash")
	}
	copy(h[:], b[off:off+32])
	return h, off + 32, nil
}

func readU64(b []byte, off int) (uint64, int, error) {
	if off+8 > len(b) {
		return 0, off, fmt.Errorf("envelope: truncated u64")
	}
	return binary.LittleEndian.Uint64(b[off : off+8]), off + 8, nil
}

func readI64(b []byte, off int) (int64, int, error) {
	v, n, err := readU64(b, off)
	return int64(v), n, err
}

func readI16(b []byte, off int) (int16, int, error) {
	if off+2 > len(b) {
		return 0, off, fmt.Errorf("envelope: truncated i16")
	}
	return int16(binary.LittleEndian.Uint16(b[off : off+2])), off + 2, nil
}

func readU32(b []byte, off int) (uint32, int, error) {
	if off+4 > len(b) {
		return 0, off, fmt.Errorf("envelope: truncated u32")
	}
	return binary.LittleEndian.Uint32(b[off : off+4]), off + 4, nil
}

func readReason(b []byte, off int) (string, int, error) {
	if off+1 > len(b) {
		return "", off, fmt.Errorf("envelope: truncated reason length")
	}
	n := int(b[off])
	off++
	if off+n > len(b) {
		return "", off, fmt.Errorf("envelope: truncated reason body")
	}
	if n > 256 {
		return "", off, fmt.Errorf("envelope: reason exceeds 256 bytes")
	}
	return string(b[off : off+n]), off + n, nil
}

func decodeDeploy(b []byte) (*DeployBody, error) {
	hash, off, err := readHash32(b, 0)
	if err != nil {
		return nil, err
	}
	gas, off, err := readU64(b, off)
	if err != nil {
		return nil, err
	}
	code := append([]byte(nil), b[off:]...)
	if len(code) == 0 {
		return nil, fmt.Errorf("envelope: empty deploy code")
	}
	if len(code) > 24*1024 {
		return nil, fmt.Errorf("%w: code exceeds 24KiB", ErrCodeTooLarge)
	}
	return &DeployBody{CodeHash: hash, GasLimit: gas, Code: code}, nil
}

func decodeCall(b []byte) (*CallBody, error) {
	contract, off, err := readAddr(b, 0)
	if err != nil {
		return nil, err
	}
	gas, off, err := readU64(b, off)
	if err != nil {
		return nil, err
	}
	value, off, err := readI64(b, off)
	if err != nil {
		return nil, err
	}
	calldata := append([]byte(nil), b[off:]...)
	return &CallBody{Contract: contract, GasLimit: gas, Value: value, Calldata: calldata}, nil
}

func decodeSimpleVote(b []byte) (*SimpleVoteBody, error) {
	target, off, err := readAddr(b, 0)
	if err != nil {
		return nil, err
	}
	value, off, err := readI16(b, off)
	if err != nil {
		return nil, err
	}
	reason, _, err := readReason(b, off)
	if err != nil {
		return nil, err
	}
	return &SimpleVoteBody{Target: target, Value: value, Reason: reason}, nil
}

func decodeTrustEdge(b []byte) (*TrustEdgeBody, error) {
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
	ts, off, err := readU32(b, off)
	if err != nil {
		return nil, err
	}
	reason, _, err := readReason(b, off)
	if err != nil {
		return nil, err
	}
	if weight < -100 || weight > 100 {
		return nil, fmt.Errorf("envelope: weight out of range")
	}
	return &TrustEdgeBody{From: from, To: to, Weight: weight, BondAmount: bond, Timestamp: ts, Reason: reason}, nil
}

func decodeBondedVote(b []byte) (*BondedVoteBody, error) {
	voter, off, err := readAddr(b, 0)
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
	ts, off, err := readU32(b, off)
	if err != nil {
		return nil, err
	}
	reason, _, err := readReason(b, off)
	if err != nil {
		return nil, err
	}
	return &BondedVoteBody{Voter: voter, Target: target, Value: value, BondAmount: bond, Timestamp: ts, Reason: reason}, nil
}

func decodeDaoDispute(b []byte) (*DaoDisputeBody, error) {
	disputed, off, err := readHash32(b, 0)
	if err != nil {
		return nil, err
	}
	challenger, off, err := readAddr(b, off)
	if err != nil {
		return nil, err
	}
	bond, off, err := readI64(b, off)
	if err != nil {
		return nil, err
	}
	reason, _, err := readReason(b, off)
	if err != nil {
		return nil, err
	}
	return &DaoDisputeBody{DisputedVote: disputed, Challenger: challenger, ChallengerBond: bond, Reason: reason}, nil
}

func decodeDaoVote(b []byte) (*DaoVoteBody, error) {
	id, off, err := readHash32(b, 0)
	if err != nil {
		return nil, err
	}
	member, off, err := readAddr(b, off)
	if err != nil {
		return nil, err
	}
	if off+1 > len(b) {
		return nil, fmt.Errorf("envelope: truncated support flag")
	}
	support := b[off] != 0
	off++
	stake, _, err := readI64(b, off)
	if err != nil {
		return nil, err
	}
	return &DaoVoteBody{DisputeID: id, Member: member, Support: support, Stake: stake}, nil
}

// ---------------------------------------------------------------------
// encoders — the exact inverse of the decoders above, enabling the
// round-trip property from spec.md §8.
// ---------------------------------------------------------------------

func appendAddr(b []byte, a AddrId) []byte   { return append(b, a[:]...) }
func appendHash32(b []byte, h [32]byte) []byte { return append(b, h[:]...) }
func appendU64(b []byte, v uint64) []byte     { return binary.LittleEndian.AppendUint64(b, v) }
func appendI64(b []byte, v int64) []byte      { return appendU64(b, uint64(v)) }
func appendI16(b []byte, v int16) []byte      { return binary.LittleEndian.AppendUint16(b, uint16(v)) }
func appendU32(b []byte, v uint32) []byte     { return binary.LittleEndian.AppendUint32(b, v) }
func appendReason(b []byte, s string) []byte {
	if len(s) > 255 {
		s = s[:255]
	}
	b = append(b, byte(len(s)))
	return append(b, s...)
}

// EncodeEnvelope serializes e back into wire form, inverse of ParseEnvelope.
func EncodeEnvelope(e *Envelope) ([]byte, error) {
	out := append([]byte{}, Magic[:]...)
	out = append(out, byte(e.Op))
	switch e.Op {
	case OpContractDeploy:
		d := e.Deploy
		out = appendHash32(out, d.CodeHash)
		out = appendU64(out, d.GasLimit)
		out = append(out, d.Code...)
	case OpContractCall:
		c := e.Call
		out = appendAddr(out, c.Contract)
		out = appendU64(out, c.GasLimit)
		out = appendI64(out, c.Value)
		out = append(out, c.Calldata...)
	case OpSimpleVote:
		s := e.Simple
		out = appendAddr(out, s.Target)
		out = appendI16(out, s.Value)
		out = appendReason(out, s.Reason)
	case OpTrustEdge:
		t := e.Trust
		out = appendAddr(out, t.From)
		out = appendAddr(out, t.To)
		out = appendI16(out, t.Weight)
		out = appendI64(out, t.BondAmount)
		out = appendU32(out, t.Timestamp)
		out = appendReason(out, t.Reason)
	case OpBondedVote:
		v := e.Vote
		out = appendAddr(out, v.Voter)
		out = appendAddr(out, v.Target)
		out = appendI16(out, v.Value)
		out = appendI64(out, v.BondAmount)
		out = appendU32(out, v.Timestamp)
		out = appendReason(out, v.Reason)
	case OpDaoDispute:
		d := e.Dispute
		out = appendHash32(out, d.DisputedVote)
		out = appendAddr(out, d.Challenger)
		out = appendI64(out, d.ChallengerBond)
		out = appendReason(out, d.Reason)
	case OpDaoVote:
		dv := e.DaoVote
		out = appendHash32(out, dv.DisputeID)
		out = appendAddr(out, dv.Member)
		if dv.Support {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
		out = appendI64(out, dv.Stake)
	default:
		return nil, fmt.Errorf("envelope: cannot encode unknown op 0x%02x", e.Op)
	}
	return out, nil
}
