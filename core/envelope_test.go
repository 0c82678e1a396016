package core

import "testing"

func TestEnvelopeRoundTrip(t *testing.T) {
	cases := []*Envelope{
		{Op: OpContractDeploy, Deploy: &DeployBody{CodeHash: [32]byte{1, 2, 3}, GasLimit: 50000, Code: []byte{0xDE, 0xAD, 0xBE, 0xEF}}},
		{Op: OpContractCall, Call: &CallBody{Contract: AddrId{9}, GasLimit: 21000, Value: -5, Calldata: []byte{1, 2, 3}}},
		{Op: OpSimpleVote, Simple: &SimpleVoteBody{Target: AddrId{1}, Value: 10, Reason: "good trade"}},
		{Op: OpTrustEdge, Trust: &TrustEdgeBody{From: AddrId{1}, To: AddrId{2}, Weight: 90, BondAmount: 1000, Timestamp: 12345, Reason: "met in person"}},
		{Op: OpBondedVote, Vote: &BondedVoteBody{Voter: AddrId{3}, Target: AddrId{4}, Value: -50, BondAmount: 5000, Timestamp: 999, Reason: "scam"}},
		{Op: OpDaoDispute, Dispute: &DaoDisputeBody{DisputedVote: [32]byte{7}, Challenger: AddrId{5}, ChallengerBond: 200, Reason: "bad faith"}},
		{Op: OpDaoVote, DaoVote: &DaoVoteBody{DisputeID: [32]byte{8}, Member: AddrId{6}, Support: true, Stake: 300}},
	}

	for _, c := range cases {
		raw, err := EncodeEnvelope(c)
		if err != nil {
			t.Fatalf("encode %v: %v", c.Op, err)
		}
		if !DetectEnvelope(raw) {
			t.Fatalf("encoded envelope for op %v not detected", c.Op)
		}
		decoded, err := ParseEnvelope(raw)
		if err != nil {
			t.Fatalf("decode %v: %v", c.Op, err)
		}
		if decoded.Op != c.Op {
			t.Fatalf("op mismatch: got %v want %v", decoded.Op, c.Op)
		}
		raw2, err := EncodeEnvelope(decoded)
		if err != nil {
			t.Fatalf("re-encode %v: %v", c.Op, err)
		}
		if string(raw) != string(raw2) {
			t.Fatalf("round-trip mismatch for op %v", c.Op)
		}
	}
}

func TestDetectEnvelopeRejectsBadMagic(t *testing.T) {
	if DetectEnvelope([]byte("XXXX\x01")) {
		t.Fatalf("expected bad magic to be rejected")
	}
	if DetectEnvelope([]byte("CRV")) {
		t.Fatalf("expected too-short push data to be rejected")
	}
}

func TestParseEnvelopeRejectsUnknownOp(t *testing.T) {
	raw := append(append([]byte{}, Magic[:]...), 0xFF)
	if _, err := ParseEnvelope(raw); err == nil {
		t.Fatalf("expected unknown op type to fail parsing")
	}
}

func TestParseEnvelopeRejectsTruncatedBody(t *testing.T) {
	raw := append(append([]byte{}, Magic[:]...), byte(OpTrustEdge))
	raw = append(raw, make([]byte, 10)...) // far short of the full TrustEdgeBody
	if _, err := ParseEnvelope(raw); err == nil {
		t.Fatalf("expected truncated body to fail parsing")
	}
}

func TestDecodeDeployRejectsOversizeCode(t *testing.T) {
	body := append(make([]byte, 32), appendU64(nil, 1000)...)
	body = append(body, make([]byte, 25*1024)...)
	if _, err := decodeDeploy(body); err == nil {
		t.Fatalf("expected oversize code to be rejected")
	}
}
