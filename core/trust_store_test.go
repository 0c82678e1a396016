package core

import "testing"

func testCfg() Config {
	return DefaultConfig(100_000_000)
}

func TestAddTrustEdgeRejectsSelfTrust(t *testing.T) {
	ts := NewTrustStore(NewMemStore(), testCfg())
	a := AddrId{1}
	err := ts.AddTrustEdge(&TrustEdge{From: a, To: a, Weight: 50, Bond: 10_000_000, CreatedHeight: 1})
	if err == nil {
		t.Fatalf("expected self-trust edge to be rejected")
	}
}

func TestAddTrustEdgeRejectsUnderbonded(t *testing.T) {
	ts := NewTrustStore(NewMemStore(), testCfg())
	e := &TrustEdge{From: AddrId{1}, To: AddrId{2}, Weight: 95, Bond: 1, CreatedHeight: 1}
	if err := ts.AddTrustEdge(e); err == nil {
		t.Fatalf("expected underbonded edge to be rejected")
	}
}

func TestAddTrustEdgeAndReverseIndexAgree(t *testing.T) {
	cfg := testCfg()
	ts := NewTrustStore(NewMemStore(), cfg)
	from, to := AddrId{1}, AddrId{2}
	e := &TrustEdge{From: from, To: to, Weight: 80, Bond: cfg.RequiredBond(80), CreatedHeight: 5}
	if err := ts.AddTrustEdge(e); err != nil {
		t.Fatalf("add edge: %v", err)
	}

	out, err := ts.GetOutgoing(from)
	if err != nil || len(out) != 1 {
		t.Fatalf("expected 1 outgoing edge, got %d err=%v", len(out), err)
	}
	in, err := ts.GetIncoming(to)
	if err != nil || len(in) != 1 {
		t.Fatalf("expected 1 incoming edge, got %d err=%v", len(in), err)
	}
	if out[0].Weight != in[0].Weight || out[0].From != in[0].From {
		t.Fatalf("forward/reverse index disagree")
	}
}

func TestSlashVoteIsIdempotentAndCountsOnce(t *testing.T) {
	cfg := testCfg()
	ts := NewTrustStore(NewMemStore(), cfg)
	v := &BondedVote{Tx: TxId{1}, Voter: AddrId{1}, Target: AddrId{2}, Value: 50, Bond: cfg.RequiredBond(50), CreatedHeight: 1}
	if err := ts.RecordBondedVote(v); err != nil {
		t.Fatalf("record vote: %v", err)
	}
	if err := ts.SlashVote(v.Tx, 2); err != nil {
		t.Fatalf("slash: %v", err)
	}
	if err := ts.SlashVote(v.Tx, 3); err != nil {
		t.Fatalf("second slash should be idempotent, got %v", err)
	}
	got, err := ts.GetVote(v.Tx)
	if err != nil || !got.Slashed {
		t.Fatalf("expected vote to be slashed")
	}
}

func TestGetVotesForTracksMultipleIndependentVotes(t *testing.T) {
	cfg := testCfg()
	ts := NewTrustStore(NewMemStore(), cfg)
	target := AddrId{9}
	for i := byte(0); i < 3; i++ {
		v := &BondedVote{Tx: TxId{i + 1}, Voter: AddrId{i + 10}, Target: target, Value: 20, Bond: cfg.RequiredBond(20), CreatedHeight: 1}
		if err := ts.RecordBondedVote(v); err != nil {
			t.Fatalf("record vote %d: %v", i, err)
		}
	}
	votes, err := ts.GetVotesFor(target)
	if err != nil || len(votes) != 3 {
		t.Fatalf("expected 3 independent votes, got %d err=%v", len(votes), err)
	}

	if err := ts.SlashVote(TxId{1}, 2); err != nil {
		t.Fatalf("slash: %v", err)
	}
	votes, err = ts.GetVotesFor(target)
	if err != nil || len(votes) != 3 {
		t.Fatalf("slashing one vote should not remove it from the index, got %d", len(votes))
	}
	slashedCount := 0
	for _, v := range votes {
		if v.Slashed {
			slashedCount++
		}
	}
	if slashedCount != 1 {
		t.Fatalf("expected exactly 1 slashed vote, got %d", slashedCount)
	}
}

func TestRequiredBondMatchesWorkedExample(t *testing.T) {
	cfg := DefaultConfig(100_000_000)
	// spec.md worked example: weight=95 -> 1.95 UNIT required.
	got := cfg.RequiredBond(95)
	want := int64(1.95 * 100_000_000)
	if got != want {
		t.Fatalf("RequiredBond(95) = %d, want %d", got, want)
	}
}
