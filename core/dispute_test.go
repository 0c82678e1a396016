package core

import (
	"errors"
	"testing"
)

func seedVote(t *testing.T, ts *TrustStore, tx TxId) *BondedVote {
	t.Helper()
	v := &BondedVote{Tx: tx, Voter: AddrId{1}, Target: AddrId{2}, Value: 50, Bond: 1_000_000, CreatedHeight: 1}
	if err := ts.RecordBondedVote(v); err != nil {
		t.Fatalf("record vote: %v", err)
	}
	return v
}

func TestDisputeResolveRejectsZeroBallots(t *testing.T) {
	cfg := testCfg()
	db := NewMemStore()
	ts := NewTrustStore(db, cfg)
	dm := NewDisputeManager(db, ts)

	vote := seedVote(t, ts, TxId{1})
	if _, err := dm.OpenDispute(TxId{2}, vote.Tx, AddrId{3}, 1_000_000, 2); err != nil {
		t.Fatalf("open dispute: %v", err)
	}
	if _, err := dm.Resolve(TxId{2}, 3); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady with zero ballots, got %v", err)
	}
}

func TestDisputeResolveSlashesOnMajoritySupport(t *testing.T) {
	cfg := testCfg()
	db := NewMemStore()
	ts := NewTrustStore(db, cfg)
	dm := NewDisputeManager(db, ts)

	vote := seedVote(t, ts, TxId{1})
	if _, err := dm.OpenDispute(TxId{2}, vote.Tx, AddrId{3}, 1_000_000, 2); err != nil {
		t.Fatalf("open dispute: %v", err)
	}
	if err := dm.CastBallot(TxId{2}, AddrId{4}, true, 100); err != nil {
		t.Fatalf("cast ballot 1: %v", err)
	}
	if err := dm.CastBallot(TxId{2}, AddrId{5}, false, 40); err != nil {
		t.Fatalf("cast ballot 2: %v", err)
	}

	outcome, err := dm.Resolve(TxId{2}, 3)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if outcome != OutcomeSlash {
		t.Fatalf("expected OutcomeSlash with 100 vs 40 stake, got %v", outcome)
	}

	got, err := ts.GetVote(vote.Tx)
	if err != nil || !got.Slashed {
		t.Fatalf("expected disputed vote to be slashed after resolution")
	}
}

func TestDisputeResolveKeepsOnMajorityOppose(t *testing.T) {
	cfg := testCfg()
	db := NewMemStore()
	ts := NewTrustStore(db, cfg)
	dm := NewDisputeManager(db, ts)

	vote := seedVote(t, ts, TxId{1})
	if _, err := dm.OpenDispute(TxId{2}, vote.Tx, AddrId{3}, 1_000_000, 2); err != nil {
		t.Fatalf("open dispute: %v", err)
	}
	if err := dm.CastBallot(TxId{2}, AddrId{4}, true, 10); err != nil {
		t.Fatalf("cast ballot 1: %v", err)
	}
	if err := dm.CastBallot(TxId{2}, AddrId{5}, false, 90); err != nil {
		t.Fatalf("cast ballot 2: %v", err)
	}

	outcome, err := dm.Resolve(TxId{2}, 3)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if outcome != OutcomeKeep {
		t.Fatalf("expected OutcomeKeep, got %v", outcome)
	}
	got, err := ts.GetVote(vote.Tx)
	if err != nil || got.Slashed {
		t.Fatalf("expected disputed vote to remain unslashed")
	}
}

func TestDisputeRejectsDuplicateAndAlreadySlashedVote(t *testing.T) {
	cfg := testCfg()
	db := NewMemStore()
	ts := NewTrustStore(db, cfg)
	dm := NewDisputeManager(db, ts)

	vote := seedVote(t, ts, TxId{1})
	if _, err := dm.OpenDispute(TxId{2}, vote.Tx, AddrId{3}, 1_000_000, 2); err != nil {
		t.Fatalf("open dispute: %v", err)
	}
	if _, err := dm.OpenDispute(TxId{2}, vote.Tx, AddrId{3}, 1_000_000, 2); err != ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists for a duplicate dispute id, got %v", err)
	}

	if err := ts.SlashVote(vote.Tx, 2); err != nil {
		t.Fatalf("slash: %v", err)
	}
	if _, err := dm.OpenDispute(TxId{3}, vote.Tx, AddrId{3}, 1_000_000, 2); err == nil {
		t.Fatalf("expected disputing an already-slashed vote to be rejected")
	}
}

func TestDisputeResolveIsIdempotent(t *testing.T) {
	cfg := testCfg()
	db := NewMemStore()
	ts := NewTrustStore(db, cfg)
	dm := NewDisputeManager(db, ts)

	vote := seedVote(t, ts, TxId{1})
	if _, err := dm.OpenDispute(TxId{2}, vote.Tx, AddrId{3}, 1_000_000, 2); err != nil {
		t.Fatalf("open dispute: %v", err)
	}
	if err := dm.CastBallot(TxId{2}, AddrId{4}, true, 10); err != nil {
		t.Fatalf("cast ballot: %v", err)
	}
	first, err := dm.Resolve(TxId{2}, 3)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := dm.Resolve(TxId{2}, 4)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first != second {
		t.Fatalf("resolving twice must return the same outcome, got %v then %v", first, second)
	}
	if err := dm.CastBallot(TxId{2}, AddrId{6}, false, 1000); err == nil {
		t.Fatalf("casting a ballot on a resolved dispute must be rejected")
	}
}
