package core

import "testing"

func newTestHAT(cfg Config) (*HATScorer, *TrustStore, *BehaviorAnalyzer) {
	db := NewMemStore()
	ts := NewTrustStore(db, cfg)
	cp := NewClusterPropagator(db, ts, cfg)
	ga := NewGraphAnalyzer(ts, cp, cfg)
	ba := NewBehaviorAnalyzer(db)
	pf := NewPathFinder(ts, cfg)
	return NewHATScorer(ba, ga, ts, pf, cfg), ts, ba
}

func TestHATSelfScoreFallsBackWhenNoVotes(t *testing.T) {
	cfg := testCfg()
	h, _, _ := newTestHAT(cfg)
	score, err := h.Score(AddrId{1}, AddrId{1}, 1000)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score != SelfScore {
		t.Fatalf("expected the neutral fallback %v with no votes to aggregate, got %v", SelfScore, score)
	}
}

func TestHATSelfScoreAggregatesVotesWeightedByVoterHATScore(t *testing.T) {
	cfg := testCfg()
	h, ts, _ := newTestHAT(cfg)
	target := AddrId{1}
	goodVoter, badVoter, funder := AddrId{2}, AddrId{3}, AddrId{9}

	// goodVoter carries a large bonded incoming edge, giving it a high
	// economic component in its own wot=0 self-score; badVoter's incoming
	// edge is bonded at the bare minimum, giving it a much smaller one.
	if err := ts.AddTrustEdge(&TrustEdge{From: funder, To: goodVoter, Weight: 100, Bond: cfg.RequiredBond(100) * 1000, CreatedHeight: 1}); err != nil {
		t.Fatalf("fund goodVoter: %v", err)
	}
	if err := ts.AddTrustEdge(&TrustEdge{From: funder, To: badVoter, Weight: 10, Bond: cfg.RequiredBond(10), CreatedHeight: 1}); err != nil {
		t.Fatalf("fund badVoter: %v", err)
	}

	if err := ts.RecordBondedVote(&BondedVote{Tx: TxId{100}, Voter: goodVoter, Target: target, Value: 100, Bond: cfg.RequiredBond(100), BondTx: TxId{100}, CreatedHeight: 1}); err != nil {
		t.Fatalf("goodVoter vote: %v", err)
	}
	if err := ts.RecordBondedVote(&BondedVote{Tx: TxId{101}, Voter: badVoter, Target: target, Value: -100, Bond: cfg.RequiredBond(100), BondTx: TxId{101}, CreatedHeight: 1}); err != nil {
		t.Fatalf("badVoter vote: %v", err)
	}

	score, err := h.Score(target, target, 1000)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	// goodVoter's far larger HAT weight must dominate badVoter's opposing
	// vote: an unweighted average of +100/-100 would land at 0, well below
	// the neutral fallback; the weighted aggregate must land well above it.
	if score <= SelfScore {
		t.Fatalf("expected the heavier-weighted voter's vote to dominate and land above the neutral fallback %v, got %v", SelfScore, score)
	}
}

func TestHATScoreIsBoundedAndNonNegativeForUnknownAddress(t *testing.T) {
	cfg := testCfg()
	h, _, _ := newTestHAT(cfg)
	score, err := h.Score(AddrId{1}, AddrId{2}, 1000)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score < 0 || score > 100 {
		t.Fatalf("expected score in [0, 100], got %v", score)
	}
}

func TestHATScoreWoTIsZeroWithoutAPathNeverAGlobalAverage(t *testing.T) {
	cfg := testCfg()
	h, ts, _ := newTestHAT(cfg)
	viewer, target := AddrId{1}, AddrId{2}
	stranger := AddrId{3}

	if err := ts.AddTrustEdge(&TrustEdge{From: viewer, To: target, Weight: 100, Bond: cfg.RequiredBond(100), CreatedHeight: 1}); err != nil {
		t.Fatalf("add edge: %v", err)
	}
	if err := ts.RecordBondedVote(&BondedVote{Tx: TxId{1}, Voter: AddrId{7}, Target: target, Value: 80, Bond: cfg.RequiredBond(80), BondTx: TxId{1}, CreatedHeight: 1}); err != nil {
		t.Fatalf("vote: %v", err)
	}

	strangerWoT, err := h.wotComponent(stranger, target, 0)
	if err != nil {
		t.Fatalf("wot without path: %v", err)
	}
	if strangerWoT != 0 {
		t.Fatalf("wot must be exactly 0 with no trust path, not a global-average fallback: got %v", strangerWoT)
	}

	withPath, err := h.Score(viewer, target, 1000)
	if err != nil {
		t.Fatalf("score with path: %v", err)
	}
	withoutPath, err := h.Score(stranger, target, 1000)
	if err != nil {
		t.Fatalf("score without path: %v", err)
	}
	if withPath <= withoutPath {
		t.Fatalf("a viewer with a personalized path to a positively-voted target must outscore a path-less stranger: with=%v without=%v", withPath, withoutPath)
	}
}

func TestHATWeightedReputationMatchesWorkedExample(t *testing.T) {
	cfg := testCfg()
	h, ts, _ := newTestHAT(cfg)
	a, b, c := AddrId{1}, AddrId{2}, AddrId{3}

	if err := ts.AddTrustEdge(&TrustEdge{From: a, To: b, Weight: 50, Bond: cfg.RequiredBond(50), CreatedHeight: 1}); err != nil {
		t.Fatalf("A->B: %v", err)
	}
	if err := ts.AddTrustEdge(&TrustEdge{From: b, To: c, Weight: 50, Bond: cfg.RequiredBond(50), CreatedHeight: 1}); err != nil {
		t.Fatalf("B->C: %v", err)
	}
	if err := ts.RecordBondedVote(&BondedVote{Tx: TxId{1}, Voter: AddrId{9}, Target: c, Value: 80, Bond: cfg.RequiredBond(80), BondTx: TxId{1}, CreatedHeight: 1}); err != nil {
		t.Fatalf("vote +80: %v", err)
	}

	wr, err := h.path.WeightedReputation(a, c, 3)
	if err != nil {
		t.Fatalf("weighted reputation: %v", err)
	}
	if wr != 80 {
		t.Fatalf("expected weighted_reputation=80 per spec's worked example, got %v", wr)
	}

	if err := ts.RecordBondedVote(&BondedVote{Tx: TxId{2}, Voter: AddrId{10}, Target: c, Value: -20, Bond: cfg.RequiredBond(20), BondTx: TxId{2}, CreatedHeight: 1}); err != nil {
		t.Fatalf("vote -20: %v", err)
	}
	wr, err = h.path.WeightedReputation(a, c, 3)
	if err != nil {
		t.Fatalf("weighted reputation after second vote: %v", err)
	}
	if wr != 30 {
		t.Fatalf("expected weighted_reputation=30 per spec's worked example, got %v", wr)
	}
}

func TestHATEconomicComponentRewardsBondedStake(t *testing.T) {
	cfg := testCfg()
	h, ts, _ := newTestHAT(cfg)
	viewer := AddrId{9}
	unbonded, bonded := AddrId{1}, AddrId{2}

	if err := ts.AddTrustEdge(&TrustEdge{From: viewer, To: bonded, Weight: 10, Bond: cfg.RequiredBond(100) * 1000, CreatedHeight: 1}); err != nil {
		t.Fatalf("add edge: %v", err)
	}

	scoreUnbonded, err := h.Score(viewer, unbonded, 1000)
	if err != nil {
		t.Fatalf("score unbonded: %v", err)
	}
	scoreBonded, err := h.Score(viewer, bonded, 1000)
	if err != nil {
		t.Fatalf("score bonded: %v", err)
	}
	if scoreBonded <= scoreUnbonded {
		t.Fatalf("a heavily bonded target should outscore one with no bonded history: bonded=%v unbonded=%v", scoreBonded, scoreUnbonded)
	}
}
