package core

import "testing"

func TestMutualTrustRatioCountsOnlyReciprocatedEdges(t *testing.T) {
	cfg := testCfg()
	db := NewMemStore()
	ts := NewTrustStore(db, cfg)
	cp := NewClusterPropagator(db, ts, cfg)
	ga := NewGraphAnalyzer(ts, cp, cfg)

	a, b, c := AddrId{1}, AddrId{2}, AddrId{3}
	must := func(err error) {
		if err != nil {
			t.Fatalf("add edge: %v", err)
		}
	}
	must(ts.AddTrustEdge(&TrustEdge{From: a, To: b, Weight: 80, Bond: cfg.RequiredBond(80), CreatedHeight: 1}))
	must(ts.AddTrustEdge(&TrustEdge{From: b, To: a, Weight: 80, Bond: cfg.RequiredBond(80), CreatedHeight: 1})) // reciprocated
	must(ts.AddTrustEdge(&TrustEdge{From: a, To: c, Weight: 80, Bond: cfg.RequiredBond(80), CreatedHeight: 1})) // one-way

	m, err := ga.Analyze(a)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if m.MutualTrustRatio != 0.5 {
		t.Fatalf("expected mutual trust ratio 0.5 (1 of 2 reciprocated), got %v", m.MutualTrustRatio)
	}
	if m.Degree != 3 {
		t.Fatalf("expected degree 3 (2 out + 1 in), got %v", m.Degree)
	}
}

func TestMainEntryPointRequiresThreeDistinctSoleDownstream(t *testing.T) {
	cfg := testCfg()
	db := NewMemStore()
	ts := NewTrustStore(db, cfg)
	cp := NewClusterPropagator(db, ts, cfg)
	ga := NewGraphAnalyzer(ts, cp, cfg)

	hub := AddrId{1}
	must := func(err error) {
		if err != nil {
			t.Fatalf("add edge: %v", err)
		}
	}
	for i := byte(0); i < 3; i++ {
		downstream := AddrId{i + 10}
		must(ts.AddTrustEdge(&TrustEdge{From: hub, To: downstream, Weight: 80, Bond: cfg.RequiredBond(80), CreatedHeight: uint32(i + 1)}))
		m, err := ga.Analyze(downstream)
		if err != nil {
			t.Fatalf("analyze downstream %d: %v", i, err)
		}
		if i < 2 {
			if m.MainEntryPoint != ZeroAddr {
				t.Fatalf("expected no entry point before the third sole downstream, got %x at i=%d", m.MainEntryPoint, i)
			}
		} else {
			if m.MainEntryPoint != hub {
				t.Fatalf("expected hub to be the main entry point with 3 sole downstreams, got %x", m.MainEntryPoint)
			}
		}
	}
}

func TestSuspiciousClusterFlagsConcentratedPositiveCluster(t *testing.T) {
	cfg := testCfg()
	cfg.EdgeWeightFloor = 10
	db := NewMemStore()
	ts := NewTrustStore(db, cfg)
	cp := NewClusterPropagator(db, ts, cfg)
	ga := NewGraphAnalyzer(ts, cp, cfg)

	seed := AddrId{1}
	must := func(err error) {
		if err != nil {
			t.Fatalf("add edge: %v", err)
		}
	}
	members := []AddrId{{2}, {3}, {4}, {5}}
	prev := seed
	for _, m := range members {
		must(ts.AddTrustEdge(&TrustEdge{From: prev, To: m, Weight: 100, Bond: cfg.RequiredBond(100), CreatedHeight: 1}))
		must(ts.AddTrustEdge(&TrustEdge{From: m, To: seed, Weight: 100, Bond: cfg.RequiredBond(100), CreatedHeight: 1}))
		prev = m
	}

	gm, err := ga.Analyze(seed)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !gm.InSuspiciousCluster {
		t.Fatalf("expected a unanimous all-positive 5-member cluster to be flagged suspicious")
	}
}

func TestDegreeRankOrdersDescendingWithDeterministicTieBreak(t *testing.T) {
	cfg := testCfg()
	db := NewMemStore()
	ts := NewTrustStore(db, cfg)
	cp := NewClusterPropagator(db, ts, cfg)
	ga := NewGraphAnalyzer(ts, cp, cfg)

	hi, lo := AddrId{1}, AddrId{2}
	must := func(err error) {
		if err != nil {
			t.Fatalf("add edge: %v", err)
		}
	}
	must(ts.AddTrustEdge(&TrustEdge{From: hi, To: AddrId{9}, Weight: 50, Bond: cfg.RequiredBond(50), CreatedHeight: 1}))
	must(ts.AddTrustEdge(&TrustEdge{From: hi, To: AddrId{8}, Weight: 50, Bond: cfg.RequiredBond(50), CreatedHeight: 1}))

	ranked, err := ga.DegreeRank([]AddrId{lo, hi})
	if err != nil {
		t.Fatalf("degree rank: %v", err)
	}
	if ranked[0] != hi {
		t.Fatalf("expected higher-degree address first, got %x", ranked[0])
	}
}
