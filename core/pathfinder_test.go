package core

import "testing"

func TestFindBestPathDirectEdge(t *testing.T) {
	cfg := testCfg()
	ts := NewTrustStore(NewMemStore(), cfg)
	a, b := AddrId{1}, AddrId{2}
	if err := ts.AddTrustEdge(&TrustEdge{From: a, To: b, Weight: 80, Bond: cfg.RequiredBond(80), CreatedHeight: 1}); err != nil {
		t.Fatalf("add edge: %v", err)
	}
	pf := NewPathFinder(ts, cfg)
	p, err := pf.FindBestPath(a, b)
	if err != nil {
		t.Fatalf("find path: %v", err)
	}
	if len(p.Addresses) != 2 || p.Addresses[1] != b {
		t.Fatalf("unexpected path: %+v", p)
	}
	if p.TotalWeight != 0.8 {
		t.Fatalf("expected total weight 0.8, got %v", p.TotalWeight)
	}
}

func TestFindBestPathRespectsDepthLimit(t *testing.T) {
	cfg := testCfg()
	cfg.MaxTrustPathDepth = 2
	ts := NewTrustStore(NewMemStore(), cfg)
	addrs := []AddrId{{1}, {2}, {3}, {4}}
	for i := 0; i < len(addrs)-1; i++ {
		e := &TrustEdge{From: addrs[i], To: addrs[i+1], Weight: 50, Bond: cfg.RequiredBond(50), CreatedHeight: 1}
		if err := ts.AddTrustEdge(e); err != nil {
			t.Fatalf("add edge %d: %v", i, err)
		}
	}
	pf := NewPathFinder(ts, cfg)
	if _, err := pf.FindBestPath(addrs[0], addrs[3]); err != ErrNotFound {
		t.Fatalf("expected depth-limited search to miss a 3-hop target, got %v", err)
	}
	if _, err := pf.FindBestPath(addrs[0], addrs[2]); err != nil {
		t.Fatalf("expected depth-limited search to find a 2-hop target, got %v", err)
	}
}

func TestFindBestPathPrunesBelowWeightFloor(t *testing.T) {
	cfg := testCfg()
	cfg.EdgeWeightFloor = 50
	ts := NewTrustStore(NewMemStore(), cfg)
	a, b := AddrId{1}, AddrId{2}
	// Weight 20 is below the floor but still meets the (unrelated) bond
	// minimum, so AddTrustEdge itself must accept it — only FindBestPath
	// prunes on the floor.
	if err := ts.AddTrustEdge(&TrustEdge{From: a, To: b, Weight: 20, Bond: cfg.RequiredBond(20), CreatedHeight: 1}); err != nil {
		t.Fatalf("add edge: %v", err)
	}
	pf := NewPathFinder(ts, cfg)
	if _, err := pf.FindBestPath(a, b); err != ErrNotFound {
		t.Fatalf("expected sub-floor edge to be pruned from path search, got %v", err)
	}
}

func TestWeightedReputationReturnsErrNotFoundWithoutAPath(t *testing.T) {
	cfg := testCfg()
	ts := NewTrustStore(NewMemStore(), cfg)
	pf := NewPathFinder(ts, cfg)
	if _, err := pf.WeightedReputation(AddrId{1}, AddrId{2}, 0); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound with no path between viewer and target, got %v", err)
	}
}

func TestWeightedReputationIsZeroWithNoVotes(t *testing.T) {
	cfg := testCfg()
	ts := NewTrustStore(NewMemStore(), cfg)
	a, b := AddrId{1}, AddrId{2}
	if err := ts.AddTrustEdge(&TrustEdge{From: a, To: b, Weight: 80, Bond: cfg.RequiredBond(80), CreatedHeight: 1}); err != nil {
		t.Fatalf("add edge: %v", err)
	}
	pf := NewPathFinder(ts, cfg)
	wr, err := pf.WeightedReputation(a, b, 0)
	if err != nil {
		t.Fatalf("weighted reputation: %v", err)
	}
	if wr != 0 {
		t.Fatalf("expected 0 with a path but no votes to weight, got %v", wr)
	}
}

func TestFindBestPathNeverRevisitsAnAddress(t *testing.T) {
	cfg := testCfg()
	ts := NewTrustStore(NewMemStore(), cfg)
	a, b, c := AddrId{1}, AddrId{2}, AddrId{3}
	must := func(err error) {
		if err != nil {
			t.Fatalf("add edge: %v", err)
		}
	}
	must(ts.AddTrustEdge(&TrustEdge{From: a, To: b, Weight: 80, Bond: cfg.RequiredBond(80), CreatedHeight: 1}))
	must(ts.AddTrustEdge(&TrustEdge{From: b, To: a, Weight: 80, Bond: cfg.RequiredBond(80), CreatedHeight: 1}))
	must(ts.AddTrustEdge(&TrustEdge{From: b, To: c, Weight: 80, Bond: cfg.RequiredBond(80), CreatedHeight: 1}))

	pf := NewPathFinder(ts, cfg)
	p, err := pf.FindBestPath(a, c)
	if err != nil {
		t.Fatalf("find path: %v", err)
	}
	seen := map[AddrId]bool{}
	for _, addr := range p.Addresses {
		if seen[addr] {
			t.Fatalf("path revisits address %x: %+v", addr, p.Addresses)
		}
		seen[addr] = true
	}
}
