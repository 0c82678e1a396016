package core

// Graph Analyzer (C9): per-address structural signals feeding HAT v2's
// graph-structural component — suspicious-cluster membership, mutual-trust
// ratio, sampled betweenness, degree centrality, and main-entry-point
// detection (DESIGN.md "Entry-point thresholds"). Grounded on the
// teacher's core/cross_chain.go SPV-proof graph walk, generalized from a
// single verification chain to aggregate structural statistics.

import "sort"

type GraphAnalyzer struct {
	trust   *TrustStore
	cluster *ClusterPropagator
	cfg     Config
}

func NewGraphAnalyzer(trust *TrustStore, cluster *ClusterPropagator, cfg Config) *GraphAnalyzer {
	return &GraphAnalyzer{trust: trust, cluster: cluster, cfg: cfg}
}

// Analyze computes a fresh GraphMetrics snapshot for addr. Suspicious
// cluster membership, in particular, always re-derives from the current
// store state rather than trusting a cached cluster summary's age.
func (g *GraphAnalyzer) Analyze(addr AddrId) (*GraphMetrics, error) {
	out, err := g.trust.GetOutgoing(addr)
	if err != nil {
		return nil, err
	}
	in, err := g.trust.GetIncoming(addr)
	if err != nil {
		return nil, err
	}

	mutual := g.mutualTrustRatio(addr, out, in)
	degree := float64(len(liveEdges(out)) + len(liveEdges(in)))
	suspicious, err := g.isSuspiciousCluster(addr)
	if err != nil {
		return nil, err
	}
	entry, age, nodes, err := g.mainEntryPoint(addr, in)
	if err != nil {
		return nil, err
	}
	betweenness, err := g.sampledBetweenness(addr)
	if err != nil {
		return nil, err
	}

	return &GraphMetrics{
		Addr:                addr,
		InSuspiciousCluster: suspicious,
		MutualTrustRatio:    mutual,
		Betweenness:         betweenness,
		Degree:              degree,
		MainEntryPoint:      entry,
		EntryAge:            age,
		NodesThroughEntry:   nodes,
	}, nil
}

func liveEdges(edges []*TrustEdge) []*TrustEdge {
	var out []*TrustEdge
	for _, e := range edges {
		if !e.Slashed {
			out = append(out, e)
		}
	}
	return out
}

// mutualTrustRatio is the fraction of addr's live outgoing partners who
// also hold a live edge back to addr.
func (g *GraphAnalyzer) mutualTrustRatio(addr AddrId, out, in []*TrustEdge) float64 {
	outSet := map[AddrId]bool{}
	for _, e := range liveEdges(out) {
		outSet[e.To] = true
	}
	if len(outSet) == 0 {
		return 0
	}
	inSet := map[AddrId]bool{}
	for _, e := range liveEdges(in) {
		inSet[e.From] = true
	}
	mutual := 0
	for a := range outSet {
		if inSet[a] {
			mutual++
		}
	}
	return float64(mutual) / float64(len(outSet))
}

// isSuspiciousCluster flags addr when the cluster it seeds has a
// near-unanimous one-sided EffectiveScore over at least a handful of
// members — a concentration pattern the store-local heuristic can surface
// cheaply without a global clustering pass.
func (g *GraphAnalyzer) isSuspiciousCluster(addr AddrId) (bool, error) {
	summary, err := g.cluster.DetectCluster(addr, 64)
	if err != nil {
		return false, err
	}
	if len(summary.Members) < 4 {
		return false, nil
	}
	return summary.EffectiveScore >= 95 || summary.EffectiveScore <= 5, nil
}

// mainEntryPoint finds addr's sole positive predecessor p (if addr has
// exactly one live positive incoming edge) and checks whether p is, in
// turn, the sole positive predecessor of at least 3 distinct addresses
// among p's downstream targets — DESIGN.md's entry-point heuristic. When p
// qualifies, it is addr's main entry point, and the returned entry age is
// the earliest CreatedHeight among p's edges to those sole-predecessor
// targets. An addr with more than one live positive incoming edge has no
// main entry point.
func (g *GraphAnalyzer) mainEntryPoint(addr AddrId, in []*TrustEdge) (AddrId, int64, uint32, error) {
	var predecessor AddrId
	found := 0
	for _, e := range liveEdges(in) {
		if e.Weight > 0 {
			predecessor = e.From
			found++
		}
	}
	if found != 1 {
		return ZeroAddr, 0, 0, nil
	}

	downstream, err := g.trust.GetOutgoing(predecessor)
	if err != nil {
		return ZeroAddr, 0, 0, err
	}
	count := uint32(0)
	var earliest uint32 = ^uint32(0)
	for _, e := range liveEdges(downstream) {
		if e.Weight <= 0 {
			continue
		}
		targetIn, err := g.trust.GetIncoming(e.To)
		if err != nil {
			return ZeroAddr, 0, 0, err
		}
		sole := true
		for _, d := range liveEdges(targetIn) {
			if d.From != predecessor && d.Weight > 0 {
				sole = false
				break
			}
		}
		if sole {
			count++
			if e.CreatedHeight < earliest {
				earliest = e.CreatedHeight
			}
		}
	}
	if count < 3 {
		return ZeroAddr, 0, 0, nil
	}
	return predecessor, int64(earliest), count, nil
}

// sampledBetweenness approximates betweenness centrality by sampling
// addr's second-hop reach: the fraction of addr's neighbors' neighbors
// that are only reachable through addr (i.e. addr sits "between" them and
// the rest of the sample). A full all-pairs shortest-path computation is
// not attempted — it would be unbounded work per query (spec.md §5
// resource model forbids unbounded per-query cost).
func (g *GraphAnalyzer) sampledBetweenness(addr AddrId) (float64, error) {
	neighbors, err := g.trust.GetOutgoing(addr)
	if err != nil {
		return 0, err
	}
	live := liveEdges(neighbors)
	if len(live) == 0 {
		return 0, nil
	}
	neighborSet := map[AddrId]bool{}
	for _, e := range live {
		neighborSet[e.To] = true
	}

	total, through := 0, 0
	for _, e := range live {
		secondHop, err := g.trust.GetOutgoing(e.To)
		if err != nil {
			return 0, err
		}
		for _, s := range liveEdges(secondHop) {
			if s.To == addr || neighborSet[s.To] {
				continue
			}
			total++
			onlyViaAddr, err := g.onlyReachableViaAddr(addr, e.To, s.To, neighborSet)
			if err != nil {
				return 0, err
			}
			if onlyViaAddr {
				through++
			}
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(through) / float64(total), nil
}

// onlyReachableViaAddr reports whether dst's only live predecessor among
// addr's neighbor set is via.
func (g *GraphAnalyzer) onlyReachableViaAddr(addr, via, dst AddrId, neighborSet map[AddrId]bool) (bool, error) {
	in, err := g.trust.GetIncoming(dst)
	if err != nil {
		return false, err
	}
	for _, e := range liveEdges(in) {
		if e.From != via && neighborSet[e.From] {
			return false, nil
		}
	}
	return true, nil
}

// DegreeRank orders a set of addresses by total live degree, descending,
// for use by host dashboards and the query interface's top-N listings.
func (g *GraphAnalyzer) DegreeRank(addrs []AddrId) ([]AddrId, error) {
	type scored struct {
		addr   AddrId
		degree int
	}
	scoredList := make([]scored, 0, len(addrs))
	for _, a := range addrs {
		out, err := g.trust.GetOutgoing(a)
		if err != nil {
			return nil, err
		}
		in, err := g.trust.GetIncoming(a)
		if err != nil {
			return nil, err
		}
		scoredList = append(scoredList, scored{addr: a, degree: len(liveEdges(out)) + len(liveEdges(in))})
	}
	sort.Slice(scoredList, func(i, j int) bool {
		if scoredList[i].degree != scoredList[j].degree {
			return scoredList[i].degree > scoredList[j].degree
		}
		return lessAddr(scoredList[i].addr, scoredList[j].addr)
	})
	out := make([]AddrId, len(scoredList))
	for i, s := range scoredList {
		out[i] = s.addr
	}
	return out, nil
}
