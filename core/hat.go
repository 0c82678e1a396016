package core

// HAT v2 Scorer (C10): combines behavioral, graph-structural (WoT),
// economic, and temporal signals into a single [0, 100] reputation score,
// weighted by cfg.HATWeights. The WoT component is personalized — it is
// computed from the path the viewer's own trust reaches the target
// through, not a single global number — per spec.md's "personalized
// Web-of-Trust" requirement. Grounded on the teacher's
// core/governance_reputation_voting.go token-weighted proposal scoring,
// generalized from a single token-balance weight to a four-component
// weighted sum.

type HATScorer struct {
	behavior *BehaviorAnalyzer
	graph    *GraphAnalyzer
	trust    *TrustStore
	path     *PathFinder
	cfg      Config
}

func NewHATScorer(behavior *BehaviorAnalyzer, graph *GraphAnalyzer, trust *TrustStore, path *PathFinder, cfg Config) *HATScorer {
	return &HATScorer{behavior: behavior, graph: graph, trust: trust, path: path, cfg: cfg}
}

// SelfScore is the neutral fallback returned for the viewer == target case
// when target has no non-slashed votes to aggregate (spec.md §4.10).
const SelfScore = 50.0

// Score computes target's HAT v2 reputation as seen by viewer, at the
// given block time. When viewer == target, self-trust must not inflate the
// score, so the viewer's own edges are never consulted: see selfScore.
func (h *HATScorer) Score(viewer, target AddrId, blockTime int64) (float64, error) {
	if viewer == target {
		return h.selfScore(target, blockTime)
	}

	behaviorScore, err := h.behaviorComponent(target)
	if err != nil {
		return 0, err
	}
	wotScore, err := h.wotComponent(viewer, target, 0)
	if err != nil {
		return 0, err
	}
	economicScore, err := h.economicComponent(target)
	if err != nil {
		return 0, err
	}
	temporalScore, err := h.temporalComponent(target, blockTime)
	if err != nil {
		return 0, err
	}

	w := h.cfg.HATWeights
	total := behaviorScore*w[0] + wotScore*w[1] + economicScore*w[2] + temporalScore*w[3]
	return clamp100(total), nil
}

// selfScore implements spec.md §4.10's viewer==target special case: a
// viewer-agnostic aggregate over every non-slashed vote recorded against
// target, weighted by each voter's own HAT score. Falls back to SelfScore
// when target has no votes to weight by (or every voter scores exactly
// zero, which carries no usable weight either way).
func (h *HATScorer) selfScore(target AddrId, blockTime int64) (float64, error) {
	votes, err := h.trust.GetVotesFor(target)
	if err != nil {
		return 0, err
	}
	var num, den float64
	for _, v := range votes {
		if v.Slashed {
			continue
		}
		voterScore, err := h.scoreWithoutWoT(v.Voter, blockTime)
		if err != nil {
			return 0, err
		}
		num += float64(v.Value) * voterScore
		den += voterScore
	}
	if den == 0 {
		return SelfScore, nil
	}
	return clamp100(num / den), nil
}

// scoreWithoutWoT computes addr's behavior/economic/temporal components
// with the wot term pinned to zero, used only to weight a voter's ballot in
// selfScore. This is the "one level of recursion" spec.md §4.10 bounds
// self-scoring to: a voter's own self-score never reads its own votes, so
// it can never recurse a second time.
func (h *HATScorer) scoreWithoutWoT(addr AddrId, blockTime int64) (float64, error) {
	behaviorScore, err := h.behaviorComponent(addr)
	if err != nil {
		return 0, err
	}
	economicScore, err := h.economicComponent(addr)
	if err != nil {
		return 0, err
	}
	temporalScore, err := h.temporalComponent(addr, blockTime)
	if err != nil {
		return 0, err
	}
	w := h.cfg.HATWeights
	total := behaviorScore*w[0] + economicScore*w[2] + temporalScore*w[3]
	return clamp100(total), nil
}

func (h *HATScorer) behaviorComponent(addr AddrId) (float64, error) {
	m, err := h.behavior.GetMetrics(addr)
	if err != nil {
		return 0, err
	}
	return m.Score(h.cfg.UNIT), nil
}

// wotComponent is spec.md §4.10's personalized WoT signal:
//
//	wot = C7.weighted_reputation(viewer, target) / 100
//	    * (0.3 if C9 flagged in_suspicious_cluster else 1.0)
//	    * max(0.5, 2.0 * betweenness)
//
// depth <= 0 uses C7's configured default depth. When viewer has no trust
// path to target at all, wot is exactly 0 — never a global-average
// fallback, since an un-reachable target carries no personalized signal
// for this viewer to weight.
func (h *HATScorer) wotComponent(viewer, target AddrId, depth int) (float64, error) {
	wr, err := h.path.WeightedReputation(viewer, target, depth)
	if err == ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	gm, err := h.graph.Analyze(target)
	if err != nil {
		return 0, err
	}
	suspiciousMult := 1.0
	if gm.InSuspiciousCluster {
		suspiciousMult = 0.3
	}
	betweennessFactor := 2.0 * gm.Betweenness
	if betweennessFactor < 0.5 {
		betweennessFactor = 0.5
	}

	// wr is already on HAT's [-100, 100] vote scale (see WeightedReputation);
	// dividing by 100 and later re-scaling by the same 100 to blend evenly
	// with the other [0, 100]-scale components nets out to wr itself.
	return wr * suspiciousMult * betweennessFactor, nil
}

// economicComponent reads stake directly from recorded bond totals
// (DESIGN.md "Stake oracle") — the sum of live incoming trust-edge bonds
// plus un-slashed bonded-vote bonds targeting addr, log-scaled against
// cfg.UNIT the same way behavioral volume is.
func (h *HATScorer) economicComponent(addr AddrId) (float64, error) {
	in, err := h.trust.GetIncoming(addr)
	if err != nil {
		return 0, err
	}
	var bond int64
	for _, e := range liveEdges(in) {
		bond += e.Bond
	}
	votes, err := h.trust.GetVotesFor(addr)
	if err != nil {
		return 0, err
	}
	for _, v := range votes {
		if !v.Slashed {
			bond += v.Bond
		}
	}
	if bond <= 0 || h.cfg.UNIT == 0 {
		return 0, nil
	}
	return volumeScore(&BehaviorMetrics{Trades: []TradeRecord{{Volume: bond, Success: true}}}, h.cfg.UNIT), nil
}

// temporalComponent rewards sustained, recent activity and penalizes long
// dormancy: recency starts at 100 for activity in the current block time
// and falls linearly to 0 once the gap since last activity reaches 30 days
// (in block-time seconds); it contributes 80% of the result, and account
// age adds a bonus of up to 20 that saturates at one year.
func (h *HATScorer) temporalComponent(addr AddrId, blockTime int64) (float64, error) {
	m, err := h.behavior.GetMetrics(addr)
	if err != nil {
		return 0, err
	}
	if m.LastActivityAt == 0 {
		return 0, nil
	}
	const day = 86400
	gap := blockTime - m.LastActivityAt
	if gap < 0 {
		gap = 0
	}
	recency := clamp100(100 - float64(gap)/(30*day)*100)

	age := blockTime - m.CreatedAt
	if age < 0 {
		age = 0
	}
	ageBonus := minFloat(float64(age)/(365*day)*20, 20)

	return clamp100(recency*0.8 + ageBonus), nil
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
