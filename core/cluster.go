package core

// Cluster Propagator (C6): detects wallet clusters via a deterministic,
// store-local heuristic (DESIGN.md "Cluster-membership heuristic"),
// derives PropagatedEdges from a cluster's trust into its members, and
// cascades slashing from a source edge to every edge it propagated.
// Grounded on the teacher's core/access_control.go cache-then-ledger
// write-through pattern.

import (
	"sort"

	"github.com/sirupsen/logrus"
)

type ClusterPropagator struct {
	db    Store
	trust *TrustStore
	cfg   Config
	log   *logrus.Entry
}

func NewClusterPropagator(db Store, trust *TrustStore, cfg Config) *ClusterPropagator {
	return &ClusterPropagator{db: db, trust: trust, cfg: cfg, log: logrus.WithField("component", "cluster")}
}

// DetectCluster applies the pinned heuristic: starting from seed, collect
// every address that has a non-slashed trust edge, in either direction,
// with |weight| >= cfg.EdgeWeightFloor to an already-collected member.
// Shared vote history does not add members. The search is a breadth-first
// closure over the store, bounded by maxMembers to keep it deterministic
// and cheap even on a pathological input.
func (c *ClusterPropagator) DetectCluster(seed AddrId, maxMembers int) (*ClusterSummary, error) {
	members := map[AddrId]bool{seed: true}
	queue := []AddrId{seed}

	for len(queue) > 0 && len(members) < maxMembers {
		cur := queue[0]
		queue = queue[1:]

		seedVotes, err := c.trust.GetVotesFor(cur)
		if err != nil {
			return nil, err
		}
		seedHeights := map[uint32]bool{}
		for _, v := range seedVotes {
			seedHeights[v.CreatedHeight] = true
		}

		out, err := c.trust.GetOutgoing(cur)
		if err != nil {
			return nil, err
		}
		in, err := c.trust.GetIncoming(cur)
		if err != nil {
			return nil, err
		}
		for _, e := range append(out, in...) {
			if e.Slashed {
				continue
			}
			w := e.Weight
			if w < 0 {
				w = -w
			}
			if w < c.cfg.EdgeWeightFloor {
				continue
			}
			other := e.To
			if other == cur {
				other = e.From
			}
			if members[other] || len(members) >= maxMembers {
				continue
			}
			members[other] = true
			queue = append(queue, other)
		}
	}

	memberList := make([]AddrId, 0, len(members))
	for m := range members {
		memberList = append(memberList, m)
	}
	sort.Slice(memberList, func(i, j int) bool { return lessAddr(memberList[i], memberList[j]) })

	var incPos, incNeg int64
	var edgeCount uint32
	for _, m := range memberList {
		in, err := c.trust.GetIncoming(m)
		if err != nil {
			return nil, err
		}
		for _, e := range in {
			if e.Slashed {
				continue
			}
			edgeCount++
			if e.Weight >= 0 {
				incPos += int64(e.Weight)
			} else {
				incNeg += int64(-e.Weight)
			}
		}
	}
	total := incPos + incNeg
	effective := 0.0
	if total > 0 {
		effective = float64(incPos) / float64(total) * 100
	}

	summary := &ClusterSummary{
		ClusterID:      seed,
		Members:        memberList,
		IncomingPos:    incPos,
		IncomingNeg:    incNeg,
		EffectiveScore: effective,
		EdgeCount:      edgeCount,
	}
	raw, err := EncodeJSON(summary)
	if err != nil {
		return nil, err
	}
	if err := c.db.Write(ClusterTrustKey(seed), raw); err != nil {
		return nil, err
	}
	return summary, nil
}

// GetClusterSummary reads back a previously detected cluster's summary.
func (c *ClusterPropagator) GetClusterSummary(clusterID AddrId) (*ClusterSummary, error) {
	raw, err := c.db.Read(ClusterTrustKey(clusterID))
	if err != nil {
		return nil, err
	}
	var s ClusterSummary
	if err := DecodeJSON(raw, &s); err != nil {
		storeCorruption.Inc()
		return nil, ErrIntegrity
	}
	return &s, nil
}

// PropagateEdge derives a PropagatedEdge from source into every member of
// target's cluster other than the original target, each inheriting
// source's weight and bond provenance but keyed under trust_prop_ so it
// never shadows a user-authored edge (spec.md §4.6).
func (c *ClusterPropagator) PropagateEdge(source *TrustEdge, sourceTx TxId, cluster *ClusterSummary, height uint32) ([]*PropagatedEdge, error) {
	var out []*PropagatedEdge
	for _, m := range cluster.Members {
		if m == source.To {
			continue
		}
		pe := &PropagatedEdge{
			TrustEdge: TrustEdge{
				From: source.From, To: m, Weight: source.Weight,
				Bond: source.Bond, BondTx: source.BondTx, CreatedHeight: height,
				Reason: "cluster-propagated",
			},
			SourceEdge:     sourceTx,
			OriginalTarget: source.To,
		}
		if err := c.db.Write(TrustPropKey(pe.From, pe.To), EncodePropagatedEdge(pe)); err != nil {
			return nil, err
		}
		out = append(out, pe)
	}
	return out, nil
}

// CascadeSlash slashes every PropagatedEdge whose SourceEdge is sourceTx
// and returns how many it slashed (spec.md §4.6: slashing a trust edge
// slashes everything it propagated). The source edge itself is not
// touched here; TrustStore.SlashEdge slashes it.
func (c *ClusterPropagator) CascadeSlash(sourceTx TxId) (int, error) {
	it := c.db.IterPrefix([]byte("trust_prop_"))
	defer it.Close()
	count := 0
	for it.Next() {
		pe, err := DecodePropagatedEdge(it.Value())
		if err != nil {
			storeCorruption.Inc()
			c.log.WithError(err).Warn("corrupt propagated edge, skipping")
			continue
		}
		if pe.SourceEdge != sourceTx || pe.Slashed {
			continue
		}
		pe.Slashed = true
		if err := c.db.Write(TrustPropKey(pe.From, pe.To), EncodePropagatedEdge(pe)); err != nil {
			return count, err
		}
		count++
	}
	if err := it.Error(); err != nil {
		return count, err
	}
	return count, nil
}
