package core

// Query Interface (C12): read-only, snapshot-based access to every other
// component's state, for host RPC layers and the crvmctl CLI. Grounded on
// the teacher's cmd/cli/access_control.go query-command pattern
// (decode-address, call into a component, print/return), generalized into
// a Go API consumed by cmd/crvmctl rather than printed directly.

type QueryService struct {
	db       Store
	cfg      Config
	registry *ContractRegistry
	trust    *TrustStore
	path     *PathFinder
	cluster  *ClusterPropagator
	behavior *BehaviorAnalyzer
	graph    *GraphAnalyzer
	hat      *HATScorer
	disputes *DisputeManager
}

func NewQueryService(
	db Store, cfg Config, registry *ContractRegistry, trust *TrustStore,
	path *PathFinder, cluster *ClusterPropagator, behavior *BehaviorAnalyzer,
	graph *GraphAnalyzer, hat *HATScorer, disputes *DisputeManager,
) *QueryService {
	return &QueryService{
		db: db, cfg: cfg, registry: registry, trust: trust, path: path,
		cluster: cluster, behavior: behavior, graph: graph, hat: hat, disputes: disputes,
	}
}

func (q *QueryService) GetContract(addr AddrId) (*Contract, error) { return q.registry.Load(addr) }

func (q *QueryService) GetOutgoingTrust(addr AddrId) ([]*TrustEdge, error) {
	return q.trust.GetOutgoing(addr)
}

func (q *QueryService) GetIncomingTrust(addr AddrId) ([]*TrustEdge, error) {
	return q.trust.GetIncoming(addr)
}

func (q *QueryService) GetVotesFor(addr AddrId) ([]*BondedVote, error) {
	return q.trust.GetVotesFor(addr)
}

func (q *QueryService) GetGraphStats(blockTime int64) (*GraphStats, error) {
	return q.trust.GetGraphStats(blockTime)
}

func (q *QueryService) FindTrustPath(from, to AddrId) (*Path, error) {
	return q.path.FindBestPath(from, to)
}

// GetWeightedReputation is C12's get_weighted_reputation(viewer, target,
// depth): the vote-weighted, viewer-personalized path reputation C7
// computes, independent of HAT v2's further behavioral/economic/temporal
// blending. depth <= 0 uses C7's configured default.
func (q *QueryService) GetWeightedReputation(viewer, target AddrId, depth int) (float64, error) {
	return q.path.WeightedReputation(viewer, target, depth)
}

func (q *QueryService) GetCluster(seed AddrId) (*ClusterSummary, error) {
	return q.cluster.DetectCluster(seed, 64)
}

func (q *QueryService) GetBehaviorMetrics(addr AddrId) (*BehaviorMetrics, error) {
	return q.behavior.GetMetrics(addr)
}

func (q *QueryService) GetGraphMetrics(addr AddrId) (*GraphMetrics, error) {
	return q.graph.Analyze(addr)
}

// GetReputation is the headline HAT v2 query: target's score as seen by
// viewer at blockTime.
func (q *QueryService) GetReputation(viewer, target AddrId, blockTime int64) (float64, error) {
	return q.hat.Score(viewer, target, blockTime)
}

func (q *QueryService) GetDispute(id TxId) (*Dispute, error) { return q.disputes.GetDispute(id) }

func (q *QueryService) TopByDegree(addrs []AddrId, n int) ([]AddrId, error) {
	ranked, err := q.graph.DegreeRank(addrs)
	if err != nil {
		return nil, err
	}
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked, nil
}
