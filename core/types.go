package core

import "time"

// Contract is an immutable deployed program plus its deployer metadata
// (spec.md §3). Storage lives separately, keyed by (contract, slot).
type Contract struct {
	Address      AddrId
	Code         []byte
	Deployer     AddrId
	DeployHeight uint32
}

// TrustEdge is a directional, bonded, weighted trust relationship. At most
// one edge exists per (From, To) pair; later envelopes overwrite earlier
// ones in place (spec.md §3, §4.5).
type TrustEdge struct {
	From          AddrId
	To            AddrId
	Weight        int16 // -100..=100
	Bond          int64
	BondTx        TxId
	CreatedHeight uint32
	Reason        string // ≤256 bytes
	Slashed       bool
}

// PropagatedEdge is a TrustEdge derived by the Cluster Propagator (C6). It
// is never user-created and is slashed transitively with its SourceEdge.
type PropagatedEdge struct {
	TrustEdge
	SourceEdge     TxId
	OriginalTarget AddrId
}

// BondedVote is a reputation vote secured by a bond. Many votes per
// (Voter, Target) pair are retained independently until individually
// slashed.
type BondedVote struct {
	Tx            TxId
	Voter         AddrId
	Target        AddrId
	Value         int16
	Bond          int64
	BondTx        TxId
	CreatedHeight uint32
	Slashed       bool
}

// DisputeOutcome is the closed set of ways a Dispute can resolve.
type DisputeOutcome uint8

const (
	OutcomeNone DisputeOutcome = iota
	OutcomeSlash
	OutcomeKeep
)

func (o DisputeOutcome) String() string {
	switch o {
	case OutcomeSlash:
		return "slash"
	case OutcomeKeep:
		return "keep"
	default:
		return "none"
	}
}

// DisputeBallot records one DAO member's stake-weighted position on a
// Dispute.
type DisputeBallot struct {
	Support bool
	Stake   int64
}

// Dispute challenges a previously recorded BondedVote. Resolution tallies
// stake-weighted ballots against a quorum rule documented in DESIGN.md (the
// quorum/tally rule is one of spec.md §9's open questions; this
// implementation pins one — see DESIGN.md "Dispute resolution").
type Dispute struct {
	ID              TxId
	DisputedVote    TxId
	Challenger      AddrId
	ChallengerBond  int64
	CreatedHeight   uint32
	Votes           map[AddrId]DisputeBallot
	Resolved        bool
	Outcome         DisputeOutcome
}

// ClusterSummary aggregates a heuristically-detected wallet cluster for the
// Cluster Propagator (C6) and Graph Analyzer (C9).
type ClusterSummary struct {
	ClusterID      AddrId
	Members        []AddrId
	IncomingPos    int64
	IncomingNeg    int64
	EffectiveScore float64
	EdgeCount      uint32
}

// TradeRecord is one observed economic interaction feeding the Behavior
// Analyzer (C8).
type TradeRecord struct {
	Tx        TxId
	Partner   AddrId
	Volume    int64
	Timestamp int64
	Success   bool
	Disputed  bool
}

// BehaviorMetrics is the per-address trade history and cached scores
// maintained by C8. Timestamps are always sourced from the block being
// processed, never the wall clock (spec.md §9 determinism discipline).
type BehaviorMetrics struct {
	Addr             AddrId
	Trades           []TradeRecord
	UniquePartners   map[AddrId]struct{}
	CreatedAt        int64
	LastActivityAt   int64
	ActivityTimes    []int64
	HelpfulAnswers   uint32

	// cached, recomputed lazily
	cachedDiversity float64
	cachedVolume    float64
	cachedPattern   float64
	cacheValid      bool
}

// GraphMetrics is the per-address structural summary maintained by C9.
type GraphMetrics struct {
	Addr                AddrId
	InSuspiciousCluster bool
	MutualTrustRatio    float64
	Betweenness         float64
	Degree              float64
	MainEntryPoint      AddrId
	EntryAge            int64
	NodesThroughEntry   uint32
}

// QuantumPublicKey is a content-addressed lattice-based public key
// registered for later VERIFY_SIG_QUANTUM lookups by hash.
type QuantumPublicKey struct {
	Hash            [32]byte
	Key             []byte // 897 bytes, content-addressed: SHA256(Key) == Hash
	RegisteredHeight uint32
}

// PathStep is one hop of a weighted trust path returned by C7.
type PathStep struct {
	Addr   AddrId
	Weight int16 // weight of the edge leaving Addr toward the next hop
}

// Path is a DFS result from the Path Finder (C7): an ordered address list,
// the per-hop weights, and the multiplicative total weight in [-1, 1].
type Path struct {
	Addresses   []AddrId
	Weights     []int16
	TotalWeight float64
}

// GraphStats is a point-in-time, store-computed summary (spec.md §4.5:
// "no cached sentinel values").
type GraphStats struct {
	EdgeCount   uint64
	VoteCount   uint64
	SlashedVotes uint64
	DisputeCount uint64
	ComputedAt  time.Time
}
