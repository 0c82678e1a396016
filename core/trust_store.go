package core

// Trust Graph Store (C5): CRUD over TrustEdge/BondedVote records plus the
// reverse index and point-in-time GraphStats aggregation. PropagatedEdge
// records are written and slashed by the Cluster Propagator (cluster.go).
// Grounded on the teacher's core/access_control.go "ledger-backed map with
// forward+reverse key" idiom, generalized from role grants to weighted
// directional trust edges.

import (
	"bytes"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// TrustStore wraps a Store handle with the higher-level trust-graph
// operations. It holds no state of its own beyond the handle: every read
// goes through the backing Store, so two TrustStores over the same Store
// observe each other's writes immediately.
type TrustStore struct {
	db  Store
	cfg Config
	log *logrus.Entry
}

func NewTrustStore(db Store, cfg Config) *TrustStore {
	return &TrustStore{db: db, cfg: cfg, log: logrus.WithField("component", "trust_store")}
}

// AddTrustEdge validates bond sufficiency and self-trust exclusion, then
// writes the edge under both its forward and reverse keys (spec.md §4.5).
// Previously recorded edges for the same (From, To) pair are silently
// overwritten, as required.
func (t *TrustStore) AddTrustEdge(e *TrustEdge) error {
	if e.From == e.To {
		return fmt.Errorf("%w: self-trust edge rejected", ErrInvalidState)
	}
	required := t.cfg.RequiredBond(e.Weight)
	if e.Bond < required {
		return fmt.Errorf("%w: bond %d below required %d", ErrInsufficientBond, e.Bond, required)
	}
	if e.Weight < -100 || e.Weight > 100 {
		return fmt.Errorf("%w: weight out of range", ErrInvalidState)
	}

	raw := EncodeTrustEdge(e)
	b := t.db.NewBatch()
	b.Set(TrustKey(e.From, e.To), raw)
	b.Set(TrustInKey(e.To, e.From), raw)
	if err := t.db.Commit(b, e.CreatedHeight); err != nil {
		return err
	}
	return nil
}

// GetOutgoing returns every trust edge originating at from, slashed or not;
// callers filter slashed edges themselves.
func (t *TrustStore) GetOutgoing(from AddrId) ([]*TrustEdge, error) {
	it := t.db.IterPrefix(concat([]byte("trust_"), from.Bytes(), []byte("_")))
	defer it.Close()
	var out []*TrustEdge
	for it.Next() {
		e, err := DecodeTrustEdge(it.Value())
		if err != nil {
			storeCorruption.Inc()
			t.log.WithError(err).Warn("corrupt trust edge record, skipping")
			continue
		}
		out = append(out, e)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetIncoming returns every trust edge terminating at to, slashed or not,
// using the dedicated reverse index rather than a full scan (spec.md §4.5);
// callers filter slashed edges themselves.
func (t *TrustStore) GetIncoming(to AddrId) ([]*TrustEdge, error) {
	it := t.db.IterPrefix(concat([]byte("trust_in_"), to.Bytes(), []byte("_")))
	defer it.Close()
	var out []*TrustEdge
	for it.Next() {
		e, err := DecodeTrustEdge(it.Value())
		if err != nil {
			storeCorruption.Inc()
			t.log.WithError(err).Warn("corrupt reverse trust edge record, skipping")
			continue
		}
		out = append(out, e)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetEdge looks up a single (from, to) edge.
func (t *TrustStore) GetEdge(from, to AddrId) (*TrustEdge, error) {
	raw, err := t.db.Read(TrustKey(from, to))
	if err != nil {
		return nil, err
	}
	return DecodeTrustEdge(raw)
}

// RecordBondedVote validates bond sufficiency, then appends the vote under
// its tx key and the (target, tx) index key — many votes per (voter,
// target) are retained independently (spec.md §4.5).
func (t *TrustStore) RecordBondedVote(v *BondedVote) error {
	required := t.cfg.RequiredBond(v.Value)
	if v.Bond < required {
		return fmt.Errorf("%w: bond %d below required %d", ErrInsufficientBond, v.Bond, required)
	}
	raw := EncodeBondedVote(v)
	b := t.db.NewBatch()
	b.Set(VoteKey(v.Tx), raw)
	b.Set(VotesTargetKey(v.Target, v.Tx), raw)
	return t.db.Commit(b, v.CreatedHeight)
}

// GetVote looks up a single bonded vote by its originating tx.
func (t *TrustStore) GetVote(tx TxId) (*BondedVote, error) {
	raw, err := t.db.Read(VoteKey(tx))
	if err != nil {
		return nil, err
	}
	return DecodeBondedVote(raw)
}

// GetVotesFor returns every bonded vote recorded against target, slashed or
// not; callers filter as needed (spec.md §4.12 query semantics).
func (t *TrustStore) GetVotesFor(target AddrId) ([]*BondedVote, error) {
	it := t.db.IterPrefix(VotesTargetPrefix(target))
	defer it.Close()
	var out []*BondedVote
	for it.Next() {
		v, err := DecodeBondedVote(it.Value())
		if err != nil {
			storeCorruption.Inc()
			t.log.WithError(err).Warn("corrupt bonded vote record, skipping")
			continue
		}
		out = append(out, v)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

// SlashVote marks a bonded vote as slashed in place. Both the primary and
// target-indexed copies are updated so a later GetVotesFor reflects the
// slash without a second lookup.
func (t *TrustStore) SlashVote(tx TxId, height uint32) error {
	v, err := t.GetVote(tx)
	if err != nil {
		return err
	}
	if v.Slashed {
		return nil // idempotent
	}
	v.Slashed = true
	raw := EncodeBondedVote(v)
	b := t.db.NewBatch()
	b.Set(VoteKey(tx), raw)
	b.Set(VotesTargetKey(v.Target, tx), raw)
	if err := t.db.Commit(b, height); err != nil {
		return err
	}
	votesSlashed.Inc()
	return nil
}

// SlashEdge marks a trust edge slashed in place, updating both directions
// of its index.
func (t *TrustStore) SlashEdge(from, to AddrId, height uint32) error {
	e, err := t.GetEdge(from, to)
	if err != nil {
		return err
	}
	if e.Slashed {
		return nil
	}
	e.Slashed = true
	raw := EncodeTrustEdge(e)
	b := t.db.NewBatch()
	b.Set(TrustKey(from, to), raw)
	b.Set(TrustInKey(to, from), raw)
	return t.db.Commit(b, height)
}

// GetGraphStats recomputes aggregate counts by scanning the store; spec.md
// §4.5 forbids cached sentinel values, so this is always a fresh scan.
// blockTime is the caller-supplied block timestamp, stamped onto the
// result's ComputedAt rather than the wall clock (spec.md §9 determinism
// discipline).
func (t *TrustStore) GetGraphStats(blockTime int64) (*GraphStats, error) {
	stats := &GraphStats{ComputedAt: time.Unix(blockTime, 0).UTC()}

	// "trust_" is also a byte-prefix of the trust_in_ and trust_prop_
	// keyspaces, so a plain IterPrefix("trust_") would count every edge
	// twice (forward and reverse key) and every propagated edge as well;
	// only the forward trust_ keys are counted here.
	edges := t.db.IterPrefix([]byte("trust_"))
	defer edges.Close()
	for edges.Next() {
		k := edges.Key()
		if bytes.HasPrefix(k, []byte("trust_in_")) || bytes.HasPrefix(k, []byte("trust_prop_")) {
			continue
		}
		stats.EdgeCount++
	}
	if err := edges.Error(); err != nil {
		return nil, err
	}

	votes := t.db.IterPrefix([]byte("vote_"))
	defer votes.Close()
	for votes.Next() {
		v, err := DecodeBondedVote(votes.Value())
		if err != nil {
			storeCorruption.Inc()
			continue
		}
		stats.VoteCount++
		if v.Slashed {
			stats.SlashedVotes++
		}
	}
	if err := votes.Error(); err != nil {
		return nil, err
	}

	disputes := t.db.IterPrefix([]byte("dispute_"))
	defer disputes.Close()
	for disputes.Next() {
		stats.DisputeCount++
	}
	if err := disputes.Error(); err != nil {
		return nil, err
	}

	return stats, nil
}
