package core

// Dispute handling: DAO-style challenge of a previously recorded
// BondedVote, tallied by simple stake-weighted majority (DESIGN.md
// "Dispute resolution quorum/tally rule"). Grounded on the teacher's
// core/governance_reputation_voting.go CastRepGovVote/ExecuteRepGovProposal
// pair, generalized from token-balance weight to bonded stake weight.

import "fmt"

type DisputeManager struct {
	db    Store
	trust *TrustStore
}

func NewDisputeManager(db Store, trust *TrustStore) *DisputeManager {
	return &DisputeManager{db: db, trust: trust}
}

// OpenDispute creates a new Dispute challenging disputedVote and records
// the challenger's bond amount on it; no funds are moved here. Disputing an
// already-slashed or nonexistent vote is rejected.
func (d *DisputeManager) OpenDispute(id TxId, disputedVote TxId, challenger AddrId, bond int64, height uint32) (*Dispute, error) {
	v, err := d.trust.GetVote(disputedVote)
	if err != nil {
		return nil, err
	}
	if v.Slashed {
		return nil, fmt.Errorf("%w: vote already slashed", ErrInvalidState)
	}
	if exists, err := d.db.Exists(DisputeKey(id)); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrAlreadyExists
	}
	disp := &Dispute{
		ID: id, DisputedVote: disputedVote, Challenger: challenger,
		ChallengerBond: bond, CreatedHeight: height, Votes: map[AddrId]DisputeBallot{},
	}
	raw, err := EncodeJSON(disp)
	if err != nil {
		return nil, err
	}
	if err := d.db.Write(DisputeKey(id), raw); err != nil {
		return nil, err
	}
	return disp, nil
}

func (d *DisputeManager) GetDispute(id TxId) (*Dispute, error) {
	raw, err := d.db.Read(DisputeKey(id))
	if err != nil {
		return nil, err
	}
	var disp Dispute
	if err := DecodeJSON(raw, &disp); err != nil {
		storeCorruption.Inc()
		return nil, ErrIntegrity
	}
	return &disp, nil
}

// CastBallot records member's stake-weighted position on an unresolved
// dispute. A member casting twice overwrites their prior ballot.
func (d *DisputeManager) CastBallot(id TxId, member AddrId, support bool, stake int64) error {
	disp, err := d.GetDispute(id)
	if err != nil {
		return err
	}
	if disp.Resolved {
		return fmt.Errorf("%w: dispute already resolved", ErrInvalidState)
	}
	disp.Votes[member] = DisputeBallot{Support: support, Stake: stake}
	raw, err := EncodeJSON(disp)
	if err != nil {
		return err
	}
	return d.db.Write(DisputeKey(id), raw)
}

// Resolve tallies cast ballots by stake-weighted majority and applies the
// outcome: OutcomeSlash slashes the disputed vote, OutcomeKeep leaves it
// untouched. A dispute with zero ballots cast cannot be resolved (DESIGN.md
// pins "at least one ballot cast" as the sole participation requirement).
func (d *DisputeManager) Resolve(id TxId, height uint32) (DisputeOutcome, error) {
	disp, err := d.GetDispute(id)
	if err != nil {
		return OutcomeNone, err
	}
	if disp.Resolved {
		return disp.Outcome, nil
	}
	if len(disp.Votes) == 0 {
		return OutcomeNone, fmt.Errorf("%w: no ballots cast", ErrNotReady)
	}

	var forSlash, forKeep int64
	for _, b := range disp.Votes {
		if b.Support {
			forSlash += b.Stake
		} else {
			forKeep += b.Stake
		}
	}
	outcome := OutcomeKeep
	if forSlash > forKeep {
		outcome = OutcomeSlash
	}

	disp.Resolved = true
	disp.Outcome = outcome
	raw, err := EncodeJSON(disp)
	if err != nil {
		return OutcomeNone, err
	}
	if err := d.db.Write(DisputeKey(id), raw); err != nil {
		return OutcomeNone, err
	}

	if outcome == OutcomeSlash {
		if err := d.trust.SlashVote(disp.DisputedVote, height); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}
