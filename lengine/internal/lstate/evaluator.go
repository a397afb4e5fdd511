package lstate

import (
	"fmt"
	"slices"

	"github.com/gordian-engine/lattica/lconsensus"
)

// Evaluate computes the consensus outcome for a pending block
// without modifying any state.
//
// When the result is reached, its Block field holds the block
// as it would be confirmed, with its approvals attached.
func (s *State) Evaluate(blockID uint64) (lconsensus.ConsensusResult, error) {
	pi := s.pendingIndex(blockID)
	if pi < 0 {
		return lconsensus.ConsensusResult{}, fmt.Errorf(
			"%w: %d is not pending", lconsensus.ErrBlockNotFound, blockID,
		)
	}

	eligible := s.reg.Eligible()
	res := lconsensus.ConsensusResult{
		BlockID:       blockID,
		EligibleCount: len(eligible),
		MinValidators: s.minValidators,
	}
	if len(eligible) < s.minValidators {
		return res, nil
	}

	for _, v := range eligible {
		res.TotalStake = mustAddStake(res.TotalStake, v.Stake)
	}

	// The ledger already holds at most one approval per validator,
	// so summing over approvals is a sum over distinct signers.
	// Eligibility is re-resolved here rather than trusting
	// the score recorded alongside the vote.
	sigs := s.ledger.Approvals(blockID)
	for _, sig := range sigs {
		v, _, ok := s.reg.Lookup(sig.ValidatorID)
		if !ok || !s.reg.IsEligible(v) {
			continue
		}
		res.VotedStake = mustAddStake(res.VotedStake, v.Stake)
	}

	res.ThresholdStake = lconsensus.TwoThirdsStake(res.TotalStake)
	res.Reached = res.VotedStake >= res.ThresholdStake

	if res.Reached {
		b := s.pending[pi].Clone()
		b.Signatures = sigs
		res.Block = &b
	}

	return res, nil
}

// Confirm moves a pending block onto the chain, with its approvals attached,
// and evicts every other pending block that no longer links to the chain tip.
// It returns the confirmed block and the ids of the evicted blocks.
//
// Every pending block links to the tip that was current when it was proposed,
// so at most one child of each tip can ever be confirmed.
// Its siblings are evicted here, which leaves the pending set empty.
//
// Confirm does not evaluate consensus;
// callers are expected to have done so with [*State.Evaluate].
func (s *State) Confirm(blockID uint64) (lconsensus.Block, []uint64, error) {
	pi := s.pendingIndex(blockID)
	if pi < 0 {
		return lconsensus.Block{}, nil, fmt.Errorf(
			"%w: %d is not pending", lconsensus.ErrBlockNotFound, blockID,
		)
	}

	b := s.pending[pi].Clone()
	b.Signatures = s.ledger.Approvals(blockID)

	if err := s.chain.CheckAppend(b); err != nil {
		// Every pending block links to the tip it was proposed on,
		// and confirmation evicts everything linked to an older tip.
		panic(fmt.Errorf("BUG: pending block cannot extend chain: %w", err))
	}

	s.pending = slices.Delete(s.pending, pi, pi+1)
	s.ledger.Close(blockID)
	if err := s.chain.Append(b); err != nil {
		panic(fmt.Errorf("BUG: append failed after successful check: %w", err))
	}

	tip := s.chain.TipHash()
	var orphaned []uint64
	s.pending = slices.DeleteFunc(s.pending, func(p lconsensus.Block) bool {
		if p.PreviousHash == tip {
			return false
		}
		orphaned = append(orphaned, p.ID)
		s.ledger.Close(p.ID)
		return true
	})

	return b.Clone(), orphaned, nil
}

// mustAddStake panics on overflow,
// which the registry's bound on total active stake rules out.
func mustAddStake(a, b uint64) uint64 {
	sum, ok := lconsensus.AddStake(a, b)
	if !ok {
		panic(fmt.Errorf("BUG: stake sum overflowed adding %d to %d", b, a))
	}
	return sum
}

// CheckConsensus evaluates the pending block
// and confirms it if consensus was reached.
func (s *State) CheckConsensus(blockID uint64) (lconsensus.ConsensusResult, error) {
	res, err := s.Evaluate(blockID)
	if err != nil || !res.Reached {
		return res, err
	}

	b, orphaned, err := s.Confirm(blockID)
	if err != nil {
		return lconsensus.ConsensusResult{}, err
	}
	res.Block = &b
	res.Orphaned = orphaned
	return res, nil
}
