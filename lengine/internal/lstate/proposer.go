package lstate

import (
	"fmt"
	"math"

	"github.com/gordian-engine/lattica/lconsensus"
)

// Propose creates a new block from proposerID
// and places it at the end of the pending set.
// The block score is not range-checked, but it must be finite.
func (s *State) Propose(score float64, proposerID string) (lconsensus.Block, error) {
	v, _, ok := s.reg.Lookup(proposerID)
	if !ok {
		return lconsensus.Block{}, fmt.Errorf("%w: %q", lconsensus.ErrProposerUnregistered, proposerID)
	}
	if !s.reg.IsEligible(v) {
		return lconsensus.Block{}, fmt.Errorf(
			"%w: %q (active=%t score=%v threshold=%v)",
			lconsensus.ErrProposerIneligible, proposerID, v.Active, v.Score, s.reg.Threshold(),
		)
	}

	if math.IsNaN(score) || math.IsInf(score, 0) {
		return lconsensus.Block{}, fmt.Errorf("%w: block score %v is not finite", lconsensus.ErrInvalidScore, score)
	}

	b := lconsensus.Block{
		ID:           s.nextID,
		Timestamp:    lconsensus.UnixSeconds(s.clock.Now()),
		PreviousHash: s.chain.TipHash(),
		Score:        score,
		Coherence:    lconsensus.BaselineCoherence,
		Fluctuation:  lconsensus.BaselineFluctuation,
		ProposerID:   proposerID,
	}

	h, err := s.hs.BlockHash(b.HashInput())
	if err != nil {
		return lconsensus.Block{}, fmt.Errorf("failed to hash block %d: %w", b.ID, err)
	}
	b.Hash = h

	if !b.VerifyConservation() {
		return lconsensus.Block{}, fmt.Errorf(
			"%w: block %d (coherence=%v fluctuation=%v)",
			lconsensus.ErrConservationViolation, b.ID, b.Coherence, b.Fluctuation,
		)
	}

	s.nextID++
	s.pending = append(s.pending, b)
	s.ledger.Open(b.ID)

	return b.Clone(), nil
}
