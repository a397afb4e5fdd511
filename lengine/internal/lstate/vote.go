package lstate

import (
	"context"
	"fmt"

	"github.com/gordian-engine/lattica/lconsensus"
)

// Vote records an approval or rejection of a pending block.
//
// Preconditions are checked in the order
// validator registered, validator eligible, block pending,
// and nothing is modified when any of them fails.
// A failure from the signature provider also leaves the ledger unchanged.
func (s *State) Vote(
	ctx context.Context, blockID uint64, validatorID string, approve bool,
) (lconsensus.VoteResult, error) {
	v, idx, ok := s.reg.Lookup(validatorID)
	if !ok {
		return 0, fmt.Errorf("%w: %q", lconsensus.ErrValidatorNotFound, validatorID)
	}
	if !s.reg.IsEligible(v) {
		return 0, fmt.Errorf(
			"%w: %q (active=%t score=%v threshold=%v)",
			lconsensus.ErrValidatorIneligible, validatorID, v.Active, v.Score, s.reg.Threshold(),
		)
	}

	pi := s.pendingIndex(blockID)
	if pi < 0 {
		return 0, fmt.Errorf("%w: %d is not pending", lconsensus.ErrBlockNotFound, blockID)
	}

	now := lconsensus.UnixMillis(s.clock.Now())

	if !approve {
		// Repeated rejections are collapsed the same way approvals are,
		// but the caller is told the rejection was noted either way.
		_ = s.ledger.Reject(blockID, idx, lconsensus.Rejection{
			ValidatorID: validatorID,
			Timestamp:   now,
		})
		return lconsensus.VoteRejectionNoted, nil
	}

	if s.ledger.HasApproved(blockID, idx) {
		return lconsensus.VoteDuplicate, nil
	}

	b := s.pending[pi]
	token, err := s.sp.SignVote(ctx, lconsensus.VoteTarget{
		BlockID:     b.ID,
		BlockHash:   b.Hash,
		ValidatorID: validatorID,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to produce vote token: %w", err)
	}

	if !s.ledger.Approve(blockID, idx, lconsensus.Signature{
		ValidatorID: validatorID,
		Score:       v.Score,
		Token:       token,
		Timestamp:   now,
	}) {
		panic(fmt.Errorf(
			"BUG: ledger refused approval of open block %d by %q after duplicate check",
			blockID, validatorID,
		))
	}

	return lconsensus.VoteAccepted, nil
}
