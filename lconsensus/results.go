package lconsensus

import "fmt"

// VoteResult describes what a successful vote call recorded.
type VoteResult uint8

const (
	_ VoteResult = iota // Invalid.

	VoteAccepted       // A new approval was recorded.
	VoteDuplicate      // The validator had already approved; nothing changed.
	VoteRejectionNoted // A disapproval, kept for diagnostics only.
)

func (r VoteResult) String() string {
	switch r {
	case VoteAccepted:
		return "accepted"
	case VoteDuplicate:
		return "duplicate"
	case VoteRejectionNoted:
		return "rejection_noted"
	default:
		return fmt.Sprintf("VoteResult(%d)", uint8(r))
	}
}

// ParseVoteResult is the inverse of [VoteResult.String].
func ParseVoteResult(s string) (VoteResult, error) {
	for _, r := range []VoteResult{VoteAccepted, VoteDuplicate, VoteRejectionNoted} {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown vote result %q", s)
}

// ConsensusResult is the outcome of evaluating one pending block.
type ConsensusResult struct {
	BlockID uint64 `json:"block_id"`

	Reached bool `json:"reached"`

	// Eligible validators at evaluation time,
	// and the minimum required for evaluation to proceed.
	EligibleCount int `json:"eligible_count"`
	MinValidators int `json:"min_validators"`

	TotalStake     uint64 `json:"total_stake"`
	VotedStake     uint64 `json:"voted_stake"`
	ThresholdStake uint64 `json:"threshold_stake"`

	// Set only when Reached is true: the block as confirmed.
	Block *Block `json:"block,omitempty"`

	// Pending blocks evicted because they linked to the same parent
	// as the confirmed block, and so can never extend the chain.
	Orphaned []uint64 `json:"orphaned,omitempty"`
}

// BlockVotes is the ledger view of a single pending block.
type BlockVotes struct {
	BlockID    uint64      `json:"block_id"`
	Approvals  []Signature `json:"approvals"`
	Rejections []Rejection `json:"rejections"`
}
