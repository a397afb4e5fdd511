package lconsensus

import (
	"math"
	"slices"
)

// GenesisHash is the previous hash of the first confirmed block.
const GenesisHash = "genesis"

// The coherence and fluctuation of every block must sum to one,
// within ConservationEpsilon.
const ConservationEpsilon = 1e-10

// Baseline values assigned to every proposed block.
const (
	BaselineCoherence   = 0.86
	BaselineFluctuation = 0.14
)

// Block is a proposed or confirmed hash-linked ledger entry
// (a "handover block").
type Block struct {
	ID uint64 `json:"id"`

	// Unix seconds at proposal time.
	Timestamp uint64 `json:"timestamp"`

	PreviousHash string `json:"previous_hash"`
	Hash         string `json:"hash"`

	// Score supplied by the proposer.
	// It is hashed but otherwise unconstrained.
	Score float64 `json:"score"`

	Coherence   float64 `json:"coherence"`
	Fluctuation float64 `json:"fluctuation"`

	ProposerID string `json:"proposer_id"`

	// Approval signatures, in the order they were recorded.
	Signatures []Signature `json:"signatures"`
}

// Signature is an approval recorded against a pending block.
type Signature struct {
	ValidatorID string `json:"validator_id"`

	// The validator's score when the vote was cast.
	// Consensus never trusts this snapshot;
	// it re-resolves the validator at evaluation time.
	Score float64 `json:"score"`

	// Opaque token from the SignatureProvider.
	Token []byte `json:"token"`

	// Unix milliseconds when the vote was recorded.
	Timestamp uint64 `json:"timestamp"`
}

// Rejection is a disapproving vote.
// Rejections are kept for diagnostics only
// and never contribute to consensus.
type Rejection struct {
	ValidatorID string `json:"validator_id"`
	Timestamp   uint64 `json:"timestamp"`
}

// ConservationHolds reports whether coherence and fluctuation sum to one.
func ConservationHolds(coherence, fluctuation float64) bool {
	return math.Abs(coherence+fluctuation-1) < ConservationEpsilon
}

// VerifyConservation reports whether b satisfies the coherence/fluctuation law.
func (b Block) VerifyConservation() bool {
	return ConservationHolds(b.Coherence, b.Fluctuation)
}

// HashInput returns the fields of b that determine its hash.
func (b Block) HashInput() BlockHashInput {
	return BlockHashInput{
		ID:           b.ID,
		Timestamp:    b.Timestamp,
		PreviousHash: b.PreviousHash,
		Score:        b.Score,
		Coherence:    b.Coherence,
		Fluctuation:  b.Fluctuation,
		ProposerID:   b.ProposerID,
	}
}

// Clone returns a deep copy of b.
func (b Block) Clone() Block {
	out := b
	if b.Signatures != nil {
		out.Signatures = make([]Signature, len(b.Signatures))
		for i, s := range b.Signatures {
			s.Token = slices.Clone(s.Token)
			out.Signatures[i] = s
		}
	}
	return out
}
