package lconsensus

import "math"

// Validator is a registered participant in block confirmation.
type Validator struct {
	ID string `json:"id"`

	// Score is the eligibility metric ("syzygy") in [0, 1].
	Score float64 `json:"score"`

	// Stake is the weight of this validator's approval.
	Stake uint64 `json:"stake"`

	Active bool `json:"active"`
}

// IsEligible reports whether v may propose and vote
// under the given minimum score.
func (v Validator) IsEligible(threshold float64) bool {
	return v.Active && v.Score >= threshold
}

// ValidScore reports whether s is a usable eligibility score.
// NaN and values outside [0, 1] are rejected,
// because NaN would otherwise compare as "not below" any threshold.
func ValidScore(s float64) bool {
	return !math.IsNaN(s) && s >= 0 && s <= 1
}
