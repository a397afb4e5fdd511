package lstate

import (
	"fmt"
	"slices"

	"github.com/gordian-engine/lattica/lconsensus"
)

// Registry owns validator identities, scores, stake, and activity.
//
// The combined stake of active validators always fits in a uint64,
// so stake sums over any subset of them cannot overflow.
//
// Each validator receives a registration index the first time it registers.
// The index never changes, even across re-registration,
// so it is safe to use as a bit position in vote sets.
type Registry struct {
	threshold float64

	byID map[string]uint
	vals []lconsensus.Validator // Indexed by registration index.
}

func NewRegistry(threshold float64) *Registry {
	return &Registry{
		threshold: threshold,
		byID:      make(map[string]uint),
	}
}

// Threshold returns the configured minimum eligibility score.
func (r *Registry) Threshold() float64 {
	return r.threshold
}

// CheckRegistration reports the error [*Registry.Register] would return,
// without modifying the registry.
func (r *Registry) CheckRegistration(id string, score float64, stake uint64) error {
	if id == "" {
		return fmt.Errorf("%w: empty validator id", lconsensus.ErrRegistrationRejected)
	}
	if !lconsensus.ValidScore(score) {
		return fmt.Errorf("%w: score %v outside [0, 1]", lconsensus.ErrRegistrationRejected, score)
	}
	if score < r.threshold {
		return fmt.Errorf(
			"%w: score %v below threshold %v",
			lconsensus.ErrRegistrationRejected, score, r.threshold,
		)
	}
	if _, ok := lconsensus.AddStake(r.activeStakeExcept(id), stake); !ok {
		return fmt.Errorf(
			"%w: stake %d would overflow total active stake",
			lconsensus.ErrRegistrationRejected, stake,
		)
	}
	return nil
}

// activeStakeExcept sums the stake of active validators other than id.
// It cannot overflow while the registry invariant holds.
func (r *Registry) activeStakeExcept(id string) uint64 {
	var total uint64
	for _, v := range r.vals {
		if v.Active && v.ID != id {
			total += v.Stake
		}
	}
	return total
}

// Register inserts or overwrites the validator as active.
// Re-registration replaces score and stake; it does not add to them.
func (r *Registry) Register(id string, score float64, stake uint64) (lconsensus.Validator, error) {
	if err := r.CheckRegistration(id, score, stake); err != nil {
		return lconsensus.Validator{}, err
	}

	v := lconsensus.Validator{
		ID:     id,
		Score:  score,
		Stake:  stake,
		Active: true,
	}
	r.put(v)
	return v, nil
}

// UpdateScore replaces the score of a registered validator
// without changing its stake or activity.
// A validator whose score falls below the threshold stays active
// until the next [*Registry.Rotate],
// and a recovered score never reactivates an inactive validator.
func (r *Registry) UpdateScore(id string, score float64) (lconsensus.Validator, error) {
	idx, ok := r.byID[id]
	if !ok {
		return lconsensus.Validator{}, fmt.Errorf("%w: %q", lconsensus.ErrValidatorNotFound, id)
	}
	if !lconsensus.ValidScore(score) {
		return lconsensus.Validator{}, fmt.Errorf("%w: %v", lconsensus.ErrInvalidScore, score)
	}

	r.vals[idx].Score = score
	return r.vals[idx], nil
}

// Restore puts v into the registry exactly as given, bypassing registration checks,
// except that a validator below the current threshold,
// or one whose stake would overflow the total active stake, is forced inactive.
// It is intended for replaying persisted state.
func (r *Registry) Restore(v lconsensus.Validator) {
	if !lconsensus.ValidScore(v.Score) || v.Score < r.threshold {
		v.Active = false
	}
	if v.Active {
		if _, ok := lconsensus.AddStake(r.activeStakeExcept(v.ID), v.Stake); !ok {
			v.Active = false
		}
	}
	r.put(v)
}

func (r *Registry) put(v lconsensus.Validator) {
	if idx, ok := r.byID[v.ID]; ok {
		r.vals[idx] = v
		return
	}

	r.byID[v.ID] = uint(len(r.vals))
	r.vals = append(r.vals, v)
}

// Lookup returns the validator with the given id and its registration index.
func (r *Registry) Lookup(id string) (lconsensus.Validator, uint, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return lconsensus.Validator{}, 0, false
	}
	return r.vals[idx], idx, true
}

func (r *Registry) IsEligible(v lconsensus.Validator) bool {
	return v.IsEligible(r.threshold)
}

// Eligible returns a fresh snapshot of the eligible validators,
// in registration order.
func (r *Registry) Eligible() []lconsensus.Validator {
	var out []lconsensus.Validator
	for _, v := range r.vals {
		if r.IsEligible(v) {
			out = append(out, v)
		}
	}
	return out
}

// RotationCandidates returns the active validators that [*Registry.Rotate] would deactivate,
// with Active already set to false.
func (r *Registry) RotationCandidates() []lconsensus.Validator {
	var out []lconsensus.Validator
	for _, v := range r.vals {
		if v.Active && v.Score < r.threshold {
			v.Active = false
			out = append(out, v)
		}
	}
	return out
}

// Rotate deactivates every validator whose score is below the threshold
// and returns the validators deactivated by this call.
//
// Rotation never reactivates a validator;
// an inactive validator must re-register to become active again.
func (r *Registry) Rotate() []lconsensus.Validator {
	out := r.RotationCandidates()
	for _, v := range out {
		r.vals[r.byID[v.ID]].Active = false
	}
	return out
}

// NetworkScore is the mean score over all registered validators,
// active or not, or zero when the registry is empty.
func (r *Registry) NetworkScore() float64 {
	if len(r.vals) == 0 {
		return 0
	}

	var sum float64
	for _, v := range r.vals {
		sum += v.Score
	}
	return sum / float64(len(r.vals))
}

// All returns every validator in registration order.
func (r *Registry) All() []lconsensus.Validator {
	return slices.Clone(r.vals)
}

func (r *Registry) Len() int {
	return len(r.vals)
}
