// Package lstate contains the single aggregate that owns
// the validator registry, the pending block set, the vote ledger,
// and the confirmed chain.
//
// [*State] is synchronous and not safe for concurrent use.
// The engine kernel is its only owner.
package lstate

import (
	"fmt"
	"slices"

	"github.com/gordian-engine/lattica/lconsensus"
)

// Config holds the parameters for [New].
type Config struct {
	// Minimum eligibility score for registration, proposing, and voting.
	ScoreThreshold float64

	// Consensus is never reached while
	// fewer than this many validators are eligible.
	MinValidators int

	HashScheme        lconsensus.HashScheme
	Clock             lconsensus.Clock
	SignatureProvider lconsensus.SignatureProvider
}

// State is the consensus aggregate.
type State struct {
	minValidators int

	hs    lconsensus.HashScheme
	clock lconsensus.Clock
	sp    lconsensus.SignatureProvider

	reg    *Registry
	chain  *Chain
	ledger *Ledger

	// Proposed blocks awaiting confirmation, in proposal order.
	// Signatures are held in the ledger, not on these values.
	pending []lconsensus.Block

	// Next block id to assign.
	// Independent of chain length, so that
	// concurrent proposals never collide.
	nextID uint64
}

// New returns an empty State.
// Nil collaborators in cfg are replaced with the package defaults.
func New(cfg Config) *State {
	if cfg.HashScheme == nil {
		cfg.HashScheme = lconsensus.SHA256HashScheme{}
	}
	if cfg.Clock == nil {
		cfg.Clock = lconsensus.SystemClock{}
	}
	if cfg.SignatureProvider == nil {
		cfg.SignatureProvider = lconsensus.PlaceholderSignatureProvider{}
	}

	return &State{
		minValidators: cfg.MinValidators,

		hs:    cfg.HashScheme,
		clock: cfg.Clock,
		sp:    cfg.SignatureProvider,

		reg:    NewRegistry(cfg.ScoreThreshold),
		chain:  NewChain(),
		ledger: NewLedger(),

		nextID: 1,
	}
}

// Registry exposes the validator registry.
func (s *State) Registry() *Registry {
	return s.reg
}

// Chain exposes the confirmed chain.
// Callers must not append to it directly.
func (s *State) Chain() *Chain {
	return s.chain
}

// MinValidators returns the configured minimum eligible validator count.
func (s *State) MinValidators() int {
	return s.minValidators
}

// RestoreBlock appends a previously confirmed block while replaying persisted state.
// The block must link to the current tip and satisfy conservation.
func (s *State) RestoreBlock(b lconsensus.Block) error {
	if err := s.chain.Append(b); err != nil {
		return fmt.Errorf("failed to restore block %d: %w", b.ID, err)
	}
	s.nextID = max(s.nextID, b.ID+1)
	return nil
}

// Pending returns copies of the pending blocks, in proposal order,
// with their current approvals attached.
func (s *State) Pending() []lconsensus.Block {
	out := make([]lconsensus.Block, len(s.pending))
	for i, b := range s.pending {
		b.Signatures = s.ledger.Approvals(b.ID)
		out[i] = b
	}
	return out
}

// PendingLen returns the number of pending blocks.
func (s *State) PendingLen() int {
	return len(s.pending)
}

func (s *State) pendingIndex(blockID uint64) int {
	return slices.IndexFunc(s.pending, func(b lconsensus.Block) bool {
		return b.ID == blockID
	})
}

// BlockVotes returns the approvals and rejections recorded for a pending block.
func (s *State) BlockVotes(blockID uint64) (lconsensus.BlockVotes, error) {
	if s.pendingIndex(blockID) < 0 {
		return lconsensus.BlockVotes{}, fmt.Errorf("%w: %d is not pending", lconsensus.ErrBlockNotFound, blockID)
	}

	return lconsensus.BlockVotes{
		BlockID:    blockID,
		Approvals:  s.ledger.Approvals(blockID),
		Rejections: s.ledger.Rejections(blockID),
	}, nil
}

// ExpirePending evicts pending blocks whose timestamp is older than cutoff
// (unix seconds) and returns their ids.
func (s *State) ExpirePending(cutoff uint64) []uint64 {
	var expired []uint64
	s.pending = slices.DeleteFunc(s.pending, func(b lconsensus.Block) bool {
		if b.Timestamp < cutoff {
			expired = append(expired, b.ID)
			s.ledger.Close(b.ID)
			return true
		}
		return false
	})
	return expired
}
