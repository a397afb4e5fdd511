package lstate

import (
	"slices"

	"github.com/bits-and-blooms/bitset"
	"github.com/gordian-engine/lattica/lconsensus"
)

// Ledger records votes against pending blocks.
//
// Approvals have set semantics keyed by validator registration index,
// with a first-write policy: once a validator has approved a block,
// later approvals from that validator are not recorded.
// Rejections are kept in a separate set with the same policy,
// and never feed into consensus.
type Ledger struct {
	ballots map[uint64]*ballot
}

type ballot struct {
	approvedBy bitset.BitSet
	approvals  []lconsensus.Signature

	rejectedBy bitset.BitSet
	rejections []lconsensus.Rejection
}

func NewLedger() *Ledger {
	return &Ledger{ballots: make(map[uint64]*ballot)}
}

// Open starts tracking votes for blockID.
// Opening an already open block is a no-op.
func (l *Ledger) Open(blockID uint64) {
	if _, ok := l.ballots[blockID]; !ok {
		l.ballots[blockID] = new(ballot)
	}
}

// Close discards the votes for blockID.
func (l *Ledger) Close(blockID uint64) {
	delete(l.ballots, blockID)
}

// HasApproved reports whether the validator at idx has approved blockID.
func (l *Ledger) HasApproved(blockID uint64, idx uint) bool {
	b, ok := l.ballots[blockID]
	return ok && b.approvedBy.Test(idx)
}

// Approve records sig for the validator at idx,
// returning false if that validator had already approved
// or if blockID is not open.
func (l *Ledger) Approve(blockID uint64, idx uint, sig lconsensus.Signature) bool {
	b, ok := l.ballots[blockID]
	if !ok || b.approvedBy.Test(idx) {
		return false
	}

	b.approvedBy.Set(idx)
	b.approvals = append(b.approvals, sig)
	return true
}

// Reject records a disapproval for the validator at idx,
// returning false if one was already recorded or if blockID is not open.
func (l *Ledger) Reject(blockID uint64, idx uint, rej lconsensus.Rejection) bool {
	b, ok := l.ballots[blockID]
	if !ok || b.rejectedBy.Test(idx) {
		return false
	}

	b.rejectedBy.Set(idx)
	b.rejections = append(b.rejections, rej)
	return true
}

// Approvals returns a copy of the approvals for blockID, in arrival order.
func (l *Ledger) Approvals(blockID uint64) []lconsensus.Signature {
	b, ok := l.ballots[blockID]
	if !ok {
		return nil
	}

	out := make([]lconsensus.Signature, len(b.approvals))
	for i, s := range b.approvals {
		s.Token = slices.Clone(s.Token)
		out[i] = s
	}
	return out
}

// Rejections returns a copy of the rejections for blockID, in arrival order.
func (l *Ledger) Rejections(blockID uint64) []lconsensus.Rejection {
	b, ok := l.ballots[blockID]
	if !ok {
		return nil
	}
	return slices.Clone(b.rejections)
}

// ApprovalCount returns the number of distinct approving validators for blockID.
func (l *Ledger) ApprovalCount(blockID uint64) int {
	b, ok := l.ballots[blockID]
	if !ok {
		return 0
	}
	return int(b.approvedBy.Count())
}
