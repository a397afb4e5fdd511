package lstate

import (
	"fmt"

	"github.com/gordian-engine/lattica/lconsensus"
)

// Chain is the append-only sequence of confirmed blocks.
type Chain struct {
	blocks []lconsensus.Block

	byID   map[uint64]int
	byHash map[string]int
}

func NewChain() *Chain {
	return &Chain{
		byID:   make(map[uint64]int),
		byHash: make(map[string]int),
	}
}

// TipHash returns the hash of the most recent confirmed block,
// or [lconsensus.GenesisHash] if the chain is empty.
func (c *Chain) TipHash() string {
	if len(c.blocks) == 0 {
		return lconsensus.GenesisHash
	}
	return c.blocks[len(c.blocks)-1].Hash
}

func (c *Chain) Len() int {
	return len(c.blocks)
}

// CheckAppend reports whether b may be appended:
// it must link to the current tip, satisfy conservation,
// and not reuse a confirmed id or hash.
func (c *Chain) CheckAppend(b lconsensus.Block) error {
	if tip := c.TipHash(); b.PreviousHash != tip {
		return fmt.Errorf(
			"block %d links to %q but chain tip is %q",
			b.ID, b.PreviousHash, tip,
		)
	}
	if !b.VerifyConservation() {
		return fmt.Errorf(
			"block %d: %w (coherence=%v fluctuation=%v)",
			b.ID, lconsensus.ErrConservationViolation, b.Coherence, b.Fluctuation,
		)
	}
	if _, ok := c.byID[b.ID]; ok {
		return fmt.Errorf("block id %d already confirmed", b.ID)
	}
	if _, ok := c.byHash[b.Hash]; ok {
		return fmt.Errorf("block hash %q already confirmed", b.Hash)
	}
	return nil
}

// Append adds b to the end of the chain after checking it with [*Chain.CheckAppend].
// The chain keeps its own copy of b.
func (c *Chain) Append(b lconsensus.Block) error {
	if err := c.CheckAppend(b); err != nil {
		return err
	}

	c.byID[b.ID] = len(c.blocks)
	c.byHash[b.Hash] = len(c.blocks)
	c.blocks = append(c.blocks, b.Clone())
	return nil
}

// Contains reports whether a block with the given id has been confirmed.
func (c *Chain) Contains(id uint64) bool {
	_, ok := c.byID[id]
	return ok
}

func (c *Chain) BlockByID(id uint64) (lconsensus.Block, bool) {
	i, ok := c.byID[id]
	if !ok {
		return lconsensus.Block{}, false
	}
	return c.blocks[i].Clone(), true
}

func (c *Chain) BlockByHash(hash string) (lconsensus.Block, bool) {
	i, ok := c.byHash[hash]
	if !ok {
		return lconsensus.Block{}, false
	}
	return c.blocks[i].Clone(), true
}

// Blocks returns a copy of the confirmed blocks, oldest first.
func (c *Chain) Blocks() []lconsensus.Block {
	out := make([]lconsensus.Block, len(c.blocks))
	for i, b := range c.blocks {
		out[i] = b.Clone()
	}
	return out
}

// MaxID returns the highest confirmed block id, or zero for an empty chain.
func (c *Chain) MaxID() uint64 {
	var highest uint64
	for _, b := range c.blocks {
		highest = max(highest, b.ID)
	}
	return highest
}
