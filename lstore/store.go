// Package lstore declares the persistence interfaces used by the engine.
//
// The engine writes a confirmed block to its [ChainStore]
// before the block becomes visible on the in-memory chain,
// and writes every registration, score update, and rotation
// to its [ValidatorStore].
// On startup both stores are replayed to rebuild state.
//
// Pending blocks and their votes are never persisted.
package lstore

import (
	"context"
	"errors"

	"github.com/gordian-engine/lattica/lconsensus"
)

// ErrAlreadyStored is returned from [ChainStore.SaveBlock]
// when a block with the same id has already been saved.
var ErrAlreadyStored = errors.New("already stored")

// ChainStore persists confirmed blocks.
type ChainStore interface {
	// SaveBlock stores b, including its signatures.
	// Blocks are never overwritten.
	SaveBlock(ctx context.Context, b lconsensus.Block) error

	// LoadChain returns every saved block in ascending id order,
	// which is also confirmation order.
	LoadChain(ctx context.Context) ([]lconsensus.Block, error)
}

// ValidatorStore persists the validator registry.
type ValidatorStore interface {
	// SaveValidator inserts or overwrites v.
	SaveValidator(ctx context.Context, v lconsensus.Validator) error

	// LoadValidators returns every saved validator
	// in the order each id was first saved.
	LoadValidators(ctx context.Context) ([]lconsensus.Validator, error)
}
