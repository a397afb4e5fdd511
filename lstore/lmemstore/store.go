// Package lmemstore contains in-memory implementations of the lstore interfaces.
// They are safe for concurrent use and are primarily useful in tests.
package lmemstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/gordian-engine/lattica/lstore"
)

type ChainStore struct {
	mu     sync.RWMutex
	blocks []lconsensus.Block
	ids    map[uint64]struct{}
}

var _ lstore.ChainStore = (*ChainStore)(nil)

func NewChainStore() *ChainStore {
	return &ChainStore{ids: make(map[uint64]struct{})}
}

func (s *ChainStore) SaveBlock(_ context.Context, b lconsensus.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[b.ID]; ok {
		return fmt.Errorf("block %d: %w", b.ID, lstore.ErrAlreadyStored)
	}

	s.ids[b.ID] = struct{}{}
	s.blocks = append(s.blocks, b.Clone())
	return nil
}

func (s *ChainStore) LoadChain(context.Context) ([]lconsensus.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]lconsensus.Block, len(s.blocks))
	for i, b := range s.blocks {
		out[i] = b.Clone()
	}
	slices.SortFunc(out, func(a, b lconsensus.Block) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

type ValidatorStore struct {
	mu   sync.RWMutex
	vals []lconsensus.Validator
	idx  map[string]int
}

var _ lstore.ValidatorStore = (*ValidatorStore)(nil)

func NewValidatorStore() *ValidatorStore {
	return &ValidatorStore{idx: make(map[string]int)}
}

func (s *ValidatorStore) SaveValidator(_ context.Context, v lconsensus.Validator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.idx[v.ID]; ok {
		s.vals[i] = v
		return nil
	}

	s.idx[v.ID] = len(s.vals)
	s.vals = append(s.vals, v)
	return nil
}

func (s *ValidatorStore) LoadValidators(context.Context) ([]lconsensus.Validator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.vals), nil
}
