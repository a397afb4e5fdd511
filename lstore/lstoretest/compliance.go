// Package lstoretest contains compliance tests for the lstore interfaces.
//
// Every store implementation should call the relevant compliance function
// from its own tests.
package lstoretest

import (
	"context"
	"testing"

	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/gordian-engine/lattica/lconsensus/lconsensustest"
	"github.com/gordian-engine/lattica/lstore"
	"github.com/stretchr/testify/require"
)

// ChainStoreFactory returns a fresh, empty ChainStore.
// The cleanup function registers work to run when the test completes.
type ChainStoreFactory func(cleanup func(func())) (lstore.ChainStore, error)

// ValidatorStoreFactory returns a fresh, empty ValidatorStore.
type ValidatorStoreFactory func(cleanup func(func())) (lstore.ValidatorStore, error)

// SignedChain returns n linked, signed blocks
// built with the fixture's hash scheme and signers.
func SignedChain(t *testing.T, fx *lconsensustest.Fixture, n int) []lconsensus.Block {
	t.Helper()

	ctx := context.Background()
	sp := fx.SignatureProvider()

	out := make([]lconsensus.Block, n)
	prev := lconsensus.GenesisHash
	for i := range out {
		b := lconsensus.Block{
			ID:           uint64(i + 1),
			Timestamp:    lconsensus.UnixSeconds(fx.Clock.Now()),
			PreviousHash: prev,
			Score:        0.99,
			Coherence:    lconsensus.BaselineCoherence,
			Fluctuation:  lconsensus.BaselineFluctuation,
			ProposerID:   fx.PrivVals[i%len(fx.PrivVals)].Val.ID,
		}
		h, err := fx.HashScheme.BlockHash(b.HashInput())
		require.NoError(t, err)
		b.Hash = h

		for _, pv := range fx.PrivVals {
			tok, err := sp.SignVote(ctx, lconsensus.VoteTarget{
				BlockID: b.ID, BlockHash: b.Hash, ValidatorID: pv.Val.ID,
			})
			require.NoError(t, err)
			b.Signatures = append(b.Signatures, lconsensus.Signature{
				ValidatorID: pv.Val.ID,
				Score:       pv.Val.Score,
				Token:       tok,
				Timestamp:   lconsensus.UnixMillis(fx.Clock.Now()),
			})
		}

		out[i] = b
		prev = b.Hash
	}
	return out
}

// TestChainStoreCompliance is the compliance test for [lstore.ChainStore].
func TestChainStoreCompliance(t *testing.T, f ChainStoreFactory) {
	t.Run("empty store loads empty chain", func(t *testing.T) {
		t.Parallel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		blocks, err := s.LoadChain(context.Background())
		require.NoError(t, err)
		require.Empty(t, blocks)
	})

	t.Run("round trip in id order", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s, err := f(t.Cleanup)
		require.NoError(t, err)

		chain := SignedChain(t, lconsensustest.NewFixture(3), 4)
		for _, b := range chain {
			require.NoError(t, s.SaveBlock(ctx, b))
		}

		got, err := s.LoadChain(ctx)
		require.NoError(t, err)
		require.Equal(t, chain, got)
	})

	t.Run("sparse ids stay ordered", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s, err := f(t.Cleanup)
		require.NoError(t, err)

		chain := SignedChain(t, lconsensustest.NewFixture(3), 2)
		// Orphaned proposals leave gaps in confirmed ids.
		chain[1].ID = 300
		chain[0].ID = 7

		require.NoError(t, s.SaveBlock(ctx, chain[0]))
		require.NoError(t, s.SaveBlock(ctx, chain[1]))

		got, err := s.LoadChain(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, uint64(7), got[0].ID)
		require.Equal(t, uint64(300), got[1].ID)
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s, err := f(t.Cleanup)
		require.NoError(t, err)

		chain := SignedChain(t, lconsensustest.NewFixture(3), 1)
		require.NoError(t, s.SaveBlock(ctx, chain[0]))

		dup := chain[0]
		dup.Hash = "different"
		require.ErrorIs(t, s.SaveBlock(ctx, dup), lstore.ErrAlreadyStored)

		got, err := s.LoadChain(ctx)
		require.NoError(t, err)
		require.Equal(t, chain, got)
	})

	t.Run("loaded blocks are copies", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s, err := f(t.Cleanup)
		require.NoError(t, err)

		chain := SignedChain(t, lconsensustest.NewFixture(2), 1)
		require.NoError(t, s.SaveBlock(ctx, chain[0]))

		got, err := s.LoadChain(ctx)
		require.NoError(t, err)
		got[0].Signatures[0].Token[0] ^= 0xff

		again, err := s.LoadChain(ctx)
		require.NoError(t, err)
		require.Equal(t, chain, again)
	})
}

// TestValidatorStoreCompliance is the compliance test for [lstore.ValidatorStore].
func TestValidatorStoreCompliance(t *testing.T, f ValidatorStoreFactory) {
	t.Run("empty store", func(t *testing.T) {
		t.Parallel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		vals, err := s.LoadValidators(context.Background())
		require.NoError(t, err)
		require.Empty(t, vals)
	})

	t.Run("overwrite keeps first-save order", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s, err := f(t.Cleanup)
		require.NoError(t, err)

		for _, id := range []string{"zeta", "alpha", "mu"} {
			require.NoError(t, s.SaveValidator(ctx, lconsensus.Validator{
				ID: id, Score: 0.99, Stake: 10, Active: true,
			}))
		}

		require.NoError(t, s.SaveValidator(ctx, lconsensus.Validator{
			ID: "zeta", Score: 0.5, Stake: 99, Active: false,
		}))

		got, err := s.LoadValidators(ctx)
		require.NoError(t, err)
		require.Equal(t, []lconsensus.Validator{
			{ID: "zeta", Score: 0.5, Stake: 99, Active: false},
			{ID: "alpha", Score: 0.99, Stake: 10, Active: true},
			{ID: "mu", Score: 0.99, Stake: 10, Active: true},
		}, got)
	})

	t.Run("large stake", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s, err := f(t.Cleanup)
		require.NoError(t, err)

		v := lconsensus.Validator{ID: "whale", Score: 1, Stake: ^uint64(0), Active: true}
		require.NoError(t, s.SaveValidator(ctx, v))

		got, err := s.LoadValidators(ctx)
		require.NoError(t, err)
		require.Equal(t, []lconsensus.Validator{v}, got)
	})
}
