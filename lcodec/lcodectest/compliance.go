// Package lcodectest contains a compliance test for [lcodec.MarshalCodec] implementations.
package lcodectest

import (
	"context"
	"testing"

	"github.com/gordian-engine/lattica/lcodec"
	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/gordian-engine/lattica/lconsensus/lconsensustest"
	"github.com/stretchr/testify/require"
)

// TestMarshalCodecCompliance checks that blocks and validators
// survive a round trip through mc.
func TestMarshalCodecCompliance(t *testing.T, mc lcodec.MarshalCodec) {
	t.Helper()

	require.NotEmpty(t, mc.Name())

	t.Run("validator", func(t *testing.T) {
		t.Parallel()

		for _, v := range []lconsensus.Validator{
			{ID: "v1", Score: 0.99, Stake: 100, Active: true},
			{ID: "inactive", Score: 0.125, Stake: 0, Active: false},
			{ID: "max", Score: 1, Stake: ^uint64(0), Active: true},
		} {
			data, err := mc.MarshalValidator(v)
			require.NoError(t, err)

			var got lconsensus.Validator
			require.NoError(t, mc.UnmarshalValidator(data, &got))
			require.Equal(t, v, got)
		}
	})

	t.Run("unsigned block", func(t *testing.T) {
		t.Parallel()

		b := lconsensus.Block{
			ID:           1,
			Timestamp:    1709294400,
			PreviousHash: lconsensus.GenesisHash,
			Hash:         "abc123",
			Score:        0.98,
			Coherence:    lconsensus.BaselineCoherence,
			Fluctuation:  lconsensus.BaselineFluctuation,
			ProposerID:   "v1",
		}

		data, err := mc.MarshalBlock(b)
		require.NoError(t, err)

		var got lconsensus.Block
		require.NoError(t, mc.UnmarshalBlock(data, &got))
		require.Equal(t, b, got)
	})

	t.Run("signed block", func(t *testing.T) {
		t.Parallel()

		fx := lconsensustest.NewFixture(2)
		sp := fx.SignatureProvider()

		b := lconsensus.Block{
			ID:           7,
			Timestamp:    1709294400,
			PreviousHash: "prev",
			Hash:         "cur",
			Score:        0.5,
			Coherence:    lconsensus.BaselineCoherence,
			Fluctuation:  lconsensus.BaselineFluctuation,
			ProposerID:   "v2",
		}
		for _, pv := range fx.PrivVals {
			tok, err := sp.SignVote(context.Background(), lconsensus.VoteTarget{
				BlockID: b.ID, BlockHash: b.Hash, ValidatorID: pv.Val.ID,
			})
			require.NoError(t, err)
			b.Signatures = append(b.Signatures, lconsensus.Signature{
				ValidatorID: pv.Val.ID,
				Score:       pv.Val.Score,
				Token:       tok,
				Timestamp:   1709294400123,
			})
		}

		data, err := mc.MarshalBlock(b)
		require.NoError(t, err)

		var got lconsensus.Block
		require.NoError(t, mc.UnmarshalBlock(data, &got))
		require.Equal(t, b, got)
	})

	t.Run("garbage", func(t *testing.T) {
		t.Parallel()

		var b lconsensus.Block
		require.Error(t, mc.UnmarshalBlock([]byte{0xff, 0x00, 0x13}, &b))
	})
}
