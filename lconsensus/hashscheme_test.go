package lconsensus_test

import (
	"context"
	"testing"

	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/gordian-engine/lattica/lconsensus/lconsensustest"
	"github.com/stretchr/testify/require"
)

func TestPreHashBytes(t *testing.T) {
	t.Parallel()

	in := lconsensus.BlockHashInput{
		ID:           1,
		Timestamp:    1709294400,
		PreviousHash: lconsensus.GenesisHash,
		Score:        0.98,
		Coherence:    lconsensus.BaselineCoherence,
		Fluctuation:  lconsensus.BaselineFluctuation,
		ProposerID:   "v1",
	}
	require.Equal(t, "11709294400genesis0.980.860.14v1", string(lconsensus.PreHashBytes(in)))

	// Whole numbers have no trailing fraction and never use exponents.
	in.Score = 1
	in.Coherence = 0.0000001
	require.Equal(t, "11709294400genesis10.00000010.14v1", string(lconsensus.PreHashBytes(in)))
}

func TestHashSchemes(t *testing.T) {
	t.Parallel()

	base := lconsensus.BlockHashInput{
		ID:           3,
		Timestamp:    100,
		PreviousHash: "abc",
		Score:        0.99,
		Coherence:    0.86,
		Fluctuation:  0.14,
		ProposerID:   "v2",
	}

	for _, tc := range []struct {
		name string
		hs   lconsensus.HashScheme
	}{
		{name: "sha256", hs: lconsensus.SHA256HashScheme{}},
		{name: "keccak256", hs: lconsensus.Keccak256HashScheme{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h1, err := tc.hs.BlockHash(base)
			require.NoError(t, err)
			require.Len(t, h1, 64)
			require.Regexp(t, "^[0-9a-f]+$", h1)

			h2, err := tc.hs.BlockHash(base)
			require.NoError(t, err)
			require.Equal(t, h1, h2, "hash must be deterministic")

			// Every field contributes to the hash.
			mutations := []func(*lconsensus.BlockHashInput){
				func(in *lconsensus.BlockHashInput) { in.ID++ },
				func(in *lconsensus.BlockHashInput) { in.Timestamp++ },
				func(in *lconsensus.BlockHashInput) { in.PreviousHash = "abd" },
				func(in *lconsensus.BlockHashInput) { in.Score = 0.98 },
				func(in *lconsensus.BlockHashInput) { in.Coherence = 0.85 },
				func(in *lconsensus.BlockHashInput) { in.Fluctuation = 0.15 },
				func(in *lconsensus.BlockHashInput) { in.ProposerID = "v3" },
			}
			for i, m := range mutations {
				in := base
				m(&in)
				h, err := tc.hs.BlockHash(in)
				require.NoError(t, err)
				require.NotEqual(t, h1, h, "mutation %d did not change the hash", i)
			}
		})
	}

	sha, err := lconsensus.SHA256HashScheme{}.BlockHash(base)
	require.NoError(t, err)
	keccak, err := lconsensus.Keccak256HashScheme{}.BlockHash(base)
	require.NoError(t, err)
	require.NotEqual(t, sha, keccak)
}

func TestConservationHolds(t *testing.T) {
	t.Parallel()

	require.True(t, lconsensus.ConservationHolds(lconsensus.BaselineCoherence, lconsensus.BaselineFluctuation))
	require.True(t, lconsensus.ConservationHolds(0.5, 0.5+1e-11))
	require.False(t, lconsensus.ConservationHolds(0.5, 0.5+1e-9))
	require.False(t, lconsensus.ConservationHolds(0.86, 0.86))

	b := lconsensus.Block{Coherence: 0.3, Fluctuation: 0.7}
	require.True(t, b.VerifyConservation())
}

func TestTwoThirdsStake(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		total, want uint64
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{3, 2},
		{100, 66},
		{300, 200},
		{301, 200},
		{302, 201},
		// 2*total would overflow here.
		{^uint64(0), 12297829382473034410},
	} {
		require.Equal(t, tc.want, lconsensus.TwoThirdsStake(tc.total), "total=%d", tc.total)
	}
}

func TestValidScore(t *testing.T) {
	t.Parallel()

	require.True(t, lconsensus.ValidScore(0))
	require.True(t, lconsensus.ValidScore(0.98))
	require.True(t, lconsensus.ValidScore(1))

	require.False(t, lconsensus.ValidScore(-0.01))
	require.False(t, lconsensus.ValidScore(1.01))

	var zero float64
	require.False(t, lconsensus.ValidScore(zero/zero))
}

func TestBlock_Clone(t *testing.T) {
	t.Parallel()

	b := lconsensus.Block{
		ID: 1,
		Signatures: []lconsensus.Signature{
			{ValidatorID: "v1", Token: []byte("sig_v1")},
		},
	}
	c := b.Clone()
	c.Signatures[0].Token[0] = 'X'
	c.Signatures = append(c.Signatures, lconsensus.Signature{ValidatorID: "v2"})

	require.Equal(t, "sig_v1", string(b.Signatures[0].Token))
	require.Len(t, b.Signatures, 1)
}

func TestSignatureProviders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	vt := lconsensus.VoteTarget{BlockID: 7, BlockHash: "deadbeef", ValidatorID: "v1"}

	tok, err := lconsensus.PlaceholderSignatureProvider{}.SignVote(ctx, vt)
	require.NoError(t, err)
	require.Equal(t, "sig_v1", string(tok))

	require.Equal(t, "lattica/approve/7/deadbeef/v1", string(lconsensus.VoteSignBytes(vt)))

	fx := lconsensustest.NewFixture(2)
	sp := fx.SignatureProvider()

	tok, err = sp.SignVote(ctx, vt)
	require.NoError(t, err)
	require.True(t, fx.PrivVals[0].Signer.PubKey().Verify(lconsensus.VoteSignBytes(vt), tok))
	require.False(t, fx.PrivVals[1].Signer.PubKey().Verify(lconsensus.VoteSignBytes(vt), tok))

	vt.ValidatorID = "unknown"
	_, err = sp.SignVote(ctx, vt)
	require.Error(t, err)
}

func TestVoteResult_String(t *testing.T) {
	t.Parallel()

	for _, r := range []lconsensus.VoteResult{
		lconsensus.VoteAccepted, lconsensus.VoteDuplicate, lconsensus.VoteRejectionNoted,
	} {
		parsed, err := lconsensus.ParseVoteResult(r.String())
		require.NoError(t, err)
		require.Equal(t, r, parsed)
	}

	_, err := lconsensus.ParseVoteResult("maybe")
	require.Error(t, err)
}
