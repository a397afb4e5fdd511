package lconsensus_test

import (
	"math"
	"testing"

	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/stretchr/testify/require"
)

func TestTwoThirdsStake_spotChecks(t *testing.T) {
	t.Parallel()

	require.Zero(t, lconsensus.TwoThirdsStake(0))
	require.Zero(t, lconsensus.TwoThirdsStake(1))
	require.Equal(t, uint64(200), lconsensus.TwoThirdsStake(300))
	require.Equal(t, uint64(166), lconsensus.TwoThirdsStake(250))
	require.Equal(t, uint64(math.MaxUint64/3*2), lconsensus.TwoThirdsStake(math.MaxUint64))
}

func TestAddStake(t *testing.T) {
	t.Parallel()

	sum, ok := lconsensus.AddStake(math.MaxUint64-1, 1)
	require.True(t, ok)
	require.Equal(t, uint64(math.MaxUint64), sum)

	_, ok = lconsensus.AddStake(math.MaxUint64, 1)
	require.False(t, ok)
}
