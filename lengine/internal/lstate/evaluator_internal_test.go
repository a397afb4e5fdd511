package lstate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfirm_panicsOnBrokenInvariant(t *testing.T) {
	t.Parallel()

	s := New(Config{ScoreThreshold: 0.5, MinValidators: 1})
	_, err := s.reg.Register("v1", 0.9, 1)
	require.NoError(t, err)

	_, err = s.Propose(0.9, "v1")
	require.NoError(t, err)

	s.pending[0].Fluctuation = 0.5
	require.Panics(t, func() {
		_, _, _ = s.Confirm(1)
	})

	// The failed confirmation did not touch the chain.
	require.Zero(t, s.chain.Len())
}
