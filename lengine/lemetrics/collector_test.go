package lemetrics_test

import (
	"strings"
	"testing"

	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/gordian-engine/lattica/lengine/lemetrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector_nilSafe(t *testing.T) {
	t.Parallel()

	var c *lemetrics.Collector
	require.NotPanics(t, func() {
		c.ObserveRegistration(true)
		c.ObserveProposal()
		c.ObserveVote(lconsensus.VoteAccepted)
		c.ObserveEvaluation(lconsensus.ConsensusResult{Reached: true})
		c.ObserveExpired(3)
		c.ObserveRotation(1)
		c.SetSnapshot(lemetrics.Snapshot{ChainHeight: 1})
	})
}

func TestCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	c := lemetrics.NewCollector(reg)

	c.ObserveRegistration(true)
	c.ObserveRegistration(true)
	c.ObserveRegistration(false)
	c.ObserveVote(lconsensus.VoteAccepted)
	c.ObserveVote(lconsensus.VoteDuplicate)
	c.ObserveEvaluation(lconsensus.ConsensusResult{EligibleCount: 2, MinValidators: 3})
	c.ObserveEvaluation(lconsensus.ConsensusResult{Reached: true, Orphaned: []uint64{4, 5}})
	c.ObserveExpired(1)
	c.SetSnapshot(lemetrics.Snapshot{ChainHeight: 7, Pending: 2, Eligible: 3, NetworkScore: 0.99})

	for name, want := range map[string]int{
		"lattica_registrations_total":         2,
		"lattica_votes_total":                 2,
		"lattica_consensus_evaluations_total": 2,
		"lattica_confirmations_total":         1,
		"lattica_pending_evictions_total":     2,
		"lattica_chain_height":                1,
	} {
		n, err := testutil.GatherAndCount(reg, name)
		require.NoError(t, err)
		require.Equal(t, want, n, name)
	}

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP lattica_pending_evictions_total Pending blocks discarded without confirmation grouped by reason
# TYPE lattica_pending_evictions_total counter
lattica_pending_evictions_total{reason="expired"} 1
lattica_pending_evictions_total{reason="orphaned"} 2
`), "lattica_pending_evictions_total"))
}
