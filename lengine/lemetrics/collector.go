// Package lemetrics contains the Prometheus metrics reported by the engine.
//
// A nil *Collector is valid and records nothing,
// so the kernel never needs to check whether metrics are enabled.
package lemetrics

import (
	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lattica"

// Collector records engine activity.
type Collector struct {
	registrations *prometheus.CounterVec
	proposals     prometheus.Counter
	votes         *prometheus.CounterVec
	evaluations   *prometheus.CounterVec
	confirmations prometheus.Counter
	evictions     *prometheus.CounterVec
	rotated       prometheus.Counter

	chainHeight  prometheus.Gauge
	pending      prometheus.Gauge
	eligible     prometheus.Gauge
	networkScore prometheus.Gauge
}

// NewCollector creates the engine metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Validator registration attempts grouped by result",
		}, []string{"result"}),
		proposals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposals_total",
			Help:      "Blocks accepted into the pending set",
		}),
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Votes recorded grouped by result",
		}, []string{"result"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consensus_evaluations_total",
			Help:      "Consensus checks grouped by outcome",
		}, []string{"outcome"}),
		confirmations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_total",
			Help:      "Blocks appended to the confirmed chain",
		}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pending_evictions_total",
			Help:      "Pending blocks discarded without confirmation grouped by reason",
		}, []string{"reason"}),
		rotated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validators_deactivated_total",
			Help:      "Validators deactivated by rotation",
		}),

		chainHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chain_height",
			Help:      "Number of confirmed blocks",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_blocks",
			Help:      "Number of blocks awaiting confirmation",
		}),
		eligible: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eligible_validators",
			Help:      "Number of validators currently eligible to propose and vote",
		}),
		networkScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "network_score",
			Help:      "Mean score over all registered validators",
		}),
	}

	reg.MustRegister(
		c.registrations,
		c.proposals,
		c.votes,
		c.evaluations,
		c.confirmations,
		c.evictions,
		c.rotated,
		c.chainHeight,
		c.pending,
		c.eligible,
		c.networkScore,
	)
	return c
}

// ObserveRegistration counts a registration attempt.
func (c *Collector) ObserveRegistration(accepted bool) {
	if c == nil {
		return
	}
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	c.registrations.WithLabelValues(result).Inc()
}

func (c *Collector) ObserveProposal() {
	if c == nil {
		return
	}
	c.proposals.Inc()
}

func (c *Collector) ObserveVote(r lconsensus.VoteResult) {
	if c == nil {
		return
	}
	c.votes.WithLabelValues(r.String()).Inc()
}

// ObserveEvaluation counts a completed consensus check.
func (c *Collector) ObserveEvaluation(res lconsensus.ConsensusResult) {
	if c == nil {
		return
	}

	switch {
	case res.Reached:
		c.evaluations.WithLabelValues("reached").Inc()
		c.confirmations.Inc()
	case res.EligibleCount < res.MinValidators:
		c.evaluations.WithLabelValues("too_few_validators").Inc()
	default:
		c.evaluations.WithLabelValues("below_threshold").Inc()
	}

	if n := len(res.Orphaned); n > 0 {
		c.evictions.WithLabelValues("orphaned").Add(float64(n))
	}
}

// ObserveExpired counts pending blocks evicted by age.
func (c *Collector) ObserveExpired(n int) {
	if c == nil || n == 0 {
		return
	}
	c.evictions.WithLabelValues("expired").Add(float64(n))
}

func (c *Collector) ObserveRotation(deactivated int) {
	if c == nil {
		return
	}
	c.rotated.Add(float64(deactivated))
}

// Snapshot is the gauge state reported after each mutation.
type Snapshot struct {
	ChainHeight  int
	Pending      int
	Eligible     int
	NetworkScore float64
}

func (c *Collector) SetSnapshot(s Snapshot) {
	if c == nil {
		return
	}
	c.chainHeight.Set(float64(s.ChainHeight))
	c.pending.Set(float64(s.Pending))
	c.eligible.Set(float64(s.Eligible))
	c.networkScore.Set(s.NetworkScore)
}
