package lengine

import (
	"errors"
	"fmt"
	"time"

	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/gordian-engine/lattica/lengine/lemetrics"
	"github.com/gordian-engine/lattica/lstore"
)

// Default configuration values.
const (
	DefaultScoreThreshold = 0.98
	DefaultMinValidators  = 3
)

// Opt is an option for [New].
type Opt func(*config) error

type config struct {
	threshold     float64
	minValidators int

	hs    lconsensus.HashScheme
	clock lconsensus.Clock
	sp    lconsensus.SignatureProvider

	chainStore     lstore.ChainStore
	validatorStore lstore.ValidatorStore

	mc *lemetrics.Collector

	pendingTTL    time.Duration
	sweepInterval time.Duration
}

func defaultConfig() config {
	return config{
		threshold:     DefaultScoreThreshold,
		minValidators: DefaultMinValidators,

		hs:    lconsensus.SHA256HashScheme{},
		clock: lconsensus.SystemClock{},
		sp:    lconsensus.PlaceholderSignatureProvider{},
	}
}

// WithScoreThreshold sets the minimum score required to register, propose, and vote.
func WithScoreThreshold(t float64) Opt {
	return func(c *config) error {
		if !lconsensus.ValidScore(t) {
			return fmt.Errorf("score threshold %v: %w", t, lconsensus.ErrInvalidScore)
		}
		c.threshold = t
		return nil
	}
}

// WithMinValidators sets the number of eligible validators
// below which consensus is never reached.
func WithMinValidators(n int) Opt {
	return func(c *config) error {
		if n < 0 {
			return fmt.Errorf("minimum validators must not be negative (got %d)", n)
		}
		c.minValidators = n
		return nil
	}
}

func WithHashScheme(hs lconsensus.HashScheme) Opt {
	return func(c *config) error {
		if hs == nil {
			return errors.New("hash scheme must not be nil")
		}
		c.hs = hs
		return nil
	}
}

func WithClock(clk lconsensus.Clock) Opt {
	return func(c *config) error {
		if clk == nil {
			return errors.New("clock must not be nil")
		}
		c.clock = clk
		return nil
	}
}

func WithSignatureProvider(sp lconsensus.SignatureProvider) Opt {
	return func(c *config) error {
		if sp == nil {
			return errors.New("signature provider must not be nil")
		}
		c.sp = sp
		return nil
	}
}

// WithChainStore persists confirmed blocks to s,
// and replays s during [New].
func WithChainStore(s lstore.ChainStore) Opt {
	return func(c *config) error {
		c.chainStore = s
		return nil
	}
}

// WithValidatorStore persists the registry to s,
// and replays s during [New].
func WithValidatorStore(s lstore.ValidatorStore) Opt {
	return func(c *config) error {
		c.validatorStore = s
		return nil
	}
}

func WithMetricsCollector(mc *lemetrics.Collector) Opt {
	return func(c *config) error {
		c.mc = mc
		return nil
	}
}

// WithPendingTTL evicts pending blocks older than ttl.
// The engine checks for expired blocks every quarter of ttl.
// A zero ttl, the default, keeps pending blocks indefinitely.
func WithPendingTTL(ttl time.Duration) Opt {
	return func(c *config) error {
		if ttl < 0 {
			return fmt.Errorf("pending TTL must not be negative (got %s)", ttl)
		}
		c.pendingTTL = ttl
		c.sweepInterval = max(ttl/4, 10*time.Millisecond)
		return nil
	}
}
