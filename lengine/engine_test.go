package lengine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gordian-engine/lattica/internal/gtest"
	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/gordian-engine/lattica/lconsensus/lconsensustest"
	"github.com/gordian-engine/lattica/lengine"
	"github.com/gordian-engine/lattica/lengine/lemetrics"
	"github.com/gordian-engine/lattica/lstore"
	"github.com/gordian-engine/lattica/lstore/lmemstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// newEngine starts an engine that stops when the test finishes.
func newEngine(t *testing.T, fx *lconsensustest.Fixture, opts ...lengine.Opt) *lengine.Engine {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	opts = append([]lengine.Opt{
		lengine.WithClock(fx.Clock),
		lengine.WithHashScheme(fx.HashScheme),
		lengine.WithSignatureProvider(fx.SignatureProvider()),
	}, opts...)

	e, err := lengine.New(ctx, gtest.NewLogger(t), opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		cancel()
		e.Wait()
	})
	return e
}

func registerAll(t *testing.T, e *lengine.Engine, fx *lconsensustest.Fixture) {
	t.Helper()

	for _, v := range fx.Vals() {
		_, err := e.Register(context.Background(), v.ID, v.Score, v.Stake)
		require.NoError(t, err)
	}
}

func confirmNext(t *testing.T, e *lengine.Engine, fx *lconsensustest.Fixture) lconsensus.Block {
	t.Helper()

	ctx := context.Background()
	b, err := e.Propose(ctx, 0.99, fx.PrivVals[0].Val.ID)
	require.NoError(t, err)

	for _, pv := range fx.PrivVals {
		_, err := e.Vote(ctx, b.ID, pv.Val.ID, true)
		require.NoError(t, err)
	}

	res, err := e.CheckConsensus(ctx, b.ID)
	require.NoError(t, err)
	require.True(t, res.Reached)
	return *res.Block
}

func TestEngine_scenarioA(t *testing.T) {
	t.Parallel()

	fx := lconsensustest.NewFixture(3)
	fx.PrivVals[2].Val.Score = 0.98
	e := newEngine(t, fx)
	registerAll(t, e, fx)

	ctx := context.Background()
	b, err := e.Propose(ctx, 0.98, "v1")
	require.NoError(t, err)
	require.Equal(t, uint64(1), b.ID)

	for _, id := range []string{"v1", "v2", "v3"} {
		res, err := e.Vote(ctx, 1, id, true)
		require.NoError(t, err)
		require.Equal(t, lconsensus.VoteAccepted, res)
	}

	res, err := e.CheckConsensus(ctx, 1)
	require.NoError(t, err)
	require.True(t, res.Reached)

	chain, err := e.Chain(ctx)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	require.Equal(t, lconsensus.GenesisHash, chain[0].PreviousHash)

	pending, err := e.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)

	score, err := e.NetworkScore(ctx)
	require.NoError(t, err)
	require.InDelta(t, 0.9867, score, 1e-4)
}

func TestEngine_errors(t *testing.T) {
	t.Parallel()

	fx := lconsensustest.NewFixture(2)
	e := newEngine(t, fx)
	registerAll(t, e, fx)
	ctx := context.Background()

	_, err := e.Register(ctx, "v9", 0.95, 100)
	require.ErrorIs(t, err, lconsensus.ErrRegistrationRejected)

	_, err = e.Propose(ctx, 0.99, "v9")
	require.ErrorIs(t, err, lconsensus.ErrProposerUnregistered)

	_, err = e.Vote(ctx, 1, "v1", true)
	require.ErrorIs(t, err, lconsensus.ErrBlockNotFound)

	_, err = e.CheckConsensus(ctx, 1)
	require.ErrorIs(t, err, lconsensus.ErrBlockNotFound)

	// Scenario C: two validators never reach consensus with the default minimum of three.
	b, err := e.Propose(ctx, 0.99, "v1")
	require.NoError(t, err)
	for _, id := range []string{"v1", "v2"} {
		_, err := e.Vote(ctx, b.ID, id, true)
		require.NoError(t, err)
	}
	res, err := e.CheckConsensus(ctx, b.ID)
	require.NoError(t, err)
	require.False(t, res.Reached)
}

func TestEngine_updateScoreAndRotate(t *testing.T) {
	t.Parallel()

	fx := lconsensustest.NewFixture(4)
	vs := lmemstore.NewValidatorStore()
	e := newEngine(t, fx, lengine.WithValidatorStore(vs))
	registerAll(t, e, fx)
	ctx := context.Background()

	_, err := e.UpdateScore(ctx, "v4", 0.2)
	require.NoError(t, err)

	// Still active, but not eligible.
	_, err = e.Propose(ctx, 0.5, "v4")
	require.ErrorIs(t, err, lconsensus.ErrProposerIneligible)

	out, err := e.Rotate(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "v4", out[0].ID)

	out, err = e.Rotate(ctx)
	require.NoError(t, err)
	require.Empty(t, out)

	stored, err := vs.LoadValidators(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 4)
	require.False(t, stored[3].Active)
	require.Equal(t, 0.2, stored[3].Score)

	st, err := e.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, st.Registered)
	require.Equal(t, 3, st.Eligible)
}

func TestEngine_concurrentVotes(t *testing.T) {
	t.Parallel()

	fx := lconsensustest.NewFixture(10)
	e := newEngine(t, fx)
	registerAll(t, e, fx)
	ctx := context.Background()

	b, err := e.Propose(ctx, 0.99, "v1")
	require.NoError(t, err)

	// Every validator votes three times concurrently.
	var wg sync.WaitGroup
	errs := make(chan error, 3*len(fx.PrivVals))
	for _, pv := range fx.PrivVals {
		for range 3 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := e.Vote(ctx, b.ID, pv.Val.ID, true)
				errs <- err
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	votes, err := e.BlockVotes(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, votes.Approvals, 10)

	res, err := e.CheckConsensus(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), res.VotedStake)
}

func TestEngine_replay(t *testing.T) {
	t.Parallel()

	fx := lconsensustest.NewFixture(3)
	cs := lmemstore.NewChainStore()
	vs := lmemstore.NewValidatorStore()

	e := newEngine(t, fx, lengine.WithChainStore(cs), lengine.WithValidatorStore(vs))
	registerAll(t, e, fx)

	var confirmed []lconsensus.Block
	for range 3 {
		confirmed = append(confirmed, confirmNext(t, e, fx))
		fx.Clock.Advance(time.Second)
	}

	// A second engine over the same stores resumes where the first left off.
	e2 := newEngine(t, fx, lengine.WithChainStore(cs), lengine.WithValidatorStore(vs))
	ctx := context.Background()

	chain, err := e2.Chain(ctx)
	require.NoError(t, err)
	require.Equal(t, confirmed, chain)

	vals, err := e2.Validators(ctx)
	require.NoError(t, err)
	require.Equal(t, fx.Vals(), vals)

	next := confirmNext(t, e2, fx)
	require.Equal(t, uint64(4), next.ID)
	require.Equal(t, confirmed[2].Hash, next.PreviousHash)
}

func TestEngine_replayRejectsTamperedChain(t *testing.T) {
	t.Parallel()

	fx := lconsensustest.NewFixture(3)
	cs := lmemstore.NewChainStore()

	e := newEngine(t, fx, lengine.WithChainStore(cs))
	registerAll(t, e, fx)
	b := confirmNext(t, e, fx)

	tampered := lmemstore.NewChainStore()
	b.Score = 0.1
	require.NoError(t, tampered.SaveBlock(context.Background(), b))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := lengine.New(ctx, gtest.NewLogger(t), lengine.WithChainStore(tampered))
	require.ErrorContains(t, err, "hash")
}

type failingChainStore struct {
	lstore.ChainStore

	mu   sync.Mutex
	fail bool
}

var errInjected = errors.New("injected failure")

func (s *failingChainStore) SaveBlock(ctx context.Context, b lconsensus.Block) error {
	s.mu.Lock()
	fail := s.fail
	s.mu.Unlock()
	if fail {
		return errInjected
	}
	return s.ChainStore.SaveBlock(ctx, b)
}

func TestEngine_storeFailureLeavesBlockPending(t *testing.T) {
	t.Parallel()

	fx := lconsensustest.NewFixture(3)
	cs := &failingChainStore{ChainStore: lmemstore.NewChainStore(), fail: true}
	e := newEngine(t, fx, lengine.WithChainStore(cs))
	registerAll(t, e, fx)
	ctx := context.Background()

	b, err := e.Propose(ctx, 0.99, "v1")
	require.NoError(t, err)
	for _, pv := range fx.PrivVals {
		_, err := e.Vote(ctx, b.ID, pv.Val.ID, true)
		require.NoError(t, err)
	}

	_, err = e.CheckConsensus(ctx, b.ID)
	require.ErrorIs(t, err, errInjected)

	pending, err := e.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Len(t, pending[0].Signatures, 3)

	cs.mu.Lock()
	cs.fail = false
	cs.mu.Unlock()

	res, err := e.CheckConsensus(ctx, b.ID)
	require.NoError(t, err)
	require.True(t, res.Reached)
}

func TestEngine_pendingTTL(t *testing.T) {
	t.Parallel()

	fx := lconsensustest.NewFixture(3)
	// A long TTL keeps the background sweep from racing the manual clock.
	e := newEngine(t, fx, lengine.WithPendingTTL(time.Hour))
	registerAll(t, e, fx)
	ctx := context.Background()

	_, err := e.Propose(ctx, 0.99, "v1")
	require.NoError(t, err)

	expired, err := e.ExpirePending(ctx)
	require.NoError(t, err)
	require.Empty(t, expired)

	fx.Clock.Advance(2 * time.Hour)
	expired, err = e.ExpirePending(ctx)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, expired)

	_, err = e.Vote(ctx, 1, "v1", true)
	require.ErrorIs(t, err, lconsensus.ErrBlockNotFound)
}

func TestEngine_metrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	fx := lconsensustest.NewFixture(3)
	e := newEngine(t, fx, lengine.WithMetricsCollector(lemetrics.NewCollector(reg)))
	registerAll(t, e, fx)

	confirmNext(t, e, fx)
	confirmNext(t, e, fx)

	n, err := testutil.GatherAndCount(reg, "lattica_confirmations_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Status comes from the same kernel, so it is consistent with the gauges.
	st, err := e.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, st.ChainHeight)

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(fmt.Sprintf(`
# HELP lattica_chain_height Number of confirmed blocks
# TYPE lattica_chain_height gauge
lattica_chain_height %d
`, st.ChainHeight)), "lattica_chain_height"))
}

func TestEngine_stopped(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	e, err := lengine.New(ctx, gtest.NewLogger(t))
	require.NoError(t, err)

	cancel()
	e.Wait()

	_, err = e.Register(context.Background(), "v1", 0.99, 1)
	require.ErrorIs(t, err, lengine.ErrEngineStopped)
}

func TestEngine_invalidOptions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := gtest.NewLogger(t)

	_, err := lengine.New(ctx, log, lengine.WithScoreThreshold(1.2))
	require.ErrorIs(t, err, lconsensus.ErrInvalidScore)

	_, err = lengine.New(ctx, log, lengine.WithMinValidators(-1))
	require.Error(t, err)

	_, err = lengine.New(ctx, log, lengine.WithPendingTTL(-time.Second))
	require.Error(t, err)
}
