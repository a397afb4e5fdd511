// Package lengine contains the [Engine], the concurrency-safe entry point
// for validator registration, block proposal, voting, and confirmation.
//
// All state is owned by a single kernel goroutine.
// Each Engine method sends a request to the kernel and waits for its response,
// so operations are serialized in the order the kernel receives them.
package lengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gordian-engine/lattica/internal/gchan"
	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/gordian-engine/lattica/lengine/internal/lstate"
)

// ErrEngineStopped is the error cause reported by Engine methods
// when the engine's context was canceled before the request completed.
var ErrEngineStopped = errors.New("engine stopped")

// Status summarizes the engine state.
type Status struct {
	ChainHeight int    `json:"chain_height"`
	TipHash     string `json:"tip_hash"`
	Pending     int    `json:"pending"`

	Registered   int     `json:"registered"`
	Eligible     int     `json:"eligible"`
	NetworkScore float64 `json:"network_score"`

	Threshold     float64 `json:"threshold"`
	MinValidators int     `json:"min_validators"`
}

// Engine is safe for concurrent use.
type Engine struct {
	log *slog.Logger

	kernelCtx context.Context
	k         *kernel

	registerRequests    chan<- registerRequest
	updateScoreRequests chan<- updateScoreRequest
	proposeRequests     chan<- proposeRequest
	voteRequests        chan<- voteRequest
	consensusRequests   chan<- consensusRequest
	rotateRequests      chan<- rotateRequest
	blockVotesRequests  chan<- blockVotesRequest
	expireRequests      chan<- expireRequest
	viewRequests        chan<- viewRequest
}

// New returns a running Engine.
//
// If a chain store or validator store is configured,
// its contents are loaded before New returns;
// stored blocks must still link, satisfy conservation, and match their hashes.
//
// The engine runs until ctx is canceled.
// Call [*Engine.Wait] to block until it has stopped.
func New(ctx context.Context, log *slog.Logger, opts ...Opt) (*Engine, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		if err := o(&cfg); err != nil {
			return nil, fmt.Errorf("invalid engine option: %w", err)
		}
	}

	// The responder never blocks on these
	// because every response channel is 1-buffered,
	// so there is no benefit to buffering requests.
	registerRequests := make(chan registerRequest)
	updateScoreRequests := make(chan updateScoreRequest)
	proposeRequests := make(chan proposeRequest)
	voteRequests := make(chan voteRequest)
	consensusRequests := make(chan consensusRequest)
	rotateRequests := make(chan rotateRequest)
	blockVotesRequests := make(chan blockVotesRequest)
	expireRequests := make(chan expireRequest)
	viewRequests := make(chan viewRequest)

	k := &kernel{
		log: log.With("sys", "kernel"),

		st: lstate.New(lstate.Config{
			ScoreThreshold: cfg.threshold,
			MinValidators:  cfg.minValidators,

			HashScheme:        cfg.hs,
			Clock:             cfg.clock,
			SignatureProvider: cfg.sp,
		}),

		hs:    cfg.hs,
		clock: cfg.clock,

		cs: cfg.chainStore,
		vs: cfg.validatorStore,

		mc: cfg.mc,

		pendingTTL:    cfg.pendingTTL,
		sweepInterval: cfg.sweepInterval,

		registerRequests:    registerRequests,
		updateScoreRequests: updateScoreRequests,
		proposeRequests:     proposeRequests,
		voteRequests:        voteRequests,
		consensusRequests:   consensusRequests,
		rotateRequests:      rotateRequests,
		blockVotesRequests:  blockVotesRequests,
		expireRequests:      expireRequests,
		viewRequests:        viewRequests,

		done: make(chan struct{}),
	}

	if err := k.replay(ctx); err != nil {
		return nil, err
	}

	go k.mainLoop(ctx)

	return &Engine{
		log: log,

		kernelCtx: ctx,
		k:         k,

		registerRequests:    registerRequests,
		updateScoreRequests: updateScoreRequests,
		proposeRequests:     proposeRequests,
		voteRequests:        voteRequests,
		consensusRequests:   consensusRequests,
		rotateRequests:      rotateRequests,
		blockVotesRequests:  blockVotesRequests,
		expireRequests:      expireRequests,
		viewRequests:        viewRequests,
	}, nil
}

// Wait blocks until the kernel goroutine has returned.
// To begin shutdown, cancel the context passed to [New].
func (e *Engine) Wait() {
	<-e.k.done
}

// roundTrip sends req to the kernel and waits for the response,
// giving up if either ctx or the engine's own context is canceled.
func roundTrip[Req, Resp any](
	ctx context.Context, e *Engine,
	reqCh chan<- Req, req Req, respCh <-chan Resp,
	name string,
) (Resp, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stop := context.AfterFunc(e.kernelCtx, func() {
		cancel(ErrEngineStopped)
	})
	defer stop()

	resp, ok := gchan.ReqResp(ctx, e.log, reqCh, req, respCh, name)
	if !ok {
		return resp, fmt.Errorf("%s: %w", name, context.Cause(ctx))
	}
	return resp, nil
}

// Register adds or overwrites a validator as active.
// The returned error wraps [lconsensus.ErrRegistrationRejected]
// if the id is empty or the score is below the threshold.
func (e *Engine) Register(ctx context.Context, id string, score float64, stake uint64) (lconsensus.Validator, error) {
	req := registerRequest{
		ID: id, Score: score, Stake: stake,
		Resp: make(chan validatorResponse, 1),
	}
	resp, err := roundTrip(ctx, e, e.registerRequests, req, req.Resp, "Register")
	if err != nil {
		return lconsensus.Validator{}, err
	}
	return resp.Val, resp.Err
}

// UpdateScore sets the score of a registered validator.
// It never changes whether the validator is active;
// a validator below the threshold is deactivated by the next [*Engine.Rotate].
func (e *Engine) UpdateScore(ctx context.Context, id string, score float64) (lconsensus.Validator, error) {
	req := updateScoreRequest{
		ID: id, Score: score,
		Resp: make(chan validatorResponse, 1),
	}
	resp, err := roundTrip(ctx, e, e.updateScoreRequests, req, req.Resp, "UpdateScore")
	if err != nil {
		return lconsensus.Validator{}, err
	}
	return resp.Val, resp.Err
}

// Propose creates a pending block linked to the current chain tip.
func (e *Engine) Propose(ctx context.Context, score float64, proposerID string) (lconsensus.Block, error) {
	req := proposeRequest{
		Score: score, ProposerID: proposerID,
		Resp: make(chan proposeResponse, 1),
	}
	resp, err := roundTrip(ctx, e, e.proposeRequests, req, req.Resp, "Propose")
	if err != nil {
		return lconsensus.Block{}, err
	}
	return resp.Block, resp.Err
}

// Vote records an approval or rejection of a pending block.
func (e *Engine) Vote(ctx context.Context, blockID uint64, validatorID string, approve bool) (lconsensus.VoteResult, error) {
	req := voteRequest{
		BlockID: blockID, ValidatorID: validatorID, Approve: approve,
		Resp: make(chan voteResponse, 1),
	}
	resp, err := roundTrip(ctx, e, e.voteRequests, req, req.Resp, "Vote")
	if err != nil {
		return 0, err
	}
	return resp.Result, resp.Err
}

// CheckConsensus evaluates a pending block and confirms it if consensus is reached.
// A result that is not reached is not an error.
func (e *Engine) CheckConsensus(ctx context.Context, blockID uint64) (lconsensus.ConsensusResult, error) {
	req := consensusRequest{
		BlockID: blockID,
		Resp:    make(chan consensusResponse, 1),
	}
	resp, err := roundTrip(ctx, e, e.consensusRequests, req, req.Resp, "CheckConsensus")
	if err != nil {
		return lconsensus.ConsensusResult{}, err
	}
	return resp.Result, resp.Err
}

// Rotate deactivates every active validator whose score is below the threshold,
// returning the validators deactivated by this call.
func (e *Engine) Rotate(ctx context.Context) ([]lconsensus.Validator, error) {
	req := rotateRequest{Resp: make(chan rotateResponse, 1)}
	resp, err := roundTrip(ctx, e, e.rotateRequests, req, req.Resp, "Rotate")
	if err != nil {
		return nil, err
	}
	return resp.Deactivated, resp.Err
}

// BlockVotes reports the approvals and rejections recorded for a pending block.
func (e *Engine) BlockVotes(ctx context.Context, blockID uint64) (lconsensus.BlockVotes, error) {
	req := blockVotesRequest{
		BlockID: blockID,
		Resp:    make(chan blockVotesResponse, 1),
	}
	resp, err := roundTrip(ctx, e, e.blockVotesRequests, req, req.Resp, "BlockVotes")
	if err != nil {
		return lconsensus.BlockVotes{}, err
	}
	return resp.Votes, resp.Err
}

// ExpirePending immediately evicts pending blocks older than the configured TTL,
// returning their ids.
// It does nothing when no TTL is configured.
func (e *Engine) ExpirePending(ctx context.Context) ([]uint64, error) {
	req := expireRequest{Resp: make(chan []uint64, 1)}
	return roundTrip(ctx, e, e.expireRequests, req, req.Resp, "ExpirePending")
}

func (e *Engine) lookup(ctx context.Context, fields viewField, name string) (view, error) {
	req := viewRequest{Fields: fields, Resp: make(chan view, 1)}
	return roundTrip(ctx, e, e.viewRequests, req, req.Resp, name)
}

// Validators returns every registered validator, in registration order.
func (e *Engine) Validators(ctx context.Context) ([]lconsensus.Validator, error) {
	v, err := e.lookup(ctx, viewValidators, "Validators")
	return v.Validators, err
}

// Pending returns the pending blocks in proposal order,
// each with the approvals recorded so far.
func (e *Engine) Pending(ctx context.Context) ([]lconsensus.Block, error) {
	v, err := e.lookup(ctx, viewPending, "Pending")
	return v.Pending, err
}

// Chain returns every confirmed block, oldest first.
func (e *Engine) Chain(ctx context.Context) ([]lconsensus.Block, error) {
	v, err := e.lookup(ctx, viewChain, "Chain")
	return v.Chain, err
}

// NetworkScore is the mean score over all registered validators.
func (e *Engine) NetworkScore(ctx context.Context) (float64, error) {
	v, err := e.lookup(ctx, viewStatus, "NetworkScore")
	return v.Status.NetworkScore, err
}

func (e *Engine) Status(ctx context.Context) (Status, error) {
	v, err := e.lookup(ctx, viewStatus, "Status")
	return v.Status, err
}
