package lengine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/gordian-engine/lattica/lengine/internal/lstate"
	"github.com/gordian-engine/lattica/lengine/lemetrics"
	"github.com/gordian-engine/lattica/lstore"
)

type registerRequest struct {
	ID    string
	Score float64
	Stake uint64

	Resp chan validatorResponse
}

type updateScoreRequest struct {
	ID    string
	Score float64

	Resp chan validatorResponse
}

type validatorResponse struct {
	Val lconsensus.Validator
	Err error
}

type proposeRequest struct {
	Score      float64
	ProposerID string

	Resp chan proposeResponse
}

type proposeResponse struct {
	Block lconsensus.Block
	Err   error
}

type voteRequest struct {
	BlockID     uint64
	ValidatorID string
	Approve     bool

	Resp chan voteResponse
}

type voteResponse struct {
	Result lconsensus.VoteResult
	Err    error
}

type consensusRequest struct {
	BlockID uint64

	Resp chan consensusResponse
}

type consensusResponse struct {
	Result lconsensus.ConsensusResult
	Err    error
}

type rotateRequest struct {
	Resp chan rotateResponse
}

type rotateResponse struct {
	Deactivated []lconsensus.Validator
	Err         error
}

type blockVotesRequest struct {
	BlockID uint64

	Resp chan blockVotesResponse
}

type blockVotesResponse struct {
	Votes lconsensus.BlockVotes
	Err   error
}

type expireRequest struct {
	Resp chan []uint64
}

// viewField selects which parts of a [view] the kernel fills in.
type viewField uint8

const (
	viewValidators viewField = 1 << iota
	viewPending
	viewChain
	viewStatus
)

type viewRequest struct {
	Fields viewField

	Resp chan view
}

type view struct {
	Validators []lconsensus.Validator
	Pending    []lconsensus.Block
	Chain      []lconsensus.Block
	Status     Status
}

// kernel is the single goroutine that owns the consensus state.
type kernel struct {
	log *slog.Logger

	st *lstate.State

	hs lconsensus.HashScheme

	clock lconsensus.Clock

	cs lstore.ChainStore
	vs lstore.ValidatorStore

	mc *lemetrics.Collector

	pendingTTL    time.Duration
	sweepInterval time.Duration

	registerRequests    <-chan registerRequest
	updateScoreRequests <-chan updateScoreRequest
	proposeRequests     <-chan proposeRequest
	voteRequests        <-chan voteRequest
	consensusRequests   <-chan consensusRequest
	rotateRequests      <-chan rotateRequest
	blockVotesRequests  <-chan blockVotesRequest
	expireRequests      <-chan expireRequest
	viewRequests        <-chan viewRequest

	done chan struct{}
}

// replay loads persisted validators and blocks into a fresh state.
func (k *kernel) replay(ctx context.Context) error {
	if k.vs != nil {
		vals, err := k.vs.LoadValidators(ctx)
		if err != nil {
			return fmt.Errorf("failed to load validators: %w", err)
		}
		for _, v := range vals {
			k.st.Registry().Restore(v)
		}
		if len(vals) > 0 {
			k.log.Info("Restored validators", "n", len(vals))
		}
	}

	if k.cs != nil {
		blocks, err := k.cs.LoadChain(ctx)
		if err != nil {
			return fmt.Errorf("failed to load chain: %w", err)
		}
		for _, b := range blocks {
			want, err := k.hs.BlockHash(b.HashInput())
			if err != nil {
				return fmt.Errorf("failed to hash stored block %d: %w", b.ID, err)
			}
			if want != b.Hash {
				return fmt.Errorf(
					"stored block %d has hash %q but its fields hash to %q",
					b.ID, b.Hash, want,
				)
			}
			if err := k.st.RestoreBlock(b); err != nil {
				return err
			}
		}
		if len(blocks) > 0 {
			k.log.Info(
				"Restored chain",
				"height", len(blocks),
				"tip", k.st.Chain().TipHash(),
			)
		}
	}

	k.reportSnapshot()
	return nil
}

func (k *kernel) mainLoop(ctx context.Context) {
	defer close(k.done)

	var sweep <-chan time.Time
	if k.pendingTTL > 0 {
		t := time.NewTicker(k.sweepInterval)
		defer t.Stop()
		sweep = t.C
	}

	for {
		select {
		case <-ctx.Done():
			k.log.Info(
				"Stopping due to context cancellation",
				"cause", context.Cause(ctx),
			)
			return

		case req := <-k.registerRequests:
			req.Resp <- k.handleRegister(ctx, req)

		case req := <-k.updateScoreRequests:
			req.Resp <- k.handleUpdateScore(ctx, req)

		case req := <-k.proposeRequests:
			req.Resp <- k.handlePropose(req)

		case req := <-k.voteRequests:
			req.Resp <- k.handleVote(ctx, req)

		case req := <-k.consensusRequests:
			req.Resp <- k.handleConsensus(ctx, req)

		case req := <-k.rotateRequests:
			req.Resp <- k.handleRotate(ctx)

		case req := <-k.blockVotesRequests:
			votes, err := k.st.BlockVotes(req.BlockID)
			req.Resp <- blockVotesResponse{Votes: votes, Err: err}

		case req := <-k.expireRequests:
			req.Resp <- k.expirePending()

		case req := <-k.viewRequests:
			req.Resp <- k.buildView(req.Fields)

		case <-sweep:
			_ = k.expirePending()
		}
	}
}

func (k *kernel) handleRegister(ctx context.Context, req registerRequest) validatorResponse {
	if err := k.st.Registry().CheckRegistration(req.ID, req.Score, req.Stake); err != nil {
		k.mc.ObserveRegistration(false)
		return validatorResponse{Err: err}
	}

	v := lconsensus.Validator{
		ID:     req.ID,
		Score:  req.Score,
		Stake:  req.Stake,
		Active: true,
	}
	if k.vs != nil {
		if err := k.vs.SaveValidator(ctx, v); err != nil {
			return validatorResponse{Err: fmt.Errorf("failed to persist validator %q: %w", v.ID, err)}
		}
	}

	v, err := k.st.Registry().Register(req.ID, req.Score, req.Stake)
	if err != nil {
		panic(fmt.Errorf("BUG: registration failed after successful check: %w", err))
	}

	k.mc.ObserveRegistration(true)
	k.log.Info("Registered validator", "id", v.ID, "score", v.Score, "stake", v.Stake)
	k.reportSnapshot()

	return validatorResponse{Val: v}
}

func (k *kernel) handleUpdateScore(ctx context.Context, req updateScoreRequest) validatorResponse {
	v, _, ok := k.st.Registry().Lookup(req.ID)
	if !ok {
		return validatorResponse{Err: fmt.Errorf("%w: %q", lconsensus.ErrValidatorNotFound, req.ID)}
	}
	if !lconsensus.ValidScore(req.Score) {
		return validatorResponse{Err: fmt.Errorf("%w: %v", lconsensus.ErrInvalidScore, req.Score)}
	}

	v.Score = req.Score
	if k.vs != nil {
		if err := k.vs.SaveValidator(ctx, v); err != nil {
			return validatorResponse{Err: fmt.Errorf("failed to persist validator %q: %w", v.ID, err)}
		}
	}

	v, err := k.st.Registry().UpdateScore(req.ID, req.Score)
	if err != nil {
		panic(fmt.Errorf("BUG: score update failed after successful check: %w", err))
	}

	k.log.Debug("Updated validator score", "id", v.ID, "score", v.Score)
	k.reportSnapshot()

	return validatorResponse{Val: v}
}

func (k *kernel) handlePropose(req proposeRequest) proposeResponse {
	b, err := k.st.Propose(req.Score, req.ProposerID)
	if err != nil {
		return proposeResponse{Err: err}
	}

	k.mc.ObserveProposal()
	k.log.Info(
		"Proposed block",
		"id", b.ID,
		"proposer", b.ProposerID,
		"hash", b.Hash,
		"prev", b.PreviousHash,
	)
	k.reportSnapshot()

	return proposeResponse{Block: b}
}

func (k *kernel) handleVote(ctx context.Context, req voteRequest) voteResponse {
	res, err := k.st.Vote(ctx, req.BlockID, req.ValidatorID, req.Approve)
	if err != nil {
		return voteResponse{Err: err}
	}

	k.mc.ObserveVote(res)
	k.log.Debug(
		"Recorded vote",
		"block", req.BlockID,
		"validator", req.ValidatorID,
		"result", res,
	)
	return voteResponse{Result: res}
}

func (k *kernel) handleConsensus(ctx context.Context, req consensusRequest) consensusResponse {
	res, err := k.st.Evaluate(req.BlockID)
	if err != nil {
		return consensusResponse{Err: err}
	}

	if !res.Reached {
		k.mc.ObserveEvaluation(res)
		k.log.Debug(
			"Consensus not reached",
			"block", res.BlockID,
			"eligible", res.EligibleCount,
			"voted_stake", res.VotedStake,
			"threshold_stake", res.ThresholdStake,
		)
		return consensusResponse{Result: res}
	}

	// The block must be durable before it becomes visible,
	// so that a restart never forgets a confirmation that was reported.
	if k.cs != nil {
		if err := k.cs.SaveBlock(ctx, *res.Block); err != nil {
			return consensusResponse{Err: fmt.Errorf(
				"failed to persist block %d; it remains pending: %w", res.BlockID, err,
			)}
		}
	}

	b, orphaned, err := k.st.Confirm(req.BlockID)
	if err != nil {
		panic(fmt.Errorf("BUG: confirm failed after successful evaluation: %w", err))
	}
	res.Block = &b
	res.Orphaned = orphaned

	k.mc.ObserveEvaluation(res)
	k.log.Info(
		"Confirmed block",
		"id", b.ID,
		"hash", b.Hash,
		"height", k.st.Chain().Len(),
		"voted_stake", res.VotedStake,
		"total_stake", res.TotalStake,
		"signatures", len(b.Signatures),
	)
	if len(orphaned) > 0 {
		k.log.Info("Evicted orphaned pending blocks", "ids", orphaned)
	}
	k.reportSnapshot()

	return consensusResponse{Result: res}
}

func (k *kernel) handleRotate(ctx context.Context) rotateResponse {
	reg := k.st.Registry()

	var out []lconsensus.Validator
	if k.vs == nil {
		out = reg.Rotate()
	} else {
		// Persist each deactivation before applying it,
		// so a failed write leaves the rest for the next rotation.
		for _, v := range reg.RotationCandidates() {
			if err := k.vs.SaveValidator(ctx, v); err != nil {
				k.finishRotate(out)
				return rotateResponse{
					Deactivated: out,
					Err:         fmt.Errorf("failed to persist deactivation of %q: %w", v.ID, err),
				}
			}
			reg.Restore(v)
			out = append(out, v)
		}
	}

	k.finishRotate(out)
	return rotateResponse{Deactivated: out}
}

func (k *kernel) finishRotate(deactivated []lconsensus.Validator) {
	k.mc.ObserveRotation(len(deactivated))
	if len(deactivated) == 0 {
		return
	}

	ids := make([]string, len(deactivated))
	for i, v := range deactivated {
		ids[i] = v.ID
	}
	k.log.Info("Deactivated validators", "ids", ids)
	k.reportSnapshot()
}

func (k *kernel) expirePending() []uint64 {
	if k.pendingTTL <= 0 {
		return nil
	}

	cutoff := lconsensus.UnixSeconds(k.clock.Now().Add(-k.pendingTTL))
	expired := k.st.ExpirePending(cutoff)
	if len(expired) == 0 {
		return nil
	}

	k.mc.ObserveExpired(len(expired))
	k.log.Info("Expired pending blocks", "ids", expired, "ttl", k.pendingTTL)
	k.reportSnapshot()
	return expired
}

func (k *kernel) status() Status {
	reg := k.st.Registry()
	chain := k.st.Chain()
	return Status{
		ChainHeight:   chain.Len(),
		TipHash:       chain.TipHash(),
		Pending:       k.st.PendingLen(),
		Registered:    reg.Len(),
		Eligible:      len(reg.Eligible()),
		NetworkScore:  reg.NetworkScore(),
		Threshold:     reg.Threshold(),
		MinValidators: k.st.MinValidators(),
	}
}

func (k *kernel) buildView(fields viewField) view {
	var v view
	if fields&viewValidators != 0 {
		v.Validators = k.st.Registry().All()
	}
	if fields&viewPending != 0 {
		v.Pending = k.st.Pending()
	}
	if fields&viewChain != 0 {
		v.Chain = k.st.Chain().Blocks()
	}
	if fields&viewStatus != 0 {
		v.Status = k.status()
	}
	return v
}

func (k *kernel) reportSnapshot() {
	if k.mc == nil {
		return
	}
	s := k.status()
	k.mc.SetSnapshot(lemetrics.Snapshot{
		ChainHeight:  s.ChainHeight,
		Pending:      s.Pending,
		Eligible:     s.Eligible,
		NetworkScore: s.NetworkScore,
	})
}
