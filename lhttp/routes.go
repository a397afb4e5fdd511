package lhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/gordian-engine/lattica/lengine"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RequestIDHeader carries the id assigned to each request,
// echoed from the request if the caller set it.
const RequestIDHeader = "X-Request-Id"

type RegisterRequest struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Stake uint64  `json:"stake"`
}

type UpdateScoreRequest struct {
	Score float64 `json:"score"`
}

type ProposeRequest struct {
	Score      float64 `json:"score"`
	ProposerID string  `json:"proposer_id"`
}

type VoteRequest struct {
	ValidatorID string `json:"validator_id"`
	Approve     bool   `json:"approve"`
}

type VoteResponse struct {
	Result string `json:"result"`
}

type NetworkScoreResponse struct {
	NetworkScore float64 `json:"network_score"`
}

type ExpireResponse struct {
	Expired []uint64 `json:"expired"`
}

func newMux(log *slog.Logger, cfg HTTPServerConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware(log))

	e := cfg.Engine

	r.HandleFunc("/status", handleStatus(log, e)).Methods("GET")

	r.HandleFunc("/validators", handleValidators(log, e)).Methods("GET")
	r.HandleFunc("/validators", handleRegister(log, e)).Methods("POST")
	r.HandleFunc("/validators/rotate", handleRotate(log, e)).Methods("POST")
	r.HandleFunc("/validators/{id}/score", handleUpdateScore(log, e)).Methods("PUT")

	r.HandleFunc("/network/score", handleNetworkScore(log, e)).Methods("GET")

	r.HandleFunc("/blocks", handlePropose(log, e)).Methods("POST")
	r.HandleFunc("/blocks/pending", handlePending(log, e)).Methods("GET")
	r.HandleFunc("/blocks/expire", handleExpire(log, e)).Methods("POST")
	r.HandleFunc("/blocks/{id:[0-9]+}/votes", handleBlockVotes(log, e)).Methods("GET")
	r.HandleFunc("/blocks/{id:[0-9]+}/votes", handleVote(log, e)).Methods("POST")
	r.HandleFunc("/blocks/{id:[0-9]+}/consensus", handleConsensus(log, e)).Methods("POST")

	r.HandleFunc("/chain", handleChain(log, e)).Methods("GET")
	r.HandleFunc("/chain/tip", handleChainTip(log, e)).Methods("GET")

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	return r
}

type requestIDKey struct{}

func requestIDMiddleware(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			id := req.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			log.Debug("Handling request", "method", req.Method, "path", req.URL.Path, "request_id", id)

			ctx := context.WithValue(req.Context(), requestIDKey{}, id)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func writeJSON(log *slog.Logger, w http.ResponseWriter, req *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn(
			"Failed to encode response",
			"path", req.URL.Path,
			"request_id", requestID(req.Context()),
			"err", err,
		)
	}
}

func writeError(log *slog.Logger, w http.ResponseWriter, req *http.Request, err error) {
	kind, status := classify(err)
	if status >= 500 {
		log.Warn(
			"Request failed",
			"path", req.URL.Path,
			"request_id", requestID(req.Context()),
			"err", err,
		)
	}
	writeJSON(log, w, req, status, errorBody{Kind: kind, Message: err.Error()})
}

func writeBadRequest(log *slog.Logger, w http.ResponseWriter, req *http.Request, err error) {
	writeJSON(log, w, req, http.StatusBadRequest, errorBody{Kind: kindBadRequest, Message: err.Error()})
}

func decodeBody(req *http.Request, v any) error {
	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func blockIDVar(req *http.Request) (uint64, error) {
	s := mux.Vars(req)["id"]
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid block id %q: %w", s, err)
	}
	return id, nil
}

func handleStatus(log *slog.Logger, e *lengine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		st, err := e.Status(req.Context())
		if err != nil {
			writeError(log, w, req, err)
			return
		}
		writeJSON(log, w, req, http.StatusOK, st)
	}
}

func handleValidators(log *slog.Logger, e *lengine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		vals, err := e.Validators(req.Context())
		if err != nil {
			writeError(log, w, req, err)
			return
		}
		if vals == nil {
			vals = []lconsensus.Validator{}
		}
		writeJSON(log, w, req, http.StatusOK, vals)
	}
}

func handleRegister(log *slog.Logger, e *lengine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var r RegisterRequest
		if err := decodeBody(req, &r); err != nil {
			writeBadRequest(log, w, req, err)
			return
		}

		v, err := e.Register(req.Context(), r.ID, r.Score, r.Stake)
		if err != nil {
			writeError(log, w, req, err)
			return
		}
		writeJSON(log, w, req, http.StatusCreated, v)
	}
}

func handleUpdateScore(log *slog.Logger, e *lengine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var r UpdateScoreRequest
		if err := decodeBody(req, &r); err != nil {
			writeBadRequest(log, w, req, err)
			return
		}

		v, err := e.UpdateScore(req.Context(), mux.Vars(req)["id"], r.Score)
		if err != nil {
			writeError(log, w, req, err)
			return
		}
		writeJSON(log, w, req, http.StatusOK, v)
	}
}

func handleRotate(log *slog.Logger, e *lengine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		out, err := e.Rotate(req.Context())
		if err != nil {
			writeError(log, w, req, err)
			return
		}
		if out == nil {
			out = []lconsensus.Validator{}
		}
		writeJSON(log, w, req, http.StatusOK, out)
	}
}

func handleNetworkScore(log *slog.Logger, e *lengine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		s, err := e.NetworkScore(req.Context())
		if err != nil {
			writeError(log, w, req, err)
			return
		}
		writeJSON(log, w, req, http.StatusOK, NetworkScoreResponse{NetworkScore: s})
	}
}

func handlePropose(log *slog.Logger, e *lengine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var r ProposeRequest
		if err := decodeBody(req, &r); err != nil {
			writeBadRequest(log, w, req, err)
			return
		}

		b, err := e.Propose(req.Context(), r.Score, r.ProposerID)
		if err != nil {
			writeError(log, w, req, err)
			return
		}
		writeJSON(log, w, req, http.StatusCreated, b)
	}
}

func handlePending(log *slog.Logger, e *lengine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		blocks, err := e.Pending(req.Context())
		if err != nil {
			writeError(log, w, req, err)
			return
		}
		if blocks == nil {
			blocks = []lconsensus.Block{}
		}
		writeJSON(log, w, req, http.StatusOK, blocks)
	}
}

func handleExpire(log *slog.Logger, e *lengine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ids, err := e.ExpirePending(req.Context())
		if err != nil {
			writeError(log, w, req, err)
			return
		}
		if ids == nil {
			ids = []uint64{}
		}
		writeJSON(log, w, req, http.StatusOK, ExpireResponse{Expired: ids})
	}
}

func handleBlockVotes(log *slog.Logger, e *lengine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id, err := blockIDVar(req)
		if err != nil {
			writeBadRequest(log, w, req, err)
			return
		}

		votes, err := e.BlockVotes(req.Context(), id)
		if err != nil {
			writeError(log, w, req, err)
			return
		}
		writeJSON(log, w, req, http.StatusOK, votes)
	}
}

func handleVote(log *slog.Logger, e *lengine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id, err := blockIDVar(req)
		if err != nil {
			writeBadRequest(log, w, req, err)
			return
		}

		var r VoteRequest
		if err := decodeBody(req, &r); err != nil {
			writeBadRequest(log, w, req, err)
			return
		}

		res, err := e.Vote(req.Context(), id, r.ValidatorID, r.Approve)
		if err != nil {
			writeError(log, w, req, err)
			return
		}
		writeJSON(log, w, req, http.StatusOK, VoteResponse{Result: res.String()})
	}
}

func handleConsensus(log *slog.Logger, e *lengine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id, err := blockIDVar(req)
		if err != nil {
			writeBadRequest(log, w, req, err)
			return
		}

		res, err := e.CheckConsensus(req.Context(), id)
		if err != nil {
			writeError(log, w, req, err)
			return
		}
		writeJSON(log, w, req, http.StatusOK, res)
	}
}

func handleChain(log *slog.Logger, e *lengine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		blocks, err := e.Chain(req.Context())
		if err != nil {
			writeError(log, w, req, err)
			return
		}
		if blocks == nil {
			blocks = []lconsensus.Block{}
		}
		writeJSON(log, w, req, http.StatusOK, blocks)
	}
}

func handleChainTip(log *slog.Logger, e *lengine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		blocks, err := e.Chain(req.Context())
		if err != nil {
			writeError(log, w, req, err)
			return
		}
		if len(blocks) == 0 {
			writeError(log, w, req, fmt.Errorf("%w: chain is empty", lconsensus.ErrBlockNotFound))
			return
		}
		writeJSON(log, w, req, http.StatusOK, blocks[len(blocks)-1])
	}
}

