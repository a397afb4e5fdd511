package lhttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/gordian-engine/lattica/lengine"
)

// errorBody is the JSON body of every non-2xx response.
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"error"`
}

type errorKind struct {
	Name   string
	Status int
	Err    error
}

// Order matters only for errors wrapping more than one sentinel.
var errorKinds = []errorKind{
	{"registration_rejected", http.StatusUnprocessableEntity, lconsensus.ErrRegistrationRejected},
	{"invalid_score", http.StatusUnprocessableEntity, lconsensus.ErrInvalidScore},
	{"proposer_unregistered", http.StatusNotFound, lconsensus.ErrProposerUnregistered},
	{"proposer_ineligible", http.StatusForbidden, lconsensus.ErrProposerIneligible},
	{"validator_not_found", http.StatusNotFound, lconsensus.ErrValidatorNotFound},
	{"validator_ineligible", http.StatusForbidden, lconsensus.ErrValidatorIneligible},
	{"block_not_found", http.StatusNotFound, lconsensus.ErrBlockNotFound},
	{"conservation_violation", http.StatusInternalServerError, lconsensus.ErrConservationViolation},
	{"engine_stopped", http.StatusServiceUnavailable, lengine.ErrEngineStopped},
}

const (
	kindBadRequest = "bad_request"
	kindInternal   = "internal"
)

func classify(err error) (kind string, status int) {
	for _, k := range errorKinds {
		if errors.Is(err, k.Err) {
			return k.Name, k.Status
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return kindInternal, http.StatusServiceUnavailable
	}
	return kindInternal, http.StatusInternalServerError
}

// APIError is returned by [Client] methods for any non-2xx response.
// It unwraps to the matching lconsensus sentinel, if there is one,
// so callers can use [errors.Is] the same way they would against an Engine.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	for _, k := range errorKinds {
		if k.Name == e.Kind {
			return k.Err
		}
	}
	return nil
}
