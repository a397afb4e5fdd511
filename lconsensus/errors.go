package lconsensus

import "errors"

// Errors returned by engine operations.
// Returned errors wrap these values, so use [errors.Is] to check them.
//
// None of these errors indicate state corruption:
// every operation validates its preconditions before mutating anything.
var (
	ErrRegistrationRejected = errors.New("registration rejected")

	ErrProposerUnregistered  = errors.New("proposer not registered")
	ErrProposerIneligible    = errors.New("proposer not eligible")
	ErrConservationViolation = errors.New("block violates coherence + fluctuation = 1")

	ErrValidatorNotFound   = errors.New("validator not found")
	ErrValidatorIneligible = errors.New("validator not eligible")

	ErrBlockNotFound = errors.New("block not found")

	ErrInvalidScore = errors.New("score must be a number in [0, 1]")
)
