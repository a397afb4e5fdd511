// Package lconsensustest contains fixtures for tests involving lconsensus types.
package lconsensustest

import (
	"fmt"
	"time"

	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/gordian-engine/lattica/lcrypto"
	"github.com/gordian-engine/lattica/lcrypto/lcryptotest"
)

// DefaultStart is the initial time of a Fixture's clock.
var DefaultStart = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

// PrivVal pairs a validator with the signer backing its votes.
type PrivVal struct {
	Val    lconsensus.Validator
	Signer lcrypto.Signer
}

// Fixture holds deterministic validators and collaborators for tests.
//
// Validators are named v1, v2, ... with stake 100 and score 0.99.
// Tests may modify PrivVals before use.
type Fixture struct {
	PrivVals []PrivVal

	Clock *ManualClock

	HashScheme lconsensus.HashScheme
}

// NewFixture returns a Fixture with n validators
// backed by deterministic ed25519 signers.
func NewFixture(n int) *Fixture {
	signers := lcryptotest.DeterministicEd25519Signers(n)
	pvs := make([]PrivVal, n)
	for i := range pvs {
		pvs[i] = PrivVal{
			Val: lconsensus.Validator{
				ID:     fmt.Sprintf("v%d", i+1),
				Score:  0.99,
				Stake:  100,
				Active: true,
			},
			Signer: signers[i],
		}
	}

	return &Fixture{
		PrivVals: pvs,

		Clock: NewManualClock(DefaultStart),

		HashScheme: lconsensus.SHA256HashScheme{},
	}
}

// Vals returns the plain validators of the fixture.
func (f *Fixture) Vals() []lconsensus.Validator {
	out := make([]lconsensus.Validator, len(f.PrivVals))
	for i, pv := range f.PrivVals {
		out[i] = pv.Val
	}
	return out
}

// SignatureProvider returns a provider signing with the fixture's keys.
func (f *Fixture) SignatureProvider() lconsensus.PassthroughSignatureProvider {
	m := make(map[string]lcrypto.Signer, len(f.PrivVals))
	for _, pv := range f.PrivVals {
		m[pv.Val.ID] = pv.Signer
	}
	return lconsensus.PassthroughSignatureProvider{Signers: m}
}
