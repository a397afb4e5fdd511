// Package lcrypto contains the key and signer abstractions
// that back lattica vote signatures.
//
// The consensus evaluator never verifies signatures;
// it only checks ledger membership.
// These types exist so that a deployment can replace
// the placeholder signature tokens with real, verifiable ones,
// and so that an external auditor can check them after the fact.
//
// There is no global key [Registry].
// Callers register the key types they need, for example with [RegisterEd25519].
package lcrypto
