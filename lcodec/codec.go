// Package lcodec defines the serialization boundary for persisted
// blocks and validators.
//
// Subpackages provide concrete codecs:
// [github.com/gordian-engine/lattica/lcodec/ljson] for readable records
// and [github.com/gordian-engine/lattica/lcodec/lcbor] for compact deterministic records.
package lcodec

import "github.com/gordian-engine/lattica/lconsensus"

// MarshalCodec converts values to and from bytes.
type MarshalCodec interface {
	// Name identifies the wire format, for diagnostics and for
	// detecting a store opened with a different codec than it was written with.
	Name() string

	MarshalBlock(lconsensus.Block) ([]byte, error)
	UnmarshalBlock([]byte, *lconsensus.Block) error

	MarshalValidator(lconsensus.Validator) ([]byte, error)
	UnmarshalValidator([]byte, *lconsensus.Validator) error
}
