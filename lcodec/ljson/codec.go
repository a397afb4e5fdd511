// Package ljson contains a [lcodec.MarshalCodec] that serializes to JSON.
//
// JSON records are easy to inspect by hand in a store,
// at the cost of size.
package ljson

import (
	"encoding/json"

	"github.com/gordian-engine/lattica/lcodec"
	"github.com/gordian-engine/lattica/lconsensus"
)

var _ lcodec.MarshalCodec = MarshalCodec{}

type MarshalCodec struct{}

func (MarshalCodec) Name() string { return "json" }

func (MarshalCodec) MarshalBlock(b lconsensus.Block) ([]byte, error) {
	return json.Marshal(b)
}

func (MarshalCodec) UnmarshalBlock(data []byte, b *lconsensus.Block) error {
	return json.Unmarshal(data, b)
}

func (MarshalCodec) MarshalValidator(v lconsensus.Validator) ([]byte, error) {
	return json.Marshal(v)
}

func (MarshalCodec) UnmarshalValidator(data []byte, v *lconsensus.Validator) error {
	return json.Unmarshal(data, v)
}
