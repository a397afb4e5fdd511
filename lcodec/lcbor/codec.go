// Package lcbor contains a [lcodec.MarshalCodec] that serializes to CBOR,
// with core deterministic encoding so that equal values encode to equal bytes.
package lcbor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/gordian-engine/lattica/lcodec"
	"github.com/gordian-engine/lattica/lconsensus"
)

// Compact integer keys keep records small.
// Keys must never be reused for a different field.

type block struct {
	ID           uint64      `cbor:"1,keyasint"`
	Timestamp    uint64      `cbor:"2,keyasint"`
	PreviousHash string      `cbor:"3,keyasint"`
	Hash         string      `cbor:"4,keyasint"`
	Score        float64     `cbor:"5,keyasint"`
	Coherence    float64     `cbor:"6,keyasint"`
	Fluctuation  float64     `cbor:"7,keyasint"`
	ProposerID   string      `cbor:"8,keyasint"`
	Signatures   []signature `cbor:"9,keyasint,omitempty"`
}

type signature struct {
	ValidatorID string  `cbor:"1,keyasint"`
	Score       float64 `cbor:"2,keyasint"`
	Token       []byte  `cbor:"3,keyasint"`
	Timestamp   uint64  `cbor:"4,keyasint"`
}

type validator struct {
	ID     string  `cbor:"1,keyasint"`
	Score  float64 `cbor:"2,keyasint"`
	Stake  uint64  `cbor:"3,keyasint"`
	Active bool    `cbor:"4,keyasint"`
}

var _ lcodec.MarshalCodec = MarshalCodec{}

type MarshalCodec struct{}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Errorf("failed to build CBOR encoding mode: %w", err))
	}

	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(fmt.Errorf("failed to build CBOR decoding mode: %w", err))
	}
}

func (MarshalCodec) Name() string { return "cbor" }

func (MarshalCodec) MarshalBlock(b lconsensus.Block) ([]byte, error) {
	cb := block{
		ID:           b.ID,
		Timestamp:    b.Timestamp,
		PreviousHash: b.PreviousHash,
		Hash:         b.Hash,
		Score:        b.Score,
		Coherence:    b.Coherence,
		Fluctuation:  b.Fluctuation,
		ProposerID:   b.ProposerID,
	}
	if len(b.Signatures) > 0 {
		cb.Signatures = make([]signature, len(b.Signatures))
		for i, s := range b.Signatures {
			cb.Signatures[i] = signature(s)
		}
	}
	return encMode.Marshal(cb)
}

func (MarshalCodec) UnmarshalBlock(data []byte, b *lconsensus.Block) error {
	var cb block
	if err := decMode.Unmarshal(data, &cb); err != nil {
		return fmt.Errorf("failed to decode block: %w", err)
	}

	*b = lconsensus.Block{
		ID:           cb.ID,
		Timestamp:    cb.Timestamp,
		PreviousHash: cb.PreviousHash,
		Hash:         cb.Hash,
		Score:        cb.Score,
		Coherence:    cb.Coherence,
		Fluctuation:  cb.Fluctuation,
		ProposerID:   cb.ProposerID,
	}
	if len(cb.Signatures) > 0 {
		b.Signatures = make([]lconsensus.Signature, len(cb.Signatures))
		for i, s := range cb.Signatures {
			b.Signatures[i] = lconsensus.Signature(s)
		}
	}
	return nil
}

func (MarshalCodec) MarshalValidator(v lconsensus.Validator) ([]byte, error) {
	return encMode.Marshal(validator(v))
}

func (MarshalCodec) UnmarshalValidator(data []byte, v *lconsensus.Validator) error {
	var cv validator
	if err := decMode.Unmarshal(data, &cv); err != nil {
		return fmt.Errorf("failed to decode validator: %w", err)
	}
	*v = lconsensus.Validator(cv)
	return nil
}
