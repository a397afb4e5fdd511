package lconsensus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gordian-engine/lattica/lcrypto"
)

// VoteTarget identifies an approval being signed.
type VoteTarget struct {
	BlockID     uint64
	BlockHash   string
	ValidatorID string
}

// VoteSignBytes returns the bytes a validator signs to approve a block.
func VoteSignBytes(vt VoteTarget) []byte {
	buf := make([]byte, 0, 32+len(vt.BlockHash)+len(vt.ValidatorID))
	buf = append(buf, "lattica/approve/"...)
	buf = strconv.AppendUint(buf, vt.BlockID, 10)
	buf = append(buf, '/')
	buf = append(buf, vt.BlockHash...)
	buf = append(buf, '/')
	buf = append(buf, vt.ValidatorID...)
	return buf
}

// SignatureProvider produces the opaque token stored with an approval.
//
// The consensus evaluator never verifies tokens;
// a deployment that needs authenticity must verify them out of band.
type SignatureProvider interface {
	SignVote(ctx context.Context, vt VoteTarget) ([]byte, error)
}

// PlaceholderSignatureProvider returns "sig_" followed by the validator id.
// It is not a signature in any cryptographic sense.
type PlaceholderSignatureProvider struct{}

func (PlaceholderSignatureProvider) SignVote(_ context.Context, vt VoteTarget) ([]byte, error) {
	return []byte("sig_" + vt.ValidatorID), nil
}

// PassthroughSignatureProvider signs [VoteSignBytes]
// with the signer registered for the voting validator.
type PassthroughSignatureProvider struct {
	// Keyed by validator id.
	Signers map[string]lcrypto.Signer
}

func (p PassthroughSignatureProvider) SignVote(ctx context.Context, vt VoteTarget) ([]byte, error) {
	s, ok := p.Signers[vt.ValidatorID]
	if !ok {
		return nil, fmt.Errorf("no signer for validator %q", vt.ValidatorID)
	}

	sig, err := s.Sign(ctx, VoteSignBytes(vt))
	if err != nil {
		return nil, fmt.Errorf("failed to sign vote for validator %q: %w", vt.ValidatorID, err)
	}
	return sig, nil
}
