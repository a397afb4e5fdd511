package lconsensus

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"golang.org/x/crypto/sha3"
)

// BlockHashInput is the fixed, ordered tuple of block fields
// that a [HashScheme] digests.
type BlockHashInput struct {
	ID           uint64
	Timestamp    uint64
	PreviousHash string
	Score        float64
	Coherence    float64
	Fluctuation  float64
	ProposerID   string
}

// HashScheme computes the content hash of a block.
//
// Implementations must be pure:
// the same input must always produce the same output,
// on every platform.
type HashScheme interface {
	BlockHash(BlockHashInput) (string, error)
}

// PreHashBytes returns the canonical byte encoding of in
// that the built-in hash schemes digest.
//
// The fields are concatenated without separators, in this order:
// id, timestamp, previous hash, score, coherence, fluctuation, proposer id.
// Integers are written in base 10.
// Floats are written in the shortest decimal form that round-trips,
// never using exponent notation (0.86, not 8.6e-01; 1, not 1.0).
//
// Any other implementation wanting comparable chain hashes
// must reproduce this encoding exactly.
func PreHashBytes(in BlockHashInput) []byte {
	buf := make([]byte, 0, 128)
	buf = strconv.AppendUint(buf, in.ID, 10)
	buf = strconv.AppendUint(buf, in.Timestamp, 10)
	buf = append(buf, in.PreviousHash...)
	buf = strconv.AppendFloat(buf, in.Score, 'f', -1, 64)
	buf = strconv.AppendFloat(buf, in.Coherence, 'f', -1, 64)
	buf = strconv.AppendFloat(buf, in.Fluctuation, 'f', -1, 64)
	buf = append(buf, in.ProposerID...)
	return buf
}

// SHA256HashScheme is the default [HashScheme]:
// lowercase hex SHA-256 of [PreHashBytes].
type SHA256HashScheme struct{}

func (SHA256HashScheme) BlockHash(in BlockHashInput) (string, error) {
	sum := sha256.Sum256(PreHashBytes(in))
	return hex.EncodeToString(sum[:]), nil
}

// Keccak256HashScheme is lowercase hex legacy Keccak-256 of [PreHashBytes],
// for deployments whose auditors already work with Ethereum-style digests.
type Keccak256HashScheme struct{}

func (Keccak256HashScheme) BlockHash(in BlockHashInput) (string, error) {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(PreHashBytes(in)) // hash.Hash writes never fail.
	return hex.EncodeToString(h.Sum(nil)), nil
}
