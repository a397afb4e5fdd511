package lcrypto

import (
	"bytes"
	"context"
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/crypto"
)

const secp256k1TypeName = "secp256k"

// RegisterSecp256k1 registers secp256k1 with the given Registry.
func RegisterSecp256k1(reg *Registry) {
	reg.Register(secp256k1TypeName, Secp256k1PubKey{}, NewSecp256k1PubKey)
}

type Secp256k1PubKey ecdsa.PublicKey

// NewSecp256k1PubKey decodes an uncompressed 65-byte secp256k1 public key.
func NewSecp256k1PubKey(b []byte) (PubKey, error) {
	pubKey, err := crypto.UnmarshalPubkey(b)
	if err != nil {
		return nil, err
	}
	return Secp256k1PubKey(*pubKey), nil
}

func (k Secp256k1PubKey) PubKeyBytes() []byte {
	return crypto.FromECDSAPub((*ecdsa.PublicKey)(&k))
}

// Verify reports whether sig is a valid recoverable signature
// over the Keccak-256 digest of msg.
// The trailing recovery byte is ignored.
func (k Secp256k1PubKey) Verify(msg, sig []byte) bool {
	if len(sig) != crypto.SignatureLength {
		return false
	}
	return crypto.VerifySignature(k.PubKeyBytes(), crypto.Keccak256(msg), sig[:crypto.RecoveryIDOffset])
}

func (k Secp256k1PubKey) Equal(other PubKey) bool {
	o, ok := other.(Secp256k1PubKey)
	if !ok {
		return false
	}

	return bytes.Equal(k.PubKeyBytes(), o.PubKeyBytes())
}

func (Secp256k1PubKey) TypeName() string {
	return secp256k1TypeName
}

type Secp256k1Signer struct {
	priv *ecdsa.PrivateKey
	pub  Secp256k1PubKey
}

func NewSecp256k1Signer(priv *ecdsa.PrivateKey) Secp256k1Signer {
	return Secp256k1Signer{
		priv: priv,
		pub:  Secp256k1PubKey(priv.PublicKey),
	}
}

func (s Secp256k1Signer) PubKey() PubKey {
	return s.pub
}

func (s Secp256k1Signer) Sign(_ context.Context, input []byte) ([]byte, error) {
	return crypto.Sign(crypto.Keccak256(input), s.priv)
}
