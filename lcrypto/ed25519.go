package lcrypto

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"
)

const ed25519TypeName = "ed25519"

// RegisterEd25519 registers the ed25519 key type with reg.
func RegisterEd25519(reg *Registry) {
	reg.Register(ed25519TypeName, Ed25519PubKey{}, NewEd25519PubKey)
}

type Ed25519PubKey ed25519.PublicKey

func NewEd25519PubKey(b []byte) (PubKey, error) {
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf(
			"expected ed25519 public key of %d bytes, got %d",
			ed25519.PublicKeySize, len(b),
		)
	}

	return Ed25519PubKey(bytes.Clone(b)), nil
}

func (k Ed25519PubKey) PubKeyBytes() []byte {
	return []byte(k)
}

func (k Ed25519PubKey) Verify(msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(k), msg, sig)
}

func (k Ed25519PubKey) Equal(other PubKey) bool {
	o, ok := other.(Ed25519PubKey)
	if !ok {
		return false
	}

	return bytes.Equal(k, o)
}

func (Ed25519PubKey) TypeName() string {
	return ed25519TypeName
}

// Ed25519Signer is an in-process [Signer] backed by an ed25519 private key.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
	pub  Ed25519PubKey
}

func NewEd25519Signer(priv ed25519.PrivateKey) Ed25519Signer {
	return Ed25519Signer{
		priv: priv,
		pub:  Ed25519PubKey(priv.Public().(ed25519.PublicKey)),
	}
}

func (s Ed25519Signer) PubKey() PubKey {
	return s.pub
}

func (s Ed25519Signer) Sign(_ context.Context, input []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, input), nil
}
