package lcrypto

import "context"

// PubKey is the public half of a validator key.
type PubKey interface {
	PubKeyBytes() []byte

	Equal(other PubKey) bool

	Verify(msg, sig []byte) bool

	// TypeName is the short name the key type is registered under
	// in a [Registry].
	TypeName() string
}

// Signer produces signatures for a single key.
//
// Implementations may be backed by an in-process private key,
// or by an external signing service,
// so Sign accepts a context.
type Signer interface {
	PubKey() PubKey

	Sign(ctx context.Context, input []byte) ([]byte, error)
}
