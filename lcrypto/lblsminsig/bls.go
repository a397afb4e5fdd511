// Package lblsminsig provides BLS keys with minimized signatures:
// public keys on G2, signatures on G1.
package lblsminsig

import (
	"context"
	"errors"
	"fmt"

	"github.com/gordian-engine/lattica/lcrypto"
	blst "github.com/supranational/blst/bindings/go"
)

// Registered names are limited to eight bytes.
const keyTypeName = "blsmnsig"

// DomainSeparationTag follows draft-irtf-cfrg-bls-signature-05 section 4.1,
// with the basic (NUL) scheme over BLS12381G1_XMD:SHA-256_SSWU_RO_.
var DomainSeparationTag = []byte("BLS_SIG_BLS12381G1_XMD:SHA-256_SSWU_RO_NUL_")

// keygenSalt is mixed into every derived secret key.
var keygenSalt = []byte("lattica-validator")

// Register registers the BLS key type with the given Registry.
func Register(reg *lcrypto.Registry) {
	reg.Register(keyTypeName, PubKey{}, NewPubKey)
}

// PubKey is a compressed-encodable point on G2.
type PubKey blst.P2Affine

// NewPubKey decodes a compressed G2 point and validates it.
func NewPubKey(b []byte) (lcrypto.PubKey, error) {
	if len(b) != blst.BLST_P2_COMPRESS_BYTES {
		return nil, fmt.Errorf("expected %d compressed bytes, got %d", blst.BLST_P2_COMPRESS_BYTES, len(b))
	}

	p2a := new(blst.P2Affine).Uncompress(b)
	if p2a == nil {
		return nil, errors.New("failed to decompress input")
	}

	if !p2a.KeyValidate() {
		return nil, errors.New("input key failed validation")
	}

	return PubKey(*p2a), nil
}

func (k PubKey) Equal(other lcrypto.PubKey) bool {
	o, ok := other.(PubKey)
	if !ok {
		return false
	}

	p2a := blst.P2Affine(k)
	p2o := blst.P2Affine(o)
	return p2a.Equals(&p2o)
}

func (k PubKey) PubKeyBytes() []byte {
	p2a := blst.P2Affine(k)
	return p2a.Compress()
}

// Verify expects sig to be a compressed G1 point.
func (k PubKey) Verify(msg, sig []byte) bool {
	p1a := new(blst.P1Affine).Uncompress(sig)
	if p1a == nil {
		return false
	}

	if !p1a.SigValidate(false) {
		return false
	}

	p2a := blst.P2Affine(k)
	return p1a.Verify(false, &p2a, false, blst.Message(msg), DomainSeparationTag)
}

func (PubKey) TypeName() string {
	return keyTypeName
}

// Signer satisfies [lcrypto.Signer].
type Signer struct {
	secret blst.SecretKey
	point  blst.P2Affine
}

// NewSigner derives a secret key from ikm,
// which must be at least 32 bytes of cryptographically random data.
func NewSigner(ikm []byte) (Signer, error) {
	if len(ikm) < blst.BLST_SCALAR_BYTES {
		return Signer{}, fmt.Errorf(
			"ikm data too short: got %d, need at least %d",
			len(ikm), blst.BLST_SCALAR_BYTES,
		)
	}

	secret := blst.KeyGenV5(ikm, keygenSalt)
	point := new(blst.P2Affine).From(secret)

	return Signer{
		secret: *secret,
		point:  *point,
	}, nil
}

func (s Signer) PubKey() lcrypto.PubKey {
	return PubKey(s.point)
}

func (s Signer) Sign(_ context.Context, input []byte) ([]byte, error) {
	sig := new(blst.P1Affine).Sign(&s.secret, input, DomainSeparationTag, true)
	if sig == nil {
		return nil, errors.New("failed to sign")
	}

	return sig.Compress(), nil
}
