// Package lcryptotest contains deterministic keys for tests.
package lcryptotest

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gordian-engine/lattica/lcrypto"
)

var (
	ed25519Mu    sync.Mutex
	ed25519Cache []lcrypto.Ed25519Signer
)

// DeterministicEd25519Signers returns n ed25519 signers
// whose keys depend only on their index.
//
// Generated keys are cached across calls,
// so repeated use within a test binary is effectively free.
func DeterministicEd25519Signers(n int) []lcrypto.Ed25519Signer {
	ed25519Mu.Lock()
	defer ed25519Mu.Unlock()

	for i := len(ed25519Cache); i < n; i++ {
		seed := deterministicSeed("ed25519", i)
		priv := ed25519.NewKeyFromSeed(seed[:])
		ed25519Cache = append(ed25519Cache, lcrypto.NewEd25519Signer(priv))
	}

	out := make([]lcrypto.Ed25519Signer, n)
	copy(out, ed25519Cache)
	return out
}

// DeterministicSecp256k1Signers returns n secp256k1 signers
// whose keys depend only on their index.
func DeterministicSecp256k1Signers(n int) []lcrypto.Secp256k1Signer {
	out := make([]lcrypto.Secp256k1Signer, n)
	for i := range out {
		seed := deterministicSeed("secp256k1", i)
		priv, err := crypto.ToECDSA(seed[:])
		if err != nil {
			// A SHA-256 digest is a valid scalar with overwhelming probability.
			panic(err)
		}
		out[i] = lcrypto.NewSecp256k1Signer(priv)
	}
	return out
}

func deterministicSeed(kind string, i int) [32]byte {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(i))
	return sha256.Sum256(append([]byte("lattica "+kind+" "), idx[:]...))
}
