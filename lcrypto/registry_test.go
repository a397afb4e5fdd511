package lcrypto_test

import (
	"testing"

	"github.com/gordian-engine/lattica/lcrypto"
	"github.com/gordian-engine/lattica/lcrypto/lcryptotest"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RoundTrip(t *testing.T) {
	t.Parallel()

	edKey := lcryptotest.DeterministicEd25519Signers(1)[0].PubKey()
	secpKey := lcryptotest.DeterministicSecp256k1Signers(1)[0].PubKey()

	reg := new(lcrypto.Registry)
	lcrypto.RegisterEd25519(reg)
	lcrypto.RegisterSecp256k1(reg)

	b := reg.Marshal(edKey)
	c := reg.Marshal(secpKey)

	newEd, err := reg.Unmarshal(b)
	require.NoError(t, err)
	newSecp, err := reg.Unmarshal(c)
	require.NoError(t, err)

	require.True(t, edKey.Equal(newEd))
	require.True(t, secpKey.Equal(newSecp))

	require.IsType(t, lcrypto.Ed25519PubKey{}, newEd)
	require.IsType(t, lcrypto.Secp256k1PubKey{}, newSecp)

	// Different key types never compare equal.
	require.False(t, newEd.Equal(newSecp))
}

func TestRegistry_Unmarshal_UnknownType(t *testing.T) {
	t.Parallel()

	reg := new(lcrypto.Registry)
	lcrypto.RegisterEd25519(reg)

	_, err := reg.Unmarshal([]byte("abcd\x00\x00\x00\x00111222333"))
	require.ErrorContains(t, err, "no registered public key type for prefix \"abcd\"")

	_, err = reg.Unmarshal([]byte("abc"))
	require.Error(t, err)
}

func TestRegistry_Register_panics(t *testing.T) {
	t.Parallel()

	reg := new(lcrypto.Registry)
	lcrypto.RegisterEd25519(reg)

	require.Panics(t, func() { lcrypto.RegisterEd25519(reg) })
	require.Panics(t, func() {
		reg.Register("much-too-long", lcrypto.Ed25519PubKey{}, lcrypto.NewEd25519PubKey)
	})
}
