package latticacmd_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/gordian-engine/lattica/cmd/lattica/internal/latticacmd"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out, errOut bytes.Buffer
	cmd := latticacmd.NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err = cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func TestDemo(t *testing.T) {
	t.Parallel()

	for _, signer := range []string{"placeholder", "ed25519", "secp256k1", "bls"} {
		t.Run(signer, func(t *testing.T) {
			t.Parallel()

			out, _, err := runCmd(t, "demo", "--log-level", "error", "--signer", signer)
			require.NoError(t, err)

			require.Contains(t, out, "proposed block 1 ")
			require.Contains(t, out, "consensus reached=true voted=300 threshold=200 total=300")
			require.Contains(t, out, "network score 0.9867")

			if signer == "placeholder" {
				require.NotContains(t, out, "verified")
			} else {
				require.Contains(t, out, "verified 3 "+signer+" approval tokens")
				require.Equal(t, 3, strings.Count(out, "pubkey "))
			}
		})
	}
}

func TestDemo_notReached(t *testing.T) {
	t.Parallel()

	_, _, err := runCmd(t, "demo", "--log-level", "error", "--min-validators", "4")
	require.ErrorContains(t, err, "consensus not reached")
}

func TestDemo_badFlags(t *testing.T) {
	t.Parallel()

	_, _, err := runCmd(t, "demo", "--signer", "rsa")
	require.ErrorContains(t, err, `unknown --signer "rsa"`)

	_, _, err = runCmd(t, "demo", "--hash", "md5")
	require.ErrorContains(t, err, `unknown --hash "md5"`)

	_, _, err = runCmd(t, "demo", "--log-format", "xml")
	require.ErrorContains(t, err, "invalid --log-format")

	_, _, err = runCmd(t, "demo", "--log-level", "loud")
	require.ErrorContains(t, err, "invalid --log-level")
}
