package latticacmd_test

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"

	"github.com/gordian-engine/lattica/internal/gtest"
	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/gordian-engine/lattica/lengine"
	"github.com/gordian-engine/lattica/lhttp"
	"github.com/stretchr/testify/require"
)

// serveEngine starts an engine behind an HTTP server
// and returns the address to pass as --addr.
func serveEngine(t *testing.T) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	log := gtest.NewLogger(t)

	e, err := lengine.New(ctx, log.With("sys", "engine"))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	h := lhttp.NewHTTPServer(ctx, log.With("sys", "http"), lhttp.HTTPServerConfig{
		Listener: ln,
		Engine:   e,
	})

	t.Cleanup(func() {
		cancel()
		h.Wait()
		e.Wait()
	})

	return "http://" + ln.Addr().String()
}

func TestClientCommands(t *testing.T) {
	t.Parallel()

	addr := serveEngine(t)

	run := func(args ...string) string {
		t.Helper()
		out, _, err := runCmd(t, append(args, "--addr", addr)...)
		require.NoError(t, err)
		return out
	}

	for _, id := range []string{"v1", "v2", "v3"} {
		var v lconsensus.Validator
		require.NoError(t, json.Unmarshal([]byte(run("validator", "register", id, "0.99", "100")), &v))
		require.Equal(t, id, v.ID)
		require.True(t, v.Active)
	}

	var b lconsensus.Block
	require.NoError(t, json.Unmarshal([]byte(run("propose", "v1", "0.99")), &b))
	require.Equal(t, uint64(1), b.ID)
	require.Equal(t, lconsensus.GenesisHash, b.PreviousHash)

	require.Equal(t, "accepted\n", run("vote", "1", "v1"))
	require.Equal(t, "duplicate\n", run("vote", "1", "v1"))
	require.Equal(t, "rejection_noted\n", run("vote", "1", "v2", "--reject"))

	var votes lconsensus.BlockVotes
	require.NoError(t, json.Unmarshal([]byte(run("pending", "--votes", "1")), &votes))
	require.Len(t, votes.Approvals, 1)
	require.Len(t, votes.Rejections, 1)

	var cr lconsensus.ConsensusResult
	require.NoError(t, json.Unmarshal([]byte(run("check", "1")), &cr))
	require.False(t, cr.Reached)

	run("vote", "1", "v2")
	run("vote", "1", "v3")

	cr = lconsensus.ConsensusResult{}
	require.NoError(t, json.Unmarshal([]byte(run("check", "1")), &cr))
	require.True(t, cr.Reached)

	var tip lconsensus.Block
	require.NoError(t, json.Unmarshal([]byte(run("chain", "--tip")), &tip))
	require.Equal(t, b.Hash, tip.Hash)
	require.Len(t, tip.Signatures, 3)

	var pending []lconsensus.Block
	require.NoError(t, json.Unmarshal([]byte(run("pending")), &pending))
	require.Empty(t, pending)

	require.Equal(t, "0.9900\n", run("score"))

	var v lconsensus.Validator
	require.NoError(t, json.Unmarshal([]byte(run("validator", "set-score", "v3", "0.5")), &v))
	require.Equal(t, 0.5, v.Score)
	require.True(t, v.Active)

	var rotated []lconsensus.Validator
	require.NoError(t, json.Unmarshal([]byte(run("validator", "rotate")), &rotated))
	require.Len(t, rotated, 1)
	require.Equal(t, "v3", rotated[0].ID)
	require.False(t, rotated[0].Active)

	var st lengine.Status
	require.NoError(t, json.Unmarshal([]byte(run("status")), &st))
	require.Equal(t, 1, st.ChainHeight)
	require.Equal(t, 3, st.Registered)
	require.Equal(t, 2, st.Eligible)
}

func TestClientCommands_errors(t *testing.T) {
	t.Parallel()

	addr := serveEngine(t)

	_, _, err := runCmd(t, "propose", "nobody", "0.99", "--addr", addr)
	require.ErrorIs(t, err, lconsensus.ErrProposerUnregistered)

	_, _, err = runCmd(t, "vote", "not-a-number", "v1", "--addr", addr)
	require.ErrorContains(t, err, "invalid block id")

	_, _, err = runCmd(t, "validator", "register", "v1", "high", "100", "--addr", addr)
	require.ErrorContains(t, err, "invalid score")

	_, _, err = runCmd(t, "check", "9", "--addr", addr)
	require.ErrorIs(t, err, lconsensus.ErrBlockNotFound)

	out, _, err := runCmd(t, "validator", "list", "--addr", addr)
	require.NoError(t, err)
	require.Equal(t, "[]", strings.TrimSpace(out))
}
