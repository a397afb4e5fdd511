package lhttp_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gordian-engine/lattica/internal/gtest"
	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/gordian-engine/lattica/lconsensus/lconsensustest"
	"github.com/gordian-engine/lattica/lengine"
	"github.com/gordian-engine/lattica/lengine/lemetrics"
	"github.com/gordian-engine/lattica/lhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	Client *lhttp.Client
	Addr   string
}

func startServer(t *testing.T, ln net.Listener, reg *prometheus.Registry) *lhttp.HTTPServer {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	log := gtest.NewLogger(t)

	fx := lconsensustest.NewFixture(3)
	opts := []lengine.Opt{
		lengine.WithClock(fx.Clock),
		lengine.WithSignatureProvider(fx.SignatureProvider()),
	}
	if reg != nil {
		opts = append(opts, lengine.WithMetricsCollector(lemetrics.NewCollector(reg)))
	}

	e, err := lengine.New(ctx, log.With("sys", "engine"), opts...)
	require.NoError(t, err)

	cfg := lhttp.HTTPServerConfig{Listener: ln, Engine: e}
	if reg != nil {
		cfg.Gatherer = reg
	}
	h := lhttp.NewHTTPServer(ctx, log.With("sys", "http"), cfg)

	t.Cleanup(func() {
		cancel()
		h.Wait()
		e.Wait()
	})
	return h
}

func newTCPFixture(t *testing.T, reg *prometheus.Registry) fixture {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	startServer(t, ln, reg)

	addr := "http://" + ln.Addr().String()
	return fixture{Client: lhttp.NewClient(addr), Addr: addr}
}

func TestClient_roundTrip(t *testing.T) {
	t.Parallel()

	fx := newTCPFixture(t, nil)
	c := fx.Client
	ctx := context.Background()

	for _, id := range []string{"v1", "v2", "v3"} {
		v, err := c.Register(ctx, id, 0.99, 100)
		require.NoError(t, err)
		require.True(t, v.Active)
	}

	_, err := c.Register(ctx, "low", 0.5, 100)
	require.ErrorIs(t, err, lconsensus.ErrRegistrationRejected)

	var apiErr *lhttp.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)

	_, err = c.ChainTip(ctx)
	require.ErrorIs(t, err, lconsensus.ErrBlockNotFound)

	b, err := c.Propose(ctx, 0.98, "v1")
	require.NoError(t, err)
	require.Equal(t, uint64(1), b.ID)

	pending, err := c.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	res, err := c.Vote(ctx, 1, "v1", true)
	require.NoError(t, err)
	require.Equal(t, lconsensus.VoteAccepted, res)

	res, err = c.Vote(ctx, 1, "v1", true)
	require.NoError(t, err)
	require.Equal(t, lconsensus.VoteDuplicate, res)

	res, err = c.Vote(ctx, 1, "v3", false)
	require.NoError(t, err)
	require.Equal(t, lconsensus.VoteRejectionNoted, res)

	votes, err := c.BlockVotes(ctx, 1)
	require.NoError(t, err)
	require.Len(t, votes.Approvals, 1)
	require.Len(t, votes.Rejections, 1)

	cr, err := c.CheckConsensus(ctx, 1)
	require.NoError(t, err)
	require.False(t, cr.Reached)

	_, err = c.Vote(ctx, 1, "v2", true)
	require.NoError(t, err)

	cr, err = c.CheckConsensus(ctx, 1)
	require.NoError(t, err)
	require.True(t, cr.Reached)
	require.NotNil(t, cr.Block)
	require.Len(t, cr.Block.Signatures, 2)

	tip, err := c.ChainTip(ctx)
	require.NoError(t, err)
	require.Equal(t, b.Hash, tip.Hash)

	chain, err := c.Chain(ctx)
	require.NoError(t, err)
	require.Len(t, chain, 1)

	_, err = c.Vote(ctx, 1, "v1", true)
	require.ErrorIs(t, err, lconsensus.ErrBlockNotFound)

	_, err = c.Vote(ctx, 2, "nobody", true)
	require.ErrorIs(t, err, lconsensus.ErrValidatorNotFound)

	_, err = c.UpdateScore(ctx, "v3", 0.1)
	require.NoError(t, err)

	_, err = c.Propose(ctx, 0.9, "v3")
	require.ErrorIs(t, err, lconsensus.ErrProposerIneligible)

	rotated, err := c.Rotate(ctx)
	require.NoError(t, err)
	require.Len(t, rotated, 1)

	vals, err := c.Validators(ctx)
	require.NoError(t, err)
	require.Len(t, vals, 3)
	require.False(t, vals[2].Active)

	score, err := c.NetworkScore(ctx)
	require.NoError(t, err)
	require.InDelta(t, (0.99+0.99+0.1)/3, score, 1e-9)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, st.ChainHeight)
	require.Equal(t, 2, st.Eligible)

	expired, err := c.ExpirePending(ctx)
	require.NoError(t, err)
	require.Empty(t, expired)
}

func TestServer_badRequests(t *testing.T) {
	t.Parallel()

	fx := newTCPFixture(t, nil)

	resp, err := http.Post(fx.Addr+"/validators", "application/json", stringBody(`{"id":`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(lhttp.RequestIDHeader))

	resp, err = http.Post(fx.Addr+"/blocks", "application/json", stringBody(`{"bogus":1}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Non-numeric ids do not match the route.
	resp, err = http.Get(fx.Addr + "/blocks/abc/votes")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest("GET", fx.Addr+"/status", nil)
	require.NoError(t, err)
	req.Header.Set(lhttp.RequestIDHeader, "abc-123")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "abc-123", resp.Header.Get(lhttp.RequestIDHeader))
}

func TestServer_metrics(t *testing.T) {
	t.Parallel()

	fx := newTCPFixture(t, prometheus.NewRegistry())

	_, err := fx.Client.Register(context.Background(), "v1", 0.99, 1)
	require.NoError(t, err)

	resp, err := http.Get(fx.Addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `lattica_registrations_total{result="accepted"} 1`)
}

func TestClient_unixSocket(t *testing.T) {
	t.Parallel()

	// Socket paths have a short length limit, so avoid the long t.TempDir path.
	dir, err := os.MkdirTemp("", "lhttp")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	sock := filepath.Join(dir, "s")
	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)
	startServer(t, ln, nil)

	c := lhttp.NewClient("unix://" + sock)
	ctx := context.Background()

	_, err = c.Register(ctx, "v1", 0.99, 5)
	require.NoError(t, err)

	vals, err := c.Validators(ctx)
	require.NoError(t, err)
	require.Equal(t, []lconsensus.Validator{{ID: "v1", Score: 0.99, Stake: 5, Active: true}}, vals)
}

func stringBody(s string) io.Reader {
	return strings.NewReader(s)
}
