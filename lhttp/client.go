package lhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/gordian-engine/lattica/lengine"
	"github.com/tv42/httpunix"
)

const unixPrefix = "unix://"

// unixLocation is the placeholder host used in http+unix URLs.
const unixLocation = "lattica"

// Client calls the routes served by [NewHTTPServer].
type Client struct {
	base string
	hc   *http.Client
}

// NewClient returns a Client for addr,
// which is either a base URL such as http://127.0.0.1:9480
// or unix:// followed by the path to a unix socket.
func NewClient(addr string) *Client {
	if path, ok := strings.CutPrefix(addr, unixPrefix); ok {
		t := &httpunix.Transport{
			DialTimeout:           time.Second,
			RequestTimeout:        10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
		}
		t.RegisterLocation(unixLocation, path)

		return &Client{
			base: httpunix.Scheme + "://" + unixLocation,
			hc:   &http.Client{Transport: t},
		}
	}

	return &Client{
		base: strings.TrimSuffix(addr, "/"),
		hc:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil {
			return &APIError{Status: resp.StatusCode, Kind: kindInternal, Message: resp.Status}
		}
		return &APIError{Status: resp.StatusCode, Kind: eb.Kind, Message: eb.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) Status(ctx context.Context) (lengine.Status, error) {
	var st lengine.Status
	err := c.do(ctx, "GET", "/status", nil, &st)
	return st, err
}

func (c *Client) Register(ctx context.Context, id string, score float64, stake uint64) (lconsensus.Validator, error) {
	var v lconsensus.Validator
	err := c.do(ctx, "POST", "/validators", RegisterRequest{ID: id, Score: score, Stake: stake}, &v)
	return v, err
}

func (c *Client) UpdateScore(ctx context.Context, id string, score float64) (lconsensus.Validator, error) {
	var v lconsensus.Validator
	err := c.do(ctx, "PUT", "/validators/"+id+"/score", UpdateScoreRequest{Score: score}, &v)
	return v, err
}

func (c *Client) Validators(ctx context.Context) ([]lconsensus.Validator, error) {
	var vals []lconsensus.Validator
	err := c.do(ctx, "GET", "/validators", nil, &vals)
	return vals, err
}

func (c *Client) Rotate(ctx context.Context) ([]lconsensus.Validator, error) {
	var vals []lconsensus.Validator
	err := c.do(ctx, "POST", "/validators/rotate", nil, &vals)
	return vals, err
}

func (c *Client) NetworkScore(ctx context.Context) (float64, error) {
	var r NetworkScoreResponse
	err := c.do(ctx, "GET", "/network/score", nil, &r)
	return r.NetworkScore, err
}

func (c *Client) Propose(ctx context.Context, score float64, proposerID string) (lconsensus.Block, error) {
	var b lconsensus.Block
	err := c.do(ctx, "POST", "/blocks", ProposeRequest{Score: score, ProposerID: proposerID}, &b)
	return b, err
}

func (c *Client) Pending(ctx context.Context) ([]lconsensus.Block, error) {
	var blocks []lconsensus.Block
	err := c.do(ctx, "GET", "/blocks/pending", nil, &blocks)
	return blocks, err
}

func (c *Client) ExpirePending(ctx context.Context) ([]uint64, error) {
	var r ExpireResponse
	err := c.do(ctx, "POST", "/blocks/expire", nil, &r)
	return r.Expired, err
}

func blockPath(id uint64, suffix string) string {
	return "/blocks/" + strconv.FormatUint(id, 10) + suffix
}

func (c *Client) Vote(ctx context.Context, blockID uint64, validatorID string, approve bool) (lconsensus.VoteResult, error) {
	var r VoteResponse
	if err := c.do(
		ctx, "POST", blockPath(blockID, "/votes"),
		VoteRequest{ValidatorID: validatorID, Approve: approve}, &r,
	); err != nil {
		return 0, err
	}
	return lconsensus.ParseVoteResult(r.Result)
}

func (c *Client) BlockVotes(ctx context.Context, blockID uint64) (lconsensus.BlockVotes, error) {
	var v lconsensus.BlockVotes
	err := c.do(ctx, "GET", blockPath(blockID, "/votes"), nil, &v)
	return v, err
}

func (c *Client) CheckConsensus(ctx context.Context, blockID uint64) (lconsensus.ConsensusResult, error) {
	var r lconsensus.ConsensusResult
	err := c.do(ctx, "POST", blockPath(blockID, "/consensus"), nil, &r)
	return r, err
}

func (c *Client) Chain(ctx context.Context) ([]lconsensus.Block, error) {
	var blocks []lconsensus.Block
	err := c.do(ctx, "GET", "/chain", nil, &blocks)
	return blocks, err
}

func (c *Client) ChainTip(ctx context.Context) (lconsensus.Block, error) {
	var b lconsensus.Block
	err := c.do(ctx, "GET", "/chain/tip", nil, &b)
	return b, err
}
