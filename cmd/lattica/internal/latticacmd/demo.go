package latticacmd

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/gordian-engine/lattica/lcrypto"
	"github.com/gordian-engine/lattica/lcrypto/lblsminsig"
	"github.com/gordian-engine/lattica/lengine"
	"github.com/gordian-engine/lattica/lstore/lmemstore"
	"github.com/spf13/cobra"
)

// demoScores are the scores of the demo validators, in registration order.
var demoScores = []float64{0.99, 0.99, 0.98}

const demoStake = 100

func newDemoCmd(rf *rootFlags) *cobra.Command {
	var (
		ef     engineFlags
		signer string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a single confirmation round against an in-process engine",
		Long: `Run a single confirmation round against an in-process engine.

Three validators with generated names are registered,
the first proposes a block, all three approve it,
and consensus is checked. With a real --signer,
every approval token on the confirmed block is then verified.`,
		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, _ []string) error {
			log, closeLog, err := newLogger(rf, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			opts, err := ef.opts()
			if err != nil {
				return err
			}

			return runDemo(cmd.Context(), log, cmd.OutOrStdout(), signer, opts)
		},
	}

	ef.register(cmd)
	cmd.Flags().StringVar(&signer, "signer", "placeholder", "vote token signer (placeholder, ed25519, secp256k1, or bls)")

	return cmd
}

// petname keeps its own unsynchronized random source.
var (
	petnameMu   sync.Mutex
	petnameOnce sync.Once
)

// demoIDs returns n distinct generated validator names.
func demoIDs(n int) []string {
	petnameMu.Lock()
	defer petnameMu.Unlock()
	petnameOnce.Do(petname.NonDeterministicMode)

	seen := make(map[string]struct{}, n)
	ids := make([]string, 0, n)
	for len(ids) < n {
		id := petname.Generate(2, "-")
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// demoSigners returns a signer for each id,
// or nil if kind is "placeholder".
func demoSigners(kind string, ids []string) (map[string]lcrypto.Signer, error) {
	if kind == "placeholder" {
		return nil, nil
	}

	out := make(map[string]lcrypto.Signer, len(ids))
	for _, id := range ids {
		switch kind {
		case "ed25519":
			_, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
			}
			out[id] = lcrypto.NewEd25519Signer(priv)

		case "secp256k1":
			priv, err := crypto.GenerateKey()
			if err != nil {
				return nil, fmt.Errorf("failed to generate secp256k1 key: %w", err)
			}
			out[id] = lcrypto.NewSecp256k1Signer(priv)

		case "bls":
			ikm := make([]byte, 32)
			if _, err := rand.Read(ikm); err != nil {
				return nil, fmt.Errorf("failed to read key material: %w", err)
			}
			s, err := lblsminsig.NewSigner(ikm)
			if err != nil {
				return nil, fmt.Errorf("failed to create bls signer: %w", err)
			}
			out[id] = s

		default:
			return nil, fmt.Errorf("unknown --signer %q (want placeholder, ed25519, secp256k1, or bls)", kind)
		}
	}
	return out, nil
}

func runDemo(ctx context.Context, log *slog.Logger, out io.Writer, signerKind string, opts []lengine.Opt) error {
	ids := demoIDs(len(demoScores))

	signers, err := demoSigners(signerKind, ids)
	if err != nil {
		return err
	}

	var keyReg lcrypto.Registry
	lcrypto.RegisterEd25519(&keyReg)
	lcrypto.RegisterSecp256k1(&keyReg)
	lblsminsig.Register(&keyReg)

	opts = append(opts,
		lengine.WithChainStore(lmemstore.NewChainStore()),
		lengine.WithValidatorStore(lmemstore.NewValidatorStore()),
	)
	if signers != nil {
		opts = append(opts, lengine.WithSignatureProvider(lconsensus.PassthroughSignatureProvider{
			Signers: signers,
		}))
	}

	ctx, cancel := context.WithCancel(ctx)

	e, err := lengine.New(ctx, log.With("sys", "engine"), opts...)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer e.Wait()
	defer cancel()

	for i, id := range ids {
		v, err := e.Register(ctx, id, demoScores[i], demoStake)
		if err != nil {
			return fmt.Errorf("failed to register %s: %w", id, err)
		}
		fmt.Fprintf(out, "registered %-24s score=%.2f stake=%d\n", v.ID, v.Score, v.Stake)
		if s, ok := signers[id]; ok {
			fmt.Fprintf(out, "  pubkey %s\n", hex.EncodeToString(keyReg.Marshal(s.PubKey())))
		}
	}

	b, err := e.Propose(ctx, demoScores[0], ids[0])
	if err != nil {
		return fmt.Errorf("failed to propose: %w", err)
	}
	fmt.Fprintf(out, "proposed block %d hash=%s prev=%s\n", b.ID, b.Hash, b.PreviousHash)

	for _, id := range ids {
		res, err := e.Vote(ctx, b.ID, id, true)
		if err != nil {
			return fmt.Errorf("vote from %s failed: %w", id, err)
		}
		fmt.Fprintf(out, "vote from %-24s %s\n", id, res)
	}

	cr, err := e.CheckConsensus(ctx, b.ID)
	if err != nil {
		return fmt.Errorf("failed to check consensus: %w", err)
	}
	fmt.Fprintf(out, "consensus reached=%t voted=%d threshold=%d total=%d\n",
		cr.Reached, cr.VotedStake, cr.ThresholdStake, cr.TotalStake)
	if !cr.Reached {
		return fmt.Errorf("consensus not reached on block %d", b.ID)
	}

	if signers != nil {
		for _, sig := range cr.Block.Signatures {
			pub, err := keyReg.Unmarshal(keyReg.Marshal(signers[sig.ValidatorID].PubKey()))
			if err != nil {
				return fmt.Errorf("failed to decode key for %s: %w", sig.ValidatorID, err)
			}

			msg := lconsensus.VoteSignBytes(lconsensus.VoteTarget{
				BlockID:     cr.Block.ID,
				BlockHash:   cr.Block.Hash,
				ValidatorID: sig.ValidatorID,
			})
			if !pub.Verify(msg, sig.Token) {
				return fmt.Errorf("approval token from %s failed verification", sig.ValidatorID)
			}
		}
		fmt.Fprintf(out, "verified %d %s approval tokens\n", len(cr.Block.Signatures), signerKind)
	}

	score, err := e.NetworkScore(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "network score %.4f\n", score)

	return nil
}
