package latticacmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gordian-engine/lattica/lcodec"
	"github.com/gordian-engine/lattica/lcodec/lcbor"
	"github.com/gordian-engine/lattica/lcodec/ljson"
	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/gordian-engine/lattica/lengine"
	"github.com/gordian-engine/lattica/lengine/lemetrics"
	"github.com/gordian-engine/lattica/lhttp"
	"github.com/gordian-engine/lattica/lstore/lbadger"
	"github.com/gordian-engine/lattica/lstore/lsqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

type engineFlags struct {
	threshold     float64
	minValidators int
	hashScheme    string
	pendingTTL    time.Duration
}

func (f *engineFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Float64Var(&f.threshold, "threshold", lengine.DefaultScoreThreshold, "minimum score to register, propose, and vote")
	fs.IntVar(&f.minValidators, "min-validators", lengine.DefaultMinValidators, "eligible validators required before consensus can be reached")
	fs.StringVar(&f.hashScheme, "hash", "sha256", "block hash scheme (sha256 or keccak256)")
	fs.DurationVar(&f.pendingTTL, "pending-ttl", 0, "evict pending blocks older than this (0 disables)")
}

func (f *engineFlags) opts() ([]lengine.Opt, error) {
	var hs lconsensus.HashScheme
	switch f.hashScheme {
	case "sha256":
		hs = lconsensus.SHA256HashScheme{}
	case "keccak256":
		hs = lconsensus.Keccak256HashScheme{}
	default:
		return nil, fmt.Errorf("unknown --hash %q (want sha256 or keccak256)", f.hashScheme)
	}

	return []lengine.Opt{
		lengine.WithScoreThreshold(f.threshold),
		lengine.WithMinValidators(f.minValidators),
		lengine.WithHashScheme(hs),
		lengine.WithPendingTTL(f.pendingTTL),
	}, nil
}

type storeFlags struct {
	kind    string
	dataDir string
	codec   string
}

func (f *storeFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.kind, "store", "sqlite", "persistence backend (memory, sqlite, or badger)")
	fs.StringVar(&f.dataDir, "data-dir", "lattica-data", "directory holding the store")
	fs.StringVar(&f.codec, "codec", "", "record codec (json or cbor; defaults to the store's native codec)")
}

func (f *storeFlags) marshalCodec() (lcodec.MarshalCodec, error) {
	switch f.codec {
	case "":
		return nil, nil
	case "json":
		return ljson.MarshalCodec{}, nil
	case "cbor":
		return lcbor.MarshalCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown --codec %q (want json or cbor)", f.codec)
	}
}

// open returns engine options wiring the selected store,
// and a function to close the store after the engine has stopped.
func (f *storeFlags) open(ctx context.Context, log *slog.Logger) ([]lengine.Opt, func() error, error) {
	noop := func() error { return nil }

	mc, err := f.marshalCodec()
	if err != nil {
		return nil, nil, err
	}

	switch f.kind {
	case "memory":
		return nil, noop, nil

	case "sqlite":
		if err := os.MkdirAll(f.dataDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		var opts []lsqlite.Option
		if mc != nil {
			opts = append(opts, lsqlite.WithCodec(mc))
		}
		s, err := lsqlite.Open(ctx, log, filepath.Join(f.dataDir, "lattica.sqlite"), opts...)
		if err != nil {
			return nil, nil, err
		}
		return []lengine.Opt{lengine.WithChainStore(s), lengine.WithValidatorStore(s)}, s.Close, nil

	case "badger":
		var opts []lbadger.Option
		if mc != nil {
			opts = append(opts, lbadger.WithCodec(mc))
		}
		s, err := lbadger.Open(log, filepath.Join(f.dataDir, "badger"), opts...)
		if err != nil {
			return nil, nil, err
		}
		return []lengine.Opt{lengine.WithChainStore(s), lengine.WithValidatorStore(s)}, s.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown --store %q (want memory, sqlite, or badger)", f.kind)
	}
}

// listen opens a TCP listener, or a unix socket listener for a unix:// address.
func listen(addr string) (net.Listener, error) {
	if path, ok := strings.CutPrefix(addr, "unix://"); ok {
		return net.Listen("unix", path)
	}
	return net.Listen("tcp", addr)
}

func newStartCmd(rf *rootFlags) *cobra.Command {
	var (
		ef         engineFlags
		sf         storeFlags
		listenAddr string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the engine and serve its HTTP API",
		Args:  cobra.NoArgs,

		RunE: func(cmd *cobra.Command, _ []string) error {
			log, closeLog, err := newLogger(rf, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			opts, err := ef.opts()
			if err != nil {
				return err
			}

			storeOpts, closeStore, err := sf.open(ctx, log.With("sys", "store"))
			if err != nil {
				return err
			}
			defer func() {
				if err := closeStore(); err != nil {
					log.Warn("Failed to close store", "err", err)
				}
			}()
			opts = append(opts, storeOpts...)

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			opts = append(opts, lengine.WithMetricsCollector(lemetrics.NewCollector(reg)))

			e, err := lengine.New(ctx, log.With("sys", "engine"), opts...)
			if err != nil {
				return fmt.Errorf("failed to start engine: %w", err)
			}
			defer e.Wait()

			ln, err := listen(listenAddr)
			if err != nil {
				cancel()
				return fmt.Errorf("failed to listen on %q: %w", listenAddr, err)
			}

			h := lhttp.NewHTTPServer(ctx, log.With("sys", "http"), lhttp.HTTPServerConfig{
				Listener: ln,
				Engine:   e,
				Gatherer: reg,
			})
			log.Info("Serving HTTP API", "addr", ln.Addr().String(), "store", sf.kind)

			<-ctx.Done()
			h.Wait()
			log.Info("Shutting down", "cause", context.Cause(ctx))
			return nil
		},
	}

	ef.register(cmd)
	sf.register(cmd)
	cmd.Flags().StringVar(&listenAddr, "listen", DefaultAddr, "TCP address or unix://<socket path> to serve on")

	return cmd
}
