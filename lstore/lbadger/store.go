// Package lbadger contains a BadgerDB-backed store
// satisfying both [lstore.ChainStore] and [lstore.ValidatorStore].
//
// Keys:
//
//	b/<8-byte big-endian block id>  -> block record
//	v/<validator id>                -> 8-byte big-endian first-save sequence, then validator record
//	m/vseq                          -> next validator sequence
package lbadger

import (
	"cmp"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v2"
	"github.com/gordian-engine/lattica/lcodec"
	"github.com/gordian-engine/lattica/lcodec/lcbor"
	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/gordian-engine/lattica/lstore"
)

var (
	blockPrefix     = []byte("b/")
	validatorPrefix = []byte("v/")
	validatorSeqKey = []byte("m/vseq")
)

type Store struct {
	db    *badger.DB
	codec lcodec.MarshalCodec

	// Serializes validator writes,
	// so that sequence assignment never conflicts.
	valMu sync.Mutex
}

var (
	_ lstore.ChainStore     = (*Store)(nil)
	_ lstore.ValidatorStore = (*Store)(nil)
)

type config struct {
	inMemory bool
	codec    lcodec.MarshalCodec
}

// Option configures [Open].
type Option func(*config)

// WithInMemory keeps all data in memory; the directory is ignored.
func WithInMemory() Option {
	return func(c *config) {
		c.inMemory = true
	}
}

// WithCodec sets the record codec. The default is CBOR.
func WithCodec(mc lcodec.MarshalCodec) Option {
	return func(c *config) {
		c.codec = mc
	}
}

// Open opens or creates a badger database in dir.
// Badger's internal logging is forwarded to log.
func Open(log *slog.Logger, dir string, opts ...Option) (*Store, error) {
	cfg := config{codec: lcbor.MarshalCodec{}}
	for _, o := range opts {
		o(&cfg)
	}

	bOpts := badger.DefaultOptions(dir).
		WithLogger(slogAdapter{log: log}).
		WithSyncWrites(true)
	if cfg.inMemory {
		bOpts = bOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badger.Open(bOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	return &Store{db: db, codec: cfg.codec}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func blockKey(id uint64) []byte {
	k := make([]byte, 0, len(blockPrefix)+8)
	k = append(k, blockPrefix...)
	return binary.BigEndian.AppendUint64(k, id)
}

func validatorKey(id string) []byte {
	k := make([]byte, 0, len(validatorPrefix)+len(id))
	k = append(k, validatorPrefix...)
	return append(k, id...)
}

func (s *Store) SaveBlock(_ context.Context, b lconsensus.Block) error {
	rec, err := s.codec.MarshalBlock(b)
	if err != nil {
		return fmt.Errorf("failed to marshal block %d: %w", b.ID, err)
	}

	key := blockKey(b.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("block %d: %w", b.ID, lstore.ErrAlreadyStored)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, rec)
	})
	if err != nil {
		return fmt.Errorf("failed to save block %d: %w", b.ID, err)
	}
	return nil
}

func (s *Store) LoadChain(context.Context) ([]lconsensus.Block, error) {
	var out []lconsensus.Block
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = blockPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				var b lconsensus.Block
				if err := s.codec.UnmarshalBlock(val, &b); err != nil {
					return err
				}
				out = append(out, b)
				return nil
			}); err != nil {
				return fmt.Errorf("failed to read block at key %x: %w", it.Item().Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load chain: %w", err)
	}
	return out, nil
}

func (s *Store) SaveValidator(_ context.Context, v lconsensus.Validator) error {
	rec, err := s.codec.MarshalValidator(v)
	if err != nil {
		return fmt.Errorf("failed to marshal validator %q: %w", v.ID, err)
	}

	s.valMu.Lock()
	defer s.valMu.Unlock()

	key := validatorKey(v.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		var seq uint64

		item, err := txn.Get(key)
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error {
				if len(val) < 8 {
					return fmt.Errorf("validator record too short (%d bytes)", len(val))
				}
				seq = binary.BigEndian.Uint64(val)
				return nil
			}); err != nil {
				return err
			}

		case errors.Is(err, badger.ErrKeyNotFound):
			seq, err = nextSeq(txn)
			if err != nil {
				return err
			}

		default:
			return err
		}

		val := binary.BigEndian.AppendUint64(make([]byte, 0, 8+len(rec)), seq)
		return txn.Set(key, append(val, rec...))
	})
	if err != nil {
		return fmt.Errorf("failed to save validator %q: %w", v.ID, err)
	}
	return nil
}

func nextSeq(txn *badger.Txn) (uint64, error) {
	var seq uint64
	item, err := txn.Get(validatorSeqKey)
	switch {
	case err == nil:
		if err := item.Value(func(val []byte) error {
			seq = binary.BigEndian.Uint64(val)
			return nil
		}); err != nil {
			return 0, err
		}
	case !errors.Is(err, badger.ErrKeyNotFound):
		return 0, err
	}

	if err := txn.Set(validatorSeqKey, binary.BigEndian.AppendUint64(nil, seq+1)); err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *Store) LoadValidators(context.Context) ([]lconsensus.Validator, error) {
	type seqVal struct {
		seq uint64
		v   lconsensus.Validator
	}
	var svs []seqVal

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = validatorPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				if len(val) < 8 {
					return fmt.Errorf("validator record too short (%d bytes)", len(val))
				}
				sv := seqVal{seq: binary.BigEndian.Uint64(val)}
				if err := s.codec.UnmarshalValidator(val[8:], &sv.v); err != nil {
					return err
				}
				svs = append(svs, sv)
				return nil
			}); err != nil {
				return fmt.Errorf("failed to read validator at key %q: %w", it.Item().Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load validators: %w", err)
	}

	slices.SortFunc(svs, func(a, b seqVal) int {
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([]lconsensus.Validator, len(svs))
	for i, sv := range svs {
		out[i] = sv.v
	}
	return out, nil
}

// slogAdapter satisfies badger.Logger.
type slogAdapter struct {
	log *slog.Logger
}

func (a slogAdapter) Errorf(format string, args ...any) {
	a.log.Error(fmt.Sprintf(format, args...), "sys", "badger")
}

func (a slogAdapter) Warningf(format string, args ...any) {
	a.log.Warn(fmt.Sprintf(format, args...), "sys", "badger")
}

func (a slogAdapter) Infof(format string, args ...any) {
	a.log.Info(fmt.Sprintf(format, args...), "sys", "badger")
}

func (a slogAdapter) Debugf(format string, args ...any) {
	a.log.Debug(fmt.Sprintf(format, args...), "sys", "badger")
}
