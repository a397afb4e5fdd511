// Package lsqlite contains a SQLite-backed store
// satisfying both [lstore.ChainStore] and [lstore.ValidatorStore].
//
// It uses the pure Go modernc.org/sqlite driver, so no cgo is required.
package lsqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gordian-engine/lattica/lcodec"
	"github.com/gordian-engine/lattica/lcodec/ljson"
	"github.com/gordian-engine/lattica/lconsensus"
	"github.com/gordian-engine/lattica/lstore"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS meta(
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS blocks(
  id INTEGER PRIMARY KEY,
  hash TEXT NOT NULL UNIQUE,
  previous_hash TEXT NOT NULL,
  proposer_id TEXT NOT NULL,
  record BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS validators(
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  score REAL NOT NULL,
  stake INTEGER NOT NULL,
  active INTEGER NOT NULL
);
`

// Store is a SQLite database holding confirmed blocks and validators.
type Store struct {
	log *slog.Logger
	db  *sql.DB

	codec lcodec.MarshalCodec
}

var (
	_ lstore.ChainStore     = (*Store)(nil)
	_ lstore.ValidatorStore = (*Store)(nil)
)

// Option configures a [Store].
type Option func(*Store)

// WithCodec sets the codec used for block records.
// The default is JSON.
// A database must always be opened with the codec it was created with.
func WithCodec(c lcodec.MarshalCodec) Option {
	return func(s *Store) {
		s.codec = c
	}
}

// Open opens or creates the database at path.
// Use ":memory:" for a database that lives only as long as the Store.
func Open(ctx context.Context, log *slog.Logger, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %q: %w", path, err)
	}

	// SQLite allows a single writer,
	// and an in-memory database is private to its connection.
	db.SetMaxOpenConns(1)

	s := &Store{
		log:   log,
		db:    db,
		codec: ljson.MarshalCodec{},
	}
	for _, o := range opts {
		o(s)
	}

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'codec'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(
			ctx, `INSERT INTO meta(key, value) VALUES('codec', ?)`, s.codec.Name(),
		); err != nil {
			return fmt.Errorf("failed to record codec: %w", err)
		}
		s.log.Debug("Initialized database", "codec", s.codec.Name())
	case err != nil:
		return fmt.Errorf("failed to read codec: %w", err)
	case stored != s.codec.Name():
		return fmt.Errorf(
			"database was written with codec %q but opened with %q",
			stored, s.codec.Name(),
		)
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveBlock(ctx context.Context, b lconsensus.Block) error {
	rec, err := s.codec.MarshalBlock(b)
	if err != nil {
		return fmt.Errorf("failed to marshal block %d: %w", b.ID, err)
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO blocks(id, hash, previous_hash, proposer_id, record)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING`,
		int64(b.ID), b.Hash, b.PreviousHash, b.ProposerID, rec,
	)
	if err != nil {
		return fmt.Errorf("failed to insert block %d: %w", b.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check insert of block %d: %w", b.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("block %d: %w", b.ID, lstore.ErrAlreadyStored)
	}
	return nil
}

func (s *Store) LoadChain(ctx context.Context) ([]lconsensus.Block, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM blocks ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer rows.Close()

	var out []lconsensus.Block
	for rows.Next() {
		var rec []byte
		if err := rows.Scan(&rec); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}

		var b lconsensus.Block
		if err := s.codec.UnmarshalBlock(rec, &b); err != nil {
			return nil, fmt.Errorf("failed to unmarshal block: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blocks: %w", err)
	}

	return out, nil
}

func (s *Store) SaveValidator(ctx context.Context, v lconsensus.Validator) error {
	// The upsert keeps seq, so load order stays first-save order.
	// Stake is stored as the int64 with the same bits.
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO validators(id, score, stake, active) VALUES(?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET score = excluded.score, stake = excluded.stake, active = excluded.active`,
		v.ID, v.Score, int64(v.Stake), v.Active,
	); err != nil {
		return fmt.Errorf("failed to save validator %q: %w", v.ID, err)
	}
	return nil
}

func (s *Store) LoadValidators(ctx context.Context) ([]lconsensus.Validator, error) {
	rows, err := s.db.QueryContext(
		ctx, `SELECT id, score, stake, active FROM validators ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query validators: %w", err)
	}
	defer rows.Close()

	var out []lconsensus.Validator
	for rows.Next() {
		var (
			v     lconsensus.Validator
			stake int64
		)
		if err := rows.Scan(&v.ID, &v.Score, &stake, &v.Active); err != nil {
			return nil, fmt.Errorf("failed to scan validator: %w", err)
		}
		v.Stake = uint64(stake)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate validators: %w", err)
	}

	return out, nil
}
