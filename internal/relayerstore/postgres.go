// Package relayerstore implements the relayer's PostgreSQL persistence
// collaborator: the commitment tree's node/meta storage, the spent-nullifier
// set, the deposit-event idempotency log, and the envelope append-log (spec
// §4.5, §4.6, §4.8). Grounded on the teacher's internal/storage/postgres.go
// (PostgresStore, Config/DefaultConfig, pgxpool usage, ON CONFLICT idioms).
package relayerstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ccoin/shieldpool/pkg/types"
)

// Errors mirror the teacher's storage error taxonomy.
var (
	ErrNotFound     = errors.New("relayerstore: not found")
	ErrDBConnection = errors.New("relayerstore: database connection error")
)

// Config holds database configuration. Grounded on the teacher's
// storage.Config/DefaultConfig.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// DefaultConfig returns default database configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "shieldpool",
		Password: "",
		Database: "shieldpool",
		SSLMode:  "disable",
		MaxConns: 20,
	}
}

// Store is the relayer's PostgreSQL-backed persistence layer. It implements
// tree.Store and nullifier.Store directly, so internal/tree and
// internal/nullifier don't need to know their collaborator is Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and verifies the connection with a ping.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, cfg.MaxConns,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Schema is the DDL this store expects, kept alongside the store it serves
// as the teacher does. New does not apply it, and cmd/relayerd does not run
// it; the tables must already exist.
const Schema = `
CREATE TABLE IF NOT EXISTS tree_nodes (
	level INTEGER NOT NULL,
	index BIGINT NOT NULL,
	hash BYTEA NOT NULL,
	PRIMARY KEY (level, index)
);

CREATE TABLE IF NOT EXISTS tree_meta (
	id SMALLINT PRIMARY KEY DEFAULT 1,
	root BYTEA,
	size BIGINT NOT NULL DEFAULT 0,
	root_version BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS nullifiers (
	nullifier BYTEA PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS deposit_events (
	tx_hash BYTEA NOT NULL,
	log_index INTEGER NOT NULL,
	depositor BYTEA NOT NULL,
	asset BYTEA NOT NULL,
	value BYTEA NOT NULL,
	commitment BYTEA NOT NULL,
	block_number BIGINT NOT NULL,
	leaf_index BIGINT NOT NULL,
	PRIMARY KEY (tx_hash, log_index)
);

CREATE TABLE IF NOT EXISTS envelopes (
	id BIGSERIAL PRIMARY KEY,
	wire BYTEA NOT NULL,
	anchor_commitment BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS crash_marker (
	id SMALLINT PRIMARY KEY DEFAULT 1,
	reason TEXT NOT NULL
);
`

// ---- tree.Store ----

func (s *Store) GetNode(ctx context.Context, level, index uint64) (types.Hash, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT hash FROM tree_nodes WHERE level = $1 AND index = $2`,
		level, index,
	).Scan(&raw)
	if err == pgx.ErrNoRows {
		return types.EmptyHash, ErrNotFound
	}
	if err != nil {
		return types.EmptyHash, fmt.Errorf("relayerstore: get node: %w", err)
	}
	return types.HashFromBytes(raw), nil
}

func (s *Store) SetNode(ctx context.Context, level, index uint64, hash types.Hash) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tree_nodes (level, index, hash) VALUES ($1, $2, $3)
		 ON CONFLICT (level, index) DO UPDATE SET hash = EXCLUDED.hash`,
		level, index, hash[:],
	)
	if err != nil {
		return fmt.Errorf("relayerstore: set node: %w", err)
	}
	return nil
}

func (s *Store) GetRoot(ctx context.Context) (types.Hash, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT root FROM tree_meta WHERE id = 1`).Scan(&raw)
	if err == pgx.ErrNoRows || raw == nil {
		return types.EmptyHash, ErrNotFound
	}
	if err != nil {
		return types.EmptyHash, fmt.Errorf("relayerstore: get root: %w", err)
	}
	return types.HashFromBytes(raw), nil
}

func (s *Store) SetRoot(ctx context.Context, root types.Hash) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tree_meta (id, root) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET root = EXCLUDED.root`,
		root[:],
	)
	return err
}

func (s *Store) GetSize(ctx context.Context) (uint64, error) {
	var size int64
	err := s.pool.QueryRow(ctx, `SELECT size FROM tree_meta WHERE id = 1`).Scan(&size)
	if err == pgx.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("relayerstore: get size: %w", err)
	}
	return uint64(size), nil
}

func (s *Store) SetSize(ctx context.Context, size uint64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tree_meta (id, size) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET size = EXCLUDED.size`,
		int64(size),
	)
	return err
}

func (s *Store) GetRootVersion(ctx context.Context) (uint64, error) {
	var version int64
	err := s.pool.QueryRow(ctx, `SELECT root_version FROM tree_meta WHERE id = 1`).Scan(&version)
	if err == pgx.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("relayerstore: get root version: %w", err)
	}
	return uint64(version), nil
}

func (s *Store) SetRootVersion(ctx context.Context, version uint64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tree_meta (id, root_version) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET root_version = EXCLUDED.root_version`,
		int64(version),
	)
	return err
}

// ---- nullifier.Store ----

func (s *Store) Has(ctx context.Context, n types.Hash) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM nullifiers WHERE nullifier = $1)`, n[:],
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("relayerstore: nullifier lookup: %w", err)
	}
	return exists, nil
}

func (s *Store) Insert(ctx context.Context, n types.Hash) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO nullifiers (nullifier) VALUES ($1) ON CONFLICT DO NOTHING`, n[:],
	)
	if err != nil {
		return fmt.Errorf("relayerstore: nullifier insert: %w", err)
	}
	return nil
}

// ---- deposit-event idempotency log ----

// HasDepositEvent reports whether key has already been ingested (spec §4.8
// "idempotent on (txhash, logindex)").
func (s *Store) HasDepositEvent(ctx context.Context, key types.DepositEventKey) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM deposit_events WHERE tx_hash = $1 AND log_index = $2)`,
		key.TxHash[:], key.LogIndex,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("relayerstore: deposit event lookup: %w", err)
	}
	return exists, nil
}

// RecordDepositEvent persists ev alongside the leaf index it was assigned.
// A duplicate (tx_hash, log_index) is silently ignored — ingestion of the
// same event MUST be a no-op (spec §4.8).
func (s *Store) RecordDepositEvent(ctx context.Context, ev *types.DepositEvent, leafIndex uint64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO deposit_events
			(tx_hash, log_index, depositor, asset, value, commitment, block_number, leaf_index)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (tx_hash, log_index) DO NOTHING`,
		ev.TxHash[:], ev.LogIndex, ev.Depositor[:], ev.Asset[:], ev.Value.Bytes(),
		ev.Commitment[:], ev.BlockNumber, leafIndex,
	)
	if err != nil {
		return fmt.Errorf("relayerstore: record deposit event: %w", err)
	}
	return nil
}

// ---- envelope append-log ----

// AppendEnvelope appends the envelope's wire encoding to the log and returns
// its cursor (spec §4.8 get_envelopes "a simple append-log abstraction").
func (s *Store) AppendEnvelope(ctx context.Context, wire []byte, anchorCommitment types.Hash) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO envelopes (wire, anchor_commitment) VALUES ($1, $2) RETURNING id`,
		wire, anchorCommitment[:],
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("relayerstore: append envelope: %w", err)
	}
	return id, nil
}

// ListEnvelopesSince returns up to limit envelopes with cursor > after, plus
// the cursor to resume from next.
func (s *Store) ListEnvelopesSince(ctx context.Context, after int64, limit int) ([][]byte, int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, wire FROM envelopes WHERE id > $1 ORDER BY id ASC LIMIT $2`,
		after, limit,
	)
	if err != nil {
		return nil, after, fmt.Errorf("relayerstore: list envelopes: %w", err)
	}
	defer rows.Close()

	var out [][]byte
	next := after
	for rows.Next() {
		var id int64
		var wire []byte
		if err := rows.Scan(&id, &wire); err != nil {
			return nil, after, fmt.Errorf("relayerstore: scan envelope: %w", err)
		}
		out = append(out, wire)
		next = id
	}
	return out, next, rows.Err()
}

// ---- verifier.CrashMarkerStore ----

// PersistCrashMarker records that the verifier has halted on an integrity
// fault, so a restarted process resumes already latched (verifier
// §7 "halt the process").
func (s *Store) PersistCrashMarker(ctx context.Context, reason string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO crash_marker (id, reason) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET reason = EXCLUDED.reason`,
		reason,
	)
	if err != nil {
		return fmt.Errorf("relayerstore: persist crash marker: %w", err)
	}
	return nil
}

// HasCrashMarker reports whether a prior run left a crash marker behind.
func (s *Store) HasCrashMarker(ctx context.Context) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM crash_marker WHERE id = 1)`,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("relayerstore: crash marker lookup: %w", err)
	}
	return exists, nil
}

// ClearCrashMarker removes a prior crash marker once an operator has
// replayed and resolved the integrity fault that caused it.
func (s *Store) ClearCrashMarker(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM crash_marker WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("relayerstore: clear crash marker: %w", err)
	}
	return nil
}
