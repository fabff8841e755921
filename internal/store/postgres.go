package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atmx/lending-gateway/internal/model"
)

// Schema creates the journal table. Chain integers are NUMERIC so block
// numbers and gas never lose precision.
const Schema = `
CREATE TABLE IF NOT EXISTS operations (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	chain_id     BIGINT NOT NULL,
	asset        TEXT NOT NULL,
	user_address TEXT NOT NULL,
	amount       NUMERIC NOT NULL,
	tx_hash      TEXT NOT NULL,
	status       TEXT NOT NULL,
	block_number NUMERIC NOT NULL,
	gas_used     NUMERIC NOT NULL,
	message      TEXT NOT NULL,
	timestamp    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS operations_user_ts ON operations (lower(user_address), timestamp DESC);
`

// PostgresStore implements Store using PostgreSQL as the source of truth.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies Schema. It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate operations: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertOperation(ctx context.Context, e *model.JournalEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO operations (id, kind, chain_id, asset, user_address, amount, tx_hash, status, block_number, gas_used, message, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7, $8, $9::NUMERIC, $10::NUMERIC, $11, $12)`,
		e.ID, string(e.Kind), e.ChainID, e.Asset, e.User,
		e.Amount, e.TxHash, e.Status,
		orZero(e.BlockNumber), orZero(e.GasUsed),
		e.Message, e.Timestamp,
	)
	return err
}

func (s *PostgresStore) GetOperation(ctx context.Context, id string) (*model.JournalEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, chain_id, asset, user_address, amount::TEXT, tx_hash, status,
		        block_number::TEXT, gas_used::TEXT, message, timestamp
		 FROM operations WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get operation %s: %w", id, err)
	}
	defer rows.Close()

	entries, err := scanJournalEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("get operation %s: %w", id, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("get operation %s: %w", id, ErrNotFound)
	}
	return &entries[0], nil
}

func (s *PostgresStore) ListOperationsByUser(ctx context.Context, user string, limit int) ([]model.JournalEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, chain_id, asset, user_address, amount::TEXT, tx_hash, status,
		        block_number::TEXT, gas_used::TEXT, message, timestamp
		 FROM operations WHERE lower(user_address) = lower($1)
		 ORDER BY timestamp DESC LIMIT $2`, user, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJournalEntries(rows)
}

// IsNotFound reports whether err means the row does not exist, covering
// both ErrNotFound and pgx.ErrNoRows.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}

// scanJournalEntries reads pgx rows into JournalEntry slices.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanJournalEntries(rows pgxRows) ([]model.JournalEntry, error) {
	entries := []model.JournalEntry{}
	for rows.Next() {
		var e model.JournalEntry
		var kind string
		if err := rows.Scan(&e.ID, &kind, &e.ChainID, &e.Asset, &e.User,
			&e.Amount, &e.TxHash, &e.Status,
			&e.BlockNumber, &e.GasUsed, &e.Message, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Kind = model.Kind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
