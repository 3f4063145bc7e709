// Package postgres implements the gateway storage on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sirosfoundation/go-as4-gateway/internal/messagelog"
	"github.com/sirosfoundation/go-as4-gateway/pkg/pmode"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS pmode_document (
    id          BIGSERIAL PRIMARY KEY,
    raw         BYTEA NOT NULL,
    parties     INTEGER NOT NULL,
    processes   INTEGER NOT NULL,
    uploaded_at TIMESTAMPTZ NOT NULL,
    current     BOOLEAN NOT NULL DEFAULT FALSE
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS pmode_document_current ON pmode_document (current) WHERE current`,
	`CREATE TABLE IF NOT EXISTS user_message_log (
    message_id TEXT PRIMARY KEY,
    msh_role   TEXT NOT NULL,
    status     TEXT NOT NULL,
    mpc        TEXT NOT NULL DEFAULT '',
    received   TIMESTAMPTZ NOT NULL,
    downloaded TIMESTAMPTZ,
    deleted    TIMESTAMPTZ,
    failed     TIMESTAMPTZ,
    backend    TEXT NOT NULL DEFAULT '',
    endpoint   TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS user_message_log_status ON user_message_log (status)`,
	`CREATE INDEX IF NOT EXISTS user_message_log_received ON user_message_log (received DESC)`,
	`CREATE TABLE IF NOT EXISTS signal_message_log (
    message_id        TEXT PRIMARY KEY,
    msh_role          TEXT NOT NULL,
    status            TEXT NOT NULL,
    mpc               TEXT NOT NULL DEFAULT '',
    received          TIMESTAMPTZ NOT NULL,
    downloaded        TIMESTAMPTZ,
    deleted           TIMESTAMPTZ,
    failed            TIMESTAMPTZ,
    ref_to_message_id TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS signal_message_log_ref ON signal_message_log (ref_to_message_id)`,
}

// querier is satisfied by both the pool and a transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type txKey struct{}

// Store keeps PMode documents and message logs in PostgreSQL
type Store struct {
	pool *pgxpool.Pool

	pmodes     *PModeRepository
	userLogs   *LogRepository[*messagelog.UserMessageLog]
	signalLogs *LogRepository[*messagelog.SignalMessageLog]
}

// NewStore connects to connString and applies the schema.
func NewStore(ctx context.Context, connString string) (*Store, error) {
	if connString == "" {
		return nil, fmt.Errorf("postgres: empty connection string")
	}

	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	for _, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres: migrate: %w", err)
		}
	}

	s := &Store{pool: pool}
	s.pmodes = &PModeRepository{store: s}
	s.userLogs = &LogRepository[*messagelog.UserMessageLog]{store: s, table: userMessageTable}
	s.signalLogs = &LogRepository[*messagelog.SignalMessageLog]{store: s, table: signalMessageTable}
	return s, nil
}

// querier returns the transaction bound to ctx by InTx, or the pool.
func (s *Store) querier(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// InTx runs fn in a transaction bound to the context passed to fn. Nested
// calls reuse the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// PModes returns the PMode document repository
func (s *Store) PModes() pmode.Repository {
	return s.pmodes
}

// UserMessageLogs returns the user message log repository
func (s *Store) UserMessageLogs() messagelog.Repository[*messagelog.UserMessageLog] {
	return s.userLogs
}

// SignalMessageLogs returns the signal message log repository
func (s *Store) SignalMessageLogs() messagelog.Repository[*messagelog.SignalMessageLog] {
	return s.signalLogs
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool
func (s *Store) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}

// PModeRepository keeps every uploaded document and flags the current one
type PModeRepository struct {
	store *Store
}

// Exists implements pmode.Repository.
func (r *PModeRepository) Exists(ctx context.Context) (bool, error) {
	var exists bool
	err := r.store.querier(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pmode_document WHERE current)`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: pmode exists: %w", err)
	}
	return exists, nil
}

// Load implements pmode.Repository.
func (r *PModeRepository) Load(ctx context.Context) ([]byte, error) {
	var raw []byte
	err := r.store.querier(ctx).QueryRow(ctx,
		`SELECT raw FROM pmode_document WHERE current`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pmode.ErrConfigurationMissing
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load pmode: %w", err)
	}
	return raw, nil
}

// Save implements pmode.Repository.
func (r *PModeRepository) Save(ctx context.Context, raw []byte, cfg *pmode.Configuration) error {
	return pgx.BeginFunc(ctx, r.store.querier(ctx), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE pmode_document SET current = FALSE WHERE current`); err != nil {
			return fmt.Errorf("postgres: retire pmode: %w", err)
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO pmode_document (raw, parties, processes, uploaded_at, current) VALUES ($1, $2, $3, $4, TRUE)`,
			raw, len(cfg.Parties), len(cfg.Processes), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("postgres: insert pmode: %w", err)
		}
		return nil
	})
}
