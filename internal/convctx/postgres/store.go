// Package postgres provides optional durable persistence of conversation
// history entries, for deployments that want a session's history to
// survive a process restart. The Conversation Context Store's in-process
// map remains the source of truth for live state (active actions,
// handler contexts); this package only archives history entries as they
// are appended.
//
// Adapted from the teacher's pkg/memory/postgres session log (L1):
// same pgxpool-backed, idempotent-migration shape, narrowed to the one
// table this domain needs.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/voiced/pkg/types"
)

const ddlHistory = `
CREATE TABLE IF NOT EXISTS conversation_history (
    id         BIGSERIAL    PRIMARY KEY,
    session_id TEXT         NOT NULL,
    role       TEXT         NOT NULL DEFAULT '',
    text       TEXT         NOT NULL,
    intent     TEXT         NOT NULL DEFAULT '',
    timestamp  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_conversation_history_session_id
    ON conversation_history (session_id);

CREATE INDEX IF NOT EXISTS idx_conversation_history_session_timestamp
    ON conversation_history (session_id, timestamp);
`

// Store persists HistoryEntry values to PostgreSQL.
//
// All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn, runs the idempotent migration, and returns a
// ready-to-use Store.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("convctx postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("convctx postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlHistory); err != nil {
		pool.Close()
		return nil, fmt.Errorf("convctx postgres: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Append archives one history entry for sessionID.
func (s *Store) Append(ctx context.Context, sessionID string, entry types.HistoryEntry) error {
	const q = `
		INSERT INTO conversation_history (session_id, role, text, intent, timestamp)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, q, sessionID, entry.Role, entry.Text, entry.Intent, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("convctx postgres: append: %w", err)
	}
	return nil
}

// Recent returns entries for sessionID recorded within the last window,
// oldest first. The convctx Store does not call it: a Context created after
// a restart starts with empty in-memory history.
func (s *Store) Recent(ctx context.Context, sessionID string, window time.Duration) ([]types.HistoryEntry, error) {
	const q = `
		SELECT role, text, intent, timestamp
		FROM   conversation_history
		WHERE  session_id = $1
		  AND  timestamp >= now() - ($2::bigint * interval '1 microsecond')
		ORDER  BY timestamp`

	rows, err := s.pool.Query(ctx, q, sessionID, window.Microseconds())
	if err != nil {
		return nil, fmt.Errorf("convctx postgres: recent: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.HistoryEntry, error) {
		var e types.HistoryEntry
		if err := row.Scan(&e.Role, &e.Text, &e.Intent, &e.Timestamp); err != nil {
			return types.HistoryEntry{}, err
		}
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("convctx postgres: scan: %w", err)
	}
	if entries == nil {
		entries = []types.HistoryEntry{}
	}
	return entries, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
