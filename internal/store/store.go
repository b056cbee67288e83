package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS pairwise_sessions (
	id TEXT PRIMARY KEY,
	local_device TEXT NOT NULL,
	remote_device TEXT NOT NULL,
	state TEXT NOT NULL,
	record BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
-- At most one active session per remote device.
CREATE UNIQUE INDEX IF NOT EXISTS idx_pairwise_active
	ON pairwise_sessions(remote_device) WHERE state = 'active';

CREATE TABLE IF NOT EXISTS group_sessions (
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	sender_device TEXT NOT NULL,
	record BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (session_id, role)
);
CREATE TABLE IF NOT EXISTS outbound_pointers (
	conversation_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS session_shares (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	sender_device TEXT NOT NULL,
	recipient_device TEXT NOT NULL,
	ciphertext BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	claimed INTEGER NOT NULL DEFAULT 0,
	claimed_at INTEGER,
	UNIQUE (session_id, recipient_device)
);
CREATE INDEX IF NOT EXISTS idx_shares_pending
	ON session_shares(recipient_device, claimed);

CREATE TABLE IF NOT EXISTS signed_prekeys (
	id TEXT PRIMARY KEY,
	priv BLOB NOT NULL,
	pub BLOB NOT NULL,
	sig BLOB NOT NULL,
	is_current INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS one_time_prekeys (
	id TEXT PRIMARY KEY,
	priv BLOB NOT NULL,
	pub BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
`

// Store is the SQLite-backed durable store shared by the session managers
// and the fan-out service.
type Store struct {
	db *sql.DB

	// retryAttempts bounds how often a busy claim is retried before
	// surfacing domain.ErrStoreBusy.
	retryAttempts int
}

// Option tunes a Store.
type Option func(*Store)

// WithClaimRetries overrides the bounded retry count for contended claims.
func WithClaimRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.retryAttempts = n
		}
	}
}

// New opens (creating if necessary) the database at path and applies the
// schema.
func New(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{db: db, retryAttempts: 3}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func nowUnix() int64 { return time.Now().Unix() }

// isBusy reports whether err is SQLite lock contention rather than a real
// failure.
func isBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}
