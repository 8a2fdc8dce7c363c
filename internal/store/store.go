// Package store implements the chat cluster's Persistent Store (PS): the
// durable state for accounts, messages, and per-conversation preferences.
// Every exported method is internally synchronized and safe under
// concurrent callers, matching spec §4.1's "all operations are internally
// synchronized" contract. The schema and query shapes are grounded on
// _examples/original_source/replication/src/database/db_manager.py, adapted
// from Python/sqlite3 to Go/modernc.org/sqlite+sqlx.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// defaultChatMessageLimit is the per-conversation page size a client falls
// back to before it ever calls UpdateChatMessageLimit (spec §3).
const defaultChatMessageLimit = 50

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	username   TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	created_at REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	sender            TEXT NOT NULL,
	recipient         TEXT NOT NULL,
	content           TEXT NOT NULL,
	timestamp         REAL NOT NULL,
	is_read           INTEGER NOT NULL DEFAULT 0,
	is_delivered      INTEGER NOT NULL DEFAULT 0,
	sender_deleted    INTEGER NOT NULL DEFAULT 0,
	recipient_deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender);
CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient);

CREATE TABLE IF NOT EXISTS chat_preferences (
	username      TEXT NOT NULL,
	partner       TEXT NOT NULL,
	message_limit INTEGER NOT NULL DEFAULT 50,
	PRIMARY KEY (username, partner)
);
`

// Store is the PS: a thread-safe handle shared by the RM and CS, per spec
// §3's "Ownership" note ("the PS exclusively owns durable state ... all
// three live inside one server process and share the PS via a thread-safe
// handle"). Safety comes from database/sql's own connection-pool locking
// plus SQLite's single-writer semantics (WAL-less, one writer at a time),
// following the teacher's internal/db.Open(ctx, dsn) (*Pool, error) shape.
type Store struct {
	db *sqlx.DB
}

// Open creates (if needed) and opens the sqlite-backed PS at path. Schema
// is created on first open, per spec §4.1's "Schema is created on first
// open."
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite allows only one writer; serialize here.

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("store: init schema %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// ErrNotFound is sql.ErrNoRows under a store-level name. No Store method
// returns it: lookups that find no row report that through a false or
// default result instead.
var ErrNotFound = sql.ErrNoRows
