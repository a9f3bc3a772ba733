// Package storage persists salt epochs, audit records, and the retention
// checkpoint in SQLite. The audit table carries no UPDATE path at all;
// rows leave it only through the retention manager's purge, and tampering
// below this layer is what the chain checksums exist to detect.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
)

var memCounter atomic.Int64

// Store wraps the SQLite database holding all subsystem state.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("cannot create database directory %q: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenInMemory opens an isolated in-memory database, for tests. Each call
// gets its own database; the shared cache only ties together the pooled
// connections of this Store.
func OpenInMemory(ctx context.Context) (*Store, error) {
	name := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared&_busy_timeout=5000", memCounter.Add(1))
	db, err := sql.Open("sqlite3", name)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// An in-memory database disappears when its last connection closes;
	// pin one.
	db.SetMaxIdleConns(1)
	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS salt_epochs (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			secret        BLOB NOT NULL,
			memory        INTEGER NOT NULL,
			iterations    INTEGER NOT NULL,
			parallelism   INTEGER NOT NULL,
			key_length    INTEGER NOT NULL,
			created_at    TIMESTAMP NOT NULL,
			activated_at  TIMESTAMP NOT NULL,
			retired_at    TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS audit_records (
			sequence_no        INTEGER PRIMARY KEY,
			id                 TEXT NOT NULL UNIQUE,
			prev_checksum      TEXT NOT NULL,
			checksum           TEXT NOT NULL,
			token_value        TEXT NOT NULL,
			epoch_id           INTEGER NOT NULL,
			resource           TEXT NOT NULL,
			method             TEXT NOT NULL,
			actor_id           TEXT NOT NULL,
			actor_role         TEXT NOT NULL,
			timestamp          TIMESTAMP NOT NULL,
			source_addr        TEXT NOT NULL DEFAULT '',
			user_agent         TEXT NOT NULL DEFAULT '',
			is_audit_of_audit  INTEGER NOT NULL DEFAULT 0,
			corrects_record_id TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_audit_token ON audit_records(token_value);
		CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_records(timestamp);
		CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_records(actor_id);

		CREATE TABLE IF NOT EXISTS retention_checkpoint (
			name         TEXT PRIMARY KEY,
			sequence_no  INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
