// Package sqlite implements the ledger store on SQLite via modernc.org/sqlite,
// a pure-Go driver. It suits embedded deployments and tests; the connection
// pool is capped at one connection, so every operation and every Atomic
// boundary serializes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/roboclear/ledger/store"
)

// Store is a SQLite-backed ledger store.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database file at path and applies the
// schema. Pass a filesystem path, not ":memory:"; the ledger relies on a
// durable single file.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("Open: path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("Ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Atomic runs fn inside one database transaction. The single-connection pool
// means boundaries never overlap at all, account sets aside; an error from fn
// rolls everything back.
func (s *Store) Atomic(ctx context.Context, accountIDs []string, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Atomic: begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Atomic: commit: %w", err)
	}
	return nil
}
