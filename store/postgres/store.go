// Package postgres implements the ledger store on PostgreSQL.
//
// Atomic boundaries are real database transactions: participant rows are
// locked with SELECT ... FOR UPDATE in sorted id order and every write is
// rolled back when the callback fails. Idempotency-key uniqueness rides on
// a partial unique index.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/lib/pq"

	"github.com/roboclear/ledger/store"
)

// PoolConfig bounds the connection pool. Zero values fall back to defaults
// suited to a small service.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 10
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = time.Minute
	}
	return c
}

// Store is a PostgreSQL-backed ledger store.
type Store struct {
	db     *sql.DB
	ownsDB bool
}

var _ store.Store = (*Store)(nil)

// New opens a connection pool against databaseURL, applies the schema, and
// returns the store. Close tears the pool down.
func New(ctx context.Context, databaseURL string, pool PoolConfig) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("New: open: %w", err)
	}

	pool = pool.withDefaults()
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("New: ping: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("New: %w", err)
	}

	return &Store{db: db, ownsDB: true}, nil
}

// NewWithDB wraps an existing pool the caller manages. The schema is applied;
// Close leaves the pool open.
func NewWithDB(ctx context.Context, db *sql.DB) (*Store, error) {
	if err := migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("NewWithDB: %w", err)
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
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// Atomic locks the participant account rows in sorted id order and runs fn
// inside one database transaction. An error from fn rolls everything back.
func (s *Store) Atomic(ctx context.Context, accountIDs []string, fn func(tx store.Tx) error) error {
	ids := slices.Clone(accountIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Atomic: begin: %w", err)
	}
	defer tx.Rollback()

	if len(ids) > 0 {
		if err := lockAccounts(ctx, tx, ids); err != nil {
			return fmt.Errorf("Atomic: %w", err)
		}
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Atomic: commit: %w", err)
	}
	return nil
}

// lockAccounts takes row locks on the given ids. Missing ids are not an
// error here; reads inside the boundary report them.
func lockAccounts(ctx context.Context, tx *sql.Tx, ids []string) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM ledger_accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("lock accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("lock accounts: scan: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock accounts: rows: %w", err)
	}
	return nil
}
