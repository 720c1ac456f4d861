package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboclear/ledger"
	"github.com/roboclear/ledger/internal/testutil"
	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/store/postgres"
	"github.com/roboclear/ledger/store/storetest"
	"github.com/roboclear/ledger/types"
)

// The conformance subtests share one container; each one starts from
// truncated tables instead of a fresh cluster.
func TestConformance(t *testing.T) {
	db := testutil.SetupPostgres(t)

	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := postgres.NewWithDB(context.Background(), db)
		require.NoError(t, err)
		truncateTables(t, db)
		return s
	})
}

func truncateTables(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`TRUNCATE ledger_accounts, ledger_transactions, ledger_operations,
		ledger_escrows, ledger_batches, ledger_audit_log RESTART IDENTITY`)
	require.NoError(t, err)
}

// New owns the pool it opens: it must come up pinging and close down fully.
func TestNewOwnsPool(t *testing.T) {
	ctx := context.Background()
	connStr := testutil.StartPostgres(t)

	s, err := postgres.New(ctx, connStr, postgres.PoolConfig{})
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))

	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateAccount(ctx, &types.Account{
		ID:        "smoke",
		Balance:   10,
		Roles:     types.RoleSet{types.RoleConsumer},
		Status:    types.AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}))
	got, err := s.GetAccount(ctx, "smoke")
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Balance)

	require.NoError(t, s.Close())
	require.Error(t, s.Ping(ctx), "the pool is gone after Close")
}

// A failed callback rolls the whole boundary back, including writes that
// succeeded before the failure.
func TestAtomicRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupPostgres(t)
	s, err := postgres.NewWithDB(ctx, db)
	require.NoError(t, err)

	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateAccount(ctx, &types.Account{
		ID:        "acct",
		Balance:   100,
		Roles:     types.RoleSet{types.RoleConsumer},
		Status:    types.AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	err = s.Atomic(ctx, []string{"acct"}, func(tx store.Tx) error {
		if _, err := tx.UpdateBalance(ctx, "acct", -60); err != nil {
			return err
		}
		_, err := tx.UpdateBalance(ctx, "acct", -60)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	got, err := s.GetAccount(ctx, "acct")
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Balance, "the first debit rolled back with the boundary")
}
