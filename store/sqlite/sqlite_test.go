package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboclear/ledger"
	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/store/sqlite"
	"github.com/roboclear/ledger/store/storetest"
	"github.com/roboclear/ledger/types"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return openStore(t)
	})
}

func TestOpenValidation(t *testing.T) {
	_, err := sqlite.Open("")
	require.Error(t, err)
	_, err = sqlite.Open("   ")
	require.Error(t, err)
}

// A failed callback rolls the whole boundary back, including writes that
// succeeded before the failure.
func TestAtomicRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateAccount(ctx, &types.Account{
		ID:        "acct",
		Balance:   100,
		Roles:     types.RoleSet{types.RoleConsumer},
		Status:    types.AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	err := s.Atomic(ctx, []string{"acct"}, func(tx store.Tx) error {
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

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s, err := sqlite.Open(path)
	require.NoError(t, err)
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateAccount(ctx, &types.Account{
		ID:        "durable",
		Balance:   250,
		Roles:     types.RoleSet{types.RoleProvider},
		Status:    types.AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}))
	require.NoError(t, s.Close())

	s, err = sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	got, err := s.GetAccount(ctx, "durable")
	require.NoError(t, err)
	assert.Equal(t, int64(250), got.Balance)
	assert.Equal(t, types.RoleSet{types.RoleProvider}, got.Roles)
}
