package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboclear/ledger"
	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

func testEscrowLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedAccount(t, s, "client", 1000, at(0))
	seedAccount(t, s, "worker", 0, at(1))

	exp := at(3600)
	esc := &types.Escrow{
		ID:        uuid.New(),
		From:      "client",
		To:        "worker",
		Amount:    400,
		Status:    types.EscrowStatusPending,
		Condition: "render job 42 delivered",
		ExpiresAt: &exp,
		CreatedAt: at(10),
	}

	// The freeze and the escrow row land in one boundary.
	require.NoError(t, s.Atomic(ctx, []string{"client"}, func(tx store.Tx) error {
		if err := tx.FreezeBalance(ctx, "client", esc.Amount); err != nil {
			return err
		}
		return tx.CreateEscrow(ctx, esc)
	}))

	got, err := s.GetEscrow(ctx, esc.ID)
	require.NoError(t, err)
	equalEscrow(t, esc, got)
	avail, frozen := balances(t, s, "client")
	assert.Equal(t, int64(600), avail)
	assert.Equal(t, int64(400), frozen)

	// Release: the compare-and-swap and the fund moves share a boundary.
	relAt := at(20)
	relTx := uuid.New()
	require.NoError(t, s.Atomic(ctx, []string{"client", "worker"}, func(tx store.Tx) error {
		if err := tx.UpdateEscrowStatus(ctx, esc.ID, types.EscrowStatusReleased, relAt, &relTx); err != nil {
			return err
		}
		if err := tx.UnfreezeBalance(ctx, "client", esc.Amount); err != nil {
			return err
		}
		if _, err := tx.UpdateBalance(ctx, "client", -esc.Amount); err != nil {
			return err
		}
		_, err := tx.UpdateBalance(ctx, "worker", esc.Amount)
		return err
	}))

	got, err = s.GetEscrow(ctx, esc.ID)
	require.NoError(t, err)
	assert.Equal(t, types.EscrowStatusReleased, got.Status)
	sameTimePtr(t, &relAt, got.ReleasedAt)
	require.NotNil(t, got.TransactionID)
	assert.Equal(t, relTx, *got.TransactionID)

	avail, frozen = balances(t, s, "client")
	assert.Equal(t, int64(600), avail)
	assert.Equal(t, int64(0), frozen)
	avail, _ = balances(t, s, "worker")
	assert.Equal(t, int64(400), avail)

	// A released escrow never transitions again.
	err = s.Atomic(ctx, []string{"client"}, func(tx store.Tx) error {
		return tx.UpdateEscrowStatus(ctx, esc.ID, types.EscrowStatusRefunded, at(30), nil)
	})
	require.ErrorIs(t, err, ledger.ErrEscrowNotPending)
	got, err = s.GetEscrow(ctx, esc.ID)
	require.NoError(t, err)
	assert.Equal(t, types.EscrowStatusReleased, got.Status)
	assert.Equal(t, relTx, *got.TransactionID)

	// Refund path: funds thaw in place and no transaction id is linked.
	esc2 := &types.Escrow{
		ID:        uuid.New(),
		From:      "client",
		To:        "worker",
		Amount:    100,
		Status:    types.EscrowStatusPending,
		CreatedAt: at(40),
	}
	require.NoError(t, s.Atomic(ctx, []string{"client"}, func(tx store.Tx) error {
		if err := tx.FreezeBalance(ctx, "client", esc2.Amount); err != nil {
			return err
		}
		return tx.CreateEscrow(ctx, esc2)
	}))
	require.NoError(t, s.Atomic(ctx, []string{"client"}, func(tx store.Tx) error {
		if err := tx.UpdateEscrowStatus(ctx, esc2.ID, types.EscrowStatusRefunded, at(50), nil); err != nil {
			return err
		}
		return tx.UnfreezeBalance(ctx, "client", esc2.Amount)
	}))

	got, err = s.GetEscrow(ctx, esc2.ID)
	require.NoError(t, err)
	assert.Equal(t, types.EscrowStatusRefunded, got.Status)
	require.NotNil(t, got.ReleasedAt)
	assert.Nil(t, got.TransactionID)
	avail, frozen = balances(t, s, "client")
	assert.Equal(t, int64(600), avail)
	assert.Equal(t, int64(0), frozen)

	_, err = s.GetEscrow(ctx, uuid.New())
	require.ErrorIs(t, err, ledger.ErrEscrowNotFound)
	err = s.Atomic(ctx, []string{"client"}, func(tx store.Tx) error {
		return tx.UpdateEscrowStatus(ctx, uuid.New(), types.EscrowStatusRefunded, at(60), nil)
	})
	require.ErrorIs(t, err, ledger.ErrEscrowNotFound)
}

// testEscrowSingleTransition races a release against a refund. Exactly one
// side may win the swap; the loser backs off without touching funds.
func testEscrowSingleTransition(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedAccount(t, s, "payer", 500, at(0))

	esc := &types.Escrow{
		ID:        uuid.New(),
		From:      "payer",
		To:        "payer-2",
		Amount:    200,
		Status:    types.EscrowStatusPending,
		CreatedAt: at(1),
	}
	require.NoError(t, s.Atomic(ctx, []string{"payer"}, func(tx store.Tx) error {
		if err := tx.FreezeBalance(ctx, "payer", esc.Amount); err != nil {
			return err
		}
		return tx.CreateEscrow(ctx, esc)
	}))

	relTx := uuid.New()
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, attempt := range []types.EscrowStatus{types.EscrowStatusReleased, types.EscrowStatusRefunded} {
		wg.Add(1)
		go func(to types.EscrowStatus) {
			defer wg.Done()
			results <- s.Atomic(ctx, []string{"payer"}, func(tx store.Tx) error {
				var txID *uuid.UUID
				if to == types.EscrowStatusReleased {
					txID = &relTx
				}
				if err := tx.UpdateEscrowStatus(ctx, esc.ID, to, at(5), txID); err != nil {
					return err
				}
				return tx.UnfreezeBalance(ctx, "payer", esc.Amount)
			})
		}(attempt)
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, ledger.ErrEscrowNotPending)
			losses++
		}
	}
	assert.Equal(t, 1, wins, "exactly one transition should win")
	assert.Equal(t, 1, losses, "exactly one transition should lose")

	got, err := s.GetEscrow(ctx, esc.ID)
	require.NoError(t, err)
	assert.NotEqual(t, types.EscrowStatusPending, got.Status)
	require.NotNil(t, got.ReleasedAt)
	avail, frozen := balances(t, s, "payer")
	assert.Equal(t, int64(500), avail)
	assert.Equal(t, int64(0), frozen)
}

func testEscrowFilters(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i, id := range []string{"alpha", "beta", "gamma"} {
		seedAccount(t, s, id, 1000, at(i))
	}

	exp1, exp3 := at(100), at(200)
	relAt := at(25)
	relTx := uuid.New()
	e1 := &types.Escrow{ID: uuid.New(), From: "alpha", To: "beta", Amount: 10, Status: types.EscrowStatusPending, ExpiresAt: &exp1, CreatedAt: at(10)}
	e2 := &types.Escrow{ID: uuid.New(), From: "alpha", To: "gamma", Amount: 20, Status: types.EscrowStatusReleased, ReleasedAt: &relAt, TransactionID: &relTx, CreatedAt: at(20)}
	e3 := &types.Escrow{ID: uuid.New(), From: "beta", To: "gamma", Amount: 30, Status: types.EscrowStatusPending, ExpiresAt: &exp3, CreatedAt: at(30)}
	e4 := &types.Escrow{ID: uuid.New(), From: "gamma", To: "alpha", Amount: 40, Status: types.EscrowStatusPending, CreatedAt: at(40)}
	for _, e := range []*types.Escrow{e1, e2, e3, e4} {
		putEscrow(t, s, e)
	}

	tests := []struct {
		name   string
		filter store.EscrowFilter
		want   []uuid.UUID
	}{
		{
			name: "all newest first",
			want: []uuid.UUID{e4.ID, e3.ID, e2.ID, e1.ID},
		},
		{
			name:   "by status",
			filter: store.EscrowFilter{Status: types.EscrowStatusPending},
			want:   []uuid.UUID{e4.ID, e3.ID, e1.ID},
		},
		{
			name:   "account matches either party",
			filter: store.EscrowFilter{AccountID: "alpha"},
			want:   []uuid.UUID{e4.ID, e2.ID, e1.ID},
		},
		{
			name:   "account and status combined",
			filter: store.EscrowFilter{AccountID: "gamma", Status: types.EscrowStatusPending},
			want:   []uuid.UUID{e4.ID, e3.ID},
		},
		{
			name:   "expired before cutoff",
			filter: store.EscrowFilter{ExpiredBefore: at(150)},
			want:   []uuid.UUID{e1.ID},
		},
		{
			name:   "expiry cutoff is strict",
			filter: store.EscrowFilter{ExpiredBefore: at(100)},
		},
		{
			name:   "pending past a late cutoff",
			filter: store.EscrowFilter{Status: types.EscrowStatusPending, ExpiredBefore: at(250)},
			want:   []uuid.UUID{e3.ID, e1.ID},
		},
		{
			name:   "limit",
			filter: store.EscrowFilter{Limit: 2},
			want:   []uuid.UUID{e4.ID, e3.ID},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.ListEscrows(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, escrowIDs(got))
		})
	}
}
