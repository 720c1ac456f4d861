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

func testBalanceGuards(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedAccount(t, s, "meter", 100, at(0))

	// An overdraft fails and leaves no trace.
	err := s.Atomic(ctx, []string{"meter"}, func(tx store.Tx) error {
		_, err := tx.UpdateBalance(ctx, "meter", -150)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	avail, frozen := balances(t, s, "meter")
	assert.Equal(t, int64(100), avail)
	assert.Equal(t, int64(0), frozen)

	// Draining to exactly zero is legal.
	var after int64
	require.NoError(t, s.Atomic(ctx, []string{"meter"}, func(tx store.Tx) error {
		var err error
		after, err = tx.UpdateBalance(ctx, "meter", -100)
		return err
	}))
	assert.Equal(t, int64(0), after)

	require.NoError(t, s.Atomic(ctx, []string{"meter"}, func(tx store.Tx) error {
		var err error
		after, err = tx.UpdateBalance(ctx, "meter", 75)
		return err
	}))
	assert.Equal(t, int64(75), after)
	avail, _ = balances(t, s, "meter")
	assert.Equal(t, int64(75), avail)

	// Unknown accounts surface the lookup sentinel from inside the boundary.
	err = s.Atomic(ctx, []string{"ghost"}, func(tx store.Tx) error {
		_, err := tx.UpdateBalance(ctx, "ghost", 10)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
	err = s.Atomic(ctx, []string{"ghost"}, func(tx store.Tx) error {
		_, err := tx.Account(ctx, "ghost")
		return err
	})
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func testFreezeUnfreeze(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedAccount(t, s, "vault", 100, at(0))

	freeze := func(amount int64) error {
		return s.Atomic(ctx, []string{"vault"}, func(tx store.Tx) error {
			return tx.FreezeBalance(ctx, "vault", amount)
		})
	}
	unfreeze := func(amount int64) error {
		return s.Atomic(ctx, []string{"vault"}, func(tx store.Tx) error {
			return tx.UnfreezeBalance(ctx, "vault", amount)
		})
	}

	require.NoError(t, freeze(40))
	avail, frozen := balances(t, s, "vault")
	assert.Equal(t, int64(60), avail)
	assert.Equal(t, int64(40), frozen)

	// Freezing more than available fails without moving anything.
	require.ErrorIs(t, freeze(70), ledger.ErrInsufficientFunds)
	avail, frozen = balances(t, s, "vault")
	assert.Equal(t, int64(60), avail)
	assert.Equal(t, int64(40), frozen)

	require.NoError(t, unfreeze(15))
	avail, frozen = balances(t, s, "vault")
	assert.Equal(t, int64(75), avail)
	assert.Equal(t, int64(25), frozen)

	// Unfreezing more than is frozen means the books are wrong.
	require.ErrorIs(t, unfreeze(26), ledger.ErrConflict)
	avail, frozen = balances(t, s, "vault")
	assert.Equal(t, int64(75), avail)
	assert.Equal(t, int64(25), frozen)

	require.NoError(t, unfreeze(25))
	avail, frozen = balances(t, s, "vault")
	assert.Equal(t, int64(100), avail)
	assert.Equal(t, int64(0), frozen)

	err := s.Atomic(ctx, []string{"ghost"}, func(tx store.Tx) error {
		return tx.FreezeBalance(ctx, "ghost", 1)
	})
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func testAtomicVisibility(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedAccount(t, s, "worker", 100, at(0))
	seedAccount(t, s, "relay", 50, at(1))

	txn := &types.Transaction{
		ID:          uuid.New(),
		From:        "worker",
		To:          "relay",
		Amount:      30,
		Type:        types.TransactionTypeTransfer,
		Status:      types.TransactionStatusPending,
		InitiatedBy: "worker",
		CreatedAt:   at(2),
	}

	// Reads inside the boundary observe the boundary's own writes.
	var mid int64
	var inside *types.Transaction
	require.NoError(t, s.Atomic(ctx, []string{"worker"}, func(tx store.Tx) error {
		if _, err := tx.UpdateBalance(ctx, "worker", -30); err != nil {
			return err
		}
		a, err := tx.Account(ctx, "worker")
		if err != nil {
			return err
		}
		mid = a.Balance
		if err := tx.CreateTransaction(ctx, txn); err != nil {
			return err
		}
		inside, err = tx.Transaction(ctx, txn.ID)
		return err
	}))
	assert.Equal(t, int64(70), mid)
	require.NotNil(t, inside)
	assert.Equal(t, txn.ID, inside.ID)

	// Both writes survived the commit.
	avail, _ := balances(t, s, "worker")
	assert.Equal(t, int64(70), avail)
	got, err := s.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	equalTransaction(t, txn, got)

	done := at(3)
	txn.Status = types.TransactionStatusCompleted
	txn.CompletedAt = &done
	require.NoError(t, s.Atomic(ctx, []string{"worker"}, func(tx store.Tx) error {
		return tx.UpdateTransaction(ctx, txn)
	}))
	got, err = s.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	equalTransaction(t, txn, got)

	// Account update and delete work through the boundary as well.
	relay, err := s.GetAccount(ctx, "relay")
	require.NoError(t, err)
	relay.Status = types.AccountStatusSuspended
	relay.UpdatedAt = at(4)
	require.NoError(t, s.Atomic(ctx, []string{"relay"}, func(tx store.Tx) error {
		return tx.UpdateAccount(ctx, relay)
	}))
	got2, err := s.GetAccount(ctx, "relay")
	require.NoError(t, err)
	assert.Equal(t, types.AccountStatusSuspended, got2.Status)
	assert.Equal(t, int64(50), got2.Balance)

	require.NoError(t, s.Atomic(ctx, []string{"relay"}, func(tx store.Tx) error {
		return tx.DeleteAccount(ctx, "relay")
	}))
	_, err = s.GetAccount(ctx, "relay")
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

// testConcurrentDebits drives twenty conditional debits at one account.
// Exclusion over the boundary means each goroutine sees a settled balance:
// the first ten drain the account and the rest observe zero and skip, so no
// debit ever trips the floor.
func testConcurrentDebits(t *testing.T, s store.Store) {
	ctx := context.Background()
	const (
		workers = 20
		each    = int64(100)
	)
	seedAccount(t, s, "shared", each*workers/2, at(0))

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.Atomic(ctx, []string{"shared"}, func(tx store.Tx) error {
				a, err := tx.Account(ctx, "shared")
				if err != nil {
					return err
				}
				if a.Balance < each {
					return nil
				}
				_, err = tx.UpdateBalance(ctx, "shared", -each)
				return err
			})
		}()
	}
	wg.Wait()
	close(results)

	for err := range results {
		require.NoError(t, err)
	}
	avail, _ := balances(t, s, "shared")
	assert.Equal(t, int64(0), avail, "ten debits drain the account exactly")
}

// testConcurrentTransfers shuttles funds in both directions at once. Sorted
// acquisition of the two accounts means opposite boundaries cannot deadlock,
// and equal traffic both ways must leave the split unchanged.
func testConcurrentTransfers(t *testing.T, s store.Store) {
	ctx := context.Background()
	const rounds = 25
	seedAccount(t, s, "east", 500, at(0))
	seedAccount(t, s, "west", 500, at(1))

	transfer := func(from, to string) error {
		return s.Atomic(ctx, []string{from, to}, func(tx store.Tx) error {
			if _, err := tx.UpdateBalance(ctx, from, -10); err != nil {
				return err
			}
			_, err := tx.UpdateBalance(ctx, to, 10)
			return err
		})
	}

	var wg sync.WaitGroup
	results := make(chan error, rounds*2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range rounds {
			results <- transfer("east", "west")
		}
	}()
	go func() {
		defer wg.Done()
		for range rounds {
			results <- transfer("west", "east")
		}
	}()
	wg.Wait()
	close(results)

	for err := range results {
		require.NoError(t, err)
	}
	east, _ := balances(t, s, "east")
	west, _ := balances(t, s, "west")
	assert.Equal(t, int64(500), east)
	assert.Equal(t, int64(500), west)
}
