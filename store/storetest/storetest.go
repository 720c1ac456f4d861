// Package storetest exercises the store contract every backend must satisfy
// identically. Backend packages call Run from their own tests with a factory
// that opens a fresh, empty store.
//
// The suite stays inside the portable part of the contract: every Atomic
// callback either commits in full or fails on its first mutation, so
// rollback-based and exclusion-based stores observe the same outcomes.
// Rollback-only behavior belongs in the backend's own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

// Factory opens a fresh, empty store for one subtest. The factory owns
// cleanup, usually via t.Cleanup.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite against stores opened by open.
func Run(t *testing.T, open Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"AccountRoundTrip", testAccountRoundTrip},
		{"AccountFilters", testAccountFilters},
		{"TransactionRoundTrip", testTransactionRoundTrip},
		{"IdempotencyKeys", testIdempotencyKeys},
		{"TransactionFilters", testTransactionFilters},
		{"BalanceGuards", testBalanceGuards},
		{"FreezeUnfreeze", testFreezeUnfreeze},
		{"AtomicVisibility", testAtomicVisibility},
		{"EscrowLifecycle", testEscrowLifecycle},
		{"EscrowSingleTransition", testEscrowSingleTransition},
		{"EscrowFilters", testEscrowFilters},
		{"Operations", testOperations},
		{"BatchRoundTrip", testBatchRoundTrip},
		{"AuditTrail", testAuditTrail},
		{"Statistics", testStatistics},
		{"ConcurrentDebits", testConcurrentDebits},
		{"ConcurrentTransfers", testConcurrentTransfers},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := open(t)
			require.NoError(t, s.Ping(context.Background()))
			tc.fn(t, s)
		})
	}
}

// base anchors every seeded timestamp. Offsets are whole seconds so values
// survive backends with millisecond columns unchanged.
var base = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func at(secs int) time.Time { return base.Add(time.Duration(secs) * time.Second) }

// seedAccount creates a plain active account able to both spend and earn.
func seedAccount(t *testing.T, s store.Store, id string, balance int64, createdAt time.Time) *types.Account {
	t.Helper()
	a := &types.Account{
		ID:        id,
		Name:      id,
		Balance:   balance,
		Roles:     types.RoleSet{types.RoleConsumer, types.RoleProvider},
		Status:    types.AccountStatusActive,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	putAccount(t, s, a)
	return a
}

func putAccount(t *testing.T, s store.Store, a *types.Account) {
	t.Helper()
	if err := s.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("seed account %s: %v", a.ID, err)
	}
}

func putTransaction(t *testing.T, s store.Store, txn *types.Transaction) {
	t.Helper()
	if err := s.CreateTransaction(context.Background(), txn); err != nil {
		t.Fatalf("seed transaction %s: %v", txn.ID, err)
	}
}

// putEscrow writes the escrow row through an Atomic boundary on the funding
// account, the only way escrows are created.
func putEscrow(t *testing.T, s store.Store, e *types.Escrow) {
	t.Helper()
	err := s.Atomic(context.Background(), []string{e.From}, func(tx store.Tx) error {
		return tx.CreateEscrow(context.Background(), e)
	})
	if err != nil {
		t.Fatalf("seed escrow %s: %v", e.ID, err)
	}
}

func balances(t *testing.T, s store.Store, id string) (available, frozen int64) {
	t.Helper()
	a, err := s.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("get account %s: %v", id, err)
	}
	return a.Balance, a.FrozenBalance
}

// sameTime compares instants regardless of internal representation.
func sameTime(t *testing.T, want, got time.Time) {
	t.Helper()
	require.Truef(t, got.Equal(want), "time mismatch: got %v, want %v", got, want)
}

func sameTimePtr(t *testing.T, want, got *time.Time) {
	t.Helper()
	if want == nil {
		require.Nil(t, got)
		return
	}
	require.NotNil(t, got)
	sameTime(t, *want, *got)
}

// The equal helpers compare time fields by instant and everything else
// structurally, so backends may return any equivalent time representation.

func equalAccount(t *testing.T, want, got *types.Account) {
	t.Helper()
	require.NotNil(t, got)
	sameTime(t, want.CreatedAt, got.CreatedAt)
	sameTime(t, want.UpdatedAt, got.UpdatedAt)
	g := *got
	g.CreatedAt, g.UpdatedAt = want.CreatedAt, want.UpdatedAt
	require.Equal(t, *want, g)
}

func equalTransaction(t *testing.T, want, got *types.Transaction) {
	t.Helper()
	require.NotNil(t, got)
	sameTime(t, want.CreatedAt, got.CreatedAt)
	sameTimePtr(t, want.CompletedAt, got.CompletedAt)
	g := *got
	g.CreatedAt, g.CompletedAt = want.CreatedAt, want.CompletedAt
	require.Equal(t, *want, g)
}

func equalEscrow(t *testing.T, want, got *types.Escrow) {
	t.Helper()
	require.NotNil(t, got)
	sameTime(t, want.CreatedAt, got.CreatedAt)
	sameTimePtr(t, want.ExpiresAt, got.ExpiresAt)
	sameTimePtr(t, want.ReleasedAt, got.ReleasedAt)
	g := *got
	g.CreatedAt, g.ExpiresAt, g.ReleasedAt = want.CreatedAt, want.ExpiresAt, want.ReleasedAt
	require.Equal(t, *want, g)
}

func equalBatch(t *testing.T, want, got *types.BatchTransfer) {
	t.Helper()
	require.NotNil(t, got)
	sameTime(t, want.CreatedAt, got.CreatedAt)
	sameTimePtr(t, want.CompletedAt, got.CompletedAt)
	g := *got
	g.CreatedAt, g.CompletedAt = want.CreatedAt, want.CompletedAt
	require.Equal(t, *want, g)
}

func equalOperation(t *testing.T, want, got *types.BalanceOperation) {
	t.Helper()
	require.NotNil(t, got)
	sameTime(t, want.CreatedAt, got.CreatedAt)
	g := *got
	g.CreatedAt = want.CreatedAt
	require.Equal(t, *want, g)
}

func equalAudit(t *testing.T, want, got *types.AuditEntry) {
	t.Helper()
	require.NotNil(t, got)
	sameTime(t, want.CreatedAt, got.CreatedAt)
	g := *got
	g.CreatedAt = want.CreatedAt
	require.Equal(t, *want, g)
}

func accountIDs(accounts []*types.Account) []string {
	var ids []string
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	return ids
}

func transactionIDs(list []*types.Transaction) []uuid.UUID {
	var ids []uuid.UUID
	for _, txn := range list {
		ids = append(ids, txn.ID)
	}
	return ids
}

func escrowIDs(list []*types.Escrow) []uuid.UUID {
	var ids []uuid.UUID
	for _, e := range list {
		ids = append(ids, e.ID)
	}
	return ids
}

func operationIDs(list []*types.BalanceOperation) []uuid.UUID {
	var ids []uuid.UUID
	for _, op := range list {
		ids = append(ids, op.ID)
	}
	return ids
}
