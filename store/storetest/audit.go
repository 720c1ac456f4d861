package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

func testAuditTrail(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedAccount(t, s, "acct-1", 0, at(0))

	a1 := &types.AuditEntry{
		ID:         uuid.New(),
		Action:     types.AuditAccountCreated,
		EntityType: types.EntityAccount,
		EntityID:   "acct-1",
		ActorID:    "acct-1",
		After:      map[string]any{"status": "ACTIVE"},
		CreatedAt:  at(1),
	}
	a2 := &types.AuditEntry{
		ID:         uuid.New(),
		Action:     types.AuditBalanceCredited,
		EntityType: types.EntityAccount,
		EntityID:   "acct-1",
		ActorID:    "treasury",
		Before:     map[string]any{"balance": "0"},
		After:      map[string]any{"balance": "500"},
		CreatedAt:  at(2),
	}
	require.NoError(t, s.AppendAudit(ctx, a1))
	require.NoError(t, s.AppendAudit(ctx, a2))

	// Entries written inside a boundary join the same trail.
	escID := uuid.New()
	a3 := &types.AuditEntry{
		ID:         uuid.New(),
		Action:     types.AuditEscrowCreated,
		EntityType: types.EntityEscrow,
		EntityID:   escID.String(),
		ActorID:    "acct-1",
		After:      map[string]any{"amount": "400", "to": "acct-2"},
		CreatedAt:  at(3),
	}
	require.NoError(t, s.Atomic(ctx, []string{"acct-1"}, func(tx store.Tx) error {
		return tx.AppendAudit(ctx, a3)
	}))

	got, err := s.ListAudit(ctx, store.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	equalAudit(t, a1, got[0])
	equalAudit(t, a2, got[1])
	equalAudit(t, a3, got[2])

	byEntity, err := s.ListAudit(ctx, store.AuditFilter{EntityID: "acct-1"})
	require.NoError(t, err)
	require.Len(t, byEntity, 2)
	assert.Equal(t, a1.ID, byEntity[0].ID)
	assert.Equal(t, a2.ID, byEntity[1].ID)

	byAction, err := s.ListAudit(ctx, store.AuditFilter{Action: types.AuditEscrowCreated})
	require.NoError(t, err)
	require.Len(t, byAction, 1)
	assert.Equal(t, a3.ID, byAction[0].ID)

	limited, err := s.ListAudit(ctx, store.AuditFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, a1.ID, limited[0].ID)
	assert.Equal(t, a2.ID, limited[1].ID)
}

func testStatistics(t *testing.T, s store.Store) {
	ctx := context.Background()

	empty, err := s.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, &types.Statistics{}, empty)

	seedAccount(t, s, "stat-1", 700, at(0))
	seedAccount(t, s, "stat-2", 200, at(1))
	require.NoError(t, s.Atomic(ctx, []string{"stat-1"}, func(tx store.Tx) error {
		return tx.FreezeBalance(ctx, "stat-1", 100)
	}))

	mk := func(status types.TransactionStatus, amount, fee int64, createdAt int) {
		putTransaction(t, s, &types.Transaction{
			ID:          uuid.New(),
			From:        "stat-1",
			To:          "stat-2",
			Amount:      amount,
			Fee:         fee,
			Type:        types.TransactionTypeTransfer,
			Status:      status,
			InitiatedBy: "stat-1",
			CreatedAt:   at(createdAt),
		})
	}
	mk(types.TransactionStatusCompleted, 30, 3, 10)
	mk(types.TransactionStatusRefunded, 10, 1, 11)
	mk(types.TransactionStatusFailed, 99, 9, 12)
	mk(types.TransactionStatusPending, 7, 0, 13)

	putEscrow(t, s, &types.Escrow{
		ID:        uuid.New(),
		From:      "stat-1",
		To:        "stat-2",
		Amount:    50,
		Status:    types.EscrowStatusPending,
		CreatedAt: at(20),
	})

	got, err := s.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, &types.Statistics{
		AccountCount:       2,
		TransactionCount:   4,
		PendingEscrowCount: 1,
		TotalAvailable:     800,
		TotalFrozen:        100,
		// Volume and fees count transactions that executed: the completed
		// one and the refunded one.
		TransferVolume: 40,
		FeesBurned:     4,
	}, got)
}
