package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboclear/ledger"
	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

func TestAuditTrail_RecordsOperations(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seedAccount(t, eng, "client", 0)
	seedAccount(t, eng, "worker", 0)
	seedAdmin(t, eng, "root")

	_, err := eng.Credit(ctx, ledger.CreditParams{AccountID: "client", Amount: 500})
	require.NoError(t, err)
	txn, err := eng.Transfer(ctx, ledger.TransferParams{From: "client", To: "worker", Amount: 200})
	require.NoError(t, err)
	esc, err := eng.CreateEscrow(ctx, ledger.EscrowParams{From: "client", To: "worker", Amount: 100})
	require.NoError(t, err)
	_, err = eng.ReleaseEscrow(ctx, esc.ID, "")
	require.NoError(t, err)
	_, err = eng.FreezeAccount(ctx, "worker", "root")
	require.NoError(t, err)

	entries, err := eng.GetAuditLog(ctx, store.AuditFilter{})
	require.NoError(t, err)

	var actions []types.AuditAction
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []types.AuditAction{
		types.AuditAccountCreated,
		types.AuditAccountCreated,
		types.AuditAccountCreated,
		types.AuditBalanceCredited,
		types.AuditTransferExecuted,
		types.AuditEscrowCreated,
		types.AuditEscrowReleased,
		types.AuditAccountFrozen,
	}, actions, "one entry per mutating operation, in order")

	transfer := entries[4]
	assert.Equal(t, types.EntityTransaction, transfer.EntityType)
	assert.Equal(t, txn.ID.String(), transfer.EntityID)
	assert.Equal(t, "client", transfer.ActorID)
	assert.Equal(t, "client", transfer.After["from"])
	assert.Equal(t, int64(200), transfer.After["amount"])

	frozen := entries[7]
	assert.Equal(t, "root", frozen.ActorID, "administrative actions name the administrator")
	assert.Equal(t, "worker", frozen.EntityID)
	assert.Equal(t, types.AccountStatusActive, frozen.Before["status"])
	assert.Equal(t, types.AccountStatusFrozen, frozen.After["status"])

	// Entries for one entity read as its history.
	escrowTrail, err := eng.GetAuditLog(ctx, store.AuditFilter{EntityID: esc.ID.String()})
	require.NoError(t, err)
	require.Len(t, escrowTrail, 2)
	assert.Equal(t, types.AuditEscrowCreated, escrowTrail[0].Action)
	assert.Equal(t, types.AuditEscrowReleased, escrowTrail[1].Action)

	created, err := eng.GetAuditLog(ctx, store.AuditFilter{Action: types.AuditAccountCreated})
	require.NoError(t, err)
	assert.Len(t, created, 3)

	limited, err := eng.GetAuditLog(ctx, store.AuditFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestAuditDisabled(t *testing.T) {
	eng := newEngine(t, ledger.WithConfig(ledger.Config{AuditEnabled: false}))
	ctx := context.Background()

	seedAccount(t, eng, "client", 100)
	seedAccount(t, eng, "worker", 0)
	_, err := eng.Transfer(ctx, ledger.TransferParams{From: "client", To: "worker", Amount: 50})
	require.NoError(t, err)

	entries, err := eng.GetAuditLog(ctx, store.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStatistics_Aggregates(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seedAccount(t, eng, "a", 1000)
	seedAccount(t, eng, "b", 0)
	seedAccount(t, eng, "c", 0)

	orig, err := eng.Transfer(ctx, ledger.TransferParams{From: "a", To: "b", Amount: 300})
	require.NoError(t, err)
	_, err = eng.Refund(ctx, ledger.RefundParams{TransactionID: orig.ID})
	require.NoError(t, err)
	_, err = eng.Transfer(ctx, ledger.TransferParams{From: "a", To: "c", Amount: 100})
	require.NoError(t, err)
	_, err = eng.CreateEscrow(ctx, ledger.EscrowParams{From: "a", To: "b", Amount: 50})
	require.NoError(t, err)

	stats, err := eng.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.AccountCount)
	assert.Equal(t, int64(3), stats.TransactionCount)
	assert.Equal(t, int64(1), stats.PendingEscrowCount)
	assert.Equal(t, int64(950), stats.TotalAvailable)
	assert.Equal(t, int64(50), stats.TotalFrozen)
	assert.Equal(t, int64(700), stats.TransferVolume, "refunded originals and their refunds both count as executed volume")
	assert.Equal(t, int64(0), stats.FeesBurned)

	total, err := eng.GetTotalBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Balance{Available: 950, Frozen: 50}, total)
	assert.Equal(t, int64(1000), total.Total(), "nothing was burned, the issued total is intact")
}
