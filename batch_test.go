package ledger_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboclear/ledger"
	"github.com/roboclear/ledger/types"
)

func TestBatchTransfer_CompletesAllItems(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seedAccount(t, eng, "payer", 500)
	seedAccount(t, eng, "dst-1", 0)
	seedAccount(t, eng, "dst-2", 0)

	batch, err := eng.BatchTransfer(ctx, ledger.BatchParams{
		Items: []ledger.BatchItemParams{
			{From: "payer", To: "dst-1", Amount: 100},
			{From: "payer", To: "dst-2", Amount: 150, Type: types.TransactionTypeTaskPayment},
			{From: "dst-1", To: "payer", Amount: 50},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, types.BatchStatusCompleted, batch.Status)
	assert.Equal(t, 3, batch.SuccessCount)
	assert.Equal(t, 0, batch.FailedCount)
	assert.Equal(t, int64(300), batch.TotalAmount)
	require.NotNil(t, batch.CompletedAt)

	for i, item := range batch.Items {
		assert.Equal(t, types.BatchItemStatusCompleted, item.Status, "item %d", i)
		require.NotNil(t, item.TransactionID, "item %d", i)

		txn, err := eng.GetTransaction(ctx, *item.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, batch.ID.String(), txn.Meta[types.MetaBatchID])
		assert.Equal(t, item.Amount, txn.Amount)
	}
	assert.Equal(t, types.TransactionTypeTaskPayment, batch.Items[1].Type)

	assert.Equal(t, int64(300), getBalance(t, eng, "payer").Available)
	assert.Equal(t, int64(50), getBalance(t, eng, "dst-1").Available)
	assert.Equal(t, int64(150), getBalance(t, eng, "dst-2").Available)

	got, err := eng.GetBatchTransfer(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.Status, got.Status)
	assert.Equal(t, batch.SuccessCount, got.SuccessCount)
	require.Len(t, got.Items, 3)
	assert.Equal(t, batch.Items[0].TransactionID, got.Items[0].TransactionID)
}

func TestBatchTransfer_PartialFailure(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seedAccount(t, eng, "payer", 150)
	seedAccount(t, eng, "dst", 0)

	batch, err := eng.BatchTransfer(ctx, ledger.BatchParams{
		Items: []ledger.BatchItemParams{
			{From: "payer", To: "dst", Amount: 100},
			{From: "payer", To: "dst", Amount: 200},
			{From: "payer", To: "dst", Amount: 50},
		},
	})
	require.NoError(t, err, "item failures are recorded, not returned")

	assert.Equal(t, types.BatchStatusPartial, batch.Status)
	assert.Equal(t, 2, batch.SuccessCount)
	assert.Equal(t, 1, batch.FailedCount)
	assert.Equal(t, int64(350), batch.TotalAmount, "requested total, independent of outcome")

	assert.Equal(t, types.BatchItemStatusCompleted, batch.Items[0].Status)
	assert.Equal(t, types.BatchItemStatusFailed, batch.Items[1].Status)
	assert.Contains(t, batch.Items[1].Error, "insufficient funds")
	assert.Nil(t, batch.Items[1].TransactionID)
	assert.Equal(t, types.BatchItemStatusCompleted, batch.Items[2].Status)

	assert.Equal(t, int64(0), getBalance(t, eng, "payer").Available)
	assert.Equal(t, int64(150), getBalance(t, eng, "dst").Available)
}

func TestBatchTransfer_StopOnError(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seedAccount(t, eng, "payer", 100)
	seedAccount(t, eng, "dst", 0)

	batch, err := eng.BatchTransfer(ctx, ledger.BatchParams{
		Items: []ledger.BatchItemParams{
			{From: "payer", To: "dst", Amount: 60},
			{From: "payer", To: "dst", Amount: 100},
			{From: "payer", To: "dst", Amount: 10},
		},
		StopOnError: true,
	})
	require.NoError(t, err)

	assert.Equal(t, types.BatchStatusPartial, batch.Status)
	assert.Equal(t, 1, batch.SuccessCount)
	assert.Equal(t, 1, batch.FailedCount)

	assert.Equal(t, types.BatchItemStatusCompleted, batch.Items[0].Status)
	assert.Equal(t, types.BatchItemStatusFailed, batch.Items[1].Status)

	// The third item was never attempted.
	assert.Equal(t, types.BatchItemStatusSkipped, batch.Items[2].Status)
	assert.Nil(t, batch.Items[2].TransactionID)
	assert.Empty(t, batch.Items[2].Error)

	assert.Equal(t, int64(40), getBalance(t, eng, "payer").Available, "the halted batch stopped debiting")
}

func TestBatchTransfer_AllItemsFail(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seedAccount(t, eng, "payer", 10)
	seedAccount(t, eng, "dst", 0)

	batch, err := eng.BatchTransfer(ctx, ledger.BatchParams{
		Items: []ledger.BatchItemParams{
			{From: "payer", To: "dst", Amount: 50},
			{From: "payer", To: "dst", Amount: 60},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, types.BatchStatusFailed, batch.Status)
	assert.Equal(t, 0, batch.SuccessCount)
	assert.Equal(t, 2, batch.FailedCount)
	assert.Equal(t, int64(10), getBalance(t, eng, "payer").Available)
}

func TestBatchTransfer_OperatorInitiated(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seedAccount(t, eng, "tenant-a", 100)
	seedAccount(t, eng, "tenant-b", 100)
	seedAccount(t, eng, "collector", 0)
	seedWithRoles(t, eng, "dispatcher", 0, types.RoleOperator)

	batch, err := eng.BatchTransfer(ctx, ledger.BatchParams{
		Items: []ledger.BatchItemParams{
			{From: "tenant-a", To: "collector", Amount: 30},
			{From: "tenant-b", To: "collector", Amount: 40},
		},
		InitiatedBy: "dispatcher",
	})
	require.NoError(t, err)
	require.Equal(t, types.BatchStatusCompleted, batch.Status)

	for _, item := range batch.Items {
		txn, err := eng.GetTransaction(ctx, *item.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, "dispatcher", txn.InitiatedBy)
	}
	assert.Equal(t, int64(70), getBalance(t, eng, "collector").Available)
}

func TestBatchTransfer_Validation(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	_, err := eng.BatchTransfer(ctx, ledger.BatchParams{})
	require.ErrorIs(t, err, ledger.ErrValidation)

	_, err = eng.GetBatchTransfer(ctx, uuid.New())
	require.ErrorIs(t, err, ledger.ErrBatchNotFound)
}
