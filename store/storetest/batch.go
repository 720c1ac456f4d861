package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/roboclear/ledger"
	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

func testBatchRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()

	b := &types.BatchTransfer{
		ID: uuid.New(),
		Items: []types.BatchItem{
			{From: "acct-a", To: "acct-b", Amount: 100, Type: types.TransactionTypeTransfer, Meta: map[string]string{"job": "1"}},
			{From: "acct-a", To: "acct-c", Amount: 200, Type: types.TransactionTypeTransfer},
		},
		StopOnError: true,
		Status:      types.BatchStatusProcessing,
		TotalAmount: 300,
		InitiatedBy: "acct-a",
		CreatedAt:   at(5),
	}
	require.NoError(t, s.CreateBatch(ctx, b))

	got, err := s.GetBatch(ctx, b.ID)
	require.NoError(t, err)
	equalBatch(t, b, got)

	// Settle the batch: one item landed, one did not.
	tid := uuid.New()
	done := at(6)
	b.Items[0].Status = types.BatchItemStatusCompleted
	b.Items[0].TransactionID = &tid
	b.Items[1].Status = types.BatchItemStatusFailed
	b.Items[1].Error = "ledger: insufficient funds"
	b.Status = types.BatchStatusPartial
	b.SuccessCount = 1
	b.FailedCount = 1
	b.CompletedAt = &done
	require.NoError(t, s.UpdateBatch(ctx, b))

	got, err = s.GetBatch(ctx, b.ID)
	require.NoError(t, err)
	equalBatch(t, b, got)

	_, err = s.GetBatch(ctx, uuid.New())
	require.ErrorIs(t, err, ledger.ErrBatchNotFound)
	err = s.UpdateBatch(ctx, &types.BatchTransfer{ID: uuid.New()})
	require.ErrorIs(t, err, ledger.ErrBatchNotFound)
}
