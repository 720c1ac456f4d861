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

func testOperations(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedAccount(t, s, "meter-a", 500, at(0))
	seedAccount(t, s, "meter-b", 300, at(1))

	// Each operation records the balance it left behind, written in the
	// same boundary as the move itself.
	apply := func(accountID string, dir types.OperationDirection, amount int64, reason string, createdAt int) *types.BalanceOperation {
		op := &types.BalanceOperation{
			ID:          uuid.New(),
			AccountID:   accountID,
			Direction:   dir,
			Amount:      amount,
			Reason:      reason,
			InitiatedBy: "treasury",
			CreatedAt:   at(createdAt),
		}
		delta := amount
		if dir == types.OperationDebit {
			delta = -amount
		}
		err := s.Atomic(ctx, []string{accountID}, func(tx store.Tx) error {
			after, err := tx.UpdateBalance(ctx, accountID, delta)
			if err != nil {
				return err
			}
			op.BalanceAfter = after
			return tx.CreateOperation(ctx, op)
		})
		require.NoError(t, err)
		return op
	}

	op1 := apply("meter-a", types.OperationCredit, 200, "monthly topup", 10)
	op2 := apply("meter-a", types.OperationDebit, 100, "quota adjustment", 11)
	op3 := apply("meter-b", types.OperationCredit, 50, "monthly topup", 12)

	assert.Equal(t, int64(700), op1.BalanceAfter)
	assert.Equal(t, int64(600), op2.BalanceAfter)
	assert.Equal(t, int64(350), op3.BalanceAfter)

	tests := []struct {
		name   string
		filter store.OperationFilter
		want   []uuid.UUID
	}{
		{
			name: "all newest first",
			want: []uuid.UUID{op3.ID, op2.ID, op1.ID},
		},
		{
			name:   "by account",
			filter: store.OperationFilter{AccountID: "meter-a"},
			want:   []uuid.UUID{op2.ID, op1.ID},
		},
		{
			name:   "by direction",
			filter: store.OperationFilter{Direction: types.OperationCredit},
			want:   []uuid.UUID{op3.ID, op1.ID},
		},
		{
			name:   "account and direction combined",
			filter: store.OperationFilter{AccountID: "meter-a", Direction: types.OperationDebit},
			want:   []uuid.UUID{op2.ID},
		},
		{
			name:   "limit",
			filter: store.OperationFilter{Limit: 1},
			want:   []uuid.UUID{op3.ID},
		},
		{
			name:   "limit with offset",
			filter: store.OperationFilter{Limit: 2, Offset: 1},
			want:   []uuid.UUID{op2.ID, op1.ID},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.ListOperations(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, operationIDs(got))
		})
	}

	// Full round trip of one record.
	got, err := s.ListOperations(ctx, store.OperationFilter{AccountID: "meter-b"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	equalOperation(t, op3, got[0])
}
