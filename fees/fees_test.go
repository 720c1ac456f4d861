package fees_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboclear/ledger/fees"
	"github.com/roboclear/ledger/types"
)

func TestFreeChargesNothing(t *testing.T) {
	fee, err := fees.Free{}.Calculate(context.Background(), 10_000, types.TransactionTypeTransfer, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, fee)
}

func TestScheduleCalculate(t *testing.T) {
	sched := &fees.Schedule{
		Default: fees.Rate{Flat: 5, BasisPoints: 250},
		PerType: map[types.TransactionType]fees.Rate{
			types.TransactionTypeTaskPayment: {BasisPoints: 100},
		},
	}

	tests := []struct {
		name   string
		amount int64
		txType types.TransactionType
		want   int64
	}{
		{"flat plus percentage", 1000, types.TransactionTypeTransfer, 30},
		{"rounds half away from zero", 100, types.TransactionTypeTransfer, 8},
		{"rounds down below the midpoint", 1001, types.TransactionTypeTransfer, 30},
		{"per-type override wins", 1000, types.TransactionTypeTaskPayment, 10},
		{"unlisted type falls back to default", 1000, types.TransactionTypeServiceFee, 30},
		{"refunds are free", 1000, types.TransactionTypeRefund, 0},
		{"escrow payouts are free", 1000, types.TransactionTypeEscrowRelease, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fee, err := sched.Calculate(context.Background(), tc.amount, tc.txType, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, fee)
		})
	}
}

func TestScheduleRejectsNonPositiveAmount(t *testing.T) {
	sched := &fees.Schedule{Default: fees.Rate{Flat: 1}}

	_, err := sched.Calculate(context.Background(), 0, types.TransactionTypeTransfer, nil, nil)
	require.Error(t, err)

	_, err = sched.Calculate(context.Background(), -5, types.TransactionTypeTransfer, nil, nil)
	require.Error(t, err)
}

func TestScheduleClampsNegativeRate(t *testing.T) {
	// A discount rate can never push a fee below zero.
	sched := &fees.Schedule{Default: fees.Rate{Flat: -10}}

	fee, err := sched.Calculate(context.Background(), 100, types.TransactionTypeTransfer, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, fee)
}
