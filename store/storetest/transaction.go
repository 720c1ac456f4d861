package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboclear/ledger"
	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

func testTransactionRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedAccount(t, s, "payer", 1000, at(0))
	seedAccount(t, s, "payee", 0, at(1))

	key := "settle-7421"
	txn := &types.Transaction{
		ID:             uuid.New(),
		From:           "payer",
		To:             "payee",
		Amount:         900,
		Fee:            9,
		Type:           types.TransactionTypeTaskPayment,
		Status:         types.TransactionStatusPending,
		Meta:           map[string]string{"task": "render-42"},
		IdempotencyKey: &key,
		InitiatedBy:    "payer",
		CreatedAt:      at(2),
	}
	require.NoError(t, s.CreateTransaction(ctx, txn))

	got, err := s.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	equalTransaction(t, txn, got)

	done := at(3)
	txn.Status = types.TransactionStatusCompleted
	txn.CompletedAt = &done
	txn.Meta = map[string]string{"task": "render-42", "attempt": "1"}
	require.NoError(t, s.UpdateTransaction(ctx, txn))

	got, err = s.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	equalTransaction(t, txn, got)

	_, err = s.GetTransaction(ctx, uuid.New())
	require.ErrorIs(t, err, ledger.ErrTransactionNotFound)
	err = s.UpdateTransaction(ctx, &types.Transaction{ID: uuid.New()})
	require.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}

func testIdempotencyKeys(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedAccount(t, s, "payer", 1000, at(0))
	seedAccount(t, s, "payee", 0, at(1))

	key := "batch-42-item-0"
	first := &types.Transaction{
		ID:             uuid.New(),
		From:           "payer",
		To:             "payee",
		Amount:         100,
		Type:           types.TransactionTypeTransfer,
		Status:         types.TransactionStatusPending,
		IdempotencyKey: &key,
		InitiatedBy:    "payer",
		CreatedAt:      at(2),
	}
	require.NoError(t, s.CreateTransaction(ctx, first))

	// A second insert under the same key fails and writes nothing.
	dup := *first
	dup.ID = uuid.New()
	dup.CreatedAt = at(3)
	err := s.CreateTransaction(ctx, &dup)
	require.ErrorIs(t, err, ledger.ErrDuplicateIdempotencyKey)
	_, err = s.GetTransaction(ctx, dup.ID)
	require.ErrorIs(t, err, ledger.ErrTransactionNotFound)

	got, err := s.GetTransactionByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = s.GetTransactionByIdempotencyKey(ctx, "never-used")
	require.ErrorIs(t, err, ledger.ErrTransactionNotFound)

	// Transactions without a key never collide with each other.
	for i := range 2 {
		txn := &types.Transaction{
			ID:          uuid.New(),
			From:        "payer",
			To:          "payee",
			Amount:      10,
			Type:        types.TransactionTypeTransfer,
			Status:      types.TransactionStatusPending,
			InitiatedBy: "payer",
			CreatedAt:   at(4 + i),
		}
		require.NoError(t, s.CreateTransaction(ctx, txn))
	}
}

func testTransactionFilters(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i, id := range []string{"acct-a", "acct-b", "acct-c"} {
		seedAccount(t, s, id, 1000, at(i))
	}

	mk := func(from, to string, typ types.TransactionType, status types.TransactionStatus, createdAt int) *types.Transaction {
		txn := &types.Transaction{
			ID:          uuid.New(),
			From:        from,
			To:          to,
			Amount:      100,
			Type:        typ,
			Status:      status,
			InitiatedBy: from,
			CreatedAt:   at(createdAt),
		}
		putTransaction(t, s, txn)
		return txn
	}

	t1 := mk("acct-a", "acct-b", types.TransactionTypeTransfer, types.TransactionStatusCompleted, 10)
	t2 := mk("acct-b", "acct-c", types.TransactionTypeTaskPayment, types.TransactionStatusCompleted, 11)
	t3 := mk("acct-a", "acct-c", types.TransactionTypeTransfer, types.TransactionStatusFailed, 12)
	t4 := mk("acct-c", "acct-a", types.TransactionTypeServiceFee, types.TransactionStatusCompleted, 13)
	t5 := mk("acct-a", "acct-b", types.TransactionTypeTransfer, types.TransactionStatusPending, 14)

	tests := []struct {
		name   string
		filter store.TransactionFilter
		want   []uuid.UUID
	}{
		{
			name: "all newest first",
			want: []uuid.UUID{t5.ID, t4.ID, t3.ID, t2.ID, t1.ID},
		},
		{
			name:   "account matches either side",
			filter: store.TransactionFilter{AccountID: "acct-b"},
			want:   []uuid.UUID{t5.ID, t2.ID, t1.ID},
		},
		{
			name:   "by type",
			filter: store.TransactionFilter{Type: types.TransactionTypeTransfer},
			want:   []uuid.UUID{t5.ID, t3.ID, t1.ID},
		},
		{
			name:   "by status",
			filter: store.TransactionFilter{Status: types.TransactionStatusCompleted},
			want:   []uuid.UUID{t4.ID, t2.ID, t1.ID},
		},
		{
			name:   "account and status combined",
			filter: store.TransactionFilter{AccountID: "acct-a", Status: types.TransactionStatusCompleted},
			want:   []uuid.UUID{t4.ID, t1.ID},
		},
		{
			name:   "since is inclusive",
			filter: store.TransactionFilter{Since: at(12)},
			want:   []uuid.UUID{t5.ID, t4.ID, t3.ID},
		},
		{
			name:   "until is exclusive",
			filter: store.TransactionFilter{Until: at(12)},
			want:   []uuid.UUID{t2.ID, t1.ID},
		},
		{
			name:   "window",
			filter: store.TransactionFilter{Since: at(11), Until: at(14)},
			want:   []uuid.UUID{t4.ID, t3.ID, t2.ID},
		},
		{
			name:   "limit",
			filter: store.TransactionFilter{Limit: 2},
			want:   []uuid.UUID{t5.ID, t4.ID},
		},
		{
			name:   "limit with offset",
			filter: store.TransactionFilter{Limit: 2, Offset: 2},
			want:   []uuid.UUID{t3.ID, t2.ID},
		},
		{
			name:   "offset without limit",
			filter: store.TransactionFilter{Offset: 3},
			want:   []uuid.UUID{t2.ID, t1.ID},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.ListTransactions(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, transactionIDs(got))
		})
	}
}
