package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboclear/ledger"
	"github.com/roboclear/ledger/events"
	"github.com/roboclear/ledger/fees"
	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

func TestTransfer_HappyPath(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seedAccount(t, eng, "sender", 1000)
	seedAccount(t, eng, "recipient", 0)

	txn, err := eng.Transfer(ctx, ledger.TransferParams{
		From:   "sender",
		To:     "recipient",
		Amount: 100,
		Meta:   map[string]string{"task": "render-42"},
	})
	require.NoError(t, err)

	assert.Equal(t, "sender", txn.From)
	assert.Equal(t, "recipient", txn.To)
	assert.Equal(t, int64(100), txn.Amount)
	assert.Equal(t, int64(0), txn.Fee)
	assert.Equal(t, types.TransactionTypeTransfer, txn.Type)
	assert.Equal(t, types.TransactionStatusCompleted, txn.Status)
	assert.Equal(t, "sender", txn.InitiatedBy)
	assert.Equal(t, "render-42", txn.Meta["task"])
	require.NotNil(t, txn.CompletedAt)

	assert.Equal(t, int64(900), getBalance(t, eng, "sender").Available)
	assert.Equal(t, int64(100), getBalance(t, eng, "recipient").Available)

	got, err := eng.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TransactionStatusCompleted, got.Status)
}

func TestTransfer_Validation(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seedAccount(t, eng, "src", 500)
	seedAccount(t, eng, "dst", 0)
	seedAccount(t, eng, "paused", 0)
	_, err := eng.SuspendAccount(ctx, "paused", "")
	require.NoError(t, err)

	tests := []struct {
		name    string
		params  ledger.TransferParams
		wantErr error
	}{
		{
			name:    "zero amount",
			params:  ledger.TransferParams{From: "src", To: "dst", Amount: 0},
			wantErr: ledger.ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			params:  ledger.TransferParams{From: "src", To: "dst", Amount: -10},
			wantErr: ledger.ErrInvalidAmount,
		},
		{
			name:    "same account on both sides",
			params:  ledger.TransferParams{From: "src", To: "src", Amount: 10},
			wantErr: ledger.ErrSelfTransfer,
		},
		{
			name:    "missing sender id",
			params:  ledger.TransferParams{To: "dst", Amount: 10},
			wantErr: ledger.ErrValidation,
		},
		{
			name:    "missing recipient id",
			params:  ledger.TransferParams{From: "src", Amount: 10},
			wantErr: ledger.ErrValidation,
		},
		{
			name:    "unknown sender",
			params:  ledger.TransferParams{From: "ghost", To: "dst", Amount: 10},
			wantErr: ledger.ErrAccountNotFound,
		},
		{
			name:    "unknown recipient",
			params:  ledger.TransferParams{From: "src", To: "ghost", Amount: 10},
			wantErr: ledger.ErrAccountNotFound,
		},
		{
			name:    "suspended recipient",
			params:  ledger.TransferParams{From: "src", To: "paused", Amount: 10},
			wantErr: ledger.ErrAccountNotActive,
		},
		{
			name:    "insufficient funds",
			params:  ledger.TransferParams{From: "src", To: "dst", Amount: 600},
			wantErr: ledger.ErrInsufficientFunds,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Transfer(ctx, tt.params)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Rejections happen before the journal is touched.
	txns, err := eng.ListTransactions(ctx, store.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txns)
	assert.Equal(t, int64(500), getBalance(t, eng, "src").Available)
	assert.Equal(t, int64(0), getBalance(t, eng, "dst").Available)
}

func TestTransfer_PolicyGate(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seedWithRoles(t, eng, "client", 500, types.RoleConsumer)
	seedWithRoles(t, eng, "vendor", 100, types.RoleProvider)
	seedWithRoles(t, eng, "bystander", 0, types.RoleConsumer)
	seedWithRoles(t, eng, "dispatcher", 0, types.RoleOperator)

	// A provider-only account cannot spend.
	_, err := eng.Transfer(ctx, ledger.TransferParams{From: "vendor", To: "client", Amount: 50})
	require.ErrorIs(t, err, ledger.ErrForbidden)
	var forbidden *ledger.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, "transfer", forbidden.Action)

	// Only the sender, an operator, or an admin may initiate.
	_, err = eng.Transfer(ctx, ledger.TransferParams{
		From: "client", To: "vendor", Amount: 50, InitiatedBy: "bystander",
	})
	require.ErrorIs(t, err, ledger.ErrForbidden)

	assert.Equal(t, int64(500), getBalance(t, eng, "client").Available, "denials move nothing")
	assert.Equal(t, int64(100), getBalance(t, eng, "vendor").Available)

	_, err = eng.Transfer(ctx, ledger.TransferParams{From: "client", To: "vendor", Amount: 50})
	require.NoError(t, err)

	_, err = eng.Transfer(ctx, ledger.TransferParams{
		From: "client", To: "vendor", Amount: 50, InitiatedBy: "dispatcher",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(400), getBalance(t, eng, "client").Available)
	assert.Equal(t, int64(200), getBalance(t, eng, "vendor").Available)
}

func TestTransfer_Limits(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seedAccount(t, eng, "sink", 0)

	maxOut := int64(100)
	capped := seedAccount(t, eng, "capped", 500)
	_, err := eng.UpdateAccount(ctx, ledger.UpdateAccountParams{
		ID:     capped.ID,
		Limits: &types.Limits{MaxTransferAmount: &maxOut},
	})
	require.NoError(t, err)

	_, err = eng.Transfer(ctx, ledger.TransferParams{From: "capped", To: "sink", Amount: 150})
	require.ErrorIs(t, err, ledger.ErrLimitExceeded)
	var limit *ledger.LimitExceededError
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, "max_transfer_amount", limit.Limit)
	assert.Equal(t, int64(100), limit.Value)
	assert.Equal(t, int64(150), limit.Attempted)
	assert.Equal(t, int64(500), getBalance(t, eng, "capped").Available)

	// The cap is inclusive.
	_, err = eng.Transfer(ctx, ledger.TransferParams{From: "capped", To: "sink", Amount: 100})
	require.NoError(t, err)

	floor := int64(200)
	floored := seedAccount(t, eng, "floored", 500)
	_, err = eng.UpdateAccount(ctx, ledger.UpdateAccountParams{
		ID:     floored.ID,
		Limits: &types.Limits{MinBalance: &floor},
	})
	require.NoError(t, err)

	_, err = eng.Transfer(ctx, ledger.TransferParams{From: "floored", To: "sink", Amount: 301})
	require.ErrorIs(t, err, ledger.ErrLimitExceeded)
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, "min_balance", limit.Limit)
	assert.Equal(t, int64(200), limit.Value)
	assert.Equal(t, int64(199), limit.Attempted, "Attempted reports where the balance would have landed")

	// Landing exactly on the floor is fine.
	_, err = eng.Transfer(ctx, ledger.TransferParams{From: "floored", To: "sink", Amount: 300})
	require.NoError(t, err)
	assert.Equal(t, int64(200), getBalance(t, eng, "floored").Available)

	// The floor counts fees, not just the amount.
	fee := int64(100)
	tight := seedAccount(t, eng, "tight", 500)
	_, err = eng.UpdateAccount(ctx, ledger.UpdateAccountParams{
		ID:     tight.ID,
		Limits: &types.Limits{MinBalance: &floor},
	})
	require.NoError(t, err)
	_, err = eng.Transfer(ctx, ledger.TransferParams{
		From: "tight", To: "sink", Amount: 250, FeeOverride: &fee,
	})
	require.ErrorIs(t, err, ledger.ErrLimitExceeded)
	assert.Equal(t, int64(500), getBalance(t, eng, "tight").Available)

	txns, err := eng.ListTransactions(ctx, store.TransactionFilter{AccountID: "tight"})
	require.NoError(t, err)
	assert.Empty(t, txns, "limit rejections leave no journal record")
}

func TestTransfer_FeeSchedule(t *testing.T) {
	eng := newEngine(t, ledger.WithFeeCalculator(&fees.Schedule{
		Default: fees.Rate{Flat: 5, BasisPoints: 250},
	}))
	ctx := context.Background()

	seedAccount(t, eng, "sender", 2000)
	seedAccount(t, eng, "recipient", 0)

	txn, err := eng.Transfer(ctx, ledger.TransferParams{From: "sender", To: "recipient", Amount: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(30), txn.Fee, "5 flat plus 2.5 percent of 1000")

	assert.Equal(t, int64(970), getBalance(t, eng, "sender").Available)
	assert.Equal(t, int64(1000), getBalance(t, eng, "recipient").Available)

	stats, err := eng.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(30), stats.FeesBurned, "fees are debited but credited to no account")
	assert.Equal(t, int64(1000), stats.TransferVolume)

	total, err := eng.GetTotalBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1970), total.Available)

	// An explicit override bypasses the calculator.
	override := int64(7)
	txn, err = eng.Transfer(ctx, ledger.TransferParams{
		From: "sender", To: "recipient", Amount: 100, FeeOverride: &override,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), txn.Fee)
	assert.Equal(t, int64(863), getBalance(t, eng, "sender").Available)

	negative := int64(-1)
	_, err = eng.Transfer(ctx, ledger.TransferParams{
		From: "sender", To: "recipient", Amount: 100, FeeOverride: &negative,
	})
	require.ErrorIs(t, err, ledger.ErrValidation)

	// The sender needs amount plus fee, not amount alone.
	seedAccount(t, eng, "tight", 1000)
	_, err = eng.Transfer(ctx, ledger.TransferParams{From: "tight", To: "recipient", Amount: 1000})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	var insufficient *ledger.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(1030), insufficient.Required)
	assert.Equal(t, int64(1000), insufficient.Available)
}

func TestTransfer_IdempotentReplay(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seedAccount(t, eng, "sender", 1000)
	seedAccount(t, eng, "recipient", 0)

	first, err := eng.Transfer(ctx, ledger.TransferParams{
		From: "sender", To: "recipient", Amount: 100, IdempotencyKey: "k1",
	})
	require.NoError(t, err)

	_, err = eng.Transfer(ctx, ledger.TransferParams{
		From: "sender", To: "recipient", Amount: 100, IdempotencyKey: "k1",
	})
	require.ErrorIs(t, err, ledger.ErrDuplicateIdempotencyKey)
	var idem *ledger.IdempotencyError
	require.ErrorAs(t, err, &idem)
	assert.Equal(t, "k1", idem.Key)
	assert.Equal(t, first.ID, idem.TransactionID, "the replay points at the original")

	assert.Equal(t, int64(900), getBalance(t, eng, "sender").Available, "the debit happened once")
	assert.Equal(t, int64(100), getBalance(t, eng, "recipient").Available)

	orig, err := eng.GetTransactionByIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, orig.ID)

	// A fresh key is a fresh transfer.
	_, err = eng.Transfer(ctx, ledger.TransferParams{
		From: "sender", To: "recipient", Amount: 100, IdempotencyKey: "k2",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(800), getBalance(t, eng, "sender").Available)
}

func TestTransfer_ConcurrentSameKey(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seedAccount(t, eng, "sender", 1000)
	seedAccount(t, eng, "recipient", 0)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Transfer(ctx, ledger.TransferParams{
				From: "sender", To: "recipient", Amount: 100, IdempotencyKey: "storm-1",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	winner, err := eng.GetTransactionByIdempotencyKey(ctx, "storm-1")
	require.NoError(t, err)

	var successes, replays int
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		require.ErrorIs(t, err, ledger.ErrDuplicateIdempotencyKey)
		var idem *ledger.IdempotencyError
		require.ErrorAs(t, err, &idem)
		assert.Equal(t, winner.ID, idem.TransactionID)
		replays++
	}
	assert.Equal(t, 1, successes, "exactly one call executes")
	assert.Equal(t, workers-1, replays)

	assert.Equal(t, int64(900), getBalance(t, eng, "sender").Available, "one debit despite eight calls")
	assert.Equal(t, int64(100), getBalance(t, eng, "recipient").Available)
}

func TestTransfer_ConcurrentOverdraft(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seedAccount(t, eng, "hot", 10000)
	seedAccount(t, eng, "sink", 0)

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Transfer(ctx, ledger.TransferParams{From: "hot", To: "sink", Amount: 7000})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, failures int
	for err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
			failures++
		}
	}
	assert.Equal(t, 1, successes, "exactly one transfer should succeed")
	assert.Equal(t, 1, failures, "exactly one transfer should fail")

	assert.Equal(t, int64(3000), getBalance(t, eng, "hot").Available, "balance must be 3000, not negative")
	assert.Equal(t, int64(7000), getBalance(t, eng, "sink").Available)

	// The loser either failed before claiming a record or left a FAILED one;
	// it can never leave a second COMPLETED transaction.
	txns, err := eng.ListTransactions(ctx, store.TransactionFilter{})
	require.NoError(t, err)
	var completed int
	for _, txn := range txns {
		switch txn.Status {
		case types.TransactionStatusCompleted:
			completed++
		case types.TransactionStatusFailed:
			assert.NotEmpty(t, txn.Meta[types.MetaError])
		default:
			t.Fatalf("unexpected transaction status %s", txn.Status)
		}
	}
	assert.Equal(t, 1, completed)
}

func TestTransfer_FailedAttemptLeavesRecord(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seedAccount(t, eng, "payer", 1000)
	seedAccount(t, eng, "payee", 0)

	// Freeze the sender after the PENDING claim but before the balance move.
	// Publish blocks until handlers return, so the interleaving is exact.
	var mu sync.Mutex
	var failedEvt events.Event
	unsubInit := eng.Events().Subscribe(events.TransferInitiated, func(ctx context.Context, _ events.Event) error {
		_, err := eng.FreezeAccount(ctx, "payer", "")
		return err
	})
	defer unsubInit()
	unsubFail := eng.Events().Subscribe(events.TransferFailed, func(_ context.Context, evt events.Event) error {
		mu.Lock()
		failedEvt = evt
		mu.Unlock()
		return nil
	})
	defer unsubFail()

	_, err := eng.Transfer(ctx, ledger.TransferParams{
		From: "payer", To: "payee", Amount: 100, IdempotencyKey: "run-88",
	})
	require.ErrorIs(t, err, ledger.ErrAccountNotActive)

	// The attempt is durable: a FAILED transaction holding the key and the
	// failure reason.
	txn, err := eng.GetTransactionByIdempotencyKey(ctx, "run-88")
	require.NoError(t, err)
	assert.Equal(t, types.TransactionStatusFailed, txn.Status)
	assert.Contains(t, txn.Meta[types.MetaError], "not active")
	assert.Nil(t, txn.CompletedAt)

	assert.Equal(t, int64(1000), getBalance(t, eng, "payer").Available)
	assert.Equal(t, int64(0), getBalance(t, eng, "payee").Available)

	mu.Lock()
	require.Equal(t, events.TransferFailed, failedEvt.Kind)
	assert.NotEmpty(t, failedEvt.Error)
	mu.Unlock()

	// The key stays claimed by the failed attempt.
	unsubInit()
	_, err = eng.UnfreezeAccount(ctx, "payer", "")
	require.NoError(t, err)
	_, err = eng.Transfer(ctx, ledger.TransferParams{
		From: "payer", To: "payee", Amount: 100, IdempotencyKey: "run-88",
	})
	require.ErrorIs(t, err, ledger.ErrDuplicateIdempotencyKey)

	// A new key goes through.
	txn2, err := eng.Transfer(ctx, ledger.TransferParams{
		From: "payer", To: "payee", Amount: 100, IdempotencyKey: "run-89",
	})
	require.NoError(t, err)
	assert.Equal(t, types.TransactionStatusCompleted, txn2.Status)
	assert.Equal(t, int64(900), getBalance(t, eng, "payer").Available)
}

func TestTransfer_ConservationUnderConcurrency(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	ring := []string{"node-a", "node-b", "node-c"}
	for _, id := range ring {
		seedAccount(t, eng, id, 300)
	}

	const rounds = 15
	var wg sync.WaitGroup
	errs := make(chan error, len(ring)*rounds)

	for i := range ring {
		from, to := ring[i], ring[(i+1)%len(ring)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				_, err := eng.Transfer(ctx, ledger.TransferParams{From: from, To: to, Amount: 10})
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	for _, id := range ring {
		assert.Equal(t, int64(300), getBalance(t, eng, id).Available, "each node sent and received the same total")
	}

	total, err := eng.GetTotalBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(900), total.Available, "fee-free transfers conserve total funds")
	assert.Equal(t, int64(0), total.Frozen)

	stats, err := eng.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(45), stats.TransactionCount)
	assert.Equal(t, int64(450), stats.TransferVolume)
	assert.Equal(t, int64(0), stats.FeesBurned)
}
