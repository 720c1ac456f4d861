package ledger

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/roboclear/ledger/events"
	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

// TransferParams describes a transfer of Amount from one account to
// another. Fee handling: nil FeeOverride asks the configured calculator,
// a non-nil value is charged as given. The fee is debited from the sender
// on top of Amount and credited to no account.
type TransferParams struct {
	From   string
	To     string
	Amount int64
	// Type defaults to TRANSFER. The engine treats the value as opaque
	// except for fee calculation.
	Type        types.TransactionType
	FeeOverride *int64
	Meta        map[string]string
	InitiatedBy string
	// IdempotencyKey makes the transfer replay-safe: a second call with
	// the same key fails with an IdempotencyError naming the transaction
	// the first call produced, and moves no funds.
	IdempotencyKey string
}

// Transfer moves funds between two accounts.
//
// The protocol: idempotency lookup, validation, authorization, limits, fee,
// then a PENDING transaction record and TRANSFER_INITIATED event before any
// balance changes, then the debit and credit inside one atomic boundary.
// Success marks the transaction COMPLETED; a failure after the PENDING
// record marks it FAILED and leaves it as durable evidence of the attempt.
// No compensating reversal is performed at this layer.
func (e *Engine) Transfer(ctx context.Context, p TransferParams) (*types.Transaction, error) {
	txn, totalDebit, err := e.prepareTransfer(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}

	txn, err = e.commitTransfer(ctx, txn, totalDebit, nil)
	if err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}

	e.log(ctx).Info("transfer completed",
		"transaction_id", txn.ID,
		"from", txn.From,
		"to", txn.To,
		"amount", txn.Amount,
		"fee", txn.Fee,
	)
	return txn, nil
}

// prepareTransfer runs every precondition that needs no boundary: the
// idempotency lookup, input validation, account status checks, policy,
// limits, and the fee. It returns the PENDING transaction ready to claim.
func (e *Engine) prepareTransfer(ctx context.Context, p TransferParams) (*types.Transaction, int64, error) {
	if p.IdempotencyKey != "" {
		orig, err := e.store.GetTransactionByIdempotencyKey(ctx, p.IdempotencyKey)
		if err == nil {
			return nil, 0, &IdempotencyError{Key: p.IdempotencyKey, TransactionID: orig.ID}
		}
		if !errors.Is(err, ErrTransactionNotFound) {
			return nil, 0, fmt.Errorf("prepareTransfer: %w", err)
		}
	}

	if p.Amount <= 0 {
		return nil, 0, fmt.Errorf("prepareTransfer: %w", ErrInvalidAmount)
	}
	if p.From == "" || p.To == "" {
		return nil, 0, fmt.Errorf("prepareTransfer: missing account id: %w", ErrValidation)
	}
	if p.From == p.To {
		return nil, 0, fmt.Errorf("prepareTransfer: %w", ErrSelfTransfer)
	}

	from, err := e.store.GetAccount(ctx, p.From)
	if err != nil {
		return nil, 0, fmt.Errorf("prepareTransfer: sender: %w", err)
	}
	to, err := e.store.GetAccount(ctx, p.To)
	if err != nil {
		return nil, 0, fmt.Errorf("prepareTransfer: recipient: %w", err)
	}
	if !from.Active() {
		return nil, 0, fmt.Errorf("prepareTransfer: sender is %s: %w", from.Status, ErrAccountNotActive)
	}
	if !to.Active() {
		return nil, 0, fmt.Errorf("prepareTransfer: recipient is %s: %w", to.Status, ErrAccountNotActive)
	}

	txType := p.Type
	if txType == "" {
		txType = types.TransactionTypeTransfer
	}

	initiator, err := e.resolveInitiator(ctx, p.InitiatedBy, from)
	if err != nil {
		return nil, 0, fmt.Errorf("prepareTransfer: %w", err)
	}
	ok, err := e.policy.CanTransfer(ctx, from, to, initiator, p.Amount, txType)
	if err != nil {
		return nil, 0, fmt.Errorf("prepareTransfer: policy: %w", err)
	}
	if !ok {
		return nil, 0, &ForbiddenError{Action: "transfer", ActorID: initiator.ID}
	}

	if max, capped := from.MaxTransfer(); capped && p.Amount > max {
		return nil, 0, &LimitExceededError{
			AccountID: from.ID,
			Limit:     "max_transfer_amount",
			Value:     max,
			Attempted: p.Amount,
		}
	}

	fee := int64(0)
	if p.FeeOverride != nil {
		if *p.FeeOverride < 0 {
			return nil, 0, fmt.Errorf("prepareTransfer: negative fee override: %w", ErrValidation)
		}
		fee = *p.FeeOverride
	} else {
		fee, err = e.fees.Calculate(ctx, p.Amount, txType, from, to)
		if err != nil {
			return nil, 0, fmt.Errorf("prepareTransfer: fee: %w", err)
		}
		if fee < 0 {
			return nil, 0, fmt.Errorf("prepareTransfer: calculator returned negative fee: %w", ErrValidation)
		}
	}
	totalDebit := p.Amount + fee

	if floor, floored := from.MinBalanceFloor(); floored && from.Balance-totalDebit < floor {
		return nil, 0, &LimitExceededError{
			AccountID: from.ID,
			Limit:     "min_balance",
			Value:     floor,
			Attempted: from.Balance - totalDebit,
		}
	}

	if from.Balance < totalDebit {
		return nil, 0, &InsufficientFundsError{
			AccountID: from.ID,
			Required:  totalDebit,
			Available: from.Balance,
		}
	}

	now := time.Now().UTC()
	txn := &types.Transaction{
		ID:          uuid.New(),
		From:        p.From,
		To:          p.To,
		Amount:      p.Amount,
		Fee:         fee,
		Type:        txType,
		Status:      types.TransactionStatusPending,
		Meta:        maps.Clone(p.Meta),
		InitiatedBy: initiator.ID,
		CreatedAt:   now,
	}
	if p.IdempotencyKey != "" {
		key := p.IdempotencyKey
		txn.IdempotencyKey = &key
	}
	return txn, totalDebit, nil
}

// commitTransfer claims the transaction record and performs the balance
// move. The PENDING insert doubles as the idempotency claim: the key is
// unique on the transaction, so a concurrent duplicate loses at the insert,
// before it can touch any balance. extra, when set, runs inside the
// boundary after re-verification and before the mutation.
func (e *Engine) commitTransfer(ctx context.Context, txn *types.Transaction, totalDebit int64, extra func(tx store.Tx) error) (*types.Transaction, error) {
	if err := e.store.CreateTransaction(ctx, txn); err != nil {
		if errors.Is(err, ErrDuplicateIdempotencyKey) && txn.IdempotencyKey != nil {
			if orig, lookupErr := e.store.GetTransactionByIdempotencyKey(ctx, *txn.IdempotencyKey); lookupErr == nil {
				return nil, &IdempotencyError{Key: *txn.IdempotencyKey, TransactionID: orig.ID}
			}
		}
		return nil, fmt.Errorf("commitTransfer: %w", err)
	}

	e.emit(ctx, events.Event{Kind: events.TransferInitiated, Transaction: txn})

	err := e.store.Atomic(ctx, []string{txn.From, txn.To}, func(tx store.Tx) error {
		from, err := tx.Account(ctx, txn.From)
		if err != nil {
			return err
		}
		to, err := tx.Account(ctx, txn.To)
		if err != nil {
			return err
		}
		if !from.Active() {
			return fmt.Errorf("sender is %s: %w", from.Status, ErrAccountNotActive)
		}
		if !to.Active() {
			return fmt.Errorf("recipient is %s: %w", to.Status, ErrAccountNotActive)
		}
		if from.Balance < totalDebit {
			return &InsufficientFundsError{
				AccountID: from.ID,
				Required:  totalDebit,
				Available: from.Balance,
			}
		}

		if extra != nil {
			if err := extra(tx); err != nil {
				return err
			}
		}

		if _, err := tx.UpdateBalance(ctx, txn.From, -totalDebit); err != nil {
			return fmt.Errorf("debit sender: %w", err)
		}
		if _, err := tx.UpdateBalance(ctx, txn.To, txn.Amount); err != nil {
			return fmt.Errorf("credit recipient: %w", err)
		}

		now := time.Now().UTC()
		txn.Status = types.TransactionStatusCompleted
		txn.CompletedAt = &now
		if err := tx.UpdateTransaction(ctx, txn); err != nil {
			return fmt.Errorf("complete transaction: %w", err)
		}

		return e.audit(ctx, tx, types.AuditEntry{
			Action:     transferAuditAction(txn.Type),
			EntityType: types.EntityTransaction,
			EntityID:   txn.ID.String(),
			ActorID:    txn.InitiatedBy,
			After: map[string]any{
				"from":   txn.From,
				"to":     txn.To,
				"amount": txn.Amount,
				"fee":    txn.Fee,
				"type":   txn.Type,
			},
		})
	})
	if err != nil {
		e.failTransfer(ctx, txn, err)
		return nil, err
	}

	e.emit(ctx, events.Event{Kind: events.TransferCompleted, Transaction: txn})
	return txn, nil
}

// failTransfer records the failure on the transaction so the attempt stays
// visible. This runs outside the boundary; in rollback stores the COMPLETED
// update was discarded and the claimed PENDING row is what gets marked.
func (e *Engine) failTransfer(ctx context.Context, txn *types.Transaction, cause error) {
	txn.Status = types.TransactionStatusFailed
	txn.CompletedAt = nil
	if txn.Meta == nil {
		txn.Meta = make(map[string]string)
	}
	txn.Meta[types.MetaError] = cause.Error()

	if err := e.store.UpdateTransaction(ctx, txn); err != nil {
		e.log(ctx).Error("failed to record transfer failure",
			"transaction_id", txn.ID,
			"error", err,
		)
	}

	e.emit(ctx, events.Event{
		Kind:        events.TransferFailed,
		Transaction: txn,
		Error:       cause.Error(),
	})
}

func transferAuditAction(t types.TransactionType) types.AuditAction {
	if t == types.TransactionTypeRefund {
		return types.AuditTransferRefunded
	}
	return types.AuditTransferExecuted
}

// RefundParams reverses a completed transfer.
type RefundParams struct {
	TransactionID uuid.UUID
	Reason        string
	InitiatedBy   string
}

// Refund executes a new reverse transfer of the original amount, recipient
// back to sender, under type REFUND, and marks the original REFUNDED with a
// cross-link in both directions. Only COMPLETED transactions are
// refundable, and only once; the original's fee is not returned.
func (e *Engine) Refund(ctx context.Context, p RefundParams) (*types.Transaction, error) {
	orig, err := e.store.GetTransaction(ctx, p.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("Refund: %w", err)
	}
	if orig.Status != types.TransactionStatusCompleted {
		return nil, fmt.Errorf("Refund: original is %s: %w", orig.Status, ErrNotRefundable)
	}

	meta := map[string]string{types.MetaRefunds: orig.ID.String()}
	if p.Reason != "" {
		meta["reason"] = p.Reason
	}

	refund, totalDebit, err := e.prepareTransfer(ctx, TransferParams{
		From:        orig.To,
		To:          orig.From,
		Amount:      orig.Amount,
		Type:        types.TransactionTypeRefund,
		Meta:        meta,
		InitiatedBy: p.InitiatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("Refund: %w", err)
	}

	refund, err = e.commitTransfer(ctx, refund, totalDebit, func(tx store.Tx) error {
		// Re-read under the boundary: a concurrent refund of the same
		// transaction loses here, not at the pre-check.
		cur, err := tx.Transaction(ctx, orig.ID)
		if err != nil {
			return err
		}
		if cur.Status != types.TransactionStatusCompleted {
			return fmt.Errorf("original is %s: %w", cur.Status, ErrNotRefundable)
		}
		if cur.Meta == nil {
			cur.Meta = make(map[string]string)
		}
		cur.Status = types.TransactionStatusRefunded
		cur.Meta[types.MetaRefundedBy] = refund.ID.String()
		return tx.UpdateTransaction(ctx, cur)
	})
	if err != nil {
		return nil, fmt.Errorf("Refund: %w", err)
	}

	e.log(ctx).Info("transfer refunded",
		"transaction_id", orig.ID,
		"refund_transaction_id", refund.ID,
		"amount", refund.Amount,
	)
	return refund, nil
}
