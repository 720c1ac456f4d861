package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roboclear/ledger/events"
	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

// CreditParams funds an account directly, outside any transfer.
type CreditParams struct {
	AccountID   string
	Amount      int64
	Reason      string
	InitiatedBy string
}

// Credit adds funds to an account's available balance and records a CREDIT
// operation with the resulting balance. The target may be in any state but
// CLOSED; crediting frozen or suspended accounts is allowed so that owed
// funds are never bounced.
func (e *Engine) Credit(ctx context.Context, p CreditParams) (*types.BalanceOperation, error) {
	log := e.log(ctx)

	if p.Amount <= 0 {
		return nil, fmt.Errorf("Credit: %w", ErrInvalidAmount)
	}

	target, err := e.store.GetAccount(ctx, p.AccountID)
	if err != nil {
		return nil, fmt.Errorf("Credit: %w", err)
	}
	if target.Status == types.AccountStatusClosed {
		return nil, fmt.Errorf("Credit: %w", ErrAccountClosed)
	}

	initiator, err := e.resolveInitiator(ctx, p.InitiatedBy, target)
	if err != nil {
		return nil, fmt.Errorf("Credit: %w", err)
	}
	ok, err := e.policy.CanCredit(ctx, target, initiator, p.Amount)
	if err != nil {
		return nil, fmt.Errorf("Credit: policy: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("Credit: %w", &ForbiddenError{Action: "credit", ActorID: initiator.ID})
	}

	op, err := e.applyBalanceOp(ctx, target.ID, p.Amount, types.OperationCredit, p.Reason, initiator.ID)
	if err != nil {
		return nil, fmt.Errorf("Credit: %w", err)
	}

	e.emit(ctx, events.Event{Kind: events.BalanceCredited, Operation: op})

	log.Info("balance credited",
		"account_id", op.AccountID,
		"amount", op.Amount,
		"balance_after", op.BalanceAfter,
	)
	return op, nil
}

// DebitParams removes funds from an account directly, outside any transfer.
type DebitParams struct {
	AccountID   string
	Amount      int64
	Reason      string
	InitiatedBy string
}

// Debit removes funds from an account's available balance and records a
// DEBIT operation with the resulting balance. The target must be ACTIVE and
// hold at least the amount.
func (e *Engine) Debit(ctx context.Context, p DebitParams) (*types.BalanceOperation, error) {
	log := e.log(ctx)

	if p.Amount <= 0 {
		return nil, fmt.Errorf("Debit: %w", ErrInvalidAmount)
	}

	target, err := e.store.GetAccount(ctx, p.AccountID)
	if err != nil {
		return nil, fmt.Errorf("Debit: %w", err)
	}

	initiator, err := e.resolveInitiator(ctx, p.InitiatedBy, target)
	if err != nil {
		return nil, fmt.Errorf("Debit: %w", err)
	}
	ok, err := e.policy.CanDebit(ctx, target, initiator, p.Amount)
	if err != nil {
		return nil, fmt.Errorf("Debit: policy: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("Debit: %w", &ForbiddenError{Action: "debit", ActorID: initiator.ID})
	}

	op, err := e.applyBalanceOp(ctx, target.ID, -p.Amount, types.OperationDebit, p.Reason, initiator.ID)
	if err != nil {
		return nil, fmt.Errorf("Debit: %w", err)
	}

	e.emit(ctx, events.Event{Kind: events.BalanceDebited, Operation: op})

	log.Info("balance debited",
		"account_id", op.AccountID,
		"amount", op.Amount,
		"balance_after", op.BalanceAfter,
	)
	return op, nil
}

// applyBalanceOp runs the mutation inside the account's boundary: status and
// funds are re-verified against a fresh read, the balance moves, and the
// operation record snapshots the result.
func (e *Engine) applyBalanceOp(ctx context.Context, accountID string, delta int64, dir types.OperationDirection, reason, actorID string) (*types.BalanceOperation, error) {
	var op *types.BalanceOperation
	err := e.store.Atomic(ctx, []string{accountID}, func(tx store.Tx) error {
		account, err := tx.Account(ctx, accountID)
		if err != nil {
			return err
		}
		if dir == types.OperationCredit {
			if account.Status == types.AccountStatusClosed {
				return ErrAccountClosed
			}
		} else {
			if !account.Active() {
				return fmt.Errorf("account is %s: %w", account.Status, ErrAccountNotActive)
			}
			if account.Balance < -delta {
				return &InsufficientFundsError{
					AccountID: accountID,
					Required:  -delta,
					Available: account.Balance,
				}
			}
		}

		newBalance, err := tx.UpdateBalance(ctx, accountID, delta)
		if err != nil {
			return err
		}

		op = &types.BalanceOperation{
			ID:           uuid.New(),
			AccountID:    accountID,
			Direction:    dir,
			Amount:       delta,
			BalanceAfter: newBalance,
			Reason:       reason,
			InitiatedBy:  actorID,
			CreatedAt:    time.Now().UTC(),
		}
		if op.Amount < 0 {
			op.Amount = -op.Amount
		}
		if err := tx.CreateOperation(ctx, op); err != nil {
			return err
		}

		return e.audit(ctx, tx, types.AuditEntry{
			Action:     balanceAuditAction(dir),
			EntityType: types.EntityAccount,
			EntityID:   accountID,
			ActorID:    actorID,
			Before:     map[string]any{"balance": newBalance - delta},
			After:      map[string]any{"balance": newBalance},
		})
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

func balanceAuditAction(dir types.OperationDirection) types.AuditAction {
	if dir == types.OperationCredit {
		return types.AuditBalanceCredited
	}
	return types.AuditBalanceDebited
}
