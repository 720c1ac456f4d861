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

// EscrowParams holds funds from one account pending a condition.
type EscrowParams struct {
	From   string
	To     string
	Amount int64
	// Condition describes what the release is contingent on. Free text;
	// the engine stores it and nothing more.
	Condition   string
	ExpiresAt   *time.Time
	InitiatedBy string
}

// CreateEscrow freezes Amount out of the sender's available balance and
// opens a PENDING escrow toward the recipient. The funds stay on the sender,
// unspendable, until ReleaseEscrow pays them out or RefundEscrow returns
// them.
func (e *Engine) CreateEscrow(ctx context.Context, p EscrowParams) (*types.Escrow, error) {
	log := e.log(ctx)

	if p.Amount <= 0 {
		return nil, fmt.Errorf("CreateEscrow: %w", ErrInvalidAmount)
	}
	if p.From == "" || p.To == "" {
		return nil, fmt.Errorf("CreateEscrow: missing account id: %w", ErrValidation)
	}
	if p.From == p.To {
		return nil, fmt.Errorf("CreateEscrow: %w", ErrSelfTransfer)
	}
	if p.ExpiresAt != nil && p.ExpiresAt.Before(time.Now().UTC()) {
		return nil, fmt.Errorf("CreateEscrow: expiry in the past: %w", ErrValidation)
	}

	from, err := e.store.GetAccount(ctx, p.From)
	if err != nil {
		return nil, fmt.Errorf("CreateEscrow: sender: %w", err)
	}
	if !from.Active() {
		return nil, fmt.Errorf("CreateEscrow: sender is %s: %w", from.Status, ErrAccountNotActive)
	}
	to, err := e.store.GetAccount(ctx, p.To)
	if err != nil {
		return nil, fmt.Errorf("CreateEscrow: recipient: %w", err)
	}

	initiator, err := e.resolveInitiator(ctx, p.InitiatedBy, from)
	if err != nil {
		return nil, fmt.Errorf("CreateEscrow: %w", err)
	}
	// Opening an escrow is the committing half of a transfer, so the
	// transfer gate decides who may hold whose funds.
	ok, err := e.policy.CanTransfer(ctx, from, to, initiator, p.Amount, types.TransactionTypeEscrowRelease)
	if err != nil {
		return nil, fmt.Errorf("CreateEscrow: policy: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("CreateEscrow: %w",
			&ForbiddenError{Action: "create_escrow", ActorID: initiator.ID})
	}

	esc := &types.Escrow{
		ID:        uuid.New(),
		From:      p.From,
		To:        p.To,
		Amount:    p.Amount,
		Status:    types.EscrowStatusPending,
		Condition: p.Condition,
		ExpiresAt: p.ExpiresAt,
		CreatedAt: time.Now().UTC(),
	}

	err = e.store.Atomic(ctx, []string{p.From}, func(tx store.Tx) error {
		sender, err := tx.Account(ctx, p.From)
		if err != nil {
			return err
		}
		if !sender.Active() {
			return fmt.Errorf("sender is %s: %w", sender.Status, ErrAccountNotActive)
		}
		if sender.Balance < p.Amount {
			return &InsufficientFundsError{
				AccountID: p.From,
				Required:  p.Amount,
				Available: sender.Balance,
			}
		}

		if err := tx.FreezeBalance(ctx, p.From, p.Amount); err != nil {
			return fmt.Errorf("freeze: %w", err)
		}
		if err := tx.CreateEscrow(ctx, esc); err != nil {
			return fmt.Errorf("create escrow: %w", err)
		}

		return e.audit(ctx, tx, types.AuditEntry{
			Action:     types.AuditEscrowCreated,
			EntityType: types.EntityEscrow,
			EntityID:   esc.ID.String(),
			ActorID:    initiator.ID,
			After: map[string]any{
				"from":      esc.From,
				"to":        esc.To,
				"amount":    esc.Amount,
				"condition": esc.Condition,
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("CreateEscrow: %w", err)
	}

	e.emit(ctx, events.Event{Kind: events.EscrowCreated, Escrow: esc})

	log.Info("escrow created",
		"escrow_id", esc.ID,
		"from", esc.From,
		"to", esc.To,
		"amount", esc.Amount,
	)
	return esc, nil
}

// ReleaseEscrow pays a PENDING escrow out to its recipient and records the
// payout as a COMPLETED transaction of type ESCROW_RELEASE. Expired escrows
// cannot be released, only refunded.
func (e *Engine) ReleaseEscrow(ctx context.Context, id uuid.UUID, initiatedBy string) (*types.Escrow, error) {
	esc, err := e.store.GetEscrow(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ReleaseEscrow: %w", err)
	}
	if esc.Status != types.EscrowStatusPending {
		return nil, fmt.Errorf("ReleaseEscrow: %w", &EscrowStateError{EscrowID: id, Status: esc.Status})
	}
	if esc.Expired(time.Now().UTC()) {
		return nil, fmt.Errorf("ReleaseEscrow: %w", ErrEscrowExpired)
	}

	initiator, err := e.escrowInitiator(ctx, esc, initiatedBy)
	if err != nil {
		return nil, fmt.Errorf("ReleaseEscrow: %w", err)
	}
	ok, err := e.policy.CanReleaseEscrow(ctx, esc, initiator)
	if err != nil {
		return nil, fmt.Errorf("ReleaseEscrow: policy: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("ReleaseEscrow: %w",
			&ForbiddenError{Action: "release_escrow", ActorID: initiator.ID})
	}

	now := time.Now().UTC()
	txn := &types.Transaction{
		ID:          uuid.New(),
		From:        esc.From,
		To:          esc.To,
		Amount:      esc.Amount,
		Type:        types.TransactionTypeEscrowRelease,
		Status:      types.TransactionStatusCompleted,
		Meta:        map[string]string{types.MetaEscrowID: esc.ID.String()},
		InitiatedBy: initiator.ID,
		CreatedAt:   now,
		CompletedAt: &now,
	}

	err = e.store.Atomic(ctx, []string{esc.From, esc.To}, func(tx store.Tx) error {
		cur, err := tx.Escrow(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status != types.EscrowStatusPending {
			return &EscrowStateError{EscrowID: id, Status: cur.Status}
		}
		if cur.Expired(now) {
			return ErrEscrowExpired
		}
		// Both accounts must exist before anything moves; after these
		// reads the boundary keeps them from being deleted.
		if _, err := tx.Account(ctx, cur.From); err != nil {
			return err
		}
		if _, err := tx.Account(ctx, cur.To); err != nil {
			return err
		}

		if err := tx.UpdateEscrowStatus(ctx, id, types.EscrowStatusReleased, now, &txn.ID); err != nil {
			return err
		}
		if err := tx.CreateTransaction(ctx, txn); err != nil {
			return fmt.Errorf("create release transaction: %w", err)
		}
		if err := tx.UnfreezeBalance(ctx, cur.From, cur.Amount); err != nil {
			return fmt.Errorf("unfreeze: %w", err)
		}
		if _, err := tx.UpdateBalance(ctx, cur.From, -cur.Amount); err != nil {
			return fmt.Errorf("debit sender: %w", err)
		}
		if _, err := tx.UpdateBalance(ctx, cur.To, cur.Amount); err != nil {
			return fmt.Errorf("credit recipient: %w", err)
		}

		return e.audit(ctx, tx, types.AuditEntry{
			Action:     types.AuditEscrowReleased,
			EntityType: types.EntityEscrow,
			EntityID:   id.String(),
			ActorID:    initiator.ID,
			Before:     map[string]any{"status": types.EscrowStatusPending},
			After:      map[string]any{"status": types.EscrowStatusReleased, "transaction_id": txn.ID.String()},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("ReleaseEscrow: %w", err)
	}

	esc.Status = types.EscrowStatusReleased
	esc.ReleasedAt = &now
	esc.TransactionID = &txn.ID

	e.emit(ctx, events.Event{Kind: events.EscrowReleased, Escrow: esc, Transaction: txn})

	e.log(ctx).Info("escrow released",
		"escrow_id", esc.ID,
		"transaction_id", txn.ID,
		"amount", esc.Amount,
	)
	return esc, nil
}

// RefundEscrow returns a PENDING escrow's held funds to the sender. No
// transaction is recorded: no value ever left the sender, it only moved
// between that account's own balances. Refund is legal on expired escrows;
// it is how held funds come back after the condition lapses.
func (e *Engine) RefundEscrow(ctx context.Context, id uuid.UUID, initiatedBy string) (*types.Escrow, error) {
	esc, err := e.store.GetEscrow(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("RefundEscrow: %w", err)
	}
	if esc.Status != types.EscrowStatusPending {
		return nil, fmt.Errorf("RefundEscrow: %w", &EscrowStateError{EscrowID: id, Status: esc.Status})
	}

	initiator, err := e.escrowInitiator(ctx, esc, initiatedBy)
	if err != nil {
		return nil, fmt.Errorf("RefundEscrow: %w", err)
	}
	ok, err := e.policy.CanRefundEscrow(ctx, esc, initiator)
	if err != nil {
		return nil, fmt.Errorf("RefundEscrow: policy: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("RefundEscrow: %w",
			&ForbiddenError{Action: "refund_escrow", ActorID: initiator.ID})
	}

	esc, err = e.refundEscrow(ctx, esc, initiator.ID)
	if err != nil {
		return nil, fmt.Errorf("RefundEscrow: %w", err)
	}
	return esc, nil
}

// refundEscrow is the policy-free core shared with the expiry sweep.
func (e *Engine) refundEscrow(ctx context.Context, esc *types.Escrow, actorID string) (*types.Escrow, error) {
	now := time.Now().UTC()

	err := e.store.Atomic(ctx, []string{esc.From}, func(tx store.Tx) error {
		cur, err := tx.Escrow(ctx, esc.ID)
		if err != nil {
			return err
		}
		if cur.Status != types.EscrowStatusPending {
			return &EscrowStateError{EscrowID: esc.ID, Status: cur.Status}
		}

		if err := tx.UpdateEscrowStatus(ctx, esc.ID, types.EscrowStatusRefunded, now, nil); err != nil {
			return err
		}
		if err := tx.UnfreezeBalance(ctx, cur.From, cur.Amount); err != nil {
			return fmt.Errorf("unfreeze: %w", err)
		}

		return e.audit(ctx, tx, types.AuditEntry{
			Action:     types.AuditEscrowRefunded,
			EntityType: types.EntityEscrow,
			EntityID:   esc.ID.String(),
			ActorID:    actorID,
			Before:     map[string]any{"status": types.EscrowStatusPending},
			After:      map[string]any{"status": types.EscrowStatusRefunded},
		})
	})
	if err != nil {
		return nil, err
	}

	esc.Status = types.EscrowStatusRefunded
	esc.ReleasedAt = &now

	e.emit(ctx, events.Event{Kind: events.EscrowRefunded, Escrow: esc})

	e.log(ctx).Info("escrow refunded",
		"escrow_id", esc.ID,
		"account_id", esc.From,
		"amount", esc.Amount,
	)
	return esc, nil
}

// escrowInitiator resolves initiatedBy for escrow operations, defaulting to
// the funding account.
func (e *Engine) escrowInitiator(ctx context.Context, esc *types.Escrow, initiatedBy string) (*types.Account, error) {
	if initiatedBy == "" {
		initiatedBy = esc.From
	}
	initiator, err := e.store.GetAccount(ctx, initiatedBy)
	if err != nil {
		return nil, fmt.Errorf("escrowInitiator: %w", err)
	}
	return initiator, nil
}
