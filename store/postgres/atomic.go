package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roboclear/ledger"
	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

// pgTx adapts one database transaction to the store.Tx surface. Balance
// guards live in the UPDATE predicates, so a failed mutation writes nothing
// even before the rollback.
type pgTx struct {
	tx *sql.Tx
}

var _ store.Tx = (*pgTx)(nil)

func (t *pgTx) Account(ctx context.Context, id string) (*types.Account, error) {
	a, err := getAccount(ctx, t.tx, id)
	if err != nil {
		return nil, fmt.Errorf("Account: %w", err)
	}
	return a, nil
}

func (t *pgTx) UpdateBalance(ctx context.Context, id string, delta int64) (int64, error) {
	var balance int64
	err := t.tx.QueryRowContext(ctx,
		`UPDATE ledger_accounts
		SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1 AND balance + $2 >= 0
		RETURNING balance`,
		id, delta,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		if _, probeErr := getAccount(ctx, t.tx, id); probeErr != nil {
			return 0, fmt.Errorf("UpdateBalance: %w", probeErr)
		}
		return 0, fmt.Errorf("UpdateBalance: %s: %w", id, ledger.ErrInsufficientFunds)
	}
	if err != nil {
		return 0, fmt.Errorf("UpdateBalance: %w", err)
	}
	return balance, nil
}

func (t *pgTx) FreezeBalance(ctx context.Context, id string, amount int64) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE ledger_accounts
		SET balance = balance - $2, frozen_balance = frozen_balance + $2, updated_at = NOW()
		WHERE id = $1 AND balance >= $2`,
		id, amount,
	)
	if err != nil {
		return fmt.Errorf("FreezeBalance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("FreezeBalance: rows affected: %w", err)
	}
	if n == 0 {
		if _, probeErr := getAccount(ctx, t.tx, id); probeErr != nil {
			return fmt.Errorf("FreezeBalance: %w", probeErr)
		}
		return fmt.Errorf("FreezeBalance: %s: %w", id, ledger.ErrInsufficientFunds)
	}
	return nil
}

func (t *pgTx) UnfreezeBalance(ctx context.Context, id string, amount int64) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE ledger_accounts
		SET frozen_balance = frozen_balance - $2, balance = balance + $2, updated_at = NOW()
		WHERE id = $1 AND frozen_balance >= $2`,
		id, amount,
	)
	if err != nil {
		return fmt.Errorf("UnfreezeBalance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UnfreezeBalance: rows affected: %w", err)
	}
	if n == 0 {
		a, probeErr := getAccount(ctx, t.tx, id)
		if probeErr != nil {
			return fmt.Errorf("UnfreezeBalance: %w", probeErr)
		}
		return fmt.Errorf("UnfreezeBalance: %s: frozen %d < %d: %w",
			id, a.FrozenBalance, amount, ledger.ErrConflict)
	}
	return nil
}

func (t *pgTx) UpdateAccount(ctx context.Context, a *types.Account) error {
	if err := updateAccount(ctx, t.tx, a); err != nil {
		return fmt.Errorf("UpdateAccount: %w", err)
	}
	return nil
}

func (t *pgTx) DeleteAccount(ctx context.Context, id string) error {
	if err := deleteAccount(ctx, t.tx, id); err != nil {
		return fmt.Errorf("DeleteAccount: %w", err)
	}
	return nil
}

func (t *pgTx) Transaction(ctx context.Context, id uuid.UUID) (*types.Transaction, error) {
	txn, err := getTransaction(ctx, t.tx, id)
	if err != nil {
		return nil, fmt.Errorf("Transaction: %w", err)
	}
	return txn, nil
}

func (t *pgTx) CreateTransaction(ctx context.Context, txn *types.Transaction) error {
	if err := insertTransaction(ctx, t.tx, txn); err != nil {
		return fmt.Errorf("CreateTransaction: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateTransaction(ctx context.Context, txn *types.Transaction) error {
	if err := updateTransaction(ctx, t.tx, txn); err != nil {
		return fmt.Errorf("UpdateTransaction: %w", err)
	}
	return nil
}

func (t *pgTx) Escrow(ctx context.Context, id uuid.UUID) (*types.Escrow, error) {
	e, err := getEscrow(ctx, t.tx, id)
	if err != nil {
		return nil, fmt.Errorf("Escrow: %w", err)
	}
	return e, nil
}

func (t *pgTx) CreateEscrow(ctx context.Context, e *types.Escrow) error {
	if err := insertEscrow(ctx, t.tx, e); err != nil {
		return fmt.Errorf("CreateEscrow: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateEscrowStatus(ctx context.Context, id uuid.UUID, to types.EscrowStatus, releasedAt time.Time, txID *uuid.UUID) error {
	if err := updateEscrowStatus(ctx, t.tx, id, to, releasedAt, txID); err != nil {
		return fmt.Errorf("UpdateEscrowStatus: %w", err)
	}
	return nil
}

func (t *pgTx) CreateOperation(ctx context.Context, op *types.BalanceOperation) error {
	if err := insertOperation(ctx, t.tx, op); err != nil {
		return fmt.Errorf("CreateOperation: %w", err)
	}
	return nil
}

func (t *pgTx) AppendAudit(ctx context.Context, e *types.AuditEntry) error {
	if err := insertAudit(ctx, t.tx, e); err != nil {
		return fmt.Errorf("AppendAudit: %w", err)
	}
	return nil
}
