package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

// ListAccounts returns accounts matching the filter, oldest first.
func (e *Engine) ListAccounts(ctx context.Context, f store.AccountFilter) ([]*types.Account, error) {
	accounts, err := e.store.ListAccounts(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	return accounts, nil
}

// GetTransaction returns a transaction by id.
func (e *Engine) GetTransaction(ctx context.Context, id uuid.UUID) (*types.Transaction, error) {
	txn, err := e.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return txn, nil
}

// GetTransactionByIdempotencyKey returns the transaction that claimed the
// given key. Callers typically reach for this after an IdempotencyError to
// recover the original result.
func (e *Engine) GetTransactionByIdempotencyKey(ctx context.Context, key string) (*types.Transaction, error) {
	if key == "" {
		return nil, fmt.Errorf("GetTransactionByIdempotencyKey: empty key: %w", ErrValidation)
	}
	txn, err := e.store.GetTransactionByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("GetTransactionByIdempotencyKey: %w", err)
	}
	return txn, nil
}

// ListTransactions returns transactions matching the filter, newest first.
func (e *Engine) ListTransactions(ctx context.Context, f store.TransactionFilter) ([]*types.Transaction, error) {
	txns, err := e.store.ListTransactions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return txns, nil
}

// ListOperations returns direct credit/debit operations matching the filter,
// newest first.
func (e *Engine) ListOperations(ctx context.Context, f store.OperationFilter) ([]*types.BalanceOperation, error) {
	ops, err := e.store.ListOperations(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("ListOperations: %w", err)
	}
	return ops, nil
}

// GetEscrow returns an escrow by id.
func (e *Engine) GetEscrow(ctx context.Context, id uuid.UUID) (*types.Escrow, error) {
	esc, err := e.store.GetEscrow(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetEscrow: %w", err)
	}
	return esc, nil
}

// ListEscrows returns escrows matching the filter, newest first.
func (e *Engine) ListEscrows(ctx context.Context, f store.EscrowFilter) ([]*types.Escrow, error) {
	escrows, err := e.store.ListEscrows(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("ListEscrows: %w", err)
	}
	return escrows, nil
}

// GetBatchTransfer returns a batch by id, including per-item outcomes.
func (e *Engine) GetBatchTransfer(ctx context.Context, id uuid.UUID) (*types.BatchTransfer, error) {
	batch, err := e.store.GetBatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetBatchTransfer: %w", err)
	}
	return batch, nil
}

// GetStatistics returns ledger-wide aggregate counts and totals.
func (e *Engine) GetStatistics(ctx context.Context) (*types.Statistics, error) {
	stats, err := e.store.Statistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetStatistics: %w", err)
	}
	return stats, nil
}

// GetAuditLog returns audit entries matching the filter in append order.
func (e *Engine) GetAuditLog(ctx context.Context, f store.AuditFilter) ([]*types.AuditEntry, error) {
	entries, err := e.store.ListAudit(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("GetAuditLog: %w", err)
	}
	return entries, nil
}
