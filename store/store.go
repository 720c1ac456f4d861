// Package store defines the storage boundary of the ledger engine.
//
// The engine never holds references into a store: every read returns a
// snapshot the caller owns, every write hands over a value the store copies
// or serializes. Implementations are free to keep indices, pools, or rows
// behind the boundary.
//
// Single-call methods are individually atomic. Cross-call atomicity exists
// only inside Atomic, which implementations provide in one of two ways:
// a real database transaction rolled back on error, or mutual exclusion
// over the participant accounts held for the duration of the callback.
// Callers that cannot rely on rollback (the engine) re-check every
// precondition inside the boundary before the first mutation.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/roboclear/ledger/types"
)

// Store is the persistence interface consumed by the engine. Implementations
// must return the ledger package's sentinel errors for missing entities and
// constraint violations so the engine can classify failures with errors.Is.
type Store interface {
	// Accounts
	CreateAccount(ctx context.Context, a *types.Account) error
	GetAccount(ctx context.Context, id string) (*types.Account, error)
	UpdateAccount(ctx context.Context, a *types.Account) error
	DeleteAccount(ctx context.Context, id string) error
	ListAccounts(ctx context.Context, f AccountFilter) ([]*types.Account, error)

	// Transactions. CreateTransaction enforces idempotency-key uniqueness:
	// inserting a second transaction carrying an already-present key fails
	// with ErrDuplicateIdempotencyKey and writes nothing.
	CreateTransaction(ctx context.Context, t *types.Transaction) error
	UpdateTransaction(ctx context.Context, t *types.Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*types.Transaction, error)
	GetTransactionByIdempotencyKey(ctx context.Context, key string) (*types.Transaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]*types.Transaction, error)

	// Balance operations (append-only)
	ListOperations(ctx context.Context, f OperationFilter) ([]*types.BalanceOperation, error)

	// Escrows. Creation and status transitions happen inside Atomic; the
	// store-level methods are read-only.
	GetEscrow(ctx context.Context, id uuid.UUID) (*types.Escrow, error)
	ListEscrows(ctx context.Context, f EscrowFilter) ([]*types.Escrow, error)

	// Batches
	CreateBatch(ctx context.Context, b *types.BatchTransfer) error
	UpdateBatch(ctx context.Context, b *types.BatchTransfer) error
	GetBatch(ctx context.Context, id uuid.UUID) (*types.BatchTransfer, error)

	// Audit (append-only)
	AppendAudit(ctx context.Context, e *types.AuditEntry) error
	ListAudit(ctx context.Context, f AuditFilter) ([]*types.AuditEntry, error)

	// Statistics aggregates counters over the whole ledger.
	Statistics(ctx context.Context) (*types.Statistics, error)

	// Atomic runs fn inside one transaction boundary covering the given
	// accounts. Two Atomic calls sharing any account id never interleave.
	// Implementations acquire accounts in sorted id order regardless of the
	// order given, so overlapping boundaries cannot deadlock. An error from
	// fn aborts the boundary; rollback-capable stores discard fn's writes,
	// exclusion-based stores keep them.
	Atomic(ctx context.Context, accountIDs []string, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Tx is the view of the store inside an Atomic boundary. Reads observe the
// boundary's own writes. All methods touch only state covered by the
// boundary's account set, except transaction, operation, and audit rows,
// which are keyed by their own ids.
type Tx interface {
	// Account returns a fresh snapshot of a participant account.
	Account(ctx context.Context, id string) (*types.Account, error)

	// UpdateBalance adjusts the available balance by delta and returns the
	// new value. A result below zero fails with ErrInsufficientFunds and
	// changes nothing.
	UpdateBalance(ctx context.Context, id string, delta int64) (int64, error)

	// FreezeBalance moves amount from available to frozen. Fails with
	// ErrInsufficientFunds when available < amount.
	FreezeBalance(ctx context.Context, id string, amount int64) error

	// UnfreezeBalance moves amount from frozen back to available. Fails
	// with ErrConflict when frozen < amount; the engine never requests
	// that, so hitting it means corruption.
	UnfreezeBalance(ctx context.Context, id string, amount int64) error

	// UpdateAccount persists non-balance fields of a participant account.
	UpdateAccount(ctx context.Context, a *types.Account) error

	// DeleteAccount removes a participant account.
	DeleteAccount(ctx context.Context, id string) error

	Transaction(ctx context.Context, id uuid.UUID) (*types.Transaction, error)
	CreateTransaction(ctx context.Context, t *types.Transaction) error
	UpdateTransaction(ctx context.Context, t *types.Transaction) error

	Escrow(ctx context.Context, id uuid.UUID) (*types.Escrow, error)
	CreateEscrow(ctx context.Context, e *types.Escrow) error

	// UpdateEscrowStatus moves an escrow out of PENDING. The transition is
	// compare-and-swap: when the stored status is no longer PENDING the
	// call fails with ErrEscrowNotPending and changes nothing. txID is set
	// on release and nil on refund.
	UpdateEscrowStatus(ctx context.Context, id uuid.UUID, to types.EscrowStatus, releasedAt time.Time, txID *uuid.UUID) error

	CreateOperation(ctx context.Context, op *types.BalanceOperation) error
	AppendAudit(ctx context.Context, e *types.AuditEntry) error
}

// AccountFilter narrows ListAccounts. Zero fields match everything; results
// order by creation time, oldest first.
type AccountFilter struct {
	Status types.AccountStatus
	Role   types.Role
	Tag    string
	Limit  int
	Offset int
}

// TransactionFilter narrows ListTransactions. AccountID matches either side
// of the transfer. Results order by creation time, newest first.
type TransactionFilter struct {
	AccountID string
	Type      types.TransactionType
	Status    types.TransactionStatus
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// OperationFilter narrows ListOperations. Results order by creation time,
// newest first.
type OperationFilter struct {
	AccountID string
	Direction types.OperationDirection
	Limit     int
	Offset    int
}

// EscrowFilter narrows ListEscrows. AccountID matches either party.
// ExpiredBefore, when non-zero, selects escrows whose expiry lies strictly
// before the given instant. Results order by creation time, newest first.
type EscrowFilter struct {
	AccountID     string
	Status        types.EscrowStatus
	ExpiredBefore time.Time
	Limit         int
}

// AuditFilter narrows ListAudit. Results order by append order, oldest
// first.
type AuditFilter struct {
	EntityID string
	Action   types.AuditAction
	Limit    int
}
