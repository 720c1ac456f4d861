package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roboclear/ledger/types"
)

var (
	// Lookup errors
	ErrAccountNotFound     = errors.New("ledger: account not found")
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
	ErrEscrowNotFound      = errors.New("ledger: escrow not found")
	ErrBatchNotFound       = errors.New("ledger: batch not found")

	// Request errors
	ErrValidation    = errors.New("ledger: invalid request")
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
	ErrSelfTransfer  = errors.New("ledger: sender and recipient are the same account")
	ErrForbidden     = errors.New("ledger: forbidden")

	// Account state errors
	ErrAccountNotActive = errors.New("ledger: account not active")
	ErrAccountClosed    = errors.New("ledger: account closed")
	ErrAccountNotEmpty  = errors.New("ledger: account balance not zero")
	ErrAccountExists    = errors.New("ledger: account already exists")

	// Funds errors
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrLimitExceeded     = errors.New("ledger: transfer limit exceeded")

	// Transfer errors
	ErrNotRefundable           = errors.New("ledger: transaction not refundable")
	ErrDuplicateIdempotencyKey = errors.New("ledger: duplicate idempotency key")

	// Escrow errors
	ErrEscrowNotPending = errors.New("ledger: escrow not pending")
	ErrEscrowExpired    = errors.New("ledger: escrow expired")

	// Store errors
	ErrConflict    = errors.New("ledger: concurrent modification conflict")
	ErrStoreClosed = errors.New("ledger: store closed")
)

// InsufficientFundsError reports a debit that would take an account below
// zero, or below its configured floor. Matches ErrInsufficientFunds.
type InsufficientFundsError struct {
	AccountID string
	Required  int64
	Available int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("ledger: insufficient funds on %s: required %d, available %d",
		e.AccountID, e.Required, e.Available)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// ForbiddenError reports an authorization denial. Matches ErrForbidden.
type ForbiddenError struct {
	Action  string
	ActorID string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("ledger: %s forbidden for %s", e.Action, e.ActorID)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// LimitExceededError reports a transfer rejected by an account limit before
// any balance changed. Matches ErrLimitExceeded.
type LimitExceededError struct {
	AccountID string
	// Limit names which constraint tripped: "max_transfer_amount" or
	// "min_balance".
	Limit     string
	Value     int64
	Attempted int64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("ledger: %s limit on %s: limit %d, attempted %d",
		e.Limit, e.AccountID, e.Value, e.Attempted)
}

func (e *LimitExceededError) Unwrap() error { return ErrLimitExceeded }

// EscrowStateError reports an operation against an escrow that already left
// PENDING. Matches ErrEscrowNotPending.
type EscrowStateError struct {
	EscrowID uuid.UUID
	Status   types.EscrowStatus
}

func (e *EscrowStateError) Error() string {
	return fmt.Sprintf("ledger: escrow %s is %s", e.EscrowID, e.Status)
}

func (e *EscrowStateError) Unwrap() error { return ErrEscrowNotPending }

// IdempotencyError reports a key that was already used. TransactionID points
// at the transaction the key originally produced. Matches
// ErrDuplicateIdempotencyKey.
type IdempotencyError struct {
	Key           string
	TransactionID uuid.UUID
}

func (e *IdempotencyError) Error() string {
	return fmt.Sprintf("ledger: idempotency key %q already used by transaction %s",
		e.Key, e.TransactionID)
}

func (e *IdempotencyError) Unwrap() error { return ErrDuplicateIdempotencyKey }

// IsNotFound reports whether err is any of the lookup sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrEscrowNotFound) ||
		errors.Is(err, ErrBatchNotFound)
}
