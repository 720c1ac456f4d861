package types

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType categorizes a transfer. The set is open: callers may pass
// their own values, these are the ones the engine itself produces or treats
// specially.
type TransactionType string

const (
	TransactionTypeTransfer      TransactionType = "TRANSFER"
	TransactionTypeTaskPayment   TransactionType = "TASK_PAYMENT"
	TransactionTypeServiceFee    TransactionType = "SERVICE_FEE"
	TransactionTypeRefund        TransactionType = "REFUND"
	TransactionTypeEscrowRelease TransactionType = "ESCROW_RELEASE"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusRefunded  TransactionStatus = "REFUNDED"
)

// Meta keys the engine writes itself.
const (
	// MetaError holds the failure reason on FAILED transactions.
	MetaError = "error"
	// MetaRefunds holds, on a REFUND transaction, the id of the transaction
	// it reverses.
	MetaRefunds = "refunds"
	// MetaRefundedBy holds, on a REFUNDED transaction, the id of the REFUND
	// transaction that reversed it.
	MetaRefundedBy = "refunded_by"
	// MetaEscrowID holds, on an ESCROW_RELEASE transaction, the id of the
	// escrow that produced it.
	MetaEscrowID = "escrow_id"
	// MetaBatchID holds the id of the batch a transfer was executed under.
	MetaBatchID = "batch_id"
)

// Transaction is the journal record of a transfer between two accounts.
// Amount is what the recipient receives; Fee is debited from the sender on
// top of Amount and credited to no account.
type Transaction struct {
	ID             uuid.UUID
	From           string
	To             string
	Amount         int64
	Fee            int64
	Type           TransactionType
	Status         TransactionStatus
	Meta           map[string]string
	IdempotencyKey *string
	InitiatedBy    string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// Terminal reports whether the transaction can no longer change status,
// other than COMPLETED moving to REFUNDED.
func (t *Transaction) Terminal() bool {
	switch t.Status {
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusRefunded:
		return true
	}
	return false
}
