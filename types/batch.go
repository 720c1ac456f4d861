package types

import (
	"time"

	"github.com/google/uuid"
)

type BatchStatus string

const (
	BatchStatusProcessing BatchStatus = "PROCESSING"
	BatchStatusCompleted  BatchStatus = "COMPLETED"
	BatchStatusPartial    BatchStatus = "PARTIAL"
	BatchStatusFailed     BatchStatus = "FAILED"
)

type BatchItemStatus string

const (
	// BatchItemStatusSkipped is the zero value: the item was never
	// attempted, because a stop-on-error batch halted before reaching it.
	BatchItemStatusSkipped   BatchItemStatus = ""
	BatchItemStatusCompleted BatchItemStatus = "COMPLETED"
	BatchItemStatusFailed    BatchItemStatus = "FAILED"
)

// BatchItem is one transfer within a batch: the request fields as submitted,
// plus the outcome once the item has been attempted.
type BatchItem struct {
	From   string
	To     string
	Amount int64
	Type   TransactionType
	Meta   map[string]string

	Status        BatchItemStatus
	TransactionID *uuid.UUID
	Error         string
}

// BatchTransfer groups transfers executed sequentially in submission order.
// Items are never re-ordered; their positions are stable across retrieval.
type BatchTransfer struct {
	ID    uuid.UUID
	Items []BatchItem
	// StopOnError halts execution at the first failed item, leaving the
	// remainder unattempted.
	StopOnError  bool
	Status       BatchStatus
	SuccessCount int
	FailedCount  int
	// TotalAmount is the sum of requested item amounts, independent of
	// outcome.
	TotalAmount int64
	InitiatedBy string
	CreatedAt   time.Time
	CompletedAt *time.Time
}
