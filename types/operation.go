package types

import (
	"time"

	"github.com/google/uuid"
)

type OperationDirection string

const (
	OperationCredit OperationDirection = "CREDIT"
	OperationDebit  OperationDirection = "DEBIT"
)

// BalanceOperation records a single-account balance mutation issued through
// Credit or Debit. BalanceAfter snapshots the available balance at the moment
// the operation applied, so the history reads without replay. Write-once.
type BalanceOperation struct {
	ID           uuid.UUID
	AccountID    string
	Direction    OperationDirection
	Amount       int64
	BalanceAfter int64
	Reason       string
	InitiatedBy  string
	CreatedAt    time.Time
}
