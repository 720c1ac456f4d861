// Package events is the in-process notification bus for ledger state
// changes. Events are scoped to a single engine instance and are not
// persisted or replayed.
package events

import (
	"time"

	"github.com/roboclear/ledger/types"
)

type Kind string

const (
	AccountCreated  Kind = "ACCOUNT_CREATED"
	AccountUpdated  Kind = "ACCOUNT_UPDATED"
	AccountDeleted  Kind = "ACCOUNT_DELETED"
	AccountFrozen   Kind = "ACCOUNT_FROZEN"
	AccountUnfrozen Kind = "ACCOUNT_UNFROZEN"

	BalanceCredited Kind = "BALANCE_CREDITED"
	BalanceDebited  Kind = "BALANCE_DEBITED"

	TransferInitiated Kind = "TRANSFER_INITIATED"
	TransferCompleted Kind = "TRANSFER_COMPLETED"
	TransferFailed    Kind = "TRANSFER_FAILED"

	EscrowCreated  Kind = "ESCROW_CREATED"
	EscrowReleased Kind = "ESCROW_RELEASED"
	EscrowRefunded Kind = "ESCROW_REFUNDED"

	BatchStarted   Kind = "BATCH_STARTED"
	BatchCompleted Kind = "BATCH_COMPLETED"
)

// Wildcard subscribes a handler to every event kind.
const Wildcard Kind = "*"

// Event carries the payload of a single state change. Only the fields
// relevant to the kind are set; handlers must treat payloads as read-only.
type Event struct {
	Kind Kind
	At   time.Time

	Account     *types.Account
	Operation   *types.BalanceOperation
	Transaction *types.Transaction
	Escrow      *types.Escrow
	Batch       *types.BatchTransfer

	// Error is the failure reason on TRANSFER_FAILED.
	Error string
}
