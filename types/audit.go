package types

import (
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditAccountCreated   AuditAction = "ACCOUNT_CREATED"
	AuditAccountUpdated   AuditAction = "ACCOUNT_UPDATED"
	AuditAccountDeleted   AuditAction = "ACCOUNT_DELETED"
	AuditAccountFrozen    AuditAction = "ACCOUNT_FROZEN"
	AuditAccountUnfrozen  AuditAction = "ACCOUNT_UNFROZEN"
	AuditBalanceCredited  AuditAction = "BALANCE_CREDITED"
	AuditBalanceDebited   AuditAction = "BALANCE_DEBITED"
	AuditTransferExecuted AuditAction = "TRANSFER_EXECUTED"
	AuditTransferRefunded AuditAction = "TRANSFER_REFUNDED"
	AuditEscrowCreated    AuditAction = "ESCROW_CREATED"
	AuditEscrowReleased   AuditAction = "ESCROW_RELEASED"
	AuditEscrowRefunded   AuditAction = "ESCROW_REFUNDED"
	AuditBatchExecuted    AuditAction = "BATCH_EXECUTED"
)

type EntityType string

const (
	EntityAccount     EntityType = "ACCOUNT"
	EntityTransaction EntityType = "TRANSACTION"
	EntityEscrow      EntityType = "ESCROW"
	EntityBatch       EntityType = "BATCH"
)

// AuditEntry is an append-only record of a state change. Before and After
// carry whatever snapshot fields the operation considered relevant; they are
// stored as given and never interpreted.
type AuditEntry struct {
	ID         uuid.UUID
	Action     AuditAction
	EntityType EntityType
	EntityID   string
	ActorID    string
	Before     map[string]any
	After      map[string]any
	CreatedAt  time.Time
}
