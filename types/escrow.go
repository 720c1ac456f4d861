package types

import (
	"time"

	"github.com/google/uuid"
)

type EscrowStatus string

const (
	EscrowStatusPending  EscrowStatus = "PENDING"
	EscrowStatusReleased EscrowStatus = "RELEASED"
	EscrowStatusRefunded EscrowStatus = "REFUNDED"
)

// Escrow holds funds frozen on the sender until released to the recipient or
// returned. PENDING is the only non-terminal status; RELEASED and REFUNDED
// are final.
type Escrow struct {
	ID     uuid.UUID
	From   string
	To     string
	Amount int64
	Status EscrowStatus
	// Condition is a human-readable description of what the release is
	// contingent on. The engine stores it verbatim and never evaluates it.
	Condition string
	ExpiresAt *time.Time
	CreatedAt time.Time
	// ReleasedAt is set when the escrow leaves PENDING, on release and on
	// refund both.
	ReleasedAt *time.Time
	// TransactionID links the ESCROW_RELEASE transaction. Set on release
	// only; refunds produce no transaction.
	TransactionID *uuid.UUID
}

// Expired reports whether the escrow has an expiry in the past at t.
func (e *Escrow) Expired(t time.Time) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.Before(t)
}
