// Package types defines the entities managed by the ledger engine.
package types

import "time"

type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusFrozen    AccountStatus = "FROZEN"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
	AccountStatusClosed    AccountStatus = "CLOSED"
)

// Limits are optional per-account constraints enforced on outgoing transfers.
// A nil field means unconstrained.
type Limits struct {
	// MaxTransferAmount caps the amount of a single outgoing transfer,
	// fees excluded.
	MaxTransferAmount *int64
	// MinBalance is the floor the available balance may not drop below
	// after a debit, fees included.
	MinBalance *int64
}

// Account is a machine participant in the ledger. Balance and FrozenBalance
// are minor units and never negative; funds held in escrow live in
// FrozenBalance until released or returned.
type Account struct {
	ID            string
	Name          string
	Balance       int64
	FrozenBalance int64
	Roles         RoleSet
	Status        AccountStatus
	Limits        *Limits
	Metadata      map[string]string
	Tags          []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Active reports whether the account can participate in operations.
func (a *Account) Active() bool {
	return a.Status == AccountStatusActive
}

// MaxTransfer returns the single-transfer cap, or false when unconstrained.
func (a *Account) MaxTransfer() (int64, bool) {
	if a.Limits == nil || a.Limits.MaxTransferAmount == nil {
		return 0, false
	}
	return *a.Limits.MaxTransferAmount, true
}

// MinBalanceFloor returns the post-debit balance floor, or false when
// unconstrained.
func (a *Account) MinBalanceFloor() (int64, bool) {
	if a.Limits == nil || a.Limits.MinBalance == nil {
		return 0, false
	}
	return *a.Limits.MinBalance, true
}

// Balance is a point-in-time view of an account's funds.
type Balance struct {
	Available int64
	Frozen    int64
}

// Total returns available plus frozen funds.
func (b Balance) Total() int64 {
	return b.Available + b.Frozen
}
