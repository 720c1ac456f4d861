// Package fees computes transfer fees. Calculators are pure: the engine
// calls them once per transfer, before any balance changes, and debits the
// result from the sender on top of the transfer amount.
package fees

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/roboclear/ledger/types"
)

// Calculator maps a transfer to its fee in minor units. Implementations must
// not mutate the accounts they are given.
type Calculator interface {
	Calculate(ctx context.Context, amount int64, txType types.TransactionType, from, to *types.Account) (int64, error)
}

// Free charges nothing. The engine default: conservation holds exactly
// unless an embedding opts into fees.
type Free struct{}

var _ Calculator = Free{}

func (Free) Calculate(context.Context, int64, types.TransactionType, *types.Account, *types.Account) (int64, error) {
	return 0, nil
}

// Rate is one fee rule: a flat component plus a proportional component in
// basis points (250 = 2.5%).
type Rate struct {
	Flat        int64
	BasisPoints int64
}

var tenThousand = decimal.NewFromInt(10_000)

func (r Rate) apply(amount int64) int64 {
	fee := r.Flat
	if r.BasisPoints > 0 {
		pct := decimal.NewFromInt(amount).
			Mul(decimal.NewFromInt(r.BasisPoints)).
			Div(tenThousand).
			Round(0)
		fee += pct.IntPart()
	}
	if fee < 0 {
		fee = 0
	}
	return fee
}

// Schedule charges by transaction type, falling back to Default for types
// without an override. REFUND and ESCROW_RELEASE are always free: both move
// value the original transfer already paid for.
type Schedule struct {
	Default Rate
	PerType map[types.TransactionType]Rate
}

var _ Calculator = &Schedule{}

func (s *Schedule) Calculate(_ context.Context, amount int64, txType types.TransactionType, _, _ *types.Account) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("Calculate: non-positive amount %d", amount)
	}

	switch txType {
	case types.TransactionTypeRefund, types.TransactionTypeEscrowRelease:
		return 0, nil
	}

	rate := s.Default
	if r, ok := s.PerType[txType]; ok {
		rate = r
	}
	return rate.apply(amount), nil
}
