// Package authz gates ledger operations on the initiating account. Policies
// are pure predicates: they inspect the accounts involved and answer
// allow/deny, they never touch storage or balances.
package authz

import (
	"context"

	"github.com/roboclear/ledger/types"
)

// Policy decides whether an initiator may perform an operation. A false
// return with nil error is a denial; a non-nil error means the decision
// itself could not be made. Implementations must not mutate the accounts
// they are given.
type Policy interface {
	// CanTransfer gates moving amount from one account to another,
	// including the transfers executed under refunds and batches.
	CanTransfer(ctx context.Context, from, to, initiator *types.Account, amount int64, txType types.TransactionType) (bool, error)

	// CanChangeRoles gates replacing an account's role set.
	CanChangeRoles(ctx context.Context, target, initiator *types.Account, roles types.RoleSet) (bool, error)

	// CanCredit gates direct balance credits.
	CanCredit(ctx context.Context, target, initiator *types.Account, amount int64) (bool, error)

	// CanDebit gates direct balance debits.
	CanDebit(ctx context.Context, target, initiator *types.Account, amount int64) (bool, error)

	// CanReleaseEscrow gates paying a held escrow out to its recipient.
	CanReleaseEscrow(ctx context.Context, esc *types.Escrow, initiator *types.Account) (bool, error)

	// CanRefundEscrow gates returning a held escrow to its sender.
	CanRefundEscrow(ctx context.Context, esc *types.Escrow, initiator *types.Account) (bool, error)
}

// RolePolicy is the role-based default:
//
//   - transfer: ADMIN and OPERATOR initiators always pass; otherwise the
//     initiator must be the sender, the sender must hold CONSUMER and the
//     recipient must hold PROVIDER
//   - credit: the target itself, ADMIN, or OPERATOR
//   - debit: ADMIN only
//   - role change: ADMIN only
//   - escrow release/refund: either escrow party, ADMIN, or OPERATOR
type RolePolicy struct{}

var _ Policy = RolePolicy{}

func (RolePolicy) CanTransfer(_ context.Context, from, to, initiator *types.Account, _ int64, _ types.TransactionType) (bool, error) {
	if initiator.Roles.HasAny(types.RoleAdmin, types.RoleOperator) {
		return true, nil
	}
	if initiator.ID != from.ID {
		return false, nil
	}
	return from.Roles.Has(types.RoleConsumer) && to.Roles.Has(types.RoleProvider), nil
}

func (RolePolicy) CanChangeRoles(_ context.Context, _, initiator *types.Account, _ types.RoleSet) (bool, error) {
	return initiator.Roles.Has(types.RoleAdmin), nil
}

func (RolePolicy) CanCredit(_ context.Context, target, initiator *types.Account, _ int64) (bool, error) {
	if initiator.ID == target.ID {
		return true, nil
	}
	return initiator.Roles.HasAny(types.RoleAdmin, types.RoleOperator), nil
}

func (RolePolicy) CanDebit(_ context.Context, _, initiator *types.Account, _ int64) (bool, error) {
	return initiator.Roles.Has(types.RoleAdmin), nil
}

func (RolePolicy) CanReleaseEscrow(_ context.Context, esc *types.Escrow, initiator *types.Account) (bool, error) {
	if initiator.ID == esc.From || initiator.ID == esc.To {
		return true, nil
	}
	return initiator.Roles.HasAny(types.RoleAdmin, types.RoleOperator), nil
}

func (RolePolicy) CanRefundEscrow(_ context.Context, esc *types.Escrow, initiator *types.Account) (bool, error) {
	if initiator.ID == esc.From || initiator.ID == esc.To {
		return true, nil
	}
	return initiator.Roles.HasAny(types.RoleAdmin, types.RoleOperator), nil
}

// AllowAll approves everything. Meant for tests and single-tenant embeddings
// where the caller is fully trusted.
type AllowAll struct{}

var _ Policy = AllowAll{}

func (AllowAll) CanTransfer(context.Context, *types.Account, *types.Account, *types.Account, int64, types.TransactionType) (bool, error) {
	return true, nil
}

func (AllowAll) CanChangeRoles(context.Context, *types.Account, *types.Account, types.RoleSet) (bool, error) {
	return true, nil
}

func (AllowAll) CanCredit(context.Context, *types.Account, *types.Account, int64) (bool, error) {
	return true, nil
}

func (AllowAll) CanDebit(context.Context, *types.Account, *types.Account, int64) (bool, error) {
	return true, nil
}

func (AllowAll) CanReleaseEscrow(context.Context, *types.Escrow, *types.Account) (bool, error) {
	return true, nil
}

func (AllowAll) CanRefundEscrow(context.Context, *types.Escrow, *types.Account) (bool, error) {
	return true, nil
}
