package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roboclear/ledger/events"
	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

// CreateAccountParams describes a new account. Zero values are usable: an
// id is assigned, the role set defaults to CONSUMER, and the opening
// balance falls back to the configured default.
type CreateAccountParams struct {
	// ID is caller-assignable so machine identifiers from an external
	// registry can be reused. Left empty, a random uuid string is assigned.
	ID             string
	Name           string
	InitialBalance *int64
	Roles          types.RoleSet
	Limits         *types.Limits
	Metadata       map[string]string
	Tags           []string
	InitiatedBy    string
}

// CreateAccount registers a new account with status ACTIVE.
func (e *Engine) CreateAccount(ctx context.Context, p CreateAccountParams) (*types.Account, error) {
	log := e.log(ctx)

	balance := e.cfg.DefaultAccountBalance
	if p.InitialBalance != nil {
		balance = *p.InitialBalance
	}
	if balance < 0 {
		return nil, fmt.Errorf("CreateAccount: negative initial balance: %w", ErrValidation)
	}

	roles := p.Roles
	if len(roles) == 0 {
		roles = types.RoleSet{types.RoleConsumer}
	}
	if !roles.Valid() {
		return nil, fmt.Errorf("CreateAccount: unknown role: %w", ErrValidation)
	}

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	account := &types.Account{
		ID:        id,
		Name:      p.Name,
		Balance:   balance,
		Roles:     roles,
		Status:    types.AccountStatusActive,
		Limits:    p.Limits,
		Metadata:  p.Metadata,
		Tags:      p.Tags,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.store.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	if err := e.audit(ctx, e.store, types.AuditEntry{
		Action:     types.AuditAccountCreated,
		EntityType: types.EntityAccount,
		EntityID:   account.ID,
		ActorID:    actorOrSelf(p.InitiatedBy, account.ID),
		After:      map[string]any{"name": account.Name, "balance": account.Balance, "roles": roles},
	}); err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	e.emit(ctx, events.Event{Kind: events.AccountCreated, Account: account})

	log.Info("account created",
		"account_id", account.ID,
		"balance", account.Balance,
	)
	return account, nil
}

// GetAccount returns a snapshot of the account.
func (e *Engine) GetAccount(ctx context.Context, id string) (*types.Account, error) {
	account, err := e.store.GetAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return account, nil
}

// UpdateAccountParams carries partial updates: nil fields stay unchanged.
// Clearing limits is done with an empty Limits struct, clearing metadata or
// tags with an empty non-nil value.
type UpdateAccountParams struct {
	ID          string
	Name        *string
	Roles       types.RoleSet
	Limits      *types.Limits
	Metadata    map[string]string
	Tags        []string
	InitiatedBy string
}

// UpdateAccount applies the given changes. Changing roles requires policy
// approval; everything else is ungated.
func (e *Engine) UpdateAccount(ctx context.Context, p UpdateAccountParams) (*types.Account, error) {
	log := e.log(ctx)

	if p.Roles != nil && !p.Roles.Valid() {
		return nil, fmt.Errorf("UpdateAccount: unknown role: %w", ErrValidation)
	}

	current, err := e.store.GetAccount(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("UpdateAccount: %w", err)
	}

	if p.Roles != nil {
		initiator, err := e.resolveInitiator(ctx, p.InitiatedBy, current)
		if err != nil {
			return nil, fmt.Errorf("UpdateAccount: %w", err)
		}
		ok, err := e.policy.CanChangeRoles(ctx, current, initiator, p.Roles)
		if err != nil {
			return nil, fmt.Errorf("UpdateAccount: policy: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("UpdateAccount: %w",
				&ForbiddenError{Action: "change_roles", ActorID: initiator.ID})
		}
	}

	var updated *types.Account
	err = e.store.Atomic(ctx, []string{p.ID}, func(tx store.Tx) error {
		account, err := tx.Account(ctx, p.ID)
		if err != nil {
			return err
		}

		before := map[string]any{"name": account.Name, "roles": account.Roles}
		if p.Name != nil {
			account.Name = *p.Name
		}
		if p.Roles != nil {
			account.Roles = p.Roles
		}
		if p.Limits != nil {
			account.Limits = p.Limits
		}
		if p.Metadata != nil {
			account.Metadata = p.Metadata
		}
		if p.Tags != nil {
			account.Tags = p.Tags
		}
		account.UpdatedAt = time.Now().UTC()

		if err := tx.UpdateAccount(ctx, account); err != nil {
			return err
		}
		if err := e.audit(ctx, tx, types.AuditEntry{
			Action:     types.AuditAccountUpdated,
			EntityType: types.EntityAccount,
			EntityID:   account.ID,
			ActorID:    actorOrSelf(p.InitiatedBy, account.ID),
			Before:     before,
			After:      map[string]any{"name": account.Name, "roles": account.Roles},
		}); err != nil {
			return err
		}
		updated = account
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("UpdateAccount: %w", err)
	}

	e.emit(ctx, events.Event{Kind: events.AccountUpdated, Account: updated})

	log.Info("account updated", "account_id", updated.ID)
	return updated, nil
}

// FreezeAccount moves an ACTIVE account to FROZEN, blocking it from all
// balance-moving operations until unfrozen.
func (e *Engine) FreezeAccount(ctx context.Context, id, initiatedBy string) (*types.Account, error) {
	account, err := e.transition(ctx, id, initiatedBy, types.AccountStatusFrozen)
	if err != nil {
		return nil, fmt.Errorf("FreezeAccount: %w", err)
	}
	e.emit(ctx, events.Event{Kind: events.AccountFrozen, Account: account})
	e.log(ctx).Info("account frozen", "account_id", id)
	return account, nil
}

// UnfreezeAccount moves a FROZEN account back to ACTIVE.
func (e *Engine) UnfreezeAccount(ctx context.Context, id, initiatedBy string) (*types.Account, error) {
	account, err := e.transition(ctx, id, initiatedBy, types.AccountStatusActive)
	if err != nil {
		return nil, fmt.Errorf("UnfreezeAccount: %w", err)
	}
	e.emit(ctx, events.Event{Kind: events.AccountUnfrozen, Account: account})
	e.log(ctx).Info("account unfrozen", "account_id", id)
	return account, nil
}

// SuspendAccount moves an ACTIVE or FROZEN account to SUSPENDED. There is
// no unsuspend operation; suspension is lifted administratively by closing
// the account or not at all.
func (e *Engine) SuspendAccount(ctx context.Context, id, initiatedBy string) (*types.Account, error) {
	account, err := e.transition(ctx, id, initiatedBy, types.AccountStatusSuspended)
	if err != nil {
		return nil, fmt.Errorf("SuspendAccount: %w", err)
	}
	e.emit(ctx, events.Event{Kind: events.AccountUpdated, Account: account})
	e.log(ctx).Info("account suspended", "account_id", id)
	return account, nil
}

// CloseAccount moves an account to CLOSED, terminally. Both balances must
// be exactly zero.
func (e *Engine) CloseAccount(ctx context.Context, id, initiatedBy string) (*types.Account, error) {
	account, err := e.transition(ctx, id, initiatedBy, types.AccountStatusClosed)
	if err != nil {
		return nil, fmt.Errorf("CloseAccount: %w", err)
	}
	e.emit(ctx, events.Event{Kind: events.AccountUpdated, Account: account})
	e.log(ctx).Info("account closed", "account_id", id)
	return account, nil
}

// transition performs a status change under the account's boundary so the
// balance preconditions cannot race concurrent transfers.
func (e *Engine) transition(ctx context.Context, id, initiatedBy string, to types.AccountStatus) (*types.Account, error) {
	var updated *types.Account
	err := e.store.Atomic(ctx, []string{id}, func(tx store.Tx) error {
		account, err := tx.Account(ctx, id)
		if err != nil {
			return err
		}
		if err := validTransition(account, to); err != nil {
			return err
		}

		before := account.Status
		account.Status = to
		account.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateAccount(ctx, account); err != nil {
			return err
		}

		if err := e.audit(ctx, tx, types.AuditEntry{
			Action:     statusAuditAction(to),
			EntityType: types.EntityAccount,
			EntityID:   id,
			ActorID:    actorOrSelf(initiatedBy, id),
			Before:     map[string]any{"status": before},
			After:      map[string]any{"status": to},
		}); err != nil {
			return err
		}
		updated = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func validTransition(a *types.Account, to types.AccountStatus) error {
	if a.Status == types.AccountStatusClosed {
		return ErrAccountClosed
	}
	switch to {
	case types.AccountStatusFrozen:
		if a.Status != types.AccountStatusActive {
			return fmt.Errorf("cannot freeze %s account: %w", a.Status, ErrConflict)
		}
	case types.AccountStatusActive:
		if a.Status != types.AccountStatusFrozen {
			return fmt.Errorf("cannot unfreeze %s account: %w", a.Status, ErrConflict)
		}
	case types.AccountStatusSuspended:
		if a.Status == types.AccountStatusSuspended {
			return fmt.Errorf("already suspended: %w", ErrConflict)
		}
	case types.AccountStatusClosed:
		if a.Balance != 0 || a.FrozenBalance != 0 {
			return fmt.Errorf("balance %d frozen %d: %w", a.Balance, a.FrozenBalance, ErrAccountNotEmpty)
		}
	}
	return nil
}

func statusAuditAction(to types.AccountStatus) types.AuditAction {
	switch to {
	case types.AccountStatusFrozen:
		return types.AuditAccountFrozen
	case types.AccountStatusActive:
		return types.AuditAccountUnfrozen
	default:
		return types.AuditAccountUpdated
	}
}

// DeleteAccount removes an account entirely. Like CloseAccount it requires
// both balances to be zero; unlike it, the record is gone afterwards.
func (e *Engine) DeleteAccount(ctx context.Context, id, initiatedBy string) error {
	log := e.log(ctx)

	err := e.store.Atomic(ctx, []string{id}, func(tx store.Tx) error {
		account, err := tx.Account(ctx, id)
		if err != nil {
			return err
		}
		if account.Balance != 0 || account.FrozenBalance != 0 {
			return fmt.Errorf("balance %d frozen %d: %w",
				account.Balance, account.FrozenBalance, ErrAccountNotEmpty)
		}
		if err := tx.DeleteAccount(ctx, id); err != nil {
			return err
		}
		return e.audit(ctx, tx, types.AuditEntry{
			Action:     types.AuditAccountDeleted,
			EntityType: types.EntityAccount,
			EntityID:   id,
			ActorID:    actorOrSelf(initiatedBy, id),
			Before:     map[string]any{"name": account.Name, "status": account.Status},
		})
	})
	if err != nil {
		return fmt.Errorf("DeleteAccount: %w", err)
	}

	e.emit(ctx, events.Event{Kind: events.AccountDeleted, Account: &types.Account{ID: id}})

	log.Info("account deleted", "account_id", id)
	return nil
}

// GetBalance returns the account's available and frozen funds.
func (e *Engine) GetBalance(ctx context.Context, id string) (types.Balance, error) {
	account, err := e.store.GetAccount(ctx, id)
	if err != nil {
		return types.Balance{}, fmt.Errorf("GetBalance: %w", err)
	}
	return types.Balance{Available: account.Balance, Frozen: account.FrozenBalance}, nil
}

// GetTotalBalance sums available and frozen funds over every account.
func (e *Engine) GetTotalBalance(ctx context.Context) (types.Balance, error) {
	stats, err := e.store.Statistics(ctx)
	if err != nil {
		return types.Balance{}, fmt.Errorf("GetTotalBalance: %w", err)
	}
	return types.Balance{Available: stats.TotalAvailable, Frozen: stats.TotalFrozen}, nil
}

func actorOrSelf(initiatedBy, subject string) string {
	if initiatedBy == "" {
		return subject
	}
	return initiatedBy
}
