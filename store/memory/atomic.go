package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roboclear/ledger"
	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

// Atomic acquires one mutex per participant account, in sorted id order so
// overlapping boundaries cannot deadlock, and holds them all until fn
// returns. There is no rollback: whatever fn wrote before failing stays
// written.
func (s *Store) Atomic(ctx context.Context, accountIDs []string, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("Atomic: %w", err)
	}

	ids := slices.Clone(accountIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	for _, id := range ids {
		s.lockFor(id).Lock()
	}
	defer func() {
		for i := len(ids) - 1; i >= 0; i-- {
			s.lockFor(ids[i]).Unlock()
		}
	}()

	return fn(&memTx{s: s})
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = new(sync.Mutex)
		s.locks[id] = l
	}
	return l
}

type memTx struct {
	s *Store
}

var _ store.Tx = (*memTx)(nil)

func (t *memTx) Account(_ context.Context, id string) (*types.Account, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	a, ok := t.s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("Account: %s: %w", id, ledger.ErrAccountNotFound)
	}
	return cloneAccount(a), nil
}

func (t *memTx) UpdateBalance(_ context.Context, id string, delta int64) (int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	a, ok := t.s.accounts[id]
	if !ok {
		return 0, fmt.Errorf("UpdateBalance: %s: %w", id, ledger.ErrAccountNotFound)
	}
	next := a.Balance + delta
	if next < 0 {
		return 0, fmt.Errorf("UpdateBalance: %s: %w", id, ledger.ErrInsufficientFunds)
	}
	a.Balance = next
	a.UpdatedAt = time.Now().UTC()
	return next, nil
}

func (t *memTx) FreezeBalance(_ context.Context, id string, amount int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	a, ok := t.s.accounts[id]
	if !ok {
		return fmt.Errorf("FreezeBalance: %s: %w", id, ledger.ErrAccountNotFound)
	}
	if a.Balance < amount {
		return fmt.Errorf("FreezeBalance: %s: %w", id, ledger.ErrInsufficientFunds)
	}
	a.Balance -= amount
	a.FrozenBalance += amount
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *memTx) UnfreezeBalance(_ context.Context, id string, amount int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	a, ok := t.s.accounts[id]
	if !ok {
		return fmt.Errorf("UnfreezeBalance: %s: %w", id, ledger.ErrAccountNotFound)
	}
	if a.FrozenBalance < amount {
		return fmt.Errorf("UnfreezeBalance: %s: frozen %d < %d: %w",
			id, a.FrozenBalance, amount, ledger.ErrConflict)
	}
	a.FrozenBalance -= amount
	a.Balance += amount
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *memTx) UpdateAccount(_ context.Context, a *types.Account) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.updateAccountLocked(a)
}

func (t *memTx) DeleteAccount(_ context.Context, id string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.deleteAccountLocked(id)
}

func (t *memTx) Transaction(_ context.Context, id uuid.UUID) (*types.Transaction, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.s.getTransactionLocked(id)
}

func (t *memTx) CreateTransaction(_ context.Context, tr *types.Transaction) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.createTransactionLocked(tr)
}

func (t *memTx) UpdateTransaction(_ context.Context, tr *types.Transaction) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.updateTransactionLocked(tr)
}

func (t *memTx) Escrow(_ context.Context, id uuid.UUID) (*types.Escrow, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.s.getEscrowLocked(id)
}

func (t *memTx) CreateEscrow(_ context.Context, e *types.Escrow) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if _, ok := t.s.escrows[e.ID]; ok {
		return fmt.Errorf("CreateEscrow: %s: %w", e.ID, ledger.ErrConflict)
	}
	t.s.escrows[e.ID] = cloneEscrow(e)
	t.s.escrowOrder = append(t.s.escrowOrder, e.ID)
	return nil
}

func (t *memTx) UpdateEscrowStatus(_ context.Context, id uuid.UUID, to types.EscrowStatus, releasedAt time.Time, txID *uuid.UUID) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	e, ok := t.s.escrows[id]
	if !ok {
		return fmt.Errorf("UpdateEscrowStatus: %s: %w", id, ledger.ErrEscrowNotFound)
	}
	if e.Status != types.EscrowStatusPending {
		return fmt.Errorf("UpdateEscrowStatus: %s is %s: %w", id, e.Status, ledger.ErrEscrowNotPending)
	}
	e.Status = to
	e.ReleasedAt = &releasedAt
	if txID != nil {
		v := *txID
		e.TransactionID = &v
	}
	return nil
}

func (t *memTx) CreateOperation(_ context.Context, op *types.BalanceOperation) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.operations = append(t.s.operations, cloneOperation(op))
	return nil
}

func (t *memTx) AppendAudit(_ context.Context, e *types.AuditEntry) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.appendAuditLocked(e)
	return nil
}
