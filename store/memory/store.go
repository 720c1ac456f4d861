// Package memory is the in-memory store. It backs tests and single-process
// embeddings that do not need durability.
//
// Atomicity is mutual exclusion: Atomic takes one mutex per participant
// account, in sorted id order, and holds them until the callback returns.
// Writes inside the boundary are immediate; there is no rollback.
//
// Every read returns a deep copy and every write stores one, so callers and
// the store never alias the same value.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/roboclear/ledger"
	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

type Store struct {
	mu     sync.RWMutex
	closed bool

	accounts     map[string]*types.Account
	accountOrder []string
	locks        map[string]*sync.Mutex

	transactions map[uuid.UUID]*types.Transaction
	txOrder      []uuid.UUID
	txByKey      map[string]uuid.UUID

	operations []*types.BalanceOperation

	escrows     map[uuid.UUID]*types.Escrow
	escrowOrder []uuid.UUID

	batches map[uuid.UUID]*types.BatchTransfer

	audit []*types.AuditEntry
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		accounts:     make(map[string]*types.Account),
		locks:        make(map[string]*sync.Mutex),
		transactions: make(map[uuid.UUID]*types.Transaction),
		txByKey:      make(map[string]uuid.UUID),
		escrows:      make(map[uuid.UUID]*types.Escrow),
		batches:      make(map[uuid.UUID]*types.BatchTransfer),
	}
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ledger.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) CreateAccount(_ context.Context, a *types.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; ok {
		return fmt.Errorf("CreateAccount: %s: %w", a.ID, ledger.ErrAccountExists)
	}
	s.accounts[a.ID] = cloneAccount(a)
	s.accountOrder = append(s.accountOrder, a.ID)
	return nil
}

func (s *Store) GetAccount(_ context.Context, id string) (*types.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("GetAccount: %s: %w", id, ledger.ErrAccountNotFound)
	}
	return cloneAccount(a), nil
}

func (s *Store) UpdateAccount(_ context.Context, a *types.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateAccountLocked(a)
}

// updateAccountLocked replaces every field except the balances, which move
// only through UpdateBalance, FreezeBalance and UnfreezeBalance.
func (s *Store) updateAccountLocked(a *types.Account) error {
	cur, ok := s.accounts[a.ID]
	if !ok {
		return fmt.Errorf("UpdateAccount: %s: %w", a.ID, ledger.ErrAccountNotFound)
	}
	next := cloneAccount(a)
	next.Balance = cur.Balance
	next.FrozenBalance = cur.FrozenBalance
	s.accounts[a.ID] = next
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteAccountLocked(id)
}

func (s *Store) deleteAccountLocked(id string) error {
	if _, ok := s.accounts[id]; !ok {
		return fmt.Errorf("DeleteAccount: %s: %w", id, ledger.ErrAccountNotFound)
	}
	delete(s.accounts, id)
	for i, cur := range s.accountOrder {
		if cur == id {
			s.accountOrder = append(s.accountOrder[:i], s.accountOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) CreateTransaction(_ context.Context, t *types.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createTransactionLocked(t)
}

func (s *Store) createTransactionLocked(t *types.Transaction) error {
	if _, ok := s.transactions[t.ID]; ok {
		return fmt.Errorf("CreateTransaction: %s: %w", t.ID, ledger.ErrConflict)
	}
	if key, ok := idemKey(t); ok {
		if _, dup := s.txByKey[key]; dup {
			return fmt.Errorf("CreateTransaction: %w", ledger.ErrDuplicateIdempotencyKey)
		}
		s.txByKey[key] = t.ID
	}
	s.transactions[t.ID] = cloneTransaction(t)
	s.txOrder = append(s.txOrder, t.ID)
	return nil
}

func (s *Store) UpdateTransaction(_ context.Context, t *types.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateTransactionLocked(t)
}

func (s *Store) updateTransactionLocked(t *types.Transaction) error {
	if _, ok := s.transactions[t.ID]; !ok {
		return fmt.Errorf("UpdateTransaction: %s: %w", t.ID, ledger.ErrTransactionNotFound)
	}
	s.transactions[t.ID] = cloneTransaction(t)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id uuid.UUID) (*types.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getTransactionLocked(id)
}

func (s *Store) getTransactionLocked(id uuid.UUID) (*types.Transaction, error) {
	t, ok := s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("GetTransaction: %s: %w", id, ledger.ErrTransactionNotFound)
	}
	return cloneTransaction(t), nil
}

func (s *Store) GetTransactionByIdempotencyKey(_ context.Context, key string) (*types.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.txByKey[key]
	if !ok {
		return nil, fmt.Errorf("GetTransactionByIdempotencyKey: %w", ledger.ErrTransactionNotFound)
	}
	return cloneTransaction(s.transactions[id]), nil
}

func (s *Store) GetEscrow(_ context.Context, id uuid.UUID) (*types.Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEscrowLocked(id)
}

func (s *Store) getEscrowLocked(id uuid.UUID) (*types.Escrow, error) {
	e, ok := s.escrows[id]
	if !ok {
		return nil, fmt.Errorf("GetEscrow: %s: %w", id, ledger.ErrEscrowNotFound)
	}
	return cloneEscrow(e), nil
}

func (s *Store) CreateBatch(_ context.Context, b *types.BatchTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[b.ID]; ok {
		return fmt.Errorf("CreateBatch: %s: %w", b.ID, ledger.ErrConflict)
	}
	s.batches[b.ID] = cloneBatch(b)
	return nil
}

func (s *Store) UpdateBatch(_ context.Context, b *types.BatchTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[b.ID]; !ok {
		return fmt.Errorf("UpdateBatch: %s: %w", b.ID, ledger.ErrBatchNotFound)
	}
	s.batches[b.ID] = cloneBatch(b)
	return nil
}

func (s *Store) GetBatch(_ context.Context, id uuid.UUID) (*types.BatchTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[id]
	if !ok {
		return nil, fmt.Errorf("GetBatch: %s: %w", id, ledger.ErrBatchNotFound)
	}
	return cloneBatch(b), nil
}

func (s *Store) AppendAudit(_ context.Context, e *types.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendAuditLocked(e)
	return nil
}

func (s *Store) appendAuditLocked(e *types.AuditEntry) {
	s.audit = append(s.audit, cloneAudit(e))
}

func idemKey(t *types.Transaction) (string, bool) {
	if t.IdempotencyKey == nil || *t.IdempotencyKey == "" {
		return "", false
	}
	return *t.IdempotencyKey, true
}
