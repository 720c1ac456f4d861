package memory

import (
	"context"
	"slices"

	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

func (s *Store) ListAccounts(_ context.Context, f store.AccountFilter) ([]*types.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Account
	skipped := 0
	for _, id := range s.accountOrder {
		a := s.accounts[id]
		if !matchAccount(a, f) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, cloneAccount(a))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func matchAccount(a *types.Account, f store.AccountFilter) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Role != "" && !a.Roles.Has(f.Role) {
		return false
	}
	if f.Tag != "" && !slices.Contains(a.Tags, f.Tag) {
		return false
	}
	return true
}

func (s *Store) ListTransactions(_ context.Context, f store.TransactionFilter) ([]*types.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Transaction
	skipped := 0
	for i := len(s.txOrder) - 1; i >= 0; i-- {
		t := s.transactions[s.txOrder[i]]
		if !matchTransaction(t, f) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, cloneTransaction(t))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func matchTransaction(t *types.Transaction, f store.TransactionFilter) bool {
	if f.AccountID != "" && t.From != f.AccountID && t.To != f.AccountID {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if !f.Since.IsZero() && t.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !t.CreatedAt.Before(f.Until) {
		return false
	}
	return true
}

func (s *Store) ListOperations(_ context.Context, f store.OperationFilter) ([]*types.BalanceOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.BalanceOperation
	skipped := 0
	for i := len(s.operations) - 1; i >= 0; i-- {
		op := s.operations[i]
		if f.AccountID != "" && op.AccountID != f.AccountID {
			continue
		}
		if f.Direction != "" && op.Direction != f.Direction {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, cloneOperation(op))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ListEscrows(_ context.Context, f store.EscrowFilter) ([]*types.Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Escrow
	for i := len(s.escrowOrder) - 1; i >= 0; i-- {
		e := s.escrows[s.escrowOrder[i]]
		if !matchEscrow(e, f) {
			continue
		}
		out = append(out, cloneEscrow(e))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func matchEscrow(e *types.Escrow, f store.EscrowFilter) bool {
	if f.AccountID != "" && e.From != f.AccountID && e.To != f.AccountID {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if !f.ExpiredBefore.IsZero() {
		if e.ExpiresAt == nil || !e.ExpiresAt.Before(f.ExpiredBefore) {
			return false
		}
	}
	return true
}

func (s *Store) ListAudit(_ context.Context, f store.AuditFilter) ([]*types.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.AuditEntry
	for _, e := range s.audit {
		if f.EntityID != "" && e.EntityID != f.EntityID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		out = append(out, cloneAudit(e))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Statistics(_ context.Context) (*types.Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &types.Statistics{}
	for _, a := range s.accounts {
		stats.AccountCount++
		stats.TotalAvailable += a.Balance
		stats.TotalFrozen += a.FrozenBalance
	}
	for _, t := range s.transactions {
		stats.TransactionCount++
		switch t.Status {
		case types.TransactionStatusCompleted, types.TransactionStatusRefunded:
			stats.TransferVolume += t.Amount
			stats.FeesBurned += t.Fee
		}
	}
	for _, e := range s.escrows {
		if e.Status == types.EscrowStatusPending {
			stats.PendingEscrowCount++
		}
	}
	return stats, nil
}
