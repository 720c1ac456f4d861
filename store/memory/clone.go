package memory

import (
	"maps"
	"slices"

	"github.com/roboclear/ledger/types"
)

// Deep copies keep the ownership contract: nothing handed out aliases
// stored state, nothing handed in is retained.

func cloneAccount(a *types.Account) *types.Account {
	c := *a
	c.Roles = slices.Clone(a.Roles)
	c.Tags = slices.Clone(a.Tags)
	c.Metadata = maps.Clone(a.Metadata)
	if a.Limits != nil {
		l := types.Limits{}
		if a.Limits.MaxTransferAmount != nil {
			v := *a.Limits.MaxTransferAmount
			l.MaxTransferAmount = &v
		}
		if a.Limits.MinBalance != nil {
			v := *a.Limits.MinBalance
			l.MinBalance = &v
		}
		c.Limits = &l
	}
	return &c
}

func cloneTransaction(t *types.Transaction) *types.Transaction {
	c := *t
	c.Meta = maps.Clone(t.Meta)
	if t.IdempotencyKey != nil {
		v := *t.IdempotencyKey
		c.IdempotencyKey = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}

func cloneOperation(op *types.BalanceOperation) *types.BalanceOperation {
	c := *op
	return &c
}

func cloneEscrow(e *types.Escrow) *types.Escrow {
	c := *e
	if e.ExpiresAt != nil {
		v := *e.ExpiresAt
		c.ExpiresAt = &v
	}
	if e.ReleasedAt != nil {
		v := *e.ReleasedAt
		c.ReleasedAt = &v
	}
	if e.TransactionID != nil {
		v := *e.TransactionID
		c.TransactionID = &v
	}
	return &c
}

func cloneBatch(b *types.BatchTransfer) *types.BatchTransfer {
	c := *b
	c.Items = make([]types.BatchItem, len(b.Items))
	for i, item := range b.Items {
		ci := item
		ci.Meta = maps.Clone(item.Meta)
		if item.TransactionID != nil {
			v := *item.TransactionID
			ci.TransactionID = &v
		}
		c.Items[i] = ci
	}
	if b.CompletedAt != nil {
		v := *b.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}

func cloneAudit(e *types.AuditEntry) *types.AuditEntry {
	c := *e
	c.Before = maps.Clone(e.Before)
	c.After = maps.Clone(e.After)
	return &c
}
