package ledger

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/roboclear/ledger/events"
	"github.com/roboclear/ledger/types"
)

// BatchItemParams is one transfer request within a batch.
type BatchItemParams struct {
	From   string
	To     string
	Amount int64
	Type   types.TransactionType
	Meta   map[string]string
}

// BatchParams describes a batch of transfers executed sequentially as one
// logical unit.
type BatchParams struct {
	Items []BatchItemParams
	// StopOnError halts the batch at the first failed item instead of
	// attempting the rest.
	StopOnError bool
	InitiatedBy string
}

// BatchTransfer runs each item through the full transfer protocol in
// submission order. Items succeed or fail independently; there is no
// all-or-nothing rollback across the batch. Item failures are recorded on
// the returned batch, not surfaced as an error from this method.
func (e *Engine) BatchTransfer(ctx context.Context, p BatchParams) (*types.BatchTransfer, error) {
	log := e.log(ctx)

	if len(p.Items) == 0 {
		return nil, fmt.Errorf("BatchTransfer: no items: %w", ErrValidation)
	}

	batch := &types.BatchTransfer{
		ID:          uuid.New(),
		Items:       make([]types.BatchItem, len(p.Items)),
		StopOnError: p.StopOnError,
		Status:      types.BatchStatusProcessing,
		InitiatedBy: p.InitiatedBy,
		CreatedAt:   time.Now().UTC(),
	}
	for i, it := range p.Items {
		batch.Items[i] = types.BatchItem{
			From:   it.From,
			To:     it.To,
			Amount: it.Amount,
			Type:   it.Type,
			Meta:   maps.Clone(it.Meta),
		}
		batch.TotalAmount += it.Amount
	}

	if err := e.store.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("BatchTransfer: %w", err)
	}

	e.emit(ctx, events.Event{Kind: events.BatchStarted, Batch: batch})

	for i := range batch.Items {
		item := &batch.Items[i]

		meta := maps.Clone(item.Meta)
		if meta == nil {
			meta = make(map[string]string, 1)
		}
		meta[types.MetaBatchID] = batch.ID.String()

		txn, err := e.Transfer(ctx, TransferParams{
			From:        item.From,
			To:          item.To,
			Amount:      item.Amount,
			Type:        item.Type,
			Meta:        meta,
			InitiatedBy: p.InitiatedBy,
		})
		if err != nil {
			item.Status = types.BatchItemStatusFailed
			item.Error = err.Error()
			batch.FailedCount++
			log.Warn("batch item failed",
				"batch_id", batch.ID,
				"item", i,
				"error", err,
			)
			if p.StopOnError {
				break
			}
			continue
		}

		item.Status = types.BatchItemStatusCompleted
		item.TransactionID = &txn.ID
		batch.SuccessCount++
	}

	switch {
	case batch.FailedCount == 0:
		batch.Status = types.BatchStatusCompleted
	case batch.SuccessCount == 0:
		batch.Status = types.BatchStatusFailed
	default:
		batch.Status = types.BatchStatusPartial
	}
	now := time.Now().UTC()
	batch.CompletedAt = &now

	if err := e.store.UpdateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("BatchTransfer: record outcome: %w", err)
	}

	if err := e.audit(ctx, e.store, types.AuditEntry{
		Action:     types.AuditBatchExecuted,
		EntityType: types.EntityBatch,
		EntityID:   batch.ID.String(),
		ActorID:    p.InitiatedBy,
		After: map[string]any{
			"status":        batch.Status,
			"success_count": batch.SuccessCount,
			"failed_count":  batch.FailedCount,
			"total_amount":  batch.TotalAmount,
		},
	}); err != nil {
		return nil, fmt.Errorf("BatchTransfer: %w", err)
	}

	e.emit(ctx, events.Event{Kind: events.BatchCompleted, Batch: batch})

	log.Info("batch executed",
		"batch_id", batch.ID,
		"status", batch.Status,
		"success_count", batch.SuccessCount,
		"failed_count", batch.FailedCount,
	)
	return batch, nil
}
