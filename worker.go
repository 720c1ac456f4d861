package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

// systemActor marks engine-initiated maintenance in audit entries.
const systemActor = "system"

// sweepLoop periodically refunds escrows whose expiry has passed. It runs
// until ctx is cancelled or Stop is called.
func (e *Engine) sweepLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.EscrowSweepInterval)
	defer ticker.Stop()

	e.logger.Info("escrow sweep started", "interval", e.cfg.EscrowSweepInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.sweepExpiredEscrows(ctx)
		}
	}
}

func (e *Engine) sweepExpiredEscrows(ctx context.Context) {
	escrows, err := e.store.ListEscrows(ctx, store.EscrowFilter{
		Status:        types.EscrowStatusPending,
		ExpiredBefore: time.Now().UTC(),
	})
	if err != nil {
		e.logger.Error("escrow sweep: list failed", "error", err)
		return
	}

	for _, esc := range escrows {
		if _, err := e.refundEscrow(ctx, esc, systemActor); err != nil {
			// Losing the race to a concurrent release or refund is fine;
			// the escrow reached a terminal state either way.
			if errors.Is(err, ErrEscrowNotPending) {
				continue
			}
			e.logger.Error("escrow sweep: refund failed",
				"escrow_id", esc.ID,
				"error", err,
			)
		}
	}
}
