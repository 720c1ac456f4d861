package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboclear/ledger"
	"github.com/roboclear/ledger/events"
)

// recorder collects delivered events. Handlers run on their own goroutines,
// so access is mutex-guarded.
type recorder struct {
	mu   sync.Mutex
	evts []events.Event
}

func (r *recorder) handle(_ context.Context, evt events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evts = append(r.evts, evt)
	return nil
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, len(r.evts))
	for i, evt := range r.evts {
		out[i] = evt.Kind
	}
	return out
}

func (r *recorder) at(i int) events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evts[i]
}

func TestEngineEvents_StreamsOperations(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	rec := &recorder{}
	unsub := eng.Events().Subscribe(events.Wildcard, rec.handle)
	defer unsub()

	seedAccount(t, eng, "client", 500)
	seedAccount(t, eng, "worker", 0)

	_, err := eng.Credit(ctx, ledger.CreditParams{AccountID: "client", Amount: 100})
	require.NoError(t, err)
	_, err = eng.Transfer(ctx, ledger.TransferParams{From: "client", To: "worker", Amount: 50})
	require.NoError(t, err)
	esc, err := eng.CreateEscrow(ctx, ledger.EscrowParams{From: "client", To: "worker", Amount: 40})
	require.NoError(t, err)
	_, err = eng.ReleaseEscrow(ctx, esc.ID, "")
	require.NoError(t, err)
	_, err = eng.BatchTransfer(ctx, ledger.BatchParams{
		Items: []ledger.BatchItemParams{{From: "client", To: "worker", Amount: 10}},
	})
	require.NoError(t, err)

	assert.Equal(t, []events.Kind{
		events.AccountCreated,
		events.AccountCreated,
		events.BalanceCredited,
		events.TransferInitiated,
		events.TransferCompleted,
		events.EscrowCreated,
		events.EscrowReleased,
		events.BatchStarted,
		events.TransferInitiated,
		events.TransferCompleted,
		events.BatchCompleted,
	}, rec.kinds(), "every mutation publishes, in operation order")

	credited := rec.at(2)
	require.NotNil(t, credited.Operation)
	assert.Equal(t, int64(100), credited.Operation.Amount)
	assert.False(t, credited.At.IsZero())

	released := rec.at(6)
	require.NotNil(t, released.Escrow)
	require.NotNil(t, released.Transaction, "the release event carries its payout transaction")
	assert.Equal(t, esc.ID, released.Escrow.ID)

	// Rejected operations never reach the bus.
	before := len(rec.kinds())
	_, err = eng.Transfer(ctx, ledger.TransferParams{From: "client", To: "worker", Amount: 0})
	require.ErrorIs(t, err, ledger.ErrInvalidAmount)
	assert.Len(t, rec.kinds(), before)
}

func TestEngineEvents_KindScopedSubscription(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	rec := &recorder{}
	unsub := eng.Events().Subscribe(events.TransferCompleted, rec.handle)

	seedAccount(t, eng, "client", 500)
	seedAccount(t, eng, "worker", 0)

	_, err := eng.Credit(ctx, ledger.CreditParams{AccountID: "client", Amount: 100})
	require.NoError(t, err)
	_, err = eng.Transfer(ctx, ledger.TransferParams{From: "client", To: "worker", Amount: 50})
	require.NoError(t, err)

	require.Len(t, rec.kinds(), 1, "only the subscribed kind is delivered")
	assert.Equal(t, events.TransferCompleted, rec.at(0).Kind)

	unsub()
	_, err = eng.Transfer(ctx, ledger.TransferParams{From: "client", To: "worker", Amount: 50})
	require.NoError(t, err)
	assert.Len(t, rec.kinds(), 1, "nothing arrives after unsubscribe")
}
