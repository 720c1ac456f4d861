package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roboclear/ledger/authz"
	"github.com/roboclear/ledger/events"
	"github.com/roboclear/ledger/fees"
	"github.com/roboclear/ledger/internal/logging"
	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

// Engine is the ledger: account lifecycle, balance mutation, transfers,
// escrow, batches, and the audit/event trail around them. All methods are
// safe for concurrent use; operations touching the same accounts serialize
// at the store's Atomic boundary.
type Engine struct {
	store  store.Store
	policy authz.Policy
	fees   fees.Calculator
	bus    *events.Bus
	logger *slog.Logger
	cfg    Config

	mu       sync.Mutex
	started  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPolicy replaces the authorization policy. Defaults to
// authz.RolePolicy.
func WithPolicy(p authz.Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithFeeCalculator replaces the fee calculator. Defaults to fees.Free.
func WithFeeCalculator(c fees.Calculator) Option {
	return func(e *Engine) {
		e.fees = c
	}
}

// WithConfig replaces the whole configuration. Defaults to DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// New creates an Engine on top of s. The store is the only required
// dependency; policy, fees, config and logger all have defaults.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		policy:   authz.RolePolicy{},
		fees:     fees.Free{},
		logger:   slog.Default(),
		cfg:      DefaultConfig(),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.bus = events.NewBus(e.logger)
	return e
}

// Events returns the engine's event bus. Subscribe before invoking
// operations; events for operations that already ran are not replayed.
func (e *Engine) Events() *events.Bus {
	return e.bus
}

// Start verifies store connectivity and launches the maintenance worker
// when configured. Calling Start is optional for embeddings that do not
// use the escrow sweep.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("Start: engine already started")
	}

	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("Start: %w", err)
	}
	e.started = true

	if e.cfg.EscrowSweepInterval > 0 {
		e.wg.Add(1)
		go e.sweepLoop(ctx)
	}

	e.logger.Info("ledger engine started",
		"audit_enabled", e.cfg.AuditEnabled,
		"escrow_sweep_interval", e.cfg.EscrowSweepInterval,
	)
	return nil
}

// Stop halts the maintenance worker, waits for it to finish, and closes the
// store.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.started {
		close(e.stopChan)
		e.started = false
	}
	e.mu.Unlock()

	e.wg.Wait()
	return e.store.Close()
}

// log resolves the operation logger: a context-scoped one when present,
// the engine's otherwise.
func (e *Engine) log(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, e.logger)
}

// opContext attaches an operation-scoped logger so helpers deeper in the
// call log with the operation's fields attached.
func (e *Engine) opContext(ctx context.Context, op string, args ...any) context.Context {
	l := e.log(ctx).With(append([]any{"op", op}, args...)...)
	return logging.WithLogger(ctx, l)
}

func (e *Engine) emit(ctx context.Context, evt events.Event) {
	evt.At = time.Now().UTC()
	e.bus.Publish(ctx, evt)
}

// auditor abstracts where an audit entry lands: the store directly, or the
// transaction boundary of the operation being audited.
type auditor interface {
	AppendAudit(ctx context.Context, entry *types.AuditEntry) error
}

func (e *Engine) audit(ctx context.Context, sink auditor, entry types.AuditEntry) error {
	if !e.cfg.AuditEnabled {
		return nil
	}
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now().UTC()
	if err := sink.AppendAudit(ctx, &entry); err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	return nil
}

// resolveInitiator maps an initiatedBy id to its account. Empty means the
// operation's subject acts for itself.
func (e *Engine) resolveInitiator(ctx context.Context, initiatedBy string, subject *types.Account) (*types.Account, error) {
	if initiatedBy == "" || initiatedBy == subject.ID {
		return subject, nil
	}
	initiator, err := e.store.GetAccount(ctx, initiatedBy)
	if err != nil {
		return nil, fmt.Errorf("resolveInitiator: %w", err)
	}
	return initiator, nil
}
