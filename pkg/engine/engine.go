// Package engine implements the disbursement operations over an obligation
// store: initialize, add obligations, sweep, stop with refund, and owner
// transfer. Every operation is a single synchronous pass: read, decide,
// write, emit instructions.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/castellan-labs/disburse/pkg/schedule"
	"github.com/castellan-labs/disburse/pkg/store"
	"github.com/castellan-labs/disburse/pkg/transfer"
)

// SweepLock serializes Sweep and StopPayment across engine replicas sharing
// one store. Acquire returns a release func, or ErrSweepLocked if another
// holder is active. A nil lock means single-replica deployment.
type SweepLock interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Engine is the scheduled-payment disbursement engine.
//
// The engine's own mutex serializes mutating operations in-process; the
// per-obligation recheck in Sweep and StopPayment is the compare-and-set
// that keeps a shared non-transactional store safe across replicas.
type Engine struct {
	mu      sync.Mutex
	store   store.ObligationStore
	lock    SweepLock
	logger  *slog.Logger
	metrics *engineMetrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSweepLock installs a cross-replica sweep lock.
func WithSweepLock(l SweepLock) Option {
	return func(e *Engine) { e.lock = l }
}

// New creates an engine over the given store.
func New(st store.ObligationStore, opts ...Option) *Engine {
	e := &Engine{
		store:   st,
		logger:  slog.Default(),
		metrics: newEngineMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize sets the owner and stores the bootstrap schedule. No transfer
// instructions are emitted; obligations disburse only once their trigger
// expires. The whole schedule is validated before any write.
func (e *Engine) Initialize(ctx context.Context, owner string, entries []schedule.Entry) error {
	if owner == "" {
		return fmt.Errorf("initialize requires an owner")
	}
	if err := validateEntries(entries); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.SetConfig(ctx, store.Config{Owner: owner}); err != nil {
		return fmt.Errorf("persist config: %w", err)
	}
	if err := e.appendEntries(ctx, entries); err != nil {
		return err
	}
	e.logger.Info("engine initialized", "owner", owner, "obligations", len(entries))
	return nil
}

// AddObligations appends new unpaid, unstopped obligations. Owner only.
// Existing obligations are untouched.
func (e *Engine) AddObligations(ctx context.Context, caller string, entries []schedule.Entry) error {
	if err := validateEntries(entries); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(ctx, caller); err != nil {
		return err
	}
	return e.appendEntries(ctx, entries)
}

// appendEntries allocates one fresh id per entry, sequentially, and persists
// each new obligation. Caller holds e.mu.
func (e *Engine) appendEntries(ctx context.Context, entries []schedule.Entry) error {
	for _, entry := range entries {
		id, err := e.store.AllocateID(ctx)
		if err != nil {
			return fmt.Errorf("allocate id: %w", err)
		}
		ob := schedule.Obligation{
			ID:        id,
			Recipient: entry.Recipient,
			Asset:     entry.Asset,
			Trigger:   entry.Trigger,
		}
		if err := e.store.Put(ctx, ob); err != nil {
			return fmt.Errorf("persist obligation %d: %w", id, err)
		}
		e.metrics.created(ctx)
		e.logger.Debug("obligation stored",
			"id", id, "recipient", ob.Recipient, "amount", ob.Asset.Amount,
			"trigger", string(ob.Trigger.Kind))
	}
	return nil
}

// Sweep selects every payable obligation at ref, marks it paid, and returns
// one transfer instruction per selection in ascending id order. Callable by
// anyone: it only ever moves funds to their already-designated recipients.
//
// An obligation is marked paid before its instruction is returned, and stays
// paid whether or not the executor later honors the instruction. Re-sweeping
// at the same or a later reference never re-selects a paid obligation.
func (e *Engine) Sweep(ctx context.Context, ref schedule.BlockRef) ([]transfer.Instruction, error) {
	if e.lock != nil {
		release, err := e.lock.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot, err := e.store.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan obligations: %w", err)
	}

	var instructions []transfer.Instruction
	for _, ob := range snapshot {
		if !ob.Payable(ref) {
			continue
		}
		// Recheck against the live record: a replica sharing the store may
		// have paid or stopped it since the snapshot.
		current, err := e.store.Get(ctx, ob.ID)
		if err != nil {
			return instructions, fmt.Errorf("recheck obligation %d: %w", ob.ID, err)
		}
		if current.Paid || current.Stopped {
			continue
		}

		current.Paid = true
		if err := e.store.Put(ctx, current); err != nil {
			// Instructions already returned correspond to committed marks.
			return instructions, fmt.Errorf("mark obligation %d paid: %w", ob.ID, err)
		}
		instructions = append(instructions, transfer.ForObligation(current, current.Recipient))
		e.logger.Info("obligation disbursed",
			"id", current.ID, "recipient", current.Recipient,
			"amount", current.Asset.Amount, "kind", string(current.Asset.Kind))
	}

	e.metrics.swept(ctx, len(instructions))
	return instructions, nil
}

// StopPayment cancels a pending obligation and emits one instruction
// refunding its full amount to the current owner. Owner only. Stopping a
// paid or stopped obligation is an error, not a no-op.
func (e *Engine) StopPayment(ctx context.Context, caller string, id uint64) (transfer.Instruction, error) {
	if e.lock != nil {
		release, err := e.lock.Acquire(ctx)
		if err != nil {
			return transfer.Instruction{}, err
		}
		defer release()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, err := e.store.GetConfig(ctx)
	if err != nil {
		return transfer.Instruction{}, fmt.Errorf("load config: %w", err)
	}
	if caller != cfg.Owner {
		return transfer.Instruction{}, ErrUnauthorized
	}

	ob, err := e.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return transfer.Instruction{}, ErrNotFound
		}
		return transfer.Instruction{}, fmt.Errorf("load obligation %d: %w", id, err)
	}
	if ob.Paid {
		return transfer.Instruction{}, ErrAlreadyPaid
	}
	if ob.Stopped {
		return transfer.Instruction{}, ErrAlreadyStopped
	}

	ob.Stopped = true
	if err := e.store.Put(ctx, ob); err != nil {
		return transfer.Instruction{}, fmt.Errorf("mark obligation %d stopped: %w", id, err)
	}
	e.metrics.stopped(ctx)
	e.logger.Info("obligation stopped", "id", id, "refund_to", cfg.Owner, "amount", ob.Asset.Amount)

	// Refund goes to the administrator, not the original recipient.
	return transfer.ForObligation(ob, cfg.Owner), nil
}

// UpdateOwner replaces the configured owner. Owner only. The previous
// owner's authority ends the instant this returns; no two-step handoff.
func (e *Engine) UpdateOwner(ctx context.Context, caller, newOwner string) error {
	if newOwner == "" {
		return fmt.Errorf("update owner requires a new owner")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(ctx, caller); err != nil {
		return err
	}
	if err := e.store.SetConfig(ctx, store.Config{Owner: newOwner}); err != nil {
		return fmt.Errorf("persist config: %w", err)
	}
	e.logger.Info("owner updated", "previous", caller, "owner", newOwner)
	return nil
}

// ListObligations returns every obligation (paid, stopped, and pending) in
// ascending id order. Full lifecycle audit view.
func (e *Engine) ListObligations(ctx context.Context) ([]schedule.Obligation, error) {
	return e.store.Scan(ctx)
}

// GetConfig returns the current configuration.
func (e *Engine) GetConfig(ctx context.Context) (store.Config, error) {
	return e.store.GetConfig(ctx)
}

func (e *Engine) requireOwner(ctx context.Context, caller string) error {
	cfg, err := e.store.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if caller != cfg.Owner {
		return ErrUnauthorized
	}
	return nil
}

func validateEntries(entries []schedule.Entry) error {
	for i, entry := range entries {
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("schedule entry %d: %w", i, err)
		}
	}
	return nil
}
