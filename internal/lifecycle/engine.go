package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/muster/internal/clock"
	"github.com/roach88/muster/internal/event"
	"github.com/roach88/muster/internal/lock"
	"github.com/roach88/muster/internal/telemetry"
)

// Policy holds the tunable thresholds of the lifecycle.
type Policy struct {
	// Threshold is the attendee count required for an automatic start.
	Threshold int

	// ManualStartThreshold is the attendee count a non-admin needs to start
	// an event by hand.
	ManualStartThreshold int

	// ManualStartWindow is how close to its start an event must be before a
	// non-admin may start it by hand.
	ManualStartWindow time.Duration

	// Strict escalates persistence failures to returned errors.
	Strict bool
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		Threshold:            4,
		ManualStartThreshold: 2,
		ManualStartWindow:    12 * time.Hour,
		Strict:               true,
	}
}

// Engine applies lifecycle transitions.
type Engine struct {
	store     Store
	messenger Messenger
	spaces    SpaceProvider
	notifier  Notifier
	locker    lock.Locker
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *telemetry.Metrics

	mu     sync.RWMutex
	policy Policy
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocker sets the per-id lock. Defaults to an in-process lock.
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithClock sets the wall clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithPolicy sets the initial policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// New creates an engine over store and the three collaborators.
func New(store Store, messenger Messenger, spaces SpaceProvider, notifier Notifier, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		messenger: messenger,
		spaces:    spaces,
		notifier:  notifier,
		locker:    lock.NewKeyed(),
		clock:     clock.System{},
		logger:    slog.Default(),
		policy:    DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the current policy.
func (e *Engine) Policy() Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

// SetPolicy replaces the policy. Operations already holding a record lock
// finish with the policy they started with.
func (e *Engine) SetPolicy(p Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = p
}

// Store returns the engine's store for read-only use.
func (e *Engine) Store() Store {
	return e.store
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// withRecord runs fn on a fresh copy of the record while holding its lock.
func (e *Engine) withRecord(ctx context.Context, id int64, fn func(r *event.Record, p Policy) error) error {
	release, err := e.locker.Lock(ctx, id)
	if err != nil {
		return fmt.Errorf("lock event %d: %w", id, err)
	}
	defer release()

	r, err := e.store.Get(ctx, id)
	if err != nil {
		return err
	}
	return fn(r, e.Policy())
}

// checkWrite applies the persistence failure policy to a store write.
// Other store errors are always returned.
func (e *Engine) checkWrite(ctx context.Context, op string, id int64, strict bool, err error) error {
	if err == nil {
		return nil
	}
	if !event.IsPersistenceFailure(err) {
		return fmt.Errorf("%s event %d: %w", op, id, err)
	}
	e.metrics.IntegrityWarning(ctx, op)
	e.logger.Warn("data integrity warning", "op", op, "event_id", id, "error", err)
	if strict {
		return err
	}
	return nil
}

// sideEffect logs and swallows a failed collaborator call made after a
// transition was persisted.
func (e *Engine) sideEffect(op string, id int64, err error) {
	if err == nil {
		return
	}
	e.logger.Warn("collaborator call failed",
		"op", op,
		"event_id", id,
		"error", event.NewCollaboratorFailure(id, op, err),
	)
}

// finalizeAnnouncement writes the terminal status of a record onto its
// announcement and removes the vote affordance.
func (e *Engine) finalizeAnnouncement(ctx context.Context, r *event.Record, status string, color int) {
	if !r.HasAnnouncement() {
		return
	}
	ref := r.AnnouncementRef
	e.sideEffect("update status", r.ID, e.messenger.UpdateField(ctx, ref, FieldStatus, status))
	e.sideEffect("update color", r.ID, e.messenger.UpdateStatusColor(ctx, ref, color))
	e.sideEffect("clear interactivity", r.ID, e.messenger.ClearInteractivity(ctx, ref))
}
