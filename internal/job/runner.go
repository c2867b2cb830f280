package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/muster/internal/telemetry"
)

// Func is the task a Runner fires.
type Func func(ctx context.Context) error

// Runner fires a task on a fixed interval.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Runner struct {
	name    string
	fn      Func
	logger  *slog.Logger
	metrics *telemetry.Metrics
	ids     IDGenerator

	mu       sync.Mutex
	interval time.Duration
	parent   context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup // one per schedule loop
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithIDGenerator sets the run id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Runner) { r.ids = g }
}

// NewRunner creates a stopped runner.
func NewRunner(name string, interval time.Duration, fn Func, opts ...Option) (*Runner, error) {
	if err := validInterval(interval); err != nil {
		return nil, fmt.Errorf("job %s: %w", name, err)
	}
	r := &Runner{
		name:     name,
		fn:       fn,
		interval: interval,
		logger:   slog.Default(),
		ids:      UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func validInterval(d time.Duration) error {
	if d <= 0 {
		return errors.New("interval must be positive")
	}
	return nil
}

// Name returns the runner name.
func (r *Runner) Name() string { return r.name }

// Interval returns the stored interval.
func (r *Runner) Interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval
}

// IsRunning reports whether the runner is scheduled.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Start fires the task now and then every interval until Stop or until ctx
// is cancelled. Starting a running runner replaces its schedule.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.logger.Warn("replacing already running job", "job", r.name)
		r.cancel()
	}
	r.startLocked(ctx)
}

func (r *Runner) startLocked(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	r.parent = ctx
	r.cancel = cancel
	r.inflight.Add(1)
	go r.loop(loopCtx, r.interval)
	r.logger.Debug("job started", "job", r.name, "interval", r.interval)
}

// Stop cancels future firings. A firing in progress runs to completion.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel == nil {
		r.logger.Warn("attempted to stop a job that was not running", "job", r.name)
		return
	}
	r.cancel()
	r.cancel = nil
	r.logger.Debug("job stopped", "job", r.name)
}

// Reconfigure changes the interval. A running runner is restarted with the
// new interval, which fires the task once immediately.
func (r *Runner) Reconfigure(interval time.Duration) error {
	if err := validInterval(interval); err != nil {
		return fmt.Errorf("job %s: %w", r.name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.interval = interval
	r.logger.Debug("job reconfigured", "job", r.name, "interval", interval)
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	r.startLocked(r.parent)
	return nil
}

// Wait blocks until every stopped schedule has exited, including a firing
// in progress. Call it after Stop; on a running runner it blocks until the
// schedule is stopped.
func (r *Runner) Wait() {
	r.inflight.Wait()
}

func (r *Runner) loop(ctx context.Context, interval time.Duration) {
	defer r.inflight.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.fire(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.fire(ctx)
		}
	}
}

// fire runs the task once. The task context is detached from the loop so
// that Stop does not cancel a firing in progress.
func (r *Runner) fire(loopCtx context.Context) {
	if loopCtx.Err() != nil {
		return
	}

	runID := r.ids.Generate()
	ctx := WithRunID(context.WithoutCancel(loopCtx), runID)
	logger := r.logger.With("job", r.name, "run_id", runID)

	began := time.Now()
	logger.Debug("job run started")
	err := r.fn(ctx)
	elapsed := time.Since(began)
	r.metrics.JobRun(ctx, r.name, elapsed, err == nil)

	if err != nil {
		logger.Error("job run failed", "duration", elapsed, "error", err)
		return
	}
	logger.Debug("job run finished", "duration", elapsed)
}
