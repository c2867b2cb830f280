package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Job names used by the service.
const (
	Ingest = "ingest"
	Sweep  = "sweep"
)

// Intervals maps job names to intervals.
type Intervals map[string]time.Duration

// Manager owns the service's runners.
type Manager struct {
	logger *slog.Logger

	mu      sync.Mutex
	runners []*Runner
	strict  bool
}

// NewManager groups runners. In strict mode Reconfigure returns the first
// failure; otherwise failures are logged and the remaining runners are
// still reconfigured.
func NewManager(logger *slog.Logger, strict bool, runners ...*Runner) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger, runners: runners, strict: strict}
}

// Runner returns the runner named name, or nil.
func (m *Manager) Runner(name string) *Runner {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runners {
		if r.Name() == name {
			return r
		}
	}
	return nil
}

// SetStrict changes the failure policy of Reconfigure.
func (m *Manager) SetStrict(strict bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strict = strict
}

// StartAll starts every runner that is not running.
func (m *Manager) StartAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runners {
		if !r.IsRunning() {
			r.Start(ctx)
		}
	}
}

// StopAll stops every running runner and waits for firings in progress.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runners {
		if r.IsRunning() {
			r.Stop()
		}
	}
	for _, r := range m.runners {
		r.Wait()
	}
}

// Running returns the names of the running runners.
func (m *Manager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, r := range m.runners {
		if r.IsRunning() {
			names = append(names, r.Name())
		}
	}
	return names
}

// Reconfigure applies new intervals. Runners whose interval is unchanged or
// absent from intervals are left alone.
func (m *Manager) Reconfigure(intervals Intervals) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, r := range m.runners {
		d, ok := intervals[r.Name()]
		if !ok || d == r.Interval() {
			continue
		}
		if err := r.Reconfigure(d); err != nil {
			m.logger.Error("failed to update config for job", "job", r.Name(), "error", err)
			if m.strict {
				return fmt.Errorf("reconfigure: %w", err)
			}
			errs = append(errs, err)
			continue
		}
		m.logger.Info("job interval updated", "job", r.Name(), "interval", d)
	}
	if len(errs) > 0 {
		m.logger.Warn("some jobs kept their previous interval", "error", errors.Join(errs...))
	}
	return nil
}
