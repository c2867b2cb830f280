package cli

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/muster/internal/config"
	"github.com/roach88/muster/internal/discord"
	"github.com/roach88/muster/internal/job"
	"github.com/roach88/muster/internal/lifecycle"
	"github.com/roach88/muster/internal/scheduler"
)

type settingStore interface {
	SetSetting(ctx context.Context, key, value string) error
}

// settingsService changes runtime settings of a running service: the value
// is validated, persisted and then pushed to every component that reads it.
type settingsService struct {
	store  settingStore
	engine *lifecycle.Engine
	sched  *scheduler.Scheduler
	client *discord.Client
	jobs   *job.Manager
	logger *slog.Logger

	// runCtx is the service context jobs started later run under.
	runCtx context.Context

	mu  sync.Mutex
	cfg *config.Config
}

// SetSetting implements api.Settings.
func (s *settingsService) SetSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	canonical, err := config.CanonicalKey(key)
	if err != nil {
		return err
	}
	next := s.cfg.Clone()
	if err := next.Set(canonical, value); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if err := s.store.SetSetting(ctx, canonical, value); err != nil {
		return fmt.Errorf("persist setting %s: %w", canonical, err)
	}

	wasInitialized := s.cfg.Initialized()
	s.cfg = next
	s.logger.Info("setting updated", "key", canonical)
	return s.apply(wasInitialized)
}

// Config returns a copy of the current configuration.
func (s *settingsService) Config() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

func (s *settingsService) apply(wasInitialized bool) error {
	s.engine.SetPolicy(s.cfg.Policy())
	s.sched.Configure(s.cfg.SchedulerSettings())
	if s.client != nil {
		s.client.Configure(discordOptions(s.cfg))
	}

	s.jobs.SetStrict(s.cfg.Debug)
	if err := s.jobs.Reconfigure(s.cfg.Intervals()); err != nil {
		return err
	}
	if !wasInitialized && s.cfg.Initialized() {
		s.logger.Info("vote channel configured, starting jobs")
		s.jobs.StartAll(s.runCtx)
	}
	return nil
}
