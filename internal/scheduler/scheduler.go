package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/muster/internal/clock"
	"github.com/roach88/muster/internal/event"
	"github.com/roach88/muster/internal/feed"
	"github.com/roach88/muster/internal/telemetry"
)

// Engine is the subset of the lifecycle engine the scheduler drives.
type Engine interface {
	Admit(ctx context.Context, ext event.ExternalEvent, announce bool) (*event.Record, error)
	UpdateParticipantCount(ctx context.Context, id int64, count int) error
	TryStart(ctx context.Context, id int64, force bool) error
	Expire(ctx context.Context, id int64) error
}

// Store is the read side of the event store.
type Store interface {
	Get(ctx context.Context, id int64) (*event.Record, error)
	All(ctx context.Context) ([]*event.Record, error)
}

// Lister publishes the summary of upcoming events after each ingest.
type Lister interface {
	RefreshListing(ctx context.Context, records []*event.Record) error
}

// Settings are the scheduler's tunables.
type Settings struct {
	// Interval is the sweep interval. Transitions due within it are armed.
	Interval time.Duration

	// AnnounceLead moves start timers earlier than the event start.
	AnnounceLead time.Duration

	// FetchSpan bounds how far ahead Ingest looks.
	FetchSpan time.Duration

	// MaxBatch caps the number of events per fetch.
	MaxBatch int

	// SkipAnnounce admits new events without posting an announcement.
	SkipAnnounce bool

	// Strict aborts Ingest on the first storage failure. Otherwise the
	// failing event is logged and skipped.
	Strict bool
}

// DefaultSettings returns the production defaults.
func DefaultSettings() Settings {
	return Settings{
		Interval:     60 * time.Second,
		AnnounceLead: time.Hour,
		FetchSpan:    30 * 24 * time.Hour,
		MaxBatch:     500,
	}
}

// Scheduler runs Ingest and Sweep and fires the timers they arm.
type Scheduler struct {
	engine  Engine
	store   Store
	source  feed.Source
	lister  Lister
	queue   *Queue
	clock   clock.Clock
	logger  *slog.Logger
	metrics *telemetry.Metrics

	mu       sync.RWMutex
	settings Settings
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithLister sets the listing publisher refreshed after Ingest.
func WithLister(l Lister) Option {
	return func(s *Scheduler) { s.lister = l }
}

// WithSettings sets the initial settings.
func WithSettings(st Settings) Option {
	return func(s *Scheduler) { s.settings = st }
}

// WithQueue replaces the timer queue.
func WithQueue(q *Queue) Option {
	return func(s *Scheduler) { s.queue = q }
}

// New creates a scheduler. source may be nil, in which case Ingest only
// refreshes the listing.
func New(engine Engine, store Store, source feed.Source, opts ...Option) *Scheduler {
	s := &Scheduler{
		engine:   engine,
		store:    store,
		source:   source,
		queue:    NewQueue(),
		clock:    clock.System{},
		logger:   slog.Default(),
		settings: DefaultSettings(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configure replaces the settings. Timers already armed keep their due time.
func (s *Scheduler) Configure(st Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = st
}

// Settings returns the current settings.
func (s *Scheduler) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Queue returns the timer queue.
func (s *Scheduler) Queue() *Queue {
	return s.queue
}

func (s *Scheduler) arm(ctx context.Context, kind TimerKind, id int64, due time.Time) {
	if err := s.queue.Push(Timer{Kind: kind, EventID: id, Due: due}); err != nil {
		s.logger.Debug("timer not armed", "kind", kind.String(), "event_id", id, "error", err)
		return
	}
	s.metrics.TimerArmed(ctx, kind.String())
	s.logger.Debug("timer armed",
		"kind", kind.String(),
		"event_id", id,
		"due", due.Format(time.RFC3339),
	)
}
