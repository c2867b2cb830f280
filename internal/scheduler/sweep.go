package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/muster/internal/event"
)

// Sweep loads every record and arms the transitions due before the next
// sweep. Records already past their end are expired immediately.
//
// Records are processed in store order. A failure on one record is logged
// and the sweep continues; only an escalated persistence failure aborts it.
func (s *Scheduler) Sweep(ctx context.Context) error {
	records, err := s.store.All(ctx)
	if err != nil {
		return fmt.Errorf("sweep: load events: %w", err)
	}

	st := s.Settings()
	s.logger.Debug("sweeping events", "count", len(records))

	for _, r := range records {
		if err := s.scheduleRecord(ctx, r, st); err != nil {
			return err
		}
	}
	return nil
}

// scheduleRecord applies the sweep rules to one record.
func (s *Scheduler) scheduleRecord(ctx context.Context, r *event.Record, st Settings) error {
	now := s.clock.Now()

	if r.Expired(now) {
		return s.fire(ctx, Timer{Kind: TimerExpire, EventID: r.ID, Due: now})
	}

	if r.Start.Before(now) && r.State == event.Voting {
		s.logger.Warn("event start passed without a transition",
			"event_id", r.ID,
			"title", r.Title,
			"start", r.Start.Format(time.RFC3339),
		)
	}

	// A record that starts and ends inside one interval gets both timers.
	if r.State == event.Voting && r.Start.Sub(now) <= st.Interval {
		due := r.Start.Add(-st.AnnounceLead)
		if due.Before(now) {
			due = now
		}
		s.arm(ctx, TimerStart, r.ID, due)
	}
	if r.End.Sub(now) <= st.Interval {
		s.arm(ctx, TimerExpire, r.ID, r.End)
	}
	return nil
}
