package scheduler

import (
	"context"
	"time"

	"github.com/roach88/muster/internal/event"
)

// idleWait bounds how long Run sleeps with an empty queue before
// re-checking it.
const idleWait = time.Minute

// Run fires timers as they fall due until ctx is cancelled or the queue is
// closed. It returns an escalated persistence failure from a timer, if any.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("timer loop started")
	defer s.logger.Info("timer loop stopped")

	for {
		if _, err := s.RunDue(ctx); err != nil {
			return err
		}

		wait := idleWait
		if due, ok := s.queue.NextDue(); ok {
			wait = max(due.Sub(s.clock.Now()), 0)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case _, ok := <-s.queue.Wait():
			timer.Stop()
			if !ok {
				return nil
			}
		case <-timer.C:
		}
	}
}

// RunDue fires every timer due now and returns how many fired.
func (s *Scheduler) RunDue(ctx context.Context) (int, error) {
	due := s.queue.PopDue(s.clock.Now())
	for i, t := range due {
		if err := s.fire(ctx, t); err != nil {
			return i + 1, err
		}
	}
	return len(due), nil
}

// Stop closes the queue, dropping pending timers.
func (s *Scheduler) Stop() {
	s.queue.Close()
}

// fire invokes the transition of t. Outcomes that only mean another timer
// got there first are logged at debug.
func (s *Scheduler) fire(ctx context.Context, t Timer) error {
	var err error
	switch t.Kind {
	case TimerStart:
		err = s.engine.TryStart(ctx, t.EventID, false)
	case TimerExpire:
		err = s.engine.Expire(ctx, t.EventID)
	}

	switch {
	case err == nil:
		return nil
	case event.IsNotFound(err), event.IsAlreadyStarted(err):
		s.logger.Debug("timer found nothing to do", "kind", t.Kind.String(), "event_id", t.EventID, "error", err)
		return nil
	case event.IsPersistenceFailure(err):
		s.logger.Error("timer failed", "kind", t.Kind.String(), "event_id", t.EventID, "error", err)
		return err
	default:
		s.logger.Warn("timer failed", "kind", t.Kind.String(), "event_id", t.EventID, "error", err)
		return nil
	}
}
