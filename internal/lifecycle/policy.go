package lifecycle

import (
	"fmt"

	"github.com/roach88/muster/internal/event"
)

// CheckManualStart reports why a user may not start r by hand, or nil if
// they may. Admins may start any event that has not started or ended.
func (e *Engine) CheckManualStart(r *event.Record, admin bool) error {
	now := e.clock.Now()
	if r.State == event.Started {
		return event.NewAlreadyStarted(r.ID)
	}
	if r.Expired(now) {
		return event.NewInvalidState(r.ID, "cannot start an event that has ended")
	}
	if admin {
		return nil
	}

	p := e.Policy()
	if r.AttendeeCount() < p.ManualStartThreshold {
		return event.NewInvalidState(r.ID, fmt.Sprintf(
			"events with less than %d participants can only be started by an admin", p.ManualStartThreshold))
	}
	if r.Start.After(now.Add(p.ManualStartWindow)) {
		return event.NewInvalidState(r.ID, fmt.Sprintf(
			"events starting in more than %d seconds can only be started by an admin", int64(p.ManualStartWindow.Seconds())))
	}
	return nil
}

// CheckSkip reports why r cannot be skipped, or nil if it can.
func (e *Engine) CheckSkip(r *event.Record) error {
	switch {
	case r.State == event.Skipped:
		return event.NewInvalidState(r.ID, "this event is already skipped")
	case r.State == event.Started:
		return event.NewInvalidState(r.ID, "cannot skip an event that was already started")
	case r.Expired(e.clock.Now()):
		return event.NewInvalidState(r.ID, "this event has expired")
	}
	return nil
}
