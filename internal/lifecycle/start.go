package lifecycle

import (
	"context"

	"github.com/roach88/muster/internal/event"
)

// TryStart starts the event if it is eligible.
//
// Without force, a Skipped record is left alone and a record below the
// attendance threshold is skipped instead. A Started record always yields an
// AlreadyStarted error and is not modified.
func (e *Engine) TryStart(ctx context.Context, id int64, force bool) error {
	return e.withRecord(ctx, id, func(r *event.Record, p Policy) error {
		if r.State == event.Skipped && !force {
			e.logger.Info("event was skipped, not starting", "event_id", id, "title", r.Title)
			return nil
		}
		if r.State == event.Started {
			return event.NewAlreadyStarted(id)
		}
		if r.Expired(e.clock.Now()) {
			return event.NewInvalidState(id, "cannot start an event that has ended")
		}
		if r.AttendeeCount() < p.Threshold && !force {
			e.logger.Info("not enough attendees, skipping event",
				"event_id", id,
				"attendees", r.AttendeeCount(),
				"threshold", p.Threshold,
			)
			_, err := e.skip(ctx, r, p)
			return err
		}
		return e.start(ctx, r, p, force)
	})
}

func (e *Engine) start(ctx context.Context, r *event.Record, p Policy, force bool) error {
	space, err := e.spaces.CreateSpace(ctx, r.Title)
	if err != nil {
		return event.NewCollaboratorFailure(r.ID, "create space", err)
	}

	r.SpaceRef = space
	r.State = event.Started
	if err := e.checkWrite(ctx, "update", r.ID, p.Strict, e.store.Update(ctx, r)); err != nil {
		return err
	}
	e.metrics.Transition(ctx, "start")
	e.logger.Info("event started",
		"event_id", r.ID,
		"title", r.Title,
		"space", space,
		"attendees", r.AttendeeCount(),
		"forced", force,
	)

	e.sideEffect("post to space", r.ID, e.spaces.PostToSpace(ctx, space, startingSoonMessage(r)))
	e.finalizeAnnouncement(ctx, r, "Started "+MentionSpace(space), ColorStarted)
	return nil
}
