package lifecycle

import (
	"context"
	"strconv"

	"github.com/roach88/muster/internal/event"
)

// RecordAttendance replaces the attendee set of a Voting record and
// refreshes the announcement. When the new count equals the threshold the
// attendees are notified, once.
func (e *Engine) RecordAttendance(ctx context.Context, id int64, ids []string) error {
	return e.withRecord(ctx, id, func(r *event.Record, p Policy) error {
		switch {
		case r.State == event.Started:
			return event.NewInvalidState(id, "event was already started")
		case r.State == event.Skipped:
			return event.NewInvalidState(id, "event was skipped")
		case r.Expired(e.clock.Now()):
			return event.NewInvalidState(id, "event has ended")
		}

		r.SetAttendees(ids)
		if err := e.checkWrite(ctx, "update", id, p.Strict, e.store.Update(ctx, r)); err != nil {
			return err
		}
		e.metrics.Transition(ctx, "attend")
		e.logger.Debug("attendance recorded", "event_id", id, "attendees", r.AttendeeCount())

		if r.HasAnnouncement() {
			e.sideEffect("update attendees", id,
				e.messenger.UpdateField(ctx, r.AnnouncementRef, FieldWouldJoin, mentions(r.Attendees)))
		}

		if r.AttendeeCount() == p.Threshold {
			return e.notify(ctx, r, p)
		}
		return nil
	})
}

// NotifyThresholdReached sends each attendee a direct message announcing
// that the event will start. It is a no-op once the record is Notified.
func (e *Engine) NotifyThresholdReached(ctx context.Context, id int64) error {
	return e.withRecord(ctx, id, func(r *event.Record, p Policy) error {
		return e.notify(ctx, r, p)
	})
}

func (e *Engine) notify(ctx context.Context, r *event.Record, p Policy) error {
	if r.Notified {
		e.logger.Debug("attendees already notified", "event_id", r.ID)
		return nil
	}

	r.Notified = true
	if err := e.checkWrite(ctx, "update", r.ID, p.Strict, e.store.Update(ctx, r)); err != nil {
		return err
	}
	e.metrics.Transition(ctx, "notify")

	text := thresholdReachedMessage(r, e.messenger.AnnouncementURL(r.AnnouncementRef))
	failed := 0
	for _, uid := range r.Attendees {
		err := e.notifier.SendDirect(ctx, uid, text)
		e.metrics.Notification(ctx, err == nil)
		if err != nil {
			failed++
			e.logger.Warn("failed to notify attendee",
				"event_id", r.ID,
				"user_id", uid,
				"error", event.NewCollaboratorFailure(r.ID, "send direct", err),
			)
		}
	}

	e.logger.Info("threshold reached, attendees notified",
		"event_id", r.ID,
		"title", r.Title,
		"attendees", r.AttendeeCount(),
		"failed", failed,
	)
	return nil
}

// UpdateParticipantCount stores the feed-reported participant count and
// refreshes the announcement. Attendees and flags are untouched.
func (e *Engine) UpdateParticipantCount(ctx context.Context, id int64, count int) error {
	return e.withRecord(ctx, id, func(r *event.Record, p Policy) error {
		if r.ParticipantCount == count {
			return nil
		}
		r.ParticipantCount = count
		if err := e.checkWrite(ctx, "update", id, p.Strict, e.store.Update(ctx, r)); err != nil {
			return err
		}
		e.logger.Debug("participant count updated", "event_id", id, "count", count)

		if r.HasAnnouncement() {
			e.sideEffect("update participants", id,
				e.messenger.UpdateField(ctx, r.AnnouncementRef, FieldTeams, strconv.Itoa(count)))
		}
		return nil
	})
}
