package lifecycle

import (
	"context"
	"fmt"

	"github.com/roach88/muster/internal/event"
)

// Admit creates a Voting record for a newly discovered event. When announce
// is set the announcement is posted first; if posting fails nothing is
// stored, so the next ingest retries. If the insert fails the announcement
// is deleted again.
func (e *Engine) Admit(ctx context.Context, ext event.ExternalEvent, announce bool) (*event.Record, error) {
	if err := ext.Validate(); err != nil {
		return nil, fmt.Errorf("admit event: %w", err)
	}

	release, err := e.locker.Lock(ctx, ext.ID)
	if err != nil {
		return nil, fmt.Errorf("lock event %d: %w", ext.ID, err)
	}
	defer release()

	if existing, err := e.store.Get(ctx, ext.ID); err == nil {
		return existing, event.NewInvalidState(ext.ID, "event already exists")
	} else if !event.IsNotFound(err) {
		return nil, err
	}

	r := ext.NewRecord(e.clock.Now())
	if announce {
		ref, err := e.messenger.PostAnnouncement(ctx, ext)
		if err != nil {
			return nil, event.NewCollaboratorFailure(ext.ID, "post announcement", err)
		}
		r.AnnouncementRef = ref
	}

	// An insert failure is returned in lenient mode too: the caller must
	// never see a record that is not in the store.
	if err := e.store.Insert(ctx, r); err != nil {
		if r.HasAnnouncement() {
			e.sideEffect("delete announcement", r.ID, e.messenger.DeleteAnnouncement(ctx, r.AnnouncementRef))
		}
		return nil, e.checkWrite(ctx, "insert", r.ID, true, err)
	}
	e.metrics.Transition(ctx, "admit")
	e.logger.Info("event admitted",
		"event_id", r.ID,
		"title", r.Title,
		"start", r.Start,
		"announced", r.HasAnnouncement(),
	)
	return r, nil
}

// CreateTestEvent admits a short-lived announced event for exercising the
// lifecycle by hand.
func (e *Engine) CreateTestEvent(ctx context.Context) (*event.Record, error) {
	return e.Admit(ctx, event.TestEvent(e.clock.Now()), true)
}
