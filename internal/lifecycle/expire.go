package lifecycle

import (
	"context"
	"fmt"

	"github.com/roach88/muster/internal/event"
)

// Expire deletes the record and closes out its announcement: an event that
// never started loses its announcement, a started one is marked as ended.
//
// Expiring a record that is already gone is a no-op. Callers decide when a
// record is due; Expire does not look at the clock.
func (e *Engine) Expire(ctx context.Context, id int64) error {
	release, err := e.locker.Lock(ctx, id)
	if err != nil {
		return fmt.Errorf("lock event %d: %w", id, err)
	}
	defer release()

	r, err := e.store.Get(ctx, id)
	if event.IsNotFound(err) {
		e.logger.Debug("event already expired", "event_id", id)
		return nil
	}
	if err != nil {
		return err
	}

	p := e.Policy()
	if err := e.checkWrite(ctx, "delete", id, p.Strict, e.store.Delete(ctx, id)); err != nil {
		return err
	}
	e.metrics.Transition(ctx, "expire")
	e.logger.Info("event expired", "event_id", id, "title", r.Title, "state", r.State)

	if !r.HasAnnouncement() {
		return nil
	}
	if r.State != event.Started {
		e.sideEffect("delete announcement", id, e.messenger.DeleteAnnouncement(ctx, r.AnnouncementRef))
		return nil
	}
	e.finalizeAnnouncement(ctx, r, "Ended "+MentionSpace(r.SpaceRef), ColorEnded)
	return nil
}
