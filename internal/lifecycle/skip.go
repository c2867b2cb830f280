package lifecycle

import (
	"context"

	"github.com/roach88/muster/internal/event"
)

// Skip marks a Voting record as Skipped. It returns false without changing
// anything if the record is already Skipped, Started or past its end.
func (e *Engine) Skip(ctx context.Context, id int64) (bool, error) {
	var skipped bool
	err := e.withRecord(ctx, id, func(r *event.Record, p Policy) error {
		var err error
		skipped, err = e.skip(ctx, r, p)
		return err
	})
	return skipped, err
}

func (e *Engine) skip(ctx context.Context, r *event.Record, p Policy) (bool, error) {
	if r.State != event.Voting || r.Expired(e.clock.Now()) {
		e.logger.Debug("skip ignored", "event_id", r.ID, "state", r.State)
		return false, nil
	}

	r.State = event.Skipped
	if err := e.checkWrite(ctx, "update", r.ID, p.Strict, e.store.Update(ctx, r)); err != nil {
		return false, err
	}
	e.metrics.Transition(ctx, "skip")
	e.logger.Info("event skipped", "event_id", r.ID, "title", r.Title)

	e.finalizeAnnouncement(ctx, r, "Skipped", ColorSkipped)
	return true, nil
}
