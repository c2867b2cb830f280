package scheduler

import (
	"context"
	"fmt"

	"github.com/roach88/muster/internal/event"
)

// Ingest fetches upcoming events and reconciles them with the store.
//
// A known event only has its participant count updated. An unknown event is
// admitted and scheduled right away so it does not wait for the next sweep.
// A failed fetch is logged and treated as an empty result. A storage failure
// aborts the run only in strict mode.
func (s *Scheduler) Ingest(ctx context.Context) error {
	st := s.Settings()
	now := s.clock.Now()

	var items []event.ExternalEvent
	if s.source != nil {
		fetched, err := s.source.Fetch(ctx, now, now.Add(st.FetchSpan), st.MaxBatch)
		if err != nil {
			s.logger.Warn("feed unavailable, no events this cycle", "source", s.source.Name(), "error", err)
		} else {
			items = fetched
		}
	}

	admitted := 0
	for _, ext := range items {
		if err := ext.Validate(); err != nil {
			s.logger.Warn("dropping invalid feed event", "event_id", ext.ID, "error", err)
			continue
		}

		ok, err := s.reconcile(ctx, ext, st)
		if err != nil {
			if st.Strict && event.IsPersistenceFailure(err) {
				return err
			}
			s.logger.Warn("ingest failed for event", "event_id", ext.ID, "title", ext.Title, "error", err)
			continue
		}
		if ok {
			admitted++
		}
	}

	s.logger.Info("ingest complete", "fetched", len(items), "admitted", admitted)
	s.refreshListing(ctx)
	return nil
}

// reconcile reports whether ext was admitted as a new record.
func (s *Scheduler) reconcile(ctx context.Context, ext event.ExternalEvent, st Settings) (bool, error) {
	_, err := s.store.Get(ctx, ext.ID)
	switch {
	case err == nil:
		return false, s.engine.UpdateParticipantCount(ctx, ext.ID, ext.Participants)
	case !event.IsNotFound(err):
		return false, fmt.Errorf("look up event %d: %w", ext.ID, err)
	}

	r, err := s.engine.Admit(ctx, ext, !st.SkipAnnounce)
	if err != nil {
		return false, err
	}
	return true, s.scheduleRecord(ctx, r, st)
}

func (s *Scheduler) refreshListing(ctx context.Context) {
	if s.lister == nil {
		return
	}
	records, err := s.store.All(ctx)
	if err != nil {
		s.logger.Warn("listing not refreshed", "error", err)
		return
	}
	if err := s.lister.RefreshListing(ctx, records); err != nil {
		s.logger.Warn("listing not refreshed", "error", event.NewCollaboratorFailure(0, "refresh listing", err))
	}
}
