package feed

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/muster/internal/event"
	"github.com/roach88/muster/internal/telemetry"
)

// Multi merges several sources. A failing source is logged and skipped so
// one unreachable calendar does not hide the others. Fetch fails only if
// every source failed.
type Multi struct {
	sources []Source
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewMulti combines sources.
func NewMulti(logger *slog.Logger, metrics *telemetry.Metrics, sources ...Source) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{sources: sources, logger: logger, metrics: metrics}
}

func (m *Multi) Name() string { return "multi" }

// Fetch queries every source in order and merges the results by start time.
// When two sources report the same id the first one wins.
func (m *Multi) Fetch(ctx context.Context, from, to time.Time, limit int) ([]event.ExternalEvent, error) {
	var (
		merged []event.ExternalEvent
		seen   = make(map[int64]bool)
		errs   []error
	)
	for _, src := range m.sources {
		events, err := src.Fetch(ctx, from, to, limit)
		m.metrics.FeedFetch(ctx, src.Name(), err == nil)
		if err != nil {
			m.logger.Warn("feed fetch failed", "source", src.Name(), "error", err)
			errs = append(errs, err)
			continue
		}
		m.logger.Debug("feed fetched", "source", src.Name(), "events", len(events))
		for _, e := range events {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			merged = append(merged, e)
		}
	}

	if len(m.sources) > 0 && len(errs) == len(m.sources) {
		return nil, errors.Join(errs...)
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Start.Before(merged[j].Start) })
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}
