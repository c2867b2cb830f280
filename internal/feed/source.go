// Package feed fetches upcoming events from external calendars.
//
// Each Source returns events whose start falls inside [from, to], sorted by
// start time. Sources never retry; a failed fetch is reported to the caller,
// which treats it as an empty cycle.
package feed

import (
	"context"
	"time"

	"github.com/roach88/muster/internal/event"
)

// Source is one external event feed.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Fetch returns at most limit events starting between from and to.
	Fetch(ctx context.Context, from, to time.Time, limit int) ([]event.ExternalEvent, error)
}
