package event

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ExternalEvent is an event as reported by a feed, before it is admitted into
// the store.
type ExternalEvent struct {
	ID           int64
	Title        string
	Description  string
	URL          string
	Start        time.Time
	End          time.Time
	Participants int
	Format       string
	Onsite       bool
	Restrictions string
	Organizers   []string
	Prizes       string
	Source       string
}

// Validate checks the invariants a record relies on for its whole life.
func (e ExternalEvent) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return errors.New("title is empty")
	}
	if e.Start.IsZero() || e.End.IsZero() {
		return fmt.Errorf("event %d: missing start or end", e.ID)
	}
	if e.End.Before(e.Start) {
		return fmt.Errorf("event %d: end %s is before start %s",
			e.ID, e.End.Format(time.RFC3339), e.Start.Format(time.RFC3339))
	}
	return nil
}

// NewRecord builds a fresh Voting record for the feed item.
func (e ExternalEvent) NewRecord(now time.Time) *Record {
	return &Record{
		ID:               e.ID,
		Title:            e.Title,
		Description:      e.Description,
		URL:              e.URL,
		Start:            e.Start.UTC(),
		End:              e.End.UTC(),
		ParticipantCount: e.Participants,
		State:            Voting,
		CreatedAt:        now.UTC(),
	}
}

// TestEvent returns the short-lived event used to exercise the lifecycle by
// hand. It starts 15 seconds from now and ends a minute from now.
func TestEvent(now time.Time) ExternalEvent {
	return ExternalEvent{
		ID:          now.Unix(),
		Title:       "Test Event",
		Description: "This is a test event",
		URL:         "https://ctftime.org/",
		Start:       now.Add(15 * time.Second),
		End:         now.Add(60 * time.Second),
		Format:      "Jeopardy",
		Organizers:  []string{"muster"},
		Source:      "test",
	}
}
