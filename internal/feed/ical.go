package feed

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/roach88/muster/internal/event"
)

// ICal reads events from an iCalendar (RFC 5545) URL. Recurring events are
// expanded into one event per occurrence inside the fetch window.
type ICal struct {
	name     string
	url      string
	client   *http.Client
	location *time.Location
}

// NewICal creates a source named name reading url.
func NewICal(name, url string) *ICal {
	return &ICal{
		name:     name,
		url:      url,
		client:   &http.Client{Timeout: 30 * time.Second},
		location: time.UTC,
	}
}

func (s *ICal) Name() string { return s.name }

// Fetch downloads and decodes the calendar.
func (s *ICal) Fetch(ctx context.Context, from, to time.Time, limit int) ([]event.ExternalEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", s.name, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: HTTP request failed: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %s", s.name, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response body: %w", s.name, err)
	}
	if err := validateICalFormat(string(body)); err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}

	events, err := s.parse(strings.NewReader(string(body)), from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (s *ICal) parse(r io.Reader, from, to time.Time) ([]event.ExternalEvent, error) {
	dec := ical.NewDecoder(r)
	var events []event.ExternalEvent

	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode calendar: %w", err)
		}

		for _, comp := range cal.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			if status := propText(comp, ical.PropStatus); strings.EqualFold(status, "CANCELLED") {
				continue
			}
			occurrences, err := s.occurrences(comp, from, to)
			if err != nil {
				return nil, err
			}
			events = append(events, occurrences...)
		}
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, nil
}

func (s *ICal) occurrences(comp *ical.Component, from, to time.Time) ([]event.ExternalEvent, error) {
	ev := ical.Event{Component: comp}
	uid := propText(comp, ical.PropUID)
	title := propText(comp, ical.PropSummary)

	start, err := ev.DateTimeStart(s.location)
	if err != nil {
		return nil, fmt.Errorf("event %q: start: %w", uid, err)
	}
	end, err := ev.DateTimeEnd(s.location)
	if err != nil || end.IsZero() {
		end = start
	}
	if uid == "" {
		uid = title + "|" + start.Format(time.RFC3339)
	}

	base := event.ExternalEvent{
		Title:       title,
		Description: propText(comp, ical.PropDescription),
		URL:         propText(comp, ical.PropURL),
		Source:      s.name,
	}

	set, err := comp.RecurrenceSet(s.location)
	if err != nil {
		return nil, fmt.Errorf("event %q: recurrence: %w", uid, err)
	}
	if set == nil {
		if start.Before(from) || start.After(to) {
			return nil, nil
		}
		base.ID = StableID(uid)
		base.Start, base.End = start.UTC(), end.UTC()
		return []event.ExternalEvent{base}, nil
	}

	duration := end.Sub(start)
	var out []event.ExternalEvent
	for _, occ := range set.Between(from, to, true) {
		e := base
		e.ID = StableID(uid + "|" + occ.UTC().Format(time.RFC3339))
		e.Start = occ.UTC()
		e.End = occ.Add(duration).UTC()
		out = append(out, e)
	}
	return out, nil
}

func propText(comp *ical.Component, name string) string {
	if p := comp.Props.Get(name); p != nil {
		return p.Value
	}
	return ""
}

// StableID maps a calendar UID onto a positive record id.
func StableID(uid string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(uid))
	return int64(h.Sum64() & (1<<63 - 1))
}

func validateICalFormat(body string) error {
	trimmed := strings.TrimSpace(body)
	upper := strings.ToUpper(trimmed)
	if strings.HasPrefix(upper, "<!DOCTYPE") || strings.HasPrefix(upper, "<HTML") {
		return errors.New("received HTML instead of iCalendar data - check if URL requires authentication")
	}
	if !strings.HasPrefix(trimmed, "BEGIN:VCALENDAR") {
		preview := trimmed
		if len(preview) > 100 {
			preview = preview[:100]
		}
		return fmt.Errorf("invalid iCalendar format - expected BEGIN:VCALENDAR, got: %s", preview)
	}
	return nil
}
