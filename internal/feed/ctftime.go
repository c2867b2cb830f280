package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/roach88/muster/internal/event"
)

// DefaultCTFtimeURL is the public CTFtime API base.
const DefaultCTFtimeURL = "https://ctftime.org"

// CTFtime reads the CTFtime events API.
type CTFtime struct {
	BaseURL string
	Client  *http.Client
}

// NewCTFtime creates a client for baseURL. An empty baseURL selects the
// public API.
func NewCTFtime(baseURL string) *CTFtime {
	if baseURL == "" {
		baseURL = DefaultCTFtimeURL
	}
	return &CTFtime{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *CTFtime) Name() string { return "ctftime" }

type ctftimeEvent struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	URL          string `json:"url"`
	CTFtimeURL   string `json:"ctftime_url"`
	Start        string `json:"start"`
	Finish       string `json:"finish"`
	Participants int    `json:"participants"`
	Format       string `json:"format"`
	Onsite       bool   `json:"onsite"`
	Restrictions string `json:"restrictions"`
	Prizes       string `json:"prizes"`
	Organizers   []struct {
		Name string `json:"name"`
	} `json:"organizers"`
}

// Fetch calls GET /api/v1/events/?limit=&start=&finish=.
func (c *CTFtime) Fetch(ctx context.Context, from, to time.Time, limit int) ([]event.ExternalEvent, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("start", strconv.FormatInt(from.Unix(), 10))
	q.Set("finish", strconv.FormatInt(to.Unix(), 10))
	endpoint := c.BaseURL + "/api/v1/events/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("ctftime: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	// CTFtime rejects the default Go user agent.
	req.Header.Set("User-Agent", "muster/1.0")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ctftime: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ctftime: unexpected status %s", resp.Status)
	}

	var raw []ctftimeEvent
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("ctftime: decode response: %w", err)
	}

	events := make([]event.ExternalEvent, 0, len(raw))
	for _, r := range raw {
		e, err := r.toExternal()
		if err != nil {
			return nil, fmt.Errorf("ctftime: event %d: %w", r.ID, err)
		}
		events = append(events, e)
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (r ctftimeEvent) toExternal() (event.ExternalEvent, error) {
	start, err := time.Parse(time.RFC3339, r.Start)
	if err != nil {
		return event.ExternalEvent{}, fmt.Errorf("parse start: %w", err)
	}
	finish, err := time.Parse(time.RFC3339, r.Finish)
	if err != nil {
		return event.ExternalEvent{}, fmt.Errorf("parse finish: %w", err)
	}

	link := r.URL
	if link == "" {
		link = r.CTFtimeURL
	}
	organizers := make([]string, 0, len(r.Organizers))
	for _, o := range r.Organizers {
		organizers = append(organizers, o.Name)
	}

	return event.ExternalEvent{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		URL:          link,
		Start:        start.UTC(),
		End:          finish.UTC(),
		Participants: r.Participants,
		Format:       r.Format,
		Onsite:       r.Onsite,
		Restrictions: r.Restrictions,
		Organizers:   organizers,
		Prizes:       r.Prizes,
		Source:       "ctftime",
	}, nil
}
