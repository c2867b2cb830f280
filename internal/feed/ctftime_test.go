package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ctftimeBody = `[
  {
    "id": 2002,
    "title": "Later CTF",
    "description": "second",
    "url": "",
    "ctftime_url": "https://ctftime.org/event/2002/",
    "start": "2023-11-20T12:00:00+00:00",
    "finish": "2023-11-21T12:00:00+00:00",
    "participants": 40,
    "format": "Jeopardy",
    "onsite": false,
    "restrictions": "Open",
    "prizes": "",
    "organizers": [{"id": 1, "name": "team a"}, {"id": 2, "name": "team b"}]
  },
  {
    "id": 2001,
    "title": "Sooner CTF",
    "description": "first",
    "url": "https://sooner.example",
    "ctftime_url": "https://ctftime.org/event/2001/",
    "start": "2023-11-15T08:00:00+00:00",
    "finish": "2023-11-16T08:00:00+00:00",
    "participants": 12,
    "format": "Attack-Defense",
    "onsite": true,
    "restrictions": "Academic",
    "prizes": "fame",
    "organizers": []
  }
]`

func TestCTFtimeFetch(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/events/", r.URL.Path)
		gotQuery = map[string]string{
			"limit":  r.URL.Query().Get("limit"),
			"start":  r.URL.Query().Get("start"),
			"finish": r.URL.Query().Get("finish"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(ctftimeBody))
	}))
	defer srv.Close()

	from := time.Unix(1_700_000_000, 0)
	to := from.Add(7 * 24 * time.Hour)

	events, err := NewCTFtime(srv.URL).Fetch(context.Background(), from, to, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, map[string]string{
		"limit":  "10",
		"start":  "1700000000",
		"finish": "1700604800",
	}, gotQuery)

	first := events[0]
	assert.Equal(t, int64(2001), first.ID)
	assert.Equal(t, "Sooner CTF", first.Title)
	assert.Equal(t, "https://sooner.example", first.URL)
	assert.Equal(t, 12, first.Participants)
	assert.True(t, first.Onsite)
	assert.Equal(t, "ctftime", first.Source)
	assert.Equal(t, time.Date(2023, 11, 15, 8, 0, 0, 0, time.UTC), first.Start)
	assert.Empty(t, first.Organizers)

	second := events[1]
	assert.Equal(t, "https://ctftime.org/event/2002/", second.URL, "falls back to the ctftime page")
	assert.Equal(t, []string{"team a", "team b"}, second.Organizers)
	require.NoError(t, second.Validate())
}

func TestCTFtimeFetchLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(ctftimeBody))
	}))
	defer srv.Close()

	events, err := NewCTFtime(srv.URL).Fetch(context.Background(), time.Now(), time.Now(), 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(2001), events[0].ID)
}

func TestCTFtimeFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, "oops", "unexpected status"},
		{"bad json", http.StatusOK, "{not json", "decode response"},
		{"bad time", http.StatusOK, `[{"id":1,"title":"x","start":"yesterday","finish":"2023-11-21T12:00:00+00:00"}]`, "parse start"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewCTFtime(srv.URL).Fetch(context.Background(), time.Now(), time.Now(), 5)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewCTFtimeDefaultURL(t *testing.T) {
	assert.Equal(t, DefaultCTFtimeURL, NewCTFtime("").BaseURL)
}
