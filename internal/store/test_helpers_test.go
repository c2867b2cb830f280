package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/muster/internal/event"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testBase = time.Unix(1_700_000_000, 0).UTC()

// createTestRecord creates a Voting record starting start seconds after
// testBase and lasting an hour.
func createTestRecord(id int64, title string, start int64) *event.Record {
	return &event.Record{
		ID:        id,
		Title:     title,
		Start:     testBase.Add(time.Duration(start) * time.Second),
		End:       testBase.Add(time.Duration(start)*time.Second + time.Hour),
		State:     event.Voting,
		CreatedAt: testBase,
	}
}
