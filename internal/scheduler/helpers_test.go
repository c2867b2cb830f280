package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/muster/internal/event"
	"github.com/roach88/muster/internal/lifecycle"
	"github.com/roach88/muster/internal/store"
	"github.com/roach88/muster/internal/testutil"
)

var testNow = time.Unix(1_700_000_000, 0).UTC()

const testThreshold = 3

type fixture struct {
	sched  *Scheduler
	engine *lifecycle.Engine
	store  *store.Store
	rec    *testutil.Recorder
	clock  *testutil.FakeClock
	feed   *fakeSource
	lister *fakeLister
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	rec := testutil.NewRecorder()
	clk := testutil.NewFakeClock(testNow)
	policy := lifecycle.DefaultPolicy()
	policy.Threshold = testThreshold

	engine := lifecycle.New(st, rec, rec, rec,
		lifecycle.WithClock(clk),
		lifecycle.WithPolicy(policy),
	)

	src := &fakeSource{}
	lister := &fakeLister{}
	sched := New(engine, st, src,
		WithClock(clk),
		WithLister(lister),
		WithSettings(Settings{
			Interval:     60 * time.Second,
			AnnounceLead: 5 * time.Second,
			FetchSpan:    30 * 24 * time.Hour,
			MaxBatch:     100,
		}),
	)

	return &fixture{
		sched:  sched,
		engine: engine,
		store:  st,
		rec:    rec,
		clock:  clk,
		feed:   src,
		lister: lister,
	}
}

// seed admits an announced record and sets its attendees.
func (f *fixture) seed(t *testing.T, id int64, startIn, length time.Duration, attendees ...string) {
	t.Helper()
	ctx := context.Background()
	start := f.clock.Now().Add(startIn)
	_, err := f.engine.Admit(ctx, event.ExternalEvent{
		ID:           id,
		Title:        "Event",
		Start:        start,
		End:          start.Add(length),
		Participants: 10,
	}, true)
	require.NoError(t, err)

	if len(attendees) > 0 {
		require.NoError(t, f.engine.RecordAttendance(ctx, id, attendees))
	}
	f.rec.Reset()
}

func (f *fixture) get(t *testing.T, id int64) *event.Record {
	t.Helper()
	r, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return r
}

type fakeSource struct {
	mu     sync.Mutex
	events []event.ExternalEvent
	err    error
	calls  int
	limit  int
	span   time.Duration
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Fetch(_ context.Context, from, to time.Time, limit int) ([]event.ExternalEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.limit = limit
	s.span = to.Sub(from)
	if s.err != nil {
		return nil, s.err
	}
	return s.events, nil
}

func (s *fakeSource) set(events []event.ExternalEvent, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events, s.err = events, err
}

type fakeLister struct {
	mu      sync.Mutex
	refresh int
	last    []int64
	err     error
}

func (l *fakeLister) RefreshListing(_ context.Context, records []*event.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refresh++
	l.last = nil
	for _, r := range records {
		l.last = append(l.last, r.ID)
	}
	return l.err
}

var errFeedDown = errors.New("feed down")
