package lifecycle

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/muster/internal/event"
	"github.com/roach88/muster/internal/store"
	"github.com/roach88/muster/internal/testutil"
)

var testNow = time.Unix(1_700_000_000, 0).UTC()

type fixture struct {
	engine *Engine
	store  *store.Store
	rec    *testutil.Recorder
	clock  *testutil.FakeClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	rec := testutil.NewRecorder()
	clk := testutil.NewFakeClock(testNow)
	policy := DefaultPolicy()
	policy.Threshold = 3

	opts = append([]Option{WithClock(clk), WithPolicy(policy)}, opts...)
	return &fixture{
		engine: New(st, rec, rec, rec, opts...),
		store:  st,
		rec:    rec,
		clock:  clk,
	}
}

// seed admits an announced record starting in startIn and lasting an hour.
func (f *fixture) seed(t *testing.T, id int64, startIn time.Duration, attendees ...string) *event.Record {
	t.Helper()
	ctx := context.Background()
	start := f.clock.Now().Add(startIn)
	_, err := f.engine.Admit(ctx, event.ExternalEvent{
		ID:    id,
		Title: "Event " + string(rune('A'+id-1)),
		Start: start,
		End:   start.Add(time.Hour),
	}, true)
	require.NoError(t, err)

	if len(attendees) > 0 {
		r, err := f.store.Get(ctx, id)
		require.NoError(t, err)
		r.SetAttendees(attendees)
		require.NoError(t, f.store.Update(ctx, r))
	}
	f.rec.Reset()
	return f.get(t, id)
}

func (f *fixture) get(t *testing.T, id int64) *event.Record {
	t.Helper()
	r, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return r
}
