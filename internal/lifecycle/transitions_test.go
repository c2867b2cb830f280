package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/muster/internal/event"
)

func TestSkip_TrueThenFalse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 1, time.Hour)

	ok, err := f.engine.Skip(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, event.Skipped, f.get(t, 1).State)
	assert.Equal(t,
		"UpdateField(msg-1, Status, Skipped)\nUpdateStatusColor(msg-1, 0x8a8a8a)\nClearInteractivity(msg-1)\n",
		f.rec.Trace())

	f.rec.Reset()
	before := f.get(t, 1)
	ok, err = f.engine.Skip(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, before, f.get(t, 1))
	assert.Empty(t, f.rec.Calls())
}

func TestSkip_StartedAndExpiredAreNoops(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 1, time.Hour, "a", "b", "c")
	f.seed(t, 2, -2*time.Hour)

	require.NoError(t, f.engine.TryStart(ctx, 1, false))
	ok, err := f.engine.Skip(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.engine.Skip(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok, "record past its end cannot be skipped")
	assert.Equal(t, event.Voting, f.get(t, 2).State)
}

func TestSkip_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Skip(context.Background(), 404)
	assert.True(t, event.IsNotFound(err))
}

func TestTryStart_AtThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 1, 5*time.Second, "a", "b", "c")

	require.NoError(t, f.engine.TryStart(ctx, 1, false))

	r := f.get(t, 1)
	assert.Equal(t, event.Started, r.State)
	assert.Equal(t, "space-1", r.SpaceRef)
	assert.Equal(t, []string{"a", "b", "c"}, r.Attendees)
	assert.Equal(t, ""+
		"CreateSpace(Event A)\n"+
		"PostToSpace(space-1, Event A is starting soon!\n<@a> <@b> <@c>)\n"+
		"UpdateField(msg-1, Status, Started <#space-1>)\n"+
		"UpdateStatusColor(msg-1, 0x2fde5d)\n"+
		"ClearInteractivity(msg-1)\n",
		f.rec.Trace())
}

func TestTryStart_BelowThresholdSkips(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 1, 5*time.Second, "a", "b")

	require.NoError(t, f.engine.TryStart(ctx, 1, false))

	r := f.get(t, 1)
	assert.Equal(t, event.Skipped, r.State)
	assert.Empty(t, r.SpaceRef)
	assert.Empty(t, f.rec.CallsTo("CreateSpace"))
}

func TestTryStart_AlreadyStarted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 1, time.Hour, "a", "b", "c")
	require.NoError(t, f.engine.TryStart(ctx, 1, false))
	f.rec.Reset()
	before := f.get(t, 1)

	for _, force := range []bool{false, true} {
		err := f.engine.TryStart(ctx, 1, force)
		assert.True(t, event.IsAlreadyStarted(err))
	}
	assert.Equal(t, before, f.get(t, 1))
	assert.Empty(t, f.rec.Calls())
}

func TestTryStart_SkippedNeedsForce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 1, time.Hour)
	_, err := f.engine.Skip(ctx, 1)
	require.NoError(t, err)
	f.rec.Reset()

	require.NoError(t, f.engine.TryStart(ctx, 1, false))
	assert.Equal(t, event.Skipped, f.get(t, 1).State)
	assert.Empty(t, f.rec.Calls())

	require.NoError(t, f.engine.TryStart(ctx, 1, true))
	r := f.get(t, 1)
	assert.Equal(t, event.Started, r.State)
	assert.Equal(t, event.FlagStarted, r.Flags(), "forced start leaves only the started marker")
}

func TestTryStart_SpaceFailureLeavesRecordUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 1, time.Hour, "a", "b", "c")
	f.rec.FailOp("CreateSpace")
	before := f.get(t, 1)

	err := f.engine.TryStart(ctx, 1, false)
	assert.True(t, event.IsCollaboratorFailure(err))
	assert.Equal(t, before, f.get(t, 1))
}

func TestTryStart_AnnouncementFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 1, time.Hour, "a", "b", "c")
	f.rec.FailOp("UpdateField")
	f.rec.FailOp("ClearInteractivity")

	require.NoError(t, f.engine.TryStart(ctx, 1, false))
	assert.Equal(t, event.Started, f.get(t, 1).State)
}

func TestTryStart_ConcurrentCallsStartOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 1, time.Hour, "a", "b", "c")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.engine.TryStart(ctx, 1, false)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, event.IsAlreadyStarted(err))
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, f.rec.CallsTo("CreateSpace"), 1)
}

func TestExpire(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, f *fixture)
		want  string
	}{
		{
			name:  "voting record loses its announcement",
			setup: func(t *testing.T, f *fixture) {},
			want:  "DeleteAnnouncement(msg-1)\n",
		},
		{
			name: "skipped record loses its announcement",
			setup: func(t *testing.T, f *fixture) {
				_, err := f.engine.Skip(context.Background(), 1)
				require.NoError(t, err)
			},
			want: "DeleteAnnouncement(msg-1)\n",
		},
		{
			name: "started record is marked ended",
			setup: func(t *testing.T, f *fixture) {
				r := f.get(t, 1)
				r.SetAttendees([]string{"a", "b", "c"})
				require.NoError(t, f.store.Update(context.Background(), r))
				require.NoError(t, f.engine.TryStart(context.Background(), 1, false))
			},
			want: "UpdateField(msg-1, Status, Ended <#space-1>)\nUpdateStatusColor(msg-1, 0x3b6961)\nClearInteractivity(msg-1)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.seed(t, 1, time.Minute)
			tt.setup(t, f)
			f.rec.Reset()

			require.NoError(t, f.engine.Expire(ctx, 1))
			_, err := f.store.Get(ctx, 1)
			assert.True(t, event.IsNotFound(err))
			assert.Equal(t, tt.want, f.rec.Trace())
		})
	}
}

func TestExpire_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 1, -2*time.Hour)

	require.NoError(t, f.engine.Expire(ctx, 1))
	require.NoError(t, f.engine.Expire(ctx, 1))
	assert.Len(t, f.rec.CallsTo("DeleteAnnouncement"), 1)
}

func TestExpire_WithoutAnnouncement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.Admit(ctx, event.ExternalEvent{
		ID: 1, Title: "quiet", Start: testNow, End: testNow.Add(time.Hour),
	}, false)
	require.NoError(t, err)

	require.NoError(t, f.engine.Expire(ctx, 1))
	assert.Empty(t, f.rec.Calls())
}
