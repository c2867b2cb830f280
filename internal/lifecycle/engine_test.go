package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/muster/internal/event"
	"github.com/roach88/muster/internal/store"
)

func TestAdmit_PostsAnnouncementAndStores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.engine.Admit(ctx, event.ExternalEvent{
		ID:           10,
		Title:        "Example CTF",
		Start:        testNow.Add(time.Hour),
		End:          testNow.Add(2 * time.Hour),
		Participants: 25,
	}, true)
	require.NoError(t, err)
	assert.Equal(t, "msg-1", r.AnnouncementRef)
	assert.Equal(t, event.Voting, r.State)

	stored := f.get(t, 10)
	assert.Equal(t, 25, stored.ParticipantCount)
	assert.Equal(t, "msg-1", stored.AnnouncementRef)
	assert.Equal(t, "PostAnnouncement(10, Example CTF)\n", f.rec.Trace())
}

func TestAdmit_Quiet(t *testing.T) {
	f := newFixture(t)

	r, err := f.engine.Admit(context.Background(), event.ExternalEvent{
		ID: 1, Title: "quiet", Start: testNow, End: testNow.Add(time.Hour),
	}, false)
	require.NoError(t, err)
	assert.False(t, r.HasAnnouncement())
	assert.Empty(t, f.rec.Calls())
}

func TestAdmit_AnnouncementFailureStoresNothing(t *testing.T) {
	f := newFixture(t)
	f.rec.FailOp("PostAnnouncement")

	_, err := f.engine.Admit(context.Background(), event.ExternalEvent{
		ID: 1, Title: "CTF", Start: testNow, End: testNow.Add(time.Hour),
	}, true)
	assert.True(t, event.IsCollaboratorFailure(err))

	n, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

// conflictingStore reports every insert as affecting no rows, as when
// another writer stored the id first.
type conflictingStore struct {
	*store.Store
}

func (s conflictingStore) Insert(_ context.Context, r *event.Record) error {
	return event.NewPersistenceFailure(r.ID, "insert", 0)
}

func TestAdmit_InsertFailureRemovesAnnouncement(t *testing.T) {
	for _, strict := range []bool{true, false} {
		f := newFixture(t)
		p := f.engine.Policy()
		p.Strict = strict
		engine := New(conflictingStore{f.store}, f.rec, f.rec, f.rec, WithClock(f.clock), WithPolicy(p))

		r, err := engine.Admit(context.Background(), event.ExternalEvent{
			ID: 1, Title: "CTF", Start: testNow.Add(time.Hour), End: testNow.Add(2 * time.Hour),
		}, true)
		require.Error(t, err, "strict=%t", strict)
		assert.True(t, event.IsPersistenceFailure(err))
		assert.Nil(t, r)
		assert.Equal(t, "PostAnnouncement(1, CTF)\nDeleteAnnouncement(msg-1)\n", f.rec.Trace())
	}
}

func TestAdmit_RejectsInvalidAndDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Admit(ctx, event.ExternalEvent{
		ID: 1, Title: "backwards", Start: testNow, End: testNow.Add(-time.Second),
	}, false)
	assert.Error(t, err)

	f.seed(t, 2, time.Hour)
	_, err = f.engine.Admit(ctx, event.ExternalEvent{
		ID: 2, Title: "again", Start: testNow, End: testNow.Add(time.Hour),
	}, true)
	assert.True(t, event.IsInvalidState(err))
	assert.Empty(t, f.rec.Calls(), "no second announcement for a known event")
}

func TestCreateTestEvent(t *testing.T) {
	f := newFixture(t)

	r, err := f.engine.CreateTestEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testNow.Unix(), r.ID)
	assert.Equal(t, testNow.Add(15*time.Second), r.Start)
	assert.True(t, r.HasAnnouncement())
}

func TestUpdateParticipantCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 1, time.Hour, "a")

	require.NoError(t, f.engine.UpdateParticipantCount(ctx, 1, 0))
	assert.Empty(t, f.rec.Calls(), "unchanged count is a no-op")

	require.NoError(t, f.engine.UpdateParticipantCount(ctx, 1, 31))
	r := f.get(t, 1)
	assert.Equal(t, 31, r.ParticipantCount)
	assert.Equal(t, []string{"a"}, r.Attendees)
	assert.Equal(t, event.Voting, r.State)
	assert.Equal(t, "UpdateField(msg-1, Teams, 31)\n", f.rec.Trace())
}

func TestPersistenceFailure_StrictVersusLenient(t *testing.T) {
	ctx := context.Background()

	for _, strict := range []bool{true, false} {
		f := newFixture(t)
		p := f.engine.Policy()
		p.Strict = strict
		f.engine.SetPolicy(p)

		// A duplicate insert affects zero rows.
		f.seed(t, 1, time.Hour)
		err := f.engine.checkWrite(ctx, "insert", 1, strict, f.store.Insert(ctx, f.get(t, 1)))
		if strict {
			assert.True(t, event.IsPersistenceFailure(err))
		} else {
			assert.NoError(t, err)
		}
	}
}
