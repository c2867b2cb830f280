package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/muster/internal/event"
)

func TestInsertAndGet(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	r := createTestRecord(1, "Example CTF", 60)
	r.Description = "jeopardy"
	r.AnnouncementRef = "msg-1"
	r.ParticipantCount = 12
	r.SetAttendees([]string{"u2", "u1"})
	require.NoError(t, s.Insert(ctx, r))

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestInsert_DuplicateIsPersistenceFailure(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.Insert(ctx, createTestRecord(1, "first", 0)))

	err := s.Insert(ctx, createTestRecord(1, "second", 0))
	assert.True(t, event.IsPersistenceFailure(err))

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title, "duplicate insert must not overwrite")
}

func TestGet_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Get(t.Context(), 99)
	assert.True(t, event.IsNotFound(err))
}

func TestUpdate_PersistsFlagsAndAttendees(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	r := createTestRecord(1, "CTF", 0)
	require.NoError(t, s.Insert(ctx, r))

	r.State = event.Started
	r.Notified = true
	r.SpaceRef = "chan-1"
	r.SetAttendees([]string{"a", "b"})
	require.NoError(t, s.Update(ctx, r))

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, event.Started, got.State)
	assert.True(t, got.Notified)
	assert.Equal(t, "chan-1", got.SpaceRef)
	assert.Equal(t, []string{"a", "b"}, got.Attendees)
}

func TestUpdate_MissingRowIsPersistenceFailure(t *testing.T) {
	s := createTestStore(t)

	err := s.Update(t.Context(), createTestRecord(5, "ghost", 0))
	assert.True(t, event.IsPersistenceFailure(err))
}

func TestDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.Insert(ctx, createTestRecord(1, "CTF", 0)))
	require.NoError(t, s.Delete(ctx, 1))

	_, err := s.Get(ctx, 1)
	assert.True(t, event.IsNotFound(err))

	err = s.Delete(ctx, 1)
	assert.True(t, event.IsPersistenceFailure(err), "second delete affects no rows")
}

func TestGetByAnnouncement(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	r := createTestRecord(1, "CTF", 0)
	r.AnnouncementRef = "msg-9"
	require.NoError(t, s.Insert(ctx, r))
	require.NoError(t, s.Insert(ctx, createTestRecord(2, "quiet", 0)))

	got, err := s.GetByAnnouncement(ctx, "msg-9")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)

	_, err = s.GetByAnnouncement(ctx, "")
	assert.True(t, event.IsNotFound(err), "empty ref never matches records without announcements")

	_, err = s.GetByAnnouncement(ctx, "msg-404")
	assert.True(t, event.IsNotFound(err))
}

func TestAllAndCount_OrderedByStart(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)

	require.NoError(t, s.Insert(ctx, createTestRecord(3, "late", 300)))
	require.NoError(t, s.Insert(ctx, createTestRecord(2, "tie-b", 100)))
	require.NoError(t, s.Insert(ctx, createTestRecord(1, "tie-a", 100)))

	all, err = s.All(ctx)
	require.NoError(t, err)
	ids := make([]int64, len(all))
	for i, r := range all {
		ids[i] = r.ID
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestScan_RejectsCorruptFlags(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.Insert(ctx, createTestRecord(1, "CTF", 0)))
	_, err := s.db.ExecContext(ctx, `UPDATE events SET flags = 3 WHERE id = 1`)
	require.NoError(t, err)

	_, err = s.Get(ctx, 1)
	assert.Error(t, err)
}

func TestSettings(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	_, ok, err := s.Setting(ctx, "threshold")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetSetting(ctx, "threshold", "3"))
	require.NoError(t, s.SetSetting(ctx, "threshold", "5"))
	require.NoError(t, s.SetSetting(ctx, "vote_channel_id", "c1"))

	v, ok, err := s.Setting(ctx, "threshold")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "5", v)

	all, err := s.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"threshold": "5", "vote_channel_id": "c1"}, all)
}
