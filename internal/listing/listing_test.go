package listing

import (
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/roach88/muster/internal/event"
)

var opts = Options{Threshold: 3, GuildID: "g1", VoteChannelID: "c1"}

func record(id int64, title string, startUnix int64, state event.State, ref string, teams int, attendees ...string) *event.Record {
	r := &event.Record{
		ID:               id,
		Title:            title,
		Start:            time.Unix(startUnix, 0).UTC(),
		End:              time.Unix(startUnix+3600, 0).UTC(),
		AnnouncementRef:  ref,
		ParticipantCount: teams,
		State:            state,
	}
	r.SetAttendees(attendees)
	return r
}

func TestRenderGolden(t *testing.T) {
	records := []*event.Record{
		record(4, "Delta", 1700014400, event.Skipped, "", 3, "a"),
		record(2, "Beta CTF", 1700007200, event.Voting, "m2", 0, "a", "b"),
		record(1, "Alpha CTF", 1700003600, event.Voting, "m1", 10),
		record(3, "Gamma", 1700010800, event.Voting, "m3", 25, "a", "b", "c"),
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "upcoming", []byte(Render(records, opts).String()))
}

func TestRenderEmpty(t *testing.T) {
	l := Render(nil, opts)
	assert.Equal(t, Title, l.Title)
	assert.Equal(t, "https://discord.com/channels/g1/c1", l.URL)
	assert.True(t, strings.HasSuffix(l.Description, "No upcoming events.\n"))
}

func TestRenderDoesNotReorderInput(t *testing.T) {
	records := []*event.Record{
		record(2, "B", 200, event.Voting, "", 0),
		record(1, "A", 100, event.Voting, "", 0),
	}
	Render(records, opts)
	assert.Equal(t, int64(2), records[0].ID)
}

func TestRenderTruncates(t *testing.T) {
	var records []*event.Record
	for i := range 200 {
		records = append(records, record(int64(i+1), strings.Repeat("x", 40), int64(1700000000+i), event.Voting, "m", 1))
	}

	l := Render(records, opts)
	assert.LessOrEqual(t, len(l.Description), MaxDescription)
	assert.Contains(t, l.Description, "more_\n")
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		rec  *event.Record
		want string
	}{
		{"no voters", record(1, "x", 0, event.Voting, "", 0), "⚪"},
		{"some voters", record(1, "x", 0, event.Voting, "", 0, "a"), "🔵"},
		{"threshold", record(1, "x", 0, event.Voting, "", 0, "a", "b", "c"), "🟢"},
		{"started", record(1, "x", 0, event.Started, "", 0), "🟢"},
		{"skipped", record(1, "x", 0, event.Skipped, "", 0, "a", "b", "c"), "⚫"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.rec, 3))
		})
	}
}
