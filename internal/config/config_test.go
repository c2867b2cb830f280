package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/muster/internal/job"
)

func noEnv(string) (string, bool) { return "", false }

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("", noEnv)
	require.NoError(t, err)

	assert.Equal(t, 3600, cfg.PollEventsSeconds)
	assert.Equal(t, 60, cfg.ScheduleEventsSeconds)
	assert.Equal(t, 3600, cfg.AnnounceLeadSeconds)
	assert.Equal(t, 4, cfg.Threshold)
	assert.Equal(t, 2, cfg.ManualStartThreshold)
	assert.Equal(t, 43200, cfg.ManualStartWindowSeconds)
	assert.Equal(t, 500, cfg.MaxEventsPerFetch)
	assert.Equal(t, "✅", cfg.VoteEmoji)
	assert.Equal(t, "./db.sqlite3", cfg.DatabasePath)
	assert.True(t, cfg.Debug)
	assert.False(t, cfg.Initialized())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "muster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
guild_id: "111"
threshold: 6
schedule_events_seconds: 30
ical_feeds:
  - name: club
    url: https://calendar.example/club.ics
`), 0o644))

	env := Environ([]string{
		"GUILD_ID=222",
		"MUSTER_THRESHOLD=7",
		"DATABASE_PATH=/var/lib/muster.db",
		"DISCORD_TOKEN=secret",
		"UNRELATED=1",
	})

	cfg, err := Load(path, env)
	require.NoError(t, err)

	assert.Equal(t, "222", cfg.GuildID, "env overrides file")
	assert.Equal(t, 7, cfg.Threshold, "prefixed env overrides file")
	assert.Equal(t, 30, cfg.ScheduleEventsSeconds)
	assert.Equal(t, "/var/lib/muster.db", cfg.DatabasePath)
	assert.Equal(t, "secret", cfg.DiscordToken)
	assert.Equal(t, []Feed{{Name: "club", URL: "https://calendar.example/club.ics"}}, cfg.ICalFeeds)
}

func TestLoadPrefixedEnvBeatsLegacy(t *testing.T) {
	cfg, err := Load("", Environ([]string{"GUILD_ID=legacy", "MUSTER_GUILD_ID=new"}))
	require.NoError(t, err)
	assert.Equal(t, "new", cfg.GuildID)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     []string
		wantErr string
	}{
		{"bad yaml", "threshold: [", nil, "parse config"},
		{"bad env int", "", []string{"MUSTER_THRESHOLD=many"}, "MUSTER_THRESHOLD"},
		{"threshold zero", "threshold: 0", nil, "threshold"},
		{"batch too large", "max_events_per_fetch: 5000", nil, "max_events_per_fetch"},
		{"unknown driver", "database_driver: mysql", nil, "database_driver"},
		{"postgres without dsn", "database_driver: postgres", nil, "postgres_dsn"},
		{"bad feed url", "ical_feeds: [{name: x, url: ftp://nope}]", nil, "url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = filepath.Join(t.TempDir(), "muster.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o644))
			}
			_, err := Load(path, Environ(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), noEnv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestApplySettings(t *testing.T) {
	cfg := Default()

	err := cfg.ApplySettings(map[string]string{
		"channel_id_event_vote":   "999",
		"schedule_events_seconds": "120",
		"debug":                   "false",
		"database_path":           "/tmp/x",
		"nonsense":                "1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.ErrorIs(t, err, ErrNotRuntime)

	assert.Equal(t, "999", cfg.VoteChannelID)
	assert.Equal(t, 120, cfg.ScheduleEventsSeconds)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "./db.sqlite3", cfg.DatabasePath, "non-runtime key untouched")
	assert.True(t, cfg.Initialized())
}

func TestSetRejectsBadValue(t *testing.T) {
	cfg := Default()
	err := cfg.Set("threshold", "lots")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "threshold: not an integer")
	assert.Equal(t, 4, cfg.Threshold)
}

func TestGetAndKeys(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("max_events_per_fetch")
	require.NoError(t, err)
	assert.Equal(t, "500", v)

	v, err = cfg.Get("rate_limit_per_second")
	require.NoError(t, err)
	assert.Equal(t, "5", v)

	_, err = cfg.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownKey)

	canonical, err := CanonicalKey("channel_id_event_vote")
	require.NoError(t, err)
	assert.Equal(t, "vote_channel_id", canonical)

	assert.Contains(t, Keys(), "threshold")
	assert.IsIncreasing(t, Keys())
}

func TestDerivedSettings(t *testing.T) {
	cfg := Default()
	cfg.Debug = false

	p := cfg.Policy()
	assert.Equal(t, 4, p.Threshold)
	assert.Equal(t, 12*time.Hour, p.ManualStartWindow)
	assert.False(t, p.Strict)

	s := cfg.SchedulerSettings()
	assert.Equal(t, time.Minute, s.Interval)
	assert.Equal(t, time.Hour, s.AnnounceLead)
	assert.Equal(t, 30*24*time.Hour, s.FetchSpan)
	assert.Equal(t, 500, s.MaxBatch)
	assert.False(t, s.Strict)

	assert.Equal(t, job.Intervals{job.Ingest: time.Hour, job.Sweep: time.Minute}, cfg.Intervals())
}

func TestClone(t *testing.T) {
	cfg := Default()
	cfg.ICalFeeds = []Feed{{Name: "a", URL: "https://a.example"}}

	cp := cfg.Clone()
	cp.ICalFeeds[0].Name = "b"
	cp.Threshold = 9

	assert.Equal(t, "a", cfg.ICalFeeds[0].Name)
	assert.Equal(t, 4, cfg.Threshold)
}
