package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/muster/internal/config"
	"github.com/roach88/muster/internal/job"
	"github.com/roach88/muster/internal/lifecycle"
	"github.com/roach88/muster/internal/scheduler"
)

func TestRunMissingToken(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{
		Format:    "text",
		LookupEnv: config.Environ([]string{"MUSTER_DATABASE_PATH=" + filepath.Join(t.TempDir(), "db.sqlite3")}),
	}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord token is required")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "muster.yaml")
	require.NoError(t, os.WriteFile(path, []byte("threshold: 0\n"), 0o644))

	rootOpts := &RootOptions{
		Format:     "text",
		ConfigPath: path,
		LookupEnv:  config.Environ([]string{"DISCORD_TOKEN=token"}),
	}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunRejectsArgs(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"extra"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestRunHelpText(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{})

	assert.Equal(t, "run", cmd.Use)
	assert.Contains(t, cmd.Long, "vote")
	assert.Contains(t, cmd.Long, "admin")
}

func TestNewJobs(t *testing.T) {
	cfg := config.Default()
	cfg.PollEventsSeconds = 120
	cfg.ScheduleEventsSeconds = 15

	st := openTestStore(t)
	engine := lifecycle.New(st, lifecycle.Nop{}, lifecycle.Nop{}, lifecycle.Nop{})
	sched := scheduler.New(engine, st, nil)

	jobs, err := newJobs(cfg, sched, slog.New(slog.DiscardHandler), nil)
	require.NoError(t, err)
	assert.Empty(t, jobs.Running())
	require.NotNil(t, jobs.Runner(job.Ingest))
	assert.Equal(t, 120*time.Second, jobs.Runner(job.Ingest).Interval())
	assert.Equal(t, 15*time.Second, jobs.Runner(job.Sweep).Interval())
}
