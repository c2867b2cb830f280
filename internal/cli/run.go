package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/muster/internal/api"
	"github.com/roach88/muster/internal/config"
	"github.com/roach88/muster/internal/discord"
	"github.com/roach88/muster/internal/job"
	"github.com/roach88/muster/internal/lifecycle"
	"github.com/roach88/muster/internal/scheduler"
	"github.com/roach88/muster/internal/telemetry"
)

// Version is reported in metrics and set at build time.
var Version = "dev"

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot",
		Long: `Connect to Discord and run the event lifecycle.

The service polls the event feeds, announces new events in the vote
channel, starts events that reach the attendance threshold and removes
them once they end. Settings can be changed at runtime through the admin
API.

Example:
  DISCORD_TOKEN=... muster run --config muster.yaml
  muster run --verbose --log-format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(cmd, rootOpts)
		},
	}
}

func runService(cmd *cobra.Command, opts *RootOptions) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := slog.Default()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if cfg.DiscordToken == "" {
		return NewExitError(ExitCommandError, "discord token is required (set DISCORD_TOKEN)")
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing database", "error", err)
		}
	}()
	if err := applyStoredSettings(ctx, cfg, st); err != nil {
		return err
	}

	locker, closeLocker, err := openLocker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	tp, err := telemetry.New(ctx, telemetry.Config{
		ServiceName:    "muster",
		ServiceVersion: Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Insecure:       true,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up metrics", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("error flushing metrics", "error", err)
		}
	}()

	session, client, err := discord.NewSession(cfg.DiscordToken, discordOptions(cfg), logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create discord session", err)
	}

	engine := lifecycle.New(st, client, client, client,
		lifecycle.WithLocker(locker),
		lifecycle.WithLogger(logger),
		lifecycle.WithMetrics(tp.Metrics),
		lifecycle.WithPolicy(cfg.Policy()),
	)

	src, err := newFeed(cfg, logger, tp.Metrics)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid feed configuration", err)
	}
	sched := scheduler.New(engine, st, src,
		scheduler.WithLogger(logger),
		scheduler.WithMetrics(tp.Metrics),
		scheduler.WithLister(client),
		scheduler.WithSettings(cfg.SchedulerSettings()),
	)

	jobs, err := newJobs(cfg, sched, logger, tp.Metrics)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create jobs", err)
	}

	if err := discord.Listen(ctx, session, client, engine, st); err != nil {
		return WrapExitError(ExitFailure, "failed to connect to discord", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Error("error closing discord session", "error", err)
		}
	}()

	settings := &settingsService{
		store:  st,
		engine: engine,
		sched:  sched,
		client: client,
		jobs:   jobs,
		logger: logger,
		runCtx: ctx,
		cfg:    cfg,
	}
	server := api.New(engine, st, settings, logger)

	if cfg.Initialized() {
		jobs.StartAll(ctx)
	} else {
		logger.Warn("vote channel not configured, jobs are idle until vote_channel_id is set")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return server.ListenAndServe(gctx, cfg.APIAddr) })
	g.Go(func() error {
		<-gctx.Done()
		jobs.StopAll()
		sched.Stop()
		return nil
	})

	logger.Info("muster started", "version", Version, "api", cfg.APIAddr, "jobs", jobs.Running())
	fmt.Fprintln(cmd.OutOrStdout(), "muster is running. Press Ctrl-C to stop.")

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "service stopped with an error", err)
	}
	logger.Info("muster stopped gracefully")
	return nil
}

func newJobs(cfg *config.Config, sched *scheduler.Scheduler, logger *slog.Logger, metrics *telemetry.Metrics) (*job.Manager, error) {
	intervals := cfg.Intervals()
	jobOpts := []job.Option{job.WithLogger(logger), job.WithMetrics(metrics)}

	ingest, err := job.NewRunner(job.Ingest, intervals[job.Ingest], sched.Ingest, jobOpts...)
	if err != nil {
		return nil, err
	}
	sweep, err := job.NewRunner(job.Sweep, intervals[job.Sweep], sched.Sweep, jobOpts...)
	if err != nil {
		return nil, err
	}
	return job.NewManager(logger, cfg.Debug, ingest, sweep), nil
}
