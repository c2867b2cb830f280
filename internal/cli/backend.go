package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/muster/internal/config"
	"github.com/roach88/muster/internal/discord"
	"github.com/roach88/muster/internal/feed"
	"github.com/roach88/muster/internal/lifecycle"
	"github.com/roach88/muster/internal/lock"
	"github.com/roach88/muster/internal/store"
	"github.com/roach88/muster/internal/store/postgres"
	"github.com/roach88/muster/internal/telemetry"
)

// eventStore is what the commands need from either database backend.
type eventStore interface {
	lifecycle.Store
	Setting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	Settings(ctx context.Context) (map[string]string, error)
	Close() error
}

var (
	_ eventStore = (*store.Store)(nil)
	_ eventStore = (*postgres.Store)(nil)
)

// loadConfig resolves the file and environment configuration.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath, opts.lookupEnv())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// openStore opens the configured backend.
func openStore(ctx context.Context, cfg *config.Config) (eventStore, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		st, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		return st, nil
	default:
		st, err := store.Open(cfg.DatabasePath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		return st, nil
	}
}

// applyStoredSettings overlays the runtime settings saved in st. Keys that
// are unknown or no longer runtime-settable are logged and ignored.
func applyStoredSettings(ctx context.Context, cfg *config.Config, st eventStore) error {
	settings, err := st.Settings(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read settings", err)
	}
	if err := cfg.ApplySettings(settings); err != nil {
		slog.Warn("ignoring stored settings", "error", err)
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "stored settings are invalid", err)
	}
	return nil
}

// openLocker returns the Redis lock when an address is configured and the
// in-process lock otherwise.
func openLocker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (lock.Locker, func() error, error) {
	if cfg.RedisAddr == "" {
		return lock.NewKeyed(), func() error { return nil }, nil
	}
	r, err := lock.DialRedis(ctx, cfg.RedisAddr, "", 0, lock.WithLogger(logger))
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to connect to redis", err)
	}
	logger.Info("using redis event locks", "addr", cfg.RedisAddr)
	return r, r.Close, nil
}

// newFeed combines CTFtime with the configured iCalendar feeds.
func newFeed(cfg *config.Config, logger *slog.Logger, metrics *telemetry.Metrics) (*feed.Multi, error) {
	var sources []feed.Source
	if cfg.CTFtimeURL != "" {
		sources = append(sources, feed.NewCTFtime(cfg.CTFtimeURL))
	}
	for _, f := range cfg.ICalFeeds {
		sources = append(sources, feed.NewICal(f.Name, f.URL))
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no event feeds configured")
	}
	return feed.NewMulti(logger, metrics, sources...), nil
}

func discordOptions(cfg *config.Config) discord.Options {
	return discord.Options{
		GuildID:       cfg.GuildID,
		VoteChannelID: cfg.VoteChannelID,
		ListChannelID: cfg.ListChannelID,
		VoteEmoji:     cfg.VoteEmoji,
		Threshold:     cfg.Threshold,
		RatePerSecond: cfg.RateLimitPerSecond,
	}
}
