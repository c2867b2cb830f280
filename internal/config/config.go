// Package config loads the service configuration.
//
// Values are resolved in order: built-in defaults, an optional YAML file,
// environment variables, and finally the runtime settings stored next to the
// events. The result is validated against an embedded CUE schema.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/muster/internal/job"
	"github.com/roach88/muster/internal/lifecycle"
	"github.com/roach88/muster/internal/scheduler"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Feed is an iCalendar feed polled alongside CTFtime.
type Feed struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// Config is the complete service configuration.
type Config struct {
	GuildID       string `yaml:"guild_id" json:"guild_id"`
	VoteChannelID string `yaml:"vote_channel_id" json:"vote_channel_id"`
	ListChannelID string `yaml:"list_channel_id" json:"list_channel_id"`
	DiscordToken  string `yaml:"discord_token" json:"-"`

	DatabaseDriver string `yaml:"database_driver" json:"database_driver"`
	DatabasePath   string `yaml:"database_path" json:"database_path"`
	PostgresDSN    string `yaml:"postgres_dsn" json:"postgres_dsn"`
	RedisAddr      string `yaml:"redis_addr" json:"redis_addr"`

	APIAddr      string `yaml:"api_addr" json:"api_addr"`
	CTFtimeURL   string `yaml:"ctftime_url" json:"ctftime_url"`
	ICalFeeds    []Feed `yaml:"ical_feeds" json:"ical_feeds"`
	OTLPEndpoint string `yaml:"otlp_endpoint" json:"otlp_endpoint"`

	PollEventsSeconds        int     `yaml:"poll_events_seconds" json:"poll_events_seconds"`
	ScheduleEventsSeconds    int     `yaml:"schedule_events_seconds" json:"schedule_events_seconds"`
	AnnounceLeadSeconds      int     `yaml:"announce_lead_seconds" json:"announce_lead_seconds"`
	Threshold                int     `yaml:"threshold" json:"threshold"`
	ManualStartThreshold     int     `yaml:"manual_start_threshold" json:"manual_start_threshold"`
	ManualStartWindowSeconds int     `yaml:"manual_start_window_seconds" json:"manual_start_window_seconds"`
	MaxEventsPerFetch        int     `yaml:"max_events_per_fetch" json:"max_events_per_fetch"`
	FetchSpanDays            int     `yaml:"fetch_span_days" json:"fetch_span_days"`
	SkipAnnounce             bool    `yaml:"skip_announce" json:"skip_announce"`
	VoteEmoji                string  `yaml:"vote_emoji" json:"vote_emoji"`
	RateLimitPerSecond       float64 `yaml:"rate_limit_per_second" json:"rate_limit_per_second"`
	Debug                    bool    `yaml:"debug" json:"debug"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		DatabaseDriver:           DriverSQLite,
		DatabasePath:             "./db.sqlite3",
		APIAddr:                  "127.0.0.1:8080",
		CTFtimeURL:               "https://ctftime.org",
		ICalFeeds:                []Feed{},
		PollEventsSeconds:        60 * 60,
		ScheduleEventsSeconds:    60,
		AnnounceLeadSeconds:      60 * 60,
		Threshold:                4,
		ManualStartThreshold:     2,
		ManualStartWindowSeconds: 60 * 60 * 12,
		MaxEventsPerFetch:        500,
		FetchSpanDays:            30,
		VoteEmoji:                "✅",
		RateLimitPerSecond:       5,
		Debug:                    true,
	}
}

// Load resolves the configuration from defaults, the YAML file at path (if
// path is not empty) and the environment, then validates it.
func Load(path string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	if err := cfg.applyEnv(lookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cp := *c
	cp.ICalFeeds = append([]Feed{}, c.ICalFeeds...)
	return &cp
}

// Initialized reports whether a vote channel is configured. Periodic jobs
// only run once it is.
func (c *Config) Initialized() bool {
	return c.VoteChannelID != ""
}

// Policy returns the lifecycle policy.
func (c *Config) Policy() lifecycle.Policy {
	return lifecycle.Policy{
		Threshold:            c.Threshold,
		ManualStartThreshold: c.ManualStartThreshold,
		ManualStartWindow:    seconds(c.ManualStartWindowSeconds),
		Strict:               c.Debug,
	}
}

// SchedulerSettings returns the scheduler tunables.
func (c *Config) SchedulerSettings() scheduler.Settings {
	return scheduler.Settings{
		Interval:     seconds(c.ScheduleEventsSeconds),
		AnnounceLead: seconds(c.AnnounceLeadSeconds),
		FetchSpan:    time.Duration(c.FetchSpanDays) * 24 * time.Hour,
		MaxBatch:     c.MaxEventsPerFetch,
		SkipAnnounce: c.SkipAnnounce,
		Strict:       c.Debug,
	}
}

// Intervals returns the job intervals.
func (c *Config) Intervals() job.Intervals {
	return job.Intervals{
		job.Ingest: seconds(c.PollEventsSeconds),
		job.Sweep:  seconds(c.ScheduleEventsSeconds),
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
