package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownKey is returned for a setting that does not exist.
var ErrUnknownKey = errors.New("unknown config key")

// ErrNotRuntime is returned for a key that cannot change while running.
var ErrNotRuntime = errors.New("config key cannot be changed at runtime")

type key struct {
	set     func(c *Config, v string) error
	get     func(c *Config) string
	runtime bool
}

func stringKey(field func(c *Config) *string, runtime bool) key {
	return key{
		set:     func(c *Config, v string) error { *field(c) = v; return nil },
		get:     func(c *Config) string { return *field(c) },
		runtime: runtime,
	}
}

func intKey(field func(c *Config) *int, runtime bool) key {
	return key{
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("not an integer: %q", v)
			}
			*field(c) = n
			return nil
		},
		get:     func(c *Config) string { return strconv.Itoa(*field(c)) },
		runtime: runtime,
	}
}

func boolKey(field func(c *Config) *bool, runtime bool) key {
	return key{
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("not a boolean: %q", v)
			}
			*field(c) = b
			return nil
		},
		get:     func(c *Config) string { return strconv.FormatBool(*field(c)) },
		runtime: runtime,
	}
}

func floatKey(field func(c *Config) *float64, runtime bool) key {
	return key{
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("not a number: %q", v)
			}
			*field(c) = f
			return nil
		},
		get:     func(c *Config) string { return strconv.FormatFloat(*field(c), 'g', -1, 64) },
		runtime: runtime,
	}
}

var keys = map[string]key{
	"guild_id":        stringKey(func(c *Config) *string { return &c.GuildID }, false),
	"vote_channel_id": stringKey(func(c *Config) *string { return &c.VoteChannelID }, true),
	"list_channel_id": stringKey(func(c *Config) *string { return &c.ListChannelID }, false),
	"discord_token":   stringKey(func(c *Config) *string { return &c.DiscordToken }, false),
	"database_driver": stringKey(func(c *Config) *string { return &c.DatabaseDriver }, false),
	"database_path":   stringKey(func(c *Config) *string { return &c.DatabasePath }, false),
	"postgres_dsn":    stringKey(func(c *Config) *string { return &c.PostgresDSN }, false),
	"redis_addr":      stringKey(func(c *Config) *string { return &c.RedisAddr }, false),
	"api_addr":        stringKey(func(c *Config) *string { return &c.APIAddr }, false),
	"ctftime_url":     stringKey(func(c *Config) *string { return &c.CTFtimeURL }, false),
	"otlp_endpoint":   stringKey(func(c *Config) *string { return &c.OTLPEndpoint }, false),
	"vote_emoji":      stringKey(func(c *Config) *string { return &c.VoteEmoji }, false),

	"poll_events_seconds":         intKey(func(c *Config) *int { return &c.PollEventsSeconds }, true),
	"schedule_events_seconds":     intKey(func(c *Config) *int { return &c.ScheduleEventsSeconds }, true),
	"announce_lead_seconds":       intKey(func(c *Config) *int { return &c.AnnounceLeadSeconds }, true),
	"threshold":                   intKey(func(c *Config) *int { return &c.Threshold }, true),
	"manual_start_threshold":      intKey(func(c *Config) *int { return &c.ManualStartThreshold }, true),
	"manual_start_window_seconds": intKey(func(c *Config) *int { return &c.ManualStartWindowSeconds }, true),
	"max_events_per_fetch":        intKey(func(c *Config) *int { return &c.MaxEventsPerFetch }, true),
	"fetch_span_days":             intKey(func(c *Config) *int { return &c.FetchSpanDays }, true),

	"skip_announce": boolKey(func(c *Config) *bool { return &c.SkipAnnounce }, true),
	"debug":         boolKey(func(c *Config) *bool { return &c.Debug }, true),

	"rate_limit_per_second": floatKey(func(c *Config) *float64 { return &c.RateLimitPerSecond }, false),
}

// Older deployments stored the vote channel under this key.
var aliases = map[string]string{
	"channel_id_event_vote": "vote_channel_id",
}

// Environment variables read without the MUSTER_ prefix.
var legacyEnv = map[string]string{
	"GUILD_ID":              "guild_id",
	"CHANNEL_ID_EVENT_LIST": "list_channel_id",
	"DATABASE_PATH":         "database_path",
	"DISCORD_TOKEN":         "discord_token",
}

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "MUSTER_"

func lookupKey(name string) (string, key, error) {
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	k, ok := keys[name]
	if !ok {
		return name, key{}, fmt.Errorf("%w: %s", ErrUnknownKey, name)
	}
	return name, k, nil
}

// Keys returns every known key, sorted.
func Keys() []string {
	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the value of key as a string.
func (c *Config) Get(name string) (string, error) {
	_, k, err := lookupKey(name)
	if err != nil {
		return "", err
	}
	return k.get(c), nil
}

// Set changes one runtime key.
func (c *Config) Set(name, value string) error {
	canonical, k, err := lookupKey(name)
	if err != nil {
		return err
	}
	if !k.runtime {
		return fmt.Errorf("%w: %s", ErrNotRuntime, canonical)
	}
	if err := k.set(c, value); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalid, canonical, err)
	}
	return nil
}

// CanonicalKey resolves aliases.
func CanonicalKey(name string) (string, error) {
	canonical, _, err := lookupKey(name)
	return canonical, err
}

// ApplySettings overlays stored runtime settings. Unknown and non-runtime
// keys are reported together; the valid keys are still applied.
func (c *Config) ApplySettings(settings map[string]string) error {
	names := make([]string, 0, len(settings))
	for name := range settings {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := c.Set(name, settings[name]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnv(lookupEnv func(string) (string, bool)) error {
	legacy := make([]string, 0, len(legacyEnv))
	for name := range legacyEnv {
		legacy = append(legacy, name)
	}
	sort.Strings(legacy)
	for _, name := range legacy {
		if v, ok := lookupEnv(name); ok {
			if err := keys[legacyEnv[name]].set(c, v); err != nil {
				return fmt.Errorf("env %s: %w", name, err)
			}
		}
	}

	for _, name := range Keys() {
		env := EnvPrefix + strings.ToUpper(name)
		if v, ok := lookupEnv(env); ok {
			if err := keys[name].set(c, v); err != nil {
				return fmt.Errorf("env %s: %w", env, err)
			}
		}
	}
	return nil
}

// Environ adapts a KEY=VALUE list to a lookup function.
func Environ(env []string) func(string) (string, bool) {
	m := make(map[string]string, len(env))
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}
