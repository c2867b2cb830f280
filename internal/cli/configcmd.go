package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/muster/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
	}
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	return cmd
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	var noStore bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the configuration the service would run with",
		Long: `Print the configuration the service would run with: defaults, the
config file, environment overrides and the runtime settings saved in the
database. Use --no-store to skip the database.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if !noStore {
				st, err := openStore(ctx, cfg)
				if err != nil {
					return err
				}
				defer st.Close()
				if err := applyStoredSettings(ctx, cfg, st); err != nil {
					return err
				}
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
			return out.Success(formatConfig(cfg), cfg)
		},
	}

	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not apply settings stored in the database")
	return cmd
}

func formatConfig(cfg *config.Config) string {
	var b strings.Builder
	for _, name := range config.Keys() {
		v, err := cfg.Get(name)
		if err != nil {
			continue
		}
		if name == "discord_token" && v != "" {
			v = "********"
		}
		fmt.Fprintf(&b, "%s = %s\n", name, v)
	}
	for _, f := range cfg.ICalFeeds {
		fmt.Fprintf(&b, "ical_feed = %s %s\n", f.Name, f.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}
