package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/muster/internal/store"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Long: `Create or upgrade the database schema and exit.

The service applies the schema on startup as well; migrate is useful to
upgrade an existing database before deploying a new version.`,
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
			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
			data := map[string]any{"driver": cfg.DatabaseDriver}

			sq, ok := st.(*store.Store)
			if !ok {
				return out.Success("Schema applied.", data)
			}
			version, err := sq.SchemaVersion(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read schema version", err)
			}
			data["path"] = cfg.DatabasePath
			data["version"] = version
			return out.Success(fmt.Sprintf("Schema at version %d (%s).", version, cfg.DatabasePath), data)
		},
	}
}
