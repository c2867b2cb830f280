package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/muster/internal/api"
	"github.com/roach88/muster/internal/event"
	"github.com/roach88/muster/internal/lifecycle"
)

// NewEventsCommand creates the events command group.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect and manage stored events",
		Long: `Inspect and manage stored events without a Discord connection.

Transitions made here update the database only; announcements are left
as they are until the service next touches the event.`,
	}

	cmd.AddCommand(newEventsListCommand(rootOpts))
	cmd.AddCommand(newEventsSkipCommand(rootOpts))
	cmd.AddCommand(newEventsStartCommand(rootOpts))
	return cmd
}

func newEventsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored events",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, rootOpts, func(ctx context.Context, a *admin) error {
				records, err := a.store.All(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to list events", err)
				}

				views := make([]api.EventView, 0, len(records))
				for _, r := range records {
					views = append(views, api.NewEventView(r))
				}
				return a.out.Success(formatEvents(records), views)
			})
		},
	}
}

func newEventsSkipCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "skip <id>",
		Short:         "Skip an event so it is not started",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEventID(args[0])
			if err != nil {
				return err
			}
			return withAdmin(cmd, rootOpts, func(ctx context.Context, a *admin) error {
				r, err := a.store.Get(ctx, id)
				if err != nil {
					return a.fail(err)
				}
				if err := a.engine.CheckSkip(r); err != nil {
					return a.fail(err)
				}
				skipped, err := a.engine.Skip(ctx, id)
				if err != nil {
					return a.fail(err)
				}
				text := fmt.Sprintf("Event %d skipped.", id)
				if !skipped {
					text = fmt.Sprintf("Event %d was not skipped.", id)
				}
				return a.out.Success(text, map[string]any{"id": id, "skipped": skipped})
			})
		},
	}
}

func newEventsStartCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Start an event by hand",
		Long: `Start an event by hand.

Without --force the same rules apply as for a member starting the event:
enough attendees and a start time close enough. --force starts any event
that has not started or ended.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEventID(args[0])
			if err != nil {
				return err
			}
			return withAdmin(cmd, rootOpts, func(ctx context.Context, a *admin) error {
				r, err := a.store.Get(ctx, id)
				if err != nil {
					return a.fail(err)
				}
				if err := a.engine.CheckManualStart(r, force); err != nil {
					return a.fail(err)
				}
				if err := a.engine.TryStart(ctx, id, true); err != nil {
					return a.fail(err)
				}
				r, err = a.store.Get(ctx, id)
				if err != nil {
					return a.fail(err)
				}
				return a.out.Success(fmt.Sprintf("Event %d started.", id), api.NewEventView(r))
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "start regardless of attendance and start time")
	return cmd
}

// admin bundles what the offline event commands operate on.
type admin struct {
	store  eventStore
	engine *lifecycle.Engine
	out    *OutputFormatter
}

// fail reports err in the configured format and maps it to an exit code.
func (a *admin) fail(err error) error {
	code := "ERROR"
	var ee *event.Error
	if errors.As(err, &ee) {
		code = string(ee.Code)
	}
	if outErr := a.out.Error(code, err.Error(), nil); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitFailure, "event command failed", err)
}

func withAdmin(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *admin) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := slog.Default()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := applyStoredSettings(ctx, cfg, st); err != nil {
		return err
	}

	locker, closeLocker, err := openLocker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	nop := lifecycle.Nop{}
	engine := lifecycle.New(st, nop, nop, nop,
		lifecycle.WithLocker(locker),
		lifecycle.WithLogger(logger),
		lifecycle.WithPolicy(cfg.Policy()),
	)

	return fn(ctx, &admin{
		store:  st,
		engine: engine,
		out: &OutputFormatter{
			Format:  opts.Format,
			Writer:  cmd.OutOrStdout(),
			Verbose: opts.Verbose,
		},
	})
}

func parseEventID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid event id %q", s))
	}
	return id, nil
}

func formatEvents(records []*event.Record) string {
	if len(records) == 0 {
		return "No events."
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTART\tSTATE\tATTENDEES\tTEAMS")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\n",
			r.ID, r.Title, r.Start.UTC().Format(time.RFC3339), r.State, r.AttendeeCount(), r.ParticipantCount)
	}
	w.Flush()
	return strings.TrimRight(b.String(), "\n")
}
