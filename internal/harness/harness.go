package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/roach88/muster/internal/event"
	"github.com/roach88/muster/internal/lifecycle"
	"github.com/roach88/muster/internal/listing"
	"github.com/roach88/muster/internal/scheduler"
	"github.com/roach88/muster/internal/store"
	"github.com/roach88/muster/internal/testutil"
)

// Epoch is the clock reading when a scenario starts.
var Epoch = time.Unix(1_700_000_000, 0).UTC()

// Harness executes one scenario.
type Harness struct {
	store  *store.Store
	engine *lifecycle.Engine
	sched  *scheduler.Scheduler
	rec    *testutil.Recorder
	clock  *testutil.FakeClock
	lister *traceLister
}

// Run executes a scenario in a fresh in-memory store and returns the
// result. An error is returned only if the scenario could not be set up.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := newHarness(st, scenario)
	if err := h.seed(ctx, scenario.Events); err != nil {
		return nil, fmt.Errorf("seed events: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		ev := h.step(ctx, i+1, step)
		result.Trace = append(result.Trace, ev)
		if step.Expect != "" && step.Expect != ev.Outcome {
			result.AddError(fmt.Sprintf("steps[%d] %s: expected %s, got %s", i, step.Action, step.Expect, ev.Outcome))
		}
	}

	records, err := st.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load final state: %w", err)
	}
	for _, r := range records {
		result.State[r.ID] = r
	}

	for _, a := range scenario.Assertions {
		if err := evaluate(result, a); err != nil {
			result.AddError(err.Error())
		}
	}
	return result, nil
}

func newHarness(st *store.Store, scenario *Scenario) *Harness {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := testutil.NewFakeClock(Epoch)
	rec := testutil.NewRecorder()

	policy := lifecycle.DefaultPolicy()
	cfg := scenario.Config
	if cfg.Threshold > 0 {
		policy.Threshold = cfg.Threshold
	}
	if cfg.ManualStartThreshold > 0 {
		policy.ManualStartThreshold = cfg.ManualStartThreshold
	}
	policy.Strict = !cfg.Lenient

	settings := scheduler.DefaultSettings()
	if cfg.Interval > 0 {
		settings.Interval = cfg.Interval
	}
	if cfg.AnnounceLead > 0 {
		settings.AnnounceLead = cfg.AnnounceLead
	}
	settings.SkipAnnounce = cfg.SkipAnnounce
	settings.Strict = policy.Strict

	engine := lifecycle.New(st, rec, rec, rec,
		lifecycle.WithClock(clk),
		lifecycle.WithLogger(logger),
		lifecycle.WithPolicy(policy),
	)
	lister := &traceLister{threshold: policy.Threshold}
	sched := scheduler.New(engine, st, &scenarioFeed{items: scenario.Feed},
		scheduler.WithClock(clk),
		scheduler.WithLogger(logger),
		scheduler.WithLister(lister),
		scheduler.WithSettings(settings),
	)

	return &Harness{
		store:  st,
		engine: engine,
		sched:  sched,
		rec:    rec,
		clock:  clk,
		lister: lister,
	}
}

func (h *Harness) seed(ctx context.Context, events []SeedEvent) error {
	for _, ev := range events {
		start := Epoch.Add(ev.Start)
		_, err := h.engine.Admit(ctx, event.ExternalEvent{
			ID:           ev.ID,
			Title:        ev.Title,
			Start:        start,
			End:          start.Add(ev.Length),
			Participants: ev.Participants,
		}, !ev.Unannounced)
		if err != nil {
			return err
		}
		if len(ev.Attendees) > 0 {
			if err := h.engine.RecordAttendance(ctx, ev.ID, ev.Attendees); err != nil {
				return err
			}
		}
		switch ev.State {
		case "skipped":
			if _, err := h.engine.Skip(ctx, ev.ID); err != nil {
				return err
			}
		case "started":
			if err := h.engine.TryStart(ctx, ev.ID, true); err != nil {
				return err
			}
		}
	}
	h.rec.Reset()
	h.lister.reset()
	return nil
}

func (h *Harness) step(ctx context.Context, n int, step Step) TraceEvent {
	mark := len(h.rec.Calls())
	listed := h.lister.len()

	out := h.apply(ctx, step)

	calls := h.rec.Calls()[mark:]
	calls = append(calls, h.lister.since(listed)...)

	ev := TraceEvent{
		Step:    n,
		Action:  describe(step),
		Outcome: out,
		Calls:   calls,
	}
	for _, t := range h.sched.Queue().Pending() {
		ev.Pending = append(ev.Pending, fmt.Sprintf("%s %d at %s", t.Kind, t.EventID, offset(t.Due)))
	}
	return ev
}

func (h *Harness) apply(ctx context.Context, step Step) string {
	switch step.Action {
	case ActionAdvance:
		h.clock.Advance(step.By)
		return "ok"
	case ActionSweep:
		return outcome(h.sched.Sweep(ctx))
	case ActionFire:
		n, err := h.sched.RunDue(ctx)
		if err != nil {
			return outcome(err)
		}
		return "fired " + strconv.Itoa(n)
	case ActionIngest:
		return outcome(h.sched.Ingest(ctx))
	case ActionAttend:
		return outcome(h.engine.RecordAttendance(ctx, step.Event, step.Attendees))
	case ActionNotify:
		return outcome(h.engine.NotifyThresholdReached(ctx, step.Event))
	case ActionParticipants:
		return outcome(h.engine.UpdateParticipantCount(ctx, step.Event, step.Count))
	case ActionStart:
		return outcome(h.engine.TryStart(ctx, step.Event, step.Force))
	case ActionSkip:
		skipped, err := h.engine.Skip(ctx, step.Event)
		switch {
		case err != nil:
			return outcome(err)
		case skipped:
			return "skipped"
		default:
			return "unchanged"
		}
	case ActionExpire:
		return outcome(h.engine.Expire(ctx, step.Event))
	case ActionFail:
		h.rec.FailOp(step.Op)
		return "ok"
	default:
		return "unknown action"
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case event.IsAlreadyStarted(err):
		return "already_started"
	case event.IsInvalidState(err):
		return "invalid_state"
	case event.IsNotFound(err):
		return "not_found"
	case event.IsCollaboratorFailure(err):
		return "collaborator_failure"
	case event.IsPersistenceFailure(err):
		return "persistence_failure"
	default:
		return "error"
	}
}

func describe(step Step) string {
	switch step.Action {
	case ActionAdvance:
		return "advance " + step.By.String()
	case ActionFail:
		return "fail " + step.Op
	case ActionStart:
		if step.Force {
			return fmt.Sprintf("start %d force", step.Event)
		}
	case ActionAttend:
		return fmt.Sprintf("attend %d %v", step.Event, step.Attendees)
	case ActionParticipants:
		return fmt.Sprintf("participants %d %d", step.Event, step.Count)
	}
	if step.Event != 0 {
		return fmt.Sprintf("%s %d", step.Action, step.Event)
	}
	return step.Action
}

func offset(t time.Time) string {
	return "+" + t.Sub(Epoch).String()
}

// scenarioFeed serves the scenario's feed items relative to Epoch.
type scenarioFeed struct {
	items []FeedItem
}

func (f *scenarioFeed) Name() string { return "scenario" }

func (f *scenarioFeed) Fetch(_ context.Context, _, _ time.Time, limit int) ([]event.ExternalEvent, error) {
	out := make([]event.ExternalEvent, 0, len(f.items))
	for _, item := range f.items {
		if limit > 0 && len(out) == limit {
			break
		}
		start := Epoch.Add(item.Start)
		out = append(out, event.ExternalEvent{
			ID:           item.ID,
			Title:        item.Title,
			Start:        start,
			End:          start.Add(item.Length),
			Participants: item.Participants,
			Source:       "scenario",
		})
	}
	return out, nil
}

// traceLister records listing refreshes as trace calls carrying each
// record's status marker.
type traceLister struct {
	mu        sync.Mutex
	threshold int
	calls     []testutil.Call
}

func (l *traceLister) RefreshListing(_ context.Context, records []*event.Record) error {
	args := make([]string, 0, len(records))
	for _, r := range records {
		args = append(args, fmt.Sprintf("%d %s", r.ID, listing.Status(r, l.threshold)))
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, testutil.Call{Op: "RefreshListing", Args: args})
	return nil
}

func (l *traceLister) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

func (l *traceLister) since(n int) []testutil.Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]testutil.Call(nil), l.calls[n:]...)
}

func (l *traceLister) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}
