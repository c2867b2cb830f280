package harness

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// FormatTrace renders a result as the plain-text trace stored in golden
// files: one block per step with its outcome, collaborator calls and the
// timers left pending, followed by the final records.
func FormatTrace(name string, result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)

	for _, ev := range result.Trace {
		fmt.Fprintf(&b, "\n[%d] %s -> %s\n", ev.Step, ev.Action, ev.Outcome)
		for _, c := range ev.Calls {
			fmt.Fprintf(&b, "  %s\n", escape(c.String()))
		}
		for _, p := range ev.Pending {
			fmt.Fprintf(&b, "  pending: %s\n", p)
		}
	}

	b.WriteString("\nfinal:\n")
	ids := make([]int64, 0, len(result.State))
	for id := range result.State {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	if len(ids) == 0 {
		b.WriteString("  (no events)\n")
	}
	for _, id := range ids {
		r := result.State[id]
		fmt.Fprintf(&b, "  %d %s notified=%t attendees=%d teams=%d", r.ID, r.State, r.Notified, r.AttendeeCount(), r.ParticipantCount)
		if r.SpaceRef != "" {
			fmt.Fprintf(&b, " space=%s", r.SpaceRef)
		}
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, FormatTrace(name, result))
}
