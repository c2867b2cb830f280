package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/muster/internal/event"
	"github.com/roach88/muster/internal/testutil"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Calls    []testutil.Call
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Calls) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, c := range e.Calls {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, escape(c.String()))
		}
	}
	return buf.String()
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Calls(), a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Calls(), a)
	case AssertTraceCount:
		return assertTraceCount(result.Calls(), a)
	case AssertFinalState:
		return assertFinalState(result.State, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertTraceContains checks for a call to a.Op whose arguments start with
// a.Args.
func assertTraceContains(calls []testutil.Call, a Assertion) error {
	for _, c := range calls {
		if c.Op == a.Op && hasPrefix(c.Args, a.Args) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s with args %v", a.Op, a.Args),
		Actual:   "not found in trace",
		Calls:    calls,
	}
}

// assertTraceOrder checks that the first call of each operation appears in
// the given order. Other calls may appear in between.
func assertTraceOrder(calls []testutil.Call, a Assertion) error {
	positions := make(map[string]int, len(a.Ops))
	for i, c := range calls {
		if _, seen := positions[c.Op]; !seen && slices.Contains(a.Ops, c.Op) {
			positions[c.Op] = i + 1
		}
	}

	for _, op := range a.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all operations present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing operation: %s", op),
				Calls:    calls,
			}
		}
	}

	for i := 1; i < len(a.Ops); i++ {
		prev, curr := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("operations in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Calls: calls,
			}
		}
	}
	return nil
}

// assertTraceCount checks that a.Op was called exactly a.Count times.
func assertTraceCount(calls []testutil.Call, a Assertion) error {
	count := 0
	for _, c := range calls {
		if c.Op == a.Op {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s called %d times", a.Op, a.Count),
			Actual:   fmt.Sprintf("%s called %d times", a.Op, count),
			Calls:    calls,
		}
	}
	return nil
}

// assertFinalState compares the fields named in a.Expect against the record
// left in the store.
func assertFinalState(state map[int64]*event.Record, a Assertion) error {
	r, ok := state[a.Event]

	fail := func(field string, want, got any) error {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("event %d %s = %v", a.Event, field, want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}

	if want, set := a.Expect["exists"]; set {
		if want != ok {
			return fail("exists", want, ok)
		}
	}
	if !ok {
		if len(a.Expect) == 1 && a.Expect["exists"] == false {
			return nil
		}
		return fail("exists", true, false)
	}

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		want := a.Expect[key]
		var got any
		switch key {
		case "exists":
			continue
		case "state":
			got = r.State.String()
		case "notified":
			got = r.Notified
		case "attendees":
			got = r.AttendeeCount()
		case "participants":
			got = r.ParticipantCount
		case "space_ref":
			got = r.SpaceRef
		case "announcement_ref":
			got = r.AnnouncementRef
		default:
			return fmt.Errorf("final_state: unknown field %q", key)
		}
		if fmt.Sprint(want) != fmt.Sprint(got) {
			return fail(key, want, got)
		}
	}
	return nil
}

func hasPrefix(args, prefix []string) bool {
	if len(prefix) > len(args) {
		return false
	}
	return slices.Equal(args[:len(prefix)], prefix)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\n", `\n`)
}
