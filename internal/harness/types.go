package harness

import (
	"github.com/roach88/muster/internal/event"
	"github.com/roach88/muster/internal/testutil"
)

// TraceEvent is one step of a scenario run and the collaborator calls it
// caused.
type TraceEvent struct {
	Step    int             `json:"step"`
	Action  string          `json:"action"`
	Outcome string          `json:"outcome"`
	Calls   []testutil.Call `json:"calls,omitempty"`
	Pending []string        `json:"pending,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every step outcome and assertion matched.
	Pass bool `json:"pass"`

	// Trace holds one entry per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds step and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// State holds the records left in the store, keyed by id.
	State map[int64]*event.Record `json:"-"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[int64]*event.Record),
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Calls returns every collaborator call in the trace, in order.
func (r *Result) Calls() []testutil.Call {
	var out []testutil.Call
	for _, ev := range r.Trace {
		out = append(out, ev.Calls...)
	}
	return out
}
