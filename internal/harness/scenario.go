package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is one scripted run of the lifecycle.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// Config overrides the engine policy and scheduler settings.
	Config Config `yaml:"config,omitempty"`

	// Events are admitted before the first step. Their setup calls are not
	// part of the trace.
	Events []SeedEvent `yaml:"events,omitempty"`

	// Feed is what the external feed returns to ingest steps.
	Feed []FeedItem `yaml:"feed,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// Config holds the tunables a scenario may change. Zero values keep the
// production defaults.
type Config struct {
	Threshold            int           `yaml:"threshold,omitempty"`
	ManualStartThreshold int           `yaml:"manual_start_threshold,omitempty"`
	Interval             time.Duration `yaml:"interval,omitempty"`
	AnnounceLead         time.Duration `yaml:"announce_lead,omitempty"`
	SkipAnnounce         bool          `yaml:"skip_announce,omitempty"`
	Lenient              bool          `yaml:"lenient,omitempty"`
}

// SeedEvent is a record present when the scenario starts.
type SeedEvent struct {
	ID           int64         `yaml:"id"`
	Title        string        `yaml:"title"`
	Start        time.Duration `yaml:"start"`
	Length       time.Duration `yaml:"length"`
	Participants int           `yaml:"participants,omitempty"`
	Attendees    []string      `yaml:"attendees,omitempty"`
	Unannounced  bool          `yaml:"unannounced,omitempty"`
	State        string        `yaml:"state,omitempty"`
}

// FeedItem is an event served by the scenario's feed.
type FeedItem struct {
	ID           int64         `yaml:"id"`
	Title        string        `yaml:"title"`
	Start        time.Duration `yaml:"start"`
	Length       time.Duration `yaml:"length"`
	Participants int           `yaml:"participants,omitempty"`
}

// Step is one action of the flow.
type Step struct {
	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	Event     int64         `yaml:"event,omitempty"`
	By        time.Duration `yaml:"by,omitempty"`
	Attendees []string      `yaml:"attendees,omitempty"`
	Count     int           `yaml:"count,omitempty"`
	Force     bool          `yaml:"force,omitempty"`
	Op        string        `yaml:"op,omitempty"`

	// Expect is the outcome the step must produce. Empty skips the check.
	Expect string `yaml:"expect,omitempty"`
}

// Step actions.
const (
	ActionAdvance      = "advance"
	ActionSweep        = "sweep"
	ActionFire         = "fire"
	ActionIngest       = "ingest"
	ActionAttend       = "attend"
	ActionNotify       = "notify"
	ActionParticipants = "participants"
	ActionStart        = "start"
	ActionSkip         = "skip"
	ActionExpire       = "expire"
	ActionFail         = "fail"
)

var eventActions = []string{
	ActionAttend, ActionNotify, ActionParticipants, ActionStart, ActionSkip, ActionExpire,
}

var knownActions = append([]string{
	ActionAdvance, ActionSweep, ActionFire, ActionIngest, ActionFail,
}, eventActions...)

// Assertion validates the trace or the final records.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op is the collaborator operation (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Args is a prefix of the call's arguments (trace_contains).
	Args []string `yaml:"args,omitempty"`

	// Ops is the expected relative order of operations (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the exact number of calls to Op (trace_count).
	Count int `yaml:"count,omitempty"`

	// Event is the record to inspect (final_state).
	Event int64 `yaml:"event,omitempty"`

	// Expect holds the expected record fields (final_state). Supported
	// keys: exists, state, notified, attendees, participants, space_ref,
	// announcement_ref.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	seen := map[int64]bool{}
	for i, ev := range s.Events {
		if ev.ID <= 0 {
			return fmt.Errorf("events[%d]: id must be positive", i)
		}
		if seen[ev.ID] {
			return fmt.Errorf("events[%d]: duplicate id %d", i, ev.ID)
		}
		seen[ev.ID] = true
		if ev.Title == "" {
			return fmt.Errorf("events[%d]: title is required", i)
		}
		if ev.Length <= 0 {
			return fmt.Errorf("events[%d]: length must be positive", i)
		}
		switch ev.State {
		case "", "voting", "started", "skipped":
		default:
			return fmt.Errorf("events[%d]: unknown state %q", i, ev.State)
		}
	}

	for i, item := range s.Feed {
		if item.ID <= 0 {
			return fmt.Errorf("feed[%d]: id must be positive", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step) error {
	if step.Action == "" {
		return fmt.Errorf("steps[%d]: action is required", i)
	}
	if !slices.Contains(knownActions, step.Action) {
		return fmt.Errorf("steps[%d]: unknown action %q", i, step.Action)
	}
	if slices.Contains(eventActions, step.Action) && step.Event == 0 {
		return fmt.Errorf("steps[%d]: event is required for %s", i, step.Action)
	}
	switch step.Action {
	case ActionAdvance:
		if step.By <= 0 {
			return fmt.Errorf("steps[%d]: by must be positive for advance", i)
		}
	case ActionFail:
		if step.Op == "" {
			return fmt.Errorf("steps[%d]: op is required for fail", i)
		}
	}
	return nil
}

func validateAssertion(i int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", i)
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", i)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", i)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", i)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", i)
		}
	case AssertFinalState:
		if a.Event == 0 {
			return fmt.Errorf("assertions[%d]: event is required for final_state", i)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", i)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	return nil
}
