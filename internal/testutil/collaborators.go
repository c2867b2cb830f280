package testutil

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/muster/internal/event"
)

// Call is one recorded collaborator invocation.
type Call struct {
	Op   string
	Args []string
}

func (c Call) String() string {
	return c.Op + "(" + strings.Join(c.Args, ", ") + ")"
}

// Recorder is a fake Messenger, SpaceProvider and Notifier that records
// every call in order. Failures can be injected per operation or per
// direct-message recipient.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Recorder struct {
	mu        sync.Mutex
	calls     []Call
	nextMsg   int
	nextSpace int
	failOps   map[string]error
	failUsers map[string]bool
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{failOps: map[string]error{}, failUsers: map[string]bool{}}
}

// FailOp makes every subsequent call to op fail.
func (r *Recorder) FailOp(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOps[op] = fmt.Errorf("%s: injected failure", op)
}

// FailDirect makes direct messages to userID fail.
func (r *Recorder) FailDirect(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failUsers[userID] = true
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// CallsTo returns the recorded calls to op.
func (r *Recorder) CallsTo(op string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Trace renders the recorded calls one per line.
func (r *Recorder) Trace() string {
	var b strings.Builder
	for _, c := range r.Calls() {
		b.WriteString(c.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Reset forgets recorded calls but keeps injected failures.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *Recorder) record(op string, args ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: op, Args: args})
	return r.failOps[op]
}

func (r *Recorder) PostAnnouncement(_ context.Context, e event.ExternalEvent) (string, error) {
	if err := r.record("PostAnnouncement", fmt.Sprint(e.ID), e.Title); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextMsg++
	return fmt.Sprintf("msg-%d", r.nextMsg), nil
}

func (r *Recorder) UpdateField(_ context.Context, ref, name, value string) error {
	return r.record("UpdateField", ref, name, value)
}

func (r *Recorder) UpdateStatusColor(_ context.Context, ref string, color int) error {
	return r.record("UpdateStatusColor", ref, fmt.Sprintf("%#06x", color))
}

func (r *Recorder) DeleteAnnouncement(_ context.Context, ref string) error {
	return r.record("DeleteAnnouncement", ref)
}

func (r *Recorder) ClearInteractivity(_ context.Context, ref string) error {
	return r.record("ClearInteractivity", ref)
}

func (r *Recorder) AnnouncementURL(ref string) string {
	return "https://chat.example/" + ref
}

func (r *Recorder) CreateSpace(_ context.Context, name string) (string, error) {
	if err := r.record("CreateSpace", name); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSpace++
	return fmt.Sprintf("space-%d", r.nextSpace), nil
}

func (r *Recorder) PostToSpace(_ context.Context, space, text string) error {
	return r.record("PostToSpace", space, text)
}

func (r *Recorder) SendDirect(_ context.Context, userID, text string) error {
	if err := r.record("SendDirect", userID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUsers[userID] {
		return errors.New("direct message refused")
	}
	return nil
}
