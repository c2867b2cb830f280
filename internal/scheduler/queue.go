package scheduler

import (
	"container/heap"
	"errors"
	"sync"
	"time"
)

// ErrQueueClosed is returned by Push after Close.
var ErrQueueClosed = errors.New("scheduler: timer queue closed")

// TimerKind is the transition a timer invokes.
type TimerKind int

const (
	// TimerStart invokes TryStart without force.
	TimerStart TimerKind = iota + 1
	// TimerExpire invokes Expire.
	TimerExpire
)

func (k TimerKind) String() string {
	switch k {
	case TimerStart:
		return "start"
	case TimerExpire:
		return "expire"
	default:
		return "unknown"
	}
}

// Timer is a one-shot transition due at a point in time.
type Timer struct {
	Kind    TimerKind
	EventID int64
	Due     time.Time

	seq uint64
}

type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if !h[i].Due.Equal(h[j].Due) {
		return h[i].Due.Before(h[j].Due)
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	*h = append(*h, x.(*Timer))
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

// Queue is a thread-safe priority queue of timers keyed by due time. Timers
// with the same due time pop in insertion order.
//
// The signal channel has a buffer of one so that any number of pushes
// coalesce into a single wakeup of the goroutine waiting in Run.
type Queue struct {
	mu     sync.Mutex
	timers timerHeap
	seq    uint64
	closed bool
	signal chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		timers: make(timerHeap, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Push adds a timer.
func (q *Queue) Push(t Timer) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.seq++
	t.seq = q.seq
	heap.Push(&q.timers, &t)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// PopDue removes and returns every timer due at or before now, earliest
// first.
func (q *Queue) PopDue(now time.Time) []Timer {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []Timer
	for q.timers.Len() > 0 && !q.timers[0].Due.After(now) {
		t := heap.Pop(&q.timers).(*Timer)
		due = append(due, *t)
	}
	return due
}

// NextDue reports the due time of the earliest timer.
func (q *Queue) NextDue() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.timers.Len() == 0 {
		return time.Time{}, false
	}
	return q.timers[0].Due, true
}

// Pending returns a copy of the queued timers in due order.
func (q *Queue) Pending() []Timer {
	q.mu.Lock()
	defer q.mu.Unlock()

	cp := make(timerHeap, len(q.timers))
	copy(cp, q.timers)

	out := make([]Timer, 0, len(cp))
	for cp.Len() > 0 {
		out = append(out, *heap.Pop(&cp).(*Timer))
	}
	return out
}

// Len returns the number of pending timers.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.timers.Len()
}

// Wait returns a channel that receives after a push.
func (q *Queue) Wait() <-chan struct{} {
	return q.signal
}

// Close drops every pending timer without running it. Later pushes fail.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.timers = nil
	close(q.signal)
}

// Closed reports whether Close was called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
