package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/roach88/muster/internal/event"
	"github.com/roach88/muster/internal/testutil"
)

// memStore is a map-backed Store for property tests, where opening a SQLite
// database per generated case would dominate the run time.
type memStore struct {
	mu   sync.Mutex
	recs map[int64]*event.Record
}

func newMemStore() *memStore {
	return &memStore{recs: map[int64]*event.Record{}}
}

func (m *memStore) Insert(_ context.Context, r *event.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[r.ID]; ok {
		return event.NewPersistenceFailure(r.ID, "insert", 0)
	}
	m.recs[r.ID] = r.Clone()
	return nil
}

func (m *memStore) Update(_ context.Context, r *event.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[r.ID]; !ok {
		return event.NewPersistenceFailure(r.ID, "update", 0)
	}
	m.recs[r.ID] = r.Clone()
	return nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[id]; !ok {
		return event.NewPersistenceFailure(id, "delete", 0)
	}
	delete(m.recs, id)
	return nil
}

func (m *memStore) Get(_ context.Context, id int64) (*event.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	if !ok {
		return nil, event.NewNotFound(id, "event")
	}
	return r.Clone(), nil
}

func (m *memStore) GetByAnnouncement(_ context.Context, ref string) (*event.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if ref != "" && r.AnnouncementRef == ref {
			return r.Clone(), nil
		}
	}
	return nil, event.NewNotFound(0, "announcement")
}

func (m *memStore) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs), nil
}

func (m *memStore) All(context.Context) ([]*event.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*event.Record, 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

const (
	opAttend = iota
	opStart
	opForceStart
	opSkip
	opNotify
	opCount
)

// TestLifecycle_StateMachineProperties drives one record through random
// operation sequences and checks the markers after every step.
func TestLifecycle_StateMachineProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("started and skipped are exclusive and never cleared", prop.ForAll(
		func(ops []int, sizes []int) bool {
			ctx := context.Background()
			rec := testutil.NewRecorder()
			policy := DefaultPolicy()
			policy.Threshold = 3
			e := New(newMemStore(), rec, rec, rec,
				WithClock(testutil.NewFakeClock(testNow)),
				WithPolicy(policy))

			_, err := e.Admit(ctx, event.ExternalEvent{
				ID: 1, Title: "prop", Start: testNow.Add(time.Hour), End: testNow.Add(2 * time.Hour),
			}, true)
			if err != nil {
				return false
			}

			prev, _ := e.store.Get(ctx, 1)
			for i, op := range ops {
				var forced bool
				switch op % opCount {
				case opAttend:
					n := 0
					if i < len(sizes) {
						n = sizes[i]
					}
					ids := make([]string, n)
					for j := range ids {
						ids[j] = fmt.Sprintf("u%d", j)
					}
					_ = e.RecordAttendance(ctx, 1, ids)
				case opStart:
					_ = e.TryStart(ctx, 1, false)
				case opForceStart:
					forced = true
					_ = e.TryStart(ctx, 1, true)
				case opSkip:
					_, _ = e.Skip(ctx, 1)
				case opNotify:
					_ = e.NotifyThresholdReached(ctx, 1)
				}

				cur, err := e.store.Get(ctx, 1)
				if err != nil {
					return false
				}
				if _, _, err := cur.Flags().Decode(); err != nil {
					return false
				}
				if prev.State == event.Started && cur.State != event.Started {
					return false
				}
				if prev.State == event.Skipped && cur.State == event.Voting {
					return false
				}
				if prev.State == event.Skipped && cur.State == event.Started && !forced {
					return false
				}
				if prev.Notified && !cur.Notified {
					return false
				}
				if cur.State == event.Started && cur.SpaceRef == "" {
					return false
				}
				prev = cur
			}

			return len(rec.CallsTo("CreateSpace")) <= 1
		},
		gen.SliceOf(gen.IntRange(0, opCount-1)),
		gen.SliceOf(gen.IntRange(0, 5)),
	))

	properties.TestingRun(t)
}
