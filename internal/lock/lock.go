// Package lock serializes transitions on a single event record.
//
// Two lifecycle operations on the same record must never interleave: two
// concurrent starts would both create a space. Keyed is enough when a single
// process owns the database; Redis extends the guarantee to several processes
// sharing one PostgreSQL store.
package lock

import (
	"context"
	"sync"
)

// Locker acquires an exclusive lock on one record id.
//
// The returned release function must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, id int64) (release func(), err error)
}

// Keyed is an in-process Locker holding one mutex per id. Entries are
// reference counted and dropped once no goroutine holds or waits on them.
type Keyed struct {
	mu      sync.Mutex
	entries map[int64]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

// NewKeyed creates an empty keyed lock.
func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[int64]*keyedEntry)}
}

// Lock blocks until the id is free or ctx is done.
func (k *Keyed) Lock(ctx context.Context, id int64) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[id]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.entries[id] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.drop(id, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.drop(id, e)
		})
	}, nil
}

func (k *Keyed) drop(id int64, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, id)
	}
}

// size returns the number of live entries. Used for testing.
func (k *Keyed) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
