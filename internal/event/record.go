package event

import (
	"slices"
	"time"
)

// State is the lifecycle position of a record.
type State int

const (
	// Voting is the initial state: attendance may still change.
	Voting State = iota
	// Started means a space was created for the event.
	Started
	// Skipped means the event will not be started automatically.
	Skipped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Voting:
		return "voting"
	case Started:
		return "started"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Record is one schedulable event as persisted by the store.
//
// Records are mutated only by the lifecycle engine. Other packages treat them
// as read-only snapshots.
type Record struct {
	ID               int64
	Title            string
	Description      string
	URL              string
	Start            time.Time
	End              time.Time
	AnnouncementRef  string
	SpaceRef         string
	Attendees        []string
	ParticipantCount int
	State            State
	Notified         bool
	CreatedAt        time.Time
}

// Expired reports whether the record's window closed before now.
func (r *Record) Expired(now time.Time) bool {
	return r.End.Before(now)
}

// HasAnnouncement reports whether an announcement was posted for the record.
func (r *Record) HasAnnouncement() bool {
	return r.AnnouncementRef != ""
}

// AttendeeCount returns the number of distinct attendees.
func (r *Record) AttendeeCount() int {
	return len(r.Attendees)
}

// SetAttendees replaces the attendee set. Duplicates and empty ids are
// dropped and the result is kept sorted so persisted rows are stable.
func (r *Record) SetAttendees(ids []string) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	r.Attendees = slices.Compact(out)
}

// Flags packs the state and Notified marker into the persisted bitset.
func (r *Record) Flags() Flags {
	var f Flags
	switch r.State {
	case Started:
		f |= FlagStarted
	case Skipped:
		f |= FlagSkipped
	}
	if r.Notified {
		f |= FlagNotified
	}
	return f
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	c.Attendees = slices.Clone(r.Attendees)
	return &c
}
