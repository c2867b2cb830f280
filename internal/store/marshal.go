package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/muster/internal/event"
)

// Columns lists the events columns in the order ScanRecord expects.
const Columns = `id, title, description, url, start_at, end_at, announcement_ref, space_ref,
	attendees, participant_count, flags, created_at`

// RowScanner is satisfied by *sql.Row and *sql.Rows.
type RowScanner interface {
	Scan(dest ...any) error
}

// EncodeAttendees serializes the attendee set as a sorted JSON array.
func EncodeAttendees(ids []string) (string, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	r := &event.Record{}
	r.SetAttendees(ids)
	data, err := json.Marshal(r.Attendees)
	if err != nil {
		return "", fmt.Errorf("marshal attendees: %w", err)
	}
	return string(data), nil
}

// DecodeAttendees parses a stored attendee array. Empty input yields nil.
func DecodeAttendees(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal attendees: %w", err)
	}
	return ids, nil
}

// ScanRecord reads one events row selected with Columns.
func ScanRecord(row RowScanner) (*event.Record, error) {
	var (
		r                     event.Record
		start, end, createdAt int64
		attendees             string
		flags                 int64
	)
	err := row.Scan(
		&r.ID, &r.Title, &r.Description, &r.URL, &start, &end,
		&r.AnnouncementRef, &r.SpaceRef, &attendees, &r.ParticipantCount,
		&flags, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	r.Start = time.Unix(start, 0).UTC()
	r.End = time.Unix(end, 0).UTC()
	r.CreatedAt = time.Unix(createdAt, 0).UTC()

	if r.Attendees, err = DecodeAttendees(attendees); err != nil {
		return nil, fmt.Errorf("event %d: %w", r.ID, err)
	}
	if r.State, r.Notified, err = event.Flags(flags).Decode(); err != nil {
		return nil, fmt.Errorf("event %d: %w", r.ID, err)
	}
	return &r, nil
}

// RecordArgs returns the column values of r in Columns order.
func RecordArgs(r *event.Record) ([]any, error) {
	attendees, err := EncodeAttendees(r.Attendees)
	if err != nil {
		return nil, err
	}
	return []any{
		r.ID, r.Title, r.Description, r.URL, r.Start.Unix(), r.End.Unix(),
		r.AnnouncementRef, r.SpaceRef, attendees, r.ParticipantCount,
		int64(r.Flags()), r.CreatedAt.Unix(),
	}, nil
}
