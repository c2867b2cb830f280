package discord

import (
	"context"
	"fmt"

	"github.com/roach88/muster/internal/event"
)

// AttendanceRecorder receives the voter set of an announcement.
type AttendanceRecorder interface {
	RecordAttendance(ctx context.Context, id int64, ids []string) error
}

// RecordLookup finds records by announcement.
type RecordLookup interface {
	GetByAnnouncement(ctx context.Context, ref string) (*event.Record, error)
	All(ctx context.Context) ([]*event.Record, error)
}

// Reactions turns vote reactions into attendance.
type Reactions struct {
	client   *Client
	engine   AttendanceRecorder
	records  RecordLookup
	pageSize int
}

// NewReactions creates a reaction handler.
func NewReactions(client *Client, engine AttendanceRecorder, records RecordLookup) *Reactions {
	return &Reactions{client: client, engine: engine, records: records, pageSize: 100}
}

// Changed re-reads the votes on a message after a reaction was added or
// removed. Reactions outside the vote channel, with another emoji or on
// messages that are not announcements are ignored, as are records that no
// longer accept attendance.
func (r *Reactions) Changed(ctx context.Context, channelID, messageID, emoji string) error {
	o := r.client.Options()
	if channelID != o.VoteChannelID || emoji != o.VoteEmoji {
		return nil
	}

	rec, err := r.records.GetByAnnouncement(ctx, messageID)
	if event.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.sync(ctx, rec)
}

// Resync refreshes attendance of every announced record. Used after the
// gateway connects, since reactions may have changed while offline.
func (r *Reactions) Resync(ctx context.Context) error {
	records, err := r.records.All(ctx)
	if err != nil {
		return fmt.Errorf("resync attendance: %w", err)
	}
	for _, rec := range records {
		if !rec.HasAnnouncement() || rec.State != event.Voting {
			continue
		}
		if err := r.sync(ctx, rec); err != nil {
			if event.IsPersistenceFailure(err) {
				return err
			}
			r.client.logger.Warn("attendance resync failed", "event_id", rec.ID, "error", err)
		}
	}
	return nil
}

func (r *Reactions) sync(ctx context.Context, rec *event.Record) error {
	voters, err := r.voters(ctx, rec.AnnouncementRef)
	if err != nil {
		return event.NewCollaboratorFailure(rec.ID, "read reactions", err)
	}

	err = r.engine.RecordAttendance(ctx, rec.ID, voters)
	if event.IsInvalidState(err) || event.IsNotFound(err) {
		r.client.logger.Debug("vote ignored", "event_id", rec.ID, "reason", err)
		return nil
	}
	return err
}

// voters pages through the vote reactions of ref, skipping bots.
func (r *Reactions) voters(ctx context.Context, ref string) ([]string, error) {
	o := r.client.Options()
	self := r.client.self()

	var ids []string
	after := ""
	for {
		opts, err := r.client.call(ctx)
		if err != nil {
			return nil, err
		}
		users, err := r.client.session.MessageReactions(o.VoteChannelID, ref, o.VoteEmoji, r.pageSize, "", after, opts...)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			if u.Bot || u.ID == self {
				continue
			}
			ids = append(ids, u.ID)
		}
		if len(users) < r.pageSize {
			return ids, nil
		}
		after = users[len(users)-1].ID
	}
}
