package lifecycle

import (
	"fmt"
	"strings"

	"github.com/roach88/muster/internal/event"
)

// Announcement field names.
const (
	FieldWouldJoin = "Would Join"
	FieldTeams     = "Teams"
	FieldStatus    = "Status"
)

// Announcement colors.
const (
	ColorAnnounced = 0x2061F7
	ColorStarted   = 0x2FDE5D
	ColorEnded     = 0x3B6961
	ColorSkipped   = 0x8A8A8A
)

// MentionUser formats a user mention.
func MentionUser(id string) string {
	return "<@" + id + ">"
}

// MentionSpace formats a space mention.
func MentionSpace(ref string) string {
	return "<#" + ref + ">"
}

// Timestamp formats t as a client-localized timestamp.
func Timestamp(unix int64) string {
	return fmt.Sprintf("<t:%d:F>", unix)
}

func mentions(ids []string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = MentionUser(id)
	}
	return strings.Join(parts, " ")
}

func startingSoonMessage(r *event.Record) string {
	return fmt.Sprintf("%s is starting soon!\n%s", r.Title, mentions(r.Attendees))
}

func thresholdReachedMessage(r *event.Record, url string) string {
	return fmt.Sprintf(`An event you voted for has reached the participant threshold and will be started!

Event: %s
Starting: %s
Event info: %s
`, r.Title, Timestamp(r.Start.Unix()), url)
}
