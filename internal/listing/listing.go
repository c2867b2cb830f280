// Package listing renders the "Upcoming Events" summary posted in the event
// list channel.
package listing

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/muster/internal/event"
)

// Title is the heading of the summary.
const Title = "Upcoming Events"

// MaxDescription is the longest description the chat platform accepts.
const MaxDescription = 4096

const legend = "⚪ - No voters\n" +
	"🔵 - Not enough voters\n" +
	"🟢 - Threshold reached!\n" +
	"⚫ - Skipped\n\n"

// Options carry the values the summary links and counts against.
type Options struct {
	Threshold     int
	GuildID       string
	VoteChannelID string
}

// Listing is a rendered summary.
type Listing struct {
	Title       string
	URL         string
	Description string
}

// String renders the listing as plain text.
func (l Listing) String() string {
	return l.Title + "\n" + l.URL + "\n\n" + l.Description
}

// MessageURL links to a message in a guild channel.
func MessageURL(guildID, channelID, messageID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, messageID)
}

// ChannelURL links to a guild channel.
func ChannelURL(guildID, channelID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s", guildID, channelID)
}

// Status returns the marker shown in front of r.
func Status(r *event.Record, threshold int) string {
	switch {
	case r.State == event.Skipped:
		return "⚫"
	case r.State == event.Started || r.AttendeeCount() >= threshold:
		return "🟢"
	case r.AttendeeCount() > 0:
		return "🔵"
	default:
		return "⚪"
	}
}

// Render builds the summary of records, earliest start first. Lines that do
// not fit are replaced by a count.
func Render(records []*event.Record, opts Options) Listing {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b *event.Record) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})

	var b strings.Builder
	b.WriteString(legend)
	if len(sorted) == 0 {
		b.WriteString("No upcoming events.\n")
	}

	for i, r := range sorted {
		line := renderLine(r, opts)
		more := fmt.Sprintf("_and %d more_\n", len(sorted)-i)
		if b.Len()+len(line)+len(more) > MaxDescription {
			b.WriteString(more)
			break
		}
		b.WriteString(line)
	}

	return Listing{
		Title:       Title,
		URL:         ChannelURL(opts.GuildID, opts.VoteChannelID),
		Description: b.String(),
	}
}

func renderLine(r *event.Record, opts Options) string {
	name := r.Title
	if r.HasAnnouncement() {
		name = fmt.Sprintf("[%s](%s)", r.Title, MessageURL(opts.GuildID, opts.VoteChannelID, r.AnnouncementRef))
	}
	return fmt.Sprintf("%s [%d/%d] %s ** - %d teams - <t:%d:f>**\n",
		Status(r, opts.Threshold),
		r.AttendeeCount(),
		opts.Threshold,
		name,
		r.ParticipantCount,
		r.Start.Unix(),
	)
}
