package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/roach88/muster/internal/event"
	"github.com/roach88/muster/internal/lifecycle"
)

// Discord rejects embed fields with an empty value.
const blank = "\u200b"

// ErrNoVoteChannel is returned when announcing before a vote channel is set.
var ErrNoVoteChannel = errors.New("discord: vote channel not configured")

// PostAnnouncement posts the event embed to the vote channel and adds the
// vote reaction.
func (c *Client) PostAnnouncement(ctx context.Context, e event.ExternalEvent) (string, error) {
	o := c.Options()
	if o.VoteChannelID == "" {
		return "", ErrNoVoteChannel
	}

	opts, err := c.call(ctx)
	if err != nil {
		return "", err
	}
	msg, err := c.session.ChannelMessageSendComplex(o.VoteChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{announcementEmbed(e)},
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("send announcement: %w", err)
	}

	if opts, err = c.call(ctx); err != nil {
		return msg.ID, nil
	}
	if err := c.session.MessageReactionAdd(o.VoteChannelID, msg.ID, o.VoteEmoji, opts...); err != nil {
		c.logger.Warn("failed to add vote reaction", "message_id", msg.ID, "error", err)
	}
	return msg.ID, nil
}

func announcementEmbed(e event.ExternalEvent) *discordgo.MessageEmbed {
	organizers := strings.Join(e.Organizers, ", ")
	return &discordgo.MessageEmbed{
		Title:       e.Title,
		URL:         e.URL,
		Description: description(e),
		Color:       lifecycle.ColorAnnounced,
		Fields: []*discordgo.MessageEmbedField{
			{Name: lifecycle.FieldTeams, Value: strconv.Itoa(e.Participants), Inline: true},
			{Name: "Onsite", Value: yesNo(e.Onsite), Inline: true},
			{Name: "Restrictions", Value: orBlank(e.Restrictions), Inline: true},
			{Name: "Format", Value: orBlank(e.Format), Inline: true},
			{Name: "Organizers", Value: orBlank(organizers), Inline: true},
			{Name: lifecycle.FieldWouldJoin, Value: blank},
			{Name: lifecycle.FieldStatus, Value: "Voting"},
		},
	}
}

func description(e event.ExternalEvent) string {
	var b strings.Builder
	if d := strings.TrimSpace(e.Description); d != "" {
		b.WriteString(d)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "**Starts:** %s\n", lifecycle.Timestamp(e.Start.Unix()))
	fmt.Fprintf(&b, "**Ends:** %s\n", lifecycle.Timestamp(e.End.Unix()))
	if p := strings.TrimSpace(e.Prizes); p != "" {
		fmt.Fprintf(&b, "**Prizes:** %s\n", p)
	}
	s := b.String()
	if len(s) > 4096 {
		s = s[:4093] + "..."
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func orBlank(s string) string {
	if strings.TrimSpace(s) == "" {
		return blank
	}
	return s
}

// UpdateField sets the named field of the announcement embed, appending it
// when missing.
func (c *Client) UpdateField(ctx context.Context, ref, name, value string) error {
	return c.editEmbed(ctx, ref, func(embed *discordgo.MessageEmbed) {
		setField(embed, name, orBlank(value))
	})
}

// UpdateStatusColor sets the announcement embed color.
func (c *Client) UpdateStatusColor(ctx context.Context, ref string, color int) error {
	return c.editEmbed(ctx, ref, func(embed *discordgo.MessageEmbed) {
		embed.Color = color
	})
}

func setField(embed *discordgo.MessageEmbed, name, value string) {
	for _, f := range embed.Fields {
		if f.Name == name {
			f.Value = value
			return
		}
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: name, Value: value})
}

func (c *Client) editEmbed(ctx context.Context, ref string, mutate func(*discordgo.MessageEmbed)) error {
	channel := c.Options().VoteChannelID

	opts, err := c.call(ctx)
	if err != nil {
		return err
	}
	msg, err := c.session.ChannelMessage(channel, ref, opts...)
	if err != nil {
		return fmt.Errorf("fetch announcement %s: %w", ref, err)
	}
	if len(msg.Embeds) == 0 {
		return fmt.Errorf("announcement %s has no embed", ref)
	}

	embed := *msg.Embeds[0]
	embed.Fields = cloneFields(embed.Fields)
	mutate(&embed)

	if opts, err = c.call(ctx); err != nil {
		return err
	}
	edit := discordgo.NewMessageEdit(channel, ref).SetEmbeds([]*discordgo.MessageEmbed{&embed})
	if _, err := c.session.ChannelMessageEditComplex(edit, opts...); err != nil {
		return fmt.Errorf("edit announcement %s: %w", ref, err)
	}
	return nil
}

func cloneFields(fields []*discordgo.MessageEmbedField) []*discordgo.MessageEmbedField {
	out := make([]*discordgo.MessageEmbedField, len(fields))
	for i, f := range fields {
		cp := *f
		out[i] = &cp
	}
	return out
}

// DeleteAnnouncement removes the announcement.
func (c *Client) DeleteAnnouncement(ctx context.Context, ref string) error {
	opts, err := c.call(ctx)
	if err != nil {
		return err
	}
	if err := c.session.ChannelMessageDelete(c.Options().VoteChannelID, ref, opts...); err != nil {
		return fmt.Errorf("delete announcement %s: %w", ref, err)
	}
	return nil
}

// ClearInteractivity removes every reaction from the announcement.
func (c *Client) ClearInteractivity(ctx context.Context, ref string) error {
	opts, err := c.call(ctx)
	if err != nil {
		return err
	}
	if err := c.session.MessageReactionsRemoveAll(c.Options().VoteChannelID, ref, opts...); err != nil {
		return fmt.Errorf("clear reactions on %s: %w", ref, err)
	}
	return nil
}
