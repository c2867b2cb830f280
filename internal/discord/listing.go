package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/roach88/muster/internal/event"
	"github.com/roach88/muster/internal/listing"
)

// RefreshListing edits the bot's summary message in the list channel,
// posting it first if none exists.
func (c *Client) RefreshListing(ctx context.Context, records []*event.Record) error {
	o := c.Options()
	if o.ListChannelID == "" {
		return nil
	}

	l := listing.Render(records, listing.Options{
		Threshold:     o.Threshold,
		GuildID:       o.GuildID,
		VoteChannelID: o.VoteChannelID,
	})
	embed := &discordgo.MessageEmbed{Title: l.Title, URL: l.URL, Description: l.Description}

	id, err := c.listingMessage(ctx, o.ListChannelID)
	if err != nil {
		return err
	}

	opts, err := c.call(ctx)
	if err != nil {
		return err
	}
	if id == "" {
		msg, err := c.session.ChannelMessageSendComplex(o.ListChannelID, &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{embed},
		}, opts...)
		if err != nil {
			return fmt.Errorf("send listing: %w", err)
		}
		c.setListMessage(msg.ID)
		c.logger.Debug("created event list message", "message_id", msg.ID)
		return nil
	}

	edit := discordgo.NewMessageEdit(o.ListChannelID, id).SetEmbeds([]*discordgo.MessageEmbed{embed})
	if _, err := c.session.ChannelMessageEditComplex(edit, opts...); err != nil {
		return fmt.Errorf("edit listing: %w", err)
	}
	c.logger.Debug("updated event list message", "message_id", id)
	return nil
}

// listingMessage returns the id of the bot's message in the list channel,
// or "" when there is none.
func (c *Client) listingMessage(ctx context.Context, channel string) (string, error) {
	c.mu.RLock()
	id, self := c.listMessageID, c.selfID
	c.mu.RUnlock()
	if id != "" || self == "" {
		return id, nil
	}

	opts, err := c.call(ctx)
	if err != nil {
		return "", err
	}
	msgs, err := c.session.ChannelMessages(channel, 100, "", "", "", opts...)
	if err != nil {
		return "", fmt.Errorf("fetch list channel: %w", err)
	}
	for _, m := range msgs {
		if m.Author != nil && m.Author.ID == self {
			c.setListMessage(m.ID)
			return m.ID, nil
		}
	}
	return "", nil
}

func (c *Client) setListMessage(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listMessageID = id
}
