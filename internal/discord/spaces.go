package discord

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxChannelName = 100

// CreateSpace creates a guild text channel named after the event.
func (c *Client) CreateSpace(ctx context.Context, name string) (string, error) {
	opts, err := c.call(ctx)
	if err != nil {
		return "", err
	}
	ch, err := c.session.GuildChannelCreate(c.Options().GuildID, Slug(name), discordgo.ChannelTypeGuildText, opts...)
	if err != nil {
		return "", fmt.Errorf("create channel for %q: %w", name, err)
	}
	return ch.ID, nil
}

// PostToSpace sends text to the event channel.
func (c *Client) PostToSpace(ctx context.Context, space, text string) error {
	opts, err := c.call(ctx)
	if err != nil {
		return err
	}
	if _, err := c.session.ChannelMessageSend(space, text, opts...); err != nil {
		return fmt.Errorf("post to channel %s: %w", space, err)
	}
	return nil
}

// SendDirect sends a direct message to userID.
func (c *Client) SendDirect(ctx context.Context, userID, text string) error {
	opts, err := c.call(ctx)
	if err != nil {
		return err
	}
	dm, err := c.session.UserChannelCreate(userID, opts...)
	if err != nil {
		return fmt.Errorf("open DM with %s: %w", userID, err)
	}

	if opts, err = c.call(ctx); err != nil {
		return err
	}
	if _, err := c.session.ChannelMessageSend(dm.ID, text, opts...); err != nil {
		return fmt.Errorf("send DM to %s: %w", userID, err)
	}
	return nil
}

// Slug turns an event title into a channel name: accents stripped,
// lowercase, runs of other characters collapsed to a single dash.
func Slug(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	s := strings.TrimSuffix(b.String(), "-")
	if len(s) > maxChannelName {
		s = strings.TrimSuffix(s[:maxChannelName], "-")
	}
	if s == "" {
		return "event"
	}
	return s
}
