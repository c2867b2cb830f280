package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

var _ Session = (*discordgo.Session)(nil)

// NewSession creates a gateway session for token and a client on it. The
// session is not opened until Listen, so the client can be handed to the
// lifecycle engine first.
func NewSession(token string, opts Options, logger *slog.Logger) (*discordgo.Session, *Client, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsDirectMessages

	return s, New(s, opts, logger), nil
}

// Listen routes vote reactions on s to engine and opens the session.
// Attendance is resynced on every (re)connect. Handlers run with ctx;
// cancelling it does not close the session.
func Listen(ctx context.Context, s *discordgo.Session, c *Client, engine AttendanceRecorder, records RecordLookup) error {
	rx := NewReactions(c, engine, records)

	s.AddHandler(func(_ *discordgo.Session, ready *discordgo.Ready) {
		c.SetSelfID(ready.User.ID)
		c.logger.Info("discord connected", "user", ready.User.Username, "guilds", len(ready.Guilds))
		if err := rx.Resync(ctx); err != nil {
			c.logger.Error("attendance resync failed", "error", err)
		}
	})
	s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageReactionAdd) {
		rx.handle(ctx, m.MessageReaction)
	})
	s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageReactionRemove) {
		rx.handle(ctx, m.MessageReaction)
	})

	if err := s.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	return nil
}

func (r *Reactions) handle(ctx context.Context, m *discordgo.MessageReaction) {
	if err := r.Changed(ctx, m.ChannelID, m.MessageID, m.Emoji.APIName()); err != nil {
		r.client.logger.Warn("vote not recorded", "message_id", m.MessageID, "error", err)
	}
}
