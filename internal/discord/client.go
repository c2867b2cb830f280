// Package discord adapts a Discord guild to the lifecycle collaborators.
//
// Client implements the announcement Messenger, the SpaceProvider (one text
// channel per started event), the direct-message Notifier and the listing
// publisher. Reactions reports vote reactions back to the lifecycle engine.
// Every REST call waits on a shared token bucket.
package discord

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/roach88/muster/internal/listing"
)

// Session is the subset of *discordgo.Session the adapter uses.
type Session interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactionsRemoveAll(channelID, messageID string, options ...discordgo.RequestOption) error
	MessageReactions(channelID, messageID, emojiID string, limit int, beforeID, afterID string, options ...discordgo.RequestOption) ([]*discordgo.User, error)
	GuildChannelCreate(guildID, name string, ctype discordgo.ChannelType, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// Options are the guild coordinates and tunables of the adapter.
type Options struct {
	GuildID       string
	VoteChannelID string
	ListChannelID string
	VoteEmoji     string
	Threshold     int

	// RatePerSecond bounds REST calls. Zero disables limiting.
	RatePerSecond float64
}

// Client talks to one guild.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Client struct {
	session Session
	limiter *rate.Limiter
	logger  *slog.Logger

	mu            sync.RWMutex
	opts          Options
	selfID        string
	listMessageID string
}

// New creates a client over session.
func New(session Session, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	burst := 1
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
		burst = max(1, int(opts.RatePerSecond))
	}
	return &Client{
		session: session,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		opts:    opts,
	}
}

// Configure replaces the options. The rate limit is not changed.
func (c *Client) Configure(opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if opts.ListChannelID != c.opts.ListChannelID {
		c.listMessageID = ""
	}
	c.opts = opts
}

// Options returns the current options.
func (c *Client) Options() Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts
}

// SetSelfID records the bot's own user id, used to find the listing
// message and to ignore the bot's own vote.
func (c *Client) SetSelfID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selfID = id
}

func (c *Client) self() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selfID
}

// call waits for the limiter and returns the request options for ctx.
func (c *Client) call(ctx context.Context) ([]discordgo.RequestOption, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return []discordgo.RequestOption{discordgo.WithContext(ctx)}, nil
}

// AnnouncementURL links to an announcement in the vote channel.
func (c *Client) AnnouncementURL(ref string) string {
	o := c.Options()
	return listing.MessageURL(o.GuildID, o.VoteChannelID, ref)
}
