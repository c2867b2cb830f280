package discord

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// fakeSession keeps messages in memory and records the calls made.
type fakeSession struct {
	mu        sync.Mutex
	nextID    int
	messages  map[string]*discordgo.Message
	deleted   []string
	reactions map[string][]string
	voters    map[string][]*discordgo.User
	cleared   []string
	channels  []string
	sent      []string
	listing   []*discordgo.Message
	failDM    map[string]bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		messages:  map[string]*discordgo.Message{},
		reactions: map[string][]string{},
		voters:    map[string][]*discordgo.User{},
		failDM:    map[string]bool{},
	}
}

func (f *fakeSession) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

func (f *fakeSession) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, channelID+": "+content)
	return &discordgo.Message{ID: f.id("m"), ChannelID: channelID, Content: content}, nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := &discordgo.Message{ID: f.id("m"), ChannelID: channelID, Embeds: data.Embeds}
	f.messages[msg.ID] = msg
	return msg, nil
}

func (f *fakeSession) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[m.ID]
	if !ok {
		return nil, errors.New("unknown message")
	}
	if m.Embeds != nil {
		msg.Embeds = *m.Embeds
	}
	return msg, nil
}

func (f *fakeSession) ChannelMessage(_, messageID string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[messageID]
	if !ok {
		return nil, errors.New("unknown message")
	}
	cp := *msg
	return &cp, nil
}

func (f *fakeSession) ChannelMessages(string, int, string, string, string, ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listing, nil
}

func (f *fakeSession) ChannelMessageDelete(_, messageID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.messages, messageID)
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeSession) MessageReactionAdd(_, messageID, emojiID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions[messageID] = append(f.reactions[messageID], emojiID)
	return nil
}

func (f *fakeSession) MessageReactionsRemoveAll(_, messageID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, messageID)
	return nil
}

func (f *fakeSession) MessageReactions(_, messageID, _ string, limit int, _, afterID string, _ ...discordgo.RequestOption) ([]*discordgo.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.voters[messageID]
	start := 0
	if afterID != "" {
		for i, u := range all {
			if u.ID == afterID {
				start = i + 1
			}
		}
	}
	end := min(start+limit, len(all))
	return all[start:end], nil
}

func (f *fakeSession) GuildChannelCreate(_, name string, _ discordgo.ChannelType, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, name)
	return &discordgo.Channel{ID: f.id("c"), Name: name}, nil
}

func (f *fakeSession) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDM[recipientID] {
		return nil, errors.New("cannot send messages to this user")
	}
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}
