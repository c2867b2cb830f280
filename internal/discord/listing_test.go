package discord

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/muster/internal/event"
	"github.com/roach88/muster/internal/listing"
)

func listRecords() []*event.Record {
	return []*event.Record{{
		ID:               1,
		Title:            "Example CTF",
		Start:            time.Unix(1_700_000_000, 0).UTC(),
		End:              time.Unix(1_700_003_600, 0).UTC(),
		AnnouncementRef:  "m9",
		ParticipantCount: 4,
	}}
}

func TestRefreshListingPostsThenEdits(t *testing.T) {
	c, fs := newTestClient()
	ctx := context.Background()

	require.NoError(t, c.RefreshListing(ctx, nil))
	require.Len(t, fs.messages, 1)

	var id string
	for k := range fs.messages {
		id = k
	}
	assert.Equal(t, listing.Title, fs.messages[id].Embeds[0].Title)
	assert.Contains(t, fs.messages[id].Embeds[0].Description, "No upcoming events.")

	require.NoError(t, c.RefreshListing(ctx, listRecords()))
	require.Len(t, fs.messages, 1, "edited in place")
	assert.Contains(t, fs.messages[id].Embeds[0].Description, "[Example CTF](https://discord.com/channels/g1/vote/m9)")
}

func TestRefreshListingReusesExistingMessage(t *testing.T) {
	c, fs := newTestClient()
	c.SetSelfID("bot")
	existing := &discordgo.Message{ID: "old", ChannelID: "list", Author: &discordgo.User{ID: "bot"}}
	fs.messages["old"] = existing
	fs.listing = []*discordgo.Message{
		{ID: "someone", Author: &discordgo.User{ID: "human"}},
		existing,
	}

	require.NoError(t, c.RefreshListing(context.Background(), listRecords()))

	assert.Len(t, fs.messages, 1)
	require.Len(t, existing.Embeds, 1)
	assert.Equal(t, listing.Title, existing.Embeds[0].Title)
}

func TestRefreshListingWithoutChannel(t *testing.T) {
	fs := newFakeSession()
	opts := testOptions
	opts.ListChannelID = ""
	c := New(fs, opts, nil)

	require.NoError(t, c.RefreshListing(context.Background(), listRecords()))
	assert.Empty(t, fs.messages)
}

func TestConfigureResetsListingMessage(t *testing.T) {
	c, fs := newTestClient()
	ctx := context.Background()
	require.NoError(t, c.RefreshListing(ctx, nil))

	opts := c.Options()
	opts.ListChannelID = "list2"
	c.Configure(opts)

	require.NoError(t, c.RefreshListing(ctx, nil))
	assert.Len(t, fs.messages, 2)
}
