package discord

import (
	"context"
	"fmt"
	"testing"

	"github.com/shelfmark/tbrbot/src/books"
	"github.com/shelfmark/tbrbot/src/config"
	"github.com/shelfmark/tbrbot/src/tbr"
	"github.com/stretchr/testify/assert"
)

func TestLookupCache(t *testing.T) {
	t.Run("remembers and forgets", func(t *testing.T) {
		c := newLookupCache(2)

		c.remember("msg1", &books.Book{Title: "Dune"})
		c.remember("msg2", &books.Book{Title: "Hyperion"})

		book, ok := c.get("msg1")
		assert.True(t, ok)
		assert.Equal(t, "Dune", book.Title)

		// msg3 pushes out msg1
		c.remember("msg3", &books.Book{Title: "Foundation"})
		_, ok = c.get("msg1")
		assert.False(t, ok)
		_, ok = c.get("msg2")
		assert.True(t, ok)
		_, ok = c.get("msg3")
		assert.True(t, ok)
	})
	t.Run("re-remembering does not double-count", func(t *testing.T) {
		c := newLookupCache(2)

		c.remember("msg1", &books.Book{Title: "Dune"})
		c.remember("msg1", &books.Book{Title: "Dune Messiah"})
		c.remember("msg2", &books.Book{Title: "Hyperion"})

		book, ok := c.get("msg1")
		assert.True(t, ok)
		assert.Equal(t, "Dune Messiah", book.Title)
	})
	t.Run("stays bounded", func(t *testing.T) {
		c := newLookupCache(8)
		for i := 0; i < 100; i++ {
			c.remember(fmt.Sprintf("msg%d", i), &books.Book{})
		}
		assert.Len(t, c.byID, 8)
		assert.Len(t, c.order, 8)
	})
}

func TestShouldIngestReaction(t *testing.T) {
	oldBotUserID := config.Config.Discord.BotUserID
	config.Config.Discord.BotUserID = "bot123"
	defer func() { config.Config.Discord.BotUserID = oldBotUserID }()

	t.Run("checkmark from a user", func(t *testing.T) {
		assert.True(t, shouldIngestReaction(MessageReactionAdd{
			UserID: "user1",
			Emoji:  Emoji{Name: "✅"},
		}))
	})
	t.Run("wrong emoji", func(t *testing.T) {
		assert.False(t, shouldIngestReaction(MessageReactionAdd{
			UserID: "user1",
			Emoji:  Emoji{Name: "👍"},
		}))
	})
	t.Run("the bot's own reaction", func(t *testing.T) {
		assert.False(t, shouldIngestReaction(MessageReactionAdd{
			UserID: "bot123",
			Emoji:  Emoji{Name: "✅"},
		}))
	})
	t.Run("some other bot", func(t *testing.T) {
		assert.False(t, shouldIngestReaction(MessageReactionAdd{
			UserID: "otherbot",
			Member: &GuildMember{User: &User{ID: "otherbot", IsBot: true}},
			Emoji:  Emoji{Name: "✅"},
		}))
	})
}

func TestDoReactionAddIgnoresFiltered(t *testing.T) {
	rec := stubDiscordAPI(t)

	oldBotUserID := config.Config.Discord.BotUserID
	config.Config.Discord.BotUserID = "bot123"
	defer func() { config.Config.Discord.BotUserID = oldBotUserID }()

	policy := tbr.NewChannelPolicy()
	policy.SetLogChannel("logchan")
	bot := newBotInstance(nil, policy, newLookupCache(4))
	bot.lookups.remember("msg1", &books.Book{Title: "Dune", Author: "Frank Herbert"})

	// None of these should touch the database or the Discord API. With a nil
	// db pool, a reaction that slipped through would panic and show up as an
	// error report in the recorder.
	reactions := []MessageReactionAdd{
		{UserID: "user1", ChannelID: "chan1", MessageID: "msg1", Emoji: Emoji{Name: "👍"}},
		{UserID: "bot123", ChannelID: "chan1", MessageID: "msg1", Emoji: Emoji{Name: "✅"}},
		{
			UserID:    "otherbot",
			ChannelID: "chan1",
			MessageID: "msg1",
			Member:    &GuildMember{User: &User{ID: "otherbot", IsBot: true}},
			Emoji:     Emoji{Name: "✅"},
		},
	}
	for _, reaction := range reactions {
		bot.doReactionAdd(context.Background(), reaction)
	}

	assert.Empty(t, rec.all())
}

func TestParseBookEmbedTitle(t *testing.T) {
	t.Run("title and author", func(t *testing.T) {
		title, author, ok := parseBookEmbedTitle("Dune by Frank Herbert")
		assert.True(t, ok)
		assert.Equal(t, "Dune", title)
		assert.Equal(t, "Frank Herbert", author)
	})
	t.Run("splits on the first separator", func(t *testing.T) {
		title, author, ok := parseBookEmbedTitle("Poems by Heart by Somebody")
		assert.True(t, ok)
		assert.Equal(t, "Poems", title)
		assert.Equal(t, "Heart by Somebody", author)
	})
	t.Run("no separator", func(t *testing.T) {
		_, _, ok := parseBookEmbedTitle("just a title")
		assert.False(t, ok)
	})
}

func TestBookEmbed(t *testing.T) {
	t.Run("full book", func(t *testing.T) {
		e := bookEmbed(&books.Book{
			Title:       "Dune",
			Author:      "Frank Herbert",
			Publisher:   "Ace",
			ISBN:        "ISBN_13: 9780441172719",
			Description: "A desert planet.",
			CoverUrl:    "http://example.com/dune.jpg",
		})

		assert.Equal(t, "Dune by Frank Herbert", *e.Title)
		assert.Equal(t, "A desert planet.", *e.Description)
		assert.Len(t, e.Fields, 2)
		assert.Equal(t, "Ace", e.Fields[0].Value)
		assert.Equal(t, "ISBN_13: 9780441172719", e.Fields[1].Value)
		assert.NotNil(t, e.Image)
		assert.Equal(t, "http://example.com/dune.jpg", *e.Image.Url)
	})
	t.Run("no cover", func(t *testing.T) {
		e := bookEmbed(&books.Book{Title: "Dune", Author: "Frank Herbert"})
		assert.Nil(t, e.Image)
	})

	// the embed title must round-trip through the reaction fallback parser
	t.Run("title round-trips", func(t *testing.T) {
		e := bookEmbed(&books.Book{Title: "Dune", Author: "Frank Herbert"})
		title, author, ok := parseBookEmbedTitle(*e.Title)
		assert.True(t, ok)
		assert.Equal(t, "Dune", title)
		assert.Equal(t, "Frank Herbert", author)
	})
}
