package discord

import (
	"context"
	"strings"
	"sync"

	"github.com/shelfmark/tbrbot/src/books"
	"github.com/shelfmark/tbrbot/src/config"
	"github.com/shelfmark/tbrbot/src/oops"
	"github.com/shelfmark/tbrbot/src/tbr"
)

const lookupCacheCap = 1024

/*
Remembers which book each lookup message showed, keyed by message ID, so a
reaction can resolve the book without re-parsing the embed. Bounded: once
full, the oldest entry is evicted. Reactions on messages that have aged out
fall back to fetching the message and parsing its embed title.
*/
type lookupCache struct {
	mu    sync.Mutex
	cap   int
	byID  map[string]*books.Book
	order []string
}

func newLookupCache(cap int) *lookupCache {
	return &lookupCache{
		cap:  cap,
		byID: make(map[string]*books.Book),
	}
}

func (c *lookupCache) remember(messageID string, book *books.Book) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byID[messageID]; !ok {
		c.order = append(c.order, messageID)
	}
	c.byID[messageID] = book

	for len(c.order) > c.cap {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.byID, oldest)
	}
}

func (c *lookupCache) get(messageID string) (*books.Book, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	book, ok := c.byID[messageID]
	return book, ok
}

func (bot *botInstance) doReactionAdd(ctx context.Context, reaction MessageReactionAdd) {
	defer func() {
		if recovered := recover(); recovered != nil {
			// Panics go through the same reporting path as ordinary handler
			// errors, so the log channel hears about them too.
			err, ok := recovered.(error)
			if !ok {
				err = oops.New(nil, "%v", recovered)
			}
			bot.reportError(ctx, "panic when handling Discord reaction", err)
		}
	}()

	if !shouldIngestReaction(reaction) {
		return
	}

	book, err := bot.resolveReactedBook(ctx, reaction)
	if err != nil {
		bot.reportError(ctx, "failed to resolve reacted book", err)
		return
	}
	if book == nil {
		// Reaction on some unrelated message; nothing to do
		return
	}

	err = tbr.Upsert(ctx, bot.dbConn, reaction.UserID, book.Title, book.Author)
	if err != nil {
		bot.reportError(ctx, "failed to add tbr entry from reaction", err)
	}
}

// Only ✅ reactions from real users count.
func shouldIngestReaction(reaction MessageReactionAdd) bool {
	if reaction.Emoji.Name != "✅" {
		return false
	}
	if reaction.UserID == config.Config.Discord.BotUserID {
		// The bot seeds its own ✅ on every lookup message
		return false
	}
	if reaction.Member != nil && reaction.Member.User != nil && reaction.Member.User.IsBot {
		return false
	}
	return true
}

/*
Figures out which book a reacted-on message was showing. The cache is the
happy path; if the message predates this process, fetch it and parse the
embed title back into title and author.
*/
func (bot *botInstance) resolveReactedBook(ctx context.Context, reaction MessageReactionAdd) (*books.Book, error) {
	if book, ok := bot.lookups.get(reaction.MessageID); ok {
		return book, nil
	}

	msg, err := GetChannelMessage(ctx, reaction.ChannelID, reaction.MessageID)
	if err != nil {
		return nil, oops.New(err, "failed to fetch reacted-on message")
	}

	if msg.Author.ID != config.Config.Discord.BotUserID {
		return nil, nil
	}
	if len(msg.Embeds) != 1 || msg.Embeds[0].Title == nil {
		return nil, nil
	}

	title, author, ok := parseBookEmbedTitle(*msg.Embeds[0].Title)
	if !ok {
		return nil, oops.New(nil, "lookup message embed title %q had no author separator", *msg.Embeds[0].Title)
	}

	return &books.Book{Title: title, Author: author}, nil
}

// Splits an embed title of the form "{title} by {author}" on the first
// " by ". Titles containing " by " themselves would split wrong here, which
// is why the cache is the primary source.
func parseBookEmbedTitle(embedTitle string) (title string, author string, ok bool) {
	parts := strings.SplitN(embedTitle, " by ", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
