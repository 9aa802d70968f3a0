package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shelfmark/tbrbot/src/books"
	"github.com/shelfmark/tbrbot/src/config"
	"github.com/shelfmark/tbrbot/src/logging"
	"github.com/shelfmark/tbrbot/src/oops"
	"github.com/shelfmark/tbrbot/src/tbr"
)

// Slash command names and options
const SlashCommandBook = "book"
const BookOptionTitle = "title"
const BookOptionAuthor = "author"
const BookOptionPublisher = "publisher"
const BookOptionISBN = "isbn"
const BookOptionEdition = "edition"

const SlashCommandAddTbr = "addtbr"
const SlashCommandRemoveTbr = "removetbr"
const TbrOptionTitle = "title"
const TbrOptionAuthor = "author"

const SlashCommandTbr = "tbr"
const TbrOptionUser = "user"

const SlashCommandSetLogs = "setlogs"
const SetLogsOptionChannel = "channel"

const SlashCommandChat = "chat"
const ChatOptionChannel = "channel"

const SlashCommandListChat = "listchat"

const msgChannelNotAllowed = "This command is not allowed in this channel."

func (bot *botInstance) createApplicationCommands(ctx context.Context) {
	doOrWarn := func(err error) {
		if err == nil {
			logging.ExtractLogger(ctx).Info().Msg("Created Discord application command")
		} else {
			logging.ExtractLogger(ctx).Warn().Err(err).Msg("Failed to create Discord application command")
		}
	}

	doOrWarn(CreateGuildApplicationCommand(ctx, CreateGuildApplicationCommandRequest{
		Type:        ApplicationCommandTypeChatInput,
		Name:        SlashCommandBook,
		Description: "Look up a book on Google Books",
		Options: []ApplicationCommandOption{
			{
				Type:        ApplicationCommandOptionTypeString,
				Name:        BookOptionTitle,
				Description: "The title of the book",
				Required:    true,
			},
			{
				Type:        ApplicationCommandOptionTypeString,
				Name:        BookOptionAuthor,
				Description: "The author of the book",
			},
			{
				Type:        ApplicationCommandOptionTypeString,
				Name:        BookOptionPublisher,
				Description: "The publisher of the book",
			},
			{
				Type:        ApplicationCommandOptionTypeString,
				Name:        BookOptionISBN,
				Description: "The ISBN of the book",
			},
			{
				Type:        ApplicationCommandOptionTypeString,
				Name:        BookOptionEdition,
				Description: "The edition of the book",
			},
		},
	}))
	doOrWarn(CreateGuildApplicationCommand(ctx, CreateGuildApplicationCommandRequest{
		Type:        ApplicationCommandTypeChatInput,
		Name:        SlashCommandAddTbr,
		Description: "Add a book to your to-be-read list",
		Options: []ApplicationCommandOption{
			{
				Type:        ApplicationCommandOptionTypeString,
				Name:        TbrOptionTitle,
				Description: "The title of the book",
				Required:    true,
			},
			{
				Type:        ApplicationCommandOptionTypeString,
				Name:        TbrOptionAuthor,
				Description: "The author of the book",
				Required:    true,
			},
		},
	}))
	doOrWarn(CreateGuildApplicationCommand(ctx, CreateGuildApplicationCommandRequest{
		Type:        ApplicationCommandTypeChatInput,
		Name:        SlashCommandRemoveTbr,
		Description: "Remove a book from your to-be-read list",
		Options: []ApplicationCommandOption{
			{
				Type:        ApplicationCommandOptionTypeString,
				Name:        TbrOptionTitle,
				Description: "The title of the book",
				Required:    true,
			},
			{
				Type:        ApplicationCommandOptionTypeString,
				Name:        TbrOptionAuthor,
				Description: "The author of the book",
				Required:    true,
			},
		},
	}))
	doOrWarn(CreateGuildApplicationCommand(ctx, CreateGuildApplicationCommandRequest{
		Type:        ApplicationCommandTypeChatInput,
		Name:        SlashCommandTbr,
		Description: "Show a to-be-read list",
		Options: []ApplicationCommandOption{
			{
				Type:        ApplicationCommandOptionTypeUser,
				Name:        TbrOptionUser,
				Description: "The user whose list to show (defaults to you)",
			},
		},
	}))
	doOrWarn(CreateGuildApplicationCommand(ctx, CreateGuildApplicationCommandRequest{
		Type:        ApplicationCommandTypeChatInput,
		Name:        SlashCommandSetLogs,
		Description: "Set the channel that receives bot error reports",
		Options: []ApplicationCommandOption{
			{
				Type:        ApplicationCommandOptionTypeChannel,
				Name:        SetLogsOptionChannel,
				Description: "The channel to send error reports to",
				Required:    true,
			},
		},
	}))
	doOrWarn(CreateGuildApplicationCommand(ctx, CreateGuildApplicationCommandRequest{
		Type:        ApplicationCommandTypeChatInput,
		Name:        SlashCommandChat,
		Description: "Allow book commands in a channel",
		Options: []ApplicationCommandOption{
			{
				Type:        ApplicationCommandOptionTypeChannel,
				Name:        ChatOptionChannel,
				Description: "The channel to allow",
				Required:    true,
			},
		},
	}))
	doOrWarn(CreateGuildApplicationCommand(ctx, CreateGuildApplicationCommandRequest{
		Type:        ApplicationCommandTypeChatInput,
		Name:        SlashCommandListChat,
		Description: "List the channels where book commands are allowed",
	}))
}

func (bot *botInstance) doInteraction(ctx context.Context, i *Interaction) {
	defer func() {
		if recovered := recover(); recovered != nil {
			// Panics go through the same reporting path as ordinary handler
			// errors, so the log channel hears about them too.
			err, ok := recovered.(error)
			if !ok {
				err = oops.New(nil, "%v", recovered)
			}
			bot.reportError(ctx, "panic when handling Discord interaction", err)
		}
	}()

	switch i.Data.Name {
	case SlashCommandBook:
		bot.handleBookCommand(ctx, i)
	case SlashCommandAddTbr:
		bot.handleAddTbrCommand(ctx, i)
	case SlashCommandRemoveTbr:
		bot.handleRemoveTbrCommand(ctx, i)
	case SlashCommandTbr:
		bot.handleTbrCommand(ctx, i)
	case SlashCommandSetLogs:
		bot.handleSetLogsCommand(ctx, i)
	case SlashCommandChat:
		bot.handleChatCommand(ctx, i)
	case SlashCommandListChat:
		bot.handleListChatCommand(ctx, i)
	default:
		logging.ExtractLogger(ctx).Warn().Str("name", i.Data.Name).Msg("didn't recognize Discord interaction name")
	}
}

func (bot *botInstance) handleBookCommand(ctx context.Context, i *Interaction) {
	if !bot.policy.IsAllowed(i.ChannelID) {
		bot.respondEphemeral(ctx, i, msgChannelNotAllowed)
		return
	}

	req := books.LookupRequest{
		Title:     mustGetInteractionOption(i.Data.Options, BookOptionTitle).Value.(string),
		Author:    getStringOption(i.Data.Options, BookOptionAuthor),
		Publisher: getStringOption(i.Data.Options, BookOptionPublisher),
		ISBN:      getStringOption(i.Data.Options, BookOptionISBN),
		Edition:   getStringOption(i.Data.Options, BookOptionEdition),
	}

	// The books API can be slow, so acknowledge the interaction right away
	// and follow up when the lookup finishes.
	err := CreateInteractionResponse(ctx, i.ID, i.Token, InteractionResponse{
		Type: InteractionCallbackTypeDeferredChannelMessageWithSource,
	})
	if err != nil {
		bot.reportError(ctx, "failed to defer book lookup response", err)
		return
	}

	book, err := books.Lookup(ctx, req)
	if err != nil {
		if errors.Is(err, books.ErrNotFound) {
			_, err = CreateFollowupMessage(ctx, i.Token, InteractionCallbackData{
				Content: "No books found.",
			})
			if err != nil {
				bot.reportError(ctx, "failed to send book lookup response", err)
			}
		} else {
			bot.reportError(ctx, "book lookup failed", err)
			_, err = CreateFollowupMessage(ctx, i.Token, InteractionCallbackData{
				Content: "An error occurred while fetching book info.",
			})
			if err != nil {
				bot.reportError(ctx, "failed to send book lookup response", err)
			}
		}
		return
	}

	msg, err := CreateFollowupMessage(ctx, i.Token, InteractionCallbackData{
		Embeds: []Embed{bookEmbed(book)},
	})
	if err != nil {
		bot.reportError(ctx, "failed to send book lookup response", err)
		return
	}

	// Remember which book this message showed so a ✅ reaction can add it to
	// someone's list without parsing the embed back out.
	bot.lookups.remember(msg.ID, book)

	err = CreateReaction(ctx, msg.ChannelID, msg.ID, "✅")
	if err != nil {
		bot.reportError(ctx, "failed to add reaction to book lookup", err)
	}
}

func bookEmbed(book *books.Book) Embed {
	title := fmt.Sprintf("%s by %s", book.Title, book.Author)
	inline := true

	e := Embed{
		Title:       &title,
		Description: &book.Description,
		Fields: []EmbedField{
			{Name: "Publisher", Value: book.Publisher, Inline: &inline},
			{Name: "ISBN", Value: book.ISBN, Inline: &inline},
		},
	}
	if book.CoverUrl != "" {
		e.Image = &EmbedImage{
			EmbedImageish: EmbedImageish{Url: &book.CoverUrl},
		}
	}
	return e
}

func (bot *botInstance) handleAddTbrCommand(ctx context.Context, i *Interaction) {
	if !bot.policy.IsAllowed(i.ChannelID) {
		bot.respondEphemeral(ctx, i, msgChannelNotAllowed)
		return
	}

	title := mustGetInteractionOption(i.Data.Options, TbrOptionTitle).Value.(string)
	author := mustGetInteractionOption(i.Data.Options, TbrOptionAuthor).Value.(string)

	err := tbr.Upsert(ctx, bot.dbConn, interactionUser(i).ID, title, author)
	if err != nil {
		bot.reportError(ctx, "failed to add tbr entry", err)
		bot.respondEphemeral(ctx, i, "An error occurred while updating your TBR list.")
		return
	}

	bot.respond(ctx, i, fmt.Sprintf("Added %s by %s to your TBR list.", title, author))
}

func (bot *botInstance) handleRemoveTbrCommand(ctx context.Context, i *Interaction) {
	if !bot.policy.IsAllowed(i.ChannelID) {
		bot.respondEphemeral(ctx, i, msgChannelNotAllowed)
		return
	}

	title := mustGetInteractionOption(i.Data.Options, TbrOptionTitle).Value.(string)
	author := mustGetInteractionOption(i.Data.Options, TbrOptionAuthor).Value.(string)

	err := tbr.Remove(ctx, bot.dbConn, interactionUser(i).ID, title, author)
	if err != nil {
		bot.reportError(ctx, "failed to remove tbr entry", err)
		bot.respondEphemeral(ctx, i, "An error occurred while updating your TBR list.")
		return
	}

	bot.respond(ctx, i, fmt.Sprintf("Removed %s by %s from your TBR list.", title, author))
}

func (bot *botInstance) handleTbrCommand(ctx context.Context, i *Interaction) {
	if !bot.policy.IsAllowed(i.ChannelID) {
		bot.respondEphemeral(ctx, i, msgChannelNotAllowed)
		return
	}

	userID := interactionUser(i).ID
	name := interactionUserDisplayName(i)
	if userOpt, ok := getInteractionOption(i.Data.Options, TbrOptionUser); ok {
		userID = userOpt.Value.(string)
		name = resolvedDisplayName(i, userID)
	}

	entries, err := tbr.List(ctx, bot.dbConn, userID)
	if err != nil {
		bot.reportError(ctx, "failed to fetch tbr entries", err)
		bot.respondEphemeral(ctx, i, "An error occurred while fetching the TBR list.")
		return
	}

	if len(entries) == 0 {
		bot.respond(ctx, i, fmt.Sprintf("%s has no books on their TBR list.", name))
		return
	}

	title := fmt.Sprintf("%s's TBR List", name)
	embed := Embed{Title: &title}
	for _, entry := range entries {
		embed.Fields = append(embed.Fields, EmbedField{
			Name:  entry.Title,
			Value: entry.Author,
		})
	}

	err = CreateInteractionResponse(ctx, i.ID, i.Token, InteractionResponse{
		Type: InteractionCallbackTypeChannelMessageWithSource,
		Data: &InteractionCallbackData{
			Embeds: []Embed{embed},
		},
	})
	if err != nil {
		bot.reportError(ctx, "failed to send tbr list", err)
	}
}

func (bot *botInstance) handleSetLogsCommand(ctx context.Context, i *Interaction) {
	if !isAdmin(interactionUser(i).ID) {
		bot.respondEphemeral(ctx, i, "You are not allowed to use this command.")
		return
	}

	channelID := mustGetInteractionOption(i.Data.Options, SetLogsOptionChannel).Value.(string)
	bot.policy.SetLogChannel(channelID)

	bot.respondEphemeral(ctx, i, fmt.Sprintf("Log channel set to <#%s>", channelID))
}

func (bot *botInstance) handleChatCommand(ctx context.Context, i *Interaction) {
	if !isAdmin(interactionUser(i).ID) {
		bot.respondEphemeral(ctx, i, "You are not allowed to use this command.")
		return
	}

	channelID := mustGetInteractionOption(i.Data.Options, ChatOptionChannel).Value.(string)
	bot.policy.Allow(channelID)

	bot.respondEphemeral(ctx, i, fmt.Sprintf("<#%s> added to accessible channels.", channelID))
}

func (bot *botInstance) handleListChatCommand(ctx context.Context, i *Interaction) {
	if !isAdmin(interactionUser(i).ID) {
		bot.respondEphemeral(ctx, i, "You are not allowed to use this command.")
		return
	}

	channels := bot.policy.Channels()
	if len(channels) == 0 {
		bot.respondEphemeral(ctx, i, "No channels are accessible yet.")
		return
	}

	mentions := make([]string, len(channels))
	for idx, id := range channels {
		mentions[idx] = fmt.Sprintf("<#%s>", id)
	}
	bot.respondEphemeral(ctx, i, fmt.Sprintf("Accessible channels: %s", strings.Join(mentions, ", ")))
}

func (bot *botInstance) respond(ctx context.Context, i *Interaction, content string) {
	err := CreateInteractionResponse(ctx, i.ID, i.Token, InteractionResponse{
		Type: InteractionCallbackTypeChannelMessageWithSource,
		Data: &InteractionCallbackData{
			Content: content,
		},
	})
	if err != nil {
		bot.reportError(ctx, "failed to send interaction response", err)
	}
}

func (bot *botInstance) respondEphemeral(ctx context.Context, i *Interaction, content string) {
	err := CreateInteractionResponse(ctx, i.ID, i.Token, InteractionResponse{
		Type: InteractionCallbackTypeChannelMessageWithSource,
		Data: &InteractionCallbackData{
			Content: content,
			Flags:   FlagEphemeral,
		},
	})
	if err != nil {
		bot.reportError(ctx, "failed to send interaction response", err)
	}
}

// Logs an error, and forwards it to the configured log channel if one has
// been set with /setlogs.
func (bot *botInstance) reportError(ctx context.Context, msg string, err error) {
	logging.ExtractLogger(ctx).Error().Err(err).Msg(msg)

	logChannel, ok := bot.policy.LogChannel()
	if !ok {
		return
	}

	_, sendErr := CreateMessage(ctx, logChannel, CreateMessageRequest{
		Content: fmt.Sprintf("⚠️ %s: %v", msg, err),
	})
	if sendErr != nil {
		logging.ExtractLogger(ctx).Error().Err(sendErr).Msg("failed to forward error to log channel")
	}
}

// An empty admin list means everyone is an admin. Handy for small servers
// and for local testing.
func isAdmin(userID string) bool {
	admins := config.Config.Discord.AdminUserIDs
	if len(admins) == 0 {
		return true
	}
	for _, id := range admins {
		if id == userID {
			return true
		}
	}
	return false
}

// The user who triggered an interaction: guild interactions carry a member,
// DM interactions carry a bare user.
func interactionUser(i *Interaction) *User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	if i.User != nil {
		return i.User
	}
	panic("interaction had no user at all")
}

func interactionUserDisplayName(i *Interaction) string {
	if i.Member != nil {
		if name := i.Member.DisplayName(); name != "" {
			return name
		}
	}
	return interactionUser(i).Username
}

func resolvedDisplayName(i *Interaction, userID string) string {
	if member, ok := i.Data.Resolved.Members[userID]; ok {
		if name := member.DisplayName(); name != "" {
			return name
		}
	}
	if user, ok := i.Data.Resolved.Users[userID]; ok {
		return user.Username
	}
	return userID
}

func getInteractionOption(opts []ApplicationCommandInteractionDataOption, name string) (ApplicationCommandInteractionDataOption, bool) {
	for _, opt := range opts {
		if opt.Name == name {
			return opt, true
		}
	}

	return ApplicationCommandInteractionDataOption{}, false
}

func mustGetInteractionOption(opts []ApplicationCommandInteractionDataOption, name string) ApplicationCommandInteractionDataOption {
	opt, ok := getInteractionOption(opts, name)
	if !ok {
		panic(fmt.Errorf("failed to get interaction option with name '%s'", name))
	}
	return opt
}

func getStringOption(opts []ApplicationCommandInteractionDataOption, name string) string {
	opt, ok := getInteractionOption(opts, name)
	if !ok {
		return ""
	}
	str, _ := opt.Value.(string)
	return str
}
