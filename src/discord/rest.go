package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/shelfmark/tbrbot/src/config"
	"github.com/shelfmark/tbrbot/src/logging"
	"github.com/shelfmark/tbrbot/src/oops"
)

const (
	BotName = "Shelfmark"

	UserAgentURL     = "https://github.com/shelfmark/tbrbot"
	UserAgentVersion = "1.0"
)

var BaseUrl = "https://discord.com/api/v9"

var UserAgent = fmt.Sprintf("%s (%s, %s)", BotName, UserAgentURL, UserAgentVersion)

var httpClient = &http.Client{}

func makeRequest(ctx context.Context, method string, path string, body []byte) *http.Request {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewBuffer(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s%s", BaseUrl, path), bodyReader)
	if err != nil {
		panic(err)
	}
	req.Header.Add("Authorization", fmt.Sprintf("Bot %s", config.Config.Discord.BotToken))
	req.Header.Add("User-Agent", UserAgent)

	return req
}

type GetGatewayBotResponse struct {
	URL string `json:"url"`
	// We don't care about shards or session limit stuff; we will never hit those limits
}

func GetGatewayBot(ctx context.Context) (*GetGatewayBotResponse, error) {
	const name = "Get Gateway Bot"

	res, err := doWithRateLimiting(ctx, name, func(ctx context.Context) *http.Request {
		return makeRequest(ctx, http.MethodGet, "/gateway/bot", nil)
	})
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != 200 {
		logErrorResponse(ctx, name, res, "")
		return nil, oops.New(nil, "received error from Discord")
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		panic(err)
	}

	var result GetGatewayBotResponse
	err = json.Unmarshal(body, &result)
	if err != nil {
		return nil, oops.New(err, "failed to unmarshal Discord response")
	}

	return &result, nil
}

type CreateMessageRequest struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

func CreateMessage(ctx context.Context, channelID string, req CreateMessageRequest) (*Message, error) {
	const name = "Create Message"

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, oops.New(err, "failed to marshal Discord message")
	}

	path := fmt.Sprintf("/channels/%s/messages", channelID)
	res, err := doWithRateLimiting(ctx, name, func(ctx context.Context) *http.Request {
		req := makeRequest(ctx, http.MethodPost, path, payload)
		req.Header.Add("Content-Type", "application/json")
		return req
	})
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		logErrorResponse(ctx, name, res, "")
		return nil, oops.New(nil, "received error from Discord")
	}

	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		panic(err)
	}

	var msg Message
	err = json.Unmarshal(bodyBytes, &msg)
	if err != nil {
		return nil, oops.New(err, "failed to unmarshal Discord message")
	}

	return &msg, nil
}

func GetChannelMessage(ctx context.Context, channelID string, messageID string) (*Message, error) {
	const name = "Get Channel Message"

	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	res, err := doWithRateLimiting(ctx, name, func(ctx context.Context) *http.Request {
		return makeRequest(ctx, http.MethodGet, path, nil)
	})
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		logErrorResponse(ctx, name, res, "")
		return nil, oops.New(nil, "received error from Discord")
	}

	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		panic(err)
	}

	var msg Message
	err = json.Unmarshal(bodyBytes, &msg)
	if err != nil {
		return nil, oops.New(err, "failed to unmarshal Discord message")
	}

	return &msg, nil
}

// Adds a reaction from the bot's own account. The emoji is the literal
// unicode character for standard emoji.
func CreateReaction(ctx context.Context, channelID string, messageID string, emoji string) error {
	const name = "Create Reaction"

	path := fmt.Sprintf(
		"/channels/%s/messages/%s/reactions/%s/@me",
		channelID,
		messageID,
		url.PathEscape(emoji),
	)
	res, err := doWithRateLimiting(ctx, name, func(ctx context.Context) *http.Request {
		return makeRequest(ctx, http.MethodPut, path, nil)
	})
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusNoContent {
		logErrorResponse(ctx, name, res, "")
		return oops.New(nil, "got unexpected status code when creating reaction")
	}

	return nil
}

func CreateGuildApplicationCommand(ctx context.Context, req CreateGuildApplicationCommandRequest) error {
	const name = "Create Guild Application Command"

	payload, err := json.Marshal(req)
	if err != nil {
		return oops.New(err, "failed to marshal application command")
	}

	path := fmt.Sprintf(
		"/applications/%s/guilds/%s/commands",
		config.Config.Discord.BotUserID,
		config.Config.Discord.GuildID,
	)
	res, err := doWithRateLimiting(ctx, name, func(ctx context.Context) *http.Request {
		req := makeRequest(ctx, http.MethodPost, path, payload)
		req.Header.Add("Content-Type", "application/json")
		return req
	})
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		logErrorResponse(ctx, name, res, "")
		return oops.New(nil, "received error from Discord")
	}

	return nil
}

func CreateInteractionResponse(ctx context.Context, interactionID string, interactionToken string, response InteractionResponse) error {
	const name = "Create Interaction Response"

	payload, err := json.Marshal(response)
	if err != nil {
		return oops.New(err, "failed to marshal interaction response")
	}

	path := fmt.Sprintf("/interactions/%s/%s/callback", interactionID, interactionToken)
	res, err := doWithRateLimiting(ctx, name, func(ctx context.Context) *http.Request {
		req := makeRequest(ctx, http.MethodPost, path, payload)
		req.Header.Add("Content-Type", "application/json")
		return req
	})
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		logErrorResponse(ctx, name, res, "")
		return oops.New(nil, "received error from Discord")
	}

	return nil
}

// Sends a followup message for an interaction that was previously deferred.
// Returns the created message so callers can track its ID.
func CreateFollowupMessage(ctx context.Context, interactionToken string, data InteractionCallbackData) (*Message, error) {
	const name = "Create Followup Message"

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, oops.New(err, "failed to marshal followup message")
	}

	path := fmt.Sprintf("/webhooks/%s/%s", config.Config.Discord.BotUserID, interactionToken)
	res, err := doWithRateLimiting(ctx, name, func(ctx context.Context) *http.Request {
		req := makeRequest(ctx, http.MethodPost, path, payload)
		req.Header.Add("Content-Type", "application/json")
		return req
	})
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		logErrorResponse(ctx, name, res, "")
		return nil, oops.New(nil, "received error from Discord")
	}

	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		panic(err)
	}

	var msg Message
	err = json.Unmarshal(bodyBytes, &msg)
	if err != nil {
		return nil, oops.New(err, "failed to unmarshal Discord message")
	}

	return &msg, nil
}

func logErrorResponse(ctx context.Context, name string, res *http.Response, msg string) {
	dump, err := httputil.DumpResponse(res, true)
	if err != nil {
		panic(err)
	}

	logging.ExtractLogger(ctx).Error().Str("name", name).Msg(msg)
	fmt.Println(string(dump))
}
