package discord

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shelfmark/tbrbot/src/tbr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Stands in for the Discord API, recording every request so tests can
// assert on what the bot sent (or that it sent nothing).
type discordRecorder struct {
	mu       sync.Mutex
	requests []string
}

func (rec *discordRecorder) record(r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.requests = append(rec.requests, r.URL.Path+" "+string(body))
}

func (rec *discordRecorder) all() []string {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]string{}, rec.requests...)
}

func stubDiscordAPI(t *testing.T) *discordRecorder {
	rec := &discordRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "1", "channel_id": "logchan"}`))
	}))
	t.Cleanup(srv.Close)

	oldBaseUrl := BaseUrl
	BaseUrl = srv.URL
	t.Cleanup(func() { BaseUrl = oldBaseUrl })

	return rec
}

func TestInteractionPanicsAreReported(t *testing.T) {
	rec := stubDiscordAPI(t)

	policy := tbr.NewChannelPolicy()
	policy.Allow("chan1")
	policy.SetLogChannel("logchan")
	bot := newBotInstance(nil, policy, newLookupCache(4))

	// A book command missing its required title option makes the handler
	// panic partway through.
	i := &Interaction{
		ID:        "interaction1",
		Type:      InteractionTypeApplicationCommand,
		Data:      InteractionData{Name: SlashCommandBook},
		ChannelID: "chan1",
		Token:     "token1",
		Member:    &GuildMember{User: &User{ID: "user1"}},
	}

	assert.NotPanics(t, func() {
		bot.doInteraction(context.Background(), i)
	})

	requests := rec.all()
	require.Len(t, requests, 1)
	assert.Contains(t, requests[0], "/channels/logchan/messages")
	assert.Contains(t, requests[0], "panic when handling Discord interaction")
}
