package discord

import (
	"sync"
	"testing"

	"github.com/shelfmark/tbrbot/src/tbr"
	"github.com/stretchr/testify/assert"
)

func TestHeartbeatAckFlag(t *testing.T) {
	bot := newBotInstance(nil, tbr.NewChannelPolicy(), newLookupCache(4))

	// A fresh instance must be allowed to send its first heartbeat.
	assert.True(t, bot.didAckHeartbeat.Load())

	// The sender goroutine and the receive loop hit this flag from
	// different goroutines.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bot.didAckHeartbeat.Store(false)
				bot.didAckHeartbeat.Load()
				bot.didAckHeartbeat.Store(true)
			}
		}()
	}
	wg.Wait()

	assert.True(t, bot.didAckHeartbeat.Load())
}
