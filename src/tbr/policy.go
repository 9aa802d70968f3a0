package tbr

import (
	"sort"
	"sync"
)

/*
The allow-list of channels where book commands may run, plus the
optional channel that receives error reports. Channels can only be added,
never revoked, and nothing here is persisted; a restart clears it all.

Interactions are handled on their own goroutines, so unlike the rest of the
bot's state this needs a lock.
*/
type ChannelPolicy struct {
	mu           sync.RWMutex
	channels     map[string]struct{}
	logChannelID string
}

func NewChannelPolicy() *ChannelPolicy {
	return &ChannelPolicy{
		channels: make(map[string]struct{}),
	}
}

func (p *ChannelPolicy) Allow(channelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels[channelID] = struct{}{}
}

func (p *ChannelPolicy) IsAllowed(channelID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.channels[channelID]
	return ok
}

// Returns the allow-listed channel IDs, sorted for stable rendering.
func (p *ChannelPolicy) Channels() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]string, 0, len(p.channels))
	for id := range p.channels {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

func (p *ChannelPolicy) SetLogChannel(channelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logChannelID = channelID
}

func (p *ChannelPolicy) LogChannel() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.logChannelID, p.logChannelID != ""
}
