package discord

import (
	"encoding/json"
)

type Opcode int

// https://discord.com/developers/docs/topics/opcodes-and-status-codes#gateway-gateway-opcodes
// Not iota because 5 is missing.
const (
	OpcodeDispatch            Opcode = 0
	OpcodeHeartbeat           Opcode = 1
	OpcodeIdentify            Opcode = 2
	OpcodePresenceUpdate      Opcode = 3
	OpcodeVoiceStateUpdate    Opcode = 4
	OpcodeResume              Opcode = 6
	OpcodeReconnect           Opcode = 7
	OpcodeRequestGuildMembers Opcode = 8
	OpcodeInvalidSession      Opcode = 9
	OpcodeHello               Opcode = 10
	OpcodeHeartbeatACK        Opcode = 11
)

type Intent int

// https://discord.com/developers/docs/topics/gateway#list-of-intents
const (
	IntentGuilds                 Intent = 1 << 0
	IntentGuildMembers           Intent = 1 << 1
	IntentGuildMessages          Intent = 1 << 9
	IntentGuildMessageReactions  Intent = 1 << 10
	IntentDirectMessages         Intent = 1 << 12
	IntentDirectMessageReactions Intent = 1 << 13
)

type GatewayMessage struct {
	Opcode         Opcode      `json:"op"`
	Data           interface{} `json:"d"`
	SequenceNumber *int        `json:"s,omitempty"`
	EventName      *string     `json:"t,omitempty"`
}

func (m *GatewayMessage) ToJSON() []byte {
	mBytes, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return mBytes
}

type Hello struct {
	HeartbeatIntervalMs int `json:"heartbeat_interval"`
}

func HelloFromMap(m interface{}) Hello {
	return Hello{
		HeartbeatIntervalMs: int(m.(map[string]interface{})["heartbeat_interval"].(float64)),
	}
}

type Identify struct {
	Token      string                       `json:"token"`
	Properties IdentifyConnectionProperties `json:"properties"`
	Intents    Intent                       `json:"intents"`
}

type IdentifyConnectionProperties struct {
	OS      string `json:"$os"`
	Browser string `json:"$browser"`
	Device  string `json:"$device"`
}

type Ready struct {
	GatewayVersion int    `json:"v"`
	User           User   `json:"user"`
	SessionID      string `json:"session_id"`
}

func ReadyFromMap(m interface{}) Ready {
	mmap := m.(map[string]interface{})

	return Ready{
		GatewayVersion: int(mmap["v"].(float64)),
		User:           UserFromMap(mmap["user"]),
		SessionID:      mmap["session_id"].(string),
	}
}

type Resume struct {
	Token          string `json:"token"`
	SessionID      string `json:"session_id"`
	SequenceNumber int    `json:"seq"`
}

// https://discord.com/developers/docs/resources/guild#guild-object
type Guild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// more fields not yet needed
}

func GuildFromMap(m interface{}) Guild {
	mmap := m.(map[string]interface{})

	return Guild{
		ID:   mmap["id"].(string),
		Name: maybeString(mmap, "name"),
	}
}

// https://discord.com/developers/docs/resources/channel#message-object
type Message struct {
	ID        string  `json:"id"`
	ChannelID string  `json:"channel_id"`
	GuildID   *string `json:"guild_id"`
	Content   string  `json:"content"`
	Author    User    `json:"author"` // note that this may not be an actual valid user (see the docs)
	Timestamp string  `json:"timestamp"`

	Embeds []Embed `json:"embeds"`
}

func MessageFromMap(m interface{}) Message {
	// Some gateway events do not contain the entire message body, so only
	// the most basic identifying information can be assumed to be present.
	mmap := m.(map[string]interface{})
	msg := Message{
		ID:        mmap["id"].(string),
		ChannelID: mmap["channel_id"].(string),
		GuildID:   maybeStringP(mmap, "guild_id"),
		Content:   maybeString(mmap, "content"),
		Timestamp: maybeString(mmap, "timestamp"),
	}

	if author, ok := mmap["author"]; ok {
		msg.Author = UserFromMap(author)
	}

	if iembeds, ok := mmap["embeds"]; ok {
		embeds := iembeds.([]interface{})
		for _, iembed := range embeds {
			msg.Embeds = append(msg.Embeds, EmbedFromMap(iembed))
		}
	}

	return msg
}

// https://discord.com/developers/docs/resources/user#user-object
type User struct {
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	Discriminator string  `json:"discriminator"`
	Avatar        *string `json:"avatar"`
	IsBot         bool    `json:"bot"`
}

func UserFromMap(m interface{}) User {
	mmap := m.(map[string]interface{})

	u := User{
		ID:            mmap["id"].(string),
		Username:      mmap["username"].(string),
		Discriminator: maybeString(mmap, "discriminator"),
	}

	if isBot, ok := mmap["bot"]; ok {
		u.IsBot = isBot.(bool)
	}

	return u
}

// https://discord.com/developers/docs/resources/guild#guild-member-object
type GuildMember struct {
	User *User   `json:"user"`
	Nick *string `json:"nick"`
	// more fields not yet handled here
}

func GuildMemberFromMap(m interface{}) GuildMember {
	mmap := m.(map[string]interface{})

	member := GuildMember{
		Nick: maybeStringP(mmap, "nick"),
	}
	if user, ok := mmap["user"]; ok {
		u := UserFromMap(user)
		member.User = &u
	}

	return member
}

// The display name for a member, preferring the guild nickname over the
// account username.
func (m *GuildMember) DisplayName() string {
	if m.Nick != nil && *m.Nick != "" {
		return *m.Nick
	}
	if m.User != nil {
		return m.User.Username
	}
	return ""
}

// https://discord.com/developers/docs/topics/gateway#message-reaction-add
type MessageReactionAdd struct {
	UserID    string       `json:"user_id"`
	ChannelID string       `json:"channel_id"`
	MessageID string       `json:"message_id"`
	GuildID   string       `json:"guild_id"`
	Member    *GuildMember `json:"member"`
	Emoji     Emoji        `json:"emoji"`
}

func MessageReactionAddFromMap(m interface{}) MessageReactionAdd {
	mmap := m.(map[string]interface{})

	reaction := MessageReactionAdd{
		UserID:    mmap["user_id"].(string),
		ChannelID: mmap["channel_id"].(string),
		MessageID: mmap["message_id"].(string),
		GuildID:   maybeString(mmap, "guild_id"),
	}
	if member, ok := mmap["member"]; ok {
		gm := GuildMemberFromMap(member)
		reaction.Member = &gm
	}
	if emoji, ok := mmap["emoji"]; ok {
		reaction.Emoji = EmojiFromMap(emoji)
	}

	return reaction
}

// https://discord.com/developers/docs/resources/emoji#emoji-object
type Emoji struct {
	ID   *string `json:"id"`
	Name string  `json:"name"` // the literal character for unicode emoji
}

func EmojiFromMap(m interface{}) Emoji {
	mmap := m.(map[string]interface{})

	return Emoji{
		ID:   maybeStringP(mmap, "id"),
		Name: maybeString(mmap, "name"),
	}
}

// https://discord.com/developers/docs/resources/channel#embed-object
// Pointer fields are omitted when marshaling so outgoing embeds only carry
// what we actually set.
type Embed struct {
	Title       *string         `json:"title,omitempty"`
	Type        *string         `json:"type,omitempty"`
	Description *string         `json:"description,omitempty"`
	Url         *string         `json:"url,omitempty"`
	Timestamp   *string         `json:"timestamp,omitempty"`
	Color       *int            `json:"color,omitempty"`
	Image       *EmbedImage     `json:"image,omitempty"`
	Thumbnail   *EmbedThumbnail `json:"thumbnail,omitempty"`
	Fields      []EmbedField    `json:"fields,omitempty"`
}

type EmbedImageish struct {
	Url      *string `json:"url,omitempty"`
	ProxyUrl *string `json:"proxy_url,omitempty"`
	Height   *int    `json:"height,omitempty"`
	Width    *int    `json:"width,omitempty"`
}

type EmbedImage struct {
	EmbedImageish
}

type EmbedThumbnail struct {
	EmbedImageish
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline *bool  `json:"inline,omitempty"`
}

func EmbedFromMap(m interface{}) Embed {
	mmap := m.(map[string]interface{})

	e := Embed{
		Title:       maybeStringP(mmap, "title"),
		Type:        maybeStringP(mmap, "type"),
		Description: maybeStringP(mmap, "description"),
		Url:         maybeStringP(mmap, "url"),
		Timestamp:   maybeStringP(mmap, "timestamp"),
		Color:       maybeIntP(mmap, "color"),
		Image:       EmbedImageFromMap(mmap, "image"),
		Thumbnail:   EmbedThumbnailFromMap(mmap, "thumbnail"),
		Fields:      EmbedFieldsFromMap(mmap, "fields"),
	}

	return e
}

func EmbedImageFromMap(m map[string]interface{}, k string) *EmbedImage {
	val, ok := m[k]
	if !ok {
		return nil
	}
	valMap, ok := val.(map[string]interface{})
	if !ok {
		return nil
	}

	return &EmbedImage{
		EmbedImageish: EmbedImageish{
			Url:      maybeStringP(valMap, "url"),
			ProxyUrl: maybeStringP(valMap, "proxy_url"),
			Height:   maybeIntP(valMap, "height"),
			Width:    maybeIntP(valMap, "width"),
		},
	}
}

func EmbedThumbnailFromMap(m map[string]interface{}, k string) *EmbedThumbnail {
	val, ok := m[k]
	if !ok {
		return nil
	}
	valMap, ok := val.(map[string]interface{})
	if !ok {
		return nil
	}

	return &EmbedThumbnail{
		EmbedImageish: EmbedImageish{
			Url:      maybeStringP(valMap, "url"),
			ProxyUrl: maybeStringP(valMap, "proxy_url"),
			Height:   maybeIntP(valMap, "height"),
			Width:    maybeIntP(valMap, "width"),
		},
	}
}

func EmbedFieldsFromMap(m map[string]interface{}, k string) []EmbedField {
	val, ok := m[k]
	if !ok {
		return nil
	}
	valSlice, ok := val.([]interface{})
	if !ok {
		return nil
	}

	var result []EmbedField
	for _, innerVal := range valSlice {
		valMap, ok := innerVal.(map[string]interface{})
		if !ok {
			continue
		}

		result = append(result, EmbedField{
			Name:   maybeString(valMap, "name"),
			Value:  maybeString(valMap, "value"),
			Inline: maybeBoolP(valMap, "inline"),
		})
	}

	return result
}

type InteractionType int

// https://discord.com/developers/docs/interactions/receiving-and-responding#interaction-object-interaction-type
const (
	InteractionTypePing               InteractionType = 1
	InteractionTypeApplicationCommand InteractionType = 2
)

// https://discord.com/developers/docs/interactions/receiving-and-responding#interaction-object
type Interaction struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"application_id"`
	Type          InteractionType `json:"type"`
	Data          InteractionData `json:"data"`
	GuildID       string          `json:"guild_id"`
	ChannelID     string          `json:"channel_id"`
	Member        *GuildMember    `json:"member"`
	User          *User           `json:"user"`
	Token         string          `json:"token"`
}

type InteractionData struct {
	ID       string                                    `json:"id"`
	Name     string                                    `json:"name"`
	Options  []ApplicationCommandInteractionDataOption `json:"options"`
	Resolved ResolvedData                              `json:"resolved"`
	TargetID string                                    `json:"target_id"`
}

type ApplicationCommandInteractionDataOption struct {
	Name  string                       `json:"name"`
	Type  ApplicationCommandOptionType `json:"type"`
	Value interface{}                  `json:"value"`
}

type ResolvedData struct {
	Users   map[string]User        `json:"users"`
	Members map[string]GuildMember `json:"members"`
}

func InteractionFromMap(m interface{}) *Interaction {
	mmap := m.(map[string]interface{})

	i := Interaction{
		ID:            mmap["id"].(string),
		ApplicationID: mmap["application_id"].(string),
		Type:          InteractionType(maybeInt(mmap, "type")),
		GuildID:       maybeString(mmap, "guild_id"),
		ChannelID:     maybeString(mmap, "channel_id"),
		Token:         mmap["token"].(string),
	}

	if member, ok := mmap["member"]; ok {
		gm := GuildMemberFromMap(member)
		i.Member = &gm
	}
	if user, ok := mmap["user"]; ok {
		u := UserFromMap(user)
		i.User = &u
	}
	if data, ok := mmap["data"]; ok {
		i.Data = InteractionDataFromMap(data)
	}

	return &i
}

func InteractionDataFromMap(m interface{}) InteractionData {
	mmap := m.(map[string]interface{})

	data := InteractionData{
		ID:       maybeString(mmap, "id"),
		Name:     maybeString(mmap, "name"),
		TargetID: maybeString(mmap, "target_id"),
	}

	if ioptions, ok := mmap["options"]; ok {
		for _, ioption := range ioptions.([]interface{}) {
			omap := ioption.(map[string]interface{})
			data.Options = append(data.Options, ApplicationCommandInteractionDataOption{
				Name:  omap["name"].(string),
				Type:  ApplicationCommandOptionType(maybeInt(omap, "type")),
				Value: omap["value"],
			})
		}
	}

	if iresolved, ok := mmap["resolved"]; ok {
		rmap := iresolved.(map[string]interface{})
		data.Resolved = ResolvedData{
			Users:   make(map[string]User),
			Members: make(map[string]GuildMember),
		}
		if iusers, ok := rmap["users"]; ok {
			for id, iuser := range iusers.(map[string]interface{}) {
				data.Resolved.Users[id] = UserFromMap(iuser)
			}
		}
		if imembers, ok := rmap["members"]; ok {
			for id, imember := range imembers.(map[string]interface{}) {
				member := GuildMemberFromMap(imember)
				// Resolved members do not repeat the user object; graft it
				// back on from the resolved users.
				if member.User == nil {
					if user, ok := data.Resolved.Users[id]; ok {
						member.User = &user
					}
				}
				data.Resolved.Members[id] = member
			}
		}
	}

	return data
}

type ApplicationCommandType int

// https://discord.com/developers/docs/interactions/application-commands#application-command-object-application-command-types
const (
	ApplicationCommandTypeChatInput ApplicationCommandType = 1
	ApplicationCommandTypeUser      ApplicationCommandType = 2
	ApplicationCommandTypeMessage   ApplicationCommandType = 3
)

type ApplicationCommandOptionType int

// https://discord.com/developers/docs/interactions/application-commands#application-command-object-application-command-option-type
const (
	ApplicationCommandOptionTypeSubCommand      ApplicationCommandOptionType = 1
	ApplicationCommandOptionTypeSubCommandGroup ApplicationCommandOptionType = 2
	ApplicationCommandOptionTypeString          ApplicationCommandOptionType = 3
	ApplicationCommandOptionTypeInteger         ApplicationCommandOptionType = 4
	ApplicationCommandOptionTypeBoolean         ApplicationCommandOptionType = 5
	ApplicationCommandOptionTypeUser            ApplicationCommandOptionType = 6
	ApplicationCommandOptionTypeChannel         ApplicationCommandOptionType = 7
)

type ApplicationCommandOption struct {
	Type        ApplicationCommandOptionType `json:"type"`
	Name        string                       `json:"name"`
	Description string                       `json:"description"`
	Required    bool                         `json:"required"`
}

type CreateGuildApplicationCommandRequest struct {
	Type        ApplicationCommandType     `json:"type,omitempty"`
	Name        string                     `json:"name"`
	Description string                     `json:"description,omitempty"`
	Options     []ApplicationCommandOption `json:"options,omitempty"`
}

type InteractionCallbackType int

// https://discord.com/developers/docs/interactions/receiving-and-responding#interaction-response-object-interaction-callback-type
const (
	InteractionCallbackTypePong                             InteractionCallbackType = 1
	InteractionCallbackTypeChannelMessageWithSource         InteractionCallbackType = 4
	InteractionCallbackTypeDeferredChannelMessageWithSource InteractionCallbackType = 5
)

const FlagEphemeral = 1 << 6

type InteractionResponse struct {
	Type InteractionCallbackType  `json:"type"`
	Data *InteractionCallbackData `json:"data,omitempty"`
}

type InteractionCallbackData struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
	Flags   int     `json:"flags,omitempty"`
}

func maybeString(m map[string]interface{}, k string) string {
	val, ok := m[k]
	if !ok || val == nil {
		return ""
	}
	return val.(string)
}

func maybeStringP(m map[string]interface{}, k string) *string {
	val, ok := m[k]
	if !ok || val == nil {
		return nil
	}
	strval := val.(string)
	return &strval
}

func maybeInt(m map[string]interface{}, k string) int {
	val, ok := m[k]
	if !ok || val == nil {
		return 0
	}
	return int(val.(float64))
}

func maybeIntP(m map[string]interface{}, k string) *int {
	val, ok := m[k]
	if !ok || val == nil {
		return nil
	}
	intval := int(val.(float64))
	return &intval
}

func maybeBoolP(m map[string]interface{}, k string) *bool {
	val, ok := m[k]
	if !ok || val == nil {
		return nil
	}
	boolval := val.(bool)
	return &boolval
}
