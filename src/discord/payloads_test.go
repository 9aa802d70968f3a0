package discord

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageFromMap(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		var m interface{}
		assert.Nil(t, json.Unmarshal([]byte(testMessageCreate), &m))

		message := MessageFromMap(m)
		assert.Equal(t, "has anyone read dune?", message.Content)
		assert.Equal(t, "readerperson", message.Author.Username)
	})
	t.Run("with embed", func(t *testing.T) {
		var m interface{}
		assert.Nil(t, json.Unmarshal([]byte(testMessageWithEmbed), &m))

		message := MessageFromMap(m)
		assert.Len(t, message.Embeds, 1)
		assert.Equal(t, "Dune by Frank Herbert", *message.Embeds[0].Title)
		assert.Len(t, message.Embeds[0].Fields, 2)
		assert.Equal(t, "Publisher", message.Embeds[0].Fields[0].Name)
	})
}

func TestInteractionFromMap(t *testing.T) {
	t.Run("book command", func(t *testing.T) {
		var m interface{}
		assert.Nil(t, json.Unmarshal([]byte(testInteractionCreate_Book), &m))

		i := InteractionFromMap(m)
		assert.Equal(t, "745036422834028565", i.ApplicationID)
		assert.Equal(t, "book", i.Data.Name)
		assert.Equal(t, "605598627141910556", i.ChannelID)
		assert.Equal(t, "Dune", mustGetInteractionOption(i.Data.Options, "title").Value)
		assert.Equal(t, "Frank Herbert", getStringOption(i.Data.Options, "author"))
		assert.Equal(t, "", getStringOption(i.Data.Options, "publisher"))
		assert.Equal(t, "132715550571888640", interactionUser(i).ID)
	})
	t.Run("tbr command with resolved user", func(t *testing.T) {
		var m interface{}
		assert.Nil(t, json.Unmarshal([]byte(testInteractionCreate_Tbr), &m))

		i := InteractionFromMap(m)
		assert.Equal(t, "tbr", i.Data.Name)

		userID := i.Data.Options[0].Value.(string)
		assert.Equal(t, "98765432109876543", userID)
		assert.Equal(t, "98765432109876543", i.Data.Resolved.Users[userID].ID)
		// resolved members don't repeat the user; it gets grafted back on
		assert.NotNil(t, i.Data.Resolved.Members[userID].User)
		assert.Equal(t, "98765432109876543", i.Data.Resolved.Members[userID].User.ID)
		assert.Equal(t, "BookClubFriend", resolvedDisplayName(i, userID))
	})
}

func TestMessageReactionAddFromMap(t *testing.T) {
	var m interface{}
	assert.Nil(t, json.Unmarshal([]byte(testMessageReactionAdd), &m))

	reaction := MessageReactionAddFromMap(m)
	assert.Equal(t, "132715550571888640", reaction.UserID)
	assert.Equal(t, "605598627141910556", reaction.ChannelID)
	assert.Equal(t, "891865665160507442", reaction.MessageID)
	assert.Equal(t, "✅", reaction.Emoji.Name)
	assert.Nil(t, reaction.Emoji.ID)
	assert.NotNil(t, reaction.Member)
	assert.Equal(t, "readerperson", reaction.Member.User.Username)
}

func TestGuildMemberDisplayName(t *testing.T) {
	nick := "The Nick"
	user := User{ID: "1", Username: "username"}

	t.Run("nick wins", func(t *testing.T) {
		m := GuildMember{User: &user, Nick: &nick}
		assert.Equal(t, "The Nick", m.DisplayName())
	})
	t.Run("falls back to username", func(t *testing.T) {
		m := GuildMember{User: &user}
		assert.Equal(t, "username", m.DisplayName())
	})
}

const testMessageCreate = `{
	"attachments": [],
	"author": {
		"avatar": "1963eacbf364164efce1c597dc66aeab",
		"discriminator": "3719",
		"id": "132715550571888640",
		"public_flags": 0,
		"username": "readerperson"
	},
	"channel_id": "605598627141910556",
	"components": [],
	"content": "has anyone read dune?",
	"edited_timestamp": null,
	"embeds": [],
	"flags": 0,
	"guild_id": "164936220651028480",
	"id": "891865665160507442",
	"mention_everyone": false,
	"mention_roles": [],
	"mentions": [],
	"pinned": false,
	"referenced_message": null,
	"timestamp": "2021-09-27T01:55:44.637000+00:00",
	"tts": false,
	"type": 0
}`

const testMessageWithEmbed = `{
	"author": {
		"avatar": null,
		"discriminator": "0000",
		"id": "745036422834028565",
		"bot": true,
		"username": "Shelfmark"
	},
	"channel_id": "605598627141910556",
	"content": "",
	"embeds": [
		{
			"title": "Dune by Frank Herbert",
			"description": "A desert planet.",
			"fields": [
				{"name": "Publisher", "value": "Ace", "inline": true},
				{"name": "ISBN", "value": "ISBN_13: 9780441172719", "inline": true}
			],
			"thumbnail": {
				"height": 192,
				"url": "http://books.google.com/books/content?id=B1hSG45JCX4C",
				"width": 128
			},
			"type": "rich"
		}
	],
	"guild_id": "164936220651028480",
	"id": "891887149723566092",
	"timestamp": "2021-09-27T03:21:06.956000+00:00",
	"type": 0
}`

const testInteractionCreate_Book = `{
	"application_id": "745036422834028565",
	"channel_id": "605598627141910556",
	"data": {
		"id": "891773437335462049",
		"name": "book",
		"options": [
			{
				"name": "title",
				"type": 3,
				"value": "Dune"
			},
			{
				"name": "author",
				"type": 3,
				"value": "Frank Herbert"
			}
		],
		"type": 1
	},
	"guild_id": "164936220651028480",
	"id": "891863243960750120",
	"member": {
		"avatar": null,
		"deaf": false,
		"is_pending": false,
		"joined_at": "2016-03-31T03:17:39.375000+00:00",
		"mute": false,
		"nick": null,
		"pending": false,
		"permissions": "1099511627775",
		"premium_since": null,
		"roles": [],
		"user": {
			"avatar": "1963eacbf364164efce1c597dc66aeab",
			"discriminator": "3719",
			"id": "132715550571888640",
			"public_flags": 0,
			"username": "readerperson"
		}
	},
	"token": "<redacted>",
	"type": 2,
	"version": 1
}`

const testInteractionCreate_Tbr = `{
	"application_id": "745036422834028565",
	"channel_id": "605598627141910556",
	"data": {
		"id": "891773437335462050",
		"name": "tbr",
		"options": [
			{
				"name": "user",
				"type": 6,
				"value": "98765432109876543"
			}
		],
		"resolved": {
			"members": {
				"98765432109876543": {
					"avatar": null,
					"is_pending": false,
					"joined_at": "2016-03-31T03:17:39.375000+00:00",
					"nick": "BookClubFriend",
					"pending": false,
					"permissions": "1099511627775",
					"premium_since": null,
					"roles": []
				}
			},
			"users": {
				"98765432109876543": {
					"avatar": null,
					"discriminator": "1234",
					"id": "98765432109876543",
					"public_flags": 0,
					"username": "friendo"
				}
			}
		},
		"type": 1
	},
	"guild_id": "164936220651028480",
	"id": "891863243960750121",
	"member": {
		"avatar": null,
		"deaf": false,
		"is_pending": false,
		"joined_at": "2016-03-31T03:17:39.375000+00:00",
		"mute": false,
		"nick": null,
		"pending": false,
		"permissions": "1099511627775",
		"premium_since": null,
		"roles": [],
		"user": {
			"avatar": "1963eacbf364164efce1c597dc66aeab",
			"discriminator": "3719",
			"id": "132715550571888640",
			"public_flags": 0,
			"username": "readerperson"
		}
	},
	"token": "<redacted>",
	"type": 2,
	"version": 1
}`

const testMessageReactionAdd = `{
	"channel_id": "605598627141910556",
	"emoji": {
		"id": null,
		"name": "✅"
	},
	"guild_id": "164936220651028480",
	"member": {
		"avatar": null,
		"deaf": false,
		"is_pending": false,
		"joined_at": "2016-03-31T03:17:39.375000+00:00",
		"mute": false,
		"nick": null,
		"pending": false,
		"premium_since": null,
		"roles": [],
		"user": {
			"avatar": "1963eacbf364164efce1c597dc66aeab",
			"discriminator": "3719",
			"id": "132715550571888640",
			"public_flags": 0,
			"username": "readerperson"
		}
	},
	"message_id": "891865665160507442",
	"user_id": "132715550571888640"
}`
