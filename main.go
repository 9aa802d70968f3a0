package main

import (
	"github.com/shelfmark/tbrbot/src/bot"
	_ "github.com/shelfmark/tbrbot/src/migration"
)

func main() {
	bot.BotCommand.Execute()
}
