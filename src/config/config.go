package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Config ShelfmarkConfig

func init() {
	// A missing .env is fine; everything can come from the real environment.
	godotenv.Load()

	if err := env.Parse(&Config); err != nil {
		panic(fmt.Errorf("failed to read config from environment: %w", err))
	}
}

type ShelfmarkConfig struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Postgres    PostgresConfig
	Discord     DiscordConfig
	GoogleBooks GoogleBooksConfig
}

type PostgresConfig struct {
	User     string `env:"DB_USER" envDefault:"shelfmark"`
	Password string `env:"DB_PASS"`
	Hostname string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	DbName   string `env:"DB_NAME" envDefault:"shelfmark"`

	// tracelog.LogLevel, numerically. 3 is warn.
	LogLevel int   `env:"DB_LOG_LEVEL" envDefault:"3"`
	MinConn  int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	MaxConn  int32 `env:"DB_MAX_CONNS" envDefault:"10"`
}

func (info PostgresConfig) DSN() string {
	return fmt.Sprintf("user=%s password=%s host=%s port=%d dbname=%s", info.User, info.Password, info.Hostname, info.Port, info.DbName)
}

type DiscordConfig struct {
	BotToken string `env:"DISCORD_BOT_TOKEN"`

	// For bots of this vintage the application ID and the bot's user ID are
	// the same snowflake, so this serves both purposes.
	BotUserID string `env:"DISCORD_BOT_USER_ID"`

	GuildID string `env:"GUILD_ID"`

	// Users allowed to run setlogs/chat/listchat. Empty means everyone.
	AdminUserIDs []string `env:"ADMIN_USER_IDS" envSeparator:","`
}

type GoogleBooksConfig struct {
	BaseUrl string `env:"GOOGLE_BOOKS_BASE_URL" envDefault:"https://www.googleapis.com/books/v1"`
	APIKey  string `env:"GOOGLE_BOOKS_API_KEY"`
}
