package migrations

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shelfmark/tbrbot/src/migration/types"
)

func init() {
	registerMigration(AddDiscordSessionTable{})
}

type AddDiscordSessionTable struct{}

func (m AddDiscordSessionTable) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2026, 8, 20, 10, 15, 0, 0, time.UTC))
}

func (m AddDiscordSessionTable) Name() string {
	return "AddDiscordSessionTable"
}

func (m AddDiscordSessionTable) Description() string {
	return "Adds a table for persisting the Discord gateway session"
}

func (m AddDiscordSessionTable) Up(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
		CREATE TABLE discord_session (
			pk INT PRIMARY KEY DEFAULT 1 CHECK (pk = 1),
			session_id VARCHAR(255) NOT NULL,
			sequence_number INT NOT NULL
		);
	`)
	return err
}

func (m AddDiscordSessionTable) Down(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
		DROP TABLE discord_session;
	`)
	return err
}
