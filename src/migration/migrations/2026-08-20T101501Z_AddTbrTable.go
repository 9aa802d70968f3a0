package migrations

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shelfmark/tbrbot/src/migration/types"
)

func init() {
	registerMigration(AddTbrTable{})
}

type AddTbrTable struct{}

func (m AddTbrTable) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2026, 8, 20, 10, 15, 1, 0, time.UTC))
}

func (m AddTbrTable) Name() string {
	return "AddTbrTable"
}

func (m AddTbrTable) Description() string {
	return "Adds the to-be-read list table"
}

func (m AddTbrTable) Up(ctx context.Context, tx pgx.Tx) error {
	// One entry per (user, title); upserts overwrite the author.
	_, err := tx.Exec(ctx, `
		CREATE TABLE tbr (
			user_id VARCHAR(64) NOT NULL,
			book_title TEXT NOT NULL,
			author TEXT NOT NULL,
			PRIMARY KEY (user_id, book_title)
		);
	`)
	return err
}

func (m AddTbrTable) Down(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
		DROP TABLE tbr;
	`)
	return err
}
