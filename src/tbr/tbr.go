package tbr

import (
	"context"

	"github.com/shelfmark/tbrbot/src/db"
	"github.com/shelfmark/tbrbot/src/oops"
)

type Entry struct {
	UserID string `db:"user_id"`
	Title  string `db:"book_title"`
	Author string `db:"author"`
}

// Adds a book to a user's list, or overwrites the author if the user already
// has an entry with this title. Idempotent.
func Upsert(ctx context.Context, conn db.ConnOrTx, userID, title, author string) error {
	_, err := conn.Exec(ctx,
		`
		INSERT INTO tbr (user_id, book_title, author)
			VALUES ($1, $2, $3)
		ON CONFLICT (user_id, book_title) DO UPDATE
			SET author = EXCLUDED.author
		`,
		userID,
		title,
		author,
	)
	if err != nil {
		return oops.New(err, "failed to upsert tbr entry")
	}
	return nil
}

// Deletes the entry matching all three fields exactly. Removing an entry
// that doesn't exist is not an error.
func Remove(ctx context.Context, conn db.ConnOrTx, userID, title, author string) error {
	_, err := conn.Exec(ctx,
		`
		DELETE FROM tbr
		WHERE user_id = $1 AND book_title = $2 AND author = $3
		`,
		userID,
		title,
		author,
	)
	if err != nil {
		return oops.New(err, "failed to remove tbr entry")
	}
	return nil
}

// Returns all of a user's entries. A user with no entries gets an empty
// result, not an error. Ordered by title so embeds render deterministically.
func List(ctx context.Context, conn db.ConnOrTx, userID string) ([]Entry, error) {
	rows, err := db.Query[Entry](ctx, conn,
		`
		SELECT $columns
		FROM tbr
		WHERE user_id = $1
		ORDER BY book_title
		`,
		userID,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch tbr entries")
	}

	entries := make([]Entry, len(rows))
	for i, row := range rows {
		entries[i] = *row
	}
	return entries, nil
}
