/*
This package contains lowish-level APIs for making queries to our Postgres
database. It streamlines the process of mapping query results to Go types,
while allowing you to write arbitrary SQL queries.

The primary functions are Query and QueryIterator.

# Query syntax

Arguments can be provided using placeholders like $1, $2, etc. All arguments
will be safely escaped and mapped from their Go type to the correct Postgres
type. (This is a direct proxy to pgx.)

When querying individual fields, you can simply select the field:

	titles, err := db.QueryScalar[string](ctx, conn, `SELECT book_title FROM tbr`)

To query multiple columns at once, you may use a struct type with
`db:"column_name"` tags, and the special $columns placeholder:

	type Entry struct {
		UserID string `db:"user_id"`
		Title  string `db:"book_title"`
		Author string `db:"author"`
	}
	entries, err := db.Query[Entry](ctx, conn, `SELECT $columns FROM tbr`)
	// Resulting query:
	// SELECT user_id, book_title, author FROM tbr

Sometimes a table name prefix is required on each column to disambiguate
between column names, especially when performing a JOIN. In those situations,
you can include the prefix in the $columns placeholder like $columns{prefix}.
*/
package db
