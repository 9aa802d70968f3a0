package tbr

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsert(t *testing.T) {
	t.Run("issues an on-conflict insert", func(t *testing.T) {
		conn := &fakeConn{}
		err := Upsert(context.Background(), conn, "user1", "Dune", "Frank Herbert")
		require.NoError(t, err)

		require.Len(t, conn.execs, 1)
		assert.Contains(t, conn.execs[0].sql, "INSERT INTO tbr")
		assert.Contains(t, conn.execs[0].sql, "ON CONFLICT (user_id, book_title) DO UPDATE")
		assert.Contains(t, conn.execs[0].sql, "SET author = EXCLUDED.author")
		assert.Equal(t, []any{"user1", "Dune", "Frank Herbert"}, conn.execs[0].args)
	})
	t.Run("repeated upserts issue identical statements", func(t *testing.T) {
		conn := &fakeConn{}
		require.NoError(t, Upsert(context.Background(), conn, "user1", "Dune", "Frank Herbert"))
		require.NoError(t, Upsert(context.Background(), conn, "user1", "Dune", "F. Herbert"))

		require.Len(t, conn.execs, 2)
		assert.Equal(t, conn.execs[0].sql, conn.execs[1].sql)
		assert.Equal(t, []any{"user1", "Dune", "F. Herbert"}, conn.execs[1].args)
	})
	t.Run("wraps database errors", func(t *testing.T) {
		conn := &fakeConn{execErr: errors.New("connection refused")}
		err := Upsert(context.Background(), conn, "user1", "Dune", "Frank Herbert")
		assert.Error(t, err)
	})
}

func TestRemove(t *testing.T) {
	t.Run("deletes by exact triple", func(t *testing.T) {
		conn := &fakeConn{}
		err := Remove(context.Background(), conn, "user1", "Dune", "Frank Herbert")
		require.NoError(t, err)

		require.Len(t, conn.execs, 1)
		assert.Contains(t, conn.execs[0].sql, "DELETE FROM tbr")
		assert.Equal(t, []any{"user1", "Dune", "Frank Herbert"}, conn.execs[0].args)
	})
	t.Run("removing a missing entry is not an error", func(t *testing.T) {
		// The fake always reports zero rows affected.
		conn := &fakeConn{}
		err := Remove(context.Background(), conn, "user1", "Nope", "Nobody")
		assert.NoError(t, err)
	})
}

func TestList(t *testing.T) {
	t.Run("returns the user's entries", func(t *testing.T) {
		conn := &fakeConn{
			queryRows: [][]any{
				{"user1", "Dune", "Frank Herbert"},
				{"user1", "Hyperion", "Dan Simmons"},
			},
		}
		entries, err := List(context.Background(), conn, "user1")
		require.NoError(t, err)
		assert.Equal(t, []Entry{
			{UserID: "user1", Title: "Dune", Author: "Frank Herbert"},
			{UserID: "user1", Title: "Hyperion", Author: "Dan Simmons"},
		}, entries)
	})
	t.Run("no entries is empty, not an error", func(t *testing.T) {
		conn := &fakeConn{}
		entries, err := List(context.Background(), conn, "user1")
		require.NoError(t, err)
		assert.Len(t, entries, 0)
	})
	t.Run("query errors are errors", func(t *testing.T) {
		conn := &fakeConn{queryErr: errors.New("connection refused")}
		_, err := List(context.Background(), conn, "user1")
		assert.Error(t, err)
	})
}

func TestChannelPolicy(t *testing.T) {
	t.Run("nothing is allowed by default", func(t *testing.T) {
		policy := NewChannelPolicy()
		assert.False(t, policy.IsAllowed("chan1"))
		assert.Len(t, policy.Channels(), 0)
	})
	t.Run("granting is permanent", func(t *testing.T) {
		policy := NewChannelPolicy()
		policy.Allow("chan1")
		assert.True(t, policy.IsAllowed("chan1"))
		assert.False(t, policy.IsAllowed("chan2"))

		policy.Allow("chan1") // granting twice changes nothing
		assert.True(t, policy.IsAllowed("chan1"))
	})
	t.Run("channels are sorted", func(t *testing.T) {
		policy := NewChannelPolicy()
		policy.Allow("b")
		policy.Allow("a")
		policy.Allow("c")
		assert.Equal(t, []string{"a", "b", "c"}, policy.Channels())
	})
	t.Run("log channel", func(t *testing.T) {
		policy := NewChannelPolicy()
		_, ok := policy.LogChannel()
		assert.False(t, ok)

		policy.SetLogChannel("logs")
		id, ok := policy.LogChannel()
		assert.True(t, ok)
		assert.Equal(t, "logs", id)
	})
}

// A ConnOrTx that records statements and plays back canned rows.
type fakeConn struct {
	execs     []fakeExec
	execErr   error
	queryRows [][]any
	queryErr  error
}

type fakeExec struct {
	sql  string
	args []any
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if c.execErr != nil {
		return pgconn.CommandTag{}, c.execErr
	}
	c.execs = append(c.execs, fakeExec{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 0"), nil
}

func (c *fakeConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if c.queryErr != nil {
		return nil, c.queryErr
	}
	return &fakeRows{rows: c.queryRows, idx: -1}, nil
}

func (c *fakeConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented in fake")
}

func (c *fakeConn) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("not implemented in fake")
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	return errors.New("not implemented in fake")
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.idx], nil
}
