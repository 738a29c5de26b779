package executor

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Godswilldev/nest-dynamic-gql-qb/query/builder"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range []string{
		`CREATE TABLE profiles (id INTEGER PRIMARY KEY, bio TEXT)`,
		`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL, profile_id INTEGER REFERENCES profiles(id))`,
		`INSERT INTO profiles (id, bio) VALUES (10, 'hi')`,
		`INSERT INTO users (id, email, profile_id) VALUES (1, 'x@y', 10), (2, 'z@w', NULL)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return db
}

func userQuery() *builder.Select {
	s := builder.NewSelect("users", "root")
	s.AddSelect(builder.Column{Alias: "root", Name: "id"}, "root_id")
	s.AddSelect(builder.Column{Alias: "root", Name: "email"}, "root_email")
	s.LeftJoin(builder.Join{
		Relation: "root.profile",
		Table:    "profiles",
		Alias:    "a0",
		On: []builder.JoinCondition{{
			Left:  builder.Column{Alias: "a0", Name: "id"},
			Right: builder.Column{Alias: "root", Name: "profile_id"},
		}},
	})
	s.AddSelect(builder.Column{Alias: "a0", Name: "bio"}, "a0_bio")
	s.OrderBy(builder.Column{Alias: "root", Name: "id"}, builder.Asc)
	return s
}

func TestFetchRows(t *testing.T) {
	ctx := context.Background()
	e := NewExecutor(openTestDB(t), builder.SQLite)
	t.Cleanup(func() { e.Close() })

	t.Run("flat rows keyed by output alias", func(t *testing.T) {
		rows, err := e.FetchRows(ctx, userQuery())
		require.NoError(t, err)
		assert.Equal(t, []map[string]any{
			{"root_id": int64(1), "root_email": "x@y", "a0_bio": "hi"},
			{"root_id": int64(2), "root_email": "z@w", "a0_bio": nil},
		}, rows)
	})

	t.Run("conditions bind their values", func(t *testing.T) {
		q := userQuery()
		q.Where(builder.True)
		q.AndWhere(builder.NewClause(builder.Column{Alias: "a0", Name: "bio"}, "where_0", nil))

		rows, err := e.FetchRows(ctx, q)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, int64(2), rows[0]["root_id"])
	})

	t.Run("no match yields an empty slice", func(t *testing.T) {
		q := userQuery()
		q.Where(builder.Equals{{Column: builder.Column{Alias: "root", Name: "email"}, Value: "nobody"}})

		rows, err := e.FetchRows(ctx, q)
		require.NoError(t, err)
		assert.NotNil(t, rows)
		assert.Empty(t, rows)
	})

	t.Run("statements are cached", func(t *testing.T) {
		_, err := e.FetchRows(ctx, userQuery())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, e.CachedStatements(), 1)

		require.NoError(t, e.Close())
		assert.Zero(t, e.CachedStatements())
	})

	t.Run("render errors are returned", func(t *testing.T) {
		_, err := e.FetchRows(ctx, builder.NewSelect("users", "root"))
		assert.ErrorIs(t, err, builder.ErrNoColumns)
	})
}

// recordingQuerier keeps every statement it prepares.
type recordingQuerier struct {
	db       *sql.DB
	prepared []*sql.Stmt
}

func (r *recordingQuerier) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	stmt, err := r.db.PrepareContext(ctx, query)
	if err == nil {
		r.prepared = append(r.prepared, stmt)
	}
	return stmt, err
}

func emailQuery(email string) *builder.Select {
	q := userQuery()
	q.Where(builder.Equals{{Column: builder.Column{Alias: "root", Name: "email"}, Value: email}})
	return q
}

func usable(ctx context.Context, stmt *sql.Stmt, args ...any) bool {
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return false
	}
	rows.Close()
	return true
}

func TestStatementCacheEviction(t *testing.T) {
	ctx := context.Background()

	t.Run("evicted statements are closed", func(t *testing.T) {
		db := &recordingQuerier{db: openTestDB(t)}
		e := NewExecutor(db, builder.SQLite, WithStatementCacheSize(1))

		_, err := e.FetchRows(ctx, userQuery())
		require.NoError(t, err)
		_, err = e.FetchRows(ctx, emailQuery("x@y"))
		require.NoError(t, err)

		require.Len(t, db.prepared, 2)
		assert.Equal(t, 1, e.CachedStatements())
		assert.False(t, usable(ctx, db.prepared[0]))
		assert.True(t, usable(ctx, db.prepared[1], "x@y"))

		// Same SQL text reuses the cached statement.
		_, err = e.FetchRows(ctx, emailQuery("z@w"))
		require.NoError(t, err)
		assert.Len(t, db.prepared, 2)

		require.NoError(t, e.Close())
		assert.False(t, usable(ctx, db.prepared[1], "x@y"))
	})

	t.Run("statements in use are closed on release", func(t *testing.T) {
		db := &recordingQuerier{db: openTestDB(t)}
		e := NewExecutor(db, builder.SQLite, WithStatementCacheSize(1))

		query, _, err := userQuery().ToSQL(builder.SQLite)
		require.NoError(t, err)
		held, err := e.acquire(ctx, query)
		require.NoError(t, err)

		_, err = e.FetchRows(ctx, emailQuery("x@y"))
		require.NoError(t, err)
		assert.True(t, usable(ctx, held.stmt))

		e.release(held)
		assert.False(t, usable(ctx, held.stmt))
	})
}

func TestMiddleware(t *testing.T) {
	ctx := context.Background()
	e := NewExecutor(openTestDB(t), builder.SQLite)
	t.Cleanup(func() { e.Close() })

	var order []string
	var timed time.Duration
	var failed []string
	var rows int
	var buf bytes.Buffer

	e.Use(
		func(ctx context.Context, event *QueryEvent, next func() error) error {
			order = append(order, "outer:before")
			err := next()
			order = append(order, "outer:after")
			rows = event.Rows
			return err
		},
		func(ctx context.Context, event *QueryEvent, next func() error) error {
			order = append(order, "inner")
			return next()
		},
		LoggingMiddleware(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))),
		TimingMiddleware(func(query string, d time.Duration) { timed = d }),
		ErrorMiddleware(func(query string, err error) { failed = append(failed, query) }),
	)

	_, err := e.FetchRows(ctx, userQuery())
	require.NoError(t, err)
	assert.Equal(t, []string{"outer:before", "inner", "outer:after"}, order)
	assert.Equal(t, 2, rows)
	assert.Greater(t, timed, time.Duration(0))
	assert.Empty(t, failed)
	assert.Contains(t, buf.String(), "query completed")

	bad := builder.NewSelect("missing_table", "root")
	bad.AddSelect(builder.Column{Alias: "root", Name: "id"}, "root_id")
	_, err = e.FetchRows(ctx, bad)
	require.Error(t, err)
	assert.Len(t, failed, 1)
	assert.Contains(t, buf.String(), "query failed")
}
