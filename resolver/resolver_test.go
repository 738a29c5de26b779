package resolver

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Godswilldev/nest-dynamic-gql-qb/query/builder"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/compiler"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/executor"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/selection"
	"github.com/Godswilldev/nest-dynamic-gql-qb/registry"
	"github.com/Godswilldev/nest-dynamic-gql-qb/schema"
	"github.com/Godswilldev/nest-dynamic-gql-qb/telemetry"
)

const testSchema = `
model User {
  id        Int      @id
  email     String
  nick      String   @map("nick_name")
  role      String
  profileId Int?     @map("profile_id")
  profile   Profile? @relation(fields: [profileId], references: [id])
  posts     Post[]

  @@map("users")
}

model Profile {
  id        Int      @id
  bio       String?
  countryId Int?     @map("country_id")
  country   Country? @relation(fields: [countryId], references: [id])
  users     User[]

  @@map("profiles")
}

model Country {
  id       Int       @id
  name     String
  profiles Profile[]

  @@map("countries")
}

model Post {
  id       Int    @id
  title    String
  authorId Int    @map("author_id")
  author   User   @relation(fields: [authorId], references: [id])

  @@map("posts")
}
`

type fixture struct {
	catalog  *schema.Catalog
	registry *registry.Registry
	executor *executor.Executor
}

func setup(t *testing.T) fixture {
	t.Helper()

	catalog, err := schema.ParseString("test.schema", testSchema)
	require.NoError(t, err)

	b := registry.NewBuilder()
	require.NoError(t, b.AutoRegister(catalog, registry.Options{
		FieldMap: map[string]map[string]string{"UserObject": {"nickname": "nick"}},
	}))

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range []string{
		`CREATE TABLE countries (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE profiles (id INTEGER PRIMARY KEY, bio TEXT, country_id INTEGER REFERENCES countries(id))`,
		`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL, nick_name TEXT NOT NULL, role TEXT NOT NULL, profile_id INTEGER REFERENCES profiles(id))`,
		`CREATE TABLE posts (id INTEGER PRIMARY KEY, title TEXT NOT NULL, author_id INTEGER NOT NULL REFERENCES users(id))`,
		`INSERT INTO countries VALUES (100, 'NL')`,
		`INSERT INTO profiles VALUES (10, 'hi', 100), (11, NULL, NULL)`,
		`INSERT INTO users VALUES (1, 'a@x', 'ann', 'admin', 10), (2, 'b@x', 'bob', 'member', NULL), (3, 'c@x', 'cat', 'admin', 11)`,
		`INSERT INTO posts VALUES (1, 'first', 1), (2, 'second', 1)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}

	e := executor.NewExecutor(db, builder.SQLite)
	t.Cleanup(func() { e.Close() })

	return fixture{catalog: catalog, registry: b.Build(), executor: e}
}

func ptr(n uint64) *uint64 { return &n }

func byID() []Order {
	return []Order{{Property: "id", Direction: builder.Asc}}
}

func TestResolveEntity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("nested singular relations from a GraphQL request", func(t *testing.T) {
		svc := New(f.catalog, f.registry, WithFetcher(f.executor))
		got, err := svc.ResolveEntity(ctx, Params{
			Entity: "User",
			Request: selection.Request{
				Query: `query { users { email profile { bio country { name } } } }`,
			},
			Order: byID(),
		})
		require.NoError(t, err)

		want := []map[string]any{
			{"id": int64(1), "email": "a@x", "profile": map[string]any{"bio": "hi", "country": map[string]any{"name": "NL"}}},
			{"id": int64(2), "email": "b@x"},
			{"id": int64(3), "email": "c@x"},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("ResolveEntity mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("filter on a root column and an unselected relation", func(t *testing.T) {
		svc := New(f.catalog, f.registry, WithFetcher(f.executor))
		got, err := svc.ResolveEntity(ctx, Params{
			Entity:    "User",
			Selection: selection.Leaf("email"),
			Args: map[string]any{
				"where": map[string]any{"role": "admin", "profile": map[string]any{"bio": "hi"}},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []map[string]any{{"id": int64(1), "email": "a@x"}}, got)
	})

	t.Run("custom where builder and null relation filter", func(t *testing.T) {
		svc := New(f.catalog, f.registry, WithFetcher(f.executor))
		got, err := svc.ResolveEntity(ctx, Params{
			Entity:    "User",
			Selection: selection.Leaf("email"),
			Args:      map[string]any{"onlyBlankProfiles": true},
			Where: func(args map[string]any) compiler.Filter {
				if args["onlyBlankProfiles"] == true {
					return compiler.Filter{"profile": map[string]any{"bio": nil}, "role": []any{"admin", "member"}}
				}
				return nil
			},
			Order: byID(),
		})
		require.NoError(t, err)
		// A LEFT JOIN leaves bio NULL both for a blank profile and for no profile.
		assert.Equal(t, []map[string]any{
			{"id": int64(2), "email": "b@x"},
			{"id": int64(3), "email": "c@x"},
		}, got)
	})

	t.Run("collections are not joined and rows are not inflated", func(t *testing.T) {
		stats := telemetry.NewCollector()
		svc := New(f.catalog, f.registry, WithFetcher(f.executor), WithTelemetry(stats))
		got, err := svc.ResolveEntity(ctx, Params{
			Entity:  "User",
			Request: selection.Request{Query: `{ users { email posts { title } } }`},
			Order:   byID(),
		})
		require.NoError(t, err)
		assert.Len(t, got, 3)
		assert.NotContains(t, got[0], "posts")

		snap := stats.Snapshot()
		assert.Equal(t, 1, snap.Requests)
		assert.Equal(t, 3, snap.Rows)
		assert.Equal(t, 3, snap.Objects)
		assert.Equal(t, map[string]int{string(compiler.SkipCollection): 1}, snap.Skips)
	})

	t.Run("mapped output type", func(t *testing.T) {
		svc := New(f.catalog, f.registry, WithFetcher(f.executor))
		got, err := svc.ResolveEntity(ctx, Params{
			Entity:   "User",
			TypeName: "UserObject",
			Request:  selection.Request{Query: `{ users { nickname } }`},
			Order:    byID(),
			Take:     ptr(1),
		})
		require.NoError(t, err)
		assert.Equal(t, []map[string]any{{"id": int64(1), "nick": "ann"}}, got)
	})

	t.Run("registry fallback for the root descriptor", func(t *testing.T) {
		svc := New(f.catalog, f.registry, WithFetcher(f.executor))
		got, err := svc.ResolveEntity(ctx, Params{Entity: "UserObject", Order: byID(), Skip: ptr(2)})
		require.NoError(t, err)
		assert.Equal(t, []map[string]any{{"id": int64(3)}}, got, "empty selection defaults to id")
	})

	t.Run("request id is logged", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		svc := New(f.catalog, f.registry, WithFetcher(f.executor), WithLogger(logger))
		_, err := svc.ResolveEntity(ctx, Params{Entity: "User"})
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "request_id=")
	})

	t.Run("errors", func(t *testing.T) {
		svc := New(f.catalog, f.registry, WithFetcher(f.executor))
		_, err := svc.ResolveEntity(ctx, Params{Entity: "Nope"})
		assert.ErrorIs(t, err, schema.ErrEntityNotFound)

		_, err = svc.ResolveEntity(ctx, Params{Entity: "User", Request: selection.Request{Query: `{ users { `}})
		assert.Error(t, err)

		_, err = New(f.catalog, f.registry).ResolveEntity(ctx, Params{Entity: "User"})
		assert.ErrorIs(t, err, ErrNoFetcher)
	})
}

func TestPlan(t *testing.T) {
	f := setup(t)
	svc := New(f.catalog, f.registry)

	res, err := svc.Plan(Params{
		Entity:    "User",
		Selection: selection.Leaf("email"),
		Order: []Order{
			{Property: "nick", Direction: builder.Desc},
			{Property: "score", Direction: builder.Asc},
		},
		Take: ptr(1),
		Skip: ptr(1),
	})
	require.NoError(t, err)

	query, _, err := res.Query.ToSQL(builder.SQLite)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "root"."id" AS "root_id", "root"."email" AS "root_email" FROM "users" AS "root" `+
			`ORDER BY "root"."nick_name" DESC, "root"."score" ASC LIMIT 1 OFFSET 1`,
		query)
}

func TestTypeResolver(t *testing.T) {
	f := setup(t)
	resolve := TypeResolver(f.catalog, f.registry)

	assert.Equal(t, "Profile", resolve("User", "profile"))
	assert.Equal(t, "Profile", resolve("UserObject", "profile"))
	assert.Equal(t, "Country", resolve("Profile", "country"))
	assert.Equal(t, "", resolve("User", "email"))
	assert.Equal(t, "", resolve("Missing", "profile"))
}
