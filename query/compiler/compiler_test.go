package compiler

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Godswilldev/nest-dynamic-gql-qb/query/builder"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/plan"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/selection"
	"github.com/Godswilldev/nest-dynamic-gql-qb/registry"
	"github.com/Godswilldev/nest-dynamic-gql-qb/schema"
)

func testCatalog() *schema.Catalog {
	return schema.NewCatalog(
		&schema.Entity{
			Name:  "User",
			Table: "users",
			Columns: []schema.Column{
				{Property: "id", Storage: "id"},
				{Property: "email", Storage: "email"},
				{Property: "nickname", Storage: "nick_name"},
				{Property: "role", Storage: "role"},
				{Property: "createdAt", Storage: "created_at"},
				{Property: "profileId", Storage: "profile_id"},
			},
			Relations: []schema.Relation{
				{Property: "profile", Cardinality: schema.ManyToOne, Target: "Profile", Fields: []string{"profileId"}, References: []string{"id"}},
				{Property: "account", Cardinality: schema.OneToOne, Target: "Account"},
				{Property: "posts", Cardinality: schema.OneToMany, Target: "Post"},
				{Property: "ghost", Cardinality: schema.ManyToOne, Target: "Ghost", Fields: []string{"profileId"}, References: []string{"id"}},
			},
			PrimaryKey: []string{"id"},
		},
		&schema.Entity{
			Name:  "Profile",
			Table: "profiles",
			Columns: []schema.Column{
				{Property: "id", Storage: "id"},
				{Property: "bio", Storage: "bio"},
				{Property: "avatar", Storage: "avatar_url"},
				{Property: "countryId", Storage: "country_id"},
			},
			Relations: []schema.Relation{
				{Property: "country", Cardinality: schema.ManyToOne, Target: "Country", Fields: []string{"countryId"}, References: []string{"id"}},
			},
			PrimaryKey: []string{"id"},
		},
		&schema.Entity{
			Name:       "Country",
			Table:      "countries",
			Columns:    []schema.Column{{Property: "id", Storage: "id"}, {Property: "name", Storage: "name"}},
			PrimaryKey: []string{"id"},
		},
		&schema.Entity{
			Name:  "Account",
			Table: "accounts",
			Columns: []schema.Column{
				{Property: "id", Storage: "id"},
				{Property: "userId", Storage: "user_id"},
				{Property: "plan", Storage: "plan"},
			},
			Relations: []schema.Relation{
				{Property: "user", Cardinality: schema.OneToOne, Target: "User", Fields: []string{"userId"}, References: []string{"id"}},
			},
			PrimaryKey: []string{"id"},
		},
		&schema.Entity{
			Name:  "Membership",
			Table: "memberships",
			Columns: []schema.Column{
				{Property: "orgId", Storage: "org_id"},
				{Property: "userId", Storage: "user_id"},
				{Property: "role", Storage: "role"},
			},
			PrimaryKey: []string{"orgId", "userId"},
		},
	)
}

func entity(t *testing.T, c *schema.Catalog, name string) *schema.Entity {
	t.Helper()
	e, err := c.Entity(name)
	require.NoError(t, err)
	return e
}

func TestCompileSelection(t *testing.T) {
	catalog := testCatalog()
	user := entity(t, catalog, "User")
	c := New(catalog, registry.Empty())

	t.Run("root columns and a singular relation", func(t *testing.T) {
		tree := selection.Tree{
			{Name: "email", Alias: "email"},
			selection.Nested("profile", "Profile", selection.Leaf("bio")),
		}
		res, err := c.Compile(user, "User", tree, nil)
		require.NoError(t, err)

		want := plan.AliasMetaList{
			{Alias: "root", EntityPropertyNames: []string{"id", "createdAt", "email"}},
			{Alias: "a0", ParentAlias: "root", RelationKey: "profile", EntityPropertyNames: []string{"bio"}},
		}
		if diff := cmp.Diff(want, res.Aliases); diff != "" {
			t.Errorf("aliases mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, []string{"root_id", "root_createdAt", "root_email", "a0_bio"}, res.Query.OutputAliases())
		assert.Equal(t, []string{"id"}, res.RootPrimaryKey)
		assert.Empty(t, res.Skipped)

		query, args, err := res.Query.ToSQL(builder.Postgres)
		require.NoError(t, err)
		assert.Equal(t,
			`SELECT "root"."id" AS "root_id", "root"."created_at" AS "root_createdAt", "root"."email" AS "root_email", "a0"."bio" AS "a0_bio" `+
				`FROM "users" AS "root" LEFT JOIN "profiles" AS "a0" ON "a0"."id" = "root"."profile_id"`,
			query)
		assert.Empty(t, args)
	})

	t.Run("repeated fields are projected once", func(t *testing.T) {
		tree := selection.Tree{
			{Name: "email", Alias: "email"},
			{Name: "email", Alias: "mail"},
			{Name: "id", Alias: "id"},
			selection.Nested("profile", "Profile", selection.Leaf("bio")),
			{
				Name:   "profile",
				Alias:  "other",
				ByType: []selection.TypeSelection{{TypeName: "Profile", Fields: selection.Leaf("bio", "avatar")}},
			},
		}
		res, err := c.Compile(user, "User", tree, nil)
		require.NoError(t, err)

		want := plan.AliasMetaList{
			{Alias: "root", EntityPropertyNames: []string{"id", "createdAt", "email"}},
			{Alias: "a0", ParentAlias: "root", RelationKey: "profile", EntityPropertyNames: []string{"bio", "avatar"}},
		}
		if diff := cmp.Diff(want, res.Aliases); diff != "" {
			t.Errorf("aliases mismatch (-want +got):\n%s", diff)
		}
		assert.Len(t, res.Query.Joins(), 1)
		assert.Equal(t, []string{"root_id", "root_createdAt", "root_email", "a0_bio", "a0_avatar"}, res.Query.OutputAliases())
	})

	t.Run("nested relations get their own aliases", func(t *testing.T) {
		tree := selection.Tree{
			selection.Nested("profile", "Profile", selection.Tree{
				selection.Nested("country", "Country", selection.Leaf("name")),
			}),
		}
		res, err := c.Compile(user, "User", tree, nil)
		require.NoError(t, err)

		want := plan.AliasMetaList{
			{Alias: "root", EntityPropertyNames: []string{"id", "createdAt"}},
			{Alias: "a0", ParentAlias: "root", RelationKey: "profile"},
			{Alias: "a1", ParentAlias: "a0", RelationKey: "country", EntityPropertyNames: []string{"name"}},
		}
		if diff := cmp.Diff(want, res.Aliases); diff != "" {
			t.Errorf("aliases mismatch (-want +got):\n%s", diff)
		}

		joins := res.Query.Joins()
		require.Len(t, joins, 2)
		assert.Equal(t, "a0.country", joins[1].Relation)
		assert.Equal(t, []builder.JoinCondition{{
			Left:  builder.Column{Alias: "a1", Name: "id"},
			Right: builder.Column{Alias: "a0", Name: "country_id"},
		}}, joins[1].On)
	})

	t.Run("inverse side joins through the target's foreign key", func(t *testing.T) {
		tree := selection.Tree{selection.Nested("account", "Account", selection.Leaf("plan"))}
		res, err := c.Compile(user, "User", tree, nil)
		require.NoError(t, err)

		joins := res.Query.Joins()
		require.Len(t, joins, 1)
		assert.Equal(t, "accounts", joins[0].Table)
		assert.Equal(t, []builder.JoinCondition{{
			Left:  builder.Column{Alias: "a0", Name: "user_id"},
			Right: builder.Column{Alias: "root", Name: "id"},
		}}, joins[0].On)
	})

	t.Run("collections, unknown fields and unresolvable targets are skipped", func(t *testing.T) {
		tree := selection.Tree{
			{Name: "bogus", Alias: "bogus"},
			selection.Nested("posts", "Post", selection.Leaf("title")),
			selection.Nested("ghost", "Ghost", selection.Leaf("boo")),
			{Name: "email", Alias: "email"},
		}
		res, err := c.Compile(user, "User", tree, nil)
		require.NoError(t, err)

		assert.Len(t, res.Aliases, 1)
		assert.Empty(t, res.Query.Joins())
		assert.Equal(t, []string{"root_id", "root_createdAt", "root_email"}, res.Query.OutputAliases())
		want := []Skip{
			{Alias: "root", Field: "bogus", Reason: SkipUnknownField},
			{Alias: "root", Field: "posts", Reason: SkipCollection},
			{Alias: "root", Field: "ghost", Reason: SkipUnresolvedTarget},
		}
		if diff := cmp.Diff(want, res.Skipped); diff != "" {
			t.Errorf("skips mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("foreign key without references is skipped", func(t *testing.T) {
		broken := *user
		broken.Relations = []schema.Relation{
			{Property: "profile", Cardinality: schema.ManyToOne, Target: "Profile", Fields: []string{"profileId"}},
		}
		tree := selection.Tree{
			{Name: "email", Alias: "email"},
			selection.Nested("profile", "Profile", selection.Tree{
				selection.Nested("country", "Country", selection.Leaf("name")),
			}),
		}

		var res *Result
		require.NotPanics(t, func() {
			var err error
			res, err = c.Compile(&broken, "User", tree, nil)
			require.NoError(t, err)
		})
		assert.Len(t, res.Aliases, 1)
		assert.Empty(t, res.Query.Joins())
		assert.Equal(t, []Skip{{Alias: "root", Field: "profile", Reason: SkipUnresolvedJoin}}, res.Skipped)
	})

	t.Run("field mappings apply per type name", func(t *testing.T) {
		reg := registry.NewBuilder().SetFieldMapping("UserObject", "nick", "nickname").Build()
		mapped := New(catalog, reg)

		res, err := mapped.Compile(user, "UserObject", selection.Leaf("nick"), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"root_id", "root_createdAt", "root_nickname"}, res.Query.OutputAliases())

		query, _, err := res.Query.ToSQL(builder.SQLite)
		require.NoError(t, err)
		assert.Contains(t, query, `"root"."nick_name" AS "root_nickname"`)

		res, err = mapped.Compile(user, "User", selection.Leaf("nick"), nil)
		require.NoError(t, err)
		assert.Equal(t, []Skip{{Alias: "root", Field: "nick", Reason: SkipUnknownField}}, res.Skipped)
	})

	t.Run("composite primary key", func(t *testing.T) {
		membership := entity(t, catalog, "Membership")
		res, err := c.Compile(membership, "Membership", selection.Leaf("role", "userId"), nil)
		require.NoError(t, err)

		assert.Equal(t, []string{"orgId", "userId"}, res.RootPrimaryKey)
		assert.Equal(t, []string{"root_orgId", "root_userId", "root_role"}, res.Query.OutputAliases())
	})

	t.Run("options", func(t *testing.T) {
		custom := New(catalog, nil, WithRootAlias("u"), WithBaselineProperties())
		res, err := custom.Compile(user, "User", selection.Leaf("email"), nil)
		require.NoError(t, err)
		assert.Equal(t, "u", custom.RootAlias())
		assert.Equal(t, "u", res.RootAlias)
		assert.Equal(t, []string{"u_id", "u_email"}, res.Query.OutputAliases())
	})

	t.Run("registry descriptors win over the provider", func(t *testing.T) {
		override := &schema.Entity{
			Name:       "Profile",
			Table:      "profile_view",
			Columns:    []schema.Column{{Property: "id", Storage: "id"}, {Property: "bio", Storage: "biography"}},
			PrimaryKey: []string{"id"},
		}
		reg := registry.NewBuilder().RegisterType("Profile", override).Build()
		res, err := New(catalog, reg).Compile(user, "User", selection.Tree{selection.Nested("profile", "Profile", selection.Leaf("bio"))}, nil)
		require.NoError(t, err)
		assert.Equal(t, "profile_view", res.Query.Joins()[0].Table)
	})
}

type failingProvider struct{}

func (failingProvider) Entity(string) (*schema.Entity, error) {
	return nil, errors.New("connection refused")
}

func TestCompileProviderError(t *testing.T) {
	user := entity(t, testCatalog(), "User")
	_, err := New(failingProvider{}, nil).Compile(user, "User", selection.Tree{selection.Nested("profile", "Profile", selection.Leaf("bio"))}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestApplyFilter(t *testing.T) {
	catalog := testCatalog()
	user := entity(t, catalog, "User")
	c := New(catalog, nil)

	t.Run("filter-only join and root equality", func(t *testing.T) {
		filter := Filter{
			"role":    "admin",
			"profile": map[string]any{"bio": nil},
		}
		res, err := c.Compile(user, "User", selection.Leaf("email"), filter)
		require.NoError(t, err)

		want := plan.AliasMetaList{
			{Alias: "root", EntityPropertyNames: []string{"id", "createdAt", "email"}},
			{Alias: "a0", ParentAlias: "root", RelationKey: "profile"},
		}
		if diff := cmp.Diff(want, res.Aliases); diff != "" {
			t.Errorf("aliases mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, []string{"root_id", "root_createdAt", "root_email"}, res.Query.OutputAliases())
		assert.Equal(t, map[string]any{"where_0": nil}, res.Query.Params())

		query, args, err := res.Query.ToSQL(builder.Postgres)
		require.NoError(t, err)
		assert.Equal(t,
			`SELECT "root"."id" AS "root_id", "root"."created_at" AS "root_createdAt", "root"."email" AS "root_email" `+
				`FROM "users" AS "root" LEFT JOIN "profiles" AS "a0" ON "a0"."id" = "root"."profile_id" `+
				`WHERE ("root"."role" = $1) AND "a0"."bio" IS NULL`,
			query)
		assert.Equal(t, []any{"admin"}, args)
	})

	t.Run("selected relation is reused and parameters follow sorted keys", func(t *testing.T) {
		tree := selection.Tree{selection.Nested("profile", "Profile", selection.Leaf("bio"))}
		filter := Filter{"profile": Filter{"bio": "x", "avatar": nil, "missing": 1}}
		res, err := c.Compile(user, "User", tree, filter)
		require.NoError(t, err)

		assert.Len(t, res.Aliases, 2)
		assert.Len(t, res.Query.Joins(), 1)
		assert.Equal(t, map[string]any{"where_0": nil, "where_1": "x"}, res.Query.Params())

		conds := res.Query.Conditions()
		require.Len(t, conds, 3)
		assert.Equal(t, builder.True, conds[0])
		assert.Equal(t, builder.NewClause(builder.Column{Alias: "a0", Name: "avatar_url"}, "where_0", nil), conds[1])
		assert.Equal(t, builder.NewClause(builder.Column{Alias: "a0", Name: "bio"}, "where_1", "x"), conds[2])

		assert.Equal(t, []Skip{{Alias: "a0", Field: "missing", Reason: SkipUnknownFilterColumn}}, res.Skipped)
	})

	t.Run("list values become membership tests", func(t *testing.T) {
		res, err := c.Compile(user, "User", nil, Filter{"role": []string{"admin", "owner"}})
		require.NoError(t, err)

		query, args, err := res.Query.ToSQL(builder.SQLite)
		require.NoError(t, err)
		assert.Contains(t, query, `WHERE ("root"."role" IN (?,?))`)
		assert.Equal(t, []any{"admin", "owner"}, args)
	})

	t.Run("unknown keys and collection filters are ignored", func(t *testing.T) {
		res, err := c.Compile(user, "User", nil, Filter{"bogus": 1, "posts": map[string]any{"title": "x"}})
		require.NoError(t, err)

		assert.Empty(t, res.Query.Conditions())
		assert.Empty(t, res.Query.Joins())
		assert.Equal(t, []Skip{
			{Alias: "root", Field: "bogus", Reason: SkipUnknownFilterKey},
			{Alias: "root", Field: "posts", Reason: SkipUnknownFilterKey},
		}, res.Skipped)
	})

	t.Run("empty relation filter joins without conditions", func(t *testing.T) {
		res, err := c.Compile(user, "User", nil, Filter{"profile": map[string]any{}})
		require.NoError(t, err)
		assert.Len(t, res.Query.Joins(), 1)
		assert.Empty(t, res.Query.Conditions())
	})

	t.Run("compilation is repeatable", func(t *testing.T) {
		tree := selection.Tree{
			{Name: "email", Alias: "email"},
			selection.Nested("profile", "Profile", selection.Leaf("bio")),
		}
		filter := Filter{"role": "admin", "account": map[string]any{"plan": "pro"}}

		first, err := c.Compile(user, "User", tree, filter)
		require.NoError(t, err)
		second, err := c.Compile(user, "User", tree, filter)
		require.NoError(t, err)

		if diff := cmp.Diff(first.Aliases, second.Aliases); diff != "" {
			t.Errorf("aliases differ between runs:\n%s", diff)
		}
		q1, a1, err := first.Query.ToSQL(builder.Postgres)
		require.NoError(t, err)
		q2, a2, err := second.Query.ToSQL(builder.Postgres)
		require.NoError(t, err)
		assert.Equal(t, q1, q2)
		assert.Equal(t, a1, a2)
	})
}
