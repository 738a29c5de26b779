// Package compiler compiles a selection tree and a filter expression into a
// single joined SELECT plus the alias bookkeeping needed to reshape its rows.
package compiler

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Godswilldev/nest-dynamic-gql-qb/internal/debug"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/builder"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/plan"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/selection"
	"github.com/Godswilldev/nest-dynamic-gql-qb/registry"
	"github.com/Godswilldev/nest-dynamic-gql-qb/schema"
)

// DefaultRootAlias is the alias of the root entity.
const DefaultRootAlias = "root"

// DefaultBaseline lists the properties projected from the root after its
// primary key, when the entity has them.
var DefaultBaseline = []string{"createdAt", "updatedAt", "deletedAt", "rowId"}

// Compiler turns selections and filters into queries. It holds no per-query
// state and is safe for concurrent use.
type Compiler struct {
	provider  schema.Provider
	registry  *registry.Registry
	rootAlias string
	baseline  []string
	logger    *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithRootAlias overrides DefaultRootAlias.
func WithRootAlias(alias string) Option {
	return func(c *Compiler) {
		if alias != "" {
			c.rootAlias = alias
		}
	}
}

// WithBaselineProperties overrides DefaultBaseline.
func WithBaselineProperties(props ...string) Option {
	return func(c *Compiler) {
		c.baseline = append([]string(nil), props...)
	}
}

// WithLogger sets the logger skip events are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = l
	}
}

// New creates a Compiler. Relation targets are looked up in reg first and
// then in provider.
func New(provider schema.Provider, reg *registry.Registry, opts ...Option) *Compiler {
	c := &Compiler{
		provider:  provider,
		registry:  reg,
		rootAlias: DefaultRootAlias,
		baseline:  DefaultBaseline,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RootAlias returns the alias used for the root entity.
func (c *Compiler) RootAlias() string {
	return c.rootAlias
}

// Result is a compiled query with its alias list.
type Result struct {
	Query          *builder.Select
	Aliases        plan.AliasMetaList
	RootAlias      string
	RootPrimaryKey []string
	// Skipped lists selection fields and filter keys that were ignored.
	Skipped []Skip

	root      *schema.Entity
	nextAlias int
}

// Compile compiles the selection of tree on root, then applies filter.
func (c *Compiler) Compile(root *schema.Entity, typeName string, tree selection.Tree, filter Filter) (*Result, error) {
	res, err := c.CompileSelection(root, typeName, tree)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyFilter(res, filter); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Compiler) newAlias(res *Result) string {
	alias := fmt.Sprintf("a%d", res.nextAlias)
	res.nextAlias++
	return alias
}

// resolveTarget finds the descriptor a relation points at. It reports false
// when neither the registry nor the provider knows it.
func (c *Compiler) resolveTarget(rel schema.Relation) (*schema.Entity, bool, error) {
	if e, ok := c.registry.ResolveDescriptor(rel.Target); ok {
		return e, true, nil
	}
	if c.provider == nil {
		return nil, false, nil
	}
	e, err := c.provider.Entity(rel.Target)
	if errors.Is(err, schema.ErrEntityNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve %s: %w", rel.Target, err)
	}
	return e, true, nil
}

// join LEFT JOINs target under parent for rel and records the new alias. It
// returns nil when the join condition cannot be derived.
func (c *Compiler) join(res *Result, parent *plan.AliasMeta, owner *schema.Entity, rel schema.Relation, target *schema.Entity, relationKey string) *plan.AliasMeta {
	pairs, ok := joinColumns(owner, rel, target)
	if !ok {
		c.skip(res, parent.Alias, relationKey, SkipUnresolvedJoin)
		return nil
	}

	alias := c.newAlias(res)
	on := make([]builder.JoinCondition, len(pairs))
	for i, p := range pairs {
		on[i] = builder.JoinCondition{
			Left:  builder.Column{Alias: alias, Name: p.child},
			Right: builder.Column{Alias: parent.Alias, Name: p.parent},
		}
	}
	res.Query.LeftJoin(builder.Join{
		Relation: parent.Alias + "." + relationKey,
		Table:    target.Table,
		Alias:    alias,
		On:       on,
	})

	meta := &plan.AliasMeta{Alias: alias, ParentAlias: parent.Alias, RelationKey: relationKey}
	res.Aliases = append(res.Aliases, meta)
	return meta
}

type columnPair struct {
	child  string
	parent string
}

// joinColumns derives the storage columns equated by a join. The owning
// side holds the foreign key; the inverse side borrows it from the target.
func joinColumns(owner *schema.Entity, rel schema.Relation, target *schema.Entity) ([]columnPair, bool) {
	if rel.IsOwning() {
		if len(rel.Fields) != len(rel.References) {
			return nil, false
		}
		pairs := make([]columnPair, len(rel.Fields))
		for i, f := range rel.Fields {
			pairs[i] = columnPair{child: target.StorageName(rel.References[i]), parent: owner.StorageName(f)}
		}
		return pairs, true
	}

	inv, ok := target.InverseOf(owner.Name, rel)
	if !ok || len(inv.Fields) != len(inv.References) {
		return nil, false
	}
	pairs := make([]columnPair, len(inv.Fields))
	for i, f := range inv.Fields {
		pairs[i] = columnPair{child: target.StorageName(f), parent: owner.StorageName(inv.References[i])}
	}
	return pairs, true
}

func (c *Compiler) skip(res *Result, alias, field string, reason SkipReason) {
	res.Skipped = append(res.Skipped, Skip{Alias: alias, Field: field, Reason: reason})
	logger := c.logger
	if logger == nil {
		logger = debug.Logger()
	}
	logger.Debug("skipped field", "alias", alias, "field", field, "reason", string(reason))
}
