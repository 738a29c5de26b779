package compiler

import (
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/builder"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/plan"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/selection"
	"github.com/Godswilldev/nest-dynamic-gql-qb/schema"
)

// CompileSelection projects the root baseline and every selected column,
// and LEFT JOINs every selected singular relation, depth first.
func (c *Compiler) CompileSelection(root *schema.Entity, typeName string, tree selection.Tree) (*Result, error) {
	res := &Result{
		Query:          builder.NewSelect(root.Table, c.rootAlias),
		RootAlias:      c.rootAlias,
		RootPrimaryKey: append([]string(nil), root.PrimaryKey...),
		root:           root,
	}

	meta := &plan.AliasMeta{Alias: c.rootAlias}
	res.Aliases = append(res.Aliases, meta)

	for _, pk := range root.PrimaryKey {
		col, ok := root.Column(pk)
		if !ok {
			col = schema.Column{Property: pk, Storage: pk}
		}
		project(res, meta, col)
	}
	for _, prop := range c.baseline {
		if col, ok := root.Column(prop); ok && !meta.HasProperty(prop) {
			project(res, meta, col)
		}
	}

	if err := c.addSelections(res, meta, root, typeName, tree); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Compiler) addSelections(res *Result, meta *plan.AliasMeta, entity *schema.Entity, typeName string, tree selection.Tree) error {
	for _, field := range tree {
		prop := c.registry.ResolveProperty(typeName, field.Name)

		if col, ok := entity.Column(prop); ok {
			if !meta.HasProperty(prop) {
				project(res, meta, col)
			}
			continue
		}

		rel, ok := entity.Relation(prop)
		if !ok {
			c.skip(res, meta.Alias, field.Name, SkipUnknownField)
			continue
		}
		if !rel.Cardinality.IsSingular() {
			c.skip(res, meta.Alias, field.Name, SkipCollection)
			continue
		}

		target, ok, err := c.resolveTarget(rel)
		if err != nil {
			return err
		}
		if !ok {
			c.skip(res, meta.Alias, field.Name, SkipUnresolvedTarget)
			continue
		}

		child, joined := res.Aliases.Child(meta.Alias, field.Name)
		if !joined {
			if child = c.join(res, meta, entity, rel, target, field.Name); child == nil {
				continue
			}
		}
		if err := c.addSelections(res, child, target, rel.Target, field.Selection()); err != nil {
			return err
		}
	}
	return nil
}

func project(res *Result, meta *plan.AliasMeta, col schema.Column) {
	res.Query.AddSelect(builder.Column{Alias: meta.Alias, Name: col.Storage}, plan.OutputKey(meta.Alias, col.Property))
	meta.EntityPropertyNames = append(meta.EntityPropertyNames, col.Property)
}
