package compiler

import (
	"fmt"
	"sort"

	"github.com/Godswilldev/nest-dynamic-gql-qb/query/builder"
)

// Filter is a nested filter expression. Values are primitives, nil, lists,
// or one level of nested maps holding column filters of a singular relation.
type Filter map[string]any

// ApplyFilter adds the joins and predicates for filter to a compiled
// selection. Keys are processed in sorted order so parameter numbering is
// stable. Unknown keys are ignored.
func (c *Compiler) ApplyFilter(res *Result, filter Filter) error {
	if len(filter) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if err := c.ensureFilterJoins(res, filter, keys); err != nil {
		return err
	}
	return c.applyPredicates(res, filter, keys)
}

// ensureFilterJoins joins singular relations named by object-valued keys
// that the selection did not already join under the root.
func (c *Compiler) ensureFilterJoins(res *Result, filter Filter, keys []string) error {
	root := res.root
	rootMeta, _ := res.Aliases.Get(res.RootAlias)

	for _, key := range keys {
		if _, ok := asObject(filter[key]); !ok {
			continue
		}
		rel, ok := root.Relation(key)
		if !ok || !rel.Cardinality.IsSingular() {
			continue
		}
		if _, joined := res.Aliases.Child(res.RootAlias, key); joined {
			continue
		}
		target, ok, err := c.resolveTarget(rel)
		if err != nil {
			return err
		}
		if !ok {
			c.skip(res, res.RootAlias, key, SkipUnresolvedTarget)
			continue
		}
		c.join(res, rootMeta, root, rel, target, key)
	}
	return nil
}

type relationFilter struct {
	key   string
	value map[string]any
}

func (c *Compiler) applyPredicates(res *Result, filter Filter, keys []string) error {
	root := res.root

	var rootMatches builder.Equals
	var relations []relationFilter
	for _, key := range keys {
		value := filter[key]
		if col, ok := root.Column(key); ok {
			rootMatches = append(rootMatches, builder.Match{
				Column: builder.Column{Alias: res.RootAlias, Name: col.Storage},
				Value:  value,
			})
			continue
		}
		obj, isObject := asObject(value)
		rel, isRelation := root.Relation(key)
		if isObject && isRelation && rel.Cardinality.IsSingular() {
			relations = append(relations, relationFilter{key: key, value: obj})
			continue
		}
		c.skip(res, res.RootAlias, key, SkipUnknownFilterKey)
	}

	hasNested := false
	for _, r := range relations {
		if len(r.value) > 0 {
			hasNested = true
			break
		}
	}
	switch {
	case len(rootMatches) > 0:
		res.Query.Where(rootMatches)
	case hasNested:
		res.Query.Where(builder.True)
	}

	paramIndex := 0
	for _, r := range relations {
		meta, ok := res.Aliases.Child(res.RootAlias, r.key)
		if !ok {
			continue
		}
		rel, _ := root.Relation(r.key)
		target, ok, err := c.resolveTarget(rel)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		props := make([]string, 0, len(r.value))
		for p := range r.value {
			props = append(props, p)
		}
		sort.Strings(props)

		for _, prop := range props {
			col, ok := target.Column(prop)
			if !ok {
				c.skip(res, meta.Alias, prop, SkipUnknownFilterColumn)
				continue
			}
			param := fmt.Sprintf("where_%d", paramIndex)
			paramIndex++
			res.Query.AndWhere(builder.NewClause(builder.Column{Alias: meta.Alias, Name: col.Storage}, param, r.value[prop]))
		}
	}
	return nil
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Filter:
		return m, true
	default:
		return nil, false
	}
}
