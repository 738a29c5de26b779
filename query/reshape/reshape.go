// Package reshape folds the flat rows of a joined query back into nested
// objects, one per distinct root.
package reshape

import (
	"fmt"
	"strings"

	"github.com/Godswilldev/nest-dynamic-gql-qb/query/plan"
)

const (
	nullKey      = "__null__"
	keySeparator = "\x00"
)

// Reshape groups rows by the root's key and materializes one nested object
// per group from the group's first row. pk names the root's primary key
// properties; the first projected root property is used when pk is empty.
//
// Rows are returned unchanged when rootAlias is not in aliases or projects
// nothing. Groups keep the order in which they were first seen.
func Reshape(rows []map[string]any, aliases plan.AliasMetaList, rootAlias string, pk []string) []map[string]any {
	if len(rows) == 0 {
		return []map[string]any{}
	}
	root, ok := aliases.Get(rootAlias)
	if !ok || len(root.EntityPropertyNames) == 0 {
		return rows
	}

	keyProps := pk
	if len(keyProps) == 0 {
		keyProps = root.EntityPropertyNames[:1]
	}

	children := childIndex(aliases)
	seen := make(map[string]bool, len(rows))
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		key := groupKey(row, rootAlias, keyProps)
		if seen[key] {
			continue
		}
		seen[key] = true
		obj, _ := materialize(row, root, children)
		out = append(out, obj)
	}
	return out
}

func childIndex(aliases plan.AliasMetaList) map[string][]*plan.AliasMeta {
	idx := make(map[string][]*plan.AliasMeta)
	for _, m := range aliases {
		if m.ParentAlias != "" {
			idx[m.ParentAlias] = append(idx[m.ParentAlias], m)
		}
	}
	return idx
}

func groupKey(row map[string]any, alias string, props []string) string {
	parts := make([]string, len(props))
	for i, p := range props {
		v := row[plan.OutputKey(alias, p)]
		if v == nil {
			parts[i] = nullKey
			continue
		}
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, keySeparator)
}

// materialize builds the object for meta and reports whether it holds any
// non-null value, directly or through an attached child.
func materialize(row map[string]any, meta *plan.AliasMeta, children map[string][]*plan.AliasMeta) (map[string]any, bool) {
	obj := make(map[string]any, len(meta.EntityPropertyNames))
	present := false
	for _, p := range meta.EntityPropertyNames {
		v := row[plan.OutputKey(meta.Alias, p)]
		obj[p] = v
		if v != nil {
			present = true
		}
	}
	for _, child := range children[meta.Alias] {
		nested, ok := materialize(row, child, children)
		if !ok {
			continue
		}
		obj[child.RelationKey] = nested
		present = true
	}
	return obj, present
}
