// Package plan holds the alias bookkeeping shared by query compilation and
// result reshaping.
package plan

// AliasMeta describes one table alias in a compiled query.
type AliasMeta struct {
	// Alias is the SQL alias, unique within one compiled query.
	Alias string
	// ParentAlias is empty for the root.
	ParentAlias string
	// RelationKey is the output key the reshaped child object goes under.
	// Empty for the root.
	RelationKey string
	// EntityPropertyNames are the properties projected from this alias, in
	// projection order.
	EntityPropertyNames []string
}

// IsRoot reports whether m describes the root alias.
func (m *AliasMeta) IsRoot() bool {
	return m.ParentAlias == "" && m.RelationKey == ""
}

// HasProperty reports whether property is already projected from m.
func (m *AliasMeta) HasProperty(property string) bool {
	for _, p := range m.EntityPropertyNames {
		if p == property {
			return true
		}
	}
	return false
}

// OutputKey is the flat row key for property projected from alias.
func OutputKey(alias, property string) string {
	return alias + "_" + property
}

// AliasMetaList is the insertion-ordered alias list of a compiled query.
// The root comes first and the join tree is encoded only through
// ParentAlias.
type AliasMetaList []*AliasMeta

// Get returns the entry for alias.
func (l AliasMetaList) Get(alias string) (*AliasMeta, bool) {
	for _, m := range l {
		if m.Alias == alias {
			return m, true
		}
	}
	return nil, false
}

// Children returns the entries whose parent is alias, in insertion order.
func (l AliasMetaList) Children(alias string) []*AliasMeta {
	var out []*AliasMeta
	for _, m := range l {
		if m.ParentAlias == alias {
			out = append(out, m)
		}
	}
	return out
}

// Child returns the entry joined under parent for relationKey.
func (l AliasMetaList) Child(parent, relationKey string) (*AliasMeta, bool) {
	for _, m := range l {
		if m.ParentAlias == parent && m.RelationKey == relationKey {
			return m, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of l.
func (l AliasMetaList) Clone() AliasMetaList {
	out := make(AliasMetaList, len(l))
	for i, m := range l {
		cp := *m
		cp.EntityPropertyNames = append([]string(nil), m.EntityPropertyNames...)
		out[i] = &cp
	}
	return out
}
