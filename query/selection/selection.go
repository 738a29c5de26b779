// Package selection models the tree of fields a client asked for and builds
// it from GraphQL documents.
package selection

// Field is one requested field.
type Field struct {
	// Name is the schema field name.
	Name string
	// Alias is the response name; equal to Name when no alias was given.
	Alias string
	// Args holds the field arguments with variables substituted.
	Args map[string]any
	// ByType holds nested selections keyed by concrete type, in first-seen
	// order. Empty for leaf fields.
	ByType []TypeSelection
}

// TypeSelection is the nested selection for one concrete type.
type TypeSelection struct {
	TypeName string
	Fields   Tree
}

// Tree is an ordered list of requested fields keyed by response name.
type Tree []*Field

// Selection returns the first typed sub-selection of f, or nil for a leaf.
func (f *Field) Selection() Tree {
	if f == nil || len(f.ByType) == 0 {
		return nil
	}
	return f.ByType[0].Fields
}

// For returns the sub-selection for typeName, falling back to the first
// typed sub-selection when typeName is empty or absent.
func (f *Field) For(typeName string) Tree {
	if f == nil {
		return nil
	}
	if typeName != "" {
		for _, ts := range f.ByType {
			if ts.TypeName == typeName {
				return ts.Fields
			}
		}
	}
	return f.Selection()
}

// Get returns the field with the given response name.
func (t Tree) Get(responseName string) *Field {
	for _, f := range t {
		if f.Alias == responseName {
			return f
		}
	}
	return nil
}

// Empty reports whether the tree selects nothing.
func (t Tree) Empty() bool {
	return len(t) == 0
}

// Leaf builds a tree of scalar fields, mainly for callers that construct
// selections programmatically.
func Leaf(names ...string) Tree {
	t := make(Tree, 0, len(names))
	for _, n := range names {
		t = append(t, &Field{Name: n, Alias: n})
	}
	return t
}

// Nested builds a field with a single typed sub-selection.
func Nested(name, typeName string, fields Tree) *Field {
	return &Field{
		Name:   name,
		Alias:  name,
		ByType: []TypeSelection{{TypeName: typeName, Fields: fields}},
	}
}
