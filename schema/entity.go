// Package schema describes the persistent entities the compiler projects
// from: their table, columns, primary key and relations.
package schema

// Cardinality classifies a relation by how many target rows it reaches.
type Cardinality int

const (
	// ManyToOne is the owning side of a foreign key.
	ManyToOne Cardinality = iota
	// OneToOne is a singular relation, owning or inverse.
	OneToOne
	// OneToMany is the inverse side of a ManyToOne.
	OneToMany
	// ManyToMany goes through a junction table.
	ManyToMany
)

// IsSingular reports whether the relation reaches at most one target row.
// Only singular relations are joined.
func (c Cardinality) IsSingular() bool {
	return c == ManyToOne || c == OneToOne
}

func (c Cardinality) String() string {
	switch c {
	case ManyToOne:
		return "many-to-one"
	case OneToOne:
		return "one-to-one"
	case OneToMany:
		return "one-to-many"
	case ManyToMany:
		return "many-to-many"
	default:
		return "unknown"
	}
}

// Column maps a property to its storage column.
type Column struct {
	Property string
	Storage  string
}

// Relation is an association from one entity to another.
type Relation struct {
	// Property is the relation's name on the owning entity.
	Property    string
	Cardinality Cardinality
	// Target is the referenced entity's name.
	Target string
	// Name disambiguates several relations between the same pair of entities.
	Name string
	// Fields are local properties holding the foreign key. Empty on the
	// inverse side.
	Fields []string
	// References are the target properties the foreign key points at.
	References []string
}

// IsOwning reports whether the foreign key lives on this side.
func (r Relation) IsOwning() bool {
	return len(r.Fields) > 0
}

// Entity is the metadata the compiler needs for one persistent type.
type Entity struct {
	Name       string
	Table      string
	Columns    []Column
	Relations  []Relation
	PrimaryKey []string
}

// Column looks up a column by property name.
func (e *Entity) Column(property string) (Column, bool) {
	for _, c := range e.Columns {
		if c.Property == property {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether property is a column of e.
func (e *Entity) HasColumn(property string) bool {
	_, ok := e.Column(property)
	return ok
}

// Relation looks up a relation by property name.
func (e *Entity) Relation(property string) (Relation, bool) {
	for _, r := range e.Relations {
		if r.Property == property {
			return r, true
		}
	}
	return Relation{}, false
}

// StorageName returns the storage column for property, or property itself
// when it is not a known column.
func (e *Entity) StorageName(property string) string {
	if c, ok := e.Column(property); ok {
		return c.Storage
	}
	return property
}

// InverseOf finds the owning relation on e that points back at the entity
// named owner through rel. Relation names must agree when both are set.
func (e *Entity) InverseOf(owner string, rel Relation) (Relation, bool) {
	for _, r := range e.Relations {
		if r.Target != owner || !r.IsOwning() {
			continue
		}
		if rel.Name != "" && r.Name != "" && rel.Name != r.Name {
			continue
		}
		return r, true
	}
	return Relation{}, false
}
