package schema

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// scalarTypes are the built-in column types. Any other type that is not an
// enum names an entity and declares a relation.
var scalarTypes = map[string]bool{
	"String":   true,
	"Int":      true,
	"BigInt":   true,
	"Float":    true,
	"Decimal":  true,
	"Boolean":  true,
	"DateTime": true,
	"Json":     true,
	"Bytes":    true,
	"Uuid":     true,
}

// Parse reads a schema document and returns its entities as a Catalog.
func Parse(filename string, r io.Reader) (*Catalog, error) {
	raw, err := schemaParser.Parse(filename, r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	return convert(raw)
}

// ParseString parses a schema held in memory.
func ParseString(filename, input string) (*Catalog, error) {
	return Parse(filename, strings.NewReader(input))
}

// MustParseString parses a schema, panicking on error.
func MustParseString(filename, input string) *Catalog {
	c, err := ParseString(filename, input)
	if err != nil {
		panic(err)
	}
	return c
}

type pendingRelation struct {
	entity *Entity
	index  int
	list   bool
}

func convert(raw *rawFile) (*Catalog, error) {
	catalog := NewCatalog()

	enums := make(map[string]bool)
	models := make(map[string]*rawModel)
	for _, item := range raw.Items {
		switch {
		case item.Enum != nil:
			enums[item.Enum.Name] = true
		case item.Model != nil:
			if _, dup := models[item.Model.Name]; dup {
				return nil, fmt.Errorf("%w: model %s declared twice", ErrInvalidSchema, item.Model.Name)
			}
			models[item.Model.Name] = item.Model
		case item.Config != nil && item.Config.Kind == "datasource":
			applyDatasource(catalog, item.Config)
		}
	}

	var pending []pendingRelation
	for _, item := range raw.Items {
		if item.Model == nil {
			continue
		}
		entity, rels, err := convertModel(item.Model, enums)
		if err != nil {
			return nil, err
		}
		pending = append(pending, rels...)
		catalog.Add(entity)
	}

	for _, p := range pending {
		if err := resolveCardinality(catalog, p); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

func applyDatasource(c *Catalog, cfg *rawConfig) {
	for _, prop := range cfg.Properties {
		switch prop.Key {
		case "provider":
			if s, ok := prop.Value.scalar(); ok {
				c.Provider = s
			}
		case "url":
			if call := prop.Value.Call; call != nil && call.Name == "env" && len(call.Arguments) == 1 {
				if name, ok := call.Arguments[0].scalar(); ok {
					c.URL = os.Getenv(name)
				}
				continue
			}
			if s, ok := prop.Value.scalar(); ok {
				c.URL = s
			}
		}
	}
}

func convertModel(m *rawModel, enums map[string]bool) (*Entity, []pendingRelation, error) {
	entity := &Entity{Name: m.Name, Table: SnakeCase(m.Name)}
	var pending []pendingRelation

	for _, f := range m.Fields {
		if scalarTypes[f.Type] || enums[f.Type] {
			col := Column{Property: f.Name, Storage: f.Name}
			for _, attr := range f.Attributes {
				switch attr.Name {
				case "map":
					if s, ok := attr.argument("name", 0).scalar(); ok {
						col.Storage = s
					}
				case "id":
					entity.PrimaryKey = append(entity.PrimaryKey, f.Name)
				}
			}
			entity.Columns = append(entity.Columns, col)
			continue
		}

		rel := Relation{Property: f.Name, Target: f.Type}
		for _, attr := range f.Attributes {
			if attr.Name != "relation" {
				continue
			}
			if s, ok := attr.argument("name", 0).scalar(); ok {
				rel.Name = s
			}
			rel.Fields = attr.argument("fields", -1).strings()
			rel.References = attr.argument("references", -1).strings()
		}
		if len(rel.Fields) != len(rel.References) {
			return nil, nil, fmt.Errorf("%w: %s.%s: fields and references differ in length",
				ErrInvalidSchema, m.Name, f.Name)
		}
		if f.List && rel.IsOwning() {
			return nil, nil, fmt.Errorf("%w: %s.%s: list relation cannot hold the foreign key",
				ErrInvalidSchema, m.Name, f.Name)
		}
		switch {
		case f.List:
			rel.Cardinality = OneToMany
		case rel.IsOwning():
			rel.Cardinality = ManyToOne
		default:
			rel.Cardinality = OneToOne
		}
		entity.Relations = append(entity.Relations, rel)
		pending = append(pending, pendingRelation{entity: entity, index: len(entity.Relations) - 1, list: f.List})
	}

	for _, attr := range m.Attributes {
		switch attr.Name {
		case "map":
			if s, ok := attr.argument("name", 0).scalar(); ok {
				entity.Table = s
			}
		case "id":
			entity.PrimaryKey = attr.argument("fields", 0).strings()
		}
	}

	for _, rel := range entity.Relations {
		for _, field := range rel.Fields {
			if !entity.HasColumn(field) {
				return nil, nil, fmt.Errorf("%w: %s.%s: unknown foreign key field %q",
					ErrInvalidSchema, m.Name, rel.Property, field)
			}
		}
	}
	for _, pk := range entity.PrimaryKey {
		if !entity.HasColumn(pk) {
			return nil, nil, fmt.Errorf("%w: %s: unknown primary key field %q", ErrInvalidSchema, m.Name, pk)
		}
	}
	return entity, pending, nil
}

// resolveCardinality settles a relation's cardinality once every model is
// known. Relations to unknown types keep their provisional cardinality and are
// left for the compiler to skip.
func resolveCardinality(c *Catalog, p pendingRelation) error {
	rel := &p.entity.Relations[p.index]
	target, err := c.Entity(rel.Target)
	if err != nil {
		return nil
	}

	for _, ref := range rel.References {
		if !target.HasColumn(ref) {
			return fmt.Errorf("%w: %s.%s: unknown referenced field %s.%s",
				ErrInvalidSchema, p.entity.Name, rel.Property, target.Name, ref)
		}
	}

	back, hasBack := backReference(target, p.entity.Name, rel)
	switch {
	case p.list && hasBack && back.list:
		rel.Cardinality = ManyToMany
	case p.list:
		rel.Cardinality = OneToMany
	case rel.IsOwning() && hasBack && !back.list:
		rel.Cardinality = OneToOne
	case rel.IsOwning():
		rel.Cardinality = ManyToOne
	default:
		rel.Cardinality = OneToOne
	}
	return nil
}

type backRef struct {
	list bool
}

// backReference finds the opposite side of rel on target. The list flag comes
// from the provisional cardinality set during conversion.
func backReference(target *Entity, owner string, rel *Relation) (backRef, bool) {
	for _, r := range target.Relations {
		if r.Target != owner || r.Property == rel.Property && target.Name == owner {
			continue
		}
		if rel.Name != "" && r.Name != "" && rel.Name != r.Name {
			continue
		}
		return backRef{list: r.Cardinality == OneToMany || r.Cardinality == ManyToMany}, true
	}
	return backRef{}, false
}
