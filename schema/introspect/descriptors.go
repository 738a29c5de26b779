package introspect

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/Godswilldev/nest-dynamic-gql-qb/schema"
)

// Load introspects db and returns its tables as entity descriptors.
func Load(ctx context.Context, db *sql.DB, provider string) (*schema.Catalog, error) {
	in, err := NewIntrospector(db, provider)
	if err != nil {
		return nil, err
	}
	s, err := in.Introspect(ctx)
	if err != nil {
		return nil, err
	}
	catalog := ToCatalog(s)
	catalog.Provider = provider
	return catalog, nil
}

// ToCatalog converts an introspected schema into entity descriptors.
//
// Tables become entities named in PascalCase and columns become camelCase
// properties. Every foreign key yields a many-to-one relation on the
// referencing table, named after its column without the _id suffix, and a
// one-to-many inverse relation on the referenced table named after the
// referencing table.
func ToCatalog(s *DatabaseSchema) *schema.Catalog {
	catalog := schema.NewCatalog()
	entities := make(map[string]*schema.Entity, len(s.Tables))

	for _, table := range s.Tables {
		e := &schema.Entity{Name: schema.PascalCase(table.Name), Table: table.Name}
		for _, col := range table.Columns {
			e.Columns = append(e.Columns, schema.Column{Property: schema.CamelCase(col.Name), Storage: col.Name})
		}
		for _, pk := range table.PrimaryKey {
			e.PrimaryKey = append(e.PrimaryKey, schema.CamelCase(pk))
		}
		entities[table.Name] = e
		catalog.Add(e)
	}

	for _, table := range s.Tables {
		owner := entities[table.Name]
		for _, fk := range table.ForeignKeys {
			target, ok := entities[fk.ReferencedTable]
			if !ok {
				continue
			}
			refs := fk.ReferencedColumns
			if len(refs) == 0 {
				if refTable, ok := s.Table(fk.ReferencedTable); ok {
					refs = refTable.PrimaryKey
				}
			}
			if len(refs) != len(fk.Columns) {
				continue
			}

			owning := schema.Relation{
				Property:    uniqueProperty(owner, relationName(fk, target)),
				Cardinality: schema.ManyToOne,
				Target:      target.Name,
				Name:        fk.Name,
				Fields:      camelAll(fk.Columns),
				References:  camelAll(refs),
			}
			owner.Relations = append(owner.Relations, owning)

			inverse := schema.Relation{
				Property:    uniqueProperty(target, schema.CamelCase(table.Name)),
				Cardinality: schema.OneToMany,
				Target:      owner.Name,
				Name:        fk.Name,
			}
			target.Relations = append(target.Relations, inverse)
		}
	}
	return catalog
}

func relationName(fk ForeignKey, target *schema.Entity) string {
	if len(fk.Columns) == 1 {
		col := strings.ToLower(fk.Columns[0])
		for _, suffix := range []string{"_id", "id"} {
			if strings.HasSuffix(col, suffix) && len(col) > len(suffix) {
				return schema.CamelCase(strings.TrimSuffix(fk.Columns[0][:len(col)-len(suffix)], "_"))
			}
		}
	}
	return schema.CamelCase(schema.SnakeCase(target.Name))
}

// uniqueProperty appends a numeric suffix until name collides with no
// column or relation of e.
func uniqueProperty(e *schema.Entity, name string) string {
	candidate := name
	for n := 2; ; n++ {
		_, isRel := e.Relation(candidate)
		if !e.HasColumn(candidate) && !isRel {
			return candidate
		}
		candidate = name + strconv.Itoa(n)
	}
}

func camelAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = schema.CamelCase(n)
	}
	return out
}
