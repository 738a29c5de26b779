package schema

import (
	"fmt"
	"sort"
)

// Provider resolves entity descriptors by name.
type Provider interface {
	Entity(name string) (*Entity, error)
}

// Catalog is an in-memory Provider keeping declaration order.
type Catalog struct {
	entities map[string]*Entity
	order    []string
	// Provider is the datasource provider declared by the schema, if any.
	Provider string
	// URL is the datasource url declared by the schema, if any.
	URL string
}

var _ Provider = (*Catalog)(nil)

// NewCatalog builds a catalog from entities. Later duplicates replace
// earlier ones.
func NewCatalog(entities ...*Entity) *Catalog {
	c := &Catalog{entities: make(map[string]*Entity)}
	for _, e := range entities {
		c.Add(e)
	}
	return c
}

// Add inserts or replaces an entity.
func (c *Catalog) Add(e *Entity) {
	if _, ok := c.entities[e.Name]; !ok {
		c.order = append(c.order, e.Name)
	}
	c.entities[e.Name] = e
}

// Entity implements Provider.
func (c *Catalog) Entity(name string) (*Entity, error) {
	if e, ok := c.entities[name]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, name)
}

// Entities returns every entity in declaration order.
func (c *Catalog) Entities() []*Entity {
	out := make([]*Entity, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.entities[name])
	}
	return out
}

// Names returns entity names sorted alphabetically.
func (c *Catalog) Names() []string {
	names := append([]string(nil), c.order...)
	sort.Strings(names)
	return names
}

// Len returns the number of entities.
func (c *Catalog) Len() int {
	return len(c.order)
}
