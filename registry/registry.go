// Package registry maps external type names to entity descriptors and
// external field names to entity properties.
//
// A Builder collects registrations during startup. Build snapshots them into
// a Registry that is never mutated afterwards, so lookups need no locking.
package registry

import (
	"sort"
	"sync"

	"github.com/Godswilldev/nest-dynamic-gql-qb/schema"
)

// Builder accumulates type registrations and field mappings.
type Builder struct {
	mu       sync.Mutex
	types    map[string]*schema.Entity
	mappings map[string]map[string]string
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		types:    make(map[string]*schema.Entity),
		mappings: make(map[string]map[string]string),
	}
}

// RegisterType associates name with an entity. Later calls for the same name
// replace earlier ones.
func (b *Builder) RegisterType(name string, entity *schema.Entity) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.types[name] = entity
	return b
}

// SetFieldMapping maps an external field of typeName to an entity property.
// Later calls for the same pair replace earlier ones.
func (b *Builder) SetFieldMapping(typeName, externalField, property string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.mappings[typeName]
	if !ok {
		m = make(map[string]string)
		b.mappings[typeName] = m
	}
	m[externalField] = property
	return b
}

// Build returns an immutable snapshot of the registrations so far. The
// Builder stays usable and later changes do not affect the snapshot.
func (b *Builder) Build() *Registry {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := &Registry{
		types:    make(map[string]*schema.Entity, len(b.types)),
		mappings: make(map[string]map[string]string, len(b.mappings)),
	}
	for name, e := range b.types {
		r.types[name] = e
	}
	for typeName, m := range b.mappings {
		cp := make(map[string]string, len(m))
		for k, v := range m {
			cp[k] = v
		}
		r.mappings[typeName] = cp
	}
	return r
}

// Registry is a read-only view of type registrations and field mappings.
// The zero value and nil are empty registries.
type Registry struct {
	types    map[string]*schema.Entity
	mappings map[string]map[string]string
}

// Empty returns a registry with no registrations.
func Empty() *Registry {
	return &Registry{}
}

// ResolveProperty returns the property mapped to externalField on typeName,
// or externalField unchanged when no mapping exists.
func (r *Registry) ResolveProperty(typeName, externalField string) string {
	if r == nil {
		return externalField
	}
	if prop, ok := r.mappings[typeName][externalField]; ok {
		return prop
	}
	return externalField
}

// ResolveDescriptor returns the entity registered under name.
func (r *Registry) ResolveDescriptor(name string) (*schema.Entity, bool) {
	if r == nil {
		return nil, false
	}
	e, ok := r.types[name]
	return e, ok
}

// TypeNames returns registered type names in sorted order.
func (r *Registry) TypeNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldMappings returns a copy of the mappings registered for typeName.
func (r *Registry) FieldMappings(typeName string) map[string]string {
	if r == nil {
		return nil
	}
	out := make(map[string]string, len(r.mappings[typeName]))
	for k, v := range r.mappings[typeName] {
		out[k] = v
	}
	return out
}
