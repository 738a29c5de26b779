package resolver

import (
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/selection"
	"github.com/Godswilldev/nest-dynamic-gql-qb/registry"
	"github.com/Godswilldev/nest-dynamic-gql-qb/schema"
)

// TypeResolver names nested selection types from the descriptors: the type
// of a relation field is its target entity.
func TypeResolver(provider schema.Provider, reg *registry.Registry) selection.TypeResolver {
	return func(parentType, field string) string {
		entity, ok := reg.ResolveDescriptor(parentType)
		if !ok {
			if provider == nil {
				return ""
			}
			e, err := provider.Entity(parentType)
			if err != nil {
				return ""
			}
			entity = e
		}
		rel, ok := entity.Relation(reg.ResolveProperty(parentType, field))
		if !ok {
			return ""
		}
		return rel.Target
	}
}
