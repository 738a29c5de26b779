package registry

import (
	"fmt"
	"sort"

	"sigs.k8s.io/yaml"

	"github.com/Godswilldev/nest-dynamic-gql-qb/schema"
)

// ObjectSuffix is appended to an entity name to form its default output
// type name.
const ObjectSuffix = "Object"

// Options customizes AutoRegister.
type Options struct {
	// Overrides maps an external type name to the entity it stands for.
	Overrides map[string]string `json:"overrides,omitempty"`
	// FieldMap maps type name -> external field -> entity property.
	FieldMap map[string]map[string]string `json:"fieldMap,omitempty"`
}

// ParseOptions decodes Options from YAML or JSON.
func ParseOptions(data []byte) (Options, error) {
	var opts Options
	if err := yaml.UnmarshalStrict(data, &opts); err != nil {
		return Options{}, fmt.Errorf("failed to parse registry options: %w", err)
	}
	return opts, nil
}

// AutoRegister registers every entity of catalog under its own name and
// under its name with ObjectSuffix, then applies overrides and field
// mappings. Overrides and mappings are applied in sorted key order.
func (b *Builder) AutoRegister(catalog *schema.Catalog, opts Options) error {
	for _, e := range catalog.Entities() {
		b.RegisterType(e.Name, e)
		b.RegisterType(e.Name+ObjectSuffix, e)
	}

	for _, typeName := range sortedKeys(opts.Overrides) {
		entity, err := catalog.Entity(opts.Overrides[typeName])
		if err != nil {
			return fmt.Errorf("override %s: %w", typeName, err)
		}
		b.RegisterType(typeName, entity)
	}

	for _, typeName := range sortedKeys(opts.FieldMap) {
		fields := opts.FieldMap[typeName]
		for _, external := range sortedKeys(fields) {
			b.SetFieldMapping(typeName, external, fields[external])
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
