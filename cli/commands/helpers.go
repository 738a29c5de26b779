package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/Godswilldev/nest-dynamic-gql-qb/cli/internal/config"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/builder"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/compiler"
	"github.com/Godswilldev/nest-dynamic-gql-qb/registry"
	"github.com/Godswilldev/nest-dynamic-gql-qb/resolver"
	"github.com/Godswilldev/nest-dynamic-gql-qb/schema"
)

// loadCatalog parses the schema file at path.
func loadCatalog(path string) (*schema.Catalog, error) {
	data, err := afero.ReadFile(config.AppFs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return schema.ParseString(path, string(data))
}

// loadRegistry registers every entity of catalog, applying the options file
// at path when one is configured.
func loadRegistry(catalog *schema.Catalog, path string) (*registry.Registry, error) {
	var opts registry.Options
	if path != "" {
		data, err := afero.ReadFile(config.AppFs, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read registry file: %w", err)
		}
		if opts, err = registry.ParseOptions(data); err != nil {
			return nil, err
		}
	}

	b := registry.NewBuilder()
	if err := b.AutoRegister(catalog, opts); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// connectionInfo picks the provider and url from the config, then from the
// schema datasource. The provider is guessed from the url as a last resort.
func connectionInfo(c *config.Config, catalog *schema.Catalog) (string, string) {
	url := c.DatabaseURL
	if url == "" && catalog != nil {
		url = catalog.URL
	}
	provider := c.Provider
	if provider == "" && catalog != nil {
		provider = catalog.Provider
	}
	if provider == "" {
		provider = detectProvider(url)
	}
	return provider, url
}

func detectProvider(url string) string {
	switch {
	case strings.HasPrefix(url, "mysql://"), strings.Contains(url, "@tcp("):
		return "mysql"
	case strings.HasPrefix(url, "file:"), strings.HasSuffix(url, ".db"), url == ":memory:":
		return "sqlite"
	default:
		return "postgresql"
	}
}

// readArg returns s, or the contents of the file it names when it starts
// with '@'.
func readArg(s string) (string, error) {
	if !strings.HasPrefix(s, "@") {
		return s, nil
	}
	data, err := afero.ReadFile(config.AppFs, s[1:])
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parseWhere(s string) (compiler.Filter, error) {
	if s == "" {
		return nil, nil
	}
	var f compiler.Filter
	if err := json.Unmarshal([]byte(s), &f); err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	return f, nil
}

// parseOrder reads terms of the form property[:asc|desc].
func parseOrder(terms []string) []resolver.Order {
	out := make([]resolver.Order, 0, len(terms))
	for _, t := range terms {
		prop, dir, _ := strings.Cut(t, ":")
		out = append(out, resolver.Order{Property: prop, Direction: builder.ParseDirection(dir)})
	}
	return out
}

type markdown struct {
	strings.Builder
}

func (m *markdown) line(format string, args ...any) {
	fmt.Fprintf(&m.Builder, format, args...)
	m.WriteByte('\n')
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
