package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Godswilldev/nest-dynamic-gql-qb/cli/internal/ui"
	"github.com/Godswilldev/nest-dynamic-gql-qb/registry"
	"github.com/Godswilldev/nest-dynamic-gql-qb/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate [schema-path]",
	Short: "Validate a schema file",
	Long: `Validate a schema file and the registry options.

This command will:
- Parse the schema file
- Check relation fields and primary keys
- Apply the registry options
- Print the entities and their relations`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	schemaPath := cfg.SchemaPath
	if len(args) > 0 {
		schemaPath = args[0]
	}

	ui.PrintHeader("gqlqb", "Validate Schema")

	catalog, err := loadCatalog(schemaPath)
	if err != nil {
		return err
	}
	reg, err := loadRegistry(catalog, cfg.RegistryPath)
	if err != nil {
		return err
	}

	absPath, _ := filepath.Abs(schemaPath)
	ui.PrintSuccess("Schema is valid: %s", absPath)
	if catalog.Provider != "" {
		ui.PrintKeyValue("provider", catalog.Provider)
	}

	if err := printCatalog(catalog); err != nil {
		return err
	}

	ui.PrintSection("Registered types")
	ui.PrintList(describeRegistry(reg))
	return nil
}

// printCatalog prints an entity table followed by every relation.
func printCatalog(catalog *schema.Catalog) error {
	ui.PrintSection(fmt.Sprintf("Entities (%d)", catalog.Len()))
	rows := make([][]string, 0, catalog.Len())
	for _, e := range catalog.Entities() {
		rows = append(rows, []string{
			e.Name,
			e.Table,
			strings.Join(e.PrimaryKey, ", "),
			fmt.Sprint(len(e.Columns)),
			fmt.Sprint(len(e.Relations)),
		})
	}
	if err := ui.PrintTable([]string{"Entity", "Table", "Primary key", "Columns", "Relations"}, rows); err != nil {
		return err
	}

	var relations []string
	for _, e := range catalog.Entities() {
		for _, r := range e.Relations {
			line := fmt.Sprintf("%s.%s → %s (%s)", e.Name, r.Property, r.Target, r.Cardinality)
			if !r.Cardinality.IsSingular() {
				line += ", not joined"
			}
			relations = append(relations, line)
		}
	}
	if len(relations) > 0 {
		ui.PrintSection("Relations")
		ui.PrintList(relations)
	}
	return nil
}

// describeRegistry lists the registered type names of reg.
func describeRegistry(reg *registry.Registry) []string {
	names := reg.TypeNames()
	out := make([]string, 0, len(names))
	for _, n := range names {
		e, _ := reg.ResolveDescriptor(n)
		line := fmt.Sprintf("%s → %s", n, e.Name)
		if m := reg.FieldMappings(n); len(m) > 0 {
			line += fmt.Sprintf(" (%d field mappings)", len(m))
		}
		out = append(out, line)
	}
	return out
}
