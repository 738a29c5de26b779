package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Godswilldev/nest-dynamic-gql-qb/cli/internal/ui"
	"github.com/Godswilldev/nest-dynamic-gql-qb/runtime/client"
	"github.com/Godswilldev/nest-dynamic-gql-qb/schema/introspect"
)

var introspectCmd = &cobra.Command{
	Use:   "introspect",
	Short: "Read entity descriptors from a live database",
	Long: `Introspect the configured database and print the entities, columns and
relations a resolver would see if it were built from the database instead of
a schema file.`,
	Args: cobra.NoArgs,
	RunE: runIntrospect,
}

var introspectJSON bool

func init() {
	introspectCmd.Flags().BoolVar(&introspectJSON, "json", false, "Print descriptors as JSON")

	rootCmd.AddCommand(introspectCmd)
}

func runIntrospect(cmd *cobra.Command, args []string) error {
	provider, url := connectionInfo(cfg, nil)
	if url == "" {
		return fmt.Errorf("no database url: set database_url or DATABASE_URL")
	}

	db, err := client.Open(provider, url)
	if err != nil {
		return err
	}
	defer db.Close()

	catalog, err := introspect.Load(cmd.Context(), db.DB(), db.Provider())
	if err != nil {
		return fmt.Errorf("failed to introspect database: %w", err)
	}

	if introspectJSON {
		return ui.PrintJSON(catalog.Entities())
	}
	ui.PrintHeader("gqlqb", "Introspect")
	return printCatalog(catalog)
}
