package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Godswilldev/nest-dynamic-gql-qb/cli/internal/ui"
	"github.com/Godswilldev/nest-dynamic-gql-qb/internal/debug"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/executor"
	"github.com/Godswilldev/nest-dynamic-gql-qb/resolver"
	"github.com/Godswilldev/nest-dynamic-gql-qb/runtime/client"
	"github.com/Godswilldev/nest-dynamic-gql-qb/telemetry"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Resolve a request against the database",
	Long: `Compile a request like compile does, run it against the configured
database and print the nested objects as JSON.`,
	Example: `  gqlqb query -e User -q '{ users { email profile { bio } } }' --take 10`,
	Args:    cobra.NoArgs,
	RunE:    runQuery,
}

var (
	queryFlags planFlags
	queryStats bool
)

func init() {
	queryFlags.bind(queryCmd)
	queryCmd.Flags().BoolVar(&queryStats, "stats", false, "Print timings and skip counts after the result")

	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	params, err := queryFlags.params()
	if err != nil {
		return err
	}

	catalog, err := loadCatalog(cfg.SchemaPath)
	if err != nil {
		return err
	}
	provider, url := connectionInfo(cfg, catalog)
	if url == "" {
		return fmt.Errorf("no database url: set database_url, DATABASE_URL or the schema datasource")
	}

	db, err := client.Open(provider, url)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Connect(cmd.Context()); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	exec := db.Executor()
	exec.Use(executor.LoggingMiddleware(debug.Logger()))

	stats := telemetry.Default()
	_, svc, err := newService(resolver.WithFetcher(exec), resolver.WithTelemetry(stats))
	if err != nil {
		return err
	}

	objects, err := svc.ResolveEntity(cmd.Context(), params)
	if err != nil {
		return err
	}
	if err := ui.PrintJSON(objects); err != nil {
		return err
	}
	if queryStats {
		return ui.PrintJSON(stats.Snapshot())
	}
	return nil
}
