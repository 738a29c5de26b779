// Package commands implements the gqlqb CLI.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/Godswilldev/nest-dynamic-gql-qb/cli/internal/config"
	"github.com/Godswilldev/nest-dynamic-gql-qb/cli/internal/version"
	"github.com/Godswilldev/nest-dynamic-gql-qb/internal/debug"
)

var rootCmd = &cobra.Command{
	Use:   "gqlqb",
	Short: "Compile GraphQL selections into single joined SQL queries",
	Long: `gqlqb compiles the fields a GraphQL request selects on an entity into
one SELECT with LEFT JOINs for its singular relations, runs it and folds
the flat rows back into nested objects.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

var (
	cfgFile    string
	schemaFlag string
	debugFlag  bool

	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default .gqlqb.yaml)")
	rootCmd.PersistentFlags().StringVarP(&schemaFlag, "schema", "s", "", "Path to schema file")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	if schemaFlag != "" {
		c.SchemaPath = schemaFlag
	}
	if debugFlag {
		c.Debug = true
	}
	debug.Init(c.Debug)

	if err := version.Check(version.Version, c.RequireVersion); err != nil {
		return err
	}
	cfg = c
	return nil
}
