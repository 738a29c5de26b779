package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Godswilldev/nest-dynamic-gql-qb/cli/internal/ui"
	"github.com/Godswilldev/nest-dynamic-gql-qb/cli/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionCheck != "" {
			if err := version.Check(version.Version, versionCheck); err != nil {
				return err
			}
			ui.PrintSuccess("%s satisfies %s", version.Version, versionCheck)
			return nil
		}
		fmt.Fprintln(ui.Out, version.Get().FullString())
		return nil
	},
}

var versionCheck string

func init() {
	versionCmd.Flags().StringVar(&versionCheck, "check", "", "Exit with an error unless the version satisfies this constraint")

	rootCmd.AddCommand(versionCmd)
}
