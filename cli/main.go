// Command gqlqb compiles, explains and runs entity requests.
package main

import (
	"os"

	"github.com/Godswilldev/nest-dynamic-gql-qb/cli/commands"
	"github.com/Godswilldev/nest-dynamic-gql-qb/cli/internal/ui"
)

func main() {
	if err := commands.Execute(); err != nil {
		ui.PrintError("%v", err)
		os.Exit(1)
	}
}
