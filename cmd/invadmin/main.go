// invadmin is a CLI client for editing the entities of an inventory/accounting REST backend.
package main

import (
	"fmt"
	"os"

	"github.com/n1rna/invadmin/internal/command"
	"github.com/n1rna/invadmin/internal/logger"
)

var version = "dev"

func main() {
	rootCmd := command.NewRootCommand(version)

	err := rootCmd.Execute()
	_ = logger.GetLogger().Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
