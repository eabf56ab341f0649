// Command importer loads GeoJSON cultural-site exports into the catalog.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "importer",
		Short:   "CultureHub catalog importer",
		Version: Version,
	}

	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(countCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
