package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spigell/skillmatch/internal/embedding"
)

// Actual version can be specified in build command.
var version = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("%s version: %s (built-in embedding model: %s)\n", app, version, embedding.LocalModel)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
