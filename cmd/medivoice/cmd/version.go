package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set via -ldflags at build time.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the medivoice version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("medivoice %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
