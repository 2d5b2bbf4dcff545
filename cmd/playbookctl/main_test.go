package main

import (
	"github.com/spf13/cobra"
)

// newTestRootCmd builds a root command carrying the persistent flags every
// subcommand reads, without registering os.Exit-on-error behavior.
func newTestRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{Use: "playbookctl"}
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	return rootCmd
}
