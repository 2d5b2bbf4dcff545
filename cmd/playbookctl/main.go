// Command playbookctl dispatches the three context-injection hooks a
// coding-assistant host calls around a session, plus operator utilities
// over the playbook file itself.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "playbookctl",
		Short: "Playbook engine - learned behavior context for coding agents",
		Long: `playbookctl maintains a per-project playbook of Key Points (KPTs):
short, scored, tagged lessons distilled from prior sessions and injected
back into future ones.

It is normally invoked by a host's hook dispatcher ('playbookctl hook ...'),
reading JSON on stdin and writing a result to stdout. The remaining
commands are operator utilities over the playbook file directly.`,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")

	rootCmd.AddCommand(
		newVersionCmd(),
		newHookCmd(),
		newShowCmd(),
		newValidateCmd(),
		newBackupCmd(),
		newRestoreCmd(),
		newMCPServerCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "playbookctl version %s\n", version)
		},
	}
}
