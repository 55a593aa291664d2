package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "x-agent",
	Short: "Autonomous posting and engagement agent for X",
	Long: `x-agent watches news and research feeds, queues generated posts,
answers mentions and engages with relevant accounts on X. Configuration is
read from the environment.`,
	SilenceUsage: true,
}

func init() {
	// Without a subcommand the agent runs.
	rootCmd.Args = cobra.NoArgs
	rootCmd.RunE = runCmd.RunE
	rootCmd.AddCommand(runCmd, migrateCmd, introCmd, hashPasswordCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
