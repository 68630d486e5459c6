// Package main provides the entry point for the buildtracker CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/buildtracker/cmd/buildtracker/commands"
	"github.com/Sumatoshi-tech/buildtracker/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "buildtracker",
		Short: "Build size tracking dashboard and query API",
		Long: `Buildtracker records build artifact sizes and compares them across revisions.

Commands:
  serve     Serve the query API and the dashboard
  import    Load recorded build files into the datastore
  compare   Compare builds in the terminal
  watch     Poll the query API and redraw the comparison`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String(commands.ConfigFlag, "", "config file (default: buildtracker.yaml in ., ./config or /etc/buildtracker)")

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewImportCommand())
	rootCmd.AddCommand(commands.NewCompareCommand())
	rootCmd.AddCommand(commands.NewWatchCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "buildtracker %s\n", version.String())
		},
	}
}
