package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set during build.
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "memoryctl",
	Short: "Persistent long-term memory for AI coding sessions",
	Long: `memoryctl stores, decays, deduplicates, and promotes memories
extracted from AI coding sessions.

Examples:
  memoryctl remember "the retry backoff must stay below the client timeout" --project myapp
  memoryctl search "retry backoff"
  memoryctl recent
  memoryctl stats
  memoryctl maintain
  memoryctl serve`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().String("log_level", "info", "log level (debug, info, warn, error)")
}
