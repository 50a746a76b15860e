package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "marketscan",
	Short: "marketscan - US equity price-move alert scanner",
	Long: `marketscan CLI

Scans configurable stock universes for large moves since the previous close
and serves the alerts over HTTP and websocket.

Usage:
  go run ./cmd/marketscan [command]

Examples:
  go run ./cmd/marketscan serve
  go run ./cmd/marketscan scan TECH_USA --ignore-hours
  go run ./cmd/marketscan universe list
  go run ./cmd/marketscan universe seed-sp100`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug|info|warn|error)")
}
