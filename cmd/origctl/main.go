// Origctl controls OriG-family wireless earbuds over Bluetooth SPP.
//
// It runs a control daemon that holds the earbud connection and serves an
// event bridge, and offers client commands that talk to the daemon.
//
// Usage:
//
//	origctl [command] [flags]
//
// See 'origctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/origctl/internal/config"
	"github.com/muurk/origctl/internal/logging"
	"github.com/muurk/origctl/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "origctl",
	Short: "OriG earbud control utility",
	Long: `Control OriG, YUANDAO and NiceHCK wireless earbuds from the command line.

'origctl run' connects to the earbuds and keeps the connection open, serving
an event bridge on a local websocket. The other commands talk to that bridge
to show status or change settings such as ANC, EQ and game mode.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); default from "+logging.LogLevelEnvVar+" or preferences")

	rootCmd.AddCommand(versionCmd)
}

// initLogging picks the level from the flag, then the environment, then preferences
func initLogging() error {
	level := logLevel
	if level == "" && os.Getenv(logging.LogLevelEnvVar) == "" {
		if registry, err := config.LoadRegistry(); err == nil {
			level = registry.Preferences.LogLevel
		}
	}
	return logging.Initialize(level)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("origctl %s\n", version.Full())
	},
}
