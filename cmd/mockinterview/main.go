// mockinterview serves and runs interview audio transcription through an
// external whisper engine.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0-dev"

var (
	// Global flags
	configFile string
	verbose    bool
	skipChecks bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mockinterview",
		Short: "Transcribe mock interview answers with a local whisper engine",
		Long: `mockinterview hands recorded interview answers to an external transcription
engine (a Python whisper script) and reports a classified outcome.

The engine reads one JSON request on stdin and writes one JSON response on stdout.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (default: .mockinterview.json or .mockinterview.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&skipChecks, "skip-checks", false, "Skip dependency checks")

	// Add commands
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(transcribeCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(historyCmd())

	return rootCmd
}
