// Package cmd provides CLI commands for amsf-report.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile        string
	debug          bool
	registrationID string
	year           int
	metricsFile    string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "amsf-report",
	Short: "Prepare the AML/CFT real-estate survey for the AMSF",
	Long: `amsf-report computes the yearly AML/CFT survey of a real-estate agency
from its business records and produces the XBRL instance document.

It supports:
- Aggregating clients, transactions and controls into survey values
- Generating the XBRL instance document from stored values
- Validating documents against the regulator's validation service
- Auditing year-over-year changes

Example:
  amsf-report populate --org MC12345 --year 2025
  amsf-report generate --org MC12345 --year 2025
  amsf-report validate --org MC12345 --year 2025
  amsf-report compare --org MC12345 --year 2025`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Setup logging
		logLevel := slog.LevelInfo
		if debug {
			logLevel = slog.LevelDebug
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write prometheus metrics to this textfile on exit")

	// Add subcommands
	rootCmd.AddCommand(populateCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(elementsCmd)
	rootCmd.AddCommand(statsCmd)
}

// addSubmissionFlags registers the flags selecting one organization and year.
func addSubmissionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&registrationID, "org", "", "Organization registration ID (required)")
	cmd.Flags().IntVar(&year, "year", 0, "Reporting year (YYYY) (required)")

	cmd.MarkFlagRequired("org")
	cmd.MarkFlagRequired("year")
}

// Helper function to get config file path.
func getConfigFile() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "" // Will use default .env loading
}

// Helper function to handle errors and exit.
func exitOnError(err error, msg string) {
	if err != nil {
		slog.Error(msg, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}
