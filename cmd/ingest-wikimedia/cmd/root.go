package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	logLevel  string
	logFormat string

	rootCmd = &cobra.Command{
		Use:   "ingest-wikimedia",
		Short: "DPLA to Wikimedia media ingestion pipeline",
		Long: `ingest-wikimedia moves media assets from the DPLA aggregator into
Wikimedia Commons: for each catalog record it resolves the record's asset
URLs, fetches and content-addresses the assets into S3, then publishes them
to Commons, skipping work already done and refusing ineligible records.

Typical workflow:
  ingest-wikimedia download ids.txt --partner bpl
  ingest-wikimedia upload ids.txt --partner bpl`,
	}
)

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, console) (default: json)")

	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(versionCmd)
}
