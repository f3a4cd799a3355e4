package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dpla/ingest-wikimedia/internal/email"
	"github.com/dpla/ingest-wikimedia/internal/pipeline"
)

var (
	downloadPartner   string
	downloadDryRun    bool
	downloadOverwrite bool
	downloadWorkers   int
	downloadAPIKey    string
)

var downloadCmd = &cobra.Command{
	Use:   "download <ids-file>",
	Short: "Fetch, validate, and store media for the given record ids",
	Long: `Read record ids from the given file, evaluate each record's eligibility,
resolve its asset URLs (directly or via its IIIF manifest), and store each
asset into S3 content-addressed by SHA-1. Work already stored is skipped
unless --overwrite is given.

Examples:
  ingest-wikimedia download ids.txt --partner bpl
  ingest-wikimedia download ids.txt --partner bpl --dry-run
  ingest-wikimedia download ids.txt --partner bpl --overwrite --workers 8`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		setup, err := newRunSetup(ctx, args[0], downloadPartner, downloadAPIKey)
		if err != nil {
			return err
		}

		workers := downloadWorkers
		if workers == 0 {
			workers = setup.cfg.Workers
		}
		driver := pipeline.NewDriver(pipeline.Options{
			Partner:   downloadPartner,
			Workers:   workers,
			DryRun:    downloadDryRun,
			Overwrite: downloadOverwrite,
		}, setup.deps)

		results := driver.Download(ctx, setup.ids)

		sendSummary(ctx, setup, fmt.Sprintf("download %s (run %s)", downloadPartner, driver.RunID()))
		return printResults(results, setup.deps.Track)
	},
}

// sendSummary emails the tracker summary; failures are logged, never fatal.
func sendSummary(ctx context.Context, setup *runSetup, subject string) {
	svc, err := email.NewService(email.Config{
		Enabled: setup.cfg.Email.Enabled,
		APIKey:  setup.cfg.Email.APIKey,
		From:    setup.cfg.Email.From,
		To:      setup.cfg.Email.To,
	}, setup.logger)
	if err != nil {
		setup.logger.Warn().Err(err).Msg("summary email misconfigured")
		return
	}
	if err := svc.SendRunSummary(ctx, subject, setup.deps.Track.Summary()); err != nil {
		setup.logger.Warn().Err(err).Msg("summary email failed")
	}
}

func init() {
	downloadCmd.Flags().StringVar(&downloadPartner, "partner", "", "partner name (required)")
	downloadCmd.Flags().BoolVar(&downloadDryRun, "dry-run", false, "resolve assets and write side files without storing media")
	downloadCmd.Flags().BoolVar(&downloadOverwrite, "overwrite", false, "re-fetch assets even when already stored")
	downloadCmd.Flags().IntVar(&downloadWorkers, "workers", 0, "record-level parallelism (default from INGEST_WORKERS)")
	downloadCmd.Flags().StringVar(&downloadAPIKey, "api-key", "", "DPLA API key (overrides DPLA_API_KEY)")
	downloadCmd.MarkFlagRequired("partner") //nolint:errcheck
}
