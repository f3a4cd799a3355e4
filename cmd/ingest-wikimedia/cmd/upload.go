package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dpla/ingest-wikimedia/internal/pipeline"
	"github.com/dpla/ingest-wikimedia/internal/wikimedia"
)

var (
	uploadPartner string
	uploadDryRun  bool
	uploadWorkers int
	uploadAPIKey  string
)

var uploadCmd = &cobra.Command{
	Use:     "upload <ids-file>",
	Aliases: []string{"publish"},
	Short:   "Publish stored media for the given record ids to Wikimedia Commons",
	Long: `Read record ids from the given file and, for each asset stored by a prior
download run, check Commons for a duplicate by content hash and upload it
with a deterministic page title and description document.

Examples:
  ingest-wikimedia upload ids.txt --partner bpl
  ingest-wikimedia upload ids.txt --partner bpl --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		setup, err := newRunSetup(ctx, args[0], uploadPartner, uploadAPIKey)
		if err != nil {
			return err
		}

		wikiCfg := setup.cfg.Wiki
		if !uploadDryRun && (wikiCfg.Username == "" || wikiCfg.Password == "") {
			return fmt.Errorf("WIKI_USERNAME and WIKI_PASSWORD are required for upload")
		}
		wiki := wikimedia.NewClient(wikiCfg.APIURL, wikiCfg.Username, wikiCfg.Password,
			wikimedia.WithLogger(setup.logger))
		if !uploadDryRun {
			if err := wiki.LogIn(ctx); err != nil {
				return err
			}
		}
		setup.deps.Wiki = wiki

		workers := uploadWorkers
		if workers == 0 {
			workers = setup.cfg.Workers
		}
		driver := pipeline.NewDriver(pipeline.Options{
			Partner: uploadPartner,
			Workers: workers,
			DryRun:  uploadDryRun,
		}, setup.deps)

		results := driver.Upload(ctx, setup.ids)

		sendSummary(ctx, setup, fmt.Sprintf("upload %s (run %s)", uploadPartner, driver.RunID()))
		return printResults(results, setup.deps.Track)
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadPartner, "partner", "", "partner name (required)")
	uploadCmd.Flags().BoolVar(&uploadDryRun, "dry-run", false, "check duplicates and report without uploading")
	uploadCmd.Flags().IntVar(&uploadWorkers, "workers", 0, "record-level parallelism (default from INGEST_WORKERS)")
	uploadCmd.Flags().StringVar(&uploadAPIKey, "api-key", "", "DPLA API key (overrides DPLA_API_KEY)")
	uploadCmd.MarkFlagRequired("partner") //nolint:errcheck
}
