package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dpla/ingest-wikimedia/internal/config"
	"github.com/dpla/ingest-wikimedia/internal/dpla"
	"github.com/dpla/ingest-wikimedia/internal/eligibility"
	"github.com/dpla/ingest-wikimedia/internal/httpretry"
	"github.com/dpla/ingest-wikimedia/internal/pipeline"
	"github.com/dpla/ingest-wikimedia/internal/storage"
	"github.com/dpla/ingest-wikimedia/internal/tracker"
)

// runSetup holds everything a subcommand needs after startup validation.
// Any error here is fatal before the first record is touched.
type runSetup struct {
	cfg    config.Config
	logger zerolog.Logger
	deps   pipeline.Deps
	ids    []string
}

// newRunSetup performs the shared startup sequence: config, logger, partner
// check, ids file, denylist, provider directory, object store.
func newRunSetup(ctx context.Context, idsPath, partnerName, apiKey string) (*runSetup, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if apiKey != "" {
		cfg.API.Key = apiKey
	}
	logger := config.NewLogger(cfg.Logging)

	partners, err := config.LoadPartners(cfg.Partners)
	if err != nil {
		return nil, err
	}
	partner, err := config.FindPartner(partners, partnerName)
	if err != nil {
		return nil, err
	}

	ids, err := readIDsFile(idsPath)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no record ids in %s", idsPath)
	}

	denylist, err := eligibility.LoadDenylist(cfg.Denylist)
	if err != nil {
		return nil, err
	}

	bootstrapHTTP := httpretry.New(httpretry.WithLogger(logger))
	directory, err := dpla.LoadDirectory(ctx, bootstrapHTTP, cfg.Directory)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewS3Store(ctx, cfg.Storage.Bucket)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Store:      store,
		Directory:  directory,
		Denylist:   denylist,
		NewHTTP:    func() *httpretry.Client { return httpretry.New(httpretry.WithLogger(logger)) },
		APIBaseURL: cfg.API.BaseURL,
		APIKey:     cfg.API.Key,
		Track:      tracker.New(),
		Logger:     logger,
	}

	logger.Info().Str("partner", partner.Name).Int("records", len(ids)).Msg("startup complete")
	return &runSetup{cfg: cfg, logger: logger, deps: deps, ids: ids}, nil
}

// readIDsFile reads one record id per line; blanks and "#" comments are
// skipped.
func readIDsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading ids file: %w", err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ids file %s: %w", path, err)
	}
	return ids, nil
}

// printResults renders the per-record table and the tracker summary.
// Returns an error if any record failed, so the process exits non-zero.
func printResults(results []pipeline.RecordResult, track *tracker.Tracker) error {
	fmt.Printf("%-42s %-9s %-7s %-7s %-7s %-7s  %s\n",
		"RECORD", "ELIGIBLE", "ASSETS", "OK", "SKIP", "FAIL", "STATUS")

	anyError := false
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = fmt.Sprintf("error: %v", r.Err)
			anyError = true
		}
		ok := r.Stored + r.Uploaded
		skip := r.Skipped + r.Duplicate + r.InvalidType
		fmt.Printf("%-42s %-9v %-7d %-7d %-7d %-7d  %s\n",
			r.ID, r.Eligible, r.Assets, ok, skip, r.Failed, status)
	}

	fmt.Printf("---\n%s", track.Summary())

	if anyError {
		return fmt.Errorf("one or more records failed")
	}
	return nil
}
