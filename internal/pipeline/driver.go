// Package pipeline sequences eligibility, asset resolution, ingestion, and
// publication across a bounded worker pool. A failure in any record is
// classified, counted, and logged, and never aborts sibling records.
package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dpla/ingest-wikimedia/internal/dpla"
	"github.com/dpla/ingest-wikimedia/internal/eligibility"
	"github.com/dpla/ingest-wikimedia/internal/httpretry"
	"github.com/dpla/ingest-wikimedia/internal/iiif"
	"github.com/dpla/ingest-wikimedia/internal/ingest"
	"github.com/dpla/ingest-wikimedia/internal/media"
	"github.com/dpla/ingest-wikimedia/internal/metrics"
	"github.com/dpla/ingest-wikimedia/internal/publish"
	"github.com/dpla/ingest-wikimedia/internal/storage"
	"github.com/dpla/ingest-wikimedia/internal/tracker"
)

const (
	// DefaultWorkers is the record-level parallelism.
	DefaultWorkers = 4
	// assetWorkers bounds per-record asset parallelism.
	assetWorkers = 4
)

// Options control one pipeline run.
type Options struct {
	Partner   string
	Workers   int
	DryRun    bool
	Overwrite bool
}

// Deps are the run-wide collaborators. Store and Wiki are concurrent-safe
// and shared; NewHTTP builds a fresh retrying client for each worker so
// retry and connection state are never shared across goroutines.
type Deps struct {
	Store      storage.Store
	Wiki       publish.Uploader
	Directory  dpla.Directory
	Denylist   map[string]struct{}
	NewHTTP    func() *httpretry.Client
	APIBaseURL string
	APIKey     string
	Track      *tracker.Tracker
	Logger     zerolog.Logger
}

// RecordResult is the terminal state of one record within a run, in the
// style of one row of the end-of-run report. Err is set for per-record
// failures; per-asset failures only bump the counters.
type RecordResult struct {
	ID          string
	Eligible    bool
	Assets      int
	Stored      int
	Skipped     int
	InvalidType int
	Failed      int
	Uploaded    int
	Duplicate   int
	Err         error
}

// Driver runs the pipeline over a list of record ids.
type Driver struct {
	opts   Options
	deps   Deps
	runID  string
	logger zerolog.Logger
}

// NewDriver constructs a Driver. Every run gets its own id, threaded through
// all log lines.
func NewDriver(opts Options, deps Deps) *Driver {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	runID := uuid.NewString()
	return &Driver{
		opts:   opts,
		deps:   deps,
		runID:  runID,
		logger: deps.Logger.With().Str("run_id", runID).Str("partner", opts.Partner).Logger(),
	}
}

// RunID returns this run's identifier.
func (d *Driver) RunID() string { return d.runID }

// worker bundles the per-goroutine client instances.
type worker struct {
	api       *dpla.Client
	evaluator *eligibility.Evaluator
	resolver  *iiif.Resolver
	ingester  *ingest.Ingester
	publisher *publish.Publisher
}

func (d *Driver) newWorker() *worker {
	httpClient := d.deps.NewHTTP()
	return &worker{
		api:       dpla.NewClient(httpClient, d.deps.APIBaseURL, d.deps.APIKey),
		evaluator: eligibility.New(httpClient, d.deps.Denylist, d.logger),
		resolver:  iiif.NewResolver(httpClient, d.logger),
		ingester:  ingest.New(d.deps.Store, httpClient, d.deps.Track, d.logger),
		publisher: publish.New(d.deps.Store, d.deps.Wiki, d.deps.Track, d.logger),
	}
}

// Download runs the fetch-validate-store pass for every id.
func (d *Driver) Download(ctx context.Context, ids []string) []RecordResult {
	return d.run(ctx, ids, func(ctx context.Context, w *worker, id string) RecordResult {
		return d.downloadRecord(ctx, w, id)
	})
}

// Upload runs the dedup-check-and-publish pass for every id.
func (d *Driver) Upload(ctx context.Context, ids []string) []RecordResult {
	return d.run(ctx, ids, func(ctx context.Context, w *worker, id string) RecordResult {
		return d.uploadRecord(ctx, w, id)
	})
}

// run fans ids out over the worker pool. Worker goroutines never return
// errors: every per-record failure lands in its RecordResult.
func (d *Driver) run(ctx context.Context, ids []string, process func(context.Context, *worker, string) RecordResult) []RecordResult {
	results := make([]RecordResult, len(ids))
	jobs := make(chan int)

	var g errgroup.Group
	for range d.opts.Workers {
		g.Go(func() error {
			w := d.newWorker()
			for i := range jobs {
				results[i] = d.guarded(ctx, w, ids[i], process)
			}
			return nil
		})
	}

feed:
	for i := range ids {
		select {
		case jobs <- i:
		case <-ctx.Done():
			// Ids never handed to a worker still get an explicit terminal
			// result; otherwise the run report shows them as blank successes.
			for j := i; j < len(ids); j++ {
				results[j] = RecordResult{ID: ids[j], Err: ctx.Err()}
			}
			break feed
		}
	}
	close(jobs)
	g.Wait() //nolint:errcheck

	return results
}

// guarded runs one record and converts panics into tracked failures so a
// single bad record cannot take down the run.
func (d *Driver) guarded(ctx context.Context, w *worker, id string, process func(context.Context, *worker, string) RecordResult) (result RecordResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("record", id).Interface("panic", r).Msg("pipeline: record processing panicked")
			result = RecordResult{ID: id, Err: fmt.Errorf("panic: %v", r)}
			d.deps.Track.Increment(tracker.KindRecordsFailed)
			metrics.RecordsProcessed.WithLabelValues("failed").Inc()
		}
	}()
	return process(ctx, w, id)
}

func (d *Driver) downloadRecord(ctx context.Context, w *worker, id string) RecordResult {
	result := RecordResult{ID: id}

	rec, err := w.api.FetchRecord(ctx, id)
	if err != nil {
		return d.recordFailed(result, err)
	}

	provider, dataProvider, _ := d.deps.Directory.Lookup(rec.Provider, rec.DataProvider)
	checks := w.evaluator.Evaluate(ctx, rec, provider, dataProvider)
	if !checks.Eligible() {
		d.deps.Track.Increment(tracker.KindRecordsIneligible)
		metrics.RecordsProcessed.WithLabelValues("ineligible").Inc()
		d.logger.Info().Str("record", id).Msg("pipeline: record ineligible")
		return result
	}
	result.Eligible = true

	// Resolution must finish before any asset is dispatched: ordinal
	// assignment depends on manifest parse order.
	urls, rawManifest, err := w.resolver.Resolve(ctx, rec)
	if err != nil {
		return d.recordFailed(result, err)
	}
	if len(urls) == 0 {
		d.logger.Info().Str("record", id).Msg("pipeline: no assets resolved")
		d.deps.Track.Increment(tracker.KindRecordsProcessed)
		metrics.RecordsProcessed.WithLabelValues("empty").Inc()
		return result
	}

	// Side files are written once the URL list is known, before per-asset
	// work, so a partially failed run still leaves a replayable trail.
	if err := w.ingester.WriteSideFiles(ctx, d.opts.Partner, rec, urls, rawManifest); err != nil {
		return d.recordFailed(result, err)
	}

	assets := media.NewAssets(d.opts.Partner, rec.ID, urls)
	result.Assets = len(assets)

	if d.opts.DryRun {
		d.deps.Track.Add(tracker.KindDryRun, int64(len(assets)))
		d.deps.Track.Increment(tracker.KindRecordsProcessed)
		metrics.RecordsProcessed.WithLabelValues("dry_run").Inc()
		return result
	}

	var ag errgroup.Group
	ag.SetLimit(assetWorkers)
	for _, a := range assets {
		ag.Go(func() error {
			if err := w.ingester.IngestAsset(ctx, a, d.opts.Overwrite); err != nil {
				d.logger.Warn().Str("record", id).Int("ordinal", a.Ordinal).Err(err).
					Msg("pipeline: asset ingest failed")
			}
			return nil
		})
	}
	ag.Wait() //nolint:errcheck

	d.tallyAssets(&result, assets)
	d.deps.Track.Increment(tracker.KindRecordsProcessed)
	metrics.RecordsProcessed.WithLabelValues("ok").Inc()
	return result
}

func (d *Driver) uploadRecord(ctx context.Context, w *worker, id string) RecordResult {
	result := RecordResult{ID: id}

	rec, err := w.api.FetchRecord(ctx, id)
	if err != nil {
		return d.recordFailed(result, err)
	}

	provider, dataProvider, _ := d.deps.Directory.Lookup(rec.Provider, rec.DataProvider)
	checks := w.evaluator.Evaluate(ctx, rec, provider, dataProvider)
	if !checks.Eligible() {
		d.deps.Track.Increment(tracker.KindRecordsIneligible)
		metrics.RecordsProcessed.WithLabelValues("ineligible").Inc()
		return result
	}
	result.Eligible = true

	// Publication works strictly from what the download pass stored; the
	// file list side file carries the ordinal ordering.
	urls, err := d.readFileList(ctx, rec.ID)
	if err != nil {
		return d.recordFailed(result, err)
	}

	assets := media.NewAssets(d.opts.Partner, rec.ID, urls)
	result.Assets = len(assets)

	var ag errgroup.Group
	ag.SetLimit(assetWorkers)
	for _, a := range assets {
		ag.Go(func() error {
			outcome, err := w.publisher.Publish(ctx, rec, a, len(assets), d.opts.DryRun)
			if err != nil {
				d.logger.Warn().Str("record", id).Int("ordinal", a.Ordinal).Str("outcome", string(outcome)).
					Err(err).Msg("pipeline: asset publish failed")
			}
			return nil
		})
	}
	ag.Wait() //nolint:errcheck

	d.tallyAssets(&result, assets)
	d.deps.Track.Increment(tracker.KindRecordsProcessed)
	metrics.RecordsProcessed.WithLabelValues("ok").Inc()
	return result
}

func (d *Driver) recordFailed(result RecordResult, err error) RecordResult {
	result.Err = err
	d.deps.Track.Increment(tracker.KindRecordsFailed)
	metrics.RecordsProcessed.WithLabelValues("failed").Inc()
	d.logger.Warn().Str("record", result.ID).Err(err).Msg("pipeline: record failed")
	return result
}

func (d *Driver) tallyAssets(result *RecordResult, assets []*media.Asset) {
	for _, a := range assets {
		metrics.AssetOutcomes.WithLabelValues(string(a.Status)).Inc()
		switch a.Status {
		case media.StatusStored:
			result.Stored++
			metrics.BytesTransferred.WithLabelValues("stored").Add(float64(a.SizeBytes))
		case media.StatusSkippedExists, media.StatusSkipped:
			result.Skipped++
		case media.StatusInvalidType:
			result.InvalidType++
		case media.StatusFailed:
			result.Failed++
		case media.StatusPublished:
			result.Uploaded++
			metrics.BytesTransferred.WithLabelValues("uploaded").Add(float64(a.SizeBytes))
		case media.StatusDuplicate:
			result.Duplicate++
		}
	}
}

// readFileList loads the ordered asset-URL list stored by the download pass.
func (d *Driver) readFileList(ctx context.Context, recordID string) ([]string, error) {
	body, _, err := d.deps.Store.Get(ctx, storage.FileListKey(d.opts.Partner, recordID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("pipeline: record %s has no stored file list; run download first", recordID)
		}
		return nil, fmt.Errorf("pipeline: reading file list for %s: %w", recordID, err)
	}
	defer body.Close()

	var urls []string
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		urls = append(urls, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: reading file list for %s: %w", recordID, err)
	}
	// A trailing newline produces one empty final entry; it is not a page.
	for len(urls) > 0 && urls[len(urls)-1] == "" {
		urls = urls[:len(urls)-1]
	}
	return urls, nil
}
