// Package publish moves stored assets into the target media repository,
// deduplicating by content hash before every upload.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/dpla/ingest-wikimedia/internal/dpla"
	"github.com/dpla/ingest-wikimedia/internal/media"
	"github.com/dpla/ingest-wikimedia/internal/storage"
	"github.com/dpla/ingest-wikimedia/internal/tracker"
	"github.com/dpla/ingest-wikimedia/internal/wikimedia"
)

// Outcome classifies one publish attempt.
type Outcome string

const (
	OutcomeUploaded  Outcome = "uploaded"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
	OutcomeDryRun    Outcome = "dry-run"
)

// toleratedWarnings may be ignored and the upload resubmitted; every other
// warning aborts.
var toleratedWarnings = map[string]bool{
	"exists-normalized": true,
	"page-exists":       true,
	"was-deleted":       true,
}

// Uploader is the slice of the repository client the publisher needs.
type Uploader interface {
	FindBySHA1(ctx context.Context, sha1Hex string) (string, error)
	Upload(ctx context.Context, p wikimedia.UploadParams) error
}

// Publisher uploads stored assets. It never fetches from the origin source:
// payloads always come from the object store, and the content hash always
// comes from store metadata written at ingest time.
type Publisher struct {
	store  storage.Store
	wiki   Uploader
	track  *tracker.Tracker
	logger zerolog.Logger
}

// New constructs a Publisher.
func New(store storage.Store, wiki Uploader, track *tracker.Tracker, logger zerolog.Logger) *Publisher {
	return &Publisher{store: store, wiki: wiki, track: track, logger: logger}
}

// Publish uploads one stored asset. totalAssets controls whether the page
// title carries an ordinal suffix. The returned error is non-nil only for
// genuine failures; policy skips and duplicates are outcomes, not errors.
func (p *Publisher) Publish(ctx context.Context, rec *dpla.Record, a *media.Asset, totalAssets int, dryRun bool) (Outcome, error) {
	info, err := p.store.Head(ctx, a.DestinationKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			a.Status = media.StatusSkipped
			p.track.Increment(tracker.KindUploadSkipped)
			p.logger.Warn().Str("key", a.DestinationKey).Msg("publish: asset was never stored, skipping")
			return OutcomeSkipped, nil
		}
		p.track.Increment(tracker.KindUploadFailed)
		return OutcomeFailed, fmt.Errorf("publish: reading metadata for %s: %w", a.DestinationKey, err)
	}

	// Metadata written by an incomplete ingest disqualifies the object:
	// an empty payload or a missing hash means we cannot dedup safely.
	if reason := rejectReason(info); reason != "" {
		a.Status = media.StatusSkipped
		p.track.Increment(tracker.KindUploadSkipped)
		p.logger.Warn().Str("key", a.DestinationKey).Str("reason", reason).Msg("publish: skipping")
		return OutcomeSkipped, nil
	}

	ext := extensionFor(info.ContentType)
	if ext == "" {
		a.Status = media.StatusSkipped
		p.track.Increment(tracker.KindUploadSkipped)
		p.logger.Warn().Str("key", a.DestinationKey).Str("content_type", info.ContentType).
			Msg("publish: no file extension derivable, skipping")
		return OutcomeSkipped, nil
	}

	a.SHA1 = info.SHA1
	a.ContentType = info.ContentType
	a.SizeBytes = info.SizeBytes
	title := wikimedia.PageTitle(rec.Title, rec.ID, ext, a.Ordinal, totalAssets)

	// Primary defense against re-publishing: the repository's own
	// duplicate-by-hash index.
	existing, err := p.wiki.FindBySHA1(ctx, info.SHA1)
	if err != nil {
		p.track.Increment(tracker.KindUploadFailed)
		return OutcomeFailed, fmt.Errorf("publish: duplicate check for %s: %w", a.DestinationKey, err)
	}
	if existing != "" {
		a.Status = media.StatusDuplicate
		p.track.Increment(tracker.KindDuplicate)
		p.logger.Info().Str("key", a.DestinationKey).Str("existing", existing).
			Msg("publish: content hash already present at target")
		return OutcomeDuplicate, nil
	}

	if dryRun {
		p.track.Increment(tracker.KindDryRun)
		p.logger.Info().Str("key", a.DestinationKey).Str("title", title).Msg("publish: dry run, would upload")
		return OutcomeDryRun, nil
	}

	scratch, err := p.materialize(ctx, a.DestinationKey)
	if err != nil {
		p.track.Increment(tracker.KindUploadFailed)
		return OutcomeFailed, err
	}
	defer func() {
		scratch.Close()
		os.Remove(scratch.Name())
	}()

	params := wikimedia.UploadParams{
		Title:   title,
		File:    scratch,
		Text:    wikimedia.Description(rec),
		Comment: fmt.Sprintf("Uploading DPLA ID %s", rec.ID),
	}
	err = p.wiki.Upload(ctx, params)

	var warnErr *wikimedia.WarningsError
	if errors.As(err, &warnErr) && allTolerated(warnErr.Warnings) {
		if _, seekErr := scratch.Seek(0, io.SeekStart); seekErr != nil {
			p.track.Increment(tracker.KindUploadFailed)
			return OutcomeFailed, fmt.Errorf("publish: rewinding scratch file: %w", seekErr)
		}
		params.File = scratch
		params.IgnoreWarnings = true
		err = p.wiki.Upload(ctx, params)
	}

	if err != nil {
		outcome, label := Classify(err)
		switch outcome {
		case OutcomeDuplicate:
			a.Status = media.StatusDuplicate
			p.track.Increment(tracker.KindDuplicate)
		case OutcomeSkipped:
			a.Status = media.StatusSkipped
			p.track.Increment(tracker.KindUploadSkipped)
		default:
			a.Status = media.StatusFailed
			p.track.Increment(tracker.KindUploadFailed)
		}
		p.logger.Warn().Str("key", a.DestinationKey).Str("classification", label).Err(err).
			Msg("publish: upload did not complete")
		if outcome == OutcomeFailed {
			return outcome, fmt.Errorf("publish: upload of %s (%s): %w", a.DestinationKey, label, err)
		}
		return outcome, nil
	}

	a.Status = media.StatusPublished
	p.track.Increment(tracker.KindUploaded)
	p.track.Add(tracker.KindBytesUploaded, info.SizeBytes)
	p.logger.Info().Str("key", a.DestinationKey).Str("title", title).Msg("publish: uploaded")
	return OutcomeUploaded, nil
}

// rejectReason reports why stored metadata disqualifies an object, or "".
func rejectReason(info storage.ObjectInfo) string {
	for _, prefix := range []string{"text/html", "text/plain", "text/xml", "application/json", "application/xml"} {
		if strings.HasPrefix(info.ContentType, prefix) {
			return "invalid content type " + info.ContentType
		}
	}
	if info.SizeBytes == 0 {
		return "empty object"
	}
	if info.SHA1 == "" {
		return "no content hash metadata (incomplete ingest)"
	}
	return ""
}

// extensionFor derives a file extension (without dot) from a content type.
func extensionFor(contentType string) string {
	m := mimetype.Lookup(contentType)
	if m == nil {
		return ""
	}
	return strings.TrimPrefix(m.Extension(), ".")
}

// materialize copies the stored payload to a local scratch file for upload.
func (p *Publisher) materialize(ctx context.Context, key string) (*os.File, error) {
	body, _, err := p.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("publish: fetching %s from store: %w", key, err)
	}
	defer body.Close()

	scratch, err := os.CreateTemp("", "publish-media-*")
	if err != nil {
		return nil, fmt.Errorf("publish: creating scratch file: %w", err)
	}
	if _, err := io.Copy(scratch, body); err != nil {
		scratch.Close()
		os.Remove(scratch.Name())
		return nil, fmt.Errorf("publish: materializing %s: %w", key, err)
	}
	if _, err := scratch.Seek(0, io.SeekStart); err != nil {
		scratch.Close()
		os.Remove(scratch.Name())
		return nil, fmt.Errorf("publish: rewinding scratch file: %w", err)
	}
	return scratch, nil
}

func allTolerated(warnings []string) bool {
	for _, w := range warnings {
		if !toleratedWarnings[w] {
			return false
		}
	}
	return len(warnings) > 0
}

// uploadErrorMarkers maps known substrings of repository error codes to a
// human-readable classification and outcome, replacing raw provider error
// text with a small fixed taxonomy.
var uploadErrorMarkers = []struct {
	marker  string
	label   string
	outcome Outcome
}{
	{"fileexists-no-change", "no-change", OutcomeSkipped},
	{"fileexists-shared-forbidden", "file-exists-forbidden", OutcomeSkipped},
	{"fileexists-forbidden", "file-exists-forbidden", OutcomeSkipped},
	{"duplicate-archive", "duplicate", OutcomeDuplicate},
	{"duplicate", "duplicate", OutcomeDuplicate},
	{"filetype-banned", "banned-type", OutcomeFailed},
	{"filetype-badmime", "bad-mime", OutcomeFailed},
	{"verification-error", "bad-mime", OutcomeFailed},
	{"badfilename", "bad-title", OutcomeFailed},
}

// Classify maps an upload error onto the fixed taxonomy. Unknown errors are
// plain failures.
func Classify(err error) (Outcome, string) {
	var apiErr *wikimedia.UploadError
	var warnErr *wikimedia.WarningsError

	var haystack string
	switch {
	case errors.As(err, &apiErr):
		haystack = apiErr.Code + " " + apiErr.Info
	case errors.As(err, &warnErr):
		haystack = strings.Join(warnErr.Warnings, " ")
	default:
		haystack = err.Error()
	}
	haystack = strings.ToLower(haystack)

	for _, m := range uploadErrorMarkers {
		if strings.Contains(haystack, m.marker) {
			return m.outcome, m.label
		}
	}
	return OutcomeFailed, "error"
}
