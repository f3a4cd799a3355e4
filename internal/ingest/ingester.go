// Package ingest downloads, validates, content-addresses, and stores one
// asset at a time, plus the per-record side files.
package ingest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/dpla/ingest-wikimedia/internal/dpla"
	"github.com/dpla/ingest-wikimedia/internal/httpretry"
	"github.com/dpla/ingest-wikimedia/internal/media"
	"github.com/dpla/ingest-wikimedia/internal/storage"
	"github.com/dpla/ingest-wikimedia/internal/tracker"
)

// invalidTypePrefixes are sniffed content types that indicate the origin
// served an error or directory page instead of media. Such downloads are
// discarded without storing.
var invalidTypePrefixes = []string{
	"text/html",
	"text/plain",
	"text/xml",
	"application/json",
	"application/xml",
	"application/xhtml+xml",
}

// Ingester persists assets and side files for records. One Ingester per
// worker: it wraps the worker's own retrying HTTP client.
type Ingester struct {
	store  storage.Store
	http   *httpretry.Client
	track  *tracker.Tracker
	logger zerolog.Logger
}

// New constructs an Ingester.
func New(store storage.Store, httpClient *httpretry.Client, track *tracker.Tracker, logger zerolog.Logger) *Ingester {
	return &Ingester{store: store, http: httpClient, track: track, logger: logger}
}

// IngestAsset fetches, validates, and stores one asset. The returned error
// is fatal to this asset only; sibling assets of the same record proceed
// independently. On return the asset's Status, SizeBytes, ContentType, and
// SHA1 reflect the outcome.
func (g *Ingester) IngestAsset(ctx context.Context, a *media.Asset, overwrite bool) error {
	if a.SourceURL == "" {
		a.Status = media.StatusFailed
		g.track.Increment(tracker.KindFailed)
		return fmt.Errorf("ingest: asset %d has no source URL", a.Ordinal)
	}

	// Idempotence fast path: no network fetch when the destination already
	// holds a live object and overwriting was not requested.
	if !overwrite {
		info, err := g.store.Head(ctx, a.DestinationKey)
		if err == nil {
			a.Status = media.StatusSkippedExists
			a.SizeBytes = info.SizeBytes
			a.ContentType = info.ContentType
			a.SHA1 = info.SHA1
			g.track.Increment(tracker.KindSkippedExists)
			g.logger.Debug().Str("key", a.DestinationKey).Msg("ingest: already stored, skipping")
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			a.Status = media.StatusFailed
			g.track.Increment(tracker.KindFailed)
			return fmt.Errorf("ingest: checking %s: %w", a.DestinationKey, err)
		}
	}

	scratch, size, sha1Hex, err := g.download(ctx, a.SourceURL)
	if err != nil {
		a.Status = media.StatusFailed
		g.track.Increment(tracker.KindFailed)
		return err
	}
	defer func() {
		scratch.Close()
		os.Remove(scratch.Name())
	}()

	// Content type comes from the downloaded bytes, never from the server's
	// declared header.
	sniffed, err := mimetype.DetectFile(scratch.Name())
	if err != nil {
		a.Status = media.StatusFailed
		g.track.Increment(tracker.KindFailed)
		return fmt.Errorf("ingest: sniffing %q: %w", a.SourceURL, err)
	}
	contentType := sniffed.String()
	for _, prefix := range invalidTypePrefixes {
		if strings.HasPrefix(contentType, prefix) {
			a.Status = media.StatusInvalidType
			g.track.Increment(tracker.KindInvalidType)
			g.logger.Warn().Str("url", a.SourceURL).Str("content_type", contentType).
				Msg("ingest: discarding non-media payload")
			return nil
		}
	}

	a.SizeBytes = size
	a.ContentType = contentType
	a.SHA1 = sha1Hex

	// An object already at the path with a matching hash is already synced;
	// re-uploading it would only churn versions.
	if existing, err := g.store.Head(ctx, a.DestinationKey); err == nil && existing.SHA1 == sha1Hex {
		a.Status = media.StatusSkippedExists
		g.track.Increment(tracker.KindSkippedExists)
		g.logger.Debug().Str("key", a.DestinationKey).Msg("ingest: identical object already stored")
		return nil
	}

	if _, err := scratch.Seek(0, io.SeekStart); err != nil {
		a.Status = media.StatusFailed
		g.track.Increment(tracker.KindFailed)
		return fmt.Errorf("ingest: rewinding scratch file: %w", err)
	}
	if err := g.store.Put(ctx, a.DestinationKey, scratch, size, contentType, sha1Hex); err != nil {
		a.Status = media.StatusFailed
		g.track.Increment(tracker.KindFailed)
		return fmt.Errorf("ingest: storing %s: %w", a.DestinationKey, err)
	}

	a.Status = media.StatusStored
	g.track.Increment(tracker.KindStored)
	g.track.Add(tracker.KindBytesStored, size)
	g.logger.Info().Str("key", a.DestinationKey).Int64("bytes", size).Str("content_type", contentType).
		Msg("ingest: stored")
	return nil
}

// download streams the source URL to a scratch file, hashing as it copies.
// The caller owns the returned file.
func (g *Ingester) download(ctx context.Context, sourceURL string) (*os.File, int64, string, error) {
	resp, err := g.http.Get(ctx, sourceURL)
	if err != nil {
		return nil, 0, "", fmt.Errorf("ingest: fetching %q: %w", sourceURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, 0, "", fmt.Errorf("ingest: fetching %q: status %d", sourceURL, resp.StatusCode)
	}

	scratch, err := os.CreateTemp("", "ingest-media-*")
	if err != nil {
		return nil, 0, "", fmt.Errorf("ingest: creating scratch file: %w", err)
	}

	digest := sha1.New()
	size, err := io.Copy(scratch, io.TeeReader(resp.Body, digest))
	if err != nil {
		scratch.Close()
		os.Remove(scratch.Name())
		return nil, 0, "", fmt.Errorf("ingest: downloading %q: %w", sourceURL, err)
	}

	return scratch, size, hex.EncodeToString(digest.Sum(nil)), nil
}

// WriteSideFiles persists the raw record document, the ordered asset-URL
// list, and (when a manifest was fetched) the raw manifest. They are written
// as soon as the URL list is known, regardless of per-asset outcomes, so a
// later run can rediscover previously stored assets even after a partial
// failure. Writes are idempotent: identical content at the same key.
func (g *Ingester) WriteSideFiles(ctx context.Context, partner string, rec *dpla.Record, urls []string, rawManifest []byte) error {
	if err := g.putBytes(ctx, storage.MetadataKey(partner, rec.ID), rec.Raw, "application/json"); err != nil {
		return err
	}
	fileList := strings.Join(urls, "\n") + "\n"
	if err := g.putBytes(ctx, storage.FileListKey(partner, rec.ID), []byte(fileList), "text/plain"); err != nil {
		return err
	}
	if len(rawManifest) > 0 {
		if err := g.putBytes(ctx, storage.ManifestKey(partner, rec.ID), rawManifest, "application/json"); err != nil {
			return err
		}
	}
	return nil
}

func (g *Ingester) putBytes(ctx context.Context, key string, data []byte, contentType string) error {
	digest := sha1.Sum(data)
	err := g.store.Put(ctx, key, strings.NewReader(string(data)), int64(len(data)), contentType, hex.EncodeToString(digest[:]))
	if err != nil {
		return fmt.Errorf("ingest: writing side file %s: %w", key, err)
	}
	return nil
}
