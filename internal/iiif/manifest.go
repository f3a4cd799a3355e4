// Package iiif resolves a record's ordered asset URLs: directly from the
// record's media list when one is present, otherwise by fetching and parsing
// its IIIF Presentation manifest (v2 or v3) and maximizing each discovered
// image-service URL.
package iiif

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/dpla/ingest-wikimedia/internal/dpla"
	"github.com/dpla/ingest-wikimedia/internal/httpretry"
)

var (
	// ErrManifest means a declared manifest could not be fetched or decoded.
	ErrManifest = errors.New("iiif: manifest error")
	// ErrUnsupportedVersion means the manifest's context matches neither
	// supported Presentation API version. There is no silent fallback.
	ErrUnsupportedVersion = errors.New("iiif: unsupported manifest version")
)

// Known Presentation API context identifiers.
const (
	ContextV2 = "http://iiif.io/api/presentation/2/context.json"
	ContextV3 = "http://iiif.io/api/presentation/3/context.json"
)

// maxManifestBytes caps a fetched manifest document.
const maxManifestBytes = 32 * 1024 * 1024

// Resolver discovers ordered asset URLs for records.
type Resolver struct {
	http      *httpretry.Client
	maximizer *Maximizer
	logger    zerolog.Logger
}

// NewResolver constructs a Resolver sharing the given worker-local HTTP
// client.
func NewResolver(httpClient *httpretry.Client, logger zerolog.Logger) *Resolver {
	return &Resolver{
		http:      httpClient,
		maximizer: NewMaximizer(httpClient, logger),
		logger:    logger,
	}
}

// Resolve returns the record's asset URLs in page order. When the record
// carries a direct media list it is returned unchanged and no manifest is
// fetched. Otherwise the declared manifest is fetched and parsed; rawManifest
// then holds the manifest bytes for audit storage.
//
// Unresolvable entries surface as empty strings (v2) or an empty overall
// list (v3) rather than being dropped, so that ordinals stay aligned with
// physical pages.
func (r *Resolver) Resolve(ctx context.Context, rec *dpla.Record) (urls []string, rawManifest []byte, err error) {
	if len(rec.MediaURLs) > 0 {
		return rec.MediaURLs, nil, nil
	}

	if rec.ManifestURL == "" {
		return nil, nil, fmt.Errorf("%w: record %s declares no manifest", ErrManifest, rec.ID)
	}
	parsed, parseErr := url.Parse(rec.ManifestURL)
	if parseErr != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, nil, fmt.Errorf("%w: malformed manifest URL %q", ErrManifest, rec.ManifestURL)
	}

	body, fetchErr := r.http.GetBytes(ctx, rec.ManifestURL, maxManifestBytes)
	if fetchErr != nil {
		return nil, nil, fmt.Errorf("%w: fetching %q: %v", ErrManifest, rec.ManifestURL, fetchErr)
	}

	version, versionErr := detectVersion(body)
	if versionErr != nil {
		return nil, body, versionErr
	}

	var ids []string
	switch version {
	case 2:
		ids = r.parseV2(body, rec.ID)
	case 3:
		ids = r.parseV3(body, rec.ID)
	}

	urls = make([]string, len(ids))
	for i, id := range ids {
		if id == "" {
			continue
		}
		urls[i] = r.maximizer.Maximize(ctx, id)
	}
	return urls, body, nil
}

// detectVersion inspects the manifest's @context field, which may be a single
// string or a list of strings, and returns the matching Presentation API
// major version.
func detectVersion(body []byte) (int, error) {
	var envelope struct {
		Context json.RawMessage `json:"@context"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0, fmt.Errorf("%w: decoding manifest: %v", ErrManifest, err)
	}

	var contexts []string
	var single string
	if err := json.Unmarshal(envelope.Context, &single); err == nil {
		contexts = []string{single}
	} else if err := json.Unmarshal(envelope.Context, &contexts); err != nil {
		return 0, fmt.Errorf("%w: unreadable @context", ErrUnsupportedVersion)
	}

	for _, c := range contexts {
		if c == ContextV3 {
			return 3, nil
		}
	}
	for _, c := range contexts {
		if c == ContextV2 {
			return 2, nil
		}
	}
	return 0, fmt.Errorf("%w: @context %v", ErrUnsupportedVersion, contexts)
}

// v2 manifest shapes. The image resource may carry its image-service base
// under a nested service object; that base is preferred because it is what
// maximization rewrites.
type manifestV2 struct {
	Sequences []struct {
		Canvases []struct {
			Images []struct {
				Resource struct {
					ID      string `json:"@id"`
					Service struct {
						ID string `json:"@id"`
					} `json:"service"`
				} `json:"resource"`
			} `json:"images"`
		} `json:"canvases"`
	} `json:"sequences"`
}

// parseV2 walks sequences/canvases/images/resource. Exactly one sequence is
// expected; more than one makes page order ambiguous, so the whole manifest
// yields nothing rather than a guess. Every canvas contributes exactly one
// slot, empty when its image identifier cannot be resolved, preserving page
// alignment.
func (r *Resolver) parseV2(body []byte, recordID string) []string {
	var m manifestV2
	if err := json.Unmarshal(body, &m); err != nil {
		r.logger.Warn().Str("record", recordID).Err(err).Msg("iiif: v2 manifest does not decode")
		return nil
	}
	if len(m.Sequences) != 1 {
		r.logger.Warn().Str("record", recordID).Int("sequences", len(m.Sequences)).
			Msg("iiif: ambiguous v2 manifest, expected exactly one sequence")
		return nil
	}

	canvases := m.Sequences[0].Canvases
	ids := make([]string, len(canvases))
	for i, canvas := range canvases {
		if len(canvas.Images) == 0 {
			r.logger.Warn().Str("record", recordID).Int("canvas", i+1).
				Msg("iiif: v2 canvas has no image, keeping placeholder")
			continue
		}
		resource := canvas.Images[0].Resource
		switch {
		case resource.Service.ID != "":
			ids[i] = resource.Service.ID
		case resource.ID != "":
			ids[i] = resource.ID
		default:
			r.logger.Warn().Str("record", recordID).Int("canvas", i+1).
				Msg("iiif: v2 image resource has no identifier, keeping placeholder")
		}
	}
	return ids
}

// v3 manifest shape: items[*].items[0].items[0].body.id.
type manifestV3 struct {
	Items []struct {
		Items []struct {
			Items []struct {
				Body struct {
					ID string `json:"id"`
				} `json:"body"`
			} `json:"items"`
		} `json:"items"`
	} `json:"items"`
}

// parseV3 walks the v3 canvas structure. Any structural mismatch for any
// canvas aborts the whole parse and yields an empty list: with one entry
// unverifiable the page ordering of the rest cannot be trusted.
func (r *Resolver) parseV3(body []byte, recordID string) []string {
	var m manifestV3
	if err := json.Unmarshal(body, &m); err != nil {
		r.logger.Warn().Str("record", recordID).Err(err).Msg("iiif: v3 manifest does not decode")
		return nil
	}

	ids := make([]string, len(m.Items))
	for i, canvas := range m.Items {
		if len(canvas.Items) == 0 || len(canvas.Items[0].Items) == 0 {
			r.logger.Warn().Str("record", recordID).Int("canvas", i+1).
				Msg("iiif: v3 canvas missing annotation structure, discarding manifest")
			return nil
		}
		id := canvas.Items[0].Items[0].Body.ID
		if id == "" {
			r.logger.Warn().Str("record", recordID).Int("canvas", i+1).
				Msg("iiif: v3 annotation body has no id, discarding manifest")
			return nil
		}
		ids[i] = id
	}
	return ids
}
