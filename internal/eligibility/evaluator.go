// Package eligibility decides whether a catalog record may be published to
// the target repository.
package eligibility

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dpla/ingest-wikimedia/internal/dpla"
	"github.com/dpla/ingest-wikimedia/internal/httpretry"
)

// CheckResult carries every individual check outcome. All checks are
// evaluated even after one fails so operators can see the full picture in
// the logs, not just the first failing rule.
type CheckResult struct {
	RightsOK      bool
	UploadAllowed bool
	WikidataOK    bool
	HasAssets     bool
	NotDenylisted bool
}

// Eligible reports whether every check passed.
func (r CheckResult) Eligible() bool {
	return r.RightsOK && r.UploadAllowed && r.WikidataOK && r.HasAssets && r.NotDenylisted
}

// Evaluator applies the publication eligibility rules. The HTTP client is
// only used for the derived-manifest HEAD probe.
type Evaluator struct {
	http     *httpretry.Client
	denylist map[string]struct{}
	logger   zerolog.Logger
}

// New constructs an Evaluator. denylist may be nil.
func New(httpClient *httpretry.Client, denylist map[string]struct{}, logger zerolog.Logger) *Evaluator {
	return &Evaluator{http: httpClient, denylist: denylist, logger: logger}
}

// Evaluate runs all five checks against the record and its provider
// directory entries. It has no side effects beyond possibly discovering a
// manifest URL and caching it on the record (see probeDerivedManifest).
func (e *Evaluator) Evaluate(ctx context.Context, rec *dpla.Record, provider, dataProvider dpla.ProviderInfo) CheckResult {
	result := CheckResult{
		RightsOK:      dpla.RightsCategoryFor(rec.RightsURI) == dpla.CategoryUnlimited,
		UploadAllowed: provider.UploadAllowed || dataProvider.UploadAllowed,
		WikidataOK:    provider.WikidataID != "" && dataProvider.WikidataID != "",
		HasAssets:     e.hasAssets(ctx, rec),
		NotDenylisted: !e.denied(rec.ID),
	}

	if !result.RightsOK {
		e.logger.Info().Str("record", rec.ID).Str("rights", rec.RightsURI).
			Msg("eligibility: rights category does not permit re-use")
	}
	if !result.UploadAllowed {
		e.logger.Info().Str("record", rec.ID).Str("provider", rec.Provider).Str("data_provider", rec.DataProvider).
			Msg("eligibility: neither provider nor data provider allows upload")
	}
	if !result.WikidataOK {
		e.logger.Info().Str("record", rec.ID).
			Msg("eligibility: provider or data provider missing wikidata id")
	}
	if !result.HasAssets {
		e.logger.Info().Str("record", rec.ID).
			Msg("eligibility: record exposes no media list or manifest")
	}
	if !result.NotDenylisted {
		e.logger.Info().Str("record", rec.ID).
			Msg("eligibility: record is denylisted")
	}

	return result
}

func (e *Evaluator) denied(id string) bool {
	_, ok := e.denylist[id]
	return ok
}

// hasAssets reports whether the record exposes at least one asset: a direct
// media list, a declared manifest, or a derivable one.
func (e *Evaluator) hasAssets(ctx context.Context, rec *dpla.Record) bool {
	if len(rec.MediaURLs) > 0 || rec.ManifestURL != "" {
		return true
	}
	return e.probeDerivedManifest(ctx, rec)
}

// contentDMPattern matches the isShownAt URL shape of CONTENTdm collection
// platforms, from which a IIIF manifest URL can be synthesized.
var contentDMPattern = regexp.MustCompile(`^/cdm/ref/collection/([^/]+)/id/([^/]+)/?$`)

// probeDerivedManifest attempts to synthesize a manifest URL from a known
// collection-platform path pattern and verifies it with a HEAD request. On
// success the URL is cached back onto the record for downstream reuse.
func (e *Evaluator) probeDerivedManifest(ctx context.Context, rec *dpla.Record) bool {
	if rec.IsShownAt == "" {
		return false
	}
	shownAt, err := url.Parse(rec.IsShownAt)
	if err != nil || shownAt.Host == "" {
		return false
	}
	m := contentDMPattern.FindStringSubmatch(shownAt.Path)
	if m == nil {
		return false
	}

	candidate := fmt.Sprintf("%s://%s/iiif/info/%s/%s/manifest.json", shownAt.Scheme, shownAt.Host, m[1], m[2])

	resp, err := e.http.Head(ctx, candidate)
	if err != nil {
		e.logger.Debug().Str("record", rec.ID).Str("url", candidate).Err(err).
			Msg("eligibility: derived manifest probe failed")
		return false
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e.logger.Debug().Str("record", rec.ID).Str("url", candidate).Int("status", resp.StatusCode).
			Msg("eligibility: derived manifest probe rejected")
		return false
	}

	e.logger.Info().Str("record", rec.ID).Str("url", candidate).
		Msg("eligibility: derived manifest from isShownAt")
	rec.SetDerivedManifest(candidate)
	return true
}

// LoadDenylist reads a file of excluded record ids, one per line. Blank
// lines and lines starting with "#" are skipped. A missing denylist path is
// a startup error, not an empty set.
func LoadDenylist(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("eligibility: opening denylist %s: %w", path, err)
	}
	defer f.Close()

	denylist := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		denylist[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("eligibility: reading denylist %s: %w", path, err)
	}
	return denylist, nil
}
