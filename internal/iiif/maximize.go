package iiif

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dpla/ingest-wikimedia/internal/httpretry"
)

// maxSuffix is the Image API request for the largest available rendition.
const maxSuffix = "full/max/0/default.jpg"

// grammar is one row of the maximization cascade: a URL shape and how to
// rewrite a match into a maximal-resolution request.
type grammar struct {
	name    string
	re      *regexp.Regexp
	rewrite func(m []string) string
}

func appendSuffix(m []string) string {
	return m[1] + "/" + maxSuffix
}

// grammars is evaluated in order, most specific shape first: a URL that is
// already a full Image API request must have only its trailing
// region/size/rotation/quality.format replaced, and a less specific grammar
// would otherwise mis-parse it as a bare identifier with extra path
// segments. New server layouts are added by appending a row.
var grammars = []grammar{
	{
		// Full Image API request: {base}/{region}/{size}/{rotation}/{quality}.{format}
		name: "image-request",
		re: regexp.MustCompile(
			`^(https?://.+?)/(?:full|square|\d+,\d+,\d+,\d+|pct:[\d.,]+)` + // region
				`/(?:full|max|\^?!?\d*,\d*|pct:[\d.]+)` + // size
				`/!?\d+(?:\.\d+)?` + // rotation
				`/(?:default|color|gray|bitonal|native)\.(?:jpe?g|png|gif|webp|tiff?|jp2)$`, // quality.format
		),
		rewrite: appendSuffix,
	},
	{
		// Image service info document: {base}/info.json
		name:    "info-json",
		re:      regexp.MustCompile(`^(https?://.+)/info\.json$`),
		rewrite: appendSuffix,
	},
	{
		// Bare image identifier with zero to three prefix path segments.
		name:    "identifier",
		re:      regexp.MustCompile(`^(https?://[^/?#]+(?:/[^/?#]+){1,4})/?$`),
		rewrite: appendSuffix,
	},
}

// Maximizer rewrites image-service URLs to request the largest available
// rendition. Best effort: total failure yields an empty string, never an
// error.
type Maximizer struct {
	http   *httpretry.Client
	logger zerolog.Logger
}

// NewMaximizer constructs a Maximizer. The HTTP client is used only for the
// HEAD verification of the last-resort fallback.
func NewMaximizer(httpClient *httpretry.Client, logger zerolog.Logger) *Maximizer {
	return &Maximizer{http: httpClient, logger: logger}
}

// Maximize rewrites rawURL to explicitly request the maximal rendition. The
// grammar cascade is tried in order and the first match wins. When no
// grammar matches, the suffix is appended verbatim and the result kept only
// if a HEAD request confirms it resolves to an image.
func (x *Maximizer) Maximize(ctx context.Context, rawURL string) string {
	if rawURL == "" {
		return ""
	}
	if parsed, err := url.Parse(rawURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		x.logger.Warn().Str("url", rawURL).Msg("iiif: cannot maximize malformed URL")
		return ""
	}

	for _, g := range grammars {
		if m := g.re.FindStringSubmatch(rawURL); m != nil {
			maximized := g.rewrite(m)
			x.logger.Debug().Str("url", rawURL).Str("maximized", maximized).Str("grammar", g.name).
				Msg("iiif: maximized")
			return maximized
		}
	}

	// Last resort: append the suffix and verify the server actually serves
	// an image there.
	candidate := strings.TrimRight(rawURL, "/") + "/" + maxSuffix
	resp, err := x.http.Head(ctx, candidate)
	if err != nil {
		x.logger.Warn().Str("url", rawURL).Err(err).Msg("iiif: maximize fallback probe failed")
		return ""
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		x.logger.Warn().Str("url", rawURL).Int("status", resp.StatusCode).
			Msg("iiif: maximize fallback rejected")
		return ""
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		x.logger.Warn().Str("url", rawURL).Str("content_type", resp.Header.Get("Content-Type")).
			Msg("iiif: maximize fallback is not an image")
		return ""
	}
	return candidate
}
