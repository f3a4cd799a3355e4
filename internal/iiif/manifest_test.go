package iiif

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpla/ingest-wikimedia/internal/dpla"
	"github.com/dpla/ingest-wikimedia/internal/httpretry"
)

func manifestServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/manifest" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, body) //nolint:errcheck
	}))
}

func newTestResolver() *Resolver {
	return NewResolver(httpretry.New(), zerolog.Nop())
}

func TestResolveDirectMediaList(t *testing.T) {
	rec := &dpla.Record{
		ID:          "abc123",
		MediaURLs:   []string{"https://example.org/full1.tif", "https://example.org/full2.tif"},
		ManifestURL: "https://example.org/manifest-should-not-be-fetched",
	}

	urls, raw, err := newTestResolver().Resolve(context.Background(), rec)
	require.NoError(t, err)

	// Direct URLs pass through untouched, in order, without maximization.
	assert.Equal(t, rec.MediaURLs, urls)
	assert.Nil(t, raw)
}

func TestResolveNoManifest(t *testing.T) {
	rec := &dpla.Record{ID: "abc123"}
	_, _, err := newTestResolver().Resolve(context.Background(), rec)
	assert.True(t, errors.Is(err, ErrManifest))
}

func TestResolveMalformedManifestURL(t *testing.T) {
	rec := &dpla.Record{ID: "abc123", ManifestURL: "not a url"}
	_, _, err := newTestResolver().Resolve(context.Background(), rec)
	assert.True(t, errors.Is(err, ErrManifest))
}

func TestResolveV2Manifest(t *testing.T) {
	server := manifestServer(t, `{
		"@context": "http://iiif.io/api/presentation/2/context.json",
		"sequences": [{
			"canvases": [
				{"images": [{"resource": {
					"@id": "https://ids.example.edu/iiif/2/img001/full/full/0/default.jpg",
					"service": {"@id": "https://ids.example.edu/iiif/2/img001"}
				}}]},
				{"images": [{"resource": {"@id": "https://ids.example.edu/iiif/2/img002/info.json"}}]}
			]
		}]
	}`)
	defer server.Close()

	rec := &dpla.Record{ID: "abc123", ManifestURL: server.URL + "/manifest"}
	urls, raw, err := newTestResolver().Resolve(context.Background(), rec)
	require.NoError(t, err)

	require.Len(t, urls, 2)
	// The service base is preferred over the resource @id.
	assert.Equal(t, "https://ids.example.edu/iiif/2/img001/full/max/0/default.jpg", urls[0])
	assert.Equal(t, "https://ids.example.edu/iiif/2/img002/full/max/0/default.jpg", urls[1])
	assert.NotEmpty(t, raw)
}

func TestResolveV2CanvasWithoutImageKeepsPlaceholder(t *testing.T) {
	server := manifestServer(t, `{
		"@context": "http://iiif.io/api/presentation/2/context.json",
		"sequences": [{
			"canvases": [
				{"images": [{"resource": {"service": {"@id": "https://ids.example.edu/iiif/2/img001"}}}]},
				{"images": []},
				{"images": [{"resource": {"service": {"@id": "https://ids.example.edu/iiif/2/img003"}}}]}
			]
		}]
	}`)
	defer server.Close()

	rec := &dpla.Record{ID: "abc123", ManifestURL: server.URL + "/manifest"}
	urls, _, err := newTestResolver().Resolve(context.Background(), rec)
	require.NoError(t, err)

	// Page three stays at index two: the bad canvas holds its slot.
	require.Len(t, urls, 3)
	assert.Equal(t, "https://ids.example.edu/iiif/2/img001/full/max/0/default.jpg", urls[0])
	assert.Empty(t, urls[1])
	assert.Equal(t, "https://ids.example.edu/iiif/2/img003/full/max/0/default.jpg", urls[2])
}

func TestResolveV2MultipleSequencesYieldsNothing(t *testing.T) {
	server := manifestServer(t, `{
		"@context": "http://iiif.io/api/presentation/2/context.json",
		"sequences": [
			{"canvases": [{"images": [{"resource": {"service": {"@id": "https://ids.example.edu/iiif/2/a"}}}]}]},
			{"canvases": [{"images": [{"resource": {"service": {"@id": "https://ids.example.edu/iiif/2/b"}}}]}]}
		]
	}`)
	defer server.Close()

	rec := &dpla.Record{ID: "abc123", ManifestURL: server.URL + "/manifest"}
	urls, _, err := newTestResolver().Resolve(context.Background(), rec)
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestResolveV3Manifest(t *testing.T) {
	server := manifestServer(t, `{
		"@context": "http://iiif.io/api/presentation/3/context.json",
		"items": [
			{"items": [{"items": [{"body": {"id": "https://ids.example.edu/iiif/3/img001"}}]}]},
			{"items": [{"items": [{"body": {"id": "https://ids.example.edu/iiif/3/img002"}}]}]}
		]
	}`)
	defer server.Close()

	rec := &dpla.Record{ID: "abc123", ManifestURL: server.URL + "/manifest"}
	urls, _, err := newTestResolver().Resolve(context.Background(), rec)
	require.NoError(t, err)

	require.Len(t, urls, 2)
	assert.Equal(t, "https://ids.example.edu/iiif/3/img001/full/max/0/default.jpg", urls[0])
	assert.Equal(t, "https://ids.example.edu/iiif/3/img002/full/max/0/default.jpg", urls[1])
}

func TestResolveV3BadCanvasDiscardsWholeManifest(t *testing.T) {
	server := manifestServer(t, `{
		"@context": "http://iiif.io/api/presentation/3/context.json",
		"items": [
			{"items": [{"items": [{"body": {"id": "https://ids.example.edu/iiif/3/img001"}}]}]},
			{"items": []},
			{"items": [{"items": [{"body": {"id": "https://ids.example.edu/iiif/3/img003"}}]}]}
		]
	}`)
	defer server.Close()

	rec := &dpla.Record{ID: "abc123", ManifestURL: server.URL + "/manifest"}
	urls, _, err := newTestResolver().Resolve(context.Background(), rec)
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestResolveContextListPrefersV3(t *testing.T) {
	server := manifestServer(t, `{
		"@context": [
			"http://www.w3.org/ns/anno.jsonld",
			"http://iiif.io/api/presentation/3/context.json"
		],
		"items": [
			{"items": [{"items": [{"body": {"id": "https://ids.example.edu/iiif/3/img001"}}]}]}
		]
	}`)
	defer server.Close()

	rec := &dpla.Record{ID: "abc123", ManifestURL: server.URL + "/manifest"}
	urls, _, err := newTestResolver().Resolve(context.Background(), rec)
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.Equal(t, "https://ids.example.edu/iiif/3/img001/full/max/0/default.jpg", urls[0])
}

func TestResolveUnsupportedVersion(t *testing.T) {
	server := manifestServer(t, `{
		"@context": "http://iiif.io/api/presentation/9/context.json",
		"items": []
	}`)
	defer server.Close()

	rec := &dpla.Record{ID: "abc123", ManifestURL: server.URL + "/manifest"}
	_, raw, err := newTestResolver().Resolve(context.Background(), rec)
	assert.True(t, errors.Is(err, ErrUnsupportedVersion))
	assert.NotEmpty(t, raw)
}

func TestDetectVersion(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{"v2 string", `{"@context": "http://iiif.io/api/presentation/2/context.json"}`, 2, false},
		{"v3 string", `{"@context": "http://iiif.io/api/presentation/3/context.json"}`, 3, false},
		{"list with both prefers v3", `{"@context": ["http://iiif.io/api/presentation/2/context.json", "http://iiif.io/api/presentation/3/context.json"]}`, 3, false},
		{"unknown", `{"@context": "https://example.org/context.json"}`, 0, true},
		{"missing", `{}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := detectVersion([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
