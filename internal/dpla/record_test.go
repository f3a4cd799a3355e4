package dpla

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecordStringFields(t *testing.T) {
	data := []byte(`{
		"id": "abc123",
		"rights": "http://rightsstatements.org/vocab/NoC-US/1.0/",
		"provider": {"name": "Digital Commonwealth"},
		"dataProvider": "Boston Public Library",
		"isShownAt": "https://example.org/item/abc123",
		"iiifManifest": "https://example.org/iiif/abc123/manifest",
		"sourceResource": {
			"title": "A Photograph",
			"creator": "Jane Smith",
			"date": {"displayDate": "circa 1900"}
		}
	}`)

	rec, err := ParseRecord(data)
	require.NoError(t, err)

	assert.Equal(t, "abc123", rec.ID)
	assert.Equal(t, "Digital Commonwealth", rec.Provider)
	assert.Equal(t, "Boston Public Library", rec.DataProvider)
	assert.Equal(t, "http://rightsstatements.org/vocab/NoC-US/1.0/", rec.RightsURI)
	assert.Equal(t, "https://example.org/iiif/abc123/manifest", rec.ManifestURL)
	assert.Equal(t, "A Photograph", rec.Title)
	assert.Equal(t, "Jane Smith", rec.Creator)
	assert.Equal(t, "circa 1900", rec.Date)
	assert.Empty(t, rec.MediaURLs)
}

func TestParseRecordListFields(t *testing.T) {
	data := []byte(`{
		"id": "abc123",
		"rights": ["http://creativecommons.org/publicdomain/zero/1.0/", "other"],
		"provider": [{"name": "Ohio Digital Network"}],
		"dataProvider": ["Cleveland Public Library"],
		"mediaMaster": ["https://example.org/1.jpg", "https://example.org/2.jpg"],
		"sourceResource": {
			"title": ["First Title", "Second Title"],
			"creator": ["Jane Smith", "John Doe"]
		}
	}`)

	rec, err := ParseRecord(data)
	require.NoError(t, err)

	assert.Equal(t, "http://creativecommons.org/publicdomain/zero/1.0/", rec.RightsURI)
	assert.Equal(t, "Ohio Digital Network", rec.Provider)
	assert.Equal(t, "Cleveland Public Library", rec.DataProvider)
	assert.Equal(t, []string{"https://example.org/1.jpg", "https://example.org/2.jpg"}, rec.MediaURLs)
	assert.Equal(t, "First Title", rec.Title)
	assert.Equal(t, "Jane Smith; John Doe", rec.Creator)
}

func TestParseRecordSourceResourceRightsFallback(t *testing.T) {
	data := []byte(`{
		"id": "abc123",
		"sourceResource": {
			"rights": "http://creativecommons.org/licenses/by/4.0/"
		}
	}`)

	rec, err := ParseRecord(data)
	require.NoError(t, err)
	assert.Equal(t, "http://creativecommons.org/licenses/by/4.0/", rec.RightsURI)
}

func TestParseRecordMissingID(t *testing.T) {
	_, err := ParseRecord([]byte(`{"sourceResource": {"title": "no id"}}`))
	assert.Error(t, err)
}

func TestParseRecordInvalidJSON(t *testing.T) {
	_, err := ParseRecord([]byte(`{not json`))
	assert.Error(t, err)
}

func TestSetDerivedManifest(t *testing.T) {
	rec, err := ParseRecord([]byte(`{"id": "abc123", "isShownAt": "https://example.org/cdm/ref/collection/p15/id/99"}`))
	require.NoError(t, err)
	require.Empty(t, rec.ManifestURL)

	rec.SetDerivedManifest("https://example.org/iiif/info/p15/99/manifest.json")

	assert.Equal(t, "https://example.org/iiif/info/p15/99/manifest.json", rec.ManifestURL)

	// The raw document carries the derived URL so the stored side file does too.
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Raw, &doc))
	assert.Equal(t, "https://example.org/iiif/info/p15/99/manifest.json", doc["iiifManifest"])
	assert.Equal(t, "abc123", doc["id"])
}
