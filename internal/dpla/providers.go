package dpla

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dpla/ingest-wikimedia/internal/httpretry"
)

// ProviderInfo describes one provider or data-provider institution in the
// provider directory.
type ProviderInfo struct {
	WikidataID    string                  `json:"Wikidata"`
	UploadAllowed bool                    `json:"upload"`
	Institutions  map[string]ProviderInfo `json:"institutions,omitempty"`
}

// Directory maps provider display names to their directory entries. It is
// loaded once per run and read-only afterwards, so concurrent lookups from
// workers need no locking.
type Directory map[string]ProviderInfo

// LoadDirectory fetches and parses the provider directory document.
func LoadDirectory(ctx context.Context, httpClient *httpretry.Client, url string) (Directory, error) {
	body, err := httpClient.GetBytes(ctx, url, 0)
	if err != nil {
		return nil, fmt.Errorf("dpla: fetching provider directory: %w", err)
	}
	return ParseDirectory(body)
}

// ParseDirectory decodes a provider directory document.
func ParseDirectory(data []byte) (Directory, error) {
	var dir Directory
	if err := json.Unmarshal(data, &dir); err != nil {
		return nil, fmt.Errorf("dpla: parsing provider directory: %w", err)
	}
	return dir, nil
}

// Lookup resolves the directory entries for a record's provider and data
// provider display names. The data provider is searched first among the
// provider's nested institutions, then at the top level. Missing entries come
// back as zero values with ok=false.
func (d Directory) Lookup(provider, dataProvider string) (prov ProviderInfo, dataProv ProviderInfo, ok bool) {
	prov, provFound := d[provider]
	if provFound {
		if inst, found := prov.Institutions[dataProvider]; found {
			return prov, inst, true
		}
	}
	if top, found := d[dataProvider]; found {
		return prov, top, provFound
	}
	return prov, ProviderInfo{}, false
}
