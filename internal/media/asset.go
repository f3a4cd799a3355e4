// Package media holds the asset model shared by the download and upload
// passes.
package media

import "github.com/dpla/ingest-wikimedia/internal/storage"

// Status is the lifecycle state of one asset within a run. Transitions are
// monotonic: a terminal state is never revisited.
type Status string

const (
	StatusPending       Status = "pending"
	StatusStored        Status = "stored"
	StatusSkippedExists Status = "skipped-exists"
	StatusInvalidType   Status = "invalid-type"
	StatusSkipped       Status = "skipped"
	StatusFailed        Status = "failed"
	StatusPublished     Status = "published"
	StatusDuplicate     Status = "duplicate"
)

// Asset is one downloadable media file belonging to a record. Ordinal is
// 1-based and order-significant: it drives both the storage key and the page
// numbering in published titles, and is carried as data so that out-of-order
// completion of parallel downloads cannot corrupt it.
type Asset struct {
	Ordinal        int
	SourceURL      string
	DestinationKey string
	SizeBytes      int64
	ContentType    string
	SHA1           string
	Status         Status
}

// NewAssets builds the asset list for a record from its resolved source URLs,
// assigning ordinals in list order. Empty URL slots (unresolvable manifest
// canvases) are preserved so that page numbering stays aligned with the
// physical pages.
func NewAssets(partner, recordID string, urls []string) []*Asset {
	assets := make([]*Asset, 0, len(urls))
	for i, u := range urls {
		ordinal := i + 1
		assets = append(assets, &Asset{
			Ordinal:        ordinal,
			SourceURL:      u,
			DestinationKey: storage.MediaKey(partner, recordID, ordinal),
			Status:         StatusPending,
		})
	}
	return assets
}
