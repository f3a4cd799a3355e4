package storage

import (
	"fmt"
	"strings"
)

// Side-file names written once per record alongside its media objects.
const (
	metadataFile = "dpla-map.json"
	manifestFile = "iiif.json"
	fileListFile = "file-list.txt"
)

// ItemPrefix returns the key prefix holding everything stored for one record.
// The first four characters of the record id are spread across directory
// levels so that listings fan out evenly. Short ids (under four characters)
// fall back to a flat layout under the partner prefix.
func ItemPrefix(partner, id string) string {
	if len(id) < 4 {
		return fmt.Sprintf("%s/images/%s", partner, id)
	}
	return fmt.Sprintf("%s/images/%c/%c/%c/%c/%s", partner, id[0], id[1], id[2], id[3], id)
}

// MediaKey returns the destination key for one asset. It is a pure function
// of (partner, id, ordinal): re-running the pipeline for the same record and
// ordinal always yields the same key, which is what makes ingestion
// idempotent.
func MediaKey(partner, id string, ordinal int) string {
	return fmt.Sprintf("%s/%d_%s", ItemPrefix(partner, id), ordinal, id)
}

// MetadataKey returns the key of the raw aggregator record side file.
func MetadataKey(partner, id string) string {
	return ItemPrefix(partner, id) + "/" + metadataFile
}

// ManifestKey returns the key of the raw IIIF manifest side file.
func ManifestKey(partner, id string) string {
	return ItemPrefix(partner, id) + "/" + manifestFile
}

// FileListKey returns the key of the ordered asset-URL list side file.
func FileListKey(partner, id string) string {
	return ItemPrefix(partner, id) + "/" + fileListFile
}

// IsSideFile reports whether key names one of the per-record side files
// rather than a media object.
func IsSideFile(key string) bool {
	return strings.HasSuffix(key, "/"+metadataFile) ||
		strings.HasSuffix(key, "/"+manifestFile) ||
		strings.HasSuffix(key, "/"+fileListFile)
}
