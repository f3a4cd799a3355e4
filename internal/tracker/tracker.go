// Package tracker accumulates per-run outcome counters. One Tracker is
// created per pipeline invocation and shared by every worker; all access is
// serialized under a single mutex.
package tracker

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Kind identifies an outcome bucket.
type Kind string

const (
	// Download outcomes.
	KindStored        Kind = "stored"
	KindSkippedExists Kind = "skipped_exists"
	KindInvalidType   Kind = "invalid_type"
	KindFailed        Kind = "failed"
	KindBytesStored   Kind = "bytes_stored"

	// Upload outcomes.
	KindUploaded      Kind = "uploaded"
	KindDuplicate     Kind = "duplicate"
	KindUploadSkipped Kind = "upload_skipped"
	KindUploadFailed  Kind = "upload_failed"
	KindBytesUploaded Kind = "bytes_uploaded"

	// Record-level outcomes.
	KindRecordsProcessed  Kind = "records_processed"
	KindRecordsIneligible Kind = "records_ineligible"
	KindRecordsFailed     Kind = "records_failed"
	KindDryRun            Kind = "dry_run"
)

// Tracker is a thread-safe set of named counters. The zero value is not
// usable; construct with New.
type Tracker struct {
	mu     sync.Mutex
	counts map[Kind]int64
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{counts: make(map[Kind]int64)}
}

// Increment adds one to the counter for kind.
func (t *Tracker) Increment(kind Kind) {
	t.Add(kind, 1)
}

// Add adds amount to the counter for kind. Byte-sized kinds use this with the
// payload length.
func (t *Tracker) Add(kind Kind, amount int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[kind] += amount
}

// Count returns the current value for kind.
func (t *Tracker) Count(kind Kind) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[kind]
}

// Summary renders all non-zero counters, one per line, in a stable order.
func (t *Tracker) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	kinds := make([]string, 0, len(t.counts))
	for k, v := range t.counts {
		if v != 0 {
			kinds = append(kinds, string(k))
		}
	}
	sort.Strings(kinds)

	var b strings.Builder
	for _, k := range kinds {
		fmt.Fprintf(&b, "%-20s %d\n", k, t.counts[Kind(k)])
	}
	return b.String()
}
