// Package metrics exposes Prometheus counters mirroring the run tracker's
// outcome kinds, for scrape wiring and tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ingest_wikimedia"

// Registry is the registry for all pipeline metrics.
var Registry = prometheus.NewRegistry()

// RecordsProcessed counts records reaching a terminal state, by result.
var RecordsProcessed = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_processed_total",
		Help:      "Records processed, labeled by terminal result",
	},
	[]string{"result"},
)

// AssetOutcomes counts per-asset outcomes across both passes.
var AssetOutcomes = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "asset_outcomes_total",
		Help:      "Asset outcomes (stored, skipped_exists, invalid_type, failed, uploaded, duplicate)",
	},
	[]string{"outcome"},
)

// BytesTransferred counts payload bytes moved, by direction.
var BytesTransferred = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bytes_transferred_total",
		Help:      "Payload bytes stored to the object store or uploaded to the target repository",
	},
	[]string{"direction"},
)
