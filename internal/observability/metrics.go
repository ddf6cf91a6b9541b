// Package observability exposes the Prometheus instrumentation shared
// by the catalog client, the modality loaders and the asset cache.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	catalogOpSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stacube_catalog_op_seconds",
			Help:    "Duration of STAC catalog operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"op", "outcome"},
	)

	loadSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stacube_load_seconds",
			Help:    "Duration of modality load calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"modality", "outcome"},
	)

	classifiedItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stacube_classified_items_total",
			Help: "Items placed in each modality bucket during classification.",
		},
		[]string{"modality"},
	)

	assetFetchSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stacube_asset_fetch_seconds",
			Help:    "Duration of individual asset fetches in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"modality", "outcome"},
	)

	assetCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stacube_asset_cache_results_total",
			Help: "Asset cache lookups by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	mergeResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stacube_merge_results_total",
			Help: "Cube merge outcomes.",
		},
		[]string{"outcome"},
	)

	invalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stacube_invalidations_total",
			Help: "Asset cache invalidation events by outcome.",
		},
		[]string{"outcome"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stacube_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ObserveCatalogOp(op string, err error, seconds float64) {
	catalogOpSeconds.WithLabelValues(op, outcome(err)).Observe(seconds)
}

func ObserveLoad(modality string, err error, seconds float64) {
	loadSeconds.WithLabelValues(modality, outcome(err)).Observe(seconds)
}

func AddClassified(modality string, n int) {
	if n <= 0 {
		return
	}
	classifiedItems.WithLabelValues(modality).Add(float64(n))
}

func ObserveAssetFetch(modality string, err error, seconds float64) {
	assetFetchSeconds.WithLabelValues(modality, outcome(err)).Observe(seconds)
}

func IncAssetCacheHit(tier string)  { assetCacheResults.WithLabelValues(tier, "hit").Inc() }
func IncAssetCacheMiss(tier string) { assetCacheResults.WithLabelValues(tier, "miss").Inc() }

func IncMerge(err error) { mergeResults.WithLabelValues(outcome(err)).Inc() }

func IncInvalidation(err error) { invalidations.WithLabelValues(outcome(err)).Inc() }

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
