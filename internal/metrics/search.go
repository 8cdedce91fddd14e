package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Search Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchsearch",
			Name:      "search_requests_total",
			Help:      "Total number of user searches",
		},
		[]string{"mode", "status"}, // mode: page / count / clusters; status: ok / parse_error / error
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "matchsearch",
			Name:      "search_duration_seconds",
			Help:      "User search duration in seconds, including normalization",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"mode"},
	)

	CountCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchsearch",
			Name:      "count_cache_total",
			Help:      "Count-only cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	SideEffectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchsearch",
			Name:      "side_effects_total",
			Help:      "Post-response side effects by outcome",
		},
		[]string{"effect", "status"}, // effect: tracking / preferences; status: ok / skipped / error / rejected
	)

	PlaceLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchsearch",
			Name:      "place_lookups_total",
			Help:      "Place resolution attempts by strategy and outcome",
		},
		[]string{"strategy", "result"}, // result: found / missing / error
	)
)

var registerOnce sync.Once

// Register registers all matchsearch collectors with the default registry.
// Must be called once from main; repeated calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestDuration,
			httpRequestsTotal,
			SearchRequestsTotal,
			SearchDuration,
			CountCacheTotal,
			SideEffectsTotal,
			PlaceLookupsTotal,
		)
	})
}
