// Package metrics holds the Prometheus collectors of the sync engine.
// Collectors are registered on the default registry at init and exposed by
// Handler (tfsync watch --metrics-addr).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// API client
var (
	// APIRequests counts backend requests by scope and status code
	// ("error" when no response was received).
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tfsync_api_requests_total",
			Help: "Backend API requests by rate-limit scope and status",
		},
		[]string{"scope", "status"},
	)

	// APIThrottled counts 429 responses by scope.
	APIThrottled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tfsync_api_throttled_total",
			Help: "Backend API requests rejected with 429",
		},
		[]string{"scope"},
	)

	// ProbeLatency observes successful latency probe round trips.
	ProbeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tfsync_probe_latency_seconds",
		Help:    "Latency reported by the ping endpoint",
		Buckets: prometheus.DefBuckets,
	})
)

// Store
var (
	// PagesMerged counts pages merged into the view ("append" or "refresh").
	PagesMerged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tfsync_pages_merged_total",
			Help: "Pages merged into the file view",
		},
		[]string{"mode"},
	)

	// PagesDiscarded counts rejected page results by reason.
	PagesDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tfsync_pages_discarded_total",
			Help: "Page results discarded (stale epoch or cursor mismatch)",
		},
		[]string{"reason"},
	)

	// DeltasApplied counts push deltas merged into a record in view.
	DeltasApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tfsync_deltas_applied_total",
		Help: "Status deltas applied to records in view",
	})

	// DeltasDropped counts deltas for records not in view.
	DeltasDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tfsync_deltas_dropped_total",
		Help: "Status deltas dropped because the record is not in view",
	})

	// RecordsInView is the current view size.
	RecordsInView = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tfsync_records_in_view",
		Help: "Records currently in the file view",
	})

	// Epoch is the current pagination epoch.
	Epoch = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tfsync_pagination_epoch",
		Help: "Current filter/pagination epoch",
	})

	// SelectionSize is the current selection size.
	SelectionSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tfsync_selection_size",
		Help: "Records currently selected for a batch action",
	})
)

// Push channel
var (
	// ConnectionState is 1 for the channel's current state, 0 otherwise.
	ConnectionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tfsync_push_connection_state",
			Help: "Push channel state (1 = current)",
		},
		[]string{"state"},
	)

	// Reconnects counts reconnect attempts.
	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tfsync_push_reconnects_total",
		Help: "Push channel reconnect attempts",
	})

	// FramesSkipped counts unknown or malformed push frames.
	FramesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tfsync_push_frames_skipped_total",
		Help: "Push frames skipped as unknown or malformed",
	})

	// DownloadSpeed is the last account-level download speed sample.
	DownloadSpeed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tfsync_download_speed_bytes",
		Help: "Account download speed in bytes per second",
	})
)

// SetConnectionState marks state as current in the ConnectionState gauge.
func SetConnectionState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		ConnectionState.WithLabelValues(s).Set(v)
	}
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
