package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Throttler metrics
	ThrottleQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sheetsite_throttle_queue_depth",
			Help: "Number of store operations waiting in the throttle queue",
		},
	)

	ThrottleOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsite_throttle_operations_total",
			Help: "Total number of throttled operations by outcome (ok, error, skipped)",
		},
		[]string{"outcome"},
	)

	ThrottleWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sheetsite_throttle_wait_seconds",
			Help:    "Time an operation spent queued before it ran",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// Store metrics
	StoreRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsite_store_requests_total",
			Help: "Total number of remote store requests by table, operation and status",
		},
		[]string{"table", "op", "status"},
	)

	StoreRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheetsite_store_request_duration_seconds",
			Help:    "Remote store request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table", "op"},
	)

	// Resolver metrics
	PageResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsite_page_resolutions_total",
			Help: "Total number of page resolutions by source (remote, mock, none)",
		},
		[]string{"source"},
	)

	PageValidationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sheetsite_page_validation_failures_total",
			Help: "Total number of page rows rejected by the schema validator",
		},
	)

	DecodeFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sheetsite_decode_fallbacks_total",
			Help: "Total number of structured fields replaced by their fallback value",
		},
	)

	// Assembly metrics
	ComponentsRenderedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsite_components_rendered_total",
			Help: "Total number of rendered layout entries by outcome (ok, unknown, error, missing)",
		},
		[]string{"outcome"},
	)

	PageRenderDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sheetsite_page_render_duration_seconds",
			Help:    "Time taken to resolve and render a page",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Signal metrics
	SignalsRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsite_signals_recorded_total",
			Help: "Total number of recorded client signals by type",
		},
		[]string{"type"},
	)

	SignalBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsite_signal_batches_total",
			Help: "Total number of flushed signal batches by status",
		},
		[]string{"status"},
	)

	SignalsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sheetsite_signals_pending",
			Help: "Signals recorded but not yet flushed",
		},
	)

	ConversionRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sheetsite_conversion_rate",
			Help: "Running conversions / views ratio",
		},
	)

	// Lead metrics
	LeadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsite_leads_total",
			Help: "Total number of lead submissions by status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(ThrottleQueueDepth)
	prometheus.MustRegister(ThrottleOpsTotal)
	prometheus.MustRegister(ThrottleWaitDuration)
	prometheus.MustRegister(StoreRequestsTotal)
	prometheus.MustRegister(StoreRequestDuration)
	prometheus.MustRegister(PageResolutionsTotal)
	prometheus.MustRegister(PageValidationFailures)
	prometheus.MustRegister(DecodeFallbacksTotal)
	prometheus.MustRegister(ComponentsRenderedTotal)
	prometheus.MustRegister(PageRenderDuration)
	prometheus.MustRegister(SignalsRecordedTotal)
	prometheus.MustRegister(SignalBatchesTotal)
	prometheus.MustRegister(SignalsPending)
	prometheus.MustRegister(ConversionRate)
	prometheus.MustRegister(LeadsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
