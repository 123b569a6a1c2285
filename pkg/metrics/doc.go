/*
Package metrics provides Prometheus metrics and health reporting for sheetsite.

Collectors are package-level variables registered with the default registry in
init, so any package can increment them without plumbing. Handler exposes
them for scraping on /metrics.

# Metric Families

Throttler:
  - sheetsite_throttle_queue_depth: operations waiting for the single slot
  - sheetsite_throttle_operations_total{outcome}: ok, error, skipped
  - sheetsite_throttle_wait_seconds: time spent queued

Remote store:
  - sheetsite_store_requests_total{table,op,status}
  - sheetsite_store_request_duration_seconds{table,op}

Content pipeline:
  - sheetsite_page_resolutions_total{source}: remote, mock, none
  - sheetsite_page_validation_failures_total
  - sheetsite_decode_fallbacks_total
  - sheetsite_components_rendered_total{outcome}: ok, unknown, error, missing
  - sheetsite_page_render_duration_seconds

Signals and leads:
  - sheetsite_signals_recorded_total{type}
  - sheetsite_signal_batches_total{status}
  - sheetsite_signals_pending, sheetsite_conversion_rate
  - sheetsite_leads_total{status}

# Timing

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PageRenderDuration)

# Gauges From Long-Lived Components

Components holding state (the signal agent) implement Reporter. A Collector
polls them on an interval:

	collector := metrics.NewCollector(15*time.Second, agent)
	collector.Start()
	defer collector.Stop()

# Health

Components register their health with RegisterComponent/UpdateComponent.
SetCritical chooses which components gate /health and /ready; a failing
non-critical component (the remote store while mock content is served)
reports "degraded" with HTTP 200.
*/
package metrics
