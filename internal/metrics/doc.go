// Package metrics provides Prometheus instrumentation for vidshare.
//
// All metrics are registered with promauto at package init and prefixed with
// "vidshare_". Categories:
//
//   - HTTP: request counts, durations and in-flight gauge (see middleware.Metrics)
//   - Uploads and media serving: upload outcomes, 200/206/416 response counts,
//     bytes served, client aborts, fallback pages
//   - Metadata registry: load/save counts and latency per backend, corruption
//     recoveries, record totals refreshed by Collector
//   - Transcoder: jobs by terminal status, encoder runs by strategy, remux to
//     re-encode fallbacks, queued and running gauges
//   - Broadcast hub: open connections, subscriptions, sent and dropped messages
//   - Webhooks and filesystem retries
//
// InitializeMetrics pre-creates the label combinations so dashboards see
// zero values before the first event.
package metrics
