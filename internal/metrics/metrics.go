package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidshare_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidshare_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidshare_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Upload and range-serving metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidshare_uploads_total",
			Help: "Total number of uploads by outcome",
		},
		[]string{"status"}, // "stored", "converting", "error"
	)

	UploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidshare_upload_bytes_total",
			Help: "Total bytes accepted from uploads",
		},
	)

	RangeResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidshare_media_responses_total",
			Help: "Media responses by HTTP status (200 full, 206 partial, 416 unsatisfiable)",
		},
		[]string{"status"},
	)

	MediaBytesServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidshare_media_bytes_served_total",
			Help: "Total media bytes written to clients",
		},
	)

	MediaClientAborts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidshare_media_client_aborts_total",
			Help: "Media streams that ended early because the client went away or stalled",
		},
	)

	FallbackPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidshare_fallback_pages_total",
			Help: "Fallback embed pages rendered by route",
		},
		[]string{"route"},
	)
)

// Metadata registry metrics
var (
	RegistryOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidshare_registry_operations_total",
			Help: "Metadata registry load/save operations",
		},
		[]string{"backend", "operation", "status"},
	)

	RegistryOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidshare_registry_operation_duration_seconds",
			Help:    "Metadata registry operation duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"backend", "operation"},
	)

	RegistryCorruptions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidshare_registry_corruptions_total",
			Help: "Times persisted metadata could not be decoded and was treated as empty",
		},
	)

	MediaRecordsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vidshare_media_records",
			Help: "Number of media records by conversion state",
		},
		[]string{"converted"},
	)

	MediaStoredBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidshare_media_stored_bytes",
			Help: "Sum of sizeBytes over all media records",
		},
	)
)

// Transcoder metrics
var (
	TranscoderJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidshare_transcoder_jobs_total",
			Help: "Total number of transcoding jobs by terminal status",
		},
		[]string{"status"},
	)

	TranscoderRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidshare_transcoder_runs_total",
			Help: "Encoder process runs by strategy and outcome",
		},
		[]string{"strategy", "status"},
	)

	TranscoderFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidshare_transcoder_fallbacks_total",
			Help: "Remux attempts that fell back to a re-encode",
		},
	)

	TranscoderJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vidshare_transcoder_job_duration_seconds",
			Help:    "Transcoding job duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	TranscoderJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidshare_transcoder_jobs_in_progress",
			Help: "Number of encoder processes currently running",
		},
	)

	TranscoderJobsQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidshare_transcoder_jobs_queued",
			Help: "Number of jobs waiting for an encoder slot",
		},
	)
)

// Broadcast hub metrics
var (
	HubConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidshare_hub_connections",
			Help: "Open status channel connections",
		},
	)

	HubSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidshare_hub_subscriptions",
			Help: "Total (connection, id) subscription pairs",
		},
	)

	HubMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidshare_hub_messages_sent_total",
			Help: "Status messages handed to subscriber connections",
		},
	)

	HubSendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidshare_hub_send_failures_total",
			Help: "Status messages dropped because a subscriber was slow or gone",
		},
	)
)

// Webhook metrics
var (
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidshare_webhook_deliveries_total",
			Help: "Webhook deliveries by outcome",
		},
		[]string{"status"}, // "success", "rejected", "error"
	)
)

// Poster metrics
var (
	PosterRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidshare_poster_requests_total",
			Help: "Poster frame lookups by result",
		},
		[]string{"result"}, // "hit", "generated", "error"
	)

	PosterGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vidshare_poster_generation_duration_seconds",
			Help:    "Time spent extracting and scaling a poster frame",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// Filesystem metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidshare_filesystem_retry_attempts_total",
			Help: "Filesystem operations retried after a transient error",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidshare_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vidshare_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
