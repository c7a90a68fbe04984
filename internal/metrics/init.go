package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics(registryBackend string) {
	for _, s := range []string{"stored", "converting", "error"} {
		UploadsTotal.WithLabelValues(s)
	}

	for _, s := range []string{"200", "206", "416"} {
		RangeResponsesTotal.WithLabelValues(s)
	}

	for _, r := range []string{"short", "view"} {
		FallbackPagesTotal.WithLabelValues(r)
	}

	for _, op := range []string{"load", "save"} {
		RegistryOperationsTotal.WithLabelValues(registryBackend, op, "success")
		RegistryOperationsTotal.WithLabelValues(registryBackend, op, "error")
		RegistryOperationDuration.WithLabelValues(registryBackend, op)
	}

	MediaRecordsTotal.WithLabelValues("true")
	MediaRecordsTotal.WithLabelValues("false")

	for _, s := range []string{"done", "error"} {
		TranscoderJobsTotal.WithLabelValues(s)
	}
	for _, strategy := range []string{"remux", "reencode"} {
		TranscoderRunsTotal.WithLabelValues(strategy, "success")
		TranscoderRunsTotal.WithLabelValues(strategy, "error")
	}

	for _, s := range []string{"success", "rejected", "error"} {
		WebhookDeliveriesTotal.WithLabelValues(s)
	}

	for _, r := range []string{"hit", "generated", "error"} {
		PosterRequestsTotal.WithLabelValues(r)
	}

	for _, op := range []string{"stat", "open"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
	}
}
