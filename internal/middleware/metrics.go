package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"vidshare/internal/metrics"
)

// MetricsConfig holds configuration for the metrics middleware
type MetricsConfig struct {
	// SkipPaths are paths that should not be recorded
	SkipPaths []string
}

// DefaultMetricsConfig returns the default metrics configuration
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths: []string{"/metrics", "/health", "/healthz", "/livez", "/readyz"},
	}
}

// Metrics returns a middleware that records Prometheus metrics
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.SkipPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			wrapped := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(wrapped, r)

			path := normalizePath(r.URL.Path)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			// Websocket lifetimes would swamp the latency histogram.
			if !wrapped.hijacked {
				metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			}
		})
	}
}

// idRoutes are first path segments followed by a media identifier.
var idRoutes = map[string]bool{
	"s":                true,
	"v":                true,
	"info":             true,
	"poster":           true,
	"transcode":        true,
	"transcode-status": true,
}

var staticRoutes = map[string]bool{
	"/":                true,
	"/upload":          true,
	"/post-webhook":    true,
	"/ws":              true,
	"/version":         true,
	"/placeholder.png": true,
}

// normalizePath collapses identifiers and unknown paths so label
// cardinality stays bounded.
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}
	first, rest, found := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if found && rest != "" && idRoutes[first] {
		return "/" + first + "/{id}"
	}
	return "other"
}
