package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"vidshare/internal/logging"
	"vidshare/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	MetadataBackend  string `json:"metadataBackend"`
	TotalRecords     int    `json:"totalRecords"`
	ConvertedRecords int    `json:"convertedRecords"`
	ActiveJobs       int    `json:"activeJobs"`
	Connections      int    `json:"connections"`
	Error            string `json:"error,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ready := h.ready.Load()
	response := HealthResponse{
		Ready:           ready,
		Version:         startup.Version,
		Uptime:          time.Since(h.startedAt).Round(time.Second).String(),
		MetadataBackend: h.records.Backend(),
		ActiveJobs:      h.jobs.Active(),
		Connections:     h.hub.Connections(),
		GoVersion:       runtime.Version(),
		NumCPU:          runtime.NumCPU(),
		NumGoroutine:    runtime.NumGoroutine(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	stats, err := h.records.Stats(ctx)

	switch {
	case err != nil:
		logging.Warn("Health check could not read registry: %v", err)
		response.Status = statusDegraded
		response.Error = "metadata registry unavailable"
	case !ready:
		response.Status = statusStarting
	default:
		response.Status = statusHealthy
	}
	response.TotalRecords = stats.TotalRecords
	response.ConvertedRecords = stats.ConvertedRecords

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSONStatus(w, code, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the service is ready to accept traffic
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.ready.Load() {
		writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}
