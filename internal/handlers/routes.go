package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Register adds every application route to r.
func (h *Handlers) Register(r *mux.Router) {
	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	// Media
	r.HandleFunc("/upload", h.Upload).Methods(http.MethodPost).Name("upload")
	r.HandleFunc("/s/{id}", h.Short).Methods(http.MethodGet, http.MethodHead).Name("short")
	r.HandleFunc("/v/{id}", h.View).Methods(http.MethodGet, http.MethodHead).Name("view")
	r.HandleFunc("/info/{id}", h.Info).Methods(http.MethodGet).Name("info")
	r.HandleFunc("/poster/{id}", h.Poster).Methods(http.MethodGet, http.MethodHead).Name("poster")
	r.HandleFunc("/placeholder.png", h.Placeholder).Methods(http.MethodGet, http.MethodHead)

	// Transcoding
	r.HandleFunc("/transcode-status/{id}", h.TranscodeStatus).Methods(http.MethodGet)
	r.HandleFunc("/transcode/{id}", h.Retranscode).Methods(http.MethodPost)
	r.HandleFunc("/ws", h.hub.ServeWS).Methods(http.MethodGet).Name("ws")

	// Notifications
	r.HandleFunc("/post-webhook", h.PostWebhook).Methods(http.MethodPost)
}
