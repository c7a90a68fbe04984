package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"vidshare/internal/jobs"
	"vidshare/internal/logging"
	"vidshare/internal/registry"
	"vidshare/internal/uploads"
)

// TranscodeStatus returns the job for id, or {"status":"none"}.
// GET /transcode-status/{id}
func (h *Handlers) TranscodeStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	w.Header().Set("Cache-Control", "no-store")
	if job, ok := h.jobs.Get(id); ok {
		writeJSONStatus(w, http.StatusOK, job)
		return
	}
	writeJSONStatus(w, http.StatusOK, jobs.None(""))
}

// Retranscode starts a conversion for a record that is not yet playable,
// typically one whose job was lost to a restart.
// POST /transcode/{id}
func (h *Handlers) Retranscode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, err := h.uploads.StartConversion(r.Context(), id)
	switch {
	case err == nil:
		logging.For("job", id).Info("Conversion restarted on request")
		writeJSONStatus(w, http.StatusOK, job)
	case errors.Is(err, registry.ErrNotFound):
		writeJSONError(w, "not found", http.StatusNotFound)
	case errors.Is(err, jobs.ErrAlreadyExists):
		current, _ := h.jobs.Get(id)
		writeJSONStatus(w, http.StatusConflict, map[string]interface{}{
			"error": "a transcode is already running",
			"job":   current,
		})
	case errors.Is(err, uploads.ErrAlreadyConverted):
		writeJSONError(w, "media does not need conversion", http.StatusConflict)
	default:
		logging.Error("Restarting conversion for %s failed: %v", id, err)
		writeJSONError(w, "could not start conversion", http.StatusServiceUnavailable)
	}
}
