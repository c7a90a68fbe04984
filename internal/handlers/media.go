package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"vidshare/internal/logging"
	"vidshare/internal/mediastore"
	"vidshare/internal/mediatypes"
	"vidshare/internal/registry"
	"vidshare/internal/streaming"
	"vidshare/internal/uploads"
)

// Upload stores a multipart upload and schedules conversion when needed.
// POST /upload
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	res, err := h.uploads.IngestMultipart(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, uploads.ErrNoFile):
			writeJSONError(w, "no file uploaded", http.StatusBadRequest)
		case errors.As(err, &tooLarge):
			writeJSONError(w, "file too large", http.StatusRequestEntityTooLarge)
		default:
			logging.Error("Upload failed: %v", err)
			writeJSONError(w, "upload failed", http.StatusInternalServerError)
		}
		return
	}

	resp := h.mediaResponse(res.Record)
	resp.Job = res.Job
	writeJSONStatus(w, http.StatusOK, resp)
}

// Short redirects a share link to the media stream.
// GET /s/{id}
func (h *Handlers) Short(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.records.Get(r.Context(), id); err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			logging.Warn("Short link lookup for %s failed: %v", id, err)
		}
		h.fallback.Serve(w, r, "short")
		return
	}
	http.Redirect(w, r, "/v/"+id, http.StatusFound)
}

// View streams a media item with byte-range support, or the fallback page
// when the id or its file is missing.
// GET /v/{id}
func (h *Handlers) View(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	f, rec, err := h.openMedia(r.Context(), id)
	if err != nil {
		if !errors.Is(err, registry.ErrNotFound) && !errors.Is(err, mediastore.ErrNotFound) {
			logging.Warn("Opening media %s failed: %v", id, err)
		}
		h.fallback.Serve(w, r, "view")
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Debug("close %s: %v", rec.StoredFilename, err)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		logging.Error("Stat of open media %s failed: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	streaming.ServeContentWithConfig(w, r, f, info.Size(), rec.MimeType, h.streamConfig)
}

// openMedia resolves id to an open file. A conversion can repoint the record
// and remove the old file between the lookup and the open; the lookup is
// retried once when that happens.
func (h *Handlers) openMedia(ctx context.Context, id string) (*os.File, registry.MediaRecord, error) {
	rec, err := h.records.Get(ctx, id)
	if err != nil {
		return nil, registry.MediaRecord{}, err
	}
	f, err := h.store.Open(rec.StoredFilename)
	if !errors.Is(err, mediastore.ErrNotFound) {
		return f, rec, err
	}

	again, gerr := h.records.Get(ctx, id)
	if gerr != nil || again.StoredFilename == rec.StoredFilename {
		return nil, rec, err
	}
	f, err = h.store.Open(again.StoredFilename)
	return f, again, err
}

// Info returns the media description.
// GET /info/{id}
func (h *Handlers) Info(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := h.records.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeJSONError(w, "not found", http.StatusNotFound)
			return
		}
		logging.Error("Info lookup for %s failed: %v", id, err)
		writeJSONError(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusOK, h.mediaResponse(rec))
}

// Poster serves a preview frame for a video, falling back to the
// placeholder image for anything that has no frame.
// GET /poster/{id}
func (h *Handlers) Poster(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := h.records.Get(r.Context(), id)
	if err != nil || h.posters == nil || !mediatypes.IsVideo(filepath.Ext(rec.StoredFilename)) {
		h.Placeholder(w, r)
		return
	}

	path, err := h.store.Path(rec.StoredFilename)
	if err != nil {
		h.Placeholder(w, r)
		return
	}
	data, err := h.posters.Get(r.Context(), path, rec.StoredFilename)
	if err != nil {
		logging.Debug("Poster for %s unavailable: %v", id, err)
		h.Placeholder(w, r)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(data); err != nil {
		logging.Debug("Failed to write poster for %s: %v", id, err)
	}
}

// Placeholder serves the static preview image the fallback page links to.
// GET /placeholder.png
func (h *Handlers) Placeholder(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, h.placeholderPath)
}
