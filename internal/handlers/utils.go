package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"vidshare/internal/jobs"
	"vidshare/internal/logging"
	"vidshare/internal/registry"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONStatus writes v with the given status code.
func writeJSONStatus(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatus(w, statusCode, map[string]string{"error": message})
}

// MediaInfo is the descriptive part of a media response.
type MediaInfo struct {
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
	Converted    bool      `json:"converted"`
}

// MediaResponse is returned by /upload and /info.
type MediaResponse struct {
	ID        string    `json:"id"`
	VideoURL  string    `json:"videoUrl"`
	ShortURL  string    `json:"shortUrl"`
	PosterURL string    `json:"posterUrl,omitempty"`
	Info      MediaInfo `json:"info"`
	Job       *jobs.Job `json:"job,omitempty"`
}

func (h *Handlers) mediaResponse(rec registry.MediaRecord) MediaResponse {
	resp := MediaResponse{
		ID:       rec.ID,
		VideoURL: h.url("v", rec.ID),
		ShortURL: h.url("s", rec.ID),
		Info: MediaInfo{
			OriginalName: rec.OriginalName,
			MimeType:     rec.MimeType,
			Size:         rec.SizeBytes,
			CreatedAt:    rec.CreatedAt,
			Converted:    rec.Converted,
		},
	}
	if h.posters != nil {
		resp.PosterURL = h.url("poster", rec.ID)
	}
	return resp
}

// url joins the public base URL with a route prefix and id.
func (h *Handlers) url(prefix, id string) string {
	return h.baseURL + "/" + prefix + "/" + url.PathEscape(id)
}
