package handlers

import (
	"errors"
	"net/http"

	"vidshare/internal/logging"
	"vidshare/internal/registry"
	"vidshare/internal/webhook"
)

// PostWebhook forwards an embed describing a media item to a webhook URL.
// POST /post-webhook
func (h *Handlers) PostWebhook(w http.ResponseWriter, r *http.Request) {
	req, err := webhook.DecodeRequest(r)
	if err != nil {
		var verr *webhook.ValidationError
		if errors.As(err, &verr) {
			writeJSONStatus(w, http.StatusBadRequest, map[string]interface{}{
				"error":  "invalid request",
				"fields": verr.Fields,
			})
			return
		}
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}

	rec, err := h.records.Get(r.Context(), req.ID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeJSONError(w, "not found", http.StatusNotFound)
			return
		}
		logging.Error("Webhook lookup for %s failed: %v", req.ID, err)
		writeJSONError(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	resp := h.mediaResponse(rec)
	payload := webhook.BuildPayload(webhook.Media{
		OriginalName: rec.OriginalName,
		MimeType:     rec.MimeType,
		SizeBytes:    rec.SizeBytes,
		CreatedAt:    rec.CreatedAt,
		ShortURL:     resp.ShortURL,
		VideoURL:     resp.VideoURL,
		PosterURL:    resp.PosterURL,
	}, req.Label)

	if err := h.webhooks.Deliver(r.Context(), req.WebhookURL, payload); err != nil {
		var derr *webhook.DeliveryError
		if errors.As(err, &derr) && derr.Rejected() {
			logging.Warn("Webhook rejected for %s: %v", req.ID, err)
			writeJSONStatus(w, http.StatusBadGateway, map[string]interface{}{
				"error":  "webhook rejected the message",
				"status": derr.StatusCode,
			})
			return
		}
		logging.Warn("Webhook delivery for %s failed: %v", req.ID, err)
		writeJSONError(w, "webhook delivery failed", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, http.StatusOK, map[string]string{"status": "sent"})
}
