package handlers

import (
	"sync/atomic"
	"time"

	"vidshare/internal/fallback"
	"vidshare/internal/hub"
	"vidshare/internal/jobs"
	"vidshare/internal/mediastore"
	"vidshare/internal/poster"
	"vidshare/internal/registry"
	"vidshare/internal/streaming"
	"vidshare/internal/uploads"
	"vidshare/internal/webhook"
)

// Options wires the handlers to their collaborators.
type Options struct {
	Records  *registry.Registry
	Store    *mediastore.Store
	Uploads  *uploads.Service
	Jobs     *jobs.Registry
	Hub      *hub.Hub
	Webhooks *webhook.Client
	Fallback *fallback.Page
	// Posters is optional; without it /poster serves the placeholder.
	Posters *poster.Generator

	PublicBaseURL   string
	PlaceholderPath string
	MaxUploadBytes  int64
	Streaming       streaming.Config
}

type Handlers struct {
	records  *registry.Registry
	store    *mediastore.Store
	uploads  *uploads.Service
	jobs     *jobs.Registry
	hub      *hub.Hub
	webhooks *webhook.Client
	fallback *fallback.Page
	posters  *poster.Generator

	baseURL         string
	placeholderPath string
	maxUploadBytes  int64
	streamConfig    streaming.Config

	startedAt time.Time
	ready     atomic.Bool
}

func New(opts Options) *Handlers {
	if opts.Streaming.ChunkSize == 0 {
		opts.Streaming = streaming.DefaultConfig()
	}
	return &Handlers{
		records:         opts.Records,
		store:           opts.Store,
		uploads:         opts.Uploads,
		jobs:            opts.Jobs,
		hub:             opts.Hub,
		webhooks:        opts.Webhooks,
		fallback:        opts.Fallback,
		posters:         opts.Posters,
		baseURL:         opts.PublicBaseURL,
		placeholderPath: opts.PlaceholderPath,
		maxUploadBytes:  opts.MaxUploadBytes,
		streamConfig:    opts.Streaming,
		startedAt:       time.Now(),
	}
}

// SetReady flips the readiness probe once startup work is done.
func (h *Handlers) SetReady(ready bool) {
	h.ready.Store(ready)
}
