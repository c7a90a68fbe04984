package uploads

import (
	"context"
	"time"

	"vidshare/internal/transcoder"
)

const handoffTimeout = 30 * time.Second

// handoff sits between the encoder and the job tracker. The job is only
// marked done after the output is committed and the record repointed, so
// a client that sees "done" can immediately fetch the converted file.
type handoff struct {
	svc     *Service
	id      string
	out     string
	tracker transcoder.Callbacks
}

func (h *handoff) OnStart()                         { h.tracker.OnStart() }
func (h *handoff) OnProgress(p transcoder.Progress) { h.tracker.OnProgress(p) }
func (h *handoff) OnError(err error)                { h.tracker.OnError(err) }

func (h *handoff) OnPhase(phase string) {
	if pr, ok := h.tracker.(transcoder.PhaseReporter); ok {
		pr.OnPhase(phase)
	}
}

func (h *handoff) OnEnd() {
	h.OnPhase("finalizing")
	ctx, cancel := context.WithTimeout(context.Background(), handoffTimeout)
	defer cancel()

	if _, err := h.svc.finish(ctx, h.id, h.out); err != nil {
		h.tracker.OnError(err)
		return
	}
	h.tracker.OnEnd()
}
