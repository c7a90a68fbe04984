package jobs

import (
	"time"

	"vidshare/internal/transcoder"
)

// tracker adapts transcoder callbacks to registry transitions.
type tracker struct {
	registry *Registry
	id       string
}

func (t *tracker) OnStart() {
	t.registry.apply(t.id, "start", func(job *Job, now time.Time) bool {
		if job.Status != StatusQueued {
			return false
		}
		job.Status = StatusRunning
		job.StartedAt = now
		job.Message = "running"
		return true
	})
}

func (t *tracker) OnPhase(phase string) {
	t.registry.SetMessage(t.id, phase)
}

func (t *tracker) OnProgress(p transcoder.Progress) {
	t.registry.apply(t.id, "progress", func(job *Job, now time.Time) bool {
		if job.Status != StatusRunning {
			return false
		}
		if p.Percent > job.Progress {
			job.Progress = min(p.Percent, 100)
		}
		if p.Timemark != "" {
			mark := p.Timemark
			job.Timemark = &mark
		}
		job.Estimated = p.Estimated
		job.ETASeconds = transcoder.EstimateETA(job.elapsed(now), job.Progress)
		return true
	})
}

func (t *tracker) OnEnd() {
	t.registry.apply(t.id, "end", func(job *Job, now time.Time) bool {
		if job.Status != StatusRunning {
			return false
		}
		job.Status = StatusDone
		job.Progress = 100
		zero := 0
		job.ETASeconds = &zero
		job.Message = "done"
		job.finishedAt = now
		return true
	})
}

// OnError is accepted from queued as well as running so a job whose
// encoder never started still reaches a terminal state.
func (t *tracker) OnError(err error) {
	t.registry.apply(t.id, "error", func(job *Job, now time.Time) bool {
		if job.Status.Terminal() {
			return false
		}
		job.Status = StatusError
		job.Message = err.Error()
		job.ETASeconds = nil
		job.finishedAt = now
		return true
	})
}
