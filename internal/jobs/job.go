package jobs

import "time"

// Status is the lifecycle state of a transcode job.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
	// StatusNone is reported for ids without a job.
	StatusNone Status = "none"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Job is a snapshot of one transcode's state.
type Job struct {
	ID             string    `json:"id"`
	Status         Status    `json:"status"`
	Progress       int       `json:"progress"`
	Message        string    `json:"message"`
	StartedAt      time.Time `json:"startedAt"`
	ElapsedSeconds int       `json:"elapsedSeconds"`
	ETASeconds     *int      `json:"etaSeconds"`
	Timemark       *string   `json:"timemark"`
	// Estimated is set when progress came from output-size growth rather
	// than encoder timemarks.
	Estimated bool `json:"estimated"`

	finishedAt time.Time
}

// NoJob is reported for ids without a job.
type NoJob struct {
	ID     string `json:"id,omitempty"`
	Status Status `json:"status"`
}

// None returns the NoJob value for id.
func None(id string) NoJob {
	return NoJob{ID: id, Status: StatusNone}
}

func (j *Job) elapsed(now time.Time) time.Duration {
	if j.Status.Terminal() && !j.finishedAt.IsZero() {
		return j.finishedAt.Sub(j.StartedAt)
	}
	return now.Sub(j.StartedAt)
}
