package jobs

import (
	"errors"
	"math"
	"sync"
	"time"

	"vidshare/internal/logging"
	"vidshare/internal/metrics"
	"vidshare/internal/transcoder"
)

// ErrAlreadyExists is returned by Create when a live job exists for the id.
var ErrAlreadyExists = errors.New("transcode job already exists")

// Publisher is told about every applied transition, after the new state is
// visible through Get.
type Publisher interface {
	Publish(id string)
}

// Registry holds in-memory transcode jobs keyed by media id. Jobs are not
// persisted; a restart forgets them.
type Registry struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	publisher Publisher
	now       func() time.Time
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

// SetPublisher installs the broadcast target. It must be called before
// jobs are created.
func (r *Registry) SetPublisher(p Publisher) {
	r.mu.Lock()
	r.publisher = p
	r.mu.Unlock()
}

// Create registers a queued job for id. A previous terminal job is
// replaced; a live one yields ErrAlreadyExists.
func (r *Registry) Create(id string) (Job, error) {
	r.mu.Lock()
	if existing, ok := r.jobs[id]; ok && !existing.Status.Terminal() {
		r.mu.Unlock()
		return Job{}, ErrAlreadyExists
	}
	job := &Job{
		ID:        id,
		Status:    StatusQueued,
		Message:   "queued",
		StartedAt: r.now(),
	}
	r.jobs[id] = job
	snapshot := r.snapshot(job)
	r.updateGauges()
	r.mu.Unlock()

	r.publish(id)
	return snapshot, nil
}

// Get returns the current state of the job for id.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return r.snapshot(job), true
}

// Active returns the number of queued or running jobs.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, job := range r.jobs {
		if !job.Status.Terminal() {
			n++
		}
	}
	return n
}

// SetMessage updates the human-readable phase of a live job.
func (r *Registry) SetMessage(id, message string) {
	r.apply(id, "message", func(job *Job, _ time.Time) bool {
		if job.Status.Terminal() {
			return false
		}
		job.Message = message
		return true
	})
}

// Tracker returns transcoder callbacks that drive the job for id.
func (r *Registry) Tracker(id string) transcoder.Callbacks {
	return &tracker{registry: r, id: id}
}

// apply runs fn on the job under the lock and publishes if fn reports a
// change. fn returning false means the transition is not allowed.
func (r *Registry) apply(id, event string, fn func(*Job, time.Time) bool) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		logging.Debug("Ignoring %s for unknown job %s", event, id)
		return
	}
	from := job.Status
	if !fn(job, r.now()) {
		r.mu.Unlock()
		logging.Debug("Ignoring %s for job %s in state %s", event, id, from)
		return
	}
	to := job.Status
	if from != to {
		r.updateGauges()
		if to.Terminal() {
			metrics.TranscoderJobsTotal.WithLabelValues(string(to)).Inc()
			metrics.TranscoderJobDuration.Observe(job.elapsed(r.now()).Seconds())
		}
	}
	r.mu.Unlock()

	r.publish(id)
}

func (r *Registry) publish(id string) {
	r.mu.Lock()
	p := r.publisher
	r.mu.Unlock()
	if p != nil {
		p.Publish(id)
	}
}

// snapshot copies job with elapsed time brought up to date. Caller holds mu.
func (r *Registry) snapshot(job *Job) Job {
	s := *job
	s.ElapsedSeconds = int(math.Round(job.elapsed(r.now()).Seconds()))
	if job.ETASeconds != nil {
		eta := *job.ETASeconds
		s.ETASeconds = &eta
	}
	if job.Timemark != nil {
		mark := *job.Timemark
		s.Timemark = &mark
	}
	return s
}

// updateGauges refreshes queue metrics. Caller holds mu.
func (r *Registry) updateGauges() {
	var queued, running int
	for _, job := range r.jobs {
		switch job.Status {
		case StatusQueued:
			queued++
		case StatusRunning:
			running++
		}
	}
	metrics.TranscoderJobsQueued.Set(float64(queued))
	metrics.TranscoderJobsInProgress.Set(float64(running))
}
