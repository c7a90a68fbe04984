package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"vidshare/internal/jobs"
	"vidshare/internal/logging"
	"vidshare/internal/mediastore"
	"vidshare/internal/mediatypes"
	"vidshare/internal/metrics"
	"vidshare/internal/registry"
	"vidshare/internal/transcoder"
)

var (
	// ErrNoFile is returned when an upload carries no file part.
	ErrNoFile = errors.New("no file part in upload")

	// ErrAlreadyConverted is returned when conversion is requested for
	// media that is already playable.
	ErrAlreadyConverted = errors.New("media does not need conversion")
)

// Converter turns the file at in into an MP4 at out, reporting through cb.
type Converter interface {
	Run(ctx context.Context, in, out string, cb transcoder.Callbacks) error
}

// Result describes a completed upload.
type Result struct {
	Record registry.MediaRecord
	// Job is set when a conversion was scheduled.
	Job *jobs.Job
}

// Service ingests uploads and drives background conversions.
type Service struct {
	store     *mediastore.Store
	records   *registry.Registry
	jobs      *jobs.Registry
	converter Converter
	slots     *semaphore.Weighted

	// refMu orders file placement and removal with record updates so a
	// stored file shared by identical uploads is never removed while a
	// record still points at it.
	refMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewService wires the collaborators. workers bounds concurrent encoders.
func NewService(store *mediastore.Store, records *registry.Registry, jobReg *jobs.Registry, converter Converter, workers int) *Service {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:     store,
		records:   records,
		jobs:      jobReg,
		converter: converter,
		slots:     semaphore.NewWeighted(int64(workers)),
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
	}
}

// Ingest stores r as a new media item named filename and schedules a
// conversion when the container is not browser-playable.
func (s *Service) Ingest(ctx context.Context, filename string, r io.Reader) (Result, error) {
	ext := mediatypes.NormalizeExt(filename)

	staged, err := s.store.Stage(r, ext)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("store upload: %w", err)
	}

	rec := registry.MediaRecord{
		ID:             uuid.NewString(),
		StoredFilename: staged.Name,
		OriginalName:   originalName(filename),
		SizeBytes:      staged.Size,
		CreatedAt:      s.now().UTC(),
	}

	s.refMu.Lock()
	err = s.store.Place(staged)
	if err == nil {
		path, _ := s.store.Path(staged.Name)
		rec.MimeType = mediatypes.Detect(path, ext)
		if err = s.records.Insert(ctx, rec); err != nil {
			s.releaseLocked(ctx, staged.Name)
		}
	}
	s.refMu.Unlock()
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("register upload: %w", err)
	}

	metrics.UploadBytes.Add(float64(rec.SizeBytes))
	log := logging.For("media", rec.ID)
	log.Info("Stored %q as %s (%d bytes, %s)", rec.OriginalName, rec.StoredFilename, rec.SizeBytes, rec.MimeType)

	result := Result{Record: rec}
	if !mediatypes.NeedsConversion(ext) {
		metrics.UploadsTotal.WithLabelValues("stored").Inc()
		return result, nil
	}

	job, err := s.StartConversion(ctx, rec.ID)
	if err != nil {
		// The original stays servable; conversion can be retried.
		log.Warn("Could not schedule conversion: %v", err)
		metrics.UploadsTotal.WithLabelValues("stored").Inc()
		return result, nil
	}
	metrics.UploadsTotal.WithLabelValues("converting").Inc()
	result.Job = &job
	return result, nil
}

// StartConversion creates a job for id and runs it in the background.
func (s *Service) StartConversion(ctx context.Context, id string) (jobs.Job, error) {
	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return jobs.Job{}, err
	}
	if rec.Converted || !mediatypes.NeedsConversion(filepath.Ext(rec.StoredFilename)) {
		return jobs.Job{}, ErrAlreadyConverted
	}
	if err := s.ctx.Err(); err != nil {
		return jobs.Job{}, fmt.Errorf("service shutting down: %w", err)
	}

	job, err := s.jobs.Create(id)
	if err != nil {
		return jobs.Job{}, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.convert(rec)
	}()
	return job, nil
}

// ResumePending schedules conversions for records a previous process left
// unconverted. It returns the number of jobs started.
func (s *Service) ResumePending(ctx context.Context) (int, error) {
	all, err := s.records.All(ctx)
	if err != nil {
		return 0, err
	}
	started := 0
	for _, rec := range all {
		if rec.Converted || !mediatypes.NeedsConversion(filepath.Ext(rec.StoredFilename)) {
			continue
		}
		if _, err := s.StartConversion(ctx, rec.ID); err != nil {
			if !errors.Is(err, jobs.ErrAlreadyExists) {
				logging.For("media", rec.ID).Warn("Could not resume conversion: %v", err)
			}
			continue
		}
		started++
	}
	return started, nil
}

func (s *Service) convert(rec registry.MediaRecord) {
	log := logging.For("job", rec.ID)
	tracker := s.jobs.Tracker(rec.ID)

	if !s.slots.TryAcquire(1) {
		s.jobs.SetMessage(rec.ID, "waiting for encoder slot")
		if err := s.slots.Acquire(s.ctx, 1); err != nil {
			tracker.OnError(fmt.Errorf("canceled while waiting for encoder: %w", err))
			return
		}
	}
	defer s.slots.Release(1)

	in, err := s.store.Path(rec.StoredFilename)
	if err != nil {
		tracker.OnError(err)
		return
	}
	out := s.store.TempPath(mediatypes.TargetExt)

	log.Info("Converting %s", rec.StoredFilename)
	h := &handoff{svc: s, id: rec.ID, out: out, tracker: tracker}
	if err := s.converter.Run(s.ctx, in, out, h); err != nil {
		log.Warn("Conversion failed: %v", err)
	}
}

// finish moves the encoder output into place and repoints the record. On
// error the record is untouched and the original remains servable.
func (s *Service) finish(ctx context.Context, id, out string) (registry.MediaRecord, error) {
	s.refMu.Lock()
	defer s.refMu.Unlock()

	name, size, err := s.store.Commit(out, mediatypes.TargetExt)
	if err != nil {
		return registry.MediaRecord{}, fmt.Errorf("commit output: %w", err)
	}

	var oldName string
	updated, err := s.records.Update(ctx, id, func(m *registry.MediaRecord) error {
		oldName = m.StoredFilename
		m.StoredFilename = name
		m.MimeType = mediatypes.TargetMime
		m.SizeBytes = size
		m.Converted = true
		return nil
	})
	if err != nil {
		s.releaseLocked(ctx, name)
		return registry.MediaRecord{}, fmt.Errorf("update record: %w", err)
	}

	if oldName != name && !s.referencedLocked(ctx, oldName) {
		if err := s.store.Replace(oldName, name); err != nil {
			logging.For("job", id).Warn("Could not remove original %s: %v", oldName, err)
		}
	}
	return updated, nil
}

// releaseLocked removes name unless a record still references it.
func (s *Service) releaseLocked(ctx context.Context, name string) {
	if s.referencedLocked(ctx, name) {
		return
	}
	if err := s.store.Remove(name); err != nil {
		logging.Warn("Could not remove orphaned %s: %v", name, err)
	}
}

func (s *Service) referencedLocked(ctx context.Context, name string) bool {
	all, err := s.records.All(ctx)
	if err != nil {
		// Keep the file when unsure.
		return true
	}
	for _, rec := range all {
		if rec.StoredFilename == name {
			return true
		}
	}
	return false
}

// Shutdown cancels running conversions and waits for them to unwind or
// for ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func originalName(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}
