package uploads

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vidshare/internal/jobs"
	"vidshare/internal/mediastore"
	"vidshare/internal/registry"
	"vidshare/internal/transcoder"
)

// fakeConverter writes a fixed payload to out, or fails when err is set.
// When gate is non-nil it blocks until gate is closed or ctx is done.
type fakeConverter struct {
	mu      sync.Mutex
	calls   int
	payload []byte
	err     error
	gate    chan struct{}
}

func (f *fakeConverter) Run(ctx context.Context, in, out string, cb transcoder.Callbacks) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	cb.OnStart()
	cb.OnProgress(transcoder.Progress{Percent: 50})
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			cb.OnError(ctx.Err())
			return ctx.Err()
		}
	}
	if f.err != nil {
		cb.OnError(f.err)
		return f.err
	}
	if err := os.WriteFile(out, f.payload, 0o644); err != nil {
		cb.OnError(err)
		return err
	}
	cb.OnEnd()
	return nil
}

type fixture struct {
	svc     *Service
	store   *mediastore.Store
	records *registry.Registry
	jobs    *jobs.Registry
	conv    *fakeConverter
}

func newFixture(t *testing.T, conv *fakeConverter, workers int) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := mediastore.New(filepath.Join(dir, "media"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	backend, err := registry.NewJSONBackend(filepath.Join(dir, "metadata.json"))
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	records := registry.New(backend)
	jobReg := jobs.NewRegistry()
	svc := NewService(store, records, jobReg, conv, workers)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return &fixture{svc: svc, store: store, records: records, jobs: jobReg, conv: conv}
}

func waitForStatus(t *testing.T, reg *jobs.Registry, id string, want jobs.Status) jobs.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := reg.Get(id); ok && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := reg.Get(id)
	t.Fatalf("job %s: status %q, want %q", id, job.Status, want)
	return job
}

func TestIngestPlayableIsStoredAsIs(t *testing.T) {
	f := newFixture(t, &fakeConverter{}, 1)
	res, err := f.svc.Ingest(context.Background(), "clip.MP4", bytes.NewReader([]byte("mp4 bytes")))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Job != nil {
		t.Errorf("unexpected job for playable upload: %+v", res.Job)
	}
	rec := res.Record
	if rec.ID == "" || rec.OriginalName != "clip.MP4" || rec.SizeBytes != 9 {
		t.Errorf("record = %+v", rec)
	}
	if filepath.Ext(rec.StoredFilename) != ".mp4" {
		t.Errorf("stored name %q lost its extension", rec.StoredFilename)
	}
	if rec.Converted {
		t.Error("playable upload marked converted")
	}

	got, err := f.records.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.StoredFilename != rec.StoredFilename {
		t.Errorf("persisted %q, returned %q", got.StoredFilename, rec.StoredFilename)
	}
}

func TestIngestStripsClientPath(t *testing.T) {
	f := newFixture(t, &fakeConverter{}, 1)
	res, err := f.svc.Ingest(context.Background(), `C:\Users\me\holiday.webm`, bytes.NewReader([]byte("x")))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Record.OriginalName != "holiday.webm" {
		t.Errorf("OriginalName = %q", res.Record.OriginalName)
	}
}

func TestIngestConvertsAndRepoints(t *testing.T) {
	conv := &fakeConverter{payload: []byte("converted mp4")}
	f := newFixture(t, conv, 1)

	res, err := f.svc.Ingest(context.Background(), "movie.mkv", bytes.NewReader([]byte("matroska")))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Job == nil {
		t.Fatal("expected a conversion job")
	}
	original := res.Record.StoredFilename

	job := waitForStatus(t, f.jobs, res.Record.ID, jobs.StatusDone)
	if job.Progress != 100 {
		t.Errorf("progress = %d", job.Progress)
	}

	rec, err := f.records.Get(context.Background(), res.Record.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !rec.Converted || rec.MimeType != "video/mp4" || filepath.Ext(rec.StoredFilename) != ".mp4" {
		t.Errorf("record after conversion = %+v", rec)
	}
	if rec.SizeBytes != int64(len(conv.payload)) {
		t.Errorf("size = %d", rec.SizeBytes)
	}
	if _, err := f.store.Stat(original); !errors.Is(err, mediastore.ErrNotFound) {
		t.Errorf("original still present: %v", err)
	}
}

func TestSharedOriginalSurvivesConversion(t *testing.T) {
	gate := make(chan struct{})
	conv := &fakeConverter{payload: []byte("converted"), gate: gate}
	f := newFixture(t, conv, 2)
	ctx := context.Background()

	first, err := f.svc.Ingest(ctx, "a.avi", bytes.NewReader([]byte("same bytes")))
	if err != nil {
		t.Fatalf("Ingest first: %v", err)
	}
	second, err := f.svc.Ingest(ctx, "b.avi", bytes.NewReader([]byte("same bytes")))
	if err != nil {
		t.Fatalf("Ingest second: %v", err)
	}
	if first.Record.StoredFilename != second.Record.StoredFilename {
		t.Fatalf("identical uploads stored separately: %q vs %q", first.Record.StoredFilename, second.Record.StoredFilename)
	}
	shared := first.Record.StoredFilename

	close(gate)
	waitForStatus(t, f.jobs, first.Record.ID, jobs.StatusDone)
	waitForStatus(t, f.jobs, second.Record.ID, jobs.StatusDone)

	// Both records moved to the converted file, so the original goes once
	// the last reference is released.
	if _, err := f.store.Stat(shared); !errors.Is(err, mediastore.ErrNotFound) {
		t.Errorf("shared original = %v, want removed after both conversions", err)
	}
	for _, id := range []string{first.Record.ID, second.Record.ID} {
		rec, _ := f.records.Get(ctx, id)
		if _, err := f.store.Stat(rec.StoredFilename); err != nil {
			t.Errorf("record %s points at missing %s", id, rec.StoredFilename)
		}
	}
}

func TestConversionFailureKeepsOriginal(t *testing.T) {
	conv := &fakeConverter{err: errors.New("encoder exploded")}
	f := newFixture(t, conv, 1)

	res, err := f.svc.Ingest(context.Background(), "broken.flv", bytes.NewReader([]byte("flv")))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	job := waitForStatus(t, f.jobs, res.Record.ID, jobs.StatusError)
	if job.Message == "" {
		t.Error("error job has no message")
	}
	rec, _ := f.records.Get(context.Background(), res.Record.ID)
	if rec.Converted || rec.StoredFilename != res.Record.StoredFilename {
		t.Errorf("record changed after failure: %+v", rec)
	}
	if _, err := f.store.Stat(rec.StoredFilename); err != nil {
		t.Errorf("original missing after failure: %v", err)
	}
}

func TestStartConversionErrors(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	f := newFixture(t, &fakeConverter{gate: gate}, 1)
	ctx := context.Background()

	if _, err := f.svc.StartConversion(ctx, "missing"); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("unknown id: %v", err)
	}

	playable, _ := f.svc.Ingest(ctx, "ok.webm", bytes.NewReader([]byte("webm")))
	if _, err := f.svc.StartConversion(ctx, playable.Record.ID); !errors.Is(err, ErrAlreadyConverted) {
		t.Errorf("playable: %v", err)
	}

	pending, _ := f.svc.Ingest(ctx, "slow.mov", bytes.NewReader([]byte("mov")))
	if _, err := f.svc.StartConversion(ctx, pending.Record.ID); !errors.Is(err, jobs.ErrAlreadyExists) {
		t.Errorf("duplicate: %v", err)
	}
}

func TestWaitingForSlotMessage(t *testing.T) {
	gate := make(chan struct{})
	f := newFixture(t, &fakeConverter{payload: []byte("out"), gate: gate}, 1)
	ctx := context.Background()

	first, _ := f.svc.Ingest(ctx, "one.mkv", bytes.NewReader([]byte("one")))
	waitForStatus(t, f.jobs, first.Record.ID, jobs.StatusRunning)

	second, _ := f.svc.Ingest(ctx, "two.mkv", bytes.NewReader([]byte("two")))
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, _ := f.jobs.Get(second.Record.ID)
		if job.Message == "waiting for encoder slot" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := f.jobs.Get(second.Record.ID)
	if job.Status != jobs.StatusQueued || job.Message != "waiting for encoder slot" {
		t.Errorf("second job = %+v", job)
	}

	close(gate)
	waitForStatus(t, f.jobs, second.Record.ID, jobs.StatusDone)
}

func TestShutdownFailsRunningJobs(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	f := newFixture(t, &fakeConverter{gate: gate}, 1)

	res, _ := f.svc.Ingest(context.Background(), "long.ts", bytes.NewReader([]byte("ts")))
	waitForStatus(t, f.jobs, res.Record.ID, jobs.StatusRunning)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.svc.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	job, _ := f.jobs.Get(res.Record.ID)
	if job.Status != jobs.StatusError {
		t.Errorf("status after shutdown = %q", job.Status)
	}
	if _, err := f.svc.StartConversion(context.Background(), res.Record.ID); err == nil {
		t.Error("StartConversion succeeded after shutdown")
	}
}

func TestResumePending(t *testing.T) {
	conv := &fakeConverter{payload: []byte("resumed")}
	f := newFixture(t, conv, 1)
	ctx := context.Background()

	name, _, err := f.store.Put(bytes.NewReader([]byte("leftover")), ".avi")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := f.records.Insert(ctx, registry.MediaRecord{ID: "left", StoredFilename: name, MimeType: "video/x-msvideo", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	n, err := f.svc.ResumePending(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ResumePending = %d, %v", n, err)
	}
	waitForStatus(t, f.jobs, "left", jobs.StatusDone)
}

func TestIngestMultipart(t *testing.T) {
	f := newFixture(t, &fakeConverter{}, 1)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("note", "ignored")
	fw, _ := mw.CreateFormFile(FileField, "upload.webm")
	_, _ = fw.Write([]byte("webm data"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res, err := f.svc.IngestMultipart(req)
	if err != nil {
		t.Fatalf("IngestMultipart: %v", err)
	}
	if res.Record.OriginalName != "upload.webm" || res.Record.SizeBytes != 9 {
		t.Errorf("record = %+v", res.Record)
	}
}

func TestIngestMultipartWithoutFile(t *testing.T) {
	f := newFixture(t, &fakeConverter{}, 1)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("file", "not a file part")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if _, err := f.svc.IngestMultipart(req); !errors.Is(err, ErrNoFile) {
		t.Errorf("err = %v, want ErrNoFile", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader([]byte("raw")))
	req.Header.Set("Content-Type", "text/plain")
	if _, err := f.svc.IngestMultipart(req); !errors.Is(err, ErrNoFile) {
		t.Errorf("non-multipart err = %v, want ErrNoFile", err)
	}
}
