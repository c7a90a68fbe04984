package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newJSONRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meta", "metadata.json")
	backend, err := NewJSONBackend(path)
	if err != nil {
		t.Fatalf("NewJSONBackend() error = %v", err)
	}
	return New(backend), path
}

func newSQLiteRegistry(t *testing.T) *Registry {
	t.Helper()
	backend, err := NewSQLiteBackend(context.Background(), filepath.Join(t.TempDir(), "metadata.db"))
	if err != nil {
		t.Fatalf("NewSQLiteBackend() error = %v", err)
	}
	r := New(backend)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func sampleRecord(id string) MediaRecord {
	return MediaRecord{
		ID:             id,
		StoredFilename: id + ".mp4",
		OriginalName:   "clip.mp4",
		MimeType:       "video/mp4",
		SizeBytes:      1024,
		CreatedAt:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewJSONBackendCreatesEmptyFile(t *testing.T) {
	_, path := newJSONRegistry(t)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("metadata file not created: %v", err)
	}
	if got := string(data); got != "{}\n" {
		t.Errorf("initial metadata = %q, want %q", got, "{}\n")
	}
}

func TestBackends(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		open func(t *testing.T) *Registry
	}{
		{"json", func(t *testing.T) *Registry { r, _ := newJSONRegistry(t); return r }},
		{"sqlite", newSQLiteRegistry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.open(t)

			if _, err := r.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
			}

			rec := sampleRecord("abc")
			if err := r.Insert(ctx, rec); err != nil {
				t.Fatalf("Insert() error = %v", err)
			}
			got, err := r.Get(ctx, "abc")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.StoredFilename != rec.StoredFilename || !got.CreatedAt.Equal(rec.CreatedAt) || got.Converted {
				t.Errorf("Get() = %+v, want %+v", got, rec)
			}

			updated, err := r.Update(ctx, "abc", func(m *MediaRecord) error {
				m.StoredFilename = "def.mp4"
				m.MimeType = "video/mp4"
				m.SizeBytes = 2048
				m.Converted = true
				return nil
			})
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			if !updated.Converted || updated.SizeBytes != 2048 {
				t.Errorf("Update() = %+v", updated)
			}
			got, _ = r.Get(ctx, "abc")
			if got.StoredFilename != "def.mp4" || !got.Converted {
				t.Errorf("after Update Get() = %+v", got)
			}

			stats, err := r.Stats(ctx)
			if err != nil {
				t.Fatalf("Stats() error = %v", err)
			}
			if stats.TotalRecords != 1 || stats.ConvertedRecords != 1 || stats.TotalBytes != 2048 {
				t.Errorf("Stats() = %+v", stats)
			}
		})
	}
}

func TestUpdateMissingAndFailing(t *testing.T) {
	ctx := context.Background()
	r, _ := newJSONRegistry(t)

	if _, err := r.Update(ctx, "nope", func(*MediaRecord) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}

	if err := r.Insert(ctx, sampleRecord("a")); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	if _, err := r.Update(ctx, "a", func(m *MediaRecord) error {
		m.Converted = true
		return boom
	}); !errors.Is(err, boom) {
		t.Errorf("Update() error = %v, want boom", err)
	}
	got, _ := r.Get(ctx, "a")
	if got.Converted {
		t.Error("failed Update must not persist changes")
	}
}

func TestInsertRejectsEmptyID(t *testing.T) {
	r, _ := newJSONRegistry(t)
	if err := r.Insert(context.Background(), MediaRecord{}); err == nil {
		t.Error("Insert() with empty id should fail")
	}
}

func TestCorruptFileReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	r, path := newJSONRegistry(t)

	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Get(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() on corrupt file error = %v, want ErrNotFound", err)
	}

	if err := r.Insert(ctx, sampleRecord("x")); err != nil {
		t.Fatalf("Insert() after corruption error = %v", err)
	}
	if _, err := r.Get(ctx, "x"); err != nil {
		t.Errorf("Get() after rewrite error = %v", err)
	}
}

func TestMissingFileReadsAsEmpty(t *testing.T) {
	r, path := newJSONRegistry(t)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	all, err := r.All(context.Background())
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("All() = %d records, want 0", len(all))
	}
}

func TestConcurrentUpdatesAreNotLost(t *testing.T) {
	ctx := context.Background()
	r, _ := newJSONRegistry(t)

	const n = 20
	for i := 0; i < n; i++ {
		if err := r.Insert(ctx, sampleRecord(fmt.Sprintf("id-%02d", i))); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Update(ctx, fmt.Sprintf("id-%02d", i), func(m *MediaRecord) error {
				m.Converted = true
				return nil
			})
			if err != nil {
				t.Errorf("Update(%d) error = %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	stats, err := r.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.ConvertedRecords != n {
		t.Errorf("ConvertedRecords = %d, want %d", stats.ConvertedRecords, n)
	}
}

func TestAllNewestFirst(t *testing.T) {
	ctx := context.Background()
	r, _ := newJSONRegistry(t)

	older := sampleRecord("older")
	newer := sampleRecord("newer")
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)
	for _, rec := range []MediaRecord{older, newer} {
		if err := r.Insert(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	all, err := r.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != "newer" || all[1].ID != "older" {
		t.Errorf("All() order = %v", all)
	}
}

func TestRecordsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "metadata.db")

	backend, err := NewSQLiteBackend(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	r := New(backend)
	if err := r.Insert(ctx, sampleRecord("keep")); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	backend, err = NewSQLiteBackend(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	r = New(backend)
	defer r.Close()
	if _, err := r.Get(ctx, "keep"); err != nil {
		t.Errorf("Get() after reopen error = %v", err)
	}
}

// gatedBackend blocks Save until release is closed.
type gatedBackend struct {
	mu      sync.Mutex
	records map[string]MediaRecord
	saving  chan struct{}
	release chan struct{}
	saveErr error
	loads   int
}

func (b *gatedBackend) Name() string { return "gated" }

func (b *gatedBackend) Load(context.Context) (map[string]MediaRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loads++
	out := make(map[string]MediaRecord, len(b.records))
	for id, rec := range b.records {
		out[id] = rec
	}
	return out, nil
}

func (b *gatedBackend) Save(_ context.Context, records map[string]MediaRecord) error {
	if b.saving != nil {
		close(b.saving)
		<-b.release
	}
	if b.saveErr != nil {
		return b.saveErr
	}
	b.mu.Lock()
	b.records = records
	b.mu.Unlock()
	return nil
}

func (b *gatedBackend) Close() error { return nil }

func TestReadsDoNotWaitForSave(t *testing.T) {
	ctx := context.Background()
	backend := &gatedBackend{records: map[string]MediaRecord{"old": sampleRecord("old")}}
	r := New(backend)
	if _, err := r.Get(ctx, "old"); err != nil {
		t.Fatal(err)
	}

	backend.saving = make(chan struct{})
	backend.release = make(chan struct{})
	inserted := make(chan error, 1)
	go func() { inserted <- r.Insert(ctx, sampleRecord("new")) }()
	<-backend.saving

	got := make(chan error, 1)
	go func() {
		_, err := r.Get(ctx, "old")
		got <- err
	}()
	select {
	case err := <-got:
		if err != nil {
			t.Errorf("Get() during Save error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Get() blocked behind Save")
	}
	if _, err := r.Get(ctx, "new"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unsaved record visible: err = %v", err)
	}

	close(backend.release)
	if err := <-inserted; err != nil {
		t.Fatal(err)
	}
	if _, err := r.Get(ctx, "new"); err != nil {
		t.Errorf("Get() after Save error = %v", err)
	}
	if backend.loads != 1 {
		t.Errorf("backend loaded %d times, want 1", backend.loads)
	}
}

func TestFailedSaveIsNotPublished(t *testing.T) {
	ctx := context.Background()
	backend := &gatedBackend{records: map[string]MediaRecord{}, saveErr: errors.New("disk full")}
	r := New(backend)

	if err := r.Insert(ctx, sampleRecord("lost")); err == nil {
		t.Fatal("Insert() succeeded with failing Save")
	}
	if _, err := r.Get(ctx, "lost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after failed Save error = %v, want ErrNotFound", err)
	}
}
