package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"vidshare/internal/metrics"
)

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = errors.New("media record not found")

// Backend persists the full id → record mapping.
type Backend interface {
	Name() string
	Load(ctx context.Context) (map[string]MediaRecord, error)
	Save(ctx context.Context, records map[string]MediaRecord) error
	Close() error
}

// Registry is the durable id → MediaRecord mapping. Every mutation is a
// load-modify-save performed under writeMu, so concurrent updates to
// different ids never overwrite each other. Reads are served from the last
// saved snapshot and never wait on a Save in progress. The process is
// assumed to be the only writer of the backend.
type Registry struct {
	writeMu sync.Mutex
	backend Backend

	mu       sync.RWMutex
	snapshot map[string]MediaRecord
}

// New wraps backend.
func New(backend Backend) *Registry {
	return &Registry{backend: backend}
}

// Backend returns the storage backend name.
func (r *Registry) Backend() string { return r.backend.Name() }

// current returns the published snapshot, loading it on first use. The
// returned map must not be modified.
func (r *Registry) current(ctx context.Context) (map[string]MediaRecord, error) {
	r.mu.RLock()
	snap := r.snapshot
	r.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshot != nil {
		return r.snapshot, nil
	}
	records, err := r.backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = make(map[string]MediaRecord)
	}
	r.snapshot = records
	return records, nil
}

// mutate copies the snapshot, lets fn change the copy, saves it and
// publishes it. Caller holds writeMu.
func (r *Registry) mutate(ctx context.Context, fn func(map[string]MediaRecord) error) error {
	snap, err := r.current(ctx)
	if err != nil {
		return err
	}
	next := make(map[string]MediaRecord, len(snap)+1)
	for id, rec := range snap {
		next[id] = rec
	}
	if err := fn(next); err != nil {
		return err
	}
	if err := r.backend.Save(ctx, next); err != nil {
		return err
	}

	r.mu.Lock()
	r.snapshot = next
	r.mu.Unlock()
	return nil
}

// Get returns the record for id.
func (r *Registry) Get(ctx context.Context, id string) (MediaRecord, error) {
	records, err := r.current(ctx)
	if err != nil {
		return MediaRecord{}, err
	}
	rec, ok := records[id]
	if !ok {
		return MediaRecord{}, ErrNotFound
	}
	return rec, nil
}

// Insert adds or overwrites the record under rec.ID.
func (r *Registry) Insert(ctx context.Context, rec MediaRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("insert media record: empty id")
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	return r.mutate(ctx, func(records map[string]MediaRecord) error {
		records[rec.ID] = rec
		return nil
	})
}

// Update applies fn to the stored record for id and persists the result.
// If fn returns an error nothing is written.
func (r *Registry) Update(ctx context.Context, id string, fn func(*MediaRecord) error) (MediaRecord, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	var updated MediaRecord
	err := r.mutate(ctx, func(records map[string]MediaRecord) error {
		rec, ok := records[id]
		if !ok {
			return ErrNotFound
		}
		if err := fn(&rec); err != nil {
			return err
		}
		rec.ID = id
		records[id] = rec
		updated = rec
		return nil
	})
	if err != nil {
		return MediaRecord{}, err
	}
	return updated, nil
}

// All returns every record, newest first.
func (r *Registry) All(ctx context.Context) ([]MediaRecord, error) {
	records, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MediaRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Stats satisfies metrics.StatsProvider.
func (r *Registry) Stats(ctx context.Context) (metrics.Stats, error) {
	records, err := r.current(ctx)
	if err != nil {
		return metrics.Stats{}, err
	}
	var s metrics.Stats
	for _, rec := range records {
		s.TotalRecords++
		if rec.Converted {
			s.ConvertedRecords++
		}
		s.TotalBytes += rec.SizeBytes
	}
	return s, nil
}

// Close releases the backend.
func (r *Registry) Close() error {
	return r.backend.Close()
}

// observe records duration and outcome of a backend operation.
func observe(backend, operation string) func(error) {
	start := time.Now()
	return func(err error) {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.RegistryOperationsTotal.WithLabelValues(backend, operation, status).Inc()
		metrics.RegistryOperationDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
	}
}
