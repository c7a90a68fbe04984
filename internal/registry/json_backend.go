package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"vidshare/internal/logging"
	"vidshare/internal/metrics"
)

// JSONBackend persists the whole mapping as one JSON document.
type JSONBackend struct {
	path string
}

// NewJSONBackend returns a backend writing to path. The parent directory is
// created and the file is initialised to an empty mapping if missing, so an
// unwritable location fails at startup rather than on the first upload.
func NewJSONBackend(path string) (*JSONBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create metadata dir: %w", err)
	}
	b := &JSONBackend{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := b.Save(context.Background(), map[string]MediaRecord{}); err != nil {
			return nil, fmt.Errorf("initialise metadata file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat metadata file: %w", err)
	}
	return b, nil
}

// Name identifies the backend in logs and metrics.
func (b *JSONBackend) Name() string { return "json" }

// Load reads the mapping. A missing, unreadable or corrupt file yields an
// empty mapping and a warning instead of an error; the next successful Save
// overwrites the bad file.
func (b *JSONBackend) Load(ctx context.Context) (map[string]MediaRecord, error) {
	done := observe(b.Name(), "load")

	f, err := os.Open(b.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warn("Metadata file %s unreadable, treating as empty: %v", b.path, err)
			metrics.RegistryCorruptions.Inc()
		}
		done(nil)
		return map[string]MediaRecord{}, nil
	}
	defer f.Close()

	records := map[string]MediaRecord{}
	if err := json.NewDecoder(f).Decode(&records); err != nil {
		if !errors.Is(err, io.EOF) {
			logging.Warn("Metadata file %s is corrupt, treating as empty: %v", b.path, err)
			metrics.RegistryCorruptions.Inc()
		}
		done(nil)
		return map[string]MediaRecord{}, nil
	}
	if records == nil {
		records = map[string]MediaRecord{}
	}
	done(nil)
	return records, nil
}

// Save serialises the mapping to a temp file and renames it over the
// previous document.
func (b *JSONBackend) Save(ctx context.Context, records map[string]MediaRecord) (err error) {
	done := observe(b.Name(), "save")
	defer func() { done(err) }()

	dir := filepath.Dir(b.path)
	tmpFile, err := os.CreateTemp(dir, "metadata-*.json")
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("flush metadata: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp metadata file: %w", err)
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		return fmt.Errorf("replace metadata file: %w", err)
	}
	success = true
	return nil
}

// Close is a no-op; the JSON backend holds no open handles.
func (b *JSONBackend) Close() error { return nil }
