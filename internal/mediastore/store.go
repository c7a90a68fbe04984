package mediastore

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"

	"vidshare/internal/filesystem"
	"vidshare/internal/logging"
)

var (
	// ErrNotFound is returned when a stored file does not exist.
	ErrNotFound = errors.New("stored file not found")

	// ErrInvalidName is returned for names that could escape the store
	// directory.
	ErrInvalidName = errors.New("invalid stored filename")
)

// hashNameLen is the number of hex characters of the content hash used in
// stored filenames (128 bits).
const hashNameLen = 32

const tempPrefix = ".incoming-"

// Store persists media bytes under content-addressed filenames in a single
// directory. It keeps no content in memory.
type Store struct {
	dir   string
	retry filesystem.RetryConfig
}

// New creates the store directory if needed and returns a Store rooted there.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &Store{dir: dir, retry: filesystem.DefaultRetryConfig()}, nil
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the absolute location of a stored file.
func (s *Store) Path(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

// Staged is content written to scratch space and hashed but not yet
// visible under its final name.
type Staged struct {
	Name string
	Size int64
	path string
}

// Put streams r into the store and returns the content-addressed name and
// the number of bytes written. Uploading identical bytes twice yields the
// same name and a single file.
func (s *Store) Put(r io.Reader, ext string) (string, int64, error) {
	staged, err := s.Stage(r, ext)
	if err != nil {
		return "", 0, err
	}
	if err := s.Place(staged); err != nil {
		return "", 0, err
	}
	return staged.Name, staged.Size, nil
}

// Stage copies r to a scratch file while hashing it. The result must be
// passed to Place or Discard.
func (s *Store) Stage(r io.Reader, ext string) (*Staged, error) {
	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	h, _ := blake2b.New256(nil)
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		return nil, fmt.Errorf("write media: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("flush media: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close media: %w", err)
	}

	ok = true
	return &Staged{Name: hashName(h.Sum(nil), ext), Size: size, path: tmpPath}, nil
}

// Place makes staged content visible under its final name.
func (s *Store) Place(staged *Staged) error {
	if err := s.place(staged.path, staged.Name); err != nil {
		s.Discard(staged)
		return err
	}
	return nil
}

// Discard removes staged content that will not be placed.
func (s *Store) Discard(staged *Staged) {
	if err := os.Remove(staged.path); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove staged file %s: %v", staged.path, err)
	}
}

// TempPath returns a fresh scratch path inside the store for tools that
// write their own output (the encoder). The caller must either Commit or
// remove it.
func (s *Store) TempPath(ext string) string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return filepath.Join(s.dir, tempPrefix+hex.EncodeToString(b[:])+ext)
}

// Commit hashes a file already written inside the store directory and
// renames it to its content-addressed name.
func (s *Store) Commit(tmpPath, ext string) (string, int64, error) {
	if filepath.Dir(filepath.Clean(tmpPath)) != filepath.Clean(s.dir) {
		return "", 0, fmt.Errorf("%w: %s is outside the store", ErrInvalidName, tmpPath)
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, ErrNotFound
		}
		return "", 0, fmt.Errorf("open output: %w", err)
	}
	h, _ := blake2b.New256(nil)
	size, err := io.Copy(h, f)
	_ = f.Close()
	if err != nil {
		return "", 0, fmt.Errorf("hash output: %w", err)
	}

	name := hashName(h.Sum(nil), ext)
	if err := s.place(tmpPath, name); err != nil {
		return "", 0, err
	}
	return name, size, nil
}

// place moves tmpPath to name, discarding tmpPath when identical content is
// already stored.
func (s *Store) place(tmpPath, name string) error {
	final := filepath.Join(s.dir, name)
	if _, err := os.Stat(final); err == nil {
		logging.Debug("Content already stored as %s, discarding duplicate", name)
		return os.Remove(tmpPath)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}
	return nil
}

// Replace makes newName authoritative and removes oldName. It is not atomic
// across the two files; callers serialize replacements per media item.
func (s *Store) Replace(oldName, newName string) error {
	if _, err := s.Stat(newName); err != nil {
		return fmt.Errorf("replacement %s: %w", newName, err)
	}
	if oldName == newName || oldName == "" {
		return nil
	}
	return s.Remove(oldName)
}

// Remove deletes a stored file. Missing files are not an error.
func (s *Store) Remove(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// Stat returns the size of a stored file.
func (s *Store) Stat(name string) (int64, error) {
	path, err := s.Path(name)
	if err != nil {
		return 0, err
	}
	info, err := filesystem.StatWithRetry(path, s.retry)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if info.IsDir() {
		return 0, ErrNotFound
	}
	return info.Size(), nil
}

// Open opens a stored file for reading. Each call returns an independent
// handle, so concurrent readers never share a file offset.
func (s *Store) Open(name string) (*os.File, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	f, err := filesystem.OpenWithRetry(path, s.retry)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// CleanTemp removes scratch files left behind by a previous process.
func (s *Store) CleanTemp() (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, tempPrefix+"*"))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			logging.Warn("failed to remove stale temp file %s: %v", m, err)
			continue
		}
		removed++
	}
	return removed, nil
}

func hashName(sum []byte, ext string) string {
	return hex.EncodeToString(sum)[:hashNameLen] + ext
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") ||
		strings.HasPrefix(name, tempPrefix) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
