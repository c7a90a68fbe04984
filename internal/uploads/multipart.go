package uploads

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// FileField is the multipart form field carrying the upload.
const FileField = "file"

// IngestMultipart streams the first "file" part of r into the store
// without buffering the body in memory or on disk first. Callers bound
// the body with http.MaxBytesReader.
func (s *Service) IngestMultipart(r *http.Request) (Result, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrNoFile, err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return Result{}, ErrNoFile
		}
		if err != nil {
			return Result{}, fmt.Errorf("read multipart: %w", err)
		}
		if part.FormName() != FileField || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		res, err := s.Ingest(r.Context(), part.FileName(), part)
		_ = part.Close()
		return res, err
	}
}
