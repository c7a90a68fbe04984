package streaming

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"vidshare/internal/logging"
	"vidshare/internal/metrics"
)

// ErrInvalidRange is returned by ParseRange for headers that cannot be
// satisfied; callers answer 416.
var ErrInvalidRange = errors.New("invalid range")

// ParseRange parses a single "bytes=<start>-<end>" range against a
// resource of size bytes. An omitted end means the last byte, and an end
// past the resource is clamped. Suffix ranges ("bytes=-500") and
// multi-range lists are not supported and yield ErrInvalidRange.
func ParseRange(header string, size int64) (start, end int64, err error) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("%w: unsupported unit in %q", ErrInvalidRange, header)
	}
	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, fmt.Errorf("%w: missing '-' in %q", ErrInvalidRange, header)
	}

	start, err = parsePosition(strings.TrimSpace(startStr))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad start in %q", ErrInvalidRange, header)
	}

	endStr = strings.TrimSpace(endStr)
	if endStr == "" {
		end = size - 1
	} else {
		end, err = parsePosition(endStr)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: bad end in %q", ErrInvalidRange, header)
		}
	}

	if start > end {
		return 0, 0, fmt.Errorf("%w: start after end in %q", ErrInvalidRange, header)
	}
	if start >= size {
		return 0, 0, fmt.Errorf("%w: start beyond size %d", ErrInvalidRange, size)
	}
	if end > size-1 {
		end = size - 1
	}
	return start, end, nil
}

// parsePosition accepts ASCII digits only; strconv alone would also take a
// sign.
func parsePosition(s string) (int64, error) {
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.ParseInt(s, 10, 64)
}

// ServeContent answers r with content, honoring a single byte range. It
// replies 200 with the whole body when no Range header is present, 206
// with the requested span otherwise, and 416 with no body when the range
// is invalid. A client that disconnects mid-transfer is logged and
// otherwise ignored.
func ServeContent(w http.ResponseWriter, r *http.Request, content io.ReadSeeker, size int64, mimeType string) {
	ServeContentWithConfig(w, r, content, size, mimeType, DefaultConfig())
}

// ServeContentWithConfig is ServeContent with explicit write timeouts.
func ServeContentWithConfig(w http.ResponseWriter, r *http.Request, content io.ReadSeeker, size int64, mimeType string, cfg Config) {
	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", mimeType)
	h.Set("X-Content-Type-Options", "nosniff")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		metrics.RangeResponsesTotal.WithLabelValues("200").Inc()
		if r.Method != http.MethodHead {
			stream(w, r, content, size, cfg)
		}
		return
	}

	start, end, err := ParseRange(rangeHeader, size)
	if err != nil {
		logging.Debug("Rejecting range %q for %s: %v", rangeHeader, r.URL.Path, err)
		h.Del("Content-Type")
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		h.Set("Content-Length", "0")
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		metrics.RangeResponsesTotal.WithLabelValues("416").Inc()
		return
	}

	length := end - start + 1
	if _, err := content.Seek(start, io.SeekStart); err != nil {
		logging.Error("Seek to %d failed for %s: %v", start, r.URL.Path, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)
	metrics.RangeResponsesTotal.WithLabelValues("206").Inc()
	if r.Method != http.MethodHead {
		stream(w, r, io.LimitReader(content, length), length, cfg)
	}
}

func stream(w http.ResponseWriter, r *http.Request, src io.Reader, want int64, cfg Config) {
	n, err := Copy(r.Context(), w, src, cfg)
	metrics.MediaBytesServed.Add(float64(n))
	switch {
	case err == nil:
		if n < want {
			logging.Warn("Short read serving %s: %d of %d bytes", r.URL.Path, n, want)
		}
	case errors.Is(err, ErrClientGone), errors.Is(err, ErrWriteTimeout), errors.Is(err, ErrStreamCanceled):
		metrics.MediaClientAborts.Inc()
		logging.Debug("Stream of %s ended early after %d bytes: %v", r.URL.Path, n, err)
	default:
		logging.Warn("Stream of %s failed after %d bytes: %v", r.URL.Path, n, err)
	}
}
