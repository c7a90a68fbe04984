package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"vidshare/internal/logging"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates that a write did not complete within the
	// configured deadline, usually because the client reads too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates that the client disconnected before the
	// stream completed.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled indicates that the writer was closed while a copy
	// was still in progress.
	ErrStreamCanceled = errors.New("stream canceled")
)

// Config configures the timeout writer.
type Config struct {
	// WriteTimeout bounds each chunk written to the connection.
	WriteTimeout time.Duration
	// IdleTimeout is the maximum time between successful writes.
	IdleTimeout time.Duration
	// ChunkSize splits large writes so deadlines are checked often.
	ChunkSize int
}

// DefaultConfig returns the settings used for media responses.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ChunkSize:    256 * 1024,
	}
}

// TimeoutWriter wraps an http.ResponseWriter so a stalled or vanished
// client ends the copy instead of pinning the handler goroutine.
type TimeoutWriter struct {
	w         http.ResponseWriter
	rc        *http.ResponseController
	ctx       context.Context
	cancel    context.CancelFunc
	config    Config
	startTime time.Time
	lastWrite time.Time
	written   int64
	mu        sync.Mutex
	closed    bool
	idled     bool
}

// NewTimeoutWriter creates a timeout-protected writer bound to ctx,
// normally the request context.
func NewTimeoutWriter(ctx context.Context, w http.ResponseWriter, config Config) *TimeoutWriter {
	writerCtx, cancel := context.WithCancel(ctx)
	now := time.Now()

	tw := &TimeoutWriter{
		w:         w,
		rc:        http.NewResponseController(w),
		ctx:       writerCtx,
		cancel:    cancel,
		config:    config,
		startTime: now,
		lastWrite: now,
	}

	go tw.idleChecker()

	return tw
}

// Write implements io.Writer.
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()
	if closed {
		return 0, ErrStreamCanceled
	}

	total := 0
	for len(p) > 0 {
		select {
		case <-tw.ctx.Done():
			return total, tw.contextError()
		default:
		}

		chunk := len(p)
		if tw.config.ChunkSize > 0 && chunk > tw.config.ChunkSize {
			chunk = tw.config.ChunkSize
		}

		n, err := tw.writeChunk(p[:chunk])
		total += n
		if err != nil {
			return total, err
		}
		p = p[chunk:]
	}
	return total, nil
}

func (tw *TimeoutWriter) writeChunk(p []byte) (int, error) {
	if tw.config.WriteTimeout > 0 {
		// Recorders and some wrappers cannot set deadlines; the idle
		// checker still bounds those.
		if err := tw.rc.SetWriteDeadline(time.Now().Add(tw.config.WriteTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			logging.Debug("set write deadline: %v", err)
		}
	}

	n, err := tw.w.Write(p)

	tw.mu.Lock()
	tw.written += int64(n)
	if n > 0 {
		tw.lastWrite = time.Now()
	}
	tw.mu.Unlock()

	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			tw.cancel()
			return n, ErrWriteTimeout
		}
		if tw.ctx.Err() != nil {
			return n, tw.contextError()
		}
		return n, fmt.Errorf("%w: %v", ErrClientGone, err)
	}
	return n, nil
}

// idleChecker cancels the writer when no write succeeds for IdleTimeout.
func (tw *TimeoutWriter) idleChecker() {
	if tw.config.IdleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(tw.config.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tw.mu.Lock()
			idle := time.Since(tw.lastWrite)
			closed := tw.closed
			if idle > tw.config.IdleTimeout {
				tw.idled = true
			}
			tw.mu.Unlock()

			if closed {
				return
			}
			if idle > tw.config.IdleTimeout {
				logging.Warn("Stream idle timeout exceeded: %v", idle)
				tw.cancel()
				return
			}

		case <-tw.ctx.Done():
			return
		}
	}
}

func (tw *TimeoutWriter) contextError() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	switch {
	case tw.idled:
		return ErrWriteTimeout
	case tw.closed:
		return ErrStreamCanceled
	default:
		return ErrClientGone
	}
}

// Close stops the idle checker; later writes fail with ErrStreamCanceled.
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return nil
	}

	tw.closed = true
	tw.cancel()

	return nil
}

// Stats returns bytes written and time since the writer was created.
func (tw *TimeoutWriter) Stats() (bytesWritten int64, duration time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.written, time.Since(tw.startTime)
}

// Copy streams src to w through a TimeoutWriter and returns the number of
// bytes delivered.
func Copy(ctx context.Context, w http.ResponseWriter, src io.Reader, config Config) (int64, error) {
	tw := NewTimeoutWriter(ctx, w, config)
	defer func() {
		if err := tw.Close(); err != nil {
			logging.Warn("Failed to close timeout writer: %v", err)
		}
	}()

	_, err := io.Copy(tw, src)

	written, duration := tw.Stats()
	logging.Debug("Stream completed: %d bytes in %v", written, duration)

	return written, err
}
