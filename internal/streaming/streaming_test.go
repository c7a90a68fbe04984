package streaming

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.WriteTimeout != 30*time.Second {
		t.Errorf("Expected WriteTimeout=30s, got %v", config.WriteTimeout)
	}
	if config.IdleTimeout != 60*time.Second {
		t.Errorf("Expected IdleTimeout=60s, got %v", config.IdleTimeout)
	}
	if config.ChunkSize != 256*1024 {
		t.Errorf("Expected ChunkSize=256KB, got %d", config.ChunkSize)
	}
}

func TestTimeoutWriterWrite(t *testing.T) {
	w := httptest.NewRecorder()
	tw := NewTimeoutWriter(context.Background(), w, DefaultConfig())
	defer tw.Close()

	data := []byte("test data")
	n, err := tw.Write(data)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(data) {
		t.Errorf("Expected to write %d bytes, wrote %d", len(data), n)
	}

	bytesWritten, _ := tw.Stats()
	if bytesWritten != int64(len(data)) {
		t.Errorf("Expected bytes written=%d, got %d", len(data), bytesWritten)
	}
}

func TestTimeoutWriterChunkedWrites(t *testing.T) {
	w := httptest.NewRecorder()
	config := DefaultConfig()
	config.ChunkSize = 4

	tw := NewTimeoutWriter(context.Background(), w, config)
	defer tw.Close()

	data := []byte("0123456789")
	n, err := tw.Write(data)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(data) || w.Body.String() != string(data) {
		t.Errorf("wrote %d bytes, body %q", n, w.Body.String())
	}
}

func TestTimeoutWriterClose(t *testing.T) {
	tw := NewTimeoutWriter(context.Background(), httptest.NewRecorder(), DefaultConfig())

	if err := tw.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Errorf("Second Close() returned error: %v", err)
	}

	_, err := tw.Write([]byte("data"))
	if !errors.Is(err, ErrStreamCanceled) {
		t.Errorf("Expected ErrStreamCanceled, got %v", err)
	}
}

func TestTimeoutWriterContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tw := NewTimeoutWriter(ctx, httptest.NewRecorder(), DefaultConfig())
	defer tw.Close()

	cancel()

	_, err := tw.Write([]byte("test"))
	if !errors.Is(err, ErrClientGone) {
		t.Errorf("Expected ErrClientGone after cancellation, got %v", err)
	}
}

func TestTimeoutWriterIdleTimeout(t *testing.T) {
	config := DefaultConfig()
	config.IdleTimeout = 40 * time.Millisecond

	tw := NewTimeoutWriter(context.Background(), httptest.NewRecorder(), config)
	defer tw.Close()

	time.Sleep(150 * time.Millisecond)

	_, err := tw.Write([]byte("late"))
	if !errors.Is(err, ErrWriteTimeout) {
		t.Errorf("Expected ErrWriteTimeout after idling, got %v", err)
	}
}

type failingWriter struct {
	*httptest.ResponseRecorder
}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestTimeoutWriterUnderlyingErrorIsClientGone(t *testing.T) {
	tw := NewTimeoutWriter(context.Background(), failingWriter{httptest.NewRecorder()}, DefaultConfig())
	defer tw.Close()

	_, err := tw.Write([]byte("x"))
	if !errors.Is(err, ErrClientGone) {
		t.Errorf("Expected ErrClientGone, got %v", err)
	}
}

func TestCopy(t *testing.T) {
	w := httptest.NewRecorder()
	payload := strings.Repeat("v", 1000)

	n, err := Copy(context.Background(), w, strings.NewReader(payload), DefaultConfig())
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if n != int64(len(payload)) || w.Body.String() != payload {
		t.Errorf("Copy wrote %d bytes", n)
	}
	if w.Header().Get("Transfer-Encoding") != "" {
		t.Error("Copy must not force chunked encoding")
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	errs := []error{ErrWriteTimeout, ErrClientGone, ErrStreamCanceled, ErrInvalidRange}
	for i, a := range errs {
		for j, b := range errs {
			if i != j && errors.Is(a, b) {
				t.Errorf("%v should not match %v", a, b)
			}
		}
	}
}
