package poster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/singleflight"

	"vidshare/internal/logging"
	"vidshare/internal/metrics"
)

// Poster frames match the Open Graph image size used by the placeholder.
const (
	Width  = 1200
	Height = 630
)

const defaultTimeout = 20 * time.Second

// ErrUnavailable is returned when no frame could be extracted.
var ErrUnavailable = errors.New("poster frame unavailable")

// Generator extracts, scales and caches poster frames for stored videos.
// Cache entries are keyed by the stored content address, so a converted
// record naturally gets a fresh poster.
type Generator struct {
	ffmpegPath string
	cacheDir   string
	timeout    time.Duration
	group      singleflight.Group
}

// New returns a Generator caching into cacheDir.
func New(ffmpegPath, cacheDir string) (*Generator, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create poster cache: %w", err)
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Generator{ffmpegPath: ffmpegPath, cacheDir: cacheDir, timeout: defaultTimeout}, nil
}

// Get returns JPEG bytes for the video at path, stored under name.
// Concurrent requests for the same name share one ffmpeg run.
func (g *Generator) Get(ctx context.Context, path, name string) ([]byte, error) {
	cachePath := g.cachePath(name)
	if data, err := os.ReadFile(cachePath); err == nil {
		metrics.PosterRequestsTotal.WithLabelValues("hit").Inc()
		return data, nil
	}

	v, err, _ := g.group.Do(name, func() (any, error) {
		if data, err := os.ReadFile(cachePath); err == nil {
			return data, nil
		}
		return g.generate(ctx, path, cachePath)
	})
	if err != nil {
		metrics.PosterRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.PosterRequestsTotal.WithLabelValues("generated").Inc()
	return v.([]byte), nil
}

func (g *Generator) cachePath(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return filepath.Join(g.cacheDir, base+".jpg")
}

func (g *Generator) generate(ctx context.Context, path, cachePath string) ([]byte, error) {
	start := time.Now()
	defer func() { metrics.PosterGenerationDuration.Observe(time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	img, err := g.extractFrame(ctx, path)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	thumb := imaging.Fit(img, Width, Height, imaging.Lanczos)
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("encode poster: %w", err)
	}

	if err := writeAtomic(cachePath, buf.Bytes()); err != nil {
		logging.Warn("Failed to cache poster %s: %v", cachePath, err)
	} else {
		logging.Debug("Poster cached: %s", cachePath)
	}
	return buf.Bytes(), nil
}

// extractFrame grabs the frame one second in, falling back to the first
// frame for clips shorter than that.
func (g *Generator) extractFrame(ctx context.Context, path string) (image.Image, error) {
	img, err := g.runFFmpeg(ctx, "-ss", "00:00:01", "-i", path)
	if err == nil {
		return img, nil
	}
	logging.Debug("Poster at 1s failed for %s: %v, trying first frame", path, err)

	img, err = g.runFFmpeg(ctx, "-i", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return img, nil
}

func (g *Generator) runFFmpeg(ctx context.Context, input ...string) (image.Image, error) {
	args := append([]string{"-hide_banner", "-nostdin", "-loglevel", "error"}, input...)
	args = append(args, "-frames:v", "1", "-f", "image2pipe", "-vcodec", "png", "-")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.ffmpegPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, errors.New("ffmpeg produced no output")
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".poster-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
