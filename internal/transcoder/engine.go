package transcoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"vidshare/internal/logging"
	"vidshare/internal/metrics"
)

// Callbacks receives lifecycle events for one transcode. OnStart fires
// once the encoder process is running, OnProgress any number of times
// after that, and exactly one of OnEnd or OnError last.
type Callbacks interface {
	OnStart()
	OnProgress(Progress)
	OnError(error)
	OnEnd()
}

// PhaseReporter is optionally implemented by Callbacks to receive
// human-readable phase changes ("probing", "remuxing", ...).
type PhaseReporter interface {
	OnPhase(string)
}

// Config controls the external tools and sampling behavior.
type Config struct {
	FFmpegPath       string
	FFprobePath      string
	ProgressInterval time.Duration
	// Timeout, when positive, caps a single transcode. Zero disables the
	// watchdog.
	Timeout time.Duration
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		FFmpegPath:       "ffmpeg",
		FFprobePath:      "ffprobe",
		ProgressInterval: 750 * time.Millisecond,
	}
}

// Engine runs ffmpeg conversions.
type Engine struct {
	cfg       Config
	processes map[string]*exec.Cmd
	processMu sync.Mutex
}

// New creates an Engine. Zero fields in cfg take their defaults.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = def.FFmpegPath
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = def.FFprobePath
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = def.ProgressInterval
	}
	return &Engine{
		cfg:       cfg,
		processes: make(map[string]*exec.Cmd),
	}
}

// Start runs the transcode in the background. The returned channel
// receives exactly one value (nil on success) and is then closed.
func (e *Engine) Start(ctx context.Context, in, out string, cb Callbacks) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- e.Run(ctx, in, out, cb)
	}()
	return done
}

// Run converts in to out and blocks until the output is finalized or the
// conversion fails. On failure the partial output is removed and the
// input is left untouched.
func (e *Engine) Run(ctx context.Context, in, out string, cb Callbacks) error {
	if cb == nil {
		cb = nopCallbacks{}
	}
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	inInfo, err := os.Stat(in)
	if err != nil {
		err = fmt.Errorf("stat input: %w", err)
		cb.OnError(err)
		return err
	}

	phase(cb, "probing")
	probe, probeErr := e.Probe(ctx, in)
	if probeErr != nil {
		logging.Warn("Probe failed for %s, trying stream copy: %v", in, probeErr)
	}
	strategy := ChooseStrategy(probe)
	var duration float64
	if probe != nil {
		duration = probe.Duration
	}

	started := false
	onStart := func() {
		if !started {
			started = true
			cb.OnStart()
		}
	}

	err = e.runStrategy(ctx, strategy, in, out, inInfo.Size(), duration, cb, onStart)
	if err != nil && probe == nil && IsStreamIncompatible(err) {
		logging.Info("Stream copy rejected for %s, re-encoding", in)
		metrics.TranscoderFallbacks.Inc()
		removePartial(out)
		err = e.runStrategy(ctx, StrategyReencode, in, out, inInfo.Size(), duration, cb, onStart)
	}

	if err == nil {
		if _, statErr := os.Stat(out); statErr != nil {
			err = fmt.Errorf("output not finalized: %w", statErr)
		}
	}
	if err != nil {
		removePartial(out)
		cb.OnError(err)
		return err
	}

	cb.OnProgress(Progress{Percent: 100})
	cb.OnEnd()
	return nil
}

func (e *Engine) runStrategy(ctx context.Context, strategy Strategy, in, out string, inSize int64,
	duration float64, cb Callbacks, onStart func()) (err error) {

	startedAt := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.TranscoderRunsTotal.WithLabelValues(string(strategy), status).Inc()
		logging.Debug("ffmpeg %s of %s finished in %s (err=%v)", strategy, in, time.Since(startedAt), err)
	}()

	cmd := exec.CommandContext(ctx, e.cfg.FFmpegPath, strategy.Args(in, out)...)
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return &TranscodeError{Strategy: strategy, ExitCode: -1, Err: fmt.Errorf("failed to start ffmpeg: %w", err)}
	}

	e.processMu.Lock()
	e.processes[out] = cmd
	e.processMu.Unlock()
	defer func() {
		e.processMu.Lock()
		delete(e.processes, out)
		e.processMu.Unlock()
	}()
	phase(cb, strategy.phaseName())
	onStart()

	var (
		markMu   sync.Mutex
		mark     string
		position float64
	)
	tail := &tailBuffer{max: 8 * 1024}
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		scanner := bufio.NewScanner(io.TeeReader(stderrPipe, tail))
		scanner.Split(scanLinesOrCR)
		for scanner.Scan() {
			if m, pos, ok := parseTimemark(scanner.Text()); ok {
				markMu.Lock()
				mark, position = m, pos
				markMu.Unlock()
			}
		}
		// Drain anything the scanner refused (overlong tokens) so ffmpeg
		// never blocks on a full pipe.
		_, _ = io.Copy(tail, stderrPipe)
	}()

	stopSampler := make(chan struct{})
	samplerDone := make(chan struct{})
	go func() {
		defer close(samplerDone)
		ticker := time.NewTicker(e.cfg.ProgressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopSampler:
				return
			case <-ticker.C:
				markMu.Lock()
				m, pos := mark, position
				markMu.Unlock()

				p := Progress{Timemark: m}
				if duration > 0 && m != "" {
					p.Percent = exactPercent(pos, duration)
				} else {
					var outSize int64
					if info, statErr := os.Stat(out); statErr == nil {
						outSize = info.Size()
					}
					p.Percent = EstimatePercent(outSize, inSize)
					p.Estimated = true
				}
				cb.OnProgress(p)
			}
		}
	}()

	<-stderrDone
	waitErr := cmd.Wait()
	close(stopSampler)
	<-samplerDone

	if waitErr == nil {
		return nil
	}
	te := &TranscodeError{Strategy: strategy, ExitCode: -1, Stderr: tail.String(), Err: waitErr}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		te.ExitCode = exitErr.ExitCode()
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		te.Err = fmt.Errorf("%w after %s", ErrTimeout, e.cfg.Timeout)
	case errors.Is(ctx.Err(), context.Canceled):
		te.Err = ctx.Err()
	}
	return te
}

// Active returns the number of running encoder processes.
func (e *Engine) Active() int {
	e.processMu.Lock()
	defer e.processMu.Unlock()
	return len(e.processes)
}

// Cleanup stops all active transcoding processes. Their Run calls return
// errors and remove the partial outputs.
func (e *Engine) Cleanup() {
	e.processMu.Lock()
	defer e.processMu.Unlock()

	for path, cmd := range e.processes {
		if cmd.Process != nil {
			logging.Info("Killing transcoding process for: %s", path)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill transcoding process for %s: %v", path, err)
			}
		}
	}
}

func removePartial(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("failed to remove partial output %s: %v", path, err)
	}
}

func phase(cb Callbacks, name string) {
	if pr, ok := cb.(PhaseReporter); ok {
		pr.OnPhase(name)
	}
}

type nopCallbacks struct{}

func (nopCallbacks) OnStart()            {}
func (nopCallbacks) OnProgress(Progress) {}
func (nopCallbacks) OnError(error)       {}
func (nopCallbacks) OnEnd()              {}
