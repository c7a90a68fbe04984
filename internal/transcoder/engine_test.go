package transcoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu       sync.Mutex
	starts   int
	ends     int
	errs     []error
	progress []Progress
	phases   []string
}

func (r *recorder) OnStart()          { r.mu.Lock(); r.starts++; r.mu.Unlock() }
func (r *recorder) OnEnd()            { r.mu.Lock(); r.ends++; r.mu.Unlock() }
func (r *recorder) OnError(err error) { r.mu.Lock(); r.errs = append(r.errs, err); r.mu.Unlock() }
func (r *recorder) OnPhase(p string)  { r.mu.Lock(); r.phases = append(r.phases, p); r.mu.Unlock() }
func (r *recorder) OnProgress(p Progress) {
	r.mu.Lock()
	r.progress = append(r.progress, p)
	r.mu.Unlock()
}

const h264Probe = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 640, "height": 360},
    {"index": 1, "codec_type": "audio", "codec_name": "aac"}
  ],
  "format": {"format_name": "matroska,webm", "duration": "2.000000"}
}`

// writeScript creates an executable shell script in dir.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func probeScript(t *testing.T, dir, json string) string {
	return writeScript(t, dir, "ffprobe", "cat <<'JSON'\n"+json+"\nJSON\n")
}

func failingProbe(t *testing.T, dir string) string {
	return writeScript(t, dir, "ffprobe", "echo 'Invalid data found' >&2\nexit 1\n")
}

// ffmpegScript records its arguments in dir/args and then runs body with
// $out set to the output path.
func ffmpegScript(t *testing.T, dir, body string) string {
	argsFile := filepath.Join(dir, "args")
	return writeScript(t, dir, "ffmpeg", fmt.Sprintf(
		"echo \"$@\" >> %q\nfor out; do :; done\n%s", argsFile, body))
}

func setup(t *testing.T, inputSize int) (dir, in, out string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a POSIX shell")
	}
	dir = t.TempDir()
	in = filepath.Join(dir, "input.avi")
	if err := os.WriteFile(in, make([]byte, inputSize), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, in, filepath.Join(dir, "output.mp4")
}

func readArgs(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "args"))
	if err != nil {
		t.Fatalf("ffmpeg was not invoked: %v", err)
	}
	return string(data)
}

func TestRunRemuxSuccess(t *testing.T) {
	dir, in, out := setup(t, 100)
	engine := New(Config{
		FFprobePath: probeScript(t, dir, h264Probe),
		FFmpegPath: ffmpegScript(t, dir, `printf 'frame=1 time=00:00:01.00 bitrate=1\r' >&2
head -c 50 /dev/zero > "$out"
sleep 0.3
printf 'frame=2 time=00:00:02.00 bitrate=1\n' >&2
head -c 100 /dev/zero > "$out"
`),
		ProgressInterval: 20 * time.Millisecond,
	})

	rec := &recorder{}
	if err := engine.Run(context.Background(), in, out, rec); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if rec.starts != 1 || rec.ends != 1 || len(rec.errs) != 0 {
		t.Errorf("callbacks starts=%d ends=%d errs=%v", rec.starts, rec.ends, rec.errs)
	}
	if last := rec.progress[len(rec.progress)-1]; last.Percent != 100 {
		t.Errorf("final progress = %+v, want 100%%", last)
	}
	sawExact := false
	for _, p := range rec.progress[:len(rec.progress)-1] {
		if p.Timemark == "00:00:01.00" && p.Percent == 50 && !p.Estimated {
			sawExact = true
		}
	}
	if !sawExact {
		t.Errorf("expected an exact 50%% sample at 00:00:01.00, got %+v", rec.progress)
	}
	if args := readArgs(t, dir); !strings.Contains(args, "-c copy") || !strings.Contains(args, "+faststart") {
		t.Errorf("remux args = %q", args)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output missing: %v", err)
	}
	if len(rec.phases) < 2 || rec.phases[0] != "probing" || rec.phases[1] != "remuxing" {
		t.Errorf("phases = %v", rec.phases)
	}
}

func TestRunEstimatesWithoutDuration(t *testing.T) {
	dir, in, out := setup(t, 100)
	engine := New(Config{
		FFprobePath: probeScript(t, dir, `{"streams":[{"index":0,"codec_type":"video","codec_name":"h264"}],"format":{}}`),
		FFmpegPath: ffmpegScript(t, dir, `head -c 50 /dev/zero > "$out"
sleep 0.3
head -c 100 /dev/zero > "$out"
`),
		ProgressInterval: 20 * time.Millisecond,
	})

	rec := &recorder{}
	if err := engine.Run(context.Background(), in, out, rec); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	sawEstimate := false
	for _, p := range rec.progress {
		if p.Estimated && p.Percent == 50 {
			sawEstimate = true
		}
	}
	if !sawEstimate {
		t.Errorf("expected an estimated 50%% sample, got %+v", rec.progress)
	}
}

func TestRunFailureReportsStderr(t *testing.T) {
	dir, in, out := setup(t, 10)
	engine := New(Config{
		FFprobePath: probeScript(t, dir, h264Probe),
		FFmpegPath: ffmpegScript(t, dir, `printf 'partial' > "$out"
echo 'input.avi: Invalid data found when processing input' >&2
exit 1
`),
		ProgressInterval: 20 * time.Millisecond,
	})

	rec := &recorder{}
	err := engine.Run(context.Background(), in, out, rec)

	var te *TranscodeError
	if !errors.As(err, &te) {
		t.Fatalf("Run() error = %v, want *TranscodeError", err)
	}
	if te.ExitCode != 1 || !strings.Contains(te.Stderr, "Invalid data found") {
		t.Errorf("TranscodeError = %+v", te)
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("Error() = %q, want stderr tail", err.Error())
	}
	if len(rec.errs) != 1 || rec.ends != 0 {
		t.Errorf("callbacks errs=%d ends=%d, want exactly one OnError", len(rec.errs), rec.ends)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Errorf("partial output should be removed, stat err = %v", statErr)
	}
	if _, statErr := os.Stat(in); statErr != nil {
		t.Errorf("input must survive a failed transcode: %v", statErr)
	}
}

func TestRunFallsBackToReencode(t *testing.T) {
	dir, in, out := setup(t, 10)
	engine := New(Config{
		FFprobePath: failingProbe(t, dir),
		FFmpegPath: ffmpegScript(t, dir, `case "$*" in
*"-c copy"*)
	echo '[mp4 @ 0x1] Could not find tag for codec wmv3 in stream #0, codec not currently supported in container' >&2
	exit 1
	;;
esac
printf 'encoded' > "$out"
`),
		ProgressInterval: 20 * time.Millisecond,
	})

	rec := &recorder{}
	if err := engine.Run(context.Background(), in, out, rec); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	args := readArgs(t, dir)
	if !strings.Contains(args, "-c copy") || !strings.Contains(args, "libx264") {
		t.Errorf("expected remux then re-encode, got %q", args)
	}
	if rec.starts != 1 || rec.ends != 1 || len(rec.errs) != 0 {
		t.Errorf("callbacks starts=%d ends=%d errs=%v", rec.starts, rec.ends, rec.errs)
	}
}

func TestRunReencodesIncompatibleCodecs(t *testing.T) {
	dir, in, out := setup(t, 10)
	engine := New(Config{
		FFprobePath: probeScript(t, dir, `{"streams":[{"index":0,"codec_type":"video","codec_name":"mpeg2video"},{"index":1,"codec_type":"audio","codec_name":"mp2"}],"format":{"duration":"4.0"}}`),
		FFmpegPath:  ffmpegScript(t, dir, `printf 'encoded' > "$out"`+"\n"),
	})

	if err := engine.Run(context.Background(), in, out, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	args := readArgs(t, dir)
	if strings.Contains(args, "-c copy") || !strings.Contains(args, "-c:v libx264 -preset fast -crf 23 -c:a aac -b:a 128k") {
		t.Errorf("re-encode args = %q", args)
	}
}

func TestRunTimeout(t *testing.T) {
	dir, in, out := setup(t, 10)
	engine := New(Config{
		FFprobePath:      probeScript(t, dir, h264Probe),
		FFmpegPath:       ffmpegScript(t, dir, "exec sleep 5\n"),
		ProgressInterval: 20 * time.Millisecond,
		Timeout:          200 * time.Millisecond,
	})

	rec := &recorder{}
	start := time.Now()
	err := engine.Run(context.Background(), in, out, rec)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Run() error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("watchdog took %s", elapsed)
	}
	if len(rec.errs) != 1 {
		t.Errorf("OnError calls = %d, want 1", len(rec.errs))
	}
}

func TestStartDeliversOneResult(t *testing.T) {
	dir, in, out := setup(t, 10)
	engine := New(Config{
		FFprobePath: probeScript(t, dir, h264Probe),
		FFmpegPath:  ffmpegScript(t, dir, `printf 'ok' > "$out"`+"\n"),
	})

	done := engine.Start(context.Background(), in, out, nil)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() result = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() never completed")
	}
	if _, ok := <-done; ok {
		t.Error("result channel should be closed after one value")
	}
}

func TestCleanupKillsRunningEncoders(t *testing.T) {
	dir, in, out := setup(t, 10)
	engine := New(Config{
		FFprobePath: probeScript(t, dir, h264Probe),
		FFmpegPath:  ffmpegScript(t, dir, "exec sleep 5\n"),
	})

	done := engine.Start(context.Background(), in, out, nil)
	deadline := time.Now().Add(3 * time.Second)
	for engine.Active() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("encoder never started")
		}
		time.Sleep(10 * time.Millisecond)
	}

	engine.Cleanup()
	select {
	case err := <-done:
		if err == nil {
			t.Error("killed encoder should report an error")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Cleanup() did not stop the encoder")
	}
	if engine.Active() != 0 {
		t.Errorf("Active() = %d after cleanup", engine.Active())
	}
}

func TestRunMissingInput(t *testing.T) {
	engine := New(Config{})
	rec := &recorder{}
	err := engine.Run(context.Background(), filepath.Join(t.TempDir(), "missing"), "out.mp4", rec)
	if err == nil || len(rec.errs) != 1 || rec.starts != 0 {
		t.Errorf("Run() err=%v errs=%d starts=%d", err, len(rec.errs), rec.starts)
	}
}
