package transcoder

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTimeout is wrapped by the error returned when the watchdog kills an
// encoder that ran longer than the configured ceiling.
var ErrTimeout = errors.New("transcode timed out")

// TranscodeError reports a failed encoder run together with the tail of
// the encoder's diagnostic output.
type TranscodeError struct {
	Strategy Strategy
	ExitCode int
	Stderr   string
	Err      error
}

func (e *TranscodeError) Error() string {
	msg := fmt.Sprintf("ffmpeg %s failed", e.Strategy)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if line := lastLine(e.Stderr); line != "" {
		msg += ": " + line
	}
	return msg
}

func (e *TranscodeError) Unwrap() error { return e.Err }

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexAny(s, "\r\n"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

// incompatibleMarkers are fragments ffmpeg prints when a stream cannot be
// copied into the output container.
var incompatibleMarkers = []string{
	"could not find tag for codec",
	"codec not currently supported in container",
	"incorrect codec parameters",
	"tag mismatch",
}

// IsStreamIncompatible reports whether err is a remux failure caused by a
// codec the MP4 container cannot hold.
func IsStreamIncompatible(err error) bool {
	var te *TranscodeError
	if !errors.As(err, &te) || te.Strategy != StrategyRemux {
		return false
	}
	stderr := strings.ToLower(te.Stderr)
	for _, marker := range incompatibleMarkers {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}
