package transcoder

import (
	"bufio"
	"bytes"
	"math"
	"regexp"
	"strconv"
	"time"
)

// Progress is one progress sample.
type Progress struct {
	Percent   int
	Timemark  string
	Estimated bool
}

var timemarkRegex = regexp.MustCompile(`time=\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// parseTimemark extracts the last "time=HH:MM:SS.xx" mark in line and its
// value in seconds.
func parseTimemark(line string) (string, float64, bool) {
	matches := timemarkRegex.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return "", 0, false
	}
	m := matches[len(matches)-1]
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	sec, _ := strconv.ParseFloat(m[3], 64)
	mark := m[1] + ":" + m[2] + ":" + m[3]
	return mark, float64(h)*3600 + float64(mins)*60 + sec, true
}

// EstimatePercent approximates progress of a stream copy from output growth.
func EstimatePercent(outSize, inSize int64) int {
	if inSize <= 0 || outSize <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(outSize) / float64(inSize)))
	if p > 100 {
		return 100
	}
	return p
}

// EstimateETA returns the remaining seconds implied by elapsed and percent,
// or nil when percent is zero.
func EstimateETA(elapsed time.Duration, percent int) *int {
	if percent <= 0 {
		return nil
	}
	secs := elapsed.Seconds()
	eta := int(math.Round(secs*(100/float64(percent)) - secs))
	if eta < 0 {
		eta = 0
	}
	return &eta
}

// exactPercent converts a timemark position into a percentage of duration.
func exactPercent(position, duration float64) int {
	if duration <= 0 || position <= 0 {
		return 0
	}
	p := int(math.Round(100 * position / duration))
	if p > 100 {
		return 100
	}
	return p
}

// scanLinesOrCR splits on '\n' or '\r' so ffmpeg's in-place status updates
// arrive as separate tokens.
func scanLinesOrCR(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = scanLinesOrCR

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }
