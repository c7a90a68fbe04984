package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"vidshare/internal/logging"
)

const (
	// DefaultMemoryRatio is the share of the memory left after encoder
	// reservations that goes to the Go heap.
	DefaultMemoryRatio = 0.85

	// DefaultEncoderReserve is set aside per concurrent ffmpeg process, which
	// allocates outside the Go heap.
	DefaultEncoderReserve int64 = 256 << 20

	// minGoMemLimit keeps the heap usable when reservations eat most of a
	// small container.
	minGoMemLimit int64 = 64 << 20
)

// Sources reported in ConfigResult.Source.
const (
	SourceGOMEMLIMIT  = "GOMEMLIMIT"
	SourceMemoryLimit = "MEMORY_LIMIT"
	SourceNone        = "none"
)

// ConfigResult holds the result of memory configuration
type ConfigResult struct {
	Configured bool
	Source     string

	// ContainerLimit is the container memory limit in bytes (0 if not set)
	ContainerLimit int64
	// EncoderReserve is the total held back for ffmpeg processes.
	EncoderReserve int64
	GoMemLimit     int64
	Ratio          float64
}

// ConfigureFromEnv sets the Go memory limit from the container limit, after
// holding back room for encoderWorkers ffmpeg processes. Call it early in
// main, before significant allocations.
//
// Environment variables:
//   - GOMEMLIMIT: if set, the runtime already applied it and nothing changes
//   - MEMORY_LIMIT: container memory limit in bytes (Kubernetes Downward API)
//   - MEMORY_RATIO: share of the remainder for the Go heap (default 0.85)
//   - ENCODER_MEMORY_RESERVE: bytes per encoder (default 256 MiB)
func ConfigureFromEnv(encoderWorkers int) ConfigResult {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		result := ConfigResult{Source: SourceGOMEMLIMIT}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return result
	}

	memLimitStr := os.Getenv("MEMORY_LIMIT")
	if memLimitStr == "" {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured automatically")
		return ConfigResult{Source: SourceNone}
	}
	memLimit, err := strconv.ParseInt(memLimitStr, 10, 64)
	if err != nil || memLimit <= 0 {
		logging.Warn("Ignoring invalid MEMORY_LIMIT %q", memLimitStr)
		return ConfigResult{Source: SourceNone}
	}

	ratio := parseRatio(os.Getenv("MEMORY_RATIO"))
	perEncoder := parseReserve(os.Getenv("ENCODER_MEMORY_RESERVE"))
	if encoderWorkers < 0 {
		encoderWorkers = 0
	}
	reserve := perEncoder * int64(encoderWorkers)

	goMemLimit := int64(float64(memLimit-reserve) * ratio)
	if goMemLimit < minGoMemLimit {
		logging.Warn("MEMORY_LIMIT %s leaves little room after %d encoder reservations",
			formatBytes(memLimit), encoderWorkers)
		goMemLimit = minGoMemLimit
	}
	debug.SetMemoryLimit(goMemLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.0f%% of %s after reserving %s for %d encoders)",
		formatBytes(goMemLimit), ratio*100, formatBytes(memLimit), formatBytes(reserve), encoderWorkers)

	return ConfigResult{
		Configured:     true,
		Source:         SourceMemoryLimit,
		ContainerLimit: memLimit,
		EncoderReserve: reserve,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
}

func parseRatio(s string) float64 {
	if s == "" {
		return DefaultMemoryRatio
	}
	r, err := strconv.ParseFloat(s, 64)
	if err != nil || r <= 0 || r > 1 {
		logging.Warn("MEMORY_RATIO %q out of range (0.0-1.0), using default %.2f", s, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return r
}

func parseReserve(s string) int64 {
	if s == "" {
		return DefaultEncoderReserve
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		logging.Warn("Invalid ENCODER_MEMORY_RESERVE %q, using default %s", s, formatBytes(DefaultEncoderReserve))
		return DefaultEncoderReserve
	}
	return n
}

// formatBytes formats bytes into human-readable string
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
