package workers

import (
	"os"
	"runtime"
	"strconv"
)

// OverrideEnv names the variable that pins the encoder worker count.
const OverrideEnv = "TRANSCODE_WORKERS"

// Count returns a worker count scaled from the CPUs available to the
// process. It respects container CPU limits via GOMAXPROCS (Go 1.19+).
//
// The limit parameter caps the result. Use 0 for no limit.
//
// Can be overridden with the TRANSCODE_WORKERS environment variable.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(OverrideEnv); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	// GOMAXPROCS is automatically set to container CPU limit in Go 1.19+
	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForEncoders returns the number of encoder processes to run at once.
// A re-encode already spreads across cores, so this is one per two CPUs.
func ForEncoders(limit int) int {
	return Count(0.5, limit)
}
