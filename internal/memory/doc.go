// Package memory sizes the Go runtime's soft memory limit for a container.
//
// Transcodes run as ffmpeg child processes whose memory the Go runtime
// cannot see, so ConfigureFromEnv subtracts a per-encoder reservation from
// the container limit before applying MEMORY_RATIO. An explicit GOMEMLIMIT
// always wins.
package memory
