/*
Package workers sizes the transcode worker pool in containerized
environments.

runtime.NumCPU reports the host's CPUs even when a cgroup limit applies.
GOMAXPROCS follows the container limit since Go 1.19, so counts here are
derived from it:

	// Wrong: 64 on a 64-core node with a 2-CPU pod limit
	n := runtime.NumCPU()

	// Correct: 2
	n := runtime.GOMAXPROCS(0)

ffmpeg re-encodes are multi-threaded, so [ForEncoders] allows one encoder
per two CPUs, never fewer than one. Jobs beyond that wait in the queued
state until a slot frees.

# Override

Set TRANSCODE_WORKERS to pin the count:

	TRANSCODE_WORKERS=4 ./vidshare

Invalid or non-positive values are ignored. The limit argument still caps
an override.
*/
package workers
