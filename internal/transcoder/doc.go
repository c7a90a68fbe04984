// Package transcoder normalizes uploaded media into MP4 using FFmpeg.
//
// An Engine probes the input with ffprobe, picks a strategy (stream copy
// when every codec fits the MP4 container, a libx264/AAC re-encode
// otherwise) and runs ffmpeg as a subprocess. Lifecycle and progress are
// reported through the narrow Callbacks interface so the engine knows
// nothing about how jobs are stored or broadcast.
//
// Progress is exact when the input duration is known: ffmpeg's "time="
// marks are divided by it. Otherwise the engine falls back to comparing
// the output file size with the input size and flags the value as
// estimated.
package transcoder
