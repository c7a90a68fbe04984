// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read from environment variables by [LoadConfig]. A .env
// file is loaded first by [LoadDotEnv] when present; variables already set
// in the environment win.
//
//   - PORT: HTTP server port (default: 3000)
//   - DATA_DIR: Root for media and metadata (default: ./data)
//   - MEDIA_DIR: Media store directory (default: $DATA_DIR/media)
//   - METADATA_BACKEND: json or sqlite (default: json)
//   - METADATA_PATH: Persisted registry (default: $DATA_DIR/metadata.json or .db)
//   - PUBLIC_BASE_URL: Prefix for URLs in responses (default: http://localhost:$PORT)
//   - PLACEHOLDER_IMAGE: Fallback preview image, generated when missing
//   - MAX_UPLOAD_BYTES: Upload body ceiling (default: 2 GiB)
//   - TRANSCODE_WORKERS: Concurrent encoders (default: one per two CPUs)
//   - TRANSCODE_TIMEOUT: Per-job watchdog, 0 disables (default: 0)
//   - PROGRESS_INTERVAL: Output size sampling interval (default: 750ms)
//   - RESUME_PENDING: Restart conversions left unfinished by a previous run (default: true)
//   - FFMPEG_PATH, FFPROBE_PATH: Encoder binaries (default: ffmpeg, ffprobe)
//   - WEBHOOK_TIMEOUT: Outbound webhook timeout (default: 10s)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// # Directory Setup
//
// The data, media and metadata directories are created when missing and
// must be writable. Failure is returned to the caller, which treats it as
// fatal.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
//   - [LogRegistryInit]: Metadata backend and record count
//   - [LogTranscoderInit]: Encoder slots and ffmpeg/ffprobe availability
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
package startup
