// Package main provides the entry point for the vidshare server.
//
// vidshare accepts video uploads, stores them content-addressed on disk,
// converts formats browsers cannot play into MP4 in the background, and
// serves every item under short shareable links with byte-range support.
//
// # Application Lifecycle
//
//  1. Environment: loads .env when present, then reads configuration
//  2. Memory: sets GOMEMLIMIT from MEMORY_LIMIT, minus a reservation per
//     encoder process
//  3. Registry: opens the JSON or SQLite metadata backend
//  4. Media store: removes temporary files left by an interrupted run and
//     renders the placeholder image if it is missing
//  5. Components: transcoder engine, job registry, status hub, upload
//     service, poster generator, webhook client
//  6. HTTP: registers routes, wraps them in logging and metrics middleware,
//     and starts the application and metrics servers
//  7. Recovery: restarts conversions for records left unconverted, then
//     reports ready
//  8. Shutdown: on SIGINT/SIGTERM stops conversions, closes status sockets,
//     drains both servers and closes the registry
//
// # HTTP Servers
//
//  1. Main server (PORT, default 3000): uploads, streaming, share links,
//     job status, the /ws status socket, webhook forwarding and probes
//  2. Metrics server (METRICS_PORT, default 9090, optional): /metrics
//
// # Environment Variables
//
//   - PORT, METRICS_PORT, METRICS_ENABLED, LOG_LEVEL, LOG_HEALTH_CHECKS
//   - DATA_DIR, MEDIA_DIR, METADATA_BACKEND (json|sqlite), METADATA_PATH
//   - PUBLIC_BASE_URL, PLACEHOLDER_IMAGE, MAX_UPLOAD_BYTES
//   - TRANSCODE_WORKERS, TRANSCODE_TIMEOUT, PROGRESS_INTERVAL,
//     RESUME_PENDING, FFMPEG_PATH, FFPROBE_PATH
//   - WEBHOOK_TIMEOUT
//   - MEMORY_LIMIT, MEMORY_RATIO, ENCODER_MEMORY_RESERVE, GOMEMLIMIT
package main
