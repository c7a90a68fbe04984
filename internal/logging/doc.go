// Package logging provides the leveled logging used across vidshare.
//
// Levels, lowest to highest:
//   - DEBUG: encoder arguments, per-tick progress, websocket traffic
//   - INFO: uploads, job lifecycle, startup and shutdown steps
//   - WARN: recoverable problems (corrupt metadata, dropped subscriber sends)
//   - ERROR: failed transcodes, failed persistence
//   - FATAL: startup failures that terminate the process
//
// The level comes from LOG_LEVEL, or DEBUG=true which forces debug output.
// For attaches a "[kind id]" prefix so the lines for one media item can be
// grepped out of a busy log.
package logging
