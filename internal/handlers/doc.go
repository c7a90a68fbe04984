// Package handlers provides the HTTP surface of vidshare.
//
// It includes handlers for:
//   - Uploads and media info
//   - Range-aware media streaming, share links and poster frames
//   - Transcode status, restarts and the websocket status channel
//   - Webhook notifications
//   - Health checks and version information
//
// Unknown ids on the share and view routes get the fallback embed page
// rather than an error, so link previews always render.
package handlers
