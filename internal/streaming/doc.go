// Package streaming serves media bytes over HTTP with byte-range support and
// protection against slow or vanished clients.
//
// # Ranges
//
// ServeContent understands a single "bytes=<start>-<end>" range. Without a
// Range header it answers 200 with the whole body; with a satisfiable one it
// answers 206 and Content-Range; anything else gets 416 with
// "Content-Range: bytes */<size>" and no body. Accept-Ranges is always set.
//
// Each call reads from its own io.ReadSeeker, so concurrent requests for the
// same file never share offsets or block each other.
//
// # Timeouts
//
// Bytes are copied through a TimeoutWriter, which sets a write deadline per
// chunk and cancels the copy when nothing has been written for IdleTimeout:
//
//	n, err := streaming.Copy(r.Context(), w, file, streaming.DefaultConfig())
//	if errors.Is(err, streaming.ErrClientGone) {
//		// normal while a viewer scrubs
//	}
//
// Client disconnects surface as ErrClientGone, stalls as ErrWriteTimeout.
package streaming
