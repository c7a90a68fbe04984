// Package filesystem wraps os.Stat and os.Open with retries for NFS stale
// file handle errors (ESTALE), which show up when the media directory is a
// network mount and a file is replaced underneath an open handle, as
// happens when a finished transcode swaps the stored file.
//
// Only ESTALE is retried, with exponential backoff capped at MaxBackoff.
// Every other error, including os.ErrNotExist, is returned immediately.
package filesystem
