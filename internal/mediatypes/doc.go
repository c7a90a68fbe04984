// Package mediatypes holds the container policy for uploads: which
// extensions are video, which containers browsers play natively, and how a
// stored file's MIME type is determined.
//
// Files whose container is not in PlayableContainers are converted to
// TargetExt. MIME types come from content sniffing
// (github.com/gabriel-vasile/mimetype) with the extension table as a
// fallback.
package mediatypes
