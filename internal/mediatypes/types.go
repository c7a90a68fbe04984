package mediatypes

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// TargetExt is the container every conversion produces.
const TargetExt = ".mp4"

// TargetMime is the MIME type of TargetExt.
const TargetMime = "video/mp4"

// defaultMime is returned when neither sniffing nor the extension table helps.
const defaultMime = "application/octet-stream"

// PlayableContainers lists extensions browsers play without conversion.
var PlayableContainers = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".webm": true,
}

// VideoExtensions maps file extensions that are treated as video input.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
}

// NormalizeExt returns the lowercase extension of filename including the
// leading dot. Extensions that are empty, longer than 10 characters or
// contain anything but ASCII letters and digits become ".bin" so they are
// always safe to embed in a stored filename.
func NormalizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > 11 {
		return ".bin"
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ".bin"
		}
	}
	return ext
}

// IsVideo reports whether ext is a recognised video extension.
func IsVideo(ext string) bool {
	return VideoExtensions[ext]
}

// NeedsConversion reports whether a video with extension ext must be
// remuxed or re-encoded before browsers can play it. Non-video files are
// stored as-is and never converted.
func NeedsConversion(ext string) bool {
	return IsVideo(ext) && !PlayableContainers[ext]
}

// MimeForExt returns the MIME type for an extension, or
// "application/octet-stream" when it is not recognised.
func MimeForExt(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return defaultMime
}

// Detect sniffs the MIME type of the file at path. Generic results
// (octet-stream, plain text) fall back to the extension table because
// container signatures for some formats (mpeg-ts, raw streams) are not
// reliably detectable.
func Detect(path, ext string) string {
	m, err := mimetype.DetectFile(path)
	if err == nil && m != nil && !isGeneric(m) {
		// Strip parameters such as "; charset=utf-8".
		if i := strings.IndexByte(m.String(), ';'); i != -1 {
			return strings.TrimSpace(m.String()[:i])
		}
		return m.String()
	}
	return MimeForExt(ext)
}

func isGeneric(m *mimetype.MIME) bool {
	return m.Is(defaultMime) || m.Is("text/plain")
}
