// Package poster produces preview frames for stored videos.
//
// A frame is pulled through ffmpeg, scaled to fit 1200x630 and cached as a
// JPEG named after the stored file's content address.
package poster
