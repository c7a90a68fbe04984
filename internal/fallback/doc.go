// Package fallback renders the embed page served for unknown or missing
// media, and generates the placeholder image that page links to.
package fallback
