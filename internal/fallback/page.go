package fallback

import (
	"bytes"
	"html/template"
	"net/http"

	"vidshare/internal/logging"
	"vidshare/internal/metrics"
)

// The page deliberately carries no title or description so link previews
// show only the placeholder image.
var pageTemplate = template.Must(template.New("fallback").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta property="og:type" content="website">
<meta property="og:image" content="{{.ImageURL}}">
<meta property="og:image:width" content="{{.Width}}">
<meta property="og:image:height" content="{{.Height}}">
<meta name="twitter:card" content="summary_large_image">
<meta name="twitter:image" content="{{.ImageURL}}">
</head>
<body></body>
</html>
`))

type pageData struct {
	ImageURL string
	Width    int
	Height   int
}

// Page renders the embed page shown for unresolvable ids.
type Page struct {
	imageURL string
}

// NewPage returns a Page pointing at imageURL.
func NewPage(imageURL string) *Page {
	return &Page{imageURL: imageURL}
}

// ImageURL returns the placeholder URL advertised by the page.
func (p *Page) ImageURL() string { return p.imageURL }

// Serve writes the page with status 200 and no-cache headers. route labels
// the metric (for example "view" or "short").
func (p *Page) Serve(w http.ResponseWriter, r *http.Request, route string) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, pageData{ImageURL: p.imageURL, Width: Width, Height: Height}); err != nil {
		logging.Error("Failed to render fallback page: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	metrics.FallbackPagesTotal.WithLabelValues(route).Inc()

	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		logging.Debug("Failed to write fallback page: %v", err)
	}
}
