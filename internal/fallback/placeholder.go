package fallback

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"vidshare/internal/logging"
)

// Placeholder dimensions match the common large link-preview card.
const (
	Width  = 1200
	Height = 630
)

const captionScale = 6

var (
	backgroundColor = color.NRGBA{R: 0x1f, G: 0x23, B: 0x2a, A: 0xff}
	captionColor    = color.NRGBA{R: 0xd0, G: 0xd4, B: 0xdb, A: 0xff}
)

// EnsurePlaceholder writes a generated placeholder PNG to path unless a file
// already exists there. It reports whether a new image was written.
func EnsurePlaceholder(path, caption string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat placeholder: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create placeholder dir: %w", err)
	}

	img := RenderPlaceholder(caption)

	// imaging.Save picks the encoder from the extension, so the temp name
	// keeps it.
	tmp := filepath.Join(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	if err := imaging.Save(img, tmp); err != nil {
		_ = os.Remove(tmp)
		return false, fmt.Errorf("encode placeholder: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return false, fmt.Errorf("install placeholder: %w", err)
	}

	logging.Info("Generated placeholder image at %s", path)
	return true, nil
}

// RenderPlaceholder draws the placeholder card with caption centered.
func RenderPlaceholder(caption string) *image.NRGBA {
	canvas := imaging.New(Width, Height, backgroundColor)
	if caption == "" {
		return canvas
	}

	face := basicfont.Face7x13
	drawer := &font.Drawer{Face: face}
	textWidth := drawer.MeasureString(caption).Ceil()
	fm := face.Metrics()
	textHeight := (fm.Ascent + fm.Descent).Ceil()

	small := image.NewNRGBA(image.Rect(0, 0, textWidth, textHeight))
	drawer.Dst = small
	drawer.Src = image.NewUniform(captionColor)
	drawer.Dot = fixed.Point26_6{X: 0, Y: fm.Ascent}
	drawer.DrawString(caption)

	scale := captionScale
	for scale > 1 && textWidth*scale > Width-80 {
		scale--
	}
	// Nearest neighbour keeps the bitmap glyphs crisp.
	text := imaging.Resize(small, textWidth*scale, textHeight*scale, imaging.NearestNeighbor)

	pos := image.Pt((Width-text.Bounds().Dx())/2, (Height-text.Bounds().Dy())/2)
	return imaging.Overlay(canvas, text, pos, 1.0)
}
