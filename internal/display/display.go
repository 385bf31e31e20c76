// Package display provides frame sinks for rast3d.Engine.Run: an
// interactive window, a PNG file sequence and a discarding sink.
package display

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/image/draw"

	"github.com/gogpu/rast3d"
)

// ErrNoWindow is returned by NewWindow in builds without a window system.
var ErrNoWindow = errors.New("display: window support not built in")

// Discard drops every frame and counts them.
type Discard struct {
	frames atomic.Uint64
}

// Present implements rast3d.Display.
func (d *Discard) Present(*rast3d.Frame) error {
	d.frames.Add(1)
	return nil
}

// Frames returns the number of frames presented.
func (d *Discard) Frames() uint64 { return d.frames.Load() }

// PNGSequence writes each frame to Dir as a numbered PNG file.
type PNGSequence struct {
	// Dir is created on the first frame if missing.
	Dir string

	// Pattern is a fmt pattern taking the frame number. Defaults to
	// "frame_%05d.png".
	Pattern string

	// Scale resizes frames before encoding. Zero or one keeps the size.
	Scale float64

	// Smooth selects Catmull-Rom instead of nearest-neighbor scaling.
	Smooth bool

	next    int
	scaled  *image.NRGBA
	created bool
}

// Present implements rast3d.Display.
func (s *PNGSequence) Present(frame *rast3d.Frame) error {
	if !s.created {
		if err := os.MkdirAll(s.Dir, 0o755); err != nil {
			return fmt.Errorf("display: %w", err)
		}
		s.created = true
	}
	pattern := s.Pattern
	if pattern == "" {
		pattern = "frame_%05d.png"
	}
	path := filepath.Join(s.Dir, fmt.Sprintf(pattern, s.next))

	if err := writePNG(path, s.image(frame)); err != nil {
		return err
	}
	s.next++
	return nil
}

// Written returns the number of files written.
func (s *PNGSequence) Written() int { return s.next }

func (s *PNGSequence) image(frame *rast3d.Frame) image.Image {
	if s.Scale <= 0 || s.Scale == 1 {
		return frame
	}
	w := max(1, int(float64(frame.Width())*s.Scale))
	h := max(1, int(float64(frame.Height())*s.Scale))
	if s.scaled == nil || s.scaled.Rect.Dx() != w || s.scaled.Rect.Dy() != h {
		s.scaled = image.NewNRGBA(image.Rect(0, 0, w, h))
	}
	var scaler draw.Scaler = draw.NearestNeighbor
	if s.Smooth {
		scaler = draw.CatmullRom
	}
	src := &image.NRGBA{Pix: frame.Pix(), Stride: 4 * frame.Width(), Rect: frame.Bounds()}
	scaler.Scale(s.scaled, s.scaled.Rect, src, src.Rect, draw.Src, nil)
	return s.scaled
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path) //nolint:gosec // output directory is user-provided
	if err != nil {
		return fmt.Errorf("display: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("display: encode %s: %w", path, err)
	}
	return f.Close()
}
