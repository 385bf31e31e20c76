package rast3d

import (
	"image"
	"image/color"
	"image/png"
	"os"
)

// Frame is a host copy of the color buffer: width×height pixels in RGBA
// byte order, row by row, top row first.
type Frame struct {
	width  int
	height int
	pix    []uint8
}

// NewFrame creates a frame filled with transparent black.
func NewFrame(width, height int) *Frame {
	return &Frame{
		width:  width,
		height: height,
		pix:    make([]uint8, width*height*4),
	}
}

// Width returns the width of the frame.
func (f *Frame) Width() int {
	return f.width
}

// Height returns the height of the frame.
func (f *Frame) Height() int {
	return f.height
}

// Pix returns the raw pixel data. It is overwritten by the next frame.
func (f *Frame) Pix() []uint8 {
	return f.pix
}

// Pixel returns the packed color at (x, y), or Transparent outside the frame.
func (f *Frame) Pixel(x, y int) Color {
	if x < 0 || x >= f.width || y < 0 || y >= f.height {
		return Transparent
	}
	i := (y*f.width + x) * 4
	return RGBA8(f.pix[i], f.pix[i+1], f.pix[i+2], f.pix[i+3])
}

// CopyFrom copies src into f, resizing f when the sizes differ.
func (f *Frame) CopyFrom(src *Frame) {
	if f.width != src.width || f.height != src.height {
		f.width, f.height = src.width, src.height
		f.pix = make([]uint8, len(src.pix))
	}
	copy(f.pix, src.pix)
}

// Clone returns a copy of f.
func (f *Frame) Clone() *Frame {
	c := &Frame{}
	c.CopyFrom(f)
	return c
}

// resize reallocates the pixel array for a new size.
func (f *Frame) resize(width, height int) {
	if f.width == width && f.height == height {
		return
	}
	f.width, f.height = width, height
	f.pix = make([]uint8, width*height*4)
}

// ToImage copies the frame into an image.NRGBA.
func (f *Frame) ToImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.width, f.height))
	copy(img.Pix, f.pix)
	return img
}

// SavePNG saves the frame to a PNG file.
func (f *Frame) SavePNG(path string) error {
	file, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	if err := png.Encode(file, f.ToImage()); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// At implements the image.Image interface.
func (f *Frame) At(x, y int) color.Color {
	return f.Pixel(x, y)
}

// Bounds implements the image.Image interface.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.width, f.height)
}

// ColorModel implements the image.Image interface.
func (f *Frame) ColorModel() color.Model {
	return color.NRGBAModel
}
