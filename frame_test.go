package rast3d

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// Verify at compile time that Frame implements image.Image.
var _ image.Image = (*Frame)(nil)

func TestFrame_Pixel(t *testing.T) {
	f := NewFrame(3, 2)
	i := (1*3 + 2) * 4
	copy(f.Pix()[i:], []uint8{10, 20, 30, 255})

	if got := f.Pixel(2, 1); got != RGB(10, 20, 30) {
		t.Errorf("Pixel(2, 1) = %#x", uint32(got))
	}
	for _, p := range [][2]int{{-1, 0}, {3, 0}, {0, 2}, {0, -1}} {
		if got := f.Pixel(p[0], p[1]); got != Transparent {
			t.Errorf("Pixel%v = %#x, want transparent", p, uint32(got))
		}
	}
	if b := f.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Errorf("Bounds() = %v", b)
	}
}

func TestFrame_CopyFromAndClone(t *testing.T) {
	src := NewFrame(2, 2)
	copy(src.Pix(), []uint8{1, 2, 3, 4})

	dst := NewFrame(5, 5)
	dst.CopyFrom(src)
	if dst.Width() != 2 || dst.Height() != 2 || len(dst.Pix()) != 16 {
		t.Fatalf("CopyFrom size = %dx%d (%d bytes)", dst.Width(), dst.Height(), len(dst.Pix()))
	}
	if dst.Pixel(0, 0) != src.Pixel(0, 0) {
		t.Error("CopyFrom did not copy pixels")
	}

	c := src.Clone()
	c.Pix()[0] = 99
	if src.Pix()[0] != 1 {
		t.Error("Clone shares pixel storage")
	}
}

func TestFrame_Resize(t *testing.T) {
	f := NewFrame(2, 2)
	pix := f.Pix()
	f.resize(2, 2)
	if &f.Pix()[0] != &pix[0] {
		t.Error("resize to the same size reallocated")
	}
	f.resize(4, 1)
	if f.Width() != 4 || f.Height() != 1 || len(f.Pix()) != 16 {
		t.Errorf("resize(4, 1) = %dx%d (%d bytes)", f.Width(), f.Height(), len(f.Pix()))
	}
}

func TestFrame_SavePNG(t *testing.T) {
	f := NewFrame(2, 1)
	copy(f.Pix(), []uint8{255, 0, 0, 255, 0, 0, 255, 255})

	path := filepath.Join(t.TempDir(), "frame.png")
	if err := f.SavePNG(path); err != nil {
		t.Fatalf("SavePNG() error = %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if got := FromColor(img.At(0, 0)); got != Red {
		t.Errorf("decoded (0,0) = %#x, want red", uint32(got))
	}
	if got := FromColor(img.At(1, 0)); got != Blue {
		t.Errorf("decoded (1,0) = %#x, want blue", uint32(got))
	}
}

func TestFrame_SavePNGBadPath(t *testing.T) {
	f := NewFrame(1, 1)
	if err := f.SavePNG(filepath.Join(t.TempDir(), "missing", "frame.png")); err == nil {
		t.Error("SavePNG() into a missing directory succeeded")
	}
}
