package rast3d

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"
)

func TestTextureFromImage(t *testing.T) {
	nrgba := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	nrgba.SetNRGBA(1, 0, color.NRGBA{R: 255, A: 255})
	nrgba.SetNRGBA(0, 1, color.NRGBA{B: 255, A: 128})

	gray := image.NewGray(image.Rect(10, 10, 12, 12))
	gray.SetGray(11, 10, color.Gray{Y: 255})

	tests := []struct {
		name string
		img  image.Image
		at   [2]int
		want Color
	}{
		{"nrgba red", nrgba, [2]int{1, 0}, Red},
		{"nrgba straight alpha", nrgba, [2]int{0, 1}, RGBA8(0, 0, 255, 128)},
		{"gray offset bounds", gray, [2]int{1, 0}, White},
		{"gray black", gray, [2]int{0, 1}, Black},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tex := TextureFromImage(tt.img)
			if err := tex.Validate(); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if got := tex.At(tt.at[0], tt.at[1]); got != tt.want {
				t.Errorf("At%v = %#x, want %#x", tt.at, uint32(got), uint32(tt.want))
			}
		})
	}
}

func TestTexture_Validate(t *testing.T) {
	tests := []struct {
		name string
		tex  Texture
		ok   bool
	}{
		{"valid", *NewTexture(3, 2), true},
		{"zero size", Texture{}, false},
		{"short pixels", Texture{Width: 2, Height: 2, Pixels: make([]Color, 3)}, false},
		{"negative", Texture{Width: -1, Height: 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tex.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidTexture) {
				t.Errorf("Validate() error = %v, want ErrInvalidTexture", err)
			}
		})
	}
}

func TestMesh_BoundsAndColor(t *testing.T) {
	m := NewMesh("m", []Triangle{
		{Vertex: [3]Vec3{V3(-1, 0, 2), V3(3, 1, 0), V3(0, -2, 1)}},
		{Vertex: [3]Vec3{V3(0, 0, 0), V3(0, 5, 0), V3(0, 0, -4)}},
	})
	lo, hi := m.Bounds()
	if lo != V3(-1, -2, -4) || hi != V3(3, 5, 2) {
		t.Errorf("Bounds() = %v, %v", lo, hi)
	}
	if m.VertexCount() != 6 {
		t.Errorf("VertexCount() = %d, want 6", m.VertexCount())
	}

	m.SetColor(Green)
	for i, tri := range m.Triangles {
		if tri.Color != Green {
			t.Errorf("triangle %d color = %#x", i, uint32(tri.Color))
		}
	}

	empty := NewMesh("empty", nil)
	if lo, hi := empty.Bounds(); lo != (Vec3{}) || hi != (Vec3{}) {
		t.Errorf("empty Bounds() = %v, %v", lo, hi)
	}
}

func TestMesh_Dump(t *testing.T) {
	m := NewMesh("cube", quad(Red))
	m.Texture = NewTexture(4, 2)

	var buf bytes.Buffer
	if err := m.Dump(&buf); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{`mesh "cube": 2 triangles, 6 vertices`, "texture", "4x2", "#ff0000ff"} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump() output missing %q:\n%s", want, out)
		}
	}
	// Header, bounds, texture, column titles and one row per triangle.
	if lines := strings.Count(out, "\n"); lines != 6 {
		t.Errorf("Dump() wrote %d lines, want 6", lines)
	}
}
