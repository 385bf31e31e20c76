// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package meshio

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/gogpu/rast3d"
)

const cubeFace = `# unit square made of one quad
o square
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
usemtl none
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func TestReadOBJ_Quad(t *testing.T) {
	m, err := ReadOBJ(strings.NewReader(cubeFace), "square", Options{Color: rast3d.Red})
	if err != nil {
		t.Fatalf("ReadOBJ() error = %v", err)
	}
	if m.Name != "square" {
		t.Errorf("Name = %q", m.Name)
	}
	if len(m.Triangles) != 2 {
		t.Fatalf("got %d triangles, want 2", len(m.Triangles))
	}
	if !m.Transform.IsIdentity() {
		t.Error("Transform is not identity")
	}

	// Fan: (1,2,3) and (1,3,4).
	t0, t1 := m.Triangles[0], m.Triangles[1]
	if t0.Vertex[2] != rast3d.V3(1, 1, 0) || t1.Vertex[1] != rast3d.V3(1, 1, 0) || t1.Vertex[2] != rast3d.V3(0, 1, 0) {
		t.Errorf("fan triangulation wrong: %v / %v", t0.Vertex, t1.Vertex)
	}
	// v is flipped: vt (0,0) becomes uv (0,1).
	if t0.UV[0] != rast3d.V2(0, 1) || t0.UV[2] != rast3d.V2(1, 0) {
		t.Errorf("UVs = %v", t0.UV)
	}
	if t0.Normal[1] != rast3d.V3(0, 0, 1) {
		t.Errorf("Normal = %v", t0.Normal[1])
	}
	for i, tri := range m.Triangles {
		if tri.Color != rast3d.Red {
			t.Errorf("triangle %d color = %#x, want red", i, uint32(tri.Color))
		}
	}
}

func TestReadOBJ_FaceForms(t *testing.T) {
	tests := []struct {
		name string
		face string
	}{
		{"positions", "f 1 2 3"},
		{"positions and uvs", "f 1/1 2/2 3/3"},
		{"positions and normals", "f 1//1 2//1 3//1"},
		{"negative", "f -3/-3/-1 -2/-2/-1 -1/-1/-1"},
	}
	const head = "v 0 0 0\nv 1 0 0\nv 0 1 0\nvt 0 0\nvt 1 0\nvt 0 1\nvn 0 0 1\n"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ReadOBJ(strings.NewReader(head+tt.face+"\n"), "t", Options{Color: rast3d.White})
			if err != nil {
				t.Fatalf("ReadOBJ() error = %v", err)
			}
			if len(m.Triangles) != 1 {
				t.Fatalf("got %d triangles, want 1", len(m.Triangles))
			}
			if got := m.Triangles[0].Vertex[1]; got != rast3d.V3(1, 0, 0) {
				t.Errorf("Vertex[1] = %v, want (1,0,0)", got)
			}
		})
	}
}

func TestReadOBJ_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"short vertex", "v 1 2\n"},
		{"bad float", "v 1 x 3\n"},
		{"two-vertex face", "v 0 0 0\nv 1 0 0\nf 1 2\n"},
		{"index out of range", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 4\n"},
		{"zero index", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n"},
		{"bad uv index", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1/1 2/1 3/1\n"},
		{"garbage token", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadOBJ(strings.NewReader(tt.src), "bad", Options{})
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("ReadOBJ() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestReadOBJ_RandomColors(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nf 1 2 3 4\n"
	a, err := ReadOBJ(strings.NewReader(src), "a", Options{Seed: 42})
	if err != nil {
		t.Fatal(err)
	}
	b, err := ReadOBJ(strings.NewReader(src), "b", Options{Seed: 42})
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Triangles {
		if a.Triangles[i].Color.A() != 255 {
			t.Errorf("triangle %d not opaque", i)
		}
		if a.Triangles[i].Color != b.Triangles[i].Color {
			t.Errorf("triangle %d color differs for the same seed", i)
		}
	}
}

func TestReadOBJ_CommentsAndEmpty(t *testing.T) {
	m, err := ReadOBJ(strings.NewReader("# nothing\n\n   \ns off\n"), "empty", Options{})
	if err != nil {
		t.Fatalf("ReadOBJ() error = %v", err)
	}
	if len(m.Triangles) != 0 {
		t.Errorf("got %d triangles, want 0", len(m.Triangles))
	}
}

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{B: 255, A: 255})
	return img
}

func TestDecodeTexture_Formats(t *testing.T) {
	tests := []struct {
		format string
		encode func(*bytes.Buffer, image.Image) error
	}{
		{"png", func(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) }},
		{"bmp", func(b *bytes.Buffer, img image.Image) error { return bmp.Encode(b, img) }},
		{"tiff", func(b *bytes.Buffer, img image.Image) error { return tiff.Encode(b, img, nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.encode(&buf, testImage()); err != nil {
				t.Fatal(err)
			}
			tex, format, err := DecodeTexture(&buf)
			if err != nil {
				t.Fatalf("DecodeTexture() error = %v", err)
			}
			if format != tt.format {
				t.Errorf("format = %q, want %q", format, tt.format)
			}
			if tex.Width != 2 || tex.Height != 1 {
				t.Fatalf("size = %dx%d", tex.Width, tex.Height)
			}
			if tex.At(0, 0) != rast3d.Red || tex.At(1, 0) != rast3d.Blue {
				t.Errorf("texels = %#x %#x", uint32(tex.At(0, 0)), uint32(tex.At(1, 0)))
			}
		})
	}
}

func TestDecodeTexture_Garbage(t *testing.T) {
	if _, _, err := DecodeTexture(strings.NewReader("not an image")); err == nil {
		t.Error("DecodeTexture(garbage) succeeded")
	}
}

func TestLoadMesh(t *testing.T) {
	dir := t.TempDir()
	objPath := filepath.Join(dir, "square.obj")
	if err := os.WriteFile(objPath, []byte(cubeFace), 0o600); err != nil {
		t.Fatal(err)
	}
	texPath := filepath.Join(dir, "tex.png")
	f, err := os.Create(texPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, testImage()); err != nil {
		t.Fatal(err)
	}
	f.Close()

	m, err := LoadMesh(objPath, texPath, Options{Color: rast3d.Green})
	if err != nil {
		t.Fatalf("LoadMesh() error = %v", err)
	}
	if m.Name != "square" {
		t.Errorf("Name = %q, want square", m.Name)
	}
	if m.Texture == nil || m.Texture.Width != 2 {
		t.Fatalf("Texture = %+v", m.Texture)
	}

	if _, err := LoadMesh(filepath.Join(dir, "missing.obj"), "", Options{}); err == nil {
		t.Error("LoadMesh(missing) succeeded")
	}
	if _, err := LoadMesh(objPath, filepath.Join(dir, "missing.png"), Options{}); err == nil {
		t.Error("LoadMesh(missing texture) succeeded")
	}
}

func TestCube(t *testing.T) {
	m := Cube(rast3d.Blue)
	if len(m.Triangles) != 12 {
		t.Fatalf("got %d triangles, want 12", len(m.Triangles))
	}
	lo, hi := m.Bounds()
	if lo != rast3d.V3(-.5, -.5, -.5) || hi != rast3d.V3(.5, .5, .5) {
		t.Errorf("Bounds() = %v, %v", lo, hi)
	}
	for i, tri := range m.Triangles {
		// Normals point away from the center.
		center := tri.Vertex[0].Add(tri.Vertex[1]).Add(tri.Vertex[2]).Mul(1.0 / 3)
		if tri.Normal[0].Dot(center) <= 0 {
			t.Errorf("triangle %d normal %v points inward", i, tri.Normal[0])
		}
	}
}
