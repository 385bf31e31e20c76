package rast3d

import (
	"fmt"
	"image"
	"io"
	"text/tabwriter"
)

// Triangle is one triangle of a mesh in model space.
type Triangle struct {
	Vertex [3]Vec3
	UV     [3]Vec2
	Normal [3]Vec3
	Color  Color
}

// Texture is a row-major array of packed texels. Texture coordinates
// address it with u to the right and v downward from the first row.
type Texture struct {
	Width  int
	Height int
	Pixels []Color
}

// NewTexture creates a texture filled with transparent black.
func NewTexture(width, height int) *Texture {
	return &Texture{
		Width:  width,
		Height: height,
		Pixels: make([]Color, width*height),
	}
}

// TextureFromImage copies img into a new texture.
func TextureFromImage(img image.Image) *Texture {
	b := img.Bounds()
	t := NewTexture(b.Dx(), b.Dy())
	if rgba, ok := img.(*image.NRGBA); ok {
		for y := range t.Height {
			row := rgba.Pix[y*rgba.Stride:]
			for x := range t.Width {
				p := row[x*4:]
				t.Pixels[y*t.Width+x] = RGBA8(p[0], p[1], p[2], p[3])
			}
		}
		return t
	}
	for y := range t.Height {
		for x := range t.Width {
			t.Pixels[y*t.Width+x] = FromColor(img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return t
}

// Validate checks the dimensions against the pixel count.
func (t *Texture) Validate() error {
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidTexture, t.Width, t.Height)
	}
	if len(t.Pixels) != t.Width*t.Height {
		return fmt.Errorf("%w: %d pixels for %dx%d", ErrInvalidTexture, len(t.Pixels), t.Width, t.Height)
	}
	return nil
}

// At returns the texel at (x, y).
func (t *Texture) At(x, y int) Color {
	return t.Pixels[y*t.Width+x]
}

// Mesh is a triangle list with a model transform and an optional texture.
type Mesh struct {
	Name      string
	Triangles []Triangle
	Transform Mat4
	Texture   *Texture
}

// NewMesh returns a mesh with the identity transform.
func NewMesh(name string, tris []Triangle) *Mesh {
	return &Mesh{Name: name, Triangles: tris, Transform: Identity()}
}

// VertexCount returns 3 × the number of triangles.
func (m *Mesh) VertexCount() int {
	return 3 * len(m.Triangles)
}

// SetColor sets every triangle to c.
func (m *Mesh) SetColor(c Color) {
	for i := range m.Triangles {
		m.Triangles[i].Color = c
	}
}

// Bounds returns the axis-aligned bounding box of the mesh in model space.
func (m *Mesh) Bounds() (lo, hi Vec3) {
	if len(m.Triangles) == 0 {
		return Vec3{}, Vec3{}
	}
	lo, hi = m.Triangles[0].Vertex[0], m.Triangles[0].Vertex[0]
	for i := range m.Triangles {
		for _, v := range m.Triangles[i].Vertex {
			lo = V3(min(lo.X, v.X), min(lo.Y, v.Y), min(lo.Z, v.Z))
			hi = V3(max(hi.X, v.X), max(hi.Y, v.Y), max(hi.Z, v.Z))
		}
	}
	return lo, hi
}

// Dump writes a per-triangle table of the mesh for debugging.
func (m *Mesh) Dump(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	lo, hi := m.Bounds()
	fmt.Fprintf(tw, "mesh %q: %d triangles, %d vertices\n", m.Name, len(m.Triangles), m.VertexCount())
	fmt.Fprintf(tw, "bounds\t%v\t%v\n", lo, hi)
	if m.Texture != nil {
		fmt.Fprintf(tw, "texture\t%dx%d\n", m.Texture.Width, m.Texture.Height)
	}
	fmt.Fprintf(tw, "#\tv0\tv1\tv2\tuv0\tuv1\tuv2\tcolor\n")
	for i := range m.Triangles {
		t := &m.Triangles[i]
		fmt.Fprintf(tw, "%d\t%v\t%v\t%v\t%v\t%v\t%v\t#%08x\n",
			i, t.Vertex[0], t.Vertex[1], t.Vertex[2], t.UV[0], t.UV[1], t.UV[2], uint32(t.Color))
	}
	return tw.Flush()
}
