package rast3d

import (
	"fmt"

	"github.com/gogpu/rast3d/internal/kernels"
)

// ModelID identifies a model added to a SceneBuilder.
type ModelID int

// ModelDescriptor locates one model inside the flattened scene arrays.
type ModelDescriptor struct {
	TriangleOffset uint32
	TriangleCount  uint32
	VertexOffset   uint32
	VertexCount    uint32
	PixelOffset    uint32
	TexWidth       uint32 // 0 when untextured
	TexHeight      uint32
	Transform      Mat4
}

// Textured reports whether the model samples a texture.
func (d *ModelDescriptor) Textured() bool {
	return d.TexWidth > 0 && d.TexHeight > 0
}

func (d *ModelDescriptor) record() kernels.ModelRecord {
	return kernels.ModelRecord{
		Transform:      d.Transform,
		TriangleOffset: d.TriangleOffset,
		TriangleCount:  d.TriangleCount,
		VertexOffset:   d.VertexOffset,
		VertexCount:    d.VertexCount,
		PixelOffset:    d.PixelOffset,
		TexWidth:       d.TexWidth,
		TexHeight:      d.TexHeight,
	}
}

// SceneData is a flattened scene ready for upload.
type SceneData struct {
	Triangles []Triangle
	Pixels    []Color
	Models    []ModelDescriptor
}

// VertexCount returns 3 × the number of triangles.
func (s *SceneData) VertexCount() int {
	return 3 * len(s.Triangles)
}

// Validate checks that every model descriptor lies inside the triangle
// and texel arrays and that its vertex range is three times its triangle
// range. Failures wrap ErrInvalidScene.
func (s *SceneData) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil scene data", ErrInvalidScene)
	}
	numTris, numPixels := uint64(len(s.Triangles)), uint64(len(s.Pixels))
	for i := range s.Models {
		d := &s.Models[i]
		if end := uint64(d.TriangleOffset) + uint64(d.TriangleCount); end > numTris {
			return fmt.Errorf("%w: model %d: triangles [%d, %d) outside %d triangles",
				ErrInvalidScene, i, d.TriangleOffset, end, numTris)
		}
		if d.VertexOffset != 3*d.TriangleOffset || d.VertexCount != 3*d.TriangleCount {
			return fmt.Errorf("%w: model %d: vertices [%d, +%d) do not match triangles [%d, +%d)",
				ErrInvalidScene, i, d.VertexOffset, d.VertexCount, d.TriangleOffset, d.TriangleCount)
		}
		if (d.TexWidth == 0) != (d.TexHeight == 0) {
			return fmt.Errorf("%w: model %d: texture size %dx%d",
				ErrInvalidScene, i, d.TexWidth, d.TexHeight)
		}
		if d.Textured() {
			end := uint64(d.PixelOffset) + uint64(d.TexWidth)*uint64(d.TexHeight)
			if end > numPixels {
				return fmt.Errorf("%w: model %d: texels [%d, %d) outside %d texels",
					ErrInvalidScene, i, d.PixelOffset, end, numPixels)
			}
		}
	}
	return nil
}

// models returns the descriptor table to upload. Triangles without any
// descriptor form a single untextured model with an identity transform.
func (s *SceneData) models() []ModelDescriptor {
	if len(s.Models) > 0 || len(s.Triangles) == 0 {
		return s.Models
	}
	n := uint32(len(s.Triangles))
	return []ModelDescriptor{{
		TriangleCount: n,
		VertexCount:   3 * n,
		Transform:     Identity(),
	}}
}

// SceneBuilder accumulates meshes into flat triangle, texel and model
// arrays. Each mesh's triangles and texels occupy one contiguous range.
// The zero value is ready to use.
type SceneBuilder struct {
	triangles []Triangle
	pixels    []Color
	models    []ModelDescriptor
}

// NewSceneBuilder returns an empty builder.
func NewSceneBuilder() *SceneBuilder {
	return &SceneBuilder{}
}

// AddMesh appends a mesh and returns its model id. The mesh's triangles
// and texels are copied. A texture whose pixel count does not match its
// size is rejected with ErrInvalidTexture and the builder is unchanged.
func (b *SceneBuilder) AddMesh(m *Mesh) (ModelID, error) {
	var texW, texH uint32
	if m.Texture != nil {
		if err := m.Texture.Validate(); err != nil {
			return -1, fmt.Errorf("rast3d: mesh %q: %w", m.Name, err)
		}
		texW, texH = uint32(m.Texture.Width), uint32(m.Texture.Height)
	}

	desc := ModelDescriptor{
		TriangleOffset: uint32(len(b.triangles)),
		TriangleCount:  uint32(len(m.Triangles)),
		VertexOffset:   uint32(3 * len(b.triangles)),
		VertexCount:    uint32(3 * len(m.Triangles)),
		PixelOffset:    uint32(len(b.pixels)),
		TexWidth:       texW,
		TexHeight:      texH,
		Transform:      m.Transform,
	}
	if desc.Transform == (Mat4{}) {
		desc.Transform = Identity()
	}

	b.triangles = append(b.triangles, m.Triangles...)
	if m.Texture != nil {
		b.pixels = append(b.pixels, m.Texture.Pixels...)
	}
	b.models = append(b.models, desc)
	Logger().Debug("rast3d: mesh added", "name", m.Name,
		"triangles", desc.TriangleCount, "texture", [2]uint32{texW, texH})
	return ModelID(len(b.models) - 1), nil
}

// SetTransform replaces a model's transform.
func (b *SceneBuilder) SetTransform(id ModelID, m Mat4) error {
	if id < 0 || int(id) >= len(b.models) {
		return fmt.Errorf("%w: %d", ErrUnknownModel, id)
	}
	b.models[id].Transform = m
	return nil
}

// Model returns the descriptor of a model.
func (b *SceneBuilder) Model(id ModelID) (ModelDescriptor, bool) {
	if id < 0 || int(id) >= len(b.models) {
		return ModelDescriptor{}, false
	}
	return b.models[id], true
}

// Counts returns the number of models, triangles and texels.
func (b *SceneBuilder) Counts() (models, triangles, pixels int) {
	return len(b.models), len(b.triangles), len(b.pixels)
}

// Build returns a copy of the accumulated arrays.
func (b *SceneBuilder) Build() *SceneData {
	return &SceneData{
		Triangles: append([]Triangle(nil), b.triangles...),
		Pixels:    append([]Color(nil), b.pixels...),
		Models:    append([]ModelDescriptor(nil), b.models...),
	}
}

// Reset discards every added mesh.
func (b *SceneBuilder) Reset() {
	b.triangles = b.triangles[:0]
	b.pixels = b.pixels[:0]
	b.models = b.models[:0]
}
