package rast3d

import (
	"errors"
	"fmt"

	"github.com/gogpu/rast3d/internal/compute"
	"github.com/gogpu/rast3d/internal/kernels"
)

// GeometryBuffers holds the read-only scene buffers on a device:
// triangles, texels and the model descriptor table.
type GeometryBuffers struct {
	dev Device

	triangles compute.BufferID
	texels    compute.BufferID
	models    compute.BufferID

	numTriangles uint32
	numModels    uint32
	numPixels    uint32
}

// UploadGeometry creates the scene buffers from data. Upload is one-shot:
// to change the scene, release the buffers and upload again. Empty arrays
// get a placeholder allocation so bindings stay valid. On failure every
// buffer created so far is destroyed.
//
// data is checked with SceneData.Validate first. Triangles without a model
// table are uploaded as one model with an identity transform.
func UploadGeometry(dev Device, data *SceneData) (*GeometryBuffers, error) {
	if dev == nil {
		return nil, errors.New("rast3d: upload geometry: nil device")
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	descs := data.models()
	g := &GeometryBuffers{
		dev:          dev,
		numTriangles: uint32(len(data.Triangles)),
		numModels:    uint32(len(descs)),
		numPixels:    uint32(len(data.Pixels)),
	}

	tris := make([]byte, 0, len(data.Triangles)*kernels.TriangleSize)
	for i := range data.Triangles {
		rec := triangleRecord(&data.Triangles[i])
		tris = kernels.AppendTriangle(tris, &rec)
	}
	px := make([]uint32, len(data.Pixels))
	for i, c := range data.Pixels {
		px[i] = uint32(c)
	}
	texels := kernels.AppendPixels(make([]byte, 0, len(px)*kernels.PixelSize), px)
	models := make([]byte, 0, len(descs)*kernels.ModelSize)
	for i := range descs {
		rec := descs[i].record()
		models = kernels.AppendModel(models, &rec)
	}

	var err error
	if g.triangles, err = createReadOnly(dev, "triangles", tris); err != nil {
		return nil, err
	}
	if g.texels, err = createReadOnly(dev, "texels", texels); err != nil {
		g.Release()
		return nil, err
	}
	if g.models, err = createReadOnly(dev, "models", models); err != nil {
		g.Release()
		return nil, err
	}
	Logger().Info("rast3d: geometry uploaded",
		"models", g.numModels, "triangles", g.numTriangles, "texels", g.numPixels)
	return g, nil
}

func createReadOnly(dev Device, label string, contents []byte) (compute.BufferID, error) {
	size := uint64(len(contents))
	if size == 0 {
		size = placeholderSize
	}
	id, err := dev.CreateBuffer(compute.BufferDesc{
		Label:    label,
		Size:     size,
		Usage:    compute.UsageStorage | compute.UsageCopyDst,
		Contents: contents,
	})
	if err != nil {
		return compute.InvalidBuffer, fmt.Errorf("rast3d: create %s buffer (%d bytes): %w", label, size, err)
	}
	return id, nil
}

// placeholderSize is the allocation for an empty array.
const placeholderSize = 16

func triangleRecord(t *Triangle) kernels.TriangleRecord {
	var r kernels.TriangleRecord
	for i := range 3 {
		r.Pos[i] = [3]float32{t.Vertex[i].X, t.Vertex[i].Y, t.Vertex[i].Z}
		r.UV[i] = [2]float32{t.UV[i].X, t.UV[i].Y}
		r.Normal[i] = [3]float32{t.Normal[i].X, t.Normal[i].Y, t.Normal[i].Z}
	}
	r.Color = uint32(t.Color)
	return r
}

// NumTriangles returns the uploaded triangle count.
func (g *GeometryBuffers) NumTriangles() int { return int(g.numTriangles) }

// NumVertices returns 3 × the uploaded triangle count.
func (g *GeometryBuffers) NumVertices() int { return 3 * int(g.numTriangles) }

// NumModels returns the number of model descriptors.
func (g *GeometryBuffers) NumModels() int { return int(g.numModels) }

// Empty reports whether there is nothing to draw.
func (g *GeometryBuffers) Empty() bool { return g.numTriangles == 0 || g.numModels == 0 }

// Release destroys the buffers. Safe to call more than once.
func (g *GeometryBuffers) Release() {
	for _, id := range []*compute.BufferID{&g.triangles, &g.texels, &g.models} {
		if *id != compute.InvalidBuffer {
			g.dev.DestroyBuffer(*id)
			*id = compute.InvalidBuffer
		}
	}
}
