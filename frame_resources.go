package rast3d

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/rast3d/internal/compute"
	"github.com/gogpu/rast3d/internal/kernels"
)

// bufferSet is every device buffer of a FrameResources.
type bufferSet struct {
	color      compute.BufferID
	depth      compute.BufferID
	projected  compute.BufferID
	view       compute.BufferID
	projection compute.BufferID
	cameraPos  compute.BufferID
	world      compute.BufferID
	params     compute.BufferID
}

func (s *bufferSet) ids() []*compute.BufferID {
	return []*compute.BufferID{
		&s.color, &s.depth, &s.projected, &s.view,
		&s.projection, &s.cameraPos, &s.world, &s.params,
	}
}

func (s *bufferSet) release(dev Device) {
	for _, id := range s.ids() {
		if *id != compute.InvalidBuffer {
			dev.DestroyBuffer(*id)
			*id = compute.InvalidBuffer
		}
	}
}

// FrameResources holds the per-frame device buffers: color, depth, the
// projected-vertex scratch array and the uniforms. Host copies of every
// uniform are cached so a resize can restore them.
type FrameResources struct {
	pipe *Pipeline
	dev  Device
	bufs bufferSet

	width, height int
	vertexCount   int

	cameraPos  Vec3
	view       Mat4
	projection Mat4
	world      Mat4
	params     kernels.Params
}

// NewFrameResources creates the buffers for a width×height framebuffer and
// vertexCount projected vertices. Uniforms start as identity matrices, the
// origin and a black clear color.
func NewFrameResources(p *Pipeline, width, height, vertexCount int) (*FrameResources, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidResolution, width, height)
	}
	fr := &FrameResources{
		pipe:        p,
		dev:         p.dev,
		width:       width,
		height:      height,
		vertexCount: max(vertexCount, 0),
		view:        Identity(),
		projection:  Identity(),
		world:       Identity(),
		params: kernels.Params{
			ClearColor: uint32(Black),
			DepthClear: float32(math.Inf(1)),
		},
	}
	bufs, err := fr.allocate(width, height, fr.vertexCount)
	if err != nil {
		return nil, err
	}
	fr.bufs = bufs
	if err := fr.upload(); err != nil {
		fr.Release()
		return nil, err
	}
	return fr, nil
}

// allocate creates a complete buffer set. On failure nothing is left allocated.
func (fr *FrameResources) allocate(width, height, vertexCount int) (bufferSet, error) {
	pixels := uint64(width) * uint64(height)
	storage := compute.UsageStorage | compute.UsageCopySrc | compute.UsageCopyDst
	uniform := compute.UsageUniform | compute.UsageCopySrc | compute.UsageCopyDst

	var s bufferSet
	specs := []struct {
		id    *compute.BufferID
		label string
		size  uint64
		usage compute.Usage
	}{
		{&s.color, "color", pixels * kernels.PixelSize, storage},
		{&s.depth, "depth", pixels * 4, storage},
		{&s.projected, "projected", max(uint64(vertexCount)*kernels.ProjectedSize, placeholderSize), storage},
		{&s.view, "view", kernels.Mat4Size, uniform},
		{&s.projection, "projection", kernels.Mat4Size, uniform},
		{&s.cameraPos, "camera_pos", kernels.Vec4Size, uniform},
		{&s.world, "world", kernels.Mat4Size, uniform},
		{&s.params, "params", kernels.ParamsSize, uniform},
	}
	for _, sp := range specs {
		id, err := fr.dev.CreateBuffer(compute.BufferDesc{Label: sp.label, Size: sp.size, Usage: sp.usage})
		if err != nil {
			s.release(fr.dev)
			return bufferSet{}, fmt.Errorf("rast3d: create %s buffer (%d bytes): %w", sp.label, sp.size, err)
		}
		*sp.id = id
	}
	Logger().Debug("rast3d: frame resources allocated",
		"width", width, "height", height, "vertices", vertexCount)
	return s, nil
}

// upload writes every cached uniform to the device.
func (fr *FrameResources) upload() error {
	fr.params.Width = uint32(fr.width)
	fr.params.Height = uint32(fr.height)
	fr.params.NumVertices = uint32(fr.vertexCount)
	return errors.Join(
		fr.writeMat4(fr.bufs.view, &fr.view),
		fr.writeMat4(fr.bufs.projection, &fr.projection),
		fr.writeMat4(fr.bufs.world, &fr.world),
		fr.dev.WriteBuffer(fr.bufs.cameraPos, 0, kernels.Vec4Bytes(fr.cameraPos.X, fr.cameraPos.Y, fr.cameraPos.Z)),
		fr.dev.WriteBuffer(fr.bufs.params, 0, fr.params.Bytes()),
	)
}

func (fr *FrameResources) writeMat4(id compute.BufferID, m *Mat4) error {
	return fr.dev.WriteBuffer(id, 0, kernels.AppendMat4(make([]byte, 0, kernels.Mat4Size), (*[16]float32)(m)))
}

// Size returns the framebuffer size.
func (fr *FrameResources) Size() (width, height int) { return fr.width, fr.height }

// VertexCount returns the capacity of the projected-vertex buffer.
func (fr *FrameResources) VertexCount() int { return fr.vertexCount }

// WriteCamera uploads the camera position and view matrix.
func (fr *FrameResources) WriteCamera(pos Vec3, view Mat4) error {
	fr.cameraPos, fr.view = pos, view
	if err := fr.dev.WriteBuffer(fr.bufs.cameraPos, 0, kernels.Vec4Bytes(pos.X, pos.Y, pos.Z)); err != nil {
		return fmt.Errorf("rast3d: write camera position: %w", err)
	}
	if err := fr.writeMat4(fr.bufs.view, &fr.view); err != nil {
		return fmt.Errorf("rast3d: write view: %w", err)
	}
	return nil
}

// Projection returns the projection matrix last written to the device.
func (fr *FrameResources) Projection() Mat4 { return fr.projection }

// WriteProjection uploads the projection matrix. The engine calls it only
// when the camera's projection changes; Resize restores it on new buffers.
func (fr *FrameResources) WriteProjection(m Mat4) error {
	fr.projection = m
	if err := fr.writeMat4(fr.bufs.projection, &fr.projection); err != nil {
		return fmt.Errorf("rast3d: write projection: %w", err)
	}
	return nil
}

// WriteTransform uploads the world transform applied to every model.
func (fr *FrameResources) WriteTransform(m Mat4) error {
	fr.world = m
	if err := fr.writeMat4(fr.bufs.world, &fr.world); err != nil {
		return fmt.Errorf("rast3d: write world transform: %w", err)
	}
	return nil
}

// SetClearColor sets the color written by Clear.
func (fr *FrameResources) SetClearColor(c Color) error {
	fr.params.ClearColor = uint32(c)
	return fr.writeParams()
}

// ClearColor returns the current clear color.
func (fr *FrameResources) ClearColor() Color { return Color(fr.params.ClearColor) }

// setScene records the model and triangle counts the kernels iterate over.
func (fr *FrameResources) setScene(g *GeometryBuffers) error {
	fr.params.NumModels = g.numModels
	fr.params.NumTriangles = g.numTriangles
	return fr.writeParams()
}

func (fr *FrameResources) writeParams() error {
	if err := fr.dev.WriteBuffer(fr.bufs.params, 0, fr.params.Bytes()); err != nil {
		return fmt.Errorf("rast3d: write params: %w", err)
	}
	return nil
}

// Clear enqueues the clear kernel.
func (fr *FrameResources) Clear() error {
	return fr.pipe.Clear(fr)
}

// ReadColor waits for queued work and copies the color buffer into dst as
// RGBA bytes. dst must hold width×height×4 bytes.
func (fr *FrameResources) ReadColor(ctx context.Context, dst []byte) error {
	n := fr.width * fr.height * kernels.PixelSize
	if len(dst) < n {
		return fmt.Errorf("rast3d: read color: destination holds %d bytes, need %d", len(dst), n)
	}
	return fr.dev.ReadBuffer(ctx, fr.bufs.color, 0, dst[:n])
}

// ReadDepth returns the depth buffer.
func (fr *FrameResources) ReadDepth(ctx context.Context) ([]float32, error) {
	buf := make([]byte, fr.width*fr.height*4)
	if err := fr.dev.ReadBuffer(ctx, fr.bufs.depth, 0, buf); err != nil {
		return nil, err
	}
	return kernels.DecodeFloats(buf), nil
}

// ReadView returns the view matrix as stored on the device.
func (fr *FrameResources) ReadView(ctx context.Context) (Mat4, error) {
	buf := make([]byte, kernels.Mat4Size)
	if err := fr.dev.ReadBuffer(ctx, fr.bufs.view, 0, buf); err != nil {
		return Mat4{}, err
	}
	var m Mat4
	copy(m[:], kernels.DecodeFloats(buf))
	return m, nil
}

// ReadProjected returns the clip-space vertices written by the last
// vertex dispatch.
func (fr *FrameResources) ReadProjected(ctx context.Context) ([]Vec4, error) {
	if fr.vertexCount == 0 {
		return nil, nil
	}
	buf := make([]byte, fr.vertexCount*kernels.ProjectedSize)
	if err := fr.dev.ReadBuffer(ctx, fr.bufs.projected, 0, buf); err != nil {
		return nil, err
	}
	f := kernels.DecodeFloats(buf)
	out := make([]Vec4, fr.vertexCount)
	for i := range out {
		out[i] = Vec4{X: f[i*4], Y: f[i*4+1], Z: f[i*4+2], W: f[i*4+3]}
	}
	return out, nil
}

// Resize rebuilds every buffer for a new framebuffer size and restores the
// cached uniforms. An invalid size returns ErrInvalidResolution and leaves
// the current buffers untouched.
func (fr *FrameResources) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidResolution, width, height)
	}
	if width == fr.width && height == fr.height {
		return nil
	}
	bufs, err := fr.allocate(width, height, fr.vertexCount)
	if err != nil {
		return err
	}
	fr.bufs.release(fr.dev)
	fr.bufs = bufs
	fr.width, fr.height = width, height
	Logger().Info("rast3d: frame resources resized", "width", width, "height", height)
	return fr.upload()
}

// ResizeScratch recreates the projected-vertex buffer for vertexCount
// vertices.
func (fr *FrameResources) ResizeScratch(vertexCount int) error {
	vertexCount = max(vertexCount, 0)
	if vertexCount == fr.vertexCount {
		return nil
	}
	size := max(uint64(vertexCount)*kernels.ProjectedSize, placeholderSize)
	id, err := fr.dev.CreateBuffer(compute.BufferDesc{
		Label: "projected",
		Size:  size,
		Usage: compute.UsageStorage | compute.UsageCopySrc | compute.UsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("rast3d: create projected buffer (%d bytes): %w", size, err)
	}
	fr.dev.DestroyBuffer(fr.bufs.projected)
	fr.bufs.projected = id
	fr.vertexCount = vertexCount
	fr.params.NumVertices = uint32(vertexCount)
	return fr.writeParams()
}

// Release destroys every buffer. Safe to call more than once.
func (fr *FrameResources) Release() {
	fr.bufs.release(fr.dev)
}
