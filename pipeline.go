package rast3d

import (
	"fmt"

	"github.com/gogpu/rast3d/internal/compute"
	"github.com/gogpu/rast3d/internal/kernels"
)

// Pipeline is the loaded rasterizer program: the clear, vertex and
// fragment kernels with their binding contract.
//
// All three stages are enqueued on the device's in-order queue, so a stage
// observes every write of the stages issued before it without a host wait.
type Pipeline struct {
	dev  Device
	prog compute.Program

	clear    compute.Kernel
	vertex   compute.Kernel
	fragment compute.Kernel
}

// NewPipeline checks the kernel source against the binding table and loads
// it on dev. A binding mismatch returns a *BindingError, a compile failure
// a *BuildError carrying the full log.
func NewPipeline(dev Device) (*Pipeline, error) {
	desc := kernels.Program()
	if err := kernels.Validate(desc.Source, desc.Signatures); err != nil {
		return nil, fmt.Errorf("rast3d: kernel source: %w", err)
	}
	prog, err := dev.LoadProgram(desc)
	if err != nil {
		return nil, fmt.Errorf("rast3d: load kernels on %s: %w", dev.Name(), err)
	}
	p := &Pipeline{dev: dev, prog: prog}
	for entry, dst := range map[string]*compute.Kernel{
		kernels.EntryClear:    &p.clear,
		kernels.EntryVertex:   &p.vertex,
		kernels.EntryFragment: &p.fragment,
	} {
		k, ok := prog.Kernel(entry)
		if !ok {
			prog.Release()
			return nil, fmt.Errorf("rast3d: kernel %s: %w", entry, compute.ErrNoProgram)
		}
		*dst = k
	}
	Logger().Debug("rast3d: pipeline loaded", "device", dev.Name())
	return p, nil
}

// Device returns the device the pipeline runs on.
func (p *Pipeline) Device() Device { return p.dev }

// Clear fills the color buffer with the clear color and the depth buffer
// with +Inf.
func (p *Pipeline) Clear(fr *FrameResources) error {
	b := compute.Bindings{
		kernels.RoleParams: fr.bufs.params,
		kernels.RoleColor:  fr.bufs.color,
		kernels.RoleDepth:  fr.bufs.depth,
	}
	return p.dev.Dispatch(p.clear, b, compute.Grid2D(uint32(fr.width), uint32(fr.height)))
}

// Vertex transforms every vertex of g into fr's projected buffer.
// An empty scene dispatches nothing.
func (p *Pipeline) Vertex(fr *FrameResources, g *GeometryBuffers) error {
	if g.Empty() {
		return nil
	}
	b := compute.Bindings{
		kernels.RoleParams:     fr.bufs.params,
		kernels.RoleTriangles:  g.triangles,
		kernels.RoleModels:     g.models,
		kernels.RoleProjected:  fr.bufs.projected,
		kernels.RoleView:       fr.bufs.view,
		kernels.RoleProjection: fr.bufs.projection,
		kernels.RoleCameraPos:  fr.bufs.cameraPos,
		kernels.RoleWorld:      fr.bufs.world,
	}
	return p.dev.Dispatch(p.vertex, b, compute.Grid1D(uint32(g.NumVertices())))
}

// Fragment rasterizes every pixel of fr against the projected vertices.
// An empty scene dispatches nothing and the frame keeps the clear color.
func (p *Pipeline) Fragment(fr *FrameResources, g *GeometryBuffers) error {
	if g.Empty() {
		return nil
	}
	b := compute.Bindings{
		kernels.RoleParams:    fr.bufs.params,
		kernels.RoleColor:     fr.bufs.color,
		kernels.RoleDepth:     fr.bufs.depth,
		kernels.RoleTriangles: g.triangles,
		kernels.RoleModels:    g.models,
		kernels.RoleTexels:    g.texels,
		kernels.RoleProjected: fr.bufs.projected,
	}
	return p.dev.Dispatch(p.fragment, b, compute.Grid2D(uint32(fr.width), uint32(fr.height)))
}

// Release destroys the kernels. The device stays open.
func (p *Pipeline) Release() {
	if p.prog != nil {
		p.prog.Release()
		p.prog = nil
	}
}
