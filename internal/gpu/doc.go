//go:build !nogpu

// Package gpu implements compute.Device on the gogpu/wgpu hal layer.
//
// The device runs the rasterizer kernels as WGSL compute shaders through
// the Pure Go wgpu implementation (zero CGO). Open selects a Vulkan
// adapter; OpenShared reuses the hal device of a gpucontext provider such
// as a gogpu window.
//
// # Architecture Overview
//
//	ProgramDesc.Source (WGSL) -> naga -> SPIR-V -> shader module
//	    -> one bind group layout + compute pipeline per entry point
//
// Dispatches are recorded, not submitted: each Dispatch creates a bind
// group for its bindings and appends it to the pending list. The list is
// encoded as one command buffer, one compute pass per dispatch, when the
// host next synchronizes (Finish, ReadBuffer) or writes a buffer. Passes
// in one command buffer execute in order, so the vertex pass sees the
// cleared buffers and the fragment pass sees the projected vertices.
//
// # Buffers
//
// Buffer sizes are rounded up to a multiple of 4 with a 16-byte minimum,
// so empty arrays still bind. Host writes go through Queue.WriteBuffer. Readback copies into a MapRead
// staging buffer and waits on a fence.
//
// # Usage
//
//	dev, err := gpu.Open()
//	if err != nil {
//	    // no adapter; fall back to the software device
//	}
//	defer dev.Close()
//
// Most code uses the public github.com/gogpu/rast3d/gpu package, which
// registers Open as rast3d.BackendGPU.
//
// # Thread Safety
//
// Device methods lock an internal mutex and may be called from any
// goroutine, but frames are expected to be driven by one goroutine.
//
// # Error Handling
//
// Kernel build failures return *compute.BuildError carrying the naga log.
// Binding mismatches return *compute.BindingError before anything is
// recorded. Fence waits honor the context deadline, or DefaultFenceTimeout
// without one, and return compute.ErrTimeout when it expires.
//
// # Build Tags
//
// The nogpu tag excludes this package.
package gpu
