// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpu registers the wgpu/hal compute device as rast3d.BackendGPU.
//
// Import this package to render on the GPU. The kernels are compiled from
// WGSL to SPIR-V with naga and dispatched through hal compute passes.
//
// If no adapter is available (no Vulkan driver), opening the backend fails
// and rast3d.BackendAuto falls back to the software device.
//
// Usage:
//
//	import _ "github.com/gogpu/rast3d/gpu" // enable the GPU backend
//
// Building with the nogpu tag leaves this package empty.
package gpu
