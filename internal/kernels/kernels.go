// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package kernels holds the rasterizer kernel source, its binding contract,
// the std430 record layouts shared with the host and Go implementations of
// every entry point for software devices.
package kernels

import (
	_ "embed"

	"github.com/gogpu/rast3d/internal/compute"
)

// Source is the WGSL source of all rasterizer kernels.
//
//go:embed raster.wgsl
var Source string

// Entry point names.
const (
	EntryClear    = "clear_buffers"
	EntryVertex   = "vertex_kernel"
	EntryFragment = "fragment_kernel"
)

// Roles. Each role equals the name of the WGSL variable it binds.
const (
	RoleParams     compute.Role = "params"
	RoleColor      compute.Role = "color_buffer"
	RoleDepth      compute.Role = "depth_buffer"
	RoleTriangles  compute.Role = "triangles"
	RoleModels     compute.Role = "models"
	RoleTexels     compute.Role = "texels"
	RoleProjected  compute.Role = "projected"
	RoleView       compute.Role = "view"
	RoleProjection compute.Role = "projection"
	RoleCameraPos  compute.Role = "camera_pos"
	RoleWorld      compute.Role = "world"
)

var (
	slotParams     = compute.Slot{Role: RoleParams, Binding: 0, Access: compute.AccessUniform}
	slotColor      = compute.Slot{Role: RoleColor, Binding: 1, Access: compute.AccessReadWrite}
	slotDepth      = compute.Slot{Role: RoleDepth, Binding: 2, Access: compute.AccessReadWrite}
	slotTriangles  = compute.Slot{Role: RoleTriangles, Binding: 3, Access: compute.AccessRead}
	slotModels     = compute.Slot{Role: RoleModels, Binding: 4, Access: compute.AccessRead}
	slotTexels     = compute.Slot{Role: RoleTexels, Binding: 5, Access: compute.AccessRead}
	slotProjected  = compute.Slot{Role: RoleProjected, Binding: 6, Access: compute.AccessReadWrite}
	slotView       = compute.Slot{Role: RoleView, Binding: 7, Access: compute.AccessUniform}
	slotProjection = compute.Slot{Role: RoleProjection, Binding: 8, Access: compute.AccessUniform}
	slotCameraPos  = compute.Slot{Role: RoleCameraPos, Binding: 9, Access: compute.AccessUniform}
	slotWorld      = compute.Slot{Role: RoleWorld, Binding: 10, Access: compute.AccessUniform}
)

// Signatures returns the binding contract of every entry point.
// The returned slice is freshly allocated.
func Signatures() []compute.Signature {
	return []compute.Signature{
		{
			Entry:     EntryClear,
			Slots:     []compute.Slot{slotParams, slotColor, slotDepth},
			Workgroup: [3]uint32{8, 8, 1},
		},
		{
			Entry: EntryVertex,
			Slots: []compute.Slot{
				slotParams, slotTriangles, slotModels, slotProjected,
				slotView, slotProjection, slotCameraPos, slotWorld,
			},
			Workgroup: [3]uint32{64, 1, 1},
		},
		{
			Entry: EntryFragment,
			Slots: []compute.Slot{
				slotParams, slotColor, slotDepth, slotTriangles,
				slotModels, slotTexels, slotProjected,
			},
			Workgroup: [3]uint32{8, 8, 1},
		},
	}
}

// Program returns the descriptor for loading the rasterizer program on any device.
func Program() compute.ProgramDesc {
	return compute.ProgramDesc{
		Label:      "raster",
		Source:     Source,
		Signatures: Signatures(),
		Host:       HostKernels(),
	}
}
