// Package rast3d is a compute-kernel 3D rasterizer.
//
// # Overview
//
// rast3d uploads triangle meshes into device buffers and renders them with
// three compute kernels issued on one in-order queue:
//
//   - clear_buffers fills the color buffer with the clear color and the depth
//     buffer with +Inf;
//   - vertex_kernel transforms every vertex to clip space;
//   - fragment_kernel rasterizes every pixel against every triangle with a
//     strictly-less depth test and writes the nearest texel or the triangle
//     color.
//
// The color buffer is read back into a host [Frame] after every frame.
//
// # Quick Start
//
//	import "github.com/gogpu/rast3d"
//
//	eng, err := rast3d.New(640, 480)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer eng.Close()
//
//	sb := rast3d.NewSceneBuilder()
//	sb.AddMesh(mesh)
//	if err := eng.UploadScene(sb.Build()); err != nil {
//		log.Fatal(err)
//	}
//
//	cam := rast3d.NewCamera(640, 480)
//	frame, err := eng.RenderFrame(ctx, &cam)
//	if err != nil {
//		log.Fatal(err)
//	}
//	frame.SavePNG("frame.png")
//
// # Devices
//
// Kernels run on a [Device]. The software device is always available. The
// wgpu/hal device is enabled by a blank import:
//
//	import _ "github.com/gogpu/rast3d/gpu"
//
// [BackendAuto] tries the GPU first and falls back to the software device.
//
// # Coordinate System
//
// Right-handed world space with +Y up. Matrices are column-major. Normalized
// device coordinates map to the screen with the origin at the top-left
// corner and Y increasing down.
package rast3d

// Version is the current version of the library.
const Version = "0.1.0"
