package meshio

import "github.com/gogpu/rast3d"

// Cube returns a unit cube centered on the origin with 12 triangles of
// color c. Each face maps the full texture.
func Cube(c rast3d.Color) *rast3d.Mesh {
	// Face corners in counter-clockwise order seen from outside.
	faces := [6][4]rast3d.Vec3{
		{{X: -.5, Y: -.5, Z: .5}, {X: .5, Y: -.5, Z: .5}, {X: .5, Y: .5, Z: .5}, {X: -.5, Y: .5, Z: .5}},
		{{X: .5, Y: -.5, Z: -.5}, {X: -.5, Y: -.5, Z: -.5}, {X: -.5, Y: .5, Z: -.5}, {X: .5, Y: .5, Z: -.5}},
		{{X: .5, Y: -.5, Z: .5}, {X: .5, Y: -.5, Z: -.5}, {X: .5, Y: .5, Z: -.5}, {X: .5, Y: .5, Z: .5}},
		{{X: -.5, Y: -.5, Z: -.5}, {X: -.5, Y: -.5, Z: .5}, {X: -.5, Y: .5, Z: .5}, {X: -.5, Y: .5, Z: -.5}},
		{{X: -.5, Y: .5, Z: .5}, {X: .5, Y: .5, Z: .5}, {X: .5, Y: .5, Z: -.5}, {X: -.5, Y: .5, Z: -.5}},
		{{X: -.5, Y: -.5, Z: -.5}, {X: .5, Y: -.5, Z: -.5}, {X: .5, Y: -.5, Z: .5}, {X: -.5, Y: -.5, Z: .5}},
	}
	uv := [4]rast3d.Vec2{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}

	tris := make([]rast3d.Triangle, 0, 12)
	for _, f := range faces {
		n := f[1].Sub(f[0]).Cross(f[2].Sub(f[0])).Normalize()
		for _, idx := range [2][3]int{{0, 1, 2}, {0, 2, 3}} {
			var t rast3d.Triangle
			for j, k := range idx {
				t.Vertex[j] = f[k]
				t.UV[j] = uv[k]
				t.Normal[j] = n
			}
			t.Color = c
			tris = append(tris, t)
		}
	}
	return rast3d.NewMesh("cube", tris)
}
