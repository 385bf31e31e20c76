// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kernels

import (
	"math"

	"github.com/chewxy/math32"

	"github.com/gogpu/rast3d/internal/compute"
)

// HostKernels returns Go implementations of every entry point in Source.
// They follow the WGSL kernels statement for statement so both devices
// produce the same frame.
func HostKernels() map[string]compute.HostKernel {
	return map[string]compute.HostKernel{
		EntryClear: {
			Roles: []compute.Role{RoleParams, RoleColor, RoleDepth},
			Run:   clearBuffers,
		},
		EntryVertex: {
			Roles: []compute.Role{
				RoleParams, RoleTriangles, RoleModels, RoleProjected,
				RoleView, RoleProjection, RoleCameraPos, RoleWorld,
			},
			Setup: vertexSetup,
			Run:   vertexKernel,
		},
		EntryFragment: {
			Roles: []compute.Role{
				RoleParams, RoleColor, RoleDepth, RoleTriangles,
				RoleModels, RoleTexels, RoleProjected,
			},
			Setup: fragmentSetup,
			Run:   fragmentKernel,
		},
	}
}

type mat4 [16]float32

func loadMat4(w []uint32, at int) mat4 {
	var m mat4
	for i := range m {
		m[i] = math.Float32frombits(w[at+i])
	}
	return m
}

// mul returns a*b for column-major matrices.
func (a *mat4) mul(b *mat4) mat4 {
	var r mat4
	for c := 0; c < 4; c++ {
		for row := 0; row < 4; row++ {
			var s float32
			for k := 0; k < 4; k++ {
				s += a[k*4+row] * b[c*4+k]
			}
			r[c*4+row] = s
		}
	}
	return r
}

func (a *mat4) apply(x, y, z, w float32) [4]float32 {
	var r [4]float32
	for row := 0; row < 4; row++ {
		r[row] = a[row]*x + a[4+row]*y + a[8+row]*z + a[12+row]*w
	}
	return r
}

func f32(w []uint32, i int) float32 { return math.Float32frombits(w[i]) }

func clearBuffers(a *compute.HostArgs, begin, end uint64) {
	params := a.Words(RoleParams)
	color := a.Words(RoleColor)
	depth := a.Words(RoleDepth)
	width, height := params[paramsWidthWord], params[paramsHeightWord]
	clear, depthClear := params[paramsClearWord], params[paramsDepthWord]

	for i := begin; i < end; i++ {
		x, y := uint32(i%uint64(a.Grid.X)), uint32(i/uint64(a.Grid.X)) //nolint:gosec // grid fits uint32
		if x >= width || y >= height {
			continue
		}
		idx := y*width + x
		color[idx] = clear
		depth[idx] = depthClear
	}
}

type modelRange struct {
	triOffset, triCount uint32
	transform           mat4
}

func loadModels(params, models []uint32) []modelRange {
	n := int(params[paramsModelsWord])
	out := make([]modelRange, n)
	for i := range out {
		base := i * modelWords
		out[i] = modelRange{
			triOffset: models[base+modelTriOffsetWord],
			triCount:  models[base+modelTriCountWord],
			transform: loadMat4(models, base+modelTransformWord),
		}
	}
	return out
}

// vertexState is the per-dispatch part of the vertex kernel: the model
// ranges and their combined clip matrices.
type vertexState struct {
	models   []modelRange
	pvw      mat4
	combined []mat4
}

func newVertexState(a *compute.HostArgs) *vertexState {
	view := loadMat4(a.Words(RoleView), 0)
	proj := loadMat4(a.Words(RoleProjection), 0)
	world := loadMat4(a.Words(RoleWorld), 0)
	st := &vertexState{models: loadModels(a.Words(RoleParams), a.Words(RoleModels))}

	pv := proj.mul(&view)
	st.pvw = pv.mul(&world)
	st.combined = make([]mat4, len(st.models))
	for i := range st.models {
		st.combined[i] = st.pvw.mul(&st.models[i].transform)
	}
	return st
}

func vertexSetup(a *compute.HostArgs) { a.State = newVertexState(a) }

func vertexKernel(a *compute.HostArgs, begin, end uint64) {
	params := a.Words(RoleParams)
	tris := a.Words(RoleTriangles)
	projected := a.Words(RoleProjected)
	numVertices := uint64(params[paramsVerticesWord])
	st, ok := a.State.(*vertexState)
	if !ok {
		st = newVertexState(a)
	}
	models, pvw, combined := st.models, &st.pvw, st.combined

	for i := begin; i < end && i < numVertices; i++ {
		t := uint32(i / 3) //nolint:gosec // bounded by numVertices
		// Triangles outside every model range use an identity model transform.
		m := pvw
		if mi := findModel(models, t); mi >= 0 {
			m = &combined[mi]
		}
		base := int(t)*triWords + triPosWord + int(i%3)*4
		clip := m.apply(f32(tris, base), f32(tris, base+1), f32(tris, base+2), 1)
		out := int(i) * 4
		for k := 0; k < 4; k++ {
			projected[out+k] = math.Float32bits(clip[k])
		}
	}
}

func findModel(models []modelRange, t uint32) int {
	for i := range models {
		if t >= models[i].triOffset && t < models[i].triOffset+models[i].triCount {
			return i
		}
	}
	return -1
}

// screenTri is a triangle after perspective divide and viewport mapping.
type screenTri struct {
	index                  uint32
	sx, sy, sz, iw         [3]float32
	area                   float32
	minX, maxX, minY, maxY float32
}

type modelTris struct {
	pixelOffset, texWidth, texHeight uint32
	tris                             []screenTri
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// setupTriangles performs the per-triangle work of the fragment kernel that
// does not depend on the pixel: the w <= 0 reject, the screen mapping and the
// zero-area reject.
func setupTriangles(params, models, projected []uint32) []modelTris {
	width := float32(params[paramsWidthWord])
	height := float32(params[paramsHeightWord])
	n := int(params[paramsModelsWord])
	out := make([]modelTris, n)

	for mi := range out {
		base := mi * modelWords
		mt := modelTris{
			pixelOffset: models[base+modelPixOffsetWord],
			texWidth:    models[base+modelTexWidthWord],
			texHeight:   models[base+modelTexHeightWord],
		}
		first := models[base+modelTriOffsetWord]
		last := first + models[base+modelTriCountWord]
		for t := first; t < last; t++ {
			var st screenTri
			st.index = t
			ok := true
			for c := 0; c < 3; c++ {
				at := int(3*t+uint32(c)) * 4 //nolint:gosec // corner index
				x, y, z, w := f32(projected, at), f32(projected, at+1), f32(projected, at+2), f32(projected, at+3)
				if w <= 0 {
					ok = false
					break
				}
				st.sx[c] = (x/w*0.5 + 0.5) * width
				st.sy[c] = (1 - (y/w*0.5 + 0.5)) * height
				st.sz[c] = z / w
				st.iw[c] = 1 / w
			}
			if !ok {
				continue
			}
			st.area = edge(st.sx[0], st.sy[0], st.sx[1], st.sy[1], st.sx[2], st.sy[2])
			if st.area == 0 || math32.IsNaN(st.area) {
				continue
			}
			st.minX = min(st.sx[0], st.sx[1], st.sx[2])
			st.maxX = max(st.sx[0], st.sx[1], st.sx[2])
			st.minY = min(st.sy[0], st.sy[1], st.sy[2])
			st.maxY = max(st.sy[0], st.sy[1], st.sy[2])
			mt.tris = append(mt.tris, st)
		}
		out[mi] = mt
	}
	return out
}

func fragmentSetup(a *compute.HostArgs) {
	a.State = setupTriangles(a.Words(RoleParams), a.Words(RoleModels), a.Words(RoleProjected))
}

func fragmentKernel(a *compute.HostArgs, begin, end uint64) {
	params := a.Words(RoleParams)
	color := a.Words(RoleColor)
	depth := a.Words(RoleDepth)
	tris := a.Words(RoleTriangles)
	texels := a.Words(RoleTexels)
	width, height := params[paramsWidthWord], params[paramsHeightWord]

	setup, ok := a.State.([]modelTris)
	if !ok {
		setup = setupTriangles(params, a.Words(RoleModels), a.Words(RoleProjected))
	}

	for i := begin; i < end; i++ {
		x, y := uint32(i%uint64(a.Grid.X)), uint32(i/uint64(a.Grid.X)) //nolint:gosec // grid fits uint32
		if x >= width || y >= height {
			continue
		}
		idx := y*width + x
		px, py := float32(x)+0.5, float32(y)+0.5
		best := math.Float32frombits(depth[idx])
		shade := color[idx]

		for mi := range setup {
			m := &setup[mi]
			for ti := range m.tris {
				st := &m.tris[ti]
				if px < st.minX || px > st.maxX || py < st.minY || py > st.maxY {
					continue
				}
				w0 := edge(st.sx[1], st.sy[1], st.sx[2], st.sy[2], px, py) / st.area
				w1 := edge(st.sx[2], st.sy[2], st.sx[0], st.sy[0], px, py) / st.area
				w2 := edge(st.sx[0], st.sy[0], st.sx[1], st.sy[1], px, py) / st.area
				if w0 < 0 || w1 < 0 || w2 < 0 {
					continue
				}
				z := w0*st.sz[0] + w1*st.sz[1] + w2*st.sz[2]
				if !(z < best) {
					continue
				}
				best = z
				base := int(st.index) * triWords
				if m.texWidth > 0 && m.texHeight > 0 {
					q0, q1, q2 := w0*st.iw[0], w1*st.iw[1], w2*st.iw[2]
					sum := q0 + q1 + q2
					uvBase := base + triUVWord
					u := (f32(tris, uvBase)*q0 + f32(tris, uvBase+2)*q1 + f32(tris, uvBase+4)*q2) / sum
					v := (f32(tris, uvBase+1)*q0 + f32(tris, uvBase+3)*q1 + f32(tris, uvBase+5)*q2) / sum
					shade = sampleTexel(texels, m, u, v)
				} else {
					shade = tris[base+triColorWord]
				}
			}
		}

		depth[idx] = math.Float32bits(best)
		color[idx] = shade
	}
}

func fract(v float32) float32 { return v - math32.Floor(v) }

func sampleTexel(texels []uint32, m *modelTris, u, v float32) uint32 {
	tx := min(uint32(fract(u)*float32(m.texWidth)), m.texWidth-1)
	ty := min(uint32(fract(v)*float32(m.texHeight)), m.texHeight-1)
	at := m.pixelOffset + ty*m.texWidth + tx
	if int(at) >= len(texels) {
		return 0
	}
	return texels[at]
}
