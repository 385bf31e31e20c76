// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kernels

import (
	"encoding/binary"
	"math"
)

// Record sizes in bytes, matching std430 layout of the WGSL structs.
const (
	TriangleSize  = 144
	ModelSize     = 96
	ParamsSize    = 32
	Mat4Size      = 64
	Vec4Size      = 16
	ProjectedSize = 16
	PixelSize     = 4
)

// Word offsets inside a triangle record.
const (
	triWords      = TriangleSize / 4
	triPosWord    = 0
	triUVWord     = 12
	triNormalWord = 20
	triColorWord  = 32
)

// Word offsets inside a model record.
const (
	modelWords         = ModelSize / 4
	modelTransformWord = 0
	modelTriOffsetWord = 16
	modelTriCountWord  = 17
	modelVtxOffsetWord = 18
	modelVtxCountWord  = 19
	modelPixOffsetWord = 20
	modelTexWidthWord  = 21
	modelTexHeightWord = 22
)

// Word offsets inside the parameter block.
const (
	paramsWidthWord     = 0
	paramsHeightWord    = 1
	paramsModelsWord    = 2
	paramsTrianglesWord = 3
	paramsClearWord     = 4
	paramsDepthWord     = 5
	paramsVerticesWord  = 6
)

// TriangleRecord is the device layout of one triangle.
type TriangleRecord struct {
	Pos    [3][3]float32
	UV     [3][2]float32
	Normal [3][3]float32
	Color  uint32
}

// ModelRecord is the device layout of one model descriptor.
type ModelRecord struct {
	Transform      [16]float32 // column-major
	TriangleOffset uint32
	TriangleCount  uint32
	VertexOffset   uint32
	VertexCount    uint32
	PixelOffset    uint32
	TexWidth       uint32
	TexHeight      uint32
}

// Params is the per-frame parameter block.
type Params struct {
	Width        uint32
	Height       uint32
	NumModels    uint32
	NumTriangles uint32
	ClearColor   uint32
	DepthClear   float32
	NumVertices  uint32
}

// AppendTriangle appends the device encoding of t to dst.
func AppendTriangle(dst []byte, t *TriangleRecord) []byte {
	le := binary.LittleEndian
	for _, p := range t.Pos {
		dst = appendVec4(dst, p[0], p[1], p[2], 1)
	}
	for _, uv := range t.UV {
		dst = le.AppendUint32(dst, math.Float32bits(uv[0]))
		dst = le.AppendUint32(dst, math.Float32bits(uv[1]))
	}
	dst = appendZeros(dst, 2)
	for _, n := range t.Normal {
		dst = appendVec4(dst, n[0], n[1], n[2], 0)
	}
	dst = le.AppendUint32(dst, t.Color)
	return appendZeros(dst, 3)
}

// AppendModel appends the device encoding of m to dst.
func AppendModel(dst []byte, m *ModelRecord) []byte {
	le := binary.LittleEndian
	dst = AppendMat4(dst, &m.Transform)
	for _, v := range [...]uint32{
		m.TriangleOffset, m.TriangleCount, m.VertexOffset, m.VertexCount,
		m.PixelOffset, m.TexWidth, m.TexHeight, 0,
	} {
		dst = le.AppendUint32(dst, v)
	}
	return dst
}

// Bytes returns the device encoding of the parameter block.
func (p *Params) Bytes() []byte {
	buf := make([]byte, ParamsSize)
	le := binary.LittleEndian
	le.PutUint32(buf[0:], p.Width)
	le.PutUint32(buf[4:], p.Height)
	le.PutUint32(buf[8:], p.NumModels)
	le.PutUint32(buf[12:], p.NumTriangles)
	le.PutUint32(buf[16:], p.ClearColor)
	le.PutUint32(buf[20:], math.Float32bits(p.DepthClear))
	le.PutUint32(buf[24:], p.NumVertices)
	return buf
}

// AppendMat4 appends a column-major matrix to dst.
func AppendMat4(dst []byte, m *[16]float32) []byte {
	for _, v := range m {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// Vec4Bytes encodes a vec3 padded to 16 bytes.
func Vec4Bytes(x, y, z float32) []byte {
	return appendVec4(make([]byte, 0, Vec4Size), x, y, z, 0)
}

// AppendPixels appends packed RGBA8 texels.
func AppendPixels(dst []byte, px []uint32) []byte {
	for _, v := range px {
		dst = binary.LittleEndian.AppendUint32(dst, v)
	}
	return dst
}

// DecodeFloats decodes a little-endian f32 array.
func DecodeFloats(src []byte) []float32 {
	out := make([]float32, len(src)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return out
}

// DecodeWords decodes a little-endian u32 array into dst, which must hold
// len(src)/4 words.
func DecodeWords(dst []uint32, src []byte) {
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint32(src[i*4:])
	}
}

func appendVec4(dst []byte, x, y, z, w float32) []byte {
	le := binary.LittleEndian
	dst = le.AppendUint32(dst, math.Float32bits(x))
	dst = le.AppendUint32(dst, math.Float32bits(y))
	dst = le.AppendUint32(dst, math.Float32bits(z))
	return le.AppendUint32(dst, math.Float32bits(w))
}

func appendZeros(dst []byte, words int) []byte {
	for range words {
		dst = binary.LittleEndian.AppendUint32(dst, 0)
	}
	return dst
}
