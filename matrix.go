package rast3d

import "github.com/chewxy/math32"

// Mat4 is a 4x4 matrix stored in column-major order: element (row, col)
// is m[col*4+row]. This is the layout the kernels read.
//
// Vectors are columns, so the transform applied first is the rightmost
// factor:
//
//	clip = projection.Mul(view).Mul(model).MulVec4(p)
type Mat4 [16]float32

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translation returns a translation by v.
func Translation(v Vec3) Mat4 {
	m := Identity()
	m[12], m[13], m[14] = v.X, v.Y, v.Z
	return m
}

// Scaling returns a non-uniform scale by v.
func Scaling(v Vec3) Mat4 {
	m := Identity()
	m[0], m[5], m[10] = v.X, v.Y, v.Z
	return m
}

// RotationX returns a rotation about the X axis (angle in degrees).
func RotationX(deg float32) Mat4 {
	s, c := math32.Sincos(Radians(deg))
	m := Identity()
	m[5], m[6] = c, s
	m[9], m[10] = -s, c
	return m
}

// RotationY returns a rotation about the Y axis (angle in degrees).
func RotationY(deg float32) Mat4 {
	s, c := math32.Sincos(Radians(deg))
	m := Identity()
	m[0], m[2] = c, -s
	m[8], m[10] = s, c
	return m
}

// RotationZ returns a rotation about the Z axis (angle in degrees).
func RotationZ(deg float32) Mat4 {
	s, c := math32.Sincos(Radians(deg))
	m := Identity()
	m[0], m[1] = c, s
	m[4], m[5] = -s, c
	return m
}

// Perspective returns an OpenGL-style perspective projection.
// fov is the vertical field of view in degrees. Points in front of the
// camera get w > 0 and NDC z in [-1, 1] between near and far.
func Perspective(fov, aspect, near, far float32) Mat4 {
	f := 1 / math32.Tan(Radians(fov)/2)
	var m Mat4
	m[0] = f / aspect
	m[5] = f
	m[10] = (far + near) / (near - far)
	m[11] = -1
	m[14] = 2 * far * near / (near - far)
	return m
}

// LookAt returns a right-handed view matrix for an eye looking at target.
func LookAt(eye, target, up Vec3) Mat4 {
	f := target.Sub(eye).Normalize()
	r := f.Cross(up).Normalize()
	u := r.Cross(f)
	return Mat4{
		r.X, u.X, -f.X, 0,
		r.Y, u.Y, -f.Y, 0,
		r.Z, u.Z, -f.Z, 0,
		-r.Dot(eye), -u.Dot(eye), f.Dot(eye), 1,
	}
}

// MatTransform builds a model transform: scale, then rotate about X, Y and
// Z (degrees), then translate.
func MatTransform(position, rotation, scale Vec3) Mat4 {
	return Translation(position).
		Mul(RotationZ(rotation.Z)).
		Mul(RotationY(rotation.Y)).
		Mul(RotationX(rotation.X)).
		Mul(Scaling(scale))
}

// Mul returns the product m × n.
func (m Mat4) Mul(n Mat4) Mat4 {
	var r Mat4
	for col := range 4 {
		for row := range 4 {
			var sum float32
			for k := range 4 {
				sum += m[k*4+row] * n[col*4+k]
			}
			r[col*4+row] = sum
		}
	}
	return r
}

// MulVec4 returns m × v.
func (m Mat4) MulVec4(v Vec4) Vec4 {
	return Vec4{
		X: m[0]*v.X + m[4]*v.Y + m[8]*v.Z + m[12]*v.W,
		Y: m[1]*v.X + m[5]*v.Y + m[9]*v.Z + m[13]*v.W,
		Z: m[2]*v.X + m[6]*v.Y + m[10]*v.Z + m[14]*v.W,
		W: m[3]*v.X + m[7]*v.Y + m[11]*v.Z + m[15]*v.W,
	}
}

// MulPoint transforms a point (w = 1) and returns the homogeneous result.
func (m Mat4) MulPoint(p Vec3) Vec4 {
	return m.MulVec4(Vec4{X: p.X, Y: p.Y, Z: p.Z, W: 1})
}

// At returns element (row, col).
func (m Mat4) At(row, col int) float32 {
	return m[col*4+row]
}

// IsIdentity reports whether m is exactly the identity matrix.
func (m Mat4) IsIdentity() bool {
	return m == Identity()
}

// Radians converts degrees to radians.
func Radians(deg float32) float32 {
	return deg * math32.Pi / 180
}
