package common

import (
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ClipCorrection remaps OpenGL-style clip depth [-1, 1] produced by mgl32 into the
// WebGPU clip depth range [0, 1]. Every projection in the engine is pre-multiplied by it.
var ClipCorrection = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Perspective creates a perspective projection matrix with WebGPU [0, 1] clip depth.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - mgl32.Mat4: the column-major projection matrix
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	return ClipCorrection.Mul4(mgl32.Perspective(fovY, aspect, near, far))
}

// Ortho creates an orthographic projection matrix with WebGPU [0, 1] clip depth.
//
// Parameters:
//   - left, right, bottom, top: the view volume extents in view space
//   - near, far: the near and far plane distances along -Z
//
// Returns:
//   - mgl32.Mat4: the column-major projection matrix
func Ortho(left, right, bottom, top, near, far float32) mgl32.Mat4 {
	return ClipCorrection.Mul4(mgl32.Ortho(left, right, bottom, top, near, far))
}

// LookAt builds a right-handed view matrix looking from eye towards target.
// If up is parallel to the view direction a perpendicular fallback is substituted.
//
// Parameters:
//   - eye: the viewer position in world space
//   - target: the point being looked at
//   - up: the preferred up vector
//
// Returns:
//   - mgl32.Mat4: the column-major view matrix
func LookAt(eye, target, up mgl32.Vec3) mgl32.Mat4 {
	dir := target.Sub(eye)
	if dir.Len() < 1e-6 {
		dir = mgl32.Vec3{0, 0, -1}
		target = eye.Add(dir)
	}
	if math32.Abs(dir.Normalize().Dot(SafeNormalize(up, mgl32.Vec3{0, 1, 0}))) > 0.999 {
		up = PerpendicularUp(dir)
	}
	return mgl32.LookAtV(eye, target, up)
}

// PerpendicularUp returns a unit vector that is not parallel to dir, preferring +Y.
func PerpendicularUp(dir mgl32.Vec3) mgl32.Vec3 {
	d := SafeNormalize(dir, mgl32.Vec3{0, 0, -1})
	if math32.Abs(d.Y()) > 0.99 {
		return mgl32.Vec3{0, 0, 1}
	}
	return mgl32.Vec3{0, 1, 0}
}

// SafeNormalize normalizes v, returning fallback when v has (near) zero length.
func SafeNormalize(v, fallback mgl32.Vec3) mgl32.Vec3 {
	l := v.Len()
	if l < 1e-8 || math32.IsNaN(l) {
		return fallback
	}
	return v.Mul(1 / l)
}

// TransformPoint multiplies p (w = 1) by m and performs the perspective divide.
func TransformPoint(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	v := m.Mul4x1(p.Vec4(1))
	if v[3] != 0 && v[3] != 1 {
		return v.Vec3().Mul(1 / v[3])
	}
	return v.Vec3()
}

// BoundingSphere returns a sphere enclosing all points, centred on their average.
//
// Parameters:
//   - points: the points to enclose (must not be empty)
//
// Returns:
//   - mgl32.Vec3: the sphere centre
//   - float32: the sphere radius
func BoundingSphere(points []mgl32.Vec3) (mgl32.Vec3, float32) {
	var center mgl32.Vec3
	for _, p := range points {
		center = center.Add(p)
	}
	center = center.Mul(1 / float32(len(points)))

	var radius float32
	for _, p := range points {
		radius = math32.Max(radius, p.Sub(center).Len())
	}
	return center, radius
}

// Clamp limits v to the closed range [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	return math32.Min(math32.Max(v, lo), hi)
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}
