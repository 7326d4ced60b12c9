package common

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func testFrustum() Frustum {
	proj := Perspective(mgl32.DegToRad(90), 1, 0.5, 50)
	view := LookAt(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	return ExtractFrustum(proj.Mul4(view))
}

func TestFrustumContainsPoint(t *testing.T) {
	f := testFrustum()

	assert.True(t, f.ContainsPoint(mgl32.Vec3{0, 0, -10}))
	assert.False(t, f.ContainsPoint(mgl32.Vec3{0, 0, 10}), "behind the camera")
	assert.False(t, f.ContainsPoint(mgl32.Vec3{0, 0, -0.1}), "in front of the near plane")
	assert.False(t, f.ContainsPoint(mgl32.Vec3{0, 0, -60}), "beyond the far plane")
	assert.False(t, f.ContainsPoint(mgl32.Vec3{20, 0, -10}), "outside the right plane")
}

func TestFrustumIntersectsAABB(t *testing.T) {
	f := testFrustum()

	inside := AABB{Min: mgl32.Vec3{-1, -1, -11}, Max: mgl32.Vec3{1, 1, -9}}
	straddling := AABB{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}
	behind := AABB{Min: mgl32.Vec3{-1, -1, 5}, Max: mgl32.Vec3{1, 1, 7}}

	assert.True(t, f.IntersectsAABB(inside))
	assert.True(t, f.IntersectsAABB(straddling))
	assert.False(t, f.IntersectsAABB(behind))
}

func TestAABBTransform(t *testing.T) {
	box := AABBFromPoints([]mgl32.Vec3{{-1, -1, -1}, {1, 1, 1}})
	moved := box.Transform(mgl32.Translate3D(10, 0, 0))

	assert.Equal(t, mgl32.Vec3{9, -1, -1}, moved.Min)
	assert.Equal(t, mgl32.Vec3{11, 1, 1}, moved.Max)
	assert.True(t, EmptyAABB().Empty())
	assert.False(t, box.Empty())
}
