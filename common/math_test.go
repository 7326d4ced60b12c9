package common

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestPerspectiveDepthRange(t *testing.T) {
	proj := Perspective(mgl32.DegToRad(90), 1, 1, 100)

	near := TransformPoint(proj, mgl32.Vec3{0, 0, -1})
	far := TransformPoint(proj, mgl32.Vec3{0, 0, -100})

	assert.InDelta(t, 0, near.Z(), 1e-5)
	assert.InDelta(t, 1, far.Z(), 1e-5)
}

func TestOrthoDepthRange(t *testing.T) {
	proj := Ortho(-1, 1, -1, 1, 0, 10)

	assert.InDelta(t, 0, TransformPoint(proj, mgl32.Vec3{0, 0, 0}).Z(), 1e-6)
	assert.InDelta(t, 0.5, TransformPoint(proj, mgl32.Vec3{0, 0, -5}).Z(), 1e-6)
	assert.InDelta(t, 1, TransformPoint(proj, mgl32.Vec3{0, 0, -10}).Z(), 1e-6)
}

func TestLookAtParallelUp(t *testing.T) {
	view := LookAt(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0, 1, 0})
	p := TransformPoint(view, mgl32.Vec3{0, -5, 0})

	assert.False(t, p.Len() != p.Len(), "view matrix produced NaN")
	assert.InDelta(t, -5, p.Z(), 1e-5)
}

func TestSafeNormalize(t *testing.T) {
	fallback := mgl32.Vec3{0, 1, 0}
	assert.Equal(t, fallback, SafeNormalize(mgl32.Vec3{}, fallback))
	assert.InDelta(t, 1, SafeNormalize(mgl32.Vec3{3, 4, 0}, fallback).Len(), 1e-6)
}

func TestBoundingSphere(t *testing.T) {
	center, radius := BoundingSphere([]mgl32.Vec3{{-1, 0, 0}, {1, 0, 0}})

	assert.Equal(t, mgl32.Vec3{0, 0, 0}, center)
	assert.InDelta(t, 1, radius, 1e-6)
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, 3, Coalesce(0, 3, 4))
	assert.Equal(t, "", Coalesce[string]())
}
