package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-technique/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestViewBasis(t *testing.T) {
	c := NewCamera(
		WithPosition(mgl32.Vec3{0, 0, 10}),
		WithTarget(mgl32.Vec3{0, 0, 0}),
		WithAspect(1),
	)
	v := c.View()

	assert.InDelta(t, -1, v.Forward.Z(), 1e-6)
	assert.InDelta(t, 1, v.Right.X(), 1e-6)
	assert.InDelta(t, 1, v.Up.Y(), 1e-6)
	assert.InDelta(t, 10, v.Depth(mgl32.Vec3{0, 0, 0}), 1e-5)
}

func TestViewCornersProjectToClipEdges(t *testing.T) {
	c := NewCamera(
		WithPosition(mgl32.Vec3{0, 2, 0}),
		WithTarget(mgl32.Vec3{5, 2, 0}),
		WithAspect(2),
		WithClip(0.5, 100),
	)
	v := c.View()

	for i, corner := range v.Corners(5, 20) {
		ndc := common.TransformPoint(v.ViewProjection, corner)
		assert.InDelta(t, 1, mgl32.Abs(ndc.X()), 1e-3, "corner %d", i)
		assert.InDelta(t, 1, mgl32.Abs(ndc.Y()), 1e-3, "corner %d", i)
	}
}

func TestOrthographicCorners(t *testing.T) {
	c := NewCamera(WithOrthographic(4), WithAspect(1), WithTarget(mgl32.Vec3{0, 0, -1}), WithPosition(mgl32.Vec3{}))
	corners := c.View().Corners(1, 2)

	assert.InDelta(t, -2, corners[0].X(), 1e-5)
	assert.InDelta(t, 2, corners[6].Y(), 1e-5)
	assert.InDelta(t, -2, corners[6].Z(), 1e-5)
}

func TestNewPerspectiveViewForward(t *testing.T) {
	v := NewPerspectiveView(mgl32.Vec3{1, 1, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, -1, 0}, mgl32.DegToRad(90), 1, 0.1, 50)

	assert.InDelta(t, 1, v.Forward.X(), 1e-6)
	assert.InDelta(t, 4, v.Depth(mgl32.Vec3{5, 1, 1}), 1e-5)
}

func TestViewWithAspectMatchesCamera(t *testing.T) {
	c := NewCamera(WithPosition(mgl32.Vec3{1, 2, 8}), WithTarget(mgl32.Vec3{0, 0, 0}), WithAspect(1))
	v := c.View().WithAspect(2)
	c.SetAspect(2)
	want := c.View()

	assert.Equal(t, float32(2), v.Aspect)
	assert.True(t, v.Projection.ApproxEqualThreshold(want.Projection, 1e-6))
	assert.True(t, v.ViewProjection.ApproxEqualThreshold(want.ViewProjection, 1e-5))
	assert.Equal(t, want.ViewMatrix, v.ViewMatrix)

	ortho := NewCamera(WithOrthographic(4), WithAspect(1))
	wide := ortho.View().WithAspect(3)
	ortho.SetAspect(3)
	assert.True(t, wide.Projection.ApproxEqualThreshold(ortho.View().Projection, 1e-6))
}

func TestSetClipPanicsOnInvalidRange(t *testing.T) {
	c := NewCamera()
	assert.Panics(t, func() { c.SetClip(10, 1) })
}

func TestOrbitController(t *testing.T) {
	ctrl := NewOrbitController(WithOrbitRadius(10, 2, 50), WithOrbitAngles(0, 0), WithOrbitSpeed(1))
	c := NewCamera(WithController(ctrl))

	assert.InDelta(t, 10, c.Position().Z(), 1e-5)

	c.Update(mgl32.DegToRad(90))
	assert.InDelta(t, 10, c.Position().X(), 1e-4)

	ctrl.SetPaused(true)
	c.Update(1)
	assert.InDelta(t, 10, c.Position().X(), 1e-4)

	ctrl.Zoom(100)
	ctrl.Apply(c)
	assert.InDelta(t, 2, c.Position().Len(), 1e-4)
}
