package scene

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-technique/engine/camera"
	"github.com/Carmen-Shannon/oxy-technique/engine/light"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScene(t *testing.T) Scene {
	t.Helper()
	cam := camera.NewCamera(
		camera.WithPosition(mgl32.Vec3{0, 0, 10}),
		camera.WithTarget(mgl32.Vec3{0, 0, 0}),
		camera.WithAspect(1),
	)
	return NewScene("test", cam)
}

func TestSnapshotIsFrozen(t *testing.T) {
	s := newTestScene(t)
	id := s.Add(Cube(1), NewOpaqueMaterial("red", mgl32.Vec3{1, 0, 0}), mgl32.Ident4())
	l := light.NewLight(light.LightTypePoint, light.WithCastsShadows(true))
	s.AddLight(l)
	s.SetFog(Fog{Mode: FogLinear, Start: 1, End: 10})

	snap := s.Snapshot()
	s.Move(id, mgl32.Translate3D(5, 0, 0))
	l.SetPosition(mgl32.Vec3{3, 3, 3})
	s.SetFog(Fog{})

	require.Len(t, snap.Items, 1)
	assert.Equal(t, mgl32.Ident4(), snap.Items[0].Transform)
	assert.Equal(t, FogLinear, snap.Fog.Mode)
	st, ok := snap.Light(l.ID())
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{}, st.Position)

	next := s.Snapshot()
	assert.Equal(t, snap.Frame+1, next.Frame)
}

func TestSceneLights(t *testing.T) {
	s := newTestScene(t)
	l := light.NewLight(light.LightTypeSpot)
	s.AddLight(l)
	s.AddLight(l)
	assert.Len(t, s.Lights(), 1)

	l.ClearMoved(l.Version())
	s.MoveLight(l, mgl32.Vec3{1, 2, 3}, mgl32.Vec3{0, 0, -1})
	assert.True(t, l.Moved())
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, l.Position())

	s.RemoveLight(l)
	assert.Empty(t, s.Lights())
	_, ok := s.Snapshot().Light(l.ID())
	assert.False(t, ok)
}

func TestAddRequiresGeometryAndMaterial(t *testing.T) {
	s := newTestScene(t)
	assert.Panics(t, func() { s.Add(nil, NewOpaqueMaterial("m", mgl32.Vec3{}), mgl32.Ident4()) })
}

func TestGeometryBoundsAndDefaults(t *testing.T) {
	g := Cube(2)
	assert.Equal(t, mgl32.Vec3{-1, -1, -1}, g.Bounds.Min)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, g.Bounds.Max)
	assert.Len(t, g.Indices, 36)

	p := Points([]mgl32.Vec3{{0, 0, 0}, {1, 1, 1}})
	assert.Equal(t, []uint32{0, 1}, p.Indices)
	assert.NotEqual(t, g.ID, p.ID)

	assert.Panics(t, func() { NewGeometry("bad", []mgl32.Vec3{{}}, nil, []uint32{3}, 0) })
}

func TestParseFogMode(t *testing.T) {
	for _, m := range FogModes {
		got, ok := ParseFogMode(m.String())
		assert.True(t, ok)
		assert.Equal(t, m, got)
	}
	_, ok := ParseFogMode("volumetric")
	assert.False(t, ok)
}

func TestFrameContext(t *testing.T) {
	fc := NewFrameContext(&Snapshot{})
	assert.False(t, fc.Active())
	fc.Begin()
	assert.True(t, fc.Active())
	fc.End()
	assert.False(t, fc.Active())
	assert.Panics(t, func() { NewFrameContext(nil) })
}
