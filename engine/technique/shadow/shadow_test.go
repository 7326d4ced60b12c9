package shadow

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-technique/engine/camera"
	"github.com/Carmen-Shannon/oxy-technique/engine/light"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu/software"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
)

func newRenderer(t *testing.T) (renderer.Renderer, *software.Device) {
	t.Helper()
	dev := software.NewDevice()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithDevice(dev))
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r, dev
}

func smallOptions() Options {
	opts := DefaultOptions()
	opts.DirectionalSize = 64
	opts.SpotSize = 64
	opts.PointSize = 64
	return opts
}

func newScene(lights []light.Light, opts ...scene.SceneBuilderOption) scene.Scene {
	cam := camera.NewCamera(
		camera.WithPosition(mgl32.Vec3{0, 2, 10}),
		camera.WithTarget(mgl32.Vec3{0, 0, 0}),
		camera.WithAspect(1),
		camera.WithClip(0.1, 50),
	)
	return scene.NewScene("shadow", cam, append(opts, scene.WithLights(lights...))...)
}

// frame runs one manager update and render over a fresh snapshot.
func frame(t *testing.T, m *Manager, s scene.Scene) int {
	t.Helper()
	qs := scene.NewQueueSet(s.Snapshot())
	require.NoError(t, m.Update(qs))
	qs.Cull()
	draws, err := m.Render()
	require.NoError(t, err)
	return draws
}

func TestSpotMapWithoutGeometryIsClear(t *testing.T) {
	r, dev := newRenderer(t)
	spot := light.NewLight(light.LightTypeSpot,
		light.WithPosition(mgl32.Vec3{0, 5, 0}),
		light.WithDirection(mgl32.Vec3{0, -1, 0}),
		light.WithCastsShadows(true),
	)
	opts := DefaultOptions()
	opts.SpotSize = 128
	m := NewManager(r, opts)
	m.AddShadowProducer(spot)
	require.NoError(t, m.Initialise())
	defer m.Cleanup()

	draws := frame(t, m, newScene([]light.Light{spot}))
	assert.Zero(t, draws)

	mp, ok := m.Map(spot.ID())
	require.True(t, ok)
	require.Equal(t, gpu.Size{Width: 128, Height: 128}, mp.Texture().Size())
	assert.Equal(t, gpu.ResourceStateShaderRead, mp.Texture().State())

	texels := dev.ReadLayer(mp.Texture(), 0)
	require.Len(t, texels, 128*128)
	for i, v := range texels {
		if v.X() != 1 {
			t.Fatalf("texel %d = %v, want clear depth 1", i, v.X())
		}
	}
}

func TestPointMapStoresDistance(t *testing.T) {
	r, dev := newRenderer(t)
	point := light.NewLight(light.LightTypePoint,
		light.WithPosition(mgl32.Vec3{0, 0, 0}),
		light.WithRange(20),
		light.WithCastsShadows(true),
	)
	wall := scene.WithItem(scene.Quad(20), scene.NewOpaqueMaterial("wall", mgl32.Vec3{1, 1, 1}), mgl32.Translate3D(0, 0, -5))
	m := NewManager(r, smallOptions())
	m.AddShadowProducer(point)
	require.NoError(t, m.Initialise())
	defer m.Cleanup()

	draws := frame(t, m, newScene([]light.Light{point}, wall))
	assert.Positive(t, draws)

	mp, ok := m.Map(point.ID())
	require.True(t, ok)
	require.Equal(t, 6, mp.Texture().Layers())

	// Layer 5 is the -Z face. The texel centres one half texel off the axis see the
	// wall at slightly more than 5, the corner texels much further: distance, not depth.
	assert.InDelta(t, 5.0012, dev.ReadTexel(mp.Texture(), 32, 32, 5).X(), 0.005)
	assert.InDelta(t, 8.5703, dev.ReadTexel(mp.Texture(), 0, 0, 5).X(), 0.01)
	assert.InDelta(t, 8.5703, dev.ReadTexel(mp.Texture(), 63, 63, 5).X(), 0.01)

	// The +Z face looks away from the wall.
	assert.Equal(t, float32(ClearDistance), dev.ReadTexel(mp.Texture(), 32, 32, 4).X())
}

func TestCascadeBoundary(t *testing.T) {
	cam := camera.NewPerspectiveView(mgl32.Vec3{0, 2, 10}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}, mgl32.DegToRad(60), 1, 0.1, 100)
	splits, views := FitCascades(cam, mgl32.Vec3{-1, -1, -1}, 3, 256, DefaultOptions())
	require.Len(t, splits, 3)
	require.Len(t, views, 3)
	assert.Equal(t, float32(100), splits[2])

	prev := cam.Near
	for i, split := range splits {
		assert.Greater(t, split, prev)
		assert.Equal(t, i, shader.SelectCascade(splits, prev), "slice start belongs to cascade %d", i)
		assert.Equal(t, i, shader.SelectCascade(splits, split-1e-3))
		want := i + 1
		if want == len(splits) {
			want = -1
		}
		assert.Equal(t, want, shader.SelectCascade(splits, split), "split %d is exclusive", i)

		frustum := views[i].Frustum()
		corners := cam.Corners(prev, split)
		var center mgl32.Vec3
		for _, c := range corners {
			center = center.Add(c.Mul(1.0 / 8))
		}
		for _, c := range corners {
			inset := center.Add(c.Sub(center).Mul(0.999))
			assert.True(t, frustum.ContainsPoint(inset), "cascade %d misses corner %v", i, c)
		}
		prev = split
	}
}

func TestDirectionalUniforms(t *testing.T) {
	r, _ := newRenderer(t)
	sun := light.NewLight(light.LightTypeDirectional,
		light.WithDirection(mgl32.Vec3{0.3, -1, 0.2}),
		light.WithCascadeCount(2),
		light.WithCastsShadows(true),
	)
	m := NewManager(r, smallOptions())
	m.AddShadowProducer(sun)
	require.NoError(t, m.Initialise())
	defer m.Cleanup()

	s := newScene([]light.Light{sun})
	frame(t, m, s)

	mp, ok := m.Map(sun.ID())
	require.True(t, ok)
	assert.Equal(t, 2, mp.Texture().Layers())

	lights := m.Lights(s.Snapshot().Lights)
	require.Len(t, lights, 1)
	u := lights[0]
	assert.Equal(t, shader.LightTypeDirectional, u.Type)
	assert.Equal(t, float32(0), u.ShadowSlot)
	assert.Equal(t, 2, u.CascadeCount)
	assert.Equal(t, mp.Views()[0].ViewProjection, u.ViewProj[0])
	assert.Equal(t, mp.Views()[1].ViewProjection, u.ViewProj[1])
	assert.Equal(t, float32(50), u.Splits[1])
	assert.InDelta(t, 1, u.Direction.Len(), 1e-5)
}

func TestFirstCasterPerTypeIsBound(t *testing.T) {
	r, _ := newRenderer(t)
	first := light.NewLight(light.LightTypeSpot, light.WithPosition(mgl32.Vec3{0, 5, 0}), light.WithCastsShadows(true))
	second := light.NewLight(light.LightTypeSpot, light.WithPosition(mgl32.Vec3{3, 5, 0}), light.WithCastsShadows(true))
	off := light.NewLight(light.LightTypePoint, light.WithEnabled(false))
	m := NewManager(r, smallOptions())
	m.AddShadowProducer(first)
	m.AddShadowProducer(second)
	m.AddShadowProducer(first)
	require.Len(t, m.Producers(), 2)
	require.NoError(t, m.Initialise())
	defer m.Cleanup()

	s := newScene([]light.Light{first, second, off})
	frame(t, m, s)

	lights := m.Lights(s.Snapshot().Lights)
	require.Len(t, lights, 2, "disabled lights are skipped")
	assert.Equal(t, float32(0), lights[0].ShadowSlot)
	assert.Equal(t, shader.NoShadow, lights[1].ShadowSlot)

	mp, _ := m.Map(first.ID())
	views := m.Textures()
	require.Len(t, views, 3)
	assert.Same(t, mp.Texture(), views[SlotSpot].Texture)
	assert.Equal(t, "shadow/placeholder/directional", views[SlotDirectional].Texture.Label())
	assert.Equal(t, "shadow/placeholder/point", views[SlotPoint].Texture.Label())
	for _, v := range views {
		assert.Equal(t, gpu.ResourceStateShaderRead, v.Texture.State())
	}
}

func TestShadowFlagCreatesAndDestroysMap(t *testing.T) {
	r, _ := newRenderer(t)
	point := light.NewLight(light.LightTypePoint, light.WithRange(15))
	m := NewManager(r, smallOptions())
	m.AddShadowProducer(point)
	require.NoError(t, m.Initialise())
	defer m.Cleanup()

	s := newScene([]light.Light{point})
	frame(t, m, s)
	_, ok := m.Map(point.ID())
	assert.False(t, ok)
	assert.Equal(t, "shadow/placeholder/point", m.Textures()[SlotPoint].Texture.Label())

	point.SetCastsShadows(true)
	frame(t, m, s)
	mp, ok := m.Map(point.ID())
	require.True(t, ok)
	assert.Equal(t, 64, mp.Size())
	tex := mp.Texture()

	point.SetCastsShadows(false)
	frame(t, m, s)
	_, ok = m.Map(point.ID())
	assert.False(t, ok)
	assert.True(t, tex.Released())
	assert.Empty(t, m.Maps())
}

func TestRemoveShadowProducerReleasesMap(t *testing.T) {
	r, _ := newRenderer(t)
	spot := light.NewLight(light.LightTypeSpot, light.WithPosition(mgl32.Vec3{0, 5, 0}), light.WithCastsShadows(true))
	other := light.NewLight(light.LightTypeSpot, light.WithPosition(mgl32.Vec3{3, 5, 0}), light.WithCastsShadows(true))
	m := NewManager(r, smallOptions())
	m.AddShadowProducer(spot)
	m.AddShadowProducer(other)
	require.NoError(t, m.Initialise())
	defer m.Cleanup()

	s := newScene([]light.Light{spot, other})
	frame(t, m, s)
	mp, ok := m.Map(spot.ID())
	require.True(t, ok)
	tex := mp.Texture()
	assert.Same(t, tex, m.Textures()[SlotSpot].Texture)

	m.RemoveShadowProducer(spot)
	m.RemoveShadowProducer(spot)
	_, ok = m.Map(spot.ID())
	assert.False(t, ok)
	assert.True(t, tex.Released())
	assert.Equal(t, "shadow/placeholder/spot", m.Textures()[SlotSpot].Texture.Label())
	require.Len(t, m.Producers(), 1)
	assert.Equal(t, other.ID(), m.Producers()[0].ID())

	frame(t, m, s)
	_, ok = m.Map(spot.ID())
	assert.False(t, ok, "a removed producer gets no new map")
	mp, ok = m.Map(other.ID())
	require.True(t, ok)
	assert.Same(t, mp.Texture(), m.Textures()[SlotSpot].Texture)
}

func TestMovedLightReDerivesViews(t *testing.T) {
	r, _ := newRenderer(t)
	spot := light.NewLight(light.LightTypeSpot, light.WithPosition(mgl32.Vec3{0, 5, 0}), light.WithCastsShadows(true))
	m := NewManager(r, smallOptions())
	m.AddShadowProducer(spot)
	require.NoError(t, m.Initialise())
	defer m.Cleanup()

	s := newScene([]light.Light{spot})
	frame(t, m, s)
	mp, _ := m.Map(spot.ID())
	assert.False(t, spot.Moved())
	assert.Equal(t, mgl32.Vec3{0, 5, 0}, mp.Views()[0].Position)

	spot.SetPosition(mgl32.Vec3{2, 6, 0})
	assert.True(t, spot.Moved())
	frame(t, m, s)
	assert.False(t, spot.Moved())
	assert.Equal(t, mgl32.Vec3{2, 6, 0}, mp.Views()[0].Position)
}

func TestSharedLightReDerivesViewsInEveryManager(t *testing.T) {
	spot := light.NewLight(light.LightTypeSpot, light.WithPosition(mgl32.Vec3{0, 5, 0}), light.WithCastsShadows(true))
	s := newScene([]light.Light{spot})

	managers := make([]*Manager, 2)
	for i := range managers {
		r, _ := newRenderer(t)
		managers[i] = NewManager(r, smallOptions())
		managers[i].AddShadowProducer(spot)
		require.NoError(t, managers[i].Initialise())
		defer managers[i].Cleanup()
		frame(t, managers[i], s)
	}

	spot.SetPosition(mgl32.Vec3{3, 5, 0})
	for i, m := range managers {
		frame(t, m, s)
		mp, ok := m.Map(spot.ID())
		require.True(t, ok)
		assert.Equal(t, mgl32.Vec3{3, 5, 0}, mp.Views()[0].Position, "manager %d", i)
	}
	assert.False(t, spot.Moved())
}

func TestCubeViewsMatchFaces(t *testing.T) {
	s := light.NewLight(light.LightTypePoint, light.WithPosition(mgl32.Vec3{1, 2, 3}), light.WithRange(12)).State()
	views := CubeViews(s)
	require.Len(t, views, 6)
	for i, v := range views {
		want := shader.CubeFaces[i].ViewProj(s.Position, light.PointShadowNear, 12)
		assert.True(t, v.ViewProjection.ApproxEqualThreshold(want, 1e-5), "face %d", i)
	}
}

func TestManagerLifecycle(t *testing.T) {
	r, dev := newRenderer(t)
	m := NewManager(r, smallOptions())

	err := m.Update(scene.NewQueueSet(newScene(nil).Snapshot()))
	assert.ErrorIs(t, err, gpu.ErrInvalidState)

	require.NoError(t, m.Initialise())
	require.NoError(t, m.Initialise())
	assert.True(t, m.Initialised())
	assert.NotNil(t, r.Pipeline(PipelineDepth))
	assert.NotNil(t, r.Pipeline(PipelineDistance))

	m.Cleanup()
	m.Cleanup()
	assert.False(t, m.Initialised())
	assert.Nil(t, r.Pipeline(PipelineDepth))
	assert.Zero(t, dev.Allocated())

	require.NoError(t, m.Initialise())
	m.Cleanup()
}

func TestInitialiseReleasesOnAllocationFailure(t *testing.T) {
	dev := software.NewDevice(software.WithMemoryBudget(1024))
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithDevice(dev))
	require.NoError(t, err)
	defer r.Release()

	spot := light.NewLight(light.LightTypeSpot, light.WithCastsShadows(true))
	m := NewManager(r, smallOptions())
	m.AddShadowProducer(spot)
	err = m.Initialise()
	require.ErrorIs(t, err, gpu.ErrOutOfMemory)
	assert.False(t, m.Initialised())
	assert.Zero(t, dev.Allocated())
}
