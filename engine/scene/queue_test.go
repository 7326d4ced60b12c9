package scene

import (
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/oxy-technique/engine/camera"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populatedScene(t *testing.T) Scene {
	t.Helper()
	s := newTestScene(t)
	red := NewOpaqueMaterial("red", mgl32.Vec3{1, 0, 0})
	glass := NewTransparentMaterial("glass", mgl32.Vec3{0, 0, 1}, 0.5)

	s.Add(Cube(1), red, mgl32.Translate3D(0, 0, -5))
	s.Add(Cube(1), red, mgl32.Translate3D(0, 0, 2))
	s.Add(Cube(1), red, mgl32.Translate3D(0, 0, 50)) // behind the camera
	s.Add(Quad(1), glass, mgl32.Translate3D(0, 0, 0))
	s.Add(Points([]mgl32.Vec3{{0, 0, 0}}), &Material{Name: "spark", Transparent: true, Opacity: 1, Unlit: true}, mgl32.Ident4())
	return s
}

func TestQueueSetMainQueues(t *testing.T) {
	qs := NewQueueSet(populatedScene(t).Snapshot())
	qs.Cull()

	opaque, ok := qs.Queue(QueueOpaque)
	require.True(t, ok)
	require.True(t, opaque.Culled())
	require.Len(t, opaque.Items, 2)
	assert.InDelta(t, 2, opaque.Items[0].Transform.Col(3).Z(), 1e-6, "nearest first")

	transparent, ok := qs.Queue(QueueTransparent)
	require.True(t, ok)
	assert.Len(t, transparent.Items, 2)
	assert.Equal(t, 1, transparent.Particles)
}

func TestShadowCasterQueueOrdersOpaqueFirst(t *testing.T) {
	snap := populatedScene(t).Snapshot()
	qs := NewQueueSet(snap)
	view := camera.NewOrthographicView(mgl32.Vec3{0, 0, 100}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}, 10, 0.1, 200)
	q := qs.Request("shadow", view, ShadowCasters)
	qs.Cull()

	require.Len(t, q.Items, 4, "particles never cast")
	assert.False(t, q.Items[0].Material.Transparent)
	assert.False(t, q.Items[2].Material.Transparent)
	assert.True(t, q.Items[3].Material.Transparent)
}

func TestRequestReplacesAndRecull(t *testing.T) {
	qs := NewQueueSet(populatedScene(t).Snapshot())
	qs.Cull()

	back := camera.NewPerspectiveView(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}, mgl32.DegToRad(60), 1, 0.1, 100)
	q := qs.Request(QueueOpaque, back, OpaqueItems)
	assert.False(t, q.Culled())
	qs.Cull()
	require.Len(t, q.Items, 1)
	assert.Len(t, qs.Queues(), 2)
}

func TestCullerParallelMatchesSerial(t *testing.T) {
	s := populatedScene(t)
	for i := range 40 {
		s.Add(Cube(0.5), NewOpaqueMaterial("c", mgl32.Vec3{1, 1, 1}), mgl32.Translate3D(float32(i%7)-3, float32(i/7)-3, -3))
	}
	snap := s.Snapshot()

	culler := NewCuller(WithCullWorkers(4))
	parallel := culler.NewQueueSet(snap)
	serial := NewQueueSet(snap)
	for i := range 8 {
		v := camera.NewPerspectiveView(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}, mgl32.DegToRad(float32(20+i*10)), 1, 0.1, 100)
		parallel.Request(fmt.Sprint(i), v, nil)
		serial.Request(fmt.Sprint(i), v, nil)
	}
	parallel.Cull()
	serial.Cull()

	for _, q := range serial.Queues() {
		p, ok := parallel.Queue(q.Name)
		require.True(t, ok)
		assert.Equal(t, q.Items, p.Items, q.Name)
	}
}
