package engine

import (
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-technique/engine/camera"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu/software"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
	"github.com/Carmen-Shannon/oxy-technique/engine/technique"
)

func newHeadless(t *testing.T) (renderer.Renderer, technique.Technique, scene.Scene) {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithDevice(software.NewDevice()))
	require.NoError(t, err)
	t.Cleanup(r.Release)

	tech, err := technique.New(technique.WeightedBlendedName, r, technique.WithShadowMapSizes(64, 64, 32))
	require.NoError(t, err)
	t.Cleanup(tech.Cleanup)

	cam := camera.NewCamera(camera.WithPosition(mgl32.Vec3{0, 0, 5}), camera.WithClip(0.1, 50))
	s := scene.NewScene("engine", cam,
		scene.WithItem(scene.Cube(1), scene.NewOpaqueMaterial("box", mgl32.Vec3{1, 0, 0}), mgl32.Ident4()),
		scene.WithItem(scene.Quad(1), scene.NewTransparentMaterial("glass", mgl32.Vec3{0, 0, 1}, 0.5), mgl32.Translate3D(0, 0, 1)),
	)
	return r, tech, s
}

func TestHeadlessRunStopsAfterMaxFrames(t *testing.T) {
	r, tech, s := newHeadless(t)
	e := NewEngine(r, tech, s,
		WithSize(gpu.Size{Width: 24, Height: 16}),
		WithTickRate(500),
		WithMaxFrames(3),
		WithCuller(scene.NewCuller(scene.WithCullWorkers(2))),
	)

	var mu sync.Mutex
	var frames []uint64
	var draws []int
	e.SetFrameCallback(func(frame uint64, info *technique.RenderInfo) {
		mu.Lock()
		defer mu.Unlock()
		frames = append(frames, frame)
		draws = append(draws, info.DrawCalls)
	})

	require.NoError(t, e.Run())
	assert.Equal(t, []uint64{1, 2, 3}, frames)
	for _, d := range draws {
		assert.Equal(t, 3, d, "opaque, transparent and combine draws")
	}
	assert.Equal(t, uint64(3), e.Frames())
	assert.True(t, tech.Initialised())
	assert.Equal(t, gpu.Size{Width: 24, Height: 16}, tech.Size())
	assert.InDelta(t, 1.5, s.Camera().View().Aspect, 1e-6)
}

func TestTickPanicStopsEngine(t *testing.T) {
	r, tech, s := newHeadless(t)
	e := NewEngine(r, tech, s, WithSize(gpu.Size{Width: 8, Height: 8}), WithTickRate(500))
	e.SetTickCallback(func(float32) { panic("boom") })

	err := e.Run()
	require.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "tick goroutine")
}

func TestResizeAppliedBeforeNextFrame(t *testing.T) {
	r, tech, s := newHeadless(t)
	e := NewEngine(r, tech, s, WithSize(gpu.Size{Width: 8, Height: 8}), WithTickRate(500), WithMaxFrames(2))
	e.Resize(gpu.Size{Width: 20, Height: 10})

	var sizes []gpu.Size
	e.SetFrameCallback(func(uint64, *technique.RenderInfo) {
		sizes = append(sizes, tech.Result().Size())
	})
	require.NoError(t, e.Run())
	require.Len(t, sizes, 2)
	assert.Equal(t, gpu.Size{Width: 20, Height: 10}, sizes[0])
	assert.Equal(t, gpu.Size{Width: 20, Height: 10}, sizes[1])
}

// aspectRecorder is a post-effect that leaves the image alone and records the camera
// aspect of every frame it runs in.
type aspectRecorder struct {
	mu      sync.Mutex
	aspects []float32
}

func (a *aspectRecorder) Name() string                                 { return "aspect" }
func (a *aspectRecorder) Initialise(renderer.Renderer, gpu.Size) error { return nil }
func (a *aspectRecorder) Cleanup()                                     {}

func (a *aspectRecorder) Apply(_ gpu.CommandEncoder, _ gpu.Texture, ctx technique.PostContext) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.aspects = append(a.aspects, ctx.Snapshot.Camera.Aspect)
	return nil
}

func TestFirstFrameAfterResizeUsesNewAspect(t *testing.T) {
	r, tech, s := newHeadless(t)
	rec := &aspectRecorder{}
	require.NoError(t, tech.AddPostEffect(rec))
	e := NewEngine(r, tech, s, WithSize(gpu.Size{Width: 8, Height: 8}), WithTickRate(500), WithMaxFrames(1))
	e.Resize(gpu.Size{Width: 20, Height: 10})

	require.NoError(t, e.Run())
	require.Len(t, rec.aspects, 1)
	assert.InDelta(t, 2, rec.aspects[0], 1e-6)
}

func TestReproject(t *testing.T) {
	cam := camera.NewCamera(camera.WithPosition(mgl32.Vec3{0, 0, 5}), camera.WithAspect(1))
	snap := &scene.Snapshot{Frame: 7, Camera: cam.View()}

	same := reproject(snap, gpu.Size{Width: 4, Height: 4})
	assert.Same(t, snap, same)

	wide := reproject(snap, gpu.Size{Width: 30, Height: 10})
	assert.NotSame(t, snap, wide)
	assert.InDelta(t, 3, wide.Camera.Aspect, 1e-6)
	assert.Equal(t, float32(1), snap.Camera.Aspect)
	assert.Equal(t, uint64(7), wide.Frame)
}

func TestIdleMeshesEvicted(t *testing.T) {
	r, tech, s := newHeadless(t)
	pane := scene.Quad(0.5)
	id := s.Add(pane, scene.NewOpaqueMaterial("pane", mgl32.Vec3{0, 1, 0}), mgl32.Translate3D(0.5, 0.5, 1))
	e := NewEngine(r, tech, s, WithSize(gpu.Size{Width: 8, Height: 8}), WithTickRate(500), WithMaxFrames(5), WithMeshIdleFrames(1))

	var first gpu.Mesh
	e.SetFrameCallback(func(frame uint64, _ *technique.RenderInfo) {
		if frame == 1 {
			var err error
			first, err = r.Mesh(pane)
			assert.NoError(t, err)
			s.Remove(id)
		}
	})
	require.NoError(t, e.Run())

	again, err := r.Mesh(pane)
	require.NoError(t, err)
	assert.NotSame(t, first, again)
}

func TestQuitBeforeRun(t *testing.T) {
	r, tech, s := newHeadless(t)
	e := NewEngine(r, tech, s, WithSize(gpu.Size{Width: 8, Height: 8}))
	e.Quit()
	e.Quit()
	require.NoError(t, e.Run())
	assert.Zero(t, e.Frames())
}

func TestInvalidResizePanics(t *testing.T) {
	r, tech, s := newHeadless(t)
	e := NewEngine(r, tech, s)
	assert.Panics(t, func() { e.Resize(gpu.Size{}) })
}

func TestNilDependenciesPanic(t *testing.T) {
	r, tech, s := newHeadless(t)
	assert.Panics(t, func() { NewEngine(nil, tech, s) })
	assert.Panics(t, func() { NewEngine(r, nil, s) })
	assert.Panics(t, func() { NewEngine(r, tech, nil) })
}
