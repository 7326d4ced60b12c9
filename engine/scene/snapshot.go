package scene

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-technique/engine/camera"
	"github.com/Carmen-Shannon/oxy-technique/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// Snapshot is a frozen scene handed from the simulation goroutine to the render
// goroutine at the frame boundary. Nothing in it is mutated after creation.
type Snapshot struct {
	Frame      uint64
	Camera     camera.View
	Items      []Item
	Lights     []light.State
	Fog        Fog
	Background mgl32.Vec4
	Ambient    mgl32.Vec3
}

// Light returns the frozen state of the light with the given ID.
func (s *Snapshot) Light(id light.ID) (light.State, bool) {
	for _, l := range s.Lights {
		if l.ID == id {
			return l, true
		}
	}
	return light.State{}, false
}

// FrameContext carries the snapshot being rendered and whether a render is in flight
// for it. Passes receive it explicitly instead of reading a global active scene.
type FrameContext struct {
	snapshot *Snapshot
	active   atomic.Bool
}

// NewFrameContext wraps snap for one frame.
func NewFrameContext(snap *Snapshot) *FrameContext {
	if snap == nil {
		panic("scene: frame context requires a snapshot")
	}
	return &FrameContext{snapshot: snap}
}

// Snapshot returns the frame's frozen scene.
func (f *FrameContext) Snapshot() *Snapshot {
	return f.snapshot
}

// Begin marks the scene active for the duration of a render.
func (f *FrameContext) Begin() {
	f.active.Store(true)
}

// End clears the active mark.
func (f *FrameContext) End() {
	f.active.Store(false)
}

// Active reports whether a render is in flight.
func (f *FrameContext) Active() bool {
	return f.active.Load()
}
