// Package technique sequences the passes of a frame: shadow maps, opaque geometry,
// weighted blended transparency, the final combine with fog and post-effects.
//
// A Technique moves through Uninitialised, Initialised, {Updated, Rendered}* and
// Cleaned. Surfaces and pipelines are created by Initialise and destroyed by Cleanup,
// render queues are refreshed by Update, and Render records and submits the frame.
package technique

import (
	"errors"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-technique/engine/light"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
)

var (
	// ErrNotInitialised is returned by Update and Render before Initialise succeeds.
	ErrNotInitialised = errors.New("technique: not initialised")

	// ErrAllocation matches every *AllocationError.
	ErrAllocation = errors.New("technique: allocation failed")

	// ErrUnknownTechnique is returned by New for a name nothing registered.
	ErrUnknownTechnique = errors.New("technique: unknown technique")

	// ErrFrameInactive is returned by a pass asked to record outside an active frame.
	ErrFrameInactive = errors.New("technique: frame not active")
)

// AllocationError reports the resource whose creation failed during Initialise.
type AllocationError struct {
	Resource string
	Err      error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("technique: allocate %s: %v", e.Resource, e.Err)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}

func (e *AllocationError) Is(target error) bool {
	return target == ErrAllocation
}

// RenderInfo collects the counters of one Render call.
type RenderInfo struct {
	// DrawCalls counts every draw, shadow and fullscreen draws included.
	DrawCalls int

	// ShadowDrawCalls is the share of DrawCalls recorded into shadow maps.
	ShadowDrawCalls int

	// VisibleObjects counts the items drawn from the main camera.
	VisibleObjects int

	// Particles counts the point-list items among VisibleObjects.
	Particles int

	// PassTimes holds the CPU recording time of each pass by name.
	PassTimes map[string]time.Duration
}

// Reset zeroes the counters so the info can be reused across frames.
func (i *RenderInfo) Reset() {
	i.DrawCalls = 0
	i.ShadowDrawCalls = 0
	i.VisibleObjects = 0
	i.Particles = 0
	clear(i.PassTimes)
}

func (i *RenderInfo) time(pass string, start time.Time) {
	if i.PassTimes == nil {
		i.PassTimes = make(map[string]time.Duration)
	}
	i.PassTimes[pass] += time.Since(start)
}

// Technique is a render technique: the fixed sequence of passes that turns a frame's
// render queues into a final image.
type Technique interface {
	// Name returns the name the technique is registered under.
	//
	// Returns:
	//   - string: the technique name
	Name() string

	// Initialise creates every surface and pipeline for the given render target size.
	// It fails fast: the first failed allocation is logged with its resource name, every
	// partial allocation is released and the error returned. Initialising an already
	// initialised technique is a no-op.
	//
	// Parameters:
	//   - size: the render target size (must be valid)
	//
	// Returns:
	//   - error: an *AllocationError, nil on success
	Initialise(size gpu.Size) error

	// Cleanup releases every surface, pipeline and shadow map. Calling it twice is a no-op.
	Cleanup()

	// Resize is Cleanup followed by Initialise at the new size.
	//
	// Parameters:
	//   - size: the new render target size
	//
	// Returns:
	//   - error: the Initialise error
	Resize(size gpu.Size) error

	// Update refreshes the shadow maps and the render queues of every pass and culls
	// the queue set.
	//
	// Parameters:
	//   - queues: the frame's queue set
	//
	// Returns:
	//   - error: ErrNotInitialised, or a lazy shadow map allocation error
	Update(queues *scene.QueueSet) error

	// Render records and submits the frame: shadow maps, opaque pass, transparent pass,
	// combine and post-effects, in that order.
	//
	// Parameters:
	//   - info: the counters to fill, may be nil
	//
	// Returns:
	//   - error: ErrNotInitialised, or a recording or submission error
	Render(info *RenderInfo) error

	// AddShadowProducer registers a light whose shadows are rendered while it casts them.
	//
	// Parameters:
	//   - l: the light (must not be nil)
	AddShadowProducer(l light.Light)

	// RemoveShadowProducer unregisters a light and releases its shadow map. Removing a
	// light from the scene does not unregister it.
	RemoveShadowProducer(l light.Light)

	// AddPostEffect appends an effect applied after the combine, in registration order.
	// Effects added to an initialised technique are initialised immediately.
	//
	// Parameters:
	//   - e: the effect
	//
	// Returns:
	//   - error: the effect's initialise error
	AddPostEffect(e PostEffect) error

	// Result returns the final image, or nil before Initialise.
	//
	// Returns:
	//   - gpu.Texture: the combined and post-processed image
	Result() gpu.Texture

	// OpaquePass returns the opaque pass.
	OpaquePass() OpaquePass

	// TransparentPass returns the transparent pass.
	TransparentPass() TransparentPass

	// Size returns the current render target size, zero before Initialise.
	Size() gpu.Size

	// Initialised reports whether the technique is between Initialise and Cleanup.
	Initialised() bool
}
