package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
	"github.com/Carmen-Shannon/oxy-technique/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the simulation tick rate in ticks per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithWindow attaches a window. The result is presented to its surface every frame and
// framebuffer resizes are forwarded to the technique.
//
// Parameters:
//   - w: a window created on the goroutine that will call Run
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithSize sets the render target size used when the technique is not yet initialised.
// Defaults to the window size, or the technique's size when headless.
//
// Parameters:
//   - size: the render target size
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSize(size gpu.Size) EngineBuilderOption {
	return func(e *engine) {
		e.size = size
	}
}

// WithMaxFrames stops the engine after n rendered frames. Zero runs until Quit.
func WithMaxFrames(n uint64) EngineBuilderOption {
	return func(e *engine) {
		e.maxFrames = n
	}
}

// WithMeshIdleFrames sets how many frames an uploaded mesh may go undrawn before it is
// freed. Values below 1 are treated as 1.
func WithMeshIdleFrames(n uint64) EngineBuilderOption {
	return func(e *engine) {
		e.meshIdleFrames = max(n, 1)
	}
}

// WithCuller sets the culler that builds each frame's queue set.
//
// Parameters:
//   - c: the culler
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCuller(c *scene.Culler) EngineBuilderOption {
	return func(e *engine) {
		e.culler = c
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}
