package renderer

import (
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-technique/engine/window"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPipeline pre-registers a single Pipeline in the renderer's pipeline cache under the given key.
// The pipeline is not created on the device until RegisterPipelines is called with it.
//
// Parameters:
//   - key: the unique identifier for the pipeline
//   - p: the Pipeline to cache
//
// Returns:
//   - RendererBuilderOption: a function that applies the pipeline option to a renderer
func WithPipeline(key string, p pipeline.Pipeline) RendererBuilderOption {
	return func(r *renderer) {
		r.pipelineCache[key] = p
	}
}

// WithDevice uses an existing device instead of creating one for the backend type.
// The renderer takes ownership and releases it in Release.
//
// Parameters:
//   - d: the device
//
// Returns:
//   - RendererBuilderOption: a function that sets the device
func WithDevice(d gpu.Device) RendererBuilderOption {
	return func(r *renderer) {
		r.device = d
	}
}

// WithLibrary replaces the default embedded shader library.
//
// Parameters:
//   - lib: the shader library
//
// Returns:
//   - RendererBuilderOption: a function that sets the library
func WithLibrary(lib shader.Library) RendererBuilderOption {
	return func(r *renderer) {
		r.library = lib
	}
}

// WithValidation compiles every module with naga before its pipeline is created, so WGSL
// errors surface with a line number instead of a driver message.
//
// Parameters:
//   - validate: true to validate shader modules on registration
//
// Returns:
//   - RendererBuilderOption: a function that sets shader validation
func WithValidation(validate bool) RendererBuilderOption {
	return func(r *renderer) {
		r.validate = validate
	}
}

// WithWindow attaches a window whose surface the WGPU backend presents to. Ignored by the
// software backend.
//
// Parameters:
//   - w: the window
//
// Returns:
//   - RendererBuilderOption: a function that sets the window
func WithWindow(w window.Window) RendererBuilderOption {
	return func(r *renderer) {
		r.window = w
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.presentMode = mode
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithMemoryBudget caps the texture memory of the software backend. Zero means unlimited.
//
// Parameters:
//   - bytes: the budget in bytes
//
// Returns:
//   - RendererBuilderOption: a function that sets the budget
func WithMemoryBudget(bytes int64) RendererBuilderOption {
	return func(r *renderer) {
		r.memoryBudget = bytes
	}
}
