package pipeline

import (
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithModule sets the shader module for this pipeline and takes the texture binding
// count from the module's declared texture slots.
//
// Parameters:
//   - m: the pre-processed shader module
//
// Returns:
//   - PipelineBuilderOption: a function that sets the shader module for this pipeline
func WithModule(m gpu.ShaderModule) PipelineBuilderOption {
	return func(p *pipeline) {
		p.module = m
		p.textureBindings = len(m.Textures)
	}
}

// WithColorTarget appends a colour output. Targets are bound in the order they are added.
//
// Parameters:
//   - format: the texture format of the attachment
//   - blend: the blend state, or nil to overwrite
//
// Returns:
//   - PipelineBuilderOption: a function that appends the colour target
func WithColorTarget(format gpu.TextureFormat, blend *gpu.BlendState) PipelineBuilderOption {
	return func(p *pipeline) {
		p.targets = append(p.targets, gpu.ColorTarget{Format: format, Blend: blend})
	}
}

// WithDepth enables a depth attachment with the given comparison and write behaviour.
//
// Parameters:
//   - compare: the depth comparison function
//   - write: whether passing fragments write depth
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth state
func WithDepth(compare gpu.CompareFunction, write bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depth = &gpu.DepthState{
			Format:       gpu.TextureFormatDepth32Float,
			Compare:      compare,
			WriteEnabled: write,
		}
	}
}

// WithDepthBias sets a constant and slope-scaled depth bias. Requires WithDepth first.
//
// Parameters:
//   - bias: the constant depth bias
//   - slopeScale: the slope-scaled depth bias
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth bias
func WithDepthBias(bias int32, slopeScale float32) PipelineBuilderOption {
	return func(p *pipeline) {
		if p.depth == nil {
			return
		}
		p.depth.Bias = bias
		p.depth.BiasSlopeScale = slopeScale
	}
}

// WithCullMode sets the face culling mode.
//
// Parameters:
//   - mode: the cull mode
//
// Returns:
//   - PipelineBuilderOption: a function that sets the cull mode
func WithCullMode(mode gpu.CullMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.cullMode = mode
	}
}

// WithTopology sets the primitive topology.
//
// Parameters:
//   - topology: the primitive topology
//
// Returns:
//   - PipelineBuilderOption: a function that sets the topology
func WithTopology(topology gpu.Topology) PipelineBuilderOption {
	return func(p *pipeline) {
		p.topology = topology
	}
}

// WithFullscreen marks the pipeline as a fullscreen pass with no vertex input and no culling.
//
// Returns:
//   - PipelineBuilderOption: a function that marks the pipeline fullscreen
func WithFullscreen() PipelineBuilderOption {
	return func(p *pipeline) {
		p.fullscreen = true
		p.cullMode = gpu.CullModeNone
	}
}

// WithTextureBindings sets the exact number of texture views the pipeline samples.
//
// Parameters:
//   - count: the number of bound texture views
//
// Returns:
//   - PipelineBuilderOption: a function that sets the binding count
func WithTextureBindings(count int) PipelineBuilderOption {
	return func(p *pipeline) {
		p.textureBindings = count
	}
}
