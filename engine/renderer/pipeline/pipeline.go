package pipeline

import (
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
)

// pipeline is the implementation of the Pipeline interface.
// It holds the descriptor used to create the backend pipeline and the created handle.
type pipeline struct {
	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey string

	// module is the pre-processed shader module; required before the pipeline can be registered.
	module gpu.ShaderModule

	// handle is the backend pipeline once registered, nil before that or after Release.
	handle gpu.Pipeline

	// The following properties configure the pipeline during creation and can be toggled/set with the builder options.

	targets         []gpu.ColorTarget
	depth           *gpu.DepthState
	cullMode        gpu.CullMode
	topology        gpu.Topology
	fullscreen      bool
	textureBindings int
}

// Pipeline defines the interface for a render pipeline owned by a pass. It carries the
// configuration needed to create the backend object and, once registered, the handle itself.
// Pipelines are built once at initialise and never rebuilt during a frame.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Module returns the shader module the pipeline executes.
	//
	// Returns:
	//   - gpu.ShaderModule: the pre-processed shader module
	Module() gpu.ShaderModule

	// Descriptor assembles the backend-neutral descriptor for this pipeline.
	//
	// Returns:
	//   - gpu.PipelineDescriptor: the descriptor passed to gpu.Device.CreatePipeline
	Descriptor() gpu.PipelineDescriptor

	// TextureBindings returns the exact number of texture views a draw with this pipeline binds.
	//
	// Returns:
	//   - int: the texture binding count
	TextureBindings() int

	// Handle returns the backend pipeline, or nil if the pipeline has not been registered.
	//
	// Returns:
	//   - gpu.Pipeline: the created pipeline
	Handle() gpu.Pipeline

	// SetHandle stores the backend pipeline created from Descriptor.
	//
	// Parameters:
	//   - h: the created pipeline
	SetHandle(h gpu.Pipeline)

	// Release frees the backend pipeline. The descriptor is kept so the pipeline can be registered again.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline. The defaults describe an opaque
// triangle-list pipeline with back-face culling and no colour targets; use the builder options
// to configure it.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified configuration
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey: pipelineKey,
		cullMode:    gpu.CullModeBack,
		topology:    gpu.TopologyTriangleList,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Module() gpu.ShaderModule {
	return p.module
}

func (p *pipeline) Descriptor() gpu.PipelineDescriptor {
	targets := make([]gpu.ColorTarget, len(p.targets))
	copy(targets, p.targets)

	var depth *gpu.DepthState
	if p.depth != nil {
		d := *p.depth
		depth = &d
	}

	return gpu.PipelineDescriptor{
		Label:           p.pipelineKey,
		Module:          p.module,
		Targets:         targets,
		Depth:           depth,
		CullMode:        p.cullMode,
		Topology:        p.topology,
		Fullscreen:      p.fullscreen,
		TextureBindings: p.textureBindings,
	}
}

func (p *pipeline) TextureBindings() int {
	return p.textureBindings
}

func (p *pipeline) Handle() gpu.Pipeline {
	return p.handle
}

func (p *pipeline) SetHandle(h gpu.Pipeline) {
	p.handle = h
}

func (p *pipeline) Release() {
	if p.handle != nil {
		p.handle.Release()
		p.handle = nil
	}
}
