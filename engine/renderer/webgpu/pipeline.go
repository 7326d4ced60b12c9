package webgpu

import (
	"fmt"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
)

// Bind group indices of the embedded modules. Geometry modules bind frame uniforms at 0,
// object uniforms at 1 and textures at 2; fullscreen modules bind their parameters at 0
// and textures at 1.
const (
	groupFrame          = 0
	groupObject         = 1
	groupGeometryTex    = 2
	groupFullscreenTex  = 1
	vertexStride        = 24
	normalAttributeSize = 12
)

type pipeline struct {
	desc     gpu.PipelineDescriptor
	handle   *wgpu.RenderPipeline
	layout   *wgpu.PipelineLayout
	module   *wgpu.ShaderModule
	textures *wgpu.BindGroupLayout
	released atomic.Bool
}

var _ gpu.Pipeline = &pipeline{}

func (p *pipeline) Label() string                      { return p.desc.Label }
func (p *pipeline) Descriptor() gpu.PipelineDescriptor { return p.desc }

func (p *pipeline) Release() {
	if p.released.Swap(true) {
		return
	}
	p.handle.Release()
	p.layout.Release()
	p.module.Release()
}

// textureGroup is the bind group index the pipeline's textures live in.
func (p *pipeline) textureGroup() uint32 {
	if p.desc.Fullscreen {
		return groupFullscreenTex
	}
	return groupGeometryTex
}

// bindGroupLayouts assembles the pipeline layout for a module; the device lock must be held.
func (d *Device) bindGroupLayouts(desc gpu.PipelineDescriptor) ([]*wgpu.BindGroupLayout, *wgpu.BindGroupLayout, error) {
	uniform, err := d.uniformLayout()
	if err != nil {
		return nil, nil, err
	}
	layouts := []*wgpu.BindGroupLayout{uniform}
	if !desc.Fullscreen {
		layouts = append(layouts, uniform)
	}
	if len(desc.Module.Textures) == 0 {
		return layouts, nil, nil
	}
	textures, err := d.textureLayout(desc.Module.Textures)
	if err != nil {
		return nil, nil, err
	}
	return append(layouts, textures), textures, nil
}

func (d *Device) CreatePipeline(desc gpu.PipelineDescriptor) (gpu.Pipeline, error) {
	if desc.TextureBindings != len(desc.Module.Textures) {
		return nil, fmt.Errorf("pipeline %q expects %d textures, module declares %d: %w", desc.Label, desc.TextureBindings, len(desc.Module.Textures), gpu.ErrBindingMismatch)
	}
	if desc.Module.Source == "" || desc.Module.VertexEntry == "" {
		return nil, fmt.Errorf("pipeline %q: module %q has no vertex stage: %w", desc.Label, desc.Module.Key, gpu.ErrInvalidDescriptor)
	}

	targets := make([]wgpu.ColorTargetState, len(desc.Targets))
	for i, t := range desc.Targets {
		format, err := textureFormat(t.Format)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q target %d: %w", desc.Label, i, err)
		}
		targets[i] = wgpu.ColorTargetState{
			Format:    format,
			Blend:     blendState(t.Blend),
			WriteMask: wgpu.ColorWriteMaskAll,
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return nil, err
	}

	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Module.Key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.Module.Source,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline %q shader module: %w", desc.Label, err)
	}

	groups, textures, err := d.bindGroupLayouts(desc)
	if err != nil {
		module.Release()
		return nil, fmt.Errorf("pipeline %q: %w", desc.Label, err)
	}
	layout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: groups,
	})
	if err != nil {
		module.Release()
		return nil, fmt.Errorf("pipeline %q layout: %w", desc.Label, err)
	}

	rpd := &wgpu.RenderPipelineDescriptor{
		Label:  desc.Label + " Render Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: desc.Module.VertexEntry,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology(desc.Topology),
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cullMode(desc.CullMode),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if !desc.Fullscreen {
		rpd.Vertex.Buffers = []wgpu.VertexBufferLayout{{
			ArrayStride: vertexStride,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				{Format: wgpu.VertexFormatFloat32x3, Offset: normalAttributeSize, ShaderLocation: 1},
			},
		}}
	}
	// depth-only modules have no fragment stage
	if desc.Module.FragmentEntry != "" {
		rpd.Fragment = &wgpu.FragmentState{
			Module:     module,
			EntryPoint: desc.Module.FragmentEntry,
			Targets:    targets,
		}
	}
	if ds := desc.Depth; ds != nil {
		format, err := textureFormat(ds.Format)
		if err != nil {
			layout.Release()
			module.Release()
			return nil, fmt.Errorf("pipeline %q depth: %w", desc.Label, err)
		}
		rpd.DepthStencil = &wgpu.DepthStencilState{
			Format:              format,
			DepthWriteEnabled:   ds.WriteEnabled,
			DepthCompare:        compareFunction(ds.Compare),
			DepthBias:           ds.Bias,
			DepthBiasSlopeScale: ds.BiasSlopeScale,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	handle, err := d.device.CreateRenderPipeline(rpd)
	if err != nil {
		layout.Release()
		module.Release()
		return nil, fmt.Errorf("pipeline %q: %w", desc.Label, err)
	}
	return &pipeline{desc: desc, handle: handle, layout: layout, module: module, textures: textures}, nil
}
