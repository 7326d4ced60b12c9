package webgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/oxy-technique/common"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/shader"
)

// blitPipeline draws a texture onto the surface with the copy module. It is built lazily
// against the surface format, which the gpu formats do not describe.
type blitPipeline struct {
	format   wgpu.TextureFormat
	pipeline *pipeline
}

func (b *blitPipeline) release() {
	b.pipeline.Release()
}

// configureSurface is a wrapper for the boilerplate of configuring the surface for a size.
// It must be called again whenever the window size changes.
func (d *Device) configureSurface(size gpu.Size) {
	capabilities := d.surface.GetCapabilities(d.adapter)
	d.surfaceFormat = capabilities.Formats[0]
	d.surfaceSize = size

	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      d.surfaceFormat,
		Width:       uint32(size.Width),
		Height:      uint32(size.Height),
		PresentMode: d.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
}

// ResizeSurface reconfigures the surface. It is a no-op for headless devices and for
// zero sizes (minimised windows).
func (d *Device) ResizeSurface(size gpu.Size) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.surface == nil || !size.Valid() || d.released {
		return
	}
	d.configureSurface(size)
	common.Logger().Debug("surface configured", "size", size.String())
}

// blitLocked returns the blit pipeline for the current surface format. The device lock must be held.
func (d *Device) blitLocked() (*blitPipeline, error) {
	if d.blit != nil && d.blit.format == d.surfaceFormat {
		return d.blit, nil
	}
	if d.blit != nil {
		d.blit.release()
		d.blit = nil
	}

	module, err := shader.NewLibrary().Module(shader.ModuleCopy, shader.DefaultVariant)
	if err != nil {
		return nil, err
	}
	sm, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "blit",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: module.Source,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("blit shader module: %w", err)
	}
	desc := gpu.PipelineDescriptor{Label: "blit", Module: module, Fullscreen: true, TextureBindings: len(module.Textures)}
	groups, textures, err := d.bindGroupLayouts(desc)
	if err != nil {
		sm.Release()
		return nil, err
	}
	layout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "blit",
		BindGroupLayouts: groups,
	})
	if err != nil {
		sm.Release()
		return nil, fmt.Errorf("blit layout: %w", err)
	}
	handle, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "blit Render Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     sm,
			EntryPoint: module.VertexEntry,
		},
		Fragment: &wgpu.FragmentState{
			Module:     sm,
			EntryPoint: module.FragmentEntry,
			Targets: []wgpu.ColorTargetState{{
				Format:    d.surfaceFormat,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		layout.Release()
		sm.Release()
		return nil, fmt.Errorf("blit pipeline: %w", err)
	}
	d.blit = &blitPipeline{
		format:   d.surfaceFormat,
		pipeline: &pipeline{desc: desc, handle: handle, layout: layout, module: sm, textures: textures},
	}
	return d.blit, nil
}

// Present blits t onto the next surface image and presents it. t must be in
// ResourceStateShaderRead and the same size as the surface.
func (d *Device) Present(t gpu.Texture) error {
	wt, err := asTexture(t)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}
	if d.surface == nil {
		return fmt.Errorf("present: headless device: %w", gpu.ErrUnsupported)
	}
	if wt.state != gpu.ResourceStateShaderRead {
		return fmt.Errorf("present %q in state %s: %w", wt.Label(), wt.state, gpu.ErrInvalidState)
	}
	blit, err := d.blitLocked()
	if err != nil {
		return err
	}

	surfaceTexture, err := d.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("acquire surface texture: %w", err)
	}
	defer surfaceTexture.Release()
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("surface view: %w", err)
	}
	defer view.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("present encoder: %w", err)
	}
	defer encoder.Release()
	res := &bindings{label: "present"}
	defer res.Release()

	params, err := res.uniform(d, "present", shader.PostUniforms{Exposure: 1}.Marshal())
	if err != nil {
		return err
	}
	textures, err := res.textures(d, blit.pipeline.textures, []*wgpu.TextureView{wt.whole})
	if err != nil {
		return err
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "present",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	pass.SetPipeline(blit.pipeline.handle)
	pass.SetBindGroup(groupFrame, params, nil)
	pass.SetBindGroup(groupFullscreenTex, textures, nil)
	pass.Draw(3, 1, 0, 0)
	pass.End()
	pass.Release()

	cb, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("present finish: %w", err)
	}
	defer cb.Release()
	d.queue.Submit(cb)
	d.surface.Present()
	return nil
}
