package webgpu

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
)

// check validates resource state at submit time. The device lock is held.
type check func() error

type commandBuffer struct {
	label     string
	handle    *wgpu.CommandBuffer
	checks    []check
	resources *bindings
	encoder   *wgpu.CommandEncoder
}

func (c *commandBuffer) Label() string { return c.label }

func (c *commandBuffer) release() {
	if c.handle != nil {
		c.handle.Release()
		c.handle = nil
	}
	if c.encoder != nil {
		c.encoder.Release()
		c.encoder = nil
	}
	c.resources.Release()
}

type commandEncoder struct {
	device    *Device
	label     string
	encoder   *wgpu.CommandEncoder
	checks    []check
	resources *bindings
	open      *renderPass
	finished  bool
}

var _ gpu.CommandEncoder = &commandEncoder{}

func asTexture(t gpu.Texture) (*texture, error) {
	wt, ok := t.(*texture)
	if !ok || wt == nil {
		return nil, fmt.Errorf("texture %T is not a webgpu texture: %w", t, gpu.ErrInvalidDescriptor)
	}
	if wt.Released() {
		return nil, fmt.Errorf("texture %q: %w", wt.Label(), gpu.ErrReleased)
	}
	return wt, nil
}

func (e *commandEncoder) usable() error {
	if e.finished {
		return fmt.Errorf("encoder %q already finished: %w", e.label, gpu.ErrInvalidState)
	}
	if e.open != nil {
		return fmt.Errorf("encoder %q has an open pass %q: %w", e.label, e.open.desc.Label, gpu.ErrInvalidState)
	}
	return nil
}

func (e *commandEncoder) BeginRenderPass(desc gpu.RenderPassDescriptor) (gpu.RenderPassEncoder, error) {
	if err := e.usable(); err != nil {
		return nil, err
	}
	fb := desc.Framebuffer
	size := fb.Size()
	if !size.Valid() {
		return nil, fmt.Errorf("pass %q has no attachments: %w", desc.Label, gpu.ErrInvalidDescriptor)
	}

	rp := &renderPass{encoder: e, desc: desc}
	rpd := &wgpu.RenderPassDescriptor{Label: desc.Label}
	for i, c := range fb.Colors {
		t, err := asTexture(c.Texture)
		if err != nil {
			return nil, fmt.Errorf("pass %q: %w", desc.Label, err)
		}
		if t.Size() != size || t.Format().IsDepth() {
			return nil, fmt.Errorf("pass %q: colour attachment %q: %w", desc.Label, t.Label(), gpu.ErrInvalidDescriptor)
		}
		view, err := t.attachmentView(c.Layer)
		if err != nil {
			return nil, fmt.Errorf("pass %q: %w", desc.Label, err)
		}
		var clear wgpu.Color
		if i < len(desc.Clear.Colors) {
			v := desc.Clear.Colors[i]
			clear = wgpu.Color{R: float64(v[0]), G: float64(v[1]), B: float64(v[2]), A: float64(v[3])}
		}
		rpd.ColorAttachments = append(rpd.ColorAttachments, wgpu.RenderPassColorAttachment{
			View:       view,
			LoadOp:     loadOp(desc.LoadOp),
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: clear,
		})
		rp.attachments = append(rp.attachments, t)
	}
	if fb.Depth != nil {
		t, err := asTexture(fb.Depth.Texture)
		if err != nil {
			return nil, fmt.Errorf("pass %q: %w", desc.Label, err)
		}
		if t.Size() != size || !t.Format().IsDepth() {
			return nil, fmt.Errorf("pass %q: depth attachment %q: %w", desc.Label, t.Label(), gpu.ErrInvalidDescriptor)
		}
		view, err := t.attachmentView(fb.Depth.Layer)
		if err != nil {
			return nil, fmt.Errorf("pass %q: %w", desc.Label, err)
		}
		rpd.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            view,
			DepthLoadOp:     loadOp(desc.LoadOp),
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: desc.Clear.Depth,
		}
		rp.attachments = append(rp.attachments, t)
	}

	rp.pass = e.encoder.BeginRenderPass(rpd)
	e.open = rp
	return rp, nil
}

func (e *commandEncoder) Transition(t gpu.Texture, state gpu.ResourceState) {
	e.checks = append(e.checks, func() error {
		wt, err := asTexture(t)
		if err != nil {
			return err
		}
		switch state {
		case gpu.ResourceStateShaderRead:
			if !wt.Usage().Has(gpu.TextureUsageTextureBinding) {
				return fmt.Errorf("transition %q to %s without binding usage: %w", wt.Label(), state, gpu.ErrInvalidState)
			}
		case gpu.ResourceStateRenderTarget:
			if !wt.Usage().Has(gpu.TextureUsageRenderAttachment) {
				return fmt.Errorf("transition %q to %s without attachment usage: %w", wt.Label(), state, gpu.ErrInvalidState)
			}
		}
		wt.state = state
		return nil
	})
}

func (e *commandEncoder) CopyTexture(src, dst gpu.Texture) error {
	if err := e.usable(); err != nil {
		return err
	}
	s, err := asTexture(src)
	if err != nil {
		return err
	}
	t, err := asTexture(dst)
	if err != nil {
		return err
	}
	if s.Size() != t.Size() || s.Layers() != t.Layers() || s.Format() != t.Format() {
		return fmt.Errorf("copy %q to %q: mismatched textures: %w", s.Label(), t.Label(), gpu.ErrInvalidDescriptor)
	}
	if !s.Usage().Has(gpu.TextureUsageCopySrc) || !t.Usage().Has(gpu.TextureUsageCopyDst) {
		return fmt.Errorf("copy %q to %q: missing copy usage: %w", s.Label(), t.Label(), gpu.ErrInvalidDescriptor)
	}
	e.encoder.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{Texture: s.handle, MipLevel: 0, Origin: wgpu.Origin3D{}, Aspect: wgpu.TextureAspectAll},
		&wgpu.ImageCopyTexture{Texture: t.handle, MipLevel: 0, Origin: wgpu.Origin3D{}, Aspect: wgpu.TextureAspectAll},
		&wgpu.Extent3D{Width: uint32(s.Size().Width), Height: uint32(s.Size().Height), DepthOrArrayLayers: uint32(s.Layers())},
	)
	e.checks = append(e.checks, func() error {
		if s.state != gpu.ResourceStateCopySrc || t.state != gpu.ResourceStateCopyDst {
			return fmt.Errorf("copy %q (%s) to %q (%s): %w", s.Label(), s.state, t.Label(), t.state, gpu.ErrInvalidState)
		}
		return nil
	})
	return nil
}

func (e *commandEncoder) Finish() (gpu.CommandBuffer, error) {
	if err := e.usable(); err != nil {
		return nil, err
	}
	e.finished = true
	handle, err := e.encoder.Finish(nil)
	if err != nil {
		e.encoder.Release()
		e.resources.Release()
		return nil, fmt.Errorf("finish %q: %w", e.label, err)
	}
	return &commandBuffer{label: e.label, handle: handle, checks: e.checks, resources: e.resources, encoder: e.encoder}, nil
}

type renderPass struct {
	encoder     *commandEncoder
	desc        gpu.RenderPassDescriptor
	pass        *wgpu.RenderPassEncoder
	attachments []*texture

	pipeline *pipeline
	uniforms *wgpu.BindGroup
	textures []*texture
	views    []*wgpu.TextureView
	bound    bool
	err      error
	ended    bool
}

var _ gpu.RenderPassEncoder = &renderPass{}

func (rp *renderPass) fail(err error) {
	rp.err = errors.Join(rp.err, err)
}

func (rp *renderPass) SetPipeline(p gpu.Pipeline) {
	wp, ok := p.(*pipeline)
	if !ok || wp == nil {
		rp.fail(fmt.Errorf("pipeline %T is not a webgpu pipeline: %w", p, gpu.ErrInvalidDescriptor))
		return
	}
	rp.pipeline = wp
	rp.pass.SetPipeline(wp.handle)
	if rp.uniforms != nil {
		rp.pass.SetBindGroup(groupFrame, rp.uniforms, nil)
	}
	rp.bound = false
}

func (rp *renderPass) SetFrameUniforms(data []byte) {
	d := rp.encoder.device
	d.mu.Lock()
	bg, err := rp.encoder.resources.uniform(d, "frame", data)
	d.mu.Unlock()
	if err != nil {
		rp.fail(err)
		return
	}
	rp.uniforms = bg
	rp.pass.SetBindGroup(groupFrame, bg, nil)
}

func (rp *renderPass) SetTextures(views ...gpu.TextureView) {
	rp.textures = rp.textures[:0]
	rp.views = rp.views[:0]
	for _, v := range views {
		t, err := asTexture(v.Texture)
		if err != nil {
			rp.fail(err)
			continue
		}
		rp.textures = append(rp.textures, t)
		rp.views = append(rp.views, t.whole)
	}
	rp.bound = false

	textures := append([]*texture(nil), rp.textures...)
	label := rp.desc.Label
	rp.encoder.checks = append(rp.encoder.checks, func() error {
		for _, t := range textures {
			if t.Released() {
				return fmt.Errorf("pass %q samples %q: %w", label, t.Label(), gpu.ErrReleased)
			}
			if t.state != gpu.ResourceStateShaderRead {
				return fmt.Errorf("pass %q samples %q in state %s: %w", label, t.Label(), t.state, gpu.ErrInvalidState)
			}
			for _, a := range rp.attachments {
				if a == t {
					return fmt.Errorf("pass %q samples its own attachment %q: %w", label, t.Label(), gpu.ErrInvalidState)
				}
			}
		}
		return nil
	})
}

// bindTextures creates the texture bind group for the current pipeline once per
// pipeline/texture set change.
func (rp *renderPass) bindTextures() error {
	if rp.bound || len(rp.views) == 0 {
		return nil
	}
	d := rp.encoder.device
	d.mu.Lock()
	bg, err := rp.encoder.resources.textures(d, rp.pipeline.textures, rp.views)
	d.mu.Unlock()
	if err != nil {
		return err
	}
	rp.pass.SetBindGroup(rp.pipeline.textureGroup(), bg, nil)
	rp.bound = true
	return nil
}

func (rp *renderPass) checkDraw(fullscreen bool) error {
	if rp.err != nil {
		return fmt.Errorf("pass %q: %w", rp.desc.Label, rp.err)
	}
	if rp.ended {
		return fmt.Errorf("pass %q already ended: %w", rp.desc.Label, gpu.ErrInvalidState)
	}
	p := rp.pipeline
	if p == nil {
		return fmt.Errorf("pass %q: draw without pipeline: %w", rp.desc.Label, gpu.ErrInvalidState)
	}
	if p.desc.Fullscreen != fullscreen {
		return fmt.Errorf("pass %q: pipeline %q fullscreen=%t: %w", rp.desc.Label, p.Label(), p.desc.Fullscreen, gpu.ErrInvalidState)
	}
	if len(rp.textures) != p.desc.TextureBindings {
		return fmt.Errorf("pass %q: pipeline %q binds %d textures, %d set: %w", rp.desc.Label, p.Label(), p.desc.TextureBindings, len(rp.textures), gpu.ErrBindingMismatch)
	}
	if rp.uniforms == nil {
		return fmt.Errorf("pass %q: draw without uniforms: %w", rp.desc.Label, gpu.ErrInvalidState)
	}
	return rp.bindTextures()
}

func (rp *renderPass) Draw(m gpu.Mesh, object []byte) error {
	if err := rp.checkDraw(false); err != nil {
		return err
	}
	wm, ok := m.(*mesh)
	if !ok {
		return fmt.Errorf("pass %q: mesh %T is not a webgpu mesh: %w", rp.desc.Label, m, gpu.ErrInvalidDescriptor)
	}
	if wm.Topology() != rp.pipeline.desc.Topology {
		return fmt.Errorf("pass %q: mesh %q topology does not match pipeline %q: %w", rp.desc.Label, wm.Label(), rp.pipeline.Label(), gpu.ErrInvalidDescriptor)
	}

	d := rp.encoder.device
	d.mu.Lock()
	bg, err := rp.encoder.resources.uniform(d, "object", object)
	d.mu.Unlock()
	if err != nil {
		return fmt.Errorf("pass %q: %w", rp.desc.Label, err)
	}
	rp.pass.SetBindGroup(groupObject, bg, nil)
	rp.pass.SetVertexBuffer(0, wm.vertexBuffer, 0, wgpu.WholeSize)
	rp.pass.SetIndexBuffer(wm.indexBuffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	rp.pass.DrawIndexed(uint32(wm.indexCount), 1, 0, 0, 0)
	return nil
}

func (rp *renderPass) DrawFullscreen() error {
	if err := rp.checkDraw(true); err != nil {
		return err
	}
	rp.pass.Draw(3, 1, 0, 0)
	return nil
}

func (rp *renderPass) End() error {
	if rp.ended {
		return fmt.Errorf("pass %q already ended: %w", rp.desc.Label, gpu.ErrInvalidState)
	}
	rp.ended = true
	rp.encoder.open = nil
	rp.pass.End()
	rp.pass.Release()

	attachments := rp.attachments
	label := rp.desc.Label
	rp.encoder.checks = append(rp.encoder.checks, func() error {
		for _, a := range attachments {
			if a.Released() {
				return fmt.Errorf("pass %q attachment %q: %w", label, a.Label(), gpu.ErrReleased)
			}
			if a.state != gpu.ResourceStateRenderTarget {
				return fmt.Errorf("pass %q writes %q in state %s: %w", label, a.Label(), a.state, gpu.ErrInvalidState)
			}
		}
		return nil
	})
	if rp.err != nil {
		return fmt.Errorf("pass %q: %w", label, rp.err)
	}
	return nil
}
