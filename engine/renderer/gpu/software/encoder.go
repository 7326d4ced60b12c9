package software

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/shader"
)

// command is one recorded operation, executed at Submit.
type command func(d *Device) error

type commandBuffer struct {
	label    string
	commands []command
}

func (c *commandBuffer) Label() string { return c.label }

type commandEncoder struct {
	device   *Device
	label    string
	commands []command
	open     *renderPass
	finished bool
}

var _ gpu.CommandEncoder = &commandEncoder{}

func asTexture(t gpu.Texture) (*texture, error) {
	st, ok := t.(*texture)
	if !ok || st == nil {
		return nil, fmt.Errorf("texture %T is not a software texture: %w", t, gpu.ErrInvalidDescriptor)
	}
	if st.Released() {
		return nil, fmt.Errorf("texture %q: %w", st.Label(), gpu.ErrReleased)
	}
	return st, nil
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

type attachment struct {
	tex   *texture
	layer int
}

func viewAttachment(v gpu.TextureView, size gpu.Size) (attachment, error) {
	t, err := asTexture(v.Texture)
	if err != nil {
		return attachment{}, err
	}
	if !t.Usage().Has(gpu.TextureUsageRenderAttachment) {
		return attachment{}, fmt.Errorf("attachment %q lacks render attachment usage: %w", t.Label(), gpu.ErrInvalidDescriptor)
	}
	if t.Size() != size {
		return attachment{}, fmt.Errorf("attachment %q is %s, framebuffer is %s: %w", t.Label(), t.Size(), size, gpu.ErrInvalidDescriptor)
	}
	layer := v.Layer
	if layer == gpu.AllLayers {
		if t.Layers() != 1 {
			return attachment{}, fmt.Errorf("attachment %q must select one of %d layers: %w", t.Label(), t.Layers(), gpu.ErrInvalidDescriptor)
		}
		layer = 0
	}
	if layer < 0 || layer >= t.Layers() {
		return attachment{}, fmt.Errorf("attachment %q layer %d out of range: %w", t.Label(), layer, gpu.ErrInvalidDescriptor)
	}
	return attachment{tex: t, layer: layer}, nil
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

	rp := &renderPass{encoder: e, desc: desc, size: size}
	for _, c := range fb.Colors {
		a, err := viewAttachment(c, size)
		if err != nil {
			return nil, fmt.Errorf("pass %q: %w", desc.Label, err)
		}
		if a.tex.Format().IsDepth() {
			return nil, fmt.Errorf("pass %q: colour attachment %q has depth format: %w", desc.Label, a.tex.Label(), gpu.ErrInvalidDescriptor)
		}
		rp.colors = append(rp.colors, a)
	}
	if fb.Depth != nil {
		a, err := viewAttachment(*fb.Depth, size)
		if err != nil {
			return nil, fmt.Errorf("pass %q: %w", desc.Label, err)
		}
		if !a.tex.Format().IsDepth() {
			return nil, fmt.Errorf("pass %q: depth attachment %q has colour format: %w", desc.Label, a.tex.Label(), gpu.ErrInvalidDescriptor)
		}
		rp.depth = &a
	}
	e.open = rp
	return rp, nil
}

func (e *commandEncoder) Transition(t gpu.Texture, state gpu.ResourceState) {
	e.commands = append(e.commands, func(d *Device) error {
		st, err := asTexture(t)
		if err != nil {
			return err
		}
		switch state {
		case gpu.ResourceStateShaderRead:
			if !st.Usage().Has(gpu.TextureUsageTextureBinding) {
				return fmt.Errorf("transition %q to %s without binding usage: %w", st.Label(), state, gpu.ErrInvalidState)
			}
		case gpu.ResourceStateRenderTarget:
			if !st.Usage().Has(gpu.TextureUsageRenderAttachment) {
				return fmt.Errorf("transition %q to %s without attachment usage: %w", st.Label(), state, gpu.ErrInvalidState)
			}
		}
		d.mu.Lock()
		st.state = state
		d.log = append(d.log, Event{Kind: EventTransition, Label: st.Label(), Detail: state.String()})
		d.mu.Unlock()
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
	e.commands = append(e.commands, func(d *Device) error {
		d.mu.Lock()
		defer d.mu.Unlock()
		if s.state != gpu.ResourceStateCopySrc || t.state != gpu.ResourceStateCopyDst {
			return fmt.Errorf("copy %q (%s) to %q (%s): %w", s.Label(), s.state, t.Label(), t.state, gpu.ErrInvalidState)
		}
		copy(t.data, s.data)
		d.log = append(d.log, Event{Kind: EventCopy, Label: s.Label(), Detail: t.Label()})
		return nil
	})
	return nil
}

func (e *commandEncoder) Finish() (gpu.CommandBuffer, error) {
	if err := e.usable(); err != nil {
		return nil, err
	}
	e.finished = true
	return &commandBuffer{label: e.label, commands: e.commands}, nil
}

// renderPass records draws; they run in order when the owning buffer is submitted.
type renderPass struct {
	encoder *commandEncoder
	desc    gpu.RenderPassDescriptor
	size    gpu.Size
	colors  []attachment
	depth   *attachment

	pipeline *pipeline
	uniforms []byte
	textures []*texture
	ops      []func(d *Device, ctx *passState) error
	ended    bool
}

var _ gpu.RenderPassEncoder = &renderPass{}

// passState is the binding state while a pass executes.
type passState struct {
	pipeline *pipeline
	ctx      drawContext
}

func (rp *renderPass) SetPipeline(p gpu.Pipeline) {
	sp, _ := p.(*pipeline)
	rp.pipeline = sp
	uniforms := rp.uniforms
	rp.ops = append(rp.ops, func(_ *Device, s *passState) error {
		if sp == nil {
			return fmt.Errorf("pipeline %T is not a software pipeline: %w", p, gpu.ErrInvalidDescriptor)
		}
		s.pipeline = sp
		s.ctx.variant = sp.desc.Module.Variant
		if uniforms != nil {
			return sp.prog.uniforms.decode(&s.ctx, uniforms)
		}
		return nil
	})
}

func (rp *renderPass) SetFrameUniforms(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	rp.uniforms = buf
	rp.ops = append(rp.ops, func(_ *Device, s *passState) error {
		if s.pipeline == nil {
			return nil
		}
		return s.pipeline.prog.uniforms.decode(&s.ctx, buf)
	})
}

func (rp *renderPass) SetTextures(views ...gpu.TextureView) {
	textures := make([]*texture, 0, len(views))
	var bindErr error
	for _, v := range views {
		t, err := asTexture(v.Texture)
		if err != nil {
			bindErr = errors.Join(bindErr, err)
			continue
		}
		textures = append(textures, t)
	}
	rp.textures = textures
	label := rp.desc.Label
	rp.ops = append(rp.ops, func(d *Device, s *passState) error {
		if bindErr != nil {
			return bindErr
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		for _, t := range textures {
			if t.Released() {
				return fmt.Errorf("pass %q samples %q: %w", label, t.Label(), gpu.ErrReleased)
			}
			if t.state != gpu.ResourceStateShaderRead {
				return fmt.Errorf("pass %q samples %q in state %s: %w", label, t.Label(), t.state, gpu.ErrInvalidState)
			}
			for _, a := range rp.attachments() {
				if a.tex == t {
					return fmt.Errorf("pass %q samples its own attachment %q: %w", label, t.Label(), gpu.ErrInvalidState)
				}
			}
			d.log = append(d.log, Event{Kind: EventSample, Label: t.Label(), Detail: label})
		}
		s.ctx.textures = textures
		return nil
	})
}

func (rp *renderPass) checkDraw(fullscreen bool) error {
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
	if len(p.desc.Targets) != len(rp.colors) {
		return fmt.Errorf("pass %q: pipeline %q writes %d targets, framebuffer has %d: %w", rp.desc.Label, p.Label(), len(p.desc.Targets), len(rp.colors), gpu.ErrInvalidDescriptor)
	}
	for i, target := range p.desc.Targets {
		if target.Format != rp.colors[i].tex.Format() {
			return fmt.Errorf("pass %q: pipeline %q target %d is %s, attachment is %s: %w", rp.desc.Label, p.Label(), i, target.Format, rp.colors[i].tex.Format(), gpu.ErrInvalidDescriptor)
		}
	}
	if p.desc.Depth != nil && rp.depth == nil {
		return fmt.Errorf("pass %q: pipeline %q needs a depth attachment: %w", rp.desc.Label, p.Label(), gpu.ErrInvalidDescriptor)
	}
	if rp.uniforms == nil {
		return fmt.Errorf("pass %q: draw without uniforms: %w", rp.desc.Label, gpu.ErrInvalidState)
	}
	return nil
}

func (rp *renderPass) Draw(m gpu.Mesh, object []byte) error {
	if err := rp.checkDraw(false); err != nil {
		return err
	}
	sm, ok := m.(*mesh)
	if !ok {
		return fmt.Errorf("pass %q: mesh %T is not a software mesh: %w", rp.desc.Label, m, gpu.ErrInvalidDescriptor)
	}
	if sm.Topology() != rp.pipeline.desc.Topology {
		return fmt.Errorf("pass %q: mesh %q topology does not match pipeline %q: %w", rp.desc.Label, sm.Label(), rp.pipeline.Label(), gpu.ErrInvalidDescriptor)
	}
	obj := make([]byte, len(object))
	copy(obj, object)
	rp.ops = append(rp.ops, func(d *Device, s *passState) error {
		s.ctx.object = &shader.ObjectUniforms{}
		if err := s.ctx.object.Unmarshal(obj); err != nil {
			return err
		}
		d.record(Event{Kind: EventDraw, Label: s.pipeline.Label(), Detail: rp.desc.Label})
		rp.drawMesh(d, s, sm)
		return nil
	})
	return nil
}

func (rp *renderPass) DrawFullscreen() error {
	if err := rp.checkDraw(true); err != nil {
		return err
	}
	rp.ops = append(rp.ops, func(d *Device, s *passState) error {
		d.record(Event{Kind: EventDraw, Label: s.pipeline.Label(), Detail: rp.desc.Label})
		d.mu.Lock()
		defer d.mu.Unlock()
		for y := range rp.size.Height {
			for x := range rp.size.Width {
				out := s.pipeline.prog.fullscreen(&s.ctx, x, y)
				rp.writeColor(s.pipeline, 0, x, y, out)
			}
		}
		return nil
	})
	return nil
}

func (rp *renderPass) End() error {
	if rp.ended {
		return fmt.Errorf("pass %q already ended: %w", rp.desc.Label, gpu.ErrInvalidState)
	}
	rp.ended = true
	rp.encoder.open = nil
	rp.encoder.commands = append(rp.encoder.commands, rp.execute)
	return nil
}

func (rp *renderPass) execute(d *Device) error {
	d.mu.Lock()
	for _, a := range rp.attachments() {
		if a.tex.Released() {
			d.mu.Unlock()
			return fmt.Errorf("pass %q attachment %q: %w", rp.desc.Label, a.tex.Label(), gpu.ErrReleased)
		}
		if a.tex.state != gpu.ResourceStateRenderTarget {
			d.mu.Unlock()
			return fmt.Errorf("pass %q writes %q in state %s: %w", rp.desc.Label, a.tex.Label(), a.tex.state, gpu.ErrInvalidState)
		}
	}
	d.log = append(d.log, Event{Kind: EventPass, Label: rp.desc.Label})
	if rp.desc.LoadOp == gpu.LoadOpClear {
		for i, a := range rp.colors {
			var v mgl32.Vec4
			if i < len(rp.desc.Clear.Colors) {
				v = rp.desc.Clear.Colors[i]
			}
			a.tex.fill(a.layer, v)
		}
		if rp.depth != nil {
			rp.depth.tex.fill(rp.depth.layer, mgl32.Vec4{rp.desc.Clear.Depth})
		}
	}
	d.mu.Unlock()

	s := &passState{}
	for _, op := range rp.ops {
		if err := op(d, s); err != nil {
			return fmt.Errorf("pass %q: %w", rp.desc.Label, err)
		}
	}
	return nil
}

func (rp *renderPass) attachments() []attachment {
	out := append([]attachment(nil), rp.colors...)
	if rp.depth != nil {
		out = append(out, *rp.depth)
	}
	return out
}

func (rp *renderPass) drawMesh(d *Device, s *passState, m *mesh) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := s.pipeline
	rs := rasterState{width: rp.size.Width, height: rp.size.Height, cull: p.desc.CullMode}
	if p.desc.Depth != nil {
		rs.bias = float32(p.desc.Depth.Bias)
		rs.slopeScale = p.desc.Depth.BiasSlopeScale
	}

	verts := make([]clipVertex, len(m.desc.Positions))
	for i := range verts {
		verts[i] = p.prog.vertex(&s.ctx, m.desc.Positions[i], m.desc.Normals[i])
	}
	emit := func(f fragment) { rp.shade(p, s, f) }

	idx := m.desc.Indices
	if m.Topology() == gpu.TopologyPointList {
		for _, i := range idx {
			rs.rasterPoint(verts[i], emit)
		}
		return
	}
	for i := 0; i+2 < len(idx); i += 3 {
		rs.rasterTriangle([3]clipVertex{verts[idx[i]], verts[idx[i+1]], verts[idx[i+2]]}, emit)
	}
}

// shade runs the depth test and fragment stage for one fragment. The device lock is held.
func (rp *renderPass) shade(p *pipeline, s *passState, f fragment) {
	if ds := p.desc.Depth; ds != nil {
		stored := rp.depth.tex.load(f.x, f.y, rp.depth.layer).X()
		if !ds.Compare.Test(f.depth, stored) {
			return
		}
	}
	var outputs []mgl32.Vec4
	if p.prog.fragment != nil {
		var keep bool
		outputs, keep = p.prog.fragment(&s.ctx, f)
		if !keep {
			return
		}
	}
	if ds := p.desc.Depth; ds != nil && ds.WriteEnabled {
		rp.depth.tex.store(f.x, f.y, rp.depth.layer, mgl32.Vec4{f.depth})
	}
	for i, out := range outputs {
		if i < len(rp.colors) {
			rp.writeColor(p, i, f.x, f.y, out)
		}
	}
}

func (rp *renderPass) writeColor(p *pipeline, target, x, y int, src mgl32.Vec4) {
	a := rp.colors[target]
	if blend := p.desc.Targets[target].Blend; blend != nil {
		dst := a.tex.load(x, y, a.layer)
		src = applyBlend(*blend, src, dst)
	}
	a.tex.store(x, y, a.layer, src)
}

func blendFactor(f gpu.BlendFactor, src mgl32.Vec4, channel int) float32 {
	switch f {
	case gpu.BlendFactorOne:
		return 1
	case gpu.BlendFactorSrcAlpha:
		return src.W()
	case gpu.BlendFactorOneMinusSrcAlpha:
		return 1 - src.W()
	case gpu.BlendFactorSrc:
		return src[channel]
	case gpu.BlendFactorOneMinusSrc:
		return 1 - src[channel]
	default:
		return 0
	}
}

// applyBlend computes src*SrcFactor + dst*DstFactor per channel.
func applyBlend(b gpu.BlendState, src, dst mgl32.Vec4) mgl32.Vec4 {
	var out mgl32.Vec4
	for i := range 4 {
		c := b.Color
		if i == 3 {
			c = b.Alpha
		}
		out[i] = src[i]*blendFactor(c.SrcFactor, src, i) + dst[i]*blendFactor(c.DstFactor, src, i)
	}
	return out
}
