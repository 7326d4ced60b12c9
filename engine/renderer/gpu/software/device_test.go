package software

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-technique/common"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/shader"
)

const attachmentUsage = gpu.TextureUsageRenderAttachment | gpu.TextureUsageTextureBinding

func newTarget(t *testing.T, d *Device, label string, size int, format gpu.TextureFormat) gpu.Texture {
	t.Helper()
	tex, err := d.CreateTexture(gpu.TextureDescriptor{
		Label:  label,
		Size:   gpu.Size{Width: size, Height: size},
		Format: format,
		Usage:  attachmentUsage,
	})
	require.NoError(t, err)
	return tex
}

func module(t *testing.T, key, variant string) gpu.ShaderModule {
	t.Helper()
	m, err := shader.NewLibrary().Module(key, variant)
	require.NoError(t, err)
	return m
}

func unlitPipeline(t *testing.T, d *Device, blend *gpu.BlendState, depth bool) gpu.Pipeline {
	t.Helper()
	desc := gpu.PipelineDescriptor{
		Label:           "opaque",
		Module:          module(t, shader.ModuleOpaque, shader.DefaultVariant),
		Targets:         []gpu.ColorTarget{{Format: gpu.TextureFormatRGBA32Float, Blend: blend}},
		CullMode:        gpu.CullModeNone,
		TextureBindings: 3,
	}
	if depth {
		desc.Depth = &gpu.DepthState{Format: gpu.TextureFormatDepth32Float, Compare: gpu.CompareFunctionLess, WriteEnabled: true}
	}
	p, err := d.CreatePipeline(desc)
	require.NoError(t, err)
	return p
}

// orthoFrame maps the [-1, 1] square at z = 0 onto the whole target.
func orthoFrame() []byte {
	view := common.LookAt(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	proj := common.Ortho(-1, 1, -1, 1, 0.1, 10)
	return shader.FrameUniforms{ViewProj: proj.Mul4(view), View: view, Near: 0.1, Far: 10}.Marshal()
}

func quadMesh(t *testing.T, d *Device, half float32) gpu.Mesh {
	t.Helper()
	m, err := d.CreateMesh(gpu.MeshDescriptor{
		Label:     "quad",
		Positions: []mgl32.Vec3{{-half, -half, 0}, {half, -half, 0}, {half, half, 0}, {-half, half, 0}},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
	})
	require.NoError(t, err)
	return m
}

// shadowStandIns returns three 1x1 readable textures for the opaque module's shadow slots.
func shadowStandIns(t *testing.T, d *Device, enc gpu.CommandEncoder) []gpu.TextureView {
	t.Helper()
	views := make([]gpu.TextureView, 0, 3)
	for _, label := range []string{"dir", "spot", "point"} {
		tex := newTarget(t, d, label, 1, gpu.TextureFormatR32Float)
		enc.Transition(tex, gpu.ResourceStateShaderRead)
		views = append(views, gpu.WholeView(tex))
	}
	return views
}

func drawQuad(t *testing.T, d *Device, target gpu.Texture, p gpu.Pipeline, color mgl32.Vec4, half float32) {
	t.Helper()
	enc, err := d.CreateCommandEncoder("frame")
	require.NoError(t, err)
	shadows := shadowStandIns(t, d, enc)
	enc.Transition(target, gpu.ResourceStateRenderTarget)
	pass, err := enc.BeginRenderPass(gpu.RenderPassDescriptor{
		Label:       "main",
		Framebuffer: gpu.Framebuffer{Colors: []gpu.TextureView{gpu.WholeView(target)}},
		LoadOp:      gpu.LoadOpClear,
	})
	require.NoError(t, err)
	pass.SetPipeline(p)
	pass.SetFrameUniforms(orthoFrame())
	pass.SetTextures(shadows...)
	obj := shader.NewObjectUniforms(mgl32.Ident4(), color.Vec3(), color.W(), true)
	require.NoError(t, pass.Draw(quadMesh(t, d, half), obj.Marshal()))
	require.NoError(t, pass.End())
	cb, err := enc.Finish()
	require.NoError(t, err)
	require.NoError(t, d.Submit(cb))
}

func TestClearAndReadback(t *testing.T) {
	d := NewDevice()
	tex := newTarget(t, d, "color", 4, gpu.TextureFormatRGBA16Float)

	enc, err := d.CreateCommandEncoder("clear")
	require.NoError(t, err)
	enc.Transition(tex, gpu.ResourceStateRenderTarget)
	pass, err := enc.BeginRenderPass(gpu.RenderPassDescriptor{
		Label:       "clear",
		Framebuffer: gpu.Framebuffer{Colors: []gpu.TextureView{gpu.WholeView(tex)}},
		Clear:       gpu.ClearValues{Colors: []mgl32.Vec4{{0.25, 0.5, 0.75, 1}}},
	})
	require.NoError(t, err)
	require.NoError(t, pass.End())
	cb, err := enc.Finish()
	require.NoError(t, err)
	require.NoError(t, d.Submit(cb))

	assert.Equal(t, mgl32.Vec4{0.25, 0.5, 0.75, 1}, d.ReadTexel(tex, 3, 3, 0))
	assert.Len(t, d.ReadLayer(tex, 0), 16)
	assert.Equal(t, gpu.ResourceStateRenderTarget, tex.State())
}

func TestPassRequiresRenderTargetState(t *testing.T) {
	d := NewDevice()
	tex := newTarget(t, d, "color", 2, gpu.TextureFormatRGBA8Unorm)

	enc, err := d.CreateCommandEncoder("bad")
	require.NoError(t, err)
	pass, err := enc.BeginRenderPass(gpu.RenderPassDescriptor{
		Label:       "bad",
		Framebuffer: gpu.Framebuffer{Colors: []gpu.TextureView{gpu.WholeView(tex)}},
	})
	require.NoError(t, err)
	require.NoError(t, pass.End())
	cb, err := enc.Finish()
	require.NoError(t, err)
	assert.True(t, errors.Is(d.Submit(cb), gpu.ErrInvalidState))
}

func TestSamplingRequiresShaderRead(t *testing.T) {
	d := NewDevice()
	target := newTarget(t, d, "color", 2, gpu.TextureFormatRGBA32Float)
	p := unlitPipeline(t, d, nil, false)

	enc, err := d.CreateCommandEncoder("frame")
	require.NoError(t, err)
	enc.Transition(target, gpu.ResourceStateRenderTarget)
	unreadable := newTarget(t, d, "unreadable", 1, gpu.TextureFormatR32Float)
	pass, err := enc.BeginRenderPass(gpu.RenderPassDescriptor{
		Label:       "main",
		Framebuffer: gpu.Framebuffer{Colors: []gpu.TextureView{gpu.WholeView(target)}},
	})
	require.NoError(t, err)
	pass.SetPipeline(p)
	pass.SetFrameUniforms(orthoFrame())
	pass.SetTextures(gpu.WholeView(unreadable), gpu.WholeView(unreadable), gpu.WholeView(unreadable))
	require.NoError(t, pass.Draw(quadMesh(t, d, 1), shader.ObjectUniforms{Model: mgl32.Ident4()}.Marshal()))
	require.NoError(t, pass.End())
	cb, err := enc.Finish()
	require.NoError(t, err)
	assert.True(t, errors.Is(d.Submit(cb), gpu.ErrInvalidState))
}

func TestDrawBindingMismatch(t *testing.T) {
	d := NewDevice()
	target := newTarget(t, d, "color", 2, gpu.TextureFormatRGBA32Float)
	p := unlitPipeline(t, d, nil, false)

	enc, err := d.CreateCommandEncoder("frame")
	require.NoError(t, err)
	pass, err := enc.BeginRenderPass(gpu.RenderPassDescriptor{
		Label:       "main",
		Framebuffer: gpu.Framebuffer{Colors: []gpu.TextureView{gpu.WholeView(target)}},
	})
	require.NoError(t, err)
	pass.SetPipeline(p)
	pass.SetFrameUniforms(orthoFrame())
	err = pass.Draw(quadMesh(t, d, 1), shader.ObjectUniforms{}.Marshal())
	assert.True(t, errors.Is(err, gpu.ErrBindingMismatch))
}

func TestCreatePipelineRejectsUnknownModule(t *testing.T) {
	d := NewDevice()
	_, err := d.CreatePipeline(gpu.PipelineDescriptor{Label: "x", Module: gpu.ShaderModule{Key: "bloom"}})
	assert.True(t, errors.Is(err, gpu.ErrUnsupported))
}

func TestMemoryBudget(t *testing.T) {
	d := NewDevice(WithMemoryBudget(64 * 64 * 4))
	a, err := d.CreateTexture(gpu.TextureDescriptor{Label: "a", Size: gpu.Size{Width: 64, Height: 64}, Format: gpu.TextureFormatR32Float, Usage: attachmentUsage})
	require.NoError(t, err)

	_, err = d.CreateTexture(gpu.TextureDescriptor{Label: "b", Size: gpu.Size{Width: 1, Height: 1}, Format: gpu.TextureFormatR32Float, Usage: attachmentUsage})
	assert.True(t, errors.Is(err, gpu.ErrOutOfMemory))

	a.Release()
	a.Release()
	assert.Equal(t, int64(0), d.Allocated())
	assert.True(t, a.Released())

	_, err = d.CreateTexture(gpu.TextureDescriptor{Label: "b", Size: gpu.Size{Width: 1, Height: 1}, Format: gpu.TextureFormatR32Float, Usage: attachmentUsage})
	assert.NoError(t, err)
}

func TestTriangleCoverage(t *testing.T) {
	d := NewDevice()
	target := newTarget(t, d, "color", 8, gpu.TextureFormatRGBA32Float)
	drawQuad(t, d, target, unlitPipeline(t, d, nil, false), mgl32.Vec4{1, 0, 0, 1}, 0.5)

	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, d.ReadTexel(target, 3, 3, 0), "centre is covered")
	assert.Equal(t, mgl32.Vec4{}, d.ReadTexel(target, 0, 0, 0), "corner is not")
}

func TestSharedEdgeCoveredOnce(t *testing.T) {
	d := NewDevice()
	target := newTarget(t, d, "accum", 8, gpu.TextureFormatRGBA32Float)
	blend := gpu.BlendAdditive
	drawQuad(t, d, target, unlitPipeline(t, d, &blend, false), mgl32.Vec4{1, 1, 1, 1}, 1)

	for y := range 8 {
		for x := range 8 {
			assert.Equal(t, float32(1), d.ReadTexel(target, x, y, 0).X(), "pixel %d,%d", x, y)
		}
	}
}

func TestBlendRevealage(t *testing.T) {
	out := applyBlend(gpu.BlendRevealage, mgl32.Vec4{0.25, 0.25, 0.25, 0.25}, mgl32.Vec4{0.5, 0.5, 0.5, 0.5})
	assert.InDelta(t, 0.375, out.X(), 1e-6)
}

func TestCommandLogOrder(t *testing.T) {
	d := NewDevice()
	target := newTarget(t, d, "color", 4, gpu.TextureFormatRGBA32Float)
	drawQuad(t, d, target, unlitPipeline(t, d, nil, false), mgl32.Vec4{1, 1, 1, 1}, 1)

	var kinds []EventKind
	for _, e := range d.Log() {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []EventKind{
		EventSubmit,
		EventTransition, EventTransition, EventTransition, EventTransition,
		EventPass, EventSample, EventSample, EventSample, EventDraw,
	}, kinds)

	d.ResetLog()
	assert.Empty(t, d.Log())
}

func TestDepthTest(t *testing.T) {
	d := NewDevice()
	target := newTarget(t, d, "color", 4, gpu.TextureFormatRGBA32Float)
	depth := newTarget(t, d, "depth", 4, gpu.TextureFormatDepth32Float)
	p := unlitPipeline(t, d, nil, true)

	enc, err := d.CreateCommandEncoder("frame")
	require.NoError(t, err)
	shadows := shadowStandIns(t, d, enc)
	enc.Transition(target, gpu.ResourceStateRenderTarget)
	enc.Transition(depth, gpu.ResourceStateRenderTarget)
	dv := gpu.WholeView(depth)
	pass, err := enc.BeginRenderPass(gpu.RenderPassDescriptor{
		Label:       "main",
		Framebuffer: gpu.Framebuffer{Colors: []gpu.TextureView{gpu.WholeView(target)}, Depth: &dv},
		Clear:       gpu.ClearValues{Depth: 1},
	})
	require.NoError(t, err)
	pass.SetPipeline(p)
	pass.SetFrameUniforms(orthoFrame())
	pass.SetTextures(shadows...)
	near := shader.NewObjectUniforms(mgl32.Translate3D(0, 0, 1), mgl32.Vec3{0, 1, 0}, 1, true)
	far := shader.NewObjectUniforms(mgl32.Ident4(), mgl32.Vec3{1, 0, 0}, 1, true)
	require.NoError(t, pass.Draw(quadMesh(t, d, 1), near.Marshal()))
	require.NoError(t, pass.Draw(quadMesh(t, d, 1), far.Marshal()))
	require.NoError(t, pass.End())
	cb, err := enc.Finish()
	require.NoError(t, err)
	require.NoError(t, d.Submit(cb))

	assert.Equal(t, mgl32.Vec4{0, 1, 0, 1}, d.ReadTexel(target, 2, 2, 0), "nearer quad wins regardless of order")
	assert.Less(t, d.ReadTexel(depth, 2, 2, 0).X(), float32(1))
}

func TestPointTopology(t *testing.T) {
	d := NewDevice()
	target := newTarget(t, d, "color", 4, gpu.TextureFormatRGBA32Float)
	desc := gpu.PipelineDescriptor{
		Label:           "points",
		Module:          module(t, shader.ModuleOpaque, shader.DefaultVariant),
		Targets:         []gpu.ColorTarget{{Format: gpu.TextureFormatRGBA32Float}},
		Topology:        gpu.TopologyPointList,
		TextureBindings: 3,
	}
	p, err := d.CreatePipeline(desc)
	require.NoError(t, err)
	m, err := d.CreateMesh(gpu.MeshDescriptor{Label: "p", Positions: []mgl32.Vec3{{0.1, 0.1, 0}}, Topology: gpu.TopologyPointList})
	require.NoError(t, err)

	enc, err := d.CreateCommandEncoder("frame")
	require.NoError(t, err)
	shadows := shadowStandIns(t, d, enc)
	enc.Transition(target, gpu.ResourceStateRenderTarget)
	pass, err := enc.BeginRenderPass(gpu.RenderPassDescriptor{
		Label:       "main",
		Framebuffer: gpu.Framebuffer{Colors: []gpu.TextureView{gpu.WholeView(target)}},
	})
	require.NoError(t, err)
	pass.SetPipeline(p)
	pass.SetFrameUniforms(orthoFrame())
	pass.SetTextures(shadows...)
	require.NoError(t, pass.Draw(m, shader.NewObjectUniforms(mgl32.Ident4(), mgl32.Vec3{1, 1, 1}, 1, true).Marshal()))
	require.NoError(t, pass.End())
	cb, err := enc.Finish()
	require.NoError(t, err)
	require.NoError(t, d.Submit(cb))

	assert.Equal(t, float32(1), d.ReadTexel(target, 2, 1, 0).X())
	var lit int
	for _, v := range d.ReadLayer(target, 0) {
		if v.X() > 0 {
			lit++
		}
	}
	assert.Equal(t, 1, lit)
}
