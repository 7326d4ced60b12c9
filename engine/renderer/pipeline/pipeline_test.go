package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct{ released int }

func (f *fakeHandle) Label() string                      { return "fake" }
func (f *fakeHandle) Descriptor() gpu.PipelineDescriptor { return gpu.PipelineDescriptor{} }
func (f *fakeHandle) Release()                           { f.released++ }

func TestNewPipelineDefaults(t *testing.T) {
	p := NewPipeline("opaque")
	d := p.Descriptor()

	assert.Equal(t, "opaque", d.Label)
	assert.Equal(t, gpu.CullModeBack, d.CullMode)
	assert.Equal(t, gpu.TopologyTriangleList, d.Topology)
	assert.Nil(t, d.Depth)
	assert.False(t, d.Fullscreen)
	assert.Nil(t, p.Handle())
}

func TestBuilderOptions(t *testing.T) {
	mod := gpu.ShaderModule{Key: "transparent", VertexEntry: "vs_main", FragmentEntry: "fs_main"}
	p := NewPipeline("transparent",
		WithModule(mod),
		WithColorTarget(gpu.TextureFormatRGBA16Float, &gpu.BlendAdditive),
		WithColorTarget(gpu.TextureFormatR16Float, &gpu.BlendRevealage),
		WithDepth(gpu.CompareFunctionLess, false),
		WithDepthBias(2, 1.5),
		WithCullMode(gpu.CullModeNone),
		WithTextureBindings(4),
	)
	d := p.Descriptor()

	assert.Equal(t, mod, d.Module)
	require.Len(t, d.Targets, 2)
	assert.Equal(t, gpu.BlendAdditive, *d.Targets[0].Blend)
	assert.Equal(t, gpu.BlendRevealage, *d.Targets[1].Blend)
	require.NotNil(t, d.Depth)
	assert.False(t, d.Depth.WriteEnabled)
	assert.Equal(t, int32(2), d.Depth.Bias)
	assert.Equal(t, gpu.CullModeNone, d.CullMode)
	assert.Equal(t, 4, p.TextureBindings())
}

func TestDescriptorIsACopy(t *testing.T) {
	p := NewPipeline("shadow", WithDepth(gpu.CompareFunctionLess, true))
	d := p.Descriptor()
	d.Depth.WriteEnabled = false

	assert.True(t, p.Descriptor().Depth.WriteEnabled)
}

func TestFullscreenDisablesCulling(t *testing.T) {
	p := NewPipeline("combine", WithFullscreen())
	assert.True(t, p.Descriptor().Fullscreen)
	assert.Equal(t, gpu.CullModeNone, p.Descriptor().CullMode)
}

func TestRelease(t *testing.T) {
	h := &fakeHandle{}
	p := NewPipeline("opaque")
	p.SetHandle(h)
	p.Release()
	p.Release()

	assert.Equal(t, 1, h.released)
	assert.Nil(t, p.Handle())
}
