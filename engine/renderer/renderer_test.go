package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
)

func newSoftwareRenderer(t *testing.T, opts ...RendererBuilderOption) Renderer {
	t.Helper()
	r, err := NewRenderer(BackendTypeSoftware, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func copyPipeline(t *testing.T, r Renderer, key string) pipeline.Pipeline {
	t.Helper()
	m, err := r.Library().Module(shader.ModuleCopy, shader.DefaultVariant)
	require.NoError(t, err)
	return pipeline.NewPipeline(key,
		pipeline.WithModule(m),
		pipeline.WithFullscreen(),
		pipeline.WithColorTarget(gpu.TextureFormatRGBA8Unorm, nil),
	)
}

func TestParseBackendType(t *testing.T) {
	for in, want := range map[string]BackendType{"": BackendTypeSoftware, "Software": BackendTypeSoftware, "wgpu": BackendTypeWGPU, "webgpu": BackendTypeWGPU} {
		got, err := ParseBackendType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseBackendType("vulkan")
	assert.Error(t, err)
	assert.Equal(t, "wgpu", BackendTypeWGPU.String())
}

func TestRegisterPipelines(t *testing.T) {
	r := newSoftwareRenderer(t)
	assert.Equal(t, "software", r.Device().Backend())

	p := copyPipeline(t, r, "copy")
	require.NoError(t, r.RegisterPipelines(p))
	require.NotNil(t, p.Handle())
	assert.Same(t, p, r.Pipeline("copy"))

	// a second pipeline under the same key is skipped
	dup := copyPipeline(t, r, "copy")
	require.NoError(t, r.RegisterPipelines(dup))
	assert.Nil(t, dup.Handle())
	assert.Len(t, r.Pipelines(), 1)

	r.ReleasePipelines("copy", "missing")
	assert.Nil(t, p.Handle())
	assert.Nil(t, r.Pipeline("copy"))
}

func TestRegisterPipelinesWrapsKey(t *testing.T) {
	r := newSoftwareRenderer(t)
	bad := pipeline.NewPipeline("broken", pipeline.WithModule(gpu.ShaderModule{Key: "bloom"}))
	err := r.RegisterPipelines(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"broken"`)
	assert.True(t, IsUnsupported(err))
}

func TestMeshCache(t *testing.T) {
	r := newSoftwareRenderer(t)
	g := scene.Cube(1)

	a, err := r.Mesh(g)
	require.NoError(t, err)
	b, err := r.Mesh(g)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, len(g.Indices), a.IndexCount())

	c, err := r.Mesh(scene.Cube(1))
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestReleaseMeshUploadsAgain(t *testing.T) {
	r := newSoftwareRenderer(t)
	g := scene.Cube(1)

	a, err := r.Mesh(g)
	require.NoError(t, err)
	r.ReleaseMesh(g.ID)
	r.ReleaseMesh(g.ID)
	b, err := r.Mesh(g)
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestEvictMeshesFreesIdleMeshes(t *testing.T) {
	r := newSoftwareRenderer(t)
	hot, cold := scene.Cube(1), scene.Quad(1)

	coldMesh, err := r.Mesh(cold)
	require.NoError(t, err)
	hotMesh, err := r.Mesh(hot)
	require.NoError(t, err)

	for range 4 {
		assert.Zero(t, r.EvictMeshes(4))
		_, err := r.Mesh(hot)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, r.EvictMeshes(4), "cold has gone five epochs unrequested")

	m, err := r.Mesh(hot)
	require.NoError(t, err)
	assert.Same(t, hotMesh, m)
	m, err = r.Mesh(cold)
	require.NoError(t, err)
	assert.NotSame(t, coldMesh, m)
}

func TestPresentUnsupportedOnSoftware(t *testing.T) {
	r := newSoftwareRenderer(t)
	tex, err := r.Device().CreateTexture(gpu.TextureDescriptor{Label: "t", Size: gpu.Size{Width: 1, Height: 1}, Format: gpu.TextureFormatRGBA8Unorm, Usage: gpu.TextureUsageTextureBinding})
	require.NoError(t, err)
	assert.True(t, IsUnsupported(r.Present(tex)))
	r.Resize(10, 10)
}
