package shader

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
)

func TestLibraryModules(t *testing.T) {
	lib := NewLibrary()
	cases := []struct {
		key      string
		variant  string
		fragment string
		textures int
	}{
		{ModuleShadowDepth, DefaultVariant, "", 0},
		{ModuleShadowDistance, DefaultVariant, "fs_main", 0},
		{ModuleOpaque, DefaultVariant, "fs_main", 3},
		{ModuleTransparent, DefaultVariant, "fs_main", 4},
		{ModuleCombine, "disabled", "fs_main", 3},
		{ModuleCombine, "linear", "fs_main", 4},
		{ModuleCombine, "exponential", "fs_main", 4},
		{ModuleCombine, "squared_exponential", "fs_main", 4},
		{ModuleCopy, DefaultVariant, "fs_main", 1},
		{ModuleExposure, DefaultVariant, "fs_main", 1},
	}
	for _, tc := range cases {
		t.Run(tc.key+"/"+tc.variant, func(t *testing.T) {
			m, err := lib.Module(tc.key, tc.variant)
			require.NoError(t, err)
			assert.Equal(t, tc.key, m.Key)
			assert.NotEmpty(t, m.VertexEntry)
			assert.Equal(t, tc.fragment, m.FragmentEntry)
			assert.Len(t, m.Textures, tc.textures)
			assert.NotContains(t, m.Source, "@oxy:")
		})
	}
}

func TestLibraryUnknown(t *testing.T) {
	lib := NewLibrary()
	_, err := lib.Module("nope", DefaultVariant)
	assert.True(t, errors.Is(err, ErrUnknownModule))

	_, err = lib.Module(ModuleCombine, "fogged")
	assert.True(t, errors.Is(err, ErrUnknownVariant))

	_, err = lib.Module(ModuleOpaque, "linear")
	assert.True(t, errors.Is(err, ErrUnknownVariant))
}

func TestCombineVariantsPerFogMode(t *testing.T) {
	lib := NewLibrary()
	variants := lib.Variants(ModuleCombine)
	require.Len(t, variants, len(scene.FogModes))
	for _, mode := range scene.FogModes {
		assert.Contains(t, variants, CombineVariant(mode))
	}
	assert.Equal(t, []string{DefaultVariant}, lib.Variants(ModuleOpaque))
	assert.Nil(t, lib.Variants("nope"))
}

func TestTextureKinds(t *testing.T) {
	lib := NewLibrary()
	m, err := lib.Module(ModuleTransparent, DefaultVariant)
	require.NoError(t, err)
	require.Len(t, m.Textures, 4)
	assert.Equal(t, gpu.TextureBinding{Name: "dir_shadow", Kind: gpu.TextureSampleDepth, Dimension: gpu.ViewDimension2DArray}, m.Textures[0])
	assert.Equal(t, gpu.TextureSampleUnfilterableFloat, m.Textures[2].Kind)
	assert.Equal(t, gpu.TextureBinding{Name: "opaque_depth", Kind: gpu.TextureSampleDepth, Dimension: gpu.ViewDimension2D}, m.Textures[3])
}

func TestUniformSizesMatchWGSL(t *testing.T) {
	lib := NewLibrary()

	r, err := lib.Reflection(ModuleOpaque, DefaultVariant)
	require.NoError(t, err)
	assert.Equal(t, uint64(LightSize), r.Structs["Light"])
	assert.Equal(t, uint64(FrameSize), r.Structs["Frame"])
	assert.Equal(t, uint64(ObjectSize), r.Structs["Object"])
	assert.Equal(t, uint64(FrameSize), r.Uniforms[0])
	assert.Equal(t, uint64(ObjectSize), r.Uniforms[1])
	assert.Equal(t, 2, r.TextureGroup)

	r, err = lib.Reflection(ModuleCombine, "linear")
	require.NoError(t, err)
	assert.Equal(t, uint64(CombineSize), r.Uniforms[0])

	r, err = lib.Reflection(ModuleExposure, DefaultVariant)
	require.NoError(t, err)
	assert.Equal(t, uint64(PostSize), r.Uniforms[0])

	assert.Len(t, LightUniforms{}.Marshal(), LightSize)
	assert.Len(t, FrameUniforms{}.Marshal(), FrameSize)
	assert.Len(t, ObjectUniforms{}.Marshal(), ObjectSize)
	assert.Len(t, CombineUniforms{}.Marshal(), CombineSize)
	assert.Len(t, PostUniforms{}.Marshal(), PostSize)
}

func TestReflectRejectsSplitTextureGroups(t *testing.T) {
	_, err := Reflect(`
@group(1) @binding(0) var a: texture_2d<f32>;
@group(2) @binding(0) var b: texture_2d<f32>;
`)
	assert.Error(t, err)

	_, err = Reflect(`@group(1) @binding(1) var a: texture_2d<f32>;`)
	assert.Error(t, err, "gap at binding 0")
}

func TestModulesCompile(t *testing.T) {
	lib := NewLibrary()
	for _, key := range Keys() {
		for _, variant := range lib.Variants(key) {
			t.Run(key+"/"+variant, func(t *testing.T) {
				m, err := lib.Module(key, variant)
				require.NoError(t, err)
				spirv, err := Validate(m.Source)
				if err != nil {
					t.Skipf("naga could not compile %s: %v", key, err)
				}
				assert.NotEmpty(t, spirv)
			})
		}
	}
}
