package webgpu

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
)

func TestTextureFormat(t *testing.T) {
	f, err := textureFormat(gpu.TextureFormatR16Float)
	require.NoError(t, err)
	assert.Equal(t, wgpu.TextureFormatR16Float, f)

	_, err = textureFormat(gpu.TextureFormatUndefined)
	assert.True(t, errors.Is(err, gpu.ErrUnsupported))
}

func TestTextureUsage(t *testing.T) {
	u := textureUsage(gpu.TextureUsageRenderAttachment | gpu.TextureUsageTextureBinding)
	assert.Equal(t, wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding, u)
	assert.Equal(t, wgpu.TextureUsage(0), textureUsage(0))
}

func TestBlendState(t *testing.T) {
	assert.Nil(t, blendState(nil))

	b := blendState(&gpu.BlendRevealage)
	require.NotNil(t, b)
	assert.Equal(t, wgpu.BlendFactorZero, b.Color.SrcFactor)
	assert.Equal(t, wgpu.BlendFactorOneMinusSrc, b.Color.DstFactor)
	assert.Equal(t, wgpu.BlendOperationAdd, b.Alpha.Operation)
}

func TestSampleTypes(t *testing.T) {
	assert.Equal(t, wgpu.TextureSampleTypeDepth, sampleType(gpu.TextureSampleDepth))
	assert.Equal(t, wgpu.TextureSampleTypeUnfilterableFloat, sampleType(gpu.TextureSampleUnfilterableFloat))
	assert.Equal(t, wgpu.TextureViewDimension2DArray, viewDimension(gpu.ViewDimension2DArray))
}

func TestTextureLayoutKey(t *testing.T) {
	a := textureLayoutKey([]gpu.TextureBinding{{Kind: gpu.TextureSampleDepth, Dimension: gpu.ViewDimension2DArray}})
	b := textureLayoutKey([]gpu.TextureBinding{{Kind: gpu.TextureSampleDepth, Dimension: gpu.ViewDimension2D}})
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, textureLayoutKey([]gpu.TextureBinding{{Name: "other", Kind: gpu.TextureSampleDepth, Dimension: gpu.ViewDimension2DArray}}))
}
