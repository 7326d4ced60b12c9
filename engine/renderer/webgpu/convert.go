package webgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
)

var textureFormats = map[gpu.TextureFormat]wgpu.TextureFormat{
	gpu.TextureFormatRGBA8Unorm:   wgpu.TextureFormatRGBA8Unorm,
	gpu.TextureFormatRGBA16Float:  wgpu.TextureFormatRGBA16Float,
	gpu.TextureFormatRGBA32Float:  wgpu.TextureFormatRGBA32Float,
	gpu.TextureFormatR16Float:     wgpu.TextureFormatR16Float,
	gpu.TextureFormatR32Float:     wgpu.TextureFormatR32Float,
	gpu.TextureFormatDepth32Float: wgpu.TextureFormatDepth32Float,
}

func textureFormat(f gpu.TextureFormat) (wgpu.TextureFormat, error) {
	if tf, ok := textureFormats[f]; ok {
		return tf, nil
	}
	return wgpu.TextureFormatUndefined, fmt.Errorf("texture format %s: %w", f, gpu.ErrUnsupported)
}

func textureUsage(u gpu.TextureUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u.Has(gpu.TextureUsageRenderAttachment) {
		out |= wgpu.TextureUsageRenderAttachment
	}
	if u.Has(gpu.TextureUsageTextureBinding) {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u.Has(gpu.TextureUsageCopySrc) {
		out |= wgpu.TextureUsageCopySrc
	}
	if u.Has(gpu.TextureUsageCopyDst) {
		out |= wgpu.TextureUsageCopyDst
	}
	return out
}

func viewDimension(d gpu.ViewDimension) wgpu.TextureViewDimension {
	if d == gpu.ViewDimension2DArray {
		return wgpu.TextureViewDimension2DArray
	}
	return wgpu.TextureViewDimension2D
}

func sampleType(k gpu.TextureSampleKind) wgpu.TextureSampleType {
	switch k {
	case gpu.TextureSampleDepth:
		return wgpu.TextureSampleTypeDepth
	case gpu.TextureSampleUnfilterableFloat:
		return wgpu.TextureSampleTypeUnfilterableFloat
	default:
		return wgpu.TextureSampleTypeFloat
	}
}

func topology(t gpu.Topology) wgpu.PrimitiveTopology {
	if t == gpu.TopologyPointList {
		return wgpu.PrimitiveTopologyPointList
	}
	return wgpu.PrimitiveTopologyTriangleList
}

func cullMode(c gpu.CullMode) wgpu.CullMode {
	switch c {
	case gpu.CullModeFront:
		return wgpu.CullModeFront
	case gpu.CullModeBack:
		return wgpu.CullModeBack
	default:
		return wgpu.CullModeNone
	}
}

func compareFunction(c gpu.CompareFunction) wgpu.CompareFunction {
	switch c {
	case gpu.CompareFunctionLess:
		return wgpu.CompareFunctionLess
	case gpu.CompareFunctionLessEqual:
		return wgpu.CompareFunctionLessEqual
	default:
		return wgpu.CompareFunctionAlways
	}
}

func blendFactor(f gpu.BlendFactor) wgpu.BlendFactor {
	switch f {
	case gpu.BlendFactorOne:
		return wgpu.BlendFactorOne
	case gpu.BlendFactorSrcAlpha:
		return wgpu.BlendFactorSrcAlpha
	case gpu.BlendFactorOneMinusSrcAlpha:
		return wgpu.BlendFactorOneMinusSrcAlpha
	case gpu.BlendFactorSrc:
		return wgpu.BlendFactorSrc
	case gpu.BlendFactorOneMinusSrc:
		return wgpu.BlendFactorOneMinusSrc
	default:
		return wgpu.BlendFactorZero
	}
}

func blendState(b *gpu.BlendState) *wgpu.BlendState {
	if b == nil {
		return nil
	}
	return &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			SrcFactor: blendFactor(b.Color.SrcFactor),
			DstFactor: blendFactor(b.Color.DstFactor),
			Operation: wgpu.BlendOperationAdd,
		},
		Alpha: wgpu.BlendComponent{
			SrcFactor: blendFactor(b.Alpha.SrcFactor),
			DstFactor: blendFactor(b.Alpha.DstFactor),
			Operation: wgpu.BlendOperationAdd,
		},
	}
}

func loadOp(op gpu.LoadOp) wgpu.LoadOp {
	if op == gpu.LoadOpLoad {
		return wgpu.LoadOpLoad
	}
	return wgpu.LoadOpClear
}
