// Package gpu describes the GPU surface the render technique is written against:
// textures, framebuffers, meshes, pipelines and command recording. Backends live in
// sibling packages (software for the CPU reference device, webgpu for cogentcore/webgpu).
package gpu

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Size is a render target extent in pixels.
type Size struct {
	Width  int
	Height int
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Aspect returns width / height, or 1 for an invalid size.
func (s Size) Aspect() float32 {
	if !s.Valid() {
		return 1
	}
	return float32(s.Width) / float32(s.Height)
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// TextureFormat identifies the texel layout of a texture.
type TextureFormat int

const (
	TextureFormatUndefined TextureFormat = iota
	TextureFormatRGBA8Unorm
	TextureFormatRGBA16Float
	TextureFormatRGBA32Float
	TextureFormatR16Float
	TextureFormatR32Float
	TextureFormatDepth32Float
)

var textureFormatNames = map[TextureFormat]string{
	TextureFormatUndefined:    "undefined",
	TextureFormatRGBA8Unorm:   "rgba8unorm",
	TextureFormatRGBA16Float:  "rgba16float",
	TextureFormatRGBA32Float:  "rgba32float",
	TextureFormatR16Float:     "r16float",
	TextureFormatR32Float:     "r32float",
	TextureFormatDepth32Float: "depth32float",
}

func (f TextureFormat) String() string {
	if n, ok := textureFormatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("TextureFormat(%d)", int(f))
}

// IsDepth reports whether the format can back a depth attachment.
func (f TextureFormat) IsDepth() bool {
	return f == TextureFormatDepth32Float
}

// BytesPerTexel returns the storage cost of one texel, used for memory accounting.
func (f TextureFormat) BytesPerTexel() int {
	switch f {
	case TextureFormatRGBA8Unorm, TextureFormatR32Float, TextureFormatDepth32Float:
		return 4
	case TextureFormatRGBA16Float:
		return 8
	case TextureFormatRGBA32Float:
		return 16
	case TextureFormatR16Float:
		return 2
	default:
		return 0
	}
}

// TextureUsage is a bit set of the ways a texture may be used.
type TextureUsage uint32

const (
	TextureUsageRenderAttachment TextureUsage = 1 << iota
	TextureUsageTextureBinding
	TextureUsageCopySrc
	TextureUsageCopyDst
)

// Has reports whether every bit of flag is set.
func (u TextureUsage) Has(flag TextureUsage) bool {
	return u&flag == flag
}

// ViewDimension describes how a texture is bound to a shader.
type ViewDimension int

const (
	ViewDimension2D ViewDimension = iota
	ViewDimension2DArray
)

// ResourceState tracks which side of a read/write boundary a texture is on.
// Attachments must be in ResourceStateRenderTarget and sampled textures in
// ResourceStateShaderRead; transitions are recorded explicitly on the encoder.
type ResourceState int

const (
	ResourceStateUndefined ResourceState = iota
	ResourceStateRenderTarget
	ResourceStateShaderRead
	ResourceStateCopySrc
	ResourceStateCopyDst
)

var resourceStateNames = [...]string{"undefined", "render-target", "shader-read", "copy-src", "copy-dst"}

func (s ResourceState) String() string {
	if int(s) < len(resourceStateNames) {
		return resourceStateNames[s]
	}
	return fmt.Sprintf("ResourceState(%d)", int(s))
}

// Topology is the primitive assembly mode of a mesh and pipeline.
type Topology int

const (
	TopologyTriangleList Topology = iota
	TopologyPointList
)

// CullMode selects which triangle faces are discarded.
type CullMode int

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

// CompareFunction is the depth test comparison.
type CompareFunction int

const (
	CompareFunctionLess CompareFunction = iota
	CompareFunctionLessEqual
	CompareFunctionAlways
)

// Test evaluates the comparison of an incoming value against a stored one.
func (c CompareFunction) Test(incoming, stored float32) bool {
	switch c {
	case CompareFunctionLess:
		return incoming < stored
	case CompareFunctionLessEqual:
		return incoming <= stored
	default:
		return true
	}
}

// BlendFactor scales a blend term.
type BlendFactor int

const (
	BlendFactorZero BlendFactor = iota
	BlendFactorOne
	BlendFactorSrcAlpha
	BlendFactorOneMinusSrcAlpha
	BlendFactorSrc
	BlendFactorOneMinusSrc
)

// BlendComponent is src*SrcFactor + dst*DstFactor.
type BlendComponent struct {
	SrcFactor BlendFactor
	DstFactor BlendFactor
}

// BlendState configures blending of one colour target.
type BlendState struct {
	Color BlendComponent
	Alpha BlendComponent
}

var (
	// BlendAdditive sums every channel, used for weighted accumulation.
	BlendAdditive = BlendState{
		Color: BlendComponent{SrcFactor: BlendFactorOne, DstFactor: BlendFactorOne},
		Alpha: BlendComponent{SrcFactor: BlendFactorOne, DstFactor: BlendFactorOne},
	}

	// BlendRevealage multiplies the destination by (1 - src), used for revealage.
	BlendRevealage = BlendState{
		Color: BlendComponent{SrcFactor: BlendFactorZero, DstFactor: BlendFactorOneMinusSrc},
		Alpha: BlendComponent{SrcFactor: BlendFactorZero, DstFactor: BlendFactorOneMinusSrc},
	}

	// BlendAlpha is conventional non-premultiplied alpha blending.
	BlendAlpha = BlendState{
		Color: BlendComponent{SrcFactor: BlendFactorSrcAlpha, DstFactor: BlendFactorOneMinusSrcAlpha},
		Alpha: BlendComponent{SrcFactor: BlendFactorOne, DstFactor: BlendFactorOneMinusSrcAlpha},
	}
)

// LoadOp selects whether an attachment is cleared or preserved at pass start.
type LoadOp int

const (
	LoadOpClear LoadOp = iota
	LoadOpLoad
)

// ClearValues are the values written by LoadOpClear.
type ClearValues struct {
	Colors []mgl32.Vec4
	Depth  float32
}
