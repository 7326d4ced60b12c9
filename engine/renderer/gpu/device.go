package gpu

import (
	"github.com/go-gl/mathgl/mgl32"
)

// TextureDescriptor describes a texture to allocate.
type TextureDescriptor struct {
	Label         string
	Size          Size
	Layers        int
	Format        TextureFormat
	Usage         TextureUsage
	ViewDimension ViewDimension
}

// Texture is a GPU image, optionally layered.
type Texture interface {
	Label() string
	Size() Size
	Layers() int
	Format() TextureFormat
	Usage() TextureUsage
	ViewDimension() ViewDimension

	// State returns the resource state as of the last executed transition.
	State() ResourceState

	// Release frees the texture. Releasing twice is a no-op.
	Release()
	Released() bool
}

// AllLayers selects every layer of a texture in a TextureView.
const AllLayers = -1

// TextureView selects either one layer of a texture (attachments) or all of them (bindings).
type TextureView struct {
	Texture Texture
	Layer   int
}

// WholeView returns a view over every layer of t.
func WholeView(t Texture) TextureView {
	return TextureView{Texture: t, Layer: AllLayers}
}

// LayerView returns a view over a single layer of t.
func LayerView(t Texture, layer int) TextureView {
	return TextureView{Texture: t, Layer: layer}
}

// Framebuffer groups the attachments a render pass writes. It owns nothing; the
// textures behind it are owned by the pass that created them.
type Framebuffer struct {
	Label  string
	Colors []TextureView
	Depth  *TextureView
}

// Size returns the extent of the first attachment, or the zero Size.
func (f Framebuffer) Size() Size {
	if len(f.Colors) > 0 && f.Colors[0].Texture != nil {
		return f.Colors[0].Texture.Size()
	}
	if f.Depth != nil && f.Depth.Texture != nil {
		return f.Depth.Texture.Size()
	}
	return Size{}
}

// Textures returns every texture referenced by the framebuffer.
func (f Framebuffer) Textures() []Texture {
	out := make([]Texture, 0, len(f.Colors)+1)
	for _, c := range f.Colors {
		out = append(out, c.Texture)
	}
	if f.Depth != nil {
		out = append(out, f.Depth.Texture)
	}
	return out
}

// MeshDescriptor carries CPU-side geometry for upload.
type MeshDescriptor struct {
	Label     string
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Indices   []uint32
	Topology  Topology
}

// Mesh is uploaded geometry.
type Mesh interface {
	Label() string
	Topology() Topology
	VertexCount() int
	IndexCount() int
	Release()
}

// TextureSampleKind is the sample type a shader declares for a texture binding.
type TextureSampleKind int

const (
	TextureSampleFloat TextureSampleKind = iota
	TextureSampleUnfilterableFloat
	TextureSampleDepth
)

// TextureBinding describes one texture slot of a shader module.
type TextureBinding struct {
	Name      string
	Kind      TextureSampleKind
	Dimension ViewDimension
}

// ShaderModule is a pre-processed shader program. Variant distinguishes
// pre-built specialisations of the same source (for example one per fog mode).
type ShaderModule struct {
	Key           string
	Variant       string
	Source        string
	VertexEntry   string
	FragmentEntry string

	// Textures lists the module's texture slots in binding order.
	Textures []TextureBinding
}

// ColorTarget describes one colour output of a pipeline.
type ColorTarget struct {
	Format TextureFormat
	Blend  *BlendState
}

// DepthState describes the depth test of a pipeline.
type DepthState struct {
	Format         TextureFormat
	Compare        CompareFunction
	WriteEnabled   bool
	Bias           int32
	BiasSlopeScale float32
}

// PipelineDescriptor is the full fixed-function and shader description of a pipeline.
type PipelineDescriptor struct {
	Label    string
	Module   ShaderModule
	Targets  []ColorTarget
	Depth    *DepthState
	CullMode CullMode
	Topology Topology

	// Fullscreen pipelines take no vertex input and are drawn with DrawFullscreen.
	Fullscreen bool

	// TextureBindings is the exact number of texture views the pipeline expects.
	TextureBindings int
}

// Pipeline is a compiled pipeline object.
type Pipeline interface {
	Label() string
	Descriptor() PipelineDescriptor
	Release()
}

// RenderPassDescriptor describes the attachments and load behaviour of a render pass.
type RenderPassDescriptor struct {
	Label       string
	Framebuffer Framebuffer
	LoadOp      LoadOp
	Clear       ClearValues
}

// CommandBuffer is a finished, submittable recording.
type CommandBuffer interface {
	Label() string
}

// CommandEncoder records passes, transitions and copies for later submission.
type CommandEncoder interface {
	BeginRenderPass(desc RenderPassDescriptor) (RenderPassEncoder, error)

	// Transition records a resource state change for t.
	Transition(t Texture, state ResourceState)

	// CopyTexture records a full copy of src into dst, which must match in size, layers and format.
	CopyTexture(src, dst Texture) error

	Finish() (CommandBuffer, error)
}

// RenderPassEncoder records draws into one render pass.
type RenderPassEncoder interface {
	SetPipeline(p Pipeline)

	// SetFrameUniforms binds per-pass uniform data (group 0).
	SetFrameUniforms(data []byte)

	// SetTextures binds texture views, replacing any previous set.
	SetTextures(views ...TextureView)

	// Draw records one draw of mesh with per-object uniform data (group 1).
	Draw(mesh Mesh, object []byte) error

	// DrawFullscreen records one fullscreen triangle for a fullscreen pipeline.
	DrawFullscreen() error

	End() error
}

// Device allocates GPU objects and submits recorded work.
type Device interface {
	Backend() string
	CreateTexture(desc TextureDescriptor) (Texture, error)
	CreateMesh(desc MeshDescriptor) (Mesh, error)
	CreatePipeline(desc PipelineDescriptor) (Pipeline, error)
	CreateCommandEncoder(label string) (CommandEncoder, error)

	// Submit executes command buffers in order.
	Submit(buffers ...CommandBuffer) error

	Release()
}

// Presenter is implemented by devices that can show a texture on a window surface.
type Presenter interface {
	Present(t Texture) error
	ResizeSurface(size Size)
}
