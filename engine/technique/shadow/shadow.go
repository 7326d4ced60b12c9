// Package shadow renders the shadow maps sampled by the geometry passes: cascaded
// maps for directional lights, a single perspective map for spot lights and a six
// face distance cube for point lights.
package shadow

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/Carmen-Shannon/oxy-technique/engine/camera"
	"github.com/Carmen-Shannon/oxy-technique/engine/light"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
)

// Pipeline keys registered by the Manager.
const (
	PipelineDepth    = "shadow/depth"
	PipelineDistance = "shadow/distance"
)

// ClearDistance is the sentinel a point map face is cleared to: nothing is closer.
const ClearDistance = math32.MaxFloat32

// Map is the shadow map of one light. The concrete variant is chosen once from the
// light type when the map is built.
type Map interface {
	// Light returns the light the map shadows.
	Light() light.Light

	// Type returns the light type the map was built for.
	Type() light.LightType

	// Size returns the side of each layer in texels.
	Size() int

	// Texture returns the sampled texture, or nil before Create and after Cleanup.
	Texture() gpu.Texture

	// Views returns the light views of the last Update, one per layer.
	Views() []camera.View

	// Create allocates the texture and the per-view attachments.
	//
	// Parameters:
	//   - size: the side of each layer in texels
	//
	// Returns:
	//   - error: the allocation error, after releasing anything already allocated
	Create(size int) error

	// Update re-derives the views when the light has moved, acknowledges the move and
	// requests one caster queue per view. The queues are filled by the next Cull.
	//
	// Parameters:
	//   - queues: the frame's queue set
	//
	// Returns:
	//   - error: an error if the light is missing from the frame's snapshot
	Update(queues *scene.QueueSet) error

	// Render clears every view to its sentinel and draws its caster queue.
	//
	// Parameters:
	//   - enc: the encoder the passes are recorded on
	//
	// Returns:
	//   - int: the number of draws recorded
	//   - error: a recording error
	Render(enc gpu.CommandEncoder) (int, error)

	// Uniforms fills the shadow fields of a light's uniforms for sampling at slot.
	Uniforms(u *shader.LightUniforms, slot int)

	// Cleanup releases the texture. Calling it twice is a no-op.
	Cleanup()
}

// NewMap builds the map variant for the light's type. The map holds no GPU memory
// until Create.
//
// Parameters:
//   - r: the renderer owning the device, meshes and shadow pipelines
//   - l: the light to shadow (must not be nil)
//   - opts: the shadow options
//
// Returns:
//   - Map: the shadow map
func NewMap(r renderer.Renderer, l light.Light, opts Options) Map {
	if l == nil {
		panic("shadow: nil light")
	}
	base := mapBase{r: r, light: l, opts: opts}
	switch l.Type() {
	case light.LightTypeDirectional:
		return &directionalMap{mapBase: base, cascades: l.State().CascadeCount}
	case light.LightTypeSpot:
		return &spotMap{mapBase: base}
	case light.LightTypePoint:
		return &pointMap{mapBase: base}
	default:
		panic(fmt.Sprintf("shadow: unsupported light type %s", l.Type()))
	}
}

// Pipelines returns the two shadow pipelines, built from the library's modules.
//
// Parameters:
//   - lib: the shader library
//   - opts: the shadow options providing the slope bias
//
// Returns:
//   - []pipeline.Pipeline: the depth and distance pipelines
//   - error: an error if a module is missing
func Pipelines(lib shader.Library, opts Options) ([]pipeline.Pipeline, error) {
	depth, err := lib.Module(shader.ModuleShadowDepth, shader.DefaultVariant)
	if err != nil {
		return nil, err
	}
	distance, err := lib.Module(shader.ModuleShadowDistance, shader.DefaultVariant)
	if err != nil {
		return nil, err
	}
	return []pipeline.Pipeline{
		pipeline.NewPipeline(PipelineDepth,
			pipeline.WithModule(depth),
			pipeline.WithDepth(gpu.CompareFunctionLess, true),
			pipeline.WithDepthBias(opts.DepthBias, opts.SlopeBias),
			pipeline.WithCullMode(gpu.CullModeNone),
		),
		pipeline.NewPipeline(PipelineDistance,
			pipeline.WithModule(distance),
			pipeline.WithColorTarget(gpu.TextureFormatR32Float, nil),
			pipeline.WithDepth(gpu.CompareFunctionLess, true),
			pipeline.WithCullMode(gpu.CullModeNone),
		),
	}, nil
}

// mapBase holds what every variant shares: the light, its caster queues and the
// sampled texture.
type mapBase struct {
	r     renderer.Renderer
	light light.Light
	opts  Options

	size    int
	texture gpu.Texture
	views   []camera.View
	queues  []*scene.RenderQueue

	// derived is false until the views have been computed once; version is the light
	// version they were computed from.
	derived bool
	version uint64
}

func (b *mapBase) Light() light.Light    { return b.light }
func (b *mapBase) Type() light.LightType { return b.light.Type() }
func (b *mapBase) Size() int             { return b.size }
func (b *mapBase) Texture() gpu.Texture  { return b.texture }
func (b *mapBase) Views() []camera.View  { return b.views }
func (b *mapBase) label(part string) string {
	return fmt.Sprintf("shadow/%s/%d/%s", b.Type(), b.light.ID(), part)
}

// createTexture allocates a square layered texture. Sampled textures are bound as
// 2D arrays; the rest are attachment-only scratch targets.
func (b *mapBase) createTexture(part string, size, layers int, format gpu.TextureFormat, sampled bool) (gpu.Texture, error) {
	if size <= 0 {
		panic("shadow: map size must be positive")
	}
	desc := gpu.TextureDescriptor{
		Label:         b.label(part),
		Size:          gpu.Size{Width: size, Height: size},
		Layers:        layers,
		Format:        format,
		Usage:         gpu.TextureUsageRenderAttachment,
		ViewDimension: gpu.ViewDimension2D,
	}
	if sampled {
		desc.Usage |= gpu.TextureUsageTextureBinding
		desc.ViewDimension = gpu.ViewDimension2DArray
	}
	t, err := b.r.Device().CreateTexture(desc)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", desc.Label, err)
	}
	return t, nil
}

// state returns the light's frozen state from the frame's snapshot.
func (b *mapBase) state(queues *scene.QueueSet) (light.State, error) {
	s, ok := queues.Snapshot().Light(b.light.ID())
	if !ok {
		return light.State{}, fmt.Errorf("shadow: light %d is not in frame %d", b.light.ID(), queues.Snapshot().Frame)
	}
	return s, nil
}

// refresh re-derives the views through derive when the frozen light is newer than the
// state they were derived from. Each map tracks its own version so several managers
// can shadow one light; ClearMoved only acknowledges the move to the light's owner.
func (b *mapBase) refresh(s light.State, derive func(light.State) []camera.View) {
	if b.derived && s.Version == b.version {
		return
	}
	b.views = derive(s)
	b.derived = true
	b.version = s.Version
	b.light.ClearMoved(s.Version)
}

// request asks the queue set for one caster queue per view.
func (b *mapBase) request(queues *scene.QueueSet) {
	b.queues = b.queues[:0]
	for i, v := range b.views {
		b.queues = append(b.queues, queues.Request(b.label(fmt.Sprint(i)), v, scene.ShadowCasters))
	}
}

// renderLayer records one view's pass into fb and draws its caster queue.
func (b *mapBase) renderLayer(enc gpu.CommandEncoder, p pipeline.Pipeline, layer int, fb gpu.Framebuffer, clear gpu.ClearValues) (int, error) {
	if p == nil || p.Handle() == nil {
		return 0, fmt.Errorf("shadow: pipeline for %s is not registered: %w", b.label(fmt.Sprint(layer)), gpu.ErrInvalidState)
	}
	v := b.views[layer]
	pass, err := enc.BeginRenderPass(gpu.RenderPassDescriptor{
		Label:       b.label(fmt.Sprint(layer)),
		Framebuffer: fb,
		LoadOp:      gpu.LoadOpClear,
		Clear:       clear,
	})
	if err != nil {
		return 0, err
	}
	pass.SetPipeline(p.Handle())
	pass.SetFrameUniforms(shader.FrameUniforms{
		ViewProj:       v.ViewProjection,
		View:           v.ViewMatrix,
		CameraPosition: v.Position,
		Near:           v.Near,
		Far:            v.Far,
	}.Marshal())

	draws := 0
	if layer < len(b.queues) && b.queues[layer] != nil {
		for _, it := range b.queues[layer].Items {
			mesh, err := b.r.Mesh(it.Geometry)
			if err != nil {
				pass.End()
				return draws, err
			}
			obj := shader.NewObjectUniforms(it.Transform, it.Material.BaseColor, it.Material.Opacity, true)
			if err := pass.Draw(mesh, obj.Marshal()); err != nil {
				pass.End()
				return draws, err
			}
			draws++
		}
	}
	return draws, pass.End()
}

// renderDepth renders every view into the matching layer of a depth texture.
func (b *mapBase) renderDepth(enc gpu.CommandEncoder) (int, error) {
	if b.texture == nil {
		return 0, errNotCreated(b.label("depth"))
	}
	p := b.r.Pipeline(PipelineDepth)
	enc.Transition(b.texture, gpu.ResourceStateRenderTarget)
	total := 0
	for i := range b.views {
		depth := gpu.LayerView(b.texture, i)
		n, err := b.renderLayer(enc, p, i, gpu.Framebuffer{Label: b.label(fmt.Sprint(i)), Depth: &depth}, gpu.ClearValues{Depth: 1})
		total += n
		if err != nil {
			return total, err
		}
	}
	enc.Transition(b.texture, gpu.ResourceStateShaderRead)
	return total, nil
}

func (b *mapBase) release() {
	if b.texture != nil {
		b.texture.Release()
		b.texture = nil
	}
	b.queues = nil
	b.size = 0
}

func errNotCreated(label string) error {
	return fmt.Errorf("shadow: %s rendered before Create: %w", label, gpu.ErrInvalidState)
}
