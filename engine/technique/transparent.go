package technique

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-technique/common"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
	"github.com/Carmen-Shannon/oxy-technique/engine/technique/shadow"
)

// Pipeline keys of the transparent pass.
const (
	PipelineTransparent       = "transparent"
	PipelineTransparentPoints = "transparent/points"
)

// Clear values of the transparency surfaces: no accumulated colour, nothing covered.
var (
	AccumulationClear = mgl32.Vec4{0, 0, 0, 0}
	RevealageClear    = mgl32.Vec4{1, 1, 1, 1}
)

// TransparentPass accumulates the transparent queue into the weighted colour sum
// (accumulation) and the product of (1 - opacity) (revealage). Fragments behind the
// opaque depth are discarded by the shader, so the pass has no depth attachment.
type TransparentPass interface {
	ShadowProducerPass

	// Initialise creates the accumulation and revealage surfaces and the pipelines.
	//
	// Parameters:
	//   - size: the surface size
	//
	// Returns:
	//   - error: an *AllocationError naming the failed resource
	Initialise(size gpu.Size) error

	// Cleanup releases the surfaces and pipelines. Calling it twice is a no-op.
	Cleanup()

	// Update takes the transparent queue and the frame uniforms from the queue set.
	Update(queues *scene.QueueSet) error

	// Render clears both surfaces, blends the queue into them and transitions them to
	// shader-readable. The opaque depth must already be shader-readable and frame active.
	Render(frame *scene.FrameContext, info *RenderInfo) error

	// Accumulation returns the RGBA16F weighted colour sum.
	Accumulation() gpu.Texture

	// Revealage returns the R16F revealage product.
	Revealage() gpu.Texture

	// Framebuffer returns the attachments the pass renders into.
	Framebuffer() gpu.Framebuffer

	// Queue returns the queue of the last Update.
	Queue() *scene.RenderQueue
}

type transparentPass struct {
	shadowDelegate

	r      renderer.Renderer
	opts   *Options
	opaque OpaquePass

	size                    gpu.Size
	accumulation, revealage gpu.Texture
	tris, points            pipeline.Pipeline

	queue *scene.RenderQueue
	frame shader.FrameUniforms
}

var _ TransparentPass = &transparentPass{}

func newTransparentPass(r renderer.Renderer, shadows *shadow.Manager, opaque OpaquePass, opts *Options) *transparentPass {
	return &transparentPass{shadowDelegate: shadowDelegate{shadows: shadows}, r: r, opaque: opaque, opts: opts}
}

func (p *transparentPass) Initialise(size gpu.Size) error {
	d := p.r.Device()
	usage := gpu.TextureUsageRenderAttachment | gpu.TextureUsageTextureBinding
	var err error
	p.accumulation, err = createSurface(d, "transparent/accumulation", size, AccumulationFormat, usage)
	if err != nil {
		return err
	}
	p.revealage, err = createSurface(d, "transparent/revealage", size, RevealageFormat, usage)
	if err != nil {
		p.Cleanup()
		return err
	}

	p.tris, p.points, err = geometryPipelines(p.r.Library(), PipelineTransparent, shader.ModuleTransparent,
		pipeline.WithColorTarget(AccumulationFormat, &gpu.BlendAdditive),
		pipeline.WithColorTarget(RevealageFormat, &gpu.BlendRevealage),
		pipeline.WithCullMode(gpu.CullModeNone),
	)
	if err == nil {
		err = registerPipelines(p.r, PipelineTransparent, p.tris, p.points)
	}
	if err != nil {
		p.Cleanup()
		return err
	}
	p.size = size
	common.Logger().Debug("transparent pass initialised", "size", size.String(), "weight", p.opts.Weight.String())
	return nil
}

func (p *transparentPass) Cleanup() {
	releaseTexture(&p.accumulation)
	releaseTexture(&p.revealage)
	if p.tris != nil {
		p.r.ReleasePipelines(p.tris.PipelineKey(), p.points.PipelineKey())
		p.tris, p.points = nil, nil
	}
	p.queue = nil
	p.size = gpu.Size{}
}

func (p *transparentPass) Update(queues *scene.QueueSet) error {
	q, ok := queues.Queue(scene.QueueTransparent)
	if !ok {
		return fmt.Errorf("technique: queue set has no %q queue", scene.QueueTransparent)
	}
	snap := queues.Snapshot()
	p.queue = q
	p.frame = frameUniforms(snap, p.shadows.Lights(snap.Lights), p.opts.Weight)
	return nil
}

func (p *transparentPass) Render(frame *scene.FrameContext, info *RenderInfo) error {
	if p.accumulation == nil {
		return ErrNotInitialised
	}
	if err := activeFrame(frame); err != nil {
		return err
	}
	defer info.time("transparent", time.Now())

	enc, err := p.r.Device().CreateCommandEncoder("transparent")
	if err != nil {
		return err
	}
	enc.Transition(p.accumulation, gpu.ResourceStateRenderTarget)
	enc.Transition(p.revealage, gpu.ResourceStateRenderTarget)
	pass, err := enc.BeginRenderPass(gpu.RenderPassDescriptor{
		Label:       "transparent",
		Framebuffer: p.Framebuffer(),
		LoadOp:      gpu.LoadOpClear,
		Clear:       gpu.ClearValues{Colors: []mgl32.Vec4{AccumulationClear, RevealageClear}, Depth: 1},
	})
	if err != nil {
		return err
	}
	if p.queue != nil && len(p.queue.Items) > 0 {
		pass.SetPipeline(p.tris.Handle())
		pass.SetFrameUniforms(p.frame.Marshal())
		pass.SetTextures(append(p.shadows.Textures(), gpu.WholeView(p.opaque.Depth()))...)
		if err := drawQueue(p.r, pass, frame, p.queue, p.tris, p.points, info); err != nil {
			pass.End()
			return err
		}
	}
	if err := pass.End(); err != nil {
		return err
	}
	enc.Transition(p.accumulation, gpu.ResourceStateShaderRead)
	enc.Transition(p.revealage, gpu.ResourceStateShaderRead)
	return submit(p.r.Device(), enc)
}

func (p *transparentPass) Accumulation() gpu.Texture { return p.accumulation }
func (p *transparentPass) Revealage() gpu.Texture    { return p.revealage }
func (p *transparentPass) Queue() *scene.RenderQueue { return p.queue }

func (p *transparentPass) Framebuffer() gpu.Framebuffer {
	return gpu.Framebuffer{
		Label: "transparent",
		Colors: []gpu.TextureView{
			gpu.LayerView(p.accumulation, 0),
			gpu.LayerView(p.revealage, 0),
		},
	}
}
