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

// Pipeline keys of the opaque pass.
const (
	PipelineOpaque       = "opaque"
	PipelineOpaquePoints = "opaque/points"
)

// OpaquePass renders the opaque queue into a colour and a depth surface. Both are left
// shader-readable for the transparent pass and the combine.
type OpaquePass interface {
	ShadowProducerPass

	// Initialise creates the colour and depth surfaces and the opaque pipelines.
	//
	// Parameters:
	//   - size: the surface size
	//
	// Returns:
	//   - error: an *AllocationError naming the failed resource
	Initialise(size gpu.Size) error

	// Cleanup releases the surfaces and pipelines. Calling it twice is a no-op.
	Cleanup()

	// Update takes the opaque queue and the frame uniforms from the queue set.
	Update(queues *scene.QueueSet) error

	// Render clears the surfaces to the background and far depth, draws the queue and
	// transitions both surfaces to shader-readable. frame must be active.
	Render(frame *scene.FrameContext, info *RenderInfo) error

	// Color returns the colour surface.
	Color() gpu.Texture

	// Depth returns the depth surface.
	Depth() gpu.Texture

	// Framebuffer returns the attachments the pass renders into.
	Framebuffer() gpu.Framebuffer

	// Queue returns the queue of the last Update.
	Queue() *scene.RenderQueue
}

type opaquePass struct {
	shadowDelegate

	r    renderer.Renderer
	opts *Options

	size         gpu.Size
	color, depth gpu.Texture
	tris, points pipeline.Pipeline

	queue      *scene.RenderQueue
	frame      shader.FrameUniforms
	background mgl32.Vec4
}

var _ OpaquePass = &opaquePass{}

func newOpaquePass(r renderer.Renderer, shadows *shadow.Manager, opts *Options) *opaquePass {
	return &opaquePass{shadowDelegate: shadowDelegate{shadows: shadows}, r: r, opts: opts}
}

func (p *opaquePass) Initialise(size gpu.Size) error {
	d := p.r.Device()
	var err error
	p.color, err = createSurface(d, "opaque/color", size, ColorFormat,
		gpu.TextureUsageRenderAttachment|gpu.TextureUsageTextureBinding)
	if err != nil {
		return err
	}
	p.depth, err = createSurface(d, "opaque/depth", size, DepthFormat,
		gpu.TextureUsageRenderAttachment|gpu.TextureUsageTextureBinding)
	if err != nil {
		p.Cleanup()
		return err
	}

	p.tris, p.points, err = geometryPipelines(p.r.Library(), PipelineOpaque, shader.ModuleOpaque,
		pipeline.WithColorTarget(ColorFormat, nil),
		pipeline.WithDepth(gpu.CompareFunctionLess, true),
		pipeline.WithCullMode(gpu.CullModeBack),
	)
	if err == nil {
		err = registerPipelines(p.r, PipelineOpaque, p.tris, p.points)
	}
	if err != nil {
		p.Cleanup()
		return err
	}
	p.size = size
	common.Logger().Debug("opaque pass initialised", "size", size.String())
	return nil
}

func (p *opaquePass) Cleanup() {
	releaseTexture(&p.color)
	releaseTexture(&p.depth)
	if p.tris != nil {
		p.r.ReleasePipelines(p.tris.PipelineKey(), p.points.PipelineKey())
		p.tris, p.points = nil, nil
	}
	p.queue = nil
	p.size = gpu.Size{}
}

func (p *opaquePass) Update(queues *scene.QueueSet) error {
	q, ok := queues.Queue(scene.QueueOpaque)
	if !ok {
		return fmt.Errorf("technique: queue set has no %q queue", scene.QueueOpaque)
	}
	snap := queues.Snapshot()
	p.queue = q
	p.frame = frameUniforms(snap, p.shadows.Lights(snap.Lights), p.opts.Weight)
	p.background = snap.Background
	return nil
}

func (p *opaquePass) Render(frame *scene.FrameContext, info *RenderInfo) error {
	if p.color == nil {
		return ErrNotInitialised
	}
	if err := activeFrame(frame); err != nil {
		return err
	}
	defer info.time("opaque", time.Now())

	enc, err := p.r.Device().CreateCommandEncoder("opaque")
	if err != nil {
		return err
	}
	enc.Transition(p.color, gpu.ResourceStateRenderTarget)
	enc.Transition(p.depth, gpu.ResourceStateRenderTarget)
	pass, err := enc.BeginRenderPass(gpu.RenderPassDescriptor{
		Label:       "opaque",
		Framebuffer: p.Framebuffer(),
		LoadOp:      gpu.LoadOpClear,
		Clear:       gpu.ClearValues{Colors: []mgl32.Vec4{p.background}, Depth: 1},
	})
	if err != nil {
		return err
	}
	if p.queue != nil && len(p.queue.Items) > 0 {
		pass.SetPipeline(p.tris.Handle())
		pass.SetFrameUniforms(p.frame.Marshal())
		pass.SetTextures(p.shadows.Textures()...)
		if err := drawQueue(p.r, pass, frame, p.queue, p.tris, p.points, info); err != nil {
			pass.End()
			return err
		}
	}
	if err := pass.End(); err != nil {
		return err
	}
	enc.Transition(p.depth, gpu.ResourceStateShaderRead)
	enc.Transition(p.color, gpu.ResourceStateShaderRead)
	return submit(p.r.Device(), enc)
}

func (p *opaquePass) Color() gpu.Texture        { return p.color }
func (p *opaquePass) Depth() gpu.Texture        { return p.depth }
func (p *opaquePass) Queue() *scene.RenderQueue { return p.queue }

func (p *opaquePass) Framebuffer() gpu.Framebuffer {
	depth := gpu.LayerView(p.depth, 0)
	return gpu.Framebuffer{
		Label:  "opaque",
		Colors: []gpu.TextureView{gpu.LayerView(p.color, 0)},
		Depth:  &depth,
	}
}
