package technique

import (
	"errors"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-technique/common"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
)

// PostContext is handed to every post-effect of a frame. Frame is active for the whole
// of Apply.
type PostContext struct {
	Size     gpu.Size
	Frame    *scene.FrameContext
	Snapshot *scene.Snapshot
	Info     *RenderInfo
}

// PostEffect modifies the combined image in place. Effects run in registration order,
// each receiving the target in the shader-readable state and leaving it there.
type PostEffect interface {
	// Name identifies the effect in logs and pass timings.
	Name() string

	// Initialise creates the effect's surfaces and pipelines.
	//
	// Parameters:
	//   - r: the renderer owning the device
	//   - size: the target size
	//
	// Returns:
	//   - error: an allocation error
	Initialise(r renderer.Renderer, size gpu.Size) error

	// Apply records the effect into enc.
	//
	// Parameters:
	//   - enc: the frame's post encoder
	//   - target: the image to modify
	//   - ctx: the frame's post context
	//
	// Returns:
	//   - error: a recording error
	Apply(enc gpu.CommandEncoder, target gpu.Texture, ctx PostContext) error

	// Cleanup releases everything Initialise created. Calling it twice is a no-op.
	Cleanup()
}

// PipelineExposure is the key of the exposure effect's pipeline.
const PipelineExposure = "post/exposure"

// ExposureEffect scales the colour of the image by a constant factor.
type ExposureEffect struct {
	exposure float32

	r       renderer.Renderer
	scratch gpu.Texture
	p       pipeline.Pipeline
}

var _ PostEffect = &ExposureEffect{}

// NewExposureEffect creates an exposure effect.
//
// Parameters:
//   - exposure: the colour multiplier, must be positive
//
// Returns:
//   - *ExposureEffect: the effect
func NewExposureEffect(exposure float32) *ExposureEffect {
	if exposure <= 0 {
		panic(fmt.Sprintf("technique: exposure must be positive, got %v", exposure))
	}
	return &ExposureEffect{exposure: exposure}
}

func (e *ExposureEffect) Name() string      { return "exposure" }
func (e *ExposureEffect) Exposure() float32 { return e.exposure }

func (e *ExposureEffect) Initialise(r renderer.Renderer, size gpu.Size) error {
	if e.scratch != nil {
		return nil
	}
	var err error
	e.scratch, err = createSurface(r.Device(), "post/exposure/scratch", size, ResultFormat,
		gpu.TextureUsageTextureBinding|gpu.TextureUsageCopyDst)
	if err != nil {
		return err
	}
	m, err := r.Library().Module(shader.ModuleExposure, shader.DefaultVariant)
	if err != nil {
		releaseTexture(&e.scratch)
		return &AllocationError{Resource: PipelineExposure, Err: err}
	}
	e.p = pipeline.NewPipeline(PipelineExposure,
		pipeline.WithModule(m),
		pipeline.WithColorTarget(ResultFormat, nil),
		pipeline.WithFullscreen(),
	)
	if err := registerPipelines(r, PipelineExposure, e.p); err != nil {
		releaseTexture(&e.scratch)
		e.p = nil
		return err
	}
	e.r = r
	return nil
}

func (e *ExposureEffect) Apply(enc gpu.CommandEncoder, target gpu.Texture, ctx PostContext) error {
	if e.scratch == nil {
		return ErrNotInitialised
	}
	enc.Transition(target, gpu.ResourceStateCopySrc)
	enc.Transition(e.scratch, gpu.ResourceStateCopyDst)
	if err := enc.CopyTexture(target, e.scratch); err != nil {
		return err
	}
	enc.Transition(e.scratch, gpu.ResourceStateShaderRead)
	enc.Transition(target, gpu.ResourceStateRenderTarget)

	pass, err := enc.BeginRenderPass(gpu.RenderPassDescriptor{
		Label: "post/exposure",
		Framebuffer: gpu.Framebuffer{
			Label:  "post/exposure",
			Colors: []gpu.TextureView{gpu.LayerView(target, 0)},
		},
		LoadOp: gpu.LoadOpLoad,
	})
	if err != nil {
		return err
	}
	pass.SetPipeline(e.p.Handle())
	pass.SetFrameUniforms(shader.PostUniforms{Exposure: e.exposure}.Marshal())
	pass.SetTextures(gpu.WholeView(e.scratch))
	if err := pass.DrawFullscreen(); err != nil {
		pass.End()
		return err
	}
	if ctx.Info != nil {
		ctx.Info.DrawCalls++
	}
	if err := pass.End(); err != nil {
		return err
	}
	enc.Transition(target, gpu.ResourceStateShaderRead)
	return nil
}

func (e *ExposureEffect) Cleanup() {
	releaseTexture(&e.scratch)
	if e.p != nil {
		e.r.ReleasePipelines(e.p.PipelineKey())
		e.p = nil
	}
}

// postChain runs the registered effects over the combined image.
type postChain struct {
	effects []PostEffect
}

func (c *postChain) initialise(r renderer.Renderer, size gpu.Size) error {
	for i, e := range c.effects {
		if err := e.Initialise(r, size); err != nil {
			common.Logger().Error("post-effect initialise failed", "resource", e.Name(), "error", err)
			for _, done := range c.effects[:i] {
				done.Cleanup()
			}
			return wrapAllocation("post/"+e.Name(), err)
		}
	}
	return nil
}

func (c *postChain) cleanup() {
	for _, e := range c.effects {
		e.Cleanup()
	}
}

func (c *postChain) apply(enc gpu.CommandEncoder, target gpu.Texture, ctx PostContext) error {
	if err := activeFrame(ctx.Frame); err != nil {
		return err
	}
	for _, e := range c.effects {
		start := time.Now()
		if err := e.Apply(enc, target, ctx); err != nil {
			return fmt.Errorf("post-effect %s: %w", e.Name(), err)
		}
		if ctx.Info != nil {
			ctx.Info.time("post/"+e.Name(), start)
		}
	}
	return nil
}

// wrapAllocation returns err as an *AllocationError, keeping an existing one.
func wrapAllocation(resource string, err error) error {
	var alloc *AllocationError
	if errors.As(err, &alloc) {
		return err
	}
	return &AllocationError{Resource: resource, Err: err}
}
