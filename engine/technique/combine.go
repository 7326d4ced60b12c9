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
)

// CombinePipeline returns the key of the combine pipeline for a fog mode.
func CombinePipeline(mode scene.FogMode) string {
	return "combine/" + mode.String()
}

// combinePass composites the opaque colour with the resolved transparency and applies
// fog. It owns one pipeline per fog mode so switching modes never rebuilds anything.
type combinePass struct {
	r           renderer.Renderer
	opaque      OpaquePass
	transparent TransparentPass

	size      gpu.Size
	result    gpu.Texture
	pipelines map[scene.FogMode]pipeline.Pipeline

	fog      scene.Fog
	uniforms shader.CombineUniforms
}

func newCombinePass(r renderer.Renderer, opaque OpaquePass, transparent TransparentPass) *combinePass {
	return &combinePass{r: r, opaque: opaque, transparent: transparent}
}

func (c *combinePass) initialise(size gpu.Size) error {
	var err error
	c.result, err = createSurface(c.r.Device(), "combine/result", size, ResultFormat,
		gpu.TextureUsageRenderAttachment|gpu.TextureUsageTextureBinding|gpu.TextureUsageCopySrc|gpu.TextureUsageCopyDst)
	if err != nil {
		return err
	}

	c.pipelines = make(map[scene.FogMode]pipeline.Pipeline, len(scene.FogModes))
	all := make([]pipeline.Pipeline, 0, len(scene.FogModes))
	for _, mode := range scene.FogModes {
		key := CombinePipeline(mode)
		m, err := c.r.Library().Module(shader.ModuleCombine, shader.CombineVariant(mode))
		if err != nil {
			c.cleanup()
			common.Logger().Error("combine module failed", "resource", key, "error", err)
			return &AllocationError{Resource: key, Err: err}
		}
		p := pipeline.NewPipeline(key,
			pipeline.WithModule(m),
			pipeline.WithColorTarget(ResultFormat, nil),
			pipeline.WithFullscreen(),
		)
		c.pipelines[mode] = p
		all = append(all, p)
	}
	if err := registerPipelines(c.r, "combine pipelines", all...); err != nil {
		c.cleanup()
		return err
	}
	c.size = size
	return nil
}

func (c *combinePass) cleanup() {
	releaseTexture(&c.result)
	if len(c.pipelines) > 0 {
		keys := make([]string, 0, len(c.pipelines))
		for _, p := range c.pipelines {
			keys = append(keys, p.PipelineKey())
		}
		c.r.ReleasePipelines(keys...)
	}
	c.pipelines = nil
	c.size = gpu.Size{}
}

func (c *combinePass) update(snap *scene.Snapshot) {
	c.fog = snap.Fog
	c.uniforms = shader.CombineUniforms{
		InvProjection: snap.Camera.Projection.Inv(),
		FogColor:      snap.Fog.Color,
		FogDensity:    snap.Fog.Density,
		FogStart:      snap.Fog.Start,
		FogEnd:        snap.Fog.End,
		FogMode:       uint32(snap.Fog.Mode),
		Size:          c.size,
	}
}

// textures returns the inputs of p in binding order. The depth surface is bound only
// by variants that compute fog.
func (c *combinePass) textures(p pipeline.Pipeline) []gpu.TextureView {
	views := []gpu.TextureView{
		gpu.WholeView(c.opaque.Color()),
		gpu.WholeView(c.transparent.Accumulation()),
		gpu.WholeView(c.transparent.Revealage()),
		gpu.WholeView(c.opaque.Depth()),
	}
	return views[:p.TextureBindings()]
}

func (c *combinePass) render(enc gpu.CommandEncoder, frame *scene.FrameContext, info *RenderInfo) error {
	if err := activeFrame(frame); err != nil {
		return err
	}
	defer info.time("combine", time.Now())
	p, ok := c.pipelines[c.fog.Mode]
	if !ok {
		return fmt.Errorf("technique: no combine pipeline for fog mode %d", c.fog.Mode)
	}

	enc.Transition(c.result, gpu.ResourceStateRenderTarget)
	pass, err := enc.BeginRenderPass(gpu.RenderPassDescriptor{
		Label: "combine",
		Framebuffer: gpu.Framebuffer{
			Label:  "combine",
			Colors: []gpu.TextureView{gpu.LayerView(c.result, 0)},
		},
		LoadOp: gpu.LoadOpClear,
		Clear:  gpu.ClearValues{Colors: []mgl32.Vec4{{}}, Depth: 1},
	})
	if err != nil {
		return err
	}
	pass.SetPipeline(p.Handle())
	pass.SetFrameUniforms(c.uniforms.Marshal())
	pass.SetTextures(c.textures(p)...)
	if err := pass.DrawFullscreen(); err != nil {
		pass.End()
		return fmt.Errorf("combine %s: %w", c.fog.Mode, err)
	}
	info.DrawCalls++
	if err := pass.End(); err != nil {
		return err
	}
	enc.Transition(c.result, gpu.ResourceStateShaderRead)
	return nil
}
