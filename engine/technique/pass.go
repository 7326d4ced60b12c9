package technique

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-technique/common"
	"github.com/Carmen-Shannon/oxy-technique/engine/light"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
	"github.com/Carmen-Shannon/oxy-technique/engine/technique/shadow"
)

// Surface formats of the weighted blended technique.
const (
	ColorFormat        = gpu.TextureFormatRGBA16Float
	DepthFormat        = gpu.TextureFormatDepth32Float
	AccumulationFormat = gpu.TextureFormatRGBA16Float
	RevealageFormat    = gpu.TextureFormatR16Float
	ResultFormat       = gpu.TextureFormatRGBA16Float
)

// ShadowProducerPass is implemented by passes that sample shadow maps. Both geometry
// passes delegate to the same shadow.Manager, so each operation is safe to call from
// either and only the first call per frame does work.
type ShadowProducerPass interface {
	// InitialiseShadowMaps registers the shadow pipelines and creates the maps of every
	// casting producer.
	InitialiseShadowMaps() error

	// CleanupShadowMaps releases every map and the shadow pipelines.
	CleanupShadowMaps()

	// UpdateShadowMaps creates and destroys maps to match the shadow flags and requests
	// their caster queues.
	UpdateShadowMaps(queues *scene.QueueSet) error

	// RenderShadowMaps renders and submits every map.
	RenderShadowMaps(info *RenderInfo) error

	// AddShadowProducer registers a shadow casting light.
	AddShadowProducer(l light.Light)

	// RemoveShadowProducer unregisters a light and releases its map.
	RemoveShadowProducer(l light.Light)

	// ShadowMaps returns the shared manager.
	ShadowMaps() *shadow.Manager
}

// shadowDelegate implements ShadowProducerPass on top of a shared manager.
type shadowDelegate struct {
	shadows *shadow.Manager
}

func (s shadowDelegate) InitialiseShadowMaps() error {
	if err := s.shadows.Initialise(); err != nil {
		common.Logger().Error("shadow map allocation failed", "resource", "shadow maps", "error", err)
		return &AllocationError{Resource: "shadow maps", Err: err}
	}
	return nil
}

func (s shadowDelegate) CleanupShadowMaps() {
	s.shadows.Cleanup()
}

func (s shadowDelegate) UpdateShadowMaps(queues *scene.QueueSet) error {
	return s.shadows.Update(queues)
}

func (s shadowDelegate) RenderShadowMaps(info *RenderInfo) error {
	n, err := s.shadows.Render()
	info.DrawCalls += n
	info.ShadowDrawCalls += n
	return err
}

func (s shadowDelegate) AddShadowProducer(l light.Light) {
	s.shadows.AddShadowProducer(l)
}

func (s shadowDelegate) RemoveShadowProducer(l light.Light) {
	s.shadows.RemoveShadowProducer(l)
}

func (s shadowDelegate) ShadowMaps() *shadow.Manager {
	return s.shadows
}

// createSurface allocates a single layer 2D render target. Failures are logged with
// the resource name and returned as an *AllocationError.
func createSurface(d gpu.Device, label string, size gpu.Size, format gpu.TextureFormat, usage gpu.TextureUsage) (gpu.Texture, error) {
	t, err := d.CreateTexture(gpu.TextureDescriptor{
		Label:         label,
		Size:          size,
		Layers:        1,
		Format:        format,
		Usage:         usage,
		ViewDimension: gpu.ViewDimension2D,
	})
	if err != nil {
		common.Logger().Error("surface allocation failed", "resource", label, "size", size.String(), "error", err)
		return nil, &AllocationError{Resource: label, Err: err}
	}
	return t, nil
}

// registerPipelines creates the backend pipelines, reporting failures as allocation
// errors of resource.
func registerPipelines(r renderer.Renderer, resource string, pipelines ...pipeline.Pipeline) error {
	if err := r.RegisterPipelines(pipelines...); err != nil {
		common.Logger().Error("pipeline creation failed", "resource", resource, "error", err)
		return &AllocationError{Resource: resource, Err: err}
	}
	return nil
}

// geometryPipelines builds the triangle and point list variants of a geometry pass.
func geometryPipelines(lib shader.Library, key, module string, opts ...pipeline.PipelineBuilderOption) (tris, points pipeline.Pipeline, err error) {
	m, err := lib.Module(module, shader.DefaultVariant)
	if err != nil {
		return nil, nil, &AllocationError{Resource: key, Err: err}
	}
	base := append([]pipeline.PipelineBuilderOption{pipeline.WithModule(m)}, opts...)
	tris = pipeline.NewPipeline(key, base...)
	points = pipeline.NewPipeline(key+"/points", append(base,
		pipeline.WithTopology(gpu.TopologyPointList),
		pipeline.WithCullMode(gpu.CullModeNone),
	)...)
	return tris, points, nil
}

// frameUniforms assembles the main camera uniforms of a snapshot.
func frameUniforms(snap *scene.Snapshot, lights []shader.LightUniforms, weight shader.WeightFunction) shader.FrameUniforms {
	cam := snap.Camera
	return shader.FrameUniforms{
		ViewProj:       cam.ViewProjection,
		View:           cam.ViewMatrix,
		CameraPosition: cam.Position,
		Ambient:        snap.Ambient,
		Weight:         weight,
		Near:           cam.Near,
		Far:            cam.Far,
		Lights:         lights,
	}
}

// drawQueue records one draw per queued item, switching to the point pipeline for
// particles.
// activeFrame returns ErrFrameInactive unless frame is between Begin and End.
func activeFrame(frame *scene.FrameContext) error {
	if frame == nil || !frame.Active() {
		return ErrFrameInactive
	}
	return nil
}

func drawQueue(r renderer.Renderer, pass gpu.RenderPassEncoder, frame *scene.FrameContext, q *scene.RenderQueue, tris, points pipeline.Pipeline, info *RenderInfo) error {
	if err := activeFrame(frame); err != nil {
		return fmt.Errorf("queue %q: %w", q.Name, err)
	}
	var current pipeline.Pipeline
	for _, it := range q.Items {
		p := tris
		if it.Particle() {
			p = points
		}
		if p != current {
			pass.SetPipeline(p.Handle())
			current = p
		}
		mesh, err := r.Mesh(it.Geometry)
		if err != nil {
			return fmt.Errorf("queue %q item %d: %w", q.Name, it.ID, err)
		}
		obj := shader.NewObjectUniforms(it.Transform, it.Material.BaseColor, it.Material.Opacity, it.Material.Unlit)
		if err := pass.Draw(mesh, obj.Marshal()); err != nil {
			return fmt.Errorf("queue %q item %d: %w", q.Name, it.ID, err)
		}
		info.DrawCalls++
		info.VisibleObjects++
		if it.Particle() {
			info.Particles++
		}
	}
	return nil
}

// submit finishes enc and submits it on d.
func submit(d gpu.Device, enc gpu.CommandEncoder) error {
	buf, err := enc.Finish()
	if err != nil {
		return err
	}
	return d.Submit(buf)
}

func releaseTexture(t *gpu.Texture) {
	if *t != nil {
		(*t).Release()
		*t = nil
	}
}
